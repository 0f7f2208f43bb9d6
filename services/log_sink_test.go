package services

import (
	"fmt"
	"testing"

	"kairo-keeper/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestLineWriter(t *testing.T) {
	sink := NewTunnelLogBuffer(0)
	w := newLineWriter(sink, 1, models.StreamInfo)

	w.Write([]byte("hel"))
	w.Write([]byte("lo\r\nwor"))
	w.Write([]byte("ld\n\n"))
	w.Write([]byte("tail"))
	assert.Len(t, sink.Lines(1), 2)
	w.Flush()

	var texts []string
	for _, l := range sink.Lines(1) {
		assert.Equal(t, models.StreamInfo, l.Stream)
		texts = append(texts, l.Text)
	}
	assert.Equal(t, []string{"hello", "world", "tail"}, texts)
	assert.Empty(t, sink.Lines(2))
}

func TestTunnelLogBufferCapacity(t *testing.T) {
	sink := NewTunnelLogBuffer(3)
	for i := 0; i < 5; i++ {
		sink.WriteLine(4, models.StreamError, fmt.Sprintf("line %d", i))
	}
	lines := sink.Lines(4)
	assert.Len(t, lines, 3)
	assert.Equal(t, "line 2", lines[0].Text)
	assert.Equal(t, "line 4", lines[2].Text)
}

func TestRedactArgs(t *testing.T) {
	args := []string{"-u", "secret", "-p", "3"}
	assert.Equal(t, []string{"-u", "******", "-p", "3"}, redactArgs(args))
	assert.Equal(t, "secret", args[1])
}
