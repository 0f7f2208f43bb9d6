package services

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"kairo-keeper/internal/logger"
	"kairo-keeper/internal/models"
)

const DefaultLogCapacity = 200

// LogSink receives tunnel client output one line at a time.
type LogSink interface {
	WriteLine(tunnelId int, stream models.LogStream, line string)
}

/**
 * TunnelLogBuffer logs tunnel output and keeps the most recent lines per tunnel
 * @property {int} capacity - Lines kept per tunnel
 */
type TunnelLogBuffer struct {
	mu       sync.Mutex
	capacity int
	lines    map[int][]models.LogLine
}

func NewTunnelLogBuffer(capacity int) *TunnelLogBuffer {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &TunnelLogBuffer{capacity: capacity, lines: make(map[int][]models.LogLine)}
}

func (b *TunnelLogBuffer) WriteLine(tunnelId int, stream models.LogStream, line string) {
	entry := logger.WithFields(logger.Fields{"tunnel_id": tunnelId, "stream": string(stream)})
	if stream == models.StreamError {
		entry.Warn(line)
	} else {
		entry.Info(line)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	buf := append(b.lines[tunnelId], models.LogLine{
		TunnelId: tunnelId,
		Stream:   stream,
		Text:     line,
		Time:     time.Now(),
	})
	if len(buf) > b.capacity {
		buf = buf[len(buf)-b.capacity:]
	}
	b.lines[tunnelId] = buf
}

// Lines returns a copy of the retained lines of a tunnel, oldest first.
func (b *TunnelLogBuffer) Lines(tunnelId int) []models.LogLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.LogLine, len(b.lines[tunnelId]))
	copy(out, b.lines[tunnelId])
	return out
}

// lineWriter splits a byte stream into lines for a LogSink.
type lineWriter struct {
	mu       sync.Mutex
	sink     LogSink
	tunnelId int
	stream   models.LogStream
	pending  []byte
}

func newLineWriter(sink LogSink, tunnelId int, stream models.LogStream) *lineWriter {
	return &lineWriter{sink: sink, tunnelId: tunnelId, stream: stream}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.emit(w.pending[:i])
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

// Flush emits a trailing line without newline.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 {
		w.emit(w.pending)
		w.pending = nil
	}
}

func (w *lineWriter) emit(line []byte) {
	text := strings.TrimRight(string(line), "\r")
	if text == "" {
		return
	}
	w.sink.WriteLine(w.tunnelId, w.stream, text)
}
