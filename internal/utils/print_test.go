package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/iancoleman/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	TunnelId int    `json:"tunnel_id"`
	Pid      int    `json:"pid"`
	Status   string `json:"status"`
}

func TestPrintFormat(t *testing.T) {
	var buf bytes.Buffer
	old := Output
	Output = &buf
	defer func() { Output = old }()

	var rows []*orderedmap.OrderedMap
	for _, r := range []row{{7, 1234, "running"}, {12, 5678, "running"}} {
		m, err := StructToOrderedMap(r)
		require.NoError(t, err)
		assert.Equal(t, []string{"tunnel_id", "pid", "status"}, m.Keys())
		rows = append(rows, m)
	}
	PrintFormat(rows)

	out := buf.String()
	assert.Contains(t, out, "TUNNEL_ID")
	assert.Contains(t, out, "5678")
	assert.Less(t, strings.Index(out, "1234"), strings.Index(out, "5678"))
}

func TestFormatProgress(t *testing.T) {
	assert.Equal(t, "500 kB / 1.0 MB (50%) 250 kB/s", FormatProgress(500_000, 1_000_000, 250_000))
	assert.Equal(t, "2.0 kB 0 B/s", FormatProgress(2000, -1, 0))
}
