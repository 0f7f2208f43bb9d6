package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/iancoleman/orderedmap"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Output is where PrintFormat writes; tests swap it.
var Output io.Writer = os.Stdout

/**
 * Convert a struct into an ordered map keyed by its json tags
 * @param {interface{}} v - Struct value
 * @returns {*orderedmap.OrderedMap} Fields in declaration order
 * @returns {error} Error if v cannot be marshalled
 */
func StructToOrderedMap(v interface{}) (*orderedmap.OrderedMap, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := orderedmap.New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

/**
 * Print rows as a table
 * @param {[]*orderedmap.OrderedMap} rows - Rows sharing the same keys
 * @description
 * - Column headers come from the keys of the first row, upper-cased
 */
func PrintFormat(rows []*orderedmap.OrderedMap) {
	if len(rows) == 0 {
		return
	}
	keys := rows[0].Keys()

	t := table.NewWriter()
	t.SetOutputMirror(Output)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, 0, len(keys))
	for _, k := range keys {
		header = append(header, strings.ToUpper(k))
	}
	t.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, 0, len(keys))
		for _, k := range keys {
			v, _ := row.Get(k)
			r = append(r, formatCell(v))
		}
		t.AppendRow(r)
	}
	t.Render()
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		// json numbers
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

/**
 * Format download progress for a terminal line
 * @param {int64} received - Bytes received
 * @param {int64} total - Expected bytes, -1 when unknown
 * @param {float64} bps - Bytes per second
 * @returns {string} e.g. "1.2 MB / 8.4 MB (14%) 2.3 MB/s"
 */
func FormatProgress(received, total int64, bps float64) string {
	speed := humanize.Bytes(uint64(bps)) + "/s"
	if total <= 0 {
		return fmt.Sprintf("%s %s", humanize.Bytes(uint64(received)), speed)
	}
	return fmt.Sprintf("%s / %s (%d%%) %s",
		humanize.Bytes(uint64(received)), humanize.Bytes(uint64(total)), received*100/total, speed)
}

// PrintStatus prints a stage message on its own line, replacing a pending progress line.
func PrintStatus(text string) {
	fmt.Fprintf(Output, "\r\033[K%s\n", text)
}

// PrintProgress redraws the current progress line.
func PrintProgress(received, total int64, bps float64) {
	fmt.Fprintf(Output, "\r\033[K  %s", FormatProgress(received, total, bps))
}
