package sqlexec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MarkdownTable renders columns and rows as a GitHub-style table.
// An empty column list renders as an empty string.
func MarkdownTable(columns []string, rows [][]any) string {
	if len(columns) == 0 {
		return ""
	}
	var b strings.Builder
	writeRow(&b, columns)
	sep := make([]string, len(columns))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(&b, sep)
	cells := make([]string, len(columns))
	for _, row := range rows {
		for i := range cells {
			if i < len(row) {
				cells[i] = cellText(row[i])
			} else {
				cells[i] = ""
			}
		}
		writeRow(&b, cells)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(escapeCell(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(val)
	}
}
