package speech

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrepareStripsMarkdown(t *testing.T) {
	reply := "## Top customers\n\n" +
		"| name | total |\n|---|---|\n| Ana | 10 |\n\n" +
		"**Ana** spent the most. See [the report](http://x/r) and `customers`.\n" +
		"```sql\nSELECT 1;\n```\n" +
		"- first item"

	got := Prepare(reply, Config{MaxSentences: 10})
	assert.Equal(t, "Top customers Ana spent the most. See the report and customers. first item", got)
}

func TestPrepareTruncates(t *testing.T) {
	got := Prepare("Revenue was 3.5 million. Costs fell. Margin rose. Done.", Config{MaxSentences: 2})
	assert.Equal(t, "Revenue was 3.5 million. Costs fell.", got)

	long := strings.Repeat("é", 20)
	got = Prepare(long, Config{MaxChars: 7})
	assert.Equal(t, strings.Repeat("é", 3), got)
}

func TestPrepareReplacements(t *testing.T) {
	got := Prepare("The SQL query used sqlite.", Config{Replacements: map[string]string{"sql": "sequel"}})
	assert.Equal(t, "The sequel query used sqlite.", got)
}

func TestPrepareKeepsIdentifiers(t *testing.T) {
	assert.Equal(t, "order_items has 2240 rows.", Prepare("`order_items` has 2240 rows.", Config{}))
}

func TestPrepareTableOnlyIsEmpty(t *testing.T) {
	assert.Equal(t, "", Prepare("| a |\n|---|\n| 1 |", Config{}))
}
