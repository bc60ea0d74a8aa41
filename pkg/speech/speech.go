// Package speech turns a chat reply into text suitable for a TTS vendor.
package speech

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

type Config struct {
	// MaxChars caps the spoken text after sentence truncation.
	MaxChars int `mapstructure:"max_chars"`
	// MaxSentences keeps only the leading sentences.
	MaxSentences int `mapstructure:"max_sentences"`
	// Replacements rewrites phrases before speaking, e.g. "SQL" -> "sequel".
	Replacements map[string]string `mapstructure:"replacements"`
}

func (c Config) withDefaults() Config {
	if c.MaxChars <= 0 {
		c.MaxChars = 600
	}
	if c.MaxSentences <= 0 {
		c.MaxSentences = 4
	}
	return c
}

var (
	fencedBlock = regexp.MustCompile("(?s)```.*?```")
	inlineCode  = regexp.MustCompile("`([^`]*)`")
	emphasis    = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__|\*([^*\n]+)\*`)
	link        = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	heading     = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	listMarker  = regexp.MustCompile(`(?m)^\s*([-*+]|\d+\.)\s+`)
	spaces      = regexp.MustCompile(`\s+`)
)

// Prepare strips markdown from text, drops tables and code blocks, applies
// replacements and truncates. The result may be empty.
func Prepare(text string, cfg Config) string {
	cfg = cfg.withDefaults()
	text = fencedBlock.ReplaceAllString(text, " ")
	text = dropTables(text)
	text = link.ReplaceAllString(text, "$1")
	text = inlineCode.ReplaceAllString(text, "$1")
	text = emphasis.ReplaceAllString(text, "$1$2$3")
	text = heading.ReplaceAllString(text, "")
	text = listMarker.ReplaceAllString(text, "")
	text = strings.TrimSpace(spaces.ReplaceAllString(text, " "))
	text = replace(text, cfg.Replacements)
	if text == "" {
		return ""
	}
	out := truncateSentences(text, cfg.MaxSentences)
	if len(out) > cfg.MaxChars {
		out = strings.TrimSpace(cutAtRune(out, cfg.MaxChars))
	}
	return out
}

func dropTables(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "|") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func replace(text string, replacements map[string]string) string {
	for from, to := range replacements {
		if from == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(from) + `\b`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllLiteralString(text, to)
	}
	return text
}

func truncateSentences(text string, maxSentences int) string {
	runes := []rune(text)
	count := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// "3.5" is not a sentence end.
		if i+1 < len(runes) && runes[i+1] != ' ' {
			continue
		}
		count++
		if count >= maxSentences {
			return strings.TrimSpace(string(runes[:i+1]))
		}
	}
	return text
}

// cutAtRune truncates to at most n bytes without splitting a rune.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
