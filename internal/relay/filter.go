package relay

import (
	"strings"
	"unicode/utf8"
)

const (
	openBracket  = '【'
	closeBracket = '】'
)

// PrimaryOnly reports whether a text message is addressed exclusively to the
// primary destination: after trimming surrounding whitespace the text starts
// with 【 and ends with 】. The brackets may enclose anything, including
// nothing, but a lone bracket never matches.
func PrimaryOnly(text string) bool {
	t := strings.TrimSpace(text)
	if utf8.RuneCountInString(t) < 2 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(t)
	last, _ := utf8.DecodeLastRuneInString(t)
	return first == openBracket && last == closeBracket
}
