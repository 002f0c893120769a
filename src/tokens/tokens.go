// Package tokens approximates prompt sizes.
package tokens

import (
	"unicode/utf8"

	"github.com/elee1766/orbital/src/aisdk"
)

// CharsPerToken is the fixed ratio used by Estimate.
const CharsPerToken = 4

// Estimate approximates the token count of messages as the characters of
// each message's content and role divided by CharsPerToken, rounded up.
// It is monotonic in the input and never negative.
func Estimate(messages []*aisdk.Message) int {
	total := 0
	for _, m := range messages {
		if m == nil {
			continue
		}
		chars := utf8.RuneCountInString(m.Content) + utf8.RuneCountInString(m.Role)
		total += (chars + CharsPerToken - 1) / CharsPerToken
	}
	return total
}
