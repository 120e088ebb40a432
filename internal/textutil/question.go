package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// QuestionKey returns the canonical lookup key for a question prompt.
func QuestionKey(question string) string {
	normalized := norm.NFC.String(question)
	return strings.Join(strings.Fields(normalized), " ")
}
