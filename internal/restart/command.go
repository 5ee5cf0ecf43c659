package restart

import "strings"

// Command is a launch command line, one word per element.
type Command []string

// String joins the words with single spaces. Empty words are dropped so the
// reported line never carries doubled or trailing spaces.
func (c Command) String() string {
	words := make([]string, 0, len(c))
	for _, w := range c {
		if w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}

// Argv returns the non-empty words of c.
func (c Command) Argv() []string {
	return strings.Fields(c.String())
}
