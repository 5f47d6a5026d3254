package notifier

import "strings"

// Inside the (...) part of an inline link only these need escaping, see
// https://core.telegram.org/bots/api#markdownv2-style.
const linkURLSpecialChars = `)\`

func escapeLinkURL(input string) string {
	if !strings.ContainsAny(input, linkURLSpecialChars) {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + strings.Count(input, ")") + strings.Count(input, `\`))

	for i := range input {
		c := input[i]
		if strings.IndexByte(linkURLSpecialChars, c) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}
