package candidate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Inline markup is swapped for numbered [Mn] tokens before a source is sent
// to services and swapped back in every result: code spans, HTML tags,
// {{template}} variables and {n} positional arguments.
var (
	reMarkup = regexp.MustCompile("`[^`]+`|<[^<>]+>|\\{\\{[^{}]*\\}\\}|\\{\\d+\\}")
	reToken  = regexp.MustCompile(`\[M(\d+)\]`)
)

type masked struct {
	text  string
	parts []string
}

func mask(text string) masked {
	var m masked
	m.text = reMarkup.ReplaceAllStringFunc(text, func(part string) string {
		m.parts = append(m.parts, part)
		return fmt.Sprintf("[M%d]", len(m.parts)-1)
	})
	return m
}

// unmask restores the masked parts in a translation. A translation that lost
// any token is an error.
func (m masked) unmask(text string) (string, error) {
	if len(m.parts) == 0 {
		return text, nil
	}
	var missing []string
	for i := range m.parts {
		if tok := fmt.Sprintf("[M%d]", i); !strings.Contains(text, tok) {
			missing = append(missing, tok)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("markup tokens lost: %s", strings.Join(missing, " "))
	}
	return reToken.ReplaceAllStringFunc(text, func(tok string) string {
		n, err := strconv.Atoi(reToken.FindStringSubmatch(tok)[1])
		if err != nil || n >= len(m.parts) {
			return tok
		}
		return m.parts[n]
	}), nil
}
