package plugin

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Builtins returns the transforms shipped with tovis.
func Builtins() Registry {
	return Registry{
		"nfc": {
			Name:     "nfc",
			Triggers: []Trigger{OnSetSource},
			Func: func(text, _ string) (string, error) {
				return norm.NFC.String(text), nil
			},
		},
		"fold-width": {
			Name:     "fold-width",
			Triggers: []Trigger{OnSetSource},
			Func:     foldWidth,
			Validate: func(options string) error {
				_, err := widthTransformer(options)
				return err
			},
		},
		"trim": {
			Name:     "trim",
			Triggers: []Trigger{OnSetSource, OnSetMT},
			Func: func(text, _ string) (string, error) {
				return strings.TrimSpace(text), nil
			},
		},
		"collapse-space": {
			Name:     "collapse-space",
			Triggers: []Trigger{OnSetSource},
			Func: func(text, _ string) (string, error) {
				return strings.Join(strings.Fields(text), " "), nil
			},
		},
		"clean-llm": {
			Name:     "clean-llm",
			Triggers: []Trigger{OnSetMT},
			Func: func(text, _ string) (string, error) {
				return CleanLLM(text), nil
			},
		},
		"replace": {
			Name:     "replace",
			Triggers: []Trigger{OnSetSource},
			Func:     replace,
			Validate: func(options string) error {
				_, _, err := splitReplace(options)
				return err
			},
		},
	}
}

func widthTransformer(options string) (width.Transformer, error) {
	switch options {
	case "", "narrow":
		return width.Narrow, nil
	case "wide":
		return width.Widen, nil
	case "fold":
		return width.Fold, nil
	}
	return width.Transformer{}, fmt.Errorf("want narrow, wide or fold")
}

func foldWidth(text, options string) (string, error) {
	t, err := widthTransformer(options)
	if err != nil {
		return "", err
	}
	return t.String(text), nil
}

func splitReplace(options string) (string, string, error) {
	old, repl, ok := strings.Cut(options, "=>")
	if !ok || old == "" {
		return "", "", fmt.Errorf("want old=>new")
	}
	return old, repl, nil
}

func replace(text, options string) (string, error) {
	old, repl, err := splitReplace(options)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(text, old, repl), nil
}

// Go's RE2 has no backreferences, so every tag pair is spelled out.
var (
	thinkingBlockRe     = regexp.MustCompile(`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`)
	truncatedThinkingRe = regexp.MustCompile(`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`)

	echoPrefixRe = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.]? here(?:'s| is)(?: the)? (?:translated )?(?:translation|text)\s*:`),
		regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:translated )?(?:translation|text)\s*:`),
		regexp.MustCompile(`(?i)^(?:the )?(?:translation|translated text)\s*:`),
	}

	quotePairs = [][2]rune{
		{'"', '"'},
		{'\'', '\''},
		{'«', '»'},
		{'“', '”'},
		{'‘', '’'},
		{'「', '」'},
	}
)

// CleanLLM strips the usual noise around a machine translation returned by an
// LLM: reasoning blocks (closed or cut off), a leading "Here is the
// translation:" echo and quotes wrapping the whole answer.
func CleanLLM(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	for _, re := range echoPrefixRe {
		if loc := re.FindStringIndex(text); loc != nil {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}

	r := []rune(text)
	if n := len(r); n >= 2 {
		for _, q := range quotePairs {
			if r[0] == q[0] && r[n-1] == q[1] {
				text = strings.TrimSpace(string(r[1 : n-1]))
				break
			}
		}
	}
	return text
}
