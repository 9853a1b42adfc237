// Package detector guesses the language of tovis segments.
package detector

import (
	"sort"
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector for langs, or for every supported language when
// none are given. Building is expensive; reuse the instance.
func New(langs ...lingua.Language) *Detector {
	builder := lingua.NewLanguageDetectorBuilder()
	var b lingua.LanguageDetectorBuilder
	if len(langs) >= 2 {
		b = builder.FromLanguages(langs...)
	} else {
		b = builder.FromAllLanguages()
	}
	return &Detector{detector: b.Build()}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}

// DetectDominant returns the lower-case ISO 639-1 code detected for most of
// texts. Texts shorter than minRunes are not counted. Ties go to the code
// that sorts first.
func (d *Detector) DetectDominant(texts []string, minRunes int) (string, bool) {
	votes := make(map[string]int)
	for _, text := range texts {
		if len([]rune(strings.TrimSpace(text))) < minRunes {
			continue
		}
		if code, ok := d.DetectISO(text); ok {
			votes[strings.ToLower(code)]++
		}
	}
	if len(votes) == 0 {
		return "", false
	}

	codes := make([]string, 0, len(votes))
	for code := range votes {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	best := codes[0]
	for _, code := range codes[1:] {
		if votes[code] > votes[best] {
			best = code
		}
	}
	return best, true
}
