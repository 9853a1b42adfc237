package tovis

import (
	"sort"
	"strings"
)

// AnnotateTerms records a UsedTerm on every block whose source contains a
// glossary term. A term already present on a block is not added again. It
// returns the number of hits added.
func (d *Document) AnnotateTerms(glossary map[string][]string) int {
	terms := make([]string, 0, len(glossary))
	for t := range glossary {
		if t != "" {
			terms = append(terms, t)
		}
	}
	sort.Strings(terms)

	added := 0
	for _, b := range d.Blocks {
		if b.Source == "" {
			continue
		}
		for _, t := range terms {
			if !strings.Contains(b.Source, t) || b.hasTerm(t) {
				continue
			}
			b.Terms = append(b.Terms, UsedTerm{Source: t, Targets: append([]string{}, glossary[t]...)})
			added++
		}
	}
	return added
}

func (b *Block) hasTerm(source string) bool {
	for _, t := range b.Terms {
		if t.Source == source {
			return true
		}
	}
	return false
}
