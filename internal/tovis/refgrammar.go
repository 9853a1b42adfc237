package tovis

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Grammar of a refs payload:
//
//	refs  = entry { ";" entry }
//	entry = from ">" to "|" ratio { "|" op }
//	op    = kind "," s0 "," s1 "," t0 "," t1
var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
	{Name: "Kind", Pattern: `[A-Za-z]+|[~+=-]`},
	{Name: "Punct", Pattern: `[>|,;]`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

type refsAST struct {
	Entries []*refEntryAST `parser:"@@ ( ';' @@ )*"`
}

type refEntryAST struct {
	From  int      `parser:"@Number '>'"`
	To    int      `parser:"@Number"`
	Ratio float64  `parser:"'|' @Number"`
	Ops   []*opAST `parser:"( '|' @@ )*"`
}

type opAST struct {
	Kind        string `parser:"@Kind"`
	SourceStart int    `parser:"',' @Number"`
	SourceEnd   int    `parser:"',' @Number"`
	TargetStart int    `parser:"',' @Number"`
	TargetEnd   int    `parser:"',' @Number"`
}

var refParser = participle.MustBuild[refsAST](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// parseRefs decodes a refs payload. Any malformed entry fails the whole
// payload so that no partial list is ever returned.
func parseRefs(payload string) ([]Ref, error) {
	ast, err := refParser.ParseString("", payload)
	if err != nil {
		return nil, fmt.Errorf("%w: refs %q: %v", ErrMalformedField, payload, err)
	}

	refs := make([]Ref, 0, len(ast.Entries))
	for _, e := range ast.Entries {
		ops := make([]EditSpan, 0, len(e.Ops))
		for _, op := range e.Ops {
			kind, err := ParseOpKind(op.Kind)
			if err != nil {
				return nil, fmt.Errorf("%w: refs %q: %v", ErrMalformedField, payload, err)
			}
			if kind == OpEqual {
				continue
			}
			ops = append(ops, EditSpan{
				Kind:        kind,
				SourceStart: op.SourceStart,
				SourceEnd:   op.SourceEnd,
				TargetStart: op.TargetStart,
				TargetEnd:   op.TargetEnd,
			})
		}
		refs = append(refs, Ref{From: e.From, To: e.To, Ratio: e.Ratio, Ops: ops})
	}
	return refs, nil
}
