package tovis

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Field is the block field a line addresses.
type Field int

const (
	FieldSource Field = iota
	FieldTarget
	FieldCandidate
	FieldTerms
	FieldRefs
	FieldComment
)

// Line grammar:
//
//	meta      = "#" key ":" value | "#" remark
//	separator = "---" { "-" }
//	block     = marker { marker } ":" index "}" [ " " ] payload
//
// The first marker of a block line selects the field.
var markerFields = map[rune]Field{
	'@': FieldSource,
	'λ': FieldTarget,
	'_': FieldCandidate,
	'$': FieldTerms,
	'%': FieldRefs,
	'!': FieldComment,
}

var fieldMarkers = map[Field]rune{
	FieldSource:    '@',
	FieldTarget:    'λ',
	FieldCandidate: '_',
	FieldTerms:     '$',
	FieldRefs:      '%',
	FieldComment:   '!',
}

// Payload separators.
const (
	listSep      = ";"
	termSep      = "::"
	altSep       = "|"
	metaListSep  = ","
	fileIndexSep = ":"
)

// Meta keys.
const (
	keySourceLang = "SourceLang"
	keyTargetLang = "TargetLang"
	keyFiles      = "IncludingFiles"
	keyTags       = "Tags"
	keyGroups     = "Groups"
	keyRemarks    = "Remarks"
)

// maxBlockIndex bounds the padding a single line can request.
const maxBlockIndex = 1 << 20

type blockLine struct {
	field   Field
	index   int
	payload string
}

// lexBlockLine splits a block line into field, index and trimmed payload.
// ok is false for lines that are not block lines. A block line whose index
// is out of range is reported as a malformed field.
func lexBlockLine(line string) (bl blockLine, ok bool, err error) {
	var (
		first rune
		n, i  int
	)
	for i < len(line) {
		r, size := utf8.DecodeRuneInString(line[i:])
		if _, ok := markerFields[r]; !ok {
			break
		}
		if n == 0 {
			first = r
		}
		n++
		i += size
	}
	if n == 0 || i >= len(line) || line[i] != ':' {
		return blockLine{}, false, nil
	}
	i++

	start := i
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == start || i >= len(line) || line[i] != '}' {
		return blockLine{}, false, nil
	}
	index, err := strconv.Atoi(line[start:i])
	if err != nil || index > maxBlockIndex {
		return blockLine{}, true, fmt.Errorf("%w: block index %s exceeds %d", ErrMalformedField, line[start:i], maxBlockIndex)
	}

	return blockLine{
		field:   markerFields[first],
		index:   index,
		payload: strings.TrimSpace(line[i+1:]),
	}, true, nil
}

func isSeparator(line string) bool {
	return len(line) >= 3 && strings.Trim(line, "-") == ""
}

// Parser upserts lines of the tovis text format into a document. Input may
// be partial, duplicated or out of order: fields are first-write-wins or
// append-only, and referenced blocks are created on demand.
type Parser struct {
	doc        *Document
	lines      int
	recognized int
	malformed  []error
}

// NewParser returns a parser writing into d.
func NewParser(d *Document) *Parser {
	return &Parser{doc: d}
}

// Malformed returns the fields discarded so far.
func (p *Parser) Malformed() []error { return p.malformed }

// Lines returns how many lines were read and how many were recognised.
func (p *Parser) Lines() (read, recognized int) { return p.lines, p.recognized }

// ParseLine applies one line. It reports whether the line was recognised.
// The returned error is fatal (a failing transform); malformed fields are
// collected in Malformed instead.
func (p *Parser) ParseLine(line string) (bool, error) {
	p.lines++
	line = strings.TrimRight(line, "\r")

	ok, err := p.parse(line)
	switch {
	case errors.Is(err, ErrMalformedField):
		p.malformed = append(p.malformed, fmt.Errorf("line %d: %w", p.lines, err))
		return false, nil
	case err != nil:
		return false, fmt.Errorf("line %d: %w", p.lines, err)
	}
	if ok {
		p.recognized++
	}
	return ok, nil
}

func (p *Parser) parse(line string) (bool, error) {
	switch {
	case strings.HasPrefix(line, "#"):
		return true, p.parseMeta(line[1:])
	case isSeparator(line):
		return true, nil
	case line == "":
		return false, nil
	}

	bl, ok, err := lexBlockLine(line)
	if !ok || err != nil {
		return false, err
	}
	return true, p.upsert(bl)
}

func (p *Parser) parseMeta(body string) error {
	meta := &p.doc.Meta
	key, value, ok := strings.Cut(body, ":")
	if !ok {
		meta.AddRemark(strings.TrimSpace(body))
		return nil
	}
	value = strings.TrimSpace(value)

	switch strings.TrimSpace(key) {
	case keySourceLang:
		meta.SourceLang = value
	case keyTargetLang:
		meta.TargetLang = value
	case keyFiles:
		files, err := parseFileMarks(value)
		if err != nil {
			return err
		}
		meta.Files = files
	case keyTags:
		meta.Tags = uniqueStrings(splitList(value, metaListSep))
	case keyGroups:
		groups, err := parseInts(value)
		if err != nil {
			return err
		}
		meta.Groups = groups
	case keyRemarks:
		meta.AddRemark(value)
	}
	return nil
}

func (p *Parser) upsert(bl blockLine) error {
	d := p.doc
	d.EnsureLength(bl.index + 1)
	b := d.Blocks[bl.index]

	switch bl.field {
	case FieldSource:
		return d.SetSource(bl.index, bl.payload)
	case FieldTarget:
		if bl.payload != "" {
			return d.SetTarget(bl.index, bl.payload)
		}
	case FieldCandidate:
		if bl.payload != "" {
			typ, text := splitCandidate(bl.payload)
			b.Candidates = append(b.Candidates, Candidate{Type: typ, Text: text})
		}
	case FieldTerms:
		b.Terms = append(b.Terms, parseTerms(bl.payload)...)
	case FieldRefs:
		if bl.payload == "" || len(b.Refs) > 0 {
			return nil
		}
		refs, err := parseRefs(bl.payload)
		if err != nil {
			return err
		}
		sortRefs(refs)
		b.Refs = refs
	case FieldComment:
		b.AddComment(bl.payload)
	}
	return nil
}

// splitCandidate reads an optional leading "[TYPE]" tag.
func splitCandidate(payload string) (string, string) {
	if strings.HasPrefix(payload, "[") {
		if end := strings.Index(payload, "]"); end > 1 {
			return payload[1:end], strings.TrimPrefix(payload[end+1:], " ")
		}
	}
	return UnclassifiedType, payload
}

func parseTerms(payload string) []UsedTerm {
	var terms []UsedTerm
	for _, pair := range strings.Split(payload, listSep) {
		if pair == "" {
			continue
		}
		src, alts, _ := strings.Cut(pair, termSep)
		term := UsedTerm{Source: src, Targets: []string{}}
		if alts != "" {
			term.Targets = strings.Split(alts, altSep)
		}
		terms = append(terms, term)
	}
	return terms
}

func parseFileMarks(value string) ([]FileMark, error) {
	files := []FileMark{}
	for _, entry := range splitList(value, metaListSep) {
		idx, name, ok := strings.Cut(entry, fileIndexSep)
		n, err := strconv.Atoi(strings.TrimSpace(idx))
		if !ok || err != nil {
			return nil, fmt.Errorf("%w: file entry %q", ErrMalformedField, entry)
		}
		files = append(files, FileMark{Index: n, Name: name})
	}
	return files, nil
}

func parseInts(value string) ([]int, error) {
	out := []int{}
	for _, s := range splitList(value, metaListSep) {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%w: group %q", ErrMalformedField, s)
		}
		out = append(out, n)
	}
	return out, nil
}

func splitList(value, sep string) []string {
	if value == "" {
		return []string{}
	}
	return strings.Split(value, sep)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ParseReader parses a whole tovis text into d. A failing transform aborts
// the parse and leaves d unchanged; malformed fields are skipped and counted.
func (d *Document) ParseReader(r io.Reader) (*Result, error) {
	work := d.clone()
	p := NewParser(work)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if _, err := p.ParseLine(sc.Text()); err != nil {
			return fail(err)
		}
	}
	if err := sc.Err(); err != nil {
		return fail(fmt.Errorf("failed to read tovis text: %w", err))
	}

	d.commit(work)
	read, recognized := p.Lines()
	return succeed(fmt.Sprintf("tovis text parsed: %d of %d lines recognized, %d malformed fields",
		recognized, read, len(p.Malformed())))
}

// ParseText is ParseReader over a string.
func (d *Document) ParseText(text string) (*Result, error) {
	return d.ParseReader(strings.NewReader(text))
}
