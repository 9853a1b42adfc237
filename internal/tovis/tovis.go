// Package tovis holds a segment-aligned bilingual translation record: an
// ordered list of blocks (source segment, confirmed translation, candidates,
// glossary hits, similarity references, comments) plus document metadata.
//
// A Document is filled either from a similarity feed (Ingest), from
// two-column text (IngestPlain) or from its own line format (Parser), and is
// rendered back with Dump, DumpStructured and DumpCompact.
//
// Blocks are identified by their position. Every Ref stores positions, so
// blocks must never be reordered once created. A Document is a single-writer
// structure; callers serialise access.
package tovis

import (
	"fmt"
	"sort"

	"github.com/valpere/tovis/internal/plugin"
)

// OpKind is the compact symbol of an edit span.
type OpKind string

const (
	OpReplace OpKind = "~"
	OpDelete  OpKind = "-"
	OpInsert  OpKind = "+"
	OpEqual   OpKind = "="
)

// ParseOpKind accepts both difflib tag names and compact symbols.
func ParseOpKind(s string) (OpKind, error) {
	switch s {
	case "replace", "~":
		return OpReplace, nil
	case "delete", "-":
		return OpDelete, nil
	case "insert", "+":
		return OpInsert, nil
	case "equal", "=":
		return OpEqual, nil
	}
	return "", fmt.Errorf("unknown edit kind %q", s)
}

// EditSpan is one edit between two segment revisions.
type EditSpan struct {
	Kind        OpKind `json:"kind" yaml:"kind"`
	SourceStart int    `json:"sourceStart" yaml:"sourceStart"`
	SourceEnd   int    `json:"sourceEnd" yaml:"sourceEnd"`
	TargetStart int    `json:"targetStart" yaml:"targetStart"`
	TargetEnd   int    `json:"targetEnd" yaml:"targetEnd"`
}

// Ref is a directed similarity link between two blocks.
type Ref struct {
	From  int        `json:"from" yaml:"from"`
	To    int        `json:"to" yaml:"to"`
	Ratio float64    `json:"ratio" yaml:"ratio"`
	Ops   []EditSpan `json:"ops" yaml:"ops"`
}

// UnclassifiedType is the candidate type used when none is given.
const UnclassifiedType = "Hm?"

// Candidate is an unconfirmed translation.
type Candidate struct {
	Type string `json:"type" yaml:"type"`
	Text string `json:"text" yaml:"text"`
}

// UsedTerm is a glossary hit: one source term and its target renderings.
type UsedTerm struct {
	Source  string   `json:"source" yaml:"source"`
	Targets []string `json:"targets" yaml:"targets"`
}

// Block is one aligned segment.
type Block struct {
	Source     string      `json:"source" yaml:"source"`
	Target     string      `json:"target" yaml:"target"`
	Candidates []Candidate `json:"candidates" yaml:"candidates"`
	Terms      []UsedTerm  `json:"usedTerms" yaml:"usedTerms"`
	Refs       []Ref       `json:"refs" yaml:"refs"`
	Comment    string      `json:"comment" yaml:"comment"`
}

// NewBlock returns a block with every field empty.
func NewBlock() *Block {
	return &Block{
		Candidates: []Candidate{},
		Terms:      []UsedTerm{},
		Refs:       []Ref{},
	}
}

// AddRef appends r and restores descending ratio order. Equal ratios keep
// insertion order.
func (b *Block) AddRef(r Ref) {
	b.Refs = append(b.Refs, r)
	sortRefs(b.Refs)
}

func sortRefs(refs []Ref) {
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Ratio > refs[j].Ratio })
}

// AddComment appends text to the comment, ';'-joined. Empty text is a no-op.
func (b *Block) AddComment(text string) {
	b.Comment = joinNote(b.Comment, text)
}

func joinNote(acc, text string) string {
	switch {
	case text == "":
		return acc
	case acc == "":
		return text
	}
	return acc + ";" + text
}

func (b *Block) clone() *Block {
	c := &Block{
		Source:     b.Source,
		Target:     b.Target,
		Candidates: append([]Candidate{}, b.Candidates...),
		Terms:      make([]UsedTerm, len(b.Terms)),
		Refs:       make([]Ref, len(b.Refs)),
		Comment:    b.Comment,
	}
	for i, t := range b.Terms {
		c.Terms[i] = UsedTerm{Source: t.Source, Targets: append([]string{}, t.Targets...)}
	}
	for i, r := range b.Refs {
		r.Ops = append([]EditSpan{}, r.Ops...)
		c.Refs[i] = r
	}
	return c
}

// FileMark records that the file Name starts at block Index.
type FileMark struct {
	Index int    `json:"index" yaml:"index"`
	Name  string `json:"name" yaml:"name"`
}

func (f FileMark) String() string {
	return fmt.Sprintf("%d:%s", f.Index, f.Name)
}

// Meta is document-level metadata. Files and Groups hold boundary positions.
type Meta struct {
	SourceLang string     `json:"sourceLang" yaml:"sourceLang"`
	TargetLang string     `json:"targetLang" yaml:"targetLang"`
	Files      []FileMark `json:"files" yaml:"files"`
	Tags       []string   `json:"tags" yaml:"tags"`
	Groups     []int      `json:"groups" yaml:"groups"`
	Remarks    string     `json:"remarks" yaml:"remarks"`
}

// AddRemark appends text to the remarks, ';'-joined.
func (m *Meta) AddRemark(text string) {
	m.Remarks = joinNote(m.Remarks, text)
}

func (m Meta) clone() Meta {
	m.Files = append([]FileMark{}, m.Files...)
	m.Tags = append([]string{}, m.Tags...)
	m.Groups = append([]int{}, m.Groups...)
	return m
}

// Document is the block store plus metadata.
type Document struct {
	Meta   Meta
	Blocks []*Block

	plugins *plugin.Pipeline
}

// Option configures a Document.
type Option func(*Document)

// WithPlugins sets the transform pipeline used at the source and MT points.
func WithPlugins(p *plugin.Pipeline) Option {
	return func(d *Document) { d.plugins = p }
}

// New returns an empty document.
func New(opts ...Option) *Document {
	d := &Document{
		Meta: Meta{
			Files:  []FileMark{},
			Tags:   []string{},
			Groups: []int{},
		},
		Blocks: []*Block{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Len returns the number of blocks.
func (d *Document) Len() int { return len(d.Blocks) }

// Append adds b at the end of the sequence and returns its index.
func (d *Document) Append(b *Block) int {
	d.Blocks = append(d.Blocks, b)
	return len(d.Blocks) - 1
}

// EnsureLength pads the sequence with empty blocks up to n. It never shrinks.
func (d *Document) EnsureLength(n int) {
	for len(d.Blocks) < n {
		d.Blocks = append(d.Blocks, NewBlock())
	}
}

// Block returns the block at i.
func (d *Document) Block(i int) (*Block, bool) {
	if i < 0 || i >= len(d.Blocks) {
		return nil, false
	}
	return d.Blocks[i], true
}

// SetBlock replaces the block at i.
func (d *Document) SetBlock(i int, b *Block) error {
	if i < 0 || i >= len(d.Blocks) {
		return fmt.Errorf("block %d out of range [0,%d)", i, len(d.Blocks))
	}
	d.Blocks[i] = b
	return nil
}

// SetSource writes the source of block i through the onSetSource transforms.
// A block whose source is already set is left alone, as is an empty text.
func (d *Document) SetSource(i int, text string) error {
	b, ok := d.Block(i)
	if !ok {
		return fmt.Errorf("block %d out of range [0,%d)", i, len(d.Blocks))
	}
	if text == "" || b.Source != "" {
		return nil
	}
	s, err := d.plugins.Apply(plugin.OnSetSource, text)
	if err != nil {
		return err
	}
	b.Source = s
	return nil
}

// SetTarget writes the confirmed translation of block i once.
func (d *Document) SetTarget(i int, text string) error {
	b, ok := d.Block(i)
	if !ok {
		return fmt.Errorf("block %d out of range [0,%d)", i, len(d.Blocks))
	}
	if b.Target == "" {
		b.Target = text
	}
	return nil
}

// AddCandidate appends a machine translation candidate to block i, passing
// text through the onSetMT transforms.
func (d *Document) AddCandidate(i int, typ, text string) error {
	b, ok := d.Block(i)
	if !ok {
		return fmt.Errorf("block %d out of range [0,%d)", i, len(d.Blocks))
	}
	t, err := d.plugins.Apply(plugin.OnSetMT, text)
	if err != nil {
		return err
	}
	if typ == "" {
		typ = UnclassifiedType
	}
	b.Candidates = append(b.Candidates, Candidate{Type: typ, Text: t})
	return nil
}

// SetComment appends to the comment of block i.
func (d *Document) SetComment(i int, text string) error {
	b, ok := d.Block(i)
	if !ok {
		return fmt.Errorf("block %d out of range [0,%d)", i, len(d.Blocks))
	}
	b.AddComment(text)
	return nil
}

// clone returns a deep copy sharing the plugin pipeline. Mutating entry points
// work on a clone and commit it only on success.
func (d *Document) clone() *Document {
	c := &Document{
		Meta:    d.Meta.clone(),
		Blocks:  make([]*Block, len(d.Blocks)),
		plugins: d.plugins,
	}
	for i, b := range d.Blocks {
		c.Blocks[i] = b.clone()
	}
	return c
}

func (d *Document) commit(work *Document) {
	d.Meta = work.Meta
	d.Blocks = work.Blocks
}
