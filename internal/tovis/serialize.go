package tovis

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const metaSeparator = "-----"

// Dump renders d in the tovis line format. Parsing the output into an empty
// document reproduces d.
func (d *Document) Dump() []string {
	m := d.Meta
	out := []string{
		metaLine(keySourceLang, m.SourceLang),
		metaLine(keyTargetLang, m.TargetLang),
		metaLine(keyFiles, joinFileMarks(m.Files)),
		metaLine(keyTags, strings.Join(m.Tags, metaListSep)),
		metaLine(keyGroups, joinInts(m.Groups)),
	}
	if m.Remarks != "" {
		out = append(out, metaLine(keyRemarks, m.Remarks))
	}
	out = append(out, metaSeparator, "")

	for i, b := range d.Blocks {
		out = append(out,
			blockText(FieldSource, i, b.Source),
			blockText(FieldTarget, i, b.Target),
		)
		for _, c := range b.Candidates {
			out = append(out, fmt.Sprintf("%c:%d}[%s] %s", fieldMarkers[FieldCandidate], i, c.Type, c.Text))
		}
		if len(b.Terms) > 0 {
			out = append(out, blockText(FieldTerms, i, formatTerms(b.Terms)))
		}
		out = append(out,
			blockText(FieldRefs, i, formatRefs(b.Refs)),
			blockText(FieldComment, i, b.Comment),
			"",
		)
	}
	return out
}

// String joins Dump with newlines.
func (d *Document) String() string {
	return strings.Join(d.Dump(), "\n")
}

func metaLine(key, value string) string {
	return "#" + key + ": " + value
}

func blockText(f Field, i int, payload string) string {
	return fmt.Sprintf("%c:%d} %s", fieldMarkers[f], i, payload)
}

func joinFileMarks(files []FileMark) string {
	parts := make([]string, len(files))
	for i, f := range files {
		parts[i] = f.String()
	}
	return strings.Join(parts, metaListSep)
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, metaListSep)
}

func formatTerms(terms []UsedTerm) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.Source + termSep + strings.Join(t.Targets, altSep)
	}
	return strings.Join(parts, listSep)
}

func formatRefs(refs []Ref) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d>%d|%s", r.From, r.To, strconv.FormatFloat(r.Ratio, 'f', -1, 64))
		for _, op := range r.Ops {
			fmt.Fprintf(&sb, "|%s,%d,%d,%d,%d", op.Kind, op.SourceStart, op.SourceEnd, op.TargetStart, op.TargetEnd)
		}
		parts[i] = sb.String()
	}
	return strings.Join(parts, listSep)
}

// Snapshot is a detached copy of a document for structured encoders.
type Snapshot struct {
	Meta   Meta    `json:"meta" yaml:"meta"`
	Blocks []Block `json:"blocks" yaml:"blocks"`
}

// DumpStructured returns a deep copy of d. Mutating it does not affect d.
func (d *Document) DumpStructured() Snapshot {
	c := d.clone()
	s := Snapshot{Meta: c.Meta, Blocks: make([]Block, len(c.Blocks))}
	for i, b := range c.Blocks {
		s.Blocks[i] = *b
	}
	return s
}

// JSON encodes the snapshot as indented JSON.
func (s Snapshot) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot as JSON: %w", err)
	}
	return data, nil
}

// YAML encodes the snapshot as YAML.
func (s Snapshot) YAML() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot as YAML: %w", err)
	}
	return data, nil
}

// CompactMode selects a DumpCompact layout.
type CompactMode string

const (
	// CompactCheckDupli lists every source with a marker of its best match.
	CompactCheckDupli CompactMode = "CHECK-DUPLI"
	// CompactBilingual is reserved; only the header is produced.
	CompactBilingual CompactMode = "BILINGUAL"
)

// ParseCompactMode validates a compact mode name.
func ParseCompactMode(s string) (CompactMode, error) {
	switch m := CompactMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case CompactCheckDupli, CompactBilingual:
		return m, nil
	}
	return "", fmt.Errorf("%w: compact mode %q (want %s or %s)", ErrUnknownFormat, s, CompactCheckDupli, CompactBilingual)
}

// DumpCompact renders the minified review view. In CHECK-DUPLI mode every
// block yields one "<marker>\t<source>" line, where the marker is "_000"
// without refs, "<RRR" when the block is the earlier side of its best match
// and ">RRR" otherwise. File boundaries are interleaved as "@idx\tname".
func (d *Document) DumpCompact(mode CompactMode) ([]string, error) {
	if mode != CompactCheckDupli && mode != CompactBilingual {
		return nil, fmt.Errorf("%w: compact mode %q", ErrUnknownFormat, mode)
	}
	out := []string{"MIN-TYPE: " + string(mode), joinFileMarks(d.Meta.Files)}
	if mode == CompactBilingual {
		return out, nil
	}
	if len(d.Meta.Files) == 0 {
		return append(out, "No files included."), nil
	}

	files := append([]FileMark{}, d.Meta.Files...)
	sort.SliceStable(files, func(i, j int) bool { return files[i].Index < files[j].Index })

	next := 0
	for i, b := range d.Blocks {
		for ; next < len(files) && files[next].Index <= i; next++ {
			out = append(out, fileBoundary(files[next]))
		}
		out = append(out, duplicateMarker(i, b)+"\t"+b.Source)
	}
	for ; next < len(files); next++ {
		out = append(out, fileBoundary(files[next]))
	}
	return out, nil
}

func fileBoundary(f FileMark) string {
	return fmt.Sprintf("@%d\t%s", f.Index, f.Name)
}

func duplicateMarker(i int, b *Block) string {
	if len(b.Refs) == 0 {
		return "_000"
	}
	top := b.Refs[0]
	ratio := fmt.Sprintf("%03d", int(math.Round(top.Ratio)))
	ratio = ratio[len(ratio)-3:]
	if top.From == i {
		return "<" + ratio
	}
	return ">" + ratio
}
