// Package diffinfo describes the similarity feed consumed by tovis documents:
// an ordered list of segments, each carrying the similarities it has with the
// segments that came before it. Analyzer builds such a feed from two-column
// text using go-difflib's sequence matcher.
package diffinfo

import (
	"encoding/json"
	"fmt"
	"io"
)

// Opcode tags as produced by difflib-style sequence matchers.
const (
	TagEqual   = "equal"
	TagReplace = "replace"
	TagDelete  = "delete"
	TagInsert  = "insert"
)

// Opcode is one edit operation between a matched segment (a) and the current
// segment (b). On the wire it is a five element array: [tag, i1, i2, j1, j2].
type Opcode struct {
	Tag string
	I1  int
	I2  int
	J1  int
	J2  int
}

func (o Opcode) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{o.Tag, o.I1, o.I2, o.J1, o.J2})
}

func (o *Opcode) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("opcode: %w", err)
	}
	if len(raw) != 5 {
		return fmt.Errorf("opcode: expected 5 fields, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &o.Tag); err != nil {
		return fmt.Errorf("opcode tag: %w", err)
	}
	for i, dst := range []*int{&o.I1, &o.I2, &o.J1, &o.J2} {
		if err := json.Unmarshal(raw[i+1], dst); err != nil {
			return fmt.Errorf("opcode field %d: %w", i+1, err)
		}
	}
	return nil
}

// Similarity links a segment to an earlier one.
type Similarity struct {
	MatchedPID int      `json:"advPid"`
	Ratio      float64  `json:"ratio"`
	Opcodes    []Opcode `json:"opcode"`
}

// Segment is one aligned source/target pair of the feed.
type Segment struct {
	FileID  int          `json:"fid"`
	PID     int          `json:"pid"`
	GroupID int          `json:"gid"`
	Source  string       `json:"st"`
	Target  string       `json:"tt"`
	Sims    []Similarity `json:"sims"`
}

// Feed is the full similarity feed. Files is indexed by Segment.FileID.
type Feed struct {
	Files    []string  `json:"files"`
	Segments []Segment `json:"dsegs"`
}

// FileName returns the name registered for fid.
func (f *Feed) FileName(fid int) (string, bool) {
	if fid < 0 || fid >= len(f.Files) {
		return "", false
	}
	return f.Files[fid], true
}

// Decode reads a JSON encoded feed.
func Decode(r io.Reader) (*Feed, error) {
	var feed Feed
	if err := json.NewDecoder(r).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode diff feed: %w", err)
	}
	return &feed, nil
}
