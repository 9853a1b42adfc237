package diffinfo

import (
	"math"
	"sort"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// Markers recognised in two-column input.
const (
	FileMarker  = "_@@_"
	GroupMarker = "_@λ_"
	EOFSuffix   = "EOF"
)

const (
	// DefaultThreshold is the minimum similarity (0-100) kept in a feed.
	DefaultThreshold = 50
	// DefaultMaxMatches bounds how many earlier segments a segment links to.
	DefaultMaxMatches = 5
)

// Options controls Analyzer behaviour.
type Options struct {
	// Threshold is the minimum ratio (0-100). 0 means DefaultThreshold.
	Threshold float64
	// MaxMatches keeps the best N similarities per segment. 0 means DefaultMaxMatches.
	MaxMatches int
}

// Analyzer computes a similarity feed from two-column text. Every segment is
// compared rune by rune against all earlier segments.
type Analyzer struct {
	threshold  float64
	maxMatches int
}

func NewAnalyzer(opts Options) *Analyzer {
	a := &Analyzer{threshold: opts.Threshold, maxMatches: opts.MaxMatches}
	if a.threshold <= 0 {
		a.threshold = DefaultThreshold
	}
	if a.maxMatches <= 0 {
		a.maxMatches = DefaultMaxMatches
	}
	return a
}

// Analyze splits text into lines and builds the feed. A line starting with
// FileMarker opens a new file (unless it ends with EOFSuffix), GroupMarker
// opens a new group, blank lines are skipped and every other line is a
// "source\ttarget" segment.
func (a *Analyzer) Analyze(text string) (*Feed, error) {
	feed := &Feed{}
	fid, gid := 0, 0
	var seqs [][]string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, FileMarker):
			if strings.HasSuffix(line, EOFSuffix) {
				continue
			}
			feed.Files = append(feed.Files, strings.TrimPrefix(line, FileMarker))
			fid = len(feed.Files) - 1
			continue
		case strings.HasPrefix(line, GroupMarker):
			gid++
			continue
		case strings.TrimSpace(line) == "":
			continue
		}

		source, target, _ := strings.Cut(line, "\t")
		seq := runes(source)
		seg := Segment{
			FileID:  fid,
			PID:     len(feed.Segments),
			GroupID: gid,
			Source:  source,
			Target:  target,
			Sims:    a.similarities(seqs, seq),
		}
		if len(feed.Files) == 0 {
			feed.Files = append(feed.Files, "")
		}
		seqs = append(seqs, seq)
		feed.Segments = append(feed.Segments, seg)
	}
	return feed, nil
}

func (a *Analyzer) similarities(earlier [][]string, seq []string) []Similarity {
	var sims []Similarity
	for pid, prev := range earlier {
		m := difflib.NewMatcher(prev, seq)
		if m.QuickRatio()*100 < a.threshold {
			continue
		}
		ratio := math.Round(m.Ratio() * 100)
		if ratio < a.threshold {
			continue
		}
		sims = append(sims, Similarity{
			MatchedPID: pid,
			Ratio:      ratio,
			Opcodes:    convertOpcodes(m.GetOpCodes()),
		})
	}
	sort.SliceStable(sims, func(i, j int) bool { return sims[i].Ratio > sims[j].Ratio })
	if len(sims) > a.maxMatches {
		sims = sims[:a.maxMatches]
	}
	return sims
}

func convertOpcodes(codes []difflib.OpCode) []Opcode {
	out := make([]Opcode, 0, len(codes))
	for _, c := range codes {
		out = append(out, Opcode{Tag: tagName(c.Tag), I1: c.I1, I2: c.I2, J1: c.J1, J2: c.J2})
	}
	return out
}

func tagName(tag byte) string {
	switch tag {
	case 'r':
		return TagReplace
	case 'd':
		return TagDelete
	case 'i':
		return TagInsert
	default:
		return TagEqual
	}
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
