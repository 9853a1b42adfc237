package tovis

import (
	"context"
	"fmt"
	"strings"

	"github.com/valpere/tovis/internal/diffinfo"
	"github.com/valpere/tovis/internal/plugin"
)

// Format is a persisted input kind accepted by Load.
type Format string

const (
	FormatTovis Format = "tovis"
	FormatDiff  Format = "diff"
	FormatPlain Format = "plain"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTovis, FormatDiff, FormatPlain:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q (want tovis, diff or plain)", ErrUnknownFormat, s)
}

// RoleSource is the raw content role holding the source document.
const RoleSource = "src"

// RawProvider supplies raw document text per role.
type RawProvider interface {
	// RawContent returns the raw text for role, if any.
	RawContent(role string) (string, bool)
	// SingleText returns the plain-text lines for role.
	SingleText(ctx context.Context, role string) ([]string, error)
}

// Analyzer turns raw text into a similarity feed.
type Analyzer interface {
	Analyze(text string) (*diffinfo.Feed, error)
}

// Ingest adds one block per feed segment and links similar blocks in both
// directions. Any inconsistency in the feed, or a failing source transform,
// aborts the whole ingestion and leaves d unchanged.
func (d *Document) Ingest(feed *diffinfo.Feed) (*Result, error) {
	if feed == nil {
		return fail(fmt.Errorf("%w: nil diff feed", ErrMissingInput))
	}
	work := d.clone()
	if err := work.ingest(feed); err != nil {
		return fail(err)
	}
	d.commit(work)
	return succeed(fmt.Sprintf("diff feed ingested: %d segments, %d blocks", len(feed.Segments), d.Len()))
}

func (d *Document) ingest(feed *diffinfo.Feed) error {
	prevFile, prevGroup := -1, -1

	for n, seg := range feed.Segments {
		idx := d.Len()
		if seg.PID != idx {
			return fmt.Errorf("%w: segment %d has pid %d, expected %d", ErrInconsistentFeed, n, seg.PID, idx)
		}

		if seg.FileID != prevFile {
			name, ok := feed.FileName(seg.FileID)
			if !ok {
				return fmt.Errorf("%w: segment %d refers to unknown file id %d", ErrInconsistentFeed, n, seg.FileID)
			}
			d.Meta.Files = append(d.Meta.Files, FileMark{Index: idx, Name: name})
			prevFile = seg.FileID
		}
		if seg.GroupID != prevGroup {
			d.Meta.Groups = append(d.Meta.Groups, idx)
			prevGroup = seg.GroupID
		}

		b := NewBlock()
		src, err := d.plugins.Apply(plugin.OnSetSource, seg.Source)
		if err != nil {
			return fmt.Errorf("segment %d: %w", n, err)
		}
		b.Source = src
		b.Target = seg.Target

		for _, sim := range seg.Sims {
			if sim.MatchedPID < 0 || sim.MatchedPID >= idx {
				return fmt.Errorf("%w: segment %d matches pid %d, only %d blocks exist", ErrInconsistentFeed, n, sim.MatchedPID, idx)
			}
			ops, err := compactOps(sim.Opcodes)
			if err != nil {
				return fmt.Errorf("%w: segment %d: %v", ErrInconsistentFeed, n, err)
			}
			ref := Ref{From: sim.MatchedPID, To: idx, Ratio: sim.Ratio, Ops: ops}
			b.AddRef(ref)

			ref.Ops = append([]EditSpan{}, ops...)
			d.Blocks[sim.MatchedPID].AddRef(ref)
		}
		d.Append(b)
	}
	return nil
}

// compactOps drops equal spans and re-tags the rest with compact symbols.
func compactOps(codes []diffinfo.Opcode) ([]EditSpan, error) {
	ops := make([]EditSpan, 0, len(codes))
	for _, c := range codes {
		kind, err := ParseOpKind(c.Tag)
		if err != nil {
			return nil, err
		}
		if kind == OpEqual {
			continue
		}
		ops = append(ops, EditSpan{Kind: kind, SourceStart: c.I1, SourceEnd: c.I2, TargetStart: c.J1, TargetEnd: c.J2})
	}
	return ops, nil
}

// IngestPlain reads two-column "source\ttarget" lines. A line starting with
// diffinfo.FileMarker opens a file (markers ending in diffinfo.EOFSuffix are
// ignored), one starting with diffinfo.GroupMarker opens a group. Boundaries
// are recorded at the current block count. Blank lines are skipped.
func (d *Document) IngestPlain(lines []string) (*Result, error) {
	work := d.clone()
	added := 0

	for n, line := range lines {
		line = strings.TrimRight(line, "\r")
		source, target, _ := strings.Cut(line, "\t")

		switch {
		case strings.HasPrefix(source, diffinfo.FileMarker):
			if !strings.HasSuffix(source, diffinfo.EOFSuffix) {
				name := strings.TrimPrefix(source, diffinfo.FileMarker)
				work.Meta.Files = append(work.Meta.Files, FileMark{Index: work.Len(), Name: name})
			}
		case strings.HasPrefix(line, diffinfo.GroupMarker):
			work.Meta.Groups = append(work.Meta.Groups, work.Len())
		case strings.TrimSpace(line) == "":
		default:
			idx := work.Append(NewBlock())
			if err := work.SetSource(idx, source); err != nil {
				return fail(fmt.Errorf("line %d: %w", n+1, err))
			}
			work.Blocks[idx].Target = target
			added++
		}
	}

	d.commit(work)
	return succeed(fmt.Sprintf("plain text ingested: %d blocks", added))
}

// Load fills d from persisted data of the given kind.
func (d *Document) Load(data string, kind Format) (*Result, error) {
	switch kind {
	case FormatTovis:
		return d.ParseText(data)
	case FormatDiff:
		feed, err := diffinfo.Decode(strings.NewReader(data))
		if err != nil {
			return fail(err)
		}
		return d.Ingest(feed)
	case FormatPlain:
		return d.IngestPlain(strings.Split(data, "\n"))
	}
	return fail(fmt.Errorf("%w: %q (want tovis, diff or plain)", ErrUnknownFormat, kind))
}

// LoadExtract fills d from an extraction context. With toDiff the raw source
// text is analysed for similarities first; otherwise its plain-text lines are
// ingested as two-column input.
func (d *Document) LoadExtract(ctx context.Context, provider RawProvider, analyzer Analyzer, toDiff bool) (*Result, error) {
	if !toDiff {
		lines, err := provider.SingleText(ctx, RoleSource)
		if err != nil {
			return fail(fmt.Errorf("failed to read %q lines: %w", RoleSource, err))
		}
		return d.IngestPlain(lines)
	}

	raw, ok := provider.RawContent(RoleSource)
	if !ok {
		return fail(fmt.Errorf("%w: no raw content for role %q", ErrMissingInput, RoleSource))
	}
	feed, err := analyzer.Analyze(raw)
	if err != nil {
		return fail(fmt.Errorf("failed to analyze %q: %w", RoleSource, err))
	}
	return d.Ingest(feed)
}
