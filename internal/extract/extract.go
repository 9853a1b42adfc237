// Package extract holds the raw documents a tovis document is built from,
// keyed by role, and turns them into plain-text segments.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// ErrNoContent is returned when a role has no raw document.
var ErrNoContent = errors.New("no content for role")

// Kind is the markup of a raw document.
type Kind int

const (
	KindText Kind = iota
	KindMarkdown
)

// KindOf guesses the markup from a file name.
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return KindMarkdown
	}
	return KindText
}

type raw struct {
	content string
	kind    Kind
}

// Context is a set of raw documents. It is safe for concurrent use.
type Context struct {
	mu    sync.RWMutex
	roles map[string]raw
}

// New returns an empty context.
func New() *Context {
	return &Context{roles: make(map[string]raw)}
}

// SetRaw stores content for role, replacing any previous document.
func (c *Context) SetRaw(role, content string, kind Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[role] = raw{content: content, kind: kind}
}

// LoadFile reads path into role. Markdown is detected by extension.
func (c *Context) LoadFile(role, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	c.SetRaw(role, string(data), KindOf(path))
	return nil
}

// RawContent returns the document for role as line-oriented text. Markdown
// is flattened to one segment per line.
func (c *Context) RawContent(role string) (string, bool) {
	c.mu.RLock()
	r, ok := c.roles[role]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if r.kind == KindMarkdown {
		return strings.Join(Segments([]byte(r.content)), "\n"), true
	}
	return r.content, true
}

// SingleText returns the non-empty lines (or markdown segments) for role.
func (c *Context) SingleText(ctx context.Context, role string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, ok := c.RawContent(role)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, role)
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Segments returns the translatable text of a markdown document: one entry
// per heading, paragraph and table cell, with inline markup removed and
// whitespace collapsed. Code blocks and raw HTML are skipped.
func Segments(md []byte) []string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse(append([]byte(nil), md...))

	var (
		segments []string
		buf      strings.Builder
		depth    int
	)
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.TableCell:
			if entering {
				depth++
				return ast.GoToNext
			}
			depth--
			if depth == 0 {
				if s := strings.Join(strings.Fields(buf.String()), " "); s != "" {
					segments = append(segments, s)
				}
				buf.Reset()
			}
		case *ast.Text:
			if depth > 0 {
				buf.Write(n.Literal)
			}
		case *ast.Code:
			if depth > 0 {
				buf.Write(n.Literal)
			}
		case *ast.Softbreak, *ast.Hardbreak:
			buf.WriteByte(' ')
		case *ast.CodeBlock, *ast.HTMLBlock, *ast.HTMLSpan:
			return ast.SkipChildren
		}
		return ast.GoToNext
	})
	return segments
}
