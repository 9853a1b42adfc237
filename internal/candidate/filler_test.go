package candidate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valpere/tovis/internal/plugin"
	"github.com/valpere/tovis/internal/tovis"
	"github.com/valpere/tovis/internal/translator"
)

type mockService struct {
	nameVal       string
	translateFunc func(ctx context.Context, req translator.Request) (*translator.Result, error)
	callCount     atomic.Int32
}

func (m *mockService) Name() string { return m.nameVal }

func (m *mockService) Translate(ctx context.Context, req translator.Request) (*translator.Result, error) {
	m.callCount.Add(1)
	if m.translateFunc != nil {
		return m.translateFunc(ctx, req)
	}
	return &translator.Result{Service: m.nameVal, Text: m.nameVal + ":" + req.Text}, nil
}

func (m *mockService) IsAvailable(ctx context.Context) error { return nil }

type mockValidator struct{ reject string }

func (v mockValidator) IsValid(text, targetLang string) (bool, error) {
	if text == v.reject {
		return false, fmt.Errorf("wrong language")
	}
	return true, nil
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string]string
}

func (c *memoryCache) key(service, src, sl, tl string) string {
	return service + "|" + src + "|" + sl + "|" + tl
}

func (c *memoryCache) GetCachedCandidate(_ context.Context, service, src, sl, tl string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.items[c.key(service, src, sl, tl)]
	return text, ok, nil
}

func (c *memoryCache) SaveCandidate(_ context.Context, service, src, sl, tl, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]string)
	}
	c.items[c.key(service, src, sl, tl)] = text
	return nil
}

func newDocument(t *testing.T, opts ...tovis.Option) *tovis.Document {
	t.Helper()
	doc := tovis.New(opts...)
	text := "#SourceLang: en\n#TargetLang: uk\n@:0} Hello\n@:1} Done\nλ:1} Готово\n@:2} Bye\n"
	if _, err := doc.ParseText(text); err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	doc.EnsureLength(4)
	return doc
}

func TestFiller_Fill(t *testing.T) {
	a := &mockService{nameVal: "a"}
	b := &mockService{nameVal: "b", translateFunc: func(ctx context.Context, req translator.Request) (*translator.Result, error) {
		time.Sleep(10 * time.Millisecond)
		return &translator.Result{Text: "b:" + req.Text}, nil
	}}
	doc := newDocument(t)

	report, err := New([]translator.Service{a, b}, Config{Timeout: time.Second}).Fill(context.Background(), doc, FillOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Blocks != 2 || report.Added != 4 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}

	got := doc.Blocks[0].Candidates
	want := []tovis.Candidate{{Type: "a", Text: "a:Hello"}, {Type: "b", Text: "b:Hello"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected %v in service order, got %v", want, got)
	}
	if len(doc.Blocks[1].Candidates) != 0 {
		t.Error("expected translated block to be skipped")
	}
	if len(doc.Blocks[3].Candidates) != 0 {
		t.Error("expected empty block to be skipped")
	}
}

func TestFiller_Fill_All(t *testing.T) {
	a := &mockService{nameVal: "a"}
	doc := newDocument(t)

	report, err := New([]translator.Service{a}, Config{}).Fill(context.Background(), doc, FillOptions{All: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Blocks != 3 {
		t.Errorf("expected 3 blocks, got %d", report.Blocks)
	}
}

func TestFiller_Fill_FailuresAreCounted(t *testing.T) {
	ok := &mockService{nameVal: "ok"}
	failing := &mockService{nameVal: "failing", translateFunc: func(ctx context.Context, req translator.Request) (*translator.Result, error) {
		return nil, errors.New("service unavailable")
	}}
	empty := &mockService{nameVal: "empty", translateFunc: func(ctx context.Context, req translator.Request) (*translator.Result, error) {
		return &translator.Result{}, nil
	}}
	doc := newDocument(t)

	report, err := New([]translator.Service{ok, failing, empty}, Config{}).Fill(context.Background(), doc, FillOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Added != 2 || report.Failed != 4 || len(report.Errors) != 4 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestFiller_Fill_Timeout(t *testing.T) {
	slow := &mockService{nameVal: "slow", translateFunc: func(ctx context.Context, req translator.Request) (*translator.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	doc := newDocument(t)

	report, err := New([]translator.Service{slow}, Config{Timeout: 20 * time.Millisecond}).Fill(context.Background(), doc, FillOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed != 2 || !errors.Is(report.Errors[0], context.DeadlineExceeded) {
		t.Errorf("expected deadline failures, got %+v", report)
	}
}

func TestFiller_Fill_Validator(t *testing.T) {
	a := &mockService{nameVal: "a"}
	doc := newDocument(t)

	f := New([]translator.Service{a}, Config{}, WithValidator(mockValidator{reject: "a:Bye"}))
	report, err := f.Fill(context.Background(), doc, FillOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Added != 1 || report.Rejected != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(doc.Blocks[2].Candidates) != 0 {
		t.Error("expected rejected candidate to be dropped")
	}
}

func TestFiller_Fill_Cache(t *testing.T) {
	a := &mockService{nameVal: "a"}
	cache := &memoryCache{}
	f := New([]translator.Service{a}, Config{}, WithCache(cache))

	if _, err := f.Fill(context.Background(), newDocument(t), FillOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	report, err := f.Fill(context.Background(), newDocument(t), FillOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := a.callCount.Load(); got != 2 {
		t.Errorf("expected 2 service calls, got %d", got)
	}
	if report.Cached != 2 {
		t.Errorf("expected 2 cached candidates, got %d", report.Cached)
	}
}

func TestFiller_Fill_GlossaryHints(t *testing.T) {
	var hints map[string][]string
	a := &mockService{nameVal: "a", translateFunc: func(ctx context.Context, req translator.Request) (*translator.Result, error) {
		if req.Text == "Hello" {
			hints = req.Glossary
		}
		return &translator.Result{Text: "x"}, nil
	}}
	doc := newDocument(t)
	doc.AnnotateTerms(map[string][]string{"Hello": {"Привіт"}})

	if _, err := New([]translator.Service{a}, Config{}).Fill(context.Background(), doc, FillOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hints["Hello"]) != 1 || hints["Hello"][0] != "Привіт" {
		t.Errorf("expected glossary hint, got %v", hints)
	}
}

func TestFiller_Fill_PluginFailureAborts(t *testing.T) {
	p := plugin.NewPipeline(plugin.Registry{
		"boom": {Name: "boom", Triggers: []plugin.Trigger{plugin.OnSetMT}, Func: func(string, string) (string, error) {
			return "", errors.New("boom")
		}},
	})
	if err := p.Register("boom", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	doc := newDocument(t, tovis.WithPlugins(p))

	_, err := New([]translator.Service{&mockService{nameVal: "a"}}, Config{}).Fill(context.Background(), doc, FillOptions{})
	if !errors.Is(err, plugin.ErrTransform) {
		t.Errorf("expected ErrTransform, got %v", err)
	}
}

func TestFiller_Fill_Preconditions(t *testing.T) {
	doc := tovis.New()

	if _, err := New(nil, Config{}).Fill(context.Background(), doc, FillOptions{}); err == nil {
		t.Error("expected error without services")
	}
	if _, err := New([]translator.Service{&mockService{nameVal: "a"}}, Config{}).Fill(context.Background(), doc, FillOptions{}); err == nil {
		t.Error("expected error without target language")
	}
}
