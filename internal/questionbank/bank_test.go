package questionbank

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/edaccel/readtutor/internal/llm"
	"github.com/edaccel/readtutor/internal/model"
	"github.com/edaccel/readtutor/internal/passage"
)

// fakeGateway returns a scripted reply or error.
type fakeGateway struct {
	reply string
	err   error
	calls int
}

func (f *fakeGateway) Complete(_ context.Context, _ string, _ []llm.Message) (string, error) {
	f.calls++
	return f.reply, f.err
}

func TestDefaultBank(t *testing.T) {
	b := Default()
	for _, d := range model.Difficulties {
		pool := b.Pool(d)
		if len(pool) != 5 {
			t.Errorf("default %s pool has %d questions, want 5", d, len(pool))
		}
		for _, q := range pool {
			if q.Question == "" || q.Answer == "" {
				t.Errorf("default %s pool contains incomplete question: %+v", d, q)
			}
		}
	}
}

func TestBankAccessors(t *testing.T) {
	b := New(
		[]model.PoolQuestion{{Question: "e1", Answer: "a1"}},
		[]model.PoolQuestion{{Question: "m1", Answer: "a2"}},
		nil,
	)

	if b.Empty() {
		t.Error("bank with questions should not be empty")
	}

	first, ok := b.First(model.DifficultyEasy)
	if !ok || first.Question != "e1" {
		t.Errorf("First(easy) = %+v, %v", first, ok)
	}
	if _, ok := b.First(model.DifficultyHard); ok {
		t.Error("First(hard) on empty pool should report false")
	}

	texts := b.QuestionTexts()
	if len(texts[model.DifficultyMedium]) != 1 || texts[model.DifficultyMedium][0] != "m1" {
		t.Errorf("QuestionTexts medium = %v", texts[model.DifficultyMedium])
	}

	// Pool returns a copy; mutating it must not affect the bank.
	pool := b.Pool(model.DifficultyEasy)
	pool[0].Question = "mutated"
	if q, _ := b.First(model.DifficultyEasy); q.Question != "e1" {
		t.Error("Pool should return a copy")
	}
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.json")
	b := New(
		[]model.PoolQuestion{{Question: "e1", Answer: "a1", Explanation: "x1"}},
		[]model.PoolQuestion{{Question: "m1", Answer: "a2", Explanation: "x2"}},
		[]model.PoolQuestion{{Question: "h1", Answer: "a3", Explanation: "x3"}},
	)
	if err := b.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	q, ok := loaded.First(model.DifficultyHard)
	if !ok || q.Question != "h1" || q.Explanation != "x3" {
		t.Errorf("loaded hard question = %+v, %v", q, ok)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGenerate(t *testing.T) {
	gw := &fakeGateway{reply: `{
		"easy": [{"question": "ge", "answer": "a", "explanation": "e"}],
		"medium": [{"question": "gm", "answer": "a", "explanation": "e"}],
		"hard": [{"question": "gh", "answer": "a", "explanation": "e"}]
	}`}
	b, err := Generate(context.Background(), gw, passage.Default())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if q, _ := b.First(model.DifficultyMedium); q.Question != "gm" {
		t.Errorf("generated medium question = %q", q.Question)
	}
}

func TestInitFallsBackToDefault(t *testing.T) {
	gw := &fakeGateway{err: errors.New("endpoint down")}
	b := Init(context.Background(), gw, passage.Default(), "")
	if b.Empty() {
		t.Fatal("Init should fall back to the built-in bank")
	}
	if len(b.Pool(model.DifficultyEasy)) != 5 {
		t.Error("fallback bank should be the built-in bank")
	}
}

func TestInitCachesGeneratedBank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	gw := &fakeGateway{reply: `{
		"easy": [{"question": "ge", "answer": "a", "explanation": "e"}],
		"medium": [{"question": "gm", "answer": "a", "explanation": "e"}],
		"hard": [{"question": "gh", "answer": "a", "explanation": "e"}]
	}`}

	b := Init(context.Background(), gw, passage.Default(), path)
	if q, _ := b.First(model.DifficultyEasy); q.Question != "ge" {
		t.Fatalf("generated easy question = %q", q.Question)
	}
	if gw.calls != 1 {
		t.Fatalf("expected 1 generation call, got %d", gw.calls)
	}

	// Second Init must hit the cache, not the gateway.
	b2 := Init(context.Background(), gw, passage.Default(), path)
	if gw.calls != 1 {
		t.Errorf("expected cache hit, gateway called %d times", gw.calls)
	}
	if q, _ := b2.First(model.DifficultyHard); q.Question != "gh" {
		t.Errorf("cached hard question = %q", q.Question)
	}
}
