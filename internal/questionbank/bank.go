// Package questionbank manages the precomputed comprehension question pools
// used by the evaluator, coaching, and quiz phases. Pools are generated once
// per passage by the reasoning service and cached on disk; a built-in bank for
// the default passage keeps sessions working when generation is unavailable.
package questionbank

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/edaccel/readtutor/internal/llm"
	"github.com/edaccel/readtutor/internal/llm/prompts"
	"github.com/edaccel/readtutor/internal/model"
	"github.com/edaccel/readtutor/internal/passage"
)

//go:embed default_bank.json
var defaultBank []byte

type bankFile struct {
	Easy   []model.PoolQuestion `json:"easy"`
	Medium []model.PoolQuestion `json:"medium"`
	Hard   []model.PoolQuestion `json:"hard"`
}

// Bank holds the three difficulty pools for a passage. Immutable after
// construction.
type Bank struct {
	pools map[model.Difficulty][]model.PoolQuestion
}

// New builds a bank from explicit pools.
func New(easy, medium, hard []model.PoolQuestion) *Bank {
	return &Bank{pools: map[model.Difficulty][]model.PoolQuestion{
		model.DifficultyEasy:   easy,
		model.DifficultyMedium: medium,
		model.DifficultyHard:   hard,
	}}
}

// Default returns the built-in bank for the default passage.
func Default() *Bank {
	var f bankFile
	if err := json.Unmarshal(defaultBank, &f); err != nil {
		panic(fmt.Sprintf("decode embedded question bank: %v", err))
	}
	return New(f.Easy, f.Medium, f.Hard)
}

// LoadFile reads a cached bank from a JSON file.
func LoadFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank %s: %w", path, err)
	}
	var f bankFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse question bank %s: %w", path, err)
	}
	b := New(f.Easy, f.Medium, f.Hard)
	if b.Empty() {
		return nil, fmt.Errorf("question bank %s contains no questions", path)
	}
	return b, nil
}

// SaveFile writes the bank to a JSON file for reuse across restarts.
func (b *Bank) SaveFile(path string) error {
	f := bankFile{
		Easy:   b.Pool(model.DifficultyEasy),
		Medium: b.Pool(model.DifficultyMedium),
		Hard:   b.Pool(model.DifficultyHard),
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode question bank: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write question bank %s: %w", path, err)
	}
	return nil
}

// Generate asks the reasoning service to build fresh pools for the passage.
func Generate(ctx context.Context, gw llm.Gateway, p passage.Passage) (*Bank, error) {
	raw, err := gw.Complete(ctx, prompts.BankSystem, []llm.Message{
		{Role: "user", Content: prompts.BankGen(p.Title, p.Content)},
	})
	if err != nil {
		return nil, fmt.Errorf("generate question bank: %w", err)
	}
	gen, err := llm.DecodeGeneratedBank(raw)
	if err != nil {
		return nil, err
	}
	return New(gen.Easy, gen.Medium, gen.Hard), nil
}

// Init returns the bank for a passage: a valid disk cache wins, then a fresh
// generation (cached for next time), then the built-in bank.
func Init(ctx context.Context, gw llm.Gateway, p passage.Passage, cachePath string) *Bank {
	if cachePath != "" {
		if b, err := LoadFile(cachePath); err == nil {
			slog.Info("loaded question bank from cache", "path", cachePath)
			return b
		} else if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("ignoring unreadable question bank cache", "path", cachePath, "error", err)
		}
	}

	if gw != nil {
		b, err := Generate(ctx, gw, p)
		if err == nil && !b.Empty() {
			if cachePath != "" {
				if err := b.SaveFile(cachePath); err != nil {
					slog.Warn("could not cache question bank", "path", cachePath, "error", err)
				}
			}
			slog.Info("generated question bank",
				"easy", len(b.Pool(model.DifficultyEasy)),
				"medium", len(b.Pool(model.DifficultyMedium)),
				"hard", len(b.Pool(model.DifficultyHard)))
			return b
		}
		slog.Warn("question bank generation failed, using built-in bank", "error", err)
	}

	return Default()
}

// Empty reports whether the bank holds no questions at all.
func (b *Bank) Empty() bool {
	for _, pool := range b.pools {
		if len(pool) > 0 {
			return false
		}
	}
	return true
}

// Pool returns a copy of the questions at the given difficulty.
func (b *Bank) Pool(d model.Difficulty) []model.PoolQuestion {
	pool := b.pools[d]
	out := make([]model.PoolQuestion, len(pool))
	copy(out, pool)
	return out
}

// First returns the first question at the given difficulty.
func (b *Bank) First(d model.Difficulty) (model.PoolQuestion, bool) {
	pool := b.pools[d]
	if len(pool) == 0 {
		return model.PoolQuestion{}, false
	}
	return pool[0], true
}

// Questions returns just the question texts at the given difficulty.
func (b *Bank) Questions(d model.Difficulty) []string {
	pool := b.pools[d]
	out := make([]string, 0, len(pool))
	for _, q := range pool {
		out = append(out, q.Question)
	}
	return out
}

// QuestionTexts returns the question texts for every difficulty, keyed by
// difficulty. The prompt builders consume this shape.
func (b *Bank) QuestionTexts() map[model.Difficulty][]string {
	out := make(map[model.Difficulty][]string, len(b.pools))
	for d := range b.pools {
		out[d] = b.Questions(d)
	}
	return out
}
