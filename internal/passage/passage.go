package passage

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed default_passage.json
var defaultPassage []byte

// Passage is the reading text a session is built around. Immutable after load.
type Passage struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Difficulty string `json:"difficulty"`
}

// Default returns the built-in passage.
func Default() Passage {
	var p Passage
	// The embedded file is validated by tests; a decode failure here would be
	// a build defect, not a runtime condition.
	if err := json.Unmarshal(defaultPassage, &p); err != nil {
		panic(fmt.Sprintf("decode embedded passage: %v", err))
	}
	return p
}

// LoadFile reads a passage from a JSON file. An empty path returns the
// built-in default.
func LoadFile(path string) (Passage, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Passage{}, fmt.Errorf("read passage %s: %w", path, err)
	}
	var p Passage
	if err := json.Unmarshal(data, &p); err != nil {
		return Passage{}, fmt.Errorf("parse passage %s: %w", path, err)
	}
	if p.Title == "" || p.Content == "" {
		return Passage{}, fmt.Errorf("passage %s: title and content are required", path)
	}
	return p, nil
}
