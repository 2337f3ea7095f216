// Package export produces the game file: one {category, phrases} object per
// category, with plain Title Case strings and no metadata.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
)

// ErrInvalidExport is returned when the produced file would not validate
var ErrInvalidExport = errors.New("export failed validation")

// GameCategory is the unit the game consumes
type GameCategory struct {
	Category string   `json:"category"`
	Phrases  []string `json:"phrases"`
}

// Filter selects what to export. Zero values mean no filter.
type Filter struct {
	Categories []string
	Recent     *bool
	MinScore   *int
	MaxScore   *int
	// Limit caps phrases per category after shuffling
	Limit   int
	Shuffle bool
	// Seed makes shuffles reproducible. Zero picks a random seed.
	Seed uint64
}

// Lister reads phrases
type Lister interface {
	ListPhrases(ctx context.Context, q phrases.Query) ([]phrases.Phrase, error)
}

// Exporter builds game files from the phrase store
type Exporter struct {
	store     Lister
	validator Validator
	logger    *logging.Logger
}

// NewExporter creates an exporter. maxPhraseChars tunes the long-phrase warning.
func NewExporter(store Lister, maxPhraseChars int, logger *logging.Logger) *Exporter {
	if maxPhraseChars <= 0 {
		maxPhraseChars = DefaultMaxPhraseChars
	}
	return &Exporter{
		store:     store,
		validator: Validator{MaxPhraseChars: maxPhraseChars},
		logger:    logger.WithComponent("export"),
	}
}

// Export returns one GameCategory per selected category, sorted by name.
// Categories without matching phrases are omitted. The result is validated
// and any error fails the export; warnings are logged.
func (e *Exporter) Export(ctx context.Context, f Filter) ([]GameCategory, error) {
	base := phrases.Query{Recent: f.Recent, MinScore: f.MinScore, MaxScore: f.MaxScore}

	byCategory := make(map[string][]string)
	if len(f.Categories) == 0 {
		rows, err := e.store.ListPhrases(ctx, base)
		if err != nil {
			return nil, fmt.Errorf("failed to list phrases: %w", err)
		}
		for _, p := range rows {
			byCategory[p.Category] = append(byCategory[p.Category], p.Text)
		}
	} else {
		for _, c := range f.Categories {
			q := base
			q.Category = c
			rows, err := e.store.ListPhrases(ctx, q)
			if err != nil {
				return nil, fmt.Errorf("failed to list phrases in %q: %w", c, err)
			}
			for _, p := range rows {
				byCategory[c] = append(byCategory[c], p.Text)
			}
		}
	}

	seed := f.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]GameCategory, 0, len(names))
	for _, name := range names {
		list := dedupe(byCategory[name])
		if len(list) == 0 {
			continue
		}
		if f.Shuffle {
			Shuffle(list, rng)
		}
		if f.Limit > 0 && len(list) > f.Limit {
			list = list[:f.Limit]
		}
		out = append(out, GameCategory{Category: name, Phrases: list})
	}

	if len(out) == 0 {
		return out, nil
	}

	v := e.validator.Validate(out)
	for _, w := range v.Warnings {
		e.logger.Warn("Export warning", map[string]interface{}{"field": w.Field, "message": w.Message})
	}
	if !v.Valid {
		msgs := make([]string, len(v.Errors))
		for i, issue := range v.Errors {
			msgs[i] = issue.Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidExport, strings.Join(msgs, "; "))
	}

	e.logger.Info("Export built", map[string]interface{}{
		"categories": len(out),
		"phrases":    v.Phrases,
	})
	return out, nil
}

// Validate checks an export with the exporter's limits
func (e *Exporter) Validate(v any) Validation {
	return e.validator.Validate(v)
}

// Shuffle permutes list in place with Fisher-Yates
func Shuffle(list []string, rng *rand.Rand) {
	for i := len(list) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		list[i], list[j] = list[j], list[i]
	}
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, p := range list {
		p = strings.TrimSpace(p)
		key := strings.ToLower(p)
		if p == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// Marshal encodes categories as indented JSON: a single object when there is
// one category, an array otherwise.
func Marshal(categories []GameCategory) ([]byte, error) {
	var v any = categories
	if len(categories) == 1 {
		v = categories[0]
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteFile writes the export to path, creating parent directories
func WriteFile(path string, categories []GameCategory) error {
	data, err := Marshal(categories)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

// ReadFile loads a game file for validation
func ReadFile(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return json.RawMessage(data), nil
}
