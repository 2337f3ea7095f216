package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Candidate is one proposed phrase
type Candidate struct {
	Phrase         string `json:"phrase"`
	Category       string `json:"category"`
	SourceProvider string `json:"source_provider,omitempty"`
	ModelID        string `json:"model_id,omitempty"`
}

// categoryFile is the game export shape, accepted as import input too
type categoryFile struct {
	Category       string   `json:"category"`
	Phrases        []string `json:"phrases"`
	SourceProvider string   `json:"source_provider,omitempty"`
	ModelID        string   `json:"model_id,omitempty"`
}

// LoadCandidates decodes candidates from r. Accepted shapes are a list of
// candidate objects, a single {category, phrases} object, or a list of
// those. defaultCategory fills candidates that name none.
func LoadCandidates(r io.Reader, defaultCategory string) ([]Candidate, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("candidate input is empty")
	}

	var out []Candidate
	switch data[0] {
	case '{':
		var f categoryFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to decode category object: %w", err)
		}
		out = f.candidates()
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to decode candidate list: %w", err)
		}
		for i, raw := range items {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(raw, &fields); err != nil {
				return nil, fmt.Errorf("item %d: expected an object: %w", i, err)
			}
			if _, ok := fields["phrases"]; ok {
				var f categoryFile
				if err := json.Unmarshal(raw, &f); err != nil {
					return nil, fmt.Errorf("item %d: %w", i, err)
				}
				out = append(out, f.candidates()...)
				continue
			}
			var c Candidate
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, c)
		}
	default:
		return nil, fmt.Errorf("candidate input must be a JSON object or array")
	}

	for i := range out {
		if strings.TrimSpace(out[i].Category) == "" {
			if defaultCategory == "" {
				return nil, fmt.Errorf("candidate %q has no category", out[i].Phrase)
			}
			out[i].Category = defaultCategory
		}
	}
	return out, nil
}

// LoadFile reads candidates from a JSON file
func LoadFile(path, defaultCategory string) ([]Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return LoadCandidates(f, defaultCategory)
}

func (f categoryFile) candidates() []Candidate {
	out := make([]Candidate, 0, len(f.Phrases))
	for _, p := range f.Phrases {
		out = append(out, Candidate{
			Phrase:         p,
			Category:       f.Category,
			SourceProvider: f.SourceProvider,
			ModelID:        f.ModelID,
		})
	}
	return out
}
