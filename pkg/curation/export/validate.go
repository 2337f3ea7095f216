package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wordsonphone/phrasecurator/pkg/curation/normalize"
)

// DefaultMaxPhraseChars is the length above which a phrase draws a warning
const DefaultMaxPhraseChars = 40

// Issue is one validation finding
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Validation is the outcome of checking a game file. Errors block export,
// warnings are advisory.
type Validation struct {
	Valid      bool    `json:"valid"`
	Errors     []Issue `json:"errors"`
	Warnings   []Issue `json:"warnings"`
	Categories int     `json:"categories"`
	Phrases    int     `json:"phrases"`
}

func (v *Validation) errorf(field, format string, args ...interface{}) {
	v.Errors = append(v.Errors, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *Validation) warnf(field, format string, args ...interface{}) {
	v.Warnings = append(v.Warnings, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validator checks game files
type Validator struct {
	MaxPhraseChars int
}

// ValidateGameFormat checks v with default limits. v may be a single
// {category, phrases} object or an array of them, given as raw JSON bytes,
// decoded JSON values, or typed values such as []GameCategory.
func ValidateGameFormat(v any) Validation {
	return Validator{MaxPhraseChars: DefaultMaxPhraseChars}.Validate(v)
}

// Validate checks v. See ValidateGameFormat.
func (val Validator) Validate(v any) Validation {
	res := Validation{Errors: []Issue{}, Warnings: []Issue{}}

	doc, err := toGeneric(v)
	if err != nil {
		res.errorf("$", "not valid JSON: %v", err)
		return res
	}

	switch d := doc.(type) {
	case map[string]any:
		val.validateCategory(&res, "$", d)
	case []any:
		if len(d) == 0 {
			res.errorf("$", "export contains no categories")
			break
		}
		seen := make(map[string]int, len(d))
		for i, item := range d {
			field := fmt.Sprintf("$[%d]", i)
			obj, ok := item.(map[string]any)
			if !ok {
				res.errorf(field, "expected an object, got %s", typeName(item))
				continue
			}
			name := val.validateCategory(&res, field, obj)
			if name == "" {
				continue
			}
			if first, dup := seen[name]; dup {
				res.warnf(field, "category %q already appears at $[%d]", name, first)
			} else {
				seen[name] = i
			}
		}
	default:
		res.errorf("$", "expected an object or an array, got %s", typeName(doc))
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func (val Validator) validateCategory(res *Validation, field string, obj map[string]any) string {
	res.Categories++

	name, ok := obj["category"].(string)
	switch {
	case obj["category"] == nil:
		res.errorf(field+".category", "is required")
	case !ok:
		res.errorf(field+".category", "must be a string, got %s", typeName(obj["category"]))
	case strings.TrimSpace(name) == "":
		res.errorf(field+".category", "must not be empty")
		name = ""
	}

	list, ok := obj["phrases"].([]any)
	if !ok {
		if obj["phrases"] == nil {
			res.errorf(field+".phrases", "is required")
		} else {
			res.errorf(field+".phrases", "must be an array, got %s", typeName(obj["phrases"]))
		}
		return name
	}
	if len(list) == 0 {
		res.warnf(field+".phrases", "category has no phrases")
	}

	maxChars := val.MaxPhraseChars
	if maxChars <= 0 {
		maxChars = DefaultMaxPhraseChars
	}

	seen := make(map[string]int, len(list))
	for i, item := range list {
		pf := fmt.Sprintf("%s.phrases[%d]", field, i)
		p, ok := item.(string)
		if !ok {
			res.errorf(pf, "must be a string, got %s", typeName(item))
			continue
		}
		if strings.TrimSpace(p) == "" {
			res.errorf(pf, "must not be empty")
			continue
		}
		if r := normalize.Normalize(p); !r.IsValid {
			res.errorf(pf, "%q is not a valid phrase: %s", p, strings.Join(r.Errors, "; "))
			continue
		}
		res.Phrases++

		key := strings.ToLower(p)
		if first, dup := seen[key]; dup {
			res.warnf(pf, "%q duplicates phrases[%d]", p, first)
		} else {
			seen[key] = i
		}
		if len(p) > maxChars {
			res.warnf(pf, "%q is %d characters long (over %d)", p, len(p), maxChars)
		}
		if len(strings.Fields(p)) == 1 {
			res.warnf(pf, "%q is a single word", p)
		}
	}
	return name
}

func toGeneric(v any) (any, error) {
	var raw []byte
	switch t := v.(type) {
	case map[string]any, []any:
		return t, nil
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
