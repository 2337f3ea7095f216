// Package normalize canonicalizes raw phrase text into the comparable
// Title-Case ASCII form stored in the corpus.
//
// Normalization runs in four passes: ASCII folding, whitespace and punctuation
// cleanup, Title-Casing, and a final cleanliness check. The output is a fixed
// point: normalizing an already-normalized phrase returns it unchanged.
package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultMaxWords  = 6
	DefaultMinLength = 2
	DefaultMaxLength = 100
)

// allowedPunctuation survives ASCII folding
const allowedPunctuation = `'-&.,!?:()"`

// Lowercase unless first or last token
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "but": true,
	"by": true, "for": true, "in": true, "nor": true, "of": true, "on": true,
	"or": true, "the": true, "to": true, "vs": true, "via": true, "with": true,
}

// Typographic characters AI generators like to emit
var replacements = map[rune]string{
	'‘': "'", '’': "'", 'ʼ': "'", '′': "'",
	'“': `"`, '”': `"`,
	'‐': "-", '‑': "-", '‒': "-", '–': "-", '—': "-",
	'…': "...",
}

// Options bounds phrase validation
type Options struct {
	MaxWords  int
	MinLength int
	MaxLength int
}

// DefaultOptions returns the party-game limits
func DefaultOptions() Options {
	return Options{
		MaxWords:  DefaultMaxWords,
		MinLength: DefaultMinLength,
		MaxLength: DefaultMaxLength,
	}
}

// Result is the outcome of normalizing one raw phrase
type Result struct {
	Normalized string   `json:"normalized"`
	IsValid    bool     `json:"isValid"`
	Errors     []string `json:"errors,omitempty"`
	WordCount  int      `json:"wordCount"`
}

// Normalizer canonicalizes and validates phrases
type Normalizer struct {
	opts Options
}

// New creates a normalizer. Zero option fields take their defaults.
func New(opts Options) *Normalizer {
	def := DefaultOptions()
	if opts.MaxWords <= 0 {
		opts.MaxWords = def.MaxWords
	}
	if opts.MinLength <= 0 {
		opts.MinLength = def.MinLength
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = def.MaxLength
	}
	return &Normalizer{opts: opts}
}

// Normalize canonicalizes with the default options
func Normalize(raw string) Result {
	return New(DefaultOptions()).Normalize(raw)
}

// Normalize canonicalizes raw and validates the result
func (n *Normalizer) Normalize(raw string) Result {
	folded := foldASCII(raw)
	cleaned := collapse(folded)

	if cleaned == "" {
		msg := "phrase is empty"
		if raw != "" {
			msg = "phrase contains only whitespace or unsupported characters"
		}
		return Result{Errors: []string{msg}}
	}

	normalized := titleCase(cleaned)
	words := countWords(normalized)

	result := Result{Normalized: normalized, WordCount: words}
	if words == 0 {
		result.Errors = append(result.Errors, "phrase has no words")
	}
	if words > n.opts.MaxWords {
		result.Errors = append(result.Errors, fmt.Sprintf("phrase has %d words, maximum is %d", words, n.opts.MaxWords))
	}
	if l := len(normalized); l < n.opts.MinLength {
		result.Errors = append(result.Errors, fmt.Sprintf("phrase is too short (%d characters, minimum %d)", l, n.opts.MinLength))
	} else if l > n.opts.MaxLength {
		result.Errors = append(result.Errors, fmt.Sprintf("phrase is too long (%d characters, maximum %d)", l, n.opts.MaxLength))
	}
	if err := checkClean(normalized); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// Key returns the case-insensitive comparison key for normalized text
func Key(normalized string) string {
	return strings.ToLower(normalized)
}

// ExtractFirstWord returns the lowercase first token with a trailing
// possessive removed, used to group phrases for diversity limits.
func ExtractFirstWord(phrase string) string {
	fields := strings.Fields(phrase)
	if len(fields) == 0 {
		return ""
	}
	word := strings.ToLower(fields[0])
	word = strings.Trim(word, `.,!?:()"`)
	word = strings.TrimSuffix(word, "'s")
	return strings.Trim(word, `'`)
}

func foldASCII(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if rep, ok := replacements[r]; ok {
			b.WriteString(rep)
			continue
		}
		b.WriteRune(r)
	}

	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripAccents, b.String())
	if err != nil {
		folded = b.String()
	}

	var out strings.Builder
	for _, r := range folded {
		switch {
		case unicode.IsSpace(r):
			out.WriteByte(' ')
		case r < unicode.MaxASCII && (isAlnum(r) || strings.ContainsRune(allowedPunctuation, r)):
			out.WriteRune(r)
		}
	}
	return out.String()
}

// collapse squeezes whitespace and repeated punctuation
func collapse(s string) string {
	s = strings.Join(strings.Fields(s), " ")

	var b strings.Builder
	var prev rune
	for _, r := range s {
		if r == prev && strings.ContainsRune(allowedPunctuation, r) {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

func titleCase(s string) string {
	tokens := strings.Split(s, " ")

	if isShouting(tokens) {
		for i := range tokens {
			tokens[i] = strings.ToLower(tokens[i])
		}
	}

	last := len(tokens) - 1
	for i, tok := range tokens {
		letters := lettersOf(tok)
		if isAcronym(letters) {
			continue
		}
		if i != 0 && i != last && stopWords[strings.ToLower(letters)] {
			tokens[i] = strings.ToLower(tok)
			continue
		}

		segments := strings.Split(tok, "-")
		for j, seg := range segments {
			segments[j] = caseSegment(seg)
		}
		tokens[i] = strings.Join(segments, "-")
	}
	return strings.Join(tokens, " ")
}

// isShouting reports an all-caps phrase that is not just acronyms
func isShouting(tokens []string) bool {
	long := false
	for _, tok := range tokens {
		letters := lettersOf(tok)
		if letters != strings.ToUpper(letters) {
			return false
		}
		for _, seg := range strings.Split(tok, "-") {
			if len(lettersOf(seg)) > 3 {
				long = true
			}
		}
	}
	return long
}

func isAcronym(letters string) bool {
	return len(letters) > 0 && len(letters) <= 3 && letters == strings.ToUpper(letters)
}

func caseSegment(seg string) string {
	letters := lettersOf(seg)
	if letters == "" || isAcronym(letters) {
		return seg
	}

	upper := letters == strings.ToUpper(letters)
	lower := letters == strings.ToLower(letters)
	switch {
	case upper:
		return capitalizeFirst(strings.ToLower(seg))
	case lower:
		return capitalizeFirst(seg)
	default:
		rest := letters[1:]
		if rest == strings.ToUpper(rest) {
			return capitalizeFirst(strings.ToLower(seg))
		}
		return capitalizeFirst(seg)
	}
}

func capitalizeFirst(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
			return string(b)
		}
		if c >= 'A' && c <= 'Z' {
			return s
		}
	}
	return s
}

func lettersOf(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func countWords(s string) int {
	count := 0
	for _, tok := range strings.Fields(s) {
		for _, r := range tok {
			if isAlnum(r) {
				count++
				break
			}
		}
	}
	return count
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func checkClean(s string) error {
	if s != strings.TrimSpace(s) || strings.Contains(s, "  ") {
		return fmt.Errorf("phrase has irregular whitespace")
	}
	for _, r := range s {
		if r >= unicode.MaxASCII || r < ' ' {
			return fmt.Errorf("phrase contains non-ASCII character %q", r)
		}
	}
	return nil
}
