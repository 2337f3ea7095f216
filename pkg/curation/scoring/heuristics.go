package scoring

import (
	"strings"

	"github.com/wordsonphone/phrasecurator/pkg/curation/keywords"
)

// Words everyone in a party knows
var commonWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "of": true, "to": true, "in": true,
	"on": true, "at": true, "for": true, "with": true, "is": true, "it": true, "my": true,
	"man": true, "woman": true, "boy": true, "girl": true, "baby": true, "dog": true, "cat": true,
	"house": true, "car": true, "party": true, "pizza": true, "ball": true, "game": true,
	"game's": true, "music": true, "song": true, "dance": true, "movie": true, "star": true,
	"king": true, "queen": true, "love": true, "time": true, "day": true, "night": true,
	"water": true, "fire": true, "ice": true, "cake": true, "coffee": true, "book": true,
	"phone": true, "school": true, "teacher": true, "family": true, "friend": true,
	"birthday": true, "christmas": true, "summer": true, "beach": true, "road": true,
	"trip": true, "big": true, "little": true, "hot": true, "cold": true, "happy": true,
	"super": true, "bowl": true, "box": true, "hat": true, "shoe": true, "tree": true,
	"sun": true, "moon": true, "world": true, "city": true, "war": true, "wars": true,
}

// LocalDetail breaks down the local heuristic score
type LocalDetail struct {
	Simplicity int `json:"simplicity"`
	Length     int `json:"length"`
	Recency    int `json:"recency"`
}

// Total is the sum of the local parts
func (d LocalDetail) Total() int {
	return d.Simplicity + d.Length + d.Recency
}

func wordPoints(word string) int {
	if commonWords[word] {
		return 5
	}
	switch n := len(word); {
	case n <= 5:
		return 4
	case n <= 7:
		return 3
	case n <= 10:
		return 1
	default:
		return 0
	}
}

func lengthPoints(chars int) int {
	switch {
	case chars <= 8:
		return 15
	case chars <= 12:
		return 12
	case chars <= 16:
		return 9
	case chars <= 22:
		return 6
	case chars <= 30:
		return 3
	default:
		return 0
	}
}

func words(phrase string) []string {
	fields := strings.Fields(strings.ToLower(phrase))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, `.,!?:()"'-&`)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// LocalHeuristics scores a phrase from its text alone: simple words and short
// phrases score higher, and a recency keyword adds a small bonus.
func LocalHeuristics(phrase string, recency *keywords.Matcher) LocalDetail {
	var detail LocalDetail

	ws := words(phrase)
	if len(ws) > 0 {
		sum := 0
		for _, w := range ws {
			sum += wordPoints(w)
		}
		// average points per word, scaled from 5 to 20
		detail.Simplicity = sum * 20 / (5 * len(ws))
	}

	detail.Length = lengthPoints(len(strings.TrimSpace(phrase)))
	if recency.Any(phrase) {
		detail.Recency = 5
	}
	return detail
}

// SitelinkPoints tiers a sitelink count onto a 30-point scale, then rescales
// to max.
func SitelinkPoints(sitelinks, max int) int {
	var pts int
	switch {
	case sitelinks >= 50:
		pts = 30
	case sitelinks >= 20:
		pts = 25
	case sitelinks >= 10:
		pts = 20
	case sitelinks >= 5:
		pts = 15
	case sitelinks >= 1:
		pts = 10
	}
	return pts * max / 30
}

// PopularityPoints tiers social engagement
func PopularityPoints(engagement, max int) int {
	switch {
	case engagement >= 10000:
		return max
	case engagement >= 1000:
		return max * 2 / 3
	case engagement >= 100:
		return max / 3
	case engagement >= 10:
		if max > 0 {
			return 1
		}
	}
	return 0
}

// PageviewPoints tiers three-month pageviews onto a 10-point scale
func PageviewPoints(views, max int) int {
	var pts int
	switch {
	case views >= 1_000_000:
		pts = 10
	case views >= 100_000:
		pts = 7
	case views >= 10_000:
		pts = 4
	case views >= 1_000:
		pts = 2
	}
	return pts * max / 10
}

// CategoryBoost gives pop-culture categories a higher baseline and adds two
// points per category keyword in the phrase, up to five, capped at max.
func CategoryBoost(phrase string, popCulture bool, kw *keywords.Matcher, max int) int {
	base := 5
	if popCulture {
		base = 10
	}
	bonus := 2 * len(kw.Matches(phrase))
	if bonus > 5 {
		bonus = 5
	}
	pts := (base + bonus) * max / 15
	if pts > max {
		pts = max
	}
	return pts
}
