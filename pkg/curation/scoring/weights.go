package scoring

// Component names used in Breakdown maps
const (
	ComponentLocal         = "local"
	ComponentKnowledgeBase = "knowledgeBase"
	ComponentPopularity    = "popularity"
	ComponentCategory      = "category"
	ComponentWikipedia     = "wikipedia"
)

// SourceWikipedia marks phrases harvested from Wikipedia. They trade most of
// the popularity weight for a pageviews component.
const SourceWikipedia = "wikipedia"

// Weights caps each component's contribution
type Weights struct {
	Local         int `json:"local"`
	KnowledgeBase int `json:"knowledgeBase"`
	Popularity    int `json:"popularity"`
	Category      int `json:"category"`
	Wikipedia     int `json:"wikipedia"`
}

// DefaultWeights sum to 100
func DefaultWeights() Weights {
	return Weights{Local: 40, KnowledgeBase: 30, Popularity: 15, Category: 15}
}

// ForSource adjusts the weights for the phrase source
func (w Weights) ForSource(source string) Weights {
	if source == SourceWikipedia {
		w.Popularity = 5
		w.Wikipedia = 10
	}
	return w
}

// Band is the score-range label
type Band string

const (
	BandExcellent  Band = "EXCELLENT"
	BandGood       Band = "GOOD"
	BandBorderline Band = "BORDERLINE"
	BandWarning    Band = "WARNING"
	BandReject     Band = "REJECT"
)

// Verdict is the curation action a score implies
type Verdict string

const (
	VerdictAutoAccept   Verdict = "AUTO_ACCEPT"
	VerdictManualReview Verdict = "MANUAL_REVIEW"
	VerdictAutoReject   Verdict = "AUTO_REJECT"
)

// Thresholds are inclusive lower bounds
type Thresholds struct {
	Excellent int `json:"excellent"`
	Accept    int `json:"accept"`
	Review    int `json:"review"`
	Warning   int `json:"warning"`
}

// DefaultThresholds returns 80/60/40/20
func DefaultThresholds() Thresholds {
	return Thresholds{Excellent: 80, Accept: 60, Review: 40, Warning: 20}
}

// Classify maps a total score to its band and verdict
func (t Thresholds) Classify(total int) (Band, Verdict) {
	switch {
	case total >= t.Excellent:
		return BandExcellent, VerdictAutoAccept
	case total >= t.Accept:
		return BandGood, VerdictAutoAccept
	case total >= t.Review:
		return BandBorderline, VerdictManualReview
	case total >= t.Warning:
		return BandWarning, VerdictAutoReject
	default:
		return BandReject, VerdictAutoReject
	}
}
