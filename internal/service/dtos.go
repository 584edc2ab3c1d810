package service

import "math"

// Submission is one paper's reviewer scores plus their rounded mean.
type Submission struct {
	Scores  []int   `json:"scores" validate:"min=3,max=4,dive,min=1,max=6"`
	Average float64 `json:"average"`
}

// NewSubmission copies scores and derives the average from them.
func NewSubmission(scores []int) Submission {
	own := make([]int, len(scores))
	copy(own, scores)
	return Submission{
		Scores:  own,
		Average: averageOf(own),
	}
}

func averageOf(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return RoundTo2(float64(sum) / float64(len(scores)))
}

// RoundTo2 rounds half away from zero to two decimal places.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// AverageBucket is one histogram bar over submission averages. Both ends are inclusive.
type AverageBucket struct {
	Label string  `json:"range"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// Contains reports whether v falls within the bucket's inclusive bounds.
func (b AverageBucket) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// RawScoreBucket counts individual reviewer scores equal to Score.
type RawScoreBucket struct {
	Score int `json:"score"`
	Count int `json:"count"`
}

// Distribution is the aggregator output handed to presentation.
type Distribution struct {
	Averages         []AverageBucket  `json:"averages"`
	RawScores        []RawScoreBucket `json:"rawScores"`
	UserBucket       int              `json:"userBucket"`
	Total            int              `json:"total"`
	DroppedAverages  int              `json:"droppedAverages"`
	DroppedRawScores int              `json:"droppedRawScores"`
}

// Sentiment is the tone tag attached to an analysis.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is one of the three known tags.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// AnalysisResult is the model's short judgment for one submission.
type AnalysisResult struct {
	Prediction   string    `json:"prediction"`
	Sentiment    Sentiment `json:"sentiment"`
	AnalysisText string    `json:"analysisText"`
}

// State is a session's position in the submission workflow.
type State int

const (
	StateAwaitingInput State = iota
	StateSubmitting
	StateResult
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateSubmitting:
		return "submitting"
	case StateResult:
		return "result"
	default:
		return "unknown"
	}
}

// ResultView is what a session shows once a submission has been processed.
type ResultView struct {
	Submission   Submission
	Distribution Distribution
	Warning      string
	Degraded     bool
}

// FormView is a snapshot of the score entry form.
type FormView struct {
	Fields      []string
	FieldErrors []string
	State       State
}
