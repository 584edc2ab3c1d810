package service

// averageBounds is the fixed bucket table for submission averages. The gaps
// between neighbours (1.50 to 1.51 and so on) are never hit by averages of
// three or four integers rounded to two decimals.
var averageBounds = [...]struct {
	label    string
	min, max float64
}{
	{"1.0 - 1.5", 1.0, 1.5},
	{"1.51 - 2.0", 1.51, 2.0},
	{"2.01 - 2.5", 2.01, 2.5},
	{"2.51 - 3.0", 2.51, 3.0},
	{"3.01 - 3.5", 3.01, 3.5},
	{"3.51 - 4.0", 3.51, 4.0},
	{"4.01 - 4.5", 4.01, 4.5},
	{"4.51 - 5.0", 4.51, 5.0},
	{"5.01 - 6.0", 5.01, 6.0},
}

// NewAverageBuckets returns the nine average buckets with zero counts, in display order.
func NewAverageBuckets() []AverageBucket {
	out := make([]AverageBucket, len(averageBounds))
	for i, b := range averageBounds {
		out[i] = AverageBucket{Label: b.label, Min: b.min, Max: b.max}
	}
	return out
}

// NewRawScoreBuckets returns one zero-count bucket per score 1..6.
func NewRawScoreBuckets() []RawScoreBucket {
	out := make([]RawScoreBucket, 0, MaxScore-MinScore+1)
	for s := MinScore; s <= MaxScore; s++ {
		out = append(out, RawScoreBucket{Score: s})
	}
	return out
}

// BucketIndex returns the first average bucket containing v, or -1.
func BucketIndex(v float64) int {
	for i, b := range averageBounds {
		if v >= b.min && v <= b.max {
			return i
		}
	}
	return -1
}

// Aggregate bins every historical value plus the new submission. It reads but
// never modifies ds or sub, so repeated calls with the same input agree.
func Aggregate(ds Dataset, sub Submission) Distribution {
	dist := Distribution{
		Averages:   NewAverageBuckets(),
		RawScores:  NewRawScoreBuckets(),
		UserBucket: BucketIndex(sub.Average),
		Total:      len(ds.AllAverages) + 1,
	}

	binAverage := func(v float64) {
		if i := BucketIndex(v); i >= 0 {
			dist.Averages[i].Count++
			return
		}
		dist.DroppedAverages++
	}
	binScore := func(s int) {
		if s < MinScore || s > MaxScore {
			dist.DroppedRawScores++
			return
		}
		dist.RawScores[s-MinScore].Count++
	}

	for _, v := range ds.AllAverages {
		binAverage(v)
	}
	binAverage(sub.Average)

	for _, s := range ds.AllRawScores {
		binScore(s)
	}
	for _, s := range sub.Scores {
		binScore(s)
	}

	return dist
}
