package service

import (
	"errors"
	"fmt"
)

// ErrMalformedDataset is returned when a snapshot breaks the dataset invariants.
var ErrMalformedDataset = errors.New("malformed dataset")

// Dataset is the full historical set of submissions, flattened into parallel
// collections. A Dataset value is treated as immutable once built.
type Dataset struct {
	TotalSubmissions int       `json:"totalSubmissions"`
	AllAverages      []float64 `json:"allAverages"`
	AllRawScores     []int     `json:"allRawScores"`
}

// Check verifies that the snapshot is internally consistent.
func (d Dataset) Check() error {
	if len(d.AllRawScores) < len(d.AllAverages) {
		return fmt.Errorf("%w: %d raw scores for %d averages", ErrMalformedDataset, len(d.AllRawScores), len(d.AllAverages))
	}
	if d.TotalSubmissions < 0 {
		return fmt.Errorf("%w: negative total %d", ErrMalformedDataset, d.TotalSubmissions)
	}
	return nil
}

// Clone returns a deep copy.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		TotalSubmissions: d.TotalSubmissions,
		AllAverages:      make([]float64, len(d.AllAverages)),
		AllRawScores:     make([]int, len(d.AllRawScores)),
	}
	copy(out.AllAverages, d.AllAverages)
	copy(out.AllRawScores, d.AllRawScores)
	return out
}

// WithSubmission returns a new snapshot with sub appended. d is left untouched.
func (d Dataset) WithSubmission(sub Submission) Dataset {
	out := Dataset{
		TotalSubmissions: d.TotalSubmissions + 1,
		AllAverages:      make([]float64, 0, len(d.AllAverages)+1),
		AllRawScores:     make([]int, 0, len(d.AllRawScores)+len(sub.Scores)),
	}
	out.AllAverages = append(append(out.AllAverages, d.AllAverages...), sub.Average)
	out.AllRawScores = append(append(out.AllRawScores, d.AllRawScores...), sub.Scores...)
	return out
}

// WithoutSubmission removes the last entry matching sub from d. The gateway
// returns a snapshot that already holds sub, but other clients may have
// appended after it, so the match is not necessarily at the end. It reports
// whether an entry was removed; d itself is never modified.
func (d Dataset) WithoutSubmission(sub Submission) (Dataset, bool) {
	ai := lastAverage(d.AllAverages, sub.Average)
	ri := lastRun(d.AllRawScores, sub.Scores)
	if ai < 0 || ri < 0 {
		return d, false
	}

	out := Dataset{
		TotalSubmissions: d.TotalSubmissions - 1,
		AllAverages:      make([]float64, 0, len(d.AllAverages)-1),
		AllRawScores:     make([]int, 0, len(d.AllRawScores)-len(sub.Scores)),
	}
	out.AllAverages = append(append(out.AllAverages, d.AllAverages[:ai]...), d.AllAverages[ai+1:]...)
	out.AllRawScores = append(append(out.AllRawScores, d.AllRawScores[:ri]...), d.AllRawScores[ri+len(sub.Scores):]...)
	if out.TotalSubmissions < 0 {
		out.TotalSubmissions = 0
	}
	return out, true
}

func lastAverage(avgs []float64, v float64) int {
	for i := len(avgs) - 1; i >= 0; i-- {
		if avgs[i] == v {
			return i
		}
	}
	return -1
}

// lastRun returns the start of the last contiguous run equal to scores.
func lastRun(raw, scores []int) int {
	if len(scores) == 0 {
		return -1
	}
outer:
	for i := len(raw) - len(scores); i >= 0; i-- {
		for j, s := range scores {
			if raw[i+j] != s {
				continue outer
			}
		}
		return i
	}
	return -1
}
