package service

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
)

// SeedConfig describes the synthetic distribution used when no real data can
// be fetched.
type SeedConfig struct {
	Count int
	// FourReviewerRate is the share of papers that got a fourth review.
	FourReviewerRate float64
	// ScoreWeights[i] is the probability of score i+1.
	ScoreWeights [MaxScore]float64
	Seed         uint64
}

// DefaultSeedConfig mirrors the community-survey shape the dashboard launched with.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Count:            860,
		FourReviewerRate: 0.3,
		ScoreWeights:     [MaxScore]float64{0.10, 0.20, 0.40, 0.20, 0.08, 0.02},
		Seed:             42,
	}
}

// GenerateSeed builds a deterministic synthetic dataset from cfg.
func GenerateSeed(cfg SeedConfig) Dataset {
	r := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	ds := Dataset{
		AllAverages:  make([]float64, 0, cfg.Count),
		AllRawScores: make([]int, 0, cfg.Count*MaxReviewers),
	}
	for range cfg.Count {
		n := MinReviewers
		if r.Float64() < cfg.FourReviewerRate {
			n = MaxReviewers
		}
		scores := make([]int, n)
		for j := range scores {
			scores[j] = drawScore(r.Float64(), cfg.ScoreWeights)
		}
		sub := NewSubmission(scores)
		ds.AllAverages = append(ds.AllAverages, sub.Average)
		ds.AllRawScores = append(ds.AllRawScores, sub.Scores...)
	}
	ds.TotalSubmissions = len(ds.AllAverages)
	return ds
}

// drawScore maps a uniform sample onto the cumulative weights. Anything past
// the last threshold lands on the top score.
func drawScore(u float64, weights [MaxScore]float64) int {
	acc := 0.0
	for i, w := range weights[:MaxScore-1] {
		acc += w
		if u < acc {
			return i + MinScore
		}
	}
	return MaxScore
}

// LoadSeedFile reads a dataset snapshot written by cmd/seedgen.
func LoadSeedFile(path string) (Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("read seed file: %w", err)
	}
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return Dataset{}, fmt.Errorf("%w: %v", ErrMalformedDataset, err)
	}
	if err := ds.Check(); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

// WriteSeedFile stores ds as indented JSON.
func WriteSeedFile(path string, ds Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write seed file: %w", err)
	}
	if err := EncodeSeed(f, ds); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write seed file: %w", err)
	}
	return nil
}

// EncodeSeed writes ds as indented JSON.
func EncodeSeed(w io.Writer, ds Dataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		return fmt.Errorf("encode seed: %w", err)
	}
	return nil
}
