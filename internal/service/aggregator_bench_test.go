package service

import "testing"

func BenchmarkAggregate(b *testing.B) {
	cfg := DefaultSeedConfig()
	cfg.Count = 10000
	ds := GenerateSeed(cfg)
	sub := NewSubmission([]int{3, 4, 5})

	b.ReportAllocs()
	for b.Loop() {
		_ = Aggregate(ds, sub)
	}
}

func BenchmarkWithSubmission(b *testing.B) {
	ds := GenerateSeed(DefaultSeedConfig())
	sub := NewSubmission([]int{2, 3, 3, 4})

	b.ReportAllocs()
	for b.Loop() {
		_ = ds.WithSubmission(sub)
	}
}
