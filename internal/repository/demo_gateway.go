package repository

import (
	"context"

	"github.com/godilite/score-stats/internal/service"
)

// DemoGateway serves a fixed seed and never stores anything. Each submit
// returns the seed plus only that submission.
type DemoGateway struct {
	seed service.Dataset
}

func NewDemoGateway(seed service.Dataset) *DemoGateway {
	return &DemoGateway{seed: seed.Clone()}
}

func (g *DemoGateway) Fetch(ctx context.Context) (service.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return service.Dataset{}, err
	}
	return g.seed.Clone(), nil
}

func (g *DemoGateway) Submit(ctx context.Context, sub service.Submission) (service.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return service.Dataset{}, err
	}
	return g.seed.WithSubmission(sub), nil
}
