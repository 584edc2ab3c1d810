package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/godilite/score-stats/internal/repository/models"
	"github.com/godilite/score-stats/internal/service"
)

// ErrGatewayStatus is returned when the sheet endpoint answers with a non-2xx status.
var ErrGatewayStatus = errors.New("gateway returned non-success status")

const maxSheetBody = 16 << 20

// SheetGateway stores submissions in a spreadsheet web app reachable at a
// single URL: GET returns the dataset, POST appends one submission.
type SheetGateway struct {
	url    string
	client *http.Client
}

// NewSheetGateway returns a gateway for url. A zero timeout leaves request
// deadlines to the caller's context.
func NewSheetGateway(url string, timeout time.Duration) *SheetGateway {
	return &SheetGateway{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the current dataset.
func (g *SheetGateway) Fetch(ctx context.Context) (service.Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return service.Dataset{}, fmt.Errorf("build fetch request: %w", err)
	}
	return g.do(req, "fetch")
}

// Submit posts sub and returns the dataset the endpoint reports afterwards.
// The body is sent without a Content-Type header so browser-facing script
// endpoints treat it as a simple request.
func (g *SheetGateway) Submit(ctx context.Context, sub service.Submission) (service.Dataset, error) {
	body, err := json.Marshal(models.SubmissionPayload{Scores: sub.Scores, Average: sub.Average})
	if err != nil {
		return service.Dataset{}, fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return service.Dataset{}, fmt.Errorf("build submit request: %w", err)
	}
	return g.do(req, "submit")
}

func (g *SheetGateway) do(req *http.Request, op string) (service.Dataset, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return service.Dataset{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxSheetBody))
		return service.Dataset{}, fmt.Errorf("%s: %w: %d", op, ErrGatewayStatus, resp.StatusCode)
	}

	var ds service.Dataset
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSheetBody)).Decode(&ds); err != nil {
		return service.Dataset{}, fmt.Errorf("%s: %w: %v", op, service.ErrMalformedDataset, err)
	}
	if err := ds.Check(); err != nil {
		return service.Dataset{}, fmt.Errorf("%s: %w", op, err)
	}
	return ds, nil
}
