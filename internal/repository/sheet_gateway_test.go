package repository_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godilite/score-stats/internal/repository"
	"github.com/godilite/score-stats/internal/service"
)

func TestSheetGateway_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"totalSubmissions":2,"allAverages":[3,4.5],"allRawScores":[3,3,3,4,5,4,5]}`))
	}))
	defer srv.Close()

	ds, err := repository.NewSheetGateway(srv.URL, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.TotalSubmissions)
	assert.Equal(t, []float64{3, 4.5}, ds.AllAverages)
	assert.Len(t, ds.AllRawScores, 7)
}

func TestSheetGateway_Submit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, []any{5.0, 5.0, 4.0}, body["scores"])
		assert.Equal(t, 4.67, body["average"])

		_, _ = w.Write([]byte(`{"totalSubmissions":1,"allAverages":[4.67],"allRawScores":[5,5,4]}`))
	}))
	defer srv.Close()

	ds, err := repository.NewSheetGateway(srv.URL, time.Second).Submit(context.Background(), service.NewSubmission([]int{5, 5, 4}))
	require.NoError(t, err)
	assert.Equal(t, 1, ds.TotalSubmissions)
}

func TestSheetGateway_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantErr: repository.ErrGatewayStatus},
		{name: "not json", status: http.StatusOK, body: "<html>", wantErr: service.ErrMalformedDataset},
		{name: "broken invariants", status: http.StatusOK, body: `{"totalSubmissions":1,"allAverages":[3],"allRawScores":[]}`, wantErr: service.ErrMalformedDataset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			gw := repository.NewSheetGateway(srv.URL, time.Second)
			_, err := gw.Fetch(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = gw.Submit(context.Background(), service.NewSubmission([]int{3, 3, 3}))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		_, err := repository.NewSheetGateway(srv.URL, 20*time.Millisecond).Fetch(context.Background())
		assert.Error(t, err)
	})
}

func TestDemoGateway(t *testing.T) {
	seed := service.Dataset{TotalSubmissions: 1, AllAverages: []float64{2}, AllRawScores: []int{2, 2, 2}}
	gw := repository.NewDemoGateway(seed)
	ctx := context.Background()

	ds, err := gw.Submit(ctx, service.NewSubmission([]int{4, 4, 4}))
	require.NoError(t, err)
	assert.Equal(t, 2, ds.TotalSubmissions)
	assert.Equal(t, []float64{2, 4}, ds.AllAverages)

	ds, err = gw.Submit(ctx, service.NewSubmission([]int{5, 5, 5}))
	require.NoError(t, err)
	assert.Equal(t, 2, ds.TotalSubmissions, "nothing is stored")

	fetched, err := gw.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, seed, fetched)
}
