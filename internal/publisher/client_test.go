package publisher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_FetchActiveCampaigns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": "brief-1", "pool": "main", "platform": "youtube", "budget_usd": 7000, "end_date": "2025-11-12", "content_filters": ["tag:alpha"]},
			{"id": "brief-2", "pool": "main", "platform": "x", "budget_usd": 3500, "end_date": "2025-12-01"}
		]`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	campaigns, err := client.FetchActiveCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 2)

	assert.Equal(t, "brief-1", campaigns[0].ID)
	assert.Equal(t, "main", campaigns[0].Pool)
	assert.Equal(t, "youtube", campaigns[0].Platform)
	assert.Equal(t, 7000.0, campaigns[0].BudgetUSD)
	assert.Equal(t, time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC), campaigns[0].EndDate)
	assert.Equal(t, []string{"tag:alpha"}, campaigns[0].ContentFilters)

	assert.Equal(t, "brief-2", campaigns[1].ID)
	assert.Empty(t, campaigns[1].ContentFilters)
}

func TestHTTPClient_Retry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"id": "brief-1", "pool": "main", "platform": "youtube", "budget_usd": 7000, "end_date": "2025-11-12"}]`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	campaigns, err := client.FetchActiveCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClient_MaxRetriesExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(1),
		WithRetryDelay(time.Millisecond),
	)

	_, err := client.FetchActiveCampaigns(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
}

func TestHTTPClient_MalformedCampaignNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[{"id": "brief-1", "end_date": "not-a-date"}]`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))

	_, err := client.FetchActiveCampaigns(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end_date")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(10),
		WithRetryDelay(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.FetchActiveCampaigns(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
