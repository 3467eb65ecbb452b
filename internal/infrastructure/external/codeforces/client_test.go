package codeforces

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cf-hub/progress-tracker/internal/domain/student"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultClientConfig(server.URL)
	cfg.MinInterval = 10 * time.Millisecond
	return NewClient(cfg)
}

func TestFetchIdentity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user.info", r.URL.Path)
		assert.Equal(t, "tourist", r.URL.Query().Get("handles"))
		w.Write([]byte(`{
			"status": "OK",
			"result": [{
				"handle": "tourist",
				"rating": 3800,
				"maxRating": 3979,
				"rank": "legendary grandmaster",
				"maxRank": "legendary grandmaster"
			}]
		}`))
	})

	id, err := client.FetchIdentity(context.Background(), "tourist")
	require.NoError(t, err)

	assert.Equal(t, student.Handle("tourist"), id.Handle)
	assert.Equal(t, student.Rating(3800), id.Rating)
	assert.Equal(t, student.Rating(3979), id.MaxRating)
	assert.Equal(t, student.RankTitle("legendary grandmaster"), id.Rank)
}

func TestFetchIdentity_NotFoundComment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status": "FAILED", "comment": "handles: User with handle ghost not found"}`))
	})

	_, err := client.FetchIdentity(context.Background(), "ghost")
	assert.True(t, IsNotFound(err))

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.Handle)
}

func TestFetchIdentity_EmptyResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "OK", "result": []}`))
	})

	_, err := client.FetchIdentity(context.Background(), "ghost")
	assert.True(t, IsNotFound(err))
}

func TestFetchIdentity_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchIdentity(context.Background(), "tourist")
	assert.True(t, IsTransient(err))
	assert.False(t, IsNotFound(err))
}

func TestFetchIdentity_MalformedJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	})

	_, err := client.FetchIdentity(context.Background(), "tourist")

	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.False(t, IsTransient(err), "garbage payloads are not retryable conditions")
}

func TestFetchIdentity_APIErrorComment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "FAILED", "comment": "handles: Field should not be empty"}`))
	})

	_, err := client.FetchIdentity(context.Background(), "tourist")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Comment, "should not be empty")
}

func TestFetchContestHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user.rating", r.URL.Path)
		w.Write([]byte(`{
			"status": "OK",
			"result": [{
				"contestId": 1750,
				"contestName": "CodeTON Round 3",
				"rank": 12,
				"oldRating": 3700,
				"newRating": 3800,
				"ratingUpdateTimeSeconds": 1767225600
			}]
		}`))
	})

	contests, err := client.FetchContestHistory(context.Background(), "tourist")
	require.NoError(t, err)
	require.Len(t, contests, 1)

	assert.Equal(t, 1750, contests[0].ContestID)
	assert.Equal(t, 12, contests[0].Rank)
	assert.Equal(t, 3800, contests[0].NewRating)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), contests[0].RatedAt)
}

func TestFetchSubmissions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user.status", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("from"))
		assert.Equal(t, "1000", r.URL.Query().Get("count"))
		w.Write([]byte(`{
			"status": "OK",
			"result": [
				{
					"id": 900001,
					"contestId": 1750,
					"creationTimeSeconds": 1767225600,
					"problem": {"contestId": 1750, "index": "A", "name": "Indirect Sort", "rating": 800},
					"verdict": "OK",
					"programmingLanguage": "GNU C++20"
				},
				{
					"id": 900002,
					"contestId": 1750,
					"creationTimeSeconds": 1767225700,
					"problem": {"contestId": 1750, "index": "B", "name": "Maximum Substring"},
					"verdict": "WRONG_ANSWER",
					"programmingLanguage": "GNU C++20"
				}
			]
		}`))
	})

	subs, err := client.FetchSubmissions(context.Background(), "tourist")
	require.NoError(t, err)
	require.Len(t, subs, 2)

	assert.Equal(t, student.ProblemKey("1750A"), subs[0].Key())
	require.NotNil(t, subs[0].ProblemRating)
	assert.Equal(t, 800, *subs[0].ProblemRating)
	assert.True(t, subs[0].Verdict.IsAccepted())

	assert.Nil(t, subs[1].ProblemRating, "problems without a rating stay nil")
	assert.False(t, subs[1].Verdict.IsAccepted())
}

func TestClient_PacesConsecutiveRequests(t *testing.T) {
	var mu sync.Mutex
	var arrivals []time.Time

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		w.Write([]byte(`{"status": "OK", "result": []}`))
	})
	client.config.MinInterval = 50 * time.Millisecond

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := client.FetchContestHistory(ctx, "tourist")
		require.NoError(t, err)
	}

	require.Len(t, arrivals, 3)
	for i := 1; i < len(arrivals); i++ {
		gap := arrivals[i].Sub(arrivals[i-1])
		assert.GreaterOrEqual(t, gap, 45*time.Millisecond, "request %d arrived too early", i)
	}
}

func TestClient_PacingRespectsContextCancel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "OK", "result": []}`))
	})
	client.config.MinInterval = 5 * time.Second

	ctx := context.Background()
	_, err := client.FetchContestHistory(ctx, "tourist")
	require.NoError(t, err)

	// The second request would have to wait out the full interval.
	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	_, err = client.FetchContestHistory(ctx, "tourist")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_BreakerOpensAfterTransientFailures(t *testing.T) {
	var requests int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := client.FetchIdentity(ctx, "tourist")
		assert.True(t, IsTransient(err))
	}
	assert.Equal(t, 3, requests)

	// The breaker is now open: the next call fails fast without touching
	// the server, and still reads as transient to callers.
	_, err := client.FetchIdentity(ctx, "tourist")
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, requests)
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "OK", "result": []}`))
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := client.FetchIdentity(ctx, "ghost")
		require.True(t, IsNotFound(err))
	}

	var lastErr error
	_, lastErr = client.FetchIdentity(ctx, "ghost")
	assert.True(t, IsNotFound(lastErr), "a healthy upstream saying no never opens the circuit")
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TransientError{Status: 0, Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsTransient(err))
}
