package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testClient(t *testing.T, maxRetries int) *Client {
	t.Helper()
	return New(Options{
		MaxRetries:   maxRetries,
		RateLimiters: map[string]*rate.Limiter{},
		Sleep:        func(_ context.Context, _ time.Duration) {},
	})
}

func TestGetSuccess(t *testing.T) {
	var gotUA, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotHeader = r.Header.Get("Accept")
		assert.Equal(t, "bar", r.URL.Query().Get("foo"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(t, 3)
	body, err := c.Get(context.Background(), srv.URL, map[string]string{"Accept": "application/json"}, url.Values{"foo": {"bar"}})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, "equity-cli/1.0", gotUA)
	assert.Equal(t, "application/json", gotHeader)
}

func TestGetRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient(t, 3)
	body, err := c.Get(context.Background(), srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.EqualValues(t, 3, calls.Load())
}

func TestGetRetries429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient(t, 3)
	_, err := c.Get(context.Background(), srv.URL, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestGetExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, 3)
	_, err := c.Get(context.Background(), srv.URL, nil, nil)
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGetDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(t, 3)
	_, err := c.Get(context.Background(), srv.URL, nil, nil)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetBackoffSchedule(t *testing.T) {
	var slept []time.Duration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Options{
		MaxRetries:   3,
		BaseDelay:    100 * time.Millisecond,
		RateLimiters: map[string]*rate.Limiter{},
		Sleep: func(_ context.Context, d time.Duration) {
			slept = append(slept, d)
		},
	})
	_, err := c.Get(context.Background(), srv.URL, nil, nil)
	require.Error(t, err)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, slept)
}
