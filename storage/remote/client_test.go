package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evalix/tests"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	store := testutil.NewMockStore(t, "items")
	store.Seed(map[string]interface{}{"name": "first"})
	store.FailNext(http.StatusServiceUnavailable, http.StatusServiceUnavailable)

	c := New(store.URL, "items")
	var got item
	require.NoError(t, c.Get(context.Background(), "1", &got))
	assert.Equal(t, item{ID: "1", Name: "first"}, got)

	reqs := store.Requests()
	require.Len(t, reqs, 3)
	assert.GreaterOrEqual(t, reqs[1].At.Sub(reqs[0].At), DefaultBackoffStep)
	assert.GreaterOrEqual(t, reqs[2].At.Sub(reqs[1].At), 2*DefaultBackoffStep)
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "bad request", status: http.StatusBadRequest},
		{name: "unauthorized", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStore(t, "items")
			store.FailNext(tt.status)
			c := New(store.URL, "items")

			start := time.Now()
			err := c.Get(context.Background(), "1", nil)
			assert.Less(t, time.Since(start), DefaultBackoffStep)

			var reqErr *RequestError
			require.True(t, errors.As(err, &reqErr))
			assert.Equal(t, KindClient, reqErr.Kind)
			assert.Equal(t, tt.status, reqErr.StatusCode())
			assert.Equal(t, 1, reqErr.Attempts)
			assert.Equal(t, http.MethodGet, reqErr.Method)
			assert.Equal(t, store.URL+"/items/1", reqErr.URL)
			assert.Equal(t, 1, store.CountRequests(""))
		})
	}
}

func TestClient_Exhausted(t *testing.T) {
	store := testutil.NewMockStore(t, "items")
	store.FailNext(http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable)
	c := New(store.URL, "items", WithBackoffStep(time.Millisecond))

	err := c.List(context.Background(), nil, nil)
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, KindExhausted, reqErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.Status)
	assert.Equal(t, DefaultMaxAttempts, reqErr.Attempts)
	assert.Equal(t, DefaultMaxAttempts, store.CountRequests(http.MethodGet))
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, "items", WithBackoffStep(time.Millisecond), WithMaxAttempts(2))
	err := c.Get(context.Background(), "1", nil)

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, KindExhausted, reqErr.Kind)
	assert.Equal(t, 0, reqErr.Status)
	assert.Equal(t, 2, reqErr.Attempts)
	assert.Error(t, reqErr.Err)
	assert.False(t, reqErr.NotFound())
}

func TestClient_SingleAttempt(t *testing.T) {
	store := testutil.NewMockStore(t, "items")
	store.FailNext(http.StatusServiceUnavailable)
	c := New(store.URL, "items", WithMaxAttempts(1))

	err := c.Get(context.Background(), "1", nil)
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, KindTransient, reqErr.Kind)
	assert.Equal(t, 1, store.CountRequests(""))
}

func TestClient_ContextCanceledDuringBackoff(t *testing.T) {
	store := testutil.NewMockStore(t, "items")
	store.FailNext(http.StatusServiceUnavailable)
	c := New(store.URL, "items", WithBackoffStep(10*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.Get(ctx, "1", nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, store.CountRequests(""))
}

func TestClient_Headers(t *testing.T) {
	store := testutil.NewMockStore(t, "items")
	c := New(store.URL+"/", "/items/", WithTokenProvider(StaticToken("s3cr3t")), WithUserAgent("evalix/test"))
	ctx := context.Background()

	var created item
	require.NoError(t, c.Create(ctx, item{Name: "new"}, &created))
	assert.Equal(t, "1", created.ID)
	require.NoError(t, c.Get(ctx, created.ID, nil))

	reqs := store.Requests()
	require.Len(t, reqs, 2)

	post := reqs[0]
	assert.Equal(t, "/items", post.Path)
	assert.Equal(t, "Bearer s3cr3t", post.Header.Get("Authorization"))
	assert.Equal(t, "application/json", post.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", post.Header.Get("Accept"))
	assert.Equal(t, "evalix/test", post.Header.Get("User-Agent"))
	assert.JSONEq(t, `{"id":"","name":"new"}`, string(post.Body))

	get := reqs[1]
	assert.Equal(t, "/items/1", get.Path)
	assert.Empty(t, get.Header.Get("Content-Type"))
	assert.Equal(t, "Bearer s3cr3t", get.Header.Get("Authorization"))
}

func TestClient_Token(t *testing.T) {
	store := testutil.NewMockStore(t, "items")
	ctx := context.Background()

	require.NoError(t, New(store.URL, "items").List(ctx, nil, nil))
	require.NoError(t, New(store.URL, "items", WithTokenProvider(StaticToken(""))).List(ctx, nil, nil))
	for _, r := range store.Requests() {
		_, ok := r.Header["Authorization"]
		assert.False(t, ok)
	}

	errNoToken := errors.New("no token")
	failing := TokenFunc(func(context.Context) (string, error) { return "", errNoToken })
	err := New(store.URL, "items", WithTokenProvider(failing)).List(ctx, nil, nil)
	assert.Equal(t, errNoToken, errors.Cause(err))
	assert.Equal(t, 2, store.CountRequests(""))
}

func TestClient_ListParams(t *testing.T) {
	store := testutil.NewMockStore(t, "items")
	store.Seed(
		map[string]interface{}{"name": "a", "year": 2025},
		map[string]interface{}{"name": "b", "year": "2024"},
		map[string]interface{}{"name": "c", "year": "2025"},
	)
	c := New(store.URL, "items")

	var got []item
	require.NoError(t, c.List(context.Background(), map[string]interface{}{"year": 2025, "skip": nil}, &got))
	assert.Equal(t, []item{{ID: "1", Name: "a"}, {ID: "3", Name: "c"}}, got)
	assert.Equal(t, "year=2025", store.Requests()[0].Query)
}

func TestClient_UpdateDelete(t *testing.T) {
	store := testutil.NewMockStore(t, "items")
	store.Seed(map[string]interface{}{"name": "old"})
	c := New(store.URL, "items")
	ctx := context.Background()

	var updated item
	require.NoError(t, c.Update(ctx, "1", item{Name: "new"}, &updated))
	assert.Equal(t, item{ID: "1", Name: "new"}, updated)

	require.NoError(t, c.Delete(ctx, "1", nil))
	assert.Empty(t, store.Items())

	err := c.Delete(ctx, "1", nil)
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.True(t, reqErr.NotFound())
}

func TestRequestError_Error(t *testing.T) {
	err := &RequestError{Method: "GET", URL: "http://x/items", Status: 503, Attempts: 3, Kind: KindExhausted}
	assert.Equal(t, "GET http://x/items → 503 Service Unavailable (retries exhausted, 3 attempt(s))", err.Error())

	err = &RequestError{Method: "GET", URL: "http://x/items", Attempts: 1, Kind: KindTransient, Err: errors.New("boom")}
	assert.Equal(t, "GET http://x/items: boom (transient error, 1 attempt(s))", err.Error())
}
