package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	return true, f.Set(ctx, key, value, ttl)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func purchaseRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/customers/c1/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func TestIdempotencyReplaysSuccessfulResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, PurchaseIdempotencyTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"order_id":"o1"}}`))
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, purchaseRequest("key-1", `{}`))

		require.Equal(t, http.StatusCreated, rec.Code, "attempt %d", i)
		assert.Contains(t, rec.Body.String(), `"order_id":"o1"`)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		if i == 1 {
			assert.Equal(t, "true", rec.Header().Get(replayedHeader))
		}
	}
	assert.Equal(t, 1, calls)
	for _, ttl := range store.ttls {
		assert.Equal(t, PurchaseIdempotencyTTL, ttl)
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), purchaseRequest("key-2", `{"a":1}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, purchaseRequest("key-2", `{"a":2}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), string(pkgerrors.CodeIdempotency))
}

func TestIdempotencyRefusesConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a duplicate arrives while this request still holds the key
		rec := httptest.NewRecorder()
		Idempotency(store, 0, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Error("duplicate must not reach the handler")
		})).ServeHTTP(rec, purchaseRequest("key-4", `{}`))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "still in progress")

		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, purchaseRequest("key-4", `{}`))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var record idempotencyRecord
	for _, stored := range store.data {
		require.NoError(t, json.Unmarshal([]byte(stored), &record))
	}
	assert.Equal(t, stateComplete, record.State)
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusConflict)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), purchaseRequest("key-3", `{}`))
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, 0, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	assert.Panics(t, func() {
		handler.ServeHTTP(httptest.NewRecorder(), purchaseRequest("key-5", `{}`))
	})
	assert.Empty(t, store.data)
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), purchaseRequest("", `{}`))
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	handler := Idempotency(newFakeStore(), 0, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, purchaseRequest(strings.Repeat("k", maxIdempotencyKey+1), `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
