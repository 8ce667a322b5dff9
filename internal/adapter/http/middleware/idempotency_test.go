package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/iho/txengine/internal/usecase/mocks"
)

const uploadPath = "/api/v1/transactions/"

func uploadKey(key string) string {
	return "POST " + uploadPath + " " + key
}

func newUploadRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, uploadPath, strings.NewReader("type,client,tx,amount\n"))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func TestIdempotencyMiddleware_IgnoresStoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().CheckAndSet(gomock.Any(), uploadKey("key-err"), nil, time.Hour).Return(false, nil, context.DeadlineExceeded)

	var called bool
	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, newUploadRequest("key-err"))

	if called {
		t.Fatalf("handler should not be called when store errors")
	}

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_StoresSuccessfulResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)

	var saved []byte
	gomock.InOrder(
		store.EXPECT().CheckAndSet(gomock.Any(), uploadKey("key-ok"), nil, DefaultIdempotencyTTL).Return(false, nil, nil),
		store.EXPECT().Update(gomock.Any(), uploadKey("key-ok"), gomock.Any(), DefaultIdempotencyTTL).
			DoAndReturn(func(_ context.Context, _ string, response []byte, _ time.Duration) error {
				saved = response
				return nil
			}),
	)

	mw := NewIdempotencyMiddleware(store, 0, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Location", "/api/v1/batches/b1")
		w.Header().Set("X-Other", "dropped")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"read":0}`))
	})).ServeHTTP(rr, newUploadRequest("key-ok"))

	if rr.Code != http.StatusAccepted || rr.Body.String() != `{"read":0}` {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}

	var stored storedResponse
	if err := json.Unmarshal(saved, &stored); err != nil {
		t.Fatalf("stored response is not JSON: %v", err)
	}
	if stored.Status != http.StatusAccepted || string(stored.Body) != `{"read":0}` {
		t.Fatalf("unexpected stored response: %+v", stored)
	}
	want := map[string]string{"Content-Type": "application/json", "Location": "/api/v1/batches/b1"}
	if len(stored.Header) != len(want) {
		t.Fatalf("unexpected stored headers: %v", stored.Header)
	}
	for name, value := range want {
		if stored.Header[name] != value {
			t.Fatalf("header %s = %q, want %q", name, stored.Header[name], value)
		}
	}
}

func TestIdempotencyMiddleware_ReplaysCachedResponse(t *testing.T) {
	cached, err := json.Marshal(storedResponse{
		Status: http.StatusUnprocessableEntity,
		Header: map[string]string{"Content-Type": "application/json", "Location": "/api/v1/batches/b1"},
		Body:   []byte(`{"batch_id":"b1"}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().CheckAndSet(gomock.Any(), uploadKey("key-done"), nil, time.Hour).Return(true, cached, nil)

	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run on replay")
	})).ServeHTTP(rr, newUploadRequest("key-done"))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected replayed status 422, got %d", rr.Code)
	}
	if rr.Header().Get("X-Idempotency-Replay") != "true" || rr.Body.String() != `{"batch_id":"b1"}` {
		t.Fatalf("expected replayed response, got %v %s", rr.Header(), rr.Body.String())
	}
	if rr.Header().Get("Location") != "/api/v1/batches/b1" {
		t.Fatalf("expected Location to be replayed, got %q", rr.Header().Get("Location"))
	}
}

func TestIdempotencyMiddleware_KeysAreScopedToRoute(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().CheckAndSet(gomock.Any(), "POST /api/v1/transactions/single shared", nil, time.Hour).Return(false, nil, nil)
	store.EXPECT().Update(gomock.Any(), "POST /api/v1/transactions/single shared", gomock.Any(), time.Hour).Return(nil)
	store.EXPECT().CheckAndSet(gomock.Any(), uploadKey("shared"), nil, time.Hour).Return(false, nil, nil)
	store.EXPECT().Update(gomock.Any(), uploadKey("shared"), gomock.Any(), time.Hour).Return(nil)

	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	single := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/single", strings.NewReader(`{}`))
	single.Header.Set(IdempotencyKeyHeader, "shared")
	handler.ServeHTTP(httptest.NewRecorder(), single)
	handler.ServeHTTP(httptest.NewRecorder(), newUploadRequest("shared"))
}

func TestIdempotencyMiddleware_CorruptCachedResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().CheckAndSet(gomock.Any(), uploadKey("key-bad"), nil, time.Hour).Return(true, []byte("not json"), nil)

	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run on a stored key")
	})).ServeHTTP(rr, newUploadRequest("key-bad"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_RejectsInFlightDuplicate(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().CheckAndSet(gomock.Any(), uploadKey("key-busy"), nil, time.Hour).Return(true, []byte(processingMarker), nil)

	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run while the key is in progress")
	})).ServeHTTP(rr, newUploadRequest("key-busy"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ReleasesFailedRequests(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().CheckAndSet(gomock.Any(), uploadKey("key-fail"), nil, time.Hour).Return(false, nil, nil)
	store.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	store.EXPECT().Release(gomock.Any(), uploadKey("key-fail")).Return(nil)

	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})).ServeHTTP(rr, newUploadRequest("key-fail"))
}

func TestIdempotencyMiddleware_SkipsRequestsWithoutKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)

	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	for _, req := range []*http.Request{
		newUploadRequest(""),
		httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil),
	} {
		var called bool
		mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})).ServeHTTP(httptest.NewRecorder(), req)

		if !called {
			t.Fatalf("expected handler to run for %s %s", req.Method, req.URL.Path)
		}
	}
}
