package delivery

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	eventrepo "github.com/KomaiX512/Accountmanager-sub004/internal/event/repository"
	identityrepo "github.com/KomaiX512/Accountmanager-sub004/internal/identity/repository"
	identityusecase "github.com/KomaiX512/Accountmanager-sub004/internal/identity/usecase"
	"github.com/KomaiX512/Accountmanager-sub004/internal/ingest"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/blobstore"
)

func newTestRouter(queueSize int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	store := blobstore.NewMemoryStore()
	events := eventrepo.NewEventRepository(store, time.Minute)
	resolver := identityusecase.NewResolver(identityrepo.NewMappingRepository(store), nil)
	// Workers are never started: deliveries sit in the queue.
	pipeline := ingest.NewPipeline(events, resolver, nil, 1, queueSize, 0)
	handler := NewWebhookHandler(pipeline, "secret-token")

	r := gin.New()
	r.GET("/api/webhooks/:platform", handler.Verify)
	r.POST("/api/webhooks/:platform", handler.Receive)
	return r
}

func TestVerifyChallenge(t *testing.T) {
	r := newTestRouter(8)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/webhooks/instagram?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "12345" {
		t.Errorf("expected the raw challenge echoed back, got %q", w.Body.String())
	}
}

func TestVerifyRejectsBadToken(t *testing.T) {
	r := newTestRouter(8)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/webhooks/instagram?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestReceiveAcksKnownPlatform(t *testing.T) {
	r := newTestRouter(8)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/instagram",
		strings.NewReader(`{"entry":[]}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestReceiveAcksUnknownPlatform(t *testing.T) {
	r := newTestRouter(8)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/friendster",
		strings.NewReader(`{"whatever": true}`))
	r.ServeHTTP(w, req)

	// Unknown platforms are acked, otherwise the sender retries forever.
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestReceiveQueueFull(t *testing.T) {
	r := newTestRouter(1)

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/webhooks/instagram", strings.NewReader(`{}`)))
	if first.Code != http.StatusOK {
		t.Fatalf("first delivery should queue, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/webhooks/instagram", strings.NewReader(`{}`)))
	if second.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when the queue is full, got %d", second.Code)
	}
}
