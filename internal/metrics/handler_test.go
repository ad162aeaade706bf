package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestHandler_ServesMetrics は登録済みメトリクスがスクレイプ形式で返ることを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordFeedRebuild(80 * time.Millisecond)

	handler := Handler(reg)
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	if !strings.Contains(bodyStr, "reels_feed_rebuild_total") {
		t.Error("response should contain reels_feed_rebuild_total metric")
	}
	if !strings.Contains(bodyStr, "reels_feed_rebuild_latency_seconds") {
		t.Error("response should contain reels_feed_rebuild_latency_seconds metric")
	}
}

// TestHandler_EmptyRegistry は未記録でも200が返ることを検証する。
func TestHandler_EmptyRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	handler := Handler(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}
