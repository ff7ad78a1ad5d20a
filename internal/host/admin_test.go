package host

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RenatoCabral2022/mixlab-host/internal/config"
	"github.com/RenatoCabral2022/mixlab-host/internal/session"
)

func TestAdminHealthAndSession(t *testing.T) {
	h, _ := newTestHost(t, config.Default(), session.NewReferenceModule())
	if err := h.Start("stub:reference"); err != nil {
		t.Fatal(err)
	}
	defer h.Shutdown()

	srv := httptest.NewServer(h.AdminHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /healthz, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/internal/session")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /internal/session, got %d", resp.StatusCode)
	}
	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != StateReady || st.SessionState != "editor_open" {
		t.Errorf("unexpected status %+v", st)
	}
	if st.Plugin != "Reference Stub" || st.SampleRate != 44100 || st.BlockSize != 441 {
		t.Errorf("unexpected plugin info %+v", st)
	}
	if st.SessionID == "" || len(st.OutputPeaks) != session.OutputChannels {
		t.Errorf("expected session id and %d peaks, got %+v", session.OutputChannels, st)
	}
}

func TestAdminMetrics(t *testing.T) {
	h, _ := newTestHost(t, config.Default(), session.NewReferenceModule())
	if err := h.Start("stub:reference"); err != nil {
		t.Fatal(err)
	}
	defer h.Shutdown()

	rec := httptest.NewRecorder()
	h.AdminHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "mixlab_host_session_state") {
		t.Error("expected session state gauge in /metrics output")
	}
}

func TestAdminShutdownEndsRun(t *testing.T) {
	h, _ := newTestHost(t, config.Default(), session.NewReferenceModule())
	if err := h.Start("stub:reference"); err != nil {
		t.Fatal(err)
	}
	handler := h.AdminHandler()

	done := make(chan error, 1)
	go func() { done <- h.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/shutdown", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown request did not end the run")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after shutdown, got %d", rec.Code)
	}

	// A second request after the loop is gone is still accepted.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/shutdown", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202 for repeated shutdown, got %d", rec.Code)
	}
}

func TestAdminRejectsWrongMethod(t *testing.T) {
	h, _ := newTestHost(t, config.Default(), session.NewReferenceModule())
	rec := httptest.NewRecorder()
	h.AdminHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/shutdown", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
