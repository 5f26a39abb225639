package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func TestMiddleware_LabelsByRouteTemplate(t *testing.T) {
	m := New()
	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods(http.MethodGet)

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		if rr.Code != http.StatusTeapot {
			t.Fatalf("status: got %d", rr.Code)
		}
	}
	m.ObserveUpstream("linkedin", OutcomeError)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	text := string(body)

	if !strings.Contains(text, `prepcoach_http_requests_total{code="418",method="GET",route="/items/{id}"} 2`) {
		t.Fatalf("request counter missing or wrong:\n%s", text)
	}
	if !strings.Contains(text, `prepcoach_upstream_requests_total{outcome="error",service="linkedin"} 1`) {
		t.Fatalf("upstream counter missing:\n%s", text)
	}
}

func TestObserveUpstream_NilReceiver(t *testing.T) {
	var m *Metrics
	m.ObserveUpstream("speech", OutcomeOK)
}
