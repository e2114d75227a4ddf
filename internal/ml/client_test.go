package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tidewatch/tidewatch/internal/database"
)

func TestClassifyText_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["text"] != "huge waves at the shore" {
			t.Errorf("unexpected text %q", req["text"])
		}
		json.NewEncoder(w).Encode(Classification{Label: database.LabelPanic, Confidence: 0.92})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	got := c.ClassifyText(context.Background(), "huge waves at the shore")
	if got.Label != database.LabelPanic || got.Confidence != 0.92 {
		t.Errorf("got %+v, want {panic 0.92}", got)
	}
}

func TestClassifyText_FailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}},
		{"unknown label", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"label": "spam", "confidence": 0.9})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(srv.URL, time.Second)
			got := c.ClassifyText(context.Background(), "anything")
			if got != FailClosedClassification {
				t.Errorf("got %+v, want fail-closed %+v", got, FailClosedClassification)
			}
		})
	}
}

func TestClassifyText_UnreachableFailsClosed(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 100*time.Millisecond)
	got := c.ClassifyText(context.Background(), "anything")
	if got != FailClosedClassification {
		t.Errorf("got %+v, want fail-closed %+v", got, FailClosedClassification)
	}
}

func TestClassifyText_ClampsConfidence(t *testing.T) {
	tests := []struct {
		raw  float64
		want float64
	}{
		{1.7, 1},
		{-0.3, 0},
		{0.5, 0.5},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"label": "relevant", "confidence": tt.raw})
		}))
		c := NewClient(srv.URL, time.Second)
		got := c.ClassifyText(context.Background(), "x")
		srv.Close()
		if got.Confidence != tt.want {
			t.Errorf("confidence %v: got %v, want %v", tt.raw, got.Confidence, tt.want)
		}
	}
}

func TestComputeHotspots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hotspot" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Cluster{
			{Center: Point{Lat: 13.08, Lon: 80.27}, Count: 4},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	clusters := c.ComputeHotspots(context.Background(), []Point{{Lat: 13, Lon: 80}})
	if len(clusters) != 1 || clusters[0].Count != 4 {
		t.Errorf("got %+v", clusters)
	}
}

func TestComputeHotspots_EmptyInputSkipsCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	clusters := c.ComputeHotspots(context.Background(), nil)
	if clusters == nil || len(clusters) != 0 {
		t.Errorf("want empty non-nil cluster list, got %#v", clusters)
	}
	if called {
		t.Error("service should not be called for an empty point set")
	}
}

func TestComputeHotspots_FailsClosedToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	clusters := c.ComputeHotspots(context.Background(), []Point{{Lat: 1, Lon: 2}})
	if clusters == nil || len(clusters) != 0 {
		t.Errorf("want empty non-nil cluster list, got %#v", clusters)
	}
}

func TestDetectImageTampering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TamperCheck{
			Verdict: database.VerdictNeedsVerification,
			Reasons: []string{"ela anomaly"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	check := c.DetectImageTampering(context.Background(), []byte{0x89, 0x50})
	if check == nil {
		t.Fatal("want a tamper check result")
	}
	if check.Verdict != database.VerdictNeedsVerification || len(check.Reasons) != 1 {
		t.Errorf("got %+v", check)
	}
}

func TestDetectImageTampering_NilOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if check := c.DetectImageTampering(context.Background(), []byte{1}); check != nil {
		t.Errorf("want nil on service error, got %+v", check)
	}
}
