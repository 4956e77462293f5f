package musicgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
	"github.com/bryanwahyu/sonifier/internal/infra/audio"
)

func wav(t *testing.T, n, rate int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := audio.EncodeWAV(&buf, make([]float32, n), rate); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSynthesize(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wav(t, 32000*2, 32000))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret")
	a, err := c.Synthesize(context.Background(), domain.GenerationRequest{Prompt: "A calm piece", Mood: "calm", DurationSeconds: 2})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if a.SampleRate != 32000 || len(a.Samples) != 64000 {
		t.Errorf("audio = %d samples @ %d, want 64000 @ 32000", len(a.Samples), a.SampleRate)
	}
	if a.Seconds() != 2 {
		t.Errorf("Seconds = %v, want 2", a.Seconds())
	}
	if got.Prompt != "A calm piece" || got.Mood != "calm" || got.Duration != 2 {
		t.Errorf("request body = %+v", got)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		exhausted bool
	}{
		{"oom message", http.StatusInternalServerError, `{"error":"CUDA out of memory. Tried to allocate 2.00 GiB"}`, true},
		{"unavailable", http.StatusServiceUnavailable, "busy", true},
		{"insufficient storage", http.StatusInsufficientStorage, "", true},
		{"bad request", http.StatusBadRequest, `{"detail":"prompt required"}`, false},
		{"internal", http.StatusInternalServerError, "segfault", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "").Synthesize(context.Background(), domain.GenerationRequest{Prompt: "x", DurationSeconds: 1})
			if err == nil {
				t.Fatal("Synthesize = nil error, want error")
			}
			if got := errors.Is(err, domain.ErrResourceExhausted); got != tt.exhausted {
				t.Errorf("errors.Is(ErrResourceExhausted) = %v, want %v (err=%v)", got, tt.exhausted, err)
			}
		})
	}
}

func TestSynthesizeBadAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a wav"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Synthesize(context.Background(), domain.GenerationRequest{Prompt: "x", DurationSeconds: 1})
	if !errors.Is(err, audio.ErrInvalidWAV) {
		t.Errorf("err = %v, want ErrInvalidWAV", err)
	}
}

func TestCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if !c.Available(context.Background()) {
		t.Error("Available = false, want true")
	}
	srv.Close()
	if c.Available(context.Background()) {
		t.Error("Available after close = true, want false")
	}
}
