package feed

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestLogoFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngHeader)
	}))
	defer server.Close()

	fetcher := NewLogoFetcher(nil, "Job Poster/1.0", t.TempDir())
	path, err := fetcher.Fetch(context.Background(), server.URL+"/logo.png")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer os.Remove(path)

	if !strings.HasSuffix(path, ".png") {
		t.Errorf("Expected .png file, got %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected file to exist: %v", err)
	}
	if !bytes.Equal(data, pngHeader) {
		t.Error("Expected file content to match response body")
	}
}

func TestLogoFetcher_SniffsContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(pngHeader)
	}))
	defer server.Close()

	fetcher := NewLogoFetcher(nil, "", t.TempDir())
	path, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected sniffed image to be accepted, got: %v", err)
	}
	os.Remove(path)
}

func TestLogoFetcher_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{"html body", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><body>nope</body></html>"))
		}},
		{"empty body", func(w http.ResponseWriter, r *http.Request) { w.Header().Set("Content-Type", "image/png") }},
		{"too large", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			w.Write(bytes.Repeat([]byte{0}, maxLogoBytes+10))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			fetcher := NewLogoFetcher(nil, "", t.TempDir())
			if _, err := fetcher.Fetch(context.Background(), server.URL); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}

	fetcher := NewLogoFetcher(nil, "", t.TempDir())
	if _, err := fetcher.Fetch(context.Background(), "ftp://example.com/logo.png"); err == nil {
		t.Error("Expected error for unsupported scheme")
	}
}
