package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFetchDownloadsFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottoken/getFile":
			if r.URL.Query().Get("file_id") != "f1" {
				t.Errorf("unexpected file id %q", r.URL.Query().Get("file_id"))
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":{"file_path":"documents/report.docx"}}`))
		case "/file/bottoken/documents/report.docx":
			_, _ = w.Write([]byte("document bytes"))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fetcher := NewFetcher("token")
	fetcher.baseURL = server.URL

	dest := filepath.Join(t.TempDir(), "report.docx")
	if err := fetcher.Fetch(context.Background(), "f1", dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "document bytes" {
		t.Fatalf("unexpected file contents: %q %v", data, err)
	}
}

func TestFetchUnknownFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer server.Close()

	fetcher := NewFetcher("token")
	fetcher.baseURL = server.URL

	if err := fetcher.Fetch(context.Background(), "missing", filepath.Join(t.TempDir(), "x")); err == nil {
		t.Fatal("expected error for unavailable file")
	}
}
