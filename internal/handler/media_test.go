package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestServeImage(t *testing.T) {
	env := testHandler(t)

	dir := filepath.Join(env.mediaDir, "42")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "42_1.jpg"), []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, env.h, http.MethodGet, "/static/images/42/42_1.jpg")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc == "" {
		t.Error("expected Cache-Control header")
	}
	if body := rec.Body.String(); body != "jpeg bytes" {
		t.Errorf("body = %q", body)
	}
}

func TestServeImage_NotFound(t *testing.T) {
	env := testHandler(t)

	tests := []string{
		"/static/images/7/7_1.jpg",
		"/static/images/..%2Fsecret.jpg",
		"/static/images/",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			rec := doRequest(t, env.h, http.MethodGet, target)
			assertErrorCode(t, rec, http.StatusNotFound, ErrCodeNotFound)
		})
	}
}
