package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func stubServer(t *testing.T, status int, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, `{"error":{"message":"down"}}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func baseArgs(t *testing.T, url string) []string {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test")
	t.Setenv("GOOGLE_API_KEY", "test")
	return []string{
		"-env", filepath.Join(t.TempDir(), "none.env"),
		"-primary.base", url,
		"-secondary.base", url,
		"-retries", "0",
	}
}

func TestRun_OneShotWritesOutput(t *testing.T) {
	srv := stubServer(t, http.StatusOK, "A shorter post.")
	out := filepath.Join(t.TempDir(), "post.txt")
	args := append(baseArgs(t, srv.URL), "-type", "Shorten", "-output", out, "-text", "A long post about AI.")

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), args, strings.NewReader(""), &stdout, &stderr); code != exitOK {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if strings.TrimSpace(string(b)) != "A shorter post." {
		t.Fatalf("output=%q", b)
	}
}

func TestRun_StdinToStdout(t *testing.T) {
	srv := stubServer(t, http.StatusOK, "rephrased")
	args := append(baseArgs(t, srv.URL), "-type", "Rephrase", "-input", "-")

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), args, strings.NewReader("original"), &stdout, &stderr); code != exitOK {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	if stdout.String() != "rephrased\n" {
		t.Fatalf("stdout=%q", stdout.String())
	}
}

func TestRun_ExitCodes(t *testing.T) {
	ok := stubServer(t, http.StatusOK, "x")
	down := stubServer(t, http.StatusBadRequest, "")

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"unknown flag", []string{"-bogus"}, exitUsage},
		{"missing text", baseArgs(t, ok.URL), exitUsage},
		{"unknown type", append(baseArgs(t, ok.URL), "-type", "Translate", "-text", "x"), exitUsage},
		{"upstream", append(baseArgs(t, down.URL), "-text", "x"), exitUpstream},
		{"version", []string{"-version"}, exitOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(context.Background(), tc.args, strings.NewReader(""), &stdout, &stderr); got != tc.want {
				t.Fatalf("exit=%d, want %d; stderr=%s", got, tc.want, stderr.String())
			}
		})
	}
}
