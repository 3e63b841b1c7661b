package r2s3

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestClient_PutFileSigned(t *testing.T) {
	var (
		mu   sync.Mutex
		got  *http.Request
		body []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		got, body = r, b
		mu.Unlock()
	}))
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, Bucket: "replays", AccessKeyID: "AK", SecretAccessKey: "SK"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	local := filepath.Join(t.TempDir(), "events-m1.jsonl.zst")
	if err := os.WriteFile(local, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	u := newUploader(c, "/prod/", 1, 4, nil)
	u.EnqueueMatch("m1", local)
	u.Close()

	if st := u.Stats(); st.UploadedTotal != 1 || st.FailedTotal != 0 {
		t.Fatalf("stats: %+v", st)
	}
	mu.Lock()
	defer mu.Unlock()
	if got == nil || got.Method != http.MethodPut {
		t.Fatalf("no PUT received")
	}
	if got.URL.Path != "/replays/prod/matches/m1/events-m1.jsonl.zst" {
		t.Fatalf("path: %s", got.URL.Path)
	}
	if string(body) != "payload" {
		t.Fatalf("body: %q", body)
	}
	sum := sha256.Sum256([]byte("payload"))
	if got.Header.Get("x-amz-content-sha256") != hex.EncodeToString(sum[:]) {
		t.Fatalf("payload hash header: %s", got.Header.Get("x-amz-content-sha256"))
	}
	if got.Header.Get("x-amz-date") != "20260301T120000Z" {
		t.Fatalf("date header: %s", got.Header.Get("x-amz-date"))
	}
	auth := got.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AK/20260301/auto/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature=") {
		t.Fatalf("authorization: %s", auth)
	}
}

type failingPutter struct{ calls int }

func (f *failingPutter) PutFile(context.Context, string, string) error {
	f.calls++
	return errors.New("boom")
}

func TestUploader_RetriesThenFails(t *testing.T) {
	fp := &failingPutter{}
	u := newUploader(fp, "", 1, 1, nil)
	u.backoff = 0
	u.EnqueueMatch("m1", "a")
	u.Close()
	if fp.calls != 4 {
		t.Fatalf("attempts: %d", fp.calls)
	}
	if st := u.Stats(); st.FailedTotal != 1 || st.UploadedTotal != 0 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(Config{Endpoint: "r2.example.com", Bucket: "b"}); err == nil {
		t.Fatalf("expected error without keys")
	}
	c, err := New(Config{Endpoint: "r2.example.com", Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"})
	if err != nil || c.endpoint != "https://r2.example.com" || c.region != "auto" {
		t.Fatalf("client: %+v err=%v", c, err)
	}
}
