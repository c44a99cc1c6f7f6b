package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"tunemux/model"
)

type blobMap map[string][]byte

func (m blobMap) GetOfflineBlob(ctx context.Context, key string) (*model.OfflineBlob, error) {
	data, ok := m[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return &model.OfflineBlob{ID: key, Data: data}, nil
}

func readAll(t *testing.T, open Opener, url string) string {
	t.Helper()
	rc, err := open(context.Background(), url)
	if err != nil {
		t.Fatalf("open %s: %v", url, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestOpenerSchemes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a.mp3" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "remote bytes")
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "local.mp3")
	if err := os.WriteFile(path, []byte("local bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	open := NewOpener(blobMap{"audius_x": []byte("offline bytes")}, srv.Client())

	if got := readAll(t, open, "offline:audius_x"); got != "offline bytes" {
		t.Errorf("offline = %q", got)
	}
	if got := readAll(t, open, srv.URL+"/a.mp3"); got != "remote bytes" {
		t.Errorf("http = %q", got)
	}
	if got := readAll(t, open, path); got != "local bytes" {
		t.Errorf("file = %q", got)
	}
	if got := readAll(t, open, "file://"+path); got != "local bytes" {
		t.Errorf("file url = %q", got)
	}

	if _, err := open(context.Background(), srv.URL+"/missing.mp3"); err == nil {
		t.Error("expected an error for a 404")
	}
	if _, err := open(context.Background(), "offline:nope"); err == nil {
		t.Error("expected an error for a missing blob")
	}
}
