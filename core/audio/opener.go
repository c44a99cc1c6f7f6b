package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"tunemux/core/player"
	"tunemux/model"
)

// Opener returns the raw audio behind a URL handed out by the player.
type Opener func(ctx context.Context, url string) (io.ReadCloser, error)

// BlobSource reads downloaded audio.
type BlobSource interface {
	GetOfflineBlob(ctx context.Context, key string) (*model.OfflineBlob, error)
}

// NewOpener serves offline: URLs from blobs, http(s) URLs from client and
// anything else from the local filesystem.
func NewOpener(blobs BlobSource, client *http.Client) Opener {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, url string) (io.ReadCloser, error) {
		switch {
		case strings.HasPrefix(url, player.OfflineScheme):
			blob, err := blobs.GetOfflineBlob(ctx, strings.TrimPrefix(url, player.OfflineScheme))
			if err != nil {
				return nil, err
			}
			return io.NopCloser(bytes.NewReader(blob.Data)), nil

		case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				return nil, fmt.Errorf("GET %s: status %d", req.URL.Host, resp.StatusCode)
			}
			return resp.Body, nil

		default:
			return os.Open(strings.TrimPrefix(url, "file://"))
		}
	}
}
