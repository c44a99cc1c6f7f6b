package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"tunemux/logger"
	"tunemux/model"

	"github.com/liuzl/gocc"
	"go.uber.org/zap"
)

const neteaseSearchLimit = "30"

// Netease talks to a NeteaseCloudMusicApi deployment.
type Netease struct {
	fetch  *Fetcher
	apiURL string
	t2s    *gocc.OpenCC
	log    *zap.Logger
}

// NewNetease builds the provider. With t2s set, Traditional Chinese queries are
// converted to Simplified before searching; if the converter cannot be loaded
// queries are sent unchanged.
func NewNetease(fetch *Fetcher, apiURL string, t2s bool) *Netease {
	n := &Netease{
		fetch:  fetch,
		apiURL: strings.TrimRight(apiURL, "/"),
		log:    logger.Named("provider.netease"),
	}
	if t2s {
		conv, err := gocc.New("t2s")
		if err != nil {
			n.log.Warn("t2s converter unavailable", logger.ErrorField(err))
		} else {
			n.t2s = conv
		}
	}
	return n
}

func (n *Netease) Name() model.Source {
	return model.SourceNetease
}

type neteaseSong struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		PicURL string `json:"picUrl"`
	} `json:"album"`
	Duration int `json:"duration"` // milliseconds
}

type neteaseSearchResponse struct {
	Result struct {
		Songs []neteaseSong `json:"songs"`
	} `json:"result"`
	Code int `json:"code"`
}

type neteaseTopResponse struct {
	Data []neteaseSong `json:"data"`
	Code int           `json:"code"`
}

type neteaseURLResponse struct {
	Data []struct {
		ID  int64  `json:"id"`
		URL string `json:"url"`
	} `json:"data"`
	Code int `json:"code"`
}

// neteaseCode rejects the HTTP-200 error bodies the API uses for throttling
// and bad requests.
func neteaseCode(what string, code int) error {
	if code != 200 {
		return fmt.Errorf("%w: netease %s code %d", ErrProvider, what, code)
	}
	return nil
}

func (n *Netease) simplify(query string) string {
	if n.t2s == nil {
		return query
	}
	out, err := n.t2s.Convert(query)
	if err != nil {
		n.log.Debug("t2s conversion failed", logger.String("query", query), logger.ErrorField(err))
		return query
	}
	return out
}

func (n *Netease) Search(ctx context.Context, query string) ([]model.Track, error) {
	params := url.Values{"keywords": {n.simplify(query)}, "limit": {neteaseSearchLimit}}
	resp, err := getJSON(ctx, n.fetch, n.apiURL+"/search", params, func(r *neteaseSearchResponse) error {
		return neteaseCode("search", r.Code)
	})
	if err != nil {
		return nil, fmt.Errorf("netease search: %w", err)
	}
	return n.tracks(resp.Result.Songs), nil
}

func (n *Netease) Trending(ctx context.Context) ([]model.Track, error) {
	resp, err := getJSON(ctx, n.fetch, n.apiURL+"/top/song", url.Values{"type": {"0"}}, func(r *neteaseTopResponse) error {
		return neteaseCode("trending", r.Code)
	})
	if err != nil {
		return nil, fmt.Errorf("netease trending: %w", err)
	}
	return n.tracks(resp.Data), nil
}

func (n *Netease) tracks(songs []neteaseSong) []model.Track {
	tracks := make([]model.Track, 0, len(songs))
	for _, s := range songs {
		names := make([]string, 0, len(s.Artists))
		for _, a := range s.Artists {
			names = append(names, a.Name)
		}
		id := strconv.FormatInt(s.ID, 10)
		tracks = append(tracks, model.Track{
			ID:        id,
			Title:     s.Name,
			Artist:    strings.Join(names, ", "),
			Thumbnail: s.Album.PicURL,
			Duration:  s.Duration / 1000,
			Source:    model.SourceNetease,
			URL:       "https://music.163.com/song?id=" + id,
		})
	}
	return tracks
}

// ResolveStreamURL asks for the standard-quality URL. An empty URL usually
// means the song is region or copyright restricted.
func (n *Netease) ResolveStreamURL(ctx context.Context, id string) (string, error) {
	params := url.Values{"id": {id}, "level": {"standard"}}
	resp, err := getJSON(ctx, n.fetch, n.apiURL+"/song/url/v1", params, func(r *neteaseURLResponse) error {
		return neteaseCode("song url", r.Code)
	})
	if err != nil {
		return "", fmt.Errorf("netease song url %s: %w", id, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("%w: netease song %s has no playable url", ErrProvider, id)
	}
	return resp.Data[0].URL, nil
}
