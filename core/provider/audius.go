package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"tunemux/model"
)

// Audius queries a discovery node. Streams are served by the node itself, so
// resolution needs no request.
type Audius struct {
	fetch   *Fetcher
	host    string
	appName string
}

func NewAudius(fetch *Fetcher, host, appName string) *Audius {
	return &Audius{
		fetch:   fetch,
		host:    strings.TrimRight(host, "/"),
		appName: appName,
	}
}

func (a *Audius) Name() model.Source {
	return model.SourceAudius
}

type audiusTrack struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	Permalink string `json:"permalink"`
	User      struct {
		Name string `json:"name"`
	} `json:"user"`
	Artwork map[string]string `json:"artwork"`
}

type audiusResponse struct {
	Data []audiusTrack `json:"data"`
}

func (a *Audius) Search(ctx context.Context, query string) ([]model.Track, error) {
	params := url.Values{"query": {query}, "app_name": {a.appName}}
	resp, err := getJSON[audiusResponse](ctx, a.fetch, a.host+"/v1/tracks/search", params, nil)
	if err != nil {
		return nil, fmt.Errorf("audius search: %w", err)
	}
	return a.tracks(resp.Data), nil
}

func (a *Audius) Trending(ctx context.Context) ([]model.Track, error) {
	params := url.Values{"app_name": {a.appName}}
	resp, err := getJSON[audiusResponse](ctx, a.fetch, a.host+"/v1/tracks/trending", params, nil)
	if err != nil {
		return nil, fmt.Errorf("audius trending: %w", err)
	}
	return a.tracks(resp.Data), nil
}

func (a *Audius) tracks(data []audiusTrack) []model.Track {
	tracks := make([]model.Track, 0, len(data))
	for _, t := range data {
		thumb := t.Artwork["480x480"]
		if thumb == "" {
			thumb = t.Artwork["150x150"]
		}
		tracks = append(tracks, model.Track{
			ID:        t.ID,
			Title:     t.Title,
			Artist:    t.User.Name,
			Thumbnail: thumb,
			Duration:  t.Duration,
			Source:    model.SourceAudius,
			URL:       "https://audius.co" + t.Permalink,
		})
	}
	return tracks
}

func (a *Audius) ResolveStreamURL(_ context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty audius track id", ErrProvider)
	}
	return fmt.Sprintf("%s/v1/tracks/%s/stream?app_name=%s",
		a.host, url.PathEscape(id), url.QueryEscape(a.appName)), nil
}
