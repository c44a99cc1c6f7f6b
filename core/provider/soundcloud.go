package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"tunemux/model"
)

const soundCloudSearchLimit = "20"

// SoundCloud talks to the api-v2 endpoints with a public client id. It has no
// trending feed.
type SoundCloud struct {
	fetch    *Fetcher
	apiURL   string
	clientID string
}

func NewSoundCloud(fetch *Fetcher, apiURL, clientID string) *SoundCloud {
	return &SoundCloud{
		fetch:    fetch,
		apiURL:   strings.TrimRight(apiURL, "/"),
		clientID: clientID,
	}
}

func (s *SoundCloud) Name() model.Source {
	return model.SourceSoundCloud
}

type scTranscoding struct {
	URL    string `json:"url"`
	Format struct {
		Protocol string `json:"protocol"`
		MimeType string `json:"mime_type"`
	} `json:"format"`
}

type scTrack struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	ArtworkURL   string `json:"artwork_url"`
	Duration     int    `json:"duration"` // milliseconds
	PermalinkURL string `json:"permalink_url"`
	User         struct {
		Username string `json:"username"`
	} `json:"user"`
	Media struct {
		Transcodings []scTranscoding `json:"transcodings"`
	} `json:"media"`
}

type scSearchResponse struct {
	Collection []scTrack `json:"collection"`
}

type scMedia struct {
	URL string `json:"url"`
}

func (s *SoundCloud) params(extra url.Values) (url.Values, error) {
	if s.clientID == "" {
		return nil, fmt.Errorf("%w: soundcloud client id not configured", ErrProvider)
	}
	if extra == nil {
		extra = url.Values{}
	}
	extra.Set("client_id", s.clientID)
	return extra, nil
}

func (s *SoundCloud) Search(ctx context.Context, query string) ([]model.Track, error) {
	params, err := s.params(url.Values{"q": {query}, "limit": {soundCloudSearchLimit}})
	if err != nil {
		return nil, err
	}
	resp, err := getJSON[scSearchResponse](ctx, s.fetch, s.apiURL+"/search/tracks", params, nil)
	if err != nil {
		return nil, fmt.Errorf("soundcloud search: %w", err)
	}

	tracks := make([]model.Track, 0, len(resp.Collection))
	for _, t := range resp.Collection {
		tracks = append(tracks, model.Track{
			ID:        strconv.FormatInt(t.ID, 10),
			Title:     t.Title,
			Artist:    t.User.Username,
			Thumbnail: t.ArtworkURL,
			Duration:  t.Duration / 1000,
			Source:    model.SourceSoundCloud,
			URL:       t.PermalinkURL,
		})
	}
	return tracks, nil
}

// ResolveStreamURL loads the track, picks its progressive transcoding and asks
// SoundCloud for the signed media URL.
func (s *SoundCloud) ResolveStreamURL(ctx context.Context, id string) (string, error) {
	params, err := s.params(nil)
	if err != nil {
		return "", err
	}
	t, err := getJSON[scTrack](ctx, s.fetch, s.apiURL+"/tracks/"+url.PathEscape(id), params, nil)
	if err != nil {
		return "", fmt.Errorf("soundcloud track %s: %w", id, err)
	}

	var transcoding string
	for _, tc := range t.Media.Transcodings {
		if tc.Format.Protocol == "progressive" {
			transcoding = tc.URL
			break
		}
	}
	if transcoding == "" {
		return "", fmt.Errorf("%w: soundcloud track %s has no progressive stream", ErrProvider, id)
	}

	media, err := getJSON(ctx, s.fetch, transcoding, params, func(m *scMedia) error {
		if m.URL == "" {
			return fmt.Errorf("%w: soundcloud returned an empty media url", ErrProvider)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("soundcloud media %s: %w", id, err)
	}
	return media.URL, nil
}
