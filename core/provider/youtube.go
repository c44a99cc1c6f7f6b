package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"tunemux/logger"
	"tunemux/model"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

const youtubeEmbedURL = "https://www.youtube.com/embed/%s?autoplay=1"

// URLResolver turns a watch URL into a direct audio URL.
type URLResolver func(ctx context.Context, watchURL string) (string, error)

// YouTube searches and resolves through a Piped API instance. yt-dlp can be
// enabled as a second resolver when Piped has no audio stream for a video.
type YouTube struct {
	fetch    *Fetcher
	apiURL   string
	region   string
	resolver URLResolver
	log      *zap.Logger
}

type YouTubeOption func(*YouTube)

// WithYTDLP enables yt-dlp resolution.
func WithYTDLP() YouTubeOption {
	return func(y *YouTube) {
		y.resolver = resolveWithYTDLP
	}
}

// WithResolver installs a custom secondary resolver.
func WithResolver(r URLResolver) YouTubeOption {
	return func(y *YouTube) {
		y.resolver = r
	}
}

func NewYouTube(fetch *Fetcher, apiURL, region string, opts ...YouTubeOption) *YouTube {
	y := &YouTube{
		fetch:  fetch,
		apiURL: strings.TrimRight(apiURL, "/"),
		region: region,
		log:    logger.Named("provider.youtube"),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *YouTube) Name() model.Source {
	return model.SourceYouTube
}

type pipedItem struct {
	URL          string `json:"url"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	UploaderName string `json:"uploaderName"`
	Thumbnail    string `json:"thumbnail"`
	Duration     int    `json:"duration"`
}

type pipedSearchResponse struct {
	Items []pipedItem `json:"items"`
}

type pipedStreams struct {
	AudioStreams []struct {
		URL      string `json:"url"`
		Bitrate  int    `json:"bitrate"`
		MimeType string `json:"mimeType"`
	} `json:"audioStreams"`
}

// best returns the highest-bitrate audio stream URL, or "" if none is usable.
func (p *pipedStreams) best() string {
	best, bitrate := "", -1
	for _, s := range p.AudioStreams {
		if s.URL != "" && s.Bitrate > bitrate {
			best, bitrate = s.URL, s.Bitrate
		}
	}
	return best
}

func (y *YouTube) Search(ctx context.Context, query string) ([]model.Track, error) {
	params := url.Values{"q": {query}, "filter": {"music_songs"}}
	resp, err := getJSON[pipedSearchResponse](ctx, y.fetch, y.apiURL+"/search", params, nil)
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	return y.tracks(resp.Items), nil
}

func (y *YouTube) Trending(ctx context.Context) ([]model.Track, error) {
	params := url.Values{"region": {y.region}}
	items, err := getJSON[[]pipedItem](ctx, y.fetch, y.apiURL+"/trending", params, nil)
	if err != nil {
		return nil, fmt.Errorf("youtube trending: %w", err)
	}
	return y.tracks(*items), nil
}

func (y *YouTube) tracks(items []pipedItem) []model.Track {
	tracks := make([]model.Track, 0, len(items))
	for _, it := range items {
		if it.Type != "" && it.Type != "stream" {
			continue
		}
		id := videoID(it.URL)
		if id == "" {
			continue
		}
		tracks = append(tracks, model.Track{
			ID:        id,
			Title:     it.Title,
			Artist:    strings.TrimSuffix(it.UploaderName, " - Topic"),
			Thumbnail: it.Thumbnail,
			Duration:  it.Duration,
			Source:    model.SourceYouTube,
			URL:       watchURL(id),
		})
	}
	return tracks
}

// ResolveStreamURL picks the highest-bitrate audio stream Piped reports, then
// tries the secondary resolver if one is configured.
func (y *YouTube) ResolveStreamURL(ctx context.Context, id string) (string, error) {
	streams, err := getJSON(ctx, y.fetch, y.apiURL+"/streams/"+url.PathEscape(id), nil, func(p *pipedStreams) error {
		if p.best() == "" {
			return fmt.Errorf("%w: no audio streams for %s", ErrProvider, id)
		}
		return nil
	})
	if err == nil {
		return streams.best(), nil
	}

	if y.resolver == nil {
		return "", fmt.Errorf("youtube resolve: %w", err)
	}
	y.log.Debug("piped resolution failed, trying secondary resolver",
		logger.String("id", id), logger.ErrorField(err))
	u, rerr := y.resolver(ctx, watchURL(id))
	if rerr != nil {
		return "", fmt.Errorf("youtube resolve %s: %w", id, rerr)
	}
	return u, nil
}

// FallbackURL is the embeddable player page for the video.
func (y *YouTube) FallbackURL(id string) string {
	return fmt.Sprintf(youtubeEmbedURL, id)
}

func watchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

func videoID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	return ""
}

func resolveWithYTDLP(ctx context.Context, watch string) (string, error) {
	res, err := ytdlp.New().
		Format("bestaudio").
		NoPlaylist().
		GetURL().
		Run(ctx, watch)
	if err != nil {
		return "", fmt.Errorf("%w: yt-dlp: %w", ErrProvider, err)
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "http") {
			return line, nil
		}
	}
	return "", fmt.Errorf("%w: yt-dlp printed no url", ErrProvider)
}
