package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tunemux/cache"
	"tunemux/config"
	"tunemux/model"
)

func newFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return NewFetcher(cache.NewMemory(), 2*time.Second)
}

func serveJSON(t *testing.T, routes map[string]string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRegistryOrderAndFilter(t *testing.T) {
	f := newFetcher(t)
	reg := NewRegistry(
		NewAudius(f, "http://a", "app"),
		NewNetease(f, "http://n", false),
	)
	reg.Register(NewAudius(f, "http://a2", "app"))

	names := reg.Names()
	if len(names) != 2 || names[0] != model.SourceAudius || names[1] != model.SourceNetease {
		t.Fatalf("names = %v", names)
	}
	if got := reg.Filter("all"); len(got) != 2 {
		t.Errorf("all = %d providers", len(got))
	}
	if got := reg.Filter("netease"); len(got) != 1 || got[0].Name() != model.SourceNetease {
		t.Errorf("netease filter = %v", got)
	}
	if got := reg.Filter("youtube"); len(got) != 0 {
		t.Errorf("unregistered filter = %v", got)
	}
}

func TestYouTubeSearchAndResolve(t *testing.T) {
	srv, _ := serveJSON(t, map[string]string{
		"/search": `{"items":[
			{"url":"/watch?v=abc","type":"stream","title":"Song","uploaderName":"Band - Topic","thumbnail":"http://t/1.jpg","duration":200},
			{"url":"/channel/UC1","type":"channel","title":"Band"}
		]}`,
		"/streams/abc": `{"audioStreams":[
			{"url":"http://cdn/low","bitrate":64000},
			{"url":"http://cdn/high","bitrate":160000}
		]}`,
		"/trending": `[{"url":"/watch?v=t1","title":"Hot","uploaderName":"X","duration":100}]`,
	})
	yt := NewYouTube(newFetcher(t), srv.URL, "US")
	ctx := context.Background()

	tracks, err := yt.Search(ctx, "song")
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatalf("tracks = %+v", tracks)
	}
	got := tracks[0]
	if got.ID != "abc" || got.Artist != "Band" || got.Duration != 200 || got.Source != model.SourceYouTube {
		t.Errorf("track = %+v", got)
	}

	u, err := yt.ResolveStreamURL(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if u != "http://cdn/high" {
		t.Errorf("stream = %q, want highest bitrate", u)
	}

	trending, err := yt.Trending(ctx)
	if err != nil || len(trending) != 1 || trending[0].ID != "t1" {
		t.Errorf("trending = %+v, %v", trending, err)
	}

	if fb := yt.FallbackURL("abc"); fb != "https://www.youtube.com/embed/abc?autoplay=1" {
		t.Errorf("fallback = %q", fb)
	}
}

func TestYouTubeSecondaryResolver(t *testing.T) {
	srv, _ := serveJSON(t, map[string]string{
		"/streams/abc": `{"audioStreams":[]}`,
	})
	var called string
	yt := NewYouTube(newFetcher(t), srv.URL, "US", WithResolver(func(ctx context.Context, watch string) (string, error) {
		called = watch
		return "http://ytdlp/audio", nil
	}))

	u, err := yt.ResolveStreamURL(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	if u != "http://ytdlp/audio" || called != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("u = %q, called = %q", u, called)
	}
}

func TestSoundCloudResolveProgressive(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("client_id") != "cid" {
			http.Error(w, "no client id", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/search/tracks":
			fmt.Fprint(w, `{"collection":[{"id":7,"title":"Wave","duration":125000,"permalink_url":"https://sc/wave","user":{"username":"dj"}}]}`)
		case "/tracks/7":
			fmt.Fprintf(w, `{"id":7,"media":{"transcodings":[
				{"url":"%[1]s/media/hls","format":{"protocol":"hls"}},
				{"url":"%[1]s/media/progressive","format":{"protocol":"progressive"}}
			]}}`, srvURL)
		case "/media/progressive":
			fmt.Fprint(w, `{"url":"https://cf-media/7.mp3"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	sc := NewSoundCloud(newFetcher(t), srv.URL, "cid")
	ctx := context.Background()

	tracks, err := sc.Search(ctx, "wave")
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0].ID != "7" || tracks[0].Duration != 125 || tracks[0].Artist != "dj" {
		t.Fatalf("tracks = %+v", tracks)
	}

	u, err := sc.ResolveStreamURL(ctx, "7")
	if err != nil {
		t.Fatal(err)
	}
	if u != "https://cf-media/7.mp3" {
		t.Errorf("stream = %q", u)
	}
}

func TestSoundCloudWithoutClientID(t *testing.T) {
	sc := NewSoundCloud(newFetcher(t), "http://unused", "")
	if _, err := sc.Search(context.Background(), "x"); !errors.Is(err, ErrProvider) {
		t.Errorf("err = %v, want ErrProvider", err)
	}
}

func TestAudius(t *testing.T) {
	srv, _ := serveJSON(t, map[string]string{
		"/v1/tracks/search":   `{"data":[{"id":"D1","title":"Drift","duration":240,"permalink":"/u/drift","user":{"name":"Ana"},"artwork":{"150x150":"http://art/s"}}]}`,
		"/v1/tracks/trending": `{"data":[{"id":"T1","title":"Top","user":{"name":"B"}}]}`,
	})
	a := NewAudius(newFetcher(t), srv.URL+"/", "tunemux")
	ctx := context.Background()

	tracks, err := a.Search(ctx, "drift")
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0].Thumbnail != "http://art/s" || tracks[0].URL != "https://audius.co/u/drift" {
		t.Fatalf("tracks = %+v", tracks)
	}

	u, _ := a.ResolveStreamURL(ctx, "D1")
	if want := srv.URL + "/v1/tracks/D1/stream?app_name=tunemux"; u != want {
		t.Errorf("stream = %q, want %q", u, want)
	}

	trending, err := a.Trending(ctx)
	if err != nil || len(trending) != 1 {
		t.Errorf("trending = %+v, %v", trending, err)
	}
}

func TestNetease(t *testing.T) {
	srv, _ := serveJSON(t, map[string]string{
		"/search":      `{"code":200,"result":{"songs":[{"id":33894312,"name":"情非得已","artists":[{"name":"庾澄庆"}],"album":{"picUrl":"http://p/1.jpg"},"duration":269000}]}}`,
		"/song/url/v1": `{"code":200,"data":[{"id":33894312,"url":"http://m801.music.126.net/x.mp3"}]}`,
		"/top/song":    `{"code":200,"data":[{"id":1,"name":"A","artists":[{"name":"X"},{"name":"Y"}]}]}`,
	})
	n := NewNetease(newFetcher(t), srv.URL, false)
	ctx := context.Background()

	tracks, err := n.Search(ctx, "情非得已")
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0].ID != "33894312" || tracks[0].Duration != 269 {
		t.Fatalf("tracks = %+v", tracks)
	}

	u, err := n.ResolveStreamURL(ctx, "33894312")
	if err != nil || !strings.HasSuffix(u, "x.mp3") {
		t.Errorf("stream = %q, %v", u, err)
	}

	trending, err := n.Trending(ctx)
	if err != nil || len(trending) != 1 || trending[0].Artist != "X, Y" {
		t.Errorf("trending = %+v, %v", trending, err)
	}
}

func TestNeteaseRestrictedSong(t *testing.T) {
	srv, _ := serveJSON(t, map[string]string{
		"/song/url/v1": `{"code":200,"data":[{"id":1,"url":""}]}`,
	})
	n := NewNetease(newFetcher(t), srv.URL, false)
	if _, err := n.ResolveStreamURL(context.Background(), "1"); !errors.Is(err, ErrProvider) {
		t.Errorf("err = %v, want ErrProvider", err)
	}
}

func TestFetcherUsesCache(t *testing.T) {
	srv, hits := serveJSON(t, map[string]string{
		"/v1/tracks/search": `{"data":[]}`,
	})
	a := NewAudius(newFetcher(t), srv.URL, "app")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := a.Search(ctx, "same"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := a.Search(ctx, "other"); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Errorf("upstream hits = %d, want 2", n)
	}
}

func TestFetcherStatusError(t *testing.T) {
	srv, _ := serveJSON(t, nil)
	a := NewAudius(newFetcher(t), srv.URL, "app")
	_, err := a.Search(context.Background(), "x")
	if !errors.Is(err, ErrProvider) {
		t.Errorf("err = %v, want ErrProvider", err)
	}
}

// serveSequence answers every request with the next body in order, repeating
// the last one once the list is exhausted.
func serveSequence(t *testing.T, bodies ...string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&hits, 1))
		fmt.Fprint(w, bodies[min(n, len(bodies))-1])
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetcherDoesNotCacheUndecodableBody(t *testing.T) {
	srv, hits := serveSequence(t,
		`<html>rate limited</html>`,
		`{"data":[{"id":"a1","title":"Song","user":{"name":"X"}}]}`,
	)
	a := NewAudius(newFetcher(t), srv.URL, "app")
	ctx := context.Background()

	if _, err := a.Search(ctx, "song"); !errors.Is(err, ErrProvider) {
		t.Fatalf("first search err = %v, want ErrProvider", err)
	}
	tracks, err := a.Search(ctx, "song")
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != "a1" {
		t.Errorf("tracks = %+v", tracks)
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Errorf("upstream hits = %d, want 2", n)
	}

	if _, err := a.Search(ctx, "song"); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Errorf("good body not cached: upstream hits = %d", n)
	}
}

func TestNeteaseErrorCodeIsNotCached(t *testing.T) {
	srv, hits := serveSequence(t,
		`{"code":-460,"message":"Cheating"}`,
		`{"code":200,"result":{"songs":[{"id":7,"name":"A","artists":[{"name":"X"}]}]}}`,
	)
	n := NewNetease(newFetcher(t), srv.URL, false)
	ctx := context.Background()

	if _, err := n.Search(ctx, "a"); !errors.Is(err, ErrProvider) {
		t.Fatalf("first search err = %v, want ErrProvider", err)
	}
	tracks, err := n.Search(ctx, "a")
	if err != nil || len(tracks) != 1 || tracks[0].ID != "7" {
		t.Fatalf("second search = %+v, %v", tracks, err)
	}
	if h := atomic.LoadInt32(hits); h != 2 {
		t.Errorf("upstream hits = %d, want 2", h)
	}
}

func TestYouTubeStreamsWithoutAudioAreNotCached(t *testing.T) {
	srv, hits := serveSequence(t,
		`{"audioStreams":[]}`,
		`{"audioStreams":[{"url":"http://cdn/a","bitrate":128000}]}`,
	)
	yt := NewYouTube(newFetcher(t), srv.URL, "US")
	ctx := context.Background()

	if _, err := yt.ResolveStreamURL(ctx, "abc"); !errors.Is(err, ErrProvider) {
		t.Fatalf("first resolve err = %v, want ErrProvider", err)
	}
	u, err := yt.ResolveStreamURL(ctx, "abc")
	if err != nil || u != "http://cdn/a" {
		t.Fatalf("second resolve = %q, %v", u, err)
	}
	if h := atomic.LoadInt32(hits); h != 2 {
		t.Errorf("upstream hits = %d, want 2", h)
	}
}

func TestFromConfigHonoursOrder(t *testing.T) {
	cfg := &config.Config{
		EnabledSources:  []string{"netease", "audius", "bogus"},
		ProviderTimeout: time.Second,
		AudiusHost:      "http://a",
		NeteaseAPIURL:   "http://n",
	}
	reg := FromConfig(cfg, cache.NewMemory())
	names := reg.Names()
	if len(names) != 2 || names[0] != model.SourceNetease || names[1] != model.SourceAudius {
		t.Errorf("names = %v", names)
	}
}
