package provider

import (
	"tunemux/cache"
	"tunemux/config"
	"tunemux/logger"
	"tunemux/model"
)

// FromConfig registers the enabled sources in the order SOURCES lists them.
func FromConfig(cfg *config.Config, c *cache.ResponseCache) *Registry {
	fetch := NewFetcher(c, cfg.ProviderTimeout)
	reg := NewRegistry()

	for _, name := range cfg.EnabledSources {
		switch model.Source(name) {
		case model.SourceYouTube:
			var opts []YouTubeOption
			if cfg.YTDLPEnabled {
				opts = append(opts, WithYTDLP())
			}
			reg.Register(NewYouTube(fetch, cfg.PipedAPIURL, cfg.PipedRegion, opts...))
		case model.SourceSoundCloud:
			reg.Register(NewSoundCloud(fetch, cfg.SoundCloudAPIURL, cfg.SoundCloudID))
		case model.SourceAudius:
			reg.Register(NewAudius(fetch, cfg.AudiusHost, cfg.AudiusAppName))
		case model.SourceNetease:
			reg.Register(NewNetease(fetch, cfg.NeteaseAPIURL, cfg.NeteaseT2S))
		default:
			logger.Warn("ignoring unknown source", logger.String("source", name))
		}
	}

	logger.Info("providers registered", logger.Int("count", len(reg.Names())))
	return reg
}
