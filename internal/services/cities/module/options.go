package module

import (
	"time"

	"smogwatch/internal/adapters/upstream/pollution"
	"smogwatch/internal/adapters/upstream/wiki"
	"smogwatch/internal/platform/config"
)

// Config controls the aggregation loop and both upstream clients
type Config struct {
	Pollution pollution.Options
	Wiki      wiki.Options

	FetchLimit  int
	SnapshotTTL time.Duration
	SnapshotCap int
}

// FromConfig reads CITIES_*, POLLUTION_* and WIKI_* values from process config/env
func FromConfig(cfg config.Conf) Config {
	cc := cfg.Prefix("CITIES_")
	pc := cfg.Prefix("POLLUTION_")
	wc := cfg.Prefix("WIKI_")
	return Config{
		Pollution: pollution.Options{
			BaseURL:    pc.MayString("BASE_URL", ""),
			Username:   pc.MayString("USERNAME", ""),
			Password:   pc.MayString("PASSWORD", ""),
			UserAgent:  pc.MayString("UA", "smogwatch-aggregator"),
			Timeout:    pc.MayDuration("TIMEOUT", 10*time.Second),
			MaxRetries: pc.MayInt("MAX_RETRIES", 5),
			RetryBase:  pc.MayDuration("RETRY_BASE", 500*time.Millisecond),
			RateLimit:  pc.MayInt("RATE_LIMIT", 5),
			RateWindow: pc.MayDuration("RATE_WINDOW", 10*time.Second),
			RateMargin: pc.MayDuration("RATE_MARGIN", 50*time.Millisecond),
			PageTTL:    pc.MayDuration("PAGE_TTL", 5*time.Minute),
			PageCap:    pc.MayInt("PAGE_CAP", 128),
		},
		Wiki: wiki.Options{
			BaseURL:     wc.MayString("BASE_URL", ""),
			UserAgent:   wc.MayString("UA", "smogwatch-aggregator"),
			Timeout:     wc.MayDuration("TIMEOUT", 10*time.Second),
			BatchSize:   wc.MayInt("BATCH_SIZE", 20),
			Concurrency: wc.MayInt("CONCURRENCY", 3),
			Pacing:      wc.MayDuration("PACING", 250*time.Millisecond),
			MaxRetries:  wc.MayInt("MAX_RETRIES", 3),
			RetryBase:   wc.MayDuration("RETRY_BASE", 500*time.Millisecond),
			DescTTL:     wc.MayDuration("DESC_TTL", 24*time.Hour),
			NegTTL:      wc.MayDuration("NEG_TTL", 5*time.Minute),
			DescCap:     wc.MayInt("DESC_CAP", 4096),
		},
		FetchLimit:  cc.MayInt("FETCH_LIMIT", 50),
		SnapshotTTL: cc.MayDuration("SNAPSHOT_TTL", 10*time.Minute),
		SnapshotCap: cc.MayInt("SNAPSHOT_CAP", 8),
	}
}
