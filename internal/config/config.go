package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceKind tells the parser which dialect a source endpoint serves.
// "auto" lets the parser sniff the #EXTM3U signature.
type SourceKind string

const (
	KindAuto SourceKind = "auto"
	KindTxt  SourceKind = "txt"
	KindM3U  SourceKind = "m3u"
)

// Source is one configured remote playlist endpoint.
type Source struct {
	URL  string     `yaml:"url"`
	Kind SourceKind `yaml:"kind"`
}

// Config holds every knob the pipeline needs. It is built once at startup
// (file + env overrides) and passed around as an immutable value; no component
// reads the process environment after Load returns.
type Config struct {
	Sources      []Source `yaml:"sources"`
	TemplatePath string   `yaml:"templatePath"`
	OutputDir    string   `yaml:"outputDirectory"`

	MaxSourcesPerChannel int           `yaml:"maxSourcesPerChannel"`
	RequestTimeout       time.Duration `yaml:"requestTimeout"`
	RetryTimes           int           `yaml:"retryTimes"`
	RetryDelay           time.Duration `yaml:"retryDelay"`
	FetchConcurrency     int           `yaml:"fetchConcurrency"`

	ProbeConcurrency int           `yaml:"probeConcurrency"`
	ProbeRateLimit   float64       `yaml:"probeRateLimit"` // requests/sec across all probe workers; 0 = unlimited
	ProbeStrategy    string        `yaml:"probeStrategy"`  // "throughput" | "decode"
	ProbeByteBudget  int64         `yaml:"probeByteBudget"`
	MinScore         float64       `yaml:"minAcceptableScore"`
	DecodeTimeout    time.Duration `yaml:"decodeTimeout"`
	FFmpegPath       string        `yaml:"ffmpegPath"`

	ProxyURL string `yaml:"proxyURL"` // http://, https:// or socks5://; "" = direct

	CachePath string        `yaml:"cachePath"` // sqlite probe cache; "" = disabled
	CacheTTL  time.Duration `yaml:"cacheTTL"`

	MetricsAddr string `yaml:"metricsAddr"` // e.g. ":9105"; "" = no listener
}

// Default returns a Config with all defaults applied and no sources.
func Default() *Config {
	return &Config{
		OutputDir:            ".",
		MaxSourcesPerChannel: 8,
		RequestTimeout:       15 * time.Second,
		RetryTimes:           3,
		RetryDelay:           2 * time.Second,
		FetchConcurrency:     4,
		ProbeConcurrency:     24,
		ProbeStrategy:        "throughput",
		ProbeByteBudget:      512 << 10,
		DecodeTimeout:        12 * time.Second,
		FFmpegPath:           "ffmpeg",
		CacheTTL:             4 * time.Hour,
	}
}

// Load builds the effective Config: defaults, then the YAML file at path
// (skipped when path is "" or the file does not exist), then IPTV_FORGE_*
// environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if s := os.Getenv("IPTV_FORGE_SOURCES"); s != "" {
		c.Sources = ParseSourceList(s)
	}
	c.TemplatePath = getEnv("IPTV_FORGE_TEMPLATE", c.TemplatePath)
	c.OutputDir = getEnv("IPTV_FORGE_OUTPUT_DIR", c.OutputDir)
	c.MaxSourcesPerChannel = getEnvInt("IPTV_FORGE_MAX_SOURCES_PER_CHANNEL", c.MaxSourcesPerChannel)
	c.RequestTimeout = getEnvDuration("IPTV_FORGE_REQUEST_TIMEOUT", c.RequestTimeout)
	c.RetryTimes = getEnvInt("IPTV_FORGE_RETRY_TIMES", c.RetryTimes)
	c.RetryDelay = getEnvDuration("IPTV_FORGE_RETRY_DELAY", c.RetryDelay)
	c.FetchConcurrency = getEnvInt("IPTV_FORGE_FETCH_CONCURRENCY", c.FetchConcurrency)
	c.ProbeConcurrency = getEnvInt("IPTV_FORGE_PROBE_CONCURRENCY", c.ProbeConcurrency)
	c.ProbeRateLimit = getEnvFloat("IPTV_FORGE_PROBE_RATE_LIMIT", c.ProbeRateLimit)
	c.ProbeStrategy = getEnv("IPTV_FORGE_PROBE_STRATEGY", c.ProbeStrategy)
	c.ProbeByteBudget = int64(getEnvInt("IPTV_FORGE_PROBE_BYTE_BUDGET", int(c.ProbeByteBudget)))
	c.MinScore = getEnvFloat("IPTV_FORGE_MIN_SCORE", c.MinScore)
	c.DecodeTimeout = getEnvDuration("IPTV_FORGE_DECODE_TIMEOUT", c.DecodeTimeout)
	c.FFmpegPath = getEnv("IPTV_FORGE_FFMPEG", c.FFmpegPath)
	c.ProxyURL = getEnv("IPTV_FORGE_PROXY_URL", c.ProxyURL)
	c.CachePath = getEnv("IPTV_FORGE_CACHE_PATH", c.CachePath)
	c.CacheTTL = getEnvDuration("IPTV_FORGE_CACHE_TTL", c.CacheTTL)
	c.MetricsAddr = getEnv("IPTV_FORGE_METRICS_ADDR", c.MetricsAddr)
}

func (c *Config) validate() error {
	if c.MaxSourcesPerChannel <= 0 {
		c.MaxSourcesPerChannel = 8
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.RetryTimes < 0 {
		c.RetryTimes = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 4
	}
	if c.ProbeConcurrency <= 0 {
		c.ProbeConcurrency = 24
	}
	if c.ProbeByteBudget <= 0 {
		c.ProbeByteBudget = 512 << 10
	}
	if c.DecodeTimeout <= 0 {
		c.DecodeTimeout = 12 * time.Second
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	switch c.ProbeStrategy {
	case "throughput", "decode":
	case "":
		c.ProbeStrategy = "throughput"
	default:
		return fmt.Errorf("config: unknown probeStrategy %q (want throughput or decode)", c.ProbeStrategy)
	}
	for i, s := range c.Sources {
		if s.URL == "" {
			return fmt.Errorf("config: sources[%d] has empty url", i)
		}
		switch s.Kind {
		case KindAuto, KindTxt, KindM3U:
		case "":
			c.Sources[i].Kind = KindAuto
		default:
			return fmt.Errorf("config: sources[%d] has unknown kind %q", i, s.Kind)
		}
	}
	return nil
}

// ParseSourceList parses "url,url,..." or "url=kind,url=kind,...", the form
// used by IPTV_FORGE_SOURCES and the -sources flag.
func ParseSourceList(s string) []Source {
	parts := strings.Split(s, ",")
	out := make([]Source, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kind := KindAuto
		if i := strings.LastIndex(p, "="); i > 0 {
			switch SourceKind(p[i+1:]) {
			case KindTxt:
				kind, p = KindTxt, p[:i]
			case KindM3U:
				kind, p = KindM3U, p[:i]
			case KindAuto:
				kind, p = KindAuto, p[:i]
			}
		}
		out = append(out, Source{URL: p, Kind: kind})
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
