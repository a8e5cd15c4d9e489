package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSearchURL = "https://html.duckduckgo.com/html/"
	DefaultLLMURL    = "https://api.groq.com/openai/v1"
	DefaultLLMModel  = "openai/gpt-oss-20b"
	DefaultTTSURL    = "https://icrisstudio1.pythonanywhere.com/api/tts"
)

type Config struct {
	LLM       LLMConfig
	Search    SearchConfig
	Scraper   ScraperConfig
	Storage   StorageConfig
	S3        S3Config
	Proxy     ProxyConfig
	Voice     VoiceConfig
	Scheduler SchedulerConfig

	HTTPAddr       string
	RequestTimeout time.Duration
	LogLevel       string
	LogFile        string

	Sites     []*SiteConfig
	Watchlist []WatchEntry
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Configured reports whether a model credential is present.
func (c LLMConfig) Configured() bool {
	return c.APIKey != ""
}

type SearchConfig struct {
	URL     string
	Timeout time.Duration
}

type ScraperConfig struct {
	Timeout        time.Duration
	Concurrency    int
	BrowserEnabled bool
}

type StorageConfig struct {
	DBPath      string
	DatabaseURL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether report archiving to S3 was configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type ProxyConfig struct {
	URL string
}

type VoiceConfig struct {
	TTSURL string
	Voice  string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

// SiteConfig describes one allow-listed listing host.
type SiteConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Host        string `yaml:"host"`
	Fetcher     string `yaml:"fetcher"`      // http, browser
	FallbackURL string `yaml:"fallback_url"` // {location} is replaced with the escaped location
}

// WatchEntry is a saved search run by the scheduler.
type WatchEntry struct {
	Name  string `yaml:"name"`
	Query string `yaml:"query"`
	Cron  string `yaml:"cron"`
}

type watchlistFile struct {
	Searches []WatchEntry `yaml:"searches"`
}

var (
	sitesDir      = "config/sites"
	watchlistPath = "config/watchlist.yaml"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GROQ_API_KEY")
	}

	cfg := &Config{
		LLM: LLMConfig{
			APIKey:  apiKey,
			BaseURL: getEnv("LLM_BASE_URL", DefaultLLMURL),
			Model:   getEnv("LLM_MODEL", DefaultLLMModel),
			Timeout: getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Search: SearchConfig{
			URL:     getEnv("SEARCH_URL", DefaultSearchURL),
			Timeout: 10 * time.Second,
		},
		Scraper: ScraperConfig{
			Timeout:        15 * time.Second,
			Concurrency:    getEnvInt("SCRAPE_CONCURRENCY", 4),
			BrowserEnabled: os.Getenv("BROWSER_ENABLED") == "true",
		},
		Storage: StorageConfig{
			DBPath:      getEnv("DB_PATH", "deal_scout.db"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Voice: VoiceConfig{
			TTSURL: getEnv("TTS_URL", DefaultTTSURL),
			Voice:  getEnv("TTS_VOICE", "Justin"),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("WATCH_CRON"),
			Interval: getEnvDuration("WATCH_INTERVAL", 0),
		},
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 3*time.Minute),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", "deal_scout.log"),
	}

	if cfg.Scraper.Concurrency < 1 {
		cfg.Scraper.Concurrency = 1
	}

	sites, err := LoadSites(sitesDir)
	if err != nil {
		return nil, err
	}
	cfg.Sites = sites

	watchlist, err := LoadWatchlist(watchlistPath)
	if err != nil {
		return nil, err
	}
	cfg.Watchlist = watchlist

	return cfg, nil
}

// LoadSites reads one site per YAML file in dir, in file name order.
// A missing or empty directory yields DefaultSites.
func LoadSites(dir string) ([]*SiteConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSites(), nil
		}
		return nil, err
	}

	var sites []*SiteConfig
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return nil, err
		}
		if site.Host == "" {
			continue
		}
		if site.Fetcher == "" {
			site.Fetcher = "http"
		}
		sites = append(sites, &site)
	}

	if len(sites) == 0 {
		return DefaultSites(), nil
	}
	return sites, nil
}

func LoadWatchlist(path string) ([]WatchEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var wl watchlistFile
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, err
	}
	return wl.Searches, nil
}

// DefaultSites is the built-in allow-list. Order matters: fallback URLs are
// synthesized in this order.
func DefaultSites() []*SiteConfig {
	return []*SiteConfig{
		{ID: "zillow", Name: "Zillow", Host: "zillow.com", Fetcher: "http", FallbackURL: "https://www.zillow.com/homes/{location}_rb/"},
		{ID: "realtor", Name: "Realtor.com", Host: "realtor.com", Fetcher: "http", FallbackURL: "https://www.realtor.com/realestateandhomes-search/{location}"},
		{ID: "redfin", Name: "Redfin", Host: "redfin.com", Fetcher: "http", FallbackURL: "https://www.redfin.com/city/{location}"},
		{ID: "trulia", Name: "Trulia", Host: "trulia.com", Fetcher: "http"},
		{ID: "homes", Name: "Homes.com", Host: "homes.com", Fetcher: "http"},
		{ID: "apartments", Name: "Apartments.com", Host: "apartments.com", Fetcher: "http"},
		{ID: "rent", Name: "Rent.com", Host: "rent.com", Fetcher: "http"},
		{ID: "apartmentfinder", Name: "ApartmentFinder", Host: "apartmentfinder.com", Fetcher: "http"},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
