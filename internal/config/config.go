// config.go - Client configuration management

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables recognized on top of the config file.
const (
	EnvAPIBase              = "API_BASE"
	EnvRefreshInterval      = "REFRESH_INTERVAL"
	EnvEnableSemanticSearch = "ENABLE_SEMANTIC_SEARCH"
	EnvMaxSearchResults     = "MAX_SEARCH_RESULTS"
	EnvChartColors          = "CHART_COLORS"
	EnvStoreBackend         = "STORE_BACKEND"
)

// Store backends.
const (
	BackendLevelDB = "leveldb"
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
)

type ConfigTransport struct {
	APIBase               string `toml:"api_base" yaml:"api_base"`
	HealthTimeoutMs       int    `toml:"health_timeout_ms" yaml:"health_timeout_ms"`
	DataTimeoutMs         int    `toml:"data_timeout_ms" yaml:"data_timeout_ms"`
	FileContentsTimeoutMs int    `toml:"file_contents_timeout_ms" yaml:"file_contents_timeout_ms"`
	Retries               int    `toml:"retries" yaml:"retries"`
	SpacingMs             int    `toml:"spacing_ms" yaml:"spacing_ms"`
}

func (c ConfigTransport) HealthTimeout() time.Duration {
	return time.Duration(c.HealthTimeoutMs) * time.Millisecond
}

func (c ConfigTransport) DataTimeout() time.Duration {
	return time.Duration(c.DataTimeoutMs) * time.Millisecond
}

func (c ConfigTransport) FileContentsTimeout() time.Duration {
	return time.Duration(c.FileContentsTimeoutMs) * time.Millisecond
}

func (c ConfigTransport) Spacing() time.Duration {
	return time.Duration(c.SpacingMs) * time.Millisecond
}

type ConfigIngest struct {
	PageSize          int `toml:"page_size" yaml:"page_size"`
	RecentWindowHours int `toml:"recent_window_hours" yaml:"recent_window_hours"`
	MaxBackfillPages  int `toml:"max_backfill_pages" yaml:"max_backfill_pages"`
	RefreshIntervalMs int `toml:"refresh_interval_ms" yaml:"refresh_interval_ms"`
	AuxFeedLimit      int `toml:"aux_feed_limit" yaml:"aux_feed_limit"`
	FileContentsLimit int `toml:"file_contents_limit" yaml:"file_contents_limit"`
}

func (c ConfigIngest) RecentWindow() time.Duration {
	return time.Duration(c.RecentWindowHours) * time.Hour
}

func (c ConfigIngest) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMs) * time.Millisecond
}

type ConfigSearch struct {
	EnableSemantic  bool `toml:"enable_semantic" yaml:"enable_semantic"`
	MaxResults      int  `toml:"max_results" yaml:"max_results"`
	CacheSize       int  `toml:"cache_size" yaml:"cache_size"`
	CacheTTLSeconds int  `toml:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
}

type ConfigNavigator struct {
	MaxNodes            int     `toml:"max_nodes" yaml:"max_nodes"`
	EdgeThreshold       float64 `toml:"edge_threshold" yaml:"edge_threshold"`
	LatentCacheTTLHours int     `toml:"latent_cache_ttl_hours" yaml:"latent_cache_ttl_hours"`
	CanvasWidth         float64 `toml:"canvas_width" yaml:"canvas_width"`
	CanvasHeight        float64 `toml:"canvas_height" yaml:"canvas_height"`
	Seed                int64   `toml:"seed" yaml:"seed"`
	// IgnorePatterns are gitignore-style patterns excluded from the file set.
	IgnorePatterns []string `toml:"ignore_patterns" yaml:"ignore_patterns"`
}

func (c ConfigNavigator) LatentCacheTTL() time.Duration {
	return time.Duration(c.LatentCacheTTLHours) * time.Hour
}

type ConfigView struct {
	ChartColors []string `toml:"chart_colors" yaml:"chart_colors"`
}

type ConfigWorker struct {
	Concurrency        int `toml:"concurrency" yaml:"concurrency"`
	TaskTimeoutSeconds int `toml:"task_timeout_seconds" yaml:"task_timeout_seconds"`
}

func (c ConfigWorker) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSeconds) * time.Second
}

type ConfigStore struct {
	Backend string `toml:"backend" yaml:"backend"`
	Dir     string `toml:"dir" yaml:"dir"`
}

type ConfigServer struct {
	Addr       string  `toml:"addr" yaml:"addr"`
	RateLimit  float64 `toml:"rate_limit" yaml:"rate_limit"`
	RateBurst  int     `toml:"rate_burst" yaml:"rate_burst"`
	CORSOrigin string  `toml:"cors_origin" yaml:"cors_origin"`
}

// Pprof configuration
type ConfigPprof struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Address string `toml:"address" yaml:"address"`
}

// Client configuration file structure
type ClientConfig struct {
	Transport ConfigTransport `toml:"transport" yaml:"transport"`
	Ingest    ConfigIngest    `toml:"ingest" yaml:"ingest"`
	Search    ConfigSearch    `toml:"search" yaml:"search"`
	Navigator ConfigNavigator `toml:"navigator" yaml:"navigator"`
	View      ConfigView      `toml:"view" yaml:"view"`
	Worker    ConfigWorker    `toml:"worker" yaml:"worker"`
	Store     ConfigStore     `toml:"store" yaml:"store"`
	Server    ConfigServer    `toml:"server" yaml:"server"`
	Pprof     ConfigPprof     `toml:"pprof" yaml:"pprof"`
}

var DefaultConfigTransport = ConfigTransport{
	APIBase:               "http://localhost:43917",
	HealthTimeoutMs:       2000,
	DataTimeoutMs:         30000,
	FileContentsTimeoutMs: 10000,
	Retries:               1,
	SpacingMs:             100,
}

var DefaultConfigIngest = ConfigIngest{
	PageSize:          500,
	RecentWindowHours: 24,
	MaxBackfillPages:  20,
	RefreshIntervalMs: 120000,
	AuxFeedLimit:      200,
	FileContentsLimit: 1000,
}

var DefaultConfigSearch = ConfigSearch{
	EnableSemantic:  true,
	MaxResults:      50,
	CacheSize:       128,
	CacheTTLSeconds: 300,
}

// Files under these paths never become navigator nodes.
var DefaultNavigatorIgnorePatterns = []string{
	".git/",
	"node_modules/",
	"__pycache__/",
	"dist/", "build/", "vendor/",
	"*.pyc", "*.class", "*.o",
}

var DefaultConfigNavigator = ConfigNavigator{
	MaxNodes:            300,
	EdgeThreshold:       0.3,
	LatentCacheTTLHours: 24,
	CanvasWidth:         1200,
	CanvasHeight:        800,
	Seed:                42,
	IgnorePatterns:      DefaultNavigatorIgnorePatterns,
}

var DefaultChartColors = []string{
	"#8b5cf6", "#06b6d4", "#22c55e", "#f59e0b", "#ef4444",
	"#14b8a6", "#eab308", "#3b82f6", "#d946ef", "#f97316",
}

var DefaultConfigView = ConfigView{
	ChartColors: DefaultChartColors,
}

var DefaultConfigWorker = ConfigWorker{
	Concurrency:        2,
	TaskTimeoutSeconds: 60,
}

var DefaultConfigStore = ConfigStore{
	Backend: BackendLevelDB,
}

var DefaultConfigServer = ConfigServer{
	Addr:       "localhost:11480",
	RateLimit:  50,
	RateBurst:  100,
	CORSOrigin: "*",
}

// Default pprof configuration
var DefaultConfigPprof = ConfigPprof{
	Enabled: false,
	Address: "localhost:6060",
}

// DefaultClientConfig returns a fresh copy of the built-in defaults.
func DefaultClientConfig() ClientConfig {
	cfg := ClientConfig{
		Transport: DefaultConfigTransport,
		Ingest:    DefaultConfigIngest,
		Search:    DefaultConfigSearch,
		Navigator: DefaultConfigNavigator,
		View:      DefaultConfigView,
		Worker:    DefaultConfigWorker,
		Store:     DefaultConfigStore,
		Server:    DefaultConfigServer,
		Pprof:     DefaultConfigPprof,
	}
	cfg.Navigator.IgnorePatterns = append([]string(nil), DefaultNavigatorIgnorePatterns...)
	cfg.View.ChartColors = append([]string(nil), DefaultChartColors...)
	return cfg
}

// Global client configuration
var clientConfig = DefaultClientConfig()

// GetClientConfig returns the process-wide configuration
func GetClientConfig() ClientConfig {
	return clientConfig
}

// SetClientConfig replaces the process-wide configuration
func SetClientConfig(config ClientConfig) {
	clientConfig = config
}

// AppInfo holds application metadata
type AppInfo struct {
	AppName  string `json:"appName"`
	Version  string `json:"version"`
	OSName   string `json:"osName"`
	ArchName string `json:"archName"`
}

var appInfo AppInfo

func GetAppInfo() AppInfo {
	return appInfo
}

func SetAppInfo(info AppInfo) {
	appInfo = info
}

// Load reads defaults, then the config file at path (if it exists), then the
// environment. Files ending in .yaml or .yml are YAML, anything else TOML.
// A missing file is not an error.
func Load(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := unmarshalFile(path, data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func unmarshalFile(path string, data []byte, cfg *ClientConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return toml.Unmarshal(data, cfg)
	}
}

// ApplyEnv overlays the recognized environment variables onto cfg.
func ApplyEnv(cfg *ClientConfig, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIBase); ok && v != "" {
		cfg.Transport.APIBase = strings.TrimRight(v, "/")
	}
	if v, ok := lookup(EnvRefreshInterval); ok && v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRefreshInterval, v, err)
		}
		cfg.Ingest.RefreshIntervalMs = ms
	}
	if v, ok := lookup(EnvEnableSemanticSearch); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvEnableSemanticSearch, v, err)
		}
		cfg.Search.EnableSemantic = enabled
	}
	if v, ok := lookup(EnvMaxSearchResults); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvMaxSearchResults, v, err)
		}
		cfg.Search.MaxResults = n
	}
	if v, ok := lookup(EnvChartColors); ok && v != "" {
		var colors []string
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				colors = append(colors, c)
			}
		}
		if len(colors) > 0 {
			cfg.View.ChartColors = colors
		}
	}
	if v, ok := lookup(EnvStoreBackend); ok && v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	return nil
}

// Validate rejects values the engine cannot run with.
func (c ClientConfig) Validate() error {
	switch c.Store.Backend {
	case BackendLevelDB, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Transport.APIBase == "" {
		return errors.New("api base must not be empty")
	}
	if c.Ingest.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.Ingest.PageSize)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("max search results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Ingest.RefreshIntervalMs <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %d", c.Ingest.RefreshIntervalMs)
	}
	if c.Navigator.MaxNodes <= 0 {
		return fmt.Errorf("navigator max nodes must be positive, got %d", c.Navigator.MaxNodes)
	}
	return nil
}
