package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/handiism/gofile-downloader/internal/retry"
)

// Log levels accepted by Settings.LogLevel.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log formats accepted by Settings.LogFormat.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Settings holds all configuration options.
type Settings struct {
	// Server settings
	Listen  string `yaml:"listen"`
	BaseDir string `yaml:"base_dir"`

	// StateURL is where tracker records live: a directory, a gocloud blob
	// URL (file://, mem://) or a redis:// URL.
	StateURL string `yaml:"state_url"`

	// Download settings
	Workers        int           `yaml:"workers"`
	ChunkSize      int           `yaml:"chunk_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ThrottleKBs    int           `yaml:"throttle_kbs"`
	Incremental    bool          `yaml:"incremental"`
	FolderPatterns []string      `yaml:"folder_patterns"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Retry    RetrySettings    `yaml:"retry"`
	Resolver ResolverSettings `yaml:"resolver"`
	Auth     AuthSettings     `yaml:"auth"`
	Notify   NotifySettings   `yaml:"notify"`
}

// RetrySettings configure the shared retry policy.
type RetrySettings struct {
	// Attempts is the total number of tries, the first one included.
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// ResolverSettings locate the GoFile API.
type ResolverSettings struct {
	APIURL        string        `yaml:"api_url"`
	SiteURL       string        `yaml:"site_url"`
	SiteTokenPath string        `yaml:"site_token_path"`
	SiteTokenTTL  time.Duration `yaml:"site_token_ttl"`
	MaxDepth      int           `yaml:"max_depth"`
}

// AuthSettings enable HTTP basic auth on the web dashboard when Username
// is set.
type AuthSettings struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NotifySettings configure completion notifications.
type NotifySettings struct {
	WebhookURL string `yaml:"webhook_url"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		Listen:   "0.0.0.0:2355",
		BaseDir:  filepath.Join(homeDir, "Downloads", "GoFile"),
		StateURL: filepath.Join(homeDir, ".local", "state", "gofile-downloader"),

		Workers:        4,
		ChunkSize:      64 * 1024,
		RequestTimeout: 30 * time.Second,
		ThrottleKBs:    0,
		Incremental:    false,
		FolderPatterns: []string{"⭐NEW FILES in ", "⭐"},

		LogLevel:  LogLevelInfo,
		LogFormat: LogFormatText,

		Retry: RetrySettings{
			Attempts:  5,
			BaseDelay: time.Second,
			MaxDelay:  30 * time.Second,
		},
		Resolver: ResolverSettings{
			APIURL:        "https://api.gofile.io",
			SiteURL:       "https://gofile.io",
			SiteTokenPath: "/dist/js/config.js",
			SiteTokenTTL:  time.Hour,
			MaxDepth:      32,
		},
	}
}

// Load reads settings from a YAML file. Fields missing from the file keep
// their defaults; a missing file yields the defaults.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return settings, nil
		}
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("cannot parse config file: %w", err)
	}
	return settings, nil
}

// Save writes settings to a YAML file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// LoadEnv applies environment overrides. Variables from envFile (usually
// ".env") are loaded first without replacing ones already set; a missing
// envFile is ignored.
//
// Every field has a GOFILE_ variable, e.g. GOFILE_WORKERS or
// GOFILE_RETRY_BASE_DELAY. BASE_DIR, HOST and PORT are honored as well.
func (s *Settings) LoadEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("cannot load %s: %w", envFile, err)
		}
	}

	if v := os.Getenv("BASE_DIR"); v != "" {
		s.BaseDir = v
	}
	if host, port := os.Getenv("HOST"), os.Getenv("PORT"); host != "" || port != "" {
		h, p, err := net.SplitHostPort(s.Listen)
		if err != nil {
			h, p = "0.0.0.0", "2355"
		}
		if host != "" {
			h = host
		}
		if port != "" {
			p = port
		}
		s.Listen = net.JoinHostPort(h, p)
	}

	strs := map[string]*string{
		"GOFILE_LISTEN":             &s.Listen,
		"GOFILE_BASE_DIR":           &s.BaseDir,
		"GOFILE_STATE_URL":          &s.StateURL,
		"GOFILE_LOG_LEVEL":          &s.LogLevel,
		"GOFILE_LOG_FORMAT":         &s.LogFormat,
		"GOFILE_API_URL":            &s.Resolver.APIURL,
		"GOFILE_SITE_URL":           &s.Resolver.SiteURL,
		"GOFILE_SITE_TOKEN_PATH":    &s.Resolver.SiteTokenPath,
		"GOFILE_AUTH_USERNAME":      &s.Auth.Username,
		"GOFILE_AUTH_PASSWORD":      &s.Auth.Password,
		"GOFILE_NOTIFY_WEBHOOK_URL": &s.Notify.WebhookURL,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"GOFILE_WORKERS":            &s.Workers,
		"GOFILE_CHUNK_SIZE":         &s.ChunkSize,
		"GOFILE_THROTTLE_KBS":       &s.ThrottleKBs,
		"GOFILE_RETRY_ATTEMPTS":     &s.Retry.Attempts,
		"GOFILE_RESOLVER_MAX_DEPTH": &s.Resolver.MaxDepth,
	}
	for name, dst := range ints {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("cannot parse %s: %w", name, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"GOFILE_REQUEST_TIMEOUT":  &s.RequestTimeout,
		"GOFILE_RETRY_BASE_DELAY": &s.Retry.BaseDelay,
		"GOFILE_RETRY_MAX_DELAY":  &s.Retry.MaxDelay,
		"GOFILE_SITE_TOKEN_TTL":   &s.Resolver.SiteTokenTTL,
	}
	for name, dst := range durations {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("cannot parse %s: %w", name, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("GOFILE_INCREMENTAL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("cannot parse GOFILE_INCREMENTAL: %w", err)
		}
		s.Incremental = b
	}
	if v := os.Getenv("GOFILE_FOLDER_PATTERNS"); v != "" {
		s.FolderPatterns = SplitPatterns(v)
	}
	return nil
}

// SplitPatterns parses a comma separated list of folder patterns. Blank
// entries are dropped; surrounding spaces are kept since they are part of
// a prefix.
func SplitPatterns(list string) []string {
	var patterns []string
	for _, p := range strings.Split(list, ",") {
		if strings.TrimSpace(p) != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// Validate checks that every setting is usable.
func (s *Settings) Validate() error {
	var errs []error
	if s.BaseDir == "" {
		errs = append(errs, errors.New("base_dir is required"))
	}
	if s.StateURL == "" {
		errs = append(errs, errors.New("state_url is required"))
	}
	if s.Workers < 1 || s.Workers > 64 {
		errs = append(errs, fmt.Errorf("workers must be between 1 and 64, got %d", s.Workers))
	}
	if s.ChunkSize < 1024 {
		errs = append(errs, fmt.Errorf("chunk_size must be at least 1024, got %d", s.ChunkSize))
	}
	if s.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if s.ThrottleKBs < 0 {
		errs = append(errs, errors.New("throttle_kbs must not be negative"))
	}
	if s.Retry.Attempts < 1 {
		errs = append(errs, errors.New("retry.attempts must be at least 1"))
	}
	if s.Retry.BaseDelay < 0 || s.Retry.MaxDelay < s.Retry.BaseDelay {
		errs = append(errs, errors.New("retry delays must satisfy 0 <= base_delay <= max_delay"))
	}
	if s.Resolver.MaxDepth < 1 {
		errs = append(errs, errors.New("resolver.max_depth must be at least 1"))
	}
	switch s.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", s.LogLevel))
	}
	switch s.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", s.LogFormat))
	}
	if s.Auth.Username != "" && s.Auth.Password == "" {
		errs = append(errs, errors.New("auth.password is required with auth.username"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RetryPolicy returns the retry policy described by the settings.
func (s *Settings) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Attempts = s.Retry.Attempts
	p.BaseDelay = s.Retry.BaseDelay
	p.MaxDelay = s.Retry.MaxDelay
	return p
}
