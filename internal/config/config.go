// Package config loads runtime settings from the environment and an
// optional YAML file. Environment variables win over the file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tellnow/backend/internal/ai"
	"tellnow/backend/internal/classifier"
)

const (
	keyAPIKey           = "groq_api_key"
	keyModel            = "classifier_model"
	keyBaseURL          = "ai_base_url"
	keyMaxTokens        = "ai_max_tokens"
	keyMaxRetries       = "ai_max_retries"
	keyRetryDelay       = "ai_retry_delay"
	keyCallTimeout      = "ai_call_timeout"
	keyFallbackAPIKey   = "fallback_api_key"
	keyFallbackModel    = "fallback_model"
	keyFallbackBaseURL  = "fallback_base_url"
	keyDebug            = "classifier_debug"
	keyLogDir           = "classifier_log_dir"
	keyStrictTaxonomy   = "classifier_strict_taxonomy"
	keyDBPath           = "tellnow_db_path"
	keyPort             = "port"
	keyAllowedOrigins   = "allowed_origins"
	keyLogLevel         = "log_level"
	keyLogFormat        = "log_format"
	keyRecentIssues     = "stats_recent_issues"
	defaultDBPath       = "data/tellnow.db"
	defaultPort         = "8000"
	defaultLogDir       = "logs"
	allowAnyOriginToken = "*"
)

var keys = []string{
	keyAPIKey, keyModel, keyBaseURL, keyMaxTokens, keyMaxRetries, keyRetryDelay,
	keyCallTimeout, keyFallbackAPIKey, keyFallbackModel, keyFallbackBaseURL,
	keyDebug, keyLogDir, keyStrictTaxonomy, keyDBPath, keyPort, keyAllowedOrigins,
	keyLogLevel, keyLogFormat, keyRecentIssues,
}

// Config is the resolved runtime configuration shared by the binaries.
type Config struct {
	AI             ai.Config
	Fallback       ai.Config
	CallTimeout    time.Duration
	StrictTaxonomy bool
	Debug          bool
	LogDir         string
	DBPath         string
	Port           string
	// AllowedOrigins is nil for the built-in defaults and empty to allow any origin.
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string
	RecentIssues   int
}

// Load resolves configuration from defaults, the optional file at path, and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault(keyModel, ai.DefaultModel)
	v.SetDefault(keyBaseURL, ai.DefaultBaseURL)
	v.SetDefault(keyMaxRetries, 0)
	v.SetDefault(keyRetryDelay, "500ms")
	v.SetDefault(keyCallTimeout, classifier.DefaultCallTimeout.String())
	v.SetDefault(keyLogDir, defaultLogDir)
	v.SetDefault(keyDBPath, defaultDBPath)
	v.SetDefault(keyPort, defaultPort)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "text")
	v.SetDefault(keyRecentIssues, 10)

	for _, key := range keys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		AI: ai.Config{
			APIKey:     strings.TrimSpace(v.GetString(keyAPIKey)),
			Model:      strings.TrimSpace(v.GetString(keyModel)),
			BaseURL:    strings.TrimSpace(v.GetString(keyBaseURL)),
			MaxTokens:  v.GetInt(keyMaxTokens),
			MaxRetries: v.GetInt(keyMaxRetries),
			RetryDelay: v.GetDuration(keyRetryDelay),
		},
		Fallback: ai.Config{
			APIKey:     strings.TrimSpace(v.GetString(keyFallbackAPIKey)),
			Model:      strings.TrimSpace(v.GetString(keyFallbackModel)),
			BaseURL:    strings.TrimSpace(v.GetString(keyFallbackBaseURL)),
			MaxTokens:  v.GetInt(keyMaxTokens),
			MaxRetries: v.GetInt(keyMaxRetries),
			RetryDelay: v.GetDuration(keyRetryDelay),
		},
		CallTimeout:    v.GetDuration(keyCallTimeout),
		StrictTaxonomy: v.GetBool(keyStrictTaxonomy),
		Debug:          v.GetBool(keyDebug),
		LogDir:         strings.TrimSpace(v.GetString(keyLogDir)),
		DBPath:         strings.TrimSpace(v.GetString(keyDBPath)),
		Port:           strings.TrimSpace(v.GetString(keyPort)),
		AllowedOrigins: parseOrigins(v.GetString(keyAllowedOrigins)),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString(keyLogLevel))),
		LogFormat:      strings.ToLower(strings.TrimSpace(v.GetString(keyLogFormat))),
		RecentIssues:   v.GetInt(keyRecentIssues),
	}
	if cfg.AI.MaxRetries < 0 {
		return Config{}, fmt.Errorf("%s must not be negative", strings.ToUpper(keyMaxRetries))
	}
	if cfg.CallTimeout <= 0 {
		return Config{}, fmt.Errorf("%s must be a positive duration", strings.ToUpper(keyCallTimeout))
	}
	return cfg, nil
}

func parseOrigins(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if raw == allowAnyOriginToken {
		return []string{}
	}
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// Completer builds the primary client chained with the optional fallback.
// It returns nil when neither has credentials.
func (c Config) Completer() ai.Completer {
	var primary, fallback ai.Completer
	if client, err := ai.NewClient(c.AI); err == nil {
		primary = client
	}
	if client, err := ai.NewClient(c.Fallback); err == nil {
		fallback = client
	}
	return ai.WithFallback(primary, fallback)
}

// ClassifierOptions maps the settings onto classifier options.
func (c Config) ClassifierOptions() classifier.Options {
	return classifier.Options{
		CallTimeout:    c.CallTimeout,
		StrictTaxonomy: c.StrictTaxonomy,
	}
}
