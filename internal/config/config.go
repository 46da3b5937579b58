// Package config loads settings from defaults, an optional config file and
// VIDSNIFF_ environment variables, in increasing precedence. Command line
// flags bound to the returned viper instance take precedence over all of them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const Prefix = "vidsniff"

// EnvKeyReplacer maps configuration keys onto environment variable names.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

type Config struct {
	Discovery Discovery
	Browser   Browser
	Download  Download
	Server    Server
	Log       Log
}

type Discovery struct {
	Debounce      time.Duration
	BackgroundCap int
	Scanners      []string
}

type Browser struct {
	Headless  bool
	Path      string
	Timeout   time.Duration
	UserAgent string
}

type Download struct {
	Concurrent   int
	Rate         string
	Retries      int
	Output       string
	SkipExisting bool
	Ffmpeg       string
}

type Server struct {
	Addr string
}

type Log struct {
	Debug bool
	File  string
}

// New returns a viper instance with defaults and environment bindings set up.
// When configFile is set it is read from fs and must exist; otherwise a
// vidsniff.{toml,yaml,json} in searchPaths is used if present.
func New(fs afero.Fs, configFile string, searchPaths ...string) (*viper.Viper, error) {
	v := viper.New()
	v.SetFs(fs)

	v.SetEnvPrefix(Prefix)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	for _, f := range Default {
		v.MustBindEnv(f.Key)
	}

	v.SetTypeByDefaultValue(true)
	for _, f := range Default {
		v.SetDefault(f.Key, f.Value)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName(Prefix)
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, err
	}
	return v, nil
}

// Load reads the typed configuration out of v.
func Load(v *viper.Viper) (Config, error) {
	c := Config{
		Discovery: Discovery{
			Debounce:      v.GetDuration(KeyDebounce),
			BackgroundCap: v.GetInt(KeyBackgroundCap),
			Scanners:      splitList(v.GetStringSlice(KeyScanners)),
		},
		Browser: Browser{
			Headless:  v.GetBool(KeyHeadless),
			Path:      v.GetString(KeyBrowserPath),
			Timeout:   v.GetDuration(KeyTimeout),
			UserAgent: v.GetString(KeyUserAgent),
		},
		Download: Download{
			Concurrent:   v.GetInt(KeyConcurrent),
			Rate:         v.GetString(KeyRateLimit),
			Retries:      v.GetInt(KeyRetries),
			Output:       v.GetString(KeyOutputDir),
			SkipExisting: v.GetBool(KeySkipExisting),
			Ffmpeg:       v.GetString(KeyFfmpegPath),
		},
		Server: Server{Addr: v.GetString(KeyAddr)},
		Log: Log{
			Debug: v.GetBool(KeyDebug),
			File:  v.GetString(KeyLogFile),
		},
	}
	return c, c.validate()
}

func (c Config) validate() error {
	if c.Discovery.Debounce <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyDebounce, c.Discovery.Debounce)
	}
	if c.Discovery.BackgroundCap < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyBackgroundCap, c.Discovery.BackgroundCap)
	}
	if c.Download.Concurrent < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", KeyConcurrent, c.Download.Concurrent)
	}
	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyTimeout, c.Browser.Timeout)
	}
	return nil
}

// EnvName returns the environment variable overriding key.
func EnvName(key string) string {
	return strings.ToUpper(Prefix + "_" + EnvKeyReplacer.Replace(key))
}

// splitList accepts both list values and comma separated strings, as
// environment variables can only carry the latter.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
