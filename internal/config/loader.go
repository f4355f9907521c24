package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvStaticToken is consulted when no bearer token is configured.
const EnvStaticToken = "CHECKFIRE_AUTH_STATIC_TOKEN"

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Default returns the configuration used before any file or flag is applied.
func Default() *Config {
	return &Config{
		PageSize:     DefaultPageSize,
		Headers:      map[string]string{"Content-Type": "application/json"},
		VirtualUsers: DefaultVirtualUsers,
		Duration:     DefaultDuration,
		Sleep:        DefaultSleep,
		Timeout:      DefaultTimeout,
		Log:          LogConfig{Format: LogFormatText, Level: "info"},
		Tracing:      TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

// Load parses command-line arguments and an optional configuration file.
// Flags override values from the file.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.Log.Format = LogFormat(strings.ToLower(string(cfg.Log.Format)))
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	if cfg.Auth.StaticToken == "" {
		cfg.Auth.StaticToken = strings.TrimSpace(os.Getenv(EnvStaticToken))
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "page"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("page: %w", err)
		}
		cfg.Page = val
	}

	if raw, ok := lookupSetting(settings, "pagesize", "page_size", "page-size", "size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("page_size: %w", err)
		}
		cfg.PageSize = val
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "vus", "virtual_users", "virtualusers"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("vus: %w", err)
		}
		cfg.VirtualUsers = val
	}

	durations := []struct {
		keys []string
		dst  *time.Duration
	}{
		{[]string{"duration"}, &cfg.Duration},
		{[]string{"sleep", "delay"}, &cfg.Sleep},
		{[]string{"timeout"}, &cfg.Timeout},
		{[]string{"gracefulstop", "graceful_stop", "graceful-stop"}, &cfg.GracefulStop},
	}
	for _, d := range durations {
		if raw, ok := lookupSetting(settings, d.keys...); ok {
			dur, err := asDuration(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", d.keys[0], err)
			}
			*d.dst = dur
		}
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	flags := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"jsonoutput", "json_output", "json-output"}, &cfg.JSONOutput},
		{[]string{"dashboard"}, &cfg.Dashboard},
		{[]string{"failoncheck", "fail_on_check", "fail-on-check"}, &cfg.FailOnCheck},
	}
	for _, f := range flags {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[1], err)
			}
			*f.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "htmloutput", "html_output", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("html_output: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "reportfile", "report_file", "report-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("report_file: %w", err)
		}
		cfg.ReportFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "log"); ok {
		if err := applyLogSettings(&cfg.Log, raw); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "auth"); ok {
		entry, err := toStringKeyMap(raw, true)
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		if rawToken, ok := lookupSetting(entry, "statictoken", "static_token", "static-token", "token"); ok {
			val, err := asString(rawToken)
			if err != nil {
				return fmt.Errorf("auth: static_token: %w", err)
			}
			cfg.Auth.StaticToken = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyLogSettings(log *LogConfig, value interface{}) error {
	entry, err := toStringKeyMap(value, true)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(entry, "format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		log.Format = LogFormat(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("level: %w", err)
		}
		log.Level = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("file: %w", err)
		}
		log.File = strings.TrimSpace(val)
	}
	return nil
}

func applyTracingSettings(tr *TracingConfig, value interface{}) error {
	entry, err := toStringKeyMap(value, true)
	if err != nil {
		return err
	}
	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"endpoint"}, &tr.Endpoint},
		{[]string{"protocol"}, &tr.Protocol},
		{[]string{"servicename", "service_name", "service-name"}, &tr.ServiceName},
	}
	for _, s := range strs {
		if raw, ok := lookupSetting(entry, s.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", s.keys[len(s.keys)-1], err)
			}
			*s.dst = strings.TrimSpace(val)
		}
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		tr.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		tr.Propagate = val
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		tr.SampleRate = val
	}
	return nil
}
