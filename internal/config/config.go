package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/torosent/checkfire/internal/threshold"
)

// Defaults mirror the product listing load profile the tool was built for.
const (
	DefaultVirtualUsers = 5
	DefaultDuration     = time.Minute
	DefaultPageSize     = 20
	DefaultSleep        = 100 * time.Millisecond
	DefaultTimeout      = 30 * time.Second
)

type Config struct {
	TargetURL    string            `mapstructure:"target"`
	Page         int               `mapstructure:"page"`
	PageSize     int               `mapstructure:"page_size"`
	Headers      map[string]string `mapstructure:"headers"`
	VirtualUsers int               `mapstructure:"vus"`
	Duration     time.Duration     `mapstructure:"duration"`
	Sleep        time.Duration     `mapstructure:"sleep"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	GracefulStop time.Duration     `mapstructure:"graceful_stop"`
	Rate         int               `mapstructure:"rate"`
	JSONOutput   bool              `mapstructure:"json_output"`
	Dashboard    bool              `mapstructure:"dashboard"`
	HTMLOutput   string            `mapstructure:"html_output"`
	ReportFile   string            `mapstructure:"report_file"`
	FailOnCheck  bool              `mapstructure:"fail_on_check"`
	Thresholds   []string          `mapstructure:"thresholds"`
	Log          LogConfig         `mapstructure:"log"`
	Auth         AuthConfig        `mapstructure:"auth"`
	Tracing      TracingConfig     `mapstructure:"tracing"`
	ConfigFile   string            `mapstructure:"-"`
}

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type LogConfig struct {
	Format LogFormat `mapstructure:"format"`
	Level  string    `mapstructure:"level"` // debug, info, warn, error
	File   string    `mapstructure:"file"`  // empty means stderr
}

// AuthConfig holds a pre-issued bearer token. Tokens are never acquired or
// refreshed by checkfire.
type AuthConfig struct {
	StaticToken string `mapstructure:"static_token"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // grpc or http
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   bool    `mapstructure:"propagate"`
}

// Enabled reports whether spans should be exported or propagated.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || t.Propagate
}

// ShouldPropagate reports whether W3C trace headers are injected into requests.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Propagate
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	issues = append(issues, validateTarget(c.TargetURL)...)

	if c.VirtualUsers > 500 {
		fmt.Fprintf(os.Stderr, "WARNING: High virtual user count configured (%d). Ensure you have authorization to test the target system.\n", c.VirtualUsers)
	}
	if c.Rate > 1000 {
		fmt.Fprintf(os.Stderr, "WARNING: High rate limit configured (%d RPS). Ensure you have authorization to test the target system.\n", c.Rate)
	}

	if c.VirtualUsers < 1 {
		issues = append(issues, "vus must be >= 1")
	}
	if c.Duration <= 0 {
		issues = append(issues, "duration must be > 0")
	}
	if c.Page < 0 {
		issues = append(issues, "page must be >= 0")
	}
	if c.PageSize < 1 {
		issues = append(issues, "page_size must be >= 1")
	}
	if c.Sleep < 0 {
		issues = append(issues, "sleep must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.GracefulStop < 0 {
		issues = append(issues, "graceful_stop must be >= 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}
	for key, value := range c.Headers {
		if strings.TrimSpace(key) == "" || strings.ContainsAny(key, "\r\n") {
			issues = append(issues, fmt.Sprintf("headers: invalid key %q", key))
		}
		if strings.ContainsAny(value, "\r\n") {
			issues = append(issues, fmt.Sprintf("headers: invalid value for %s", key))
		}
	}

	issues = append(issues, validateLogConfig(c.Log)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if _, err := threshold.ParseMultiple(c.Thresholds); err != nil {
		issues = append(issues, err.Error())
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTarget(target string) []string {
	target = strings.TrimSpace(target)
	if target == "" {
		return []string{"target is required (use --help for usage information)"}
	}
	u, err := url.Parse(target)
	if err != nil {
		return []string{fmt.Sprintf("target: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []string{fmt.Sprintf("target: scheme must be http or https, got %q", u.Scheme)}
	}
	if u.Host == "" {
		return []string{"target: host is required"}
	}
	return nil
}

func validateLogConfig(log LogConfig) []string {
	var issues []string
	switch log.Format {
	case "", LogFormatText, LogFormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("log: format must be 'text' or 'json', got %q", log.Format))
	}
	switch strings.ToLower(strings.TrimSpace(log.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, fmt.Sprintf("log: unsupported level %q", log.Level))
	}
	return issues
}

func validateTracingConfig(tr TracingConfig) []string {
	var issues []string
	switch strings.ToLower(tr.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", tr.Protocol))
	}
	if tr.SampleRate < 0 || tr.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", tr.SampleRate))
	}
	return issues
}
