package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "checkfire",
		Short:         "Run virtual users against a paginated HTTP listing endpoint",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	// Request flags
	flags.String("target", "", "Listing endpoint URL to load test")
	flags.Int("page", 0, "Value of the page query parameter")
	flags.Int("page-size", DefaultPageSize, "Value of the size query parameter")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("auth-token", "", "Static bearer token sent in the Authorization header (or set "+EnvStaticToken+")")

	// Load control flags
	flags.IntP("vus", "c", DefaultVirtualUsers, "Number of virtual users (concurrent loops)")
	flags.DurationP("duration", "d", DefaultDuration, "How long to run the test (e.g. 30s, 1m)")
	flags.Duration("sleep", DefaultSleep, "Pause between iterations of one virtual user")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.Duration("graceful-stop", 0, "Max time in-flight requests may run after the duration ends (0 waits for them)")
	flags.IntP("rate", "r", 0, "Global iterations per second limit (0 means unlimited)")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.String("report-file", "", "Write the JSON report to the specified file path")
	flags.StringSlice("threshold", nil, "Pass/fail threshold (repeatable, e.g. 'checks:rate > 0.99')")
	flags.Bool("fail-on-check", false, "Exit non-zero when any check failed")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Logging flags
	flags.String("log-format", string(LogFormatText), "Log format: 'text' or 'json'")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-file", "", "Write logs to this file instead of stderr")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.String("tracing-service-name", "", "Service name reported with spans (default checkfire)")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests traced, 0.0 to 1.0")
	flags.Bool("tracing-propagate", false, "Inject W3C trace context headers into requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	for name, dst := range map[string]*string{
		"target":               &cfg.TargetURL,
		"auth-token":           &cfg.Auth.StaticToken,
		"html-output":          &cfg.HTMLOutput,
		"report-file":          &cfg.ReportFile,
		"log-level":            &cfg.Log.Level,
		"log-file":             &cfg.Log.File,
		"tracing-endpoint":     &cfg.Tracing.Endpoint,
		"tracing-protocol":     &cfg.Tracing.Protocol,
		"tracing-service-name": &cfg.Tracing.ServiceName,
	} {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(val)
	}

	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.Log.Format = LogFormat(strings.TrimSpace(val))
	}

	for name, dst := range map[string]*int{
		"page":      &cfg.Page,
		"page-size": &cfg.PageSize,
		"vus":       &cfg.VirtualUsers,
		"rate":      &cfg.Rate,
	} {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	for name, dst := range map[string]*time.Duration{
		"duration":      &cfg.Duration,
		"sleep":         &cfg.Sleep,
		"timeout":       &cfg.Timeout,
		"graceful-stop": &cfg.GracefulStop,
	} {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	for name, dst := range map[string]*bool{
		"json-output":       &cfg.JSONOutput,
		"dashboard":         &cfg.Dashboard,
		"fail-on-check":     &cfg.FailOnCheck,
		"tracing-insecure":  &cfg.Tracing.Insecure,
		"tracing-propagate": &cfg.Tracing.Propagate,
	} {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	if fs.Changed("threshold") {
		vals, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = vals
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	return nil
}
