package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment   string
	Server        ServerConfig
	Database      DatabaseConfig
	Dispatch      DispatchConfig
	Sink          SinkConfig
	Integrations  IntegrationsConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Path string
}

type DispatchConfig struct {
	HandleTimeoutMS int
}

type SinkConfig struct {
	// URL of the downstream delivery service receiving CloudEvents. Empty
	// routes notifications to the log.
	URL string
}

type IntegrationsConfig struct {
	// PublicURL is the externally reachable base advertised in hook
	// endpoint URLs.
	PublicURL string
	// GitioEndpoint overrides the git.io shortener endpoint.
	GitioEndpoint string
}

type ObservabilityConfig struct {
	Enabled           bool
	OTLPEndpoint      string
	OTLPTraceHeaders  map[string]string
	OTLPMetricHeaders map[string]string
	ServiceName       string
	ServiceVer        string
	SamplingRatio     float64
	MetricsConsole    bool
}

func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("notifico_env", "")
	v.SetDefault("app_env", "")
	v.SetDefault("go_env", "")
	v.SetDefault("notifico_port", 8080)
	v.SetDefault("notifico_db_path", "data/notifico")
	v.SetDefault("notifico_handle_timeout_ms", 4000)
	v.SetDefault("notifico_sink_url", "")
	v.SetDefault("notifico_public_url", "")
	v.SetDefault("notifico_gitio_endpoint", "")
	v.SetDefault("notifico_otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("otel_exporter_otlp_headers", "")
	v.SetDefault("otel_exporter_otlp_traces_headers", "")
	v.SetDefault("otel_exporter_otlp_metrics_headers", "")
	v.SetDefault("otel_service_name", "notifico")
	v.SetDefault("notifico_version", "dev")
	v.SetDefault("notifico_otel_sampling_ratio", 1.0)
	v.SetDefault("notifico_otel_metrics_console", false)

	env := resolveEnvironment(v)
	port := v.GetInt("notifico_port")
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid NOTIFICO_PORT: %d", port)
	}

	handleTimeout := v.GetInt("notifico_handle_timeout_ms")
	if handleTimeout <= 0 {
		handleTimeout = 4000
	}
	if handleTimeout > 30000 {
		handleTimeout = 30000
	}

	samplingRatio := v.GetFloat64("notifico_otel_sampling_ratio")
	if samplingRatio < 0 {
		samplingRatio = 0
	}
	if samplingRatio > 1 {
		samplingRatio = 1
	}

	publicURL := strings.TrimSpace(v.GetString("notifico_public_url"))
	if publicURL == "" {
		publicURL = fmt.Sprintf("http://localhost:%d", port)
	}

	serviceName := strings.TrimSpace(v.GetString("otel_service_name"))
	if serviceName == "" {
		serviceName = "notifico"
	}
	serviceVersion := strings.TrimSpace(v.GetString("notifico_version"))
	if serviceVersion == "" {
		serviceVersion = "dev"
	}

	otlpEndpoint := strings.TrimSpace(v.GetString("otel_exporter_otlp_endpoint"))
	otlpCommonHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_headers"))
	otlpTraceHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_traces_headers"))
	otlpMetricHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_metrics_headers"))
	metricsConsole := v.GetBool("notifico_otel_metrics_console")
	otelEnabled := v.GetBool("notifico_otel_enabled") || otlpEndpoint != "" || metricsConsole

	cfg := Config{
		Environment: env,
		Server:      ServerConfig{Port: port},
		Database: DatabaseConfig{
			Path: strings.TrimSpace(v.GetString("notifico_db_path")),
		},
		Dispatch: DispatchConfig{
			HandleTimeoutMS: handleTimeout,
		},
		Sink: SinkConfig{
			URL: strings.TrimSpace(v.GetString("notifico_sink_url")),
		},
		Integrations: IntegrationsConfig{
			PublicURL:     publicURL,
			GitioEndpoint: strings.TrimSpace(v.GetString("notifico_gitio_endpoint")),
		},
		Observability: ObservabilityConfig{
			Enabled:           otelEnabled,
			OTLPEndpoint:      otlpEndpoint,
			OTLPTraceHeaders:  mergeHeaderMaps(otlpCommonHeaders, otlpTraceHeaders),
			OTLPMetricHeaders: mergeHeaderMaps(otlpCommonHeaders, otlpMetricHeaders),
			ServiceName:       serviceName,
			ServiceVer:        serviceVersion,
			SamplingRatio:     samplingRatio,
			MetricsConsole:    metricsConsole,
		},
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/notifico"
	}

	return cfg, nil
}

func parseOTLPHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pair := strings.SplitN(part, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key := strings.TrimSpace(pair[0])
		value := strings.TrimSpace(pair[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mergeHeaderMaps(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func (c Config) IsLocalDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

// HandleTimeout is the per-delivery budget for integration handlers.
func (c Config) HandleTimeout() time.Duration {
	return time.Duration(c.Dispatch.HandleTimeoutMS) * time.Millisecond
}

func resolveEnvironment(v *viper.Viper) string {
	for _, key := range []string{"notifico_env", "app_env", "go_env"} {
		value := strings.TrimSpace(v.GetString(key))
		if value != "" {
			return strings.ToLower(value)
		}
	}
	return ""
}
