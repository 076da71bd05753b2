package observability

import (
	"strings"

	"github.com/justinhw1987/invoiceflow/internal/config"
)

// Config is the part of config.Config the logger, tracer and meter need.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled       bool
	OtelEndpoint      string
	OtelProtocol      string
	OtelSamplingRatio float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "invoiceflow"
	}
	protocol := "grpc"
	if strings.HasPrefix(cfg.OTLPProtocol, "http") {
		protocol = "http"
	}
	ratio := cfg.OtelSamplingRatio
	if ratio < 0 || ratio > 1 {
		ratio = 1
	}

	return Config{
		ServiceName:       serviceName,
		Environment:       strings.TrimSpace(cfg.Environment),
		Version:           strings.TrimSpace(cfg.AppVersion),
		LogLevel:          cfg.LogLevel,
		LogFormat:         cfg.LogFormat,
		OtelEnabled:       cfg.OtelEnabled,
		OtelEndpoint:      cfg.OTLPEndpoint,
		OtelProtocol:      protocol,
		OtelSamplingRatio: ratio,
	}
}

// Debug adds stack traces to failed request logs and error entries.
func (c Config) Debug() bool {
	return c.LogLevel == "debug"
}
