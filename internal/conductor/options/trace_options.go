package options

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/kiosk404/conductor/internal/conductor/service/trace"
)

// TraceOptions configures span export and run metrics.
type TraceOptions struct {
	ServiceName string `json:"service-name" mapstructure:"service-name"`
	// Endpoint is an OTLP/HTTP collector (host:port). Empty disables export.
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
	Insecure bool   `json:"insecure" mapstructure:"insecure"`
	// MetricsFile receives the run metrics in Prometheus text format.
	MetricsFile string `json:"metrics-file" mapstructure:"metrics-file"`
}

func NewTraceOptions() *TraceOptions {
	return &TraceOptions{ServiceName: "conductor"}
}

func (o *TraceOptions) Validate() []error {
	if o.ServiceName == "" {
		return []error{errors.New("trace.service-name is required")}
	}
	return nil
}

func (o *TraceOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ServiceName, "trace.service-name", o.ServiceName, "Service name reported on spans.")
	fs.StringVar(&o.Endpoint, "trace.endpoint", o.Endpoint, "OTLP/HTTP collector address. Empty keeps spans local.")
	fs.BoolVar(&o.Insecure, "trace.insecure", o.Insecure, "Send spans over plain HTTP.")
	fs.StringVar(&o.MetricsFile, "trace.metrics-file", o.MetricsFile, "Write run metrics in Prometheus text format to this file.")
}

func (o *TraceOptions) ProviderConfig() trace.ProviderConfig {
	return trace.ProviderConfig{
		ServiceName: o.ServiceName,
		Endpoint:    o.Endpoint,
		Insecure:    o.Insecure,
	}
}
