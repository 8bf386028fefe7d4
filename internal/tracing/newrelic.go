package tracing

import (
	"time"

	"example.com/backstage/services/fleet/config"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Tracer wraps a New Relic application. A tracer without a license key is
// disabled and every method is a no-op.
type Tracer struct {
	app     *newrelic.Application
	enabled bool
}

// NewTracer creates a tracer from the tracing configuration
func NewTracer(cfg config.TracingConfig) (*Tracer, error) {
	if cfg.LicenseKey == "" {
		log.Warn().Msg("New Relic license key not provided, tracing will be disabled")
		return &Tracer{}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(cfg.DistribTracing),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize New Relic")
	}

	return &Tracer{app: app, enabled: true}, nil
}

// Enabled reports whether transactions are reported
func (t *Tracer) Enabled() bool {
	return t != nil && t.enabled
}

// App returns the underlying application for framework integrations, or nil
func (t *Tracer) App() *newrelic.Application {
	if !t.Enabled() {
		return nil
	}
	return t.app
}

// StartTransaction starts a background transaction such as one Service Bus
// message or one projection run
func (t *Tracer) StartTransaction(name string) *newrelic.Transaction {
	if !t.Enabled() {
		return nil
	}
	return t.app.StartTransaction(name)
}

// EndTransaction records err, if any, and ends txn
func (t *Tracer) EndTransaction(txn *newrelic.Transaction, err error) {
	if txn == nil {
		return
	}
	if err != nil {
		txn.NoticeError(err)
	}
	txn.End()
}

// Close flushes pending data to New Relic
func (t *Tracer) Close() {
	if !t.Enabled() {
		return
	}
	t.app.Shutdown(5 * time.Second)
	log.Info().Msg("New Relic tracer shutdown")
}
