package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

var sentryEnabled bool

// ErrorReportingConfig configures the Sentry client.
type ErrorReportingConfig struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
}

// InitErrorReporting configures Sentry when a DSN is present. The returned flush
// function must be called on shutdown so buffered events are sent.
func InitErrorReporting(cfg ErrorReportingConfig) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		SampleRate:  sampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	sentryEnabled = true

	return func() {
		sentry.Flush(2 * time.Second)
	}, nil
}

// ReportError sends err to Sentry with the given tags and records it on the active span.
// It is a no-op for Sentry when error reporting is not configured.
func ReportError(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	RecordErrorInContext(ctx, err)

	if !sentryEnabled {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}

// RecoverAndReport captures a panic from a background goroutine, reports it and
// logs it without crashing the process.
func RecoverAndReport(ctx context.Context, component string) {
	r := recover()
	if r == nil {
		return
	}
	err := fmt.Errorf("panic in %s: %v", component, r)
	slog.ErrorContext(ctx, "recovered from panic",
		slog.String("component", component),
		slog.String("error", err.Error()),
	)
	ReportError(ctx, err, map[string]string{"component": component})
}
