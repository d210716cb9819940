package logging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryOptions configures error forwarding to Sentry.
type SentryOptions struct {
	DSN         string
	Environment string
	Release     string
}

var sentryEnabled bool

// EnableSentry initializes the Sentry client and wraps the default logger so that
// records at error level and above are also reported to Sentry. An empty DSN is a no-op.
func EnableSentry(opts SentryOptions) error {
	if opts.DSN == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}

	sentryEnabled = true
	defaultLogger = slog.New(&sentryHandler{Handler: defaultLogger.Handler()})
	slog.SetDefault(defaultLogger)
	return nil
}

// Flush waits for buffered Sentry events to be delivered. Call before shutdown.
func Flush(timeout time.Duration) {
	if sentryEnabled {
		sentry.Flush(timeout)
	}
}

// sentryHandler wraps an slog.Handler and sends errors to Sentry.
type sentryHandler struct {
	slog.Handler
	attrs []slog.Attr
}

func (h *sentryHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.Handler.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= slog.LevelError {
		sentry.CaptureEvent(h.event(r))
	}
	return nil
}

func (h *sentryHandler) event(r slog.Record) *sentry.Event {
	event := sentry.NewEvent()
	event.Level = sentry.LevelError
	event.Message = r.Message
	event.Timestamp = r.Time

	for _, a := range h.attrs {
		event.Extra[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		event.Extra[a.Key] = a.Value.String()
		return true
	})
	return event
}

func (h *sentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &sentryHandler{
		Handler: h.Handler.WithAttrs(attrs),
		attrs:   merged,
	}
}

func (h *sentryHandler) WithGroup(name string) slog.Handler {
	return &sentryHandler{
		Handler: h.Handler.WithGroup(name),
		attrs:   h.attrs,
	}
}
