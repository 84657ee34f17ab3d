// Package logging builds the service zerolog logger and carries
// request-scoped fields through context.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"career-advisor-platform/internal/config"
)

const service = "career-advisor"

// New builds the root logger. Unknown levels fall back to info. Console
// output is used for format=console and always in dev; dev also adds the
// caller. Sampling keeps the first event of each level per second and every
// 100th after that, and never applies in dev.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	return newLogger(os.Stdout, cfg, dev)
}

func newLogger(out io.Writer, cfg config.LogConfig, dev bool) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	w := out
	if dev || strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(w).Level(level).With().Timestamp().Str("service", service)
	if dev {
		ctx = ctx.Caller()
	}
	l := ctx.Logger()

	if cfg.Sampling && !dev {
		l = l.Sample(&zerolog.BurstSampler{
			Burst:       1,
			Period:      time.Second,
			NextSampler: &zerolog.BasicSampler{N: 100},
		})
	}
	return &l
}

type ctxKey int

const (
	keyTraceID ctxKey = iota
	keyUserID
	keyProvider
)

var ctxFields = []struct {
	key  ctxKey
	name string
}{
	{keyTraceID, "trace_id"},
	{keyUserID, "user_id"},
	{keyProvider, "provider"},
}

// With returns base enriched with the trace, user and provider ids found in
// ctx.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	lc := base.With()
	for _, f := range ctxFields {
		if v, ok := ctx.Value(f.key).(string); ok && v != "" {
			lc = lc.Str(f.name, v)
		}
	}
	l := lc.Logger()
	return &l
}

// TraceDuration logs entry and exit of name at trace level.
//
//	defer logging.TraceDuration(u.log, "WebhookUC.HandleWebhook")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	if logger.GetLevel() > zerolog.TraceLevel {
		return func() {}
	}
	start := time.Now()
	logger.Trace().Str("method", name).Msg("start")
	return func() {
		logger.Trace().Str("method", name).Dur("duration", time.Since(start)).Msg("finish")
	}
}

// Redact keeps a short preview of s outside dev.
func Redact(s string, dev bool) string {
	if dev {
		return s
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-2:]
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyTraceID, id)
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyUserID, id)
}

func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, keyProvider, provider)
}

// TraceIDFrom returns the request trace id, if any.
func TraceIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(keyTraceID).(string)
	return v
}
