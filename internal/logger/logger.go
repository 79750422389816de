package logger

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelFatal   = slog.Level(12)
)

var (
	Logger          *slog.Logger
	errorSampleRate atomic.Int32
	programLevel    = new(slog.LevelVar)
	shutdownFunc    func(context.Context) error
)

// Counters exposed on the dashboard. They are incremented regardless of sampling.
var (
	TotalErrors    atomic.Int64
	TotalWarnings  atomic.Int64
	Total5xxErrors atomic.Int64
	Total4xxErrors atomic.Int64
	Total400Errors atomic.Int64
	Total404Errors atomic.Int64
	Total409Errors atomic.Int64
	SlowRequests   atomic.Int64
)

func init() {
	errorSampleRate.Store(1)
	programLevel.Set(LevelInfo)
	setupJSONLogging()
}

// Options configures the process logger
type Options struct {
	// Level is a level name (TRACE, DEBUG, INFO, WARN, ERROR, FATAL)
	Level string
	// ErrorSampleRate logs 1 of every N warnings/errors; 1 logs all of them
	ErrorSampleRate int
	// OTELEnabled exports logs over OTLP gRPC instead of writing JSON to stdout
	OTELEnabled bool
	ServiceName string
}

// OptionsFromEnv reads LOG_LEVEL, ERROR_SAMPLE_RATE, OTEL_ENABLED and OTEL_SERVICE_NAME
func OptionsFromEnv() Options {
	opts := Options{
		Level:           os.Getenv("LOG_LEVEL"),
		ErrorSampleRate: 1,
		OTELEnabled:     strings.ToLower(os.Getenv("OTEL_ENABLED")) == "true",
		ServiceName:     os.Getenv("OTEL_SERVICE_NAME"),
	}
	if rate, err := strconv.Atoi(os.Getenv("ERROR_SAMPLE_RATE")); err == nil && rate > 0 {
		opts.ErrorSampleRate = rate
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "crm-server"
	}
	return opts
}

// Setup replaces the default JSON logger according to opts.
// If OTEL setup fails it falls back to JSON and reports the failure.
func Setup(ctx context.Context, opts Options) error {
	level, err := ParseLevel(opts.Level)
	if opts.Level != "" && err != nil {
		return err
	}
	programLevel.Set(level)

	if opts.ErrorSampleRate > 0 {
		errorSampleRate.Store(int32(opts.ErrorSampleRate))
	}

	if !opts.OTELEnabled {
		setupJSONLogging()
		return nil
	}

	shutdown, err := setupOTELLogging(ctx, opts.ServiceName)
	if err != nil {
		setupJSONLogging()
		return fmt.Errorf("failed to setup OTEL logging, using JSON: %w", err)
	}
	shutdownFunc = shutdown
	return nil
}

func setupJSONLogging() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: programLevel})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func setupOTELLogging(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	otelHandler := otelslog.NewHandler(
		serviceName,
		otelslog.WithLoggerProvider(loggerProvider),
	)

	Logger = slog.New(&levelHandler{level: programLevel, handler: otelHandler})
	slog.SetDefault(Logger)

	return loggerProvider.Shutdown, nil
}

// levelHandler wraps a handler to filter by level
type levelHandler struct {
	level   slog.Leveler
	handler slog.Handler
}

func (h *levelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithGroup(name)}
}

// Shutdown flushes the OTEL exporter, if one is running
func Shutdown(ctx context.Context) error {
	if shutdownFunc != nil {
		return shutdownFunc(ctx)
	}
	return nil
}

func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

func GetLevel() slog.Level {
	return programLevel.Level()
}

// ParseLevel converts a level name to slog.Level. Unknown names yield INFO and an error.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(levelStr) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", levelStr)
	}
}

func shouldSample() bool {
	rate := errorSampleRate.Load()
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn counts every warning but only writes sampled ones
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error counts every error but only writes sampled ones
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs, flushes OTEL and exits
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	if shutdownFunc != nil {
		_ = shutdownFunc(context.Background())
	}
	os.Exit(1)
}

// CountStatus records an HTTP response status in the counters
func CountStatus(status int) {
	switch {
	case status >= 500:
		Total5xxErrors.Add(1)
		TotalErrors.Add(1)
	case status >= 400:
		Total4xxErrors.Add(1)
		TotalWarnings.Add(1)
		switch status {
		case 400:
			Total400Errors.Add(1)
		case 404:
			Total404Errors.Add(1)
		case 409:
			Total409Errors.Add(1)
		}
	}
}

// CountSlowRequest records a request that exceeded the slow threshold
func CountSlowRequest() {
	SlowRequests.Add(1)
}

// Snapshot returns the current counter values keyed by name
func Snapshot() map[string]int64 {
	return map[string]int64{
		"errors":       TotalErrors.Load(),
		"warnings":     TotalWarnings.Load(),
		"http5xx":      Total5xxErrors.Load(),
		"http4xx":      Total4xxErrors.Load(),
		"http400":      Total400Errors.Load(),
		"http404":      Total404Errors.Load(),
		"http409":      Total409Errors.Load(),
		"slowRequests": SlowRequests.Load(),
	}
}
