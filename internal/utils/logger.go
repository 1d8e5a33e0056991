// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"plc-monitor/internal/config"
)

// LoggerManager manages application logging
type LoggerManager struct {
	logger *zap.Logger
	config *config.LoggingConfig
}

// NewLogger creates a new logger instance based on configuration
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	manager := &LoggerManager{
		config: cfg,
	}

	logger, err := manager.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	manager.logger = logger
	return logger, nil
}

// createLogger creates the zap logger with proper configuration
func (lm *LoggerManager) createLogger() (*zap.Logger, error) {
	encoderConfig := lm.getEncoderConfig()

	var encoder zapcore.Encoder
	switch lm.config.Format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writeSyncer, err := lm.getWriteSyncer()
	if err != nil {
		return nil, fmt.Errorf("failed to create write syncer: %w", err)
	}

	level, err := ParseLevel(lm.config.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	return zap.New(core, lm.getLoggerOptions()...), nil
}

// getEncoderConfig returns encoder configuration based on format
func (lm *LoggerManager) getEncoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()

	config.TimeKey = "timestamp"
	config.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	config.LevelKey = "level"
	config.EncodeLevel = zapcore.LowercaseLevelEncoder
	config.CallerKey = "caller"
	config.EncodeCaller = zapcore.ShortCallerEncoder
	config.MessageKey = "message"
	config.StacktraceKey = "stacktrace"

	// Console format customizations
	if lm.config.Format == "console" {
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	}

	return config
}

// getWriteSyncer returns write syncer based on output configuration.
// "both" writes to stdout and to the rotating file.
func (lm *LoggerManager) getWriteSyncer() (zapcore.WriteSyncer, error) {
	switch lm.config.Output {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	case "both":
		file, err := lm.fileSyncer("./logs/plc-monitor.log")
		if err != nil {
			return nil, err
		}
		return zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), file), nil
	default:
		return lm.fileSyncer(lm.config.Output)
	}
}

// fileSyncer returns a size-rotated file sink
func (lm *LoggerManager) fileSyncer(path string) (zapcore.WriteSyncer, error) {
	if path == "" {
		path = "./logs/plc-monitor.log"
	}

	logDir := filepath.Dir(path)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lumber := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    lm.config.MaxSize, // MB
		MaxBackups: lm.config.MaxBackups,
		MaxAge:     lm.config.MaxAge, // days
		Compress:   lm.config.Compress,
	}
	return zapcore.AddSync(lumber), nil
}

// ParseLevel maps a configured level name to a zap level
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// getLoggerOptions returns logger options
func (lm *LoggerManager) getLoggerOptions() []zap.Option {
	return []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	}
}

// PLCLogger wraps zap.Logger with controller-specific fields
type PLCLogger struct {
	*zap.Logger
	host string
	port int
}

// NewPLCLogger creates a controller-specific logger
func NewPLCLogger(baseLogger *zap.Logger, host string, port int) *PLCLogger {
	logger := baseLogger.With(
		zap.String("plc_host", host),
		zap.Int("plc_port", port),
		zap.String("component", "plc"),
	)

	return &PLCLogger{
		Logger: logger,
		host:   host,
		port:   port,
	}
}

// LogTarget logs a target change
func (pl *PLCLogger) LogTarget(address string, value, mask uint16, err error) {
	fields := []zap.Field{
		zap.String("address", address),
		zap.Uint16("value", value),
		zap.String("mask", fmt.Sprintf("0x%04X", mask)),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		pl.Error("Target rejected", fields...)
	} else {
		pl.Info("Target set", fields...)
	}
}

// LogStateChange logs a connection state transition
func (pl *PLCLogger) LogStateChange(state fmt.Stringer) {
	pl.Info("PLC connection state", zap.Stringer("state", state))
}

// LogTrigger logs a raised match
func (pl *PLCLogger) LogTrigger(address string, value uint16, at time.Time) {
	pl.Info("Trigger matched",
		zap.String("address", address),
		zap.Uint16("value", value),
		zap.Time("matched_at", at),
	)
}

// StepLogger provides structured logging for one step of a target sequence
type StepLogger struct {
	logger    *zap.Logger
	startTime time.Time
}

// NewStepLogger creates a step-specific logger
func NewStepLogger(baseLogger *zap.Logger, stepName, address string) *StepLogger {
	return &StepLogger{
		logger: baseLogger.With(
			zap.String("step", stepName),
			zap.String("address", address),
			zap.String("component", "sequence"),
		),
		startTime: time.Now(),
	}
}

// Start logs step start
func (sl *StepLogger) Start(fields ...zap.Field) {
	sl.logger.Info("Waiting for target", fields...)
}

// Matched logs a successful wait
func (sl *StepLogger) Matched(value uint16) {
	sl.logger.Info("Target matched",
		zap.Uint16("value", value),
		zap.Duration("waited", time.Since(sl.startTime)),
	)
}

// TimedOut logs a wait that ran out of time
func (sl *StepLogger) TimedOut(timeout time.Duration) {
	sl.logger.Warn("Target not matched before timeout",
		zap.Duration("timeout", timeout),
		zap.Duration("waited", time.Since(sl.startTime)),
	)
}

// ServiceLogger provides service-level logging functionality
type ServiceLogger struct {
	*zap.Logger
	serviceName string
}

// NewServiceLogger creates a service-specific logger
func NewServiceLogger(baseLogger *zap.Logger, serviceName string) *ServiceLogger {
	logger := baseLogger.With(
		zap.String("service", serviceName),
		zap.String("component", "service"),
	)

	return &ServiceLogger{
		Logger:      logger,
		serviceName: serviceName,
	}
}

// LogServiceStart logs service startup
func (sl *ServiceLogger) LogServiceStart(version string, config interface{}) {
	sl.Info("Service starting",
		zap.String("version", version),
		zap.Any("config", config),
	)
}

// LogServiceStop logs service shutdown
func (sl *ServiceLogger) LogServiceStop(reason string) {
	sl.Info("Service stopping",
		zap.String("reason", reason),
	)
}

// LogAPIRequest logs HTTP API requests
func (sl *ServiceLogger) LogAPIRequest(method, path, userAgent, clientIP, requestID string, statusCode int, duration time.Duration) {
	level := zapcore.InfoLevel
	if statusCode >= 400 {
		level = zapcore.WarnLevel
	}
	if statusCode >= 500 {
		level = zapcore.ErrorLevel
	}

	if ce := sl.Check(level, "API request"); ce != nil {
		ce.Write(
			zap.String("method", method),
			zap.String("path", path),
			zap.String("user_agent", userAgent),
			zap.String("client_ip", clientIP),
			zap.String("request_id", requestID),
			zap.Int("status_code", statusCode),
			zap.Duration("duration", duration),
		)
	}
}

// LogDatabaseQuery logs database queries (for debugging)
func (sl *ServiceLogger) LogDatabaseQuery(query string, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("query", query),
		zap.Duration("duration", duration),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		sl.Error("Database query failed", fields...)
	} else {
		sl.Debug("Database query executed", fields...)
	}
}

// LoggerWithRequestID adds request ID to logger
func LoggerWithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

// CloseLogger flushes buffered log entries
func CloseLogger(logger *zap.Logger) error {
	return logger.Sync()
}
