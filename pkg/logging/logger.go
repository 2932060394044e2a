/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logger.go
Description: Logging for the fuzzy engine. Wraps logrus with timestamped log files,
JSON, text and custom formats, size based rotation and an async queue for hot paths.
The logger doubles as an evaluation observer so every calculation can be traced.
*/

package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warn"
	LogLevelError   LogLevel = "error"
)

// LogFormat represents the logging format
type LogFormat string

const (
	LogFormatJSON   LogFormat = "json"
	LogFormatText   LogFormat = "text"
	LogFormatCustom LogFormat = "custom"
)

const (
	filePrefix  = "fuzzylogic_"
	filePattern = filePrefix + "*.log"
)

// LoggerConfig holds the configuration for the logger
type LoggerConfig struct {
	Level     LogLevel  `json:"level" mapstructure:"level"`
	Format    LogFormat `json:"format" mapstructure:"format"`
	OutputDir string    `json:"output_dir" mapstructure:"output_dir"` // empty disables the log file
	MaxFiles  int       `json:"max_files" mapstructure:"max_files"`
	MaxSize   int64     `json:"max_size" mapstructure:"max_size"` // in bytes
	Timestamp bool      `json:"timestamp" mapstructure:"timestamp"`
	Caller    bool      `json:"caller" mapstructure:"caller"`
	Colors    bool      `json:"colors" mapstructure:"colors"`
	Compress  bool      `json:"compress" mapstructure:"compress"`
	Console   bool      `json:"console" mapstructure:"console"`
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:     LogLevelInfo,
		Format:    LogFormatText,
		OutputDir: "./logs",
		MaxFiles:  10,
		MaxSize:   100 * 1024 * 1024, // 100MB
		Timestamp: true,
		Caller:    false,
		Colors:    true,
		Console:   true,
	}
}

// Validate checks the LoggerConfig for invalid or missing values.
func (c *LoggerConfig) Validate() error {
	if c.OutputDir != "" {
		if c.MaxFiles <= 0 {
			return fmt.Errorf("max_files must be positive")
		}
		if c.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive")
		}
	}
	switch c.Format {
	case LogFormatJSON, LogFormatText, LogFormatCustom:
	default:
		return fmt.Errorf("unsupported log format: %s", c.Format)
	}
	switch c.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
	default:
		return fmt.Errorf("unsupported log level: %s", c.Level)
	}
	return nil
}

type logEntry struct {
	level  logrus.Level
	msg    string
	fields logrus.Fields
}

// rotation is checked every rotateEvery queued entries
const rotateEvery = 256

// Logger provides file and console logging with an async queue
type Logger struct {
	config     *LoggerConfig
	logger     *logrus.Logger
	manager    *LogManager
	fileHandle *os.File
	filePath   string
	startTime  time.Time

	mu       sync.RWMutex
	closed   bool
	logQueue chan logEntry
	done     chan struct{}
	written  int
}

// NewLogger creates a new logger instance. A nil config uses DefaultConfig.
func NewLogger(config *LoggerConfig) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger config: %w", err)
	}

	l := &Logger{
		config:    config,
		logger:    logrus.New(),
		startTime: time.Now(),
		logQueue:  make(chan logEntry, 1024),
		done:      make(chan struct{}),
	}
	if config.OutputDir != "" {
		l.manager = NewLogManager(config.OutputDir, config.MaxFiles, config.MaxSize, config.Compress)
	}

	if err := l.setup(); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	go l.runLogQueue()

	return l, nil
}

// setup configures the logger with the given configuration
func (l *Logger) setup() error {
	level, err := logrus.ParseLevel(string(l.config.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.logger.SetLevel(level)
	l.logger.SetReportCaller(l.config.Caller)

	if err := l.setFormatter(); err != nil {
		return err
	}
	return l.setupOutput()
}

// setFormatter configures the log formatter
func (l *Logger) setFormatter() error {
	callerPrettyfier := func(f *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}

	switch l.config.Format {
	case LogFormatJSON:
		l.logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		})

	case LogFormatText:
		l.logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    l.config.Timestamp,
			TimestampFormat:  time.RFC3339,
			ForceColors:      l.config.Colors,
			DisableColors:    !l.config.Colors,
			CallerPrettyfier: callerPrettyfier,
		})

	case LogFormatCustom:
		l.logger.SetFormatter(&EngineFormatter{
			CustomFormatter: CustomFormatter{
				Timestamp: l.config.Timestamp,
				Caller:    l.config.Caller,
				Colors:    l.config.Colors,
			},
		})

	default:
		return fmt.Errorf("unsupported log format: %s", l.config.Format)
	}

	return nil
}

// setupOutput opens a fresh timestamped log file and points the logger at it and the console
func (l *Logger) setupOutput() error {
	var writers []io.Writer
	if l.config.Console {
		writers = append(writers, os.Stderr)
	}

	if l.config.OutputDir != "" {
		if err := os.MkdirAll(l.config.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		timestamp := time.Now().Format("2006-01-02_15-04-05.000")
		path := filepath.Join(l.config.OutputDir, filePrefix+timestamp+".log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		l.fileHandle = file
		l.filePath = path
		writers = append(writers, file)
	}

	switch len(writers) {
	case 0:
		l.logger.SetOutput(io.Discard)
	case 1:
		l.logger.SetOutput(writers[0])
	default:
		l.logger.SetOutput(io.MultiWriter(writers...))
	}

	if l.fileHandle != nil {
		l.logger.WithFields(logrus.Fields{
			"start_time": l.startTime.Format(time.RFC3339),
			"log_file":   l.filePath,
			"level":      l.config.Level,
			"format":     l.config.Format,
		}).Info("Fuzzy engine logging initialized")
	}
	return nil
}

// rotateLogs starts a new file once the current one exceeds MaxSize
func (l *Logger) rotateLogs() error {
	if l.fileHandle == nil {
		return nil
	}

	stat, err := l.fileHandle.Stat()
	if err != nil {
		return err
	}
	if stat.Size() < l.config.MaxSize {
		return nil
	}

	old := l.filePath
	l.fileHandle.Close()
	l.fileHandle = nil
	if err := l.setupOutput(); err != nil {
		return err
	}
	if l.config.Compress {
		return l.manager.compressFile(old)
	}
	return nil
}

// runLogQueue writes queued entries until the queue is closed
func (l *Logger) runLogQueue() {
	defer close(l.done)
	for entry := range l.logQueue {
		l.logger.WithFields(entry.fields).Log(entry.level, entry.msg)
		l.written++
		if l.written%rotateEvery == 0 {
			if err := l.rotateLogs(); err != nil {
				l.logger.WithError(err).Warn("Log rotation failed")
			}
		}
	}
}

func (l *Logger) enqueue(level logrus.Level, msg string, fields map[string]interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	l.logQueue <- logEntry{level: level, msg: msg, fields: fields}
}

// Engine specific logging methods

// LogEvaluation logs a finished calculation
func (l *Logger) LogEvaluation(res *execution.Result, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fired := 0
	for _, s := range res.Strengths {
		if s.Strength > 0 {
			fired++
		}
	}
	fields["model"] = res.Model
	fields["run_id"] = res.RunID
	fields["duration"] = res.Duration
	fields["outputs"] = res.Outputs
	fields["rules_fired"] = fired

	l.logger.WithFields(fields).Info("Model evaluated")
}

// LogEvaluationError logs a failed calculation
func (l *Logger) LogEvaluationError(model string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["model"] = model
	fields["error"] = err.Error()

	l.logger.WithFields(fields).Error("Evaluation failed")
}

// LogRuleFired logs the strength of a rule that contributed to an output
func (l *Logger) LogRuleFired(model string, rule string, strength float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["model"] = model
	fields["rule"] = rule
	fields["strength"] = strength

	l.logger.WithFields(fields).Debug("Rule fired")
}

// LogModelLoaded logs a model read from disk or the store
func (l *Logger) LogModelLoaded(model string, source string, variables int, rules int, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["model"] = model
	fields["source"] = source
	fields["variables"] = variables
	fields["rules"] = rules

	l.logger.WithFields(fields).Info("Model loaded")
}

// LogReload logs a hot reload attempt
func (l *Logger) LogReload(model string, path string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["model"] = model
	fields["path"] = path

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Warn("Model reload failed")
		return
	}
	l.logger.WithFields(fields).Info("Model reloaded")
}

// LogBatch logs batch throughput
func (l *Logger) LogBatch(model string, vectors int, failed int, perSec float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["model"] = model
	fields["vectors"] = vectors
	fields["failed"] = failed
	fields["evaluations_per_sec"] = perSec
	fields["uptime"] = time.Since(l.startTime)

	l.logger.WithFields(fields).Info("Batch complete")
}

// ObserveEvaluation logs every calculation reported by an executor
func (l *Logger) ObserveEvaluation(_ context.Context, model string, res *execution.Result, err error) {
	if err != nil {
		l.LogEvaluationError(model, err, nil)
		return
	}
	l.LogEvaluation(res, nil)
	if l.logger.IsLevelEnabled(logrus.DebugLevel) {
		for _, s := range res.Strengths {
			if s.Strength > 0 {
				l.LogRuleFired(model, s.Rule, s.Strength, nil)
			}
		}
	}
}

// Close drains the queue, closes the log file and prunes old files
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.logQueue)
	l.mu.Unlock()
	<-l.done

	if l.fileHandle != nil {
		l.fileHandle.Close()
	}
	if l.manager == nil {
		return nil
	}
	if err := l.manager.CleanupOldLogs(); err != nil {
		return fmt.Errorf("failed to cleanup log files: %w", err)
	}
	return nil
}

// GetLogger returns the underlying logrus logger
func (l *Logger) GetLogger() *logrus.Logger {
	return l.logger
}

// FilePath returns the current log file, or "" when file logging is off
func (l *Logger) FilePath() string {
	return l.filePath
}

// Debug logs a debug message (async)
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.enqueue(logrus.DebugLevel, msg, fields)
}

// Info logs an info message (async)
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.enqueue(logrus.InfoLevel, msg, fields)
}

// Warning logs a warning message (async)
func (l *Logger) Warning(msg string, fields map[string]interface{}) {
	l.enqueue(logrus.WarnLevel, msg, fields)
}

// Error logs an error message (async)
func (l *Logger) Error(msg string, fields map[string]interface{}) {
	l.enqueue(logrus.ErrorLevel, msg, fields)
}

// sortByModTime orders files oldest first
func sortByModTime(files []string) {
	sort.Slice(files, func(i, j int) bool {
		statI, errI := os.Stat(files[i])
		statJ, errJ := os.Stat(files[j])
		if errI != nil || errJ != nil {
			return files[i] < files[j]
		}
		return statI.ModTime().Before(statJ.ModTime())
	})
}
