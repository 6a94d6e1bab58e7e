package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"farmreport/pkg/config"
	"farmreport/pkg/database"
	"farmreport/pkg/logger"
)

// ErrQueryNotSupported is returned by sinks that cannot read entries back.
var ErrQueryNotSupported = errors.New("query not supported by this audit backend")

// Config holds configuration parameters for the audit sinks.
type Config struct {
	Enabled     bool
	Backend     string // stdout, file, postgres, kafka, noop
	Service     string
	FilePath    string
	MaxSize     int // MB before rotation
	MaxAge      int // days
	Compress    bool
	BufferSize  int
	FlushPeriod time.Duration
	Kafka       config.KafkaConfig
}

// FromConfig converts the service configuration section.
func FromConfig(cfg config.AuditConfig, service string) *Config {
	return &Config{
		Enabled:     cfg.Enabled,
		Backend:     cfg.Backend,
		Service:     service,
		FilePath:    cfg.FilePath,
		MaxSize:     100,
		MaxAge:      30,
		Compress:    true,
		BufferSize:  cfg.BufferSize,
		FlushPeriod: cfg.FlushPeriod,
		Kafka:       cfg.Kafka,
	}
}

// StdoutLogger writes entries as JSON lines prefixed with "[AUDIT]".
type StdoutLogger struct {
	out io.Writer
	mu  sync.Mutex
}

// NewStdoutLogger creates a StdoutLogger. A nil writer means os.Stdout.
func NewStdoutLogger(out io.Writer) *StdoutLogger {
	if out == nil {
		out = os.Stdout
	}
	return &StdoutLogger{out: out}
}

// Log marshals the entry and writes one line.
func (l *StdoutLogger) Log(_ context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err = fmt.Fprintf(l.out, "[AUDIT] %s\n", data)
	return err
}

// Query is not supported by StdoutLogger.
func (l *StdoutLogger) Query(_ context.Context, _ *QueryFilter) ([]*Entry, error) {
	return nil, ErrQueryNotSupported
}

// Close does nothing.
func (l *StdoutLogger) Close() error {
	return nil
}

// FileLogger writes JSON lines to a rotated file. Entries go through a
// buffered channel and are flushed periodically; when the channel is full
// the entry is written synchronously.
type FileLogger struct {
	config *Config
	sink   *lumberjack.Logger
	writer *bufio.Writer
	mu     sync.Mutex
	buffer chan *Entry
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewFileLogger opens (or creates) the log file and starts the writer loop.
func NewFileLogger(cfg *Config) (*FileLogger, error) {
	path := cfg.FilePath
	if path == "" {
		path = "audit.log"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log dir: %w", err)
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	sink := &lumberjack.Logger{
		Filename: path,
		MaxSize:  cfg.MaxSize,
		MaxAge:   cfg.MaxAge,
		Compress: cfg.Compress,
	}

	l := &FileLogger{
		config: cfg,
		sink:   sink,
		writer: bufio.NewWriter(sink),
		buffer: make(chan *Entry, bufferSize),
		done:   make(chan struct{}),
	}

	l.wg.Add(1)
	go l.processLoop()

	return l, nil
}

// Log queues the entry for writing.
func (l *FileLogger) Log(_ context.Context, entry *Entry) error {
	select {
	case l.buffer <- entry:
		return nil
	default:
		return l.writeEntry(entry)
	}
}

// Query is not supported by FileLogger.
func (l *FileLogger) Query(_ context.Context, _ *QueryFilter) ([]*Entry, error) {
	return nil, ErrQueryNotSupported
}

// Close stops the loop, drains queued entries, flushes and closes the file.
func (l *FileLogger) Close() error {
	close(l.done)
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		select {
		case entry := <-l.buffer:
			if err := l.writeEntryUnsafe(entry); err != nil {
				logger.Log.Warn("Failed to write audit entry during shutdown", "error", err)
			}
		default:
			if err := l.writer.Flush(); err != nil {
				logger.Log.Warn("Failed to flush audit writer", "error", err)
			}
			return l.sink.Close()
		}
	}
}

func (l *FileLogger) processLoop() {
	defer l.wg.Done()

	flushPeriod := l.config.FlushPeriod
	if flushPeriod <= 0 {
		flushPeriod = 5 * time.Second
	}

	ticker := time.NewTicker(flushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case entry := <-l.buffer:
			if err := l.writeEntry(entry); err != nil {
				logger.Log.Warn("Failed to write audit entry", "error", err)
			}
		case <-ticker.C:
			l.flush()
		}
	}
}

func (l *FileLogger) writeEntry(entry *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeEntryUnsafe(entry)
}

// writeEntryUnsafe вызывается под l.mu
func (l *FileLogger) writeEntryUnsafe(entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = l.writer.Write(append(data, '\n'))
	return err
}

func (l *FileLogger) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		logger.Log.Warn("Failed to flush audit writer", "error", err)
	}
}

// NoopLogger discards entries.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(_ context.Context, _ *Entry) error { return nil }

// Query returns no entries.
func (NoopLogger) Query(_ context.Context, _ *QueryFilter) ([]*Entry, error) { return nil, nil }

// Close does nothing.
func (NoopLogger) Close() error { return nil }

// Option supplies dependencies for backends that need them.
type Option func(*deps)

type deps struct {
	db     database.DB
	writer MessageWriter
	out    io.Writer
}

// WithDB sets the database used by the postgres backend.
func WithDB(db database.DB) Option {
	return func(d *deps) { d.db = db }
}

// WithMessageWriter sets the kafka writer, mainly for tests.
func WithMessageWriter(w MessageWriter) Option {
	return func(d *deps) { d.writer = w }
}

// WithOutput sets the stdout backend writer.
func WithOutput(w io.Writer) Option {
	return func(d *deps) { d.out = w }
}

// New returns the Logger selected by cfg.Backend. Disabled auditing and the
// "noop" backend return NoopLogger; an unknown backend falls back to stdout.
func New(cfg *Config, opts ...Option) (Logger, error) {
	if cfg == nil || !cfg.Enabled {
		return NoopLogger{}, nil
	}

	var d deps
	for _, opt := range opts {
		opt(&d)
	}

	switch cfg.Backend {
	case "noop":
		return NoopLogger{}, nil
	case "file":
		return NewFileLogger(cfg)
	case "postgres":
		if d.db == nil {
			return nil, errors.New("audit postgres backend requires a database")
		}
		return NewPostgresLogger(d.db, cfg.Service), nil
	case "kafka":
		if d.writer != nil {
			return NewKafkaLogger(d.writer, cfg.Service), nil
		}
		return NewKafkaLoggerFromConfig(cfg.Kafka, cfg.Service)
	case "stdout", "":
		return NewStdoutLogger(d.out), nil
	default:
		logger.Log.Warn("Unknown audit backend, using stdout", "backend", cfg.Backend)
		return NewStdoutLogger(d.out), nil
	}
}
