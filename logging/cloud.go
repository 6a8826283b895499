package logging

import (
	"context"
	"fmt"
	"sync"

	cloudlogging "cloud.google.com/go/logging"
)

// DefaultCloudLogName is the Cloud Logging log id used for model interaction entries.
const DefaultCloudLogName = "greeting-agent"

// entryWriter is the subset of *cloudlogging.Logger used by CloudSink.
type entryWriter interface {
	Log(e cloudlogging.Entry)
	Flush() error
}

// CloudSinkOptions configures a CloudSink.
type CloudSinkOptions struct {
	// LogName is the Cloud Logging log id. Defaults to DefaultCloudLogName.
	LogName string
	// Logger receives transport failures reported by the client library.
	Logger Logger
}

// CloudSink writes entries to Google Cloud Logging. The client library
// buffers entries and uploads them in the background; transport errors are
// reported through the local Logger and otherwise dropped.
type CloudSink struct {
	client *cloudlogging.Client
	writer entryWriter
	logger Logger

	closeOnce sync.Once
	closeErr  error
}

// NewCloudSink creates a client bound to projectID and returns a sink for
// the configured log name.
func NewCloudSink(ctx context.Context, projectID string, optFns ...func(o *CloudSinkOptions)) (*CloudSink, error) {
	if projectID == "" {
		return nil, fmt.Errorf("cloud logging: project id is required")
	}

	opts := CloudSinkOptions{
		LogName: DefaultCloudLogName,
		Logger:  NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := cloudlogging.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("cloud logging: create client: %w", err)
	}

	logger := opts.Logger
	client.OnError = func(err error) {
		logger.Warn("sink.cloud.error", "error", err)
	}

	return &CloudSink{
		client: client,
		writer: client.Logger(opts.LogName),
		logger: logger,
	}, nil
}

// newCloudSinkWithWriter builds a sink around an arbitrary writer (tests).
func newCloudSinkWithWriter(w entryWriter, logger Logger) *CloudSink {
	if logger == nil {
		logger = NoOpLogger{}
	}
	return &CloudSink{writer: w, logger: logger}
}

// Log implements Sink.
func (s *CloudSink) Log(_ context.Context, severity Severity, msg string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("sink.cloud.panic", "recovered", r)
		}
	}()

	s.writer.Log(cloudlogging.Entry{
		Severity: cloudSeverity(severity),
		Payload:  msg,
	})
}

// Flush blocks until buffered entries are sent.
func (s *CloudSink) Flush() error {
	return s.writer.Flush()
}

// Close flushes pending entries and releases the client. It is idempotent.
func (s *CloudSink) Close() error {
	s.closeOnce.Do(func() {
		if err := s.writer.Flush(); err != nil {
			s.logger.Warn("sink.cloud.flush_failed", "error", err)
		}
		if s.client != nil {
			s.closeErr = s.client.Close()
		}
	})
	return s.closeErr
}

func cloudSeverity(s Severity) cloudlogging.Severity {
	if s == SeverityError {
		return cloudlogging.Error
	}
	return cloudlogging.Info
}
