package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// publishLogger provides per lead magnet logging for a single Publish call.
// It writes simultaneously to the application's structured logger (slog) and
// the lead magnet's own log file (raw text, one line per step).
// the file is attached late (see attachFile), until then lines only go to slog.
type publishLogger struct {
	publisher *Publisher
	slug      string
	logFile   *os.File // nil until attachFile succeeds, or when logging to file is disabled
}

func (publisher *Publisher) newPublishLogger(slug string) *publishLogger {
	return &publishLogger{publisher: publisher, slug: slug}
}

// attachFile opens <logRoot>/<slug>.log for appending. an empty logRoot disables the file.
// failing to open the log is not a reason to fail the publish, it is reported to slog only.
func (publishLog *publishLogger) attachFile(logRoot string) {
	if logRoot == "" {
		return
	}
	logFile, err := openLogFile(logRoot, publishLog.slug)
	if err != nil {
		publishLog.publisher.logger.Warn("failed to open publish log file",
			"slug", publishLog.slug,
			"error", err,
		)
		return
	}
	publishLog.logFile = logFile
}

// logInfo writes a timestamped entry to the log file and a structured entry to slog.
// Safe to call even if logFile is nil.
func (publishLog *publishLogger) logInfo(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] %s\n", time.Now().UTC().Format(time.RFC3339), message)

	publishLog.publisher.logger.Info("publisher",
		"slug", publishLog.slug,
		"msg", message,
	)
	if publishLog.logFile != nil {
		publishLog.logFile.WriteString(line)
	}
}

// logFailure records the step that could not be recovered from.
func (publishLog *publishLogger) logFailure(reason string, err error) {
	publishLog.logInfo("FAILED: %s: %v", reason, err)
}

func (publishLog *publishLogger) close() {
	if publishLog.logFile != nil {
		publishLog.logFile.Close()
	}
}

// openLogFile creates or opens the publish log for a slug (each lead magnet has its own log file).
// the log directory is created if it does not exist.
// append mode keeps the history of every publish attempt for that slug in one file.
func openLogFile(logRoot string, slug string) (*os.File, error) {
	if err := os.MkdirAll(logRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logPath := filepath.Join(logRoot, slug+".log")
	return os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}
