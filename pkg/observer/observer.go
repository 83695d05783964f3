package observer

import (
	"fmt"
	"os"

	"github.com/reporoller/reporoller/pkg/logger"
	"github.com/reporoller/reporoller/pkg/stringutil"
)

// Observer is the capability pipeline stages use to report what
// happened (spec §5 "Suspension points", §8 "Observability"): a log
// line plus, where relevant, a metric update. The core never writes to
// stderr or a registry directly.
type Observer interface {
	Info(namespace, message string, args ...any)
	Warn(namespace, message string, args ...any)
	Error(namespace, message string, args ...any)
	Metrics() *Metrics
}

// StandardObserver logs through the namespaced DEBUG-pattern logger
// (pkg/logger) and records through a Metrics instance. INFO and WARN
// respect the DEBUG environment variable exactly as any other
// namespaced logger does; ERROR always writes, since a fatal pipeline
// error is not a debug concern.
type StandardObserver struct {
	metrics *Metrics
	loggers map[string]*logger.Logger
}

// NewStandardObserver returns a StandardObserver backed by metrics.
// metrics may be nil, in which case metric recording is a no-op — useful
// for callers that only want logging.
func NewStandardObserver(metrics *Metrics) *StandardObserver {
	return &StandardObserver{
		metrics: metrics,
		loggers: make(map[string]*logger.Logger),
	}
}

func (o *StandardObserver) loggerFor(namespace string) *logger.Logger {
	if l, ok := o.loggers[namespace]; ok {
		return l
	}
	l := logger.New(namespace)
	o.loggers[namespace] = l
	return l
}

func (o *StandardObserver) Info(namespace, message string, args ...any) {
	o.loggerFor(namespace).Printf("INFO "+message, args...)
}

// Warn logs message at namespace, sanitising it through
// stringutil.SanitizeErrorMessage first so a resolved secret value or
// secret-shaped name never reaches the log sink (spec §7).
func (o *StandardObserver) Warn(namespace, message string, args ...any) {
	o.loggerFor(namespace).Printf("WARN "+stringutil.SanitizeErrorMessage(message), args...)
}

// maxLogMessageLength bounds a single ERROR line so a runaway message (an
// echoed Hub response body, a deeply nested validation error) can't flood
// the log sink.
const maxLogMessageLength = 2000

func (o *StandardObserver) Error(namespace, message string, args ...any) {
	sanitised := stringutil.Truncate(stringutil.SanitizeErrorMessage(message), maxLogMessageLength)
	fmt.Fprintf(os.Stderr, "ERROR [%s] "+sanitised+"\n", append([]any{namespace}, args...)...)
}

func (o *StandardObserver) Metrics() *Metrics {
	return o.metrics
}

// NoopObserver discards every log line and returns a nil Metrics,
// intended for callers (and tests) that have no Observer wired.
type NoopObserver struct{}

func (NoopObserver) Info(string, string, ...any)  {}
func (NoopObserver) Warn(string, string, ...any)  {}
func (NoopObserver) Error(string, string, ...any) {}
func (NoopObserver) Metrics() *Metrics            { return nil }

// RecordingObserver accumulates every call it receives, for test
// assertions that need to verify a warning or error was actually
// emitted (e.g. "skip this endpoint and log WARN").
type RecordingObserver struct {
	Infos  []Entry
	Warns  []Entry
	Errors []Entry
}

// Entry is one recorded log call.
type Entry struct {
	Namespace string
	Message   string
}

func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

func (r *RecordingObserver) Info(namespace, message string, args ...any) {
	r.Infos = append(r.Infos, Entry{Namespace: namespace, Message: formatEntry(message, args)})
}

func (r *RecordingObserver) Warn(namespace, message string, args ...any) {
	r.Warns = append(r.Warns, Entry{Namespace: namespace, Message: formatEntry(message, args)})
}

func (r *RecordingObserver) Error(namespace, message string, args ...any) {
	r.Errors = append(r.Errors, Entry{Namespace: namespace, Message: formatEntry(message, args)})
}

func (r *RecordingObserver) Metrics() *Metrics { return nil }

func formatEntry(message string, args []any) string {
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}
