// Package report is the shared sink for recoverable failures. Row upserts
// and alert dispatches report here and keep going; nothing in the pipeline
// is allowed to crash the process.
package report

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Reporter struct {
	log   zerolog.Logger
	count atomic.Int64
}

func New(log zerolog.Logger) *Reporter {
	return &Reporter{log: log}
}

// Recoverable records one row- or decision-scoped failure with the caller's
// file and line. kv carries structured context (ids, source url, partner).
func (r *Reporter) Recoverable(sev Severity, err error, msg string, kv map[string]any) {
	r.count.Add(1)

	var evt *zerolog.Event
	switch sev {
	case SeverityWarning:
		evt = r.log.Warn()
	default:
		evt = r.log.Error()
	}

	evt = evt.Caller(1).Str("severity", string(sev))
	if err != nil {
		evt = evt.Err(err)
	}
	for k, v := range kv {
		evt = evt.Interface(k, v)
	}
	evt.Msg(msg)
}

// Count returns how many failures were reported since startup.
func (r *Reporter) Count() int64 {
	return r.count.Load()
}
