package progress

import (
	"sync"

	"github.com/rs/zerolog"
)

type Tracker interface {
	SetMessage(msg string)
	SetTotal(total int64)
	SetDone(n int)
	MarkFinished()
}

type NoopTracker struct{}

var _ Tracker = NoopTracker{}

func (n NoopTracker) SetMessage(msg string) {}
func (n NoopTracker) SetTotal(total int64)  {}
func (n NoopTracker) SetDone(n2 int)        {}
func (n NoopTracker) MarkFinished()         {}

// LogTracker reports progress as debug log lines.
type LogTracker struct {
	mu    sync.Mutex
	log   zerolog.Logger
	msg   string
	total int64
	done  int
}

var _ Tracker = (*LogTracker)(nil)

func NewLogTracker(log zerolog.Logger) *LogTracker {
	return &LogTracker{log: log}
}

func (l *LogTracker) SetMessage(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msg = msg
}

func (l *LogTracker) SetTotal(total int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = total
}

func (l *LogTracker) SetDone(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done = n
	l.log.Debug().Str("task", l.msg).Int("done", n).Int64("total", l.total).Msg("progress")
}

func (l *LogTracker) MarkFinished() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Debug().Str("task", l.msg).Int("done", l.done).Int64("total", l.total).Msg("finished")
}

// Done returns the last count reported through SetDone.
func (l *LogTracker) Done() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}
