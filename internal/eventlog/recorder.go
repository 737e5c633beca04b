package eventlog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/feedback-core/internal/output/controller"
)

// queueSize bounds the number of events waiting to be written.
const queueSize = 256

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder queues events and writes them to a repository from one goroutine.
//
// Thread Safety: Record may be called from any goroutine.
type Recorder struct {
	repo   Repository
	runID  string
	queue  chan *Event
	now    func() time.Time
	logger Logger

	hookMu  sync.RWMutex
	onEvent func(Event)

	dropped atomic.Uint64
	written atomic.Uint64
}

// NewRecorder creates a recorder for one daemon run. repo may be nil, in
// which case events only reach the OnEvent hook.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{
		repo:   repo,
		runID:  uuid.NewString(),
		queue:  make(chan *Event, queueSize),
		now:    func() time.Time { return time.Now().UTC() },
		logger: noopLogger{},
	}
}

// SetLogger sets the logger.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// SetOnEvent registers fn to be called synchronously for every recorded
// event, before it is queued.
func (r *Recorder) SetOnEvent(fn func(Event)) {
	r.hookMu.Lock()
	r.onEvent = fn
	r.hookMu.Unlock()
}

// RunID returns the id stamped on every event of this run.
func (r *Recorder) RunID() string { return r.runID }

// Record stamps and queues an event. It never blocks.
func (r *Recorder) Record(controllerName string, kind Kind, message string, details map[string]any) {
	ev := &Event{
		ID:         "evt-" + uuid.NewString(),
		RunID:      r.runID,
		Controller: controllerName,
		Kind:       kind,
		Message:    message,
		Details:    details,
		CreatedAt:  r.now(),
	}

	r.hookMu.RLock()
	hook := r.onEvent
	r.hookMu.RUnlock()
	if hook != nil {
		hook(*ev)
	}

	if r.repo == nil {
		return
	}
	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
		r.logger.Warn("event queue full, dropping event", "controller", controllerName, "kind", string(kind))
	}
}

// RecordError records err against controllerName. Errors wrapping
// controller.ErrDisabled are recorded as KindDisabled, everything else as
// fallback.
func (r *Recorder) RecordError(controllerName string, fallback Kind, err error) {
	if err == nil {
		return
	}
	kind := fallback
	if errors.Is(err, controller.ErrDisabled) {
		kind = KindDisabled
	}
	details := map[string]any{"error_kind": controller.KindOf(err).String()}
	var cerr *controller.Error
	if errors.As(err, &cerr) && cerr.Op != "" {
		details["op"] = cerr.Op
	}
	r.Record(controllerName, kind, err.Error(), details)
}

// Run writes queued events until ctx is cancelled, then drains what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case ev := <-r.queue:
			r.write(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-r.queue:
					r.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ev *Event) {
	// The run context is already cancelled while draining.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.repo.Create(ctx, ev); err != nil {
		r.logger.Error("event write failed", "controller", ev.Controller, "kind", string(ev.Kind), "error", err)
		return
	}
	r.written.Add(1)
}

// RecorderStats holds recorder counters.
type RecorderStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Queued  int    `json:"queued"`
}

// Stats returns recorder counters.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Written: r.written.Load(),
		Dropped: r.dropped.Load(),
		Queued:  len(r.queue),
	}
}
