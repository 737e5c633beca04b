package cabinet

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/nerrad567/feedback-core/internal/controllers/artnet"
	"github.com/nerrad567/feedback-core/internal/controllers/comproxy"
	"github.com/nerrad567/feedback-core/internal/eventlog"
	"github.com/nerrad567/feedback-core/internal/infrastructure/config"
	"github.com/nerrad567/feedback-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/feedback-core/internal/output/controller"
	"github.com/nerrad567/feedback-core/internal/output/toy"
)

// Default timing.
const (
	DefaultTickInterval      = 20 * time.Millisecond
	DefaultTelemetryInterval = 10 * time.Second
	DefaultRetryBackoff      = 5 * time.Second
)

// Logger defines the logging interface used by the cabinet and handed to
// every controller it builds.
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

// Events receives controller lifecycle events. *eventlog.Recorder implements it.
type Events interface {
	RunID() string
	Record(controllerName string, kind eventlog.Kind, message string, details map[string]any)
	RecordError(controllerName string, fallback eventlog.Kind, err error)
}

type noopEvents struct{}

func (noopEvents) RunID() string                                        { return "" }
func (noopEvents) Record(string, eventlog.Kind, string, map[string]any) {}
func (noopEvents) RecordError(string, eventlog.Kind, error)             {}

// Telemetry receives periodic statistics samples. *influxdb.Client
// implements it.
type Telemetry interface {
	WriteControllerStats(s controller.Stats)
	WriteTickStats(s influxdb.TickStats)
	WriteArtNetEngine(packetsSent, sendFailures uint64, disabled bool)
	WriteComProxy(controllerName string, requests, retries, failures uint64)
}

// StateFunc is called from the tick loop when a controller changes state.
type StateFunc func(name string, from, to controller.State)

// entry is the tick loop's bookkeeping for one controller.
type entry struct {
	ctrl  *controller.Controller
	cfg   config.ControllerConfig
	proxy *comproxy.Client

	lastState controller.State
	retryAt   time.Time
	configErr error
	failing   bool
}

// ControllerStatus is the status of one controller as reported by Stats.
type ControllerStatus struct {
	controller.Stats
	Type        string                `json:"type"`
	Retrying    bool                  `json:"retrying"`
	RetryAt     time.Time             `json:"retry_at,omitzero"`
	ConfigError string                `json:"config_error,omitempty"`
	Proxy       *comproxy.ClientStats `json:"proxy,omitempty"`
}

// Stats is a snapshot of the whole cabinet.
type Stats struct {
	Name        string              `json:"name"`
	RunID       string              `json:"run_id,omitempty"`
	Ticks       uint64              `json:"ticks"`
	Overruns    uint64              `json:"overruns"`
	LastTick    time.Duration       `json:"last_tick_ns"`
	Controllers []ControllerStatus  `json:"controllers"`
	Toys        []toy.Info          `json:"toys"`
	ArtNet      *artnet.EngineStats `json:"artnet,omitempty"`
}

// Cabinet owns the toys and controllers of one cabinet and runs the tick
// loop that feeds toy layers through to the hardware.
//
// Thread Safety: Init, Tick, Finish and Stats are serialised on one mutex.
// Layer writes and the accessors may be called concurrently with the loop.
type Cabinet struct {
	name              string
	tickInterval      time.Duration
	telemetryInterval time.Duration

	toys    *toy.Registry
	entries []*entry
	byName  map[string]*entry
	engine  *artnet.Engine
	closers []io.Closer

	logger    Logger
	events    Events
	telemetry Telemetry
	onState   StateFunc
	now       func() time.Time

	loopMu       sync.Mutex
	retryBackoff time.Duration
	finished     bool

	statsMu  sync.Mutex
	ticks    uint64
	overruns uint64
	lastTick time.Duration
}

func newCabinet(cfg *config.Config, toys *toy.Registry, entries []*entry, engine *artnet.Engine,
	closers []io.Closer, logger Logger) *Cabinet {
	c := &Cabinet{
		name:              cfg.Cabinet.Name,
		tickInterval:      time.Duration(cfg.Cabinet.TickInterval) * time.Millisecond,
		telemetryInterval: time.Duration(cfg.Cabinet.TelemetryInterval) * time.Second,
		toys:              toys,
		entries:           entries,
		byName:            make(map[string]*entry, len(entries)),
		engine:            engine,
		closers:           closers,
		logger:            logger,
		events:            noopEvents{},
		now:               time.Now,
		retryBackoff:      DefaultRetryBackoff,
	}
	if c.tickInterval <= 0 {
		c.tickInterval = DefaultTickInterval
	}
	if c.telemetryInterval <= 0 {
		c.telemetryInterval = DefaultTelemetryInterval
	}
	for _, e := range entries {
		c.byName[e.ctrl.Name()] = e
		e.lastState = e.ctrl.State()
	}
	return c
}

// SetEvents sets the lifecycle event sink.
func (c *Cabinet) SetEvents(events Events) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if events == nil {
		events = noopEvents{}
	}
	c.events = events
}

// SetTelemetry sets the statistics sink written to by Run.
func (c *Cabinet) SetTelemetry(t Telemetry) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	c.telemetry = t
}

// SetOnStateChange registers fn to be called on controller state changes.
func (c *Cabinet) SetOnStateChange(fn StateFunc) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	c.onState = fn
}

// SetOnFrame registers fn on every controller.
func (c *Cabinet) SetOnFrame(fn controller.FrameFunc) {
	for _, e := range c.entries {
		e.ctrl.SetOnFrame(fn)
	}
}

// SetRetryBackoff sets the delay before a disconnected controller is
// reconnected.
func (c *Cabinet) SetRetryBackoff(d time.Duration) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	c.retryBackoff = d
}

// Name returns the cabinet name.
func (c *Cabinet) Name() string { return c.name }

// TickInterval returns the tick period used by Run.
func (c *Cabinet) TickInterval() time.Duration { return c.tickInterval }

// Toys returns the toy registry.
func (c *Cabinet) Toys() *toy.Registry { return c.toys }

// Controller returns the named controller.
func (c *Cabinet) Controller(name string) (*controller.Controller, bool) {
	e, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return e.ctrl, true
}

// Controllers returns the controllers in configuration order.
func (c *Cabinet) Controllers() []*controller.Controller {
	out := make([]*controller.Controller, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.ctrl
	}
	return out
}

// Init verifies and connects every controller. Failures are logged and
// recorded but never abort the cabinet: controllers with invalid settings
// stay disconnected for good, the others are retried by the tick loop.
func (c *Cabinet) Init(ctx context.Context) error {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.finished {
		return ErrFinished
	}

	now := c.now()
	connected := 0
	for _, e := range c.entries {
		err := e.ctrl.Init(ctx)
		switch {
		case err == nil:
			connected++
			c.events.Record(e.ctrl.Name(), eventlog.KindConnected, "controller connected", nil)
		case controller.KindOf(err) == controller.KindConfiguration:
			e.configErr = err
			c.logger.Error("controller disabled by invalid settings",
				"controller", e.ctrl.Name(), "type", e.cfg.Type, "error", err)
			c.events.RecordError(e.ctrl.Name(), eventlog.KindConnectFailed, err)
		default:
			e.retryAt = now.Add(c.retryBackoff)
			c.events.RecordError(e.ctrl.Name(), eventlog.KindConnectFailed, err)
		}
		c.observe(e)
	}

	c.logger.Info("cabinet initialised",
		"cabinet", c.name,
		"controllers", len(c.entries),
		"connected", connected,
		"toys", c.toys.Len(),
	)
	return nil
}

// Tick runs one pass of the loop: toys are composited into controller
// channels, then every controller is reconnected if due and updated.
func (c *Cabinet) Tick(ctx context.Context) error {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.finished {
		return ErrFinished
	}

	start := c.now()
	c.toys.UpdateAll()
	for _, e := range c.entries {
		if ctx.Err() != nil {
			break
		}
		c.service(ctx, e, start)
	}
	elapsed := c.now().Sub(start)

	c.statsMu.Lock()
	c.ticks++
	c.lastTick = elapsed
	if elapsed > c.tickInterval {
		c.overruns++
	}
	c.statsMu.Unlock()
	return nil
}

func (c *Cabinet) service(ctx context.Context, e *entry, now time.Time) {
	defer c.observe(e)
	if e.configErr != nil {
		return
	}

	name := e.ctrl.Name()
	if e.ctrl.State() == controller.StateDisconnected {
		if now.Before(e.retryAt) {
			return
		}
		if err := e.ctrl.Connect(ctx); err != nil {
			e.retryAt = now.Add(c.retryBackoff)
			c.events.RecordError(name, eventlog.KindConnectFailed, err)
			return
		}
		c.events.Record(name, eventlog.KindConnected, "controller reconnected", nil)
	}

	err := e.ctrl.Update(ctx)
	if err == nil {
		if e.failing {
			e.failing = false
			c.logger.Info("controller recovered", "controller", name)
		}
		return
	}

	var cerr *controller.Error
	op := ""
	if errors.As(err, &cerr) {
		op = cerr.Op
	}
	kind := controller.KindOf(err)
	if !e.failing {
		c.logger.Error("controller update failed",
			"controller", name,
			"op", op,
			"kind", kind.String(),
			"error", err,
		)
	}
	e.failing = true
	c.events.RecordError(name, eventlog.KindUpdateFailed, err)

	if kind == controller.KindConnection || kind == controller.KindIPC {
		_ = e.ctrl.Disconnect()
		e.retryAt = now.Add(c.retryBackoff)
		c.events.Record(name, eventlog.KindDisconnected, "controller disconnected after failure",
			map[string]any{"retry_in": c.retryBackoff.String()})
	}
}

// observe fires the state change hook when the controller state moved since
// the last look.
func (c *Cabinet) observe(e *entry) {
	st := e.ctrl.State()
	if st == e.lastState {
		return
	}
	from := e.lastState
	e.lastState = st
	if c.onState != nil {
		c.onState(e.ctrl.Name(), from, st)
	}
}

// Run ticks at the configured interval and writes telemetry until ctx is
// cancelled. It returns nil on cancellation.
func (c *Cabinet) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	telemetry := time.NewTicker(c.telemetryInterval)
	defer telemetry.Stop()

	c.logger.Info("cabinet running", "cabinet", c.name, "tick_interval", c.tickInterval.String())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				return err
			}
		case <-telemetry.C:
			c.writeTelemetry()
		}
	}
}

func (c *Cabinet) writeTelemetry() {
	c.loopMu.Lock()
	t := c.telemetry
	c.loopMu.Unlock()
	if t == nil {
		return
	}

	s := c.Stats()
	t.WriteTickStats(influxdb.TickStats{
		Cabinet:  s.Name,
		Ticks:    s.Ticks,
		Overruns: s.Overruns,
		LastTick: s.LastTick,
		Toys:     len(s.Toys),
	})
	for _, cs := range s.Controllers {
		t.WriteControllerStats(cs.Stats)
		if cs.Proxy != nil {
			t.WriteComProxy(cs.Name, cs.Proxy.Requests, cs.Proxy.Retries, cs.Proxy.Failures)
		}
	}
	if s.ArtNet != nil {
		t.WriteArtNetEngine(s.ArtNet.PacketsSent, s.ArtNet.SendFailures, s.ArtNet.Disabled)
	}
}

// Finish drives every toy to its inactive baseline, sends that final frame,
// finishes the controllers and releases proxies and sockets. The cabinet
// cannot be used afterwards.
func (c *Cabinet) Finish(ctx context.Context) error {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.finished {
		return nil
	}
	c.finished = true

	c.toys.FinishAll()
	var errs []error
	for _, e := range c.entries {
		name := e.ctrl.Name()
		if err := e.ctrl.Update(ctx); err != nil {
			c.logger.Warn("final update failed", "controller", name, "error", err)
		}
		wasConnected := e.ctrl.IsConnected()
		if err := e.ctrl.Finish(); err != nil {
			errs = append(errs, err)
		}
		if wasConnected {
			c.events.Record(name, eventlog.KindDisconnected, "controller finished", nil)
		}
		c.observe(e)
	}

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.engine != nil {
		if err := c.engine.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	c.logger.Info("cabinet finished", "cabinet", c.name)
	return errors.Join(errs...)
}

// Stats returns a snapshot of the cabinet.
func (c *Cabinet) Stats() Stats {
	c.statsMu.Lock()
	s := Stats{
		Name:     c.name,
		Ticks:    c.ticks,
		Overruns: c.overruns,
		LastTick: c.lastTick,
	}
	c.statsMu.Unlock()

	c.loopMu.Lock()
	s.RunID = c.events.RunID()
	s.Controllers = make([]ControllerStatus, 0, len(c.entries))
	for _, e := range c.entries {
		s.Controllers = append(s.Controllers, c.status(e))
	}
	c.loopMu.Unlock()

	s.Toys = make([]toy.Info, 0, c.toys.Len())
	for _, t := range c.toys.All() {
		s.Toys = append(s.Toys, t.Info())
	}

	if c.engine != nil {
		es := c.engine.Stats()
		s.ArtNet = &es
	}
	return s
}

func (c *Cabinet) status(e *entry) ControllerStatus {
	cs := ControllerStatus{
		Stats: e.ctrl.Stats(),
		Type:  e.cfg.Type,
	}
	if e.configErr != nil {
		cs.ConfigError = e.configErr.Error()
	} else if e.ctrl.State() == controller.StateDisconnected {
		cs.Retrying = true
		cs.RetryAt = e.retryAt
	}
	if e.proxy != nil {
		ps := e.proxy.Stats()
		cs.Proxy = &ps
	}
	return cs
}
