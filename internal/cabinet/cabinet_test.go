package cabinet

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/feedback-core/internal/controllers/artnet"
	"github.com/nerrad567/feedback-core/internal/eventlog"
	"github.com/nerrad567/feedback-core/internal/infrastructure/config"
	"github.com/nerrad567/feedback-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/feedback-core/internal/output/controller"
	"github.com/nerrad567/feedback-core/internal/output/toy"
)

// fakeBackend is a scriptable controller backend.
type fakeBackend struct {
	name        string
	outputs     int
	verifyErr   error
	connectErr  error
	updateErr   error
	connects    int
	disconnects int
	frames      [][]byte
}

func (f *fakeBackend) Name() string                   { return f.name }
func (f *fakeBackend) VerifySettings() error          { return f.verifyErr }
func (f *fakeBackend) NumberOfConfiguredOutputs() int { return f.outputs }

func (f *fakeBackend) ConnectToController(context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connects++
	return nil
}

func (f *fakeBackend) DisconnectFromController() error {
	f.disconnects++
	return nil
}

func (f *fakeBackend) UpdateOutputs(_ context.Context, values []byte) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.frames = append(f.frames, append([]byte(nil), values...))
	return nil
}

type recordedEvent struct {
	controller string
	kind       eventlog.Kind
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEvents) RunID() string { return "run-1" }

func (f *fakeEvents) Record(name string, kind eventlog.Kind, _ string, _ map[string]any) {
	f.mu.Lock()
	f.events = append(f.events, recordedEvent{name, kind})
	f.mu.Unlock()
}

func (f *fakeEvents) RecordError(name string, kind eventlog.Kind, err error) {
	if errors.Is(err, controller.ErrDisabled) {
		kind = eventlog.KindDisabled
	}
	f.Record(name, kind, err.Error(), nil)
}

func (f *fakeEvents) kinds(name string) []eventlog.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []eventlog.Kind
	for _, e := range f.events {
		if e.controller == name {
			out = append(out, e.kind)
		}
	}
	return out
}

type countingLogger struct {
	noopLogger
	mu     sync.Mutex
	errors int
}

func (l *countingLogger) Error(string, ...any) {
	l.mu.Lock()
	l.errors++
	l.mu.Unlock()
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeCloser struct{ closed int }

func (f *fakeCloser) Close() error {
	f.closed++
	return nil
}

// newTestCabinet wraps the backends in a cabinet with fake events and clock.
func newTestCabinet(t *testing.T, backends ...*fakeBackend) (*Cabinet, *fakeEvents, *fakeClock) {
	t.Helper()
	entries := make([]*entry, len(backends))
	for i, b := range backends {
		entries[i] = &entry{
			ctrl: controller.New(b),
			cfg:  config.ControllerConfig{Name: b.name, Type: "fake"},
		}
	}
	c := newCabinet(config.Default(), toy.NewRegistry(), entries, nil, nil, noopLogger{})
	ev := &fakeEvents{}
	c.SetEvents(ev)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c.now = clock.now
	return c, ev, clock
}

func equalKinds(got []eventlog.Kind, want ...eventlog.Kind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestInitRecordsOutcome(t *testing.T) {
	ok := &fakeBackend{name: "ok", outputs: 4}
	down := &fakeBackend{name: "down", outputs: 4, connectErr: errors.New("no such device")}
	bad := &fakeBackend{name: "bad", outputs: 4, verifyErr: errors.New("unit out of range")}
	c, ev, _ := newTestCabinet(t, ok, down, bad)

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() = %v", err)
	}

	if !equalKinds(ev.kinds("ok"), eventlog.KindConnected) {
		t.Errorf("ok events = %v", ev.kinds("ok"))
	}
	if !equalKinds(ev.kinds("down"), eventlog.KindConnectFailed) {
		t.Errorf("down events = %v", ev.kinds("down"))
	}
	if !equalKinds(ev.kinds("bad"), eventlog.KindConnectFailed) {
		t.Errorf("bad events = %v", ev.kinds("bad"))
	}

	s := c.Stats()
	if s.RunID != "run-1" {
		t.Errorf("RunID = %q", s.RunID)
	}
	byName := map[string]ControllerStatus{}
	for _, cs := range s.Controllers {
		byName[cs.Name] = cs
	}
	if byName["ok"].State != "connected" || byName["ok"].Retrying {
		t.Errorf("ok status = %+v", byName["ok"])
	}
	if !byName["down"].Retrying {
		t.Errorf("down should be retrying: %+v", byName["down"])
	}
	if byName["bad"].ConfigError == "" || byName["bad"].Retrying {
		t.Errorf("bad status = %+v", byName["bad"])
	}
}

func TestTickReconnectsAfterBackoff(t *testing.T) {
	b := &fakeBackend{name: "strip", outputs: 3, connectErr: errors.New("port busy")}
	c, ev, clock := newTestCabinet(t, b)
	c.SetRetryBackoff(time.Second)
	ctx := context.Background()

	_ = c.Init(ctx)
	b.connectErr = nil

	if err := c.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if b.connects != 0 {
		t.Fatalf("reconnected before backoff elapsed")
	}

	clock.advance(time.Second)
	if err := c.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if b.connects != 1 {
		t.Fatalf("connects = %d, want 1", b.connects)
	}
	if !equalKinds(ev.kinds("strip"), eventlog.KindConnectFailed, eventlog.KindConnected) {
		t.Errorf("events = %v", ev.kinds("strip"))
	}
	if len(b.frames) != 1 {
		t.Errorf("frames after reconnect = %d, want 1", len(b.frames))
	}
}

func TestConfigurationErrorIsNeverRetried(t *testing.T) {
	b := &fakeBackend{name: "bad", outputs: 3, verifyErr: errors.New("no port")}
	c, _, clock := newTestCabinet(t, b)
	ctx := context.Background()

	_ = c.Init(ctx)
	b.verifyErr = nil
	for range 3 {
		clock.advance(time.Minute)
		_ = c.Tick(ctx)
	}
	if b.connects != 0 {
		t.Errorf("connects = %d, want 0", b.connects)
	}
}

func TestTickSendsOnlyChangedFrames(t *testing.T) {
	b := &fakeBackend{name: "lw", outputs: 4}
	c, _, _ := newTestCabinet(t, b)
	ctx := context.Background()
	_ = c.Init(ctx)

	ctrl, _ := c.Controller("lw")
	ctrl.SetValue(1, 200)
	_ = c.Tick(ctx)
	_ = c.Tick(ctx)
	ctrl.SetValue(1, 100)
	_ = c.Tick(ctx)

	if len(b.frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(b.frames))
	}
	if b.frames[0][1] != 200 || b.frames[1][1] != 100 {
		t.Errorf("frames = %v", b.frames)
	}
	if got := c.Stats().Ticks; got != 3 {
		t.Errorf("Ticks = %d, want 3", got)
	}
}

func TestConnectionFailureDisconnectsAndRetries(t *testing.T) {
	b := &fakeBackend{name: "pinone", outputs: 2}
	c, ev, clock := newTestCabinet(t, b)
	c.SetRetryBackoff(2 * time.Second)
	ctx := context.Background()

	var transitions []string
	c.SetOnStateChange(func(name string, from, to controller.State) {
		transitions = append(transitions, from.String()+">"+to.String())
	})
	_ = c.Init(ctx)

	b.updateErr = controller.NewError(controller.KindIPC, "pinone", "write", errors.New("broken pipe"))
	ctrl, _ := c.Controller("pinone")
	ctrl.SetValue(0, 1)
	_ = c.Tick(ctx)

	if ctrl.State() != controller.StateDisconnected {
		t.Fatalf("state = %v, want disconnected", ctrl.State())
	}
	if b.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", b.disconnects)
	}
	if !equalKinds(ev.kinds("pinone"),
		eventlog.KindConnected, eventlog.KindUpdateFailed, eventlog.KindDisconnected) {
		t.Errorf("events = %v", ev.kinds("pinone"))
	}

	b.updateErr = nil
	clock.advance(2 * time.Second)
	_ = c.Tick(ctx)
	if ctrl.State() != controller.StateConnected {
		t.Fatalf("state = %v, want connected", ctrl.State())
	}
	if len(b.frames) != 1 || b.frames[0][0] != 1 {
		t.Errorf("frames after reconnect = %v", b.frames)
	}

	want := []string{"uninitialized>connected", "connected>disconnected", "disconnected>connected"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestTransientFailureLoggedOncePerStreak(t *testing.T) {
	b := &fakeBackend{name: "dmx", outputs: 2}
	c, ev, _ := newTestCabinet(t, b)
	logger := &countingLogger{}
	c.logger = logger
	ctx := context.Background()
	_ = c.Init(ctx)

	b.updateErr = controller.NewError(controller.KindTransient, "dmx", "send dmx", errors.New("timeout"))
	ctrl, _ := c.Controller("dmx")
	for i := range 3 {
		ctrl.SetValue(0, byte(i+1))
		_ = c.Tick(ctx)
	}

	if logger.errors != 1 {
		t.Errorf("error logs = %d, want 1", logger.errors)
	}
	if ctrl.State() != controller.StateConnected {
		t.Errorf("transient failure changed state to %v", ctrl.State())
	}
	if n := len(ev.kinds("dmx")); n != 4 {
		t.Errorf("events = %d, want connected plus 3 update failures", n)
	}

	b.updateErr = nil
	ctrl.SetValue(0, 9)
	_ = c.Tick(ctx)
	b.updateErr = errors.New("again")
	ctrl.SetValue(0, 10)
	_ = c.Tick(ctx)
	if logger.errors != 2 {
		t.Errorf("error logs after recovery = %d, want 2", logger.errors)
	}
}

func TestDisabledErrorRecordedAsDisabled(t *testing.T) {
	b := &fakeBackend{name: "dmx", outputs: 2}
	c, ev, _ := newTestCabinet(t, b)
	ctx := context.Background()
	_ = c.Init(ctx)

	b.updateErr = controller.NewError(controller.KindTransient, "dmx", "send dmx", controller.ErrDisabled)
	ctrl, _ := c.Controller("dmx")
	ctrl.SetValue(0, 1)
	_ = c.Tick(ctx)

	if !equalKinds(ev.kinds("dmx"), eventlog.KindConnected, eventlog.KindDisabled) {
		t.Errorf("events = %v", ev.kinds("dmx"))
	}
}

func TestFinish(t *testing.T) {
	b := &fakeBackend{name: "lw", outputs: 2}
	c, ev, _ := newTestCabinet(t, b)
	closer := &fakeCloser{}
	c.closers = append(c.closers, closer)
	ctx := context.Background()
	_ = c.Init(ctx)

	ctrl, _ := c.Controller("lw")
	ctrl.SetValue(0, 50)
	if err := c.Finish(ctx); err != nil {
		t.Fatalf("Finish() = %v", err)
	}

	if len(b.frames) != 1 || b.frames[0][0] != 50 {
		t.Errorf("final frames = %v", b.frames)
	}
	if ctrl.State() != controller.StateFinished {
		t.Errorf("state = %v", ctrl.State())
	}
	if closer.closed != 1 {
		t.Errorf("closer closed %d times", closer.closed)
	}
	if !equalKinds(ev.kinds("lw"), eventlog.KindConnected, eventlog.KindDisconnected) {
		t.Errorf("events = %v", ev.kinds("lw"))
	}

	if err := c.Tick(ctx); !errors.Is(err, ErrFinished) {
		t.Errorf("Tick after Finish = %v, want ErrFinished", err)
	}
	if err := c.Finish(ctx); err != nil {
		t.Errorf("second Finish() = %v", err)
	}
	if closer.closed != 1 {
		t.Errorf("closer closed %d times after second Finish", closer.closed)
	}
}

type fakeTelemetry struct {
	mu          sync.Mutex
	ticks       []influxdb.TickStats
	controllers []controller.Stats
}

func (f *fakeTelemetry) WriteControllerStats(s controller.Stats) {
	f.mu.Lock()
	f.controllers = append(f.controllers, s)
	f.mu.Unlock()
}

func (f *fakeTelemetry) WriteTickStats(s influxdb.TickStats) {
	f.mu.Lock()
	f.ticks = append(f.ticks, s)
	f.mu.Unlock()
}

func (f *fakeTelemetry) WriteArtNetEngine(uint64, uint64, bool)       {}
func (f *fakeTelemetry) WriteComProxy(string, uint64, uint64, uint64) {}

func TestRunTicksAndWritesTelemetry(t *testing.T) {
	b := &fakeBackend{name: "lw", outputs: 2}
	c, _, _ := newTestCabinet(t, b)
	c.now = time.Now
	c.tickInterval = time.Millisecond
	c.telemetryInterval = 5 * time.Millisecond
	tel := &fakeTelemetry{}
	c.SetTelemetry(tel)
	_ = c.Init(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if c.Stats().Ticks == 0 {
		t.Error("no ticks")
	}
	tel.mu.Lock()
	defer tel.mu.Unlock()
	if len(tel.ticks) == 0 || len(tel.controllers) == 0 {
		t.Fatalf("telemetry ticks=%d controllers=%d", len(tel.ticks), len(tel.controllers))
	}
	if tel.controllers[0].Name != "lw" {
		t.Errorf("controller sample = %+v", tel.controllers[0])
	}
}

// fakeConn is an Art-Net socket that records packets.
type fakeConn struct {
	mu      sync.Mutex
	packets int
}

func (f *fakeConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	f.mu.Lock()
	f.packets++
	f.mu.Unlock()
	return len(b), nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) Close() error                     { return nil }

type message struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	messages  []message
}

func (f *fakePublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	f.mu.Lock()
	f.messages = append(f.messages, message{topic, append([]byte(nil), payload...)})
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) IsConnected() bool { return f.connected }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Controllers = []config.ControllerConfig{
		{Name: "remote", Type: config.ControllerMQTT, Outputs: 8},
		{Name: "dmx", Type: config.ControllerArtNet, Universe: 1, Address: "127.0.0.1"},
	}
	cfg.Toys = []config.ToyConfig{
		{Name: "outer", Type: config.ToyRGBGroup, Width: 1, Height: 1, Children: []string{"inner"}},
		{Name: "knocker", Type: config.ToyAnalog, Controller: "remote", Channel: 2},
		{Name: "flasher", Type: config.ToyRGB, Controller: "dmx", Channel: 0},
		{Name: "undercab", Type: config.ToyLedStrip, Controller: "dmx", Channel: 3, Width: 4},
		{Name: "inner", Type: config.ToyRGBGroup, Width: 2, Height: 1, Children: []string{"flasher", ""}},
		{Name: "bumpers", Type: config.ToyAnalogGroup, Width: 2, Height: 1, Children: []string{"knocker", "flasher"}},
	}
	return cfg
}

func buildTestCabinet(t *testing.T) (*Cabinet, *fakePublisher, *fakeConn) {
	t.Helper()
	pub := &fakePublisher{connected: true}
	conn := &fakeConn{}
	c, err := Build(context.Background(), testConfig(), Deps{
		Publisher:  pub,
		PacketConn: func() (artnet.PacketConn, error) { return conn, nil },
	})
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	t.Cleanup(func() { _ = c.Finish(context.Background()) })
	return c, pub, conn
}

func TestBuild(t *testing.T) {
	c, pub, conn := buildTestCabinet(t)

	if got := c.Toys().Len(); got != 6 {
		t.Errorf("toys = %d, want 6", got)
	}
	if len(c.Controllers()) != 2 {
		t.Errorf("controllers = %d, want 2", len(c.Controllers()))
	}
	if c.Stats().ArtNet == nil {
		t.Error("artnet engine missing from stats")
	}

	ctx := context.Background()
	if err := c.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyLayer("knocker", 0, []byte(`{"value":255}`)); err != nil {
		t.Fatal(err)
	}
	if err := c.Tick(ctx); err != nil {
		t.Fatal(err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.messages) != 1 {
		t.Fatalf("mqtt messages = %d, want 1", len(pub.messages))
	}
	if m := pub.messages[0]; m.topic != "feedback/output/remote" || m.payload[2] != 255 {
		t.Errorf("message = %s %v", m.topic, m.payload)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.packets == 0 {
		t.Error("no artnet packets sent")
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
		noPub  bool
		want   error
	}{
		{
			name:   "unknown controller type",
			mutate: func(cfg *config.Config) { cfg.Controllers[0].Type = "dmx512" },
			want:   ErrUnknownControllerType,
		},
		{
			name:   "unknown toy type",
			mutate: func(cfg *config.Config) { cfg.Toys[1].Type = "solenoid" },
			want:   ErrUnknownToyType,
		},
		{
			name:   "unknown controller",
			mutate: func(cfg *config.Config) { cfg.Toys[1].Controller = "missing" },
			want:   ErrUnknownController,
		},
		{
			name:   "group cycle",
			mutate: func(cfg *config.Config) { cfg.Toys[4].Children = []string{"outer"} },
			want:   ErrUnresolvedGroup,
		},
		{
			name:   "bad brightness",
			mutate: func(cfg *config.Config) { cfg.Toys[1].Brightness = 2 },
			want:   ErrInvalidTransform,
		},
		{
			name:   "mqtt without broker",
			mutate: func(cfg *config.Config) {},
			noPub:  true,
			want:   ErrNoBroker,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			deps := Deps{PacketConn: func() (artnet.PacketConn, error) { return &fakeConn{}, nil }}
			if !tt.noPub {
				deps.Publisher = &fakePublisher{connected: true}
			}

			_, err := Build(context.Background(), cfg, deps)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestApplyLayer(t *testing.T) {
	c, _, _ := buildTestCabinet(t)
	dmx, _ := c.Controller("dmx")
	remote, _ := c.Controller("remote")

	tests := []struct {
		name    string
		toy     string
		layer   int
		payload string
		check   func(t *testing.T)
		wantErr error
	}{
		{
			name: "analog", toy: "knocker", payload: `{"value":128}`,
			check: func(t *testing.T) {
				if v := remote.Values()[2]; v != 128 {
					t.Errorf("knocker = %d, want 128", v)
				}
			},
		},
		{
			name: "color", toy: "flasher", payload: `{"r":255,"g":10}`,
			check: func(t *testing.T) {
				v := dmx.Values()
				if v[0] != 255 || v[1] != 10 || v[2] != 0 {
					t.Errorf("flasher = %v", v[:3])
				}
			},
		},
		{
			name: "matrix element", toy: "undercab", payload: `{"x":1,"y":0,"r":9,"g":8,"b":7}`,
			check: func(t *testing.T) {
				v := dmx.Values()
				if v[6] != 9 || v[7] != 8 || v[8] != 7 {
					t.Errorf("led 1 = %v", v[6:9])
				}
			},
		},
		{
			name: "remove", toy: "knocker", payload: `{"remove":true}`,
			check: func(t *testing.T) {
				if v := remote.Values()[2]; v != 0 {
					t.Errorf("knocker after remove = %d, want 0", v)
				}
			},
		},
		{name: "empty write", toy: "knocker", payload: `{}`, wantErr: ErrInvalidLayerWrite},
		{name: "bad json", toy: "knocker", payload: `{`, wantErr: ErrInvalidLayerWrite},
		{name: "negative layer", toy: "knocker", layer: -1, payload: `{"value":1}`, wantErr: ErrInvalidLayerWrite},
		{name: "x without y", toy: "undercab", payload: `{"x":1,"r":1}`, wantErr: ErrInvalidLayerWrite},
		{name: "outside matrix", toy: "undercab", payload: `{"x":9,"y":0,"r":1}`, wantErr: ErrInvalidLayerWrite},
		{name: "color on analog toy", toy: "knocker", payload: `{"r":1}`, wantErr: toy.ErrCapability},
		{name: "unknown toy", toy: "ghost", payload: `{"value":1}`, wantErr: toy.ErrToyNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.ApplyLayer(tt.toy, tt.layer, []byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ApplyLayer() = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyLayer() = %v", err)
			}
			c.Toys().UpdateAll()
			tt.check(t)
		})
	}
}

func TestHandleLayerMessage(t *testing.T) {
	c, _, _ := buildTestCabinet(t)
	remote, _ := c.Controller("remote")

	if err := c.HandleLayerMessage("feedback/toy/knocker/layer/3", []byte(`{"value":77}`)); err != nil {
		t.Fatal(err)
	}
	c.Toys().UpdateAll()
	if v := remote.Values()[2]; v != 77 {
		t.Errorf("knocker = %d, want 77", v)
	}

	if err := c.HandleLayerMessage("feedback/output/remote", nil); !errors.Is(err, ErrInvalidLayerWrite) {
		t.Errorf("foreign topic = %v, want ErrInvalidLayerWrite", err)
	}
}

func TestGroupFeedsMembers(t *testing.T) {
	c, _, _ := buildTestCabinet(t)
	dmx, _ := c.Controller("dmx")

	if err := c.ApplyLayer("outer", 0, []byte(`{"x":0,"y":0,"r":40,"g":50,"b":60}`)); err != nil {
		t.Fatal(err)
	}
	c.Toys().UpdateAll()
	if v := dmx.Values(); v[0] != 40 || v[1] != 50 || v[2] != 60 {
		t.Errorf("flasher via nested groups = %v", v[:3])
	}
}
