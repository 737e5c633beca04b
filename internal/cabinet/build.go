package cabinet

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/nerrad567/feedback-core/internal/controllers/artnet"
	"github.com/nerrad567/feedback-core/internal/controllers/comproxy"
	"github.com/nerrad567/feedback-core/internal/controllers/ledwiz"
	"github.com/nerrad567/feedback-core/internal/controllers/mqttout"
	"github.com/nerrad567/feedback-core/internal/controllers/pinone"
	"github.com/nerrad567/feedback-core/internal/controllers/serialbus"
	"github.com/nerrad567/feedback-core/internal/controllers/strip"
	"github.com/nerrad567/feedback-core/internal/infrastructure/config"
	"github.com/nerrad567/feedback-core/internal/output/controller"
	"github.com/nerrad567/feedback-core/internal/output/curve"
	"github.com/nerrad567/feedback-core/internal/output/serial"
	"github.com/nerrad567/feedback-core/internal/output/toy"
)

// Deps are the external collaborators of a cabinet. Zero fields select the
// real system implementations.
type Deps struct {
	Logger Logger

	// Publisher is the MQTT client used by mqtt controllers.
	Publisher mqttout.Publisher

	// SerialOpener opens serial ports for strip, serialbus and in-process
	// proxy servers.
	SerialOpener serial.Opener

	// HIDOpener opens LedWiz units.
	HIDOpener ledwiz.Opener

	// PacketConn creates the Art-Net socket.
	PacketConn func() (artnet.PacketConn, error)
}

type builder struct {
	ctx     context.Context //nolint:containedctx // lifetime of spawned proxy servers
	cfg     *config.Config
	deps    Deps
	logger  Logger
	engine  *artnet.Engine
	byName  map[string]*entry
	entries []*entry
	closers []io.Closer
}

// Build creates the controllers and toys described by cfg. Nothing is
// opened or connected until Init. ctx bounds the lifetime of proxy servers
// started on behalf of PinOne controllers.
func Build(ctx context.Context, cfg *config.Config, deps Deps) (*Cabinet, error) {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	b := &builder{
		ctx:    ctx,
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		byName: make(map[string]*entry),
	}

	for _, cc := range cfg.Controllers {
		e, err := b.controller(cc)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("controller %q: %w", cc.Name, err)
		}
		e.ctrl.SetLogger(logger)
		b.byName[cc.Name] = e
		b.entries = append(b.entries, e)
	}

	toys, err := b.toys(cfg.Toys)
	if err != nil {
		b.close()
		return nil, err
	}

	return newCabinet(cfg, toys, b.entries, b.engine, b.closers, logger), nil
}

func (b *builder) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i].Close()
	}
}

func (b *builder) controller(cc config.ControllerConfig) (*entry, error) {
	e := &entry{cfg: cc}

	switch cc.Type {
	case config.ControllerStrip, config.ControllerStripCompressed:
		var s *strip.Controller
		if cc.Type == config.ControllerStrip {
			s = strip.New(stripConfig(cc))
		} else {
			s = strip.NewCompressed(stripConfig(cc), strip.Options{
				SendPerLedstripLength: cc.SendPerLedstripLength,
				TestOnConnect:         cc.TestOnConnect,
				UseCompression:        cc.UseCompression,
			})
		}
		s.SetLogger(b.logger)
		if b.deps.SerialOpener != nil {
			s.SetOpener(b.deps.SerialOpener)
		}
		e.ctrl = controller.New(s)

	case config.ControllerArtNet:
		e.ctrl = controller.New(artnet.NewController(artnet.Config{
			Name:     cc.Name,
			Universe: cc.Universe,
			Address:  cc.Address,
		}, b.artnetEngine()))

	case config.ControllerPinOne:
		client := b.proxyClient(cc)
		e.proxy = client
		e.ctrl = controller.New(pinone.New(pinone.Config{Name: cc.Name, Port: cc.Port}, client))

	case config.ControllerLedWiz:
		lw := ledwiz.New(ledwiz.Config{Name: cc.Name, Unit: cc.Unit, PulseSpeed: cc.PulseSpeed})
		lw.SetLogger(b.logger)
		if b.deps.HIDOpener != nil {
			lw.SetOpener(b.deps.HIDOpener)
		}
		e.ctrl = controller.New(lw)

	case config.ControllerSerialBus:
		sb := serialbus.New(serialbus.Config{
			Name:           cc.Name,
			Serial:         serialConfig(cc),
			Units:          cc.Units,
			OutputsPerUnit: cc.OutputsPerUnit,
		})
		if b.deps.SerialOpener != nil {
			sb.SetOpener(b.deps.SerialOpener)
		}
		e.ctrl = controller.New(sb)

	case config.ControllerMQTT:
		if b.deps.Publisher == nil {
			return nil, ErrNoBroker
		}
		e.ctrl = controller.New(mqttout.New(mqttout.Config{
			Name:    cc.Name,
			Outputs: cc.Outputs,
			QoS:     cc.QoS,
		}, b.deps.Publisher))

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownControllerType, cc.Type)
	}
	return e, nil
}

func (b *builder) artnetEngine() *artnet.Engine {
	if b.engine == nil {
		if b.deps.PacketConn != nil {
			b.engine = artnet.NewEngineWithListener(b.deps.PacketConn)
		} else {
			b.engine = artnet.NewEngine()
		}
		b.engine.SetLogger(b.logger)
	}
	return b.engine
}

// proxyClient creates the comproxy client of a PinOne controller together
// with the spawner that starts its server: a child process when a comproxy
// binary is configured, a goroutine otherwise.
func (b *builder) proxyClient(cc config.ControllerConfig) *comproxy.Client {
	server := comproxy.ServerConfig{Serial: serialConfig(cc)}
	server.SocketPath = comproxy.DefaultSocketPath(cc.Port)
	if dir := b.cfg.ComProxy.SocketDir; dir != "" {
		server.SocketPath = filepath.Join(dir, filepath.Base(server.SocketPath))
	}

	var spawner comproxy.Spawner
	if b.cfg.ComProxy.Binary != "" {
		ps := comproxy.NewProcessSpawner(b.ctx, comproxy.ProcessConfig{Binary: b.cfg.ComProxy.Binary, Server: server})
		ps.SetLogger(b.logger)
		b.closers = append(b.closers, ps)
		spawner = ps
	} else {
		ips := comproxy.NewInProcessSpawner(b.ctx, server)
		ips.SetLogger(b.logger)
		if b.deps.SerialOpener != nil {
			ips.SetOpener(b.deps.SerialOpener)
		}
		b.closers = append(b.closers, ips)
		spawner = ips
	}

	client := comproxy.NewClient(comproxy.ClientConfig{SocketPath: server.SocketPath, PortName: cc.Port}, spawner)
	client.SetLogger(b.logger)
	// The client must close before the spawner stops its server.
	b.closers = append(b.closers, client)
	return client
}

func serialConfig(cc config.ControllerConfig) serial.Config {
	return serial.Config{
		Name:     cc.Port,
		Baud:     cc.Baud,
		Parity:   serial.Parity(cc.Parity),
		DataBits: cc.DataBits,
		StopBits: cc.StopBits,
		DTR:      cc.DTR,
	}
}

func stripConfig(cc config.ControllerConfig) strip.Config {
	cfg := strip.Config{
		Name:           cc.Name,
		Serial:         serialConfig(cc),
		ReadTimeout:    millis(cc.ReadTimeout),
		OpenSettle:     millis(cc.OpenSettle),
		HandshakeStart: millis(cc.HandshakeStart),
		HandshakeEnd:   millis(cc.HandshakeEnd),
	}
	copy(cfg.Leds[:], cc.Leds)
	return cfg
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// toys builds every toy. Plain toys come first; groups are resolved in
// passes so a group may contain groups declared after it.
func (b *builder) toys(configs []config.ToyConfig) (*toy.Registry, error) {
	reg := toy.NewRegistry()

	var groups []config.ToyConfig
	for _, tc := range configs {
		if tc.Type == config.ToyAnalogGroup || tc.Type == config.ToyRGBGroup {
			groups = append(groups, tc)
			continue
		}
		t, err := b.toy(tc)
		if err != nil {
			return nil, fmt.Errorf("toy %q: %w", tc.Name, err)
		}
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}

	for len(groups) > 0 {
		var pending []config.ToyConfig
		for _, tc := range groups {
			if !membersRegistered(reg, tc.Children) {
				pending = append(pending, tc)
				continue
			}
			g, err := b.group(reg, tc)
			if err != nil {
				return nil, fmt.Errorf("toy %q: %w", tc.Name, err)
			}
			if err := reg.Register(g); err != nil {
				return nil, err
			}
		}
		if len(pending) == len(groups) {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedGroup, pending[0].Name)
		}
		groups = pending
	}
	return reg, nil
}

func membersRegistered(reg *toy.Registry, children []string) bool {
	for _, name := range children {
		if name == "" {
			continue
		}
		if _, err := reg.Get(name); err != nil {
			return false
		}
	}
	return true
}

func (b *builder) toy(tc config.ToyConfig) (toy.Toy, error) {
	tr, err := transform(tc)
	if err != nil {
		return nil, err
	}
	sink, err := b.sink(tc.Controller)
	if err != nil {
		return nil, err
	}

	switch tc.Type {
	case config.ToyAnalog:
		return toy.NewAnalogToy(tc.Name, toy.Output{Sink: sink, Channel: tc.Channel}, tr), nil

	case config.ToyRGB:
		var outs [3]toy.Output
		for i := range outs {
			ch := tc.Channel + i
			if len(tc.Channels) == len(outs) {
				ch = tc.Channels[i]
			}
			outs[i] = toy.Output{Sink: sink, Channel: ch}
		}
		return toy.NewRGBToy(tc.Name, outs, tr), nil

	case config.ToyLedStrip:
		arr, err := toy.ParseArrangement(tc.Arrangement)
		if err != nil {
			return nil, err
		}
		return toy.NewLedStrip(toy.LedStripConfig{
			Name:         tc.Name,
			Width:        tc.Width,
			Height:       max(tc.Height, 1),
			Sink:         sink,
			FirstChannel: tc.Channel,
			Layout:       toy.Layout{Arrangement: arr, Serpentine: tc.Serpentine},
			Transform:    tr,
		})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownToyType, tc.Type)
}

// sink returns the controller a toy binds to. An empty name leaves the toy
// unbound.
func (b *builder) sink(name string) (toy.Sink, error) {
	if name == "" {
		return nil, nil
	}
	e, ok := b.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownController, name)
	}
	return e.ctrl, nil
}

func (b *builder) group(reg *toy.Registry, tc config.ToyConfig) (toy.Toy, error) {
	switch tc.Type {
	case config.ToyAnalogGroup:
		members := make([]toy.AnalogLayers, len(tc.Children))
		for i, name := range tc.Children {
			if name == "" {
				continue
			}
			m, err := reg.Analog(name)
			if err != nil {
				return nil, err
			}
			members[i] = m
		}
		return toy.NewAnalogGroup(tc.Name, tc.Width, tc.Height, members)

	case config.ToyRGBGroup:
		members := make([]toy.RGBALayers, len(tc.Children))
		for i, name := range tc.Children {
			if name == "" {
				continue
			}
			m, err := reg.RGBA(name)
			if err != nil {
				return nil, err
			}
			members[i] = m
		}
		return toy.NewRGBGroup(tc.Name, tc.Width, tc.Height, members)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownToyType, tc.Type)
}

func transform(tc config.ToyConfig) (toy.Transform, error) {
	c, err := curve.ByName(tc.Curve)
	if err != nil {
		return toy.Transform{}, err
	}
	order, err := curve.ParseColorOrder(tc.ColorOrder)
	if err != nil {
		return toy.Transform{}, err
	}
	if tc.Brightness < 0 || tc.Brightness > 1 {
		return toy.Transform{}, fmt.Errorf("%w: brightness %v outside 0..1", ErrInvalidTransform, tc.Brightness)
	}
	return toy.Transform{Curve: c, Brightness: tc.Brightness, Gamma: tc.Gamma, Order: order}, nil
}
