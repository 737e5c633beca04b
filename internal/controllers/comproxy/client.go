package comproxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nerrad567/feedback-core/internal/output/controller"
)

// Default client timing.
const (
	defaultDialTimeout = time.Second
	defaultIOTimeout   = 3 * time.Second
)

// Logger defines the logging interface used by the proxy.
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

// Spawner (re)starts the proxy server for a client.
type Spawner interface {
	// Spawn makes sure a server is listening on the client's socket. It
	// returns once the socket accepts connections or fails.
	Spawn(ctx context.Context) error
}

// ClientConfig holds the proxy client settings.
type ClientConfig struct {
	// SocketPath is the server socket. Default: DefaultSocketPath(PortName).
	SocketPath string

	// PortName is the serial port served by the proxy; used for the default
	// socket path and error messages.
	PortName string

	// DialTimeout bounds connecting to the server. Default: 1 s.
	DialTimeout time.Duration

	// IOTimeout bounds one request/reply exchange. Default: 3 s.
	IOTimeout time.Duration
}

// ClientStats holds client statistics.
type ClientStats struct {
	Requests uint64 `json:"requests"`
	Retries  uint64 `json:"retries"`
	Failures uint64 `json:"failures"`
}

// Client talks to a proxy server.
//
// Thread Safety: requests are serialised; all methods are safe for
// concurrent use.
type Client struct {
	cfg     ClientConfig
	spawner Spawner
	logger  Logger

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	stats  ClientStats
}

// NewClient creates a client. spawner may be nil, in which case a failed
// request is retried once on a fresh connection without spawning.
func NewClient(cfg ClientConfig, spawner Spawner) *Client {
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath(cfg.PortName)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = defaultIOTimeout
	}
	return &Client{cfg: cfg, spawner: spawner, logger: noopLogger{}}
}

// SetLogger sets the logger.
func (c *Client) SetLogger(logger Logger) { c.logger = logger }

// Stats returns client statistics.
func (c *Client) Stats() ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Connect asks the server to open the serial port.
func (c *Client) Connect(ctx context.Context) error {
	return c.expect(ctx, Request{Cmd: CmdConnect}, ReplyOK)
}

// Disconnect asks the server to close the serial port and ends the session.
func (c *Client) Disconnect(ctx context.Context) error {
	_, err := c.do(ctx, Request{Cmd: CmdDisconnect})
	return err
}

// StopServer asks the server to close the port and exit its loop.
func (c *Client) StopServer(ctx context.Context) error {
	_, err := c.do(ctx, Request{Cmd: CmdStopServer})
	return err
}

// Write sends data to the serial port.
func (c *Client) Write(ctx context.Context, data []byte) error {
	return c.expect(ctx, Request{Cmd: CmdWrite, Payload: data}, ReplyOK)
}

// ReadLine reads one line from the serial port.
func (c *Client) ReadLine(ctx context.Context) (string, error) {
	return c.do(ctx, Request{Cmd: CmdReadLine})
}

// Check reports whether the server has the serial port open.
func (c *Client) Check(ctx context.Context) (bool, error) {
	reply, err := c.do(ctx, Request{Cmd: CmdCheck})
	if err != nil {
		return false, err
	}
	switch reply {
	case ReplyTrue:
		return true, nil
	case ReplyFalse:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q to %s", ErrUnexpectedReply, reply, CmdCheck)
	}
}

// GetComPort returns the serial port name served by the server.
func (c *Client) GetComPort(ctx context.Context) (string, error) {
	return c.do(ctx, Request{Cmd: CmdComPort})
}

// Close drops the connection without sending anything.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Client) expect(ctx context.Context, req Request, want string) error {
	reply, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if reply != want {
		return fmt.Errorf("%w: %q to %s", ErrUnexpectedReply, reply, req.Cmd)
	}
	return nil
}

// do performs one exchange, respawning the server and retrying once if the
// exchange fails at the transport level. "ERROR" replies are not retried.
func (c *Client) do(ctx context.Context, req Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Requests++
	reply, err := c.exchange(ctx, req)
	if err != nil {
		c.logger.Warn("comproxy request failed, respawning server",
			"port", c.cfg.PortName,
			"command", req.Cmd,
			"error", err,
		)
		c.closeLocked()
		c.stats.Retries++

		if c.spawner != nil {
			if serr := c.spawner.Spawn(ctx); serr != nil {
				c.stats.Failures++
				return "", controller.NewError(controller.KindIPC, c.cfg.PortName, "proxy "+string(req.Cmd),
					fmt.Errorf("spawning server: %w (after %w)", serr, err))
			}
		}

		reply, err = c.exchange(ctx, req)
		if err != nil {
			c.closeLocked()
			c.stats.Failures++
			return "", controller.NewError(controller.KindIPC, c.cfg.PortName, "proxy "+string(req.Cmd), err)
		}
	}

	if !req.expectsReply() {
		c.closeLocked()
		return "", nil
	}
	return parseReply(reply)
}

func (c *Client) exchange(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := c.dialLocked(ctx); err != nil {
		return "", err
	}

	deadline := time.Now().Add(c.cfg.IOTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", err
	}

	if err := writeLine(c.conn, req.Encode()); err != nil {
		return "", fmt.Errorf("sending %s: %w", req.Cmd, err)
	}
	if !req.expectsReply() {
		return "", nil
	}

	line, err := readLine(c.reader)
	if err != nil {
		return "", fmt.Errorf("reading reply to %s: %w", req.Cmd, err)
	}
	return line, nil
}

func (c *Client) dialLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "unix", c.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.cfg.SocketPath, err)
	}
	c.conn = conn
	c.reader = bufio.NewReaderSize(conn, 4096)
	return nil
}

func (c *Client) closeLocked() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Debug("comproxy client close failed", "port", c.cfg.PortName, "error", err)
	}
	c.conn = nil
	c.reader = nil
}
