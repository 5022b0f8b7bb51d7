package vscp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
	"github.com/ericogr/bme680-to-vscp/pkg/output"
)

const (
	DefaultPort    = "9598"
	DefaultTimeout = 5 * time.Second

	dateTimeLayout = "2006-01-02T15:04:05"
)

var errNegative = errors.New("negative reply")

// Client speaks the VSCP daemon tcp/ip link protocol. It is safe for
// concurrent use; commands are serialized.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	text    *textproto.Conn
	timeout time.Duration
}

// Dial connects to host, waits for the greeting and logs in.
func Dial(ctx context.Context, host, user, password string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	addr := hostPort(host)
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", output.ErrConnection, addr, err)
	}
	c := newClient(conn, timeout)

	if err := c.handshake(user, password); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func newClient(conn net.Conn, timeout time.Duration) *Client {
	return &Client{
		conn:    conn,
		text:    textproto.NewConn(conn),
		timeout: timeout,
	}
}

func (c *Client) handshake(user, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deadline()
	if _, err := c.readReply(); err != nil {
		if errors.Is(err, errNegative) {
			return fmt.Errorf("%w: greeting: %v", output.ErrConnection, err)
		}
		return err
	}
	if _, err := c.command("user %s", user); err != nil {
		return authError(err)
	}
	if _, err := c.command("pass %s", password); err != nil {
		return authError(err)
	}
	return nil
}

// Send transmits one event. The daemon answers -OK when it refuses it.
func (c *Client) Send(ev measurement.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.command("%s", FormatSend(ev)); err != nil {
		if errors.Is(err, errNegative) {
			return fmt.Errorf("%w: %v", output.ErrRejected, err)
		}
		return err
	}
	return nil
}

// Noop checks that the session is alive.
func (c *Client) Noop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.command("noop"); err != nil {
		if errors.Is(err, errNegative) {
			return fmt.Errorf("%w: noop: %v", output.ErrConnection, err)
		}
		return err
	}
	return nil
}

// Close says goodbye and closes the connection. The reply to quit is not
// required.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deadline()
	_ = c.text.PrintfLine("quit")
	return c.text.Close()
}

func (c *Client) deadline() {
	_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
}

func (c *Client) command(format string, args ...any) (string, error) {
	c.deadline()
	if err := c.text.PrintfLine(format, args...); err != nil {
		return "", fmt.Errorf("%w: write: %v", output.ErrConnection, err)
	}
	return c.readReply()
}

// readReply skips informational lines until a +OK or -OK status line.
func (c *Client) readReply() (string, error) {
	for {
		line, err := c.text.ReadLine()
		if err != nil {
			return "", fmt.Errorf("%w: read: %v", output.ErrConnection, err)
		}
		switch {
		case strings.HasPrefix(line, "+OK"):
			return line, nil
		case strings.HasPrefix(line, "-OK"):
			return line, fmt.Errorf("%w: %s", errNegative, line)
		}
	}
}

func authError(err error) error {
	if errors.Is(err, errNegative) {
		return fmt.Errorf("%w: %v", output.ErrAuthentication, err)
	}
	return err
}

// FormatSend renders the send command for ev:
// send head,class,type,obid,datetime,timestamp,GUID,data...
func FormatSend(ev measurement.Event) string {
	var b strings.Builder
	b.WriteString("send ")
	b.WriteString(strconv.Itoa(int(ev.Head)))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(int(ev.Class)))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(int(ev.Type)))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(uint64(ev.ObID), 10))
	b.WriteByte(',')
	if !ev.DateTime.IsZero() {
		b.WriteString(ev.DateTime.UTC().Format(dateTimeLayout))
	}
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(uint64(ev.Timestamp), 10))
	b.WriteByte(',')
	b.WriteString(ev.GUID.String())
	for _, d := range ev.Data {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(int(d)))
	}
	return b.String()
}

func hostPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, DefaultPort)
}
