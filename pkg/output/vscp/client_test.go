package vscp

import (
	"context"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
	"github.com/ericogr/bme680-to-vscp/pkg/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// daemon is a minimal VSCP tcp/ip interface serving one connection.
type daemon struct {
	ln       net.Listener
	password string
	reject   bool
	lines    chan string
}

func startDaemon(t *testing.T, password string, reject bool) *daemon {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d := &daemon{ln: ln, password: password, reject: reject, lines: make(chan string, 32)}
	t.Cleanup(func() { _ = ln.Close() })
	go d.serve()
	return d
}

func (d *daemon) addr() string { return d.ln.Addr().String() }

func (d *daemon) serve() {
	conn, err := d.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("Welcome to the VSCP daemon.")
	_ = tp.PrintfLine("Copyright (C) 2000-2020 Grodans Paradis AB.")
	_ = tp.PrintfLine("+OK - Success.")

	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		d.lines <- line
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "user":
			_ = tp.PrintfLine("+OK - User name accepted, password please")
		case "pass":
			if arg != d.password {
				_ = tp.PrintfLine("-OK - Invalid user/password")
				continue
			}
			_ = tp.PrintfLine("+OK - Ready to work.")
		case "send":
			if d.reject {
				_ = tp.PrintfLine("-OK - Unable to send event")
				continue
			}
			_ = tp.PrintfLine("+OK - Success.")
		case "noop":
			_ = tp.PrintfLine("+OK - Success.")
		case "quit":
			_ = tp.PrintfLine("+OK - Connection closed by client.")
			return
		default:
			_ = tp.PrintfLine("-OK - Unknown command.")
		}
	}
}

func (d *daemon) next(t *testing.T) string {
	t.Helper()
	select {
	case l := <-d.lines:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("daemon received nothing")
		return ""
	}
}

var testGUID = measurement.GUID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE, 0xB8, 0x27, 0xEB, 0x01, 0x02, 0x03, 0x00, 0x01}

func testEvent(t *testing.T) measurement.Event {
	ch, _ := measurement.DefaultChannel(measurement.Temperature)
	ch.GUID = testGUID
	ev, err := measurement.Encode(ch, -27.8, time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	ev.Timestamp = 1234
	return ev
}

func TestFormatSend(t *testing.T) {
	want := "send 32864,1040,6,0,2020-05-01T12:00:00,1234," +
		"FF:FF:FF:FF:FF:FF:FF:FE:B8:27:EB:01:02:03:00:01,0,0,0,1,45,50,55,46,56,0"
	assert.Equal(t, want, FormatSend(testEvent(t)))

	ev := testEvent(t)
	ev.DateTime = time.Time{}
	assert.Contains(t, FormatSend(ev), ",0,,1234,")
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "localhost:9598", hostPort("localhost"))
	assert.Equal(t, "10.0.0.2:1234", hostPort("10.0.0.2:1234"))
	assert.Equal(t, "[::1]:9598", hostPort("::1"))
}

func TestClientSession(t *testing.T) {
	d := startDaemon(t, "secret", false)

	c, err := Dial(context.Background(), d.addr(), "admin", "secret", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "user admin", d.next(t))
	assert.Equal(t, "pass secret", d.next(t))

	require.NoError(t, c.Noop())
	assert.Equal(t, "noop", d.next(t))

	ev := testEvent(t)
	require.NoError(t, c.Send(ev))
	assert.Equal(t, FormatSend(ev), d.next(t))

	require.NoError(t, c.Close())
	assert.Equal(t, "quit", d.next(t))
}

func TestClientAuthenticationFailure(t *testing.T) {
	d := startDaemon(t, "secret", false)

	_, err := Dial(context.Background(), d.addr(), "admin", "wrong", time.Second)
	assert.ErrorIs(t, err, output.ErrAuthentication)
}

func TestClientSendRejected(t *testing.T) {
	d := startDaemon(t, "secret", true)

	c, err := Dial(context.Background(), d.addr(), "admin", "secret", time.Second)
	require.NoError(t, err)
	defer c.Close()

	err = c.Send(testEvent(t))
	assert.ErrorIs(t, err, output.ErrRejected)
}

func TestDialUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), addr, "admin", "secret", time.Second)
	assert.ErrorIs(t, err, output.ErrConnection)
}

func TestClientConnectionLost(t *testing.T) {
	server, client := net.Pipe()
	c := newClient(client, 100*time.Millisecond)
	require.NoError(t, server.Close())

	err := c.Send(testEvent(t))
	assert.ErrorIs(t, err, output.ErrConnection)
}
