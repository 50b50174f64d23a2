package gateway

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/muurk/ledble/internal/logging"
	"github.com/muurk/ledble/internal/transport"
)

// The bridge firmware speaks a line protocol over UART:
//
//	host → bridge:  CONNECT <mac> | TX <hex> | MTU <n> | DISCONNECT
//	bridge → host:  OK [args] | ERR <message> | EVT <hex>
//
// EVT lines carry device notification frames; everything else is a reply
// to the most recent host command.

const (
	// DefaultBaudRate matches the stock bridge firmware.
	DefaultBaudRate = 115200

	// replyWait bounds one command/reply round trip on the wire.
	replyWait = 5 * time.Second
)

// SerialAdapter connects to devices through a UART-attached BLE bridge.
type SerialAdapter struct {
	// Port is the serial device path, e.g. "/dev/ttyUSB0".
	Port string

	// BaudRate defaults to DefaultBaudRate when zero.
	BaudRate int
}

var _ transport.Adapter = (*SerialAdapter)(nil)

// Connect opens the port and asks the bridge to connect to the device.
func (a *SerialAdapter) Connect(ctx context.Context, address string) (transport.Conn, error) {
	baud := a.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(a.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", a.Port, err)
	}

	conn := newBridgeConn(port)
	if _, err := conn.command(ctx, "CONNECT "+address); err != nil {
		_ = conn.Disconnect()
		return nil, fmt.Errorf("bridge connect %s: %w", address, err)
	}
	return conn, nil
}

// bridgeConn drives the line protocol over any byte stream. Tests run it
// over an in-memory pipe; SerialAdapter runs it over the UART.
type bridgeConn struct {
	rwc io.ReadWriteCloser
	log *zap.Logger

	writeMu sync.Mutex // one command/reply exchange at a time
	replies chan string

	notifyMu sync.Mutex
	notify   func(data []byte)

	closeOnce sync.Once
	closed    chan struct{}
}

var _ transport.Conn = (*bridgeConn)(nil)

func newBridgeConn(rwc io.ReadWriteCloser) *bridgeConn {
	c := &bridgeConn{
		rwc:     rwc,
		log:     logging.GetLogger(),
		replies: make(chan string, 1),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *bridgeConn) Write(ctx context.Context, data []byte) error {
	if _, err := c.command(ctx, "TX "+hex.EncodeToString(data)); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrWriteFailed, err)
	}
	return nil
}

func (c *bridgeConn) Subscribe(fn func(data []byte)) error {
	c.notifyMu.Lock()
	c.notify = fn
	c.notifyMu.Unlock()
	return nil
}

func (c *bridgeConn) NegotiateMTU(ctx context.Context, requested int) (int, error) {
	args, err := c.command(ctx, fmt.Sprintf("MTU %d", requested))
	if err != nil {
		return 0, err
	}
	granted, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return 0, fmt.Errorf("bridge returned malformed mtu %q: %w", args, err)
	}
	return granted, nil
}

func (c *bridgeConn) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		// Best effort; the bridge drops the link when the port closes too.
		_, _ = c.rwc.Write([]byte("DISCONNECT\n"))
		close(c.closed)
		err = c.rwc.Close()
	})
	return err
}

// command sends one line and waits for the OK/ERR reply.
func (c *bridgeConn) command(ctx context.Context, line string) (string, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closed:
		return "", transport.ErrDisconnected
	default:
	}

	// Drain a stale reply left over from a timed-out exchange.
	select {
	case <-c.replies:
	default:
	}

	if _, err := c.rwc.Write([]byte(line + "\n")); err != nil {
		return "", err
	}

	timer := time.NewTimer(replyWait)
	defer timer.Stop()
	select {
	case reply := <-c.replies:
		if strings.HasPrefix(reply, "ERR") {
			return "", errors.New(strings.TrimSpace(strings.TrimPrefix(reply, "ERR")))
		}
		return strings.TrimSpace(strings.TrimPrefix(reply, "OK")), nil
	case <-timer.C:
		return "", fmt.Errorf("%w: bridge reply", transport.ErrTimeout)
	case <-c.closed:
		return "", transport.ErrDisconnected
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *bridgeConn) readLoop() {
	scanner := bufio.NewScanner(c.rwc)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "EVT "):
			raw, err := hex.DecodeString(strings.TrimPrefix(line, "EVT "))
			if err != nil {
				c.log.Warn("bridge sent malformed event", zap.String("line", line))
				continue
			}
			c.notifyMu.Lock()
			fn := c.notify
			c.notifyMu.Unlock()
			if fn != nil {
				fn(raw)
			}

		case strings.HasPrefix(line, "OK") || strings.HasPrefix(line, "ERR"):
			select {
			case c.replies <- line:
			default:
				c.log.Debug("dropping unsolicited bridge reply", zap.String("line", line))
			}

		case line == "":

		default:
			c.log.Debug("ignoring bridge line", zap.String("line", line))
		}
	}
}
