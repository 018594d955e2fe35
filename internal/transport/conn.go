package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"time"
)

// Conn runs a session over a network connection. Reads fail once the client
// has been idle for longer than the idle timeout.
type Conn struct {
	mu   sync.Mutex
	conn net.Conn
	in   *bufio.Reader
	idle time.Duration
}

// NewConn wraps conn. A zero idle disables the idle deadline.
func NewConn(conn net.Conn, idle time.Duration) *Conn {
	return &Conn{
		conn: conn,
		in:   bufio.NewReader(conn),
		idle: idle,
	}
}

// RemoteAddr returns the address of the client.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Pull reads the next line. Cancelling ctx unblocks a pending read.
func (c *Conn) Pull(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	deadline := time.Time{}
	if c.idle > 0 {
		deadline = time.Now().Add(c.idle)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return "", err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	line, err := readLine(c.in)
	if err != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}
	return line, err
}

// Push writes text followed by a newline.
func (c *Conn) Push(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeChunk(c.conn, text)
}

// Prompt writes the prompt without a trailing newline.
func (c *Conn) Prompt(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.conn, text)
	return err
}

// Write writes raw bytes to the client, so Conn can serve as an output sink.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(p)
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
