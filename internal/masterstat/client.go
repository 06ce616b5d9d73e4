// Package masterstat queries QuakeWorld master servers for the game servers they track.
//
// A single query sends one request datagram over a fresh UDP socket and decodes the
// first datagram received. QueryMany fans the same query out to many masters, each
// with its own socket and its own timeout.
package masterstat

import (
	"errors"
	"net"
	"os"
	"time"
)

// Client holds query options. The zero value is usable and waits without a timeout.
type Client struct {
	// Limiter paces dispatch of QueryMany tasks, nil disables pacing
	Limiter Waiter

	// Timeout bounds the wait for each response
	Timeout Timeout

	// BufferSize is the receive buffer size, DefaultBufferSize if zero
	BufferSize int

	// Concurrency caps in-flight queries in QueryMany, unlimited if zero
	Concurrency int
}

// New creates a Client with the given timeout.
func New(timeout Timeout) *Client {
	return &Client{Timeout: timeout, BufferSize: DefaultBufferSize}
}

// Query is a shortcut for New(timeout).Query(master).
func Query(master string, timeout Timeout) ([]ServerAddress, error) {
	return New(timeout).Query(master)
}

// QueryMany is a shortcut for New(timeout).QueryMany(masters).
func QueryMany(masters []string, timeout Timeout) (Aggregate, error) {
	return New(timeout).QueryMany(masters)
}

// Query asks one master server ("host:port") for its server list.
// Only the first datagram received is used. The socket is closed before returning.
func (c *Client) Query(master string) ([]ServerAddress, error) {
	raddr, err := net.ResolveUDPAddr("udp", master)
	if err != nil {
		return nil, queryErr(master, "resolve", ErrAddressResolution, err)
	}
	if raddr.IP == nil || raddr.IP.IsUnspecified() || raddr.Port == 0 {
		return nil, queryErr(master, "resolve", ErrAddressResolution, errors.New("host and non-zero port required"))
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, queryErr(master, "dial", ErrSend, err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(c.Timeout.deadline(time.Now())); err != nil {
		return nil, queryErr(master, "deadline", ErrSend, err)
	}

	if _, err := conn.Write(Request()); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, queryErr(master, "send", ErrTimeout, nil)
		}
		return nil, queryErr(master, "send", ErrSend, err)
	}

	size := c.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	buf := make([]byte, size)

	n, err := conn.Read(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, queryErr(master, "receive", ErrTimeout, nil)
		}
		return nil, queryErr(master, "receive", ErrReceive, err)
	}

	servers, err := ParseResponse(buf[:n])
	if err != nil {
		return nil, queryErr(master, "parse", err, nil)
	}

	return servers, nil
}
