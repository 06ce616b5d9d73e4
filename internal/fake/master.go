// Package fake provides a local QuakeWorld master server and random server lists
// for tests and development.
package fake

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterstat/internal/masterstat"
)

// Mode selects how the fake master answers a request.
type Mode int

const (
	// Reply sends a valid server list
	Reply Mode = iota

	// Silent never answers
	Silent

	// BadHeader answers with a datagram lacking the response marker
	BadHeader

	// Truncated answers with a valid header and a partial trailing record
	Truncated
)

// Master is a UDP server speaking the master server list protocol.
type Master struct {
	conn    *net.UDPConn
	servers []masterstat.ServerAddress
	wg      sync.WaitGroup
	delay   time.Duration
	mode    Mode

	mu       sync.Mutex
	requests int
}

// Option configures a Master.
type Option func(*Master)

// WithServers sets the server list returned in Reply mode.
func WithServers(servers []masterstat.ServerAddress) Option {
	return func(m *Master) { m.servers = servers }
}

// WithMode sets the answer mode.
func WithMode(mode Mode) Option {
	return func(m *Master) { m.mode = mode }
}

// WithDelay delays each answer.
func WithDelay(d time.Duration) Option {
	return func(m *Master) { m.delay = d }
}

// Start listens on addr (e.g. "127.0.0.1:0") and serves until Close.
func Start(addr string, opts ...Option) (*Master, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}

	m := &Master{conn: conn}
	for _, opt := range opts {
		opt(m)
	}

	m.wg.Add(1)
	go m.serve()

	log.Debug().
		Str("address", m.Addr()).
		Int("servers", len(m.servers)).
		Msg("Fake master listening")

	return m, nil
}

// Addr returns the listen address in "host:port" form.
func (m *Master) Addr() string {
	return m.conn.LocalAddr().String()
}

// Requests returns the number of valid requests received so far.
func (m *Master) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.requests
}

// Close stops the server and waits for the serve loop to exit.
func (m *Master) Close() error {
	err := m.conn.Close()
	m.wg.Wait()

	return err
}

func (m *Master) serve() {
	defer m.wg.Done()

	buf := make([]byte, 1500)
	for {
		n, from, err := m.conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Error().Err(err).Msg("Fake master read failed")
			}
			return
		}

		if !masterstat.IsRequest(buf[:n]) {
			log.Trace().Str("from", from.String()).Int("size", n).Msg("Fake master ignored unknown datagram")
			continue
		}

		m.mu.Lock()
		m.requests++
		m.mu.Unlock()

		if m.mode == Silent {
			continue
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()

			if m.delay > 0 {
				time.Sleep(m.delay)
			}

			if _, err := m.conn.WriteToUDP(m.response(), from); err != nil && !errors.Is(err, net.ErrClosed) {
				log.Error().Err(err).Str("to", from.String()).Int("servers", len(m.servers)).Msg("Fake master write failed")
			}
		}()
	}
}

func (m *Master) response() []byte {
	switch m.mode {
	case BadHeader:
		return []byte("\xff\xff\xff\xffnunknown command\n")
	case Truncated:
		return append(masterstat.EncodeResponse(m.servers), 10, 0, 0)
	default:
		return masterstat.EncodeResponse(m.servers)
	}
}
