package masterstat_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/masterstat/internal/fake"
	"github.com/woozymasta/masterstat/internal/masterstat"
)

func startMaster(t *testing.T, opts ...fake.Option) *fake.Master {
	t.Helper()

	m, err := fake.Start("127.0.0.1:0", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	return m
}

// closedPort returns a loopback address with nothing listening on it.
func closedPort(t *testing.T) string {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := conn.LocalAddr().String()
	require.NoError(t, conn.Close())

	return addr
}

func TestQuery(t *testing.T) {
	servers := []masterstat.ServerAddress{
		{IP: [4]byte{192, 168, 1, 1}, Port: 27500},
		{IP: [4]byte{10, 0, 0, 5}, Port: 27501},
		{IP: [4]byte{192, 168, 1, 1}, Port: 27500},
	}

	t.Run("returns servers in master order", func(t *testing.T) {
		m := startMaster(t, fake.WithServers(servers))

		got, err := masterstat.Query(m.Addr(), masterstat.WithTimeout(2*time.Second))
		require.NoError(t, err)
		assert.Equal(t, servers, got)
		assert.Equal(t, 1, m.Requests())
	})

	t.Run("no timeout waits for reply", func(t *testing.T) {
		m := startMaster(t, fake.WithServers(servers[:1]), fake.WithDelay(100*time.Millisecond))

		got, err := masterstat.Query(m.Addr(), masterstat.NoTimeout())
		require.NoError(t, err)
		assert.Equal(t, servers[:1], got)
	})

	t.Run("empty list", func(t *testing.T) {
		m := startMaster(t)

		got, err := masterstat.Query(m.Addr(), masterstat.WithTimeout(2*time.Second))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("timeout", func(t *testing.T) {
		m := startMaster(t, fake.WithMode(fake.Silent))
		const d = 200 * time.Millisecond

		start := time.Now()
		got, err := masterstat.Query(m.Addr(), masterstat.WithTimeout(d))
		elapsed := time.Since(start)

		require.ErrorIs(t, err, masterstat.ErrTimeout)
		assert.Nil(t, got)
		assert.GreaterOrEqual(t, elapsed, d)
		assert.Less(t, elapsed, d+time.Second)
	})

	t.Run("zero timeout is bounded", func(t *testing.T) {
		m := startMaster(t, fake.WithMode(fake.Silent))

		_, err := masterstat.Query(m.Addr(), masterstat.WithTimeout(0))
		require.ErrorIs(t, err, masterstat.ErrTimeout)
	})

	t.Run("invalid header", func(t *testing.T) {
		m := startMaster(t, fake.WithMode(fake.BadHeader), fake.WithServers(servers))

		_, err := masterstat.Query(m.Addr(), masterstat.WithTimeout(2*time.Second))
		require.ErrorIs(t, err, masterstat.ErrInvalidResponseHeader)

		var qe *masterstat.QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, m.Addr(), qe.Master)
		assert.Equal(t, "parse", qe.Op)
	})

	t.Run("truncated", func(t *testing.T) {
		m := startMaster(t, fake.WithMode(fake.Truncated), fake.WithServers(servers))

		got, err := masterstat.Query(m.Addr(), masterstat.WithTimeout(2*time.Second))
		require.ErrorIs(t, err, masterstat.ErrMalformedResponse)
		assert.Nil(t, got)
	})

	t.Run("unresolvable address", func(t *testing.T) {
		for _, addr := range []string{"missing-port", "127.0.0.1:notaport", "", ":27000", ":0", "127.0.0.1:0", "0.0.0.0:27000"} {
			_, err := masterstat.Query(addr, masterstat.WithTimeout(time.Second))
			require.ErrorIs(t, err, masterstat.ErrAddressResolution, addr)
			assert.NotErrorIs(t, err, masterstat.ErrTimeout)
		}
	})

	t.Run("nothing listening", func(t *testing.T) {
		_, err := masterstat.Query(closedPort(t), masterstat.WithTimeout(500*time.Millisecond))
		require.Error(t, err)
		// loopback usually reports ICMP port unreachable, some sandboxes drop it silently
		assert.True(t, errors.Is(err, masterstat.ErrReceive) || errors.Is(err, masterstat.ErrTimeout), err.Error())
	})
}

type countingWaiter struct {
	calls atomic.Int32
}

func (w *countingWaiter) Wait(context.Context) error {
	w.calls.Add(1)
	return nil
}

func TestQueryMany(t *testing.T) {
	listA := []masterstat.ServerAddress{
		{IP: [4]byte{192, 168, 1, 1}, Port: 27500},
		{IP: [4]byte{10, 0, 0, 5}, Port: 27501},
	}
	listB := []masterstat.ServerAddress{
		{IP: [4]byte{10, 0, 0, 5}, Port: 27501},
		{IP: [4]byte{1, 2, 3, 4}, Port: 27500},
	}

	t.Run("no masters", func(t *testing.T) {
		agg, err := masterstat.QueryMany(nil, masterstat.WithTimeout(time.Second))
		require.ErrorIs(t, err, masterstat.ErrNoMastersProvided)
		assert.Nil(t, agg)

		_, err = masterstat.QueryMany([]string{}, masterstat.NoTimeout())
		require.ErrorIs(t, err, masterstat.ErrNoMastersProvided)
	})

	t.Run("mixed outcomes keep input order", func(t *testing.T) {
		okA := startMaster(t, fake.WithServers(listA), fake.WithDelay(150*time.Millisecond))
		okB := startMaster(t, fake.WithServers(listB))
		silent := startMaster(t, fake.WithMode(fake.Silent))
		bad := startMaster(t, fake.WithMode(fake.BadHeader))
		short := startMaster(t, fake.WithMode(fake.Truncated), fake.WithServers(listA))

		masters := []string{silent.Addr(), okA.Addr(), bad.Addr(), "nowhere", okB.Addr(), short.Addr()}

		agg, err := masterstat.QueryMany(masters, masterstat.WithTimeout(500*time.Millisecond))
		require.NoError(t, err)
		require.Len(t, agg, len(masters))

		for i, r := range agg {
			assert.Equal(t, masters[i], r.Master)
		}

		assert.ErrorIs(t, agg[0].Err, masterstat.ErrTimeout)
		assert.Equal(t, listA, agg[1].Servers)
		assert.ErrorIs(t, agg[2].Err, masterstat.ErrInvalidResponseHeader)
		assert.ErrorIs(t, agg[3].Err, masterstat.ErrAddressResolution)
		assert.Equal(t, listB, agg[4].Servers)
		assert.ErrorIs(t, agg[5].Err, masterstat.ErrMalformedResponse)

		assert.Equal(t, 2, agg.Succeeded())
		assert.Equal(t, 4, agg.Failed())
		assert.Equal(t, masterstat.SortedUnique(append(append([]masterstat.ServerAddress{}, listA...), listB...)), agg.Servers())
		assert.Len(t, agg.Servers(), 3)
		assert.Equal(t, listB, agg.ByMaster()[okB.Addr()].Servers)
	})

	t.Run("timeouts run in parallel", func(t *testing.T) {
		const d = 300 * time.Millisecond
		masters := make([]string, 5)
		for i := range masters {
			masters[i] = startMaster(t, fake.WithMode(fake.Silent)).Addr()
		}

		start := time.Now()
		agg, err := masterstat.QueryMany(masters, masterstat.WithTimeout(d))
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, 5, agg.Failed())
		assert.Less(t, elapsed, 2*d)
	})

	t.Run("slow master does not delay fast one", func(t *testing.T) {
		slow := startMaster(t, fake.WithMode(fake.Silent))
		fast := startMaster(t, fake.WithServers(listA))

		agg, err := masterstat.QueryMany([]string{slow.Addr(), fast.Addr()}, masterstat.WithTimeout(time.Second))
		require.NoError(t, err)
		require.True(t, agg[1].OK())
		assert.Less(t, agg[1].Elapsed, 500*time.Millisecond)
		assert.GreaterOrEqual(t, agg[0].Elapsed, time.Second)
	})

	t.Run("concurrency limit and pacing", func(t *testing.T) {
		masters := make([]string, 4)
		for i := range masters {
			masters[i] = startMaster(t, fake.WithServers(listA)).Addr()
		}

		w := &countingWaiter{}
		c := masterstat.New(masterstat.WithTimeout(2 * time.Second))
		c.Concurrency = 1
		c.Limiter = w

		agg, err := c.QueryMany(masters)
		require.NoError(t, err)
		assert.Equal(t, 4, agg.Succeeded())
		assert.Equal(t, int32(4), w.calls.Load())
	})
}

func TestFingerprint(t *testing.T) {
	a := masterstat.ServerAddress{IP: [4]byte{1, 2, 3, 4}, Port: 27500}
	b := masterstat.ServerAddress{IP: [4]byte{5, 6, 7, 8}, Port: 27500}

	x := masterstat.Aggregate{{Master: "m1", Servers: []masterstat.ServerAddress{a, b}}}
	y := masterstat.Aggregate{
		{Master: "m2", Servers: []masterstat.ServerAddress{b}},
		{Master: "m1", Servers: []masterstat.ServerAddress{a, b}},
		{Master: "m3", Err: masterstat.ErrTimeout},
	}
	z := masterstat.Aggregate{{Master: "m1", Servers: []masterstat.ServerAddress{a}}}

	assert.Equal(t, x.Fingerprint(), y.Fingerprint())
	assert.NotEqual(t, x.Fingerprint(), z.Fingerprint())
}
