package report

import (
	"bytes"
	"encoding/json"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/masterstat/internal/masterstat"
	"github.com/woozymasta/masterstat/internal/models"
)

type staticGeo map[netip.Addr]string

func (g staticGeo) Country(addr netip.Addr) string { return g[addr] }

var (
	srvA = masterstat.ServerAddress{IP: [4]byte{192, 168, 1, 1}, Port: 27500}
	srvB = masterstat.ServerAddress{IP: [4]byte{10, 0, 0, 5}, Port: 27501}
)

func aggregate() masterstat.Aggregate {
	return masterstat.Aggregate{
		{Master: "m1:27000", Servers: []masterstat.ServerAddress{srvA, srvB}, Elapsed: 12 * time.Millisecond},
		{Master: "m2:27000", Err: masterstat.ErrTimeout, Elapsed: 2 * time.Second},
		{Master: "m3:27000", Servers: []masterstat.ServerAddress{srvB}},
	}
}

func TestBuild(t *testing.T) {
	rep := Build(aggregate(), false, nil)
	assert.Equal(t, 2, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Masters, 3)
	assert.Equal(t, "timeout waiting for response", rep.Masters[1].Error)
	assert.Equal(t, []models.ServerEntry{{Address: srvB}, {Address: srvA}}, rep.Servers)

	raw := Build(aggregate(), true, nil)
	assert.Equal(t, []models.ServerEntry{{Address: srvA}, {Address: srvB}, {Address: srvB}}, raw.Servers)

	geo := Build(aggregate(), false, staticGeo{srvA.Addr(): "SE"})
	assert.Equal(t, "SE", geo.Servers[1].Country)
	assert.Equal(t, "SE", geo.Masters[0].Servers[0].Country)
	assert.Empty(t, geo.Servers[0].Country)
}

func TestWrite(t *testing.T) {
	rep := Build(aggregate(), false, staticGeo{srvA.Addr(): "SE"})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatText, rep))
		assert.Equal(t, "10.0.0.5:27501\n192.168.1.1:27500\tSE\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatJSON, rep))

		var got models.QueryReport
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, rep, got)
		assert.Contains(t, buf.String(), `"address": "10.0.0.5:27501"`)
	})

	t.Run("summary", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatSummary, rep))
		out := buf.String()
		assert.Contains(t, out, "m1:27000")
		assert.Contains(t, out, "2 servers")
		assert.Contains(t, out, "FAIL")
		assert.Contains(t, out, "2/3")
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, Write(&bytes.Buffer{}, "xml", rep))
	})
}
