package fake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/masterstat/internal/masterstat"
)

func TestRandomServers(t *testing.T) {
	assert.Len(t, RandomServers(10), 10)
	assert.Empty(t, RandomServers(-1))

	servers := RandomServers(MaxServers + 5000)
	require.Len(t, servers, MaxServers)
	assert.LessOrEqual(t, len(masterstat.EncodeResponse(servers)), 65507)

	for _, s := range servers[:100] {
		assert.NotZero(t, s.IP[0])
		assert.GreaterOrEqual(t, s.Port, uint16(27500))
	}
}

func TestMasterLargestList(t *testing.T) {
	servers := RandomServers(MaxServers)

	m, err := Start("127.0.0.1:0", WithServers(servers))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	got, err := masterstat.Query(m.Addr(), masterstat.WithTimeout(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, servers, got)
}
