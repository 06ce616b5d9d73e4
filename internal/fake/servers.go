package fake

import (
	"math/rand"

	"github.com/woozymasta/masterstat/internal/masterstat"
)

// MaxServers is the largest list that fits one UDP datagram (65507 bytes payload).
const MaxServers = (65507 - 6) / masterstat.RecordSize

// RandomServers generates count random public-looking server addresses, at most MaxServers.
// About 20% of entries reuse an earlier IP with another port, as masters often list
// several servers per host.
func RandomServers(count int) []masterstat.ServerAddress {
	count = min(max(count, 0), MaxServers)
	servers := make([]masterstat.ServerAddress, 0, count)

	for i := 0; i < count; i++ {
		if len(servers) > 0 && rand.Float32() < 0.2 {
			prev := servers[rand.Intn(len(servers))]
			prev.Port = 27500 + uint16(rand.Intn(100))
			servers = append(servers, prev)
			continue
		}

		servers = append(servers, masterstat.ServerAddress{
			IP: [4]byte{
				byte(rand.Intn(220) + 1),
				byte(rand.Intn(255)),
				byte(rand.Intn(255)),
				byte(rand.Intn(255)),
			},
			Port: 27500 + uint16(rand.Intn(100)),
		})
	}

	return servers
}
