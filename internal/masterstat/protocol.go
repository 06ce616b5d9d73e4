package masterstat

import (
	"bytes"
	"encoding/binary"
)

const (
	// RecordSize is the wire width of one server address record: 4 bytes IPv4 + 2 bytes port.
	RecordSize = 6

	// DefaultBufferSize fits the largest UDP datagram a master may send.
	DefaultBufferSize = 64 * 1024
)

var (
	// serversRequest asks a QuakeWorld master for all known servers.
	serversRequest = [...]byte{'c', '\n', 0x00}

	// serversResponseHeader prefixes every server list reply.
	serversResponseHeader = [...]byte{0xff, 0xff, 0xff, 0xff, 'd', '\n'}
)

// Request returns a fresh copy of the server list request datagram.
func Request() []byte {
	return bytes.Clone(serversRequest[:])
}

// IsRequest reports whether b is a server list request datagram.
func IsRequest(b []byte) bool {
	return bytes.Equal(b, serversRequest[:])
}

// ParseResponse decodes a server list response.
// Records are returned in payload order; a header-only response yields an empty slice.
func ParseResponse(b []byte) ([]ServerAddress, error) {
	if !bytes.HasPrefix(b, serversResponseHeader[:]) {
		return nil, ErrInvalidResponseHeader
	}

	body := b[len(serversResponseHeader):]
	if len(body)%RecordSize != 0 {
		return nil, ErrMalformedResponse
	}

	servers := make([]ServerAddress, 0, len(body)/RecordSize)
	for off := 0; off+RecordSize <= len(body); off += RecordSize {
		rec := body[off : off+RecordSize]
		servers = append(servers, ServerAddress{
			IP:   [4]byte(rec[0:4]),
			Port: binary.BigEndian.Uint16(rec[4:6]),
		})
	}

	return servers, nil
}

// EncodeResponse builds a server list response datagram carrying servers.
func EncodeResponse(servers []ServerAddress) []byte {
	b := make([]byte, 0, len(serversResponseHeader)+len(servers)*RecordSize)
	b = append(b, serversResponseHeader[:]...)
	for _, s := range servers {
		b = s.appendRecord(b)
	}

	return b
}
