package transport

import (
	"fmt"
	"log"
	"net"

	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/wire"
)

// UDPTransport binds a single UDP socket for an endpoint and uses it
// for both receiving and sending, matching the original
// implementation's one-socket-per-direction-per-call pattern collapsed
// into a single long-lived listening socket (cheaper, same semantics:
// best-effort, no ordering, no delivery guarantee).
type UDPTransport struct {
	conn *net.UDPConn
}

// NewUDP binds a UDP socket on the given endpoint's port.
func NewUDP(self directory.Endpoint) (*UDPTransport, error) {
	addr := &net.UDPAddr{Port: self.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s: %w", self, err)
	}
	return &UDPTransport{conn: conn}, nil
}

func (t *UDPTransport) Listen() (<-chan wire.Message, error) {
	out := make(chan wire.Message)
	go func() {
		defer close(out)
		buf := make([]byte, MaxDatagramSize)
		for {
			n, _, err := t.conn.ReadFromUDP(buf)
			if err != nil {
				// Closed socket or transient read error: stop silently,
				// matching "unparsable/undeliverable messages are dropped".
				return
			}
			msg, err := wire.Decode(buf[:n])
			if err != nil {
				// Unparsable message: dropped with a warning (section 7.4).
				log.Printf("transport: dropping unparsable datagram: %v", err)
				continue
			}
			out <- msg
		}
	}()
	return out, nil
}

func (t *UDPTransport) Send(to directory.Endpoint, msg wire.Message) bool {
	data, err := wire.Encode(msg)
	if err != nil {
		return false
	}
	addr := &net.UDPAddr{IP: net.ParseIP(to.Host), Port: to.Port}
	if addr.IP == nil {
		// Allow bare hostnames (e.g. "localhost") by resolving them.
		resolved, err := net.ResolveUDPAddr("udp", to.String())
		if err != nil {
			return false
		}
		addr = resolved
	}
	_, err = t.conn.WriteToUDP(data, addr)
	return err == nil
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
