// Package netutil provides a non-blocking UDP datagram endpoint shared
// by the auth service, the matchmaking coordinator, and dedicated game
// servers. None of the three owns a reliable/ordered transport; every
// higher layer treats loss, duplication, and reordering as normal.
package netutil

import (
	"errors"
	"fmt"
	"net"
	"time"
)

const maxDatagramSize = 4096

// Endpoint wraps a *net.UDPConn with non-blocking Send/Receive.
type Endpoint struct {
	conn *net.UDPConn
	buf  []byte
}

// Listen binds a UDP socket on the given address ("host:port").
func Listen(addr string) (*Endpoint, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("netutil: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("netutil: listen %s: %w", addr, err)
	}
	return &Endpoint{conn: conn, buf: make([]byte, maxDatagramSize)}, nil
}

// LocalAddr returns the endpoint's bound local address.
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Send writes one datagram. Transient failures are returned to the
// caller, who is expected to drop and continue rather than retry
// synchronously.
func (e *Endpoint) Send(addr *net.UDPAddr, payload []byte) error {
	_, err := e.conn.WriteToUDP(payload, addr)
	if err != nil {
		return fmt.Errorf("netutil: send to %s: %w", addr, err)
	}
	return nil
}

// Receive returns the next pending datagram without blocking. ok is
// false when nothing was waiting. The returned slice is only valid until
// the next call to Receive.
func (e *Endpoint) Receive() (payload []byte, from *net.UDPAddr, ok bool, err error) {
	if setErr := e.conn.SetReadDeadline(time.Now()); setErr != nil {
		return nil, nil, false, fmt.Errorf("netutil: set read deadline: %w", setErr)
	}
	n, from, readErr := e.conn.ReadFromUDP(e.buf)
	if readErr != nil {
		var netErr net.Error
		if errors.As(readErr, &netErr) && netErr.Timeout() {
			return nil, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("netutil: receive: %w", readErr)
	}
	return e.buf[:n], from, true, nil
}

// Close releases the underlying socket.
func (e *Endpoint) Close() error {
	if err := e.conn.Close(); err != nil {
		return fmt.Errorf("netutil: close: %w", err)
	}
	return nil
}
