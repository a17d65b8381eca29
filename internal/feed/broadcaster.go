// Package feed generates synthetic tracks and sends them as position
// datagrams, standing in for a live sender during local testing.
package feed

import (
	"fmt"
	"net"

	"github.com/OCAP2/routemonitor/pkg/core"
	"github.com/OCAP2/routemonitor/pkg/datagram"
)

// Broadcaster sends datagrams to one destination.
type Broadcaster struct {
	dest string
	conn *net.UDPConn
}

func NewBroadcaster(dest string) (*Broadcaster, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Broadcaster{
		dest: dest,
		conn: conn,
	}, nil
}

func (b *Broadcaster) Dest() string {
	return b.dest
}

// Send encodes s and writes it as one datagram.
func (b *Broadcaster) Send(s core.PositionSample) error {
	_, err := b.conn.Write(datagram.Encode(s))
	return err
}

// SendRaw writes payload unchanged. Empty payloads are skipped.
func (b *Broadcaster) SendRaw(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := b.conn.Write(payload)
	return err
}

func (b *Broadcaster) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
