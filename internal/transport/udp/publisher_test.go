// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"net"
	"slices"
	"sync"
	"testing"
	"time"

	"audioreact/internal/analysis"
)

type fakeSource struct {
	volume float64
	bands  []float64
}

func (s *fakeSource) SnapshotInto(dst *analysis.Snapshot) {
	dst.Volume = s.volume
	dst.Bands = append(dst.Bands[:0], s.bands...)
}

type recordingSender struct {
	mu      sync.Mutex
	packets [][]byte
	err     error
}

func (s *recordingSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.packets = append(s.packets, slices.Clone(data))
	return nil
}

func TestPacketRoundTrip(t *testing.T) {
	bands := []float64{0, 0.25, 1.5, 2}
	raw := AppendPacket(nil, 42, 1700000000123456789, 0.75, bands)

	if len(raw) != PacketSize(len(bands)) {
		t.Fatalf("packet is %d bytes, want %d", len(raw), PacketSize(len(bands)))
	}
	// Seq occupies the first four bytes, big endian.
	if !slices.Equal(raw[:4], []byte{0, 0, 0, 42}) {
		t.Errorf("seq bytes = %v", raw[:4])
	}

	p, err := DecodePacket(raw)
	if err != nil {
		t.Fatalf("DecodePacket() error = %v", err)
	}
	if p.Seq != 42 || p.Timestamp != 1700000000123456789 || p.Volume != 0.75 {
		t.Errorf("header = %+v", p)
	}
	if !slices.Equal(p.Bands, []float32{0, 0.25, 1.5, 2}) {
		t.Errorf("bands = %v", p.Bands)
	}
}

func TestDecodePacketShort(t *testing.T) {
	full := AppendPacket(nil, 1, 2, 0.5, []float64{1, 2, 3})
	for _, n := range []int{0, headerSize - 1, len(full) - 1} {
		if _, err := DecodePacket(full[:n]); !errors.Is(err, errShortPacket) {
			t.Errorf("DecodePacket(%d bytes) error = %v, want short packet", n, err)
		}
	}
}

func TestAppendPacketZeroAllocs(t *testing.T) {
	bands := make([]float64, 16)
	buf := make([]byte, 0, PacketSize(len(bands)))

	allocs := testing.AllocsPerRun(100, func() {
		buf = AppendPacket(buf[:0], 7, 8, 0.1, bands)
	})
	if allocs > 0 {
		t.Errorf("AppendPacket allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func TestNewPublisherValidation(t *testing.T) {
	src := &fakeSource{}
	if _, err := NewPublisher(time.Millisecond, nil, src, 4); err == nil {
		t.Error("expected error for nil sender")
	}
	if _, err := NewPublisher(time.Millisecond, &recordingSender{}, nil, 4); err == nil {
		t.Error("expected error for nil source")
	}
	p, err := NewPublisher(0, &recordingSender{}, src, 4)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	if p.interval != DefaultInterval {
		t.Errorf("interval = %s, want default %s", p.interval, DefaultInterval)
	}
}

func TestPublisherPublish(t *testing.T) {
	sender := &recordingSender{}
	src := &fakeSource{volume: 0.5, bands: []float64{1, 2, 3, 4}}
	p, err := NewPublisher(time.Millisecond, sender, src, len(src.bands))
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	fixed := time.Unix(100, 5)
	p.now = func() time.Time { return fixed }

	p.publish()
	src.volume = 1
	p.publish()

	if len(sender.packets) != 2 {
		t.Fatalf("sent %d packets, want 2", len(sender.packets))
	}
	for i, raw := range sender.packets {
		pkt, err := DecodePacket(raw)
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		if pkt.Seq != uint32(i+1) || pkt.Timestamp != fixed.UnixNano() {
			t.Errorf("packet %d header = %+v", i, pkt)
		}
		if len(pkt.Bands) != 4 || pkt.Bands[3] != 4 {
			t.Errorf("packet %d bands = %v", i, pkt.Bands)
		}
	}

	sender.err = errors.New("unreachable")
	allocs := testing.AllocsPerRun(50, func() {
		p.publish()
	})
	if allocs > 0 {
		t.Errorf("publish allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func TestPublisherOverUDP(t *testing.T) {
	ln, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	sender, err := NewSender(ln.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	defer sender.Close()

	src := &fakeSource{volume: 0.25, bands: []float64{0.5, 0.5}}
	p, err := NewPublisher(5*time.Millisecond, sender, src, 2)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	p.Start()
	p.Start() // No-op while running.
	defer p.Stop()

	buf := make([]byte, 1500)
	ln.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := ln.ReadFrom(buf)
	if err != nil {
		t.Fatalf("no packet received: %v", err)
	}
	pkt, err := DecodePacket(buf[:n])
	if err != nil {
		t.Fatalf("DecodePacket() error = %v", err)
	}
	if pkt.Volume != 0.25 || len(pkt.Bands) != 2 {
		t.Errorf("received %+v", pkt)
	}

	if err := p.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestSenderClosed(t *testing.T) {
	sender, err := NewSender("127.0.0.1:9")
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := sender.Send([]byte{1}); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("Send() after Close error = %v, want ErrSenderClosed", err)
	}
}

func TestNewSenderBadAddress(t *testing.T) {
	if _, err := NewSender("no-port"); err == nil {
		t.Error("expected error for address without port")
	}
}
