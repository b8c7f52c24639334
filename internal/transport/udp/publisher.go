// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"sync"
	"time"

	"audioreact/internal/analysis"
)

// DefaultInterval is used when NewPublisher is given an interval <= 0.
const DefaultInterval = 16 * time.Millisecond

// Source is the analyzer view the publisher reads from without allocating.
type Source interface {
	SnapshotInto(dst *analysis.Snapshot)
}

// PacketSender is satisfied by *Sender.
type PacketSender interface {
	Send(data []byte) error
}

// Publisher periodically packs the latest snapshot into a datagram and sends
// it. It runs in its own goroutine between Start and Stop.
type Publisher struct {
	sender   PacketSender
	source   Source
	interval time.Duration
	now      func() time.Time

	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32
	failed      bool // Send failure streak, for log rate limiting.

	// Reused on every tick.
	snapshot analysis.Snapshot
	packet   []byte
}

// NewPublisher creates a stopped publisher for numBands-wide snapshots.
func NewPublisher(interval time.Duration, sender PacketSender, source Source, numBands int) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp: sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("udp: snapshot source cannot be nil")
	}
	if numBands > MaxBands {
		return nil, errors.New("udp: band count exceeds packet capacity")
	}
	if interval <= 0 {
		interval = DefaultInterval
		logger.Warnf("Invalid interval provided, defaulting to %s", interval)
	}

	logger.Infof("Initializing publisher (Interval: %s, Bands: %d)", interval, numBands)
	return &Publisher{
		sender:   sender,
		source:   source,
		interval: interval,
		now:      time.Now,
		snapshot: analysis.Snapshot{Bands: make([]float64, numBands)},
		packet:   make([]byte, 0, PacketSize(numBands)),
	}, nil
}

// Start launches the publishing goroutine. It is a no-op if already started.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("Start called but already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	ticker, doneChan := p.ticker, p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it to exit. It is safe to call
// more than once.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	logger.Debugf("Publisher stopped after %d packets", p.sequenceNum)
	return nil
}

// Close stops the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}

// publish builds and sends one packet from the reused buffers.
func (p *Publisher) publish() {
	p.source.SnapshotInto(&p.snapshot)

	p.sequenceNum++
	p.packet = AppendPacket(p.packet[:0], p.sequenceNum, p.now().UnixNano(),
		p.snapshot.Volume, p.snapshot.Bands)

	if err := p.sender.Send(p.packet); err != nil {
		if !p.failed {
			logger.Warnf("Error sending packet %d: %v", p.sequenceNum, err)
			p.failed = true
		}
		return
	}
	p.failed = false
}

var _ interface{ Close() error } = (*Publisher)(nil)
