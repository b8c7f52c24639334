// SPDX-License-Identifier: MIT
package transport

import (
	"sync"
	"time"

	"audioreact/internal/analysis"
	"audioreact/internal/log"
)

// Transport delivers analysis snapshots to a consumer. Implementations must
// be safe for concurrent use and must not block the caller for long.
type Transport interface {
	Send(data any) error
	Close() error
}

// DefaultFrameInterval is the ~60 fps render cadence.
const DefaultFrameInterval = 16 * time.Millisecond

// Broadcaster pulls snapshots from a source at its own frame rate and sends
// each new one to every transport. Render rate is independent of the block
// rate; a frame whose sequence number has not moved is not re-sent.
type Broadcaster struct {
	source     analysis.SnapshotSource
	transports []Transport
	interval   time.Duration
	logger     *log.Logger

	mu      sync.Mutex // Guards ticker and done across Start/Stop.
	ticker  *time.Ticker
	done    chan struct{}
	wg      sync.WaitGroup
	lastSeq uint64
	sent    bool
}

// NewBroadcaster returns a stopped broadcaster. An interval <= 0 selects
// DefaultFrameInterval.
func NewBroadcaster(source analysis.SnapshotSource, interval time.Duration, transports ...Transport) *Broadcaster {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Broadcaster{
		source:     source,
		transports: transports,
		interval:   interval,
		logger:     log.New("broadcast"),
	}
}

// Start launches the frame goroutine. Calling Start on a running broadcaster
// is a no-op.
func (b *Broadcaster) Start() {
	b.mu.Lock()
	if b.ticker != nil {
		b.mu.Unlock()
		return
	}
	b.ticker = time.NewTicker(b.interval)
	b.done = make(chan struct{})
	ticker, done := b.ticker, b.done
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.logger.Infof("Broadcasting to %d transports every %s", len(b.transports), b.interval)
		for {
			select {
			case <-ticker.C:
				b.Tick()
			case <-done:
				return
			}
		}
	}()
}

// Tick sends one frame if the source has published since the last one.
func (b *Broadcaster) Tick() {
	snap := b.source.Snapshot()
	if b.sent && snap.Seq == b.lastSeq {
		return
	}
	b.lastSeq, b.sent = snap.Seq, true

	for _, t := range b.transports {
		if err := t.Send(snap); err != nil {
			b.logger.Debugf("Send failed on %T: %v", t, err)
		}
	}
}

// Stop halts the frame goroutine and waits for it to exit. Transports are
// not closed.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	if b.ticker == nil {
		b.mu.Unlock()
		return
	}
	b.ticker.Stop()
	close(b.done)
	b.ticker = nil
	b.mu.Unlock()

	b.wg.Wait()
}

// Close stops the broadcaster and closes every transport, returning the
// first error.
func (b *Broadcaster) Close() error {
	b.Stop()
	var first error
	for _, t := range b.transports {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
