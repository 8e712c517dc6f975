package reporter

import (
	"context"
	"fmt"
	"sync"

	"arbiscan/channel"
	"arbiscan/logger"
	"arbiscan/models"
)

// Sink consumes completed scan snapshots. Implementations must tolerate
// snapshots with no opportunities; an empty cycle is still a cycle.
type Sink interface {
	Report(snapshot *models.Snapshot)
}

// Multi drains the snapshot channel and fans each snapshot out to every
// registered sink in order. A panic-free slow sink delays the others but
// never the scan loop, which drops on a full channel instead of blocking.
type Multi struct {
	channels *channel.Channels
	sinks    []Sink
	ctx      context.Context
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	snapshotsReported int64
}

// NewMulti builds the fan-out consumer over the given sinks.
func NewMulti(channels *channel.Channels, sinks ...Sink) *Multi {
	return &Multi{
		channels: channels,
		sinks:    sinks,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

func (m *Multi) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("reporter already running")
	}
	m.running = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.consume()

	m.log.WithComponent("reporter").WithFields(logger.Fields{
		"sinks": len(m.sinks),
	}).Info("reporter started")
	return nil
}

func (m *Multi) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.log.WithComponent("reporter").Info("stopping reporter")
	m.wg.Wait()
	m.log.WithComponent("reporter").Info("reporter stopped")
}

func (m *Multi) consume() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case snapshot, ok := <-m.channels.Snapshots:
			if !ok {
				return
			}
			for _, sink := range m.sinks {
				sink.Report(snapshot)
			}
			m.mu.Lock()
			m.snapshotsReported++
			m.mu.Unlock()
		}
	}
}

// SnapshotsReported returns how many snapshots reached the sinks.
func (m *Multi) SnapshotsReported() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotsReported
}
