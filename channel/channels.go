package channel

import (
	"context"
	"sync"

	"arbiscan/logger"
	"arbiscan/models"
)

type ChannelStats struct {
	SnapshotsSent    int64
	SnapshotsDropped int64
}

// Channels carries completed scan snapshots from the scan loop to the
// asynchronous reporting sinks. One edge, buffered, drop-on-full so a slow
// sink never stalls the scan cadence.
type Channels struct {
	Snapshots chan *models.Snapshot

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(snapshotBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Snapshots: make(chan *models.Snapshot, snapshotBufferSize),
		log:       log,
	}

	log.WithComponent("snapshot_channels").WithFields(logger.Fields{
		"snapshot_buffer_size": snapshotBufferSize,
	}).Info("snapshot channel initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Snapshots)
	c.log.WithComponent("snapshot_channels").Info("snapshot channel closed")
}

func (c *Channels) incrementSent() {
	c.statsMutex.Lock()
	c.stats.SnapshotsSent++
	c.statsMutex.Unlock()
}

func (c *Channels) incrementDropped() {
	c.statsMutex.Lock()
	c.stats.SnapshotsDropped++
	c.statsMutex.Unlock()
}

// SendSnapshot hands a snapshot to the reporting sinks without blocking.
// Returns false when the buffer is full or the context is done.
func (c *Channels) SendSnapshot(ctx context.Context, s *models.Snapshot) bool {
	select {
	case c.Snapshots <- s:
		c.incrementSent()
		logger.RecordChannelMessage("snapshots", len(s.Opportunities))
		return true
	case <-ctx.Done():
		return false
	default:
		c.incrementDropped()
		return false
	}
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
