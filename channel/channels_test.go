package channel

import (
	"context"
	"testing"

	"arbiscan/models"
)

func TestSendSnapshot(t *testing.T) {
	c := NewChannels(1)
	ctx := context.Background()

	s := models.NewSnapshot(nil)
	if !c.SendSnapshot(ctx, s) {
		t.Fatalf("send into empty buffer should succeed")
	}
	// Buffer full now; send must drop, not block.
	if c.SendSnapshot(ctx, models.NewSnapshot(nil)) {
		t.Fatalf("send into full buffer should report a drop")
	}

	stats := c.GetStats()
	if stats.SnapshotsSent != 1 || stats.SnapshotsDropped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	got := <-c.Snapshots
	if got.ID != s.ID {
		t.Fatalf("snapshot identity lost in transit")
	}
	c.Close()
	if _, ok := <-c.Snapshots; ok {
		t.Fatalf("channel should be closed")
	}
}

func TestSendSnapshotCancelledContext(t *testing.T) {
	c := NewChannels(1)
	c.Snapshots <- models.NewSnapshot(nil) // fill the buffer

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if c.SendSnapshot(ctx, models.NewSnapshot(nil)) {
		t.Fatalf("send with cancelled context should fail")
	}
}
