package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/teresabacho/pet-care-platform/internal/db"
)

// Flusher drains the Redis buffers into Postgres on a fixed interval.
// One session's batch is one insert; a failing batch is requeued and
// never blocks sibling sessions.
type Flusher struct {
	db       db.Querier
	buffer   *Buffer
	interval time.Duration
}

func NewFlusher(database db.Querier, buffer *Buffer, interval time.Duration) *Flusher {
	return &Flusher{db: database, buffer: buffer, interval: interval}
}

func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.FlushAll(ctx)
		}
	}
}

// FlushAll flushes every session with buffered samples. Failures are
// logged and left for the next tick.
func (f *Flusher) FlushAll(ctx context.Context) {
	sessions, err := f.buffer.Sessions(ctx)
	if err != nil {
		log.Printf("flush: listing buffers: %v", err)
		return
	}
	for _, sessionID := range sessions {
		if err := f.FlushSession(ctx, sessionID); err != nil {
			log.Printf("flush: session %s: %v", sessionID, err)
		}
	}
}

// FlushSession drains one session's buffer and bulk-inserts it. On
// insert failure the batch goes back to the front of the buffer.
func (f *Flusher) FlushSession(ctx context.Context, sessionID string) error {
	batch, err := f.buffer.DrainSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	samples := make([]Sample, 0, len(batch))
	for _, raw := range batch {
		var sample Sample
		if err := json.Unmarshal([]byte(raw), &sample); err != nil {
			log.Printf("flush: dropping corrupt sample in session %s: %v", sessionID, err)
			continue
		}
		samples = append(samples, sample)
	}
	if len(samples) == 0 {
		return nil
	}

	if err := f.insertBatch(ctx, samples); err != nil {
		if requeueErr := f.buffer.Requeue(ctx, sessionID, batch); requeueErr != nil {
			return fmt.Errorf("insert failed (%v) and requeue failed: %w", err, requeueErr)
		}
		return fmt.Errorf("insert failed, batch requeued: %w", err)
	}
	return nil
}

func (f *Flusher) insertBatch(ctx context.Context, samples []Sample) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO track_points
		(session_id, walk_segment_id, latitude, longitude, altitude, speed, recorded_at, geom) VALUES `)

	args := make([]any, 0, len(samples)*7)
	for i, sample := range samples {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, ST_SetSRID(ST_MakePoint($%d, $%d), 4326))",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+4, base+3))
		args = append(args, sample.SessionID, sample.WalkSegmentID,
			sample.Lat, sample.Lng, sample.Altitude, sample.Speed, sample.Timestamp)
	}

	_, err := f.db.Exec(ctx, sb.String(), args...)
	return err
}
