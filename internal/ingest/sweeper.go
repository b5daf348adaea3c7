package ingest

import (
	"context"
	"log"
	"time"

	"github.com/teresabacho/pet-care-platform/internal/db"
)

// Sweeper deletes background points, the ones outside any walk segment,
// once they outlive the retention TTL. Segment points are kept for the
// life of the segment's history.
type Sweeper struct {
	db       db.Querier
	ttl      time.Duration
	interval time.Duration
}

func NewSweeper(database db.Querier, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{db: database, ttl: ttl, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("sweep: %v", err)
			}
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM track_points
		WHERE walk_segment_id IS NULL AND recorded_at < $1
	`, time.Now().Add(-s.ttl))
	if err != nil {
		return err
	}
	if n := tag.RowsAffected(); n > 0 {
		log.Printf("sweep: removed %d expired background points", n)
	}
	return nil
}
