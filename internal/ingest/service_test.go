package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/teresabacho/pet-care-platform/internal/geo"
	"github.com/teresabacho/pet-care-platform/internal/shared/apperr"
	"github.com/teresabacho/pet-care-platform/internal/stream"
	"github.com/teresabacho/pet-care-platform/internal/tracking"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
)

func newIngest(t *testing.T) (pgxmock.PgxPoolIface, *Service, *Buffer, *stream.Hub) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	hub := stream.NewHub(nil)
	buffer := NewBuffer(client)
	svc := NewService(tracking.NewService(mock, hub), geo.NewService(mock), buffer, hub)
	return mock, svc, buffer, hub
}

var sessionCols = []string{"id", "booking_id", "status", "started_at", "ended_at"}

func expectSession(mock pgxmock.PgxPoolIface, status tracking.SessionStatus) {
	mock.ExpectQuery(`FROM track_sessions WHERE id=\$1`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow("sess-1", "b-1", string(status), time.Now().Add(-time.Hour), nil))
}

func expectNoActiveSegment(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(`FROM walk_segments\s+WHERE session_id=\$1 AND status=\$2`).
		WithArgs("sess-1", "ACTIVE").
		WillReturnRows(pgxmock.NewRows([]string{"id", "session_id", "status", "started_at"}))
}

func expectNoGeofence(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(`FROM geofences WHERE session_id`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "session_id", "center_lat", "center_lng", "radius_meters", "created_at"}))
}

func TestHandleRawBuffersAndBroadcasts(t *testing.T) {
	mock, svc, buffer, hub := newIngest(t)

	expectSession(mock, tracking.SessionActive)
	mock.ExpectQuery(`FROM walk_segments\s+WHERE session_id=\$1 AND status=\$2`).
		WithArgs("sess-1", "ACTIVE").
		WillReturnRows(pgxmock.NewRows([]string{"id", "session_id", "status", "started_at"}).
			AddRow("seg-1", "sess-1", "ACTIVE", time.Now()))
	expectNoGeofence(mock)

	listener := hub.Register("sess-1")
	defer hub.Unregister(listener)

	raw := []byte(`{"lat":50.4501,"lng":30.5234,"speed":1.2,"timestamp":"2026-08-30T10:00:00Z"}`)
	if err := svc.HandleRaw(context.Background(), "sess-1", raw); err != nil {
		t.Fatalf("handle raw: %v", err)
	}

	batch, err := buffer.DrainSession(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("expected 1 buffered sample, got %d", len(batch))
	}
	var sample Sample
	if err := json.Unmarshal([]byte(batch[0]), &sample); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if sample.WalkSegmentID == nil || *sample.WalkSegmentID != "seg-1" {
		t.Fatalf("expected sample tied to seg-1, got %v", sample.WalkSegmentID)
	}

	select {
	case msg := <-listener.Send:
		var event stream.Event
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event.Type != stream.EventLivePoint {
			t.Fatalf("expected live-point event, got %s", event.Type)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for live-point broadcast")
	}
}

func TestHandleRawRejectsMalformed(t *testing.T) {
	_, svc, _, _ := newIngest(t)

	err := svc.HandleRaw(context.Background(), "sess-1", []byte(`{not json`))
	if apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandleRawRejectsOutOfRange(t *testing.T) {
	_, svc, _, _ := newIngest(t)

	err := svc.HandleRaw(context.Background(), "sess-1", []byte(`{"lat":95.0,"lng":30.0}`))
	if apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandleRawInactiveSession(t *testing.T) {
	mock, svc, _, _ := newIngest(t)

	expectSession(mock, tracking.SessionCompleted)

	err := svc.HandleRaw(context.Background(), "sess-1", []byte(`{"lat":50.0,"lng":30.0}`))
	if apperr.KindOf(err) != apperr.InvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

// Fifty samples, half inside the geofence and half outside: exactly the
// outside half fires geofence alerts.
func TestGeofenceAlertsMatchOutsideCount(t *testing.T) {
	mock, svc, _, hub := newIngest(t)

	const total = 50
	for i := 0; i < total; i++ {
		expectSession(mock, tracking.SessionActive)
		expectNoActiveSegment(mock)
		mock.ExpectQuery(`FROM geofences WHERE session_id`).
			WithArgs("sess-1").
			WillReturnRows(pgxmock.NewRows([]string{"id", "session_id", "center_lat", "center_lng", "radius_meters", "created_at"}).
				AddRow("gf-1", "sess-1", 50.4501, 30.5234, 100.0, time.Now()))
	}

	listener := hub.Register("sess-1")
	var events []stream.Event
	collected := make(chan struct{})
	go func() {
		for msg := range listener.Send {
			var event stream.Event
			if err := json.Unmarshal(msg, &event); err == nil {
				events = append(events, event)
			}
		}
		close(collected)
	}()

	for i := 0; i < total; i++ {
		lat := 50.4501 // at the center, inside
		if i%2 == 1 {
			lat = 50.4636 // ~1.5 km north, outside
		}
		raw, _ := json.Marshal(map[string]any{
			"lat": lat, "lng": 30.5234, "timestamp": time.Now(),
		})
		if err := svc.HandleRaw(context.Background(), "sess-1", raw); err != nil {
			t.Fatalf("handle raw %d: %v", i, err)
		}
	}

	hub.Unregister(listener)
	<-collected

	var alerts, livePoints int
	for _, event := range events {
		switch event.Type {
		case stream.EventGeofenceAlert:
			alerts++
		case stream.EventLivePoint:
			livePoints++
		}
	}
	if alerts != total/2 {
		t.Fatalf("expected %d geofence alerts, got %d", total/2, alerts)
	}
	if livePoints != total {
		t.Fatalf("expected %d live points, got %d", total, livePoints)
	}
}
