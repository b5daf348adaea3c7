package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/teresabacho/pet-care-platform/internal/db"
	"github.com/teresabacho/pet-care-platform/internal/shared/apperr"
	"github.com/teresabacho/pet-care-platform/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Service struct {
	db  db.Querier
	hub *stream.Hub
}

func NewService(db db.Querier, hub *stream.Hub) *Service {
	return &Service{db: db, hub: hub}
}

// CreateSession opens the tracking session for a booking. Called exactly
// once per booking, by the handover handshake.
func (s *Service) CreateSession(ctx context.Context, bookingID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO track_sessions (id, booking_id, status, started_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), bookingID, string(SessionActive), time.Now())
	return err
}

// CompleteSession closes the session when the return handshake finishes.
// Any walk segment the caretaker forgot to close is force-completed with
// its computed distance first. A missing or already-terminal session is a
// no-op.
func (s *Service) CompleteSession(ctx context.Context, bookingID string) error {
	session, err := s.sessionByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if session.Status != SessionActive {
		return nil
	}

	open, err := s.activeSegments(ctx, session.ID)
	if err != nil {
		return err
	}
	for _, segment := range open {
		distance, err := s.SegmentDistance(ctx, segment.ID)
		if err != nil {
			return err
		}
		if err := s.completeSegment(ctx, segment.ID, distance); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(ctx, `
		UPDATE track_sessions SET status=$2, ended_at=$3 WHERE id=$1
	`, session.ID, string(SessionCompleted), time.Now())
	return err
}

// CancelSession marks the session cancelled on booking cancellation.
// Segments are left as they are: cancellation is an abnormal exit.
func (s *Service) CancelSession(ctx context.Context, bookingID string) error {
	session, err := s.sessionByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if session.Status != SessionActive {
		return nil
	}

	_, err = s.db.Exec(ctx, `
		UPDATE track_sessions SET status=$2, ended_at=$3 WHERE id=$1
	`, session.ID, string(SessionCancelled), time.Now())
	return err
}

func (s *Service) StartWalkSegment(ctx context.Context, sessionID, callerID string) (WalkSegment, error) {
	session, caretakerID, err := s.sessionWithCaretaker(ctx, sessionID)
	if err != nil {
		return WalkSegment{}, err
	}
	if session.Status != SessionActive {
		return WalkSegment{}, apperr.New(apperr.InvalidState, "tracking session is not active")
	}
	if caretakerID != callerID {
		return WalkSegment{}, apperr.New(apperr.AccessDenied, "only the booking's caretaker may start a walk")
	}

	existing, err := s.ActiveSegment(ctx, sessionID)
	if err != nil {
		return WalkSegment{}, err
	}
	if existing != nil {
		return WalkSegment{}, apperr.New(apperr.Conflict, "an active walk segment already exists")
	}

	segment := WalkSegment{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Status:    SegmentActive,
		StartedAt: time.Now(),
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO walk_segments (id, session_id, status, started_at)
		VALUES ($1,$2,$3,$4)
	`, segment.ID, segment.SessionID, string(segment.Status), segment.StartedAt)
	if err != nil {
		return WalkSegment{}, err
	}

	if s.hub != nil {
		s.hub.Publish(sessionID, stream.EventWalkStarted, map[string]string{
			"session_id": sessionID,
			"segment_id": segment.ID,
		})
	}
	return segment, nil
}

func (s *Service) CompleteWalkSegment(ctx context.Context, segmentID, callerID string) (WalkSegment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT ws.id, ws.session_id, ws.status, ws.started_at, b.caretaker_id
		FROM walk_segments ws
		JOIN track_sessions ts ON ts.id = ws.session_id
		JOIN bookings b ON b.id = ts.booking_id
		WHERE ws.id=$1
	`, segmentID)

	var segment WalkSegment
	var caretakerID string
	if err := row.Scan(&segment.ID, &segment.SessionID, &segment.Status, &segment.StartedAt, &caretakerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WalkSegment{}, apperr.New(apperr.NotFound, "walk segment not found")
		}
		return WalkSegment{}, err
	}
	if segment.Status != SegmentActive {
		return WalkSegment{}, apperr.New(apperr.InvalidState, "walk segment already completed")
	}
	if caretakerID != callerID {
		return WalkSegment{}, apperr.New(apperr.AccessDenied, "only the booking's caretaker may complete a walk")
	}

	distance, err := s.SegmentDistance(ctx, segmentID)
	if err != nil {
		return WalkSegment{}, err
	}
	if err := s.completeSegment(ctx, segmentID, distance); err != nil {
		return WalkSegment{}, err
	}

	ended := time.Now()
	segment.Status = SegmentCompleted
	segment.EndedAt = &ended
	segment.DistanceMeters = &distance

	if s.hub != nil {
		s.hub.Publish(segment.SessionID, stream.EventWalkEnded, map[string]string{
			"session_id": segment.SessionID,
			"segment_id": segment.ID,
		})
	}
	return segment, nil
}

// SessionByBooking returns the booking's session together with its
// segments ordered by start time.
func (s *Service) SessionByBooking(ctx context.Context, bookingID string) (Session, []WalkSegment, error) {
	session, err := s.sessionByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, nil, apperr.New(apperr.NotFound, "tracking session not found")
		}
		return Session{}, nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, status, started_at, ended_at, distance_meters
		FROM walk_segments WHERE session_id=$1
		ORDER BY started_at
	`, session.ID)
	if err != nil {
		return Session{}, nil, err
	}
	defer rows.Close()

	var segments []WalkSegment
	for rows.Next() {
		var seg WalkSegment
		if err := rows.Scan(&seg.ID, &seg.SessionID, &seg.Status, &seg.StartedAt, &seg.EndedAt, &seg.DistanceMeters); err != nil {
			return Session{}, nil, err
		}
		segments = append(segments, seg)
	}
	return session, segments, nil
}

func (s *Service) SessionByID(ctx context.Context, id string) (Session, error) {
	session, err := s.scanSession(s.db.QueryRow(ctx, `
		SELECT id, booking_id, status, started_at, ended_at
		FROM track_sessions WHERE id=$1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, apperr.New(apperr.NotFound, "tracking session not found")
	}
	return session, err
}

// ActiveSegment resolves the session's current walk segment, or nil when
// the pet is being tracked outside any walk.
func (s *Service) ActiveSegment(ctx context.Context, sessionID string) (*WalkSegment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, session_id, status, started_at
		FROM walk_segments
		WHERE session_id=$1 AND status=$2
	`, sessionID, string(SegmentActive))

	var seg WalkSegment
	if err := row.Scan(&seg.ID, &seg.SessionID, &seg.Status, &seg.StartedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &seg, nil
}

// Points lists a session's durably stored points in sample order,
// optionally narrowed to one segment.
func (s *Service) Points(ctx context.Context, sessionID, segmentID string) ([]TrackPoint, error) {
	query := `
		SELECT id, session_id, walk_segment_id, latitude, longitude, altitude, speed, recorded_at
		FROM track_points WHERE session_id=$1
		ORDER BY recorded_at`
	args := []any{sessionID}
	if segmentID != "" {
		query = `
		SELECT id, session_id, walk_segment_id, latitude, longitude, altitude, speed, recorded_at
		FROM track_points WHERE session_id=$1 AND walk_segment_id=$2
		ORDER BY recorded_at`
		args = append(args, segmentID)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []TrackPoint
	for rows.Next() {
		var p TrackPoint
		if err := rows.Scan(&p.ID, &p.SessionID, &p.WalkSegmentID, &p.Lat, &p.Lng, &p.Altitude, &p.Speed, &p.RecordedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// SegmentDistance measures the segment's polyline along the ellipsoid.
func (s *Service) SegmentDistance(ctx context.Context, segmentID string) (float64, error) {
	var distance float64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(ST_Length(ST_MakeLine(geom ORDER BY recorded_at)::geography), 0)
		FROM track_points
		WHERE walk_segment_id=$1
	`, segmentID).Scan(&distance)
	return distance, err
}

func (s *Service) completeSegment(ctx context.Context, segmentID string, distance float64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE walk_segments SET status=$2, ended_at=$3, distance_meters=$4 WHERE id=$1
	`, segmentID, string(SegmentCompleted), time.Now(), distance)
	return err
}

func (s *Service) sessionByBooking(ctx context.Context, bookingID string) (Session, error) {
	return s.scanSession(s.db.QueryRow(ctx, `
		SELECT id, booking_id, status, started_at, ended_at
		FROM track_sessions WHERE booking_id=$1
	`, bookingID))
}

func (s *Service) sessionWithCaretaker(ctx context.Context, sessionID string) (Session, string, error) {
	row := s.db.QueryRow(ctx, `
		SELECT ts.id, ts.booking_id, ts.status, ts.started_at, ts.ended_at, b.caretaker_id
		FROM track_sessions ts
		JOIN bookings b ON b.id = ts.booking_id
		WHERE ts.id=$1
	`, sessionID)

	var session Session
	var caretakerID string
	err := row.Scan(&session.ID, &session.BookingID, &session.Status, &session.StartedAt, &session.EndedAt, &caretakerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, "", apperr.New(apperr.NotFound, "tracking session not found")
	}
	if err != nil {
		return Session{}, "", err
	}
	return session, caretakerID, nil
}

func (s *Service) activeSegments(ctx context.Context, sessionID string) ([]WalkSegment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, status, started_at
		FROM walk_segments
		WHERE session_id=$1 AND status=$2
	`, sessionID, string(SegmentActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []WalkSegment
	for rows.Next() {
		var seg WalkSegment
		if err := rows.Scan(&seg.ID, &seg.SessionID, &seg.Status, &seg.StartedAt); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func (s *Service) scanSession(row pgx.Row) (Session, error) {
	var session Session
	err := row.Scan(&session.ID, &session.BookingID, &session.Status, &session.StartedAt, &session.EndedAt)
	return session, err
}
