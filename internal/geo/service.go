package geo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/teresabacho/pet-care-platform/internal/db"
	"github.com/teresabacho/pet-care-platform/internal/shared/apperr"
	geomath "github.com/teresabacho/pet-care-platform/internal/shared/geo"

	"github.com/jackc/pgx/v5"
)

const minRadiusMeters = 10

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// CreateGeofence sets a safe zone for a session. Only the booking owner
// may do this; the caretaker is the one being watched.
func (s *Service) CreateGeofence(ctx context.Context, callerID string, req CreateGeofenceRequest) (Geofence, error) {
	if req.RadiusMeters < minRadiusMeters {
		return Geofence{}, apperr.New(apperr.Validation, "radius must be at least 10 meters")
	}
	if req.CenterLat < -90 || req.CenterLat > 90 || req.CenterLng < -180 || req.CenterLng > 180 {
		return Geofence{}, apperr.New(apperr.Validation, "center coordinates out of range")
	}

	var ownerID string
	err := s.db.QueryRow(ctx, `
		SELECT b.owner_id
		FROM track_sessions ts JOIN bookings b ON b.id = ts.booking_id
		WHERE ts.id=$1
	`, req.SessionID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Geofence{}, apperr.New(apperr.NotFound, "tracking session not found")
	}
	if err != nil {
		return Geofence{}, err
	}
	if ownerID != callerID {
		return Geofence{}, apperr.New(apperr.AccessDenied, "only the booking owner may set a geofence")
	}

	fence := Geofence{
		SessionID:    req.SessionID,
		CenterLat:    req.CenterLat,
		CenterLng:    req.CenterLng,
		RadiusMeters: req.RadiusMeters,
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO geofences (session_id, center_lat, center_lng, radius_meters, geom)
		VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($3, $2), 4326))
		RETURNING id, created_at
	`, req.SessionID, req.CenterLat, req.CenterLng, req.RadiusMeters).Scan(&fence.ID, &fence.CreatedAt)
	if err != nil {
		return Geofence{}, err
	}
	return fence, nil
}

// GeofenceBySession returns the session's geofence, or nil when none is
// configured. With several configured, the newest wins.
func (s *Service) GeofenceBySession(ctx context.Context, sessionID string) (*Geofence, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, session_id, center_lat, center_lng, radius_meters, created_at
		FROM geofences WHERE session_id=$1
		ORDER BY created_at DESC LIMIT 1
	`, sessionID)

	var fence Geofence
	err := row.Scan(&fence.ID, &fence.SessionID, &fence.CenterLat, &fence.CenterLng, &fence.RadiusMeters, &fence.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fence, nil
}

// DeleteGeofence removes a geofence. Either party of the booking may do
// this.
func (s *Service) DeleteGeofence(ctx context.Context, id, callerID string) error {
	var ownerID, caretakerID string
	err := s.db.QueryRow(ctx, `
		SELECT b.owner_id, b.caretaker_id
		FROM geofences g
		JOIN track_sessions ts ON ts.id = g.session_id
		JOIN bookings b ON b.id = ts.booking_id
		WHERE g.id=$1
	`, id).Scan(&ownerID, &caretakerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.NotFound, "geofence not found")
	}
	if err != nil {
		return err
	}
	if callerID != ownerID && callerID != caretakerID {
		return apperr.New(apperr.AccessDenied, "caller is not a party of the booking")
	}

	_, err = s.db.Exec(ctx, `DELETE FROM geofences WHERE id=$1`, id)
	return err
}

// CheckGeofence reports whether a coordinate lies inside the session's
// safe zone. A session without a geofence always passes.
func (s *Service) CheckGeofence(ctx context.Context, sessionID string, lat, lng float64) (bool, error) {
	fence, err := s.GeofenceBySession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if fence == nil {
		return true, nil
	}
	return geomath.DistanceM(lat, lng, fence.CenterLat, fence.CenterLng) <= fence.RadiusMeters, nil
}

func (s *Service) WalkStats(ctx context.Context, segmentID string) (WalkStats, error) {
	var stats WalkStats
	err := s.db.QueryRow(ctx, `
		SELECT
			COALESCE(ST_Length(ST_MakeLine(geom ORDER BY recorded_at)::geography), 0),
			COALESCE(EXTRACT(EPOCH FROM (MAX(recorded_at) - MIN(recorded_at))), 0),
			COALESCE(AVG(speed), 0),
			COALESCE(MAX(speed), 0),
			COUNT(*)
		FROM track_points
		WHERE walk_segment_id=$1
	`, segmentID).Scan(&stats.DistanceMeters, &stats.DurationSeconds, &stats.AvgSpeedMS, &stats.MaxSpeedMS, &stats.PointCount)
	return stats, err
}

func (s *Service) SessionStats(ctx context.Context, sessionID string) (SessionStats, error) {
	var stats SessionStats
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(distance_meters), 0),
			COALESCE(SUM(EXTRACT(EPOCH FROM (ended_at - started_at))), 0)
		FROM walk_segments
		WHERE session_id=$1 AND status='COMPLETED'
	`, sessionID).Scan(&stats.WalkCount, &stats.TotalDistanceMeters, &stats.TotalDurationSeconds)
	return stats, err
}

// RouteGeoJSON exports a segment's polyline as a GeoJSON LineString for
// map rendering. A segment without points yields JSON null.
func (s *Service) RouteGeoJSON(ctx context.Context, segmentID string) (json.RawMessage, error) {
	var geojson string
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(ST_AsGeoJSON(ST_MakeLine(geom ORDER BY recorded_at)), 'null')
		FROM track_points
		WHERE walk_segment_id=$1
	`, segmentID).Scan(&geojson)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(geojson), nil
}

// MaxDeviation answers how far the pet wandered: the greatest distance
// from any of the segment's points to the named geofence's center.
func (s *Service) MaxDeviation(ctx context.Context, segmentID, geofenceID string) (float64, error) {
	var deviation float64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(ST_Distance(tp.geom::geography, gf.geom::geography)), 0)
		FROM track_points tp, geofences gf
		WHERE tp.walk_segment_id=$1 AND gf.id=$2
	`, segmentID, geofenceID).Scan(&deviation)
	return deviation, err
}
