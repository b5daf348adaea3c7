package ingest

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/teresabacho/pet-care-platform/internal/geo"
	"github.com/teresabacho/pet-care-platform/internal/shared/apperr"
	"github.com/teresabacho/pet-care-platform/internal/stream"
	"github.com/teresabacho/pet-care-platform/internal/tracking"
)

// Sample is the buffered representation of one location reading, as
// stored in Redis between arrival and flush.
type Sample struct {
	SessionID     string    `json:"session_id"`
	WalkSegmentID *string   `json:"walk_segment_id"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	Altitude      *float64  `json:"altitude,omitempty"`
	Speed         *float64  `json:"speed,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type incomingSample struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Altitude  *float64  `json:"altitude"`
	Speed     *float64  `json:"speed"`
	Timestamp time.Time `json:"timestamp"`
}

// Service is the ingestion entry point: it validates a raw sample,
// resolves the session's active walk segment, buffers the sample and
// broadcasts live events.
type Service struct {
	tracking *tracking.Service
	geo      *geo.Service
	buffer   *Buffer
	hub      *stream.Hub
}

func NewService(trackingSvc *tracking.Service, geoSvc *geo.Service, buffer *Buffer, hub *stream.Hub) *Service {
	return &Service{tracking: trackingSvc, geo: geoSvc, buffer: buffer, hub: hub}
}

// HandleRaw processes one sample from a device connection. A rejected
// sample affects nothing outside its own connection.
func (s *Service) HandleRaw(ctx context.Context, sessionID string, raw []byte) error {
	var in incomingSample
	if err := json.Unmarshal(raw, &in); err != nil {
		return apperr.New(apperr.Validation, "malformed location sample")
	}
	if in.Lat < -90 || in.Lat > 90 || in.Lng < -180 || in.Lng > 180 {
		return apperr.New(apperr.Validation, "coordinates out of range")
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}

	session, err := s.tracking.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != tracking.SessionActive {
		return apperr.New(apperr.InvalidState, "tracking session is not active")
	}

	segment, err := s.tracking.ActiveSegment(ctx, sessionID)
	if err != nil {
		return err
	}

	sample := Sample{
		SessionID: sessionID,
		Lat:       in.Lat,
		Lng:       in.Lng,
		Altitude:  in.Altitude,
		Speed:     in.Speed,
		Timestamp: in.Timestamp,
	}
	if segment != nil {
		sample.WalkSegmentID = &segment.ID
	}

	payload, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	if err := s.buffer.Append(ctx, sessionID, payload); err != nil {
		return err
	}

	s.hub.Publish(sessionID, stream.EventLivePoint, sample)

	inside, err := s.geo.CheckGeofence(ctx, sessionID, in.Lat, in.Lng)
	if err != nil {
		// The sample is already buffered; a failed containment check
		// only costs the alert.
		log.Printf("geofence check error for session %s: %v", sessionID, err)
		return nil
	}
	if !inside {
		s.hub.Publish(sessionID, stream.EventGeofenceAlert, map[string]any{
			"session_id": sessionID,
			"lat":        in.Lat,
			"lng":        in.Lng,
			"timestamp":  in.Timestamp,
		})
	}
	return nil
}
