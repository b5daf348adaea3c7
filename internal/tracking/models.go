package tracking

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionCancelled SessionStatus = "CANCELLED"
)

type SegmentStatus string

const (
	SegmentActive    SegmentStatus = "ACTIVE"
	SegmentCompleted SegmentStatus = "COMPLETED"
)

// Session is created when both parties confirm handover and terminated
// when the booking reaches a terminal state. One per booking.
type Session struct {
	ID        string        `json:"id"`
	BookingID string        `json:"booking_id"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// WalkSegment is started and completed manually by the caretaker. At most
// one segment per session is ACTIVE at a time; distance is computed on
// completion.
type WalkSegment struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"session_id"`
	Status         SegmentStatus `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
	DistanceMeters *float64      `json:"distance_meters,omitempty"`
}

// TrackPoint is a durably persisted location sample. A nil WalkSegmentID
// marks a background point outside any walk, subject to the retention TTL.
type TrackPoint struct {
	ID            int64     `json:"id"`
	SessionID     string    `json:"session_id"`
	WalkSegmentID *string   `json:"walk_segment_id,omitempty"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	Altitude      *float64  `json:"altitude,omitempty"`
	Speed         *float64  `json:"speed,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}
