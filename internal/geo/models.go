package geo

import "time"

// Geofence is a circular safe zone around a session. The schema does not
// enforce one per session; reads take the most recently created one.
type Geofence struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	CenterLat    float64   `json:"center_lat"`
	CenterLng    float64   `json:"center_lng"`
	RadiusMeters float64   `json:"radius_meters"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateGeofenceRequest struct {
	SessionID    string  `json:"session_id"`
	CenterLat    float64 `json:"center_lat"`
	CenterLng    float64 `json:"center_lng"`
	RadiusMeters float64 `json:"radius_meters"`
}

type WalkStats struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	AvgSpeedMS      float64 `json:"avg_speed_ms"`
	MaxSpeedMS      float64 `json:"max_speed_ms"`
	PointCount      int     `json:"point_count"`
}

type SessionStats struct {
	WalkCount            int     `json:"walk_count"`
	TotalDistanceMeters  float64 `json:"total_distance_meters"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
}
