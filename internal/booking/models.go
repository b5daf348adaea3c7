package booking

import "time"

type Status string

const (
	StatusPending         Status = "PENDING"
	StatusConfirmed       Status = "CONFIRMED"
	StatusHandoverPending Status = "HANDOVER_PENDING"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusReturnPending   Status = "RETURN_PENDING"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
)

type ServiceType string

const (
	ServiceWalking    ServiceType = "WALKING"
	ServicePetSitting ServiceType = "PET_SITTING"
	ServiceBoarding   ServiceType = "BOARDING"
	ServiceGrooming   ServiceType = "GROOMING"
	ServiceVetVisit   ServiceType = "VET_VISIT"
)

// validTransitions is the direct transition graph for the generic status
// update. HANDOVER_PENDING and RETURN_PENDING can only be exited through
// the confirmation handshake, never through a plain status change.
var validTransitions = map[Status][]Status{
	StatusPending:         {StatusConfirmed, StatusCancelled},
	StatusConfirmed:       {StatusHandoverPending, StatusCancelled},
	StatusHandoverPending: {},
	StatusInProgress:      {StatusReturnPending, StatusCancelled},
	StatusReturnPending:   {},
	StatusCompleted:       {},
	StatusCancelled:       {},
}

func transitionAllowed(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Booking struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"owner_id"`
	CaretakerID string      `json:"caretaker_id"`
	PetID       string      `json:"pet_id"`
	ServiceType ServiceType `json:"service_type"`
	Status      Status      `json:"status"`

	ScheduledStart time.Time  `json:"scheduled_start"`
	ScheduledEnd   time.Time  `json:"scheduled_end"`
	ActualStart    *time.Time `json:"actual_start,omitempty"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`

	HandoverConfirmedByOwner     bool `json:"handover_confirmed_by_owner"`
	HandoverConfirmedByCaretaker bool `json:"handover_confirmed_by_caretaker"`
	ReturnConfirmedByOwner       bool `json:"return_confirmed_by_owner"`
	ReturnConfirmedByCaretaker   bool `json:"return_confirmed_by_caretaker"`

	Price     float64   `json:"price"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateRequest struct {
	CaretakerID    string      `json:"caretaker_id"`
	PetID          string      `json:"pet_id"`
	ServiceType    ServiceType `json:"service_type"`
	ScheduledStart time.Time   `json:"scheduled_start"`
	ScheduledEnd   time.Time   `json:"scheduled_end"`
	Price          float64     `json:"price"`
	Notes          string      `json:"notes"`
}
