package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/teresabacho/pet-care-platform/internal/db"
	"github.com/teresabacho/pet-care-platform/internal/notify"
	"github.com/teresabacho/pet-care-platform/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SessionManager is the tracking-side lifecycle hook invoked on booking
// transitions. Satisfied by *tracking.Service.
type SessionManager interface {
	CreateSession(ctx context.Context, bookingID string) error
	CompleteSession(ctx context.Context, bookingID string) error
	CancelSession(ctx context.Context, bookingID string) error
}

type Service struct {
	db       db.Querier
	sessions SessionManager
	events   *notify.Publisher
}

func NewService(db db.Querier, sessions SessionManager, events *notify.Publisher) *Service {
	return &Service{db: db, sessions: sessions, events: events}
}

const bookingColumns = `id, owner_id, caretaker_id, pet_id, service_type, status,
	       scheduled_start, scheduled_end, actual_start, actual_end,
	       handover_confirmed_by_owner, handover_confirmed_by_caretaker,
	       return_confirmed_by_owner, return_confirmed_by_caretaker,
	       price, COALESCE(notes,''), created_at`

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.OwnerID, &b.CaretakerID, &b.PetID, &b.ServiceType, &b.Status,
		&b.ScheduledStart, &b.ScheduledEnd, &b.ActualStart, &b.ActualEnd,
		&b.HandoverConfirmedByOwner, &b.HandoverConfirmedByCaretaker,
		&b.ReturnConfirmedByOwner, &b.ReturnConfirmedByCaretaker,
		&b.Price, &b.Notes, &b.CreatedAt)
	return b, err
}

func (s *Service) Create(ctx context.Context, ownerID string, req CreateRequest) (Booking, error) {
	if req.CaretakerID == "" || req.PetID == "" {
		return Booking{}, apperr.New(apperr.Validation, "caretaker_id and pet_id required")
	}
	switch req.ServiceType {
	case ServiceWalking, ServicePetSitting, ServiceBoarding, ServiceGrooming, ServiceVetVisit:
	default:
		return Booking{}, apperr.New(apperr.Validation, "unknown service type")
	}
	if req.ScheduledStart.IsZero() || req.ScheduledEnd.IsZero() || !req.ScheduledEnd.After(req.ScheduledStart) {
		return Booking{}, apperr.New(apperr.Validation, "scheduled_end must be after scheduled_start")
	}
	if req.Price < 0 {
		return Booking{}, apperr.New(apperr.Validation, "price must not be negative")
	}

	b := Booking{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		CaretakerID:    req.CaretakerID,
		PetID:          req.PetID,
		ServiceType:    req.ServiceType,
		Status:         StatusPending,
		ScheduledStart: req.ScheduledStart,
		ScheduledEnd:   req.ScheduledEnd,
		Price:          req.Price,
		Notes:          req.Notes,
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO bookings (id, owner_id, caretaker_id, pet_id, service_type, status, scheduled_start, scheduled_end, price, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at
	`, b.ID, b.OwnerID, b.CaretakerID, b.PetID, string(b.ServiceType), string(b.Status),
		b.ScheduledStart, b.ScheduledEnd, b.Price, b.Notes)
	if err := row.Scan(&b.CreatedAt); err != nil {
		return Booking{}, err
	}

	s.publish(ctx, notify.KeyBookingCreated, b)
	return b, nil
}

func (s *Service) ByUser(ctx context.Context, userID string) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE owner_id=$1 OR caretaker_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

func (s *Service) Get(ctx context.Context, id, userID string) (Booking, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if b.OwnerID != userID && b.CaretakerID != userID {
		return Booking{}, apperr.New(apperr.AccessDenied, "access denied")
	}
	return b, nil
}

// UpdateStatus walks the booking along the transition graph. Cancelling a
// booking also cancels its tracking session, if one exists.
func (s *Service) UpdateStatus(ctx context.Context, id, userID string, next Status) (Booking, error) {
	if _, known := validTransitions[next]; !known {
		return Booking{}, apperr.New(apperr.Validation, fmt.Sprintf("unknown status %s", next))
	}

	b, err := s.Get(ctx, id, userID)
	if err != nil {
		return Booking{}, err
	}

	if !transitionAllowed(b.Status, next) {
		return Booking{}, apperr.New(apperr.InvalidState,
			fmt.Sprintf("cannot transition from %s to %s", b.Status, next))
	}

	if _, err := s.db.Exec(ctx, `UPDATE bookings SET status=$2 WHERE id=$1`, id, string(next)); err != nil {
		return Booking{}, err
	}
	b.Status = next

	if next == StatusCancelled {
		if err := s.sessions.CancelSession(ctx, id); err != nil {
			return Booking{}, err
		}
	}

	s.publish(ctx, notify.KeyStatusChanged, b)
	return b, nil
}

// ConfirmHandover records one party's handover confirmation. When both
// parties have confirmed, the booking atomically moves to IN_PROGRESS,
// actual_start is stamped and a tracking session is created. The flag
// write is a conditional update so two racing confirmations cannot lose
// one another, and the status flip is guarded on the pending status so at
// most one request performs the transition.
func (s *Service) ConfirmHandover(ctx context.Context, id, userID string) (Booking, error) {
	return s.confirm(ctx, id, userID, confirmSpec{
		pending:       StatusHandoverPending,
		next:          StatusInProgress,
		stampColumn:   "actual_start",
		ownerQuery:    confirmHandoverOwnerSQL,
		caretakerSQL:  confirmHandoverCaretakerSQL,
		alreadyByUser: func(b Booking, owner bool) bool { return pick(owner, b.HandoverConfirmedByOwner, b.HandoverConfirmedByCaretaker) },
		stateMessage:  "handover can only be confirmed from HANDOVER_PENDING",
		conflictMsg:   "handover already confirmed by this party",
		onTransition: func(ctx context.Context) error {
			return s.sessions.CreateSession(ctx, id)
		},
		eventKey: notify.KeyHandoverConfirmed,
	})
}

// ConfirmReturn is the symmetric handshake for the return side: both
// confirmations move the booking to COMPLETED, stamp actual_end and
// complete the tracking session.
func (s *Service) ConfirmReturn(ctx context.Context, id, userID string) (Booking, error) {
	return s.confirm(ctx, id, userID, confirmSpec{
		pending:       StatusReturnPending,
		next:          StatusCompleted,
		stampColumn:   "actual_end",
		ownerQuery:    confirmReturnOwnerSQL,
		caretakerSQL:  confirmReturnCaretakerSQL,
		alreadyByUser: func(b Booking, owner bool) bool { return pick(owner, b.ReturnConfirmedByOwner, b.ReturnConfirmedByCaretaker) },
		stateMessage:  "return can only be confirmed from RETURN_PENDING",
		conflictMsg:   "return already confirmed by this party",
		onTransition: func(ctx context.Context) error {
			return s.sessions.CompleteSession(ctx, id)
		},
		eventKey: notify.KeyReturnConfirmed,
	})
}

const (
	confirmHandoverOwnerSQL = `
		UPDATE bookings SET handover_confirmed_by_owner = TRUE
		WHERE id=$1 AND status='HANDOVER_PENDING' AND handover_confirmed_by_owner = FALSE
		RETURNING handover_confirmed_by_owner, handover_confirmed_by_caretaker`
	confirmHandoverCaretakerSQL = `
		UPDATE bookings SET handover_confirmed_by_caretaker = TRUE
		WHERE id=$1 AND status='HANDOVER_PENDING' AND handover_confirmed_by_caretaker = FALSE
		RETURNING handover_confirmed_by_owner, handover_confirmed_by_caretaker`
	confirmReturnOwnerSQL = `
		UPDATE bookings SET return_confirmed_by_owner = TRUE
		WHERE id=$1 AND status='RETURN_PENDING' AND return_confirmed_by_owner = FALSE
		RETURNING return_confirmed_by_owner, return_confirmed_by_caretaker`
	confirmReturnCaretakerSQL = `
		UPDATE bookings SET return_confirmed_by_caretaker = TRUE
		WHERE id=$1 AND status='RETURN_PENDING' AND return_confirmed_by_caretaker = FALSE
		RETURNING return_confirmed_by_owner, return_confirmed_by_caretaker`
)

type confirmSpec struct {
	pending       Status
	next          Status
	stampColumn   string
	ownerQuery    string
	caretakerSQL  string
	alreadyByUser func(b Booking, owner bool) bool
	stateMessage  string
	conflictMsg   string
	onTransition  func(ctx context.Context) error
	eventKey      string
}

func (s *Service) confirm(ctx context.Context, id, userID string, spec confirmSpec) (Booking, error) {
	b, err := s.Get(ctx, id, userID)
	if err != nil {
		return Booking{}, err
	}
	if b.Status != spec.pending {
		return Booking{}, apperr.New(apperr.InvalidState, spec.stateMessage)
	}

	isOwner := userID == b.OwnerID
	if spec.alreadyByUser(b, isOwner) {
		return Booking{}, apperr.New(apperr.Conflict, spec.conflictMsg)
	}

	query := spec.ownerQuery
	if !isOwner {
		query = spec.caretakerSQL
	}

	var byOwner, byCaretaker bool
	if err := s.db.QueryRow(ctx, query, id).Scan(&byOwner, &byCaretaker); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race against a concurrent confirm or state change.
			return Booking{}, apperr.New(apperr.Conflict, spec.conflictMsg)
		}
		return Booking{}, err
	}

	if byOwner && byCaretaker {
		// The guard on the pending status makes sure only one of two
		// racing confirmers performs the transition and the hook.
		tag, err := s.db.Exec(ctx, `
			UPDATE bookings SET status=$2, `+spec.stampColumn+`=$3
			WHERE id=$1 AND status=$4
		`, id, string(spec.next), time.Now(), string(spec.pending))
		if err != nil {
			return Booking{}, err
		}
		if tag.RowsAffected() == 1 {
			if err := spec.onTransition(ctx); err != nil {
				return Booking{}, err
			}
			s.publish(ctx, spec.eventKey, map[string]string{"booking_id": id, "status": string(spec.next)})
		}
		return s.load(ctx, id)
	}

	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings WHERE id=$1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, apperr.New(apperr.NotFound, "booking not found")
	}
	if err != nil {
		return Booking{}, err
	}
	return b, nil
}

func (s *Service) publish(ctx context.Context, key string, v any) {
	if err := s.events.Publish(ctx, key, v); err != nil {
		log.Printf("booking event publish error: %v", err)
	}
}

func pick(owner bool, ownerVal, caretakerVal bool) bool {
	if owner {
		return ownerVal
	}
	return caretakerVal
}
