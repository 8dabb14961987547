package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/culturekids/enrolment-service/internal/enrolment"
	"github.com/culturekids/enrolment-service/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrolmentRepository handles persistence for enrolments.
//
// Enrol and Unenrol are the correctness-critical paths of the whole service:
// both lock the occurrence row with SELECT ... FOR UPDATE so that every
// check-then-act sequence against one occurrence is strictly serialized.
// Two transactions touching different occurrences never block each other.
type EnrolmentRepository struct {
	db *pgxpool.Pool
}

// NewEnrolmentRepository constructs an EnrolmentRepository.
func NewEnrolmentRepository(db *pgxpool.Pool) *EnrolmentRepository {
	return &EnrolmentRepository{db: db}
}

// Enrol creates an enrolment for the child in the occurrence after running
// the full rule sequence inside a single locked transaction. The capacity
// check cannot observe a count made stale by a concurrent uncommitted insert
// because both transactions contend on the occurrence row lock.
func (r *EnrolmentRepository) Enrol(ctx context.Context, childID, occurrenceID uuid.UUID, now time.Time) (*model.Enrolment, error) {
	var created *model.Enrolment
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		// Lock the contended row first; everything read below stays stable
		// until commit.
		var o model.Occurrence
		err := tx.QueryRow(ctx,
			`SELECT id, event_id, venue_id, time, capacity_override, ticket_system_url, created_at
			 FROM occurrences WHERE id = $1 FOR UPDATE`,
			occurrenceID,
		).Scan(&o.ID, &o.EventID, &o.VenueID, &o.Time, &o.CapacityOverride, &o.TicketSystemURL, &o.CreatedAt)
		if err != nil {
			if isNoRows(err) {
				return notFound("occurrence")
			}
			return fmt.Errorf("lock occurrence row: %w", err)
		}

		event, err := scanEvent(tx.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1`, o.EventID))
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}

		var childProjectID uuid.UUID
		err = tx.QueryRow(ctx,
			`SELECT project_id FROM children WHERE id = $1`, childID,
		).Scan(&childProjectID)
		if err != nil {
			if isNoRows(err) {
				return notFound("child")
			}
			return fmt.Errorf("get child: %w", err)
		}

		var enrolmentLimit int
		err = tx.QueryRow(ctx,
			`SELECT enrolment_limit FROM projects WHERE id = $1`, event.ProjectID,
		).Scan(&enrolmentLimit)
		if err != nil {
			return fmt.Errorf("get project limit: %w", err)
		}

		facts, err := gatherEnrolmentFacts(ctx, tx, childID, &o, event)
		if err != nil {
			return err
		}
		facts.SameProject = childProjectID == event.ProjectID
		facts.EnrolmentLimit = enrolmentLimit

		if err := enrolment.Validate(facts, now); err != nil {
			return err
		}

		created = &model.Enrolment{
			ID:           uuid.New(),
			ChildID:      childID,
			OccurrenceID: occurrenceID,
			CreatedAt:    now.UTC(),
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO enrolments (id, child_id, occurrence_id, attended, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			created.ID, created.ChildID, created.OccurrenceID, created.Attended, created.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert enrolment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// gatherEnrolmentFacts reads everything the rule engine needs within the
// locked transaction.
func gatherEnrolmentFacts(ctx context.Context, tx pgx.Tx, childID uuid.UUID, o *model.Occurrence, event *model.Event) (enrolment.Facts, error) {
	facts := enrolment.Facts{
		EventPublished:    event.Published(),
		EffectiveCapacity: o.EffectiveCapacity(event),
		OccurrenceTime:    o.Time,
	}

	err := tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM enrolments e
			JOIN occurrences oc ON oc.id = e.occurrence_id
			WHERE e.child_id = $1 AND oc.event_id = $2
		)`,
		childID, event.ID,
	).Scan(&facts.AlreadyInEvent)
	if err != nil {
		return facts, fmt.Errorf("check event membership: %w", err)
	}

	if event.EventGroupID != nil {
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT 1 FROM enrolments e
				JOIN occurrences oc ON oc.id = e.occurrence_id
				JOIN events ev ON ev.id = oc.event_id
				WHERE e.child_id = $1 AND ev.event_group_id = $2
			)`,
			childID, *event.EventGroupID,
		).Scan(&facts.AlreadyInGroup)
		if err != nil {
			return facts, fmt.Errorf("check group membership: %w", err)
		}
	}

	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM enrolments WHERE occurrence_id = $1`, o.ID,
	).Scan(&facts.EnrolmentCount)
	if err != nil {
		return facts, fmt.Errorf("count enrolments: %w", err)
	}

	facts.YearlyCount, err = yearlyEnrolmentCount(ctx, tx, childID, o.Time.Year())
	if err != nil {
		return facts, err
	}
	return facts, nil
}

// yearlyEnrolmentCount counts the child's enrolments in a calendar year,
// treating ticket-system password assignments as equivalent units. A password
// belongs to the year of its event's occurrences; an event with no
// occurrences yet falls back to the assignment year.
func yearlyEnrolmentCount(ctx context.Context, tx pgx.Tx, childID uuid.UUID, year int) (int, error) {
	var enrolments, passwords int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM enrolments e
		 JOIN occurrences oc ON oc.id = e.occurrence_id
		 WHERE e.child_id = $1 AND EXTRACT(YEAR FROM oc.time)::int = $2`,
		childID, year,
	).Scan(&enrolments)
	if err != nil {
		return 0, fmt.Errorf("count yearly enrolments: %w", err)
	}

	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM ticket_system_passwords p
		 WHERE p.child_id = $1
		 AND COALESCE(
			(SELECT EXTRACT(YEAR FROM MIN(oc.time))::int FROM occurrences oc WHERE oc.event_id = p.event_id),
			EXTRACT(YEAR FROM p.assigned_at)::int
		 ) = $2`,
		childID, year,
	).Scan(&passwords)
	if err != nil {
		return 0, fmt.Errorf("count yearly password assignments: %w", err)
	}
	return enrolments + passwords, nil
}

// Unenrol deletes the child's enrolment in the occurrence. The occurrence row
// lock makes the delete serialize with concurrent capacity checks. The
// deleted enrolment is returned for the notification side effect, which is
// dispatched by the caller after commit.
func (r *EnrolmentRepository) Unenrol(ctx context.Context, childID, occurrenceID uuid.UUID, now time.Time) (*model.Enrolment, error) {
	var deleted *model.Enrolment
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		var occurrenceTime time.Time
		err := tx.QueryRow(ctx,
			`SELECT time FROM occurrences WHERE id = $1 FOR UPDATE`, occurrenceID,
		).Scan(&occurrenceTime)
		if err != nil {
			if isNoRows(err) {
				return notFound("occurrence")
			}
			return fmt.Errorf("lock occurrence row: %w", err)
		}

		var e model.Enrolment
		err = tx.QueryRow(ctx,
			`SELECT id, child_id, occurrence_id, attended, created_at
			 FROM enrolments WHERE child_id = $1 AND occurrence_id = $2`,
			childID, occurrenceID,
		).Scan(&e.ID, &e.ChildID, &e.OccurrenceID, &e.Attended, &e.CreatedAt)
		if err != nil {
			if isNoRows(err) {
				return notFound("enrolment")
			}
			return fmt.Errorf("get enrolment: %w", err)
		}

		if err := enrolment.ValidateUnenrolment(occurrenceTime, now); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM enrolments WHERE id = $1`, e.ID); err != nil {
			return fmt.Errorf("delete enrolment: %w", err)
		}
		deleted = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// GetByID returns a single enrolment.
func (r *EnrolmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Enrolment, error) {
	var e model.Enrolment
	err := r.db.QueryRow(ctx,
		`SELECT id, child_id, occurrence_id, attended, created_at
		 FROM enrolments WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.ChildID, &e.OccurrenceID, &e.Attended, &e.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("enrolment")
		}
		return nil, fmt.Errorf("get enrolment: %w", err)
	}
	return &e, nil
}

// SetAttendance records the tri-state attended flag.
func (r *EnrolmentRepository) SetAttendance(ctx context.Context, id uuid.UUID, attended *bool) (*model.Enrolment, error) {
	var e model.Enrolment
	err := r.db.QueryRow(ctx,
		`UPDATE enrolments SET attended = $2 WHERE id = $1
		 RETURNING id, child_id, occurrence_id, attended, created_at`,
		id, attended,
	).Scan(&e.ID, &e.ChildID, &e.OccurrenceID, &e.Attended, &e.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("enrolment")
		}
		return nil, fmt.Errorf("set attendance: %w", err)
	}
	return &e, nil
}

// CountForOccurrence returns the live enrolment count, always read fresh.
func (r *EnrolmentRepository) CountForOccurrence(ctx context.Context, occurrenceID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM enrolments WHERE occurrence_id = $1`, occurrenceID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count enrolments: %w", err)
	}
	return count, nil
}

// TicketDetails is the public presentation of one enrolment on a verified
// ticket. It carries no internal identifiers.
type TicketDetails struct {
	EventName      string
	OccurrenceTime time.Time
	VenueName      string
}

// GetTicketDetails loads the presentation data for ticket verification using
// the default-language event name.
func (r *EnrolmentRepository) GetTicketDetails(ctx context.Context, enrolmentID uuid.UUID, language string) (*TicketDetails, error) {
	var d TicketDetails
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(t.name, ''), oc.time, v.name
		 FROM enrolments e
		 JOIN occurrences oc ON oc.id = e.occurrence_id
		 JOIN venues v ON v.id = oc.venue_id
		 LEFT JOIN event_translations t ON t.event_id = oc.event_id AND t.language_code = $2
		 WHERE e.id = $1`,
		enrolmentID, language,
	).Scan(&d.EventName, &d.OccurrenceTime, &d.VenueName)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("enrolment")
		}
		return nil, fmt.Errorf("get ticket details: %w", err)
	}
	return &d, nil
}
