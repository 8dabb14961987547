package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/culturekids/enrolment-service/internal/apperr"
	"github.com/culturekids/enrolment-service/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PasswordRepository manages the per-event pool of ticket system passwords.
type PasswordRepository struct {
	db *pgxpool.Pool
}

// NewPasswordRepository constructs a PasswordRepository.
func NewPasswordRepository(db *pgxpool.Pool) *PasswordRepository {
	return &PasswordRepository{db: db}
}

// Import adds pre-provisioned password values to an event's pool. Values
// already present for the event are skipped.
func (r *PasswordRepository) Import(ctx context.Context, eventID uuid.UUID, values []string) (int, error) {
	imported := 0
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, value := range values {
			tag, err := tx.Exec(ctx,
				`INSERT INTO ticket_system_passwords (id, event_id, value, created_at)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (event_id, value) DO NOTHING`,
				uuid.New(), eventID, value, time.Now().UTC(),
			)
			if err != nil {
				return fmt.Errorf("insert password: %w", err)
			}
			imported += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}

// Assign hands one free password of the event to the child, exactly once.
//
// Calling again for a child that already holds a password returns the same
// password unchanged. Otherwise one unassigned row is claimed under a row
// lock; SKIP LOCKED lets concurrent callers claim distinct rows instead of
// queueing on the same one. The guarded UPDATE is the final authority: zero
// rows affected means another transaction won the row.
func (r *PasswordRepository) Assign(ctx context.Context, eventID, childID uuid.UUID, now time.Time) (*model.TicketSystemPassword, error) {
	var assigned *model.TicketSystemPassword
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		existing, err := passwordByChild(ctx, tx, eventID, childID)
		if err != nil {
			return err
		}
		if existing != nil {
			assigned = existing
			return nil
		}

		var p model.TicketSystemPassword
		err = tx.QueryRow(ctx,
			`SELECT id, event_id, value, child_id, assigned_at, created_at
			 FROM ticket_system_passwords
			 WHERE event_id = $1 AND child_id IS NULL
			 ORDER BY created_at ASC, id ASC
			 LIMIT 1
			 FOR UPDATE SKIP LOCKED`,
			eventID,
		).Scan(&p.ID, &p.EventID, &p.Value, &p.ChildID, &p.AssignedAt, &p.CreatedAt)
		if err != nil {
			if isNoRows(err) {
				return apperr.New(apperr.CodeNoFreePasswords, "all passwords are already assigned")
			}
			return fmt.Errorf("select free password: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE ticket_system_passwords
			 SET child_id = $2, assigned_at = $3
			 WHERE id = $1 AND child_id IS NULL`,
			p.ID, childID, now.UTC(),
		)
		if err != nil {
			return fmt.Errorf("claim password: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.New(apperr.CodePasswordAlreadyAssigned, "password is already assigned")
		}

		assignedAt := now.UTC()
		p.ChildID = &childID
		p.AssignedAt = &assignedAt
		assigned = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

// Reassign explicitly binds a specific password to a child. Unlike Assign's
// idempotent path, finding the password already held by a different child is
// an error.
func (r *PasswordRepository) Reassign(ctx context.Context, passwordID, childID uuid.UUID, now time.Time) (*model.TicketSystemPassword, error) {
	var result *model.TicketSystemPassword
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		var p model.TicketSystemPassword
		err := tx.QueryRow(ctx,
			`SELECT id, event_id, value, child_id, assigned_at, created_at
			 FROM ticket_system_passwords WHERE id = $1 FOR UPDATE`,
			passwordID,
		).Scan(&p.ID, &p.EventID, &p.Value, &p.ChildID, &p.AssignedAt, &p.CreatedAt)
		if err != nil {
			if isNoRows(err) {
				return notFound("ticket system password")
			}
			return fmt.Errorf("lock password row: %w", err)
		}

		if p.ChildID != nil {
			if *p.ChildID == childID {
				result = &p
				return nil
			}
			return apperr.New(apperr.CodePasswordAlreadyAssigned,
				"password is already assigned to another child")
		}

		assignedAt := now.UTC()
		if _, err := tx.Exec(ctx,
			`UPDATE ticket_system_passwords SET child_id = $2, assigned_at = $3 WHERE id = $1`,
			p.ID, childID, assignedAt,
		); err != nil {
			return fmt.Errorf("assign password: %w", err)
		}
		p.ChildID = &childID
		p.AssignedAt = &assignedAt
		result = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func passwordByChild(ctx context.Context, tx pgx.Tx, eventID, childID uuid.UUID) (*model.TicketSystemPassword, error) {
	var p model.TicketSystemPassword
	err := tx.QueryRow(ctx,
		`SELECT id, event_id, value, child_id, assigned_at, created_at
		 FROM ticket_system_passwords
		 WHERE event_id = $1 AND child_id = $2`,
		eventID, childID,
	).Scan(&p.ID, &p.EventID, &p.Value, &p.ChildID, &p.AssignedAt, &p.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get assigned password: %w", err)
	}
	return &p, nil
}

// CountFree returns the number of unassigned passwords in an event's pool.
func (r *PasswordRepository) CountFree(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM ticket_system_passwords
		 WHERE event_id = $1 AND child_id IS NULL`,
		eventID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count free passwords: %w", err)
	}
	return count, nil
}
