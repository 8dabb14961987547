package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/culturekids/enrolment-service/internal/apperr"
	"github.com/culturekids/enrolment-service/internal/model"
	"github.com/culturekids/enrolment-service/internal/publishing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `id, project_id, event_group_id, ticket_system, capacity_per_occurrence,
	duration, published_at, ready_for_event_group_publishing, created_at`

// EventRepository handles persistence for events, event groups and occurrences.
type EventRepository struct {
	db              *pgxpool.Pool
	defaultLanguage string
}

// NewEventRepository constructs an EventRepository. defaultLanguage is the
// language whose translation gates publishing.
func NewEventRepository(db *pgxpool.Pool, defaultLanguage string) *EventRepository {
	return &EventRepository{db: db, defaultLanguage: defaultLanguage}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.ProjectID, &e.EventGroupID, &e.TicketSystem,
		&e.CapacityPerOccurrence, &e.Duration, &e.PublishedAt,
		&e.ReadyForEventGroupPublishing, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanOccurrence(row rowScanner) (*model.Occurrence, error) {
	var o model.Occurrence
	err := row.Scan(&o.ID, &o.EventID, &o.VenueID, &o.Time,
		&o.CapacityOverride, &o.TicketSystemURL, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateEvent inserts a new event with its translations in one transaction.
func (r *EventRepository) CreateEvent(ctx context.Context, e *model.Event, translations []model.EventTranslation) (*model.Event, error) {
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()

	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO events (id, project_id, event_group_id, ticket_system, capacity_per_occurrence,
				duration, published_at, ready_for_event_group_publishing, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, e.ProjectID, e.EventGroupID, e.TicketSystem, e.CapacityPerOccurrence,
			e.Duration, e.PublishedAt, e.ReadyForEventGroupPublishing, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		for _, t := range translations {
			if err := insertEventTranslation(ctx, tx, e.ID, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func insertEventTranslation(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, t model.EventTranslation) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO event_translations (event_id, language_code, name, short_description, description)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (event_id, language_code) DO UPDATE
		 SET name = EXCLUDED.name,
		     short_description = EXCLUDED.short_description,
		     description = EXCLUDED.description`,
		eventID, t.LanguageCode, t.Name, t.ShortDescription, t.Description,
	)
	if err != nil {
		return fmt.Errorf("upsert event translation: %w", err)
	}
	return nil
}

// UpdateEvent persists mutable event fields and upserts translations.
func (r *EventRepository) UpdateEvent(ctx context.Context, e *model.Event, translations []model.EventTranslation) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE events
			 SET ticket_system = $2,
			     capacity_per_occurrence = $3,
			     duration = $4,
			     ready_for_event_group_publishing = $5,
			     event_group_id = $6
			 WHERE id = $1`,
			e.ID, e.TicketSystem, e.CapacityPerOccurrence, e.Duration,
			e.ReadyForEventGroupPublishing, e.EventGroupID,
		)
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return notFound("event")
		}
		for _, t := range translations {
			if err := insertEventTranslation(ctx, tx, e.ID, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetEvent returns a single event.
func (r *EventRepository) GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("event")
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// DeleteEvent removes the event and everything it exclusively owns:
// occurrences (and their enrolments), passwords, translations.
func (r *EventRepository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`DELETE FROM enrolments
			 WHERE occurrence_id IN (SELECT id FROM occurrences WHERE event_id = $1)`, id)
		if err != nil {
			return fmt.Errorf("delete event enrolments: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM occurrences WHERE event_id = $1`, id); err != nil {
			return fmt.Errorf("delete event occurrences: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM ticket_system_passwords WHERE event_id = $1`, id); err != nil {
			return fmt.Errorf("delete event passwords: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return notFound("event")
		}
		return nil
	})
}

// HasDefaultTranslation reports whether the event has text content in the
// default language.
func hasDefaultTranslation(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, language string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM event_translations
			WHERE event_id = $1 AND language_code = $2 AND name <> ''
		)`,
		eventID, language,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check default translation: %w", err)
	}
	return exists, nil
}

func eventOccurrences(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) ([]model.Occurrence, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, event_id, venue_id, time, capacity_override, ticket_system_url, created_at
		 FROM occurrences WHERE event_id = $1 ORDER BY time ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	var occurrences []model.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occurrences = append(occurrences, *o)
	}
	return occurrences, rows.Err()
}

// publishEventLocked validates and publishes a single event inside tx. The
// caller must already hold the lock on the event row.
func (r *EventRepository) publishEventLocked(ctx context.Context, tx pgx.Tx, event *model.Event, now time.Time) error {
	occurrences, err := eventOccurrences(ctx, tx, event.ID)
	if err != nil {
		return err
	}
	translated, err := hasDefaultTranslation(ctx, tx, event.ID, r.defaultLanguage)
	if err != nil {
		return err
	}
	if err := publishing.CheckEventPublishable(event, occurrences, translated); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE events SET published_at = $2 WHERE id = $1`, event.ID, now); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	published := now
	event.PublishedAt = &published
	return nil
}

// PublishEvent transitions one event from draft to published. The event row is
// locked for the duration of the precondition checks so concurrent publishes
// serialize.
func (r *EventRepository) PublishEvent(ctx context.Context, id uuid.UUID, now time.Time) (*model.Event, error) {
	var event *model.Event
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		event, err = scanEvent(tx.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if isNoRows(err) {
				return notFound("event")
			}
			return fmt.Errorf("lock event row: %w", err)
		}
		return r.publishEventLocked(ctx, tx, event, now)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// CreateGroup inserts a new event group with its translations.
func (r *EventRepository) CreateGroup(ctx context.Context, projectID uuid.UUID, translations []model.EventTranslation) (*model.EventGroup, error) {
	g := &model.EventGroup{
		ID:        uuid.New(),
		ProjectID: projectID,
		CreatedAt: time.Now().UTC(),
	}
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO event_groups (id, project_id, published_at, created_at)
			 VALUES ($1, $2, $3, $4)`,
			g.ID, g.ProjectID, g.PublishedAt, g.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert event group: %w", err)
		}
		for _, t := range translations {
			_, err := tx.Exec(ctx,
				`INSERT INTO event_group_translations (event_group_id, language_code, name, short_description, description)
				 VALUES ($1, $2, $3, $4, $5)`,
				g.ID, t.LanguageCode, t.Name, t.ShortDescription, t.Description,
			)
			if err != nil {
				return fmt.Errorf("insert event group translation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetGroup returns a single event group.
func (r *EventRepository) GetGroup(ctx context.Context, id uuid.UUID) (*model.EventGroup, error) {
	var g model.EventGroup
	err := r.db.QueryRow(ctx,
		`SELECT id, project_id, published_at, created_at
		 FROM event_groups WHERE id = $1`,
		id,
	).Scan(&g.ID, &g.ProjectID, &g.PublishedAt, &g.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("event group")
		}
		return nil, fmt.Errorf("get event group: %w", err)
	}
	return &g, nil
}

// PublishGroup publishes an event group and every unpublished, ready member
// event. The whole sequence is one transaction: the group row and all member
// rows are locked first, then every member is validated before any
// published_at changes, so a failing member leaves nothing published.
func (r *EventRepository) PublishGroup(ctx context.Context, id uuid.UUID, now time.Time) (*model.EventGroup, error) {
	var group model.EventGroup
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT id, project_id, published_at, created_at
			 FROM event_groups WHERE id = $1 FOR UPDATE`,
			id,
		).Scan(&group.ID, &group.ProjectID, &group.PublishedAt, &group.CreatedAt)
		if err != nil {
			if isNoRows(err) {
				return notFound("event group")
			}
			return fmt.Errorf("lock event group row: %w", err)
		}

		rows, err := tx.Query(ctx,
			`SELECT `+eventColumns+` FROM events WHERE event_group_id = $1 ORDER BY created_at ASC FOR UPDATE`,
			id,
		)
		if err != nil {
			return fmt.Errorf("lock member events: %w", err)
		}
		var members []model.Event
		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan member event: %w", err)
			}
			members = append(members, *e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate member events: %w", err)
		}

		if err := publishing.CheckGroupPublishable(&group, members); err != nil {
			return err
		}

		// Validate every promotable member before mutating anything, then
		// publish them through the single-event path.
		unpublished := publishing.UnpublishedMembers(members)
		for i := range unpublished {
			occurrences, err := eventOccurrences(ctx, tx, unpublished[i].ID)
			if err != nil {
				return err
			}
			translated, err := hasDefaultTranslation(ctx, tx, unpublished[i].ID, r.defaultLanguage)
			if err != nil {
				return err
			}
			if err := publishing.CheckEventPublishable(&unpublished[i], occurrences, translated); err != nil {
				return err
			}
		}
		for i := range unpublished {
			if err := r.publishEventLocked(ctx, tx, &unpublished[i], now); err != nil {
				return err
			}
		}

		if !group.Published() {
			if _, err := tx.Exec(ctx,
				`UPDATE event_groups SET published_at = $2 WHERE id = $1`, id, now); err != nil {
				return fmt.Errorf("publish event group: %w", err)
			}
			published := now
			group.PublishedAt = &published
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// CreateOccurrence inserts an occurrence after validating the calendar-year
// invariant against the event's existing occurrences. The event row is locked
// so two concurrent inserts cannot establish conflicting years.
func (r *EventRepository) CreateOccurrence(ctx context.Context, o *model.Occurrence) (*model.Occurrence, error) {
	o.ID = uuid.New()
	o.CreatedAt = time.Now().UTC()

	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		event, err := scanEvent(tx.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, o.EventID))
		if err != nil {
			if isNoRows(err) {
				return notFound("event")
			}
			return fmt.Errorf("lock event row: %w", err)
		}

		if err := checkOccurrenceYear(ctx, tx, o.EventID, uuid.Nil, o.Time); err != nil {
			return err
		}
		if err := checkOccurrenceURL(event, o); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO occurrences (id, event_id, venue_id, time, capacity_override, ticket_system_url, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, o.EventID, o.VenueID, o.Time, o.CapacityOverride, o.TicketSystemURL, o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert occurrence: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateOccurrence persists mutable occurrence fields with the same
// year-invariant check as creation, excluding the occurrence itself.
func (r *EventRepository) UpdateOccurrence(ctx context.Context, o *model.Occurrence) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		event, err := scanEvent(tx.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, o.EventID))
		if err != nil {
			if isNoRows(err) {
				return notFound("event")
			}
			return fmt.Errorf("lock event row: %w", err)
		}

		if err := checkOccurrenceYear(ctx, tx, o.EventID, o.ID, o.Time); err != nil {
			return err
		}
		if err := checkOccurrenceURL(event, o); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE occurrences
			 SET venue_id = $2, time = $3, capacity_override = $4, ticket_system_url = $5
			 WHERE id = $1`,
			o.ID, o.VenueID, o.Time, o.CapacityOverride, o.TicketSystemURL,
		)
		if err != nil {
			return fmt.Errorf("update occurrence: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return notFound("occurrence")
		}
		return nil
	})
}

// checkOccurrenceYear enforces that all occurrences of one event share a
// calendar year. exclude skips the occurrence being updated.
func checkOccurrenceYear(ctx context.Context, tx pgx.Tx, eventID, exclude uuid.UUID, t time.Time) error {
	var sameYearExists, anyExists bool
	err := tx.QueryRow(ctx,
		`SELECT
			EXISTS (SELECT 1 FROM occurrences
				WHERE event_id = $1 AND id <> $2 AND EXTRACT(YEAR FROM time)::int = $3),
			EXISTS (SELECT 1 FROM occurrences WHERE event_id = $1 AND id <> $2)`,
		eventID, exclude, t.Year(),
	).Scan(&sameYearExists, &anyExists)
	if err != nil {
		return fmt.Errorf("check occurrence year: %w", err)
	}
	if anyExists && !sameYearExists {
		return apperr.New(apperr.CodeOccurrenceYearMismatch,
			"occurrence has different year than the rest of the event occurrences")
	}
	return nil
}

// checkOccurrenceURL requires a ticket system URL for occurrences of a
// published ticketmaster event.
func checkOccurrenceURL(event *model.Event, o *model.Occurrence) error {
	if event.TicketSystem == model.TicketSystemTicketmaster && event.Published() && o.TicketSystemURL == "" {
		return apperr.New(apperr.CodeTicketSystemURLMissing,
			"occurrence of a published ticketmaster event requires a ticket system URL")
	}
	return nil
}

// GetOccurrence returns a single occurrence.
func (r *EventRepository) GetOccurrence(ctx context.Context, id uuid.UUID) (*model.Occurrence, error) {
	o, err := scanOccurrence(r.db.QueryRow(ctx,
		`SELECT id, event_id, venue_id, time, capacity_override, ticket_system_url, created_at
		 FROM occurrences WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("occurrence")
		}
		return nil, fmt.Errorf("get occurrence: %w", err)
	}
	return o, nil
}

// ListOccurrences returns all occurrences of an event ordered by time.
func (r *EventRepository) ListOccurrences(ctx context.Context, eventID uuid.UUID) ([]model.Occurrence, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, venue_id, time, capacity_override, ticket_system_url, created_at
		 FROM occurrences WHERE event_id = $1 ORDER BY time ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	var occurrences []model.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occurrences = append(occurrences, *o)
	}
	return occurrences, rows.Err()
}

// DeleteOccurrence removes an occurrence and, explicitly, its enrolments.
func (r *EventRepository) DeleteOccurrence(ctx context.Context, id uuid.UUID) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM enrolments WHERE occurrence_id = $1`, id); err != nil {
			return fmt.Errorf("delete occurrence enrolments: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM occurrences WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete occurrence: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return notFound("occurrence")
		}
		return nil
	})
}
