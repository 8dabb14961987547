// Package enrolment implements the rule engine deciding whether a child may
// enrol in or unenrol from an occurrence.
//
// Validation is expressed over a Facts snapshot so the repository can gather
// the inputs inside its row-locked transaction and evaluate the rules there,
// while tests exercise the identical logic without a database.
package enrolment

import (
	"time"

	"github.com/culturekids/enrolment-service/internal/apperr"
)

// Facts is everything the enrolment rules need to know, read within the same
// transaction that will create the enrolment row.
type Facts struct {
	// EventPublished is whether the occurrence's event is visible.
	EventPublished bool
	// SameProject is whether the child and the event belong to one project.
	SameProject bool
	// AlreadyInEvent is whether the child holds an enrolment for any
	// occurrence of this event.
	AlreadyInEvent bool
	// AlreadyInGroup is whether the event belongs to a group and the child
	// holds an enrolment for any event of that group.
	AlreadyInGroup bool
	// EffectiveCapacity is the occurrence's capacity; nil means uncapped.
	EffectiveCapacity *int
	// EnrolmentCount is the occurrence's live enrolment count.
	EnrolmentCount int
	// OccurrenceTime is when the occurrence takes place.
	OccurrenceTime time.Time
	// YearlyCount is the child's enrolment count for the occurrence's
	// calendar year, counting plain enrolments and ticket-system password
	// assignments as equivalent units.
	YearlyCount int
	// EnrolmentLimit is the project's yearly cap per child.
	EnrolmentLimit int
}

// Validate evaluates the enrolment rules in strict order; the first failing
// check wins. A nil return means the enrolment may be created.
func Validate(f Facts, now time.Time) error {
	if !f.EventPublished {
		return apperr.New(apperr.CodeEventNotPublished, "event is not published")
	}
	if !f.SameProject {
		return apperr.New(apperr.CodeIneligibleEnrolment, "child does not belong to the event's project")
	}
	if f.AlreadyInEvent {
		return apperr.New(apperr.CodeChildAlreadyJoined, "child already joined this event")
	}
	if f.AlreadyInGroup {
		return apperr.New(apperr.CodeChildAlreadyJoined, "child already joined an event of this event group")
	}
	if f.EffectiveCapacity != nil && f.EnrolmentCount >= *f.EffectiveCapacity {
		return apperr.New(apperr.CodeOccurrenceFull, "maximum enrolments created")
	}
	if f.OccurrenceTime.Before(now) {
		return apperr.New(apperr.CodePastOccurrence, "cannot join occurrence in the past")
	}
	if f.YearlyCount >= f.EnrolmentLimit {
		return apperr.New(apperr.CodeIneligibleEnrolment, "yearly enrolment limit has been reached")
	}
	return nil
}

// ValidateUnenrolment guards deletion: unenrolling from a past occurrence is
// not allowed.
func ValidateUnenrolment(occurrenceTime, now time.Time) error {
	if occurrenceTime.Before(now) {
		return apperr.New(apperr.CodePastEnrolment, "cannot unenrol from an occurrence in the past")
	}
	return nil
}
