package enrolment

import (
	"errors"
	"testing"
	"time"

	"github.com/culturekids/enrolment-service/internal/apperr"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

// okFacts returns facts that pass every check.
func okFacts() Facts {
	return Facts{
		EventPublished:    true,
		SameProject:       true,
		EffectiveCapacity: intPtr(10),
		EnrolmentCount:    3,
		OccurrenceTime:    now.Add(24 * time.Hour),
		YearlyCount:       0,
		EnrolmentLimit:    2,
	}
}

func TestValidateAllowsValidEnrolment(t *testing.T) {
	if err := Validate(okFacts(), now); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRuleOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Facts)
		want   apperr.Code
	}{
		{
			name:   "unpublished event",
			mutate: func(f *Facts) { f.EventPublished = false },
			want:   apperr.CodeEventNotPublished,
		},
		{
			name:   "wrong project",
			mutate: func(f *Facts) { f.SameProject = false },
			want:   apperr.CodeIneligibleEnrolment,
		},
		{
			name:   "already joined event",
			mutate: func(f *Facts) { f.AlreadyInEvent = true },
			want:   apperr.CodeChildAlreadyJoined,
		},
		{
			name:   "already joined event group",
			mutate: func(f *Facts) { f.AlreadyInGroup = true },
			want:   apperr.CodeChildAlreadyJoined,
		},
		{
			name:   "occurrence full",
			mutate: func(f *Facts) { f.EnrolmentCount = 10 },
			want:   apperr.CodeOccurrenceFull,
		},
		{
			name:   "occurrence over capacity",
			mutate: func(f *Facts) { f.EnrolmentCount = 11 },
			want:   apperr.CodeOccurrenceFull,
		},
		{
			name:   "zero capacity override",
			mutate: func(f *Facts) { f.EffectiveCapacity = intPtr(0); f.EnrolmentCount = 0 },
			want:   apperr.CodeOccurrenceFull,
		},
		{
			name:   "past occurrence",
			mutate: func(f *Facts) { f.OccurrenceTime = now.Add(-time.Minute) },
			want:   apperr.CodePastOccurrence,
		},
		{
			name:   "yearly limit reached",
			mutate: func(f *Facts) { f.YearlyCount = 2 },
			want:   apperr.CodeIneligibleEnrolment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := okFacts()
			tt.mutate(&facts)
			err := Validate(facts, now)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if got := apperr.CodeOf(err); got != tt.want {
				t.Fatalf("Validate() code = %s, want %s", got, tt.want)
			}
		})
	}
}

// The first failing check must win: an unpublished event on a full, past
// occurrence reports EventNotPublished, not the later rules.
func TestValidateOrder(t *testing.T) {
	facts := okFacts()
	facts.EventPublished = false
	facts.SameProject = false
	facts.AlreadyInEvent = true
	facts.EnrolmentCount = 99
	facts.OccurrenceTime = now.Add(-time.Hour)
	facts.YearlyCount = 99

	err := Validate(facts, now)
	if got := apperr.CodeOf(err); got != apperr.CodeEventNotPublished {
		t.Fatalf("Validate() code = %s, want %s", got, apperr.CodeEventNotPublished)
	}

	facts.EventPublished = true
	err = Validate(facts, now)
	if got := apperr.CodeOf(err); got != apperr.CodeIneligibleEnrolment {
		t.Fatalf("Validate() code = %s, want %s", got, apperr.CodeIneligibleEnrolment)
	}

	facts.SameProject = true
	err = Validate(facts, now)
	if got := apperr.CodeOf(err); got != apperr.CodeChildAlreadyJoined {
		t.Fatalf("Validate() code = %s, want %s", got, apperr.CodeChildAlreadyJoined)
	}

	facts.AlreadyInEvent = true // still joined; capacity must not mask it
	facts.AlreadyInGroup = false
	err = Validate(facts, now)
	if got := apperr.CodeOf(err); got != apperr.CodeChildAlreadyJoined {
		t.Fatalf("Validate() code = %s, want %s", got, apperr.CodeChildAlreadyJoined)
	}
}

func TestValidateUncappedCapacity(t *testing.T) {
	facts := okFacts()
	facts.EffectiveCapacity = nil
	facts.EnrolmentCount = 100000
	if err := Validate(facts, now); err != nil {
		t.Fatalf("Validate() with nil capacity = %v, want nil", err)
	}
}

// Scenario: capacity 5, override nil, five existing enrolments.
func TestValidateSixthChildRejected(t *testing.T) {
	facts := okFacts()
	facts.EffectiveCapacity = intPtr(5)
	facts.EnrolmentCount = 5
	err := Validate(facts, now)
	if !errors.Is(err, apperr.New(apperr.CodeOccurrenceFull, "")) {
		t.Fatalf("Validate() = %v, want OccurrenceFull", err)
	}
}

func TestValidateUnenrolment(t *testing.T) {
	if err := ValidateUnenrolment(now.Add(time.Hour), now); err != nil {
		t.Fatalf("ValidateUnenrolment(future) = %v, want nil", err)
	}
	err := ValidateUnenrolment(now.Add(-time.Hour), now)
	if got := apperr.CodeOf(err); got != apperr.CodePastEnrolment {
		t.Fatalf("ValidateUnenrolment(past) code = %s, want %s", got, apperr.CodePastEnrolment)
	}
}
