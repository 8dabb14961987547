package model

import (
	"testing"
)

func intPtr(v int) *int { return &v }

func TestEffectiveCapacity(t *testing.T) {
	tests := []struct {
		name     string
		override *int
		event    *int
		want     *int
	}{
		{name: "override wins", override: intPtr(5), event: intPtr(10), want: intPtr(5)},
		{name: "zero override is a valid capacity", override: intPtr(0), event: intPtr(10), want: intPtr(0)},
		{name: "falls back to event capacity", override: nil, event: intPtr(10), want: intPtr(10)},
		{name: "uncapped when both nil", override: nil, event: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Occurrence{CapacityOverride: tt.override}
			e := &Event{CapacityPerOccurrence: tt.event}
			got := o.EffectiveCapacity(e)
			switch {
			case tt.want == nil && got != nil:
				t.Fatalf("EffectiveCapacity() = %d, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Fatalf("EffectiveCapacity() = %v, want %d", got, *tt.want)
			}
		})
	}
}

func TestRemainingCapacity(t *testing.T) {
	if got := RemainingCapacity(nil, 50); got != nil {
		t.Fatalf("RemainingCapacity(nil) = %d, want nil", *got)
	}
	if got := RemainingCapacity(intPtr(10), 3); got == nil || *got != 7 {
		t.Fatalf("RemainingCapacity(10, 3) = %v, want 7", got)
	}
	// Remaining never goes negative, even if overrides shrank capacity under
	// the live count.
	if got := RemainingCapacity(intPtr(2), 5); got == nil || *got != 0 {
		t.Fatalf("RemainingCapacity(2, 5) = %v, want 0", got)
	}
	// Zero override means zero remaining regardless of event capacity.
	o := &Occurrence{CapacityOverride: intPtr(0)}
	e := &Event{CapacityPerOccurrence: intPtr(10)}
	if got := RemainingCapacity(o.EffectiveCapacity(e), 0); got == nil || *got != 0 {
		t.Fatalf("RemainingCapacity(override 0) = %v, want 0", got)
	}
}

func TestResolveTicketSystem(t *testing.T) {
	internal := &Event{TicketSystem: TicketSystemInternal, CapacityPerOccurrence: intPtr(8)}
	info := internal.ResolveTicketSystem()
	if info == nil || info.Internal == nil || info.Ticketmaster != nil {
		t.Fatalf("ResolveTicketSystem(internal) = %+v, want internal variant", info)
	}
	if info.Internal.CapacityPerOccurrence != 8 {
		t.Fatalf("capacity = %d, want 8", info.Internal.CapacityPerOccurrence)
	}

	broken := &Event{TicketSystem: TicketSystemInternal}
	if broken.ResolveTicketSystem() != nil {
		t.Fatal("ResolveTicketSystem(internal without capacity) should be nil")
	}

	tm := &Event{TicketSystem: TicketSystemTicketmaster}
	info = tm.ResolveTicketSystem()
	if info == nil || info.Ticketmaster == nil || info.Internal != nil {
		t.Fatalf("ResolveTicketSystem(ticketmaster) = %+v, want ticketmaster variant", info)
	}

	unknown := &Event{TicketSystem: "eventbrite"}
	if unknown.ResolveTicketSystem() != nil {
		t.Fatal("ResolveTicketSystem(unknown) should be nil")
	}
}

func TestTicketSystemValid(t *testing.T) {
	if !TicketSystemInternal.Valid() || !TicketSystemTicketmaster.Valid() {
		t.Fatal("known ticket systems should be valid")
	}
	if TicketSystem("eventbrite").Valid() {
		t.Fatal("unknown ticket system should be invalid")
	}
}
