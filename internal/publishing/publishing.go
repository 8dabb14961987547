// Package publishing implements the draft-to-published state machine
// preconditions for events and event groups.
//
// The checks are pure: the repository loads the relevant rows inside its
// transaction and asks this package whether the transition is allowed, so no
// mutation ever happens on a failed precondition.
package publishing

import (
	"github.com/culturekids/enrolment-service/internal/apperr"
	"github.com/culturekids/enrolment-service/internal/model"
)

// CheckEventPublishable validates the Draft -> Published transition for one
// event. occurrences must be every occurrence of the event and
// hasDefaultTranslation whether text content exists in the default language.
func CheckEventPublishable(event *model.Event, occurrences []model.Occurrence, hasDefaultTranslation bool) error {
	if event.Published() {
		return apperr.New(apperr.CodeEventAlreadyPublished, "event is already published")
	}

	info := event.ResolveTicketSystem()
	if info == nil {
		return apperr.New(apperr.CodeDataValidation,
			"internal ticket system event must have capacity per occurrence")
	}
	if info.Ticketmaster != nil {
		for i := range occurrences {
			if occurrences[i].TicketSystemURL == "" {
				return apperr.New(apperr.CodeTicketSystemURLMissing,
					"all of the event's occurrences must have a ticket system URL")
			}
		}
	}

	if !hasDefaultTranslation {
		return apperr.New(apperr.CodeMissingDefaultTranslation,
			"event must have a default language translation")
	}
	return nil
}

// UnpublishedMembers returns the group's member events that are still drafts.
func UnpublishedMembers(members []model.Event) []model.Event {
	var out []model.Event
	for _, m := range members {
		if !m.Published() {
			out = append(out, m)
		}
	}
	return out
}

// CheckGroupPublishable validates (re)publication of an event group. members
// must be every event of the group. Already-published members never block the
// check, which is what allows incremental republishing.
func CheckGroupPublishable(group *model.EventGroup, members []model.Event) error {
	unpublished := UnpublishedMembers(members)

	if group.Published() && len(unpublished) == 0 {
		return apperr.New(apperr.CodeEventGroupAlreadyPublished, "event group is already published")
	}
	for i := range unpublished {
		if !unpublished[i].ReadyForEventGroupPublishing {
			return apperr.New(apperr.CodeEventGroupNotReadyForPublishing,
				"all events are not ready for event group publishing")
		}
	}
	return nil
}
