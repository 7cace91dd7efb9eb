// internal/models/lifecycle.go
package models

type OwnerAction string

const (
	ActionPublish    OwnerAction = "publish"
	ActionPause      OwnerAction = "pause"
	ActionReactivate OwnerAction = "reactivate"
	ActionMarkSold   OwnerAction = "mark_sold"
	ActionArchive    OwnerAction = "archive"
	ActionRestore    OwnerAction = "restore"
)

// ownerTransitions is the single source of truth for owner-initiated status
// changes. Moderation approve/reject acts outside this table.
var ownerTransitions = map[ListingStatus]map[OwnerAction]ListingStatus{
	StatusDraft: {
		ActionPublish: StatusPublished,
		ActionPause:   StatusPaused,
		ActionArchive: StatusArchived,
	},
	StatusPublished: {
		ActionPause:    StatusPaused,
		ActionMarkSold: StatusSold,
		ActionArchive:  StatusArchived,
	},
	StatusPaused: {
		ActionReactivate: StatusPublished,
		ActionArchive:    StatusArchived,
	},
	StatusExpired: {
		ActionReactivate: StatusPublished,
		ActionArchive:    StatusArchived,
	},
	StatusSold: {
		ActionArchive: StatusArchived,
	},
	StatusReserved: {
		ActionArchive: StatusArchived,
	},
	StatusArchived: {
		ActionRestore: StatusDraft,
	},
}

// actionOrder fixes the order LegalActions reports, so menus render stably.
var actionOrder = []OwnerAction{
	ActionPublish,
	ActionReactivate,
	ActionPause,
	ActionMarkSold,
	ActionRestore,
	ActionArchive,
}

// NextStatus reports the status an owner action leads to from the given
// status, and whether the transition is legal at all.
func NextStatus(from ListingStatus, action OwnerAction) (ListingStatus, bool) {
	next, ok := ownerTransitions[from][action]
	return next, ok
}

// LegalActions lists the owner actions available in the given status, in a
// deterministic order.
func LegalActions(from ListingStatus) []OwnerAction {
	row := ownerTransitions[from]
	if len(row) == 0 {
		return nil
	}
	actions := make([]OwnerAction, 0, len(row))
	for _, action := range actionOrder {
		if _, ok := row[action]; ok {
			actions = append(actions, action)
		}
	}
	return actions
}

// KnownAction reports whether the action name exists in the transition table
// for any status.
func KnownAction(action OwnerAction) bool {
	for _, row := range ownerTransitions {
		if _, ok := row[action]; ok {
			return true
		}
	}
	return false
}
