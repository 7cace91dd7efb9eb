// internal/models/lifecycle_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []ListingStatus{
	StatusDraft,
	StatusPublished,
	StatusPaused,
	StatusSold,
	StatusArchived,
	StatusExpired,
	StatusReserved,
	StatusRejected,
}

var allActions = []OwnerAction{
	ActionPublish,
	ActionPause,
	ActionReactivate,
	ActionMarkSold,
	ActionArchive,
	ActionRestore,
}

func TestOwnerTransitionTable(t *testing.T) {
	cases := []struct {
		from   ListingStatus
		action OwnerAction
		to     ListingStatus
	}{
		{StatusDraft, ActionPublish, StatusPublished},
		{StatusDraft, ActionPause, StatusPaused},
		{StatusDraft, ActionArchive, StatusArchived},
		{StatusPublished, ActionPause, StatusPaused},
		{StatusPublished, ActionMarkSold, StatusSold},
		{StatusPublished, ActionArchive, StatusArchived},
		{StatusPaused, ActionReactivate, StatusPublished},
		{StatusPaused, ActionArchive, StatusArchived},
		{StatusExpired, ActionReactivate, StatusPublished},
		{StatusExpired, ActionArchive, StatusArchived},
		{StatusSold, ActionArchive, StatusArchived},
		{StatusReserved, ActionArchive, StatusArchived},
		{StatusArchived, ActionRestore, StatusDraft},
	}

	legal := make(map[ListingStatus]map[OwnerAction]bool)
	for _, tc := range cases {
		next, ok := NextStatus(tc.from, tc.action)
		assert.True(t, ok, "%s should permit %s", tc.from, tc.action)
		assert.Equal(t, tc.to, next, "%s + %s", tc.from, tc.action)

		if legal[tc.from] == nil {
			legal[tc.from] = make(map[OwnerAction]bool)
		}
		legal[tc.from][tc.action] = true
	}

	// Everything not listed above is illegal. In particular nothing leads out
	// of rejected for the owner, and nothing but archive leaves sold.
	for _, from := range allStatuses {
		for _, action := range allActions {
			if legal[from][action] {
				continue
			}
			_, ok := NextStatus(from, action)
			assert.False(t, ok, "%s must not permit %s", from, action)
		}
	}
}

func TestNextStatusIsDeterministic(t *testing.T) {
	for _, from := range allStatuses {
		for _, action := range allActions {
			first, okFirst := NextStatus(from, action)
			second, okSecond := NextStatus(from, action)
			assert.Equal(t, okFirst, okSecond)
			assert.Equal(t, first, second)
		}
	}
}

func TestLegalActionsOrderIsStable(t *testing.T) {
	assert.Equal(t,
		[]OwnerAction{ActionPublish, ActionPause, ActionArchive},
		LegalActions(StatusDraft))
	assert.Equal(t,
		[]OwnerAction{ActionPause, ActionMarkSold, ActionArchive},
		LegalActions(StatusPublished))
	assert.Equal(t,
		[]OwnerAction{ActionRestore},
		LegalActions(StatusArchived))
	assert.Nil(t, LegalActions(StatusRejected))
}

func TestKnownAction(t *testing.T) {
	for _, action := range allActions {
		assert.True(t, KnownAction(action), string(action))
	}
	assert.False(t, KnownAction("boost"))
	assert.False(t, KnownAction(""))
}
