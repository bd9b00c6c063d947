package store

import "deskflow/dispatch-service/internal/models"

const (
	ActionStart    = "start"
	ActionComplete = "complete"
	ActionNoShow   = "no_show"
)

// Status transitions are one-directional: completed and no_show are
// terminal, and nothing ever returns a ticket to waiting.
var transitionMap = map[string][]string{
	ActionStart:    {models.StatusWaiting},
	ActionComplete: {models.StatusInService},
	ActionNoShow:   {models.StatusWaiting, models.StatusInService},
}

var actionTarget = map[string]string{
	ActionStart:    models.StatusInService,
	ActionComplete: models.StatusCompleted,
	ActionNoShow:   models.StatusNoShow,
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// TargetStatus reports the status an action transitions a ticket into.
func TargetStatus(action string) (string, bool) {
	status, ok := actionTarget[action]
	return status, ok
}
