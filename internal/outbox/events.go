package outbox

import "time"

// Event types recorded by the repository and routed by the dispatcher.
const (
	EventActivityLogged    = "activity.logged"
	EventActivityUpdated   = "activity.updated"
	EventActivityDeleted   = "activity.deleted"
	EventActivitiesClaimed = "activities.claimed"
)

// Topics events are published to.
const (
	TopicActivityEvents  = "carbon_activity_events"
	TopicOwnershipEvents = "carbon_ownership_events"
)

// TopicForEvent routes an event type to its Kafka topic.
func TopicForEvent(eventType string) string {
	if eventType == EventActivitiesClaimed {
		return TopicOwnershipEvents
	}
	return TopicActivityEvents
}

// ActivityEvent is the payload for activity.logged and activity.updated.
// Session tokens are deliberately omitted; anonymous activities are
// published without an owner reference.
type ActivityEvent struct {
	ActivityID     string    `json:"activity_id"`
	UserID         string    `json:"user_id,omitempty"`
	ActivityType   string    `json:"activity_type"`
	Quantity       float64   `json:"quantity"`
	Region         string    `json:"region"`
	Unit           string    `json:"unit"`
	EmissionKg     float64   `json:"emission_kg"`
	EmissionSource string    `json:"emission_source"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ActivityDeleted is the payload for activity.deleted.
type ActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	DeletedAt  time.Time `json:"deleted_at"`
}

// ActivitiesClaimed is the payload for activities.claimed.
type ActivitiesClaimed struct {
	UserID       string    `json:"user_id"`
	ClaimedCount int64     `json:"claimed_count"`
	ClaimedAt    time.Time `json:"claimed_at"`
}
