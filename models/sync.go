package models

// Room-scoped broadcast envelope. Delivery is at-most-once; consumers apply
// a whole-record replace by id, never a partial patch.

const (
	SyncParticipantCreated = "participantCreated"
	SyncParticipantUpdated = "participantUpdated"
)

type SyncMessage struct {
	Type        string      `json:"type"`
	EventID     string      `json:"event_id"`
	Participant Participant `json:"participant"`
}
