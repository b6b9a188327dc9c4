package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	pubnub "github.com/pubnub/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accreditation-system/models"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []models.SyncMessage
	channels []string
	err      error
}

func (f *fakePublisher) Publish(channel string, message any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, message.(models.SyncMessage))
	return nil
}

func TestRoomChannel(t *testing.T) {
	assert.Equal(t, "event-ev1", RoomChannel("ev1"))
}

func TestHubPublishesToEventRoom(t *testing.T) {
	pub := &fakePublisher{}
	hub := NewHub(pub)

	p := models.Participant{ID: "p1", EventID: "ev1", Name: "Ana"}
	hub.PublishCreated(p)
	hub.PublishUpdated(p)

	require.Len(t, pub.messages, 2)
	assert.Equal(t, []string{"event-ev1", "event-ev1"}, pub.channels)
	assert.Equal(t, models.SyncParticipantCreated, pub.messages[0].Type)
	assert.Equal(t, models.SyncParticipantUpdated, pub.messages[1].Type)
	assert.Equal(t, "ev1", pub.messages[0].EventID)
	assert.Equal(t, "p1", pub.messages[0].Participant.ID)
}

func TestHubSwallowsPublishFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel down")}
	hub := NewHub(pub)

	// Broadcasts are best effort; the mutation path must never see this.
	assert.NotPanics(t, func() {
		hub.PublishUpdated(models.Participant{ID: "p1", EventID: "ev1"})
	})
}

func TestFeedSurvivesStaleLeaveOfPreviousRoom(t *testing.T) {
	feed := NewPubNubFeed(pubnub.NewPubNub(pubnub.NewConfig()))
	defer feed.Close()

	require.NoError(t, feed.Join("new"))

	// Leaving the previous room runs asynchronously on a room switch and may
	// land after the new join. It must not clear the current subscription.
	require.NoError(t, feed.Leave("old"))

	feed.listener.Message <- &pubnub.PNMessage{
		Channel: RoomChannel("new"),
		Message: map[string]any{
			"type":     models.SyncParticipantUpdated,
			"event_id": "new",
			"participant": map[string]any{
				"id":       "p1",
				"event_id": "new",
			},
		},
	}

	select {
	case msg := <-feed.Messages():
		assert.Equal(t, "p1", msg.Participant.ID)
	case <-time.After(time.Second):
		t.Fatal("broadcast for the current room was dropped")
	}

	// Leaving the room actually joined still silences the feed.
	require.NoError(t, feed.Leave("new"))
	feed.listener.Message <- &pubnub.PNMessage{
		Channel: RoomChannel("new"),
		Message: map[string]any{"type": models.SyncParticipantUpdated, "event_id": "new"},
	}
	select {
	case <-feed.Messages():
		t.Fatal("message delivered after leaving the room")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDecodeSyncMessage(t *testing.T) {
	raw := map[string]any{
		"type":     "participantUpdated",
		"event_id": "ev1",
		"participant": map[string]any{
			"id":         "p1",
			"event_id":   "ev1",
			"accredited": true,
		},
	}

	msg, err := decodeSyncMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, models.SyncParticipantUpdated, msg.Type)
	assert.Equal(t, "ev1", msg.EventID)
	assert.True(t, msg.Participant.Accredited)
}

func TestDecodeSyncMessageRejectsNonObjects(t *testing.T) {
	_, err := decodeSyncMessage("just a string")
	assert.Error(t, err)
}
