package services

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	pubnub "github.com/pubnub/go"

	"accreditation-system/models"
	"accreditation-system/monitoring"
	"accreditation-system/utils"
)

// RoomChannel names the pub/sub topic scoping broadcasts to stations viewing
// one event.
func RoomChannel(eventID string) string {
	return "event-" + eventID
}

// Publisher sends one message to one channel, best effort.
type Publisher interface {
	Publish(channel string, message any) error
}

// PubNubPublisher publishes through PubNub behind a circuit breaker so a
// struggling channel degrades broadcasts instead of slowing mutations. After
// repeated failures the breaker holds off for retryDelay before probing.
type PubNubPublisher struct {
	pn      *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewPubNubPublisher(pn *pubnub.PubNub, retryDelay time.Duration) *PubNubPublisher {
	return &PubNubPublisher{
		pn:      pn,
		breaker: utils.NewCircuitBreakerWithCooldown("sync-publish", retryDelay),
	}
}

func (p *PubNubPublisher) Publish(channel string, message any) error {
	return p.breaker.Run(func() error {
		_, _, err := p.pn.Publish().
			Channel(channel).
			Message(message).
			Execute()
		return err
	})
}

// Hub broadcasts participant create/update events to the event's room.
// Delivery is at-most-once: publish failures are logged and counted, never
// propagated to the mutation path.
type Hub struct {
	publisher Publisher
}

func NewHub(publisher Publisher) *Hub {
	return &Hub{publisher: publisher}
}

func (h *Hub) PublishCreated(p models.Participant) {
	h.publish(models.SyncParticipantCreated, p)
}

func (h *Hub) PublishUpdated(p models.Participant) {
	h.publish(models.SyncParticipantUpdated, p)
}

func (h *Hub) publish(msgType string, p models.Participant) {
	msg := models.SyncMessage{
		Type:        msgType,
		EventID:     p.EventID,
		Participant: p,
	}

	if err := h.publisher.Publish(RoomChannel(p.EventID), msg); err != nil {
		slog.Warn("room broadcast dropped",
			"event_id", p.EventID,
			"type", msgType,
			"error", err,
		)
		monitoring.TrackSyncPublish(p.EventID, msgType, "dropped")
		return
	}
	monitoring.TrackSyncPublish(p.EventID, msgType, "sent")
}

// ConnState tracks the room subscription lifecycle as seen by a station.
type ConnState int

const (
	ConnConnected ConnState = iota
	ConnDisconnected
	ConnReconnected
)

// RoomFeed is a station's subscription to one room at a time.
type RoomFeed interface {
	Join(eventID string) error
	Leave(eventID string) error
	Messages() <-chan models.SyncMessage
	Status() <-chan ConnState
	Close()
}

// PubNubFeed adapts a PubNub listener into a RoomFeed. Reconnection is
// bounded linear retry configured on the PubNub client; messages missed
// while disconnected are not replayed, the station refetches instead.
type PubNubFeed struct {
	pn       *pubnub.PubNub
	listener *pubnub.Listener
	messages chan models.SyncMessage
	status   chan ConnState
	done     chan struct{}

	mu      sync.Mutex
	channel string
}

func NewPubNubFeed(pn *pubnub.PubNub) *PubNubFeed {
	f := &PubNubFeed{
		pn:       pn,
		listener: pubnub.NewListener(),
		messages: make(chan models.SyncMessage, 64),
		status:   make(chan ConnState, 8),
		done:     make(chan struct{}),
	}

	pn.AddListener(f.listener)
	go f.dispatch()

	return f
}

func (f *PubNubFeed) Join(eventID string) error {
	channel := RoomChannel(eventID)

	f.mu.Lock()
	f.channel = channel
	f.mu.Unlock()

	f.pn.Subscribe().
		Channels([]string{channel}).
		Execute()
	return nil
}

func (f *PubNubFeed) Leave(eventID string) error {
	channel := RoomChannel(eventID)

	// A leave may land after the station already joined another room. Clear
	// the dispatch filter only when it still points at the room being left.
	f.mu.Lock()
	if f.channel == channel {
		f.channel = ""
	}
	f.mu.Unlock()

	f.pn.Unsubscribe().
		Channels([]string{channel}).
		Execute()
	return nil
}

func (f *PubNubFeed) Messages() <-chan models.SyncMessage {
	return f.messages
}

func (f *PubNubFeed) Status() <-chan ConnState {
	return f.status
}

func (f *PubNubFeed) Close() {
	close(f.done)
	f.pn.RemoveListener(f.listener)
}

func (f *PubNubFeed) dispatch() {
	for {
		select {
		case <-f.done:
			return
		case message := <-f.listener.Message:
			f.mu.Lock()
			channel := f.channel
			f.mu.Unlock()

			// Room scoping: drop anything not addressed to the current room.
			if channel == "" || message.Channel != channel {
				continue
			}

			msg, err := decodeSyncMessage(message.Message)
			if err != nil {
				slog.Warn("undecodable room message", "channel", message.Channel, "error", err)
				continue
			}

			// At-most-once: drop instead of blocking a slow consumer.
			select {
			case f.messages <- msg:
			default:
			}
		case s := <-f.listener.Status:
			switch s.Category {
			case pubnub.PNConnectedCategory:
				f.pushStatus(ConnConnected)
			case pubnub.PNReconnectedCategory:
				f.pushStatus(ConnReconnected)
			case pubnub.PNDisconnectedCategory, pubnub.PNTimeoutCategory:
				f.pushStatus(ConnDisconnected)
			}
		case <-f.listener.Presence:
			// presence is not consumed, drained to keep the listener moving
		}
	}
}

func (f *PubNubFeed) pushStatus(state ConnState) {
	select {
	case f.status <- state:
	default:
	}
}

func decodeSyncMessage(raw any) (models.SyncMessage, error) {
	var msg models.SyncMessage

	data, err := json.Marshal(raw)
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	return msg, nil
}
