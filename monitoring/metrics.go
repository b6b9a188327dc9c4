package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	importRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Imported spreadsheet rows per event and outcome",
		},
		[]string{"event_id", "outcome"},
	)

	accreditations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditations_total",
			Help: "Accreditation attempts per event and result",
		},
		[]string{"event_id", "result"},
	)

	paymentOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_operations_total",
			Help: "Payment mutations per operation and status",
		},
		[]string{"operation", "status"},
	)

	syncPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_publishes_total",
			Help: "Room broadcasts per event and message type",
		},
		[]string{"event_id", "type", "status"},
	)

	activeStations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_stations_total",
			Help: "Stations currently joined to a room",
		},
	)

	accreditedCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accredited_participants_total",
			Help: "Accredited participants per event",
		},
		[]string{"event_id"},
	)
)

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	// Start metrics collection
	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.collectAccreditedCounts(context.Background())
	}
}

// collectAccreditedCounts mirrors the per-event accredited counters kept in
// redis by the record hooks.
func (m *Monitor) collectAccreditedCounts(ctx context.Context) {
	keys, _ := m.redis.Keys(ctx, "accredited:count:*").Result()
	for _, key := range keys {
		eventID := key[len("accredited:count:"):]
		count, err := m.redis.Get(ctx, key).Int64()
		if err != nil {
			continue
		}
		accreditedCount.WithLabelValues(eventID).Set(float64(count))
	}
}

// ForgetEvent drops the exported per-event series once the event record is
// deleted, so the gauge does not keep serving its last value.
func ForgetEvent(eventID string) {
	accreditedCount.DeleteLabelValues(eventID)
}

func TrackImportRow(eventID, outcome string) {
	importRows.WithLabelValues(eventID, outcome).Inc()
}

func TrackAccreditation(eventID, result string) {
	accreditations.WithLabelValues(eventID, result).Inc()
}

func TrackPaymentOperation(operation, status string) {
	paymentOperations.WithLabelValues(operation, status).Inc()
}

func TrackSyncPublish(eventID, msgType, status string) {
	syncPublishes.WithLabelValues(eventID, msgType, status).Inc()
}

func StationJoined() {
	activeStations.Inc()
}

func StationLeft() {
	activeStations.Dec()
}
