package contract

import (
	"errors"
	"math"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"okinoko_moloch/sdk"
)

type daoMetrics struct {
	calls         *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	events        *prometheus.CounterVec
	shareSupply   prometheus.Gauge
	lootSupply    prometheus.Gauge
	seatsOccupied prometheus.Gauge
	proposals     prometheus.Counter
	votes         prometheus.Counter
}

func newDaoMetrics(reg prometheus.Registerer, self sdk.Address) *daoMetrics {
	promautoFactory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"dao": self.String()}, reg))
	m := &daoMetrics{}
	m.calls = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "okinoko_dao_calls_total",
		Help: "entry point calls by operation and result",
	}, []string{"op", "result"})
	m.callDuration = promautoFactory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "okinoko_dao_call_duration_seconds",
		Help:    "entry point latency including commit",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"op"})
	m.events = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "okinoko_dao_events_total",
		Help: "committed domain events by type",
	}, []string{"type"})
	m.shareSupply = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "okinoko_dao_share_supply",
		Help: "total voting shares",
	})
	m.lootSupply = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "okinoko_dao_loot_supply",
		Help: "total non-voting loot",
	})
	m.seatsOccupied = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "okinoko_dao_seats_occupied",
		Help: "occupied seats of the top holder registry",
	})
	m.proposals = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "okinoko_dao_proposals_opened_total",
		Help: "number of proposals opened",
	})
	m.votes = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "okinoko_dao_votes_cast_total",
		Help: "number of votes cast",
	})
	return m
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrReentrancy):
		return "reentrancy"
	case errors.Is(err, ErrTimelocked):
		return "timelocked"
	case errors.Is(err, ErrExecutionFailed):
		return "execution_failed"
	default:
		return "error"
	}
}

func (m *daoMetrics) observeCall(op string, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, resultLabel(err)).Inc()
	m.callDuration.WithLabelValues(op).Observe(took.Seconds())
}

func (m *daoMetrics) observeEvent(typ string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(typ).Inc()
}

// gaugeValue squeezes an amount into a float gauge, saturating on huge values.
func gaugeValue(v *uint256.Int) float64 {
	if v.IsUint64() {
		return float64(v.Uint64())
	}
	return math.MaxFloat64
}

func (m *daoMetrics) setShareSupply(v *uint256.Int) {
	if m != nil {
		m.shareSupply.Set(gaugeValue(v))
	}
}

func (m *daoMetrics) setLootSupply(v *uint256.Int) {
	if m != nil {
		m.lootSupply.Set(gaugeValue(v))
	}
}

func (m *daoMetrics) setSeats(n uint) {
	if m != nil {
		m.seatsOccupied.Set(float64(n))
	}
}

func (m *daoMetrics) proposalOpened() {
	if m != nil {
		m.proposals.Inc()
	}
}

func (m *daoMetrics) voteCast() {
	if m != nil {
		m.votes.Inc()
	}
}
