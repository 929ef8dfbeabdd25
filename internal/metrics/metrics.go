package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "lobby"

// Recorder exports coordinator activity as Prometheus metrics.
type Recorder struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	sessionsLive      prometheus.Gauge
	sessionsCreated   *prometheus.CounterVec
	sessionsEvicted   prometheus.Counter
	memberships       *prometheus.CounterVec
	nameRequests      prometheus.Counter
	broadcastsTotal   prometheus.Counter
	deliveriesTotal   *prometheus.CounterVec
}

// New registers the metrics with reg. A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Recorder{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open client connections",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted client connections",
		}),
		sessionsLive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_live",
			Help:      "Number of sessions held in memory",
		}),
		sessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created, by origin (create or join_recovery)",
		}, []string{"origin"}),
		sessionsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Idle sessions removed by the reaper",
		}),
		memberships: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "membership_changes_total",
			Help:      "Membership operations by kind (join, rejoin, leave)",
		}, []string{"kind"}),
		nameRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "name_requests_total",
			Help:      "Actions parked until a display name was supplied",
		}),
		broadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Session snapshots fanned out",
		}),
		deliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_deliveries_total",
			Help:      "Per-connection snapshot deliveries by result (delivered or superseded by a newer one before it was written)",
		}, []string{"result"}),
	}
}

func (r *Recorder) ConnectionOpened() {
	r.connectionsActive.Inc()
	r.connectionsTotal.Inc()
}

func (r *Recorder) ConnectionClosed() {
	r.connectionsActive.Dec()
}

func (r *Recorder) SessionCreated(recovered bool) {
	origin := "create"
	if recovered {
		origin = "join_recovery"
	}
	r.sessionsCreated.WithLabelValues(origin).Inc()
}

func (r *Recorder) MemberJoined()   { r.memberships.WithLabelValues("join").Inc() }
func (r *Recorder) MemberRejoined() { r.memberships.WithLabelValues("rejoin").Inc() }
func (r *Recorder) MemberLeft()     { r.memberships.WithLabelValues("leave").Inc() }
func (r *Recorder) NameRequested()  { r.nameRequests.Inc() }

func (r *Recorder) Broadcast(delivered, superseded int) {
	r.broadcastsTotal.Inc()
	r.deliveriesTotal.WithLabelValues("delivered").Add(float64(delivered))
	r.deliveriesTotal.WithLabelValues("superseded").Add(float64(superseded))
}

func (r *Recorder) SessionsEvicted(n int) {
	r.sessionsEvicted.Add(float64(n))
}

func (r *Recorder) SessionsLive(n int) {
	r.sessionsLive.Set(float64(n))
}
