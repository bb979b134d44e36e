package metrics

import "github.com/prometheus/client_golang/prometheus"

// Placement agrupa as métricas do wager-service. Ponteiro nil desliga a coleta.
type Placement struct {
	placed   *prometheus.CounterVec
	rejected *prometheus.CounterVec
	stake    prometheus.Histogram
	deposits prometheus.Counter
}

func NewPlacement(reg prometheus.Registerer) *Placement {
	m := &Placement{
		placed:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "wager_placed_total", Help: "apostas admitidas por tipo"}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "wager_rejected_total", Help: "apostas recusadas por motivo"}, []string{"reason"}),
		stake: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wager_stake_amount",
			Help:    "stake total das apostas admitidas",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}),
		deposits: prometheus.NewCounter(prometheus.CounterOpts{Name: "account_deposits_total", Help: "depósitos aplicados"}),
	}
	reg.MustRegister(m.placed, m.rejected, m.stake, m.deposits)
	return m
}

func (m *Placement) Placed(kind string, stake float64) {
	if m == nil {
		return
	}
	m.placed.WithLabelValues(kind).Inc()
	m.stake.Observe(stake)
}

func (m *Placement) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Placement) Deposited() {
	if m == nil {
		return
	}
	m.deposits.Inc()
}

// Settlement agrupa as métricas de feed, fila e liquidação
type Settlement struct {
	feed        *prometheus.CounterVec
	jobs        *prometheus.CounterVec
	wagers      *prometheus.CounterVec
	corrupt     prometheus.Counter
	runs        *prometheus.CounterVec
	queueDepth  *prometheus.GaugeVec
	healthScore prometheus.Gauge
}

func NewSettlement(reg prometheus.Registerer) *Settlement {
	m := &Settlement{
		feed:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_feed_messages_total", Help: "mensagens do feed por estágio"}, []string{"stage"}),
		jobs:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_jobs_total", Help: "jobs processados por tipo e resultado"}, []string{"type", "result"}),
		wagers:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_wagers_total", Help: "mudanças de status de apostas"}, []string{"status"}),
		corrupt:     prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_corrupt_wagers_total", Help: "apostas isoladas por payload inválido"}),
		runs:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_runs_total", Help: "rodadas de liquidação"}, []string{"result"}),
		queueDepth:  prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "settlement_queue_depth", Help: "jobs por estado"}, []string{"state"}),
		healthScore: prometheus.NewGauge(prometheus.GaugeOpts{Name: "settlement_health_score", Help: "0-100"}),
	}
	reg.MustRegister(m.feed, m.jobs, m.wagers, m.corrupt, m.runs, m.queueDepth, m.healthScore)
	return m
}

func (m *Settlement) Feed(stage string) {
	if m == nil {
		return
	}
	m.feed.WithLabelValues(stage).Inc()
}

func (m *Settlement) Job(typ, result string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(typ, result).Inc()
}

func (m *Settlement) WagerSettled(status string) {
	if m == nil {
		return
	}
	m.wagers.WithLabelValues(status).Inc()
}

func (m *Settlement) CorruptWager() {
	if m == nil {
		return
	}
	m.corrupt.Inc()
}

func (m *Settlement) Run(result string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
}

// Health exporta profundidade da fila e score
func (m *Settlement) Health(score int, depth map[string]int64) {
	if m == nil {
		return
	}
	m.healthScore.Set(float64(score))
	for state, n := range depth {
		m.queueDepth.WithLabelValues(state).Set(float64(n))
	}
}
