// Package metrics constructs the metrics the application will track.
package metrics

import (
	"context"
	"time"

	"github.com/iprotocol/blockchain/foundation/blockchain/database"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "node"

// Ledger represents the read access the metrics need to report on the chain.
type Ledger interface {
	RetrieveLatestBlock() database.Block
	RetrieveMempool() []database.Tx
}

// Metrics represents the set of metrics we gather. These fields are safe to
// be accessed concurrently.
type Metrics struct {
	requests       prometheus.Counter
	errors         prometheus.Counter
	panics         prometheus.Counter
	submissions    *prometheus.CounterVec
	blocksMined    prometheus.Counter
	miningDuration prometheus.Histogram
	validations    *prometheus.CounterVec
}

// New constructs the metrics and registers them with the registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Number of http requests handled.",
		}),
		errors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Number of http requests that failed.",
		}),
		panics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panics_total",
			Help:      "Number of http requests that panicked.",
		}),
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_submitted_total",
			Help:      "Number of submitted transactions by result.",
		}, []string{"result"}),
		blocksMined: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_mined_total",
			Help:      "Number of blocks mined on request.",
		}),
		miningDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mining_duration_seconds",
			Help:      "Time spent searching for a block nonce.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_validations_total",
			Help:      "Number of full chain validations by result.",
		}, []string{"result"}),
	}
}

// RegisterLedger adds gauges that read the chain height and pending count
// every time the metrics are gathered.
func RegisterLedger(reg prometheus.Registerer, ledger Ledger) {
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chain_height",
		Help:      "Height of the latest block.",
	}, func() float64 {
		return float64(ledger.RetrieveLatestBlock().Header.Height)
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_transactions",
		Help:      "Number of transactions waiting to be mined.",
	}, func() float64 {
		return float64(len(ledger.RetrieveMempool()))
	})
}

// =============================================================================

// TxSubmitted records the result of a transaction submission.
func (m *Metrics) TxSubmitted(err error) {
	m.submissions.WithLabelValues(result(err)).Inc()
}

// BlockMined records a mined block and how long the search took.
func (m *Metrics) BlockMined(duration time.Duration) {
	m.blocksMined.Inc()
	m.miningDuration.Observe(duration.Seconds())
}

// ChainValidated records the result of a full chain validation.
func (m *Metrics) ChainValidated(err error) {
	m.validations.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "rejected"
	}
	return "accepted"
}

// =============================================================================

// ctxKey represents the type of value for the context key.
type ctxKey int

// key is how metric values are stored/retrieved.
const key ctxKey = 1

// Set sets the metrics data into the context.
func Set(ctx context.Context, m *Metrics) context.Context {
	return context.WithValue(ctx, key, m)
}

// AddRequests increments the request metric by 1.
func AddRequests(ctx context.Context) {
	if v, ok := ctx.Value(key).(*Metrics); ok {
		v.requests.Inc()
	}
}

// AddErrors increments the errors metric by 1.
func AddErrors(ctx context.Context) {
	if v, ok := ctx.Value(key).(*Metrics); ok {
		v.errors.Inc()
	}
}

// AddPanics increments the panics metric by 1.
func AddPanics(ctx context.Context) {
	if v, ok := ctx.Value(key).(*Metrics); ok {
		v.panics.Inc()
	}
}
