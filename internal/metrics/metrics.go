package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BetsPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "betmarket_bets_placed_total",
		Help: "bets accepted and debited",
	})
	BetsCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "betmarket_bets_cancelled_total",
		Help: "bets refunded by their owner",
	})
	EventsSettled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betmarket_events_settled_total",
		Help: "events moved to a terminal state",
	}, []string{"result"}) // "resolved" | "cancelled"
	SettlementFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "betmarket_settlement_failures_total",
		Help: "settlement transactions rolled back",
	})
	TransactionsReviewed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betmarket_transactions_reviewed_total",
		Help: "deposit/withdrawal requests decided by an admin",
	}, []string{"type", "decision"})
)

func init() {
	prometheus.MustRegister(BetsPlaced, BetsCancelled, EventsSettled, SettlementFailures, TransactionsReviewed)
}

type HealthFunc func(ctx context.Context) error

// StartServer runs a small HTTP server exposing only /metrics and /healthz,
// separate from the public API port.
func StartServer(port string, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
