package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session metrics
	ActiveActivitySessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "guildbot_active_activity_sessions",
			Help: "Number of running activity sessions",
		},
	)

	ActiveVoiceSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "guildbot_active_voice_sessions",
			Help: "Number of running voice sessions",
		},
	)

	// Ledger metrics
	ReconcileTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "guildbot_reconcile_ticks_total",
			Help: "Total reconcile passes over running sessions",
		},
	)

	LedgerSaves = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "guildbot_ledger_saves_total",
			Help: "Successful ledger saves",
		},
	)

	LedgerSaveFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "guildbot_ledger_save_failures_total",
			Help: "Failed ledger saves",
		},
	)

	Rollovers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guildbot_period_rollovers_total",
			Help: "Period rollovers performed",
		},
		[]string{"trigger"},
	)

	// Bot metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guildbot_commands_total",
			Help: "Commands handled",
		},
		[]string{"command"},
	)

	CountingBreaks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "guildbot_counting_breaks_total",
			Help: "Times the counting game was reset by a wrong number",
		},
	)

	ErrorsReported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guildbot_errors_reported_total",
			Help: "Handler errors and panics reported",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(
		ActiveActivitySessions,
		ActiveVoiceSessions,
		ReconcileTicks,
		LedgerSaves,
		LedgerSaveFailures,
		Rollovers,
		CommandsTotal,
		CountingBreaks,
		ErrorsReported,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start serves metrics in the background
func (s *Server) Start() {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
