package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/platform/envutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	aggregateOps       *CounterVec
	aggregateLatency   *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec

	enrollments  *CounterVec
	payments     *CounterVec
	revenue      *CounterVec
	webhooks     *CounterVec
	certificates *CounterVec
	events       *CounterVec
	emails       *CounterVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	n := envutil.Int("METRICS_SCRAPE_INTERVAL_SECONDS", 10)
	if n <= 0 {
		n = 10
	}
	return time.Duration(n) * time.Second
}

// Init returns the process metrics, or nil when METRICS_ENABLED is off.
// Every Metrics method is a no-op on nil.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// New builds an unregistered metrics set.
func New() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("cm_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"cm_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		apiInflight: NewGauge("cm_api_inflight_requests", "In-flight API requests."),

		aggregateOps: NewCounterVec("cm_aggregate_operations_total", "Aggregate write operations by outcome.", []string{"operation", "status"}),
		aggregateLatency: NewHistogramVec(
			"cm_aggregate_operation_duration_seconds",
			"Aggregate write latency including transaction retries.",
			[]string{"operation"},
			nil,
		),
		aggregateConflicts: NewCounterVec("cm_aggregate_conflicts_total", "Aggregate writes lost to a concurrent writer.", []string{"operation"}),
		aggregateRetries:   NewCounterVec("cm_aggregate_retryable_total", "Aggregate writes that failed with a retryable error.", []string{"operation"}),

		enrollments:  NewCounterVec("cm_enrollments_total", "Enrollments created by source.", []string{"source"}),
		payments:     NewCounterVec("cm_payment_events_total", "Payment lifecycle events.", []string{"event"}),
		revenue:      NewCounterVec("cm_revenue_total", "Settled payment amount by currency.", []string{"currency"}),
		webhooks:     NewCounterVec("cm_payment_webhooks_total", "Gateway notifications by transaction status and outcome.", []string{"transaction_status", "outcome"}),
		certificates: NewCounterVec("cm_certificates_total", "Certificate requests by outcome.", []string{"outcome"}),
		events:       NewCounterVec("cm_domain_events_published_total", "Domain events published by topic and outcome.", []string{"topic", "outcome"}),
		emails:       NewCounterVec("cm_emails_total", "Transactional emails by template and outcome.", []string{"template", "outcome"}),

		pgStats:   NewGaugeVec("cm_db_pool", "Database pool statistics.", []string{"stat"}),
		redisUp:   NewGauge("cm_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: NewGauge("cm_redis_ping_seconds", "Latest Redis ping latency."),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.aggregateOps, m.aggregateLatency, m.aggregateConflicts, m.aggregateRetries,
		m.enrollments, m.payments, m.revenue, m.webhooks, m.certificates, m.events, m.emails,
		m.pgStats, m.redisUp, m.redisPing,
	}
	for _, pw := range all {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

func (m *Metrics) ObserveAggregateOperation(operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Inc(operation, status)
	m.aggregateLatency.Observe(dur.Seconds(), operation)
}

func (m *Metrics) IncAggregateConflict(operation string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(operation)
}

func (m *Metrics) IncAggregateRetry(operation string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(operation)
}

// IncEnrollment counts a new enrollment; source is "free" or "payment".
func (m *Metrics) IncEnrollment(source string) {
	if m == nil {
		return
	}
	m.enrollments.Inc(source)
}

func (m *Metrics) IncPaymentEvent(event string) {
	if m == nil {
		return
	}
	m.payments.Inc(event)
}

func (m *Metrics) AddRevenue(currency string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.revenue.Add(amount, strings.ToLower(currency))
}

func (m *Metrics) IncWebhook(transactionStatus, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.Inc(transactionStatus, outcome)
}

func (m *Metrics) IncCertificate(outcome string) {
	if m == nil {
		return
	}
	m.certificates.Inc(outcome)
}

func (m *Metrics) IncEventPublished(topic, outcome string) {
	if m == nil {
		return
	}
	m.events.Inc(topic, outcome)
}

func (m *Metrics) IncEmail(template, outcome string) {
	if m == nil {
		return
	}
	m.emails.Inc(template, outcome)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
