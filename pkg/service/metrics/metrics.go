package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what jobs, the dispatcher and the token cache report to.
type Recorder interface {
	RecordDispatch(result string, count int)
	RecordJobRun(job string, err error, elapsed time.Duration)
	RecordTokenRefresh(credential string, err error)
	RecordInbound(activityType string, status int)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordDispatch(string, int)                {}
func (Nop) RecordJobRun(string, error, time.Duration) {}
func (Nop) RecordTokenRefresh(string, error)          {}
func (Nop) RecordInbound(string, int)                 {}

var _ Recorder = Nop{}

// Collector is the Prometheus backed Recorder.
type Collector struct {
	dispatched   *prometheus.CounterVec
	jobRuns      *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	tokenRefresh *prometheus.CounterVec
	inbound      *prometheus.CounterVec
}

var _ Recorder = &Collector{}

// NewCollector creates the collector and registers it to reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendbot_notifications_total",
			Help: "Chat notifications by dispatch result",
		}, []string{"result"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendbot_job_runs_total",
			Help: "Scheduled job runs by job and result",
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attendbot_job_duration_seconds",
			Help:    "Scheduled job duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendbot_token_refresh_total",
			Help: "Access token refreshes by credential set and result",
		}, []string{"credential", "result"}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendbot_inbound_activities_total",
			Help: "Inbound bot activities by type and response status",
		}, []string{"type", "status"}),
	}

	reg.MustRegister(
		c.dispatched,
		c.jobRuns,
		c.jobDuration,
		c.tokenRefresh,
		c.inbound,
	)

	return c
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) RecordDispatch(result string, count int) {
	if count <= 0 {
		return
	}
	c.dispatched.WithLabelValues(result).Add(float64(count))
}

func (c *Collector) RecordJobRun(job string, err error, elapsed time.Duration) {
	c.jobRuns.WithLabelValues(job, resultLabel(err)).Inc()
	c.jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func (c *Collector) RecordTokenRefresh(credential string, err error) {
	c.tokenRefresh.WithLabelValues(credential, resultLabel(err)).Inc()
}

func (c *Collector) RecordInbound(activityType string, status int) {
	c.inbound.WithLabelValues(activityType, strconv.Itoa(status)).Inc()
}

// Handler returns the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
