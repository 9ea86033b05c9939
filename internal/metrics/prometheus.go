package metrics

import (
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Scheduler metrics
	jobsScheduledTotal      prometheus.Counter
	scheduleRejectionsTotal *prometheus.CounterVec
	jobOutcomesTotal        *prometheus.CounterVec
	activeJobs              prometheus.Gauge
	wakeDrift               prometheus.Histogram

	// Dispatcher metrics
	commandsTotal        *prometheus.CounterVec
	parseRejectionsTotal *prometheus.CounterVec

	// Recorder metrics
	outcomesRecordedTotal *prometheus.CounterVec
	recordErrorsTotal     prometheus.Counter
	eventsInFlight        prometheus.Gauge

	// EventBus metrics
	bufferSize       prometheus.Gauge
	bufferCapacity   prometheus.Gauge
	bufferSaturation prometheus.Gauge
	emitErrorsTotal  prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSchedulerMetrics(reg)
	s.initDispatcherMetrics(reg)
	s.initRecorderMetrics(reg)
	s.initEventBusMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.jobsScheduledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyremind_scheduler_jobs_scheduled_total",
		Help: "Total number of reminder jobs accepted by the scheduler.",
	})
	s.scheduleRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyremind_scheduler_rejections_total",
		Help: "Total number of schedule requests rejected, by reason.",
	}, []string{"reason"})
	s.jobOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyremind_scheduler_job_outcomes_total",
		Help: "Total number of terminal job outcomes.",
	}, []string{"outcome"})
	s.activeJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyremind_scheduler_active_jobs",
		Help: "Number of reminder jobs currently armed.",
	})
	s.wakeDrift = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyremind_scheduler_wake_drift_seconds",
		Help:    "Difference between actual wake time and target instant in seconds.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	s.register(reg, s.jobsScheduledTotal, "easyremind_scheduler_jobs_scheduled_total")
	s.register(reg, s.scheduleRejectionsTotal, "easyremind_scheduler_rejections_total")
	s.register(reg, s.jobOutcomesTotal, "easyremind_scheduler_job_outcomes_total")
	s.register(reg, s.activeJobs, "easyremind_scheduler_active_jobs")
	s.register(reg, s.wakeDrift, "easyremind_scheduler_wake_drift_seconds")
}

func (s *PrometheusSink) initDispatcherMetrics(reg prometheus.Registerer) {
	s.commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyremind_dispatcher_commands_total",
		Help: "Total number of commands handled, by acceptance.",
	}, []string{"accepted"})
	s.parseRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyremind_dispatcher_parse_rejections_total",
		Help: "Total number of time expressions rejected, by reason.",
	}, []string{"reason"})

	s.register(reg, s.commandsTotal, "easyremind_dispatcher_commands_total")
	s.register(reg, s.parseRejectionsTotal, "easyremind_dispatcher_parse_rejections_total")
}

func (s *PrometheusSink) initRecorderMetrics(reg prometheus.Registerer) {
	s.outcomesRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyremind_recorder_outcomes_total",
		Help: "Total number of outcome events recorded.",
	}, []string{"outcome"})
	s.recordErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyremind_recorder_errors_total",
		Help: "Total number of outcome events that failed to record.",
	})
	s.eventsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyremind_recorder_events_in_flight",
		Help: "Number of outcome events currently being processed.",
	})

	s.register(reg, s.outcomesRecordedTotal, "easyremind_recorder_outcomes_total")
	s.register(reg, s.recordErrorsTotal, "easyremind_recorder_errors_total")
	s.register(reg, s.eventsInFlight, "easyremind_recorder_events_in_flight")
}

func (s *PrometheusSink) initEventBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyremind_eventbus_buffer_size",
		Help: "Current number of events in the event bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyremind_eventbus_buffer_capacity",
		Help: "Configured capacity of the event bus buffer.",
	})
	s.bufferSaturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyremind_eventbus_buffer_saturation",
		Help: "Event bus buffer fill ratio (0.0 to 1.0).",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyremind_eventbus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})

	s.register(reg, s.bufferSize, "easyremind_eventbus_buffer_size")
	s.register(reg, s.bufferCapacity, "easyremind_eventbus_buffer_capacity")
	s.register(reg, s.bufferSaturation, "easyremind_eventbus_buffer_saturation")
	s.register(reg, s.emitErrorsTotal, "easyremind_eventbus_emit_errors_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Scheduler metrics implementation

func (s *PrometheusSink) JobScheduled() {
	s.jobsScheduledTotal.Inc()
}

func (s *PrometheusSink) ScheduleRejected(reason string) {
	s.scheduleRejectionsTotal.WithLabelValues(reason).Inc()
}

func (s *PrometheusSink) JobOutcome(outcome string) {
	s.jobOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) ActiveJobsUpdate(count int) {
	s.activeJobs.Set(float64(count))
}

func (s *PrometheusSink) WakeDrift(drift time.Duration) {
	// Record absolute drift value
	d := drift.Seconds()
	if d < 0 {
		d = -d
	}
	s.wakeDrift.Observe(d)
}

// Dispatcher metrics implementation

func (s *PrometheusSink) CommandHandled(accepted bool) {
	s.commandsTotal.WithLabelValues(strconv.FormatBool(accepted)).Inc()
}

func (s *PrometheusSink) ParseRejected(reason string) {
	s.parseRejectionsTotal.WithLabelValues(reason).Inc()
}

// Recorder metrics implementation

func (s *PrometheusSink) OutcomeRecorded(outcome string) {
	s.outcomesRecordedTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) RecordError() {
	s.recordErrorsTotal.Inc()
}

func (s *PrometheusSink) EventsInFlightIncr() {
	s.eventsInFlight.Inc()
}

func (s *PrometheusSink) EventsInFlightDecr() {
	s.eventsInFlight.Dec()
}

// EventBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) BufferSaturationUpdate(saturation float64) {
	s.bufferSaturation.Set(saturation)
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

// Compile-time interface assertion
var _ Sink = (*PrometheusSink)(nil)
