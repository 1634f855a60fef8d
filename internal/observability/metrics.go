package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fahctl"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	daemonCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "commands_total",
			Help:      "Commands sent to the FAH daemon.",
		},
		[]string{"verb", "success"},
	)
	daemonCommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "command_duration_seconds",
			Help:      "Round trip time of daemon commands in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"verb"},
	)
	sessionReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "reconnects_total",
			Help:      "Automatic reconnects after the daemon closed the stream.",
		},
		[]string{"success"},
	)
	exporterPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exporter",
			Name:      "polls_total",
			Help:      "Daemon polls made by the exporter.",
		},
		[]string{"success"},
	)
	daemonPPD = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "ppd",
			Help:      "Estimated points per day across all slots.",
		},
	)
	slotUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "slot",
			Name:      "up",
			Help:      "1 when the slot is running, 0 otherwise.",
		},
		[]string{"slot", "status"},
	)
	queuePercentDone = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "percent_done",
			Help:      "Progress of each queued work unit.",
		},
		[]string{"slot", "unit"},
	)
	queueETA = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "eta_seconds",
			Help:      "Estimated seconds until each queued work unit completes.",
		},
		[]string{"slot", "unit"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			daemonCommands, daemonCommandDuration,
			sessionReconnects, exporterPolls,
			daemonPPD, slotUp, queuePercentDone, queueETA,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// CommandMetrics records every daemon command a client sends.
type CommandMetrics struct{}

func (CommandMetrics) ObserveCommand(verb string, elapsed time.Duration, err error) {
	RegisterMetrics()
	daemonCommands.WithLabelValues(verb, strconv.FormatBool(err == nil)).Inc()
	daemonCommandDuration.WithLabelValues(verb).Observe(elapsed.Seconds())
}

// RecordReconnect has the shape of the session reconnect hook.
func RecordReconnect(_ string, err error) {
	RegisterMetrics()
	sessionReconnects.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
}

func RecordPoll(err error) {
	RegisterMetrics()
	exporterPolls.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
}

// SlotSample is one slot as seen by the last poll.
type SlotSample struct {
	Slot    string
	Status  string
	Running bool
}

// UnitSample is one queued work unit as seen by the last poll.
type UnitSample struct {
	Slot        string
	Unit        string
	PercentDone float64
	ETA         time.Duration
	ETAKnown    bool
}

// SetDaemonSnapshot replaces every FAH gauge with the given poll result.
func SetDaemonSnapshot(ppd float64, slots []SlotSample, units []UnitSample) {
	RegisterMetrics()
	daemonPPD.Set(ppd)

	slotUp.Reset()
	for _, s := range slots {
		v := 0.0
		if s.Running {
			v = 1
		}
		slotUp.WithLabelValues(s.Slot, s.Status).Set(v)
	}

	queuePercentDone.Reset()
	queueETA.Reset()
	for _, u := range units {
		queuePercentDone.WithLabelValues(u.Slot, u.Unit).Set(u.PercentDone)
		if u.ETAKnown {
			queueETA.WithLabelValues(u.Slot, u.Unit).Set(u.ETA.Seconds())
		}
	}
}
