// Package metrics exports the control loop and bus health to prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cjeanneret/PanTrack/internal/hw/dynamixel"
	"github.com/cjeanneret/PanTrack/internal/logic/tracking"
)

const namespace = "pantrack"

// Collector holds every metric on its own registry. It implements
// tracking.Observer and takes bus faults through Fault.
type Collector struct {
	registry *prometheus.Registry

	ticks      *prometheus.CounterVec
	candidates *prometheus.CounterVec
	faults     *prometheus.CounterVec
	target     *prometheus.GaugeVec
	position   *prometheus.GaugeVec
	live       prometheus.Gauge
	reference  prometheus.Gauge
}

// New creates a collector and registers its metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Control loop phases run, by phase (fast runs every tick, slow every Nth).",
		}, []string{"phase"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidates examined by the selector, by result.",
		}, []string{"result"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Non-fatal faults reported, by component and kind (comm, device, other).",
		}, []string{"component", "kind"}),
		target: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_degrees",
			Help:      "Tracked target angle.",
		}, []string{"axis"}),
		position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "axis_raw_position",
			Help:      "Axis raw position, current (last written) and goal.",
		}, []string{"axis", "kind"}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_candidates",
			Help:      "Candidates present in the scene at the last selection.",
		}),
		reference: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reference_present",
			Help:      "1 when the reference object was present at the last selection.",
		}),
	}
	c.registry.MustRegister(c.ticks, c.candidates, c.faults, c.target, c.position, c.live, c.reference)
	return c
}

// Registry exposes the underlying registry (tests, extra collectors).
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Fault counts a fault; it has the signature of debug.SetFaultHook.
func (c *Collector) Fault(component string, err error) {
	c.faults.WithLabelValues(component, dynamixel.Kind(err)).Inc()
}

func (c *Collector) ObserveTick(slow bool) {
	c.ticks.WithLabelValues("fast").Inc()
	if slow {
		c.ticks.WithLabelValues("slow").Inc()
	}
}

func (c *Collector) ObserveSelection(sel tracking.Selection) {
	c.candidates.WithLabelValues("accepted").Add(float64(sel.Accepted))
	c.candidates.WithLabelValues("rejected").Add(float64(sel.Rejected))
}

func (c *Collector) ObserveState(s tracking.State) {
	c.target.WithLabelValues("pan").Set(s.Target.PanDeg)
	c.target.WithLabelValues("tilt").Set(s.Target.TiltDeg)
	c.position.WithLabelValues("pan", "current").Set(float64(s.Axes.Pan.Current))
	c.position.WithLabelValues("pan", "goal").Set(float64(s.Axes.Pan.Goal))
	c.position.WithLabelValues("tilt", "current").Set(float64(s.Axes.Tilt.Current))
	c.position.WithLabelValues("tilt", "goal").Set(float64(s.Axes.Tilt.Goal))
	c.live.Set(float64(s.Candidates))
	if s.HasReference {
		c.reference.Set(1)
	} else {
		c.reference.Set(0)
	}
}
