package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "orders"

var msBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

type Prometheus struct {
	createTotal    *prometheus.CounterVec
	createLatency  prometheus.Histogram
	lookupLatency  *prometheus.HistogramVec
	publishTotal   *prometheus.CounterVec
	publishLatency *prometheus.HistogramVec
	processTotal   *prometheus.CounterVec
	processLatency prometheus.Histogram
	httpTotal      *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	cacheTotal     *prometheus.CounterVec
}

// NewPrometheus registers the collectors on reg. Registration errors are
// returned so that two instances on one registry fail loudly.
func NewPrometheus(reg prometheus.Registerer, subsystem string) (*Prometheus, error) {
	p := &Prometheus{
		createTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "create_total", Help: "Create-order requests by outcome.",
		}, []string{"result"}),
		createLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "create_duration_ms", Help: "Create-order latency in milliseconds.",
			Buckets: msBuckets,
		}),
		lookupLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "lookup_duration_ms", Help: "User orders lookup latency by source and stage.",
			Buckets: msBuckets,
		}, []string{"source", "stage"}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "publish_total", Help: "Published events by sink and outcome.",
		}, []string{"sink", "result"}),
		publishLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "publish_duration_ms", Help: "Event publish latency in milliseconds.",
			Buckets: msBuckets,
		}, []string{"sink"}),
		processTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "process_total", Help: "Processed order events by outcome.",
		}, []string{"result"}),
		processLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "process_duration_ms", Help: "Order processing latency in milliseconds.",
			Buckets: msBuckets,
		}),
		httpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "http_requests_total", Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "http_request_duration_ms", Help: "HTTP latency in milliseconds.",
			Buckets: msBuckets,
		}, []string{"method", "route"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "cache_lookups_total", Help: "Cache lookups by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		p.createTotal, p.createLatency, p.lookupLatency, p.publishTotal, p.publishLatency,
		p.processTotal, p.processLatency, p.httpTotal, p.httpLatency, p.cacheTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveCreate(durMs float64, ok bool) {
	p.createTotal.WithLabelValues(result(ok)).Inc()
	p.createLatency.Observe(durMs)
}

func (p *Prometheus) ObserveLookup(source string, cacheMs, dbMs float64) {
	p.lookupLatency.WithLabelValues(source, "cache").Observe(cacheMs)
	if dbMs > 0 {
		p.lookupLatency.WithLabelValues(source, "db").Observe(dbMs)
	}
}

func (p *Prometheus) ObservePublish(sink string, durMs float64, ok bool) {
	p.publishTotal.WithLabelValues(sink, result(ok)).Inc()
	p.publishLatency.WithLabelValues(sink).Observe(durMs)
}

func (p *Prometheus) ObserveProcess(durMs float64, ok bool) {
	p.processTotal.WithLabelValues(result(ok)).Inc()
	p.processLatency.Observe(durMs)
}

func (p *Prometheus) ObserveHTTP(method, route string, status int, durMs float64) {
	p.httpTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpLatency.WithLabelValues(method, route).Observe(durMs)
}

func (p *Prometheus) IncCacheHit()  { p.cacheTotal.WithLabelValues("hit").Inc() }
func (p *Prometheus) IncCacheMiss() { p.cacheTotal.WithLabelValues("miss").Inc() }

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
