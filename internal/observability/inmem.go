package observability

import (
	"encoding/json"
	"net/http"
	"sync"
)

type observation struct {
	Kind   string  `json:"kind"`
	Source string  `json:"source,omitempty"`
	Method string  `json:"method,omitempty"`
	Route  string  `json:"route,omitempty"`
	Status int     `json:"status,omitempty"`
	Dur    float64 `json:"dur_ms"`
	DBMs   float64 `json:"db_ms,omitempty"`
	OK     bool    `json:"ok"`
}

type Totals struct {
	CacheHits int `json:"cache_hits"`
	CacheMiss int `json:"cache_miss"`
}

// Inmem keeps the last max observations in memory.
type Inmem struct {
	mu     sync.Mutex
	last   []observation
	max    int
	totals Totals
}

func NewInmem(max int) *Inmem {
	return &Inmem{
		max: max,
	}
}

func (m *Inmem) push(v observation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.max <= 0 {
		return
	}
	m.last = append(m.last, v)
	if len(m.last) > m.max {
		m.last = m.last[1:]
	}
}

func (m *Inmem) ObserveCreate(durMs float64, ok bool) {
	m.push(observation{Kind: "create", Dur: durMs, OK: ok})
}

func (m *Inmem) ObserveLookup(source string, cacheMs, dbMs float64) {
	m.push(observation{Kind: "lookup", Source: source, Dur: cacheMs, DBMs: dbMs, OK: true})
}

func (m *Inmem) ObservePublish(sink string, durMs float64, ok bool) {
	m.push(observation{Kind: "publish", Source: sink, Dur: durMs, OK: ok})
}

func (m *Inmem) ObserveProcess(durMs float64, ok bool) {
	m.push(observation{Kind: "process", Dur: durMs, OK: ok})
}

func (m *Inmem) ObserveHTTP(method, route string, status int, durMs float64) {
	m.push(observation{Kind: "http", Method: method, Route: route, Status: status, Dur: durMs, OK: status < 500})
}

func (m *Inmem) IncCacheHit() {
	m.mu.Lock()
	m.totals.CacheHits++
	m.mu.Unlock()
}

func (m *Inmem) IncCacheMiss() {
	m.mu.Lock()
	m.totals.CacheMiss++
	m.mu.Unlock()
}

func (m *Inmem) Totals() Totals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals
}

// ServeHTTP dumps totals and recent observations as JSON.
func (m *Inmem) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	recent := make([]observation, len(m.last))
	copy(recent, m.last)
	totals := m.totals
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(struct {
		Totals Totals        `json:"totals"`
		Recent []observation `json:"recent"`
	}{totals, recent})
}
