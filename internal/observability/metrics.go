package observability

type Metrics interface {
	ObserveCreate(durMs float64, ok bool)
	ObserveLookup(source string, cacheMs, dbMs float64)
	ObservePublish(sink string, durMs float64, ok bool)
	ObserveProcess(durMs float64, ok bool)
	ObserveHTTP(method, route string, status int, durMs float64)
	IncCacheHit()
	IncCacheMiss()
}

type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) ObserveCreate(float64, bool)              {}
func (Noop) ObserveLookup(string, float64, float64)   {}
func (Noop) ObservePublish(string, float64, bool)     {}
func (Noop) ObserveProcess(float64, bool)             {}
func (Noop) ObserveHTTP(string, string, int, float64) {}
func (Noop) IncCacheHit()                             {}
func (Noop) IncCacheMiss()                            {}
