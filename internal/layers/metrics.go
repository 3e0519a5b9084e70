package layers

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики менеджера миров
type Metrics struct {
	loadedWorlds  prometheus.Gauge
	activeLayer   prometheus.Gauge
	occupants     *prometheus.GaugeVec
	terrainCells  *prometheus.GaugeVec
	layerObjects  prometheus.Gauge
	saves         *prometheus.CounterVec
	saveDuration  prometheus.Histogram
	visibilityOps prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// nil reg означает глобальный регистр Prometheus.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		loadedWorlds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meadow",
			Name:      "worlds_loaded",
			Help:      "Количество загруженных миров (слоёв).",
		}),
		activeLayer: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meadow",
			Name:      "active_layer",
			Help:      "Активный слой локального наблюдателя (-1 если нет).",
		}),
		occupants: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "meadow",
			Name:      "world_occupants",
			Help:      "Количество обитателей сетки по слоям.",
		}, []string{"layer", "world"}),
		terrainCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "meadow",
			Name:      "terrain_cache_cells",
			Help:      "Проверенные ячейки кеша рельефа.",
		}, []string{"layer", "state"}),
		layerObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meadow",
			Name:      "layer_objects",
			Help:      "Зарегистрированные объекты слоёв.",
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meadow",
			Name:      "world_saves_total",
			Help:      "Сохранения миров по результату.",
		}, []string{"result"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "meadow",
			Name:      "world_save_duration_seconds",
			Help:      "Длительность сохранения одного мира.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		visibilityOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meadow",
			Name:      "visibility_rebuilds_total",
			Help:      "Количество перестроений видимости слоёв.",
		}),
	}

	reg.MustRegister(m.loadedWorlds, m.activeLayer, m.occupants, m.terrainCells,
		m.layerObjects, m.saves, m.saveDuration, m.visibilityOps)
	return m
}

// observe обновляет gauge по снимку состояния менеджера
func (m *Metrics) observe(s Snapshot) {
	if m == nil {
		return
	}

	m.loadedWorlds.Set(float64(len(s.Worlds)))
	m.activeLayer.Set(float64(s.Active))
	m.layerObjects.Set(float64(s.Objects))

	m.occupants.Reset()
	m.terrainCells.Reset()
	for _, w := range s.Worlds {
		layer := strconv.Itoa(w.Layer)
		m.occupants.WithLabelValues(layer, w.ID).Set(float64(w.Occupants))
		m.terrainCells.WithLabelValues(layer, "resolved").Set(float64(w.Terrain.Resolved))
		m.terrainCells.WithLabelValues(layer, "blocked").Set(float64(w.Terrain.Blocked))
	}
}

func (m *Metrics) saveResult(err error, seconds float64) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.saves.WithLabelValues(result).Inc()
	m.saveDuration.Observe(seconds)
}

func (m *Metrics) visibilityRebuilt() {
	if m == nil {
		return
	}
	m.visibilityOps.Inc()
}
