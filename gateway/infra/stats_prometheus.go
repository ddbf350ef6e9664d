package infra

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"deal-gateway/gateway/domain"
)

// PrometheusStatsStore exporta eventos como contadores.
// O label "action" só é preenchido para rate/quota, para não explodir cardinalidade.
type PrometheusStatsStore struct {
	events *prometheus.CounterVec
}

func NewPrometheusStatsStore(reg prometheus.Registerer) *PrometheusStatsStore {
	return &PrometheusStatsStore{
		events: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "deal_gateway_events_total",
			Help: "Gateway events by component, action and outcome",
		}, []string{"kind", "action", "outcome"}),
	}
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	action := ""
	if ev.Kind == domain.KindRate || ev.Kind == domain.KindQuota || ev.Kind == domain.KindBusy {
		action = ev.Name
	}
	s.events.WithLabelValues(string(ev.Kind), action, string(ev.Outcome)).Inc()
	return nil
}
