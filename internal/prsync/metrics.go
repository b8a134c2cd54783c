package prsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vocoder/vocoder/internal/logfields"
)

const metricNamespace = "vocoder_syncer"

const (
	githubEventsMetricName      = "processed_github_events_total"
	syncPassesMetricName        = "sync_passes_total"
	translatedStringsMetricName = "translated_strings_total"
	commitsMetricName           = "localization_commits_total"
)

const resultLabel = "result"

type resultLabelVal string

const (
	resultLabelSuccess resultLabelVal = "success"
	resultLabelFailure resultLabelVal = "failure"
	resultLabelSkipped resultLabelVal = "skipped"
)

type metricCollector struct {
	logger            *zap.Logger
	processedEvents   prometheus.Counter
	syncPasses        *prometheus.CounterVec
	translatedStrings prometheus.Counter
	commits           prometheus.Counter
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		processedEvents: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      githubEventsMetricName,
				Help:      "count of processed github webhook events",
			},
		),
		syncPasses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      syncPassesMetricName,
				Help:      "count of synchronization passes by result",
			},
			[]string{resultLabel},
		),
		translatedStrings: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      translatedStringsMetricName,
				Help:      "count of strings that were translated into a locale",
			},
		),
		commits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      commitsMetricName,
				Help:      "count of localization commits created on pull-request branches",
			},
		),
	}
}

func (m *metricCollector) ProcessedEventsInc() {
	m.processedEvents.Inc()
}

func (m *metricCollector) SyncPassesInc(result resultLabelVal) {
	cnt, err := m.syncPasses.GetMetricWith(prometheus.Labels{resultLabel: string(result)})
	if err != nil {
		m.logger.Warn(
			"could not record metric",
			zap.String("metric", syncPassesMetricName),
			logfields.Event("recording_metric_failed"),
			zap.Error(err),
		)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) TranslatedStringsAdd(count int) {
	if count <= 0 {
		return
	}

	m.translatedStrings.Add(float64(count))
}

func (m *metricCollector) CommitsInc() {
	m.commits.Inc()
}
