package matcher

import "github.com/prometheus/client_golang/prometheus"

var (
	pollsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matcher_polls_total",
		Help: "Feed polls executed by the donation matcher.",
	})

	feedErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matcher_feed_errors_total",
		Help: "Feed polls that failed.",
	})

	matchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matcher_matches_total",
		Help: "Donation records matched to a session.",
	})

	persistFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matcher_persist_failures_total",
		Help: "Metadata persist tasks that failed or were dropped.",
	})

	watermarkGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "matcher_watermark_id",
		Help: "Highest feed record id evaluated by the matcher.",
	})
)

func init() {
	prometheus.MustRegister(pollsTotal, feedErrorsTotal, matchesTotal, persistFailuresTotal, watermarkGauge)
}
