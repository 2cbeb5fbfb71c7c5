package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ScrapeTimeout is the limit of reading the source on each scrape.
var ScrapeTimeout = 5 * time.Second

var (
	uptimeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "uptime_ratio"),
		"Ratio of successful checks in the window",
		[]string{"window"}, nil,
	)
	avgResponseDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "avg_response_time_seconds"),
		"Average response time of successful checks in the window",
		[]string{"window"}, nil,
	)
	p95ResponseDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "p95_response_time_seconds"),
		"95th percentile response time of successful checks in the window",
		[]string{"window"}, nil,
	)
	openIncidentDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "open_incident"),
		"1 if there is an open incident",
		nil, nil,
	)
	storageHealthyDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "storage", "healthy"),
		"1 if the latest storage write succeeded",
		nil, nil,
	)
)

var windows = []struct {
	Label string
	Days  int
}{
	{"1d", 1},
	{"7d", 7},
	{"30d", 30},
}

type collector struct {
	src Source
}

func newCollector(src Source) collector {
	return collector{src}
}

func (c collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- uptimeDesc
	ch <- avgResponseDesc
	ch <- p95ResponseDesc
	ch <- openIncidentDesc
	ch <- storageHealthyDesc
}

func (c collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), ScrapeTimeout)
	defer cancel()

	for _, w := range windows {
		s := c.src.Stats(ctx, w.Days)
		ch <- prometheus.MustNewConstMetric(uptimeDesc, prometheus.GaugeValue, s.UptimePercentage/100, w.Label)
		ch <- prometheus.MustNewConstMetric(avgResponseDesc, prometheus.GaugeValue, s.AverageResponseTime/1000, w.Label)
		ch <- prometheus.MustNewConstMetric(p95ResponseDesc, prometheus.GaugeValue, s.P95ResponseTime/1000, w.Label)
	}

	open := 0.0
	if c.src.Status(ctx).OpenIncident != nil {
		open = 1
	}
	ch <- prometheus.MustNewConstMetric(openIncidentDesc, prometheus.GaugeValue, open)

	healthy, _ := c.src.Errors()
	h := 0.0
	if healthy {
		h = 1
	}
	ch <- prometheus.MustNewConstMetric(storageHealthyDesc, prometheus.GaugeValue, h)
}
