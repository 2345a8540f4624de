package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// Prometheus text exposition format writers.
// See: https://prometheus.io/docs/instrumenting/exposition_formats/

func writeCounter(sb *strings.Builder, c *Counter) {
	writeHeader(sb, c.name, c.help, "counter")
	sb.WriteString(c.name)
	writeLabels(sb, c.labels)
	fmt.Fprintf(sb, " %d\n", c.Value())
}

func writeGauge(sb *strings.Builder, g *Gauge) {
	writeHeader(sb, g.name, g.help, "gauge")
	sb.WriteString(g.name)
	writeLabels(sb, g.labels)
	fmt.Fprintf(sb, " %d\n", g.Value())
}

func writeHistogram(sb *strings.Builder, h *Histogram) {
	writeHeader(sb, h.name, h.help, "histogram")

	buckets := h.Buckets()
	counts := h.BucketCounts()

	for i, bucket := range buckets {
		fmt.Fprintf(sb, "%s_bucket{le=%q} %d\n", h.name, fmt.Sprintf("%g", bucket), counts[i])
	}
	fmt.Fprintf(sb, "%s_bucket{le=\"+Inf\"} %d\n", h.name, counts[len(counts)-1])
	fmt.Fprintf(sb, "%s_sum %.2f\n", h.name, h.Sum())
	fmt.Fprintf(sb, "%s_count %d\n", h.name, h.Count())
}

func writeCounterVec(sb *strings.Builder, cv *CounterVec) {
	counters := cv.GetAll()
	if len(counters) == 0 {
		return
	}

	writeHeader(sb, cv.name, cv.help, "counter")
	for _, c := range counters {
		sb.WriteString(c.name)
		writeLabels(sb, c.labels)
		fmt.Fprintf(sb, " %d\n", c.Value())
	}
}

func writeHeader(sb *strings.Builder, name, help, metricType string) {
	fmt.Fprintf(sb, "# HELP %s %s\n", name, help)
	fmt.Fprintf(sb, "# TYPE %s %s\n", name, metricType)
}

// writeLabels writes labels as {key="value",key2="value2"}.
func writeLabels(sb *strings.Builder, labels map[string]string) {
	if len(labels) == 0 {
		return
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		// %q escaping matches what Prometheus expects for label values
		fmt.Fprintf(sb, "%s=%q", k, labels[k])
	}
	sb.WriteByte('}')
}
