package metrics

import (
	"sort"
	"strconv"
	"strings"
)

// PrometheusText renders the current snapshot in the Prometheus text
// exposition format. Series sharing a base name emit a single TYPE line.
func (c *Collector) PrometheusText() string {
	s := c.Summary()

	var b strings.Builder

	writeSection(&b, s.Counters, "counter", func(b *strings.Builder, key string, v int64) {
		writeSample(b, key, strconv.FormatInt(v, 10))
	})
	writeSection(&b, s.Gauges, "gauge", func(b *strings.Builder, key string, v float64) {
		writeSample(b, key, formatFloat(v))
	})

	histKeys := sortedKeys(s.Histograms)
	seen := make(map[string]bool)
	for _, key := range histKeys {
		h := s.Histograms[key]
		name := BaseName(key)
		if !seen[name] {
			b.WriteString("# TYPE ")
			b.WriteString(name)
			b.WriteString(" histogram\n")
			seen[name] = true
		}
		labels := labelString(key)
		b.WriteString(name)
		b.WriteString("_count")
		b.WriteString(labels)
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(h.Count))
		b.WriteByte('\n')

		b.WriteString(name)
		b.WriteString("_sum")
		b.WriteString(labels)
		b.WriteByte(' ')
		b.WriteString(formatFloat(h.Avg * float64(h.Count)))
		b.WriteByte('\n')

		b.WriteString(name)
		b.WriteString("_bucket")
		b.WriteString(bucketLabels(key))
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(h.Count))
		b.WriteByte('\n')
	}

	return b.String()
}

func writeSection[V any](b *strings.Builder, series map[string]V, kind string, write func(*strings.Builder, string, V)) {
	seen := make(map[string]bool)
	for _, key := range sortedKeys(series) {
		name := BaseName(key)
		if !seen[name] {
			b.WriteString("# TYPE ")
			b.WriteString(name)
			b.WriteByte(' ')
			b.WriteString(kind)
			b.WriteByte('\n')
			seen[name] = true
		}
		write(b, key, series[key])
	}
}

func writeSample(b *strings.Builder, key, value string) {
	b.WriteString(BaseName(key))
	b.WriteString(labelString(key))
	b.WriteByte(' ')
	b.WriteString(value)
	b.WriteByte('\n')
}

// labelString converts the bracketed tag suffix of a key into Prometheus
// label syntax: name[a=1,b=2] -> {a="1",b="2"}.
func labelString(key string) string {
	i := strings.IndexByte(key, '[')
	if i < 0 {
		return ""
	}
	inner := strings.TrimSuffix(key[i+1:], "]")
	pairs := strings.Split(inner, ",")

	var b strings.Builder
	b.WriteByte('{')
	for n, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if n > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(v)
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

func bucketLabels(key string) string {
	labels := labelString(key)
	if labels == "" {
		return `{le="+Inf"}`
	}
	return strings.TrimSuffix(labels, "}") + `,le="+Inf"}`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
