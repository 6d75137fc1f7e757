package telemetry

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// CounterPoint is one attribute set of a collected counter.
type CounterPoint struct {
	Name   string
	Labels map[string]string
	Value  int64
}

// Summary is a flattened view of the collected instruments.
type Summary struct {
	Counters    []CounterPoint
	Utilization float64
	QueueDepth  int64
}

// Count sums counter points whose labels contain every pair in match.
func (s Summary) Count(name string, match map[string]string) int64 {
	var total int64
	for _, point := range s.Counters {
		if point.Name != name {
			continue
		}
		ok := true
		for k, v := range match {
			if point.Labels[k] != v {
				ok = false
				break
			}
		}
		if ok {
			total += point.Value
		}
	}
	return total
}

// Collect reads the current instrument values through the manual reader.
func (m *Metrics) Collect(ctx context.Context) (Summary, error) {
	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(ctx, &rm); err != nil {
		return Summary{}, err
	}
	var out Summary
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out.Counters = append(out.Counters, CounterPoint{
						Name:   md.Name,
						Labels: labels(dp.Attributes),
						Value:  dp.Value,
					})
				}
			case metricdata.Gauge[float64]:
				if md.Name == "blendflow.pool.utilization" && len(data.DataPoints) > 0 {
					out.Utilization = data.DataPoints[0].Value
				}
			case metricdata.Gauge[int64]:
				if md.Name == "blendflow.pool.queue_depth" && len(data.DataPoints) > 0 {
					out.QueueDepth = data.DataPoints[0].Value
				}
			}
		}
	}
	sort.Slice(out.Counters, func(i, j int) bool {
		if out.Counters[i].Name != out.Counters[j].Name {
			return out.Counters[i].Name < out.Counters[j].Name
		}
		return labelKey(out.Counters[i].Labels) < labelKey(out.Counters[j].Labels)
	})
	return out, nil
}

func labels(set attribute.Set) map[string]string {
	out := make(map[string]string, set.Len())
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func labelKey(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k+"="+m[k])
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
