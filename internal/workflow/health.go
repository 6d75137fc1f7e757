package workflow

import (
	"context"

	"blendflow/internal/job"
	"blendflow/internal/stage"
)

// StageHealth calls every configured handler's health check in stage order.
func (o *Orchestrator) StageHealth(ctx context.Context) []stage.Health {
	order := []job.StageName{job.StageFetch, job.StageTransform, job.StagePublish}
	out := make([]stage.Health, 0, len(order))
	for _, name := range order {
		st, ok := o.stages[name]
		if !ok {
			out = append(out, stage.Unhealthy(string(name), "handler not configured"))
			continue
		}
		health := st.Handler.HealthCheck(ctx)
		if health.Name == "" {
			health.Name = string(name)
		}
		out = append(out, health)
	}
	return out
}
