package spatialanalyst

import (
	"encoding/json"

	"multiverse-spatial/internal/eventbus"
	"multiverse-spatial/internal/reasoning"
)

// recordSink пересылает записи движка в метрики и в Kafka. Вызывается под
// блокировкой движка, поэтому только ставит события в очередь.
type recordSink struct {
	publisher *eventbus.AsyncPublisher
	worldID   string
	metrics   *Metrics
}

func (s *recordSink) Record(r reasoning.ReasoningRecord) {
	s.metrics.Operations.WithLabelValues(r.Operation).Inc()
	if s.publisher == nil {
		return
	}
	s.publisher.Enqueue(eventbus.TopicSpatialReasoning,
		eventbus.NewEvent(eventbus.EventReasoningRecord, serviceName, s.worldID, toPayload(r)))
}

// toPayload переводит значение в map через JSON, чтобы потребители видели
// ту же форму, что и HTTP-клиенты.
func toPayload(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}
