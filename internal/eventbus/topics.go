package eventbus

const (
	TopicWorldEvents      = "world_events"
	TopicSpatialReasoning = "spatial_reasoning"
	TopicThreatReports    = "threat_reports"
)

const (
	TypeEntity  = "entity."
	TypeSpatial = "spatial."
)

// Entity lifecycle events consumed from the world stream.
const (
	EventEntityCreated = "entity.created"
	EventEntityUpdated = "entity.updated"
	EventEntityMoved   = "entity.moved"
	EventEntityDeleted = "entity.deleted"
)

// Events published by the spatial analyst.
const (
	EventReasoningRecord = "spatial.reasoning_record"
	EventThreatReport    = "spatial.threat_report"
)

// PublishTopics are the topics the bus opens writers for.
var PublishTopics = []string{
	TopicSpatialReasoning,
	TopicThreatReports,
}
