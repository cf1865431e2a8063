package dto

// Event is the envelope every message on the broker is wrapped in
type Event struct {
	Event    EventDetails  `json:"event"`
	Metadata EventMetadata `json:"metadata"`
}

type EventDetails struct {
	Id         string      `json:"id"`
	EntityId   string      `json:"entityId"`
	EntityType string      `json:"entityType"`
	Tenant     string      `json:"tenant"`
	EventType  string      `json:"eventType"`
	Data       interface{} `json:"data"`
}

type EventMetadata struct {
	UberTraceId string `json:"uberTraceId"`
	AppSource   string `json:"appSource"`
	Timestamp   string `json:"timestamp"`
}
