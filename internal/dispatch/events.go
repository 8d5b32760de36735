package dispatch

import "encoding/json"

// EventType tags an inbound change event.
type EventType string

// Event types pushed by the backend. The set is closed; anything else is
// treated as unknown and ignored without failing.
const (
	EventNewApplication     EventType = "new_application"
	EventApplicationUpdated EventType = "application_updated"
	EventApplicationDeleted EventType = "application_deleted"

	EventNewIncident      EventType = "new_incident"
	EventIncidentUpdated  EventType = "incident_updated"
	EventIncidentResolved EventType = "incident_resolved"
	EventIncidentDeleted  EventType = "incident_deleted"

	EventNewIncidentLog     EventType = "new_incident_log"
	EventIncidentLogUpdated EventType = "incident_log_updated"

	EventNewMaintenance     EventType = "new_maintenance"
	EventMaintenanceUpdated EventType = "maintenance_updated"
	EventMaintenanceDeleted EventType = "maintenance_deleted"
)

// Envelope is the wire shape of a pushed change event.
// Only Type is guaranteed to be present.
type Envelope struct {
	Type       EventType       `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	EntityType string          `json:"entity_type,omitempty"`
	EntityID   string          `json:"entity_id,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
}

// ParseEnvelope decodes a raw frame into an Envelope. An envelope without a
// type is rejected so the read loop can drop it.
func ParseEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, errMissingType
	}
	return env, nil
}
