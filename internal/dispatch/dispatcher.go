// Package dispatch classifies inbound change events into notifications and
// cache invalidations.
//
// Dispatch is pure: it performs no I/O and holds no state beyond the fixed
// classification table. The sync engine applies its output to the cache
// store and the notification sink.
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/statuswatch/statuswatch/internal/cache"
)

var errMissingType = errors.New("event envelope has no type")

// Severity grades a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is a user-facing message derived from an event.
type Notification struct {
	Severity Severity
	Text     string
}

// Result is the outcome of dispatching one event.
type Result struct {
	// Notification is nil when the event warrants no user-facing message
	// (self-originated or unknown).
	Notification *Notification

	// Invalidations lists cache keys that must be marked stale.
	Invalidations []cache.Key

	// Unknown is set when the event type is not in the classification
	// table. The caller logs it; nothing else happens.
	Unknown bool
}

// classification describes how one event type maps to output.
type classification struct {
	severity   Severity
	text       func(name string) string
	collection cache.Key
	// record names the specific-record key prefix ("application",
	// "incident", "maintenance"). Empty means no record key.
	record string
	// incidentLog events fan out wider: parent incident + org-wide
	// aggregate log key, since logs render standalone and embedded.
	incidentLog bool
}

var classifications = map[EventType]classification{
	EventNewApplication: {
		severity:   SeveritySuccess,
		text:       func(n string) string { return fmt.Sprintf("Service %s was added", n) },
		collection: cache.KeyApplications,
		record:     "application",
	},
	EventApplicationUpdated: {
		severity:   SeverityInfo,
		text:       func(n string) string { return fmt.Sprintf("Service %s was updated", n) },
		collection: cache.KeyApplications,
		record:     "application",
	},
	EventApplicationDeleted: {
		severity:   SeveritySuccess,
		text:       func(n string) string { return fmt.Sprintf("Service %s was removed", n) },
		collection: cache.KeyApplications,
		record:     "application",
	},
	EventNewIncident: {
		severity:   SeverityError,
		text:       func(n string) string { return fmt.Sprintf("New incident reported: %s", n) },
		collection: cache.KeyIncidents,
		record:     "incident",
	},
	EventIncidentUpdated: {
		severity:   SeverityInfo,
		text:       func(n string) string { return fmt.Sprintf("Incident %s was updated", n) },
		collection: cache.KeyIncidents,
		record:     "incident",
	},
	EventIncidentResolved: {
		severity:   SeveritySuccess,
		text:       func(n string) string { return fmt.Sprintf("Incident %s was resolved", n) },
		collection: cache.KeyIncidents,
		record:     "incident",
	},
	EventIncidentDeleted: {
		severity:   SeveritySuccess,
		text:       func(n string) string { return fmt.Sprintf("Incident %s was deleted", n) },
		collection: cache.KeyIncidents,
		record:     "incident",
	},
	EventNewIncidentLog: {
		severity:    SeverityInfo,
		text:        func(n string) string { return fmt.Sprintf("New update posted on incident %s", n) },
		collection:  cache.KeyIncidentLogs,
		incidentLog: true,
	},
	EventIncidentLogUpdated: {
		severity:    SeverityInfo,
		text:        func(n string) string { return fmt.Sprintf("An update on incident %s was edited", n) },
		collection:  cache.KeyIncidentLogs,
		incidentLog: true,
	},
	EventNewMaintenance: {
		severity:   SeverityInfo,
		text:       func(n string) string { return fmt.Sprintf("Maintenance scheduled: %s", n) },
		collection: cache.KeyMaintenance,
		record:     "maintenance",
	},
	EventMaintenanceUpdated: {
		severity:   SeverityInfo,
		text:       func(n string) string { return fmt.Sprintf("Maintenance %s was updated", n) },
		collection: cache.KeyMaintenance,
		record:     "maintenance",
	},
	EventMaintenanceDeleted: {
		severity:   SeveritySuccess,
		text:       func(n string) string { return fmt.Sprintf("Maintenance %s was cancelled", n) },
		collection: cache.KeyMaintenance,
		record:     "maintenance",
	},
}

// Dispatch turns one event into zero or one notification plus zero or more
// cache invalidations.
//
// Events caused by the local actor produce no notification and no collection
// invalidation; the actor already has an optimistic view of their own change.
// The specific-record key is still invalidated so server-computed fields
// (timestamps, derived status) do not go stale on the actor's own screen.
//
// Unknown event types produce an empty result with Unknown set; they must
// never fail.
func Dispatch(env Envelope, localActorID string) Result {
	cls, ok := classifications[env.Type]
	if !ok {
		return Result{Unknown: true}
	}

	if env.UserID != "" && env.UserID == localActorID {
		return Result{Invalidations: selfInvalidations(cls, env)}
	}

	keys := []cache.Key{cls.collection}
	if env.EntityID != "" {
		keys = append(keys, recordKeys(cls, env.EntityID)...)
	}

	return Result{
		Notification: &Notification{
			Severity: cls.severity,
			Text:     cls.text(entityName(env)),
		},
		Invalidations: keys,
	}
}

// recordKeys returns the specific-record keys for an event with an entity id.
func recordKeys(cls classification, entityID string) []cache.Key {
	if cls.incidentLog {
		// Logs are keyed by their parent incident and are rendered both
		// standalone and inside the incident detail view.
		return []cache.Key{
			cache.NewKey("incident-logs", entityID),
			cache.NewKey("incident", entityID),
		}
	}
	if cls.record == "" {
		return nil
	}
	return []cache.Key{cache.NewKey(cls.record, entityID)}
}

func selfInvalidations(cls classification, env Envelope) []cache.Key {
	if env.EntityID == "" {
		return nil
	}
	return recordKeys(cls, env.EntityID)
}

// entityName extracts a display name from the event payload, trying the
// field names the backend uses. Missing names degrade to a generic label.
func entityName(env Envelope) string {
	if len(env.Data) > 0 {
		var payload struct {
			Name  string `json:"name"`
			Title string `json:"title"`
		}
		if err := json.Unmarshal(env.Data, &payload); err == nil {
			if payload.Name != "" {
				return payload.Name
			}
			if payload.Title != "" {
				return payload.Title
			}
		}
	}
	if env.EntityID != "" {
		return "#" + env.EntityID
	}
	return "(unnamed)"
}

// KnownTypes returns the closed set of recognized event types.
// Diagnostics output uses it.
func KnownTypes() []EventType {
	types := make([]EventType, 0, len(classifications))
	for t := range classifications {
		types = append(types, t)
	}
	return types
}
