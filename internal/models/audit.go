package models

import "time"

// AuditReason records why a tier changed.
type AuditReason string

const (
	ReasonAutoProgress AuditReason = "auto-progress"
	ReasonManual       AuditReason = "manual"
)

// ActorSystem is the actor recorded for automatic transitions.
const ActorSystem = "system"

// AuditLogEntry is an immutable record of one tier transition.
type AuditLogEntry struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Actor     string      `json:"actor"`
	VacancyID string      `json:"vacancy_id"`
	From      Tier        `json:"from"`
	To        Tier        `json:"to"`
	Reason    AuditReason `json:"reason"`
	Note      string      `json:"note,omitempty"`
}
