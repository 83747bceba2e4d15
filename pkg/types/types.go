// Package types defines the core data structures for the mneme memory engine.
// These types represent memories, queue items, decision logs, the adaptive
// bias state, and the flat records owned by the surrounding feature surfaces.
package types

// Domain is the life area a memory belongs to.
type Domain string

// Domain constants
const (
	DomainWork     Domain = "work"
	DomainPersonal Domain = "personal"
	DomainHome     Domain = "home"
	DomainHealth   Domain = "health"
	DomainFinance  Domain = "finance"
	DomainSystem   Domain = "system"
	DomainGeneral  Domain = "general"
)

// ValidDomains lists every accepted Domain value.
var ValidDomains = []Domain{
	DomainWork, DomainPersonal, DomainHome, DomainHealth,
	DomainFinance, DomainSystem, DomainGeneral,
}

// MemoryType classifies what kind of information a memory holds.
type MemoryType string

// Memory type constants
const (
	TypeFact       MemoryType = "fact"
	TypeDecision   MemoryType = "decision"
	TypePreference MemoryType = "preference"
	TypeConstraint MemoryType = "constraint"
	TypeTask       MemoryType = "task"
	TypeIssue      MemoryType = "issue"
	TypeRaw        MemoryType = "raw"
	TypeSummary    MemoryType = "summary"
	TypeEvent      MemoryType = "event"
	TypeInsight    MemoryType = "insight"
)

// ValidMemoryTypes lists every accepted MemoryType value.
var ValidMemoryTypes = []MemoryType{
	TypeFact, TypeDecision, TypePreference, TypeConstraint, TypeTask,
	TypeIssue, TypeRaw, TypeSummary, TypeEvent, TypeInsight,
}

// Speaker identifies who stated the information.
type Speaker string

// Speaker constants
const (
	SpeakerUser     Speaker = "user"
	SpeakerExternal Speaker = "external"
	SpeakerUnknown  Speaker = "unknown"
)

// MemoryStatus is the lifecycle status of a memory.
type MemoryStatus string

// Memory status constants
const (
	StatusActive        MemoryStatus = "active"
	StatusCompleted     MemoryStatus = "completed"
	StatusArchived      MemoryStatus = "archived"
	StatusDecaying      MemoryStatus = "decaying"
	StatusDeprecated    MemoryStatus = "deprecated"
	StatusSuperseded    MemoryStatus = "superseded"
	StatusColdStorage   MemoryStatus = "cold_storage"
	StatusContradictory MemoryStatus = "contradictory"
)

// ValidStatuses lists every accepted MemoryStatus value.
var ValidStatuses = []MemoryStatus{
	StatusActive, StatusCompleted, StatusArchived, StatusDecaying,
	StatusDeprecated, StatusSuperseded, StatusColdStorage, StatusContradictory,
}

// RecallPriority hints how eagerly a memory should surface.
type RecallPriority string

// Recall priority constants
const (
	PriorityHigh   RecallPriority = "high"
	PriorityNormal RecallPriority = "normal"
	PriorityLow    RecallPriority = "low"
)

// Cluster partitions memories into the main set and an experimental sandbox.
// A memory's cluster is fixed at creation.
type Cluster string

// Cluster constants
const (
	ClusterMain         Cluster = "main"
	ClusterExperimental Cluster = "experimental"
)

// SystemStatus is the load state reported by the host. It bounds how deep
// retrieval may go.
type SystemStatus string

// System status constants
const (
	SystemNominal  SystemStatus = "nominal"
	SystemDegraded SystemStatus = "degraded"
	SystemSafeMode SystemStatus = "safe_mode"
)

// Well-known Memory.Metadata keys.
const (
	MetaFolderPath    = "folder_path"
	MetaTable         = "table"
	MetaTopic         = "topic"
	MetaProvenance    = "provenance"
	MetaConflictingID = "conflicting_id"
	MetaQueueItemID   = "queue_item_id"
	MetaReminderID    = "reminder_id"
)

// ProvenanceMetacognition marks memories synthesized by the insight pass.
const ProvenanceMetacognition = "autonomous-metacognition"

// IsValidDomain reports whether d is a known domain.
func IsValidDomain(d Domain) bool {
	for _, v := range ValidDomains {
		if v == d {
			return true
		}
	}
	return false
}

// IsValidMemoryType reports whether t is a known memory type.
func IsValidMemoryType(t MemoryType) bool {
	for _, v := range ValidMemoryTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsValidStatus reports whether s is a known memory status.
func IsValidStatus(s MemoryStatus) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ClampUnit clamps v to [0, 1].
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
