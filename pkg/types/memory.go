package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Memory is a typed, timestamped fragment of remembered information.
// Memories are created by distillation or direct user action and are never
// hard-deleted except by explicit deletion or a factory reset.
type Memory struct {
	ID                string         `json:"id"`
	Content           string         `json:"content"`
	Domain            Domain         `json:"domain"`
	Type              MemoryType     `json:"type"`
	Entity            string         `json:"entity"`
	Speaker           Speaker        `json:"speaker"`
	Confidence        float64        `json:"confidence"`
	ConfidenceHistory []float64      `json:"confidence_history,omitempty"`
	Salience          float64        `json:"salience"`
	TrustScore        float64        `json:"trust_score"`
	Status            MemoryStatus   `json:"status"`
	RecallPriority    RecallPriority `json:"recall_priority"`
	Supersedes        string         `json:"supersedes,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	AccessCount    int       `json:"access_count"`

	IsLocked          bool `json:"is_locked"`
	IsPendingApproval bool `json:"is_pending_approval"`
	IsPinned          bool `json:"is_pinned"`

	Justification string                 `json:"justification,omitempty"`
	Cluster       Cluster                `json:"cluster"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// MemoryInput carries the caller-controlled fields of a new memory.
// Zero values are replaced with defaults by NewMemory.
type MemoryInput struct {
	Content        string
	Domain         Domain
	Type           MemoryType
	Entity         string
	Speaker        Speaker
	Confidence     float64
	Salience       float64
	TrustScore     float64
	RecallPriority RecallPriority
	Cluster        Cluster
	Justification  string
	Metadata       map[string]interface{}
}

// NewMemory builds an active memory from in. Scores are clamped to [0, 1]
// and the record starts with AccessCount 1 (its creation counts as a touch).
func NewMemory(in MemoryInput, now time.Time) *Memory {
	m := &Memory{
		ID:             NewMemoryID(in.Domain),
		Content:        strings.TrimSpace(in.Content),
		Domain:         in.Domain,
		Type:           in.Type,
		Entity:         in.Entity,
		Speaker:        in.Speaker,
		Confidence:     ClampUnit(in.Confidence),
		Salience:       ClampUnit(in.Salience),
		TrustScore:     ClampUnit(in.TrustScore),
		Status:         StatusActive,
		RecallPriority: in.RecallPriority,
		CreatedAt:      now,
		LastAccessedAt: now,
		UpdatedAt:      now,
		AccessCount:    1,
		Justification:  in.Justification,
		Cluster:        in.Cluster,
		Metadata:       in.Metadata,
	}
	m.ConfidenceHistory = []float64{m.Confidence}
	if m.Type == "" {
		m.Type = TypeRaw
	}
	if m.Speaker == "" {
		m.Speaker = SpeakerUnknown
	}
	if m.RecallPriority == "" {
		m.RecallPriority = PriorityNormal
	}
	if m.Cluster == "" {
		m.Cluster = ClusterMain
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	return m
}

// NewMemoryID generates an id in the format mem:domain:uuid.
func NewMemoryID(domain Domain) string {
	d := strings.ReplaceAll(strings.TrimSpace(string(domain)), ":", "-")
	if d == "" {
		d = string(DomainGeneral)
	}
	return fmt.Sprintf("mem:%s:%s", d, uuid.NewString())
}

// NewID generates a prefixed random id for non-memory records.
func NewID(prefix string) string {
	return prefix + ":" + uuid.NewString()
}

// FolderPath returns the metadata folder path, or "" when unset.
func (m *Memory) FolderPath() string {
	return m.metaString(MetaFolderPath)
}

// Provenance returns the metadata provenance tag, or "" when unset.
func (m *Memory) Provenance() string {
	return m.metaString(MetaProvenance)
}

// ConflictingID returns the id of the record this memory contradicts.
func (m *Memory) ConflictingID() string {
	return m.metaString(MetaConflictingID)
}

func (m *Memory) metaString(key string) string {
	if m.Metadata == nil {
		return ""
	}
	if s, ok := m.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// SetMeta sets a metadata attribute, allocating the bag on first use.
func (m *Memory) SetMeta(key string, value interface{}) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	m.Metadata[key] = value
}

// MarkContradictory flags the memory as conflicting with conflictingID.
// The status and metadata reference are always set together.
func (m *Memory) MarkContradictory(conflictingID, reasoning string) {
	m.Status = StatusContradictory
	m.SetMeta(MetaConflictingID, conflictingID)
	m.Justification = reasoning
}

// Touch records an access.
func (m *Memory) Touch(now time.Time) {
	m.AccessCount++
	m.LastAccessedAt = now
}

// SetConfidence updates confidence and appends it to the history.
func (m *Memory) SetConfidence(c float64) {
	m.Confidence = ClampUnit(c)
	m.ConfidenceHistory = append(m.ConfidenceHistory, m.Confidence)
}

// RankScore is the retrieval ordering key.
func (m *Memory) RankScore() float64 {
	return m.Salience * m.TrustScore
}
