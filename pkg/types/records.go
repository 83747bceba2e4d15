package types

import "time"

// Person is someone the user talks about.
type Person struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Relationship string    `json:"relationship,omitempty"`
	Notes        []string  `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Place is a location the user refers to.
type Place struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Reminder is a scheduled prompt for the user.
type Reminder struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	DueAt     time.Time `json:"due_at"`
	Completed bool      `json:"completed"`
	MemoryID  string    `json:"memory_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptionLog records one speech-to-text capture.
type TranscriptionLog struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Speaker   Speaker   `json:"speaker"`
	CreatedAt time.Time `json:"created_at"`
}

// SmartDevice is a home device the assistant knows about.
type SmartDevice struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Room  string `json:"room,omitempty"`
	State string `json:"state,omitempty"`
}

// PendingClarification is an open "same project or new project?" question
// raised when a declared project name collides with an existing one.
type PendingClarification struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Subject    string    `json:"subject"`
	ExistingID string    `json:"existing_id"`
	Question   string    `json:"question"`
	CreatedAt  time.Time `json:"created_at"`
}

// ClarificationProjectCollision is the Kind of a project name collision.
const ClarificationProjectCollision = "project_collision"
