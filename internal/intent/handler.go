package intent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/pkg/types"
)

// Kind names a recognised intent.
type Kind string

// Intent kinds, in priority order.
const (
	KindClarification Kind = "clarification"
	KindProject       Kind = "project"
	KindReminder      Kind = "reminder"
	KindPreference    Kind = "preference"
	KindFriend        Kind = "friend"
)

// Table values stored in Memory metadata for intent-created records.
const (
	TableProjects    = "projects"
	TableReminders   = "reminders"
	TablePreferences = "preferences"
	TableFriends     = "friends"
)

// Result is the short-circuit reply of a handled intent.
type Result struct {
	Kind          Kind
	Reply         string
	Justification string
	Memories      []*types.Memory
	Reminder      *types.Reminder
	Clarification *types.PendingClarification
}

// Handler applies intents to the record store.
type Handler struct {
	records *storage.Records
	now     func() time.Time
}

// NewHandler creates a handler. now defaults to time.Now.
func NewHandler(records *storage.Records, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{records: records, now: now}
}

// Handle checks msg against every intent in priority order. It returns
// (nil, nil) when no intent applies.
func (h *Handler) Handle(ctx context.Context, msg string) (*Result, error) {
	steps := []func(context.Context, string) (*Result, error){
		h.ResolveClarification,
		h.DeclareProject,
		h.CreateReminder,
		h.RecordPreference,
		h.RecordFriendFact,
	}
	for _, step := range steps {
		res, err := step(ctx, msg)
		if err != nil || res != nil {
			return res, err
		}
	}
	return nil, nil
}

// ResolveClarification answers the oldest pending project clarification.
func (h *Handler) ResolveClarification(ctx context.Context, msg string) (*Result, error) {
	answer := ParseClarificationAnswer(msg)
	if answer == AnswerNone {
		return nil, nil
	}
	pending, err := h.records.Clarifications.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	c := pending[0]

	if err := h.records.Clarifications.Delete(ctx, c.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if answer == AnswerSame {
		if err := h.records.TouchMemories(ctx, []string{c.ExistingID}, h.now()); err != nil {
			return nil, err
		}
		return &Result{
			Kind:          KindClarification,
			Reply:         fmt.Sprintf("Got it, continuing with project %s.", c.Subject),
			Justification: "clarification answered: same project",
			Clarification: c,
		}, nil
	}

	project, err := h.createProject(ctx, c.Subject)
	if err != nil {
		return nil, err
	}
	return &Result{
		Kind:          KindClarification,
		Reply:         fmt.Sprintf("Okay, I started a separate project called %s.", c.Subject),
		Justification: "clarification answered: new project",
		Memories:      []*types.Memory{project},
		Clarification: c,
	}, nil
}

// DeclareProject creates a project record, or raises a clarification when
// a project of the same name already exists.
func (h *Handler) DeclareProject(ctx context.Context, msg string) (*Result, error) {
	name, ok := ParseProjectDeclaration(msg)
	if !ok {
		return nil, nil
	}

	existing := h.findProject(ctx, name)
	if existing == nil {
		project, err := h.createProject(ctx, name)
		if err != nil {
			return nil, err
		}
		return &Result{
			Kind:          KindProject,
			Reply:         fmt.Sprintf("Noted. I created a project called %s.", name),
			Justification: "new project declared",
			Memories:      []*types.Memory{project},
		}, nil
	}

	pending, err := h.records.Clarifications.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range pending {
		if c.ExistingID == existing.ID {
			return &Result{
				Kind:          KindProject,
				Reply:         c.Question,
				Justification: "project name collision already awaiting an answer",
				Clarification: c,
			}, nil
		}
	}

	c := &types.PendingClarification{
		ID:         types.NewID("clarify"),
		Kind:       types.ClarificationProjectCollision,
		Subject:    name,
		ExistingID: existing.ID,
		Question:   fmt.Sprintf("You already have a project called %s. Is this the same project or a new one?", name),
		CreatedAt:  h.now(),
	}
	if err := h.records.Clarifications.Upsert(ctx, c); err != nil {
		return nil, err
	}
	return &Result{
		Kind:          KindProject,
		Reply:         c.Question,
		Justification: "project name collision: asking before merging or duplicating",
		Clarification: c,
	}, nil
}

func (h *Handler) findProject(ctx context.Context, name string) *types.Memory {
	topic := strings.ToLower(name)
	for _, m := range h.records.ListMemories(ctx) {
		if table, _ := m.Metadata[types.MetaTable].(string); table != TableProjects {
			continue
		}
		if t, _ := m.Metadata[types.MetaTopic].(string); t == topic {
			return m
		}
	}
	return nil
}

func (h *Handler) createProject(ctx context.Context, name string) (*types.Memory, error) {
	base := "work/projects/" + slug(name)
	taken := make(map[string]bool)
	for _, m := range h.records.ListMemories(ctx) {
		if f, ok := projectFolder(m.FolderPath(), base); ok {
			taken[f] = true
		}
	}
	folder := base
	for n := 2; taken[folder]; n++ {
		folder = fmt.Sprintf("%s-%d", base, n)
	}

	m := types.NewMemory(types.MemoryInput{
		Content:        "Project: " + name,
		Domain:         types.DomainWork,
		Type:           types.TypeEvent,
		Entity:         name,
		Speaker:        types.SpeakerUser,
		Confidence:     0.9,
		Salience:       0.8,
		TrustScore:     0.9,
		RecallPriority: types.PriorityHigh,
		Justification:  "declared by the user",
		Metadata: map[string]interface{}{
			types.MetaFolderPath: folder,
			types.MetaTable:      TableProjects,
			types.MetaTopic:      strings.ToLower(name),
		},
	}, h.now())
	if err := h.records.AddMemory(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// projectFolder reports the project folder f lives in when that folder is
// base or a numbered sibling of it ("base-2").
func projectFolder(f, base string) (string, bool) {
	top := f
	if i := strings.Index(f[min(len(f), len(base)):], "/"); i >= 0 {
		top = f[:len(base)+i]
	}
	if top == base {
		return top, true
	}
	suffix, ok := strings.CutPrefix(top, base+"-")
	if !ok {
		return "", false
	}
	if _, err := strconv.Atoi(suffix); err != nil {
		return "", false
	}
	return top, true
}

// CreateReminder stores a Reminder and a linked task memory.
func (h *Handler) CreateReminder(ctx context.Context, msg string) (*Result, error) {
	now := h.now()
	text, due, ok := ParseReminder(msg, now)
	if !ok {
		return nil, nil
	}

	r := &types.Reminder{
		ID:        types.NewID("reminder"),
		Text:      text,
		DueAt:     due,
		CreatedAt: now,
	}
	m := types.NewMemory(types.MemoryInput{
		Content:       fmt.Sprintf("Reminder: %s (due %s)", text, due.Format("Mon 2 Jan 15:04")),
		Domain:        types.DomainPersonal,
		Type:          types.TypeTask,
		Entity:        "user",
		Speaker:       types.SpeakerUser,
		Confidence:    0.9,
		Salience:      0.7,
		TrustScore:    0.9,
		Justification: "reminder requested by the user",
		Metadata: map[string]interface{}{
			types.MetaFolderPath: TableReminders,
			types.MetaTable:      TableReminders,
			types.MetaReminderID: r.ID,
		},
	}, now)
	r.MemoryID = m.ID

	if err := h.records.Reminders.Upsert(ctx, r); err != nil {
		return nil, err
	}
	if err := h.records.AddMemory(ctx, m); err != nil {
		return nil, err
	}
	return &Result{
		Kind:          KindReminder,
		Reply:         fmt.Sprintf("I'll remind you to %s on %s.", text, due.Format("Mon 2 Jan at 15:04")),
		Justification: "reminder parsed from request",
		Memories:      []*types.Memory{m},
		Reminder:      r,
	}, nil
}

// RecordPreference stores a first-person preference.
func (h *Handler) RecordPreference(ctx context.Context, msg string) (*Result, error) {
	verb, object, ok := ParsePreference(msg)
	if !ok {
		return nil, nil
	}
	m := types.NewMemory(types.MemoryInput{
		Content:       strings.TrimSpace(msg),
		Domain:        types.DomainPersonal,
		Type:          types.TypePreference,
		Entity:        "user",
		Speaker:       types.SpeakerUser,
		Confidence:    0.9,
		Salience:      0.6,
		TrustScore:    0.9,
		Justification: "first-person preference (" + verb + ")",
		Metadata: map[string]interface{}{
			types.MetaFolderPath: TablePreferences,
			types.MetaTable:      TablePreferences,
			types.MetaTopic:      strings.ToLower(object),
		},
	}, h.now())
	if err := h.records.AddMemory(ctx, m); err != nil {
		return nil, err
	}
	return &Result{
		Kind:          KindPreference,
		Reply:         fmt.Sprintf("Noted, you %s %s.", verb, object),
		Justification: m.Justification,
		Memories:      []*types.Memory{m},
	}, nil
}

// RecordFriendFact stores a fact about a named friend and keeps the
// friend's Person record in step.
func (h *Handler) RecordFriendFact(ctx context.Context, msg string) (*Result, error) {
	name, fact, ok := ParseFriendFact(msg)
	if !ok {
		return nil, nil
	}
	now := h.now()

	if err := h.upsertFriend(ctx, name, fact, now); err != nil {
		return nil, err
	}

	m := types.NewMemory(types.MemoryInput{
		Content:       fact,
		Domain:        types.DomainPersonal,
		Type:          types.TypeFact,
		Entity:        name,
		Speaker:       types.SpeakerUser,
		Confidence:    0.85,
		Salience:      0.6,
		TrustScore:    0.8,
		Justification: "fact about a friend",
		Metadata: map[string]interface{}{
			types.MetaFolderPath: "friends/" + slug(name),
			types.MetaTable:      TableFriends,
			types.MetaTopic:      strings.ToLower(name),
		},
	}, now)
	if err := h.records.AddMemory(ctx, m); err != nil {
		return nil, err
	}
	return &Result{
		Kind:          KindFriend,
		Reply:         fmt.Sprintf("Got it. I'll remember that %s.", fact),
		Justification: m.Justification,
		Memories:      []*types.Memory{m},
	}, nil
}

func (h *Handler) upsertFriend(ctx context.Context, name, fact string, now time.Time) error {
	people, err := h.records.People.All(ctx)
	if err != nil {
		return err
	}
	for _, p := range people {
		if strings.EqualFold(p.Name, name) {
			p.Notes = append(p.Notes, fact)
			p.UpdatedAt = now
			return h.records.People.Upsert(ctx, p)
		}
	}
	return h.records.People.Upsert(ctx, &types.Person{
		ID:           types.NewID("person"),
		Name:         name,
		Relationship: "friend",
		Notes:        []string{fact},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}
