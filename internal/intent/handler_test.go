package intent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mneme/internal/intent"
	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/pkg/types"
)

func newHandler(t *testing.T) (*intent.Handler, *storage.Records) {
	t.Helper()
	records := storage.NewRecords(storage.NewMemoryKV(), nil)
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	return intent.NewHandler(records, func() time.Time { return now }), records
}

func projectNodes(t *testing.T, records *storage.Records) []*types.Memory {
	t.Helper()
	var out []*types.Memory
	for _, m := range records.ListMemories(context.Background()) {
		if m.Metadata[types.MetaTable] == intent.TableProjects {
			out = append(out, m)
		}
	}
	return out
}

func TestDeclareProjectTwiceAsksInsteadOfDuplicating(t *testing.T) {
	h, records := newHandler(t)
	ctx := context.Background()

	first, err := h.Handle(ctx, "new project called Atlas")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, intent.KindProject, first.Kind)
	assert.Nil(t, first.Clarification)

	second, err := h.Handle(ctx, "I'm starting a new project called Atlas")
	require.NoError(t, err)
	require.NotNil(t, second)
	require.NotNil(t, second.Clarification, "collision must produce a pending clarification")
	assert.Equal(t, types.ClarificationProjectCollision, second.Clarification.Kind)

	assert.Len(t, projectNodes(t, records), 1)

	third, err := h.Handle(ctx, "new project called Atlas")
	require.NoError(t, err)
	assert.Equal(t, second.Clarification.ID, third.Clarification.ID, "one open question per collision")

	n, err := records.Clarifications.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResolveClarification_Same(t *testing.T) {
	h, records := newHandler(t)
	ctx := context.Background()

	_, err := h.Handle(ctx, "new project called Atlas")
	require.NoError(t, err)
	_, err = h.Handle(ctx, "new project called Atlas")
	require.NoError(t, err)

	res, err := h.Handle(ctx, "same")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, intent.KindClarification, res.Kind)

	nodes := projectNodes(t, records)
	require.Len(t, nodes, 1)
	assert.Equal(t, 2, nodes[0].AccessCount)

	n, err := records.Clarifications.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResolveClarification_New(t *testing.T) {
	h, records := newHandler(t)
	ctx := context.Background()

	_, err := h.Handle(ctx, "new project called Atlas")
	require.NoError(t, err)
	_, err = h.Handle(ctx, "new project called Atlas")
	require.NoError(t, err)

	res, err := h.Handle(ctx, "a new one")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Memories, 1)

	nodes := projectNodes(t, records)
	require.Len(t, nodes, 2)
	assert.NotEqual(t, nodes[0].FolderPath(), nodes[1].FolderPath())
}

func TestProjectFolderIgnoresLongerNames(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	_, err := h.Handle(ctx, "new project called Atlas")
	require.NoError(t, err)
	res, err := h.Handle(ctx, "new project called At")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Memories, 1)
	assert.Equal(t, "work/projects/at", res.Memories[0].FolderPath())

	_, err = h.Handle(ctx, "new project called Atlas")
	require.NoError(t, err)
	res, err = h.Handle(ctx, "new")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "work/projects/atlas-2", res.Memories[0].FolderPath())
}

func TestClarificationAnswerWithoutPendingFallsThrough(t *testing.T) {
	h, _ := newHandler(t)
	res, err := h.Handle(context.Background(), "same")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestCreateReminder(t *testing.T) {
	h, records := newHandler(t)
	ctx := context.Background()

	res, err := h.Handle(ctx, "remind me to call Ana in 10 minutes")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotNil(t, res.Reminder)
	assert.Equal(t, intent.KindReminder, res.Kind)

	stored, err := records.Reminders.Get(ctx, res.Reminder.ID)
	require.NoError(t, err)
	assert.Equal(t, "call Ana", stored.Text)
	assert.Equal(t, res.Memories[0].ID, stored.MemoryID)

	linked, err := records.Memories.Get(ctx, stored.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, types.TypeTask, linked.Type)
	assert.Equal(t, stored.ID, linked.Metadata[types.MetaReminderID])
}

func TestCreateReminder_TextMentionsPlace(t *testing.T) {
	h, records := newHandler(t)
	ctx := context.Background()

	res, err := h.Handle(ctx, "remind me to meet Ana at the cafe in 10 minutes")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotNil(t, res.Reminder)

	stored, err := records.Reminders.Get(ctx, res.Reminder.ID)
	require.NoError(t, err)
	assert.Equal(t, "meet Ana at the cafe", stored.Text)
	assert.True(t, stored.DueAt.Equal(time.Date(2025, 3, 10, 14, 10, 0, 0, time.UTC)))
}

func TestRecordPreference(t *testing.T) {
	h, records := newHandler(t)
	res, err := h.Handle(context.Background(), "I love hiking")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, intent.KindPreference, res.Kind)

	mems := records.ListMemories(context.Background())
	require.Len(t, mems, 1)
	assert.Equal(t, types.TypePreference, mems[0].Type)
}

func TestRecordFriendFact(t *testing.T) {
	h, records := newHandler(t)
	ctx := context.Background()

	_, err := h.Handle(ctx, "my friend Ana is a nurse")
	require.NoError(t, err)
	res, err := h.Handle(ctx, "my friend Ana likes sushi")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "friends/ana", res.Memories[0].FolderPath())

	people, err := records.People.All(ctx)
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, []string{"Ana is a nurse", "Ana likes sushi"}, people[0].Notes)
}

func TestNoIntent(t *testing.T) {
	h, _ := newHandler(t)
	res, err := h.Handle(context.Background(), "what is on my calendar")
	require.NoError(t, err)
	assert.Nil(t, res)
}
