package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/session"
)

func newTestManager(now func() time.Time) (*Manager, *session.MemoryStore) {
	store := session.NewMemoryStore(session.Options{Now: now})
	return NewManager(store, logger.Nop()).WithClock(now), store
}

func TestAppendMessageEvictsOldestFirst(t *testing.T) {
	m, _ := newTestManager(time.Now)
	s := session.NewSession("u", time.Now())

	for i := 0; i < 27; i++ {
		m.AppendMessage(s, models.ConversationMessage{Role: models.RoleUser, Content: fmt.Sprintf("msg-%d", i)})
	}

	require.Len(t, s.History, session.MaxHistory)
	for i, msg := range s.History {
		assert.Equal(t, fmt.Sprintf("msg-%d", i+7), msg.Content)
		assert.NotEmpty(t, msg.ID)
		assert.False(t, msg.Timestamp.IsZero())
	}
}

func TestUpdateContextLastWriteWins(t *testing.T) {
	m, _ := newTestManager(time.Now)
	s := session.NewSession("u", time.Now())

	m.UpdateContext(s, "preferred_channel", "sms")
	m.UpdateContext(s, "preferred_channel", "whatsapp")

	v, ok := m.ContextValue(s, "preferred_channel")
	assert.True(t, ok)
	assert.Equal(t, "whatsapp", v)
}

func TestResolveReferenceNewestFirst(t *testing.T) {
	m, _ := newTestManager(time.Now)
	s := session.NewSession("u", time.Now())

	m.AppendMessage(s, models.ConversationMessage{Role: models.RoleSystem, Content: "PM-KISAN", Schemes: []string{"pm-kisan"}})
	m.AppendMessage(s, models.ConversationMessage{Role: models.RoleSystem, Content: "Ayushman", Schemes: []string{"ayushman-bharat"}})
	m.AppendMessage(s, models.ConversationMessage{Role: models.RoleUser, Content: "tell me more about it"})

	id, err := m.ResolveReference(s, []string{"it"})
	require.NoError(t, err)
	assert.Equal(t, "ayushman-bharat", id)

	id, err = m.ResolveReference(s, []string{"That Scheme"})
	require.NoError(t, err)
	assert.Equal(t, "ayushman-bharat", id)
}

func TestResolveReferenceNoReferent(t *testing.T) {
	m, _ := newTestManager(time.Now)
	s := session.NewSession("u", time.Now())
	m.AppendMessage(s, models.ConversationMessage{Role: models.RoleUser, Content: "hello"})

	_, err := m.ResolveReference(s, []string{"it"})
	assert.ErrorIs(t, err, ErrNoReferent)

	_, err = m.ResolveReference(s, []string{"banana"})
	assert.ErrorIs(t, err, ErrNoReferent)
}

func TestResolveReferenceMentionEvicted(t *testing.T) {
	m, _ := newTestManager(time.Now)
	s := session.NewSession("u", time.Now())
	m.AppendMessage(s, models.ConversationMessage{Role: models.RoleSystem, Schemes: []string{"old"}})
	for i := 0; i < session.MaxHistory; i++ {
		m.AppendMessage(s, models.ConversationMessage{Role: models.RoleUser, Content: "filler"})
	}

	_, err := m.ResolveReference(s, nil)
	assert.ErrorIs(t, err, ErrNoReferent)
}

func TestResolveReferenceOrdinals(t *testing.T) {
	m, _ := newTestManager(time.Now)
	s := session.NewSession("u", time.Now())
	m.RememberMatches(s, []string{"a", "b", "c"})

	cases := map[string]string{
		"second":         "b",
		"the second one": "b",
		"3rd":            "c",
		"1":              "a",
		"last":           "c",
		"pehla":          "a",
	}
	for mention, want := range cases {
		got, err := m.ResolveReference(s, []string{mention})
		require.NoError(t, err, mention)
		assert.Equal(t, want, got, mention)
	}

	_, err := m.ResolveReference(s, []string{"fifth"})
	assert.ErrorIs(t, err, ErrNoReferent)
}

func TestRestoreOrStart(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m, _ := newTestManager(clock)
	ctx := context.Background()

	s, resumed, err := m.RestoreOrStart(ctx, "u")
	require.NoError(t, err)
	assert.False(t, resumed)
	m.UpdateContext(s, "k", "v")
	require.NoError(t, m.Save(ctx, s))

	now = now.Add(23 * time.Hour)
	s, resumed, err = m.RestoreOrStart(ctx, "u")
	require.NoError(t, err)
	assert.True(t, resumed)
	v, _ := m.ContextValue(s, "k")
	assert.Equal(t, "v", v)

	now = now.Add(25 * time.Hour)
	s, resumed, err = m.RestoreOrStart(ctx, "u")
	require.NoError(t, err)
	assert.False(t, resumed)
	_, ok := m.ContextValue(s, "k")
	assert.False(t, ok)
}

func TestSwitchFlowAndResume(t *testing.T) {
	m, _ := newTestManager(time.Now)
	s := session.NewSession("u", time.Now())
	s.CurrentFlow = models.FlowRegistration
	s.Context.PendingField = "district"
	s.Context.Registration = map[string]string{"name": "Asha", "state": "Bihar"}

	m.SwitchFlow(s, models.FlowSchemeSearch)
	assert.Equal(t, models.FlowSchemeSearch, s.CurrentFlow)
	assert.Empty(t, s.Context.PendingField)

	snap, ok := m.Interrupted(s)
	require.True(t, ok)
	assert.Equal(t, models.FlowRegistration, snap.Flow)
	assert.Equal(t, "district", snap.PendingField)

	m.FinishFlow(s)
	assert.Equal(t, models.FlowIdle, s.CurrentFlow)
	_, ok = m.Interrupted(s)
	assert.True(t, ok, "finishing the search must not drop the interrupted registration")

	require.True(t, m.Resume(s))
	assert.Equal(t, models.FlowRegistration, s.CurrentFlow)
	assert.Equal(t, "district", s.Context.PendingField)
	assert.Equal(t, "Bihar", s.Context.Registration["state"])
	assert.Nil(t, s.Context.Interrupted)
}

func TestSwitchFlowToSameFlowKeepsState(t *testing.T) {
	m, _ := newTestManager(time.Now)
	s := session.NewSession("u", time.Now())
	s.CurrentFlow = models.FlowApplication
	s.Context.PendingField = "ifsc_code"

	m.SwitchFlow(s, models.FlowApplication)
	assert.Equal(t, models.FlowApplication, s.CurrentFlow)
	assert.Equal(t, "ifsc_code", s.Context.PendingField)
	assert.Nil(t, s.Context.Interrupted)
}

func TestContextSummary(t *testing.T) {
	m, _ := newTestManager(time.Now)
	s := session.NewSession("u", time.Now())
	s.CurrentFlow = models.FlowRegistration
	s.Context.PendingField = "age"
	m.AppendMessage(s, models.ConversationMessage{Role: models.RoleSystem, Schemes: []string{"pm-kisan"}})

	sum := m.ContextSummary(s)
	assert.Equal(t, "registration", sum["flow"])
	assert.Equal(t, "age", sum["pending_field"])
	assert.Equal(t, "pm-kisan", sum["last_scheme"])
}
