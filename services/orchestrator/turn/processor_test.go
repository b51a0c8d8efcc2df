package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/conversation"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/flow"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/matching"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/metrics"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/session"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/store"
)

const identity = "9876543210"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scripted returns queued extractions by message text; unknown text is UNCLEAR.
type scripted struct {
	mu      sync.Mutex
	byText  map[string]Extraction
	err     error
	calls   int
	summary map[string]string
}

func (s *scripted) Extract(_ context.Context, text, _ string, summary map[string]string) (Extraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.summary = summary
	if s.err != nil {
		return Extraction{}, s.err
	}
	if ext, ok := s.byText[text]; ok {
		return ext, nil
	}
	return Extraction{Intent: models.IntentUnclear, Confidence: 0.9}, nil
}

type outbox struct {
	mu   sync.Mutex
	sent map[string][]models.Outbound
}

func (o *outbox) Send(_ context.Context, identity string, msgs []models.Outbound) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent[identity] = append(o.sent[identity], msgs...)
	return nil
}

// flakyStore fails the next conflicts saves with a version conflict.
type flakyStore struct {
	*session.MemoryStore
	mu        sync.Mutex
	conflicts int
}

func (f *flakyStore) Save(ctx context.Context, s *models.Session) error {
	f.mu.Lock()
	if f.conflicts > 0 {
		f.conflicts--
		f.mu.Unlock()
		return session.ErrVersionConflict
	}
	f.mu.Unlock()
	return f.MemoryStore.Save(ctx, s)
}

type fixture struct {
	p        *Processor
	clock    *clock
	sessions *flakyStore
	ext      *scripted
	out      *outbox
	profiles *store.ProfileRepo
	apps     *store.ApplicationRepo
	schemes  *store.SchemeRepo
	metrics  *metrics.Metrics
}

func intp(v int) *int { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{now: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := store.Open("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	log := logger.Nop()
	schemes := store.NewSchemeRepo(db, log)
	for _, sc := range []models.Scheme{
		{ID: "health-cover", Name: "Health Cover", Eligibility: models.Eligibility{AgeMin: intp(18)},
			Benefit: "Rs 5 lakh cover", BenefitAmount: 500000, RequiredDocuments: []string{"Aadhaar"},
			Jurisdiction: models.Jurisdiction{Level: models.JurisdictionCentral}, Category: "health", Active: true},
		{ID: "farm-support", Name: "Farm Support", Eligibility: models.Eligibility{Occupations: []string{"farmer"}},
			Benefit: "Rs 6000 a year", BenefitAmount: 6000, RequiredDocuments: []string{"Aadhaar", "Land record"},
			Jurisdiction: models.Jurisdiction{Level: models.JurisdictionCentral}, Category: "agriculture", Active: true},
	} {
		_, _, err := schemes.Upsert(context.Background(), sc)
		require.NoError(t, err)
	}

	profiles := store.NewProfileRepo(db, log, nil)
	apps := store.NewApplicationRepo(db, log, nil)
	engine := matching.NewEngine(schemes, log, matching.WithClock(c.Now))

	sessions := &flakyStore{MemoryStore: session.NewMemoryStore(session.Options{Now: c.Now})}
	convo := conversation.NewManager(sessions, log).WithClock(c.Now)
	machine, err := flow.NewMachine(flow.Deps{
		Conversation: convo,
		Matcher:      engine,
		Profiles:     profiles,
		Applications: apps,
	}, nil, log)
	require.NoError(t, err)

	f := &fixture{
		clock:    c,
		sessions: sessions,
		ext:      &scripted{byText: map[string]Extraction{}},
		out:      &outbox{sent: map[string][]models.Outbound{}},
		profiles: profiles,
		apps:     apps,
		schemes:  schemes,
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	f.p = NewProcessor(Deps{
		Conversation: convo,
		Machine:      machine,
		Extractor:    f.ext,
		Matcher:      engine,
		Profiles:     profiles,
		Delivery:     f.out,
		Metrics:      f.metrics,
	}, Options{Now: c.Now}, log)
	return f
}

func (f *fixture) register(t *testing.T, occupation string) {
	t.Helper()
	require.NoError(t, f.profiles.Create(context.Background(), models.Profile{
		Identity: identity, Name: "Meena", Age: 38, State: "Odisha", District: "Puri",
		Occupation: occupation, IncomeCategory: "below_1L", Language: "en",
	}))
}

func (f *fixture) turn(t *testing.T, text string) []models.Outbound {
	t.Helper()
	outs, err := f.p.ProcessTurn(context.Background(), identity, text, "")
	require.NoError(t, err)
	return outs
}

func texts(outs []models.Outbound) []string {
	var out []string
	for _, o := range outs {
		if o.Type == OutboundMessage {
			out = append(out, o.Text)
		}
	}
	return out
}

func TestFirstTurnGreetsNewUser(t *testing.T) {
	f := newFixture(t)

	outs := f.turn(t, "hello")
	require.NotEmpty(t, outs)
	assert.Equal(t, flow.Text("en", "welcome_new"), outs[0].Text)

	outs = f.turn(t, "hello again")
	assert.NotContains(t, texts(outs), flow.Text("en", "welcome_new"))
}

func TestReturningUserGreetedByName(t *testing.T) {
	f := newFixture(t)
	f.register(t, "farmer")

	outs := f.turn(t, "hello")
	require.NotEmpty(t, outs)
	assert.Equal(t, flow.Text("en", "welcome_back", "Meena"), outs[0].Text)
	assert.Contains(t, outs[0].Text, "Meena")
}

func TestChannelLanguageAppliesToNewSession(t *testing.T) {
	f := newFixture(t)
	outs, err := f.p.ProcessTurn(context.Background(), identity, "namaste", "hi")
	require.NoError(t, err)
	assert.Equal(t, flow.Text("hi", "welcome_new"), outs[0].Text)

	s, err := f.sessions.Inspect(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, "hi", s.Language)
}

func TestDuplicateTurnWithinWindowIsDropped(t *testing.T) {
	f := newFixture(t)

	f.turn(t, "hello")
	outs := f.turn(t, "hello")
	assert.Nil(t, outs)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DuplicateTurns))
	assert.Equal(t, 1, f.ext.calls)

	f.clock.Advance(DefaultDedupWindow)
	outs = f.turn(t, "hello")
	assert.NotEmpty(t, outs)
	assert.Equal(t, 2, f.ext.calls)
}

func TestExtractorFailureFallsBackToKeywords(t *testing.T) {
	f := newFixture(t)
	f.register(t, "farmer")
	f.ext.err = errors.New("connection refused")

	outs := f.turn(t, "show me schemes")
	assert.Contains(t, strings.Join(texts(outs), "\n"), "Farm Support")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Intents.WithLabelValues(string(models.IntentSearchSchemes), "keywords")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Failures.WithLabelValues(string(FailureTransient))))
}

func TestLowConfidenceBecomesUnclear(t *testing.T) {
	f := newFixture(t)
	f.ext.byText["register me maybe"] = Extraction{Intent: models.IntentRegister, Confidence: 0.3}

	f.turn(t, "register me maybe")
	s, err := f.sessions.Inspect(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, models.FlowAwaitingClarification, s.CurrentFlow)
	assert.Equal(t, 1, s.Context.Clarifications)
}

func TestHistoryRecordsTurnsAndMentions(t *testing.T) {
	f := newFixture(t)
	f.register(t, "farmer")
	f.ext.byText["schemes please"] = Extraction{Intent: models.IntentSearchSchemes, Confidence: 0.9}
	f.ext.byText["tell me about it"] = Extraction{Intent: models.IntentSchemeDetails, Confidence: 0.9}

	f.turn(t, "schemes please")
	s, err := f.sessions.Inspect(context.Background(), identity)
	require.NoError(t, err)
	require.Len(t, s.History, 2)
	assert.Equal(t, models.RoleUser, s.History[0].Role)
	assert.Equal(t, models.IntentSearchSchemes, s.History[0].Intent)
	assert.Equal(t, models.RoleSystem, s.History[1].Role)
	require.NotEmpty(t, s.History[1].Schemes)
	top := s.History[1].Schemes[0]
	assert.Equal(t, top, s.Context.LastMatches[0])

	outs := f.turn(t, "tell me about it")
	sc, err := f.schemes.Scheme(context.Background(), top)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(texts(outs)[0], sc.Name))
	assert.Equal(t, top, f.ext.summary["last_scheme"])
}

func TestConflictIsRetriedOnce(t *testing.T) {
	f := newFixture(t)
	f.sessions.conflicts = 1

	outs := f.turn(t, "hello")
	assert.NotEmpty(t, outs)
	s, err := f.sessions.Inspect(context.Background(), identity)
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.Version)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionConflicts.WithLabelValues("true")))
}

func TestRepeatedConflictAsksToTryAgain(t *testing.T) {
	f := newFixture(t)
	f.turn(t, "hello")
	before, err := f.sessions.Inspect(context.Background(), identity)
	require.NoError(t, err)

	f.sessions.conflicts = 2
	outs, err := f.p.ProcessTurn(context.Background(), identity, "second message", "")
	require.Error(t, err)
	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, FailureStateConflict, terr.Kind)
	assert.ErrorIs(t, err, session.ErrVersionConflict)
	require.Len(t, outs, 1)
	assert.Equal(t, flow.Text("en", "try_again"), outs[0].Text)

	after, err := f.sessions.Inspect(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.History, after.History)
}

func TestConcurrentTurnsForOneIdentityAreSerialized(t *testing.T) {
	f := newFixture(t)
	const n = 12

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.p.ProcessTurn(context.Background(), identity, fmt.Sprintf("message %d", i), "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	s, err := f.sessions.Inspect(context.Background(), identity)
	require.NoError(t, err)
	assert.EqualValues(t, n, s.Version)
	assert.Len(t, s.History, session.MaxHistory)
}

func TestEmptyIdentityIsRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.ProcessTurn(context.Background(), " ", "hi", "")
	assert.ErrorIs(t, err, ErrEmptyIdentity)
}

func TestProfileChangeNotifiesNewlyEligibleSchemes(t *testing.T) {
	f := newFixture(t)
	f.register(t, "labourer")
	f.turn(t, "hello")

	before, err := f.profiles.Get(context.Background(), identity)
	require.NoError(t, err)
	after := before
	after.Occupation = "farmer"

	f.p.ProfileChanged(context.Background(), before, after)

	sent := f.out.sent[identity]
	require.Len(t, sent, 1)
	assert.Equal(t, flow.Text("en", "new_matches", "Farm Support"), sent[0].Text)

	s, err := f.sessions.Inspect(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, []string{"farm-support"}, s.Context.LastMatches)
	assert.Equal(t, []string{"farm-support"}, s.History[len(s.History)-1].Schemes)
}

func TestProfileChangeWithoutEligibilityChangeIsIgnored(t *testing.T) {
	f := newFixture(t)
	before := models.Profile{Identity: identity, Name: "Meena", Occupation: "farmer", Age: 38}
	after := before
	after.Name = "Meena Das"

	f.p.ProfileChanged(context.Background(), before, after)
	assert.Empty(t, f.out.sent[identity])
}

func TestApplicationStatusChangeIsForwarded(t *testing.T) {
	f := newFixture(t)
	f.register(t, "farmer")
	app, err := f.apps.Create(context.Background(), models.Application{SchemeID: "farm-support", Identity: identity})
	require.NoError(t, err)
	app.Status = models.StatusApproved

	f.p.ApplicationStatusChanged(context.Background(), app, models.StatusSubmitted)

	sent := f.out.sent[identity]
	require.Len(t, sent, 1)
	assert.Equal(t, flow.Text("en", "status_changed", "Farm Support", app.ID, "approved"), sent[0].Text)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Notifications.WithLabelValues("status_changed")))
}

func TestRetryAfterFailedTurnIsProcessed(t *testing.T) {
	f := newFixture(t)
	f.turn(t, "hello")

	f.sessions.conflicts = 2
	outs, err := f.p.ProcessTurn(context.Background(), identity, "second message", "")
	require.Error(t, err)
	assert.Equal(t, flow.Text("en", "try_again"), outs[0].Text)

	outs, err = f.p.ProcessTurn(context.Background(), identity, "second message", "")
	require.NoError(t, err)
	assert.NotEmpty(t, outs)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.DuplicateTurns))

	s, err := f.sessions.Inspect(context.Background(), identity)
	require.NoError(t, err)
	var users []string
	for _, m := range s.History {
		if m.Role == models.RoleUser {
			users = append(users, m.Content)
		}
	}
	assert.Equal(t, []string{"hello", "second message"}, users)
}

// fillFarmSupportForm walks a registered user to the confirmation step of an
// application for farm-support.
func (f *fixture) fillFarmSupportForm(t *testing.T) {
	t.Helper()
	f.ext.byText["apply for farm support"] = Extraction{
		Intent:     models.IntentStartApplication,
		Entities:   map[string]string{"scheme_id": "farm-support"},
		Confidence: 0.9,
	}
	f.turn(t, "apply for farm support")
	f.turn(t, "123456789012")
	f.turn(t, "001234567890")
	f.turn(t, "SBIN0001234")

	s, err := f.sessions.Inspect(context.Background(), identity)
	require.NoError(t, err)
	require.NotNil(t, s.Context.Draft)
	require.True(t, s.Context.Draft.Confirming)
}

func TestSubmitConflictStoresOneApplication(t *testing.T) {
	f := newFixture(t)
	f.register(t, "farmer")
	f.fillFarmSupportForm(t)

	f.sessions.conflicts = 1
	outs := f.turn(t, "yes")
	assert.Contains(t, outs, models.Outbound{Type: OutboundAction, Action: string(flow.ActionApplicationSubmitted)})

	apps, err := f.apps.List(context.Background(), identity)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Contains(t, strings.Join(texts(outs), "\n"), apps[0].ID)
	assert.Equal(t, "SBIN0001234", apps[0].Fields["ifsc_code"])
}

func TestFailedSubmitCanBeConfirmedAgain(t *testing.T) {
	f := newFixture(t)
	f.register(t, "farmer")
	f.fillFarmSupportForm(t)

	f.sessions.conflicts = 2
	outs, err := f.p.ProcessTurn(context.Background(), identity, "yes", "")
	require.Error(t, err)
	assert.Equal(t, flow.Text("en", "try_again"), outs[0].Text)

	s, err := f.sessions.Inspect(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, models.FlowApplication, s.CurrentFlow)
	require.NotNil(t, s.Context.Draft)

	outs = f.turn(t, "yes")
	apps, err := f.apps.List(context.Background(), identity)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, s.Context.Draft.ApplicationID, apps[0].ID)
	assert.Contains(t, strings.Join(texts(outs), "\n"), apps[0].ID)
}

func TestRegistrationCompletesOnceUnderConflict(t *testing.T) {
	f := newFixture(t)
	f.ext.byText["register me"] = Extraction{Intent: models.IntentRegister, Confidence: 0.9}
	answers := map[string]string{
		flow.FieldLanguage:       "English",
		flow.FieldName:           "Meena Kumari",
		flow.FieldAge:            "38",
		flow.FieldState:          "Odisha",
		flow.FieldDistrict:       "Puri",
		flow.FieldOccupation:     "farmer",
		flow.FieldIncomeCategory: "BPL",
	}

	f.turn(t, "register me")
	var last []models.Outbound
	for i := 0; i < len(answers); i++ {
		s, err := f.sessions.Inspect(context.Background(), identity)
		require.NoError(t, err)
		if s.CurrentFlow != models.FlowRegistration {
			break
		}
		field := s.Context.PendingField
		require.Contains(t, answers, field)
		if field == flow.FieldIncomeCategory {
			f.sessions.conflicts = 1
		}
		last = f.turn(t, answers[field])
	}

	assert.Contains(t, last, models.Outbound{Type: OutboundAction, Action: string(flow.ActionProfileCreated)})
	assert.Equal(t, 1, strings.Count(strings.Join(texts(last), "\n"), flow.Text("en", "registration_done", "Meena Kumari")))

	p, err := f.profiles.Get(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, "Meena Kumari", p.Name)
	assert.Equal(t, "BPL", p.IncomeCategory)

	s, err := f.sessions.Inspect(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, models.FlowIdle, s.CurrentFlow)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionConflicts.WithLabelValues("true")))
}

func TestProcessorWithoutMetrics(t *testing.T) {
	f := newFixture(t)
	p := NewProcessor(Deps{
		Conversation: f.p.convo,
		Machine:      f.p.machine,
		Extractor:    f.ext,
		Matcher:      f.p.matcher,
		Profiles:     f.profiles,
		Delivery:     f.out,
	}, Options{Now: f.clock.Now}, logger.Nop())

	assert.NotPanics(t, func() {
		outs, err := p.ProcessTurn(context.Background(), identity, "hello", "")
		assert.NoError(t, err)
		assert.NotEmpty(t, outs)
	})
}
