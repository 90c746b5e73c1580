package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gigbridge/internal/models"
	"gigbridge/internal/pricing"
)

// memStore is an in-memory Store with the same conditional-update semantics
// as the GORM implementation, for driving the engine in tests.
type memStore struct {
	mu           sync.Mutex
	engagements  map[uint]*models.Engagement
	negotiations map[uint]*models.Negotiation
	rates        map[uint]pricing.RateCard
	balances     map[uint]float64
	credits      int

	nextEngagementID  uint
	nextNegotiationID uint
	nextSessionID     uint
}

func newMemStore() *memStore {
	return &memStore{
		engagements:  make(map[uint]*models.Engagement),
		negotiations: make(map[uint]*models.Negotiation),
		rates:        make(map[uint]pricing.RateCard),
		balances:     make(map[uint]float64),
	}
}

func copyEngagement(e *models.Engagement) *models.Engagement {
	c := *e
	c.DailySessions = make([]models.DailySession, len(e.DailySessions))
	copy(c.DailySessions, e.DailySessions)
	return &c
}

func (s *memStore) GetEngagement(_ context.Context, id uint) (*models.Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engagements[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEngagement(e), nil
}

func (s *memStore) CreateEngagement(_ context.Context, e *models.Engagement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEngagementID++
	e.ID = s.nextEngagementID
	for i := range e.DailySessions {
		s.nextSessionID++
		e.DailySessions[i].ID = s.nextSessionID
		e.DailySessions[i].EngagementID = e.ID
	}
	s.engagements[e.ID] = copyEngagement(e)
	return nil
}

func (s *memStore) UpdateEngagement(_ context.Context, e *models.Engagement, expectStatus ...models.EngagementStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.engagements[e.ID]
	if !ok {
		return ErrNotFound
	}
	if len(expectStatus) > 0 {
		match := false
		for _, st := range expectStatus {
			if stored.Status == st {
				match = true
				break
			}
		}
		if !match {
			return ErrConflict
		}
	}
	for i := range e.DailySessions {
		if e.DailySessions[i].ID == 0 {
			s.nextSessionID++
			e.DailySessions[i].ID = s.nextSessionID
			e.DailySessions[i].EngagementID = e.ID
		}
	}
	// balance_added_at is owned by SettleEngagement
	c := copyEngagement(e)
	c.BalanceAddedAt = stored.BalanceAddedAt
	s.engagements[e.ID] = c
	return nil
}

func (s *memStore) GetNegotiation(_ context.Context, id uint) (*models.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.negotiations[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *n
	return &c, nil
}

func (s *memStore) ListNegotiations(_ context.Context, engagementID uint) ([]models.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var chain []models.Negotiation
	for id := uint(1); id <= s.nextNegotiationID; id++ {
		if n, ok := s.negotiations[id]; ok && n.EngagementID == engagementID {
			chain = append(chain, *n)
		}
	}
	return chain, nil
}

func (s *memStore) CreateNegotiation(_ context.Context, n *models.Negotiation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextNegotiationID++
	n.ID = s.nextNegotiationID
	c := *n
	s.negotiations[n.ID] = &c
	return nil
}

func (s *memStore) UpdateNegotiationStatus(_ context.Context, id uint, from, to models.NegotiationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.negotiations[id]
	if !ok {
		return ErrNotFound
	}
	if n.Status != from {
		return ErrAlreadyResolved
	}
	n.Status = to
	return nil
}

func (s *memStore) GetProviderRates(_ context.Context, providerID uint) (pricing.RateCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rates[providerID], nil
}

func (s *memStore) UpdateDailySession(_ context.Context, session *models.DailySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engagements[session.EngagementID]
	if !ok {
		return ErrNotFound
	}
	for i := range e.DailySessions {
		if e.DailySessions[i].DayIndex == session.DayIndex {
			e.DailySessions[i] = *session
			return nil
		}
	}
	return ErrNotFound
}

func (s *memStore) SettleEngagement(_ context.Context, engagementID, providerID uint, amount float64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engagements[engagementID]
	if !ok {
		return false, ErrNotFound
	}
	if e.Status != models.EngagementCompleted || e.BalanceAddedAt != nil {
		return false, nil
	}
	if e.PaymentCompletedAt == nil || e.ClientCompletedAt == nil || e.ProviderCompletedAt == nil {
		return false, nil
	}
	t := at
	e.BalanceAddedAt = &t
	s.balances[providerID] += amount
	s.credits++
	return true, nil
}

const (
	clientID   = uint(1)
	providerID = uint(2)
	strangerID = uint(99)
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(s *memStore) *Engine {
	eng := New(s)
	eng.now = func() time.Time { return testNow }
	return eng
}

func ratesWith(hourly, daily, fixed float64) pricing.RateCard {
	rc := pricing.RateCard{}
	if hourly > 0 {
		rc.MinHourlyRate = &hourly
	}
	if daily > 0 {
		rc.MinDailyRate = &daily
	}
	if fixed > 0 {
		rc.MinFixedRate = &fixed
	}
	return rc
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func futureDate() *time.Time {
	return timePtr(testNow.AddDate(0, 0, 7))
}

func createHourly(t *testing.T, eng *Engine, price *float64, hours int) *models.Engagement {
	t.Helper()
	e, err := eng.CreateEngagement(context.Background(), clientID, CreateEngagementInput{
		ProviderID:  providerID,
		PricingMode: models.PricingHourly,
		Description: "fix the kitchen sink",
		Price:       price,
		Hours:       intPtr(hours),
		Date:        futureDate(),
	})
	if err != nil {
		t.Fatalf("CreateEngagement: %v", err)
	}
	return e
}

// payAndAccept walks an engagement from pending through an accepted
// negotiation and a confirmed payment, the common setup for completion tests.
func payAndAccept(t *testing.T, eng *Engine, engagementID uint) *models.Engagement {
	t.Helper()
	ctx := context.Background()
	n, err := eng.OpenNegotiation(ctx, engagementID, clientID, Terms{Message: "works for me"})
	if err != nil {
		t.Fatalf("OpenNegotiation: %v", err)
	}
	if _, err := eng.RespondNegotiation(ctx, n.ID, providerID, true); err != nil {
		t.Fatalf("RespondNegotiation(accept): %v", err)
	}
	e, err := eng.ConfirmPayment(ctx, engagementID, "paystack", "ENG-TEST-REF")
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	return e
}

func TestCreateEngagementAutoPricesFromRateCard(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)

	e := createHourly(t, eng, nil, 4)

	if e.Status != models.EngagementPending {
		t.Fatalf("status: got %s, want %s", e.Status, models.EngagementPending)
	}
	if e.ProposedPrice == nil || *e.ProposedPrice != 200 {
		t.Fatalf("auto price: got %v, want 200", e.ProposedPrice)
	}
}

func TestCreateEngagementRejectsSelfHire(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(store)

	_, err := eng.CreateEngagement(context.Background(), clientID, CreateEngagementInput{
		ProviderID:  clientID,
		PricingMode: models.PricingFixed,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("self hire: got %v, want ErrValidation", err)
	}
}

func TestCreateDailyEngagementBuildsSessions(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(0, 100, 0)
	eng := newTestEngine(store)

	start := futureDate()
	e, err := eng.CreateEngagement(context.Background(), clientID, CreateEngagementInput{
		ProviderID:  providerID,
		PricingMode: models.PricingDaily,
		Days:        intPtr(3),
		Date:        start,
	})
	if err != nil {
		t.Fatalf("CreateEngagement: %v", err)
	}
	if len(e.DailySessions) != 3 {
		t.Fatalf("sessions: got %d, want 3", len(e.DailySessions))
	}
	for i, s := range e.DailySessions {
		if s.DayIndex != i {
			t.Fatalf("session %d: day index %d", i, s.DayIndex)
		}
		want := start.AddDate(0, 0, i)
		if !s.ScheduledDate.Equal(want) {
			t.Fatalf("session %d: date %v, want %v", i, s.ScheduledDate, want)
		}
	}
}

func TestOpenNegotiationMovesEngagementToNegotiating(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := createHourly(t, eng, floatPtr(300), 4)

	if _, err := eng.OpenNegotiation(ctx, e.ID, strangerID, Terms{Message: "hi"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger proposal: got %v, want ErrUnauthorized", err)
	}

	n, err := eng.OpenNegotiation(ctx, e.ID, providerID, Terms{Price: floatPtr(350), Message: "rates went up"})
	if err != nil {
		t.Fatalf("OpenNegotiation: %v", err)
	}
	if n.Status != models.NegotiationPending {
		t.Fatalf("negotiation status: got %s", n.Status)
	}

	stored, _ := store.GetEngagement(ctx, e.ID)
	if stored.Status != models.EngagementNegotiating {
		t.Fatalf("engagement status: got %s, want %s", stored.Status, models.EngagementNegotiating)
	}
}

func TestOpenNegotiationOnClosedEngagement(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := createHourly(t, eng, floatPtr(300), 4)
	if _, err := eng.CancelEngagement(ctx, e.ID, clientID, false); err != nil {
		t.Fatalf("CancelEngagement: %v", err)
	}

	_, err := eng.OpenNegotiation(ctx, e.ID, clientID, Terms{Message: "actually..."})
	if !errors.Is(err, ErrEngagementClosed) {
		t.Fatalf("got %v, want ErrEngagementClosed", err)
	}
}

func TestRespondToOwnProposal(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := createHourly(t, eng, floatPtr(300), 4)
	n, err := eng.OpenNegotiation(ctx, e.ID, clientID, Terms{Price: floatPtr(250), Message: "can you do 250"})
	if err != nil {
		t.Fatalf("OpenNegotiation: %v", err)
	}

	_, err = eng.RespondNegotiation(ctx, n.ID, clientID, true)
	if !errors.Is(err, ErrSelfResponse) {
		t.Fatalf("got %v, want ErrSelfResponse", err)
	}
}

func TestAcceptCopiesTermsAndMovesToPaymentPending(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := createHourly(t, eng, floatPtr(300), 4)
	newDate := timePtr(testNow.AddDate(0, 0, 14))
	n, err := eng.OpenNegotiation(ctx, e.ID, providerID, Terms{
		Price:   floatPtr(350),
		Hours:   intPtr(6),
		Date:    newDate,
		Message: "six hours, new date",
	})
	if err != nil {
		t.Fatalf("OpenNegotiation: %v", err)
	}

	updated, err := eng.RespondNegotiation(ctx, n.ID, clientID, true)
	if err != nil {
		t.Fatalf("RespondNegotiation: %v", err)
	}
	if updated.Status != models.EngagementPaymentPending {
		t.Fatalf("status: got %s, want %s", updated.Status, models.EngagementPaymentPending)
	}
	if *updated.ProposedPrice != 350 || *updated.ProposedHours != 6 {
		t.Fatalf("terms not copied: price %v hours %v", *updated.ProposedPrice, *updated.ProposedHours)
	}
	if !updated.ScheduledDate.Equal(*newDate) {
		t.Fatalf("date not copied: %v", updated.ScheduledDate)
	}

	stored, _ := store.GetNegotiation(ctx, n.ID)
	if stored.Status != models.NegotiationAccepted {
		t.Fatalf("negotiation status: got %s", stored.Status)
	}
}

func TestAcceptWithoutPriceAutoPrices(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := createHourly(t, eng, floatPtr(300), 4)
	n, err := eng.OpenNegotiation(ctx, e.ID, clientID, Terms{Hours: intPtr(8), Message: "make it a full day"})
	if err != nil {
		t.Fatalf("OpenNegotiation: %v", err)
	}

	updated, err := eng.RespondNegotiation(ctx, n.ID, providerID, true)
	if err != nil {
		t.Fatalf("RespondNegotiation: %v", err)
	}
	if updated.ProposedPrice == nil || *updated.ProposedPrice != 400 {
		t.Fatalf("auto price: got %v, want 400", updated.ProposedPrice)
	}
}

func TestRejectResolvesOnlyTheProposal(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := createHourly(t, eng, floatPtr(300), 4)
	n, err := eng.OpenNegotiation(ctx, e.ID, providerID, Terms{Price: floatPtr(500), Message: "premium rate"})
	if err != nil {
		t.Fatalf("OpenNegotiation: %v", err)
	}

	updated, err := eng.RespondNegotiation(ctx, n.ID, clientID, false)
	if err != nil {
		t.Fatalf("RespondNegotiation(reject): %v", err)
	}
	if updated.Status != models.EngagementNegotiating {
		t.Fatalf("stored status should stay negotiating, got %s", updated.Status)
	}
	if *updated.ProposedPrice != 300 {
		t.Fatalf("rejected terms must not apply: price %v", *updated.ProposedPrice)
	}

	// The effective status projects the dead end as cancelled.
	view, err := eng.GetEngagement(ctx, e.ID, clientID)
	if err != nil {
		t.Fatalf("GetEngagement: %v", err)
	}
	if view.EffectiveStatus != models.EngagementCancelled {
		t.Fatalf("effective status: got %s, want %s", view.EffectiveStatus, models.EngagementCancelled)
	}

	_, err = eng.RespondNegotiation(ctx, n.ID, clientID, true)
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("re-respond: got %v, want ErrAlreadyResolved", err)
	}
}

func TestCounterSupersedesOriginal(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := createHourly(t, eng, floatPtr(300), 4)
	first, err := eng.OpenNegotiation(ctx, e.ID, clientID, Terms{Price: floatPtr(250), Message: "250?"})
	if err != nil {
		t.Fatalf("OpenNegotiation: %v", err)
	}

	counter, err := eng.CounterPropose(ctx, first.ID, providerID, Terms{Price: floatPtr(280), Message: "meet me at 280"})
	if err != nil {
		t.Fatalf("CounterPropose: %v", err)
	}
	if counter.ProposerID != providerID {
		t.Fatalf("counter proposer: got %d, want %d", counter.ProposerID, providerID)
	}

	stored, _ := store.GetNegotiation(ctx, first.ID)
	if stored.Status != models.NegotiationCounterProposed {
		t.Fatalf("original status: got %s, want %s", stored.Status, models.NegotiationCounterProposed)
	}

	// Even with its stored status reset to pending, the original is not the
	// chain head and stays dead.
	store.negotiations[first.ID].Status = models.NegotiationPending
	_, err = eng.RespondNegotiation(ctx, first.ID, providerID, true)
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("respond to superseded: got %v, want ErrSuperseded", err)
	}

	// Accepting the counter closes the chain.
	updated, err := eng.RespondNegotiation(ctx, counter.ID, clientID, true)
	if err != nil {
		t.Fatalf("accept counter: %v", err)
	}
	if *updated.ProposedPrice != 280 {
		t.Fatalf("price: got %v, want 280", *updated.ProposedPrice)
	}
}

func TestConfirmPaymentRequiresPaymentPending(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := createHourly(t, eng, floatPtr(300), 4)
	_, err := eng.ConfirmPayment(ctx, e.ID, "paystack", "REF")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
}

func TestSingleConfirmationParksInPendingCompletion(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := createHourly(t, eng, floatPtr(300), 4)
	payAndAccept(t, eng, e.ID)

	updated, err := eng.RequestCompletion(ctx, e.ID, clientID)
	if err != nil {
		t.Fatalf("RequestCompletion: %v", err)
	}
	if updated.Status != models.EngagementPendingCompletion {
		t.Fatalf("status: got %s, want %s", updated.Status, models.EngagementPendingCompletion)
	}
	if updated.BalanceAddedAt != nil {
		t.Fatal("balance must not be credited on a single confirmation")
	}
	if store.balances[providerID] != 0 {
		t.Fatalf("provider balance: got %v, want 0", store.balances[providerID])
	}

	_, err = eng.RequestCompletion(ctx, e.ID, clientID)
	if !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("repeat confirmation: got %v, want ErrAlreadyConfirmed", err)
	}
}

func TestBothConfirmationsSettleExactlyOnce(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := createHourly(t, eng, floatPtr(300), 4)
	payAndAccept(t, eng, e.ID)

	if _, err := eng.RequestCompletion(ctx, e.ID, providerID); err != nil {
		t.Fatalf("provider confirmation: %v", err)
	}
	updated, err := eng.RequestCompletion(ctx, e.ID, clientID)
	if err != nil {
		t.Fatalf("client confirmation: %v", err)
	}

	if updated.Status != models.EngagementCompleted {
		t.Fatalf("status: got %s, want %s", updated.Status, models.EngagementCompleted)
	}
	if updated.BalanceAddedAt == nil {
		t.Fatal("BalanceAddedAt should be set after settlement")
	}
	if want := 300 * 0.95; store.balances[providerID] != want {
		t.Fatalf("provider balance: got %v, want %v", store.balances[providerID], want)
	}
	if store.credits != 1 {
		t.Fatalf("credits: got %d, want 1", store.credits)
	}

	// A completed engagement takes no further confirmations.
	_, err = eng.RequestCompletion(ctx, e.ID, clientID)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("confirmation after completion: got %v, want ErrConflict", err)
	}
	if store.credits != 1 {
		t.Fatalf("credits after replay: got %d, want 1", store.credits)
	}
}

func TestConcurrentCompletionSettlesOnce(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := createHourly(t, eng, floatPtr(300), 4)
	payAndAccept(t, eng, e.ID)
	if _, err := eng.RequestCompletion(ctx, e.ID, clientID); err != nil {
		t.Fatalf("client confirmation: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng.RequestCompletion(ctx, e.ID, providerID)
		}()
	}
	wg.Wait()

	if store.credits != 1 {
		t.Fatalf("credits: got %d, want 1", store.credits)
	}
	if want := 300 * 0.95; store.balances[providerID] != want {
		t.Fatalf("provider balance: got %v, want %v", store.balances[providerID], want)
	}
}

func newDailyEngagement(t *testing.T, eng *Engine, days int) *models.Engagement {
	t.Helper()
	e, err := eng.CreateEngagement(context.Background(), clientID, CreateEngagementInput{
		ProviderID:  providerID,
		PricingMode: models.PricingDaily,
		Days:        intPtr(days),
		Date:        futureDate(),
	})
	if err != nil {
		t.Fatalf("CreateEngagement(daily): %v", err)
	}
	return e
}

func TestDailyCompletionGatedOnSessions(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(0, 100, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := newDailyEngagement(t, eng, 3)
	payAndAccept(t, eng, e.ID)

	// No session is confirmed yet.
	_, err := eng.RequestCompletion(ctx, e.ID, clientID)
	if !errors.Is(err, ErrDailySessionsIncomplete) {
		t.Fatalf("got %v, want ErrDailySessionsIncomplete", err)
	}

	done := true
	for day := 0; day < 2; day++ {
		for _, caller := range []uint{clientID, providerID} {
			if _, err := eng.UpdateDailySession(ctx, e.ID, day, caller, SessionPatch{Completed: &done}); err != nil {
				t.Fatalf("UpdateDailySession(day %d, caller %d): %v", day, caller, err)
			}
		}
	}
	if _, err := eng.UpdateDailySession(ctx, e.ID, 2, clientID, SessionPatch{Completed: &done}); err != nil {
		t.Fatalf("client day 2: %v", err)
	}

	// Day 2 is only client-confirmed, so the whole-engagement path still blocks.
	_, err = eng.RequestCompletion(ctx, e.ID, clientID)
	if !errors.Is(err, ErrDailySessionsIncomplete) {
		t.Fatalf("got %v, want ErrDailySessionsIncomplete", err)
	}

	// The provider's last flag completes the engagement without a separate
	// whole-engagement call.
	updated, err := eng.UpdateDailySession(ctx, e.ID, 2, providerID, SessionPatch{Completed: &done})
	if err != nil {
		t.Fatalf("provider day 2: %v", err)
	}
	if updated.Status != models.EngagementCompleted {
		t.Fatalf("status: got %s, want %s", updated.Status, models.EngagementCompleted)
	}
	if store.credits != 1 {
		t.Fatalf("credits: got %d, want 1", store.credits)
	}
}

func TestDailySessionsAutoPromoteToCompleted(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(0, 100, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := newDailyEngagement(t, eng, 2)
	payAndAccept(t, eng, e.ID)

	done := true
	for day := 0; day < 2; day++ {
		if _, err := eng.UpdateDailySession(ctx, e.ID, day, clientID, SessionPatch{Completed: &done}); err != nil {
			t.Fatalf("client day %d: %v", day, err)
		}
	}
	if _, err := eng.UpdateDailySession(ctx, e.ID, 0, providerID, SessionPatch{Completed: &done}); err != nil {
		t.Fatalf("provider day 0: %v", err)
	}

	updated, err := eng.UpdateDailySession(ctx, e.ID, 1, providerID, SessionPatch{Completed: &done})
	if err != nil {
		t.Fatalf("provider day 1: %v", err)
	}
	if updated.Status != models.EngagementCompleted {
		t.Fatalf("status: got %s, want %s", updated.Status, models.EngagementCompleted)
	}
	if updated.ClientCompletedAt == nil || updated.ProviderCompletedAt == nil {
		t.Fatal("both completion timestamps should be stamped on auto-promotion")
	}
	if want := 200 * 0.95; store.balances[providerID] != want {
		t.Fatalf("provider balance: got %v, want %v", store.balances[providerID], want)
	}
	if store.credits != 1 {
		t.Fatalf("credits: got %d, want 1", store.credits)
	}
}

func TestDailySessionUpdateRequiresConfirmedPayment(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(0, 100, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := newDailyEngagement(t, eng, 2)

	// Force the status forward without a payment timestamp.
	stored, _ := store.GetEngagement(ctx, e.ID)
	stored.Status = models.EngagementAccepted
	store.engagements[e.ID] = stored

	done := true
	_, err := eng.UpdateDailySession(ctx, e.ID, 0, clientID, SessionPatch{Completed: &done})
	if !errors.Is(err, ErrPaymentNotConfirmed) {
		t.Fatalf("got %v, want ErrPaymentNotConfirmed", err)
	}
}

func TestDailySessionOwnFlagOnly(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(0, 100, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := newDailyEngagement(t, eng, 1)
	payAndAccept(t, eng, e.ID)

	done := true
	updated, err := eng.UpdateDailySession(ctx, e.ID, 0, clientID, SessionPatch{Completed: &done})
	if err != nil {
		t.Fatalf("UpdateDailySession: %v", err)
	}
	s := updated.DailySessions[0]
	if !s.ClientCompleted || s.ProviderCompleted {
		t.Fatalf("client flag only: client=%v provider=%v", s.ClientCompleted, s.ProviderCompleted)
	}
	if updated.Status == models.EngagementCompleted {
		t.Fatal("one-sided session confirmation must not complete the engagement")
	}
}

func TestCancelClosedEngagement(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := createHourly(t, eng, floatPtr(300), 4)
	if _, err := eng.CancelEngagement(ctx, e.ID, providerID, false); err != nil {
		t.Fatalf("CancelEngagement: %v", err)
	}
	_, err := eng.CancelEngagement(ctx, e.ID, providerID, false)
	if !errors.Is(err, ErrEngagementClosed) {
		t.Fatalf("got %v, want ErrEngagementClosed", err)
	}
}

func TestGetEngagementResolvesChainForPartiesOnly(t *testing.T) {
	store := newMemStore()
	store.rates[providerID] = ratesWith(50, 0, 0)
	eng := newTestEngine(store)
	ctx := context.Background()

	e := createHourly(t, eng, floatPtr(300), 4)
	first, _ := eng.OpenNegotiation(ctx, e.ID, clientID, Terms{Price: floatPtr(250), Message: "250?"})
	if _, err := eng.CounterPropose(ctx, first.ID, providerID, Terms{Price: floatPtr(280), Message: "280"}); err != nil {
		t.Fatalf("CounterPropose: %v", err)
	}

	if _, err := eng.GetEngagement(ctx, e.ID, strangerID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger read: got %v, want ErrUnauthorized", err)
	}

	view, err := eng.GetEngagement(ctx, e.ID, clientID)
	if err != nil {
		t.Fatalf("GetEngagement: %v", err)
	}
	if len(view.Negotiations) != 2 {
		t.Fatalf("negotiations: got %d, want 2", len(view.Negotiations))
	}
	if view.Negotiations[0].Status != models.NegotiationCounterProposed {
		t.Fatalf("first proposal: got %s", view.Negotiations[0].Status)
	}
	if view.Negotiations[1].Status != models.NegotiationPending {
		t.Fatalf("counter: got %s", view.Negotiations[1].Status)
	}
	if view.EffectiveStatus != models.EngagementNegotiating {
		t.Fatalf("effective status: got %s", view.EffectiveStatus)
	}
}
