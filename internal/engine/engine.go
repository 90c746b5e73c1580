// Package engine implements the negotiation and settlement core: the
// engagement lifecycle state machine, the negotiation chain, per-day
// completion tracking, and the exactly-once balance settlement guard.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gigbridge/internal/models"
	"gigbridge/internal/pricing"
)

// PlatformFeeRate is deducted from the agreed price before the provider's
// balance is credited.
const PlatformFeeRate = 0.05

type Engine struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func New(store Store) *Engine {
	return &Engine{
		store: store,
		now:   time.Now,
		locks: make(map[uint]*sync.Mutex),
	}
}

// lock serializes writers per engagement id within this process. The store's
// conditional updates keep cross-process races safe; the mutex keeps the
// read-validate-write sequence coherent locally.
func (eng *Engine) lock(engagementID uint) *sync.Mutex {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	l, ok := eng.locks[engagementID]
	if !ok {
		l = &sync.Mutex{}
		eng.locks[engagementID] = l
	}
	return l
}

// All strictly-future validation compares in UTC against server time.
func (eng *Engine) isFuture(t time.Time) bool {
	return t.UTC().After(eng.now().UTC())
}

type CreateEngagementInput struct {
	ProviderID  uint
	PricingMode models.PricingMode
	Description string
	Price       *float64
	Hours       *int
	Days        *int
	Date        *time.Time
}

// CreateEngagement opens a new engagement from a client against a provider's
// rate card. The price is resolved immediately: an explicit price is checked
// against the provider's floor, and a missing one is auto-priced from the
// minimum rate and quantity. Daily engagements get one session per day.
func (eng *Engine) CreateEngagement(ctx context.Context, clientID uint, in CreateEngagementInput) (*models.Engagement, error) {
	if in.ProviderID == clientID {
		return nil, fmt.Errorf("%w: you cannot hire yourself", ErrValidation)
	}
	quantity, err := requiredQuantity(in.PricingMode, in.Hours, in.Days)
	if err != nil {
		return nil, err
	}
	if in.Date != nil && !eng.isFuture(*in.Date) {
		return nil, fmt.Errorf("%w: scheduled date must be in the future", ErrValidation)
	}

	rates, err := eng.store.GetProviderRates(ctx, in.ProviderID)
	if err != nil {
		return nil, err
	}
	price, err := pricing.Resolve(in.PricingMode, rates, quantity, in.Price)
	if err != nil {
		return nil, err
	}

	e := &models.Engagement{
		ClientID:      clientID,
		ProviderID:    in.ProviderID,
		Description:   in.Description,
		PricingMode:   in.PricingMode,
		ProposedPrice: &price,
		ProposedHours: in.Hours,
		ProposedDays:  in.Days,
		ScheduledDate: in.Date,
		Status:        models.EngagementPending,
	}
	if in.PricingMode == models.PricingDaily {
		e.DailySessions = buildSessions(*in.Days, in.Date)
	}

	if err := eng.store.CreateEngagement(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func requiredQuantity(mode models.PricingMode, hours, days *int) (int, error) {
	switch mode {
	case models.PricingHourly:
		if hours == nil || *hours <= 0 {
			return 0, fmt.Errorf("%w: hourly engagements require proposed_hours", ErrValidation)
		}
		return *hours, nil
	case models.PricingDaily:
		if days == nil || *days <= 0 {
			return 0, fmt.Errorf("%w: daily engagements require proposed_days", ErrValidation)
		}
		return *days, nil
	case models.PricingFixed:
		return 0, nil
	}
	return 0, fmt.Errorf("%w: unknown pricing mode %q", ErrValidation, mode)
}

// buildSessions lays out one session per day, contiguous from the scheduled
// start date when one is known.
func buildSessions(days int, start *time.Time) []models.DailySession {
	sessions := make([]models.DailySession, 0, days)
	for i := 0; i < days; i++ {
		s := models.DailySession{DayIndex: i}
		if start != nil {
			s.ScheduledDate = start.AddDate(0, 0, i)
		}
		sessions = append(sessions, s)
	}
	return sessions
}

// View is an engagement read with the derived statuses applied: the
// negotiation chain with superseded proposals resolved, and the effective
// engagement status projected from the chain.
type View struct {
	Engagement      *models.Engagement
	EffectiveStatus models.EngagementStatus
	Negotiations    []models.Negotiation
}

// GetEngagement loads an engagement for one of its parties with derived
// statuses resolved. The derivation is recomputed on every read and never
// written back.
func (eng *Engine) GetEngagement(ctx context.Context, id, callerID uint) (*View, error) {
	e, err := eng.store.GetEngagement(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.IsParty(callerID) {
		return nil, fmt.Errorf("%w: you are not a party to this engagement", ErrUnauthorized)
	}
	chain, err := eng.store.ListNegotiations(ctx, id)
	if err != nil {
		return nil, err
	}
	return &View{
		Engagement:      e,
		EffectiveStatus: EffectiveEngagementStatus(e.Status, chain),
		Negotiations:    ResolveChain(chain),
	}, nil
}

// Terms carries the negotiable fields of a proposal. Zero/nil fields keep the
// engagement's current value.
type Terms struct {
	PricingMode models.PricingMode
	Price       *float64
	Hours       *int
	Days        *int
	Date        *time.Time
	Message     string
}

func (eng *Engine) validateTerms(t Terms) error {
	if t.Message == "" {
		return fmt.Errorf("%w: a message is required", ErrValidation)
	}
	if t.Price != nil && *t.Price <= 0 {
		return fmt.Errorf("%w: proposed price must be positive", ErrValidation)
	}
	if t.Date != nil && !eng.isFuture(*t.Date) {
		return fmt.Errorf("%w: proposed date must be in the future", ErrValidation)
	}
	return nil
}

// OpenNegotiation starts (or extends) an engagement's negotiation chain with
// a proposal from one of its parties and moves the engagement to negotiating.
// Already-negotiating engagements stay put.
func (eng *Engine) OpenNegotiation(ctx context.Context, engagementID, proposerID uint, terms Terms) (*models.Negotiation, error) {
	l := eng.lock(engagementID)
	l.Lock()
	defer l.Unlock()

	e, err := eng.store.GetEngagement(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	if !e.IsParty(proposerID) {
		return nil, fmt.Errorf("%w: you are not a party to this engagement", ErrUnauthorized)
	}
	if e.Status == models.EngagementCompleted || e.Status == models.EngagementCancelled {
		return nil, ErrEngagementClosed
	}
	if err := eng.validateTerms(terms); err != nil {
		return nil, err
	}

	n := &models.Negotiation{
		EngagementID:  engagementID,
		ProposerID:    proposerID,
		PricingMode:   terms.PricingMode,
		ProposedPrice: terms.Price,
		ProposedHours: terms.Hours,
		ProposedDays:  terms.Days,
		ProposedDate:  terms.Date,
		Message:       terms.Message,
		Status:        models.NegotiationPending,
	}
	if err := eng.store.CreateNegotiation(ctx, n); err != nil {
		return nil, err
	}

	if e.Status != models.EngagementNegotiating {
		prev := e.Status
		e.Status = models.EngagementNegotiating
		if err := eng.store.UpdateEngagement(ctx, e, prev); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// RespondNegotiation accepts or rejects the chain's live proposal. Accepting
// copies the proposal's terms onto the engagement (auto-pricing when the
// proposal named no price) and moves it to payment_pending; rejecting only
// resolves the proposal itself.
func (eng *Engine) RespondNegotiation(ctx context.Context, negotiationID, responderID uint, accept bool) (*models.Engagement, error) {
	n, err := eng.store.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}

	l := eng.lock(n.EngagementID)
	l.Lock()
	defer l.Unlock()

	e, err := eng.loadForResponse(ctx, n, responderID)
	if err != nil {
		return nil, err
	}

	if !accept {
		if err := eng.store.UpdateNegotiationStatus(ctx, n.ID, models.NegotiationPending, models.NegotiationRejected); err != nil {
			return nil, err
		}
		return e, nil
	}

	if err := eng.applyTermsToEngagement(ctx, e, n); err != nil {
		return nil, err
	}
	if err := eng.store.UpdateNegotiationStatus(ctx, n.ID, models.NegotiationPending, models.NegotiationAccepted); err != nil {
		return nil, err
	}
	e.Status = models.EngagementPaymentPending
	if err := eng.store.UpdateEngagement(ctx, e, models.EngagementNegotiating); err != nil {
		return nil, err
	}
	return e, nil
}

// CounterPropose resolves the live proposal as counter_proposed (terminal,
// kept distinct from rejected to preserve lineage) and appends a new proposal
// owned by the responder.
func (eng *Engine) CounterPropose(ctx context.Context, negotiationID, responderID uint, terms Terms) (*models.Negotiation, error) {
	n, err := eng.store.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}

	l := eng.lock(n.EngagementID)
	l.Lock()
	defer l.Unlock()

	if _, err := eng.loadForResponse(ctx, n, responderID); err != nil {
		return nil, err
	}
	if err := eng.validateTerms(terms); err != nil {
		return nil, err
	}

	if err := eng.store.UpdateNegotiationStatus(ctx, n.ID, models.NegotiationPending, models.NegotiationCounterProposed); err != nil {
		return nil, err
	}

	counter := &models.Negotiation{
		EngagementID:  n.EngagementID,
		ProposerID:    responderID,
		PricingMode:   terms.PricingMode,
		ProposedPrice: terms.Price,
		ProposedHours: terms.Hours,
		ProposedDays:  terms.Days,
		ProposedDate:  terms.Date,
		Message:       terms.Message,
		Status:        models.NegotiationPending,
	}
	if err := eng.store.CreateNegotiation(ctx, counter); err != nil {
		return nil, err
	}
	return counter, nil
}

// loadForResponse runs the shared respond/counter guards: the caller must be
// a party, must not be the proposer, and the negotiation must be the chain's
// live (newest, still pending) proposal.
func (eng *Engine) loadForResponse(ctx context.Context, n *models.Negotiation, responderID uint) (*models.Engagement, error) {
	e, err := eng.store.GetEngagement(ctx, n.EngagementID)
	if err != nil {
		return nil, err
	}
	if !e.IsParty(responderID) {
		return nil, fmt.Errorf("%w: you are not a party to this engagement", ErrUnauthorized)
	}
	if n.ProposerID == responderID {
		return nil, ErrSelfResponse
	}
	if n.Status != models.NegotiationPending {
		return nil, ErrAlreadyResolved
	}
	chain, err := eng.store.ListNegotiations(ctx, n.EngagementID)
	if err != nil {
		return nil, err
	}
	if !Actionable(*n, chain) {
		return nil, ErrSuperseded
	}
	return e, nil
}

// applyTermsToEngagement copies an accepted proposal onto the engagement.
// A proposal with no price is auto-priced from the provider's rate card and
// the (possibly updated) quantity, so the engagement never leaves negotiation
// without a concrete price. Daily engagements get their session schedule
// rebuilt when the day count or start date changed.
func (eng *Engine) applyTermsToEngagement(ctx context.Context, e *models.Engagement, n *models.Negotiation) error {
	if n.PricingMode != "" {
		e.PricingMode = n.PricingMode
	}
	if n.ProposedHours != nil {
		e.ProposedHours = n.ProposedHours
	}
	if n.ProposedDays != nil {
		e.ProposedDays = n.ProposedDays
	}
	if n.ProposedDate != nil {
		e.ScheduledDate = n.ProposedDate
	}

	price := n.ProposedPrice
	if price == nil {
		// Without a proposed price the agreed one stands, unless the proposal
		// changed the mode or quantity, in which case the rate card re-prices.
		repriced := n.PricingMode != "" || n.ProposedHours != nil || n.ProposedDays != nil
		if !repriced && e.ProposedPrice != nil {
			price = e.ProposedPrice
		} else {
			quantity, err := requiredQuantity(e.PricingMode, e.ProposedHours, e.ProposedDays)
			if err != nil {
				return err
			}
			rates, err := eng.store.GetProviderRates(ctx, e.ProviderID)
			if err != nil {
				return err
			}
			resolved, err := pricing.Resolve(e.PricingMode, rates, quantity, nil)
			if err != nil {
				return err
			}
			price = &resolved
		}
	}
	e.ProposedPrice = price

	if e.PricingMode == models.PricingDaily {
		if e.ProposedDays == nil || *e.ProposedDays <= 0 {
			return fmt.Errorf("%w: daily engagements require proposed_days", ErrValidation)
		}
		if len(e.DailySessions) != *e.ProposedDays || n.ProposedDate != nil {
			e.DailySessions = buildSessions(*e.ProposedDays, e.ScheduledDate)
		}
	} else {
		e.DailySessions = nil
	}
	return nil
}

// ConfirmPayment is the payment collaborator's callback: it records the
// method and timestamp and advances payment_pending to accepted. No payment
// processing happens here.
func (eng *Engine) ConfirmPayment(ctx context.Context, engagementID uint, method, reference string) (*models.Engagement, error) {
	l := eng.lock(engagementID)
	l.Lock()
	defer l.Unlock()

	e, err := eng.store.GetEngagement(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.EngagementPaymentPending {
		return nil, fmt.Errorf("%w: engagement is not awaiting payment (status: %s)", ErrConflict, e.Status)
	}

	now := eng.now()
	e.PaymentMethod = method
	e.PaymentRef = reference
	e.PaymentCompletedAt = &now
	e.Status = models.EngagementAccepted
	if err := eng.store.UpdateEngagement(ctx, e, models.EngagementPaymentPending); err != nil {
		return nil, err
	}
	return e, nil
}

// RequestCompletion records the caller's completion confirmation. The first
// confirmation parks the engagement in pending_completion; the second
// completes it and triggers settlement. Daily engagements must have every
// session confirmed by both parties first.
func (eng *Engine) RequestCompletion(ctx context.Context, engagementID, callerID uint) (*models.Engagement, error) {
	l := eng.lock(engagementID)
	l.Lock()
	defer l.Unlock()

	e, err := eng.store.GetEngagement(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	if !e.IsParty(callerID) {
		return nil, fmt.Errorf("%w: you are not a party to this engagement", ErrUnauthorized)
	}
	if e.Status != models.EngagementAccepted && e.Status != models.EngagementPendingCompletion {
		return nil, fmt.Errorf("%w: cannot request completion while status is %s", ErrConflict, e.Status)
	}

	if e.PricingMode == models.PricingDaily {
		if len(e.DailySessions) == 0 {
			return nil, ErrNoDailySessions
		}
		for i := range e.DailySessions {
			if !e.DailySessions[i].BothCompleted() {
				return nil, ErrDailySessionsIncomplete
			}
		}
	}

	now := eng.now()
	prev := e.Status
	if callerID == e.ClientID {
		if e.ClientCompletedAt != nil {
			return nil, ErrAlreadyConfirmed
		}
		e.ClientCompletedAt = &now
	} else {
		if e.ProviderCompletedAt != nil {
			return nil, ErrAlreadyConfirmed
		}
		e.ProviderCompletedAt = &now
	}

	if e.ClientCompletedAt != nil && e.ProviderCompletedAt != nil {
		e.Status = models.EngagementCompleted
	} else {
		e.Status = models.EngagementPendingCompletion
	}

	if err := eng.store.UpdateEngagement(ctx, e, prev); err != nil {
		return nil, err
	}
	if err := eng.settleIfEligible(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SessionPatch is a party's update to one daily session: its own completion
// flag and/or a reschedule.
type SessionPatch struct {
	Completed     *bool
	ScheduledDate *time.Time
	ScheduledTime *string
}

// UpdateDailySession lets a party confirm or reschedule a single day of a
// daily engagement. Requires confirmed payment. When the edit leaves every
// session confirmed by both parties, the engagement is promoted straight to
// completed (both completion timestamps stamped now) and settled, without a
// separate whole-engagement completion call.
func (eng *Engine) UpdateDailySession(ctx context.Context, engagementID uint, dayIndex int, callerID uint, patch SessionPatch) (*models.Engagement, error) {
	l := eng.lock(engagementID)
	l.Lock()
	defer l.Unlock()

	e, err := eng.store.GetEngagement(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	if !e.IsParty(callerID) {
		return nil, fmt.Errorf("%w: you are not a party to this engagement", ErrUnauthorized)
	}
	if e.Status != models.EngagementAccepted && e.Status != models.EngagementPendingCompletion {
		return nil, fmt.Errorf("%w: daily sessions can only be updated while the engagement is in progress (status: %s)", ErrConflict, e.Status)
	}
	if e.PaymentCompletedAt == nil {
		return nil, ErrPaymentNotConfirmed
	}

	var session *models.DailySession
	for i := range e.DailySessions {
		if e.DailySessions[i].DayIndex == dayIndex {
			session = &e.DailySessions[i]
			break
		}
	}
	if session == nil {
		return nil, fmt.Errorf("%w: daily session %d", ErrNotFound, dayIndex)
	}

	if patch.ScheduledDate != nil {
		if !eng.isFuture(*patch.ScheduledDate) {
			return nil, fmt.Errorf("%w: session date must be in the future", ErrValidation)
		}
		session.ScheduledDate = *patch.ScheduledDate
	}
	if patch.ScheduledTime != nil {
		session.ScheduledTime = *patch.ScheduledTime
	}
	if patch.Completed != nil {
		if callerID == e.ClientID {
			session.ClientCompleted = *patch.Completed
		} else {
			session.ProviderCompleted = *patch.Completed
		}
	}

	if err := eng.store.UpdateDailySession(ctx, session); err != nil {
		return nil, err
	}

	allDone := len(e.DailySessions) > 0
	for i := range e.DailySessions {
		if !e.DailySessions[i].BothCompleted() {
			allDone = false
			break
		}
	}
	if allDone && e.Status != models.EngagementCompleted {
		now := eng.now()
		prev := e.Status
		e.ClientCompletedAt = &now
		e.ProviderCompletedAt = &now
		e.Status = models.EngagementCompleted
		if err := eng.store.UpdateEngagement(ctx, e, prev); err != nil {
			return nil, err
		}
		if err := eng.settleIfEligible(ctx, e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// CancelEngagement is the explicit cancellation path, open to either party
// (and the administrative surface) for any engagement that has not completed.
func (eng *Engine) CancelEngagement(ctx context.Context, engagementID, callerID uint, asAdmin bool) (*models.Engagement, error) {
	l := eng.lock(engagementID)
	l.Lock()
	defer l.Unlock()

	e, err := eng.store.GetEngagement(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	if !asAdmin && !e.IsParty(callerID) {
		return nil, fmt.Errorf("%w: you are not a party to this engagement", ErrUnauthorized)
	}
	if e.Status == models.EngagementCompleted || e.Status == models.EngagementCancelled {
		return nil, ErrEngagementClosed
	}

	prev := e.Status
	e.Status = models.EngagementCancelled
	if err := eng.store.UpdateEngagement(ctx, e, prev); err != nil {
		return nil, err
	}
	return e, nil
}

// settleIfEligible is the settlement guard. It re-checks the full eligibility
// predicate and asks the store for a conditional credit keyed on
// balance_added_at still being unset, so the provider is paid exactly once no
// matter how many qualifying updates race or repeat.
func (eng *Engine) settleIfEligible(ctx context.Context, e *models.Engagement) error {
	if e.Status != models.EngagementCompleted {
		return nil
	}
	if e.PaymentCompletedAt == nil || e.ClientCompletedAt == nil || e.ProviderCompletedAt == nil {
		return nil
	}
	if e.BalanceAddedAt != nil {
		return nil
	}
	if e.ProposedPrice == nil || *e.ProposedPrice <= 0 {
		return nil
	}

	amount := *e.ProposedPrice * (1 - PlatformFeeRate)
	now := eng.now()
	settled, err := eng.store.SettleEngagement(ctx, e.ID, e.ProviderID, amount, now)
	if err != nil {
		return err
	}
	if settled {
		e.BalanceAddedAt = &now
	}
	return nil
}
