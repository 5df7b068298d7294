package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-grading/app/entity"
	"github.com/vibast-solutions/ms-go-grading/app/factory"
	"github.com/vibast-solutions/ms-go-grading/app/lock"
	"github.com/vibast-solutions/ms-go-grading/app/mapper"
	"github.com/vibast-solutions/ms-go-grading/app/pricing"
	"github.com/vibast-solutions/ms-go-grading/app/provider"
	"github.com/vibast-solutions/ms-go-grading/app/repository"
	"github.com/vibast-solutions/ms-go-grading/app/types"
	"github.com/vibast-solutions/ms-go-grading/config"
)

const (
	defaultWriteRetries = 3
	defaultBatchSize    = int32(100)
	defaultPageSize     = int32(50)

	maxCardTextLength  = 100
	maxCardNotesLength = 500
)

type createSubmissionRequest interface {
	GetCards() []types.CardPayload
	GetCardCount() int32
	GetServiceTier() string
}

type updateSubmissionRequest interface {
	GetId() uint64
	GetCards() []types.CardPayload
	GetCardCount() int32
	GetServiceTier() string
}

type listSubmissionsRequest interface {
	GetView() string
}

type submissionRepository interface {
	Create(ctx context.Context, sub *entity.Submission) error
	Update(ctx context.Context, sub *entity.Submission) error
	FindByID(ctx context.Context, id uint64) (*entity.Submission, error)
	FindDraftByCustomer(ctx context.Context, customerID string) (*entity.Submission, error)
	FindByPaymentIntentID(ctx context.Context, intentID string) (*entity.Submission, error)
	FindBySetupIntentID(ctx context.Context, intentID string) (*entity.Submission, error)
	List(ctx context.Context, filter repository.SubmissionFilter) ([]*entity.Submission, error)
	Count(ctx context.Context, filter repository.SubmissionFilter) (int64, error)
	SumTotalCents(ctx context.Context, filter repository.SubmissionFilter) (int64, error)
}

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	AttachIntent(ctx context.Context, id uint64, intentID string, at time.Time) error
	CompletePending(ctx context.Context, id uint64, completion repository.PaymentCompletion) (bool, error)
	FindByID(ctx context.Context, id uint64) (*entity.Payment, error)
	FindByIntentID(ctx context.Context, intentID string) (*entity.Payment, error)
	ListBySubmission(ctx context.Context, submissionID uint64) ([]*entity.Payment, error)
	RefreshPending(ctx context.Context, id uint64, errorMessage *string, at time.Time) (bool, error)
	FindOpenCharge(ctx context.Context, submissionID uint64) (*entity.Payment, error)
	ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error)
	SumSucceededCents(ctx context.Context) (int64, error)
}

type submissionEventRepository interface {
	Create(ctx context.Context, event *entity.SubmissionEvent) error
}

type webhookEventRepository interface {
	Create(ctx context.Context, event *entity.WebhookEvent) error
	FindByProviderEventID(ctx context.Context, providerEventID string) (*entity.WebhookEvent, error)
}

type customerProfileRepository interface {
	Create(ctx context.Context, profile *entity.CustomerProfile) error
	FindByCustomerID(ctx context.Context, customerID string) (*entity.CustomerProfile, error)
}

type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type locker interface {
	Acquire(ctx context.Context, name string) (func(), error)
}

type jsonCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type SubmissionService struct {
	submissionRepo submissionRepository
	paymentRepo    paymentRepository
	eventRepo      submissionEventRepository
	webhookRepo    webhookEventRepository
	profileRepo    customerProfileRepository
	tx             transactor
	processor      provider.Provider
	locker         locker
	cache          jsonCache
	cfg            config.GradingConfig
	logger         logrus.FieldLogger
	now            func() time.Time
}

func NewSubmissionService(
	submissionRepo submissionRepository,
	paymentRepo paymentRepository,
	eventRepo submissionEventRepository,
	webhookRepo webhookEventRepository,
	profileRepo customerProfileRepository,
	tx transactor,
	processor provider.Provider,
	locker locker,
	cache jsonCache,
	cfg config.GradingConfig,
) *SubmissionService {
	if cfg.PricingModel == "" {
		cfg.PricingModel = entity.PricingModelTier
	}
	if cfg.Currency == "" {
		cfg.Currency = entity.DefaultCurrency
	}

	return &SubmissionService{
		submissionRepo: submissionRepo,
		paymentRepo:    paymentRepo,
		eventRepo:      eventRepo,
		webhookRepo:    webhookRepo,
		profileRepo:    profileRepo,
		tx:             tx,
		processor:      processor,
		locker:         locker,
		cache:          cache,
		cfg:            cfg,
		logger:         factory.NewModuleLogger("submission_service"),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// CreateSubmission stores a new draft, or merges the request into the
// customer's existing draft so a customer never holds two drafts.
func (s *SubmissionService) CreateSubmission(ctx context.Context, actor *Actor, req createSubmissionRequest) (*entity.Submission, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	tier := strings.ToUpper(strings.TrimSpace(req.GetServiceTier()))
	incoming := mapper.CardsFromPayload(req.GetCards())
	for i := range incoming {
		normalizeCard(&incoming[i])
	}
	if err := s.validateIntake(tier, incoming, req.GetCardCount()); err != nil {
		return nil, err
	}

	var result *entity.Submission
	err := s.retryOnConflict(ctx, func(ctx context.Context) error {
		now := s.now()

		draft, err := s.submissionRepo.FindDraftByCustomer(ctx, actor.ID)
		if err != nil {
			return err
		}

		if draft != nil {
			draft.Cards = mergeCards(draft.Cards, incoming)
			draft.ServiceTier = tier
			draft.CardCount = resolveCardCount(req.GetCardCount(), draft.Cards)
			draft.UpdatedAt = now
			if err := s.applyPricing(draft, now); err != nil {
				return err
			}
			openIntent := draft.StripePaymentIntentID
			draft.StripePaymentIntentID = nil
			if err := s.submissionRepo.Update(ctx, draft); err != nil {
				return err
			}
			if openIntent != nil {
				s.supersedeIntent(ctx, *openIntent)
			}

			s.recordEvent(ctx, draft, entity.SubmissionEventDraftMerged, nil, nil, actor.ID, nil)
			result = draft
			return nil
		}

		sub := &entity.Submission{
			CustomerID:       actor.ID,
			Cards:            incoming,
			CardCount:        resolveCardCount(req.GetCardCount(), incoming),
			PricingModel:     s.cfg.PricingModel,
			ServiceTier:      tier,
			PaymentStatus:    entity.PaymentStatusUnpaid,
			SubmissionStatus: entity.StatusCreated,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.applyPricing(sub, now); err != nil {
			return err
		}

		if err := s.submissionRepo.Create(ctx, sub); err != nil {
			if errors.Is(err, repository.ErrDraftAlreadyExists) {
				// Lost the insert race; merge into the winner on the next pass.
				return repository.ErrConcurrentUpdate
			}
			return err
		}

		s.recordEvent(ctx, sub, entity.SubmissionEventCreated, nil, nil, actor.ID, nil)
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAnalytics(ctx)
	return result, nil
}

// EditSubmission replaces the card set and tier of an unpaid submission.
func (s *SubmissionService) EditSubmission(ctx context.Context, actor *Actor, req updateSubmissionRequest) (*entity.Submission, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	tier := strings.ToUpper(strings.TrimSpace(req.GetServiceTier()))
	incoming := mapper.CardsFromPayload(req.GetCards())
	for i := range incoming {
		normalizeCard(&incoming[i])
	}

	release, err := s.acquireSubmissionLock(ctx, req.GetId())
	if err != nil {
		return nil, err
	}
	defer release()

	var openIntent *string
	sub, err := s.mutateSubmission(ctx, req.GetId(), func(sub *entity.Submission, now time.Time) (bool, error) {
		if err := requireOwner(actor, sub); err != nil {
			return false, err
		}
		if sub.IsPaid() {
			return false, ErrImmutableSubmission
		}
		// The total is what an open off-session charge was sent for.
		charge, err := s.paymentRepo.FindOpenCharge(ctx, sub.ID)
		if err != nil {
			return false, err
		}
		if charge != nil {
			return false, fmt.Errorf("%w: a charge for this submission is still in progress", ErrPaymentNotCompleted)
		}
		if err := s.validateIntakeFor(sub.PricingModel, tier, incoming, req.GetCardCount()); err != nil {
			return false, err
		}

		sub.Cards = keepCardStatuses(sub.Cards, incoming)
		sub.ServiceTier = tier
		sub.CardCount = resolveCardCount(req.GetCardCount(), sub.Cards)
		sub.UpdatedAt = now
		if err := s.applyPricing(sub, now); err != nil {
			return false, err
		}

		// An intent created for the old total must not be confirmed anymore.
		openIntent = sub.StripePaymentIntentID
		sub.StripePaymentIntentID = nil
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if openIntent != nil {
		s.supersedeIntent(ctx, *openIntent)
	}
	s.recordEvent(ctx, sub, entity.SubmissionEventEdited, nil, nil, actor.ID, nil)
	return sub, nil
}

func (s *SubmissionService) GetSubmission(ctx context.Context, actor *Actor, id uint64) (*entity.Submission, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	sub, err := s.loadSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, sub) {
		return nil, ErrAccessDenied
	}
	return sub, nil
}

// ListSubmissions returns the caller's own submissions in one of the
// customer views: everything, active orders, or the drafts vault.
func (s *SubmissionService) ListSubmissions(ctx context.Context, actor *Actor, req listSubmissionsRequest) ([]*entity.Submission, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	view := strings.ToLower(strings.TrimSpace(req.GetView()))
	switch view {
	case "", repository.ViewAll:
		view = repository.ViewAll
	case repository.ViewActive, repository.ViewDrafts:
	default:
		return nil, fmt.Errorf("%w: unknown view %q", ErrInvalidRequest, view)
	}

	items, err := s.submissionRepo.List(ctx, repository.SubmissionFilter{
		CustomerID: actor.ID,
		View:       view,
	})
	if err != nil {
		return nil, err
	}

	if view == repository.ViewDrafts {
		for _, item := range items {
			item.Cards = item.ActiveCards()
		}
	}
	return items, nil
}

func (s *SubmissionService) ListPayments(ctx context.Context, actor *Actor, submissionID uint64) ([]*entity.Payment, error) {
	if _, err := s.GetSubmission(ctx, actor, submissionID); err != nil {
		return nil, err
	}
	return s.paymentRepo.ListBySubmission(ctx, submissionID)
}

func (s *SubmissionService) loadSubmission(ctx context.Context, id uint64) (*entity.Submission, error) {
	if id == 0 {
		return nil, ErrSubmissionNotFound
	}
	sub, err := s.submissionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubmissionNotFound
	}
	return sub, nil
}

// mutateSubmission is the compare-and-set loop used by every plain write.
// fn reports whether it changed anything; unchanged submissions are not
// written.
func (s *SubmissionService) mutateSubmission(ctx context.Context, id uint64, fn func(sub *entity.Submission, now time.Time) (bool, error)) (*entity.Submission, error) {
	var result *entity.Submission
	err := s.retryOnConflict(ctx, func(ctx context.Context) error {
		sub, err := s.loadSubmission(ctx, id)
		if err != nil {
			return err
		}

		changed, err := fn(sub, s.now())
		if err != nil {
			return err
		}
		if changed {
			if err := s.submissionRepo.Update(ctx, sub); err != nil {
				return err
			}
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateAnalytics(ctx)
	return result, nil
}

// acquireSubmissionLock serializes status changes, edits and charges for
// one submission.
func (s *SubmissionService) acquireSubmissionLock(ctx context.Context, id uint64) (func(), error) {
	release, err := s.locker.Acquire(ctx, "submission-status:"+strconv.FormatUint(id, 10))
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}
	return release, nil
}

func (s *SubmissionService) retryOnConflict(ctx context.Context, fn func(ctx context.Context) error) error {
	retries := s.cfg.WriteRetries
	if retries <= 0 {
		retries = defaultWriteRetries
	}

	var err error
	for attempt := 0; attempt < retries; attempt++ {
		err = fn(ctx)
		if !errors.Is(err, repository.ErrConcurrentUpdate) {
			return mapRepositoryError(err)
		}
	}
	return ErrConcurrentUpdate
}

func (s *SubmissionService) validateIntake(tier string, cards []entity.Card, cardCount int32) error {
	return s.validateIntakeFor(s.cfg.PricingModel, tier, cards, cardCount)
}

func (s *SubmissionService) validateIntakeFor(model, tier string, cards []entity.Card, cardCount int32) error {
	if !entity.IsValidTier(tier) {
		return fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}
	if cardCount < 0 {
		return fmt.Errorf("%w: cardCount must be >= 0", ErrInvalidRequest)
	}

	live := 0
	for i, card := range cards {
		if card.IsDeleted {
			continue
		}
		live++
		if err := validateCard(i, card); err != nil {
			return err
		}
		if model == entity.PricingModelPerCard && !pricing.IsAllowedCardPrice(pricing.FromCents(card.PriceCents)) {
			return fmt.Errorf("%w: cards[%d].price must be 5, 10 or 20", ErrInvalidRequest, i)
		}
	}

	if live == 0 {
		if model == entity.PricingModelPerCard {
			return fmt.Errorf("%w: per-card pricing needs at least one card", ErrInvalidRequest)
		}
		if cardCount <= 0 {
			return fmt.Errorf("%w: at least one card or a positive cardCount is required", ErrInvalidRequest)
		}
	}
	return nil
}

func validateCard(index int, card entity.Card) error {
	required := []struct {
		name  string
		value string
	}{
		{"player", card.Player},
		{"year", card.Year},
		{"set", card.Set},
		{"cardNumber", card.CardNumber},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%w: cards[%d].%s is required", ErrInvalidRequest, index, field.name)
		}
		if utf8.RuneCountInString(field.value) > maxCardTextLength {
			return fmt.Errorf("%w: cards[%d].%s is too long", ErrInvalidRequest, index, field.name)
		}
	}
	if utf8.RuneCountInString(card.Notes) > maxCardNotesLength {
		return fmt.Errorf("%w: cards[%d].notes must be at most %d characters", ErrInvalidRequest, index, maxCardNotesLength)
	}
	return nil
}

func (s *SubmissionService) applyPricing(sub *entity.Submission, now time.Time) error {
	breakdown, err := pricing.Calculate(sub.PricingModel, sub.ServiceTier, sub.Cards)
	if err != nil {
		switch {
		case errors.Is(err, pricing.ErrInvalidTier):
			return fmt.Errorf("%w: %s", ErrInvalidTier, sub.ServiceTier)
		case errors.Is(err, pricing.ErrInvalidCardPrice):
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return err
	}
	sub.Pricing = breakdown.ToEntity()
	sub.OrderSummary = pricing.OrderSummary(sub, now)
	return nil
}

// normalizeCard gives a card a stable id and the defaults a new card starts
// with.
func normalizeCard(card *entity.Card) {
	card.ID = strings.TrimSpace(card.ID)
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	card.Player = strings.TrimSpace(card.Player)
	card.Year = strings.TrimSpace(card.Year)
	card.Set = strings.TrimSpace(card.Set)
	card.CardNumber = strings.TrimSpace(card.CardNumber)
	card.Notes = strings.TrimSpace(card.Notes)
	if card.Status == "" {
		card.Status = entity.CardStatusUnpaid
	}
}

// mergeCards replaces existing cards whose id matches an incoming card and
// appends the rest.
func mergeCards(existing, incoming []entity.Card) []entity.Card {
	merged := make([]entity.Card, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	index := make(map[string]int, len(existing))
	for i, c := range merged {
		index[c.ID] = i
	}
	for _, c := range incoming {
		if i, ok := index[c.ID]; ok {
			c.Status = merged[i].Status
			merged[i] = c
			continue
		}
		index[c.ID] = len(merged)
		merged = append(merged, c)
	}
	return merged
}

func keepCardStatuses(existing, incoming []entity.Card) []entity.Card {
	statuses := make(map[string]string, len(existing))
	for _, c := range existing {
		statuses[c.ID] = c.Status
	}
	out := make([]entity.Card, 0, len(incoming))
	for _, c := range incoming {
		if status, ok := statuses[c.ID]; ok && status != "" {
			c.Status = status
		}
		out = append(out, c)
	}
	return out
}

func resolveCardCount(requested int32, cards []entity.Card) int32 {
	if requested > 0 {
		return requested
	}
	live := int32(0)
	for _, c := range cards {
		if !c.IsDeleted {
			live++
		}
	}
	return live
}

func (s *SubmissionService) recordEvent(ctx context.Context, sub *entity.Submission, eventType string, oldStatus, oldPayment *string, actorID string, providerEventID *string) {
	_ = s.eventRepo.Create(ctx, &entity.SubmissionEvent{
		SubmissionID:        sub.ID,
		EventType:           eventType,
		OldSubmissionStatus: oldStatus,
		NewSubmissionStatus: sub.SubmissionStatus,
		OldPaymentStatus:    oldPayment,
		NewPaymentStatus:    sub.PaymentStatus,
		ActorID:             actorID,
		ProviderEventID:     providerEventID,
		CreatedAt:           s.now(),
	})
}

func mapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrSubmissionNotFound):
		return ErrSubmissionNotFound
	case errors.Is(err, repository.ErrConcurrentUpdate):
		return ErrConcurrentUpdate
	}
	return err
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	for max > 0 && !utf8.RuneStart(value[max]) {
		max--
	}
	return value[:max]
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
