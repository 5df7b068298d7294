package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vibast-solutions/ms-go-grading/app/entity"
	"github.com/vibast-solutions/ms-go-grading/app/lock"
	"github.com/vibast-solutions/ms-go-grading/app/provider"
	"github.com/vibast-solutions/ms-go-grading/app/repository"
	"github.com/vibast-solutions/ms-go-grading/config"
)

type fakeSubmissionRepo struct {
	items      map[uint64]*entity.Submission
	nextID     uint64
	failUpdate func(sub *entity.Submission) error
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{items: map[uint64]*entity.Submission{}, nextID: 1}
}

func (r *fakeSubmissionRepo) draftTaken(sub *entity.Submission) bool {
	key := sub.DraftKey()
	if key == nil {
		return false
	}
	for id, item := range r.items {
		if id == sub.ID {
			continue
		}
		if other := item.DraftKey(); other != nil && *other == *key {
			return true
		}
	}
	return false
}

func (r *fakeSubmissionRepo) Create(_ context.Context, sub *entity.Submission) error {
	if r.draftTaken(sub) {
		return repository.ErrDraftAlreadyExists
	}
	sub.ID = r.nextID
	r.nextID++
	sub.Version = 1
	r.items[sub.ID] = sub.Clone()
	return nil
}

func (r *fakeSubmissionRepo) Update(_ context.Context, sub *entity.Submission) error {
	if r.failUpdate != nil {
		if err := r.failUpdate(sub); err != nil {
			return err
		}
	}
	stored, ok := r.items[sub.ID]
	if !ok {
		return repository.ErrSubmissionNotFound
	}
	if stored.Version != sub.Version {
		return repository.ErrConcurrentUpdate
	}
	if r.draftTaken(sub) {
		return repository.ErrDraftAlreadyExists
	}
	sub.Version++
	r.items[sub.ID] = sub.Clone()
	return nil
}

func (r *fakeSubmissionRepo) FindByID(_ context.Context, id uint64) (*entity.Submission, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return item.Clone(), nil
}

func (r *fakeSubmissionRepo) FindDraftByCustomer(_ context.Context, customerID string) (*entity.Submission, error) {
	for _, item := range r.items {
		if key := item.DraftKey(); key != nil && *key == customerID {
			return item.Clone(), nil
		}
	}
	return nil, nil
}

func (r *fakeSubmissionRepo) FindByPaymentIntentID(_ context.Context, intentID string) (*entity.Submission, error) {
	for _, item := range r.items {
		if item.StripePaymentIntentID != nil && *item.StripePaymentIntentID == intentID {
			return item.Clone(), nil
		}
	}
	return nil, nil
}

func (r *fakeSubmissionRepo) FindBySetupIntentID(_ context.Context, intentID string) (*entity.Submission, error) {
	for _, item := range r.items {
		if item.StripeSetupIntentID != nil && *item.StripeSetupIntentID == intentID {
			return item.Clone(), nil
		}
	}
	return nil, nil
}

func (r *fakeSubmissionRepo) matching(filter repository.SubmissionFilter) []*entity.Submission {
	out := make([]*entity.Submission, 0)
	for _, item := range r.items {
		if filter.CustomerID != "" && item.CustomerID != filter.CustomerID {
			continue
		}
		switch filter.View {
		case repository.ViewActive:
			if !item.IsActiveOrder() {
				continue
			}
		case repository.ViewDeferred:
			if item.IsPaid() || !item.HasStoredPaymentMethod() {
				continue
			}
		case repository.ViewDrafts:
			if item.DraftKey() == nil {
				continue
			}
		}
		if filter.Status != "" && item.SubmissionStatus != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && item.PaymentStatus != filter.PaymentStatus {
			continue
		}
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *fakeSubmissionRepo) List(_ context.Context, filter repository.SubmissionFilter) ([]*entity.Submission, error) {
	items := r.matching(filter)
	if filter.Limit <= 0 {
		return items, nil
	}
	start := int(filter.Offset)
	if start > len(items) {
		return []*entity.Submission{}, nil
	}
	end := start + int(filter.Limit)
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], nil
}

func (r *fakeSubmissionRepo) Count(_ context.Context, filter repository.SubmissionFilter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

func (r *fakeSubmissionRepo) SumTotalCents(_ context.Context, filter repository.SubmissionFilter) (int64, error) {
	var total int64
	for _, item := range r.matching(filter) {
		total += item.Pricing.TotalCents
	}
	return total, nil
}

type fakePaymentRepo struct {
	items  map[uint64]*entity.Payment
	nextID uint64
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{items: map[uint64]*entity.Payment{}, nextID: 1}
}

func clonePayment(p *entity.Payment) *entity.Payment {
	out := *p
	if p.StripePaymentIntentID != nil {
		v := *p.StripePaymentIntentID
		out.StripePaymentIntentID = &v
	}
	if p.StripeChargeID != nil {
		v := *p.StripeChargeID
		out.StripeChargeID = &v
	}
	if p.ErrorMessage != nil {
		v := *p.ErrorMessage
		out.ErrorMessage = &v
	}
	if p.TargetStatus != nil {
		v := *p.TargetStatus
		out.TargetStatus = &v
	}
	return &out
}

func (r *fakePaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	if payment.StripePaymentIntentID != nil {
		for _, item := range r.items {
			if item.StripePaymentIntentID != nil && *item.StripePaymentIntentID == *payment.StripePaymentIntentID {
				return repository.ErrPaymentAlreadyExists
			}
		}
	}
	payment.ID = r.nextID
	r.nextID++
	r.items[payment.ID] = clonePayment(payment)
	return nil
}

func (r *fakePaymentRepo) AttachIntent(_ context.Context, id uint64, intentID string, at time.Time) error {
	item, ok := r.items[id]
	if !ok || item.Status != entity.PaymentRecordPending {
		return repository.ErrPaymentNotFound
	}
	item.StripePaymentIntentID = &intentID
	item.UpdatedAt = at
	return nil
}

func (r *fakePaymentRepo) CompletePending(_ context.Context, id uint64, completion repository.PaymentCompletion) (bool, error) {
	item, ok := r.items[id]
	if !ok || item.Status != entity.PaymentRecordPending {
		return false, nil
	}
	item.Status = completion.Status
	if completion.StripePaymentIntentID != nil {
		v := *completion.StripePaymentIntentID
		item.StripePaymentIntentID = &v
	}
	if completion.StripeChargeID != nil {
		v := *completion.StripeChargeID
		item.StripeChargeID = &v
	}
	item.ErrorMessage = completion.ErrorMessage
	item.UpdatedAt = completion.At
	return true, nil
}

func (r *fakePaymentRepo) RefreshPending(_ context.Context, id uint64, errorMessage *string, at time.Time) (bool, error) {
	item, ok := r.items[id]
	if !ok || item.Status != entity.PaymentRecordPending {
		return false, nil
	}
	if errorMessage != nil {
		v := *errorMessage
		item.ErrorMessage = &v
	}
	item.UpdatedAt = at
	return true, nil
}

func (r *fakePaymentRepo) FindOpenCharge(_ context.Context, submissionID uint64) (*entity.Payment, error) {
	var found *entity.Payment
	for _, item := range r.items {
		if item.SubmissionID != submissionID || item.PaymentType != entity.PaymentTypePayLater || item.Status != entity.PaymentRecordPending {
			continue
		}
		if found == nil || item.ID > found.ID {
			found = item
		}
	}
	if found == nil {
		return nil, nil
	}
	return clonePayment(found), nil
}

func (r *fakePaymentRepo) FindByID(_ context.Context, id uint64) (*entity.Payment, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return clonePayment(item), nil
}

func (r *fakePaymentRepo) FindByIntentID(_ context.Context, intentID string) (*entity.Payment, error) {
	for _, item := range r.items {
		if item.StripePaymentIntentID != nil && *item.StripePaymentIntentID == intentID {
			return clonePayment(item), nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) ListBySubmission(_ context.Context, submissionID uint64) ([]*entity.Payment, error) {
	out := make([]*entity.Payment, 0)
	for _, item := range r.items {
		if item.SubmissionID == submissionID {
			out = append(out, clonePayment(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakePaymentRepo) ListStalePending(_ context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	out := make([]*entity.Payment, 0)
	for _, item := range r.items {
		if item.Status == entity.PaymentRecordPending && item.StripePaymentIntentID != nil && !item.UpdatedAt.After(before) {
			out = append(out, clonePayment(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakePaymentRepo) SumSucceededCents(_ context.Context) (int64, error) {
	var total int64
	for _, item := range r.items {
		if item.Status == entity.PaymentRecordSucceeded {
			total += item.AmountCents
		}
	}
	return total, nil
}

func (r *fakePaymentRepo) bySubmission(submissionID uint64, paymentType, status string) []*entity.Payment {
	out := make([]*entity.Payment, 0)
	for _, item := range r.items {
		if item.SubmissionID == submissionID && item.PaymentType == paymentType && item.Status == status {
			out = append(out, item)
		}
	}
	return out
}

type fakeEventRepo struct {
	events []*entity.SubmissionEvent
}

func (r *fakeEventRepo) Create(_ context.Context, event *entity.SubmissionEvent) error {
	copyItem := *event
	r.events = append(r.events, &copyItem)
	return nil
}

func (r *fakeEventRepo) count(eventType string) int {
	n := 0
	for _, e := range r.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type fakeWebhookRepo struct {
	items map[string]*entity.WebhookEvent
}

func (r *fakeWebhookRepo) Create(_ context.Context, event *entity.WebhookEvent) error {
	if _, ok := r.items[event.ProviderEventID]; ok {
		return repository.ErrWebhookEventAlreadyProcessed
	}
	copyItem := *event
	r.items[event.ProviderEventID] = &copyItem
	return nil
}

func (r *fakeWebhookRepo) FindByProviderEventID(_ context.Context, providerEventID string) (*entity.WebhookEvent, error) {
	item, ok := r.items[providerEventID]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

type fakeProfileRepo struct {
	items map[string]*entity.CustomerProfile
}

func (r *fakeProfileRepo) Create(_ context.Context, profile *entity.CustomerProfile) error {
	if _, ok := r.items[profile.CustomerID]; ok {
		return repository.ErrCustomerProfileExists
	}
	copyItem := *profile
	r.items[profile.CustomerID] = &copyItem
	return nil
}

func (r *fakeProfileRepo) FindByCustomerID(_ context.Context, customerID string) (*entity.CustomerProfile, error) {
	item, ok := r.items[customerID]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

// fakeTx rolls the in-memory repositories back when fn fails. Nested calls
// join the outer transaction.
type fakeTx struct {
	calls    int
	depth    int
	snapshot func() (restore func())
}

func (t *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	if t.depth > 0 || t.snapshot == nil {
		return fn(ctx)
	}

	restore := t.snapshot()
	t.depth++
	err := fn(ctx)
	t.depth--
	if err != nil {
		restore()
	}
	return err
}

type fakeLocker struct {
	held map[string]bool
}

func (l *fakeLocker) Acquire(_ context.Context, name string) (func(), error) {
	if l.held[name] {
		return nil, lock.ErrLockHeld
	}
	return func() {}, nil
}

type fakeCache struct {
	data map[string][]byte
	sets int
}

func (c *fakeCache) GetJSON(_ context.Context, key string, dst interface{}) (bool, error) {
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.sets++
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

type fakeProvider struct {
	seq            int
	chargeKeys     map[string]string
	dropResponse   bool
	customers      int
	intents        map[string]*provider.Intent
	setupIntents   map[string]*provider.Intent
	cancelled      []string
	charges        []*provider.ChargeInput
	paymentInputs  []*provider.PaymentIntentInput
	chargeErr      error
	chargeStatus   string
	createIntentFn func(input *provider.PaymentIntentInput) error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		intents:      map[string]*provider.Intent{},
		setupIntents: map[string]*provider.Intent{},
		chargeKeys:   map[string]string{},
		chargeStatus: provider.IntentSucceeded,
	}
}

func (p *fakeProvider) next(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s_%d", prefix, p.seq)
}

func (p *fakeProvider) CreateCustomer(_ context.Context, _ *provider.CustomerInput) (string, error) {
	p.customers++
	return p.next("cus"), nil
}

func (p *fakeProvider) CreatePaymentIntent(_ context.Context, input *provider.PaymentIntentInput) (*provider.Intent, error) {
	if p.createIntentFn != nil {
		if err := p.createIntentFn(input); err != nil {
			return nil, err
		}
	}
	p.paymentInputs = append(p.paymentInputs, input)
	id := p.next("pi")
	intent := &provider.Intent{ID: id, ClientSecret: id + "_secret", Status: provider.IntentPending, Metadata: input.Metadata}
	p.intents[id] = intent
	copyItem := *intent
	return &copyItem, nil
}

func (p *fakeProvider) GetPaymentIntent(_ context.Context, intentID string) (*provider.Intent, error) {
	intent, ok := p.intents[intentID]
	if !ok {
		return nil, errors.New("no such intent")
	}
	copyItem := *intent
	return &copyItem, nil
}

func (p *fakeProvider) CancelPaymentIntent(_ context.Context, intentID string) error {
	intent, ok := p.intents[intentID]
	if !ok {
		return errors.New("no such intent")
	}
	if intent.Status == provider.IntentSucceeded {
		return &provider.ProcessorError{Code: "payment_intent_unexpected_state", Message: "already succeeded"}
	}
	intent.Status = provider.IntentCanceled
	p.cancelled = append(p.cancelled, intentID)
	return nil
}

func (p *fakeProvider) ChargeOffSession(_ context.Context, input *provider.ChargeInput) (*provider.Intent, error) {
	p.charges = append(p.charges, input)
	if p.chargeErr != nil && !p.dropResponse {
		return nil, p.chargeErr
	}

	// A repeated idempotency key replays the first result.
	id, ok := p.chargeKeys[input.IdempotencyKey]
	if !ok {
		id = p.next("pi")
		p.intents[id] = &provider.Intent{
			ID:              id,
			Status:          p.chargeStatus,
			ChargeID:        p.next("ch"),
			PaymentMethodID: input.PaymentMethodID,
			Metadata:        input.Metadata,
		}
		if input.IdempotencyKey != "" {
			p.chargeKeys[input.IdempotencyKey] = id
		}
	}
	if p.chargeErr != nil {
		// The charge went through but the caller never saw the response.
		return nil, p.chargeErr
	}
	copyItem := *p.intents[id]
	return &copyItem, nil
}

func (p *fakeProvider) CreateSetupIntent(_ context.Context, input *provider.SetupIntentInput) (*provider.Intent, error) {
	id := p.next("seti")
	intent := &provider.Intent{ID: id, ClientSecret: id + "_secret", Status: provider.IntentPending, Metadata: input.Metadata}
	p.setupIntents[id] = intent
	copyItem := *intent
	return &copyItem, nil
}

func (p *fakeProvider) GetSetupIntent(_ context.Context, intentID string) (*provider.Intent, error) {
	intent, ok := p.setupIntents[intentID]
	if !ok {
		return nil, errors.New("no such setup intent")
	}
	copyItem := *intent
	return &copyItem, nil
}

// VerifyAndParseWebhook accepts the signature "valid" and a JSON encoded
// provider.WebhookEvent as payload.
func (p *fakeProvider) VerifyAndParseWebhook(_ context.Context, payload []byte, signature string) (*provider.WebhookEvent, error) {
	if signature != "valid" {
		return nil, provider.ErrWebhookVerification
	}
	var event provider.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, provider.ErrWebhookVerification
	}
	return &event, nil
}

type serviceFixture struct {
	svc         *SubmissionService
	submissions *fakeSubmissionRepo
	payments    *fakePaymentRepo
	events      *fakeEventRepo
	webhooks    *fakeWebhookRepo
	profiles    *fakeProfileRepo
	tx          *fakeTx
	processor   *fakeProvider
	locker      *fakeLocker
	cache       *fakeCache
}

func newFixture(cfg config.GradingConfig) *serviceFixture {
	f := &serviceFixture{
		submissions: newFakeSubmissionRepo(),
		payments:    newFakePaymentRepo(),
		events:      &fakeEventRepo{},
		webhooks:    &fakeWebhookRepo{items: map[string]*entity.WebhookEvent{}},
		profiles:    &fakeProfileRepo{items: map[string]*entity.CustomerProfile{}},
		tx:          &fakeTx{},
		processor:   newFakeProvider(),
		locker:      &fakeLocker{held: map[string]bool{}},
		cache:       &fakeCache{data: map[string][]byte{}},
	}
	f.svc = NewSubmissionService(
		f.submissions,
		f.payments,
		f.events,
		f.webhooks,
		f.profiles,
		f.tx,
		f.processor,
		f.locker,
		f.cache,
		cfg,
	)
	f.tx.snapshot = f.snapshot
	return f
}

func (f *serviceFixture) snapshot() func() {
	submissions := make(map[uint64]*entity.Submission, len(f.submissions.items))
	for id, item := range f.submissions.items {
		submissions[id] = item.Clone()
	}
	payments := make(map[uint64]*entity.Payment, len(f.payments.items))
	for id, item := range f.payments.items {
		payments[id] = clonePayment(item)
	}
	nextSubmission, nextPayment := f.submissions.nextID, f.payments.nextID

	return func() {
		f.submissions.items, f.submissions.nextID = submissions, nextSubmission
		f.payments.items, f.payments.nextID = payments, nextPayment
	}
}

func defaultGradingConfig() config.GradingConfig {
	return config.GradingConfig{
		PricingModel:      entity.PricingModelTier,
		Currency:          "USD",
		AdminPageSize:     2,
		AnalyticsCacheTTL: time.Minute,
		WriteRetries:      3,
		JobBatchSize:      10,
	}
}
