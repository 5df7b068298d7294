package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-grading/app/auth"
	"github.com/vibast-solutions/ms-go-grading/app/entity"
	"github.com/vibast-solutions/ms-go-grading/app/provider"
	"github.com/vibast-solutions/ms-go-grading/app/repository"
	"github.com/vibast-solutions/ms-go-grading/app/service"
	"github.com/vibast-solutions/ms-go-grading/app/types"
	"github.com/vibast-solutions/ms-go-grading/config"
)

type controllerSubmissionRepo struct {
	createFn   func(ctx context.Context, sub *entity.Submission) error
	findByIDFn func(ctx context.Context, id uint64) (*entity.Submission, error)
	listFn     func(ctx context.Context, filter repository.SubmissionFilter) ([]*entity.Submission, error)
	countFn    func(ctx context.Context, filter repository.SubmissionFilter) (int64, error)
	sumFn      func(ctx context.Context, filter repository.SubmissionFilter) (int64, error)
}

func (r *controllerSubmissionRepo) Create(ctx context.Context, sub *entity.Submission) error {
	if r.createFn != nil {
		return r.createFn(ctx, sub)
	}
	return nil
}

func (r *controllerSubmissionRepo) Update(context.Context, *entity.Submission) error {
	return nil
}

func (r *controllerSubmissionRepo) FindByID(ctx context.Context, id uint64) (*entity.Submission, error) {
	if r.findByIDFn != nil {
		return r.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (r *controllerSubmissionRepo) FindDraftByCustomer(context.Context, string) (*entity.Submission, error) {
	return nil, nil
}

func (r *controllerSubmissionRepo) FindByPaymentIntentID(context.Context, string) (*entity.Submission, error) {
	return nil, nil
}

func (r *controllerSubmissionRepo) FindBySetupIntentID(context.Context, string) (*entity.Submission, error) {
	return nil, nil
}

func (r *controllerSubmissionRepo) List(ctx context.Context, filter repository.SubmissionFilter) ([]*entity.Submission, error) {
	if r.listFn != nil {
		return r.listFn(ctx, filter)
	}
	return []*entity.Submission{}, nil
}

func (r *controllerSubmissionRepo) Count(ctx context.Context, filter repository.SubmissionFilter) (int64, error) {
	if r.countFn != nil {
		return r.countFn(ctx, filter)
	}
	return 0, nil
}

func (r *controllerSubmissionRepo) SumTotalCents(ctx context.Context, filter repository.SubmissionFilter) (int64, error) {
	if r.sumFn != nil {
		return r.sumFn(ctx, filter)
	}
	return 0, nil
}

type controllerPaymentRepo struct{}

func (r *controllerPaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	payment.ID = 1
	return nil
}

func (r *controllerPaymentRepo) AttachIntent(context.Context, uint64, string, time.Time) error {
	return nil
}

func (r *controllerPaymentRepo) CompletePending(context.Context, uint64, repository.PaymentCompletion) (bool, error) {
	return true, nil
}

func (r *controllerPaymentRepo) FindByID(context.Context, uint64) (*entity.Payment, error) {
	return nil, nil
}

func (r *controllerPaymentRepo) FindByIntentID(context.Context, string) (*entity.Payment, error) {
	return nil, nil
}

func (r *controllerPaymentRepo) ListBySubmission(context.Context, uint64) ([]*entity.Payment, error) {
	return []*entity.Payment{}, nil
}

func (r *controllerPaymentRepo) RefreshPending(context.Context, uint64, *string, time.Time) (bool, error) {
	return true, nil
}

func (r *controllerPaymentRepo) FindOpenCharge(context.Context, uint64) (*entity.Payment, error) {
	return nil, nil
}

func (r *controllerPaymentRepo) ListStalePending(context.Context, time.Time, int32) ([]*entity.Payment, error) {
	return []*entity.Payment{}, nil
}

func (r *controllerPaymentRepo) SumSucceededCents(context.Context) (int64, error) {
	return 10290, nil
}

type controllerEventRepo struct{}

func (r *controllerEventRepo) Create(context.Context, *entity.SubmissionEvent) error {
	return nil
}

type controllerWebhookRepo struct {
	created []*entity.WebhookEvent
}

func (r *controllerWebhookRepo) Create(_ context.Context, event *entity.WebhookEvent) error {
	r.created = append(r.created, event)
	return nil
}

func (r *controllerWebhookRepo) FindByProviderEventID(context.Context, string) (*entity.WebhookEvent, error) {
	return nil, nil
}

type controllerProfileRepo struct{}

func (r *controllerProfileRepo) Create(context.Context, *entity.CustomerProfile) error {
	return nil
}

func (r *controllerProfileRepo) FindByCustomerID(_ context.Context, customerID string) (*entity.CustomerProfile, error) {
	return &entity.CustomerProfile{CustomerID: customerID, StripeCustomerID: "cus_1"}, nil
}

type controllerTx struct{}

func (controllerTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type controllerLocker struct{}

func (controllerLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

type controllerCache struct{}

func (controllerCache) GetJSON(context.Context, string, interface{}) (bool, error) { return false, nil }
func (controllerCache) SetJSON(context.Context, string, interface{}, time.Duration) error {
	return nil
}
func (controllerCache) Delete(context.Context, string) error { return nil }

type controllerProvider struct {
	intentErr  error
	webhookErr error
	webhookEvt *provider.WebhookEvent
}

func (p *controllerProvider) CreateCustomer(context.Context, *provider.CustomerInput) (string, error) {
	return "cus_1", nil
}

func (p *controllerProvider) CreatePaymentIntent(context.Context, *provider.PaymentIntentInput) (*provider.Intent, error) {
	if p.intentErr != nil {
		return nil, p.intentErr
	}
	return &provider.Intent{ID: "pi_1", ClientSecret: "pi_1_secret", Status: provider.IntentPending}, nil
}

func (p *controllerProvider) GetPaymentIntent(context.Context, string) (*provider.Intent, error) {
	return &provider.Intent{ID: "pi_1", Status: provider.IntentPending}, nil
}

func (p *controllerProvider) CancelPaymentIntent(context.Context, string) error {
	return nil
}

func (p *controllerProvider) ChargeOffSession(context.Context, *provider.ChargeInput) (*provider.Intent, error) {
	return nil, &provider.ProcessorError{Code: "card_declined", Message: "Your card was declined."}
}

func (p *controllerProvider) CreateSetupIntent(context.Context, *provider.SetupIntentInput) (*provider.Intent, error) {
	return &provider.Intent{ID: "seti_1", ClientSecret: "seti_1_secret", Status: provider.IntentPending}, nil
}

func (p *controllerProvider) GetSetupIntent(context.Context, string) (*provider.Intent, error) {
	return &provider.Intent{ID: "seti_1", Status: provider.IntentPending}, nil
}

func (p *controllerProvider) VerifyAndParseWebhook(context.Context, []byte, string) (*provider.WebhookEvent, error) {
	if p.webhookErr != nil {
		return nil, p.webhookErr
	}
	if p.webhookEvt != nil {
		return p.webhookEvt, nil
	}
	return &provider.WebhookEvent{ID: "evt_1", Type: "customer.updated"}, nil
}

type controllerFixture struct {
	submissions *SubmissionController
	payments    *PaymentController
	admin       *AdminController
	webhooks    *controllerWebhookRepo
}

func newControllersForTest(repo *controllerSubmissionRepo, p *controllerProvider) *controllerFixture {
	webhooks := &controllerWebhookRepo{}
	submissionService := service.NewSubmissionService(
		repo,
		&controllerPaymentRepo{},
		&controllerEventRepo{},
		webhooks,
		&controllerProfileRepo{},
		controllerTx{},
		p,
		controllerLocker{},
		controllerCache{},
		config.GradingConfig{PricingModel: entity.PricingModelTier, Currency: "USD", AdminPageSize: 2, WriteRetries: 3},
	)
	return &controllerFixture{
		submissions: NewSubmissionController(submissionService),
		payments:    NewPaymentController(submissionService),
		admin:       NewAdminController(submissionService),
		webhooks:    webhooks,
	}
}

var (
	testCustomer = &service.Actor{ID: "cust-1", Role: service.RoleCustomer}
	testAdmin    = &service.Actor{ID: "admin-1", Role: service.RoleAdmin}
)

func newContext(method, target, body string, actor *service.Actor) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	if actor != nil {
		req = req.WithContext(auth.ContextWithActor(req.Context(), actor))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func unpaidSubmission(id uint64, customerID string) *entity.Submission {
	return &entity.Submission{
		ID:               id,
		CustomerID:       customerID,
		CardCount:        3,
		PricingModel:     entity.PricingModelTier,
		ServiceTier:      entity.TierSpeedDemon,
		Pricing:          entity.Pricing{BasePriceCents: 28900, ProcessingFeeCents: 1445, TotalCents: 30345},
		PaymentStatus:    entity.PaymentStatusUnpaid,
		SubmissionStatus: entity.StatusCreated,
		Version:          1,
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var payload types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return payload
}

func TestHealth(t *testing.T) {
	f := newControllersForTest(&controllerSubmissionRepo{}, &controllerProvider{})
	ctx, rec := newContext(http.MethodGet, "/health", "", nil)

	_ = f.submissions.Health(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateSubmissionBadBody(t *testing.T) {
	f := newControllersForTest(&controllerSubmissionRepo{}, &controllerProvider{})
	ctx, rec := newContext(http.MethodPost, "/submissions", "{bad", testCustomer)

	if err := f.submissions.CreateSubmission(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateSubmissionInvalidTier(t *testing.T) {
	f := newControllersForTest(&controllerSubmissionRepo{}, &controllerProvider{})
	ctx, rec := newContext(http.MethodPost, "/submissions", `{"serviceTier":"GOLD","cardCount":1}`, testCustomer)

	_ = f.submissions.CreateSubmission(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestCreateSubmissionSuccess(t *testing.T) {
	repo := &controllerSubmissionRepo{createFn: func(_ context.Context, sub *entity.Submission) error {
		sub.ID = 12
		sub.Version = 1
		return nil
	}}
	f := newControllersForTest(repo, &controllerProvider{})
	body := `{"serviceTier":"the_standard","cards":[{"player":"Griffey","year":"1989","set":"Upper Deck","cardNumber":"1","price":"10"}]}`
	ctx, rec := newContext(http.MethodPost, "/submissions", body, testCustomer)

	_ = f.submissions.CreateSubmission(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.SubmissionEnvelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Submission.Id != 12 || payload.Submission.Pricing.Total != "51.45" || payload.Submission.ServiceTier != entity.TierTheStandard {
		t.Fatalf("unexpected submission payload: %+v", payload.Submission)
	}
}

func TestCreateSubmissionUnauthenticated(t *testing.T) {
	f := newControllersForTest(&controllerSubmissionRepo{}, &controllerProvider{})
	ctx, rec := newContext(http.MethodPost, "/submissions", `{"serviceTier":"BIG_MONEY","cardCount":1}`, nil)

	_ = f.submissions.CreateSubmission(ctx)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGetSubmissionNotFoundAndForbidden(t *testing.T) {
	repo := &controllerSubmissionRepo{findByIDFn: func(_ context.Context, id uint64) (*entity.Submission, error) {
		if id == 5 {
			return unpaidSubmission(5, "cust-2"), nil
		}
		return nil, nil
	}}
	f := newControllersForTest(repo, &controllerProvider{})

	ctx, rec := newContext(http.MethodGet, "/submissions/9", "", testCustomer)
	ctx.SetParamNames("id")
	ctx.SetParamValues("9")
	_ = f.submissions.GetSubmission(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	ctx, rec = newContext(http.MethodGet, "/submissions/5", "", testCustomer)
	ctx.SetParamNames("id")
	ctx.SetParamValues("5")
	_ = f.submissions.GetSubmission(ctx)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	ctx, rec = newContext(http.MethodGet, "/submissions/abc", "", testCustomer)
	ctx.SetParamNames("id")
	ctx.SetParamValues("abc")
	_ = f.submissions.GetSubmission(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad id, got %d", rec.Code)
	}
}

func TestEditPaidSubmissionConflict(t *testing.T) {
	repo := &controllerSubmissionRepo{findByIDFn: func(context.Context, uint64) (*entity.Submission, error) {
		sub := unpaidSubmission(4, "cust-1")
		sub.PaymentStatus = entity.PaymentStatusPaid
		return sub, nil
	}}
	f := newControllersForTest(repo, &controllerProvider{})
	ctx, rec := newContext(http.MethodPatch, "/submissions/4", `{"serviceTier":"BIG_MONEY","cardCount":2}`, testCustomer)
	ctx.SetParamNames("id")
	ctx.SetParamValues("4")

	_ = f.submissions.EditSubmission(ctx)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestUpdateStatusPaymentRequired(t *testing.T) {
	repo := &controllerSubmissionRepo{findByIDFn: func(context.Context, uint64) (*entity.Submission, error) {
		return unpaidSubmission(7, "cust-1"), nil
	}}
	f := newControllersForTest(repo, &controllerProvider{})
	ctx, rec := newContext(http.MethodPatch, "/admin/submissions/7/status", `{"submissionStatus":"In Grading"}`, testAdmin)
	ctx.SetParamNames("id")
	ctx.SetParamValues("7")

	_ = f.submissions.UpdateStatus(ctx)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestUpdateStatusDeclinedChargeReturnsProcessorMessage(t *testing.T) {
	repo := &controllerSubmissionRepo{findByIDFn: func(context.Context, uint64) (*entity.Submission, error) {
		sub := unpaidSubmission(7, "cust-1")
		method := "pm_1"
		sub.StripePaymentMethodID = &method
		sub.SubmissionStatus = entity.StatusInGrading
		return sub, nil
	}}
	f := newControllersForTest(repo, &controllerProvider{})
	ctx, rec := newContext(http.MethodPatch, "/admin/submissions/7/status", `{"submissionStatus":"Ready for Payment"}`, testAdmin)
	ctx.SetParamNames("id")
	ctx.SetParamValues("7")

	_ = f.submissions.UpdateStatus(ctx)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	payload := decodeError(t, rec)
	if payload.Error != "Your card was declined." || payload.Code != "card_declined" {
		t.Fatalf("unexpected error payload: %+v", payload)
	}
}

func TestPayNowSuccessAndProcessorError(t *testing.T) {
	repo := &controllerSubmissionRepo{findByIDFn: func(context.Context, uint64) (*entity.Submission, error) {
		return unpaidSubmission(3, "cust-1"), nil
	}}

	f := newControllersForTest(repo, &controllerProvider{})
	ctx, rec := newContext(http.MethodPost, "/payments/pay-now", `{"submissionId":3}`, testCustomer)
	_ = f.payments.PayNow(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var intent types.IntentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &intent); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if intent.ClientSecret != "pi_1_secret" || intent.Amount != "303.45" || !intent.PaymentRequired {
		t.Fatalf("unexpected intent payload: %+v", intent)
	}

	f = newControllersForTest(repo, &controllerProvider{intentErr: &provider.ProcessorError{Code: "amount_too_small", Message: "Amount too small"}})
	ctx, rec = newContext(http.MethodPost, "/payments/pay-now", `{"submissionId":3}`, testCustomer)
	_ = f.payments.PayNow(ctx)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	if payload := decodeError(t, rec); payload.Code != "amount_too_small" {
		t.Fatalf("unexpected error payload: %+v", payload)
	}
}

func TestPayNowMissingSubmission(t *testing.T) {
	f := newControllersForTest(&controllerSubmissionRepo{}, &controllerProvider{})
	ctx, rec := newContext(http.MethodPost, "/payments/pay-now", `{}`, testCustomer)

	_ = f.payments.PayNow(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestConfirmPayNowUnknownIntent(t *testing.T) {
	repo := &controllerSubmissionRepo{findByIDFn: func(context.Context, uint64) (*entity.Submission, error) {
		return unpaidSubmission(3, "cust-1"), nil
	}}
	f := newControllersForTest(repo, &controllerProvider{})
	ctx, rec := newContext(http.MethodPost, "/payments/confirm", `{"submissionId":3,"paymentIntentId":"pi_x"}`, testCustomer)

	_ = f.payments.ConfirmPayNow(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStripeWebhook(t *testing.T) {
	f := newControllersForTest(&controllerSubmissionRepo{}, &controllerProvider{})

	ctx, rec := newContext(http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`, nil)
	_ = f.payments.StripeWebhook(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without signature, got %d", rec.Code)
	}

	ctx, rec = newContext(http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`, nil)
	ctx.Request().Header.Set("Stripe-Signature", "t=1,v1=abc")
	_ = f.payments.StripeWebhook(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var ack types.WebhookAckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !ack.Received || ack.Status != service.WebhookOutcomeIgnored {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if len(f.webhooks.created) != 1 {
		t.Fatalf("expected the event recorded, got %d", len(f.webhooks.created))
	}
}

func TestStripeWebhookRejected(t *testing.T) {
	f := newControllersForTest(&controllerSubmissionRepo{}, &controllerProvider{webhookErr: provider.ErrWebhookVerification})
	ctx, rec := newContext(http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`, nil)
	ctx.Request().Header.Set("Stripe-Signature", "t=1,v1=forged")

	_ = f.payments.StripeWebhook(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(f.webhooks.created) != 0 {
		t.Fatal("rejected webhook must not be recorded")
	}
}

func TestAdminListSubmissions(t *testing.T) {
	repo := &controllerSubmissionRepo{
		listFn: func(_ context.Context, filter repository.SubmissionFilter) ([]*entity.Submission, error) {
			if filter.View != repository.ViewActive || filter.Limit != 2 || filter.Offset != 2 {
				t.Errorf("unexpected filter: %+v", filter)
			}
			return []*entity.Submission{unpaidSubmission(1, "cust-1")}, nil
		},
		countFn: func(context.Context, repository.SubmissionFilter) (int64, error) { return 3, nil },
	}
	f := newControllersForTest(repo, &controllerProvider{})
	ctx, rec := newContext(http.MethodGet, "/admin/submissions?page=2", "", testAdmin)

	_ = f.admin.ListSubmissions(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var payload types.AdminListSubmissionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Pagination.Total != 3 || payload.Pagination.TotalPages != 2 || payload.Pagination.Page != 2 {
		t.Fatalf("unexpected pagination: %+v", payload.Pagination)
	}
}

func TestAdminListBadPage(t *testing.T) {
	f := newControllersForTest(&controllerSubmissionRepo{}, &controllerProvider{})
	ctx, rec := newContext(http.MethodGet, "/admin/submissions?page=x", "", testAdmin)

	_ = f.admin.ListSubmissions(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAnalyticsFormatsRevenue(t *testing.T) {
	repo := &controllerSubmissionRepo{
		countFn: func(context.Context, repository.SubmissionFilter) (int64, error) { return 2, nil },
		sumFn: func(_ context.Context, filter repository.SubmissionFilter) (int64, error) {
			if filter.PaymentStatus == entity.PaymentStatusPaid {
				return 10290, nil
			}
			return 7245, nil
		},
	}
	f := newControllersForTest(repo, &controllerProvider{})

	ctx, rec := newContext(http.MethodGet, "/admin/analytics", "", testAdmin)
	_ = f.admin.Analytics(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload types.AnalyticsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.TotalRevenue != "102.90" || payload.UnpaidRevenue != "72.45" || payload.TotalSubmissions != 2 {
		t.Fatalf("unexpected analytics payload: %+v", payload)
	}

	ctx, rec = newContext(http.MethodGet, "/admin/analytics", "", testCustomer)
	_ = f.admin.Analytics(ctx)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a customer, got %d", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	repo := &controllerSubmissionRepo{listFn: func(_ context.Context, filter repository.SubmissionFilter) ([]*entity.Submission, error) {
		if filter.CustomerID != "cust-1" {
			t.Fatalf("unexpected customer filter: %s", filter.CustomerID)
		}
		return []*entity.Submission{unpaidSubmission(1, "cust-1")}, nil
	}}
	f := newControllersForTest(repo, &controllerProvider{})
	ctx, rec := newContext(http.MethodGet, "/submissions/dashboard", "", testCustomer)

	_ = f.submissions.Dashboard(ctx)
	var payload types.DashboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.UnpaidCards != 3 || payload.UnpaidAmount != "303.45" {
		t.Fatalf("unexpected dashboard payload: %+v", payload)
	}
}
