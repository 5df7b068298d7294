package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/vibast-solutions/ms-go-grading/app/entity"
	"github.com/vibast-solutions/ms-go-grading/app/factory"
	"github.com/vibast-solutions/ms-go-grading/app/repository"
	"golang.org/x/sync/errgroup"
)

const analyticsCacheKey = "analytics:v1"

type adminListRequest interface {
	GetView() string
	GetStatus() string
	GetPaymentStatus() string
	GetPage() int32
}

type SubmissionPage struct {
	Items    []*entity.Submission
	Page     int32
	PageSize int32
	Total    int64
}

func (p *SubmissionPage) TotalPages() int32 {
	if p.PageSize <= 0 || p.Total == 0 {
		return 0
	}
	return int32((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}

type Analytics struct {
	TotalSubmissions     int64 `json:"total_submissions"`
	CompletedSubmissions int64 `json:"completed_submissions"`
	InGrading            int64 `json:"in_grading"`
	PaidSubmissions      int64 `json:"paid_submissions"`
	TotalRevenueCents    int64 `json:"total_revenue_cents"`
	PaidRevenueCents     int64 `json:"paid_revenue_cents"`
	UnpaidRevenueCents   int64 `json:"unpaid_revenue_cents"`
}

type DashboardMetrics struct {
	TotalCards        int64
	PaidCards         int64
	UnpaidCards       int64
	UnpaidAmountCents int64
}

// AdminListSubmissions pages through submissions for review. The default
// view only shows active orders.
func (s *SubmissionService) AdminListSubmissions(ctx context.Context, actor *Actor, req adminListRequest) (*SubmissionPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	view := strings.ToLower(strings.TrimSpace(req.GetView()))
	switch view {
	case "":
		view = repository.ViewActive
	case repository.ViewActive, repository.ViewDeferred, repository.ViewAll:
	default:
		return nil, fmt.Errorf("%w: unknown view %q", ErrInvalidRequest, view)
	}

	status := strings.TrimSpace(req.GetStatus())
	if status != "" {
		if !entity.IsValidStatus(status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		if view == repository.ViewActive && !entity.IsFinalizedStatus(status) {
			return nil, fmt.Errorf("%w: %q is not shown among active orders", ErrInvalidStatus, status)
		}
	}

	paymentStatus := strings.ToLower(strings.TrimSpace(req.GetPaymentStatus()))
	switch paymentStatus {
	case "", entity.PaymentStatusUnpaid, entity.PaymentStatusPaid, entity.PaymentStatusFailed:
	default:
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidRequest, paymentStatus)
	}

	page := req.GetPage()
	if page < 1 {
		page = 1
	}
	pageSize := s.cfg.AdminPageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	filter := repository.SubmissionFilter{
		View:          view,
		Status:        status,
		PaymentStatus: paymentStatus,
		Limit:         pageSize,
		Offset:        (page - 1) * pageSize,
	}

	var (
		items []*entity.Submission
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.submissionRepo.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.submissionRepo.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &SubmissionPage{Items: items, Page: page, PageSize: pageSize, Total: total}, nil
}

// Analytics aggregates order and revenue figures. Results are cached
// briefly when a cache is configured.
func (s *SubmissionService) Analytics(ctx context.Context, actor *Actor) (*Analytics, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	logger := factory.LoggerFromContext(ctx, s.logger)
	cached := &Analytics{}
	if hit, err := s.cache.GetJSON(ctx, analyticsCacheKey, cached); err != nil {
		logger.WithError(err).Warn("analytics cache read failed")
	} else if hit {
		return cached, nil
	}

	result := &Analytics{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		result.TotalSubmissions, err = s.submissionRepo.Count(gctx, repository.SubmissionFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		result.CompletedSubmissions, err = s.submissionRepo.Count(gctx, repository.SubmissionFilter{Status: entity.StatusCompleted})
		return err
	})
	g.Go(func() error {
		var err error
		result.InGrading, err = s.submissionRepo.Count(gctx, repository.SubmissionFilter{Status: entity.StatusInGrading})
		return err
	})
	g.Go(func() error {
		var err error
		result.PaidSubmissions, err = s.submissionRepo.Count(gctx, repository.SubmissionFilter{PaymentStatus: entity.PaymentStatusPaid})
		return err
	})
	g.Go(func() error {
		var err error
		result.TotalRevenueCents, err = s.paymentRepo.SumSucceededCents(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		result.PaidRevenueCents, err = s.submissionRepo.SumTotalCents(gctx, repository.SubmissionFilter{PaymentStatus: entity.PaymentStatusPaid})
		return err
	})
	g.Go(func() error {
		var err error
		result.UnpaidRevenueCents, err = s.submissionRepo.SumTotalCents(gctx, repository.SubmissionFilter{PaymentStatus: entity.PaymentStatusUnpaid})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.cache.SetJSON(ctx, analyticsCacheKey, result, s.cfg.AnalyticsCacheTTL); err != nil {
		logger.WithError(err).Warn("analytics cache write failed")
	}
	return result, nil
}

// invalidateAnalytics drops the cached analytics after a committed write.
func (s *SubmissionService) invalidateAnalytics(ctx context.Context) {
	if err := s.cache.Delete(ctx, analyticsCacheKey); err != nil {
		factory.LoggerFromContext(ctx, s.logger).WithError(err).Debug("analytics cache invalidation failed")
	}
}

// Dashboard summarizes the caller's cards across all of their submissions.
func (s *SubmissionService) Dashboard(ctx context.Context, actor *Actor) (*DashboardMetrics, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	items, err := s.submissionRepo.List(ctx, repository.SubmissionFilter{CustomerID: actor.ID})
	if err != nil {
		return nil, err
	}

	metrics := &DashboardMetrics{}
	for _, sub := range items {
		count := int64(sub.CardCount)
		metrics.TotalCards += count
		if sub.IsPaid() {
			metrics.PaidCards += count
			continue
		}
		metrics.UnpaidCards += count
		metrics.UnpaidAmountCents += sub.Pricing.TotalCents
	}
	return metrics, nil
}
