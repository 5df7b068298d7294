package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-grading/app/auth"
	"github.com/vibast-solutions/ms-go-grading/app/factory"
	"github.com/vibast-solutions/ms-go-grading/app/mapper"
	"github.com/vibast-solutions/ms-go-grading/app/pricing"
	"github.com/vibast-solutions/ms-go-grading/app/service"
	"github.com/vibast-solutions/ms-go-grading/app/types"
)

type AdminController struct {
	submissionService *service.SubmissionService
	logger            logrus.FieldLogger
}

func NewAdminController(submissionService *service.SubmissionService) *AdminController {
	return &AdminController{
		submissionService: submissionService,
		logger:            factory.NewModuleLogger("admin-controller"),
	}
}

func (c *AdminController) ListSubmissions(ctx echo.Context) error {
	req, err := types.NewAdminListSubmissionsRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	page, err := c.submissionService.AdminListSubmissions(ctx.Request().Context(), auth.ActorFromContext(ctx), req)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Admin list submissions")
	}

	return ctx.JSON(http.StatusOK, &types.AdminListSubmissionsResponse{
		Submissions: mapper.SubmissionsToResponse(page.Items),
		Pagination: types.PaginationResponse{
			Page:       page.Page,
			PageSize:   page.PageSize,
			Total:      page.Total,
			TotalPages: page.TotalPages(),
		},
	})
}

func (c *AdminController) Analytics(ctx echo.Context) error {
	stats, err := c.submissionService.Analytics(ctx.Request().Context(), auth.ActorFromContext(ctx))
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Analytics")
	}

	return ctx.JSON(http.StatusOK, &types.AnalyticsResponse{
		TotalSubmissions:     stats.TotalSubmissions,
		CompletedSubmissions: stats.CompletedSubmissions,
		InGrading:            stats.InGrading,
		PaidSubmissions:      stats.PaidSubmissions,
		TotalRevenue:         pricing.FormatCents(stats.TotalRevenueCents),
		PaidRevenue:          pricing.FormatCents(stats.PaidRevenueCents),
		UnpaidRevenue:        pricing.FormatCents(stats.UnpaidRevenueCents),
	})
}
