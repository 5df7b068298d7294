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

type SubmissionController struct {
	submissionService *service.SubmissionService
	logger            logrus.FieldLogger
}

func NewSubmissionController(submissionService *service.SubmissionService) *SubmissionController {
	return &SubmissionController{
		submissionService: submissionService,
		logger:            factory.NewModuleLogger("submissions-controller"),
	}
}

func (c *SubmissionController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *SubmissionController) CreateSubmission(ctx echo.Context) error {
	req, err := types.NewCreateSubmissionRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.submissionService.CreateSubmission(ctx.Request().Context(), auth.ActorFromContext(ctx), req)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Create submission")
	}

	return ctx.JSON(http.StatusCreated, &types.SubmissionEnvelopeResponse{Submission: mapper.SubmissionToResponse(item)})
}

func (c *SubmissionController) EditSubmission(ctx echo.Context) error {
	req, err := types.NewUpdateSubmissionRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.submissionService.EditSubmission(ctx.Request().Context(), auth.ActorFromContext(ctx), req)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Edit submission")
	}

	return ctx.JSON(http.StatusOK, &types.SubmissionEnvelopeResponse{Submission: mapper.SubmissionToResponse(item)})
}

func (c *SubmissionController) GetSubmission(ctx echo.Context) error {
	req, err := types.NewGetSubmissionRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.submissionService.GetSubmission(ctx.Request().Context(), auth.ActorFromContext(ctx), req.GetId())
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Get submission")
	}

	return ctx.JSON(http.StatusOK, &types.SubmissionEnvelopeResponse{Submission: mapper.SubmissionToResponse(item)})
}

func (c *SubmissionController) ListSubmissions(ctx echo.Context) error {
	req, err := types.NewListSubmissionsRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.submissionService.ListSubmissions(ctx.Request().Context(), auth.ActorFromContext(ctx), req)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "List submissions")
	}

	return ctx.JSON(http.StatusOK, &types.ListSubmissionsResponse{Submissions: mapper.SubmissionsToResponse(items)})
}

func (c *SubmissionController) ListPayments(ctx echo.Context) error {
	req, err := types.NewGetSubmissionRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.submissionService.ListPayments(ctx.Request().Context(), auth.ActorFromContext(ctx), req.GetId())
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "List payments")
	}

	return ctx.JSON(http.StatusOK, &types.ListPaymentsResponse{Payments: mapper.PaymentsToResponse(items)})
}

func (c *SubmissionController) Dashboard(ctx echo.Context) error {
	metrics, err := c.submissionService.Dashboard(ctx.Request().Context(), auth.ActorFromContext(ctx))
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Dashboard")
	}

	return ctx.JSON(http.StatusOK, &types.DashboardResponse{
		TotalCards:   metrics.TotalCards,
		PaidCards:    metrics.PaidCards,
		UnpaidCards:  metrics.UnpaidCards,
		UnpaidAmount: pricing.FormatCents(metrics.UnpaidAmountCents),
	})
}

// UpdateStatus is admin only; the route also sits behind RequireAdmin.
func (c *SubmissionController) UpdateStatus(ctx echo.Context) error {
	req, err := types.NewUpdateStatusRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.submissionService.UpdateStatus(ctx.Request().Context(), auth.ActorFromContext(ctx), req)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Update submission status")
	}

	return ctx.JSON(http.StatusOK, &types.SubmissionEnvelopeResponse{Submission: mapper.SubmissionToResponse(item)})
}
