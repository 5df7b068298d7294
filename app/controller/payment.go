package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-grading/app/auth"
	"github.com/vibast-solutions/ms-go-grading/app/factory"
	"github.com/vibast-solutions/ms-go-grading/app/mapper"
	"github.com/vibast-solutions/ms-go-grading/app/service"
	"github.com/vibast-solutions/ms-go-grading/app/types"
)

type PaymentController struct {
	submissionService *service.SubmissionService
	logger            logrus.FieldLogger
}

func NewPaymentController(submissionService *service.SubmissionService) *PaymentController {
	return &PaymentController{
		submissionService: submissionService,
		logger:            factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) PayNow(ctx echo.Context) error {
	req, err := types.NewPayNowRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	session, err := c.submissionService.InitiatePayNow(ctx.Request().Context(), auth.ActorFromContext(ctx), req)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Initiate pay now")
	}

	return ctx.JSON(http.StatusCreated, mapper.IntentToResponse(session.Submission, session.Payment, session.Intent))
}

func (c *PaymentController) ConfirmPayNow(ctx echo.Context) error {
	req, err := types.NewConfirmPaymentRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.submissionService.ConfirmPayNow(ctx.Request().Context(), auth.ActorFromContext(ctx), req)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Confirm pay now")
	}

	return ctx.JSON(http.StatusOK, &types.SubmissionEnvelopeResponse{Submission: mapper.SubmissionToResponse(item)})
}

func (c *PaymentController) PayLater(ctx echo.Context) error {
	req, err := types.NewPayLaterRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	session, err := c.submissionService.InitiatePayLater(ctx.Request().Context(), auth.ActorFromContext(ctx), req)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Initiate pay later")
	}

	return ctx.JSON(http.StatusCreated, mapper.IntentToResponse(session.Submission, nil, session.Intent))
}

func (c *PaymentController) ConfirmPaymentMethod(ctx echo.Context) error {
	req, err := types.NewConfirmPaymentMethodRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.submissionService.ConfirmPaymentMethod(ctx.Request().Context(), auth.ActorFromContext(ctx), req)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Confirm payment method")
	}

	return ctx.JSON(http.StatusOK, &types.SubmissionEnvelopeResponse{Submission: mapper.SubmissionToResponse(item)})
}

// StripeWebhook acknowledges every verified event, including duplicates and
// events that match nothing here.
func (c *PaymentController) StripeWebhook(ctx echo.Context) error {
	req, err := types.NewStripeWebhookRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	outcome, err := c.submissionService.HandleStripeWebhook(ctx.Request().Context(), req)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Handle stripe webhook")
	}

	return ctx.JSON(http.StatusOK, &types.WebhookAckResponse{Received: true, Status: outcome})
}
