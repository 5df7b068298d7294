package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-grading/app/factory"
	"github.com/vibast-solutions/ms-go-grading/app/provider"
	"github.com/vibast-solutions/ms-go-grading/app/service"
	"github.com/vibast-solutions/ms-go-grading/app/types"
)

func writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

// writeServiceError maps service failures to HTTP responses. Processor
// errors expose only the upstream message and code.
func writeServiceError(ctx echo.Context, logger logrus.FieldLogger, err error, operation string) error {
	var processorErr *provider.ProcessorError
	switch {
	case errors.As(err, &processorErr):
		return ctx.JSON(http.StatusPaymentRequired, &types.ErrorResponse{Error: processorErr.Message, Code: processorErr.Code})
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidTier), errors.Is(err, service.ErrInvalidStatus):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrWebhookRejected):
		return writeError(ctx, http.StatusBadRequest, "webhook signature verification failed")
	case errors.Is(err, service.ErrUnauthenticated):
		return writeError(ctx, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAccessDenied):
		return writeError(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrSubmissionNotFound), errors.Is(err, service.ErrIntentNotFound):
		return writeError(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrImmutableSubmission),
		errors.Is(err, service.ErrPaymentNotCompleted),
		errors.Is(err, service.ErrConcurrentUpdate):
		return writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPaymentRequired):
		return writeError(ctx, http.StatusPaymentRequired, err.Error())
	default:
		factory.LoggerWithContext(logger, ctx).WithError(err).Error(operation + " failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}
