package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func parseIDParam(ctx echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param("id")), 10, 64)
	if err != nil {
		return 0, errors.New("invalid submission id")
	}
	return id, nil
}
