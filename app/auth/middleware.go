package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-grading/app/factory"
	"github.com/vibast-solutions/ms-go-grading/app/service"
	"github.com/vibast-solutions/ms-go-grading/app/types"
)

const actorContextKey = "grading.actor"

type actorKey struct{}

type EchoMiddleware struct {
	tokens *TokenManager
	logger logrus.FieldLogger
}

func NewEchoMiddleware(tokens *TokenManager) *EchoMiddleware {
	return &EchoMiddleware{
		tokens: tokens,
		logger: factory.NewModuleLogger("auth-middleware"),
	}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller on both the echo and the request context.
func (m *EchoMiddleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderAuthorization))
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "missing bearer token"})
			}

			claims, err := m.tokens.Parse(strings.TrimSpace(token))
			if err != nil {
				factory.LoggerWithContext(m.logger, ctx).WithError(err).Debug("rejected bearer token")
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: err.Error()})
			}

			actor := claims.Actor()
			ctx.Set(actorContextKey, actor)
			ctx.SetRequest(ctx.Request().WithContext(ContextWithActor(ctx.Request().Context(), actor)))
			return next(ctx)
		}
	}
}

// RequireAdmin must run after RequireAuth.
func (m *EchoMiddleware) RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor := ActorFromContext(ctx)
			if actor == nil {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "missing bearer token"})
			}
			if !actor.IsAdmin() {
				return ctx.JSON(http.StatusForbidden, &types.ErrorResponse{Error: "admin access required"})
			}
			return next(ctx)
		}
	}
}

func ActorFromContext(ctx echo.Context) *service.Actor {
	if actor, ok := ctx.Get(actorContextKey).(*service.Actor); ok {
		return actor
	}
	return ActorFromRequestContext(ctx.Request().Context())
}

func ContextWithActor(ctx context.Context, actor *service.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromRequestContext(ctx context.Context) *service.Actor {
	if actor, ok := ctx.Value(actorKey{}).(*service.Actor); ok {
		return actor
	}
	return nil
}
