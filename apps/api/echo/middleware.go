package echoapi

import (
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/user"
)

// actorMiddleware loads the authenticated User once per request and stores their Actor, if they have a role.
func actorMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			if act, ok := user.ActorFor(usr); ok {
				ctx.Set(contextActorKey, act)
			}
			return next(ctx)
		}
	}
}

// roleMiddleware lets through actors of one of kinds.
func roleMiddleware(kinds ...user.Kind) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			act, err := getContextActor(ctx)
			if err != nil {
				return err
			}
			if user.HasKind(act, kinds...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	if claims, err := getContextClaims(ctx); err == nil {
		sort.Strings(claims.Roles)
		for _, role := range roles {
			if i := sort.SearchStrings(claims.Roles, role); i < len(claims.Roles) {
				if match := claims.Roles[i]; role == match {
					return true
				}
			}
		}
	}
	return false
}

// withActor adapts a handler that needs the request Actor.
func withActor(fn func(ctx echo.Context, act user.Actor) error) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		act, err := getContextActor(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, act)
	}
}
