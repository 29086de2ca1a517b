package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pocketbase/pocketbase/core"

	"expo-booking/internal/services"
	"expo-booking/internal/status"
)

// respondError logs err and writes the client-safe body. Server-side
// causes are never sent.
func respondError(e *core.RequestEvent, op string, err error) error {
	code := status.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		slog.Error(op, "path", e.Request.URL.Path, "error", err)
	} else {
		slog.Info(op, "path", e.Request.URL.Path, "status", code, "error", err)
	}

	msg := status.Message(err)
	body := map[string]any{"error": msg}
	if errors.Is(err, status.ErrValidation) && strings.Contains(msg, "; ") {
		body["details"] = strings.Split(msg, "; ")
	}
	return e.JSON(code, body)
}

func bindBody(e *core.RequestEvent, dst any) error {
	if e.Request.ContentLength == 0 {
		return nil
	}
	if err := e.BindBody(dst); err != nil {
		return status.Wrap(status.ErrValidation, "invalid request body", err)
	}
	return nil
}

func isAdmin(r *core.Record) bool {
	if r == nil {
		return false
	}
	return r.IsSuperuser() || r.GetString("role") == "admin"
}

func actorFrom(e *core.RequestEvent) services.Actor {
	if e.Auth == nil {
		return services.Actor{}
	}
	return services.Actor{Email: e.Auth.Email(), IsAdmin: isAdmin(e.Auth)}
}

// RequireAdmin lets superusers and users with the admin role through.
func RequireAdmin(e *core.RequestEvent) error {
	if e.Auth == nil {
		return respondError(e, "RequireAdmin", status.Errorf(status.ErrUnauthorized, "authentication required"))
	}
	if !isAdmin(e.Auth) {
		return respondError(e, "RequireAdmin", status.Errorf(status.ErrForbidden, "admin access required"))
	}
	return e.Next()
}
