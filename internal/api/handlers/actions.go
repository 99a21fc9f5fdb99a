// actions.go — единый endpoint административных действий.
// Запрос уже прошёл AdminAuth; здесь разбирается тело и выбирается действие.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/admin-gateway/internal/api/errors"
	"github.com/bigkaa/goartstore/admin-gateway/internal/api/middleware"
	"github.com/bigkaa/goartstore/admin-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/admin-gateway/internal/service"
)

// maxBodyBytes — максимальный размер тела запроса.
const maxBodyBytes = 1 << 20

// usersAuthInfoResponse — ответ get-users-auth-info.
type usersAuthInfoResponse struct {
	Users map[string]model.AuthInfo `json:"users"`
}

// toggleBanResponse — ответ toggle-ban.
type toggleBanResponse struct {
	Success bool `json:"success"`
	Banned  bool `json:"banned"`
}

// successResponse — ответ reset-password.
type successResponse struct {
	Success bool `json:"success"`
}

// HandleAdminUsers — POST (и любой другой метод, кроме OPTIONS) /api/v1/admin-users.
func (h *APIHandler) HandleAdminUsers(w http.ResponseWriter, r *http.Request) {
	admin := middleware.AdminFromContext(r.Context())
	if admin == nil {
		apierrors.Unauthorized(w, "Missing admin context")
		return
	}

	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	action, err := model.ParseAction(req)
	if err != nil {
		middleware.SetRequestAction(r.Context(), middleware.ActionLabelUnknown)
		h.logger.Debug("Неизвестное действие",
			slog.String("action", req.Action),
			slog.String("caller_id", admin.CallerID),
		)
		apierrors.ValidationError(w, model.ErrUnknownAction.Error())
		return
	}

	middleware.SetRequestAction(r.Context(), action.Name())

	switch a := action.(type) {
	case model.GetUsersAuthInfo:
		users, err := h.authInfo.GetUsersAuthInfo(r.Context(), a.UserIDs)
		if err != nil {
			h.writeError(w, r, a.Name(), err)
			return
		}
		writeJSON(w, http.StatusOK, usersAuthInfoResponse{Users: users})

	case model.ToggleBan:
		banned, err := h.ban.ToggleBan(r.Context(), admin.CallerID, a.UserID)
		if err != nil {
			h.writeError(w, r, a.Name(), err)
			return
		}
		writeJSON(w, http.StatusOK, toggleBanResponse{Success: true, Banned: banned})

	case model.ResetPassword:
		if err := h.reset.ResetPassword(r.Context(), admin.CallerID, a.UserID); err != nil {
			h.writeError(w, r, a.Name(), err)
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true})

	default:
		apierrors.ValidationError(w, model.ErrUnknownAction.Error())
	}
}

// decodeRequest читает тело, проверяет JSON и схему, декодирует ActionRequest.
// При ошибке пишет ответ 400 и возвращает false.
func (h *APIHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (model.ActionRequest, bool) {
	var req model.ActionRequest

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.ValidationError(w, "Request body too large")
			return req, false
		}
		apierrors.ValidationError(w, "Failed to read request body")
		return req, false
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		apierrors.ValidationError(w, "Invalid JSON body")
		return req, false
	}

	if h.validator != nil {
		if err := h.validator.ValidateSchema("ActionRequest", raw); err != nil {
			apierrors.ValidationError(w, "Invalid request: "+err.Error())
			return req, false
		}
	}

	if err := json.Unmarshal(data, &req); err != nil {
		apierrors.ValidationError(w, "Invalid request: "+err.Error())
		return req, false
	}

	return req, true
}

// writeError пишет ответ по виду ошибки; внутренние ошибки логируются.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, action string, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		h.logger.Error("Ошибка выполнения действия",
			slog.String("action", action),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
	}
	apierrors.FromError(w, err)
}
