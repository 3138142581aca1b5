package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/service"
	"github.com/aussiebroadwan/hostdesk/pkg/authsdk"
	"github.com/aussiebroadwan/hostdesk/pkg/httpx"
)

// AdminHandler serves user management, security settings and the audit log.
// Every route is gated on the admin role by the router.
type AdminHandler struct {
	AdminService *service.AdminService
}

// HandleListUsers handles GET /admin/users
//
//	@Summary		List users
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserListResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing or invalid session token"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Admin role required"
//	@Router			/admin/users [get]
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.AdminService.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := authsdk.UserListResponse{Users: make([]authsdk.AdminUser, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, authsdk.AdminUser{
			User:      toUser(u.Profile),
			IsActive:  u.IsActive,
			TwoFactor: toTwoFactor(u.TwoFactor),
			CreatedAt: u.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleCreateUser handles POST /admin/users
//
//	@Summary		Create a user
//	@Description	Generates a temporary password that must be changed at first sign-in and emails it to the user. The password is also returned once in the response.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.CreateUserRequest	true	"New user"
//	@Success		201		{object}	authsdk.CreateUserResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Validation failed"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Admin role required"
//	@Router			/admin/users [post]
func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := userID(w, r)
	if !ok {
		return
	}
	var req authsdk.CreateUserRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = string(domain.RoleUser)
	}

	created, err := h.AdminService.CreateUser(r.Context(), actorID, req.Email, req.Name, domain.Role(req.Role), clientInfo(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, authsdk.CreateUserResponse{
		User:              toUser(created.Profile),
		TemporaryPassword: created.TemporaryPassword,
	})
}

// HandleSetUserActive handles POST /admin/users/{id}/active
//
//	@Summary		Activate or deactivate a user
//	@Description	Deactivated users cannot sign in and their pending logins fail at the next step.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Accept			json
//	@Param			id		path	string						true	"User ID"
//	@Param			request	body	authsdk.SetActiveRequest	true	"Desired state"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"Own account or higher role"
//	@Failure		404	{object}	authsdk.ErrorResponse	"User not found"
//	@Router			/admin/users/{id}/active [post]
func (h *AdminHandler) HandleSetUserActive(w http.ResponseWriter, r *http.Request) {
	actorID, ok := userID(w, r)
	if !ok {
		return
	}
	var req authsdk.SetActiveRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := h.AdminService.SetUserActive(r.Context(), actorID, r.PathValue("id"), req.Active, clientInfo(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetSecuritySettings handles GET /admin/security-settings
//
//	@Summary		Get security settings
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.SecuritySettings
//	@Router			/admin/security-settings [get]
func (h *AdminHandler) HandleGetSecuritySettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.AdminService.GetSecuritySettings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSettings(settings))
}

// HandleUpdateSecuritySettings handles PUT /admin/security-settings
//
//	@Summary		Replace security settings
//	@Description	Takes effect for every login step that starts after the update.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SecuritySettings	true	"Complete settings"
//	@Success		200		{object}	authsdk.SecuritySettings
//	@Failure		400		{object}	authsdk.ErrorResponse	"Validation failed"
//	@Router			/admin/security-settings [put]
func (h *AdminHandler) HandleUpdateSecuritySettings(w http.ResponseWriter, r *http.Request) {
	actorID, ok := userID(w, r)
	if !ok {
		return
	}
	var req authsdk.SecuritySettings
	if !decodeRequest(w, r, &req) {
		return
	}

	settings := fromSettings(req)
	if err := h.AdminService.UpdateSecuritySettings(r.Context(), actorID, settings, clientInfo(r)); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSettings(settings))
}

// HandleListAuditEvents handles GET /admin/audit
//
//	@Summary		List audit events
//	@Description	Newest first. The limit defaults to 100 and is capped at 500.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum number of events"
//	@Success		200		{object}	authsdk.AuditListResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid limit"
//	@Router			/admin/audit [get]
func (h *AdminHandler) HandleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			authsdk.NewValidationError([]authsdk.FieldError{{Field: "limit", Message: "must be a non-negative integer"}}).WriteError(w)
			return
		}
		limit = n
	}

	events, err := h.AdminService.ListAuditEvents(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := authsdk.AuditListResponse{Events: make([]authsdk.AuditEvent, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, toAuditEvent(e))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
