package http

import (
	"net/http"

	"github.com/aussiebroadwan/hostdesk/internal/auth/service"
	"github.com/aussiebroadwan/hostdesk/pkg/authsdk"
	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/aussiebroadwan/hostdesk/pkg/httpx"
	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
)

// SetupTokenHeader carries the optional first-run setup token.
const SetupTokenHeader = "X-Setup-Token"

// SetupHandler creates the first superadmin on an empty installation.
type SetupHandler struct {
	AdminService *service.AdminService

	// Token, when set, must be presented in SetupTokenHeader.
	Token string
}

// ServeHTTP handles the first-run setup endpoint.
//
//	@Summary		Create the first superadmin
//	@Description	Only works while no user exists. When the server is started with a setup token, the token must be sent in the X-Setup-Token header.
//	@Tags			Setup
//	@Accept			json
//	@Produce		json
//	@Param			X-Setup-Token	header		string					false	"Setup token, when configured"
//	@Param			request			body		authsdk.SetupRequest	true	"First administrator"
//	@Success		201				{object}	authsdk.User
//	@Failure		400				{object}	authsdk.ErrorResponse	"Validation failed"
//	@Failure		401				{object}	authsdk.ErrorResponse	"Missing or wrong setup token"
//	@Failure		409				{object}	authsdk.ErrorResponse	"Already set up"
//	@Router			/setup [post]
func (h *SetupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	if h.Token != "" && !cryptox.ConstantTimeEqual(r.Header.Get(SetupTokenHeader), h.Token) {
		log.Warn("setup attempted without a valid setup token")
		httpx.WriteJSON(w, http.StatusUnauthorized, authsdk.ErrorResponse{
			Error:            authsdk.ErrorCodeUnauthorized,
			ErrorDescription: "setup token is required in the " + SetupTokenHeader + " header",
		})
		return
	}

	var req authsdk.SetupRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !required(w, "email", req.Email, "name", req.Name, "password", req.Password) {
		return
	}

	profile, err := h.AdminService.Setup(r.Context(), req.Email, req.Name, req.Password, clientInfo(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info("initial superadmin created", "user_id", profile.ID)
	httpx.WriteJSON(w, http.StatusCreated, toUser(profile))
}
