package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"

	"github.com/galeri/service/internal/config"
	"github.com/galeri/service/internal/response"
	"github.com/galeri/service/internal/user"
)

// CookieName is the cookie carrying the signed credential.
const CookieName = "access_token"

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
	cfg *config.Config
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service, cfg *config.Config) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

type credentialsRequest struct {
	Email    string `json:"email"    example:"ada@example.com"`
	Password string `json:"password" example:"hunter2hunter2"`
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Verify email/password and set the signed HTTP-only access_token cookie.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credentialsRequest	true	"Credentials"
//	@Success		200		{object}	response.Envelope{data=user.User}
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	token, u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, user.ErrNotFound) {
		response.NotFound(w, "user not found")
		return
	}
	if errors.Is(err, ErrWrongPassword) {
		response.Unauthorized(w, "wrong credentials")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	h.setCredentialCookie(w, token)
	response.OK(w, u)
}

// Signup godoc
//
//	@Summary		Sign up
//	@Description	Register a new account, set the access_token cookie, and return the created user.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credentialsRequest	true	"Credentials"
//	@Success		201		{object}	response.Envelope{data=user.User}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		response.BadRequest(w, "invalid email address")
		return
	}
	if len(req.Password) < 8 {
		response.BadRequest(w, "password must be at least 8 characters")
		return
	}

	token, u, err := h.svc.Signup(r.Context(), req.Email, req.Password)
	if errors.Is(err, user.ErrAlreadyExists) {
		response.Conflict(w, "email already registered")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	h.setCredentialCookie(w, token)
	response.Created(w, u)
}

// Logout godoc
//
//	@Summary		Log out
//	@Description	Clear the access_token cookie. Tokens remain valid until expiry; there is no server-side revocation.
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Router			/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	cookie := h.credentialCookie("", -1)
	http.SetCookie(w, cookie)
	response.OK(w, map[string]string{"message": "logout successful"})
}

// CheckAuth godoc
//
//	@Summary		Check authentication
//	@Description	Return the identity of the currently authenticated user.
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=Identity}
//	@Failure		401	{object}	response.Envelope
//	@Router			/check-auth [get]
func (h *Handler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}
	response.OK(w, map[string]Identity{"user": id})
}

func (h *Handler) setCredentialCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, h.credentialCookie(token, int(h.cfg.TokenTTL.Seconds())))
}

// credentialCookie builds the access_token cookie. Cross-site cookies
// (SameSite=None) require Secure, so both flip together on environment.
func (h *Handler) credentialCookie(token string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteStrictMode
	if h.cfg.IsProduction() {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: sameSite,
	}
}
