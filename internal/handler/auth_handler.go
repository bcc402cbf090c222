package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"social-service/internal/service"
)

// AuthHandler serves /user/auth.
type AuthHandler struct {
	responder
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService, logger *zap.Logger, debug bool) *AuthHandler {
	return &AuthHandler{responder: newResponder(logger, debug), auth: auth}
}

type tokensPayload struct {
	Tokens *service.TokenPair `json:"tokens"`
}

// RegisterRoutes mounts the auth routes. The whole group is rate limited per IP.
func (h *AuthHandler) RegisterRoutes(r chi.Router, mw *Middleware) {
	r.Route("/user/auth", func(r chi.Router) {
		r.Use(mw.RateLimit("auth"))

		r.Post("/signup", h.SignUp)
		r.Post("/confirm-email", h.ConfirmEmail)
		r.Post("/login", h.Login)
		r.Post("/login-2fa", h.LoginWith2FA)
		r.Post("/auth-gmail", h.Google)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Put("/reset-password", h.ResetPassword)

		r.With(mw.RefreshAuthenticate).Post("/refresh-token", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate)
			r.Post("/logout", h.Logout)
			r.Post("/change-password", h.ChangePassword)
			r.Post("/enable-2fa", h.EnableTwoFactor)
			r.Post("/disable-2fa", h.DisableTwoFactor)
		})
	})
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req service.SignUpRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.auth.SignUp(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, http.StatusCreated, "User Registered Successfully. Please verify your email.", user)
}

func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req service.ConfirmEmailRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.auth.ConfirmEmail(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Email Verified Successfully", user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.auth.Login(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if res.TwoFactorRequired {
		h.ok(w, "OTP sent for 2FA", nil)
		return
	}
	h.ok(w, "Login Successful", tokensPayload{Tokens: res.Tokens})
}

func (h *AuthHandler) LoginWith2FA(w http.ResponseWriter, r *http.Request) {
	var req service.LoginWith2FARequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	tokens, err := h.auth.LoginWith2FA(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Login Successful", tokensPayload{Tokens: tokens})
}

func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req service.GoogleRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.auth.Google(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if res.Created {
		h.success(w, http.StatusCreated, "User Created Successfully", map[string]any{
			"user":   res.User,
			"tokens": res.Tokens,
		})
		return
	}
	h.ok(w, "Login Successful", tokensPayload{Tokens: res.Tokens})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), PrincipalFrom(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Logout Success", nil)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ForgotPasswordRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "OTP has been sent to your email", nil)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ResetPasswordRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Password Updated Successfully", nil)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req service.ChangePasswordRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p := PrincipalFrom(r.Context())
	if err := h.auth.ChangePassword(r.Context(), p.User.ID, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Password Updated Successfully", nil)
}

func (h *AuthHandler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.EnableTwoFactor(r.Context(), PrincipalFrom(r.Context()).User.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "2FA Enabled Successfully", nil)
}

func (h *AuthHandler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DisableTwoFactor(r.Context(), PrincipalFrom(r.Context()).User.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "2FA Disabled Successfully", nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.auth.Refresh(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Token Refreshed Successfully", tokensPayload{Tokens: tokens})
}
