package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/biometriscan/gateway/internal/auth"
	"github.com/biometriscan/gateway/internal/signin"
	"github.com/rs/zerolog/log"
)

const flashCookieName = "flash_toast"

// PageHandler serves the pages behind the sign-in.
type PageHandler struct {
	secure bool
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(secure bool) *PageHandler {
	return &PageHandler{secure: secure}
}

type capturePage struct {
	Email     string
	CSRFToken string
	Toast     *signin.Toast
}

// Capture renders the landing page for a signed-in user.
func (h *PageHandler) Capture(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve user claims from context")
		http.Error(w, "Could not retrieve user from token", http.StatusInternalServerError)
		return
	}
	token, err := ensureCSRFToken(w, r, h.secure)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue CSRF token")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	renderPage(w, http.StatusOK, "capture.html", capturePage{
		Email:     claims.Email,
		CSRFToken: token,
		Toast:     popFlash(w, r, h.secure),
	})
}

// setFlash stores a toast for the next page render.
func setFlash(w http.ResponseWriter, toast signin.Toast, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(string(toast.Level) + "|" + toast.Message),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns and clears the pending toast, if any.
func popFlash(w http.ResponseWriter, r *http.Request, secure bool) *signin.Toast {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	level, msg, ok := strings.Cut(raw, "|")
	if !ok || msg == "" {
		return nil
	}
	switch signin.ToastLevel(level) {
	case signin.ToastSuccess, signin.ToastError:
		return &signin.Toast{Level: signin.ToastLevel(level), Message: msg}
	}
	return nil
}
