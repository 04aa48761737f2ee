package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/biometriscan/gateway/internal/auth"
	"github.com/biometriscan/gateway/internal/services"
	"github.com/biometriscan/gateway/internal/signin"
	"github.com/rs/zerolog/log"
)

// SignInHandler serves the sign-in page.
type SignInHandler struct {
	issuer          *SessionIssuer
	throttle        *Throttle
	tokens          *auth.Manager
	sessions        auth.SessionChecker
	defaultCallback string
}

// NewSignInHandler creates a new SignInHandler.
func NewSignInHandler(issuer *SessionIssuer, throttle *Throttle, tokens *auth.Manager, sessions auth.SessionChecker, defaultCallback string) *SignInHandler {
	return &SignInHandler{
		issuer:          issuer,
		throttle:        throttle,
		tokens:          tokens,
		sessions:        sessions,
		defaultCallback: defaultCallback,
	}
}

// SignInPage is the data rendered into the sign-in template.
type SignInPage struct {
	Action            string
	CSRFToken         string
	CallbackURL       string
	Email             string
	ShowPassword      bool
	// Submitting renders the disabled "Signing In..." button; the page script
	// switches to the same state client-side when the form is posted.
	Submitting        bool
	FieldErrors       signin.FieldErrors
	Toast             *signin.Toast
	TogglePasswordURL string
}

func newSignInPage(callback, csrfToken string, showPassword bool) SignInPage {
	toggle := url.Values{}
	toggle.Set(signin.CallbackParam, callback)
	if !showPassword {
		toggle.Set("showPassword", "1")
	}
	return SignInPage{
		Action:            "/signin",
		CSRFToken:         csrfToken,
		CallbackURL:       callback,
		ShowPassword:      showPassword,
		TogglePasswordURL: "/signin?" + toggle.Encode(),
	}
}

// Show renders the form. A visitor who already has a live session goes straight to the callback.
func (h *SignInHandler) Show(w http.ResponseWriter, r *http.Request) {
	callback := signin.CallbackURL(r, h.defaultCallback)
	if _, err := h.tokens.Authenticate(r, h.sessions); err == nil {
		http.Redirect(w, r, callback, http.StatusSeeOther)
		return
	}

	token, err := ensureCSRFToken(w, r, h.issuer.secure)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue CSRF token")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	page := newSignInPage(callback, token, r.URL.Query().Get("showPassword") == "1")
	renderPage(w, http.StatusOK, "signin.html", page)
}

// Submit handles a form post. Field errors answer 422, rejected credentials 401,
// throttled attempts 429, and success redirects to the callback URL.
func (h *SignInHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := r.ParseForm(); err != nil {
		page := newSignInPage(signin.CallbackURL(r, h.defaultCallback), auth.CSRFTokenFromCookie(r), false)
		page.Toast = &signin.Toast{Level: signin.ToastError, Message: signin.MsgGeneric}
		renderPage(w, http.StatusBadRequest, "signin.html", page)
		return
	}

	rawCallback := r.PostForm.Get(signin.CallbackParam)
	if rawCallback == "" {
		rawCallback = r.URL.Query().Get(signin.CallbackParam)
	}
	callback := signin.SanitizeCallback(rawCallback, r.Host, h.defaultCallback)

	token, err := ensureCSRFToken(w, r, h.issuer.secure)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue CSRF token")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	page := newSignInPage(callback, token, r.PostForm.Get("showPassword") == "1")
	page.Email = strings.TrimSpace(r.PostForm.Get("email"))

	if !h.throttle.Allow(w, r, "signin") {
		toast := signin.ToastForError(services.CodeRateLimited)
		page.Toast = &toast
		renderPage(w, http.StatusTooManyRequests, "signin.html", page)
		return
	}
	if !auth.VerifyCSRF(r, r.PostForm.Get(auth.CSRFFormField)) {
		h.issuer.metrics.SignInAttempt(outcomeCSRF)
		toast := signin.ToastForError(services.CodeCSRF)
		page.Toast = &toast
		renderPage(w, http.StatusForbidden, "signin.html", page)
		return
	}

	form := signin.Form{Email: page.Email, Password: r.PostForm.Get("password")}
	outcome := signin.Submit(r.Context(), h.issuer.Signer(w), form, callback)

	switch {
	case !outcome.Submitted():
		h.issuer.metrics.SignInAttempt(outcomeInvalidForm)
		page.FieldErrors = outcome.FieldErrors
		renderPage(w, http.StatusUnprocessableEntity, "signin.html", page)
	case outcome.Err != nil:
		log.Error().Err(outcome.Err).Str("email", form.Email).Msg("Sign-in call failed")
		page.Toast = outcome.Toast
		renderPage(w, http.StatusServiceUnavailable, "signin.html", page)
	case outcome.Redirect != "":
		setFlash(w, *outcome.Toast, h.issuer.secure)
		http.Redirect(w, r, outcome.Redirect, http.StatusSeeOther)
	default:
		status := http.StatusOK
		if outcome.Result != nil && outcome.Result.Status >= http.StatusBadRequest {
			status = outcome.Result.Status
		}
		page.Toast = outcome.Toast
		renderPage(w, status, "signin.html", page)
	}
}
