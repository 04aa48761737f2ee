package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/biometriscan/gateway/internal/auth"
	"github.com/biometriscan/gateway/internal/models"
	"github.com/biometriscan/gateway/internal/services"
	"github.com/biometriscan/gateway/internal/signin"
	"github.com/rs/zerolog/log"
)

// AuthHandler serves the /api/auth session endpoints.
type AuthHandler struct {
	issuer          *SessionIssuer
	throttle        *Throttle
	tokens          *auth.Manager
	sessions        auth.SessionChecker
	defaultCallback string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(issuer *SessionIssuer, throttle *Throttle, tokens *auth.Manager, sessions auth.SessionChecker, defaultCallback string) *AuthHandler {
	return &AuthHandler{
		issuer:          issuer,
		throttle:        throttle,
		tokens:          tokens,
		sessions:        sessions,
		defaultCallback: defaultCallback,
	}
}

// CredentialsPayload is the body accepted by the credentials callback and sign-out.
type CredentialsPayload struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	CSRFToken   string `json:"csrfToken"`
	CallbackURL string `json:"callbackUrl"`
}

type providerInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	SignInURL   string `json:"signinUrl"`
	CallbackURL string `json:"callbackUrl"`
}

var credentialsProvider = providerInfo{
	ID:          "credentials",
	Name:        "Credentials",
	Type:        "credentials",
	SignInURL:   "/api/auth/signin/credentials",
	CallbackURL: "/api/auth/callback/credentials",
}

// Providers lists the configured sign-in providers.
func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]providerInfo{"credentials": credentialsProvider})
}

// CSRF returns the double-submit token, issuing a cookie for it when needed.
func (h *AuthHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	token, err := ensureCSRFToken(w, r, h.issuer.secure)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue CSRF token")
		http.Error(w, "Failed to issue CSRF token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

// Callback signs a user in with credentials and answers with a SignInResult.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if !h.throttle.Allow(w, r, "auth_callback") {
		writeJSON(w, http.StatusTooManyRequests, models.SignInResult{Error: services.CodeRateLimited, Status: http.StatusTooManyRequests})
		return
	}

	payload, err := decodeCredentials(w, r)
	if err != nil {
		h.issuer.metrics.SignInAttempt(outcomeInvalidForm)
		writeJSON(w, http.StatusBadRequest, models.SignInResult{Error: services.CodeCredentialsSignin, Status: http.StatusBadRequest})
		return
	}
	if !auth.VerifyCSRF(r, submittedCSRF(r, payload.CSRFToken)) {
		h.issuer.metrics.SignInAttempt(outcomeCSRF)
		writeJSON(w, http.StatusForbidden, models.SignInResult{Error: services.CodeCSRF, Status: http.StatusForbidden})
		return
	}

	callback := signin.SanitizeCallback(payload.CallbackURL, r.Host, h.defaultCallback)
	res, err := h.issuer.Signer(w).SignIn(r.Context(), signin.Credentials{
		Email:       payload.Email,
		Password:    payload.Password,
		CallbackURL: callback,
	})
	if err != nil {
		log.Error().Err(err).Msg("Credentials sign-in failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream unavailable"})
		return
	}
	writeJSON(w, res.Status, res)
}

// Session reports the current session, or an empty object when there is none.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.Authenticate(r, h.sessions)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidToken) {
			log.Error().Err(err).Msg("Session lookup failed")
		}
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": map[string]string{
			"id":    claims.UserID,
			"email": claims.Email,
		},
		"expires": claims.ExpiresAt.Time.UTC().Format(time.RFC3339),
	})
}

// SignOut revokes the caller's session and clears the cookie. Form posts are
// redirected to the callback; other clients get {"url": callback}.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeCredentials(w, r)
	if err != nil && !errors.Is(err, errEmptyBody) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !auth.VerifyCSRF(r, submittedCSRF(r, payload.CSRFToken)) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": services.CodeCSRF})
		return
	}

	if claims, err := h.tokens.Authenticate(r, nil); err == nil {
		if err := h.issuer.auth.SignOut(r.Context(), claims); err != nil {
			log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to revoke session")
			http.Error(w, "Failed to sign out", http.StatusInternalServerError)
			return
		}
	}
	http.SetCookie(w, auth.ExpiredSessionCookie(h.issuer.secure))

	callback := signin.SanitizeCallback(payload.CallbackURL, r.Host, "/signin")
	if isFormPost(r) {
		http.Redirect(w, r, callback, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": callback})
}

var errEmptyBody = errors.New("empty body")

// decodeCredentials reads a JSON or form-encoded body.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (CredentialsPayload, error) {
	var p CredentialsPayload
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if isJSON(r) {
		err := json.NewDecoder(r.Body).Decode(&p)
		if errors.Is(err, io.EOF) {
			return p, errEmptyBody
		}
		return p, err
	}
	if err := r.ParseForm(); err != nil {
		return p, err
	}
	p.Email = r.PostForm.Get("email")
	p.Password = r.PostForm.Get("password")
	p.CSRFToken = r.PostForm.Get(auth.CSRFFormField)
	p.CallbackURL = r.PostForm.Get(signin.CallbackParam)
	if p.CallbackURL == "" {
		p.CallbackURL = r.URL.Query().Get(signin.CallbackParam)
	}
	return p, nil
}

func submittedCSRF(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get(auth.CSRFHeaderName)
}

func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

func isJSON(r *http.Request) bool {
	return mediaType(r) == "application/json"
}

func isFormPost(r *http.Request) bool {
	mt := mediaType(r)
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

// ensureCSRFToken returns the request's CSRF cookie value, issuing a new token when absent.
func ensureCSRFToken(w http.ResponseWriter, r *http.Request, secure bool) (string, error) {
	if token := auth.CSRFTokenFromCookie(r); token != "" {
		return token, nil
	}
	token, err := auth.NewCSRFToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, auth.CSRFCookie(token, secure))
	return token, nil
}
