package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/biometriscan/gateway/internal/models"
)

// CredentialsProvider checks an email/password pair.
type CredentialsProvider interface {
	Authorize(ctx context.Context, email, password string) (models.User, error)
}

// BackendProvider delegates credential checks to the backend's users API.
type BackendProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewBackendProvider creates a provider that posts credentials to {baseURL}/api/users/login.
func NewBackendProvider(baseURL string, httpClient *http.Client) *BackendProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &BackendProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type backendLoginResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	User  *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

// Authorize implements CredentialsProvider.
func (p *BackendProvider) Authorize(ctx context.Context, email, password string) (models.User, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return models.User{}, fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/users/login", bytes.NewReader(payload))
	if err != nil {
		return models.User{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return models.User{}, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		switch extractError(resp.Body) {
		case CodeInvalidEmail:
			return models.User{}, ErrInvalidEmail
		case CodeInvalidPassword:
			return models.User{}, ErrInvalidPassword
		default:
			return models.User{}, fmt.Errorf("%w: status %d", errRejected, resp.StatusCode)
		}
	}

	var body backendLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.User{}, fmt.Errorf("decode response: %w", err)
	}
	user := models.User{ID: body.ID, Email: body.Email, Name: body.Name}
	if body.User != nil {
		user = models.User{ID: body.User.ID, Email: body.User.Email, Name: body.User.Name}
	}
	if user.ID == "" {
		return models.User{}, fmt.Errorf("%w: backend returned no user id", errRejected)
	}
	if user.Email == "" {
		user.Email = normalizeEmail(email)
	}
	return user, nil
}

// extractError reads FastAPI-style {"detail": "..."} or {"error": "..."} bodies.
func extractError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	if s, ok := payload.Detail.(string); ok && s != "" {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(payload.Error)
}
