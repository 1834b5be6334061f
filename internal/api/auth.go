package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
)

const sessionTokenTTL = 7 * 24 * time.Hour

// GoogleCallback handles POST /v1/auth/google: exchanges the OAuth code for
// a Google access token, fetches the user profile, upserts the user and
// returns a session JWT.
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	var req models.GoogleAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "Code is required")
		return
	}

	tokens, err := h.exchangeGoogleCode(r, req.Code)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "OAuth exchange failed")
		return
	}

	profile, err := h.fetchGoogleProfile(r, tokens.AccessToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Failed to fetch Google profile")
		return
	}

	user := &models.User{
		ID:                uuid.New(),
		Email:             profile.Email,
		GoogleID:          &profile.Sub,
		GoogleAccessToken: &tokens.AccessToken,
	}
	if profile.Name != "" {
		user.Name = &profile.Name
	}
	if tokens.RefreshToken != "" {
		user.GoogleRefreshToken = &tokens.RefreshToken
	}
	if tokens.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
		user.GoogleTokenExpiry = &expiry
	}
	if err := h.db.UpsertUser(r.Context(), user); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save user")
		return
	}

	token, err := signSessionToken(user.ID, h.jwtSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to issue session token")
		return
	}

	respondJSON(w, http.StatusOK, models.AuthResponse{Token: token, User: *user})
}

// Me handles GET /v1/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.db.GetUser(r.Context(), currentUserID(r))
	if err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type googleProfile struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type googleTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (h *Handler) exchangeGoogleCode(r *http.Request, code string) (*googleTokenResponse, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {h.google.ClientID},
		"client_secret": {h.google.ClientSecret},
		"redirect_uri":  {h.google.RedirectURI},
		"grant_type":    {"authorization_code"},
	}
	return h.requestGoogleTokens(r.Context(), form)
}

// refreshGoogleAccessToken trades the stored refresh token for a fresh access
// token and persists it.
func (h *Handler) refreshGoogleAccessToken(r *http.Request, user *models.User) (string, error) {
	if user.GoogleRefreshToken == nil || *user.GoogleRefreshToken == "" {
		return "", fmt.Errorf("no refresh token on file")
	}

	form := url.Values{
		"refresh_token": {*user.GoogleRefreshToken},
		"client_id":     {h.google.ClientID},
		"client_secret": {h.google.ClientSecret},
		"grant_type":    {"refresh_token"},
	}
	tokens, err := h.requestGoogleTokens(r.Context(), form)
	if err != nil {
		return "", err
	}

	expiry := time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	if err := h.db.UpdateGoogleAccessToken(r.Context(), user.ID, tokens.AccessToken, expiry); err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

func (h *Handler) requestGoogleTokens(ctx context.Context, form url.Values) (*googleTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST",
		"https://oauth2.googleapis.com/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange returned status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("no access token in response")
	}
	return &tokenResp, nil
}

func (h *Handler) fetchGoogleProfile(r *http.Request, accessToken string) (*googleProfile, error) {
	req, err := http.NewRequestWithContext(r.Context(), "GET",
		"https://openidconnect.googleapis.com/v1/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo: %w", err)
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("no email in Google profile")
	}
	return &profile, nil
}

func signSessionToken(userID uuid.UUID, secret string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": now.Add(sessionTokenTTL).Unix(),
	})
	return token.SignedString([]byte(secret))
}
