package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"lashclub/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (s *Server) googleOAuthConfig() (*oauth2.Config, error) {
	if s.cfg.GoogleClientID == "" || s.cfg.GoogleClientSecret == "" || s.cfg.GoogleRedirectURL == "" {
		return nil, errors.New("Google OAuth not configured")
	}
	return &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		RedirectURL:  s.cfg.GoogleRedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}, nil
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// handleGoogleLogin redirects the browser to the Google consent screen. The
// CSRF token rides in the state parameter, which Google echoes back verbatim,
// so no cross-site cookie is needed.
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	config, err := s.googleOAuthConfig()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	state, err := generateCSRFToken()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	url := config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	config, err := s.googleOAuthConfig()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}

	redirectWithError := func(errMsg string) {
		if s.cfg.FrontendCallbackURL != "" {
			http.Redirect(w, r, s.cfg.FrontendCallbackURL+"?error="+errMsg, http.StatusTemporaryRedirect)
		} else {
			respondError(w, http.StatusBadRequest, errors.New(errMsg))
		}
	}

	if r.URL.Query().Get("state") == "" {
		respondError(w, http.StatusBadRequest, errors.New("missing state parameter"))
		return
	}
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		redirectWithError("oauth_error")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		redirectWithError("missing_code")
		return
	}

	token, err := config.Exchange(r.Context(), code)
	if err != nil {
		redirectWithError("token_exchange_failed")
		return
	}

	userInfo, err := fetchGoogleUserInfo(r.Context(), config, token)
	if err != nil {
		redirectWithError("get_user_info_failed")
		return
	}
	if !userInfo.VerifiedEmail {
		redirectWithError("email_not_verified")
		return
	}

	user, isNewUser, err := s.svc.GetOrCreateUserByGoogleID(r.Context(), userInfo.ID, userInfo.Email)
	if err != nil {
		redirectWithError("create_user_failed")
		return
	}
	if user.Status != models.UserStatusActive {
		redirectWithError("user_disabled")
		return
	}

	jwtToken, err := s.generateJWT(user.ID, user.Email, user.Role)
	if err != nil {
		redirectWithError("token_generation_failed")
		return
	}

	if s.cfg.FrontendCallbackURL != "" {
		isNewUserStr := "false"
		if isNewUser {
			isNewUserStr = "true"
		}
		redirectURL := s.cfg.FrontendCallbackURL + "?token=" + jwtToken + "&is_new_user=" + isNewUserStr
		http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token":       jwtToken,
		"is_new_user": isNewUser,
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

func fetchGoogleUserInfo(ctx context.Context, config *oauth2.Config, token *oauth2.Token) (*googleUserInfo, error) {
	client := config.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, errors.New("failed to get user info: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("failed to get user info: unexpected status code")
	}
	var userInfo googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, errors.New("failed to decode user info: " + err.Error())
	}
	return &userInfo, nil
}
