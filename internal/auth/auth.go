// Package auth handles Google OAuth login and session management for portal
// admins. Client-org staff never authenticate here; they interact through
// their own storefronts.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/cratecrew/boxops/internal/config"
)

// GoogleUserInfo represents the user info returned by Google.
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	HD            string `json:"hd"` // Hosted domain (Workspace domain)
}

// Session represents an authenticated admin session.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager handles Google OAuth authentication and in-memory sessions.
type Manager struct {
	config       *config.AuthConfig
	oauth2Config *oauth2.Config
	sessions     map[string]*Session
	sessionMu    sync.RWMutex
}

// NewManager creates a new authentication manager.
func NewManager(cfg *config.AuthConfig, baseURL string) *Manager {
	return &Manager{
		config: cfg,
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  baseURL + "/auth/callback",
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		sessions: make(map[string]*Session),
	}
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// HandleLogin initiates the Google OAuth flow.
func (m *Manager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   300, // 5 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// hd restricts the account picker to the allowed Workspace domain
	url := m.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOnline) + "&hd=" + m.config.AllowedDomain
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleCallback processes the OAuth callback from Google.
func (m *Manager) HandleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || r.URL.Query().Get("state") != stateCookie.Value {
		log.Printf("Auth: state verification failed")
		http.Redirect(w, r, "/?error=invalid_state", http.StatusTemporaryRedirect)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		log.Printf("Auth: Google returned error: %s", errMsg)
		http.Redirect(w, r, "/?error="+errMsg, http.StatusTemporaryRedirect)
		return
	}

	token, err := m.oauth2Config.Exchange(context.Background(), r.URL.Query().Get("code"))
	if err != nil {
		log.Printf("Auth: failed to exchange code: %v", err)
		http.Redirect(w, r, "/?error=exchange_failed", http.StatusTemporaryRedirect)
		return
	}

	userInfo, err := m.getUserInfo(token.AccessToken)
	if err != nil {
		log.Printf("Auth: failed to get user info: %v", err)
		http.Redirect(w, r, "/?error=userinfo_failed", http.StatusTemporaryRedirect)
		return
	}

	emailDomain := strings.Split(userInfo.Email, "@")
	if len(emailDomain) != 2 || emailDomain[1] != m.config.AllowedDomain {
		log.Printf("Auth: domain not allowed for %s (expected %s)", userInfo.Email, m.config.AllowedDomain)
		http.Redirect(w, r, "/?error=domain_not_allowed", http.StatusTemporaryRedirect)
		return
	}

	sessionID, err := randomToken()
	if err != nil {
		http.Redirect(w, r, "/?error=session_failed", http.StatusTemporaryRedirect)
		return
	}

	session := &Session{
		UserID:    userInfo.ID,
		Email:     userInfo.Email,
		Name:      userInfo.Name,
		Picture:   userInfo.Picture,
		Domain:    userInfo.HD,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Duration(m.config.CookieMaxAge) * time.Second),
	}

	m.sessionMu.Lock()
	m.sessions[sessionID] = session
	m.sessionMu.Unlock()

	log.Printf("Auth: user logged in: %s", userInfo.Email)

	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   m.config.CookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// HandleLogout logs out the user.
func (m *Manager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(m.config.CookieName)
	if err == nil {
		m.sessionMu.Lock()
		delete(m.sessions, cookie.Value)
		m.sessionMu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{Name: m.config.CookieName, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// GetSession returns the session for the current request, or nil.
func (m *Manager) GetSession(r *http.Request) *Session {
	cookie, err := r.Cookie(m.config.CookieName)
	if err != nil {
		return nil
	}

	m.sessionMu.RLock()
	session, exists := m.sessions[cookie.Value]
	m.sessionMu.RUnlock()

	if !exists {
		return nil
	}

	if time.Now().After(session.ExpiresAt) {
		m.sessionMu.Lock()
		delete(m.sessions, cookie.Value)
		m.sessionMu.Unlock()
		return nil
	}

	return session
}

// IsAuthenticated checks if the request is from an authenticated admin.
func (m *Manager) IsAuthenticated(r *http.Request) bool {
	return m.GetSession(r) != nil
}

// RequireAuth is middleware that requires an authenticated session on /api/
// routes. Auth endpoints and the health check pass through.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/auth/") || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if !m.IsAuthenticated(r) && strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getUserInfo fetches the user's profile from Google.
func (m *Manager) getUserInfo(accessToken string) (*GoogleUserInfo, error) {
	resp, err := http.Get("https://www.googleapis.com/oauth2/v2/userinfo?access_token=" + accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google API error: %s", string(body))
	}

	var userInfo GoogleUserInfo
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}

	return &userInfo, nil
}

// CleanupExpiredSessions removes expired sessions periodically.
func (m *Manager) CleanupExpiredSessions() {
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		for range ticker.C {
			m.sessionMu.Lock()
			now := time.Now()
			for id, session := range m.sessions {
				if now.After(session.ExpiresAt) {
					delete(m.sessions, id)
				}
			}
			m.sessionMu.Unlock()
		}
	}()
}
