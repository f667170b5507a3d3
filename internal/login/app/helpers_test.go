package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/medportal/phoneauth/internal/login/store/drivers/sqlite"
	"github.com/medportal/phoneauth/pkg/authsdk"
	"github.com/medportal/phoneauth/pkg/slogx"
)

const (
	testPhone = "+998901234567"
	validCode = "123456"
)

// fakeBackend plays both remote parties: the login authority and a
// GoTrue-compatible identity provider sharing one token table.
type fakeBackend struct {
	authority *httptest.Server
	identity  *httptest.Server

	mu       sync.Mutex
	seq      int
	sessions map[string]string // session id -> phone
	access   map[string]bool
	refresh  map[string]bool
	user     authsdk.UserResponse

	phoneRequests []string
	// failIssue fails the nth (1-based) session request with its message.
	failIssue map[int]string
	// userFailures fails that many GET /user calls with a 500.
	userFailures int
	userGets     int
	updates      []map[string]any
	logouts      int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		sessions:  map[string]string{},
		access:    map[string]bool{},
		refresh:   map[string]bool{},
		failIssue: map[int]string{},
		user: authsdk.UserResponse{
			ID:           "user-1",
			Phone:        testPhone,
			UserMetadata: map[string]any{},
			RawUserMetaData: map[string]any{
				"first_name": "Aziz",
				"last_name":  "Karimov",
			},
		},
	}

	authority := http.NewServeMux()
	authority.HandleFunc("POST /auth/phone", b.handlePhone)
	authority.HandleFunc("POST /auth/verify-otp", b.handleVerify)
	b.authority = httptest.NewServer(authority)
	t.Cleanup(b.authority.Close)

	identity := http.NewServeMux()
	identity.HandleFunc("GET /user", b.handleGetUser)
	identity.HandleFunc("PUT /user", b.handleUpdateUser)
	identity.HandleFunc("POST /token", b.handleToken)
	identity.HandleFunc("POST /logout", b.handleLogout)
	b.identity = httptest.NewServer(identity)
	t.Cleanup(b.identity.Close)

	return b
}

func (b *fakeBackend) config() Config {
	return Config{
		AuthorityURL:   b.authority.URL,
		IdentityURL:    b.identity.URL,
		DialCode:       DefaultDialCode,
		Profile:        "default",
		ResendWindow:   2 * time.Minute,
		RequestTimeout: 5 * time.Second,
		Cache: CacheConfig{
			Driver:    CacheDriverSQLite,
			Path:      ":memory:",
			Retention: 24 * time.Hour,
		},
	}
}

func (b *fakeBackend) phoneLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.phoneRequests...)
}

func (b *fakeBackend) updateLog() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.updates...)
}

func (b *fakeBackend) userGetCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userGets
}

func (b *fakeBackend) logoutCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logouts
}

func (b *fakeBackend) mintLocked() (string, string) {
	b.seq++
	claims := jwt.MapClaims{
		"sub": b.user.ID,
		"exp": time.Now().Add(time.Hour).Unix(),
		"jti": fmt.Sprintf("tok-%d", b.seq),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	refresh := fmt.Sprintf("refresh-%d", b.seq)
	b.access[access] = true
	b.refresh[refresh] = true
	return access, refresh
}

func (b *fakeBackend) handlePhone(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PhoneSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.phoneRequests = append(b.phoneRequests, req.Phone)
	if msg, ok := b.failIssue[len(b.phoneRequests)]; ok {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": msg})
		return
	}

	id := fmt.Sprintf("sess-%d", len(b.phoneRequests))
	b.sessions[id] = req.Phone
	writeJSON(w, http.StatusOK, authsdk.PhoneSessionResponse{
		SessionID:   id,
		TelegramURL: "https://t.me/medportal_bot?start=" + id,
	})
}

func (b *fakeBackend) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.sessions[req.SessionID]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Session expired"})
		return
	}
	if req.OTP != validCode {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid code"})
		return
	}

	delete(b.sessions, req.SessionID)
	access, refresh := b.mintLocked()
	writeJSON(w, http.StatusOK, authsdk.VerifyOTPResponse{AccessToken: access, RefreshToken: refresh})
}

func (b *fakeBackend) authorized(r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.access[token]
}

func (b *fakeBackend) handleGetUser(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.userGets++
	if b.userFailures > 0 {
		b.userFailures--
		b.mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"msg": "database unavailable"})
		return
	}
	b.mu.Unlock()

	if !b.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}

	b.mu.Lock()
	user := b.user
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (b *fakeBackend) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}

	var req authsdk.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "bad body"})
		return
	}

	b.mu.Lock()
	b.updates = append(b.updates, req.Data)
	meta := map[string]any{}
	for k, v := range b.user.UserMetadata {
		meta[k] = v
	}
	for k, v := range req.Data {
		meta[k] = v
	}
	b.user.UserMetadata = meta
	user := b.user
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, user)
}

func (b *fakeBackend) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	if !b.refresh[req.RefreshToken] {
		b.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}
	delete(b.refresh, req.RefreshToken)
	access, refresh := b.mintLocked()
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    3600,
	})
}

func (b *fakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	b.mu.Lock()
	delete(b.access, token)
	b.logouts++
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newTestApp builds an Application over an in-memory SQLite cache.
func newTestApp(t *testing.T, cfg Config) (*Application, *sqlite.Store) {
	t.Helper()

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)

	app, err := newApplication(t.Context(), cfg, slogx.Discard(), db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	return app, db
}
