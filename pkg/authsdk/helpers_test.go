package authsdk

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
)

func signToken(sub string, exp time.Time, seq int) string {
	claims := jwt.MapClaims{
		"sub":  sub,
		"role": "authenticated",
		"jti":  fmt.Sprintf("tok-%d", seq),
	}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return raw
}

// fakeIdentity is a minimal GoTrue-compatible identity provider.
type fakeIdentity struct {
	t      *testing.T
	server *httptest.Server

	mu        sync.Mutex
	seq       int
	ttl       time.Duration
	access    map[string]bool
	refresh   map[string]bool
	user      UserResponse
	updates   []map[string]any
	userGets  int
	refreshes int
	logouts   int
}

func newFakeIdentity(t *testing.T) *fakeIdentity {
	t.Helper()

	f := &fakeIdentity{
		t:       t,
		ttl:     time.Hour,
		access:  map[string]bool{},
		refresh: map[string]bool{},
		user: UserResponse{
			ID:              "user-1",
			Phone:           "+998901234567",
			UserMetadata:    map[string]any{},
			RawUserMetaData: map[string]any{},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", f.handleGetUser)
	mux.HandleFunc("PUT /user", f.handleUpdateUser)
	mux.HandleFunc("POST /token", f.handleToken)
	mux.HandleFunc("POST /logout", f.handleLogout)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIdentity) client() *SDKClient {
	return NewSDKClient("http://authority.invalid", f.server.URL)
}

// mint registers a new valid token pair. exp overrides the default lifetime
// when non-zero.
func (f *fakeIdentity) mint(exp time.Time) (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mintLocked(exp)
}

func (f *fakeIdentity) mintLocked(exp time.Time) (string, string) {
	f.seq++
	if exp.IsZero() {
		exp = time.Now().Add(f.ttl)
	}
	access := signToken(f.user.ID, exp, f.seq)
	refresh := fmt.Sprintf("refresh-%d", f.seq)
	f.access[access] = true
	f.refresh[refresh] = true
	return access, refresh
}

func (f *fakeIdentity) setRawMetadata(m map[string]any) {
	f.mu.Lock()
	f.user.RawUserMetaData = m
	f.mu.Unlock()
}

func (f *fakeIdentity) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func (f *fakeIdentity) userGetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userGets
}

func (f *fakeIdentity) logoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logouts
}

func (f *fakeIdentity) updateLog() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.updates...)
}

func (f *fakeIdentity) authorized(r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access[token]
}

func (f *fakeIdentity) handleGetUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.userGets++
	f.mu.Unlock()

	if !f.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}
	f.mu.Lock()
	user := f.user
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (f *fakeIdentity) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "bad body"})
		return
	}

	f.mu.Lock()
	f.updates = append(f.updates, req.Data)
	for k, v := range req.Data {
		f.user.UserMetadata[k] = v
	}
	user := f.user
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, user)
}

func (f *fakeIdentity) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("grant_type") != "refresh_token" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	var req refreshTokenRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	if !f.refresh[req.RefreshToken] {
		f.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid Refresh Token",
		})
		return
	}
	delete(f.refresh, req.RefreshToken)
	f.refreshes++
	access, refresh := f.mintLocked(time.Time{})
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(f.ttl.Seconds()),
	})
}

func (f *fakeIdentity) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	delete(f.access, token)
	f.logouts++
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
