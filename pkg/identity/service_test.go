package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/gateway/auth"
	"github.com/maternal-risk/platform/pkg/gateway/middleware"
)

type memoryUsers struct {
	mu     sync.Mutex
	byName map[string]UserModel
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byName: map[string]UserModel{}}
}

func (m *memoryUsers) CreateUser(_ context.Context, in CreateUserInput) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[in.Username]; ok {
		return models.User{}, ErrUserExists
	}
	u := UserModel{ID: uuid.New(), Username: in.Username, NamaLengkap: in.NamaLengkap, Profesi: in.Profesi, PasswordHash: in.PasswordHash, CreatedAt: time.Now()}
	m.byName[in.Username] = u
	return mapUserModel(u), nil
}

func (m *memoryUsers) GetUserByUsername(_ context.Context, username string) (models.User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byName[username]
	if !ok {
		return models.User{}, "", ErrUserNotFound
	}
	return mapUserModel(u), u.PasswordHash, nil
}

func (m *memoryUsers) GetUserByID(_ context.Context, id uuid.UUID) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byName {
		if u.ID == id {
			return mapUserModel(u), nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func newTestService(t *testing.T) (*Service, *auth.JWTManager) {
	t.Helper()
	logger.Silence()
	tokens, err := auth.NewJWTManager("test-secret-0123456789", "maternal-risk", time.Hour)
	if err != nil {
		t.Fatalf("jwt: %v", err)
	}
	return NewService(newMemoryUsers(), tokens), tokens
}

func validSignup() SignupRequest {
	return SignupRequest{
		NamaLengkap: "Sari Wulandari", Profesi: models.ProfesiBidan,
		Username: "sari", Password: "rahasia123", ConfirmPassword: "rahasia123",
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newTestService(t)
	cases := []struct {
		name   string
		mutate func(*SignupRequest)
		want   error
	}{
		{"missing name", func(r *SignupRequest) { r.NamaLengkap = " " }, ErrMissingFields},
		{"missing password", func(r *SignupRequest) { r.Password, r.ConfirmPassword = "", "" }, ErrMissingFields},
		{"mismatch", func(r *SignupRequest) { r.ConfirmPassword = "other" }, ErrPasswordMismatch},
		{"other without text", func(r *SignupRequest) { r.Profesi = models.ProfesiLainnya }, ErrOtherProfession},
		{"password too long", func(r *SignupRequest) {
			r.Password = strings.Repeat("a", maxPasswordBytes+1)
			r.ConfirmPassword = r.Password
		}, ErrPasswordTooLong},
	}
	for _, tc := range cases {
		req := validSignup()
		tc.mutate(&req)
		_, err := svc.Signup(context.Background(), req)
		if !errors.Is(err, tc.want) || !IsValidationError(err) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestSignupOtherProfessionAndDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	req := validSignup()
	req.Profesi = models.ProfesiLainnya
	req.ProfesiLainnya = "Mahasiswa Kebidanan"
	user, err := svc.Signup(context.Background(), req)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Profesi != "Mahasiswa Kebidanan" {
		t.Fatalf("profesi = %q", user.Profesi)
	}
	if _, err := svc.Signup(context.Background(), validSignup()); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestSignupTrimsUsername(t *testing.T) {
	svc, _ := newTestService(t)
	req := validSignup()
	req.Username = "  sari  "
	user, err := svc.Signup(context.Background(), req)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Username != "sari" {
		t.Fatalf("username stored as %q", user.Username)
	}
	if _, err := svc.Signup(context.Background(), validSignup()); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected padded and plain username to collide, got %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Username: " sari", Password: "rahasia123"}); err != nil {
		t.Fatalf("login with padded username: %v", err)
	}
}

func TestSignupAcceptsPasswordAtBcryptLimit(t *testing.T) {
	svc, _ := newTestService(t)
	req := validSignup()
	req.Password = strings.Repeat("a", maxPasswordBytes)
	req.ConfirmPassword = req.Password
	if _, err := svc.Signup(context.Background(), req); err != nil {
		t.Fatalf("signup: %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, tokens := newTestService(t)
	created, err := svc.Signup(context.Background(), validSignup())
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	resp, err := svc.Login(context.Background(), LoginRequest{Username: "sari", Password: "rahasia123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := tokens.ValidateToken(context.Background(), resp.Token)
	if err != nil || claims.UserID != created.ID || claims.NamaLengkap != "Sari Wulandari" {
		t.Fatalf("token claims %+v, %v", claims, err)
	}

	for _, bad := range []LoginRequest{{Username: "sari", Password: "salah"}, {Username: "nobody", Password: "x"}} {
		if _, err := svc.Login(context.Background(), bad); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%+v: expected ErrInvalidCredentials, got %v", bad, err)
		}
	}
}

func TestHandlerFlow(t *testing.T) {
	svc, tokens := newTestService(t)
	h := NewHandler(svc)
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	h.Register(api)
	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(tokens))
	h.RegisterProtected(protected)

	post := func(path string, body interface{}) *httptest.ResponseRecorder {
		payload, _ := json.Marshal(body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload)))
		return rec
	}

	if rec := post("/api/v1/auth/signup", validSignup()); rec.Code != http.StatusCreated {
		t.Fatalf("signup status %d: %s", rec.Code, rec.Body.String())
	}
	if rec := post("/api/v1/auth/signup", validSignup()); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status %d", rec.Code)
	}
	bad := validSignup()
	bad.ConfirmPassword = "x"
	if rec := post("/api/v1/auth/signup", bad); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid signup status %d", rec.Code)
	}
	if rec := post("/api/v1/auth/login", LoginRequest{Username: "sari", Password: "nope"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status %d", rec.Code)
	}

	rec := post("/api/v1/auth/login", LoginRequest{Username: "sari", Password: "rahasia123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d", rec.Code)
	}
	var login LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous profile status %d", rec.Code)
	}
}
