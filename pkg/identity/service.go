package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maternal-risk/platform/pkg/common/models"
	"golang.org/x/crypto/bcrypt"
)

// Professions lists the signup choices in display order.
var Professions = []string{
	models.ProfesiBidan, models.ProfesiDokter, models.ProfesiPegawaiRS,
	models.ProfesiPegawaiDinkes, models.ProfesiIbuHamil, models.ProfesiLainnya,
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingFields      = errors.New("all fields are required")
	ErrPasswordMismatch   = errors.New("password confirmation does not match")
	ErrOtherProfession    = errors.New("profession must be specified when choosing Lainnya...")
	ErrPasswordTooLong    = fmt.Errorf("password must be at most %d bytes", maxPasswordBytes)
)

// bcrypt only hashes the first 72 bytes.
const maxPasswordBytes = 72

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// TokenIssuer is satisfied by *auth.JWTManager.
type TokenIssuer interface {
	IssueToken(user models.User) (string, time.Time, error)
}

type SignupRequest struct {
	NamaLengkap     string `json:"nama_lengkap"`
	Profesi         string `json:"profesi"`
	ProfesiLainnya  string `json:"profesi_lainnya"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

type Service struct {
	repo   UserStore
	tokens TokenIssuer
}

func NewService(repo UserStore, tokens TokenIssuer) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Signup checks the form in the order the signup page reports problems and
// stores the account with a bcrypt hash.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (models.User, error) {
	profesi := strings.TrimSpace(req.Profesi)
	if profesi == models.ProfesiLainnya {
		other := strings.TrimSpace(req.ProfesiLainnya)
		if other == "" {
			return models.User{}, ValidationError{reason: ErrOtherProfession}
		}
		profesi = other
	}
	username := strings.TrimSpace(req.Username)
	if strings.TrimSpace(req.NamaLengkap) == "" || profesi == "" || username == "" || req.Password == "" {
		return models.User{}, ValidationError{reason: ErrMissingFields}
	}
	if req.Password != req.ConfirmPassword {
		return models.User{}, ValidationError{reason: ErrPasswordMismatch}
	}
	if len(req.Password) > maxPasswordBytes {
		return models.User{}, ValidationError{reason: ErrPasswordTooLong}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	return s.repo.CreateUser(ctx, CreateUserInput{
		Username:     username,
		NamaLengkap:  strings.TrimSpace(req.NamaLengkap),
		Profesi:      profesi,
		PasswordHash: string(hash),
	})
}

// Login verifies the password and issues a session token. Unknown users and
// wrong passwords are reported the same way.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	user, hash, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResponse{}, ErrInvalidCredentials
		}
		return LoginResponse{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		return LoginResponse{}, ErrInvalidCredentials
	}
	token, expires, err := s.tokens.IssueToken(user)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{Token: token, ExpiresAt: expires, User: user}, nil
}

func (s *Service) Profile(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}
