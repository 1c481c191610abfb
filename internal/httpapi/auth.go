package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Khalettt/POSMS/internal/domain"
	"github.com/Khalettt/POSMS/internal/store"
)

var errInvalidCredentials = errors.New("invalid credentials")

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	repo     store.Repository
}

type posClaims struct {
	jwtlib.RegisteredClaims
	Name string `json:"name"`
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, repo store.Repository) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		repo:     repo,
	}
}

// Signup registers a staff account and signs the caller in. Only one manager
// account may exist; the first signup usually claims it and everyone after
// that registers as a cashier.
func (a *AuthManager) Signup(ctx context.Context, req domain.SignupRequest) (domain.SigninResponse, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))

	if req.FullName == "" || !strings.Contains(req.Email, "@") {
		return domain.SigninResponse{}, fmt.Errorf("full name and a valid email are required")
	}
	if len(req.Password) < 6 {
		return domain.SigninResponse{}, fmt.Errorf("password must be at least 6 characters")
	}
	switch req.Role {
	case "":
		req.Role = domain.RoleCashier
	case domain.RoleManager, domain.RoleCashier:
	default:
		return domain.SigninResponse{}, fmt.Errorf("unknown role %q", req.Role)
	}

	if req.Role == domain.RoleManager {
		managers, err := a.repo.CountUsersByRole(ctx, domain.RoleManager)
		if err != nil {
			return domain.SigninResponse{}, err
		}
		if managers > 0 {
			return domain.SigninResponse{}, fmt.Errorf("a manager account already exists")
		}
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.SigninResponse{}, fmt.Errorf("failed to hash password")
	}

	created, err := a.repo.CreateUser(ctx, domain.UserAccount{
		FullName: req.FullName,
		Email:    req.Email,
		Password: hash,
		Role:     req.Role,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.SigninResponse{}, fmt.Errorf("email already registered")
		}
		return domain.SigninResponse{}, err
	}

	return a.issueToken(*created)
}

func (a *AuthManager) Signin(ctx context.Context, req domain.SigninRequest) (domain.SigninResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return domain.SigninResponse{}, errInvalidCredentials
	}

	user, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SigninResponse{}, errInvalidCredentials
		}
		return domain.SigninResponse{}, err
	}
	if !verifyPassword(user.Password, req.Password) {
		return domain.SigninResponse{}, errInvalidCredentials
	}
	if !user.Active {
		return domain.SigninResponse{}, errors.New("account is inactive")
	}

	return a.issueToken(*user)
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{ID: sub, Name: claims.Name, Role: claims.Role}, nil
}

func (a *AuthManager) ListStaff(ctx context.Context) ([]domain.StaffUser, error) {
	users, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	staff := make([]domain.StaffUser, 0, len(users))
	for _, user := range users {
		staff = append(staff, toStaffUser(user))
	}
	return staff, nil
}

func (a *AuthManager) CreateStaff(ctx context.Context, req domain.StaffCreateRequest) (domain.StaffUser, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))

	if req.FullName == "" || !strings.Contains(req.Email, "@") {
		return domain.StaffUser{}, fmt.Errorf("full name and a valid email are required")
	}
	if len(req.Password) < 6 {
		return domain.StaffUser{}, fmt.Errorf("password must be at least 6 characters")
	}
	if req.Role != domain.RoleCashier {
		return domain.StaffUser{}, fmt.Errorf("staff accounts must have the cashier role")
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.StaffUser{}, fmt.Errorf("failed to hash password")
	}

	created, err := a.repo.CreateUser(ctx, domain.UserAccount{
		FullName: req.FullName,
		Email:    req.Email,
		Password: hash,
		Role:     req.Role,
		Phone:    strings.TrimSpace(req.Phone),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.StaffUser{}, fmt.Errorf("email already registered")
		}
		return domain.StaffUser{}, err
	}
	return toStaffUser(*created), nil
}

// DeleteStaff removes an account. Callers cannot delete themselves, which
// guarantees the last manager account survives.
func (a *AuthManager) DeleteStaff(ctx context.Context, actorID string, targetID string) error {
	if targetID == "" {
		return store.ErrInvalidInput
	}
	if actorID == targetID {
		return fmt.Errorf("cannot delete your own account")
	}
	return a.repo.DeleteUser(ctx, targetID)
}

func (a *AuthManager) issueToken(user domain.UserAccount) (domain.SigninResponse, error) {
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	claims := posClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "posms",
		},
		Name: user.FullName,
		Role: user.Role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return domain.SigninResponse{}, err
	}

	return domain.SigninResponse{
		AccessToken: signed,
		User:        toStaffUser(user),
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func toStaffUser(user domain.UserAccount) domain.StaffUser {
	return domain.StaffUser{
		ID:        user.ID,
		FullName:  user.FullName,
		Email:     user.Email,
		Role:      user.Role,
		Phone:     user.Phone,
		Active:    user.Active,
		CreatedAt: user.CreatedAt,
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
