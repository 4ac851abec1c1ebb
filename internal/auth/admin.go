package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/bookshelf/internal/fault"
	"github.com/example/bookshelf/internal/infrastructure/store"
)

const RoleAdmin = "admin"

// Admin is an admin-panel account.
type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AdminService authenticates admin-panel logins against the store.
type AdminService struct {
	store store.DocumentStore
	jwt   *JWTService
}

func NewAdminService(st store.DocumentStore, jwt *JWTService) *AdminService {
	return &AdminService{store: st, jwt: jwt}
}

// Login verifies credentials and issues an admin token. Unknown
// usernames and wrong passwords produce the same error so a caller
// cannot probe for accounts.
func (s *AdminService) Login(ctx context.Context, username, password string) (string, *Admin, error) {
	if username == "" || password == "" {
		return "", nil, fmt.Errorf("%w: username and password are required", fault.ErrInvalidArgument)
	}

	var admins []Admin
	if err := s.store.Find(ctx, store.CollectionAdmins, store.Filter{store.Eq("username", username)}, &admins); err != nil {
		return "", nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	if len(admins) == 0 || !admins[0].IsActive || !CheckPassword(password, admins[0].PasswordHash) {
		return "", nil, fmt.Errorf("%w: invalid credentials", fault.ErrInvalidArgument)
	}

	admin := admins[0]
	token, _, err := s.jwt.GenerateToken(admin.ID, admin.Username, admin.Role)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	return token, &admin, nil
}

// TokenExpiry reports how long issued tokens stay valid.
func (s *AdminService) TokenExpiry() time.Duration {
	return s.jwt.GetTokenExpiry()
}

// EnsureAdmin creates an admin account if the username is not taken.
// Used to bootstrap the panel from environment configuration.
func (s *AdminService) EnsureAdmin(ctx context.Context, username, password, email string) error {
	existing, err := s.store.Count(ctx, store.CollectionAdmins, store.Filter{store.Eq("username", username)})
	if err != nil {
		return fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	if existing > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", fault.ErrInvalidArgument, err)
	}

	admin := &Admin{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		Role:         RoleAdmin,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	if err := s.store.Insert(ctx, store.CollectionAdmins, admin.ID, admin); err != nil {
		return fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	return nil
}
