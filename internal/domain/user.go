package domain

import (
	"context"
	"time"
)

// Role is an application role.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleLeader Role = "Leader"
	RoleMember Role = "Member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleLeader || r == RoleMember
}

// User represents a registered user. Leaders and members are assigned to a
// region and campus; members additionally reference their leader and carry a
// generated member code.
// swagger:model User
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Region       string    `json:"region,omitempty"`
	Campus       string    `json:"campus,omitempty"`
	LeaderID     string    `json:"leader_id,omitempty"`
	MemberCode   string    `json:"member_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser returns a new User with the given fields. ID is assigned by the
// repository on create.
func NewUser(name, email, passwordHash string, role Role, region, campus string, createdAt time.Time) *User {
	return &User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Region:       region,
		Campus:       campus,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer issues bearer tokens for an authenticated user.
type TokenIssuer interface {
	Issue(userID, email string, role Role, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a bearer token and returns the authenticated user ID.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}

// UserRepository defines the interface for user storage. It doubles as the
// user directory: ListRegions/ListCampuses feed the event-creation fan-out
// snapshot, ListIDsByRole the public event listing.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListRegions(ctx context.Context) ([]string, error)
	ListCampuses(ctx context.Context) ([]string, error)
	ListIDsByRole(ctx context.Context, role Role) ([]string, error)
}

// SignUpInput carries a signup request.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
	Role     Role
	Region   string
	Campus   string
	LeaderID string
}

// UserService defines authentication and user directory operations.
type UserService interface {
	SignUp(ctx context.Context, input *SignUpInput) (*User, error)
	Login(ctx context.Context, email, password string) (token string, user *User, err error)
	GetByID(ctx context.Context, id string) (*User, error)
	RegionsAndCampuses(ctx context.Context) (regions, campuses []string, err error)
}
