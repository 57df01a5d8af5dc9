package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrAlreadyExists   = errors.New("store: already exists")
	ErrAlreadyTerminal = errors.New("store: already terminal")
)

// Store is the root data access interface. Concrete drivers (memory, sqlite)
// implement this and expose sub-repositories per aggregate.
type Store interface {
	Requests() Requests
	Users() Users

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing storage is still reachable.
	Ping(ctx context.Context) error
}

type Requests interface {
	// CreateRequest inserts a new pending request (id is provided by the
	// app via ULID).
	CreateRequest(ctx context.Context, r domain.VerificationRequest) error

	// SetStatus moves a pending request to status and stamps updated_at.
	// Returns ErrNotFound for an unknown id and ErrAlreadyTerminal when the
	// request is no longer pending. Two concurrent calls for the same id
	// never both succeed.
	SetStatus(ctx context.Context, id string, status domain.Status, now time.Time) (domain.VerificationRequest, error)

	GetRequest(ctx context.Context, id string) (domain.VerificationRequest, error)

	// ListByOwner returns the user's requests, newest first.
	ListByOwner(ctx context.Context, userID string) ([]domain.VerificationRequest, error)

	// ListAll returns every request, newest first.
	ListAll(ctx context.Context) ([]domain.VerificationRequest, error)

	// CountByStatus returns how many requests sit in each status. Every
	// status is present in the result, zero or not.
	CountByStatus(ctx context.Context) (map[domain.Status]int, error)
}

type Users interface {
	// CreateUser inserts a new user. ErrAlreadyExists when the email is
	// taken, ignoring case.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// ListByRole is used to find every admin to notify.
	ListByRole(ctx context.Context, role string) ([]domain.User, error)

	// MarkAuthenticated flags the email as verified and bumps updated_at.
	MarkAuthenticated(ctx context.Context, id string, now time.Time) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}
