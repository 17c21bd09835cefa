package repository

import (
	"context"

	"epiwatch/role-portal/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound  = RepositoryError("not found")
	ErrDuplicate = RepositoryError("record already exists")
	// ErrConflict is returned when a status transition races against an
	// already-committed decision (compare-and-swap on status missed).
	ErrConflict     = RepositoryError("conflicting status transition")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	UpdateRole(ctx context.Context, id primitive.ObjectID, role domain.Role) error
}

// RequestRepository defines the interface for interacting with upgrade
// request records. The store is the exclusive mutator of a record and the
// only cross-client consistency point: Resubmit, Approve and Reject all
// apply their transition under a compare-and-swap on the current status and
// return ErrConflict when the record is no longer in the expected state.
type RequestRepository interface {
	// Create inserts the user's request record in the pending state.
	// Returns ErrDuplicate if a record for the user already exists.
	Create(ctx context.Context, request *domain.UpgradeRequest) (primitive.ObjectID, error)

	// GetByUserID returns the user's single request record, or ErrNotFound.
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.UpgradeRequest, error)

	// ListByStatus returns all records with the given status in creation order.
	ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.UpgradeRequest, error)

	// Resubmit resets a rejected record to pending, replacing the requested
	// role and document set and clearing the reviewer comment.
	Resubmit(ctx context.Context, userID primitive.ObjectID, role domain.Role, documents []domain.Document) (*domain.UpgradeRequest, error)

	// Approve moves a pending record to approved and promotes the owning
	// user's role to the requested role in the same transaction.
	Approve(ctx context.Context, userID primitive.ObjectID, comment string) (*domain.UpgradeRequest, error)

	// Reject moves a pending record to rejected, recording the comment.
	// The user's role is untouched.
	Reject(ctx context.Context, userID primitive.ObjectID, comment string) (*domain.UpgradeRequest, error)
}
