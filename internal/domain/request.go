package domain

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestStatus type for the closed set of upgrade request states.
// The absence of a record is the fourth logical state ("none").
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// ParseRequestStatus validates a raw status string against the closed set.
func ParseRequestStatus(raw string) (RequestStatus, error) {
	switch RequestStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("unrecognized request status %q", raw)
	}
}

// IsTerminal reports whether no applicant-side transition is defined out of
// the status. Approved requests persist as the audit of the granted role;
// rejected requests may be resubmitted.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved
}

// Document stores metadata about a supporting identity document attached to
// an upgrade request. The actual file resides in the blob store.
type Document struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FileName    string             `bson:"fileName" json:"filename"`    // Original filename provided by client
	StoragePath string             `bson:"storagePath" json:"path"`     // Opaque key into the blob store
	ContentType string             `bson:"contentType" json:"mimeType"` // MIME type as reported on upload
	Size        int64              `bson:"size" json:"size"`
}

// UpgradeRequest represents one user's claim to a privileged role.
// Exactly one request record exists per user; the record is mutated in
// place on resubmission and on decision, and is never deleted.
type UpgradeRequest struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"userId" json:"userId"` // Unique per user
	RequestedRole Role               `bson:"requestedRole" json:"requestedRole"`
	Status        RequestStatus      `bson:"status" json:"status"`
	Comment       string             `bson:"comment,omitempty" json:"comment,omitempty"` // Set only on rejection
	Documents     []Document         `bson:"documents" json:"documents"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
	DecidedAt     *time.Time         `bson:"decidedAt,omitempty" json:"decidedAt,omitempty"`
}

// IsPending reports whether the request is awaiting review.
func (r *UpgradeRequest) IsPending() bool {
	return r.Status == StatusPending
}
