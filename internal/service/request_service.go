package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"epiwatch/role-portal/internal/domain"
	"epiwatch/role-portal/internal/repository"
	"epiwatch/role-portal/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrRoleNotRequestable = errors.New("requested role cannot be applied for")
	ErrDocumentsRequired  = errors.New("supporting documents are required for this role")
	ErrAlreadyPrivileged  = errors.New("role promotions are not available for verified users")
	ErrRequestPending     = errors.New("an application is already under review")
	ErrRequestExists      = errors.New("an upgrade request already exists for this user")
	ErrRequestNotFound    = errors.New("no upgrade request found")
	ErrNotReviewer        = errors.New("reviewer privilege required")
	ErrAlreadyDecided     = errors.New("request has already been decided")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidAction      = errors.New("decision action must be approve or reject")
)

// DecisionAction is a reviewer's verdict on a pending request.
type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
)

// RequestState is the applicant-visible lifecycle state. It extends the
// stored status enum with None for users who never submitted.
type RequestState string

const (
	StateNone     RequestState = "none"
	StatePending  RequestState = "pending"
	StateApproved RequestState = "approved"
	StateRejected RequestState = "rejected"
)

// OwnStatus is the applicant's view of their request.
type OwnStatus struct {
	State         RequestState `json:"status"`
	RequestedRole domain.Role  `json:"requestedRole,omitempty"`
	Comment       string       `json:"comment,omitempty"`
}

// DocumentUpload carries one incoming identity document from a multipart
// submission. Content is streamed to the blob store by the service.
type DocumentUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// UserSummary is the applicant identity shown to reviewers.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PendingRequest is a pending record enriched with its applicant, as listed
// in the reviewer console.
type PendingRequest struct {
	domain.UpgradeRequest
	User UserSummary `json:"user"`
}

// RequestService owns the upgrade request lifecycle:
// none -> pending -> approved | rejected -> pending (resubmission).
type RequestService interface {
	GetOwnStatus(ctx context.Context, userID primitive.ObjectID) (*OwnStatus, error)
	Submit(ctx context.Context, userID primitive.ObjectID, role domain.Role, documents []DocumentUpload) (*domain.UpgradeRequest, error)
	Resubmit(ctx context.Context, userID primitive.ObjectID, role domain.Role, documents []DocumentUpload) (*domain.UpgradeRequest, error)
	// Apply dispatches to Submit or Resubmit based on the caller's current
	// state, backing the single application endpoint used by the frontend.
	Apply(ctx context.Context, userID primitive.ObjectID, role domain.Role, documents []DocumentUpload) (*domain.UpgradeRequest, error)

	ListPending(ctx context.Context, reviewerRole domain.Role) ([]PendingRequest, error)
	Decide(ctx context.Context, reviewerRole domain.Role, applicantID primitive.ObjectID, action DecisionAction, comment string) (*domain.UpgradeRequest, error)

	DocumentDownloadURL(ctx context.Context, storagePath string) (string, error)
}

// --- Service Implementation ---

type requestService struct {
	requestRepo repository.RequestRepository
	userRepo    repository.UserRepository
	fileStorage storage.FileStorage
	pathPrefix  string
	logger      zerolog.Logger
}

// NewRequestService creates a new instance of requestService.
func NewRequestService(
	requestRepo repository.RequestRepository,
	userRepo repository.UserRepository,
	fileStorage storage.FileStorage,
	pathPrefix string,
	logger zerolog.Logger,
) RequestService {
	if pathPrefix == "" {
		pathPrefix = "uploads"
	}
	return &requestService{
		requestRepo: requestRepo,
		userRepo:    userRepo,
		fileStorage: fileStorage,
		pathPrefix:  pathPrefix,
		logger:      logger,
	}
}

// GetOwnStatus returns the applicant's lifecycle state. A missing record
// maps to StateNone rather than an error.
func (s *requestService) GetOwnStatus(ctx context.Context, userID primitive.ObjectID) (*OwnStatus, error) {
	request, err := s.requestRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &OwnStatus{State: StateNone}, nil
		}
		return nil, err
	}

	return &OwnStatus{
		State:         RequestState(request.Status),
		RequestedRole: request.RequestedRole,
		Comment:       request.Comment,
	}, nil
}

// Submit creates the user's request record in the pending state.
// Preconditions: caller's role is general public, the target role is
// requestable, and documents are attached when the role demands proof.
func (s *requestService) Submit(ctx context.Context, userID primitive.ObjectID, role domain.Role, documents []DocumentUpload) (*domain.UpgradeRequest, error) {
	if err := s.validateApplication(ctx, userID, role, documents); err != nil {
		return nil, err
	}

	stored, err := s.storeDocuments(ctx, userID, documents)
	if err != nil {
		return nil, err
	}

	request := &domain.UpgradeRequest{
		UserID:        userID,
		RequestedRole: role,
		Documents:     stored,
	}

	requestID, err := s.requestRepo.Create(ctx, request)
	if err != nil {
		// The blobs are orphaned if the record insert fails; clean them up.
		s.discardDocuments(ctx, stored)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, s.existingRecordError(ctx, userID)
		}
		return nil, err
	}
	request.ID = requestID

	s.logger.Info().Str("user", userID.Hex()).Str("role", string(role)).Msg("upgrade request submitted")
	return request, nil
}

// Resubmit resets the caller's rejected request to pending, replacing the
// requested role and the entire document set and clearing the reviewer
// comment. Only the owner of the rejected record can resubmit.
func (s *requestService) Resubmit(ctx context.Context, userID primitive.ObjectID, role domain.Role, documents []DocumentUpload) (*domain.UpgradeRequest, error) {
	if err := s.validateApplication(ctx, userID, role, documents); err != nil {
		return nil, err
	}

	previous, err := s.requestRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if previous.Status != domain.StatusRejected {
		return nil, s.stateError(previous.Status)
	}

	stored, err := s.storeDocuments(ctx, userID, documents)
	if err != nil {
		return nil, err
	}

	request, err := s.requestRepo.Resubmit(ctx, userID, role, stored)
	if err != nil {
		s.discardDocuments(ctx, stored)
		if errors.Is(err, repository.ErrConflict) {
			// The record moved out of rejected between the read and the swap.
			return nil, s.existingRecordError(ctx, userID)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	// The old document set is replaced wholesale; discard its blobs.
	s.discardDocuments(ctx, previous.Documents)

	s.logger.Info().Str("user", userID.Hex()).Str("role", string(role)).Msg("upgrade request resubmitted")
	return request, nil
}

// Apply dispatches the single submit/resubmit endpoint to the correct
// transition for the caller's current state.
func (s *requestService) Apply(ctx context.Context, userID primitive.ObjectID, role domain.Role, documents []DocumentUpload) (*domain.UpgradeRequest, error) {
	request, err := s.requestRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.Submit(ctx, userID, role, documents)
		}
		return nil, err
	}

	switch request.Status {
	case domain.StatusRejected:
		return s.Resubmit(ctx, userID, role, documents)
	default:
		return nil, s.stateError(request.Status)
	}
}

// ListPending returns all pending requests in creation order, each enriched
// with the applicant's identity.
func (s *requestService) ListPending(ctx context.Context, reviewerRole domain.Role) ([]PendingRequest, error) {
	if !reviewerRole.IsReviewer() {
		return nil, ErrNotReviewer
	}

	requests, err := s.requestRepo.ListByStatus(ctx, domain.StatusPending)
	if err != nil {
		return nil, err
	}

	pending := make([]PendingRequest, 0, len(requests))
	for _, request := range requests {
		entry := PendingRequest{UpgradeRequest: request}
		user, err := s.userRepo.GetByID(ctx, request.UserID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			// Orphaned record; list it without applicant details.
			s.logger.Warn().Str("request", request.ID.Hex()).Msg("pending request has no owning user")
		} else {
			entry.User = UserSummary{ID: user.ID.Hex(), Name: user.Name, Email: user.Email}
		}
		pending = append(pending, entry)
	}
	return pending, nil
}

// Decide applies a reviewer verdict to the applicant's pending request.
// Approval promotes the applicant's role together with the status change;
// rejection records the comment. A decision on a record that is no longer
// pending fails with ErrAlreadyDecided and never alters the record.
func (s *requestService) Decide(ctx context.Context, reviewerRole domain.Role, applicantID primitive.ObjectID, action DecisionAction, comment string) (*domain.UpgradeRequest, error) {
	if !reviewerRole.IsReviewer() {
		return nil, ErrNotReviewer
	}

	var (
		request *domain.UpgradeRequest
		err     error
	)
	switch action {
	case ActionApprove:
		request, err = s.requestRepo.Approve(ctx, applicantID, comment)
	case ActionReject:
		request, err = s.requestRepo.Reject(ctx, applicantID, comment)
	default:
		return nil, ErrInvalidAction
	}

	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAlreadyDecided
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	s.logger.Info().
		Str("applicant", applicantID.Hex()).
		Str("action", string(action)).
		Str("status", string(request.Status)).
		Msg("upgrade request decided")
	return request, nil
}

// DocumentDownloadURL resolves an opaque storage path to a temporary
// download URL. The document content itself is never inspected.
func (s *requestService) DocumentDownloadURL(ctx context.Context, storagePath string) (string, error) {
	return s.fileStorage.GeneratePresignedDownloadURL(ctx, storagePath, storage.DefaultPresignedURLExpiry)
}

// --- helpers ---

// validateApplication checks the shared submit/resubmit preconditions.
func (s *requestService) validateApplication(ctx context.Context, userID primitive.ObjectID, role domain.Role, documents []DocumentUpload) error {
	if !role.IsRequestable() {
		return ErrRoleNotRequestable
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.Role != domain.RoleGeneralPublic {
		return ErrAlreadyPrivileged
	}

	if role.RequiresDocuments() && len(documents) == 0 {
		return ErrDocumentsRequired
	}
	return nil
}

// storeDocuments streams the uploads to the blob store under unique keys
// and returns their metadata in submission order.
func (s *requestService) storeDocuments(ctx context.Context, userID primitive.ObjectID, documents []DocumentUpload) ([]domain.Document, error) {
	stored := make([]domain.Document, 0, len(documents))
	for _, doc := range documents {
		contentType := doc.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		objectKey := path.Join(s.pathPrefix, userID.Hex(), fmt.Sprintf("%s%s", uuid.NewString(), path.Ext(doc.FileName)))

		if err := s.fileStorage.Upload(ctx, objectKey, contentType, doc.Content); err != nil {
			s.discardDocuments(ctx, stored)
			return nil, err
		}
		stored = append(stored, domain.Document{
			ID:          primitive.NewObjectID(),
			FileName:    doc.FileName,
			StoragePath: objectKey,
			ContentType: contentType,
			Size:        doc.Size,
		})
	}
	return stored, nil
}

// discardDocuments best-effort deletes a document set's blobs.
func (s *requestService) discardDocuments(ctx context.Context, documents []domain.Document) {
	for _, doc := range documents {
		if err := s.fileStorage.DeleteObject(ctx, doc.StoragePath); err != nil {
			s.logger.Warn().Err(err).Str("key", doc.StoragePath).Msg("failed to delete document blob")
		}
	}
}

// existingRecordError maps the state of the caller's current record to the
// matching application error.
func (s *requestService) existingRecordError(ctx context.Context, userID primitive.ObjectID) error {
	request, err := s.requestRepo.GetByUserID(ctx, userID)
	if err != nil {
		return ErrRequestExists
	}
	return s.stateError(request.Status)
}

func (s *requestService) stateError(status domain.RequestStatus) error {
	switch status {
	case domain.StatusPending:
		return ErrRequestPending
	case domain.StatusApproved:
		return ErrAlreadyPrivileged
	default:
		return ErrRequestExists
	}
}
