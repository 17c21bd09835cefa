package mongo

import (
	"context"
	"errors"
	"time"

	"epiwatch/role-portal/internal/domain"
	"epiwatch/role-portal/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const requestCollectionName = "upgrade_requests"

// mongoRequestRepository implements repository.RequestRepository using MongoDB.
// All decision transitions run as a FindOneAndUpdate filtered on the expected
// current status, so two racing decisions on the same record resolve to
// exactly one winner at the store.
type mongoRequestRepository struct {
	collection *mongo.Collection
	users      *mongo.Collection
	db         *mongo.Database
}

// NewMongoRequestRepository creates a new instance of mongoRequestRepository.
func NewMongoRequestRepository(db *mongo.Database) repository.RequestRepository {
	return &mongoRequestRepository{
		collection: db.Collection(requestCollectionName),
		users:      db.Collection(userCollectionName),
		db:         db,
	}
}

// Create inserts the user's upgrade request record in the pending state.
// The unique index on userId guarantees at most one record per user; a
// duplicate insert maps to repository.ErrDuplicate.
func (r *mongoRequestRepository) Create(ctx context.Context, request *domain.UpgradeRequest) (primitive.ObjectID, error) {
	if request.UserID == primitive.NilObjectID || request.RequestedRole == "" {
		return primitive.NilObjectID, errors.New("request user ID and requested role are required")
	}

	request.ID = primitive.NewObjectID()
	request.Status = domain.StatusPending
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now
	if request.Documents == nil {
		request.Documents = []domain.Document{}
	}

	result, err := r.collection.InsertOne(ctx, request)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByUserID retrieves the user's single request record.
func (r *mongoRequestRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.UpgradeRequest, error) {
	var request domain.UpgradeRequest
	filter := bson.M{"userId": userID}

	err := r.collection.FindOne(ctx, filter).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &request, nil
}

// ListByStatus returns all records with the given status in creation order.
func (r *mongoRequestRepository) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.UpgradeRequest, error) {
	filter := bson.M{"status": status}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var requests []domain.UpgradeRequest
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []domain.UpgradeRequest{}
	}
	return requests, nil
}

// Resubmit resets a rejected record to pending, replacing the requested role
// and document set wholesale and clearing the reviewer comment. The swap is
// conditional on the record still being rejected.
func (r *mongoRequestRepository) Resubmit(ctx context.Context, userID primitive.ObjectID, role domain.Role, documents []domain.Document) (*domain.UpgradeRequest, error) {
	if documents == nil {
		documents = []domain.Document{}
	}
	filter := bson.M{"userId": userID, "status": domain.StatusRejected}
	update := bson.M{
		"$set": bson.M{
			"status":        domain.StatusPending,
			"requestedRole": role,
			"documents":     documents,
			"updatedAt":     time.Now().UTC(),
		},
		"$unset": bson.M{"comment": "", "decidedAt": ""},
	}
	return r.swapStatus(ctx, userID, filter, update)
}

// Approve moves a pending record to approved and promotes the owning user's
// role to the requested role. Both writes run in one session transaction
// where the deployment supports it; otherwise the status swap still commits
// first, so a lost role write can be retried without double-approving.
func (r *mongoRequestRepository) Approve(ctx context.Context, userID primitive.ObjectID, comment string) (*domain.UpgradeRequest, error) {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return r.approve(ctx, userID)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return r.approve(sc, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.UpgradeRequest), nil
}

func (r *mongoRequestRepository) approve(ctx context.Context, userID primitive.ObjectID) (*domain.UpgradeRequest, error) {
	now := time.Now().UTC()
	filter := bson.M{"userId": userID, "status": domain.StatusPending}
	update := bson.M{
		"$set": bson.M{
			"status":    domain.StatusApproved,
			"updatedAt": now,
			"decidedAt": now,
		},
		"$unset": bson.M{"comment": ""},
	}

	request, err := r.swapStatus(ctx, userID, filter, update)
	if err != nil {
		return nil, err
	}

	roleUpdate := bson.M{"$set": bson.M{"role": request.RequestedRole, "updatedAt": now}}
	result, err := r.users.UpdateOne(ctx, bson.M{"_id": userID}, roleUpdate)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, repository.ErrNotFound
	}
	return request, nil
}

// Reject moves a pending record to rejected and records the reviewer comment.
func (r *mongoRequestRepository) Reject(ctx context.Context, userID primitive.ObjectID, comment string) (*domain.UpgradeRequest, error) {
	now := time.Now().UTC()
	filter := bson.M{"userId": userID, "status": domain.StatusPending}
	update := bson.M{
		"$set": bson.M{
			"status":    domain.StatusRejected,
			"comment":   comment,
			"updatedAt": now,
			"decidedAt": now,
		},
	}
	return r.swapStatus(ctx, userID, filter, update)
}

// swapStatus applies a status-conditional update and maps a missed swap to
// ErrConflict (record exists but is no longer in the expected state) or
// ErrNotFound (no record for the user at all).
func (r *mongoRequestRepository) swapStatus(ctx context.Context, userID primitive.ObjectID, filter, update bson.M) (*domain.UpgradeRequest, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var request domain.UpgradeRequest
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&request)
	if err == nil {
		return &request, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// The swap missed. Distinguish an absent record from one already moved on.
	if _, lookupErr := r.GetByUserID(ctx, userID); lookupErr != nil {
		return nil, lookupErr
	}
	return nil, repository.ErrConflict
}

// EnsureRequestIndexes creates necessary indexes for the upgrade_requests
// collection. The unique userId index enforces one record per user.
func EnsureRequestIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
