package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/timeegg/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CapsuleRepository defines the interface for capsule record operations.
type CapsuleRepository interface {
	Create(ctx context.Context, capsule *models.Capsule) error
	GetByID(ctx context.Context, id string) (*models.Capsule, error)
	ListVisibleTo(ctx context.Context, userID string) ([]models.Capsule, error)
	ListPublicWithLocation(ctx context.Context) ([]models.Capsule, error)
	UpdateContent(ctx context.Context, id, title, memo string, privacy models.Privacy) error
	SetPhotoURLs(ctx context.Context, id string, urls []string) error
	MarkUnlocked(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// MongoCapsuleRepository implements CapsuleRepository for MongoDB.
type MongoCapsuleRepository struct {
	collection *mongo.Collection
}

// NewMongoCapsuleRepository creates a new MongoCapsuleRepository.
func NewMongoCapsuleRepository(db *mongo.Database) *MongoCapsuleRepository {
	return &MongoCapsuleRepository{collection: db.Collection("timeCapsules")}
}

// Create inserts a new capsule record. The caller assigns the document ID.
func (r *MongoCapsuleRepository) Create(ctx context.Context, capsule *models.Capsule) error {
	capsule.CreatedAt = time.Now()
	capsule.UpdatedAt = capsule.CreatedAt
	_, err := r.collection.InsertOne(ctx, capsule)
	return err
}

// GetByID retrieves a capsule by its document ID.
func (r *MongoCapsuleRepository) GetByID(ctx context.Context, id string) (*models.Capsule, error) {
	var capsule models.Capsule
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&capsule)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &capsule, nil
}

// ListVisibleTo retrieves every capsule the user may view: their own, ones
// shared with them, and public ones, newest first.
func (r *MongoCapsuleRepository) ListVisibleTo(ctx context.Context, userID string) ([]models.Capsule, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"creator_id": userID},
		bson.M{"shared_user_ids": userID},
		bson.M{"privacy": models.PrivacyPublic},
	}}
	return r.find(ctx, filter)
}

// ListPublicWithLocation retrieves public capsules that carry a geofence,
// newest first. Radius filtering against a query point happens in the
// service layer.
func (r *MongoCapsuleRepository) ListPublicWithLocation(ctx context.Context) ([]models.Capsule, error) {
	filter := bson.M{
		"privacy":            models.PrivacyPublic,
		"condition.location": bson.M{"$ne": nil},
	}
	return r.find(ctx, filter)
}

func (r *MongoCapsuleRepository) find(ctx context.Context, filter bson.M) ([]models.Capsule, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var capsules []models.Capsule
	if err = cursor.All(ctx, &capsules); err != nil {
		return nil, err
	}
	return capsules, nil
}

// UpdateContent updates the mutable content fields and bumps updated_at.
func (r *MongoCapsuleRepository) UpdateContent(ctx context.Context, id, title, memo string, privacy models.Privacy) error {
	update := bson.M{"$set": bson.M{
		"title":      title,
		"memo":       memo,
		"privacy":    privacy,
		"updated_at": time.Now(),
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetPhotoURLs replaces the photo reference list and bumps updated_at.
func (r *MongoCapsuleRepository) SetPhotoURLs(ctx context.Context, id string, urls []string) error {
	update := bson.M{"$set": bson.M{
		"photo_urls": urls,
		"updated_at": time.Now(),
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MarkUnlocked flips the is_unlocked ratchet with a single conditional
// update. It returns true when this call performed the transition and false
// when the capsule was already unlocked, which makes concurrent unlock
// attempts idempotent.
func (r *MongoCapsuleRepository) MarkUnlocked(ctx context.Context, id string) (bool, error) {
	filter := bson.M{"_id": id, "is_unlocked": false}
	update := bson.M{"$set": bson.M{"is_unlocked": true, "updated_at": time.Now()}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// Delete removes a capsule record.
func (r *MongoCapsuleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("capsule %s: %w", id, models.ErrNotFound)
	}
	return nil
}
