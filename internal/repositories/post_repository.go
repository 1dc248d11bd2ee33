package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostsByCreator(ctx context.Context, creatorID string, skip, limit int64) ([]models.Post, error)
	// GetNearbyPosts returns visible, unexpired posts within radiusKm of a point, nearest first.
	GetNearbyPosts(ctx context.Context, lat, lng, radiusKm float64, limit int64, now time.Time) ([]models.Post, error)
	DeletePost(ctx context.Context, id string) error
	IncrementLikes(ctx context.Context, postID string, delta int) error
	IncrementCommentCount(ctx context.Context, postID string, delta int) error
	// AddEyewitness marks uid as an eyewitness and reports whether the mark is new.
	AddEyewitness(ctx context.Context, postID, uid string) (bool, error)
	// RemoveEyewitness clears the mark and reports whether one existed.
	RemoveEyewitness(ctx context.Context, postID, uid string) (bool, error)
	SetVerification(ctx context.Context, postID, status, reason string) error
	// WatchVerification calls fn with every post whose verification status changes
	// until ctx is done.
	WatchVerification(ctx context.Context, fn func(models.Post)) error
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

// EnsureIndexes creates the geo and lookup indexes used by the feed.
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	})
	return err
}

func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	if post.EyewitnessedBy == nil {
		post.EyewitnessedBy = []string{}
	}
	if post.TaggedUserIDs == nil {
		post.TaggedUserIDs = []string{}
	}
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *MongoPostRepository) GetPostsByCreator(ctx context.Context, creatorID string, skip, limit int64) ([]models.Post, error) {
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"creator_id": creatorID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *MongoPostRepository) GetNearbyPosts(ctx context.Context, lat, lng, radiusKm float64, limit int64, now time.Time) ([]models.Post, error) {
	filter := bson.M{
		"location": bson.M{
			"$nearSphere": bson.M{
				"$geometry":    models.NewGeoPoint(lat, lng),
				"$maxDistance": radiusKm * 1000,
			},
		},
		"is_visible": true,
		"expires_at": bson.M{"$gt": now},
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) error {
	objID, err := objectID(id)
	if err != nil {
		return err
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoPostRepository) IncrementLikes(ctx context.Context, postID string, delta int) error {
	return r.inc(ctx, postID, "likes", delta)
}

func (r *MongoPostRepository) IncrementCommentCount(ctx context.Context, postID string, delta int) error {
	return r.inc(ctx, postID, "comment_count", delta)
}

func (r *MongoPostRepository) inc(ctx context.Context, postID, field string, delta int) error {
	objID, err := objectID(postID)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoPostRepository) AddEyewitness(ctx context.Context, postID, uid string) (bool, error) {
	objID, err := objectID(postID)
	if err != nil {
		return false, err
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID, "eyewitnessed_by": bson.M{"$ne": uid}},
		bson.M{"$addToSet": bson.M{"eyewitnessed_by": uid}, "$inc": bson.M{"eyewitnesses": 1}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *MongoPostRepository) RemoveEyewitness(ctx context.Context, postID, uid string) (bool, error) {
	objID, err := objectID(postID)
	if err != nil {
		return false, err
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID, "eyewitnessed_by": uid},
		bson.M{"$pull": bson.M{"eyewitnessed_by": uid}, "$inc": bson.M{"eyewitnesses": -1}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *MongoPostRepository) SetVerification(ctx context.Context, postID, status, reason string) error {
	objID, err := objectID(postID)
	if err != nil {
		return err
	}
	set := bson.M{
		"verification_status": status,
		"is_visible":          status == models.VerificationApproved,
	}
	if reason != "" {
		set["rejection_reason"] = reason
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoPostRepository) WatchVerification(ctx context.Context, fn func(models.Post)) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"operationType": "update",
			"updateDescription.updatedFields.verification_status": bson.M{"$exists": true},
		}}},
	}
	stream, err := r.collection.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return fmt.Errorf("open change stream: %w", err)
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var event struct {
			FullDocument *models.Post `bson:"fullDocument"`
		}
		if err := stream.Decode(&event); err != nil {
			return fmt.Errorf("decode change event: %w", err)
		}
		if event.FullDocument != nil {
			fn(*event.FullDocument)
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func objectID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid post ID format: %w", ErrNotFound)
	}
	return objID, nil
}
