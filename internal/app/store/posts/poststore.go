// internal/app/store/posts/poststore.go
package poststore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/rfmartin/paperpress/internal/app/system/htmlsanitize"
	"github.com/rfmartin/paperpress/internal/app/system/normalize"
	"github.com/rfmartin/paperpress/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var errEmptyTitle = errors.New("post title is required")

// Store provides access to the posts collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new post store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("posts")}
}

// Create inserts a post. Content is sanitized on the way in so nothing
// executable ever reaches the collection.
func (s *Store) Create(ctx context.Context, p models.Post) (models.Post, error) {
	p.Title = normalize.Name(p.Title)
	if p.Title == "" {
		return models.Post{}, errEmptyTitle
	}
	p.TitleCI = text.Fold(p.Title)
	p.Content = htmlsanitize.Sanitize(p.Content)
	p.Description = htmlsanitize.Sanitize(p.Description)

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	res, err := s.c.InsertOne(ctx, p)
	if err != nil {
		return models.Post{}, err
	}
	p.ID = res.InsertedID.(primitive.ObjectID)
	return p, nil
}

// Update rewrites the editable fields of a post.
func (s *Store) Update(ctx context.Context, p *models.Post) error {
	p.Title = normalize.Name(p.Title)
	if p.Title == "" {
		return errEmptyTitle
	}
	update := bson.M{"$set": bson.M{
		"title":       p.Title,
		"title_ci":    text.Fold(p.Title),
		"description": htmlsanitize.Sanitize(p.Description),
		"content":     htmlsanitize.Sanitize(p.Content),
		"cover_image": p.CoverImage,
		"category_id": p.CategoryID,
		"tags":        p.Tags,
		"published":   p.Published,
		"updated_at":  time.Now().UTC(),
	}}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": p.ID}, update)
	return err
}

// GetByID returns a single post.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var p models.Post
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIDs returns the posts with the given ids, newest first. Missing ids
// are silently skipped, which is what bookmark lists want when a post has
// been deleted.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// ListPublished returns published posts, newest first.
func (s *Store) ListPublished(ctx context.Context, limit, skip int64) ([]models.Post, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(skip)
	cur, err := s.c.Find(ctx, bson.M{"published": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// ListPublishedByCategory returns published posts in one category,
// newest first.
func (s *Store) ListPublishedByCategory(ctx context.Context, categoryID primitive.ObjectID, limit, skip int64) ([]models.Post, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(skip)
	cur, err := s.c.Find(ctx, bson.M{"published": true, "category_id": categoryID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// ListByAuthor returns every post by one author, drafts included,
// newest first.
func (s *Store) ListByAuthor(ctx context.Context, authorID primitive.ObjectID) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"author_id": authorID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// CountByAuthor returns how many posts an author has.
func (s *Store) CountByAuthor(ctx context.Context, authorID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"author_id": authorID})
}

// IncrementViews bumps the view counter.
func (s *Store) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1}})
	return err
}

// ToggleLike adds or removes a user's like and returns the new state:
// true when the like is now present.
func (s *Store) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": postID, "likes": userID},
		bson.M{"$pull": bson.M{"likes": userID}})
	if err != nil {
		return false, err
	}
	if res.ModifiedCount > 0 {
		return false, nil
	}

	res, err = s.c.UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{"$addToSet": bson.M{"likes": userID}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, mongo.ErrNoDocuments
	}
	return true, nil
}

// AddComment appends a comment to a post. The commenter's name is
// denormalized onto the comment.
func (s *Store) AddComment(ctx context.Context, postID, userID primitive.ObjectID, name, commentText string) (models.Comment, error) {
	comment := models.Comment{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Name:      name,
		Text:      htmlsanitize.Sanitize(commentText),
		CreatedAt: time.Now().UTC(),
	}

	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{"$push": bson.M{"comments": comment}})
	if err != nil {
		return models.Comment{}, err
	}
	if res.MatchedCount == 0 {
		return models.Comment{}, mongo.ErrNoDocuments
	}
	return comment, nil
}

// ToggleCommentUpvote adds or removes a user's upvote on a comment and
// returns the new state.
func (s *Store) ToggleCommentUpvote(ctx context.Context, postID, commentID, userID primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": postID, "comments": bson.M{"$elemMatch": bson.M{"_id": commentID, "upvotes": userID}}},
		bson.M{"$pull": bson.M{"comments.$.upvotes": userID}})
	if err != nil {
		return false, err
	}
	if res.ModifiedCount > 0 {
		return false, nil
	}

	res, err = s.c.UpdateOne(ctx,
		bson.M{"_id": postID, "comments._id": commentID},
		bson.M{"$addToSet": bson.M{"comments.$.upvotes": userID}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, mongo.ErrNoDocuments
	}
	return true, nil
}

// Delete removes a post.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
