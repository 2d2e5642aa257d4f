// internal/domain/models/post.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment is embedded on a post. Name is denormalized from the commenting
// user so deleted accounts keep their comments readable.
type Comment struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID   `bson:"user_id" json:"user_id"`
	Name      string               `bson:"name" json:"name"`
	Text      string               `bson:"text" json:"text"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
	Upvotes   []primitive.ObjectID `bson:"upvotes,omitempty" json:"upvotes,omitempty"`
}

// Post is a published or draft article.
type Post struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title       string              `bson:"title" json:"title"`
	TitleCI     string              `bson:"title_ci" json:"title_ci"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	Content     string              `bson:"content,omitempty" json:"content,omitempty"` // sanitized HTML
	CoverImage  string              `bson:"cover_image,omitempty" json:"cover_image,omitempty"`
	CategoryID  *primitive.ObjectID `bson:"category_id,omitempty" json:"category_id,omitempty"`
	AuthorID    primitive.ObjectID  `bson:"author_id" json:"author_id"`

	Views     int64                `bson:"views" json:"views"`
	Published bool                 `bson:"published" json:"published"`
	Likes     []primitive.ObjectID `bson:"likes,omitempty" json:"likes,omitempty"`
	Comments  []Comment            `bson:"comments,omitempty" json:"comments,omitempty"`
	Tags      []string             `bson:"tags,omitempty" json:"tags,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
