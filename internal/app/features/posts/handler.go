// internal/app/features/posts/handler.go
package posts

import (
	uierrors "github.com/rfmartin/paperpress/internal/app/features/errors"
	categorystore "github.com/rfmartin/paperpress/internal/app/store/categories"
	poststore "github.com/rfmartin/paperpress/internal/app/store/posts"
	userstore "github.com/rfmartin/paperpress/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler owns the post pages: reading, writing, and commenting.
type Handler struct {
	DB         *mongo.Database
	Log        *zap.Logger
	ErrLog     *uierrors.ErrorLogger
	Posts      *poststore.Store
	Users      *userstore.Store
	Categories *categorystore.Store
}

// NewHandler constructs a Handler bound to the given Mongo database and logger.
func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:         db,
		Log:        logger,
		ErrLog:     errLog,
		Posts:      poststore.New(db),
		Users:      userstore.New(db),
		Categories: categorystore.New(db),
	}
}
