// internal/app/features/profile/handler.go
package profile

import (
	uierrors "github.com/rfmartin/paperpress/internal/app/features/errors"
	poststore "github.com/rfmartin/paperpress/internal/app/store/posts"
	userstore "github.com/rfmartin/paperpress/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler owns all user profile handlers.
type Handler struct {
	DB     *mongo.Database
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
	Users  *userstore.Store
	Posts  *poststore.Store
}

// NewHandler constructs a Handler bound to the given Mongo database and logger.
func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:     db,
		Log:    logger,
		ErrLog: errLog,
		Users:  userstore.New(db),
		Posts:  poststore.New(db),
	}
}
