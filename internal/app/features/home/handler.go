package home

import (
	"context"
	"net/http"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	categorystore "github.com/rfmartin/paperpress/internal/app/store/categories"
	poststore "github.com/rfmartin/paperpress/internal/app/store/posts"
	"github.com/rfmartin/paperpress/internal/app/system/timeouts"
	"github.com/rfmartin/paperpress/internal/app/system/viewdata"
	"github.com/rfmartin/paperpress/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// recentLimit is how many published posts the landing page shows.
const recentLimit = 20

// Handler holds dependencies needed to serve the home page.
type Handler struct {
	DB         *mongo.Database
	Log        *zap.Logger
	Posts      *poststore.Store
	Categories *categorystore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:         db,
		Log:        logger,
		Posts:      poststore.New(db),
		Categories: categorystore.New(db),
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET / – landing                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var posts []models.Post
	var err error
	if slug := query.Get(r, "category"); slug != "" {
		if cat, catErr := h.Categories.GetBySlug(ctx, slug); catErr == nil {
			posts, err = h.Posts.ListPublishedByCategory(ctx, cat.ID, recentLimit, 0)
		}
	} else {
		posts, err = h.Posts.ListPublished(ctx, recentLimit, 0)
	}
	if err != nil {
		h.Log.Error("failed to list published posts", zap.Error(err))
		posts = nil
	}

	cats, err := h.Categories.List(ctx)
	if err != nil {
		h.Log.Error("failed to list categories", zap.Error(err))
		cats = nil
	}

	data := struct {
		viewdata.BaseVM
		Posts      []models.Post
		Categories []models.Category
	}{
		BaseVM:     viewdata.NewBaseVM(r, h.DB, "Welcome", "/"),
		Posts:      posts,
		Categories: cats,
	}

	templates.Render(w, r, "home", data)
}
