package storage

import (
	"context"

	"github.com/xaenox/eco-bot/internal/models"
)

type Storage interface {
	// User directory
	EnsureUser(ctx context.Context, tgID int64, username, lang string) (*models.User, error)

	// Conversation state, keyed by the Telegram id. GetState returns
	// (nil, nil) when the user has no state row yet. SetState creates
	// the user row first if it does not exist.
	GetState(ctx context.Context, tgID int64) (*models.ConversationState, error)
	SetState(ctx context.Context, tgID int64, state models.StateTag, queryText string, page int) error

	// Content queries, read-only
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	GetCategoryItems(ctx context.Context, categoryID int64, page, pageSize int) ([]models.Item, bool, error)
	GetLatestItems(ctx context.Context, limit int) ([]models.Item, error)
	SearchItems(ctx context.Context, query string, limit int) ([]models.Item, error)

	Ping(ctx context.Context) error
	Close() error
}
