package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xaenox/eco-bot/internal/models"
)

// MemoryStorage keeps everything in maps behind a mutex. Used for local
// runs without a database and as the fixture in tests.
type MemoryStorage struct {
	mu         sync.RWMutex
	nextUserID int64
	users      map[int64]*models.User              // keyed by tg id
	states     map[int64]*models.ConversationState // keyed by internal user id
	categories map[int64]models.Category
	items      map[int64]models.Item
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		nextUserID: 1,
		users:      make(map[int64]*models.User),
		states:     make(map[int64]*models.ConversationState),
		categories: make(map[int64]models.Category),
		items:      make(map[int64]models.Item),
	}
}

func (s *MemoryStorage) EnsureUser(ctx context.Context, tgID int64, username, lang string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ensureUserLocked(tgID, username, lang), nil
}

func (s *MemoryStorage) ensureUserLocked(tgID int64, username, lang string) *models.User {
	now := time.Now()

	user, exists := s.users[tgID]
	if !exists {
		if lang == "" {
			lang = "ru"
		}
		user = &models.User{
			ID:         s.nextUserID,
			TgID:       tgID,
			Username:   username,
			Lang:       lang,
			CreatedAt:  now,
			LastSeenAt: now,
		}
		s.nextUserID++
		s.users[tgID] = user
		return user
	}

	if username != "" {
		user.Username = username
	}
	if lang != "" {
		user.Lang = lang
	}
	user.LastSeenAt = now
	return user
}

func (s *MemoryStorage) GetState(ctx context.Context, tgID int64) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[tgID]
	if !exists {
		return nil, nil
	}
	state, exists := s.states[user.ID]
	if !exists {
		return nil, nil
	}

	copied := *state
	return &copied, nil
}

func (s *MemoryStorage) SetState(ctx context.Context, tgID int64, state models.StateTag, queryText string, page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.ensureUserLocked(tgID, "", "")
	s.states[user.ID] = &models.ConversationState{
		UserID:    user.ID,
		State:     state,
		QueryText: queryText,
		Page:      page,
		UpdatedAt: time.Now(),
	}
	return nil
}

func (s *MemoryStorage) ListCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]models.Category, 0, len(s.categories))
	for _, cat := range s.categories {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})

	return categories, nil
}

func (s *MemoryStorage) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cat, exists := s.categories[id]; exists {
		return &cat, nil
	}
	return nil, nil
}

func (s *MemoryStorage) GetCategoryItems(ctx context.Context, categoryID int64, page, pageSize int) ([]models.Item, bool, error) {
	if page < 1 {
		page = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []models.Item
	for _, item := range s.items {
		if item.CategoryID == categoryID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})

	offset := (page - 1) * pageSize
	if offset >= len(items) {
		return nil, false, nil
	}
	items = items[offset:]

	hasNext := len(items) > pageSize
	if hasNext {
		items = items[:pageSize]
	}

	return items, hasNext, nil
}

func (s *MemoryStorage) GetLatestItems(ctx context.Context, limit int) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *MemoryStorage) SearchItems(ctx context.Context, query string, limit int) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)

	var items []models.Item
	for _, item := range s.items {
		haystack := strings.ToLower(item.Title + "\n" + item.Content + "\n" + item.Tags)
		if strings.Contains(haystack, needle) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// SeedCategory and SeedItem populate the in-memory content store; the
// running bot never mutates content.
func (s *MemoryStorage) SeedCategory(cat models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[cat.ID] = cat
}

func (s *MemoryStorage) SeedItem(item models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
