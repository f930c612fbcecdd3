package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/xaenox/eco-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) EnsureUser(ctx context.Context, tgID int64, username, lang string) (*models.User, error) {
	// The unique constraint on tg_id plus ON CONFLICT makes concurrent
	// calls for the same id safe: one row, last writer bumps last_seen_at.
	query := `
		INSERT INTO users (tg_id, username, lang)
		VALUES ($1, NULLIF($2, ''), COALESCE(NULLIF($3, ''), 'ru'))
		ON CONFLICT (tg_id) DO UPDATE
		SET username     = COALESCE(EXCLUDED.username, users.username),
		    lang         = COALESCE(NULLIF($3, ''), users.lang),
		    last_seen_at = now()
		RETURNING id, tg_id, COALESCE(username, ''), lang, created_at, last_seen_at`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, tgID, username, lang).Scan(
		&user.ID,
		&user.TgID,
		&user.Username,
		&user.Lang,
		&user.CreatedAt,
		&user.LastSeenAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error upserting user: %v", err)
	}

	return user, nil
}

func (s *PostgresStorage) GetState(ctx context.Context, tgID int64) (*models.ConversationState, error) {
	query := `
		SELECT s.user_id, s.state, COALESCE(s.query_text, ''), s.page, s.updated_at
		FROM user_states s
		JOIN users u ON u.id = s.user_id
		WHERE u.tg_id = $1`

	state := &models.ConversationState{}
	err := s.db.QueryRowContext(ctx, query, tgID).Scan(
		&state.UserID,
		&state.State,
		&state.QueryText,
		&state.Page,
		&state.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying state: %v", err)
	}

	return state, nil
}

func (s *PostgresStorage) SetState(ctx context.Context, tgID int64, state models.StateTag, queryText string, page int) error {
	// Ensure-user-first: a state write for an id the directory has never
	// seen silently creates the user row with defaults.
	user, err := s.EnsureUser(ctx, tgID, "", "")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO user_states (user_id, state, query_text, page, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, now())
		ON CONFLICT (user_id) DO UPDATE
		SET state      = EXCLUDED.state,
		    query_text = EXCLUDED.query_text,
		    page       = EXCLUDED.page,
		    updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, user.ID, state, queryText, page); err != nil {
		return fmt.Errorf("error upserting state: %v", err)
	}

	return nil
}

func (s *PostgresStorage) ListCategories(ctx context.Context) ([]models.Category, error) {
	query := `
		SELECT id, name, slug
		FROM categories
		ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying categories: %v", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var cat models.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Slug); err != nil {
			return nil, fmt.Errorf("error scanning category: %v", err)
		}
		categories = append(categories, cat)
	}

	return categories, rows.Err()
}

func (s *PostgresStorage) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	query := `SELECT id, name, slug FROM categories WHERE id = $1`

	cat := &models.Category{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&cat.ID, &cat.Name, &cat.Slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying category: %v", err)
	}

	return cat, nil
}

func (s *PostgresStorage) GetCategoryItems(ctx context.Context, categoryID int64, page, pageSize int) ([]models.Item, bool, error) {
	if page < 1 {
		page = 1
	}

	// Fetch one extra row to decide whether a next page exists.
	query := `
		SELECT id, COALESCE(category_id, 0), title, content, COALESCE(tags, ''), COALESCE(source_url, ''), created_at, updated_at
		FROM items
		WHERE category_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, categoryID, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return nil, false, fmt.Errorf("error querying category items: %v", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, false, err
	}

	hasNext := len(items) > pageSize
	if hasNext {
		items = items[:pageSize]
	}

	return items, hasNext, nil
}

func (s *PostgresStorage) GetLatestItems(ctx context.Context, limit int) ([]models.Item, error) {
	query := `
		SELECT id, COALESCE(category_id, 0), title, content, COALESCE(tags, ''), COALESCE(source_url, ''), created_at, updated_at
		FROM items
		ORDER BY updated_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying latest items: %v", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (s *PostgresStorage) SearchItems(ctx context.Context, query string, limit int) ([]models.Item, error) {
	// Blank query degenerates to ILIKE '%%' and matches everything; the
	// controller never sends one, this is defensive only.
	sqlQuery := `
		SELECT id, COALESCE(category_id, 0), title, content, COALESCE(tags, ''), COALESCE(source_url, ''), created_at, updated_at
		FROM items
		WHERE title ILIKE '%' || $1 || '%'
		   OR content ILIKE '%' || $1 || '%'
		   OR tags ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, sqlQuery, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error searching items: %v", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]models.Item, error) {
	var items []models.Item
	for rows.Next() {
		var item models.Item
		err := rows.Scan(
			&item.ID,
			&item.CategoryID,
			&item.Title,
			&item.Content,
			&item.Tags,
			&item.SourceURL,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning item: %v", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("error pinging database: %v", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
