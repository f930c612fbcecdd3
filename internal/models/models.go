package models

import "time"

// StateTag describes how the next free-text message from a user is
// interpreted by the conversation controller.
type StateTag string

const (
	StateMenu          StateTag = "MENU"
	StateWaitQuery     StateTag = "WAIT_QUERY"
	StateChat          StateTag = "CHAT"
	StateSearchResults StateTag = "SEARCH_RESULTS"
	StateCategoryView  StateTag = "CATEGORY_VIEW"
)

// User represents a bot user identified by their Telegram id
type User struct {
	ID         int64     `json:"id"`
	TgID       int64     `json:"tg_id"`
	Username   string    `json:"username,omitempty"`
	Lang       string    `json:"lang"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// ConversationState is the single per-user state row. QueryText holds
// the last search query in SEARCH_RESULTS and the category id as text
// in CATEGORY_VIEW.
type ConversationState struct {
	UserID    int64     `json:"user_id"`
	State     StateTag  `json:"state"`
	QueryText string    `json:"query_text,omitempty"`
	Page      int       `json:"page"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category is a named grouping of content items
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Item is a single piece of content belonging to zero or one category
type Item struct {
	ID         int64     `json:"id"`
	CategoryID int64     `json:"category_id,omitempty"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Tags       string    `json:"tags,omitempty"`
	SourceURL  string    `json:"source_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
