package controller

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/eco-bot/internal/models"
	"github.com/xaenox/eco-bot/internal/storage"
	"go.uber.org/zap"
)

type stubAssistant struct {
	answer       string
	err          error
	calls        int
	lastQuestion string
}

func (s *stubAssistant) Ask(ctx context.Context, question string) (string, error) {
	s.calls++
	s.lastQuestion = question
	return s.answer, s.err
}

func newTestController() (*Controller, *storage.MemoryStorage, *stubAssistant) {
	store := storage.NewMemoryStorage()
	asst := &stubAssistant{answer: "ответ"}
	return New(store, asst, zap.NewNop()), store, asst
}

func requireState(t *testing.T, store *storage.MemoryStorage, tgID int64, tag models.StateTag) *models.ConversationState {
	t.Helper()
	state, err := store.GetState(context.Background(), tgID)
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Equal(t, tag, state.State)
	return state
}

func TestHandleStart_NewUser(t *testing.T) {
	ctrl, store, _ := newTestController()
	ctx := context.Background()

	resp, err := ctrl.HandleStart(ctx, StartEvent{UserID: 1, Username: "alice", Lang: "ru"})
	require.NoError(t, err)
	assert.Equal(t, msgGreeting, resp.Text)
	assert.Equal(t, KeyboardMainMenu, resp.Keyboard)

	requireState(t, store, 1, models.StateMenu)

	user, err := store.EnsureUser(ctx, 1, "", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestHandleStart_ResetsAnyState(t *testing.T) {
	ctrl, store, _ := newTestController()
	ctx := context.Background()

	require.NoError(t, store.SetState(ctx, 1, models.StateChat, "", 1))

	_, err := ctrl.HandleStart(ctx, StartEvent{UserID: 1})
	require.NoError(t, err)
	requireState(t, store, 1, models.StateMenu)
}

func TestKeywords_SetStates(t *testing.T) {
	tests := []struct {
		text     string
		wantText string
		want     models.StateTag
	}{
		{"search", msgAskQuery, models.StateWaitQuery},
		{"chat", msgAskQuestion, models.StateChat},
		{"  Search  ", msgAskQuery, models.StateWaitQuery},
		{"CHAT", msgAskQuestion, models.StateChat},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			ctrl, store, _ := newTestController()

			resp, err := ctrl.HandleText(context.Background(), TextEvent{UserID: 1, Text: tt.text})
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, resp.Text)
			requireState(t, store, 1, tt.want)
		})
	}
}

func TestKeywords_PrecedeChatState(t *testing.T) {
	ctrl, store, asst := newTestController()
	ctx := context.Background()

	require.NoError(t, store.SetState(ctx, 1, models.StateChat, "", 1))

	// "search" is a global reset, not a chat question
	resp, err := ctrl.HandleText(ctx, TextEvent{UserID: 1, Text: "search"})
	require.NoError(t, err)
	assert.Equal(t, msgAskQuery, resp.Text)
	assert.Zero(t, asst.calls)
	requireState(t, store, 1, models.StateWaitQuery)
}

func TestCategoriesKeyword(t *testing.T) {
	ctrl, store, _ := newTestController()
	ctx := context.Background()

	store.SeedCategory(models.Category{ID: 2, Name: "B", Slug: "b"})
	store.SeedCategory(models.Category{ID: 1, Name: "A", Slug: "a"})
	require.NoError(t, store.SetState(ctx, 1, models.StateWaitQuery, "", 1))

	resp, err := ctrl.HandleText(ctx, TextEvent{UserID: 1, Text: "categories"})
	require.NoError(t, err)
	assert.Equal(t, KeyboardCategories, resp.Keyboard)
	require.Len(t, resp.Categories, 2)
	assert.Equal(t, "A", resp.Categories[0].Name)
	assert.Equal(t, "B", resp.Categories[1].Name)

	// Listing categories does not change the state
	requireState(t, store, 1, models.StateWaitQuery)
}

func TestCategoriesKeyword_Empty(t *testing.T) {
	ctrl, _, _ := newTestController()

	resp, err := ctrl.HandleText(context.Background(), TextEvent{UserID: 1, Text: "categories"})
	require.NoError(t, err)
	assert.Equal(t, msgNoCategories, resp.Text)
	assert.Equal(t, KeyboardNone, resp.Keyboard)
}

func TestLatestKeyword(t *testing.T) {
	ctrl, store, _ := newTestController()
	ctx := context.Background()

	resp, err := ctrl.HandleText(ctx, TextEvent{UserID: 1, Text: "latest"})
	require.NoError(t, err)
	assert.Equal(t, msgNoItems, resp.Text)

	store.SeedItem(models.Item{ID: 1, Title: "Fresh news", Content: "body", UpdatedAt: time.Now()})

	resp, err = ctrl.HandleText(ctx, TextEvent{UserID: 1, Text: "latest"})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "1. Fresh news")
}

func TestSearchFlow(t *testing.T) {
	ctrl, store, _ := newTestController()
	ctx := context.Background()

	store.SeedItem(models.Item{ID: 1, Title: "Blue Widget", Content: "body"})
	require.NoError(t, store.SetState(ctx, 1, models.StateWaitQuery, "", 1))

	resp, err := ctrl.HandleText(ctx, TextEvent{UserID: 1, Text: "widget"})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Blue Widget")

	state := requireState(t, store, 1, models.StateSearchResults)
	assert.Equal(t, "widget", state.QueryText)
}

func TestSearchFlow_NothingFound(t *testing.T) {
	ctrl, store, _ := newTestController()
	ctx := context.Background()

	require.NoError(t, store.SetState(ctx, 1, models.StateWaitQuery, "", 1))

	resp, err := ctrl.HandleText(ctx, TextEvent{UserID: 1, Text: "widget"})
	require.NoError(t, err)
	assert.Equal(t, msgNothingFound, resp.Text)
	requireState(t, store, 1, models.StateSearchResults)
}

func TestSearchFlow_BlankQuery(t *testing.T) {
	ctrl, store, _ := newTestController()
	ctx := context.Background()

	require.NoError(t, store.SetState(ctx, 1, models.StateWaitQuery, "", 1))

	resp, err := ctrl.HandleText(ctx, TextEvent{UserID: 1, Text: "   "})
	require.NoError(t, err)
	assert.Equal(t, msgEmptyQuery, resp.Text)
	requireState(t, store, 1, models.StateWaitQuery)
}

func TestChatFlow(t *testing.T) {
	ctrl, store, asst := newTestController()
	ctx := context.Background()

	require.NoError(t, store.SetState(ctx, 1, models.StateChat, "", 1))

	resp, err := ctrl.HandleText(ctx, TextEvent{UserID: 1, Text: "что такое экосистема?"})
	require.NoError(t, err)
	assert.Equal(t, "ответ", resp.Text)
	assert.Equal(t, "что такое экосистема?", asst.lastQuestion)
	requireState(t, store, 1, models.StateChat)
}

func TestChatFlow_AssistantFailure(t *testing.T) {
	ctrl, store, asst := newTestController()
	ctx := context.Background()

	asst.err = errors.New("context deadline exceeded")
	require.NoError(t, store.SetState(ctx, 1, models.StateChat, "", 1))

	resp, err := ctrl.HandleText(ctx, TextEvent{UserID: 1, Text: "вопрос"})
	require.NoError(t, err, "gateway failures are recovered locally")
	assert.Equal(t, msgAssistantDown, resp.Text)
	requireState(t, store, 1, models.StateChat)
}

func TestChatFlow_BlankQuestion(t *testing.T) {
	ctrl, store, asst := newTestController()
	ctx := context.Background()

	require.NoError(t, store.SetState(ctx, 1, models.StateChat, "", 1))

	resp, err := ctrl.HandleText(ctx, TextEvent{UserID: 1, Text: " \n "})
	require.NoError(t, err)
	assert.Equal(t, msgEmptyQuestion, resp.Text)
	assert.Zero(t, asst.calls)
	requireState(t, store, 1, models.StateChat)
}

func TestFreeText_IgnoredInMenu(t *testing.T) {
	ctrl, _, asst := newTestController()

	// No state row yet: treated as MENU, free text is silently dropped
	resp, err := ctrl.HandleText(context.Background(), TextEvent{UserID: 1, Text: "hello"})
	require.NoError(t, err)
	assert.Empty(t, resp.Text)
	assert.Zero(t, asst.calls)
}

func seedCategoryWithItems(store *storage.MemoryStorage, categoryID int64, count int) {
	store.SeedCategory(models.Category{ID: categoryID, Name: "Services", Slug: "services"})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= count; i++ {
		store.SeedItem(models.Item{
			ID:         int64(i),
			CategoryID: categoryID,
			Title:      "item",
			Content:    "content",
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
			UpdatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
	}
}

func TestOpenCategory_Pagination(t *testing.T) {
	ctrl, store, _ := newTestController()
	ctx := context.Background()

	seedCategoryWithItems(store, 1, 4)

	resp, err := ctrl.HandleCallback(ctx, CallbackEvent{UserID: 1, Payload: "cat:1"})
	require.NoError(t, err)
	assert.Equal(t, KeyboardPagination, resp.Keyboard)
	assert.True(t, resp.HasNext)
	assert.Contains(t, resp.Text, "1. item")
	assert.Contains(t, resp.Text, "3. item")

	state := requireState(t, store, 1, models.StateCategoryView)
	assert.Equal(t, "1", state.QueryText)
	assert.Equal(t, 1, state.Page)

	// Next page continues numbering and has no further page
	resp, err = ctrl.HandleCallback(ctx, CallbackEvent{UserID: 1, Payload: "cat_next"})
	require.NoError(t, err)
	assert.Equal(t, KeyboardPagination, resp.Keyboard)
	assert.False(t, resp.HasNext)
	assert.Contains(t, resp.Text, "4. item")
	assert.False(t, strings.Contains(resp.Text, "5. "))

	state = requireState(t, store, 1, models.StateCategoryView)
	assert.Equal(t, 2, state.Page)
}

func TestOpenCategory_Empty(t *testing.T) {
	ctrl, store, _ := newTestController()
	ctx := context.Background()

	store.SeedCategory(models.Category{ID: 1, Name: "Empty", Slug: "empty"})

	resp, err := ctrl.HandleCallback(ctx, CallbackEvent{UserID: 1, Payload: "cat:1"})
	require.NoError(t, err)
	assert.Equal(t, msgCategoryEmpty, resp.Text)
	assert.Equal(t, KeyboardMainMenu, resp.Keyboard)
	requireState(t, store, 1, models.StateMenu)
}

func TestNextPage_PastEnd(t *testing.T) {
	ctrl, store, _ := newTestController()
	ctx := context.Background()

	seedCategoryWithItems(store, 1, 3)

	_, err := ctrl.HandleCallback(ctx, CallbackEvent{UserID: 1, Payload: "cat:1"})
	require.NoError(t, err)

	resp, err := ctrl.HandleCallback(ctx, CallbackEvent{UserID: 1, Payload: "cat_next"})
	require.NoError(t, err)
	assert.Equal(t, msgNoMorePages, resp.Text)
	requireState(t, store, 1, models.StateMenu)
}

func TestNextPage_WithoutCategoryView(t *testing.T) {
	ctrl, store, _ := newTestController()
	ctx := context.Background()

	require.NoError(t, store.SetState(ctx, 1, models.StateChat, "", 1))

	resp, err := ctrl.HandleCallback(ctx, CallbackEvent{UserID: 1, Payload: "cat_next"})
	require.NoError(t, err)
	assert.Equal(t, msgReopenCategory, resp.Text)
	requireState(t, store, 1, models.StateChat)
}

func TestCallback_CategoryNotFound(t *testing.T) {
	ctrl, _, _ := newTestController()
	ctx := context.Background()

	resp, err := ctrl.HandleCallback(ctx, CallbackEvent{UserID: 1, Payload: "cat:777"})
	require.NoError(t, err)
	assert.Equal(t, msgCategoryNotFound, resp.Text)

	resp, err = ctrl.HandleCallback(ctx, CallbackEvent{UserID: 1, Payload: "cat:abc"})
	require.NoError(t, err)
	assert.Equal(t, msgCategoryNotFound, resp.Text)
}

func TestCallback_Menu(t *testing.T) {
	ctrl, store, _ := newTestController()
	ctx := context.Background()

	require.NoError(t, store.SetState(ctx, 1, models.StateCategoryView, "1", 2))

	resp, err := ctrl.HandleCallback(ctx, CallbackEvent{UserID: 1, Payload: "menu"})
	require.NoError(t, err)
	assert.Equal(t, msgMainMenu, resp.Text)
	assert.Equal(t, KeyboardMainMenu, resp.Keyboard)
	requireState(t, store, 1, models.StateMenu)
}

func TestCallback_UnknownPayloadIgnored(t *testing.T) {
	ctrl, _, _ := newTestController()

	resp, err := ctrl.HandleCallback(context.Background(), CallbackEvent{UserID: 1, Payload: "something:else"})
	require.NoError(t, err)
	assert.Empty(t, resp.Text)
}
