package controller

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xaenox/eco-bot/internal/models"
	"github.com/xaenox/eco-bot/internal/storage"
	"go.uber.org/zap"
)

const (
	categoryPageSize = 3
	latestLimit      = 5
	searchLimit      = 5
)

// Callback payloads understood by the controller. Anything else is
// acknowledged by the transport and dropped here.
const (
	CallbackCategoryPrefix = "cat:"
	CallbackNextPage       = "cat_next"
	CallbackMenu           = "menu"
)

// User-facing texts are fixed; internal diagnostics stay in the logs.
const (
	msgGreeting         = "Информационный бот об экосистеме"
	msgMainMenu         = "Главное меню"
	msgAskQuery         = "Введите поисковый запрос"
	msgAskQuestion      = "Задайте вопрос об экосистеме"
	msgEmptyQuery       = "Запрос не может быть пустым, попробуйте ещё раз"
	msgEmptyQuestion    = "Вопрос не может быть пустым, попробуйте ещё раз"
	msgNothingFound     = "Ничего не найдено"
	msgNoItems          = "Материалов пока нет"
	msgNoCategories     = "Категории пока не добавлены"
	msgCategoryNotFound = "Категория не найдена"
	msgCategoryEmpty    = "В этой категории пока нет материалов"
	msgNoMorePages      = "Больше материалов нет"
	msgReopenCategory   = "Сначала откройте категорию через меню"
	msgAssistantDown    = "Не получилось получить ответ, попробуйте позже"
)

// Keyword commands act as global resets and are checked before the
// persisted state is consulted.
const (
	keywordSearch     = "search"
	keywordChat       = "chat"
	keywordCategories = "categories"
	keywordLatest     = "latest"
)

type StartEvent struct {
	UserID   int64
	Username string
	Lang     string
}

type TextEvent struct {
	UserID int64
	Text   string
}

type CallbackEvent struct {
	UserID  int64
	Payload string
}

type KeyboardKind int

const (
	KeyboardNone KeyboardKind = iota
	KeyboardMainMenu
	KeyboardCategories
	KeyboardPagination
)

// Response tells the transport what to show. An empty Text means no
// reply is sent. Categories is set for KeyboardCategories, HasNext for
// KeyboardPagination.
type Response struct {
	Text       string
	Keyboard   KeyboardKind
	Categories []models.Category
	HasNext    bool
}

// Assistant is the stateless question-answering gateway.
type Assistant interface {
	Ask(ctx context.Context, question string) (string, error)
}

type Controller struct {
	storage   storage.Storage
	assistant Assistant
	logger    *zap.Logger
}

func New(storage storage.Storage, assistant Assistant, logger *zap.Logger) *Controller {
	return &Controller{
		storage:   storage,
		assistant: assistant,
		logger:    logger,
	}
}

func (c *Controller) HandleStart(ctx context.Context, ev StartEvent) (Response, error) {
	if _, err := c.storage.EnsureUser(ctx, ev.UserID, ev.Username, ev.Lang); err != nil {
		return Response{}, err
	}
	if err := c.storage.SetState(ctx, ev.UserID, models.StateMenu, "", 1); err != nil {
		return Response{}, err
	}

	return Response{Text: msgGreeting, Keyboard: KeyboardMainMenu}, nil
}

func (c *Controller) HandleText(ctx context.Context, ev TextEvent) (Response, error) {
	if _, err := c.storage.EnsureUser(ctx, ev.UserID, "", ""); err != nil {
		return Response{}, err
	}

	text := strings.TrimSpace(ev.Text)

	switch strings.ToLower(text) {
	case keywordSearch:
		if err := c.storage.SetState(ctx, ev.UserID, models.StateWaitQuery, "", 1); err != nil {
			return Response{}, err
		}
		return Response{Text: msgAskQuery}, nil

	case keywordChat:
		if err := c.storage.SetState(ctx, ev.UserID, models.StateChat, "", 1); err != nil {
			return Response{}, err
		}
		return Response{Text: msgAskQuestion}, nil

	case keywordCategories:
		return c.showCategories(ctx)

	case keywordLatest:
		return c.showLatest(ctx)
	}

	state, err := c.storage.GetState(ctx, ev.UserID)
	if err != nil {
		return Response{}, err
	}

	// Absent row means the user has never left the menu.
	tag := models.StateMenu
	if state != nil {
		tag = state.State
	}

	switch tag {
	case models.StateChat:
		return c.answerQuestion(ctx, ev.UserID, text)
	case models.StateWaitQuery:
		return c.runSearch(ctx, ev.UserID, text)
	default:
		// Free text outside WAIT_QUERY/CHAT is silently ignored.
		return Response{}, nil
	}
}

func (c *Controller) HandleCallback(ctx context.Context, ev CallbackEvent) (Response, error) {
	if _, err := c.storage.EnsureUser(ctx, ev.UserID, "", ""); err != nil {
		return Response{}, err
	}

	switch {
	case ev.Payload == CallbackMenu:
		if err := c.storage.SetState(ctx, ev.UserID, models.StateMenu, "", 1); err != nil {
			return Response{}, err
		}
		return Response{Text: msgMainMenu, Keyboard: KeyboardMainMenu}, nil

	case ev.Payload == CallbackNextPage:
		return c.nextPage(ctx, ev.UserID)

	case strings.HasPrefix(ev.Payload, CallbackCategoryPrefix):
		categoryID, err := strconv.ParseInt(strings.TrimPrefix(ev.Payload, CallbackCategoryPrefix), 10, 64)
		if err != nil {
			return Response{Text: msgCategoryNotFound}, nil
		}
		return c.openCategory(ctx, ev.UserID, categoryID, 1)
	}

	return Response{}, nil
}

func (c *Controller) showCategories(ctx context.Context) (Response, error) {
	categories, err := c.storage.ListCategories(ctx)
	if err != nil {
		return Response{}, err
	}
	if len(categories) == 0 {
		return Response{Text: msgNoCategories}, nil
	}

	return Response{
		Text:       "Выберите категорию:",
		Keyboard:   KeyboardCategories,
		Categories: categories,
	}, nil
}

func (c *Controller) showLatest(ctx context.Context) (Response, error) {
	items, err := c.storage.GetLatestItems(ctx, latestLimit)
	if err != nil {
		return Response{}, err
	}
	if len(items) == 0 {
		return Response{Text: msgNoItems}, nil
	}

	return Response{Text: "Последние материалы:\n\n" + renderItems(items, 1)}, nil
}

func (c *Controller) answerQuestion(ctx context.Context, userID int64, question string) (Response, error) {
	if question == "" {
		return Response{Text: msgEmptyQuestion}, nil
	}

	answer, err := c.assistant.Ask(ctx, question)
	if err != nil {
		// A single failed call must not break the loop or drop the user
		// out of chat mode.
		c.logger.Error("Assistant request failed",
			zap.Error(err),
			zap.Int64("user_id", userID))
		return Response{Text: msgAssistantDown}, nil
	}

	return Response{Text: answer}, nil
}

func (c *Controller) runSearch(ctx context.Context, userID int64, query string) (Response, error) {
	if query == "" {
		return Response{Text: msgEmptyQuery}, nil
	}

	items, err := c.storage.SearchItems(ctx, query, searchLimit)
	if err != nil {
		return Response{}, err
	}

	if err := c.storage.SetState(ctx, userID, models.StateSearchResults, query, 1); err != nil {
		return Response{}, err
	}

	if len(items) == 0 {
		return Response{Text: msgNothingFound}, nil
	}

	return Response{Text: "Результаты поиска:\n\n" + renderItems(items, 1)}, nil
}

func (c *Controller) openCategory(ctx context.Context, userID, categoryID int64, page int) (Response, error) {
	category, err := c.storage.GetCategory(ctx, categoryID)
	if err != nil {
		return Response{}, err
	}
	if category == nil {
		return Response{Text: msgCategoryNotFound}, nil
	}

	items, hasNext, err := c.storage.GetCategoryItems(ctx, categoryID, page, categoryPageSize)
	if err != nil {
		return Response{}, err
	}

	if len(items) == 0 {
		if err := c.storage.SetState(ctx, userID, models.StateMenu, "", 1); err != nil {
			return Response{}, err
		}
		text := msgCategoryEmpty
		if page > 1 {
			text = msgNoMorePages
		}
		return Response{Text: text, Keyboard: KeyboardMainMenu}, nil
	}

	err = c.storage.SetState(ctx, userID, models.StateCategoryView,
		strconv.FormatInt(categoryID, 10), page)
	if err != nil {
		return Response{}, err
	}

	header := fmt.Sprintf("%s — страница %d:\n\n", category.Name, page)
	startIndex := (page-1)*categoryPageSize + 1

	return Response{
		Text:     header + renderItems(items, startIndex),
		Keyboard: KeyboardPagination,
		HasNext:  hasNext,
	}, nil
}

func (c *Controller) nextPage(ctx context.Context, userID int64) (Response, error) {
	state, err := c.storage.GetState(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	if state == nil || state.State != models.StateCategoryView {
		return Response{Text: msgReopenCategory, Keyboard: KeyboardMainMenu}, nil
	}

	categoryID, err := strconv.ParseInt(state.QueryText, 10, 64)
	if err != nil {
		return Response{Text: msgCategoryNotFound}, nil
	}

	page := state.Page
	if page < 1 {
		page = 1
	}

	return c.openCategory(ctx, userID, categoryID, page+1)
}
