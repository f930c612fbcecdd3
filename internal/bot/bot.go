package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/xaenox/eco-bot/internal/controller"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const errorMessage = "Что-то пошло не так, попробуйте ещё раз"

type Bot struct {
	api     *tgbotapi.BotAPI
	ctrl    *controller.Controller
	logger  *zap.Logger
	workers *semaphore.Weighted
}

func New(token string, ctrl *controller.Controller, maxConcurrent int64, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:     api,
		ctrl:    ctrl,
		logger:  logger,
		workers: semaphore.NewWeighted(maxConcurrent),
	}, nil
}

// Start runs the long-poll loop. Each update is handled on its own
// goroutine gated by the worker semaphore, so slow storage or assistant
// calls never stall delivery of other users' updates.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil && update.CallbackQuery == nil {
			continue
		}

		if err := b.workers.Acquire(ctx, 1); err != nil {
			return err
		}
		go func(update tgbotapi.Update) {
			defer b.workers.Release(1)
			b.handleUpdate(ctx, update)
		}(update)
	}

	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	logger := b.logger.With(zap.String("request_id", uuid.New().String()))

	if update.CallbackQuery != nil {
		b.handleCallback(ctx, logger, update.CallbackQuery)
		return
	}
	b.handleMessage(ctx, logger, update.Message)
}

func (b *Bot) handleMessage(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	var (
		resp controller.Response
		err  error
	)

	if message.IsCommand() && message.Command() == "start" {
		resp, err = b.ctrl.HandleStart(ctx, controller.StartEvent{
			UserID:   message.From.ID,
			Username: message.From.UserName,
			Lang:     message.From.LanguageCode,
		})
	} else {
		resp, err = b.ctrl.HandleText(ctx, controller.TextEvent{
			UserID: message.From.ID,
			Text:   message.Text,
		})
	}

	if err != nil {
		logger.Error("Failed to handle message",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(logger, message.Chat.ID)
		return
	}

	b.send(logger, message.Chat.ID, resp)
}

func (b *Bot) handleCallback(ctx context.Context, logger *zap.Logger, callback *tgbotapi.CallbackQuery) {
	// Acknowledge first so the client stops showing the spinner even for
	// payloads we ignore.
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		logger.Error("Failed to ack callback", zap.Error(err))
	}

	if callback.Message == nil {
		return
	}

	resp, err := b.ctrl.HandleCallback(ctx, controller.CallbackEvent{
		UserID:  callback.From.ID,
		Payload: callback.Data,
	})
	if err != nil {
		logger.Error("Failed to handle callback",
			zap.Error(err),
			zap.Int64("user_id", callback.From.ID),
			zap.String("payload", callback.Data))
		b.sendErrorMessage(logger, callback.Message.Chat.ID)
		return
	}

	b.send(logger, callback.Message.Chat.ID, resp)
}

func (b *Bot) send(logger *zap.Logger, chatID int64, resp controller.Response) {
	if resp.Text == "" {
		return
	}

	msg := tgbotapi.NewMessage(chatID, resp.Text)

	switch resp.Keyboard {
	case controller.KeyboardMainMenu:
		msg.ReplyMarkup = mainMenuKeyboard()
	case controller.KeyboardCategories:
		msg.ReplyMarkup = categoriesKeyboard(resp.Categories)
	case controller.KeyboardPagination:
		msg.ReplyMarkup = paginationKeyboard(resp.HasNext)
	}

	if _, err := b.api.Send(msg); err != nil {
		logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(logger *zap.Logger, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+errorMessage)
	if _, err := b.api.Send(msg); err != nil {
		logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
