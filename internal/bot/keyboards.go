package bot

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/eco-bot/internal/controller"
	"github.com/xaenox/eco-bot/internal/models"
)

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("search"),
			tgbotapi.NewKeyboardButton("chat"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("categories"),
			tgbotapi.NewKeyboardButton("latest"),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func categoriesKeyboard(categories []models.Category) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(categories))
	for _, cat := range categories {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(cat.Name,
				controller.CallbackCategoryPrefix+strconv.FormatInt(cat.ID, 10)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func paginationKeyboard(hasNext bool) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	if hasNext {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("▶️ Next", controller.CallbackNextPage))
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData("🏠 Menu", controller.CallbackMenu))
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
