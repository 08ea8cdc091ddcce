package engine

import (
	"fmt"

	"moviepost-tg-bot/internal/media"
	"moviepost-tg-bot/internal/session"
	"moviepost-tg-bot/internal/storage"
	"moviepost-tg-bot/internal/tg"
	"moviepost-tg-bot/internal/tmdb"
)

func selectionKeyboard(cands []tmdb.Candidate, owner int64) *tg.InlineKeyboardMarkup {
	rows := make([][]tg.InlineKeyboardButton, 0, len(cands))
	for _, c := range cands {
		icon := "🎬"
		if c.Kind == media.KindSeries {
			icon = "📺"
		}
		rows = append(rows, []tg.InlineKeyboardButton{{
			Text:         fmt.Sprintf("%s %s (%s)", icon, c.Title, c.Year),
			CallbackData: fmt.Sprintf("select:%s:%d:%d", c.Kind, c.ID, owner),
		}})
	}
	kb := tg.NewInlineKeyboardMarkup(rows)
	return &kb
}

func addLinkKeyboard(sess *session.Session) *tg.InlineKeyboardMarkup {
	kb := tg.NewInlineKeyboardMarkup([][]tg.InlineKeyboardButton{
		{{Text: "➕ Add a Link", CallbackData: fmt.Sprintf("addlink:yes:%d:%s", sess.Owner, sess.Token)}},
		{{Text: "✅ Done, Generate", CallbackData: fmt.Sprintf("addlink:no:%d:%s", sess.Owner, sess.Token)}},
	})
	return &kb
}

func finalKeyboard(sess *session.Session, hasChannel bool) *tg.InlineKeyboardMarkup {
	rows := [][]tg.InlineKeyboardButton{
		{{Text: "📝 Get Blogger HTML", CallbackData: fmt.Sprintf("get:html:%d:%s", sess.Owner, sess.Token)}},
		{{Text: "📄 Copy Caption", CallbackData: fmt.Sprintf("get:caption:%d:%s", sess.Owner, sess.Token)}},
	}
	if hasChannel {
		rows = append(rows, []tg.InlineKeyboardButton{{Text: "📢 Post to Channel", CallbackData: fmt.Sprintf("post:channel:%d:%s", sess.Owner, sess.Token)}})
	}
	kb := tg.NewInlineKeyboardMarkup(rows)
	return &kb
}

func promoKeyboard(promo storage.PromoConfig) *tg.InlineKeyboardMarkup {
	rows := [][]tg.InlineKeyboardButton{}
	if promo.WatchLink != "" {
		rows = append(rows, []tg.InlineKeyboardButton{{Text: "▶️ Watch Online", URL: promo.WatchLink}})
	}
	if promo.DownloadLink != "" {
		rows = append(rows, []tg.InlineKeyboardButton{{Text: "⬇️ Download", URL: promo.DownloadLink}})
	}
	if promo.RequestLink != "" {
		rows = append(rows, []tg.InlineKeyboardButton{{Text: fmt.Sprintf("🙋 Request on %s", promo.BrandName), URL: promo.RequestLink}})
	}
	if len(rows) == 0 {
		return nil
	}
	kb := tg.NewInlineKeyboardMarkup(rows)
	return &kb
}

func urlKeyboard(text string, u string) *tg.InlineKeyboardMarkup {
	kb := tg.NewInlineKeyboardMarkup([][]tg.InlineKeyboardButton{{{Text: text, URL: u}}})
	return &kb
}
