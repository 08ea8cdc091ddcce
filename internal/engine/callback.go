package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"moviepost-tg-bot/internal/media"
	"moviepost-tg-bot/internal/render"
	"moviepost-tg-bot/internal/session"
	"moviepost-tg-bot/internal/tg"
)

// Callback payload format is colon-separated: action, arguments, then the
// owner id and session token on owner-scoped actions. The token pins a
// button to the session that created it, so buttons from a superseded
// session read as expired instead of acting on the new one.

func (e *Engine) handleCallback(ctx context.Context, cq *tg.CallbackQuery) {
	parts := strings.Split(strings.TrimSpace(cq.Data), ":")
	if len(parts) == 0 {
		_ = e.bot.AnswerCallback(ctx, cq.ID, "", false)
		return
	}

	switch parts[0] {
	case "select":
		e.cbSelect(ctx, cq, parts)
	case "addlink":
		e.cbAddLink(ctx, cq, parts)
	case "get":
		e.cbGet(ctx, cq, parts)
	case "post":
		e.cbPostChannel(ctx, cq, parts)
	default:
		_ = e.bot.AnswerCallback(ctx, cq.ID, "", false)
	}
}

// select:<kind>:<id>:<owner>
func (e *Engine) cbSelect(ctx context.Context, cq *tg.CallbackQuery, parts []string) {
	if len(parts) != 4 {
		_ = e.bot.AnswerCallback(ctx, cq.ID, "", false)
		return
	}
	owner, _ := strconv.ParseInt(parts[3], 10, 64)
	if cq.From.ID != owner {
		_ = e.bot.AnswerCallback(ctx, cq.ID, "This is not for you!", true)
		return
	}
	id, _ := strconv.ParseInt(parts[2], 10, 64)
	kind := media.KindMovie
	if parts[1] == string(media.KindSeries) {
		kind = media.KindSeries
	}

	_ = e.bot.AnswerCallback(ctx, cq.ID, "Fetching details...", false)
	rec, err := e.meta.Details(ctx, kind, id)
	if err != nil || rec == nil {
		e.editOrReply(ctx, cq, "❌ Failed to get details. Please try again.")
		return
	}
	sess := session.New(owner, chatOf(cq), session.CollectingLanguage{})
	sess.Record = *rec
	e.sessions.Upsert(sess)
	e.editOrReply(ctx, cq, "✅ Details fetched!\n\n"+promptLanguage)
}

// addlink:<yes|no>:<owner>:<token>
func (e *Engine) cbAddLink(ctx context.Context, cq *tg.CallbackQuery, parts []string) {
	if len(parts) != 4 {
		_ = e.bot.AnswerCallback(ctx, cq.ID, "", false)
		return
	}
	sess, ok := e.authorize(ctx, cq, parts[2], parts[3])
	if !ok {
		return
	}

	switch parts[1] {
	case "yes":
		sess.State = session.CollectingLinkLabel{}
		e.sessions.Upsert(sess)
		_ = e.bot.AnswerCallback(ctx, cq.ID, "", false)
		e.editOrReply(ctx, cq, promptLinkLabel)
	case "no":
		_ = e.bot.AnswerCallback(ctx, cq.ID, "", false)
		e.editOrReply(ctx, cq, "✅ No more links. Generating final content...")
		e.finish(ctx, sess)
	default:
		_ = e.bot.AnswerCallback(ctx, cq.ID, "", false)
	}
}

// get:<html|caption>:<owner>:<token>
func (e *Engine) cbGet(ctx context.Context, cq *tg.CallbackQuery, parts []string) {
	if len(parts) != 4 {
		_ = e.bot.AnswerCallback(ctx, cq.ID, "", false)
		return
	}
	sess, ok := e.authorize(ctx, cq, parts[2], parts[3])
	if !ok {
		return
	}
	if !sess.Generated || sess.Bundle == nil {
		_ = e.bot.AnswerCallback(ctx, cq.ID, "Session expired. Start over.", true)
		return
	}

	switch parts[1] {
	case "html":
		_ = e.bot.AnswerCallback(ctx, cq.ID, "🔗 Creating a link for your code...", false)
		if pasteURL, uploaded := e.pub.UploadHTML(ctx, sess.Bundle.HTML); uploaded {
			kb := urlKeyboard("🔗 Click Here to Copy Code", pasteURL)
			e.reply2(ctx, chatOf(cq), "✅ <b>Your Blogger code is ready!</b>\n\nClick the button below to open and copy the code.", kb)
			return
		}
		name := strings.ReplaceAll(sess.Record.DisplayTitle(), " ", "_") + ".html"
		_ = e.bot.SendDocument(ctx, chatOf(cq), name, []byte(sess.Bundle.HTML), "⚠️ Could not create a link. Here is the code as a file.")
	case "caption":
		_ = e.bot.AnswerCallback(ctx, cq.ID, "", false)
		e.reply(ctx, chatOf(cq), sess.Bundle.Caption)
	default:
		_ = e.bot.AnswerCallback(ctx, cq.ID, "", false)
	}
}

// post:channel:<owner>:<token>
func (e *Engine) cbPostChannel(ctx context.Context, cq *tg.CallbackQuery, parts []string) {
	if len(parts) != 4 || parts[1] != "channel" {
		_ = e.bot.AnswerCallback(ctx, cq.ID, "", false)
		return
	}
	sess, ok := e.authorize(ctx, cq, parts[2], parts[3])
	if !ok {
		return
	}
	if !sess.Generated || sess.Bundle == nil {
		_ = e.bot.AnswerCallback(ctx, cq.ID, "Session expired. Start over.", true)
		return
	}
	channel, set := e.cfg.Channel(sess.Owner)
	if !set {
		_ = e.bot.AnswerCallback(ctx, cq.ID, "Channel not set. Use /setchannel.", true)
		return
	}

	_ = e.bot.AnswerCallback(ctx, cq.ID, "🚀 Posting to channel...", false)
	var kb *tg.InlineKeyboardMarkup
	if promo, has := e.cfg.Promo(sess.Owner); has {
		kb = promoKeyboard(promo)
	}

	var err error
	if len(sess.Bundle.Image) > 0 {
		// The bundle image is shared; hand the transport its own copy.
		img := make([]byte, len(sess.Bundle.Image))
		copy(img, sess.Bundle.Image)
		err = e.bot.SendPhoto(ctx, channel, img, sess.Bundle.Caption, kb)
	} else {
		err = e.bot.SendText(ctx, channel, sess.Bundle.Caption, kb)
	}
	if err != nil {
		e.reply(ctx, chatOf(cq), "❌ Failed to post to the channel. Check that the bot is an admin there.")
		return
	}
	e.reply(ctx, chatOf(cq), fmt.Sprintf("✅ Successfully posted to <code>%s</code>!", channel))
}

// authorize resolves an owner-scoped callback: the clicker must be the
// encoded owner and the token must match the live session.
func (e *Engine) authorize(ctx context.Context, cq *tg.CallbackQuery, ownerPart string, token string) (*session.Session, bool) {
	owner, _ := strconv.ParseInt(ownerPart, 10, 64)
	if owner == 0 || cq.From.ID != owner {
		_ = e.bot.AnswerCallback(ctx, cq.ID, "This is not for you!", true)
		return nil, false
	}
	sess, ok := e.sessions.Get(owner)
	if !ok || sess.Token != token {
		_ = e.bot.AnswerCallback(ctx, cq.ID, "Session expired. Start over.", true)
		return nil, false
	}
	return sess, true
}

// finish runs the generators exactly once, caches the bundle and sends it.
func (e *Engine) finish(ctx context.Context, sess *session.Session) {
	if sess.Generated {
		return
	}

	var (
		caption  string
		htmlText string
		image    []byte
	)
	opts := render.HTMLOptions{
		AdLink:       e.adLink(sess.Owner),
		WaitSeconds:  e.opts.WaitSeconds,
		SeedCounter:  e.opts.SeedCounter,
		TelegramLink: e.opts.TelegramLink,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		caption = render.Caption(&sess.Record)
		htmlText = render.HTML(&sess.Record, sess.Links, opts)
		return nil
	})
	g.Go(func() error {
		image = e.comp.Render(gctx, &sess.Record)
		return nil
	})
	_ = g.Wait()

	sess.Bundle = &session.Bundle{Caption: caption, HTML: htmlText, Image: image}
	sess.Generated = true
	sess.State = session.Terminal{}
	e.sessions.Upsert(sess)

	_, hasChannel := e.cfg.Channel(sess.Owner)
	kb := finalKeyboard(sess, hasChannel)
	if len(image) > 0 {
		img := make([]byte, len(image))
		copy(img, image)
		if err := e.bot.SendPhoto(ctx, sess.ChatID, img, caption, kb); err == nil {
			return
		}
	}
	e.reply2(ctx, sess.ChatID, caption, kb)
}

func chatOf(cq *tg.CallbackQuery) int64 {
	if cq.Message != nil {
		return cq.Message.Chat.ID
	}
	return cq.From.ID
}

func (e *Engine) editOrReply(ctx context.Context, cq *tg.CallbackQuery, text string) {
	if cq.Message != nil {
		if err := e.bot.EditText(ctx, cq.Message.Chat.ID, cq.Message.MessageID, text, nil); err == nil {
			return
		}
	}
	e.reply(ctx, chatOf(cq), text)
}
