package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"moviepost-tg-bot/internal/media"
	"moviepost-tg-bot/internal/session"
	"moviepost-tg-bot/internal/storage"
	"moviepost-tg-bot/internal/tg"
	"moviepost-tg-bot/internal/tmdb"
)

// Transport is what the engine needs from the chat side: send, edit,
// answer buttons, pull photo bytes.
type Transport interface {
	SendText(ctx context.Context, chat any, text string, kb *tg.InlineKeyboardMarkup) error
	SendPhoto(ctx context.Context, chat any, photo []byte, caption string, kb *tg.InlineKeyboardMarkup) error
	SendDocument(ctx context.Context, chat any, name string, data []byte, caption string) error
	EditText(ctx context.Context, chat any, messageID int, text string, kb *tg.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID string, text string, alert bool) error
	PhotoBytes(ctx context.Context, fileID string) ([]byte, error)
}

type Metadata interface {
	Search(ctx context.Context, query string, limit int) ([]tmdb.Candidate, error)
	Details(ctx context.Context, kind media.Kind, id int64) (*media.Record, error)
	ResolveExternalReference(ctx context.Context, text string) (media.Kind, int64, bool)
}

type Publisher interface {
	UploadHTML(ctx context.Context, html string) (string, bool)
	UploadImage(ctx context.Context, data []byte) (string, bool)
}

type Compositor interface {
	Render(ctx context.Context, rec *media.Record) []byte
}

type Options struct {
	DefaultAdLink string
	TelegramLink  string
	WaitSeconds   int
	SeedCounter   int
	SearchLimit   int
	// Sentinel vocabularies; matched case-insensitively.
	SkipWords []string
	DoneWords []string
}

type Engine struct {
	bot      Transport
	meta     Metadata
	pub      Publisher
	comp     Compositor
	sessions *session.Store
	cfg      storage.Store
	opts     Options
	skip     map[string]bool
	done     map[string]bool

	ownerMu sync.Mutex
	owners  map[int64]*sync.Mutex
}

func New(bot Transport, meta Metadata, pub Publisher, comp Compositor, sessions *session.Store, cfg storage.Store, opts Options) *Engine {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 15
	}
	if len(opts.SkipWords) == 0 {
		opts.SkipWords = []string{"skip", "none", "na", "n/a"}
	}
	if len(opts.DoneWords) == 0 {
		opts.DoneWords = []string{"done", "finish", "stop", "no"}
	}
	return &Engine{
		bot:      bot,
		meta:     meta,
		pub:      pub,
		comp:     comp,
		sessions: sessions,
		cfg:      cfg,
		opts:     opts,
		skip:     wordSet(opts.SkipWords),
		done:     wordSet(opts.DoneWords),
		owners:   map[int64]*sync.Mutex{},
	}
}

func wordSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[strings.ToLower(strings.TrimSpace(w))] = true
	}
	return m
}

func (e *Engine) isSkip(s string) bool { return e.skip[strings.ToLower(strings.TrimSpace(s))] }
func (e *Engine) isDone(s string) bool { return e.done[strings.ToLower(strings.TrimSpace(s))] }

// Dispatch routes one inbound update. Updates from the same user are
// serialized: each session has exactly one mutator at a time, so two
// quick answers cannot tear a state transition. Different users still
// run concurrently.
func (e *Engine) Dispatch(ctx context.Context, upd tg.Update) {
	if owner := ownerOf(upd); owner != 0 {
		mu := e.ownerLock(owner)
		mu.Lock()
		defer mu.Unlock()
	}

	switch {
	case upd.CallbackQuery != nil:
		e.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && len(upd.Message.Photo) > 0:
		e.handlePhoto(ctx, upd.Message)
	case upd.Message != nil && upd.Message.Text != "":
		e.handleText(ctx, upd.Message)
	}
}

func ownerOf(upd tg.Update) int64 {
	switch {
	case upd.CallbackQuery != nil:
		return upd.CallbackQuery.From.ID
	case upd.Message != nil && upd.Message.From != nil:
		return upd.Message.From.ID
	}
	return 0
}

func (e *Engine) ownerLock(owner int64) *sync.Mutex {
	e.ownerMu.Lock()
	defer e.ownerMu.Unlock()
	mu, ok := e.owners[owner]
	if !ok {
		mu = &sync.Mutex{}
		e.owners[owner] = mu
	}
	return mu
}

func (e *Engine) handleText(ctx context.Context, msg *tg.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "/") {
		e.handleCommand(ctx, userID, chatID, text)
		return
	}

	if sess, ok := e.sessions.Get(userID); ok {
		if _, terminal := sess.State.(session.Terminal); !terminal {
			e.handleStateText(ctx, sess, chatID, text)
			return
		}
	}
	e.search(ctx, userID, chatID, text)
}

func (e *Engine) handleCommand(ctx context.Context, userID int64, chatID int64, text string) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(strings.SplitN(fields[0], "@", 2)[0])
	arg := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))

	switch cmd {
	case "/start":
		e.sessions.Delete(userID)
		e.reply(ctx, chatID, "👋 <b>Welcome!</b> Send a movie/series name (e.g. <code>Inception 2010</code>) to start.\n\n<b>Commands:</b>\n/search /manual /addpost /setchannel /setadlink /myadlink /setpromo /cancel")
	case "/cancel":
		if _, ok := e.sessions.Get(userID); ok {
			e.sessions.Delete(userID)
			e.reply(ctx, chatID, "✅ Operation cancelled.")
		} else {
			e.reply(ctx, chatID, "👍 Nothing to cancel.")
		}
	case "/manual":
		sess := session.New(userID, chatID, session.ManualTitle{})
		e.sessions.Upsert(sess)
		e.reply(ctx, chatID, "🎬 <b>Manual Entry</b>\n\nPlease send the <b>Title</b>.")
	case "/search":
		if arg == "" {
			e.reply(ctx, chatID, "🔍 Send a movie/series name, e.g. <code>/search Inception 2010</code>.")
			return
		}
		e.search(ctx, userID, chatID, arg)
	case "/addpost":
		if arg == "" {
			e.reply(ctx, chatID, "⚠️ Usage: <code>/addpost Movie Title</code>")
			return
		}
		sess := session.New(userID, chatID, session.CollectingLanguage{})
		sess.Record = media.Record{Kind: media.KindMovie, Title: arg}
		e.sessions.Upsert(sess)
		e.reply(ctx, chatID, fmt.Sprintf("✅ Title set to <b>%s</b>.\n\n%s", arg, promptLanguage))
	case "/setchannel":
		if !strings.HasPrefix(arg, "@") && !isChatID(arg) {
			e.reply(ctx, chatID, "⚠️ Usage: <code>/setchannel @yourchannelusername</code>")
			return
		}
		if err := e.cfg.SetChannel(userID, arg); err != nil {
			e.reply(ctx, chatID, "⚠️ Could not save the channel. Try again.")
			return
		}
		e.reply(ctx, chatID, fmt.Sprintf("✅ Channel set to <code>%s</code>.", arg))
	case "/setadlink":
		if !strings.HasPrefix(arg, "https://") {
			e.reply(ctx, chatID, "⚠️ Usage: <code>/setadlink https://your-ad-link.com</code>")
			return
		}
		if err := e.cfg.SetAdLink(userID, arg); err != nil {
			e.reply(ctx, chatID, "⚠️ Could not save the ad link. Try again.")
			return
		}
		e.reply(ctx, chatID, fmt.Sprintf("✅ Ad Link updated to: <code>%s</code>", arg))
	case "/myadlink":
		link := e.adLink(userID)
		e.reply(ctx, chatID, fmt.Sprintf("🔗 <b>Current Ad Link:</b>\n<code>%s</code>", link))
	case "/setpromo":
		parts := strings.Fields(arg)
		if len(parts) != 5 {
			e.reply(ctx, chatID, "⚠️ Usage: <code>/setpromo &lt;channel&gt; &lt;brand&gt; &lt;watch-link&gt; &lt;download-link&gt; &lt;request-link&gt;</code>")
			return
		}
		cfg := storage.PromoConfig{
			ChannelID:    parts[0],
			BrandName:    parts[1],
			WatchLink:    parts[2],
			DownloadLink: parts[3],
			RequestLink:  parts[4],
		}
		if err := e.cfg.SetPromo(userID, cfg); err != nil {
			e.reply(ctx, chatID, "⚠️ Could not save the promo config. Try again.")
			return
		}
		e.reply(ctx, chatID, fmt.Sprintf("✅ Promo config saved for <code>%s</code>.", cfg.ChannelID))
	default:
		e.reply(ctx, chatID, "🤔 Unknown command. Send a movie name to search, or use /manual.")
	}
}

func (e *Engine) search(ctx context.Context, userID int64, chatID int64, query string) {
	if kind, id, ok := e.meta.ResolveExternalReference(ctx, query); ok {
		e.startFromDetails(ctx, userID, chatID, kind, id)
		return
	}

	cands, err := e.meta.Search(ctx, query, e.opts.SearchLimit)
	if err != nil || len(cands) == 0 {
		e.reply(ctx, chatID, "❌ No content found. Try a more specific name (e.g. <code>Movie Name 2023</code>) or use /manual.")
		return
	}
	e.sessions.Upsert(session.New(userID, chatID, session.AwaitingSelection{}))
	e.reply2(ctx, chatID, "<b>👇 Choose the correct one:</b>", selectionKeyboard(cands, userID))
}

func (e *Engine) startFromDetails(ctx context.Context, userID int64, chatID int64, kind media.Kind, id int64) {
	rec, err := e.meta.Details(ctx, kind, id)
	if err != nil || rec == nil {
		e.reply(ctx, chatID, "❌ Failed to get details. Please try again.")
		return
	}
	sess := session.New(userID, chatID, session.CollectingLanguage{})
	sess.Record = *rec
	e.sessions.Upsert(sess)
	e.reply(ctx, chatID, "✅ Details fetched!\n\n"+promptLanguage)
}

const (
	promptLanguage  = "🗣️ Please enter the <b>language</b> (e.g. <code>Hindi Dubbed</code>, <code>English</code>)."
	promptQuality   = "📀 Enter the <b>quality</b> (e.g. <code>1080p WEB-DL</code>), or <code>skip</code>."
	promptLinkLabel = "🔗 <b>Step 1/2: Link Label</b>\nExample: <code>Download 720p</code>\nSend <code>done</code> when you have no more links."
	promptPoster    = "🖼️ Finally, send the <b>Poster Image</b> (photo or direct URL), or <code>skip</code>."
)

func (e *Engine) handleStateText(ctx context.Context, sess *session.Session, chatID int64, text string) {
	switch st := sess.State.(type) {
	case session.ManualTitle:
		sess.Record.Title = text
		sess.State = session.ManualYear{}
		e.sessions.Upsert(sess)
		e.reply(ctx, chatID, "✅ Title set. Now send the 4-digit <b>Year</b> (e.g. <code>2023</code>).")

	case session.ManualYear:
		date, err := media.NormalizeYear(text)
		if err != nil {
			e.reply(ctx, chatID, "⚠️ Invalid. Please send a 4-digit year.")
			return
		}
		sess.Record.ReleaseDate = date
		sess.State = session.ManualOverview{}
		e.sessions.Upsert(sess)
		e.reply(ctx, chatID, "✅ Year set. Now send the <b>Plot/Overview</b>.")

	case session.ManualOverview:
		sess.Record.Overview = text
		sess.State = session.ManualGenres{}
		e.sessions.Upsert(sess)
		e.reply(ctx, chatID, "✅ Plot set. Send <b>Genres</b>, comma-separated.")

	case session.ManualGenres:
		sess.Record.Genres = media.SplitGenres(text)
		sess.State = session.ManualRating{}
		e.sessions.Upsert(sess)
		e.reply(ctx, chatID, "✅ Genres set. What's the <b>Rating</b>? (e.g. <code>8.5</code>, or <code>N/A</code>).")

	case session.ManualRating:
		rating, err := media.ParseRating(text)
		if err != nil {
			e.reply(ctx, chatID, "⚠️ Invalid rating. Send a number between 0 and 10, or <code>N/A</code>.")
			return
		}
		sess.Record.Rating = rating
		sess.State = session.ManualPoster{}
		e.sessions.Upsert(sess)
		e.reply(ctx, chatID, "✅ Rating set. "+promptPoster)

	case session.ManualPoster:
		if e.isSkip(text) {
			sess.State = session.CollectingLanguage{}
			e.sessions.Upsert(sess)
			e.reply(ctx, chatID, promptLanguage)
			return
		}
		if !media.ValidLinkURL(text) {
			e.reply(ctx, chatID, "⚠️ Send a photo, a direct image URL, or <code>skip</code>.")
			return
		}
		sess.Record.PosterRef = text
		sess.State = session.CollectingLanguage{}
		e.sessions.Upsert(sess)
		e.reply(ctx, chatID, "✅ Poster set.\n\n"+promptLanguage)

	case session.CollectingLanguage:
		sess.Record.Language = titleCase(text)
		sess.State = session.CollectingQuality{}
		e.sessions.Upsert(sess)
		e.reply(ctx, chatID, fmt.Sprintf("✅ Language set to <b>%s</b>.\n\n%s", sess.Record.Language, promptQuality))

	case session.CollectingQuality:
		if !e.isSkip(text) {
			sess.Record.Quality = text
		}
		sess.State = session.AwaitingLinkDecision{}
		e.sessions.Upsert(sess)
		e.reply2(ctx, chatID, "🔗 <b>Add Download Links?</b>", addLinkKeyboard(sess))

	case session.AwaitingLinkDecision:
		if e.isDone(text) {
			sess.State = session.Terminal{}
			e.sessions.Upsert(sess)
			e.reply(ctx, chatID, "✅ Generating final content...")
			e.finish(ctx, sess)
			return
		}
		e.reply2(ctx, chatID, "🔗 <b>Add Download Links?</b> Use the buttons, or send <code>done</code>.", addLinkKeyboard(sess))

	case session.CollectingLinkLabel:
		if e.isDone(text) {
			sess.State = session.Terminal{}
			e.sessions.Upsert(sess)
			e.reply(ctx, chatID, "✅ Generating final content...")
			e.finish(ctx, sess)
			return
		}
		sess.State = session.CollectingLinkURL{Label: text}
		e.sessions.Upsert(sess)
		e.reply(ctx, chatID, fmt.Sprintf("🔗 <b>Step 2/2: Link URL</b>\n\nNow send the URL for <b>%s</b>.", text))

	case session.CollectingLinkURL:
		if !media.ValidLinkURL(text) {
			e.reply(ctx, chatID, "⚠️ Invalid URL. Please send a valid link starting with <code>https://</code>.")
			return
		}
		sess.Links = append(sess.Links, media.Link{Label: st.Label, URL: text})
		sess.State = session.AwaitingLinkDecision{}
		e.sessions.Upsert(sess)
		e.reply2(ctx, chatID, "✅ Link added! Add another?", addLinkKeyboard(sess))

	case session.AwaitingSelection:
		// Plain text while results are showing is a refined query.
		e.search(ctx, sess.Owner, chatID, text)
	}
}

func (e *Engine) handlePhoto(ctx context.Context, msg *tg.Message) {
	if msg.From == nil {
		return
	}
	sess, ok := e.sessions.Get(msg.From.ID)
	if !ok {
		return
	}
	if _, waiting := sess.State.(session.ManualPoster); !waiting {
		return
	}
	chatID := msg.Chat.ID

	e.reply(ctx, chatID, "🖼️ Optimizing and uploading poster...")
	data, err := e.bot.PhotoBytes(ctx, msg.LargestPhoto())
	var posterURL string
	uploaded := false
	if err == nil {
		posterURL, uploaded = e.pub.UploadImage(ctx, data)
	}

	sess.State = session.CollectingLanguage{}
	if uploaded {
		sess.Record.PosterRef = posterURL
		e.sessions.Upsert(sess)
		e.reply(ctx, chatID, "✅ Poster uploaded!\n\n"+promptLanguage)
		return
	}
	// Non-fatal: continue without a poster.
	e.sessions.Upsert(sess)
	e.reply(ctx, chatID, "⚠️ <b>Poster upload failed!</b>\n\n"+promptLanguage)
}

func (e *Engine) adLink(userID int64) string {
	if link, ok := e.cfg.AdLink(userID); ok {
		return link
	}
	return e.opts.DefaultAdLink
}

func (e *Engine) reply(ctx context.Context, chatID int64, text string) {
	_ = e.bot.SendText(ctx, chatID, text, nil)
}

func (e *Engine) reply2(ctx context.Context, chatID int64, text string, kb *tg.InlineKeyboardMarkup) {
	_ = e.bot.SendText(ctx, chatID, text, kb)
}

func isChatID(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[:1])) + strings.ToLower(string(r[1:]))
	}
	return strings.Join(words, " ")
}
