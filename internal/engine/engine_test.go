package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"moviepost-tg-bot/internal/media"
	"moviepost-tg-bot/internal/session"
	"moviepost-tg-bot/internal/storage"
	"moviepost-tg-bot/internal/tg"
	"moviepost-tg-bot/internal/tmdb"
)

type sentMessage struct {
	chat any
	text string
	kb   *tg.InlineKeyboardMarkup
}

type sentPhoto struct {
	chat    any
	photo   []byte
	caption string
	kb      *tg.InlineKeyboardMarkup
}

type sentDocument struct {
	chat    any
	name    string
	caption string
}

type answered struct {
	text  string
	alert bool
}

type fakeBot struct {
	mu        sync.Mutex
	texts     []sentMessage
	photos    []sentPhoto
	docs      []sentDocument
	edits     []sentMessage
	answers   []answered
	photoData []byte
	photoErr  error
}

func (b *fakeBot) SendText(ctx context.Context, chat any, text string, kb *tg.InlineKeyboardMarkup) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.texts = append(b.texts, sentMessage{chat, text, kb})
	return nil
}

func (b *fakeBot) SendPhoto(ctx context.Context, chat any, photo []byte, caption string, kb *tg.InlineKeyboardMarkup) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.photos = append(b.photos, sentPhoto{chat, photo, caption, kb})
	return nil
}

func (b *fakeBot) SendDocument(ctx context.Context, chat any, name string, data []byte, caption string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = append(b.docs, sentDocument{chat, name, caption})
	return nil
}

func (b *fakeBot) EditText(ctx context.Context, chat any, messageID int, text string, kb *tg.InlineKeyboardMarkup) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edits = append(b.edits, sentMessage{chat, text, kb})
	return nil
}

func (b *fakeBot) AnswerCallback(ctx context.Context, callbackID string, text string, alert bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers = append(b.answers, answered{text, alert})
	return nil
}

func (b *fakeBot) PhotoBytes(ctx context.Context, fileID string) ([]byte, error) {
	return b.photoData, b.photoErr
}

func (b *fakeBot) lastText(t *testing.T) sentMessage {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.texts) == 0 {
		t.Fatal("no text messages sent")
	}
	return b.texts[len(b.texts)-1]
}

type fakeMeta struct {
	candidates []tmdb.Candidate
	records    map[string]*media.Record
	searchErr  error
	resolve    func(string) (media.Kind, int64, bool)
	queries    []string
}

func (m *fakeMeta) Search(ctx context.Context, query string, limit int) ([]tmdb.Candidate, error) {
	m.queries = append(m.queries, query)
	return m.candidates, m.searchErr
}

func (m *fakeMeta) Details(ctx context.Context, kind media.Kind, id int64) (*media.Record, error) {
	rec, ok := m.records[fmt.Sprintf("%s:%d", kind, id)]
	if !ok {
		return nil, fmt.Errorf("no record for %s %d", kind, id)
	}
	clone := *rec
	return &clone, nil
}

func (m *fakeMeta) ResolveExternalReference(ctx context.Context, text string) (media.Kind, int64, bool) {
	if m.resolve == nil {
		return "", 0, false
	}
	return m.resolve(text)
}

type fakePub struct {
	htmlURL string
	htmlOK  bool
	imgURL  string
	imgOK   bool
}

func (p *fakePub) UploadHTML(ctx context.Context, html string) (string, bool) {
	return p.htmlURL, p.htmlOK
}

func (p *fakePub) UploadImage(ctx context.Context, data []byte) (string, bool) {
	return p.imgURL, p.imgOK
}

type fakeComp struct {
	mu    sync.Mutex
	image []byte
	calls int
}

func (c *fakeComp) Render(ctx context.Context, rec *media.Record) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.image
}

func inceptionRecord() *media.Record {
	return &media.Record{
		Kind:        media.KindMovie,
		Title:       "Inception",
		ReleaseDate: "2010-07-16",
		Overview:    "A thief steals secrets through dreams.",
		Rating:      8.8,
		Genres:      []string{"Action", "Sci-Fi"},
		PosterRef:   "/poster.jpg",
	}
}

type fixture struct {
	eng  *Engine
	bot  *fakeBot
	meta *fakeMeta
	pub  *fakePub
	comp *fakeComp
	cfg  *storage.FileStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	bot := &fakeBot{}
	meta := &fakeMeta{records: map[string]*media.Record{"movie:27205": inceptionRecord()}}
	pub := &fakePub{htmlURL: "https://dpaste.com/ABC", htmlOK: true, imgURL: "https://i.ibb.co/x.jpg", imgOK: true}
	comp := &fakeComp{image: []byte("png-bytes")}
	eng := New(bot, meta, pub, comp, session.NewStore(), cfg, Options{
		DefaultAdLink: "https://ads.example.com/default",
		TelegramLink:  "https://t.me/example",
	})
	return &fixture{eng: eng, bot: bot, meta: meta, pub: pub, comp: comp, cfg: cfg}
}

func textUpdate(user int64, chat int64, text string) tg.Update {
	return tg.Update{Message: &tg.Message{
		MessageID: 1,
		Chat:      tg.Chat{ID: chat},
		From:      &tg.User{ID: user},
		Text:      text,
	}}
}

func photoUpdate(user int64, chat int64, fileID string) tg.Update {
	return tg.Update{Message: &tg.Message{
		MessageID: 1,
		Chat:      tg.Chat{ID: chat},
		From:      &tg.User{ID: user},
		Photo:     []tg.PhotoSize{{FileID: fileID, Width: 800, Height: 600}},
	}}
}

func callbackUpdate(user int64, chat int64, data string) tg.Update {
	return tg.Update{CallbackQuery: &tg.CallbackQuery{
		ID:      "cb1",
		From:    tg.User{ID: user},
		Data:    data,
		Message: &tg.Message{MessageID: 5, Chat: tg.Chat{ID: chat}},
	}}
}

func TestDispatchSerializesSameUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const user, chat = int64(42), int64(100)

	for i := 0; i < 100; i++ {
		f.eng.sessions.Delete(user)
		f.eng.Dispatch(ctx, textUpdate(user, chat, "/manual"))

		start := make(chan struct{})
		var wg sync.WaitGroup
		for _, text := range []string{"Test Film", "1999"} {
			wg.Add(1)
			go func(text string) {
				defer wg.Done()
				<-start
				f.eng.Dispatch(ctx, textUpdate(user, chat, text))
			}(text)
		}
		close(start)
		wg.Wait()

		sess, ok := f.eng.sessions.Get(user)
		if !ok {
			t.Fatal("session lost under concurrent dispatch")
		}
		// Whichever message lands first, each transition must be atomic:
		// the year is only accepted after the title that preceded it.
		titleFirst := sess.Record.Title == "Test Film" && sess.Record.ReleaseDate == "1999-01-01"
		yearFirst := sess.Record.Title == "1999" && sess.Record.ReleaseDate == ""
		if !titleFirst && !yearFirst {
			t.Fatalf("torn transition: Title=%q ReleaseDate=%q", sess.Record.Title, sess.Record.ReleaseDate)
		}
	}
}

func TestManualEntryFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const user, chat = int64(42), int64(100)

	for _, text := range []string{"/manual", "Test Film", "1999", "A film made for testing.", "Drama, Thriller", "N/A", "skip"} {
		f.eng.Dispatch(ctx, textUpdate(user, chat, text))
	}

	sess, ok := f.eng.sessions.Get(user)
	if !ok {
		t.Fatal("no session after manual entry")
	}
	if _, lang := sess.State.(session.CollectingLanguage); !lang {
		t.Fatalf("state is %T, expected CollectingLanguage", sess.State)
	}
	if sess.Record.Title != "Test Film" {
		t.Errorf("Title = %q", sess.Record.Title)
	}
	if sess.Record.ReleaseDate != "1999-01-01" {
		t.Errorf("ReleaseDate = %q, expected 1999-01-01", sess.Record.ReleaseDate)
	}
	if sess.Record.Rating != 0.0 {
		t.Errorf("Rating = %v, expected 0.0", sess.Record.Rating)
	}
	if got := strings.Join(sess.Record.Genres, "|"); got != "Drama|Thriller" {
		t.Errorf("Genres = %q", got)
	}
}

func TestManualYearReprompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const user, chat = int64(42), int64(100)

	f.eng.Dispatch(ctx, textUpdate(user, chat, "/manual"))
	f.eng.Dispatch(ctx, textUpdate(user, chat, "Test Film"))
	f.eng.Dispatch(ctx, textUpdate(user, chat, "nineteen99"))

	if got := f.bot.lastText(t).text; got != "⚠️ Invalid. Please send a 4-digit year." {
		t.Errorf("reprompt = %q", got)
	}
	sess, _ := f.eng.sessions.Get(user)
	if _, year := sess.State.(session.ManualYear); !year {
		t.Errorf("state is %T after bad year, expected ManualYear", sess.State)
	}
	if sess.Record.ReleaseDate != "" {
		t.Errorf("ReleaseDate = %q after rejected input", sess.Record.ReleaseDate)
	}

	f.eng.Dispatch(ctx, textUpdate(user, chat, "1999"))
	sess, _ = f.eng.sessions.Get(user)
	if sess.Record.ReleaseDate != "1999-01-01" {
		t.Errorf("ReleaseDate = %q after retry", sess.Record.ReleaseDate)
	}
}

func TestSearchSelectGenerateFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const user, chat = int64(42), int64(100)
	f.meta.candidates = []tmdb.Candidate{{Kind: media.KindMovie, ID: 27205, Title: "Inception", Year: "2010"}}

	f.eng.Dispatch(ctx, textUpdate(user, chat, "Inception 2010"))
	if len(f.meta.queries) != 1 || f.meta.queries[0] != "Inception 2010" {
		t.Fatalf("queries = %v", f.meta.queries)
	}
	kb := f.bot.lastText(t).kb
	if kb == nil || len(kb.InlineKeyboard) != 1 {
		t.Fatal("selection keyboard missing")
	}
	data := kb.InlineKeyboard[0][0].CallbackData
	if data != "select:movie:27205:42" {
		t.Fatalf("callback data = %q", data)
	}

	f.eng.Dispatch(ctx, callbackUpdate(user, chat, data))
	sess, ok := f.eng.sessions.Get(user)
	if !ok {
		t.Fatal("no session after selection")
	}
	if _, lang := sess.State.(session.CollectingLanguage); !lang {
		t.Fatalf("state is %T after selection", sess.State)
	}

	f.eng.Dispatch(ctx, textUpdate(user, chat, "english"))
	sess, _ = f.eng.sessions.Get(user)
	if sess.Record.Language != "English" {
		t.Errorf("Language = %q, expected title-cased English", sess.Record.Language)
	}

	f.eng.Dispatch(ctx, textUpdate(user, chat, "skip"))
	sess, _ = f.eng.sessions.Get(user)
	if sess.Record.Quality != "" {
		t.Errorf("Quality = %q after skip", sess.Record.Quality)
	}
	if _, deciding := sess.State.(session.AwaitingLinkDecision); !deciding {
		t.Fatalf("state is %T, expected AwaitingLinkDecision", sess.State)
	}

	f.eng.Dispatch(ctx, callbackUpdate(user, chat, fmt.Sprintf("addlink:no:%d:%s", user, sess.Token)))

	sess, _ = f.eng.sessions.Get(user)
	if !sess.Generated || sess.Bundle == nil {
		t.Fatal("bundle not generated")
	}
	if !strings.Contains(sess.Bundle.Caption, "Inception (2010)") {
		t.Errorf("caption missing title: %q", sess.Bundle.Caption)
	}
	if len(f.bot.photos) != 1 {
		t.Fatalf("got %d photos, expected the final bundle photo", len(f.bot.photos))
	}
	if string(f.bot.photos[0].photo) != "png-bytes" {
		t.Error("final photo is not the composited image")
	}
	if f.comp.calls != 1 {
		t.Errorf("compositor called %d times", f.comp.calls)
	}
}

func TestSearchOpensSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const user, chat = int64(42), int64(100)
	f.meta.candidates = []tmdb.Candidate{{Kind: media.KindMovie, ID: 27205, Title: "Inception", Year: "2010"}}

	f.eng.Dispatch(ctx, textUpdate(user, chat, "Inception"))
	sess, ok := f.eng.sessions.Get(user)
	if !ok {
		t.Fatal("no session while results are showing")
	}
	if _, selecting := sess.State.(session.AwaitingSelection); !selecting {
		t.Fatalf("state is %T, expected AwaitingSelection", sess.State)
	}

	// Typing instead of tapping refines the query.
	f.eng.Dispatch(ctx, textUpdate(user, chat, "Inception 2010"))
	if len(f.meta.queries) != 2 || f.meta.queries[1] != "Inception 2010" {
		t.Errorf("queries = %v, expected a second search", f.meta.queries)
	}
	sess, _ = f.eng.sessions.Get(user)
	if _, selecting := sess.State.(session.AwaitingSelection); !selecting {
		t.Errorf("state is %T after a refined query", sess.State)
	}

	// No results on refinement leaves no live selection.
	f.meta.candidates = nil
	f.eng.sessions.Delete(user)
	f.eng.Dispatch(ctx, textUpdate(user, chat, "Nothing Matches"))
	if _, ok := f.eng.sessions.Get(user); ok {
		t.Error("session created for an empty result set")
	}
}

func TestLinkOrderPreserved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const user, chat = int64(42), int64(100)

	sess := session.New(user, chat, session.AwaitingLinkDecision{})
	sess.Record = *inceptionRecord()
	f.eng.sessions.Upsert(sess)

	add := func(label, url string) {
		f.eng.Dispatch(ctx, callbackUpdate(user, chat, fmt.Sprintf("addlink:yes:%d:%s", user, sess.Token)))
		f.eng.Dispatch(ctx, textUpdate(user, chat, label))
		f.eng.Dispatch(ctx, textUpdate(user, chat, url))
	}
	add("720p", "https://files.example.com/720")
	add("1080p", "https://files.example.com/1080")
	f.eng.Dispatch(ctx, textUpdate(user, chat, "done"))

	got, _ := f.eng.sessions.Get(user)
	if got.Bundle == nil {
		t.Fatal("bundle not generated")
	}
	first := strings.Index(got.Bundle.HTML, `data-label="720p"`)
	second := strings.Index(got.Bundle.HTML, `data-label="1080p"`)
	if first < 0 || second < 0 {
		t.Fatalf("download blocks missing: %d %d", first, second)
	}
	if first > second {
		t.Error("links rendered out of insertion order")
	}
}

func TestLinkURLValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const user, chat = int64(42), int64(100)

	sess := session.New(user, chat, session.CollectingLinkURL{Label: "720p"})
	f.eng.sessions.Upsert(sess)

	f.eng.Dispatch(ctx, textUpdate(user, chat, "ftp://bad.example.com"))
	got, _ := f.eng.sessions.Get(user)
	if len(got.Links) != 0 {
		t.Fatal("invalid URL was accepted")
	}
	if _, still := got.State.(session.CollectingLinkURL); !still {
		t.Errorf("state is %T after rejected URL", got.State)
	}

	f.eng.Dispatch(ctx, textUpdate(user, chat, "https://files.example.com/720"))
	got, _ = f.eng.sessions.Get(user)
	if len(got.Links) != 1 || got.Links[0].Label != "720p" {
		t.Fatalf("Links = %+v", got.Links)
	}
}

func TestCancelClearsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const user, chat = int64(42), int64(100)

	f.eng.Dispatch(ctx, textUpdate(user, chat, "/manual"))
	f.eng.Dispatch(ctx, textUpdate(user, chat, "/cancel"))
	if got := f.bot.lastText(t).text; got != "✅ Operation cancelled." {
		t.Errorf("cancel reply = %q", got)
	}
	if _, ok := f.eng.sessions.Get(user); ok {
		t.Fatal("session survived /cancel")
	}

	// With no session the next plain text is a fresh search.
	f.eng.Dispatch(ctx, textUpdate(user, chat, "Inception"))
	if len(f.meta.queries) != 1 || f.meta.queries[0] != "Inception" {
		t.Errorf("queries = %v, expected a fresh search", f.meta.queries)
	}
}

func TestForeignClickRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const owner, intruder = int64(42), int64(99)

	sess := session.New(owner, 100, session.AwaitingLinkDecision{})
	f.eng.sessions.Upsert(sess)

	f.eng.Dispatch(ctx, callbackUpdate(intruder, 100, fmt.Sprintf("addlink:yes:%d:%s", owner, sess.Token)))

	if len(f.bot.answers) != 1 {
		t.Fatalf("got %d callback answers", len(f.bot.answers))
	}
	if a := f.bot.answers[0]; a.text != "This is not for you!" || !a.alert {
		t.Errorf("answer = %+v", a)
	}
	got, _ := f.eng.sessions.Get(owner)
	if _, same := got.State.(session.AwaitingLinkDecision); !same {
		t.Errorf("foreign click mutated state to %T", got.State)
	}
}

func TestStaleTokenRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const user = int64(42)

	sess := session.New(user, 100, session.AwaitingLinkDecision{})
	f.eng.sessions.Upsert(sess)

	f.eng.Dispatch(ctx, callbackUpdate(user, 100, fmt.Sprintf("addlink:yes:%d:%s", user, "00000000")))

	if len(f.bot.answers) != 1 {
		t.Fatalf("got %d callback answers", len(f.bot.answers))
	}
	if a := f.bot.answers[0]; a.text != "Session expired. Start over." || !a.alert {
		t.Errorf("answer = %+v", a)
	}
}

func generatedSession(f *fixture, user int64, chat int64) *session.Session {
	sess := session.New(user, chat, session.Terminal{})
	sess.Record = media.Record{Kind: media.KindMovie, Title: "Test Film", ReleaseDate: "1999-01-01"}
	sess.Bundle = &session.Bundle{
		Caption: "caption text",
		HTML:    "<p>fragment</p>",
		Image:   []byte("png-bytes"),
	}
	sess.Generated = true
	f.eng.sessions.Upsert(sess)
	return sess
}

func TestGetHTMLPasteLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := generatedSession(f, 42, 100)

	f.eng.Dispatch(ctx, callbackUpdate(42, 100, fmt.Sprintf("get:html:%d:%s", sess.Owner, sess.Token)))

	msg := f.bot.lastText(t)
	if msg.kb == nil || msg.kb.InlineKeyboard[0][0].URL != "https://dpaste.com/ABC" {
		t.Error("paste link button missing")
	}
	if len(f.bot.docs) != 0 {
		t.Error("document sent despite a working paste link")
	}
}

func TestGetHTMLFallsBackToDocument(t *testing.T) {
	f := newFixture(t)
	f.pub.htmlOK = false
	ctx := context.Background()
	sess := generatedSession(f, 42, 100)

	f.eng.Dispatch(ctx, callbackUpdate(42, 100, fmt.Sprintf("get:html:%d:%s", sess.Owner, sess.Token)))

	if len(f.bot.docs) != 1 {
		t.Fatalf("got %d documents, expected the fallback file", len(f.bot.docs))
	}
	doc := f.bot.docs[0]
	if doc.name != "Test_Film.html" {
		t.Errorf("document name = %q", doc.name)
	}
	if doc.caption != "⚠️ Could not create a link. Here is the code as a file." {
		t.Errorf("document caption = %q", doc.caption)
	}
}

func TestGetCaption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := generatedSession(f, 42, 100)

	f.eng.Dispatch(ctx, callbackUpdate(42, 100, fmt.Sprintf("get:caption:%d:%s", sess.Owner, sess.Token)))

	if got := f.bot.lastText(t).text; got != "caption text" {
		t.Errorf("caption reply = %q", got)
	}
}

func TestPostChannelRequiresChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := generatedSession(f, 42, 100)

	f.eng.Dispatch(ctx, callbackUpdate(42, 100, fmt.Sprintf("post:channel:%d:%s", sess.Owner, sess.Token)))

	last := f.bot.answers[len(f.bot.answers)-1]
	if last.text != "Channel not set. Use /setchannel." || !last.alert {
		t.Errorf("answer = %+v", last)
	}
	if len(f.bot.photos) != 0 {
		t.Error("posted without a configured channel")
	}
}

func TestPostChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := generatedSession(f, 42, 100)
	if err := f.cfg.SetChannel(42, "@mychannel"); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
	if err := f.cfg.SetPromo(42, storage.PromoConfig{WatchLink: "https://watch.example.com", BrandName: "Brand"}); err != nil {
		t.Fatalf("SetPromo: %v", err)
	}

	f.eng.Dispatch(ctx, callbackUpdate(42, 100, fmt.Sprintf("post:channel:%d:%s", sess.Owner, sess.Token)))

	if len(f.bot.photos) != 1 {
		t.Fatalf("got %d channel photos", len(f.bot.photos))
	}
	post := f.bot.photos[0]
	if post.chat != "@mychannel" {
		t.Errorf("posted to %v, expected @mychannel", post.chat)
	}
	if post.caption != "caption text" {
		t.Errorf("channel caption = %q", post.caption)
	}
	if post.kb == nil || post.kb.InlineKeyboard[0][0].URL != "https://watch.example.com" {
		t.Error("promo keyboard missing on channel post")
	}
	if got := f.bot.lastText(t).text; got != "✅ Successfully posted to <code>@mychannel</code>!" {
		t.Errorf("confirmation = %q", got)
	}
}

func TestFinishRunsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := session.New(42, 100, session.AwaitingLinkDecision{})
	sess.Record = *inceptionRecord()
	f.eng.sessions.Upsert(sess)

	f.eng.finish(ctx, sess)
	f.eng.finish(ctx, sess)

	if f.comp.calls != 1 {
		t.Errorf("compositor called %d times, expected 1", f.comp.calls)
	}
	if len(f.bot.photos) != 1 {
		t.Errorf("bundle delivered %d times, expected 1", len(f.bot.photos))
	}
}

func TestPhotoUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bot.photoData = []byte("raw-photo")

	sess := session.New(42, 100, session.ManualPoster{})
	f.eng.sessions.Upsert(sess)

	f.eng.Dispatch(ctx, photoUpdate(42, 100, "file-1"))

	got, _ := f.eng.sessions.Get(42)
	if got.Record.PosterRef != "https://i.ibb.co/x.jpg" {
		t.Errorf("PosterRef = %q", got.Record.PosterRef)
	}
	if _, lang := got.State.(session.CollectingLanguage); !lang {
		t.Errorf("state is %T after upload", got.State)
	}
}

func TestPhotoUploadFailureNonFatal(t *testing.T) {
	f := newFixture(t)
	f.pub.imgOK = false
	ctx := context.Background()
	f.bot.photoData = []byte("raw-photo")

	sess := session.New(42, 100, session.ManualPoster{})
	f.eng.sessions.Upsert(sess)

	f.eng.Dispatch(ctx, photoUpdate(42, 100, "file-1"))

	got, _ := f.eng.sessions.Get(42)
	if got.Record.PosterRef != "" {
		t.Errorf("PosterRef = %q after failed upload", got.Record.PosterRef)
	}
	if _, lang := got.State.(session.CollectingLanguage); !lang {
		t.Errorf("state is %T, conversation should continue", got.State)
	}
	if !strings.Contains(f.bot.lastText(t).text, "Poster upload failed!") {
		t.Error("missing upload-failure notice")
	}
}

func TestPhotoIgnoredOutsidePosterState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := session.New(42, 100, session.CollectingLanguage{})
	f.eng.sessions.Upsert(sess)

	f.eng.Dispatch(ctx, photoUpdate(42, 100, "file-1"))

	if len(f.bot.texts) != 0 {
		t.Error("photo outside the poster step produced a reply")
	}
	got, _ := f.eng.sessions.Get(42)
	if _, lang := got.State.(session.CollectingLanguage); !lang {
		t.Errorf("state is %T, expected unchanged", got.State)
	}
}

func TestSetAdLinkCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.eng.Dispatch(ctx, textUpdate(42, 100, "/setadlink http://insecure.example.com"))
	if !strings.Contains(f.bot.lastText(t).text, "Usage:") {
		t.Error("non-https ad link was accepted")
	}

	f.eng.Dispatch(ctx, textUpdate(42, 100, "/setadlink https://ads.example.com/mine"))
	if v, ok := f.cfg.AdLink(42); !ok || v != "https://ads.example.com/mine" {
		t.Errorf("AdLink = (%q, %v)", v, ok)
	}

	f.eng.Dispatch(ctx, textUpdate(42, 100, "/myadlink"))
	if !strings.Contains(f.bot.lastText(t).text, "https://ads.example.com/mine") {
		t.Error("/myadlink does not report the saved link")
	}

	f.eng.Dispatch(ctx, textUpdate(99, 100, "/myadlink"))
	if !strings.Contains(f.bot.lastText(t).text, "https://ads.example.com/default") {
		t.Error("/myadlink without a saved link does not fall back to the default")
	}
}

func TestExternalReferenceSkipsSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.meta.resolve = func(text string) (media.Kind, int64, bool) {
		if text == "https://www.themoviedb.org/movie/27205" {
			return media.KindMovie, 27205, true
		}
		return "", 0, false
	}

	f.eng.Dispatch(ctx, textUpdate(42, 100, "https://www.themoviedb.org/movie/27205"))

	if len(f.meta.queries) != 0 {
		t.Errorf("search ran for a direct reference: %v", f.meta.queries)
	}
	sess, ok := f.eng.sessions.Get(42)
	if !ok {
		t.Fatal("no session after direct reference")
	}
	if sess.Record.Title != "Inception" {
		t.Errorf("Title = %q", sess.Record.Title)
	}
}
