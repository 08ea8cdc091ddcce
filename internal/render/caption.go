package render

import (
	"fmt"
	"html"
	"strings"

	"moviepost-tg-bot/internal/media"
)

const overviewLimit = 450

// Caption formats the Telegram caption for a record. Pure and
// deterministic: the same record always yields byte-identical text.
func Caption(rec *media.Record) string {
	title := rec.DisplayTitle()
	year := rec.YearString()

	genres := "N/A"
	if len(rec.Genres) > 0 {
		genres = strings.Join(rec.Genres, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎬 <b>%s (%s)</b>\n\n", html.EscapeString(title), year)
	fmt.Fprintf(&b, "<b>Rating:</b> ⭐ %.1f/10\n", rec.Rating)
	fmt.Fprintf(&b, "<b>Genres:</b> %s\n", html.EscapeString(genres))
	if lang := strings.TrimSpace(rec.Language); lang != "" {
		fmt.Fprintf(&b, "<b>Language:</b> %s\n", html.EscapeString(lang))
	}
	if q := strings.TrimSpace(rec.Quality); q != "" {
		fmt.Fprintf(&b, "<b>Quality:</b> %s\n", html.EscapeString(q))
	}
	if d := strings.TrimSpace(rec.Director); d != "" {
		fmt.Fprintf(&b, "<b>Director:</b> %s\n", html.EscapeString(d))
	}
	if len(rec.Cast) > 0 {
		fmt.Fprintf(&b, "<b>Cast:</b> %s\n", html.EscapeString(strings.Join(rec.Cast, ", ")))
	}

	overview := strings.TrimSpace(rec.Overview)
	if overview == "" {
		overview = "No plot summary available."
	}
	fmt.Fprintf(&b, "\n<b>Plot:</b> <i>%s</i>", html.EscapeString(truncate(overview, overviewLimit)))
	return b.String()
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
