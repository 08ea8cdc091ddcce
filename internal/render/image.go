package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"moviepost-tg-bot/internal/media"
	"moviepost-tg-bot/internal/tmdb"
)

const (
	canvasW = 1280
	canvasH = 720

	posterW = 400
	posterH = 600
	posterX = 50
	posterY = 60

	ribbonH = 40

	textX         = 480
	overviewY     = 250
	overviewStep  = 30
	overviewChars = 80
	overviewLines = 7
)

// Compositor builds the 1280x720 promotional image for a record. Every
// overlay step degrades on failure; only a missing poster aborts the
// whole image.
type Compositor struct {
	hc    *http.Client
	fonts *fontSet
}

func NewCompositor(fontDir string) *Compositor {
	return &Compositor{
		hc:    &http.Client{Timeout: 15 * time.Second},
		fonts: loadFonts(fontDir),
	}
}

// Render returns PNG bytes, or nil when the poster cannot be obtained.
func (c *Compositor) Render(ctx context.Context, rec *media.Record) []byte {
	posterURL := tmdb.ImageURL(rec.PosterRef, "w500")
	if posterURL == "" {
		return nil
	}
	posterBytes, err := c.fetch(ctx, posterURL)
	if err != nil {
		return nil
	}
	posterSrc, err := imaging.Decode(bytes.NewReader(posterBytes))
	if err != nil {
		return nil
	}
	poster := imaging.Resize(posterSrc, posterW, posterH, imaging.Lanczos)

	bg := imaging.New(canvasW, canvasH, color.NRGBA{R: 10, G: 10, B: 20, A: 255})

	if rec.BackdropRef != "" {
		if backdropBytes, err := c.fetch(ctx, tmdb.ImageURL(rec.BackdropRef, "w1280")); err == nil {
			if backdrop, err := imaging.Decode(bytes.NewReader(backdropBytes)); err == nil {
				blurred := imaging.Blur(imaging.Resize(backdrop, canvasW, canvasH, imaging.Lanczos), 4)
				draw.Draw(bg, bg.Bounds(), blurred, image.Point{}, draw.Src)
				// Darken so the foreground text stays readable.
				draw.Draw(bg, bg.Bounds(), image.NewUniform(color.NRGBA{A: 150}), image.Point{}, draw.Over)
			}
		}
	}

	draw.Draw(bg, image.Rect(posterX, posterY, posterX+posterW, posterY+posterH), poster, image.Point{}, draw.Over)

	if lang := strings.TrimSpace(rec.Language); lang != "" {
		c.drawRibbon(bg, lang)
	}

	title := fmt.Sprintf("%s (%s)", rec.DisplayTitle(), rec.YearString())
	c.drawText(bg, title, c.fonts.bold, color.White, textX, 80)
	c.drawText(bg, fmt.Sprintf("%.1f/10", rec.Rating), c.fonts.regular, color.NRGBA{G: 0xe6, B: 0x76, A: 255}, textX, 140)
	if len(rec.Genres) > 0 {
		c.drawText(bg, strings.Join(rec.Genres, " | "), c.fonts.small, color.NRGBA{G: 0xbc, B: 0xd4, A: 255}, textX, 180)
	}

	y := overviewY
	for _, line := range wrapText(rec.Overview, overviewChars, overviewLines) {
		c.drawText(bg, line, c.fonts.regular, color.NRGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 255}, textX, y)
		y += overviewStep
	}

	var out bytes.Buffer
	if err := png.Encode(&out, bg); err != nil {
		return nil
	}
	return out.Bytes()
}

func (c *Compositor) drawRibbon(dst draw.Image, text string) {
	ribbon := image.Rect(posterX, posterY, posterX+posterW, posterY+ribbonH)
	draw.Draw(dst, ribbon, image.NewUniform(color.NRGBA{R: 220, G: 20, B: 60, A: 200}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: c.fonts.badge,
	}
	w := d.MeasureString(text)
	x := posterX + (posterW-w.Ceil())/2
	d.Dot = fixed.P(x, posterY+ribbonH-10)
	d.DrawString(text)
}

func (c *Compositor) drawText(dst draw.Image, text string, face font.Face, col color.Color, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func (c *Compositor) fetch(ctx context.Context, u string) ([]byte, error) {
	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("image fetch status %d", resp.StatusCode)
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, 20<<20))
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 1), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return body, nil
}

// wrapText breaks s into word-wrapped lines of at most maxChars runes,
// capped at maxLines. Words longer than a line are hard-split.
func wrapText(s string, maxChars int, maxLines int) []string {
	words := strings.Fields(s)
	lines := make([]string, 0, maxLines)
	var cur strings.Builder
	for _, w := range words {
		for len([]rune(w)) > maxChars {
			if cur.Len() > 0 {
				lines = append(lines, cur.String())
				cur.Reset()
				if len(lines) == maxLines {
					return lines
				}
			}
			r := []rune(w)
			lines = append(lines, string(r[:maxChars]))
			if len(lines) == maxLines {
				return lines
			}
			w = string(r[maxChars:])
		}
		if cur.Len() == 0 {
			cur.WriteString(w)
			continue
		}
		if len([]rune(cur.String()))+1+len([]rune(w)) > maxChars {
			lines = append(lines, cur.String())
			cur.Reset()
			if len(lines) == maxLines {
				return lines
			}
			cur.WriteString(w)
			continue
		}
		cur.WriteByte(' ')
		cur.WriteString(w)
	}
	if cur.Len() > 0 && len(lines) < maxLines {
		lines = append(lines, cur.String())
	}
	return lines
}
