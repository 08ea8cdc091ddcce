package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nfnt/resize"
)

const (
	defaultPasteURL = "https://dpaste.com/api/"
	defaultImgbbURL = "https://api.imgbb.com/1/upload"

	optimizeMaxWidth = 600
	optimizeQuality  = 85
)

// Gateway uploads generated artifacts to external hosting. Both upload
// paths report failure as ("", false); callers own the fallback (file
// delivery, poster-less post).
type Gateway struct {
	pasteURL string
	imgbbURL string
	imgbbKey string
	hc       *http.Client
}

func NewGateway(pasteURL string, imgbbKey string) *Gateway {
	if pasteURL == "" {
		pasteURL = defaultPasteURL
	}
	return &Gateway{
		pasteURL: pasteURL,
		imgbbURL: defaultImgbbURL,
		imgbbKey: imgbbKey,
		hc:       &http.Client{Timeout: 30 * time.Second},
	}
}

// UploadHTML posts the fragment to the paste service. If the secure
// endpoint fails outright it retries once over plain http before giving
// up. A timeout is not retried: the endpoint is reachable but slow, and
// a second full-length attempt would only double the stall.
func (g *Gateway) UploadHTML(ctx context.Context, html string) (string, bool) {
	u, err := g.paste(ctx, g.pasteURL, html)
	if err == nil {
		return u, true
	}
	if timeoutErr(err) || !strings.HasPrefix(g.pasteURL, "https://") {
		return "", false
	}
	insecure := "http://" + strings.TrimPrefix(g.pasteURL, "https://")
	if u, err := g.paste(ctx, insecure, html); err == nil {
		return u, true
	}
	return "", false
}

func timeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (g *Gateway) paste(ctx context.Context, endpoint string, html string) (string, error) {
	form := url.Values{}
	form.Set("content", html)
	form.Set("syntax", "html")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := g.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("paste status %d: %s", resp.StatusCode, string(body))
	}
	pasteURL := strings.TrimSpace(string(body))
	if pasteURL == "" {
		return "", fmt.Errorf("paste returned empty body")
	}
	return pasteURL, nil
}

// UploadImage optimizes the bytes and posts them to the image host.
func (g *Gateway) UploadImage(ctx context.Context, data []byte) (string, bool) {
	data = Optimize(data)

	form := url.Values{}
	form.Set("key", g.imgbbKey)
	form.Set("image", base64.StdEncoding.EncodeToString(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.imgbbURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := g.hc.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false
	}

	var out struct {
		Success bool `json:"success"`
		Data    struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", false
	}
	if !out.Success || out.Data.URL == "" {
		return "", false
	}
	return out.Data.URL, true
}

// Optimize shrinks images wider than the threshold and recompresses them
// as JPEG. Bytes that do not decode are returned unchanged.
func Optimize(data []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}
	var resized image.Image = img
	if img.Bounds().Dx() > optimizeMaxWidth {
		resized = resize.Resize(optimizeMaxWidth, 0, img, resize.Lanczos3)
	}
	var out bytes.Buffer
	if err := jpeg.Encode(&out, resized, &jpeg.Options{Quality: optimizeQuality}); err != nil {
		return data
	}
	return out.Bytes()
}
