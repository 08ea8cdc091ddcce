package tg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Client is a minimal Bot API client covering what the bot sends and
// receives: text, photos, documents, edits, callback answers and long-poll
// updates. Outbound calls are paced through a shared limiter so a burst of
// sends cannot trip the API's flood control.
type Client struct {
	baseURL     string
	fileBaseURL string
	hc          *http.Client
	limiter     *rate.Limiter
}

func NewClient(token string) *Client {
	return &Client{
		baseURL:     fmt.Sprintf("https://api.telegram.org/bot%s", token),
		fileBaseURL: fmt.Sprintf("https://api.telegram.org/file/bot%s", token),
		hc:          &http.Client{Timeout: 45 * time.Second},
		limiter:     rate.NewLimiter(rate.Every(50*time.Millisecond), 10),
	}
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

func NewInlineKeyboardMarkup(rows [][]InlineKeyboardButton) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}

// ChatID is int64 for private chats and string for @channel usernames;
// the API accepts both.
type SendMessageRequest struct {
	ChatID      any                   `json:"chat_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) error {
	return c.post(ctx, "/sendMessage", req)
}

func (c *Client) SendText(ctx context.Context, chat any, text string, kb *InlineKeyboardMarkup) error {
	return c.SendMessage(ctx, SendMessageRequest{ChatID: chat, Text: text, ParseMode: "HTML", ReplyMarkup: kb})
}

func (c *Client) SendPhoto(ctx context.Context, chat any, photo []byte, caption string, kb *InlineKeyboardMarkup) error {
	fields := map[string]string{
		"chat_id":    chatField(chat),
		"caption":    caption,
		"parse_mode": "HTML",
	}
	if kb != nil {
		b, _ := json.Marshal(kb)
		fields["reply_markup"] = string(b)
	}
	return c.postMultipart(ctx, "/sendPhoto", "photo", "post.png", photo, fields)
}

func (c *Client) SendDocument(ctx context.Context, chat any, name string, data []byte, caption string) error {
	fields := map[string]string{
		"chat_id": chatField(chat),
		"caption": caption,
	}
	return c.postMultipart(ctx, "/sendDocument", "document", name, data, fields)
}

type EditMessageTextRequest struct {
	ChatID      any                   `json:"chat_id"`
	MessageID   int                   `json:"message_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (c *Client) EditText(ctx context.Context, chat any, messageID int, text string, kb *InlineKeyboardMarkup) error {
	return c.post(ctx, "/editMessageText", EditMessageTextRequest{ChatID: chat, MessageID: messageID, Text: text, ParseMode: "HTML", ReplyMarkup: kb})
}

func (c *Client) AnswerCallback(ctx context.Context, callbackQueryID string, text string, alert bool) error {
	payload := map[string]any{"callback_query_id": callbackQueryID}
	if text != "" {
		payload["text"] = text
		payload["show_alert"] = alert
	}
	return c.post(ctx, "/answerCallbackQuery", payload)
}

func (c *Client) DeleteMessage(ctx context.Context, chat any, messageID int) error {
	return c.post(ctx, "/deleteMessage", map[string]any{"chat_id": chat, "message_id": messageID})
}

// PhotoBytes resolves a file id to its path and downloads the bytes.
func (c *Client) PhotoBytes(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := c.postWithResult(ctx, "/getFile", map[string]any{"file_id": fileID})
	if err != nil {
		return nil, err
	}
	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(resp, &file); err != nil {
		return nil, err
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("telegram getFile: empty file_path")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileBaseURL+"/"+file.FilePath, nil)
	if err != nil {
		return nil, err
	}
	dl, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer dl.Body.Close()
	if dl.StatusCode < 200 || dl.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram file download status %d", dl.StatusCode)
	}
	return io.ReadAll(io.LimitReader(dl.Body, 20<<20))
}

func (c *Client) GetUpdates(ctx context.Context, offset int, timeoutSec int) ([]Update, error) {
	u := fmt.Sprintf("%s/getUpdates?timeout=%d&offset=%d&allowed_updates=%s",
		c.baseURL, timeoutSec, offset, url.QueryEscape(`["message","callback_query"]`))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram getUpdates status %d: %s", resp.StatusCode, string(body))
	}
	var out struct {
		OK     bool     `json:"ok"`
		Result []Update `json:"result"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.post(ctx, "/deleteWebhook?drop_pending_updates=true", map[string]any{})
}

func chatField(chat any) string {
	switch v := chat.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (c *Client) post(ctx context.Context, method string, payload any) error {
	_, err := c.postWithResult(ctx, method, payload)
	return err
}

func (c *Client) postWithResult(ctx context.Context, method string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method)
}

func (c *Client) postMultipart(ctx context.Context, method string, fileField string, fileName string, data []byte, fields map[string]string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		_ = w.WriteField(k, v)
	}
	fw, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	_, err = c.do(req, method)
	return err
}

func (c *Client) do(req *http.Request, method string) ([]byte, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("telegram api %s status %d: %s", method, resp.StatusCode, string(body))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Ok     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Ok {
		return wrapper.Result, nil
	}
	return body, nil
}
