package tg

// Inbound update envelope, trimmed to what the bot handles.

type Update struct {
	UpdateID      int            `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

type User struct {
	ID int64 `json:"id"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int    `json:"file_size"`
}

type Message struct {
	MessageID int         `json:"message_id"`
	Chat      Chat        `json:"chat"`
	From      *User       `json:"from"`
	Text      string      `json:"text"`
	Photo     []PhotoSize `json:"photo"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Data    string   `json:"data"`
	Message *Message `json:"message"`
}

// LargestPhoto picks the highest-resolution size variant.
func (m *Message) LargestPhoto() string {
	best := ""
	area := 0
	for _, p := range m.Photo {
		if a := p.Width * p.Height; a >= area {
			area = a
			best = p.FileID
		}
	}
	return best
}
