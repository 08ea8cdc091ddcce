package session

import (
	"github.com/google/uuid"

	"moviepost-tg-bot/internal/media"
)

// State is a closed set of conversation states. Each variant carries
// exactly the data it needs, so an illegal combination (a link URL without
// its pending label, say) cannot be represented.
type State interface {
	conversationState()
}

type (
	AwaitingSelection    struct{}
	ManualTitle          struct{}
	ManualYear           struct{}
	ManualOverview       struct{}
	ManualGenres         struct{}
	ManualRating         struct{}
	ManualPoster         struct{}
	CollectingLanguage   struct{}
	CollectingQuality    struct{}
	AwaitingLinkDecision struct{}
	CollectingLinkLabel  struct{}
	CollectingLinkURL    struct{ Label string }
	Terminal             struct{}
)

func (AwaitingSelection) conversationState()    {}
func (ManualTitle) conversationState()          {}
func (ManualYear) conversationState()           {}
func (ManualOverview) conversationState()       {}
func (ManualGenres) conversationState()         {}
func (ManualRating) conversationState()         {}
func (ManualPoster) conversationState()         {}
func (CollectingLanguage) conversationState()   {}
func (CollectingQuality) conversationState()    {}
func (AwaitingLinkDecision) conversationState() {}
func (CollectingLinkLabel) conversationState()  {}
func (CollectingLinkURL) conversationState()    {}
func (Terminal) conversationState()             {}

// Bundle holds the generated artifacts. Image is treated as immutable;
// consumers wrap their own readers around it rather than sharing a cursor.
type Bundle struct {
	Caption string
	HTML    string
	Image   []byte
}

// Session tracks one user's conversation. Token changes on every fresh
// start, so buttons from a superseded session can be told apart from the
// live one.
type Session struct {
	Owner     int64
	ChatID    int64
	Token     string
	State     State
	Record    media.Record
	Links     []media.Link
	Bundle    *Bundle
	Generated bool
}

func New(owner int64, chatID int64, state State) *Session {
	return &Session{
		Owner:  owner,
		ChatID: chatID,
		Token:  uuid.NewString()[:8],
		State:  state,
	}
}
