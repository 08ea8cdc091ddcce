package storage

// PromoConfig is the per-user branding block attached to channel posts.
type PromoConfig struct {
	ChannelID    string `json:"channel_id" bson:"channel_id"`
	BrandName    string `json:"brand_name" bson:"brand_name"`
	WatchLink    string `json:"watch_link" bson:"watch_link"`
	DownloadLink string `json:"download_link" bson:"download_link"`
	RequestLink  string `json:"request_link" bson:"request_link"`
}

// Store persists per-user configuration, independent of session
// lifecycle. Implementations must be safe for concurrent use.
type Store interface {
	AdLink(userID int64) (string, bool)
	SetAdLink(userID int64, link string) error
	Channel(userID int64) (string, bool)
	SetChannel(userID int64, channel string) error
	Promo(userID int64) (PromoConfig, bool)
	SetPromo(userID int64, cfg PromoConfig) error
}
