package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	adLinkFile  = "ad_links.json"
	promoFile   = "promo_configs.json"
	channelFile = "channels.json"
)

// FileStore keeps per-user config in JSON files, loaded once at
// construction and rewritten in full on every mutation. Channel targets
// persist here the same way they do in the Mongo backend, so a restart
// never changes where /setchannel points.
type FileStore struct {
	mu       sync.Mutex
	dir      string
	adLinks  map[string]string
	promos   map[string]PromoConfig
	channels map[string]string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &FileStore{
		dir:      dir,
		adLinks:  map[string]string{},
		promos:   map[string]PromoConfig{},
		channels: map[string]string{},
	}
	if err := readJSON(filepath.Join(dir, adLinkFile), &s.adLinks); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, promoFile), &s.promos); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, channelFile), &s.channels); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) AdLink(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.adLinks[uid(userID)]
	return v, ok
}

func (s *FileStore) SetAdLink(userID int64, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adLinks[uid(userID)] = link
	return writeJSON(filepath.Join(s.dir, adLinkFile), s.adLinks)
}

func (s *FileStore) Channel(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.channels[uid(userID)]
	return v, ok
}

func (s *FileStore) SetChannel(userID int64, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[uid(userID)] = channel
	return writeJSON(filepath.Join(s.dir, channelFile), s.channels)
}

func (s *FileStore) Promo(userID int64) (PromoConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.promos[uid(userID)]
	return v, ok
}

func (s *FileStore) SetPromo(userID int64, cfg PromoConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promos[uid(userID)] = cfg
	return writeJSON(filepath.Join(s.dir, promoFile), s.promos)
}

func uid(id int64) string {
	return strconv.FormatInt(id, 10)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
