package storage

import (
	"testing"
)

func TestFileStoreAdLink(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, ok := s.AdLink(1); ok {
		t.Fatal("AdLink() found a value in a fresh store")
	}
	if err := s.SetAdLink(1, "https://ads.example.com/a"); err != nil {
		t.Fatalf("SetAdLink: %v", err)
	}
	if v, ok := s.AdLink(1); !ok || v != "https://ads.example.com/a" {
		t.Errorf("AdLink() = (%q, %v)", v, ok)
	}

	// A new store over the same directory must see the persisted value.
	reloaded, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore (reload): %v", err)
	}
	if v, ok := reloaded.AdLink(1); !ok || v != "https://ads.example.com/a" {
		t.Errorf("reloaded AdLink() = (%q, %v)", v, ok)
	}
}

func TestFileStorePromo(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	cfg := PromoConfig{
		ChannelID:    "@mychannel",
		BrandName:    "MoviePost",
		WatchLink:    "https://watch.example.com",
		DownloadLink: "https://dl.example.com",
		RequestLink:  "https://req.example.com",
	}
	if err := s.SetPromo(9, cfg); err != nil {
		t.Fatalf("SetPromo: %v", err)
	}

	reloaded, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore (reload): %v", err)
	}
	got, ok := reloaded.Promo(9)
	if !ok {
		t.Fatal("Promo() missing after reload")
	}
	if got != cfg {
		t.Errorf("Promo() = %+v, expected %+v", got, cfg)
	}
	if _, ok := reloaded.Promo(10); ok {
		t.Error("Promo() leaked across users")
	}
}

func TestFileStoreChannel(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.SetChannel(3, "@target"); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
	if v, ok := s.Channel(3); !ok || v != "@target" {
		t.Errorf("Channel() = (%q, %v)", v, ok)
	}

	reloaded, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore (reload): %v", err)
	}
	if v, ok := reloaded.Channel(3); !ok || v != "@target" {
		t.Errorf("reloaded Channel() = (%q, %v)", v, ok)
	}
	if _, ok := reloaded.Channel(4); ok {
		t.Error("Channel() leaked across users")
	}
}
