package session

import (
	"strconv"

	cache "github.com/patrickmn/go-cache"
)

// Store maps user id to Session. Sessions never expire on their own; they
// live until cancelled or overwritten by a fresh start.
type Store struct {
	c *cache.Cache
}

func NewStore() *Store {
	return &Store{c: cache.New(cache.NoExpiration, 0)}
}

func (s *Store) Get(owner int64) (*Session, bool) {
	v, ok := s.c.Get(key(owner))
	if !ok {
		return nil, false
	}
	sess, ok := v.(*Session)
	return sess, ok
}

func (s *Store) Upsert(sess *Session) {
	s.c.Set(key(sess.Owner), sess, cache.NoExpiration)
}

func (s *Store) Delete(owner int64) {
	s.c.Delete(key(owner))
}

func key(owner int64) string {
	return strconv.FormatInt(owner, 10)
}
