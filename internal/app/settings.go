package app

import "sync/atomic"

// Settings holds runtime toggles shared by all requests.
type Settings struct {
	cacheEnabled atomic.Bool
}

func NewSettings(cacheEnabled bool) *Settings {
	s := &Settings{}
	s.cacheEnabled.Store(cacheEnabled)
	return s
}

func (s *Settings) CacheEnabled() bool {
	return s.cacheEnabled.Load()
}

func (s *Settings) SetCacheEnabled(enabled bool) {
	s.cacheEnabled.Store(enabled)
}
