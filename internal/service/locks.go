package service

import (
	"sort"
	"sync"
)

// resourceLocks serialises conflict-check-then-write sequences per
// resource key (room id, instructor id). Keys are acquired in sorted
// order so concurrent multi-key holders cannot deadlock.
type resourceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newResourceLocks() *resourceLocks {
	return &resourceLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *resourceLocks) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// Acquire locks every distinct key and returns the release function.
func (l *resourceLocks) Acquire(keys ...string) func() {
	distinct := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			distinct[k] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(distinct))
	for k := range distinct {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	held := make([]*sync.Mutex, 0, len(ordered))
	for _, k := range ordered {
		m := l.get(k)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func roomLockKey(roomID string) string {
	return "room:" + roomID
}

func instructorLockKey(instructorID string) string {
	if instructorID == "" {
		return ""
	}
	return "instructor:" + instructorID
}
