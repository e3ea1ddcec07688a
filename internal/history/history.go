package history

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/pep299/news-analyzer/internal/model"
)

// Common history errors
var (
	ErrNotFound = errors.New("history entry not found")
	ErrNoID     = errors.New("analysis result has no id")
)

// Entry is one remembered analysis
type Entry struct {
	Result      model.AnalysisResult `json:"result"`
	CreatedAt   time.Time            `json:"created_at"`
	ExpiresAt   time.Time            `json:"expires_at"`
	AccessedAt  time.Time            `json:"accessed_at"`
	AccessCount int                  `json:"access_count"`
}

// Stats represents history statistics
type Stats struct {
	TotalEntries   int           `json:"total_entries"`
	Capacity       int           `json:"capacity"`
	HitCount       int64         `json:"hit_count"`
	MissCount      int64         `json:"miss_count"`
	HitRate        float64       `json:"hit_rate"`
	MemoryUsage    int64         `json:"memory_usage_bytes"`
	OldestEntry    time.Time     `json:"oldest_entry"`
	AverageAge     time.Duration `json:"average_age"`
	ExpiredEntries int           `json:"expired_entries"`
	Evictions      int64         `json:"evictions"`
}

// Store keeps the most recent analyses in memory. At most size entries are
// held; adding beyond that evicts the oldest. A URL appears at most once,
// a new analysis of the same URL replaces the previous one.
type Store struct {
	entries   map[string]*Entry
	mutex     sync.RWMutex
	size      int
	ttl       time.Duration
	hitCount  int64
	missCount int64
	evictions int64
	now       func() time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewStore creates a history holding up to size entries for ttl each.
// ttl <= 0 keeps entries until they are evicted.
func NewStore(size int, ttl time.Duration) *Store {
	if size < 1 {
		size = 1
	}
	s := &Store{
		entries: make(map[string]*Entry),
		size:    size,
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if ttl > 0 {
		go s.cleanup(cleanupInterval(ttl))
	}

	return s
}

// Close stops the cleanup goroutine
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Add remembers a completed analysis
func (s *Store) Add(ctx context.Context, result model.AnalysisResult) error {
	if result.ID == "" {
		return ErrNoID
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for id, entry := range s.entries {
		if entry.Result.Article.URL == result.Article.URL {
			delete(s.entries, id)
		}
	}

	now := s.now()
	entry := &Entry{
		Result:     result,
		CreatedAt:  now,
		AccessedAt: now,
	}
	if s.ttl > 0 {
		entry.ExpiresAt = now.Add(s.ttl)
	}
	s.entries[result.ID] = entry

	for len(s.entries) > s.size {
		s.evictOldest()
	}
	return nil
}

// Get retrieves an analysis by id
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.entries[id]
	if !exists {
		s.missCount++
		return nil, ErrNotFound
	}

	// Check if expired
	if s.expired(entry, s.now()) {
		delete(s.entries, id)
		s.missCount++
		return nil, ErrNotFound
	}

	entry.AccessedAt = s.now()
	entry.AccessCount++
	s.hitCount++

	copied := *entry
	return &copied, nil
}

// Recent returns the live entries, newest first
func (s *Store) Recent(ctx context.Context) []Entry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := s.now()
	recent := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if !s.expired(entry, now) {
			recent = append(recent, *entry)
		}
	}

	sort.Slice(recent, func(i, j int) bool {
		if recent[i].CreatedAt.Equal(recent[j].CreatedAt) {
			return recent[i].Result.ID < recent[j].Result.ID
		}
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	return recent
}

// Delete removes an entry
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.entries[id]; !exists {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// Clear removes all entries and resets the counters
func (s *Store) Clear(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries = make(map[string]*Entry)
	s.hitCount = 0
	s.missCount = 0
	s.evictions = 0
	return nil
}

// Stats returns history statistics
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := &Stats{
		TotalEntries: len(s.entries),
		Capacity:     s.size,
		HitCount:     s.hitCount,
		MissCount:    s.missCount,
		Evictions:    s.evictions,
	}

	if s.hitCount+s.missCount > 0 {
		stats.HitRate = float64(s.hitCount) / float64(s.hitCount+s.missCount)
	}

	// Calculate memory usage (rough estimate)
	for _, entry := range s.entries {
		data, _ := json.Marshal(entry)
		stats.MemoryUsage += int64(len(data))
	}

	var totalAge time.Duration
	now := s.now()
	for _, entry := range s.entries {
		if stats.OldestEntry.IsZero() || entry.CreatedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.CreatedAt
		}
		totalAge += now.Sub(entry.CreatedAt)
		if s.expired(entry, now) {
			stats.ExpiredEntries++
		}
	}

	if len(s.entries) > 0 {
		stats.AverageAge = totalAge / time.Duration(len(s.entries))
	}

	return stats, nil
}

// evictOldest must be called with the write lock held
func (s *Store) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, entry := range s.entries {
		if oldestID == "" || entry.CreatedAt.Before(oldest) ||
			(entry.CreatedAt.Equal(oldest) && id < oldestID) {
			oldestID = id
			oldest = entry.CreatedAt
		}
	}
	delete(s.entries, oldestID)
	s.evictions++
}

func (s *Store) expired(entry *Entry, now time.Time) bool {
	return !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt)
}

// cleanup removes expired entries periodically
func (s *Store) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stop:
			return
		}
	}
}

// cleanupExpired removes expired entries
func (s *Store) cleanupExpired() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	for id, entry := range s.entries {
		if s.expired(entry, now) {
			delete(s.entries, id)
		}
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
