package quiz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// LeaderboardEntry is a player's best score.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Leaderboard keeps the best score per player.
type Leaderboard interface {
	// Record stores score for name unless the player already has a higher one.
	Record(ctx context.Context, name string, score int) error
	// Top returns up to limit entries, best first.
	Top(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// DemoLeaderboard is the board shown before anyone has played.
func DemoLeaderboard() []LeaderboardEntry {
	return []LeaderboardEntry{
		{Name: "Geography Master", Score: 280},
		{Name: "World Traveler", Score: 250},
		{Name: "Map Enthusiast", Score: 220},
		{Name: "Globe Surfer", Score: 190},
		{Name: "Country Explorer", Score: 160},
	}
}

// MemoryLeaderboard is an in-memory Leaderboard.
type MemoryLeaderboard struct {
	scores map[string]int
	mu     sync.RWMutex
}

// NewMemoryLeaderboard creates a leaderboard pre-filled with seed.
func NewMemoryLeaderboard(seed ...LeaderboardEntry) *MemoryLeaderboard {
	lb := &MemoryLeaderboard{scores: make(map[string]int, len(seed))}
	for _, e := range seed {
		lb.scores[e.Name] = e.Score
	}
	return lb
}

func (l *MemoryLeaderboard) Record(_ context.Context, name string, score int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("player name is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if best, ok := l.scores[name]; !ok || score > best {
		l.scores[name] = score
	}
	return nil
}

func (l *MemoryLeaderboard) Top(_ context.Context, limit int) ([]LeaderboardEntry, error) {
	l.mu.RLock()
	entries := make([]LeaderboardEntry, 0, len(l.scores))
	for name, score := range l.scores {
		entries = append(entries, LeaderboardEntry{Name: name, Score: score})
	}
	l.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
