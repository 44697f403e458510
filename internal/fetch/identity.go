package fetch

import (
	"math/rand"
	"sync"
)

// defaultUserAgents is the pool of realistic browser signatures rotated
// across requests.
var defaultUserAgents = []string{
	// Chrome (Windows)
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	// Edge
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	// Firefox
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// IdentitySelector picks the user agent for the next outgoing request.
// Implementations must be safe for concurrent use.
type IdentitySelector interface {
	UserAgent() string
}

// RandomSelector picks a user agent uniformly at random.
type RandomSelector struct {
	agents []string
}

func NewRandomSelector(agents []string) *RandomSelector {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return &RandomSelector{agents: agents}
}

func (s *RandomSelector) UserAgent() string {
	return s.agents[rand.Intn(len(s.agents))]
}

// RoundRobinSelector cycles through the pool deterministically. Used by
// tests that need a predictable identity sequence.
type RoundRobinSelector struct {
	mu     sync.Mutex
	agents []string
	next   int
}

func NewRoundRobinSelector(agents []string) *RoundRobinSelector {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return &RoundRobinSelector{agents: agents}
}

func (s *RoundRobinSelector) UserAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ua := s.agents[s.next%len(s.agents)]
	s.next++
	return ua
}
