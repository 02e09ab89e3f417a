package services

import (
	"sort"
	"strings"
	"sync"
)

// PortfolioRegistry holds the per-user sets of tickers to poll. The union
// of all sets is the polling universe for the scheduler's price checks.
// It is read by the background ticks and written by request handlers, so
// every access goes through the mutex.
type PortfolioRegistry struct {
	mu         sync.RWMutex
	portfolios map[string]map[string]bool // userID -> ticker set
}

// NewPortfolioRegistry creates an empty registry
func NewPortfolioRegistry() *PortfolioRegistry {
	return &PortfolioRegistry{
		portfolios: make(map[string]map[string]bool),
	}
}

// normalizeTicker upper-cases and trims a ticker symbol
func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// AddPortfolio registers (or fully replaces) a user's ticker set
func (r *PortfolioRegistry) AddPortfolio(userID string, tickers []string) {
	set := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		if n := normalizeTicker(t); n != "" {
			set[n] = true
		}
	}

	r.mu.Lock()
	r.portfolios[userID] = set
	r.mu.Unlock()
}

// UpdatePortfolio fully replaces a user's ticker set. Same semantics as
// AddPortfolio: both replace, neither merges.
func (r *PortfolioRegistry) UpdatePortfolio(userID string, tickers []string) {
	r.AddPortfolio(userID, tickers)
}

// RemovePortfolio drops a user's ticker set
func (r *PortfolioRegistry) RemovePortfolio(userID string) {
	r.mu.Lock()
	delete(r.portfolios, userID)
	r.mu.Unlock()
}

// GetPortfolio returns the user's tickers, sorted. Empty slice when the
// user has no portfolio.
func (r *PortfolioRegistry) GetPortfolio(userID string) []string {
	r.mu.RLock()
	set := r.portfolios[userID]
	tickers := make([]string, 0, len(set))
	for t := range set {
		tickers = append(tickers, t)
	}
	r.mu.RUnlock()

	sort.Strings(tickers)
	return tickers
}

// AllMonitoredTickers returns the deduplicated union of every user's
// tickers, sorted so batches are issued in a stable partition order.
func (r *PortfolioRegistry) AllMonitoredTickers() []string {
	union := make(map[string]bool)

	r.mu.RLock()
	for _, set := range r.portfolios {
		for t := range set {
			union[t] = true
		}
	}
	r.mu.RUnlock()

	tickers := make([]string, 0, len(union))
	for t := range union {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// ActiveUsers returns the IDs of users with a non-empty portfolio
func (r *PortfolioRegistry) ActiveUsers() []string {
	r.mu.RLock()
	users := make([]string, 0, len(r.portfolios))
	for userID, set := range r.portfolios {
		if len(set) > 0 {
			users = append(users, userID)
		}
	}
	r.mu.RUnlock()

	sort.Strings(users)
	return users
}

// UserCount returns the number of registered users
func (r *PortfolioRegistry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.portfolios)
}
