package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddPortfolio_NormalizesAndReplaces(t *testing.T) {
	registry := NewPortfolioRegistry()

	registry.AddPortfolio("u1", []string{"aapl", " Msft ", "AAPL"})
	assert.Equal(t, []string{"AAPL", "MSFT"}, registry.GetPortfolio("u1"))

	// A second add fully replaces, it never merges
	registry.AddPortfolio("u1", []string{"goog"})
	assert.Equal(t, []string{"GOOG"}, registry.GetPortfolio("u1"))

	// Update has identical replace semantics
	registry.UpdatePortfolio("u1", []string{"tsla", "goog"})
	assert.Equal(t, []string{"GOOG", "TSLA"}, registry.GetPortfolio("u1"))
}

func TestAllMonitoredTickers_UnionAcrossUsers(t *testing.T) {
	registry := NewPortfolioRegistry()

	registry.AddPortfolio("u1", []string{"AAPL", "MSFT"})
	registry.AddPortfolio("u2", []string{"msft", "GOOG"})
	registry.AddPortfolio("u3", []string{"aapl"})

	assert.Equal(t, []string{"AAPL", "GOOG", "MSFT"}, registry.AllMonitoredTickers())

	registry.RemovePortfolio("u2")
	assert.Equal(t, []string{"AAPL", "MSFT"}, registry.AllMonitoredTickers())

	registry.RemovePortfolio("u1")
	registry.RemovePortfolio("u3")
	assert.Empty(t, registry.AllMonitoredTickers())
}

func TestAllMonitoredTickers_OrderIndependent(t *testing.T) {
	a := NewPortfolioRegistry()
	a.AddPortfolio("u1", []string{"AAPL"})
	a.AddPortfolio("u2", []string{"MSFT"})
	a.RemovePortfolio("u1")
	a.AddPortfolio("u1", []string{"AAPL"})

	b := NewPortfolioRegistry()
	b.AddPortfolio("u2", []string{"MSFT"})
	b.AddPortfolio("u1", []string{"AAPL"})

	assert.Equal(t, b.AllMonitoredTickers(), a.AllMonitoredTickers())
}

func TestActiveUsers_SkipsEmptyPortfolios(t *testing.T) {
	registry := NewPortfolioRegistry()

	registry.AddPortfolio("u1", []string{"AAPL"})
	registry.AddPortfolio("u2", []string{})

	assert.Equal(t, []string{"u1"}, registry.ActiveUsers())
	assert.Equal(t, 2, registry.UserCount())

	registry.RemovePortfolio("missing") // removing an unknown user is a no-op
	assert.Equal(t, 2, registry.UserCount())
}
