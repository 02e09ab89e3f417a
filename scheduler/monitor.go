package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/shopspring/decimal"

	"pricewatch_backend/models"
	"pricewatch_backend/services"
)

// Task names used as gocron job tags
const (
	TaskPriceCheck  = "price-check"
	TaskHealthCheck = "health-check"
	TaskQuotaReset  = "quota-reset"
)

// Config holds the scheduler's typed settings
type Config struct {
	Enabled             bool
	PriceCheckInterval  time.Duration
	HealthCheckInterval time.Duration
	QuotaResetInterval  time.Duration
	BatchSize           int
	BatchDelay          time.Duration
	QuoteTimeout        time.Duration
}

// ConfigUpdate carries a partial configuration change; nil fields keep
// their current values.
type ConfigUpdate struct {
	Enabled             *bool          `json:"enabled,omitempty"`
	PriceCheckInterval  *time.Duration `json:"price_check_interval,omitempty"`
	HealthCheckInterval *time.Duration `json:"health_check_interval,omitempty"`
	QuotaResetInterval  *time.Duration `json:"quota_reset_interval,omitempty"`
	BatchSize           *int           `json:"batch_size,omitempty"`
	BatchDelay          *time.Duration `json:"batch_delay,omitempty"`
	QuoteTimeout        *time.Duration `json:"quote_timeout,omitempty"`
}

// Status reports the scheduler's current state
type Status struct {
	IsRunning        bool     `json:"is_running"`
	ActiveTasks      []string `json:"active_tasks"`
	Users            int      `json:"users"`
	MonitoredTickers int      `json:"monitored_tickers"`
}

// MonitorScheduler owns the three recurring monitoring tasks. It is
// constructed once by the composition root and injected into request
// handlers; there is no process-wide instance.
//
// Each job runs in singleton mode: a tick is skipped while the previous
// run of the same task is still executing, so a slow batch loop cannot
// pile up overlapping price checks.
type MonitorScheduler struct {
	registry *services.PortfolioRegistry
	ledger   *services.PositionLedger
	quotes   services.QuoteSource
	sink     services.NotificationSink

	mu      sync.Mutex
	cfg     Config
	cron    *gocron.Scheduler
	running bool

	// set when a price check was skipped at the quota gate; cleared by
	// the quota-reset task after resumption notifications go out
	limitSeen bool
}

// NewMonitorScheduler wires the scheduler to its collaborators
func NewMonitorScheduler(cfg Config, registry *services.PortfolioRegistry, ledger *services.PositionLedger, quotes services.QuoteSource, sink services.NotificationSink) *MonitorScheduler {
	return &MonitorScheduler{
		registry: registry,
		ledger:   ledger,
		quotes:   quotes,
		sink:     sink,
		cfg:      cfg,
	}
}

// Start registers and activates the three recurring tasks. Calling Start
// on a running scheduler is a no-op.
func (m *MonitorScheduler) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		log.Println("Scheduler already running")
		return
	}

	cron := gocron.NewScheduler(time.UTC)

	if _, err := cron.Every(m.cfg.PriceCheckInterval).Tag(TaskPriceCheck).SingletonMode().Do(m.performPriceCheck); err != nil {
		log.Printf("Error registering price-check task: %v", err)
	}
	if _, err := cron.Every(m.cfg.HealthCheckInterval).Tag(TaskHealthCheck).SingletonMode().Do(m.performHealthCheck); err != nil {
		log.Printf("Error registering health-check task: %v", err)
	}
	if _, err := cron.Every(m.cfg.QuotaResetInterval).Tag(TaskQuotaReset).SingletonMode().Do(m.performQuotaResetCheck); err != nil {
		log.Printf("Error registering quota-reset task: %v", err)
	}

	cron.StartAsync()
	m.cron = cron
	m.running = true
	log.Printf("Scheduler started (price-check %v, health-check %v, quota-reset %v)",
		m.cfg.PriceCheckInterval, m.cfg.HealthCheckInterval, m.cfg.QuotaResetInterval)
}

// Stop cancels all scheduled triggers and releases the task handles.
// In-flight work is not aborted. Calling Stop on a stopped scheduler is
// a no-op.
func (m *MonitorScheduler) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.cron.Stop()
	m.cron = nil
	m.running = false
	log.Println("Scheduler stopped")
}

// IsRunning reports whether the tasks are active
func (m *MonitorScheduler) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// GetStatus returns the running state and registry statistics
func (m *MonitorScheduler) GetStatus() Status {
	m.mu.Lock()
	running := m.running
	cron := m.cron
	m.mu.Unlock()

	tasks := make([]string, 0, 3)
	if running && cron != nil {
		for _, job := range cron.Jobs() {
			tasks = append(tasks, job.Tags()...)
		}
	}

	return Status{
		IsRunning:        running,
		ActiveTasks:      tasks,
		Users:            m.registry.UserCount(),
		MonitoredTickers: len(m.registry.AllMonitoredTickers()),
	}
}

// GetConfig returns a copy of the current configuration
func (m *MonitorScheduler) GetConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// UpdateConfig stops the scheduler if running, merges the partial update,
// and restarts only if scheduling remains enabled.
func (m *MonitorScheduler) UpdateConfig(update ConfigUpdate) Config {
	m.Stop()

	m.mu.Lock()
	if update.Enabled != nil {
		m.cfg.Enabled = *update.Enabled
	}
	if update.PriceCheckInterval != nil && *update.PriceCheckInterval > 0 {
		m.cfg.PriceCheckInterval = *update.PriceCheckInterval
	}
	if update.HealthCheckInterval != nil && *update.HealthCheckInterval > 0 {
		m.cfg.HealthCheckInterval = *update.HealthCheckInterval
	}
	if update.QuotaResetInterval != nil && *update.QuotaResetInterval > 0 {
		m.cfg.QuotaResetInterval = *update.QuotaResetInterval
	}
	if update.BatchSize != nil && *update.BatchSize >= 1 {
		m.cfg.BatchSize = *update.BatchSize
	}
	if update.BatchDelay != nil && *update.BatchDelay >= 0 {
		m.cfg.BatchDelay = *update.BatchDelay
	}
	if update.QuoteTimeout != nil && *update.QuoteTimeout > 0 {
		m.cfg.QuoteTimeout = *update.QuoteTimeout
	}
	enabled := m.cfg.Enabled
	cfg := m.cfg
	m.mu.Unlock()

	if enabled {
		m.Start()
	}
	return cfg
}

// performPriceCheck runs one full price-check cycle: quota gate, batched
// fetch of the monitored universe, then per-user alert evaluation and
// dispatch.
func (m *MonitorScheduler) performPriceCheck() {
	status := m.quotes.GetAPIStatus()
	if status.IsLimitReached {
		m.mu.Lock()
		m.limitSeen = true
		m.mu.Unlock()
		log.Printf("Price check skipped: API quota reached (%d/%d)", status.Used, status.Limit)
		return
	}

	tickers := m.registry.AllMonitoredTickers()
	if len(tickers) == 0 {
		return
	}

	prices := m.fetchPricesInBatches(tickers)
	if len(prices) == 0 {
		log.Println("Price check produced no prices, skipping evaluation")
		return
	}

	for _, userID := range m.registry.ActiveUsers() {
		m.evaluateUser(userID, prices)
	}
}

// fetchPricesInBatches partitions tickers into fixed-size batches and
// fetches them sequentially with a fixed delay in between, to respect
// the upstream rate limit. A failed batch is logged and skipped; the
// cycle continues with whatever was retrieved.
func (m *MonitorScheduler) fetchPricesInBatches(tickers []string) map[string]decimal.Decimal {
	m.mu.Lock()
	batchSize := m.cfg.BatchSize
	batchDelay := m.cfg.BatchDelay
	quoteTimeout := m.cfg.QuoteTimeout
	m.mu.Unlock()

	prices := make(map[string]decimal.Decimal, len(tickers))
	for i := 0; i < len(tickers); i += batchSize {
		end := i + batchSize
		if end > len(tickers) {
			end = len(tickers)
		}
		batch := tickers[i:end]

		ctx, cancel := context.WithTimeout(context.Background(), quoteTimeout)
		quotes, err := m.quotes.GetBatchQuotes(ctx, batch)
		cancel()
		if err != nil {
			log.Printf("Error fetching quote batch %v: %v", batch, err)
		} else {
			for ticker, quote := range quotes {
				prices[ticker] = quote.Price
			}
		}

		if end < len(tickers) {
			time.Sleep(batchDelay)
		}
	}

	log.Printf("Price check fetched %d/%d tickers", len(prices), len(tickers))
	return prices
}

// evaluateUser checks one user's positions against the merged price map
// and dispatches any new alerts. Only positions whose ticker is in the
// user's own portfolio are checked.
func (m *MonitorScheduler) evaluateUser(userID string, prices map[string]decimal.Decimal) {
	positions, err := m.ledger.GetUserPositions(userID)
	if err != nil {
		log.Printf("Error loading positions for user %s: %v", userID, err)
		return
	}
	if len(positions) == 0 {
		return
	}

	inPortfolio := make(map[string]bool)
	for _, t := range m.registry.GetPortfolio(userID) {
		inPortfolio[t] = true
	}
	checked := positions[:0]
	for _, p := range positions {
		if inPortfolio[p.Ticker] {
			checked = append(checked, p)
		}
	}

	alerts := m.ledger.CheckPositionAlerts(checked, prices)
	for _, alert := range alerts {
		if err := m.sink.Send(services.AlertNotification(alert)); err != nil {
			log.Printf("Error dispatching alert %s: %v", alert.ID, err)
			continue
		}
		m.ledger.MarkAlertNotified(alert.ID)
	}

	if len(alerts) > 0 {
		log.Printf("Dispatched %d alerts for user %s", len(alerts), userID)
	}
}

// performHealthCheck probes the quote provider and notifies every active
// user while the service is unhealthy. The notification repeats on each
// tick for as long as the condition holds.
func (m *MonitorScheduler) performHealthCheck() {
	m.mu.Lock()
	quoteTimeout := m.cfg.QuoteTimeout
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), quoteTimeout)
	health := m.quotes.HealthCheck(ctx)
	cancel()

	switch health.Status {
	case models.HealthStatusUnhealthy:
		log.Printf("Quote provider unhealthy: %s", health.Message)
		for _, userID := range m.registry.ActiveUsers() {
			if err := m.sink.Send(services.ServiceStatusNotification(userID, services.ServiceStatusPaused)); err != nil {
				log.Printf("Error sending service-paused notification to %s: %v", userID, err)
			}
		}
	case models.HealthStatusDegraded:
		log.Printf("Quote provider degraded: %s", health.Message)
	}
}

// performQuotaResetCheck sends resumption notifications once the quota
// window has rolled over after a period at the limit.
func (m *MonitorScheduler) performQuotaResetCheck() {
	status := m.quotes.GetAPIStatus()

	m.mu.Lock()
	limitSeen := m.limitSeen
	if status.IsLimitReached {
		m.limitSeen = true
	} else if limitSeen {
		m.limitSeen = false
	}
	m.mu.Unlock()

	if status.IsLimitReached || !limitSeen {
		return
	}

	log.Println("API quota has reset, sending resumption notifications")
	for _, userID := range m.registry.ActiveUsers() {
		if err := m.sink.Send(services.ServiceStatusNotification(userID, services.ServiceStatusResumed)); err != nil {
			log.Printf("Error sending service-resumed notification to %s: %v", userID, err)
		}
	}
}
