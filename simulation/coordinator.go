package simulation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ticketpool/ticketpool-simulation-go/ticketpool"
)

const (
	defaultRecordTimeout = 5 * time.Second
	vendorIDPrefix       = "vendor-"
	customerIDPrefix     = "customer-"
	metricRunsStarted    = "ticketsim_runs_started_total"
	metricRunsFinished   = "ticketsim_runs_finished_total"
	metricRunDuration    = "ticketsim_run_duration_seconds"
	metricAgentFailures  = "ticketsim_agent_failures_total"
	metricSinkFailures   = "ticketsim_sink_failures_total"
	labelOutcome         = "outcome"
	labelKind            = "kind"
	logMsgRunStarted     = "simulation started"
	logMsgRunFinished    = "simulation finished"
	logMsgStatistics     = "simulation statistics"
	logMsgStopRequested  = "simulation stop requested"
	logMsgRunReset       = "simulation reset"
	logMsgAgentFailed    = "agent failed, stopping simulation"
	logMsgRecordFailed   = "recording run summary failed"
	logMsgSinkFailed     = "run event sink panicked, event dropped"
	logAttrRunID         = "run_id"
	logAttrVendors       = "vendors"
	logAttrCustomers     = "customers"
	logAttrVIPCustomers  = "vip_customers"
	logAttrTotalTickets  = "total_tickets"
	logAttrCapacity      = "max_capacity"
	logAttrAvailable     = "available"
	logAttrProduced      = "produced"
	logAttrSold          = "sold"
	logAttrComplete      = "complete"
	logAttrOutcome       = "outcome"
	logAttrDurationMS    = "duration_ms"
	logAttrError         = "error"
	logAttrKind          = "kind"
	logAttrPanic         = "panic"
)

var (
	// ErrInvalidState is returned when Start or Stop is called in a state that does not allow it.
	ErrInvalidState = errors.New("operation not allowed in current coordinator state")

	// ErrResetWhileRunning is returned when Reset is called before the agents have stopped.
	ErrResetWhileRunning = errors.New("reset not allowed while simulation is running")

	// ErrAgentFailed is reported by Err when an agent panicked and the run was stopped because of it.
	ErrAgentFailed = errors.New("simulation agent failed")
)

// State of a Coordinator.
type State int

const (
	StateIdle    State = iota // No run in progress; a completed run's pool stays readable.
	StateRunning              // Agents are active.
	StateStopped              // Agents were stopped before completion; Reset is required.
)

// String returns "idle", "running" or "stopped".
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its string form.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RunStatus is a consistent view of the coordinator.
type RunStatus struct {
	State      State
	RunID      uuid.UUID
	Statistics ticketpool.Statistics
	Err        error
}

// Coordinator owns the pool and the agents of at most one run at a time.
// All methods are safe for concurrent use.
type Coordinator struct {
	mu      sync.Mutex
	state   State
	current *run
	err     error

	logger           Logger
	metricsCollector MetricsCollector
	sinkProvider     RunSinkProvider
	recorder         RunRecorder
	reporter         StatisticsReporter
	recordTimeout    time.Duration
	agentPorts       func(pool *ticketpool.Pool) (Producer, Consumer)
}

// NewCoordinator creates an idle Coordinator.
func NewCoordinator(options ...CoordinatorOption) (*Coordinator, error) {
	c := &Coordinator{
		state:         StateIdle,
		recordTimeout: defaultRecordTimeout,
		agentPorts:    poolPorts,
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Start validates cfg, creates a fresh pool and launches all agents.
// It is only allowed in StateIdle. An invalid cfg is rejected before anything is created.
func (c *Coordinator) Start(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return fmt.Errorf("%w: start requires %s, coordinator is %s", ErrInvalidState, StateIdle, c.state)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	r, err := c.newRun(cfg)
	if err != nil {
		return err
	}

	c.current = r
	c.state = StateRunning
	c.err = nil

	r.launch()
	go c.monitor(r)

	c.incrementCounter(metricRunsStarted, nil)
	c.logInfo(logMsgRunStarted,
		logAttrRunID, r.id.String(),
		logAttrTotalTickets, cfg.TotalTickets,
		logAttrCapacity, cfg.MaxTicketCapacity,
		logAttrVendors, cfg.Vendors,
		logAttrCustomers, cfg.Customers,
		logAttrVIPCustomers, cfg.VIPCustomers)

	return nil
}

// Stop signals every agent to stop and waits until all of them have returned.
// It is only allowed in StateRunning. If the run completes on its own in the meantime,
// the coordinator ends up in StateIdle instead of StateStopped.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if c.state != StateRunning {
		state := c.state
		c.mu.Unlock()

		return fmt.Errorf("%w: stop requires %s, coordinator is %s", ErrInvalidState, StateRunning, state)
	}

	r := c.current
	c.mu.Unlock()

	c.logInfo(logMsgStopRequested, logAttrRunID, r.id.String())
	r.requestStop()
	<-r.done

	return nil
}

// Reset discards the pool and the agents of the last run and returns to StateIdle.
// It is rejected while agents are running.
func (c *Coordinator) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning {
		return ErrResetWhileRunning
	}

	if c.current != nil {
		c.logInfo(logMsgRunReset, logAttrRunID, c.current.id.String())
	}

	c.current = nil
	c.state = StateIdle
	c.err = nil

	return nil
}

// Statistics returns the statistics of the current pool, or zero values when there is none.
func (c *Coordinator) Statistics() ticketpool.Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return ticketpool.Statistics{}
	}

	return c.current.pool.Statistics()
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Err returns the failure that ended the last run, if any. It is cleared by Start and Reset.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// RunID returns the id of the current run, or uuid.Nil when there is none.
func (c *Coordinator) RunID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return uuid.Nil
	}

	return c.current.id
}

// Status returns state, run id, statistics and error as one consistent view.
func (c *Coordinator) Status() RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := RunStatus{State: c.state, Err: c.err}

	if c.current != nil {
		status.RunID = c.current.id
		status.Statistics = c.current.pool.Statistics()
	}

	return status
}

// Done returns a channel that is closed when the current run has ended and its agents have returned.
// Without a run the channel is already closed.
func (c *Coordinator) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return closedChannel
	}

	return c.current.done
}

// Wait blocks until the current run has ended or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	select {
	case <-c.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) newRun(cfg Config) (*run, error) {
	r := &run{
		id:            uuid.New(),
		cfg:           cfg,
		startedAt:     time.Now(),
		stopRequested: make(chan struct{}),
		completed:     make(chan struct{}),
		failures:      make(chan error, cfg.Vendors+cfg.Customers),
		done:          make(chan struct{}),
	}

	watcher := &completionWatcher{coordinator: c, run: r}
	if c.sinkProvider != nil {
		watcher.next = c.sinkProvider.SinkForRun(r.id)
	}

	poolOptions := []ticketpool.Option{ticketpool.WithEventSink(watcher)}
	if c.metricsCollector != nil {
		poolOptions = append(poolOptions, ticketpool.WithMetrics(c.metricsCollector))
	}

	pool, err := ticketpool.NewPool(cfg.MaxTicketCapacity, cfg.TotalTickets, poolOptions...)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	r.pool = pool
	producer, consumer := c.agentPorts(pool)

	for i := 1; i <= cfg.Vendors; i++ {
		r.vendors = append(r.vendors,
			NewVendorAgent(vendorIDPrefix+strconv.Itoa(i), cfg.VendorInterval(), producer, c.logger))
	}

	for i := 1; i <= cfg.Customers; i++ {
		vip := i <= cfg.VIPCustomers
		r.customers = append(r.customers,
			NewCustomerAgent(customerIDPrefix+strconv.Itoa(i), cfg.CustomerInterval(), vip, consumer, c.logger))
	}

	return r, nil
}

// monitor reports statistics until the run ends, then stops the agents and finalizes the run.
func (c *Coordinator) monitor(r *run) {
	ticker := time.NewTicker(r.cfg.ReportEvery())
	defer ticker.Stop()

	outcome, failure := c.awaitEnd(r, ticker)

	r.cancel()
	r.wg.Wait()

	if failure == nil {
		failure = r.pendingFailure()
		if failure != nil {
			outcome = OutcomeFailed
		}
	}

	if failure != nil {
		c.incrementCounter(metricAgentFailures, nil)
		c.logError(logMsgAgentFailed, logAttrRunID, r.id.String(), logAttrError, failure.Error())
	}

	summary := r.summarize(outcome, failure, time.Now())

	c.mu.Lock()
	if outcome == OutcomeCompleted {
		c.state = StateIdle
	} else {
		c.state = StateStopped
	}
	c.err = failure
	c.mu.Unlock()

	c.reportStatistics(r.id, summary.Statistics)
	c.recordFinished(summary)

	close(r.done)
}

func (c *Coordinator) awaitEnd(r *run, ticker *time.Ticker) (Outcome, error) {
	for {
		select {
		case <-r.stopRequested:
			return OutcomeStopped, nil

		case err := <-r.failures:
			return OutcomeFailed, err

		case <-r.completed:
			return OutcomeCompleted, nil

		case <-ticker.C:
			stats := r.pool.Statistics()
			c.reportStatistics(r.id, stats)

			if stats.IsComplete {
				return OutcomeCompleted, nil
			}
		}
	}
}

func (c *Coordinator) reportStatistics(runID uuid.UUID, stats ticketpool.Statistics) {
	c.logDebug(logMsgStatistics,
		logAttrRunID, runID.String(),
		logAttrAvailable, stats.Available,
		logAttrProduced, stats.Produced,
		logAttrSold, stats.Sold,
		logAttrComplete, stats.IsComplete)

	if c.reporter != nil {
		c.reporter.ReportStatistics(runID, stats)
	}
}

func (c *Coordinator) recordFinished(summary RunSummary) {
	labels := map[string]string{labelOutcome: string(summary.Outcome)}
	c.incrementCounter(metricRunsFinished, labels)

	if c.metricsCollector != nil {
		c.metricsCollector.RecordDuration(metricRunDuration, summary.Duration(), labels)
	}

	c.logInfo(logMsgRunFinished,
		logAttrRunID, summary.RunID.String(),
		logAttrOutcome, string(summary.Outcome),
		logAttrProduced, summary.Statistics.Produced,
		logAttrSold, summary.Statistics.Sold,
		logAttrDurationMS, summary.Duration().Milliseconds())

	if c.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.recordTimeout)
	defer cancel()

	if err := c.recorder.RecordRunFinished(ctx, summary); err != nil {
		c.logError(logMsgRecordFailed, logAttrRunID, summary.RunID.String(), logAttrError, err.Error())
	}
}

func (c *Coordinator) incrementCounter(metric string, labels map[string]string) {
	if c.metricsCollector != nil {
		c.metricsCollector.IncrementCounter(metric, labels)
	}
}

func (c *Coordinator) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Coordinator) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Coordinator) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Coordinator) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}

var closedChannel = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}()

// run is one pool plus the agents working on it.
type run struct {
	id        uuid.UUID
	cfg       Config
	pool      *ticketpool.Pool
	vendors   []*VendorAgent
	customers []*CustomerAgent
	startedAt time.Time

	cancel        context.CancelFunc
	wg            sync.WaitGroup
	stopOnce      sync.Once
	stopRequested chan struct{}
	completeOnce  sync.Once
	completed     chan struct{}
	failures      chan error // buffered for one failure per agent
	done          chan struct{}
}

func (r *run) launch() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, vendor := range r.vendors {
		r.spawn(ctx, vendor.ID(), vendor.Run)
	}

	for _, customer := range r.customers {
		r.spawn(ctx, customer.ID(), customer.Run)
	}
}

// spawn runs loop in its own goroutine and turns a panic into a failure report.
func (r *run) spawn(ctx context.Context, agentID string, loop func(context.Context)) {
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer func() {
			if recovered := recover(); recovered != nil {
				r.failures <- fmt.Errorf("%w: %s: %v", ErrAgentFailed, agentID, recovered)
			}
		}()

		loop(ctx)
	}()
}

func (r *run) requestStop() {
	r.stopOnce.Do(func() { close(r.stopRequested) })
}

func (r *run) markCompleted() {
	r.completeOnce.Do(func() { close(r.completed) })
}

// pendingFailure returns a failure that was reported while the run was already ending.
func (r *run) pendingFailure() error {
	select {
	case err := <-r.failures:
		return err
	default:
		return nil
	}
}

func (r *run) summarize(outcome Outcome, failure error, finishedAt time.Time) RunSummary {
	agents := make([]AgentSummary, 0, len(r.vendors)+len(r.customers))
	for _, vendor := range r.vendors {
		agents = append(agents, vendor.Summary())
	}

	for _, customer := range r.customers {
		agents = append(agents, customer.Summary())
	}

	summary := RunSummary{
		RunID:      r.id,
		Config:     r.cfg,
		Outcome:    outcome,
		StartedAt:  r.startedAt,
		FinishedAt: finishedAt,
		Statistics: r.pool.Statistics(),
		Agents:     agents,
	}

	if failure != nil {
		summary.Error = failure.Error()
	}

	return summary
}

func poolPorts(pool *ticketpool.Pool) (Producer, Consumer) {
	return pool, pool
}

// completionWatcher forwards pool events and signals the monitor as soon as the last ticket is sold.
type completionWatcher struct {
	coordinator *Coordinator
	run         *run
	next        ticketpool.EventSink
}

func (w *completionWatcher) Emit(event ticketpool.Event) {
	w.forward(event)

	if event.Kind == ticketpool.EventKindSold && w.run.pool.Statistics().IsComplete {
		w.run.markCompleted()
	}
}

// forward passes event to the run's sink. A panicking sink costs the event, not the run.
func (w *completionWatcher) forward(event ticketpool.Event) {
	if w.next == nil {
		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			w.coordinator.incrementCounter(metricSinkFailures, map[string]string{labelKind: string(event.Kind)})
			w.coordinator.logWarn(logMsgSinkFailed,
				logAttrRunID, w.run.id.String(),
				logAttrKind, string(event.Kind),
				logAttrTicketID, event.TicketID,
				logAttrPanic, fmt.Sprint(recovered))
		}
	}()

	w.next.Emit(event)
}
