package simulation_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketpool/ticketpool-simulation-go/simulation"
	"github.com/ticketpool/ticketpool-simulation-go/testutil/helper"
	"github.com/ticketpool/ticketpool-simulation-go/ticketpool"
)

type runRecorderSpy struct {
	mu        sync.Mutex
	summaries []simulation.RunSummary
	err       error
}

func (s *runRecorderSpy) RecordRunFinished(_ context.Context, summary simulation.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries = append(s.summaries, summary)

	return s.err
}

func (s *runRecorderSpy) recorded() []simulation.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]simulation.RunSummary(nil), s.summaries...)
}

type runSinks struct {
	mu    sync.Mutex
	spies map[uuid.UUID]*helper.EventSinkSpy
}

func newRunSinks() *runSinks {
	return &runSinks{spies: make(map[uuid.UUID]*helper.EventSinkSpy)}
}

func (s *runSinks) SinkForRun(runID uuid.UUID) ticketpool.EventSink {
	s.mu.Lock()
	defer s.mu.Unlock()

	spy := helper.NewEventSinkSpy()
	s.spies[runID] = spy

	return spy
}

func (s *runSinks) forRun(runID uuid.UUID) *helper.EventSinkSpy {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.spies[runID]
}

func fastConfig(totalTickets, maxCapacity int) simulation.Config {
	return simulation.Config{
		TotalTickets:          totalTickets,
		MaxTicketCapacity:     maxCapacity,
		TicketReleaseRate:     1,
		CustomerRetrievalRate: 1,
		Vendors:               2,
		Customers:             3,
		VIPCustomers:          1,
		ReportInterval:        5,
	}
}

func idleAgentsConfig() simulation.Config {
	cfg := simulation.DefaultConfig()
	cfg.TicketReleaseRate = int(time.Hour.Milliseconds())
	cfg.CustomerRetrievalRate = int(time.Hour.Milliseconds())
	cfg.ReportInterval = int(time.Hour.Milliseconds())

	return cfg
}

func givenCoordinator(t *testing.T, options ...simulation.CoordinatorOption) *simulation.Coordinator {
	t.Helper()

	coordinator, err := simulation.NewCoordinator(options...)
	require.NoError(t, err, "error in arranging test data")

	t.Cleanup(func() {
		if coordinator.State() == simulation.StateRunning {
			_ = coordinator.Stop()
		}
	})

	return coordinator
}

func waitForRunEnd(t *testing.T, coordinator *simulation.Coordinator) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, coordinator.Wait(ctx), "run did not end in time")
}

func producedTicketIDs(spy *helper.EventSinkSpy) []uint64 {
	var ids []uint64
	for _, event := range spy.Events() {
		if event.Kind == ticketpool.EventKindProduced {
			ids = append(ids, event.TicketID)
		}
	}

	return ids
}

func Test_NewCoordinator_RejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name        string
		option      simulation.CoordinatorOption
		expectedErr error
	}{
		{name: "nil metrics", option: simulation.WithMetrics(nil), expectedErr: simulation.ErrNilMetricsCollector},
		{name: "nil sink provider", option: simulation.WithSinkProvider(nil), expectedErr: simulation.ErrNilSinkProvider},
		{name: "nil recorder", option: simulation.WithRunRecorder(nil), expectedErr: simulation.ErrNilRunRecorder},
		{name: "nil reporter", option: simulation.WithStatisticsReporter(nil), expectedErr: simulation.ErrNilStatisticsReporter},
		{name: "zero record timeout", option: simulation.WithRecordTimeout(0), expectedErr: simulation.ErrNonPositiveRecordTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coordinator, err := simulation.NewCoordinator(tt.option)

			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Nil(t, coordinator)
		})
	}
}

func Test_NewCoordinator_StartsIdleWithoutPool(t *testing.T) {
	coordinator := givenCoordinator(t)

	assert.Equal(t, simulation.StateIdle, coordinator.State())
	assert.Equal(t, ticketpool.Statistics{}, coordinator.Statistics())
	assert.Equal(t, uuid.Nil, coordinator.RunID())
	assert.NoError(t, coordinator.Err())
	assert.NoError(t, coordinator.Wait(context.Background()))
}

func Test_Coordinator_Start_RejectsInvalidConfigBeforeCreatingAnything(t *testing.T) {
	// arrange
	sinks := newRunSinks()
	coordinator := givenCoordinator(t, simulation.WithSinkProvider(sinks))
	cfg := fastConfig(0, 5)

	// act
	err := coordinator.Start(cfg)

	// assert
	assert.ErrorIs(t, err, simulation.ErrInvalidConfig)
	assert.ErrorIs(t, err, simulation.ErrNonPositiveTotalTickets)
	assert.Equal(t, simulation.StateIdle, coordinator.State())
	assert.Equal(t, uuid.Nil, coordinator.RunID())
	assert.Empty(t, sinks.spies)
}

func Test_Coordinator_Start_OnlyAllowedWhenIdle(t *testing.T) {
	// arrange
	coordinator := givenCoordinator(t)
	require.NoError(t, coordinator.Start(idleAgentsConfig()))

	// act
	errWhileRunning := coordinator.Start(idleAgentsConfig())
	require.NoError(t, coordinator.Stop())
	errWhileStopped := coordinator.Start(idleAgentsConfig())

	// assert
	assert.ErrorIs(t, errWhileRunning, simulation.ErrInvalidState)
	assert.ErrorIs(t, errWhileStopped, simulation.ErrInvalidState)
	assert.Equal(t, simulation.StateStopped, coordinator.State())
}

func Test_Coordinator_Stop_OnlyAllowedWhenRunning(t *testing.T) {
	// arrange
	coordinator := givenCoordinator(t)

	// act
	errWhileIdle := coordinator.Stop()
	require.NoError(t, coordinator.Start(idleAgentsConfig()))
	errWhileRunning := coordinator.Stop()
	errWhileStopped := coordinator.Stop()

	// assert
	assert.ErrorIs(t, errWhileIdle, simulation.ErrInvalidState)
	assert.NoError(t, errWhileRunning)
	assert.ErrorIs(t, errWhileStopped, simulation.ErrInvalidState)
}

func Test_Coordinator_Reset_RejectedWhileRunning(t *testing.T) {
	// arrange
	coordinator := givenCoordinator(t)
	require.NoError(t, coordinator.Start(idleAgentsConfig()))

	// act
	err := coordinator.Reset()

	// assert
	assert.ErrorIs(t, err, simulation.ErrResetWhileRunning)
	assert.Equal(t, simulation.StateRunning, coordinator.State())
}

func Test_Coordinator_Stop_WaitsForAllAgents(t *testing.T) {
	// arrange
	coordinator := givenCoordinator(t)
	require.NoError(t, coordinator.Start(fastConfig(100000, 50)))
	require.Eventually(t, func() bool { return coordinator.Statistics().Produced > 0 }, 5*time.Second, time.Millisecond)

	// act
	require.NoError(t, coordinator.Stop())
	statsAfterStop := coordinator.Statistics()
	time.Sleep(20 * time.Millisecond)

	// assert
	assert.Equal(t, simulation.StateStopped, coordinator.State())
	assert.Equal(t, statsAfterStop, coordinator.Statistics())
	assert.Equal(t, statsAfterStop.Produced-statsAfterStop.Sold, statsAfterStop.Available)
}

func Test_Coordinator_StopThenReset_ClearsStatisticsAndRestartsTicketIDs(t *testing.T) {
	// arrange
	sinks := newRunSinks()
	coordinator := givenCoordinator(t, simulation.WithSinkProvider(sinks))
	require.NoError(t, coordinator.Start(fastConfig(100000, 50)))
	firstRunID := coordinator.RunID()
	require.Eventually(t, func() bool { return coordinator.Statistics().Produced >= 3 }, 5*time.Second, time.Millisecond)
	require.NoError(t, coordinator.Stop())
	firstRunStats := coordinator.Statistics()

	// act
	require.NoError(t, coordinator.Reset())
	statsAfterReset := coordinator.Statistics()
	require.NoError(t, coordinator.Start(fastConfig(100000, 50)))
	secondRunID := coordinator.RunID()
	require.Eventually(t, func() bool { return coordinator.Statistics().Produced >= 1 }, 5*time.Second, time.Millisecond)
	require.NoError(t, coordinator.Stop())

	// assert
	assert.Equal(t, ticketpool.Statistics{}, statsAfterReset)
	assert.NotEqual(t, firstRunID, secondRunID)

	firstIDs := producedTicketIDs(sinks.forRun(firstRunID))
	require.Len(t, firstIDs, firstRunStats.Produced)
	seen := make(map[uint64]bool)
	for _, id := range firstIDs {
		seen[id] = true
	}
	for id := uint64(1); id <= uint64(firstRunStats.Produced); id++ {
		assert.True(t, seen[id], "ticket id %d missing, ids must be dense", id)
	}

	secondIDs := producedTicketIDs(sinks.forRun(secondRunID))
	require.NotEmpty(t, secondIDs)
	assert.Contains(t, secondIDs, uint64(1))
}

//nolint:funlen
func Test_Coordinator_CompletesAutomaticallyWhenAllTicketsAreSold(t *testing.T) {
	// arrange
	recorder := &runRecorderSpy{}
	metrics := helper.NewMetricsCollectorSpy(true)
	logger, logSpy := helper.NewSpyLogger()

	var (
		reportsMu sync.Mutex
		reports   []ticketpool.Statistics
	)
	reporter := simulation.StatisticsReporterFunc(func(_ uuid.UUID, stats ticketpool.Statistics) {
		reportsMu.Lock()
		defer reportsMu.Unlock()
		reports = append(reports, stats)
	})

	coordinator := givenCoordinator(t,
		simulation.WithRunRecorder(recorder),
		simulation.WithMetrics(metrics),
		simulation.WithLogger(logger),
		simulation.WithStatisticsReporter(reporter))

	// act
	require.NoError(t, coordinator.Start(fastConfig(20, 5)))
	runID := coordinator.RunID()
	waitForRunEnd(t, coordinator)

	// assert
	expectedStats := ticketpool.Statistics{Available: 0, Produced: 20, Sold: 20, IsComplete: true}
	assert.Equal(t, simulation.StateIdle, coordinator.State())
	assert.Equal(t, expectedStats, coordinator.Statistics())
	assert.NoError(t, coordinator.Err())
	assert.Equal(t, runID, coordinator.RunID())

	summaries := recorder.recorded()
	require.Len(t, summaries, 1)
	summary := summaries[0]
	assert.Equal(t, runID, summary.RunID)
	assert.Equal(t, simulation.OutcomeCompleted, summary.Outcome)
	assert.Equal(t, expectedStats, summary.Statistics)
	assert.Empty(t, summary.Error)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))
	require.Len(t, summary.Agents, 5)

	var added, purchased int64
	vipCustomers := 0
	for _, agent := range summary.Agents {
		switch agent.Role {
		case simulation.AgentRoleVendor:
			added += agent.Succeeded
		case simulation.AgentRoleCustomer:
			purchased += agent.Succeeded
			if agent.VIP {
				vipCustomers++
			}
		}
	}
	assert.Equal(t, int64(20), added)
	assert.Equal(t, int64(20), purchased)
	assert.Equal(t, 1, vipCustomers)

	reportsMu.Lock()
	require.NotEmpty(t, reports)
	assert.Equal(t, expectedStats, reports[len(reports)-1])
	reportsMu.Unlock()

	assert.Equal(t, 1, metrics.CountCounterIncrements("ticketsim_runs_started_total", nil))
	assert.Equal(t, 1, metrics.CountCounterIncrements("ticketsim_runs_finished_total", map[string]string{"outcome": "completed"}))
	assert.Equal(t, 20, metrics.CountCounterIncrements("ticketpool_tickets_produced_total", nil))
	assert.True(t, metrics.HasDurationRecordForMetric("ticketsim_run_duration_seconds").WithLabel("outcome", "completed").Assert())

	assert.True(t, logSpy.HasInfoLogWithMessage("simulation started").WithAttrValue("run_id", runID.String()).Assert())
	assert.True(t, logSpy.HasInfoLogWithMessage("simulation finished").WithAttrValue("outcome", "completed").Assert())
}

func Test_Coordinator_CompletedRunCanBeRestartedWithoutReset(t *testing.T) {
	// arrange
	coordinator := givenCoordinator(t)
	require.NoError(t, coordinator.Start(fastConfig(5, 5)))
	waitForRunEnd(t, coordinator)

	// act
	err := coordinator.Start(fastConfig(1000, 5))

	// assert
	require.NoError(t, err)
	assert.Equal(t, simulation.StateRunning, coordinator.State())
	assert.False(t, coordinator.Statistics().IsComplete)
}

func Test_Coordinator_AgentFailureStopsTheRun(t *testing.T) {
	// arrange
	recorder := &runRecorderSpy{}
	metrics := helper.NewMetricsCollectorSpy(true)
	failingCustomers := simulation.WithAgentPorts(func(pool *ticketpool.Pool) (simulation.Producer, simulation.Consumer) {
		return pool, &consumerFailingAfterFirstSale{pool: pool}
	})
	coordinator := givenCoordinator(t, failingCustomers, simulation.WithRunRecorder(recorder), simulation.WithMetrics(metrics))

	// act
	require.NoError(t, coordinator.Start(fastConfig(1000, 10)))
	waitForRunEnd(t, coordinator)

	// assert
	assert.Equal(t, simulation.StateStopped, coordinator.State())
	assert.ErrorIs(t, coordinator.Err(), simulation.ErrAgentFailed)

	stats := coordinator.Statistics()
	assert.GreaterOrEqual(t, stats.Sold, 1)
	assert.Equal(t, stats.Produced-stats.Sold, stats.Available)
	assert.LessOrEqual(t, stats.Available, 10)

	summaries := recorder.recorded()
	require.Len(t, summaries, 1)
	assert.Equal(t, simulation.OutcomeFailed, summaries[0].Outcome)
	assert.Contains(t, summaries[0].Error, "customer port exploded")
	assert.GreaterOrEqual(t, metrics.CountCounterIncrements("ticketsim_agent_failures_total", nil), 1)

	status := coordinator.Status()
	assert.Equal(t, simulation.StateStopped, status.State)
	assert.Equal(t, stats, status.Statistics)
	assert.ErrorIs(t, status.Err, simulation.ErrAgentFailed)

	require.NoError(t, coordinator.Reset())
	assert.NoError(t, coordinator.Err())
	assert.Equal(t, simulation.StateIdle, coordinator.State())
}

func Test_Coordinator_PanickingSinkStillCompletesTheRun(t *testing.T) {
	// arrange
	recorder := &runRecorderSpy{}
	metrics := helper.NewMetricsCollectorSpy(true)
	logger, logSpy := helper.NewSpyLogger()
	panickingSink := simulation.RunSinkProviderFunc(func(uuid.UUID) ticketpool.EventSink {
		return ticketpool.EventSinkFunc(func(ticketpool.Event) {
			panic("sink exploded")
		})
	})
	coordinator := givenCoordinator(t,
		simulation.WithSinkProvider(panickingSink),
		simulation.WithRunRecorder(recorder),
		simulation.WithMetrics(metrics),
		simulation.WithLogger(logger))

	// act
	require.NoError(t, coordinator.Start(fastConfig(4, 2)))
	waitForRunEnd(t, coordinator)

	// assert
	assert.Equal(t, simulation.StateIdle, coordinator.State())
	assert.NoError(t, coordinator.Err())
	assert.True(t, coordinator.Statistics().IsComplete)

	summaries := recorder.recorded()
	require.Len(t, summaries, 1)
	assert.Equal(t, simulation.OutcomeCompleted, summaries[0].Outcome)
	assert.Empty(t, summaries[0].Error)

	assert.Equal(t, 4, metrics.CountCounterIncrements("ticketsim_sink_failures_total", map[string]string{"kind": "produced"}))
	assert.Equal(t, 4, metrics.CountCounterIncrements("ticketsim_sink_failures_total", map[string]string{"kind": "sold"}))
	assert.Equal(t, 0, metrics.CountCounterIncrements("ticketsim_agent_failures_total", nil))
	assert.True(t, logSpy.HasWarnLogWithMessage("run event sink panicked, event dropped").WithAttrValue("panic", "sink exploded").Assert())
}

func Test_Coordinator_RecorderFailureDoesNotAffectTheRun(t *testing.T) {
	// arrange
	recorder := &runRecorderSpy{err: errors.New("database down")}
	logger, logSpy := helper.NewSpyLogger()
	coordinator := givenCoordinator(t, simulation.WithRunRecorder(recorder), simulation.WithLogger(logger))

	// act
	require.NoError(t, coordinator.Start(fastConfig(3, 3)))
	waitForRunEnd(t, coordinator)

	// assert
	assert.Equal(t, simulation.StateIdle, coordinator.State())
	assert.NoError(t, coordinator.Err())
	assert.True(t, logSpy.HasErrorLogWithMessage("recording run summary failed").WithAttrValue("error", "database down").Assert())
}

func Test_State_String(t *testing.T) {
	assert.Equal(t, "idle", simulation.StateIdle.String())
	assert.Equal(t, "running", simulation.StateRunning.String())
	assert.Equal(t, "stopped", simulation.StateStopped.String())
	assert.Equal(t, "unknown", simulation.State(9).String())
}

type consumerFailingAfterFirstSale struct {
	pool *ticketpool.Pool
	sold atomic.Bool
}

func (c *consumerFailingAfterFirstSale) RemoveTicket(customerID string, vip bool) (ticketpool.Ticket, bool) {
	if c.sold.Load() {
		panic("customer port exploded")
	}

	ticket, ok := c.pool.RemoveTicket(customerID, vip)
	if ok {
		c.sold.Store(true)
	}

	return ticket, ok
}
