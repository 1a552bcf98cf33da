package scheduler_test

import (
	"context"
	"io"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mono/internal/core/domain"
	"go.trai.ch/mono/internal/core/ports"
	"go.trai.ch/mono/internal/core/ports/mocks"
	"go.trai.ch/mono/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

type schedulerTestMocks struct {
	executor      *mocks.MockExecutor
	store         *mocks.MockCacheStore
	fingerprinter *mocks.MockFingerprinter
	resolver      *mocks.MockInputResolver
	tracer        *mocks.MockTracer
	logger        *mocks.MockLogger
}

// setupSchedulerTest creates a scheduler and common mocks.
func setupSchedulerTest(t *testing.T) (*scheduler.Scheduler, schedulerTestMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := schedulerTestMocks{
		executor:      mocks.NewMockExecutor(ctrl),
		store:         mocks.NewMockCacheStore(ctrl),
		fingerprinter: mocks.NewMockFingerprinter(ctrl),
		resolver:      mocks.NewMockInputResolver(ctrl),
		tracer:        mocks.NewMockTracer(ctrl),
		logger:        mocks.NewMockLogger(ctrl),
	}

	// Default optimistic mocks to reduce noise in specific tests.
	mockSpan := mocks.NewMockSpan(ctrl)
	mockSpan.EXPECT().End().AnyTimes()
	mockSpan.EXPECT().RecordError(gomock.Any()).AnyTimes()
	mockSpan.EXPECT().SetAttribute(gomock.Any(), gomock.Any()).AnyTimes()
	mockSpan.EXPECT().Write(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
		return len(p), nil
	}).AnyTimes()

	// Start has variadic signature: Start(ctx, name, ...opts).
	m.tracer.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
			return ctx, mockSpan
		},
	).AnyTimes()
	m.tracer.EXPECT().EmitPlan(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	m.logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	m.logger.EXPECT().Warn(gomock.Any()).AnyTimes()

	s := scheduler.NewScheduler(m.executor, m.store, m.fingerprinter, m.resolver, m.tracer, m.logger)
	return s, m
}

// buildGraph constructs a graph from a simple map of package dependencies.
// Every package carries one "build" task; deps format: "a" -> ["b", "c"].
func buildGraph(t *testing.T, deps map[string][]string) *domain.TaskGraph {
	t.Helper()
	g := domain.NewTaskGraph(t.TempDir())

	names := make(map[string]bool)
	for name, ds := range deps {
		names[name] = true
		for _, d := range ds {
			names[d] = true
		}
	}

	for name := range names {
		pkg := &domain.Package{
			Name: domain.NewInternedString(name),
			Dir:  domain.NewInternedString(g.Root()),
		}
		task := &domain.TaskDefinition{
			Name:    domain.NewInternedString("build"),
			Command: []string{"echo", name},
		}
		require.NoError(t, g.AddNode(domain.NewTaskNode(pkg, task)))
	}

	for name, ds := range deps {
		for _, d := range ds {
			g.AddEdge(domain.NodeID(name, "build"), domain.NodeID(d, "build"))
		}
	}

	require.NoError(t, g.Validate())
	return g
}

// nodeMatcher implements gomock.Matcher for domain.TaskNode.
type nodeMatcher struct {
	id string
}

func (m nodeMatcher) Matches(x interface{}) bool {
	n, ok := x.(*domain.TaskNode)
	if !ok {
		return false
	}
	return n.ID.String() == m.id
}

func (m nodeMatcher) String() string {
	return "node id is " + m.id
}

func matchNode(pkg string) gomock.Matcher {
	return nodeMatcher{id: pkg + ":build"}
}

func outcomeOf(t *testing.T, res *domain.RunResult, pkg string) domain.Outcome {
	t.Helper()
	id := domain.NodeID(pkg, "build")
	for _, r := range res.Results {
		if r.Node == id {
			return r.Outcome
		}
	}
	t.Fatalf("no result for %s", id.String())
	return ""
}

// expectMiss sets up resolution, hashing and store mocks so that every node
// misses the cache and persists its result.
func expectMiss(m schedulerTestMocks) {
	m.resolver.EXPECT().ResolveInputs(gomock.Any(), gomock.Any()).Return([]string{}, nil).AnyTimes()
	m.fingerprinter.EXPECT().ComputeFingerprint(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(task *domain.TaskDefinition, _ map[string]string, _ []string, _ []domain.Fingerprint) (domain.Fingerprint, error) {
			return domain.Fingerprint("fp-" + task.Name.String()), nil
		}).AnyTimes()
	m.store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	m.store.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func TestScheduler_DiamondDependency(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// Graph: a -> b, a -> c, b -> d, c -> d
		// Execution order must be: d -> (b, c in parallel) -> a.
		g := buildGraph(t, map[string][]string{
			"a": {"b", "c"},
			"b": {"d"},
			"c": {"d"},
		})
		s, m := setupSchedulerTest(t)
		expectMiss(m)

		dCall := m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("d"), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(0, nil).Times(1)

		bCall := m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("b"), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(0, nil).Times(1).After(dCall)

		cCall := m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("c"), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(0, nil).Times(1).After(dCall)

		m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("a"), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(0, nil).Times(1).After(bCall).After(cCall)

		res, err := s.Run(context.Background(), g, scheduler.Options{
			Targets:     []string{"build"},
			Parallelism: 4,
		})
		require.NoError(t, err)
		require.True(t, res.OK())

		for _, pkg := range []string{"a", "b", "c", "d"} {
			assert.Equal(t, domain.OutcomeExecuted, outcomeOf(t, res, pkg))
		}
	})
}

func TestScheduler_CacheHitReplays(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := buildGraph(t, map[string][]string{"a": {}})
		s, m := setupSchedulerTest(t)

		m.resolver.EXPECT().ResolveInputs(gomock.Any(), gomock.Any()).Return([]string{}, nil)
		m.fingerprinter.EXPECT().ComputeFingerprint(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(domain.Fingerprint("fp-a"), nil)

		entry := &domain.CacheEntry{
			Fingerprint: "fp-a",
			Stdout:      []byte("hello from the cache\n"),
		}
		m.store.EXPECT().Get(gomock.Any(), domain.Fingerprint("fp-a")).Return(entry, nil)

		// The command must not run again.
		m.executor.EXPECT().Execute(
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
		).Times(0)

		res, err := s.Run(context.Background(), g, scheduler.Options{
			Targets:     []string{"build"},
			Parallelism: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeCacheHit, outcomeOf(t, res, "a"))
	})
}

func TestScheduler_NoCacheBypassesLookup(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := buildGraph(t, map[string][]string{"a": {}})
		s, m := setupSchedulerTest(t)

		m.resolver.EXPECT().ResolveInputs(gomock.Any(), gomock.Any()).Return([]string{}, nil)
		m.fingerprinter.EXPECT().ComputeFingerprint(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(domain.Fingerprint("fp-a"), nil)

		// Lookup is bypassed, but the fresh result is still stored.
		m.store.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
		m.store.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

		m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("a"), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(0, nil).Times(1)

		res, err := s.Run(context.Background(), g, scheduler.Options{
			Targets:     []string{"build"},
			Parallelism: 2,
			NoCache:     true,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeExecuted, outcomeOf(t, res, "a"))
	})
}

func TestScheduler_FailureSkipsDependents(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// Graph: a -> b. b exits non-zero; a must never run.
		g := buildGraph(t, map[string][]string{"a": {"b"}})
		s, m := setupSchedulerTest(t)
		expectMiss(m)

		m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("b"), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(1, nil).Times(1)

		m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("a"), gomock.Any(), gomock.Any(), gomock.Any(),
		).Times(0)

		res, err := s.Run(context.Background(), g, scheduler.Options{
			Targets:     []string{"build"},
			Parallelism: 4,
		})
		require.NoError(t, err)
		require.False(t, res.OK())

		assert.Equal(t, domain.OutcomeFailed, outcomeOf(t, res, "b"))
		assert.Equal(t, domain.OutcomeSkipped, outcomeOf(t, res, "a"))
	})
}

func TestScheduler_ContinueOnErrorIsolatesSubgraphs(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// Two independent chains: a -> b (b fails) and c (standalone).
		// With --continue, c still completes; a is skipped either way.
		g := buildGraph(t, map[string][]string{
			"a": {"b"},
			"c": {},
		})
		s, m := setupSchedulerTest(t)
		expectMiss(m)

		m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("b"), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(1, nil).Times(1)

		m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("c"), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(0, nil).Times(1)

		m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("a"), gomock.Any(), gomock.Any(), gomock.Any(),
		).Times(0)

		res, err := s.Run(context.Background(), g, scheduler.Options{
			Targets:         []string{"build"},
			Parallelism:     1,
			ContinueOnError: true,
		})
		require.NoError(t, err)

		assert.Equal(t, domain.OutcomeFailed, outcomeOf(t, res, "b"))
		assert.Equal(t, domain.OutcomeSkipped, outcomeOf(t, res, "a"))
		assert.Equal(t, domain.OutcomeExecuted, outcomeOf(t, res, "c"))
	})
}

func TestScheduler_FailureWithInFlightSuccessTerminates(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// b fails while c is still running; d depends on c. When c then
		// succeeds, the run must still terminate, with d skipped rather
		// than left in a queue the halted scheduler never drains.
		g := buildGraph(t, map[string][]string{
			"d": {"c"},
			"b": {},
		})
		s, m := setupSchedulerTest(t)
		expectMiss(m)

		cStarted := make(chan struct{})
		cRelease := make(chan struct{})

		m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("c"), gomock.Any(), gomock.Any(), gomock.Any(),
		).DoAndReturn(
			func(context.Context, *domain.TaskNode, []string, io.Writer, io.Writer) (int, error) {
				close(cStarted)
				<-cRelease
				return 0, nil
			},
		).Times(1)

		m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("b"), gomock.Any(), gomock.Any(), gomock.Any(),
		).DoAndReturn(
			func(context.Context, *domain.TaskNode, []string, io.Writer, io.Writer) (int, error) {
				<-cStarted
				return 1, nil
			},
		).Times(1)

		m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("d"), gomock.Any(), gomock.Any(), gomock.Any(),
		).Times(0)

		type runOut struct {
			res *domain.RunResult
			err error
		}
		outCh := make(chan runOut, 1)
		go func() {
			res, err := s.Run(context.Background(), g, scheduler.Options{
				Targets:     []string{"build"},
				Parallelism: 2,
			})
			outCh <- runOut{res, err}
		}()

		// Let b's failure land and halt the run before c finishes.
		synctest.Wait()
		close(cRelease)

		out := <-outCh
		require.NoError(t, out.err)
		require.False(t, out.res.OK())

		assert.Equal(t, domain.OutcomeFailed, outcomeOf(t, out.res, "b"))
		assert.Equal(t, domain.OutcomeExecuted, outcomeOf(t, out.res, "c"))
		assert.Equal(t, domain.OutcomeSkipped, outcomeOf(t, out.res, "d"))
	})
}

func TestScheduler_UpstreamFingerprintsFeedDownstream(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// a -> b: a's fingerprint must include b's.
		g := buildGraph(t, map[string][]string{"a": {"b"}})
		s, m := setupSchedulerTest(t)

		m.resolver.EXPECT().ResolveInputs(gomock.Any(), gomock.Any()).Return([]string{}, nil).AnyTimes()
		m.store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
		m.store.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

		var upstreamSeen []domain.Fingerprint
		m.fingerprinter.EXPECT().ComputeFingerprint(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(task *domain.TaskDefinition, _ map[string]string, _ []string, upstream []domain.Fingerprint) (domain.Fingerprint, error) {
				if len(upstream) > 0 {
					upstreamSeen = append(upstreamSeen, upstream...)
				}
				return domain.Fingerprint("fp"), nil
			}).Times(2)

		m.executor.EXPECT().Execute(
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(0, nil).Times(2)

		_, err := s.Run(context.Background(), g, scheduler.Options{
			Targets:     []string{"build"},
			Parallelism: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, []domain.Fingerprint{"fp"}, upstreamSeen)
	})
}

func TestScheduler_Cancellation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := buildGraph(t, map[string][]string{"a": {}})
		s, m := setupSchedulerTest(t)
		expectMiss(m)

		m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("a"), gomock.Any(), gomock.Any(), gomock.Any(),
		).DoAndReturn(
			func(ctx context.Context, _ *domain.TaskNode, _ []string, _, _ io.Writer) (int, error) {
				<-ctx.Done()
				return -1, ctx.Err()
			},
		).Times(1)

		ctx, cancel := context.WithCancel(context.Background())

		type runOut struct {
			res *domain.RunResult
			err error
		}
		outCh := make(chan runOut, 1)
		go func() {
			res, err := s.Run(ctx, g, scheduler.Options{
				Targets:     []string{"build"},
				Parallelism: 2,
			})
			outCh <- runOut{res, err}
		}()

		// Give it a moment to start.
		synctest.Wait()

		cancel()
		synctest.Wait()

		out := <-outCh
		require.ErrorIs(t, out.err, context.Canceled)
		assert.Equal(t, domain.OutcomeFailed, outcomeOf(t, out.res, "a"))
	})
}

func TestScheduler_CancellationBlocksOnInFlightWork(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// After cancellation the run loop must park on the results channel
		// while the worker winds down; a loop spinning on the done channel
		// would never become durably blocked and synctest.Wait would hang.
		g := buildGraph(t, map[string][]string{"a": {}})
		s, m := setupSchedulerTest(t)
		expectMiss(m)

		release := make(chan struct{})
		m.executor.EXPECT().Execute(
			gomock.Any(), matchNode("a"), gomock.Any(), gomock.Any(), gomock.Any(),
		).DoAndReturn(
			func(ctx context.Context, _ *domain.TaskNode, _ []string, _, _ io.Writer) (int, error) {
				<-ctx.Done()
				<-release
				return -1, ctx.Err()
			},
		).Times(1)

		ctx, cancel := context.WithCancel(context.Background())

		type runOut struct {
			res *domain.RunResult
			err error
		}
		outCh := make(chan runOut, 1)
		go func() {
			res, err := s.Run(ctx, g, scheduler.Options{
				Targets:     []string{"build"},
				Parallelism: 2,
			})
			outCh <- runOut{res, err}
		}()

		synctest.Wait()
		cancel()
		synctest.Wait()
		close(release)

		out := <-outCh
		require.ErrorIs(t, out.err, context.Canceled)
		assert.Equal(t, domain.OutcomeFailed, outcomeOf(t, out.res, "a"))
	})
}
