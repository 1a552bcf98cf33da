// Package scheduler executes a task graph with bounded parallelism,
// skipping nodes whose fingerprints are already cached.
package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.trai.ch/mono/internal/core/domain"
	"go.trai.ch/mono/internal/core/ports"
	"go.trai.ch/zerr"
)

// NodeState represents the lifecycle state of a task node during a run.
type NodeState string

const (
	// StatePending indicates the node is waiting on upstream nodes.
	StatePending NodeState = "Pending"
	// StateHashing indicates the node's fingerprint is being computed.
	StateHashing NodeState = "Hashing"
	// StateRunning indicates the node's command is executing.
	StateRunning NodeState = "Running"
	// StateDone indicates the node completed, by cache hit or execution.
	StateDone NodeState = "Done"
	// StateFailed indicates the node failed or was skipped by propagation.
	StateFailed NodeState = "Failed"
)

// Options configures one run.
type Options struct {
	// Targets are the user-requested task names, reported with the plan.
	Targets []string
	// Parallelism bounds the worker pool; <= 0 means runtime.NumCPU().
	Parallelism int
	// NoCache bypasses cache lookups; fingerprints are still computed and
	// successful results are still stored.
	NoCache bool
	// ContinueOnError lets independent subgraphs complete after a failure.
	// Transitive dependents of a failed node are always skipped.
	ContinueOnError bool
	// DefaultTimeout bounds each task without its own timeout; 0 means none.
	DefaultTimeout time.Duration
}

// Scheduler runs task graphs.
type Scheduler struct {
	executor      ports.Executor
	store         ports.CacheStore
	fingerprinter ports.Fingerprinter
	resolver      ports.InputResolver
	tracer        ports.Tracer
	logger        ports.Logger

	mu        sync.RWMutex
	nodeState map[domain.InternedString]NodeState
}

// NewScheduler creates a new Scheduler with the given collaborators.
func NewScheduler(
	executor ports.Executor,
	store ports.CacheStore,
	fingerprinter ports.Fingerprinter,
	resolver ports.InputResolver,
	tracer ports.Tracer,
	logger ports.Logger,
) *Scheduler {
	return &Scheduler{
		executor:      executor,
		store:         store,
		fingerprinter: fingerprinter,
		resolver:      resolver,
		tracer:        tracer,
		logger:        logger,
		nodeState:     make(map[domain.InternedString]NodeState),
	}
}

// State returns the current lifecycle state of a node.
func (s *Scheduler) State(id domain.InternedString) NodeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodeState[id]
}

func (s *Scheduler) setState(id domain.InternedString, st NodeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeState[id] = st
}

// Run executes the graph and returns the per-node report. The returned
// error covers infrastructure problems only; task failures are reported
// through the result's outcomes.
func (s *Scheduler) Run(ctx context.Context, graph *domain.TaskGraph, opts Options) (*domain.RunResult, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}

	state := s.newRunState(ctx, graph, opts)

	s.tracer.EmitPlan(ctx, state.plannedIDs(), state.depMap(), opts.Targets)

	for _, id := range state.plannedIDs() {
		s.setState(domain.NewInternedString(id), StatePending)
	}

	state.run()

	return state.buildResult(), ctx.Err()
}

type nodeResult struct {
	id          domain.InternedString
	outcome     domain.Outcome
	fingerprint domain.Fingerprint
	exitCode    int
	duration    time.Duration
	err         error
}

type runState struct {
	s     *Scheduler
	ctx   context.Context
	graph *domain.TaskGraph
	opts  Options

	remaining    map[domain.InternedString]int
	ready        []domain.InternedString
	active       int
	resultsCh    chan nodeResult
	fingerprints map[domain.InternedString]domain.Fingerprint
	results      map[domain.InternedString]nodeResult
	halted       bool
}

func (s *Scheduler) newRunState(ctx context.Context, graph *domain.TaskGraph, opts Options) *runState {
	st := &runState{
		s:            s,
		ctx:          ctx,
		graph:        graph,
		opts:         opts,
		remaining:    make(map[domain.InternedString]int, graph.Len()),
		resultsCh:    make(chan nodeResult, opts.Parallelism),
		fingerprints: make(map[domain.InternedString]domain.Fingerprint, graph.Len()),
		results:      make(map[domain.InternedString]nodeResult, graph.Len()),
	}

	// Dependency-count latch: a node becomes ready when the count reaches
	// zero, i.e. when every upstream has committed its fingerprint.
	for n := range graph.Walk() {
		degree := len(graph.Dependencies(n.ID))
		st.remaining[n.ID] = degree
		if degree == 0 {
			st.ready = append(st.ready, n.ID)
		}
	}

	return st
}

func (st *runState) plannedIDs() []string {
	ids := make([]string, 0, st.graph.Len())
	for n := range st.graph.Walk() {
		ids = append(ids, n.ID.String())
	}
	return ids
}

func (st *runState) depMap() map[string][]string {
	deps := make(map[string][]string, st.graph.Len())
	for n := range st.graph.Walk() {
		ds := st.graph.Dependencies(n.ID)
		out := make([]string, len(ds))
		for i, d := range ds {
			out[i] = d.String()
		}
		deps[n.ID.String()] = out
	}
	return deps
}

func (st *runState) run() {
	done := st.ctx.Done()
	for !st.isDone() {
		st.schedule()

		if st.isDone() {
			break
		}

		if st.ctx.Err() != nil && st.active == 0 {
			break
		}

		select {
		case res := <-st.resultsCh:
			st.handleResult(res)
		case <-done:
			// Cancellation fires once; afterwards the loop only drains
			// in-flight workers instead of spinning on the closed channel.
			done = nil
		}
	}

	st.skipUnreached()
}

func (st *runState) isDone() bool {
	return st.active == 0 && len(st.ready) == 0
}

func (st *runState) schedule() {
	for len(st.ready) > 0 && st.active < st.opts.Parallelism && !st.halted && st.ctx.Err() == nil {
		id := st.ready[0]
		st.ready = st.ready[1:]

		node, _ := st.graph.Node(id)

		// Upstream fingerprints are collected on the loop goroutine, so
		// workers never touch shared maps.
		upstream := st.upstreamFingerprints(id)

		st.active++
		st.s.setState(id, StateHashing)

		go st.executeNode(node, upstream)
	}
}

func (st *runState) upstreamFingerprints(id domain.InternedString) []domain.Fingerprint {
	deps := st.graph.Dependencies(id)
	out := make([]domain.Fingerprint, 0, len(deps))
	for _, dep := range deps {
		if fp, ok := st.fingerprints[dep]; ok {
			out = append(out, fp)
		}
	}
	return out
}

// executeNode runs the hashing/lookup/run sequence for one node on a
// worker goroutine and reports the result on the results channel.
func (st *runState) executeNode(node *domain.TaskNode, upstream []domain.Fingerprint) {
	started := time.Now()

	res := func() nodeResult {
		ctx, span := st.s.tracer.Start(st.ctx, node.ID.String())
		defer span.End()

		fp, err := st.fingerprint(node, upstream)
		if err != nil {
			span.RecordError(err)
			span.SetAttribute(ports.OutcomeAttribute, string(domain.OutcomeFailed))
			return nodeResult{id: node.ID, outcome: domain.OutcomeFailed, exitCode: -1, err: err}
		}
		span.SetAttribute(ports.FingerprintAttribute, fp.String())

		if !st.opts.NoCache {
			if entry := st.lookup(ctx, fp); entry != nil {
				if err := st.replay(ctx, entry, span); err == nil {
					span.SetAttribute(ports.OutcomeAttribute, string(domain.OutcomeCacheHit))
					return nodeResult{id: node.ID, outcome: domain.OutcomeCacheHit, fingerprint: fp}
				}
				// A broken entry degrades to a miss.
				st.s.logger.Warn(fmt.Sprintf("%s: cache entry %s unusable, re-executing", node.ID.String(), fp))
			}
		}

		st.s.setState(node.ID, StateRunning)

		exitCode, stdout, stderr, execErr := st.runCommand(ctx, node, span)
		if execErr != nil || exitCode != 0 {
			err := execErr
			if err == nil {
				err = zerr.With(domain.ErrTaskExecutionFailed, "exit_code", exitCode)
			}
			span.RecordError(err)
			span.SetAttribute(ports.OutcomeAttribute, string(domain.OutcomeFailed))
			return nodeResult{id: node.ID, outcome: domain.OutcomeFailed, fingerprint: fp, exitCode: exitCode, err: err}
		}

		// Failures are never cached; only a clean exit produces an entry.
		st.persist(ctx, node, fp, exitCode, stdout, stderr)

		span.SetAttribute(ports.OutcomeAttribute, string(domain.OutcomeExecuted))
		return nodeResult{id: node.ID, outcome: domain.OutcomeExecuted, fingerprint: fp}
	}()

	res.duration = time.Since(started)
	st.resultsCh <- res
}

// fingerprint resolves the node's inputs and combines them with the
// command, relevant environment values and upstream fingerprints.
func (st *runState) fingerprint(node *domain.TaskNode, upstream []domain.Fingerprint) (domain.Fingerprint, error) {
	inputs, err := st.s.resolver.ResolveInputs(domain.Strings(node.Task.Inputs), node.Package.Dir.String())
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrInputResolutionFailed.Error())
	}

	fp, err := st.s.fingerprinter.ComputeFingerprint(node.Task, taskEnv(node.Task), inputs, upstream)
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrFingerprintFailed.Error())
	}

	return fp, nil
}

// lookup queries the cache store; store errors degrade to a miss.
func (st *runState) lookup(ctx context.Context, fp domain.Fingerprint) *domain.CacheEntry {
	entry, err := st.s.store.Get(ctx, fp)
	if err != nil {
		st.s.logger.Warn(fmt.Sprintf("cache lookup for %s failed, treating as miss: %v", fp, err))
		return nil
	}
	return entry
}

// replay re-emits the entry's captured streams and materializes the
// manifest files into the workspace without re-executing the command.
func (st *runState) replay(ctx context.Context, entry *domain.CacheEntry, span ports.Span) error {
	for _, f := range entry.Files {
		data, err := st.s.store.ReadBlob(ctx, f.Hash)
		if err != nil {
			return zerr.Wrap(err, domain.ErrMaterializeFailed.Error())
		}

		path := filepath.Join(st.graph.Root(), f.Path)
		if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
			return zerr.Wrap(err, domain.ErrMaterializeFailed.Error())
		}
		if err := os.WriteFile(path, data, f.Mode.Perm()); err != nil {
			return zerr.Wrap(err, domain.ErrMaterializeFailed.Error())
		}
	}

	if len(entry.Stdout) > 0 {
		_, _ = span.Write(entry.Stdout)
	}
	if len(entry.Stderr) > 0 {
		_, _ = span.Write(entry.Stderr)
	}

	return nil
}

// runCommand executes the node's command under its timeout, capturing the
// streams for the cache entry while forwarding them to the span.
func (st *runState) runCommand(
	ctx context.Context,
	node *domain.TaskNode,
	span ports.Span,
) (exitCode int, stdout, stderr []byte, err error) {
	timeout := node.Task.Timeout
	if timeout == 0 {
		timeout = st.opts.DefaultTimeout
	}

	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var outBuf, errBuf bytes.Buffer
	env := envSlice(taskEnv(node.Task))

	exitCode, err = st.s.executor.Execute(
		execCtx,
		node,
		env,
		io.MultiWriter(&outBuf, span),
		io.MultiWriter(&errBuf, span),
	)

	return exitCode, outBuf.Bytes(), errBuf.Bytes(), err
}

// persist hashes the declared outputs and writes a new cache entry.
// Store failures are logged; caching is an optimization, never fatal.
func (st *runState) persist(
	ctx context.Context,
	node *domain.TaskNode,
	fp domain.Fingerprint,
	exitCode int,
	stdout, stderr []byte,
) {
	files, blobs, err := st.collectOutputs(node)
	if err != nil {
		st.s.logger.Warn(fmt.Sprintf("%s: not caching result: %v", node.ID.String(), err))
		return
	}

	entry := &domain.CacheEntry{
		Fingerprint: fp,
		ExitCode:    exitCode,
		Stdout:      stdout,
		Stderr:      stderr,
		Files:       files,
		CreatedAt:   time.Now().UTC(),
	}

	if err := st.s.store.Put(ctx, entry, blobs); err != nil {
		st.s.logger.Warn(fmt.Sprintf("%s: cache write failed: %v", node.ID.String(), err))
	}
}

// collectOutputs resolves the declared output patterns and builds the
// manifest plus the blob set for the store.
func (st *runState) collectOutputs(node *domain.TaskNode) ([]domain.OutputFile, map[string][]byte, error) {
	patterns := domain.Strings(node.Task.Outputs)
	if len(patterns) == 0 {
		return nil, nil, nil
	}

	paths, err := st.s.resolver.ResolveOutputs(patterns, node.Package.Dir.String())
	if err != nil {
		return nil, nil, err
	}

	files := make([]domain.OutputFile, 0, len(paths))
	blobs := make(map[string][]byte, len(paths))

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, nil, zerr.With(zerr.Wrap(err, domain.ErrOutputMissing.Error()), "path", path)
		}

		hash, err := st.s.fingerprinter.HashFile(path)
		if err != nil {
			return nil, nil, err
		}

		data, err := os.ReadFile(path) //nolint:gosec // resolved from declared output patterns
		if err != nil {
			return nil, nil, zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", path)
		}

		rel, err := filepath.Rel(st.graph.Root(), path)
		if err != nil {
			return nil, nil, zerr.Wrap(err, domain.ErrOutputMissing.Error())
		}

		files = append(files, domain.OutputFile{Path: rel, Hash: hash, Mode: info.Mode()})
		blobs[hash] = data
	}

	return files, blobs, nil
}

func (st *runState) handleResult(res nodeResult) {
	st.active--
	st.results[res.id] = res

	switch res.outcome {
	case domain.OutcomeCacheHit, domain.OutcomeExecuted:
		st.s.setState(res.id, StateDone)
		st.fingerprints[res.id] = res.fingerprint
		st.releaseDependents(res.id)
	case domain.OutcomeFailed:
		st.s.setState(res.id, StateFailed)
		st.skipDependents(res.id)
		if !st.opts.ContinueOnError {
			st.halt()
		}
	case domain.OutcomeSkipped:
		// Skipped nodes never run; nothing reaches here with that outcome.
	}
}

// releaseDependents decrements the latch of each dependent and enqueues
// the ones that became ready, unless they were already skipped. After a
// halt nothing is enqueued anymore, so an in-flight success that lands
// after a failure cannot strand its dependents in the ready queue and
// keep the run loop waiting forever; skipUnreached marks them Skipped.
func (st *runState) releaseDependents(id domain.InternedString) {
	for _, dep := range st.graph.Dependents(id) {
		if _, terminal := st.results[dep]; terminal {
			continue
		}
		st.remaining[dep]--
		if st.remaining[dep] == 0 && !st.halted {
			st.ready = append(st.ready, dep)
		}
	}
}

// skipDependents marks every transitive dependent of a failed node as
// skipped. They are never hashed or run.
func (st *runState) skipDependents(id domain.InternedString) {
	queue := append([]domain.InternedString(nil), st.graph.Dependents(id)...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if _, terminal := st.results[cur]; terminal {
			continue
		}
		st.results[cur] = nodeResult{id: cur, outcome: domain.OutcomeSkipped, exitCode: -1}
		st.s.setState(cur, StateFailed)
		queue = append(queue, st.graph.Dependents(cur)...)
	}
}

// halt implements fail-fast: stop enqueuing new work and let in-flight
// workers finish. Everything still pending is skipped.
func (st *runState) halt() {
	st.halted = true
	st.ready = st.ready[:0]
}

// skipUnreached marks every node without a terminal result as skipped.
// This covers fail-fast halts and context cancellation.
func (st *runState) skipUnreached() {
	for n := range st.graph.Walk() {
		if _, ok := st.results[n.ID]; !ok {
			st.results[n.ID] = nodeResult{id: n.ID, outcome: domain.OutcomeSkipped, exitCode: -1}
			st.s.setState(n.ID, StateFailed)
		}
	}
}

// buildResult assembles the report in planned execution order.
func (st *runState) buildResult() *domain.RunResult {
	result := domain.NewRunResult()
	for n := range st.graph.Walk() {
		res := st.results[n.ID]
		result.Results = append(result.Results, domain.TaskResult{
			Node:     n.ID,
			Outcome:  res.outcome,
			Duration: res.duration,
			ExitCode: res.exitCode,
			Err:      res.err,
		})
	}
	return result
}

// taskEnv resolves the environment values relevant to a task: declared
// pass-through keys read from the process environment, overridden by the
// task's fixed environment. Both feed the fingerprint and the command.
func taskEnv(task *domain.TaskDefinition) map[string]string {
	env := make(map[string]string, len(task.Env)+len(task.Environment))
	for _, key := range task.Env {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	for k, v := range task.Environment {
		env[k] = v
	}
	return env
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
