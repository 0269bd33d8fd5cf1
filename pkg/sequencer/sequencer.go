// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package sequencer drives a set of provider operations to completion in
// dependency order and tears down what the run created once it ends.
//
// Every run ends with teardown, whether it succeeded, failed or was cancelled.
// Handles created by the run are deleted in reverse creation order; deletes are
// best-effort and never abort one another.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/platform-engineering-labs/formae/pkg/plugin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/graph"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
)

// Sequencer executes descriptor sets against a provider adapter. A Sequencer
// carries configuration only and may be shared between runs.
type Sequencer struct {
	parallelism     int
	logger          *slog.Logger
	teardownTimeout time.Duration
}

// New returns a Sequencer. Without options it runs one operation at a time and
// logs through slog.Default.
func New(opts ...Option) *Sequencer {
	s := &Sequencer{
		parallelism: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs descriptors against adapter with a default Sequencer.
func Execute(ctx context.Context, descriptors []model.Descriptor, adapter prov.Adapter) (*Report, error) {
	return New().Execute(ctx, descriptors, adapter)
}

// Execute orders descriptors, applies them one by one and tears down every
// handle the run created. The report is always returned, also with an error.
//
// Structural problems (cycles, unknown dependencies, handles in the wrong
// state) are reported before any provider call. A provider failure stops the
// run: the failing descriptor is recorded as Failed, everything not yet
// started as Skipped, and the *prov.ProviderError is returned after teardown.
// A teardown failure is reported as *PartialTeardownError, joined with the
// original error when there is one.
func (s *Sequencer) Execute(ctx context.Context, descriptors []model.Descriptor, adapter prov.Adapter) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: time.Now()}
	log := s.logger.With("run", report.RunID)

	g, err := graph.New(descriptors)
	if err == nil {
		err = validate(g)
	}
	if err == nil && adapter == nil && g.Len() > 0 {
		err = errors.New("sequencer: no provider adapter")
	}
	if err != nil {
		report.FinishedAt = time.Now()
		log.Error("rejected descriptor set", "error", err)
		return report, err
	}

	log.Info("run started", "operations", g.Len(), "parallelism", s.parallelism)

	r := newRun(s, g, adapter, log)
	if s.parallelism > 1 {
		r.executeParallel(ctx)
	} else {
		r.executeSequential(ctx)
	}
	teardownErr := r.teardown(ctx)

	report.Entries = append(r.entries, r.teardownEntries...)
	report.Observations = r.collectObservations()
	report.FinishedAt = time.Now()

	runErr := r.err()
	log.Info("run finished",
		"succeeded", report.Count(OutcomeSucceeded),
		"failed", report.Count(OutcomeFailed),
		"skipped", report.Count(OutcomeSkipped),
		"rolled_back", report.Count(OutcomeRolledBack),
		"duration", report.Duration())

	switch {
	case runErr != nil && teardownErr != nil:
		return report, errors.Join(runErr, teardownErr)
	case runErr != nil:
		return report, runErr
	case teardownErr != nil:
		return report, teardownErr
	}
	return report, nil
}

type created struct {
	position    int
	operationID string
	handle      *model.Handle
}

// run is the mutable state of one Execute call.
type run struct {
	seq     *Sequencer
	graph   *graph.Graph
	order   []model.Descriptor
	adapter prov.Adapter
	log     *slog.Logger

	mu           sync.Mutex
	entries      []Entry
	failed       []int // positions of failed descriptors, ascending
	errs         map[int]error
	cancelErr    error
	created      []created
	observations map[int]Observation

	teardownEntries []Entry
}

func newRun(s *Sequencer, g *graph.Graph, adapter prov.Adapter, log *slog.Logger) *run {
	order := g.Descriptors()
	return &run{
		seq:          s,
		graph:        g,
		order:        order,
		adapter:      adapter,
		log:          log,
		entries:      make([]Entry, len(order)),
		errs:         make(map[int]error),
		observations: make(map[int]Observation),
	}
}

func (r *run) executeSequential(ctx context.Context) {
	for i, d := range r.order {
		r.checkContext(ctx)
		if r.halted() {
			r.skip(i, d)
			continue
		}
		r.apply(ctx, i, d)
	}
}

// executeParallel starts one goroutine per descriptor. Each waits for its
// dependencies to finish, then competes for one of the semaphore slots.
// Entries are written by position, so the report order matches the
// sequential order regardless of completion order.
func (r *run) executeParallel(ctx context.Context) {
	done := make([]chan struct{}, len(r.order))
	for i := range done {
		done[i] = make(chan struct{})
	}
	sem := semaphore.NewWeighted(int64(r.seq.parallelism))

	var eg errgroup.Group
	for i, d := range r.order {
		eg.Go(func() error {
			defer close(done[i])
			for _, dep := range r.graph.DependsOn(d.ID) {
				<-done[r.graph.Position(dep)]
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				r.checkContext(ctx)
				r.skip(i, d)
				return nil
			}
			defer sem.Release(1)

			r.checkContext(ctx)
			if r.halted() {
				r.skip(i, d)
				return nil
			}
			r.apply(ctx, i, d)
			return nil
		})
	}
	_ = eg.Wait()
}

func (r *run) checkContext(ctx context.Context) {
	err := ctx.Err()
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelErr == nil {
		r.cancelErr = err
		r.log.Warn("run cancelled", "error", err)
	}
}

func (r *run) halted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failed) > 0 || r.cancelErr != nil
}

func (r *run) apply(ctx context.Context, i int, d model.Descriptor) {
	log := r.log.With("operation", d.ID, "kind", string(d.Kind), "handle", d.Target.Key())
	log.Debug("operation started")
	ctx = plugin.WithLogger(ctx, plugin.NewPluginLogger(log))

	start := time.Now()
	var err error
	switch d.Kind {
	case model.OperationCreateOrUpdate:
		err = r.createOrUpdate(ctx, i, d)
	case model.OperationDelete:
		err = r.delete(ctx, d)
	case model.OperationList:
		err = r.list(ctx, i, d)
	}

	entry := Entry{
		OperationID: d.ID,
		Phase:       PhaseExecute,
		Kind:        d.Kind,
		Handle:      d.Target.Key(),
		Outcome:     OutcomeSucceeded,
		Duration:    time.Since(start),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		entry.Outcome = OutcomeFailed
		entry.Err = err
		r.errs[i] = err
		pos := sort.SearchInts(r.failed, i)
		r.failed = append(r.failed, 0)
		copy(r.failed[pos+1:], r.failed[pos:])
		r.failed[pos] = i
		log.Error("operation failed", "outcome", string(entry.Outcome), "error", err, "duration", entry.Duration)
	} else {
		log.Info("operation succeeded", "outcome", string(entry.Outcome), "state", d.Target.State.String(), "duration", entry.Duration)
	}
	r.entries[i] = entry
}

func (r *run) createOrUpdate(ctx context.Context, i int, d model.Descriptor) error {
	h := d.Target
	observed, err := r.adapter.CreateOrUpdate(ctx, h, d.Payload)
	if err != nil {
		if h.State == model.StatePending {
			_ = h.Transition(model.StateFailed)
		}
		return prov.NewProviderError(d.ID, prov.OpCreateOrUpdate, h.Key(), err)
	}

	first := h.State == model.StatePending
	next := model.StateUpdated
	if first {
		next = model.StateCreated
	}
	if err := h.Transition(next); err != nil {
		return err
	}
	if observed != nil && observed.RemoteID != "" {
		h.RemoteID = observed.RemoteID
	}
	if first {
		r.mu.Lock()
		r.created = append(r.created, created{position: i, operationID: d.ID, handle: h})
		r.mu.Unlock()
	}
	return nil
}

func (r *run) delete(ctx context.Context, d model.Descriptor) error {
	if err := r.adapter.Delete(ctx, d.Target); err != nil {
		return prov.NewProviderError(d.ID, prov.OpDelete, d.Target.Key(), err)
	}
	return d.Target.Transition(model.StateDeleted)
}

func (r *run) list(ctx context.Context, i int, d model.Descriptor) error {
	handles, err := r.adapter.List(ctx, d.Target.Kind, d.Target.Scope)
	if err != nil {
		return prov.NewProviderError(d.ID, prov.OpList, d.Target.Key(), err)
	}
	obs := Observation{OperationID: d.ID, Handles: make([]model.Handle, 0, len(handles))}
	for _, h := range handles {
		obs.Handles = append(obs.Handles, h.Snapshot())
	}
	r.mu.Lock()
	r.observations[i] = obs
	r.mu.Unlock()
	return nil
}

func (r *run) skip(i int, d model.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reason := r.skipReason(d)
	r.entries[i] = Entry{
		OperationID: d.ID,
		Phase:       PhaseExecute,
		Kind:        d.Kind,
		Handle:      d.Target.Key(),
		Outcome:     OutcomeSkipped,
		Reason:      reason,
	}
	r.log.Debug("operation skipped", "operation", d.ID, "reason", reason)
}

// skipReason must be called with r.mu held.
func (r *run) skipReason(d model.Descriptor) string {
	for _, pos := range r.failed {
		id := r.order[pos].ID
		if r.graph.InChain(d.ID, id) {
			return fmt.Sprintf("dependency %q failed", id)
		}
	}
	if r.cancelErr != nil {
		return "run cancelled"
	}
	if len(r.failed) > 0 {
		return fmt.Sprintf("run aborted after %q failed", r.order[r.failed[0]].ID)
	}
	return "run aborted"
}

// err returns the error Execute reports for the main loop: the failure
// earliest in execution order, or the cancellation cause.
func (r *run) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.failed) > 0 {
		return r.errs[r.failed[0]]
	}
	if r.cancelErr != nil {
		return fmt.Errorf("run cancelled: %w", r.cancelErr)
	}
	return nil
}

// teardown deletes every live handle the run created, most recent first. It
// ignores cancellation of ctx so that a cancelled run still cleans up.
func (r *run) teardown(ctx context.Context) error {
	sort.Slice(r.created, func(i, j int) bool { return r.created[i].position < r.created[j].position })

	tctx := context.WithoutCancel(ctx)
	if r.seq.teardownTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(tctx, r.seq.teardownTimeout)
		defer cancel()
	}

	var partial PartialTeardownError
	for i := len(r.created) - 1; i >= 0; i-- {
		c := r.created[i]
		if !c.handle.State.Live() {
			continue
		}
		key := c.handle.Key()
		start := time.Now()
		dlog := r.log.With("operation", c.operationID, "phase", string(PhaseTeardown), "handle", key)
		dctx := plugin.WithLogger(tctx, plugin.NewPluginLogger(dlog))
		err := r.adapter.Delete(dctx, c.handle)
		entry := Entry{
			OperationID: c.operationID,
			Phase:       PhaseTeardown,
			Kind:        model.OperationDelete,
			Handle:      key,
			Outcome:     OutcomeRolledBack,
			Duration:    time.Since(start),
		}
		if err != nil {
			perr := prov.NewProviderError(c.operationID, prov.OpDelete, key, err)
			entry.Outcome = OutcomeFailed
			entry.Err = perr
			partial.Handles = append(partial.Handles, c.handle.Snapshot())
			partial.Errs = append(partial.Errs, perr)
			r.log.Error("teardown delete failed", "operation", c.operationID, "handle", key, "error", err)
		} else {
			_ = c.handle.Transition(model.StateDeleted)
			r.log.Info("rolled back", "operation", c.operationID, "handle", key, "duration", entry.Duration)
		}
		r.teardownEntries = append(r.teardownEntries, entry)
	}

	if len(partial.Handles) > 0 {
		return &partial
	}
	return nil
}

func (r *run) collectObservations() []Observation {
	positions := make([]int, 0, len(r.observations))
	for pos := range r.observations {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	out := make([]Observation, 0, len(positions))
	for _, pos := range positions {
		out = append(out, r.observations[pos])
	}
	return out
}
