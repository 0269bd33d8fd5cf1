// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package memory is an in-process provider. It keeps resources in a map with
// the same containment rules a cloud control plane applies: a resource can only
// be created inside an existing scope, and deleting a scope removes everything
// inside it. It records every call and can be told to fail specific operations,
// which makes it the test double for the sequencer as well as the backing
// store for dry runs.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
)

// Call is one recorded adapter invocation.
type Call struct {
	Op     string
	Handle string
}

type record struct {
	kind     string
	name     string
	scope    string
	remoteID string
	payload  json.RawMessage
	version  int
}

// Adapter implements prov.Adapter in memory.
type Adapter struct {
	mu       sync.Mutex
	records  map[string]*record
	failures map[string]error // op + "|" + handle key
	calls    []Call
}

var _ prov.Adapter = (*Adapter)(nil)

// New returns an empty in-memory provider.
func New() *Adapter {
	return &Adapter{
		records:  make(map[string]*record),
		failures: make(map[string]error),
	}
}

// FailOn makes every future op against the handle return err.
func (a *Adapter) FailOn(op string, h *model.Handle, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[op+"|"+h.Key()] = err
}

// ClearFailure removes an injected failure.
func (a *Adapter) ClearFailure(op string, h *model.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.failures, op+"|"+h.Key())
}

// Calls returns a copy of the call log.
func (a *Adapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, len(a.calls))
	copy(out, a.calls)
	return out
}

// CallCount returns the number of recorded calls for op; an empty op counts all.
func (a *Adapter) CallCount(op string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		if op == "" || c.Op == op {
			n++
		}
	}
	return n
}

// Exists reports whether the resource identified by h is present.
func (a *Adapter) Exists(h *model.Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.records[h.Key()]
	return ok
}

// Len returns the number of stored resources.
func (a *Adapter) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Version returns how many times the stored payload of h actually changed,
// starting at 1 on creation. Zero means absent.
func (a *Adapter) Version(h *model.Handle) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.records[h.Key()]; ok {
		return r.version
	}
	return 0
}

// Payload returns the stored payload of h.
func (a *Adapter) Payload(h *model.Handle) (json.RawMessage, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.records[h.Key()]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), r.payload...), true
}

// begin records the call and returns an injected failure, if any.
// The caller must hold a.mu.
func (a *Adapter) begin(op string, key string) error {
	a.calls = append(a.calls, Call{Op: op, Handle: key})
	return a.failures[op+"|"+key]
}

func (a *Adapter) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	key := target.Key()
	if err := a.begin(prov.OpCreateOrUpdate, key); err != nil {
		return nil, err
	}
	if target.Scope != nil {
		if _, ok := a.records[target.Scope.Key()]; !ok {
			return nil, fmt.Errorf("create %s: scope: %w", key, &prov.NotFoundError{Kind: target.Scope.Kind, Name: target.Scope.Name})
		}
	}

	normalized, err := normalize(payload)
	if err != nil {
		return nil, fmt.Errorf("create %s: invalid payload: %w", key, err)
	}

	r, ok := a.records[key]
	if !ok {
		r = &record{
			kind:     target.Kind,
			name:     target.Name,
			scope:    target.Scope.Key(),
			remoteID: remoteID(target),
			payload:  normalized,
			version:  1,
		}
		a.records[key] = r
	} else if !bytes.Equal(r.payload, normalized) {
		r.payload = normalized
		r.version++
	}
	return prov.Observed(target, r.remoteID), nil
}

func (a *Adapter) Delete(ctx context.Context, target *model.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	key := target.Key()
	if err := a.begin(prov.OpDelete, key); err != nil {
		return err
	}
	// Deleting a container removes everything inside it.
	prefix := key + "/"
	for k := range a.records {
		if k == key || strings.HasPrefix(k, prefix) {
			delete(a.records, k)
		}
	}
	return nil
}

func (a *Adapter) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	key := target.Key()
	if err := a.begin(prov.OpGet, key); err != nil {
		return nil, err
	}
	r, ok := a.records[key]
	if !ok {
		return nil, &prov.NotFoundError{Kind: target.Kind, Name: target.Name}
	}
	return prov.Observed(target, r.remoteID), nil
}

func (a *Adapter) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	scopeKey := scope.Key()
	if err := a.begin(prov.OpList, scopeKey+"/"+kind); err != nil {
		return nil, err
	}
	if scope != nil {
		if _, ok := a.records[scopeKey]; !ok {
			return nil, fmt.Errorf("list %s: scope: %w", kind, &prov.NotFoundError{Kind: scope.Kind, Name: scope.Name})
		}
	}

	var out []*model.Handle
	for _, r := range a.records {
		if r.kind != kind || r.scope != scopeKey {
			continue
		}
		h := model.NewHandle(r.kind, r.name, scope)
		out = append(out, prov.Observed(h, r.remoteID))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListCall returns the Call recorded for a List of kind within scope.
func ListCall(kind string, scope *model.Handle) Call {
	return Call{Op: prov.OpList, Handle: scope.Key() + "/" + kind}
}

func remoteID(h *model.Handle) string {
	var parts []string
	for s := h; s != nil; s = s.Scope {
		parts = append(parts, s.Name, s.Kind)
	}
	var b strings.Builder
	b.WriteString("/memory")
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteString("/")
		b.WriteString(parts[i])
	}
	return b.String()
}

// normalize re-encodes JSON so semantically equal payloads compare equal.
func normalize(payload json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return json.RawMessage("null"), nil
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
