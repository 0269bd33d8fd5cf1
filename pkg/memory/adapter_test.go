// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
)

const (
	kindGroup   = "Azure::Resources::ResourceGroup"
	kindAccount = "Azure::Storage::StorageAccount"
)

func TestAdapter_CreateOrUpdateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a := New()
	rg := model.NewHandle(kindGroup, "rgRSMR", nil)

	first, err := a.CreateOrUpdate(ctx, rg, json.RawMessage(`{"location":"westus","tags":{"a":"1"}}`))
	require.NoError(t, err)
	second, err := a.CreateOrUpdate(ctx, rg, json.RawMessage(`{"tags":{"a":"1"},  "location":"westus"}`))
	require.NoError(t, err)

	assert.Equal(t, first.RemoteID, second.RemoteID)
	assert.Equal(t, 1, a.Version(rg))
	assert.Equal(t, model.StatePending, rg.State, "adapter must not mutate the input handle")

	_, err = a.CreateOrUpdate(ctx, rg, json.RawMessage(`{"location":"eastus"}`))
	require.NoError(t, err)
	assert.Equal(t, 2, a.Version(rg))
}

func TestAdapter_CreateRequiresScope(t *testing.T) {
	ctx := context.Background()
	a := New()
	rg := model.NewHandle(kindGroup, "rgRSMR", nil)
	acct := model.NewHandle(kindAccount, "rn1", rg)

	_, err := a.CreateOrUpdate(ctx, acct, nil)
	assert.True(t, prov.IsNotFound(err))

	_, err = a.CreateOrUpdate(ctx, rg, nil)
	require.NoError(t, err)
	created, err := a.CreateOrUpdate(ctx, acct, nil)
	require.NoError(t, err)
	assert.Equal(t, "/memory/Azure::Resources::ResourceGroup/rgRSMR/Azure::Storage::StorageAccount/rn1", created.RemoteID)
}

func TestAdapter_DeleteIsIdempotentAndCascades(t *testing.T) {
	ctx := context.Background()
	a := New()
	rg := model.NewHandle(kindGroup, "rgRSMR", nil)
	acct := model.NewHandle(kindAccount, "rn1", rg)

	_, err := a.CreateOrUpdate(ctx, rg, nil)
	require.NoError(t, err)
	_, err = a.CreateOrUpdate(ctx, acct, nil)
	require.NoError(t, err)

	require.NoError(t, a.Delete(ctx, rg))
	assert.False(t, a.Exists(acct))
	assert.Equal(t, 0, a.Len())

	require.NoError(t, a.Delete(ctx, rg), "deleting an absent resource succeeds")
	require.NoError(t, a.Delete(ctx, acct))
}

func TestAdapter_GetNotFound(t *testing.T) {
	a := New()
	_, err := a.Get(context.Background(), model.NewHandle(kindGroup, "missing", nil))

	var nf *prov.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.Name)
}

func TestAdapter_ListByScope(t *testing.T) {
	ctx := context.Background()
	a := New()
	rg := model.NewHandle(kindGroup, "rgRSMR", nil)
	other := model.NewHandle(kindGroup, "other", nil)

	for _, h := range []*model.Handle{rg, other} {
		_, err := a.CreateOrUpdate(ctx, h, nil)
		require.NoError(t, err)
	}
	for _, h := range []*model.Handle{
		model.NewHandle(kindAccount, "rn2", rg),
		model.NewHandle(kindAccount, "rn1", rg),
		model.NewHandle(kindAccount, "elsewhere", other),
	} {
		_, err := a.CreateOrUpdate(ctx, h, nil)
		require.NoError(t, err)
	}

	listed, err := a.List(ctx, kindAccount, rg)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "rn1", listed[0].Name)
	assert.Equal(t, "rn2", listed[1].Name)

	groups, err := a.List(ctx, kindGroup, nil)
	require.NoError(t, err)
	assert.Len(t, groups, 2)

	assert.Equal(t, 1, countCalls(a.Calls(), ListCall(kindAccount, rg)))
}

func TestAdapter_FailOn(t *testing.T) {
	ctx := context.Background()
	a := New()
	rg := model.NewHandle(kindGroup, "rgRSMR", nil)
	boom := errors.New("boom")

	a.FailOn(prov.OpCreateOrUpdate, rg, boom)
	_, err := a.CreateOrUpdate(ctx, rg, nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, a.Exists(rg))

	a.ClearFailure(prov.OpCreateOrUpdate, rg)
	_, err = a.CreateOrUpdate(ctx, rg, nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, a.CallCount(prov.OpCreateOrUpdate))
}

func TestAdapter_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	a := New()
	rg := model.NewHandle(kindGroup, "rgRSMR", nil)
	_, err := a.CreateOrUpdate(ctx, rg, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := model.NewHandle(kindAccount, string(rune('a'+i)), rg)
			_, err := a.CreateOrUpdate(ctx, h, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	listed, err := a.List(ctx, kindAccount, rg)
	require.NoError(t, err)
	assert.Len(t, listed, 16)
}

func countCalls(calls []Call, want Call) int {
	n := 0
	for _, c := range calls {
		if c == want {
			n++
		}
	}
	return n
}
