// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	azfake "github.com/Azure/azure-sdk-for-go/sdk/azcore/fake"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/config"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/nativeid"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/resources"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/sequencer"
)

const testSubscription = "00000000-0000-0000-0000-000000000001"

// fakeARM serves the resource group and storage account endpoints from maps.
type fakeARM struct {
	mu       sync.Mutex
	groups   map[string]string // name -> location
	accounts map[string]string // group/name -> sku
	requests []string
}

func newFakeARM() *fakeARM {
	return &fakeARM{groups: make(map[string]string), accounts: make(map[string]string)}
}

func (f *fakeARM) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req.Method+" "+req.URL.Path)

	segs := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	if len(segs) < 3 || !strings.EqualFold(segs[2], "resourcegroups") {
		return respond(req, http.StatusBadRequest, `{"error":{"code":"InvalidRequest","message":"unexpected path"}}`), nil
	}

	if len(segs) >= 7 && strings.EqualFold(segs[6], "storageAccounts") {
		return f.storage(req, segs[3], segs[7:]), nil
	}

	if len(segs) == 3 {
		names := make([]string, 0, len(f.groups))
		for name := range f.groups {
			names = append(names, name)
		}
		sort.Strings(names)
		values := make([]string, len(names))
		for i, name := range names {
			values[i] = groupJSON(name, f.groups[name])
		}
		return respond(req, http.StatusOK, `{"value":[`+strings.Join(values, ",")+`]}`), nil
	}

	name := segs[3]
	notFound := fmt.Sprintf(`{"error":{"code":"ResourceGroupNotFound","message":"Resource group '%s' could not be found."}}`, name)

	switch req.Method {
	case http.MethodPut:
		var body struct {
			Location string `json:"location"`
		}
		if req.Body != nil {
			_ = json.NewDecoder(req.Body).Decode(&body)
		}
		f.groups[name] = body.Location
		return respond(req, http.StatusOK, groupJSON(name, body.Location)), nil
	case http.MethodGet:
		location, ok := f.groups[name]
		if !ok {
			return respond(req, http.StatusNotFound, notFound), nil
		}
		return respond(req, http.StatusOK, groupJSON(name, location)), nil
	case http.MethodDelete:
		if _, ok := f.groups[name]; !ok {
			return respond(req, http.StatusNotFound, notFound), nil
		}
		delete(f.groups, name)
		for key := range f.accounts {
			if strings.HasPrefix(key, name+"/") {
				delete(f.accounts, key)
			}
		}
		return respond(req, http.StatusOK, ""), nil
	}
	return respond(req, http.StatusMethodNotAllowed, `{"error":{"code":"MethodNotAllowed","message":"unsupported"}}`), nil
}

func (f *fakeARM) storage(req *http.Request, group string, rest []string) *http.Response {
	if len(rest) == 0 {
		var values []string
		var keys []string
		for key := range f.accounts {
			if strings.HasPrefix(key, group+"/") {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			values = append(values, accountJSON(group, strings.TrimPrefix(key, group+"/"), f.accounts[key]))
		}
		return respond(req, http.StatusOK, `{"value":[`+strings.Join(values, ",")+`]}`)
	}

	name := rest[0]
	key := group + "/" + name
	var body struct {
		SKU struct {
			Name string `json:"name"`
		} `json:"sku"`
	}
	if req.Body != nil {
		_ = json.NewDecoder(req.Body).Decode(&body)
	}

	sku, exists := f.accounts[key]
	switch req.Method {
	case http.MethodPut:
		if _, ok := f.groups[group]; !ok {
			return respond(req, http.StatusNotFound, `{"error":{"code":"ResourceGroupNotFound","message":"missing group"}}`)
		}
		f.accounts[key] = body.SKU.Name
		return respond(req, http.StatusOK, accountJSON(group, name, body.SKU.Name))
	case http.MethodPatch:
		if !exists {
			return respond(req, http.StatusNotFound, `{"error":{"code":"ResourceNotFound","message":"missing account"}}`)
		}
		if body.SKU.Name != "" {
			f.accounts[key] = body.SKU.Name
		}
		return respond(req, http.StatusOK, accountJSON(group, name, f.accounts[key]))
	case http.MethodGet:
		if !exists {
			return respond(req, http.StatusNotFound, `{"error":{"code":"ResourceNotFound","message":"missing account"}}`)
		}
		return respond(req, http.StatusOK, accountJSON(group, name, sku))
	case http.MethodDelete:
		delete(f.accounts, key)
		return respond(req, http.StatusOK, "")
	}
	return respond(req, http.StatusMethodNotAllowed, `{"error":{"code":"MethodNotAllowed","message":"unsupported"}}`)
}

func (f *fakeARM) sku(group, name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sku, ok := f.accounts[group+"/"+name]
	return sku, ok
}

func (f *fakeARM) storageMethods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.requests {
		if strings.Contains(r, "/storageAccounts") {
			out = append(out, strings.SplitN(r, " ", 2)[0])
		}
	}
	return out
}

func accountJSON(group, name, sku string) string {
	return fmt.Sprintf(`{"id":"/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Storage/storageAccounts/%s","name":%q,"location":"westus","kind":"Storage","sku":{"name":%q},"properties":{"provisioningState":"Succeeded"}}`,
		testSubscription, group, name, name, sku)
}

func (f *fakeARM) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.groups[name]
	return ok
}

func groupJSON(name, location string) string {
	return fmt.Sprintf(`{"id":"/subscriptions/%s/resourceGroups/%s","name":%q,"location":%q,"properties":{"provisioningState":"Succeeded"}}`,
		testSubscription, name, name, location)
}

func respond(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Request:    req,
	}
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeARM) {
	t.Helper()
	srv := newFakeARM()
	cfg := &config.Config{SubscriptionId: testSubscription, Location: "westus"}
	c, err := client.NewClientWithCredential(cfg, &azfake.TokenCredential{}, &arm.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Transport: srv,
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
	})
	require.NoError(t, err)
	return New(c), srv
}

func TestAdapter_CreateOrUpdateEncodesRemoteID(t *testing.T) {
	a, srv := newTestAdapter(t)
	g := model.NewHandle(resources.ResourceTypeResourceGroup, "rgRSMR", nil)

	first, err := a.CreateOrUpdate(context.Background(), g, json.RawMessage(`{"location":"eastus"}`))
	require.NoError(t, err)
	assert.True(t, srv.has("rgRSMR"))

	id, err := nativeid.Parse(first.RemoteID)
	require.NoError(t, err)
	assert.Equal(t, "/subscriptions/"+testSubscription+"/resourceGroups/rgRSMR", id.ArmID())
	assert.Empty(t, g.RemoteID, "target handle is not mutated")

	g.RemoteID = first.RemoteID
	second, err := a.CreateOrUpdate(context.Background(), g, json.RawMessage(`{"location":"eastus"}`))
	require.NoError(t, err)
	assert.Equal(t, first.RemoteID, second.RemoteID, "update in place keeps the instance")
}

func TestAdapter_GetMissingIsNotFound(t *testing.T) {
	a, _ := newTestAdapter(t)
	g := model.NewHandle(resources.ResourceTypeResourceGroup, "missing", nil)

	_, err := a.Get(context.Background(), g)
	require.Error(t, err)
	assert.True(t, prov.IsNotFound(err))
}

func TestAdapter_DeleteMissingSucceeds(t *testing.T) {
	a, _ := newTestAdapter(t)
	g := model.NewHandle(resources.ResourceTypeResourceGroup, "missing", nil)

	assert.NoError(t, a.Delete(context.Background(), g))
}

func TestAdapter_UnsupportedKind(t *testing.T) {
	a, srv := newTestAdapter(t)
	h := model.NewHandle("Azure::Nope::Thing", "x", nil)

	_, err := a.CreateOrUpdate(context.Background(), h, nil)
	require.Error(t, err)
	var unsupported *UnsupportedKindError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, resource.OperationErrorCodeInvalidRequest, prov.CodeOf(err))
	assert.Empty(t, srv.requests)
	assert.False(t, a.Supports("Azure::Nope::Thing"))
	assert.True(t, a.Supports(resources.ResourceTypeStorageAccount))
}

func TestAdapter_List(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := context.Background()
	for _, name := range []string{"rg-b", "rg-a"} {
		_, err := a.CreateOrUpdate(ctx, model.NewHandle(resources.ResourceTypeResourceGroup, name, nil), nil)
		require.NoError(t, err)
	}

	listed, err := a.List(ctx, resources.ResourceTypeResourceGroup, nil)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "rg-a", listed[0].Name)
	assert.Equal(t, "rg-b", listed[1].Name)
	for _, h := range listed {
		_, err := nativeid.Parse(h.RemoteID)
		assert.NoError(t, err)
	}
}

func TestAdapter_SequencerRunTearsDownGroup(t *testing.T) {
	a, srv := newTestAdapter(t)
	g := model.NewHandle(resources.ResourceTypeResourceGroup, "rgRSMR", nil)
	query := model.NewHandle(resources.ResourceTypeResourceGroup, "", nil)

	report, err := sequencer.Execute(context.Background(), []model.Descriptor{
		{ID: "group", Target: g, Kind: model.OperationCreateOrUpdate, Payload: json.RawMessage(`{"location":"westus"}`)},
		{ID: "groups", Target: query, Kind: model.OperationList, DependsOn: []string{"group"}},
	}, a)
	require.NoError(t, err)

	require.Len(t, report.Execution(), 2)
	require.Len(t, report.Teardown(), 1)
	assert.Equal(t, sequencer.OutcomeRolledBack, report.Teardown()[0].Outcome)
	require.Len(t, report.Observed("groups"), 1)
	assert.Equal(t, "rgRSMR", report.Observed("groups")[0].Name)

	assert.Equal(t, model.StateDeleted, g.State)
	assert.False(t, srv.has("rgRSMR"))
}

func TestAdapter_StorageAccountCreateThenPatch(t *testing.T) {
	a, srv := newTestAdapter(t)
	ctx := context.Background()
	g := model.NewHandle(resources.ResourceTypeResourceGroup, "rgRSMR", nil)
	account := model.NewHandle(resources.ResourceTypeStorageAccount, "rn1", g)

	_, err := a.CreateOrUpdate(ctx, g, json.RawMessage(`{"location":"westus"}`))
	require.NoError(t, err)

	created, err := a.CreateOrUpdate(ctx, account, json.RawMessage(`{"kind":"Storage","sku":{"name":"Standard_LRS"}}`))
	require.NoError(t, err)
	sku, _ := srv.sku("rgRSMR", "rn1")
	assert.Equal(t, "Standard_LRS", sku)

	account.RemoteID = created.RemoteID
	updated, err := a.CreateOrUpdate(ctx, account, json.RawMessage(`{"kind":"Storage","sku":{"name":"Standard_RAGRS"}}`))
	require.NoError(t, err)
	sku, _ = srv.sku("rgRSMR", "rn1")
	assert.Equal(t, "Standard_RAGRS", sku)
	assert.Equal(t, created.RemoteID, updated.RemoteID)

	assert.Equal(t, []string{"GET", "PUT", "GET", "PATCH"}, srv.storageMethods())

	listed, err := a.List(ctx, resources.ResourceTypeStorageAccount, g)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "rn1", listed[0].Name)
	assert.Same(t, g, listed[0].Scope)
}

func TestAdapter_SampleRun(t *testing.T) {
	a, srv := newTestAdapter(t)
	g := model.NewHandle(resources.ResourceTypeResourceGroup, "rgRSMR", nil)
	rn1 := model.NewHandle(resources.ResourceTypeStorageAccount, "rn1", g)
	rn2 := model.NewHandle(resources.ResourceTypeStorageAccount, "rn2", g)
	query := model.NewHandle(resources.ResourceTypeStorageAccount, "", g)

	report, err := sequencer.Execute(context.Background(), []model.Descriptor{
		{ID: "g", Target: g, Kind: model.OperationCreateOrUpdate, Payload: json.RawMessage(`{"location":"westus"}`)},
		{ID: "a1", Target: rn1, Kind: model.OperationCreateOrUpdate, DependsOn: []string{"g"},
			Payload: json.RawMessage(`{"kind":"Storage","sku":{"name":"Standard_LRS"}}`)},
		{ID: "a1-update", Target: rn1, Kind: model.OperationCreateOrUpdate, DependsOn: []string{"a1"},
			Payload: json.RawMessage(`{"kind":"Storage","sku":{"name":"Standard_RAGRS"}}`)},
		{ID: "a2", Target: rn2, Kind: model.OperationCreateOrUpdate, DependsOn: []string{"a1-update"},
			Payload: json.RawMessage(`{"kind":"Storage","sku":{"name":"Standard_GRS"}}`)},
		{ID: "list", Target: query, Kind: model.OperationList, DependsOn: []string{"a2"}},
		{ID: "a2-delete", Target: rn2, Kind: model.OperationDelete, DependsOn: []string{"list"}},
	}, a)
	require.NoError(t, err)

	assert.Equal(t, 6, report.Count(sequencer.OutcomeSucceeded))
	teardown := report.Teardown()
	require.Len(t, teardown, 2)
	assert.Equal(t, "a1", teardown[0].OperationID)
	assert.Equal(t, "g", teardown[1].OperationID)
	assert.Len(t, report.Observed("list"), 2)

	assert.Equal(t, model.StateDeleted, rn1.State)
	assert.Equal(t, model.StateDeleted, rn2.State)
	_, exists := srv.sku("rgRSMR", "rn1")
	assert.False(t, exists)
	assert.False(t, srv.has("rgRSMR"))
}
