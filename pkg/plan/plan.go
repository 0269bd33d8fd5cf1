// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package plan reads descriptor sets from YAML plan files.
//
// A plan declares named resources (kind, name, parent scope) and the
// operations to run against them. The file is rendered as a text/template with
// the sprig function map before it is decoded; template data is the "vars"
// section merged with caller overrides. The file must be valid YAML before
// rendering, so template actions belong inside quoted strings.
//
// An operation's "op" is createOrUpdate (or create-or-update), delete or list;
// the capitalised names of model.OperationKind are accepted as well.
package plan

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
)

//go:embed sample.yaml
var sample []byte

// File is the decoded form of a plan file.
type File struct {
	Vars       map[string]string `yaml:"vars"`
	Resources  []Resource        `yaml:"resources"`
	Operations []Operation       `yaml:"operations"`
}

// Resource declares a handle. Scope is the id of the containing resource.
type Resource struct {
	ID    string `yaml:"id"`
	Kind  string `yaml:"kind"`
	Name  string `yaml:"name"`
	Scope string `yaml:"scope"`
}

// Operation declares a descriptor. CreateOrUpdate and Delete name a Resource;
// List names a Kind and an optional Scope resource.
type Operation struct {
	ID        string         `yaml:"id"`
	Op        string         `yaml:"op"`
	Resource  string         `yaml:"resource"`
	Kind      string         `yaml:"kind"`
	Scope     string         `yaml:"scope"`
	Payload   map[string]any `yaml:"payload"`
	DependsOn []string       `yaml:"dependsOn"`
}

// Plan is a loaded plan: the handles it declares and the descriptors to run.
type Plan struct {
	Vars        map[string]string
	Handles     []*model.Handle
	Descriptors []model.Descriptor

	byID map[string]*model.Handle
}

// Handle returns the handle declared with the given resource id.
func (p *Plan) Handle(id string) (*model.Handle, bool) {
	h, ok := p.byID[id]
	return h, ok
}

// Load reads and parses the plan at path.
func Load(path string, overrides map[string]string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return Parse(data, overrides)
}

// Sample returns the built-in storage account plan.
func Sample(overrides map[string]string) (*Plan, error) {
	return Parse(sample, overrides)
}

// SampleSource returns the text of the built-in plan.
func SampleSource() string {
	return string(sample)
}

// Parse renders and decodes a plan.
func Parse(data []byte, overrides map[string]string) (*Plan, error) {
	var header struct {
		Vars map[string]string `yaml:"vars"`
	}
	if err := yaml.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	vars := make(map[string]string, len(header.Vars)+len(overrides))
	for k, v := range header.Vars {
		vars[k] = v
	}
	for k, v := range overrides {
		vars[k] = v
	}

	rendered, err := render(string(data), vars)
	if err != nil {
		return nil, err
	}

	var file File
	dec := yaml.NewDecoder(strings.NewReader(rendered))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse rendered plan: %w", err)
	}
	file.Vars = vars

	return file.build()
}

func render(content string, vars map[string]string) (string, error) {
	tmpl, err := template.New("plan").Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse plan template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render plan: %w", err)
	}
	return buf.String(), nil
}

func (f *File) build() (*Plan, error) {
	p := &Plan{
		Vars: f.Vars,
		byID: make(map[string]*model.Handle, len(f.Resources)),
	}

	for i, r := range f.Resources {
		switch {
		case r.ID == "":
			return nil, fmt.Errorf("resources[%d]: id is required", i)
		case r.Kind == "":
			return nil, fmt.Errorf("resource %q: kind is required", r.ID)
		case r.Name == "":
			return nil, fmt.Errorf("resource %q: name is required", r.ID)
		}
		if _, dup := p.byID[r.ID]; dup {
			return nil, fmt.Errorf("resource %q: duplicate id", r.ID)
		}
		h := model.NewHandle(r.Kind, r.Name, nil)
		p.byID[r.ID] = h
		p.Handles = append(p.Handles, h)
	}

	for _, r := range f.Resources {
		if r.Scope == "" {
			continue
		}
		scope, ok := p.byID[r.Scope]
		if !ok {
			return nil, fmt.Errorf("resource %q: unknown scope %q", r.ID, r.Scope)
		}
		p.byID[r.ID].Scope = scope
	}

	// A scope chain longer than the resource list loops.
	for _, r := range f.Resources {
		depth := 0
		for s := p.byID[r.ID].Scope; s != nil; s = s.Scope {
			if depth++; depth > len(f.Resources) {
				return nil, fmt.Errorf("resource %q: scope chain is circular", r.ID)
			}
		}
	}

	for i, op := range f.Operations {
		d, err := p.descriptor(op)
		if err != nil {
			if op.ID == "" {
				return nil, fmt.Errorf("operations[%d]: %w", i, err)
			}
			return nil, fmt.Errorf("operation %q: %w", op.ID, err)
		}
		p.Descriptors = append(p.Descriptors, d)
	}

	return p, nil
}

func (p *Plan) descriptor(op Operation) (model.Descriptor, error) {
	kind, err := model.ParseOperationKind(op.Op)
	if err != nil {
		return model.Descriptor{}, err
	}

	d := model.Descriptor{
		ID:        op.ID,
		Kind:      kind,
		DependsOn: op.DependsOn,
	}

	switch kind {
	case model.OperationList:
		if op.Kind == "" {
			return model.Descriptor{}, fmt.Errorf("list requires a kind")
		}
		var scope *model.Handle
		if op.Scope != "" {
			var ok bool
			if scope, ok = p.byID[op.Scope]; !ok {
				return model.Descriptor{}, fmt.Errorf("unknown scope %q", op.Scope)
			}
		}
		d.Target = model.NewHandle(op.Kind, "", scope)
	default:
		h, ok := p.byID[op.Resource]
		if !ok {
			return model.Descriptor{}, fmt.Errorf("unknown resource %q", op.Resource)
		}
		d.Target = h
	}

	if len(op.Payload) > 0 {
		if kind != model.OperationCreateOrUpdate {
			return model.Descriptor{}, fmt.Errorf("%s takes no payload", kind)
		}
		payload, err := json.Marshal(op.Payload)
		if err != nil {
			return model.Descriptor{}, fmt.Errorf("failed to encode payload: %w", err)
		}
		d.Payload = payload
	}

	return d, nil
}

// ParseSet parses --set key=value flags.
func ParseSet(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, kv := range values {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", kv)
		}
		out[k] = v
	}
	return out, nil
}
