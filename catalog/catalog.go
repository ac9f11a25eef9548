// Package catalog holds per-service IAM tables (actions, resource types,
// condition keys) loaded from HCL files, and the helpers that turn them
// into statement entries.
package catalog

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ttacon/iamstmt/arntemplate"
)

//go:embed data/*.hcl
var defaultFiles embed.FS

type fileSchema struct {
	Services      []serviceBlock      `hcl:"service,block"`
	GlobalKeys    []conditionKeyBlock `hcl:"global_condition_key,block"`
	TerraformMaps []terraformBlock    `hcl:"terraform_resource,block"`
}

type serviceBlock struct {
	Prefix        string              `hcl:"prefix,label"`
	Name          string              `hcl:"name,optional"`
	Actions       []actionBlock       `hcl:"action,block"`
	ResourceTypes []resourceTypeBlock `hcl:"resource_type,block"`
	ConditionKeys []conditionKeyBlock `hcl:"condition_key,block"`
}

type actionBlock struct {
	Name             string                `hcl:"name,label"`
	AccessLevel      string                `hcl:"access_level"`
	ConditionKeys    []string              `hcl:"condition_keys,optional"`
	DependentActions []string              `hcl:"dependent_actions,optional"`
	Resources        []actionResourceBlock `hcl:"resource,block"`
}

type actionResourceBlock struct {
	Type     string `hcl:"type,label"`
	Required bool   `hcl:"required,optional"`
}

type resourceTypeBlock struct {
	Name          string         `hcl:"name,label"`
	ARN           hcl.Expression `hcl:"arn"`
	ConditionKeys []string       `hcl:"condition_keys,optional"`
}

type conditionKeyBlock struct {
	Key         string `hcl:"key,label"`
	Type        string `hcl:"type"`
	Description string `hcl:"description,optional"`
}

type terraformBlock struct {
	Type  string   `hcl:"type,label"`
	Read  []string `hcl:"read,optional"`
	Write []string `hcl:"write,optional"`
}

// Catalog is a set of services. Loading is serialized; once loaded a
// catalog is safe for concurrent readers.
type Catalog struct {
	logger log.FieldLogger

	mu         sync.RWMutex
	services   map[string]*Service
	globalKeys []ConditionKey
	terraform  map[string]TerraformMapping
}

// New returns an empty catalog.
func New(logger log.FieldLogger) *Catalog {
	return &Catalog{
		logger:    logger,
		services:  map[string]*Service{},
		terraform: map[string]TerraformMapping{},
	}
}

// Default returns a catalog loaded from the embedded service files.
func Default(logger log.FieldLogger) (*Catalog, error) {
	c := New(logger)
	if err := c.LoadFS(defaultFiles, "data/*.hcl"); err != nil {
		return nil, errors.Wrap(err, "failed to load embedded catalog")
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "embedded catalog is inconsistent")
	}
	return c, nil
}

// LoadFile loads one .hcl or .json catalog file.
func (c *Catalog) LoadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read catalog file %s", path)
	}
	return c.load(src, path)
}

// LoadDir loads every .hcl and .json file directly under dir.
func (c *Catalog) LoadDir(dir string) error {
	return c.LoadFS(os.DirFS(dir), "*.*")
}

// LoadFS loads every file of fsys matching pattern whose extension is .hcl
// or .json, in lexical order.
func (c *Catalog) LoadFS(fsys fs.FS, pattern string) error {
	matches, err := fs.Glob(fsys, pattern)
	if err != nil {
		return errors.Wrapf(err, "bad catalog pattern %q", pattern)
	}
	sort.Strings(matches)

	for _, name := range matches {
		ext := filepath.Ext(name)
		if ext != ".hcl" && ext != ".json" {
			continue
		}
		src, err := fs.ReadFile(fsys, name)
		if err != nil {
			return errors.Wrapf(err, "failed to read catalog file %s", name)
		}
		if err := c.load(src, name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) load(src []byte, filename string) error {
	parser := hclparse.NewParser()

	var (
		file  *hcl.File
		diags hcl.Diagnostics
	)
	if strings.HasSuffix(filename, ".json") {
		file, diags = parser.ParseJSON(src, filename)
	} else {
		file, diags = parser.ParseHCL(src, filename)
	}
	if diags.HasErrors() {
		return errors.Wrapf(diags, "failed to parse catalog file %s", filename)
	}

	var schema fileSchema
	if diags := gohcl.DecodeBody(file.Body, &hcl.EvalContext{}, &schema); diags.HasErrors() {
		return errors.Wrapf(diags, "failed to decode catalog file %s", filename)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var result *multierror.Error
	services := make([]*Service, 0, len(schema.Services))
	for _, block := range schema.Services {
		if _, exists := c.services[block.Prefix]; exists {
			result = multierror.Append(result, errors.Errorf("%s: service %q is already defined", filename, block.Prefix))
			continue
		}
		svc, err := c.buildService(block, src)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "%s: service %q", filename, block.Prefix))
			continue
		}
		services = append(services, svc)
	}

	var globals []ConditionKey
	for _, block := range schema.GlobalKeys {
		key, err := buildConditionKey(block)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "%s", filename))
			continue
		}
		globals = append(globals, key)
	}

	mappings := make([]TerraformMapping, 0, len(schema.TerraformMaps))
	for _, block := range schema.TerraformMaps {
		if _, exists := c.terraform[block.Type]; exists {
			result = multierror.Append(result, errors.Errorf("%s: terraform resource %q is already mapped", filename, block.Type))
			continue
		}
		mappings = append(mappings, TerraformMapping{Type: block.Type, Read: block.Read, Write: block.Write})
	}

	if err := result.ErrorOrNil(); err != nil {
		return err
	}

	for _, svc := range services {
		c.services[svc.Prefix] = svc
	}
	c.globalKeys = append(c.globalKeys, globals...)
	for _, m := range mappings {
		c.terraform[m.Type] = m
	}

	c.logger.WithFields(log.Fields{
		"file":        filename,
		"services":    len(services),
		"global-keys": len(globals),
		"terraform":   len(mappings),
	}).Debug("Loaded catalog file")

	return nil
}

func (c *Catalog) buildService(block serviceBlock, src []byte) (*Service, error) {
	svc := &Service{
		Prefix:        block.Prefix,
		Name:          block.Name,
		catalog:       c,
		actions:       map[string]*Action{},
		resourceTypes: map[string]*ResourceType{},
		conditionKeys: map[string]ConditionKey{},
	}

	var result *multierror.Error

	for _, rt := range block.ResourceTypes {
		tmpl, err := arntemplate.FromExpression(rt.ARN, src)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "resource type %q", rt.Name))
			continue
		}
		svc.resourceTypes[rt.Name] = &ResourceType{
			Name:          rt.Name,
			ARN:           tmpl,
			ConditionKeys: rt.ConditionKeys,
		}
	}

	for _, ck := range block.ConditionKeys {
		key, err := buildConditionKey(ck)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		svc.conditionKeys[key.Key] = key
	}

	for _, a := range block.Actions {
		if _, exists := svc.actions[a.Name]; exists {
			result = multierror.Append(result, errors.Errorf("action %q is defined twice", a.Name))
			continue
		}
		level, ok := ParseAccessLevel(a.AccessLevel)
		if !ok {
			result = multierror.Append(result, errors.Errorf("action %q has unknown access level %q", a.Name, a.AccessLevel))
			continue
		}
		action := &Action{
			Name:             a.Name,
			AccessLevel:      level,
			ConditionKeys:    a.ConditionKeys,
			DependentActions: a.DependentActions,
		}
		for _, r := range a.Resources {
			if _, ok := svc.resourceTypes[r.Type]; !ok {
				result = multierror.Append(result, errors.Errorf("action %q references undefined resource type %q", a.Name, r.Type))
				continue
			}
			action.ResourceTypes = append(action.ResourceTypes, ActionResource{Type: r.Type, Required: r.Required})
		}
		svc.actions[a.Name] = action
		svc.actionNames = append(svc.actionNames, a.Name)
	}
	sort.Strings(svc.actionNames)

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return svc, nil
}

func buildConditionKey(block conditionKeyBlock) (ConditionKey, error) {
	typ := ConditionType(block.Type)
	if !typ.valid() {
		return ConditionKey{}, errors.Errorf("condition key %q has unknown type %q", block.Key, block.Type)
	}
	return ConditionKey{Key: block.Key, Type: typ, Description: block.Description}, nil
}

// Validate checks references between loaded files: dependent actions and
// Terraform mappings that name a loaded service must name one of its
// actions.
func (c *Catalog) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result *multierror.Error
	check := func(where, qualified string) {
		prefix, name, ok := strings.Cut(qualified, ":")
		if !ok || prefix == "" || name == "" {
			result = multierror.Append(result, errors.Errorf("%s: %q is not a qualified action", where, qualified))
			return
		}
		svc, ok := c.services[prefix]
		if !ok {
			return
		}
		if _, ok := svc.actions[name]; !ok {
			result = multierror.Append(result, errors.Errorf("%s: service %q has no action %q", where, prefix, name))
		}
	}

	for _, svc := range c.services {
		for _, name := range svc.actionNames {
			for _, dep := range svc.actions[name].DependentActions {
				check(svc.Prefix+":"+name, dep)
			}
		}
	}
	for _, m := range c.terraform {
		for _, a := range m.Read {
			check(m.Type, a)
		}
		for _, a := range m.Write {
			check(m.Type, a)
		}
	}
	return result.ErrorOrNil()
}

// Service returns the service with the given prefix.
func (c *Catalog) Service(prefix string) (*Service, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	svc, ok := c.services[prefix]
	return svc, ok
}

// Services returns every loaded service ordered by prefix.
func (c *Catalog) Services() []*Service {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Service, 0, len(c.services))
	for _, svc := range c.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}

// TerraformMapping returns the actions mapped to a Terraform resource type.
func (c *Catalog) TerraformMapping(resourceType string) (TerraformMapping, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.terraform[resourceType]
	return m, ok
}

// GlobalConditionKey looks up an "aws:" condition key.
func (c *Catalog) GlobalConditionKey(key string) (ConditionKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ck := range c.globalKeys {
		if ck.matches(key) {
			return ck, true
		}
	}
	return ConditionKey{}, false
}

// HasAction reports whether a qualified action such as "ec2:StartInstances"
// is known. Actions of services absent from the catalog are unknown.
func (c *Catalog) HasAction(qualified string) bool {
	prefix, name, ok := strings.Cut(qualified, ":")
	if !ok {
		return false
	}
	svc, ok := c.Service(prefix)
	if !ok {
		return false
	}
	_, ok = svc.Action(name)
	return ok
}
