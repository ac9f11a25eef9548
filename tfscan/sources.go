// Package tfscan reads Terraform sources and works out which IAM actions
// applying them needs.
package tfscan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zclconf/go-cty/cty"
)

// lifted from terraform 0.12 source
var terraformSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{
			Type: "terraform",
		},
		{
			Type:       "provider",
			LabelNames: []string{"name"},
		},
		{
			Type:       "variable",
			LabelNames: []string{"name"},
		},
		{
			Type: "locals",
		},
		{
			Type:       "output",
			LabelNames: []string{"name"},
		},
		{
			Type:       "module",
			LabelNames: []string{"name"},
		},
		{
			Type:       "resource",
			LabelNames: []string{"type", "name"},
		},
		{
			Type:       "data",
			LabelNames: []string{"type", "name"},
		},
	},
}

// Sources holds the resource, data and module blocks of a set of
// Terraform files, keyed by resource type (or module name).
type Sources struct {
	Resources map[string][]*hcl.Block
	Data      map[string][]*hcl.Block
	Modules   map[string][]*hcl.Block

	ctx *hcl.EvalContext
}

func newSources() *Sources {
	return &Sources{
		Resources: map[string][]*hcl.Block{},
		Data:      map[string][]*hcl.Block{},
		Modules:   map[string][]*hcl.Block{},

		ctx: &hcl.EvalContext{
			Variables: make(map[string]cty.Value),
		},
	}
}

// Load parses path, which is either a single .tf file or a directory whose
// .tf files are all read. Error diagnostics fail the load; anything less
// severe is logged.
func Load(path string, logger log.FieldLogger) (*Sources, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}

	var targets []string
	if !info.IsDir() {
		targets = []string{path}
	} else {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read directory %s", path)
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".tf") {
				targets = append(targets, filepath.Join(path, entry.Name()))
			}
		}
	}
	sort.Strings(targets)

	parser := hclparse.NewParser()
	for _, target := range targets {
		_, diags := parser.ParseHCLFile(target)
		for _, diag := range diags {
			if diag.Severity == hcl.DiagError {
				return nil, errors.Wrapf(diags, "failed to parse %s", target)
			}
			logger.WithField("file", target).Warn(diag.Error())
		}
	}

	sources := newSources()
	for _, name := range targets {
		sources.processFile(parser.Files()[name])
	}

	logger.WithFields(log.Fields{
		"files":     len(targets),
		"resources": len(sources.Resources),
		"data":      len(sources.Data),
		"modules":   len(sources.Modules),
	}).Debug("Loaded terraform sources")

	return sources, nil
}

func (s *Sources) processFile(file *hcl.File) {
	if file == nil {
		return
	}
	contents, _, _ := file.Body.PartialContent(terraformSchema)

	for _, block := range contents.Blocks {
		var aggr map[string][]*hcl.Block

		switch block.Type {
		case "resource":
			aggr = s.Resources
			fallthrough
		case "data":
			if aggr == nil {
				aggr = s.Data
			}

			if len(block.Labels) < 2 {
				// broken resource, toss it
				continue
			}

			typ := block.Labels[0]
			aggr[typ] = append(aggr[typ], block)

		case "module":
			s.Modules[block.Labels[0]] = append(s.Modules[block.Labels[0]], block)

		default:
			continue
		}
	}
}

// ModuleSource returns the literal source attribute of a module block, or
// an empty string when it has none or it is not a plain string.
func (s *Sources) ModuleSource(block *hcl.Block) string {
	attrs, _ := block.Body.JustAttributes()
	attr, ok := attrs["source"]
	if !ok {
		return ""
	}
	val, diags := attr.Expr.Value(s.ctx)
	if diags.HasErrors() || val.IsNull() || !val.IsKnown() || val.Type() != cty.String {
		return ""
	}
	return val.AsString()
}

// Debug describes the collected blocks, one per line, in a stable order.
func (s *Sources) Debug() (debugStr string) {
	resourceTypes := sortedKeys(s.Resources)
	for ri, typ := range resourceTypes {
		if ri == 0 {
			debugStr += "resources:\n"
		}
		for i, v := range s.Resources[typ] {
			debugStr += fmt.Sprintf(
				"[%d/%d] resource:%q [%d/%d] %q\n",
				ri,
				len(resourceTypes),
				typ,
				i,
				len(s.Resources[typ]),
				v.Labels[1],
			)
		}
	}

	dataTypes := sortedKeys(s.Data)
	for di, typ := range dataTypes {
		if di == 0 {
			debugStr += "\ndata:\n"
		}
		for i, v := range s.Data[typ] {
			debugStr += fmt.Sprintf(
				"[%d/%d] data:%q [%d/%d] %q\n",
				di,
				len(dataTypes),
				typ,
				i,
				len(s.Data[typ]),
				v.Labels[1],
			)
		}
	}

	moduleNames := sortedKeys(s.Modules)
	for mi, name := range moduleNames {
		if mi == 0 {
			debugStr += "\nmodules:\n"
		}
		for _, v := range s.Modules[name] {
			debugStr += fmt.Sprintf(
				"[%d/%d] module:%q %q\n",
				mi,
				len(moduleNames),
				name,
				s.ModuleSource(v),
			)
		}
	}

	return
}

func sortedKeys(m map[string][]*hcl.Block) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
