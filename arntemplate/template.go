// Package arntemplate expands ARN templates such as
// "arn:${Partition}:ec2:${Region}:${Account}:instance/${InstanceId}".
//
// Templates use HCL template syntax restricted to bare variable references.
// HCL parses them; expansion never normalizes text.
package arntemplate

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws/endpoints"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/pkg/errors"
)

// Placeholders every ARN template may use without the caller supplying them.
const (
	Partition = "Partition"
	Region    = "Region"
	Account   = "Account"
)

// Wildcard is substituted for an omitted region or account.
const Wildcard = "*"

var (
	// ErrInvalidTemplate is returned for a template that does not parse or
	// uses anything other than bare ${Name} references.
	ErrInvalidTemplate = errors.New("invalid ARN template")
	// ErrMissingValue is returned when a resource placeholder has no value.
	ErrMissingValue = errors.New("missing ARN template value")
)

var unescapeLiteral = strings.NewReplacer("$${", "${", "%%{", "%{")

// segment is either literal text or, when placeholder is set, a reference.
type segment struct {
	literal     string
	placeholder string
}

// Template is a parsed ARN template. Expansion copies literal text and
// values byte for byte; HCL is only used to parse.
type Template struct {
	source       string
	segments     []segment
	placeholders []string
}

// Parse parses an ARN template string.
func Parse(template string) (*Template, error) {
	text := []byte(template)
	expr, diags := hclsyntax.ParseTemplate(text, "arn", hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		return nil, errors.Wrapf(ErrInvalidTemplate, "%q: %s", template, diags.Error())
	}
	if strings.Contains(template, "${~") || strings.Contains(template, "~}") {
		return nil, errors.Wrapf(ErrInvalidTemplate, "%q: strip markers are not supported", template)
	}

	var parts []hclsyntax.Expression
	switch e := expr.(type) {
	case *hclsyntax.TemplateExpr:
		parts = e.Parts
	case *hclsyntax.TemplateWrapExpr:
		parts = []hclsyntax.Expression{e.Wrapped}
	case *hclsyntax.LiteralValueExpr:
		parts = []hclsyntax.Expression{e}
	default:
		return nil, errors.Wrapf(ErrInvalidTemplate, "%q is not a string template", template)
	}

	t := &Template{source: template}
	seen := map[string]bool{}
	var literal []byte
	flush := func() {
		if len(literal) > 0 {
			t.segments = append(t.segments, segment{literal: unescapeLiteral.Replace(string(literal))})
			literal = nil
		}
	}
	for _, part := range parts {
		switch p := part.(type) {
		case *hclsyntax.LiteralValueExpr:
			literal = append(literal, p.SrcRange.SliceBytes(text)...)
		case *hclsyntax.ScopeTraversalExpr:
			if len(p.Traversal) != 1 {
				return nil, errors.Wrapf(ErrInvalidTemplate, "placeholder %q at %s must be a bare name", traversalString(p.Traversal), p.SrcRange)
			}
			flush()
			name := p.Traversal.RootName()
			t.segments = append(t.segments, segment{placeholder: name})
			if !seen[name] {
				seen[name] = true
				t.placeholders = append(t.placeholders, name)
			}
		default:
			return nil, errors.Wrapf(ErrInvalidTemplate, "%q: only bare ${Name} references are allowed, found %s", template, part.Range())
		}
	}
	flush()

	return t, nil
}

// FromExpression wraps a quoted string expression, such as an attribute
// decoded from a catalog file. src is the text the expression was parsed
// from; the template is read back from it so escapes and Unicode survive
// exactly as written.
func FromExpression(expr hcl.Expression, src []byte) (*Template, error) {
	if expr == nil {
		return nil, errors.Wrap(ErrInvalidTemplate, "expression is nil")
	}

	raw := strings.TrimSpace(string(expr.Range().SliceBytes(src)))
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return nil, errors.Wrapf(ErrInvalidTemplate, "%s: %q is not a quoted string", expr.Range(), raw)
	}

	template, err := strconv.Unquote(raw)
	if err != nil {
		// HCL-JSON strings use JSON escapes.
		if jsonErr := json.Unmarshal([]byte(raw), &template); jsonErr != nil {
			return nil, errors.Wrapf(ErrInvalidTemplate, "%s: %q is not a plain string", expr.Range(), raw)
		}
	}
	return Parse(template)
}

// String returns the template source.
func (t *Template) String() string {
	return t.source
}

// Placeholders returns the names the template references, in order of
// first appearance.
func (t *Template) Placeholders() []string {
	return append([]string(nil), t.placeholders...)
}

// Required returns the placeholders that have no default and must be
// supplied to Expand.
func (t *Template) Required() []string {
	var required []string
	for _, name := range t.placeholders {
		if _, ok := defaults[name]; !ok {
			required = append(required, name)
		}
	}
	return required
}

var defaults = map[string]string{
	Partition: endpoints.AwsPartitionID,
	Region:    Wildcard,
	Account:   Wildcard,
}

// Expand substitutes values into the template. Partition defaults to "aws",
// Region and Account to "*" when missing or empty. Every other placeholder
// must be supplied with a non-empty value. Values are copied verbatim.
func (t *Template) Expand(values map[string]string) (string, error) {
	resolved := make(map[string]string, len(t.placeholders))
	var missing []string
	for _, name := range t.placeholders {
		v := values[name]
		if v == "" {
			def, ok := defaults[name]
			if !ok {
				missing = append(missing, name)
				continue
			}
			v = def
		}
		resolved[name] = v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", errors.Wrapf(ErrMissingValue, "template %q needs %s", t.source, strings.Join(missing, ", "))
	}

	var b strings.Builder
	for _, seg := range t.segments {
		if seg.placeholder == "" {
			b.WriteString(seg.literal)
			continue
		}
		b.WriteString(resolved[seg.placeholder])
	}
	return b.String(), nil
}

// Expand parses template and expands it with values.
func Expand(template string, values map[string]string) (string, error) {
	t, err := Parse(template)
	if err != nil {
		return "", err
	}
	return t.Expand(values)
}

// PartitionForRegion returns the partition a region belongs to, or "aws"
// when the region is empty, a wildcard or unknown.
func PartitionForRegion(region string) string {
	if region == "" || region == Wildcard {
		return endpoints.AwsPartitionID
	}
	if p, ok := endpoints.PartitionForRegion(endpoints.DefaultPartitions(), region); ok {
		return p.ID()
	}
	return endpoints.AwsPartitionID
}

func traversalString(traversal hcl.Traversal) string {
	var b strings.Builder
	for _, step := range traversal {
		switch s := step.(type) {
		case hcl.TraverseRoot:
			b.WriteString(s.Name)
		case hcl.TraverseAttr:
			b.WriteString("." + s.Name)
		default:
			b.WriteString("[...]")
		}
	}
	return b.String()
}
