package policy

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Version is the IAM policy language version documents are rendered with.
const Version = "2012-10-17"

// ErrDuplicateSid is returned when two statements of a document share a sid.
var ErrDuplicateSid = errors.New("duplicate statement id")

// Document is an IAM policy document: a version and its statements.
type Document struct {
	statements []*Statement
	sids       map[string]struct{}
}

// RenderedDocument is the IAM JSON shape of a document.
type RenderedDocument struct {
	Version   string     `json:"Version" yaml:"Version"`
	Statement []Rendered `json:"Statement" yaml:"Statement"`
}

// NewDocument returns a document holding the given statements.
func NewDocument(statements ...*Statement) (*Document, error) {
	d := &Document{sids: map[string]struct{}{}}
	for _, st := range statements {
		if err := d.Add(st); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Add appends a statement. Non-empty sids must be unique in the document.
func (d *Document) Add(st *Statement) error {
	if st == nil {
		return errors.New("statement is nil")
	}
	if sid := st.Sid(); sid != "" {
		if _, ok := d.sids[sid]; ok {
			return errors.Wrapf(ErrDuplicateSid, "sid %q", sid)
		}
		d.sids[sid] = struct{}{}
	}
	d.statements = append(d.statements, st)
	return nil
}

// Statements returns the document's statements.
func (d *Document) Statements() []*Statement {
	return append([]*Statement(nil), d.statements...)
}

// Render returns the IAM form of the document.
func (d *Document) Render() RenderedDocument {
	r := RenderedDocument{
		Version:   Version,
		Statement: make([]Rendered, 0, len(d.statements)),
	}
	for _, st := range d.statements {
		r.Statement = append(r.Statement, st.Render())
	}
	return r
}

// MarshalJSON implements json.Marshaler.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Render())
}

// JSON renders the document, optionally indented by two spaces.
func (d *Document) JSON(indent bool) ([]byte, error) {
	if indent {
		return json.MarshalIndent(d.Render(), "", "  ")
	}
	return json.Marshal(d.Render())
}

// YAML renders the document as YAML.
func (d *Document) YAML() ([]byte, error) {
	return yaml.Marshal(d.Render())
}

type rawDocument struct {
	Version   string          `json:"Version"`
	Statement json.RawMessage `json:"Statement"`
}

type rawStatement struct {
	Sid          string                                `json:"Sid"`
	Effect       Effect                                `json:"Effect"`
	Principal    json.RawMessage                       `json:"Principal"`
	NotPrincipal json.RawMessage                       `json:"NotPrincipal"`
	Action       Value                                 `json:"Action"`
	NotAction    Value                                 `json:"NotAction"`
	Resource     Value                                 `json:"Resource"`
	NotResource  Value                                 `json:"NotResource"`
	Condition    map[string]map[string]conditionValues `json:"Condition"`
}

// conditionValues accepts the scalar forms IAM tolerates in condition
// values (strings, booleans, numbers) and keeps them as strings.
type conditionValues []string

func (c *conditionValues) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	items, ok := raw.([]interface{})
	if !ok {
		items = []interface{}{raw}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case bool:
			out = append(out, strconv.FormatBool(v))
		case json.Number:
			out = append(out, v.String())
		default:
			return errors.Errorf("unsupported condition value %v", item)
		}
	}
	*c = out
	return nil
}

// ParseDocument parses an IAM policy document. Every element goes through
// the statement builder, so a document that could not have been built
// fails to parse.
func ParseDocument(data []byte) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode policy document")
	}
	if raw.Version != "" && raw.Version != Version && raw.Version != "2008-10-17" {
		return nil, errors.Errorf("unsupported policy version %q", raw.Version)
	}

	var rawStatements []rawStatement
	trimmed := bytes.TrimSpace(raw.Statement)
	switch {
	case len(trimmed) == 0:
	case trimmed[0] == '{':
		var single rawStatement
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, errors.Wrap(err, "failed to decode statement")
		}
		rawStatements = append(rawStatements, single)
	default:
		if err := json.Unmarshal(trimmed, &rawStatements); err != nil {
			return nil, errors.Wrap(err, "failed to decode statements")
		}
	}

	doc, err := NewDocument()
	if err != nil {
		return nil, err
	}
	for i, rs := range rawStatements {
		st, err := rs.statement()
		if err != nil {
			return nil, errors.Wrapf(err, "statement %d", i)
		}
		if err := doc.Add(st); err != nil {
			return nil, errors.Wrapf(err, "statement %d", i)
		}
	}
	return doc, nil
}

func (rs rawStatement) statement() (*Statement, error) {
	if len(rs.Principal) > 0 || len(rs.NotPrincipal) > 0 {
		return nil, errors.New("principal elements are not supported")
	}

	st := NewStatement(rs.Sid)
	if err := st.SetEffect(rs.Effect); err != nil {
		return nil, err
	}
	// Existing policies may grant every action with a bare "*", which the
	// builder does not produce.
	for _, a := range rs.Action {
		add := st.AddAction
		if a == AllActions {
			add = st.insertAction
		}
		if err := add(a); err != nil {
			return nil, err
		}
	}
	for _, a := range rs.NotAction {
		add := st.AddNotAction
		if a == AllActions {
			add = st.insertNotAction
		}
		if err := add(a); err != nil {
			return nil, err
		}
	}
	for _, r := range rs.Resource {
		if err := st.AddResource(r); err != nil {
			return nil, err
		}
	}
	for _, r := range rs.NotResource {
		if err := st.AddNotResource(r); err != nil {
			return nil, err
		}
	}
	for operator, byKey := range rs.Condition {
		for key, values := range byKey {
			if _, seen := st.conditions[key]; seen {
				return nil, errors.Wrapf(ErrInvalidCondition, "condition key %q appears under more than one operator", key)
			}
			if err := st.AddCondition(key, values, operator); err != nil {
				return nil, err
			}
		}
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return st, nil
}
