package catalog

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// ActionPattern matches action names against an IAM wildcard such as
// "Describe*" or "Get?bject". Only '*' and '?' are special, and matching
// ignores case like IAM does.
type ActionPattern struct {
	source string
	glob   glob.Glob
}

// CompileActionPattern compiles an IAM action wildcard.
func CompileActionPattern(pattern string) (*ActionPattern, error) {
	var quoted strings.Builder
	for _, r := range strings.ToLower(pattern) {
		switch r {
		case '*', '?':
			quoted.WriteRune(r)
		default:
			quoted.WriteString(glob.QuoteMeta(string(r)))
		}
	}

	g, err := glob.Compile(quoted.String())
	if err != nil {
		return nil, errors.Wrapf(err, "bad action pattern %q", pattern)
	}
	return &ActionPattern{source: pattern, glob: g}, nil
}

// Match reports whether name matches the pattern.
func (p *ActionPattern) Match(name string) bool {
	return p.glob.Match(strings.ToLower(name))
}

// String returns the pattern as written.
func (p *ActionPattern) String() string {
	return p.source
}
