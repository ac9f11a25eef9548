package catalog

import (
	"strings"

	"github.com/ttacon/iamstmt/arntemplate"
)

// AccessLevel is AWS's coarse classification of what an action does.
type AccessLevel string

// Access levels as AWS documents them.
const (
	Read                  AccessLevel = "Read"
	Write                 AccessLevel = "Write"
	List                  AccessLevel = "List"
	Tagging               AccessLevel = "Tagging"
	PermissionsManagement AccessLevel = "Permissions management"
)

// AccessLevels lists every known access level.
var AccessLevels = []AccessLevel{Read, Write, List, Tagging, PermissionsManagement}

// ParseAccessLevel matches s against the known access levels, ignoring case.
func ParseAccessLevel(s string) (AccessLevel, bool) {
	for _, level := range AccessLevels {
		if strings.EqualFold(string(level), s) {
			return level, true
		}
	}
	return "", false
}

// ConditionType is the value type of a condition key.
type ConditionType string

// Condition key types.
const (
	String        ConditionType = "String"
	ARN           ConditionType = "ARN"
	Bool          ConditionType = "Bool"
	Numeric       ConditionType = "Numeric"
	Date          ConditionType = "Date"
	IPAddress     ConditionType = "IPAddress"
	ArrayOfString ConditionType = "ArrayOfString"
	ArrayOfARN    ConditionType = "ArrayOfARN"
)

var defaultOperators = map[ConditionType]string{
	String:        "StringLike",
	ARN:           "ArnLike",
	Bool:          "Bool",
	Numeric:       "NumericEquals",
	Date:          "DateEquals",
	IPAddress:     "IpAddress",
	ArrayOfString: "StringLike",
	ArrayOfARN:    "ArnLike",
}

// DefaultOperator returns the operator used when a condition on a key of
// this type is added without one.
func (c ConditionType) DefaultOperator() string {
	if op, ok := defaultOperators[c]; ok {
		return op
	}
	return defaultOperators[String]
}

func (c ConditionType) valid() bool {
	_, ok := defaultOperators[c]
	return ok
}

// Action describes one IAM action of a service.
type Action struct {
	Name             string
	AccessLevel      AccessLevel
	ResourceTypes    []ActionResource
	ConditionKeys    []string
	DependentActions []string
}

// ActionResource is a resource type an action can be scoped to.
type ActionResource struct {
	Type     string
	Required bool
}

// ResourceType describes an ARN shape of a service.
type ResourceType struct {
	Name          string
	ARN           *arntemplate.Template
	ConditionKeys []string
}

// ConditionKey describes a condition key usable in statements.
type ConditionKey struct {
	Key         string
	Type        ConditionType
	Description string
}

// matches reports whether key names this condition key. Keys with a
// placeholder such as "aws:ResourceTag/${TagKey}" match any key sharing
// the text before the placeholder. IAM compares keys case-insensitively.
func (c ConditionKey) matches(key string) bool {
	idx := strings.Index(c.Key, "${")
	if idx < 0 {
		return strings.EqualFold(c.Key, key)
	}
	prefix := strings.ToLower(c.Key[:idx])
	return len(key) > idx && strings.HasPrefix(strings.ToLower(key), prefix)
}

// TerraformMapping lists the actions a Terraform resource type needs.
// Read actions are also all a data source of that type needs.
type TerraformMapping struct {
	Type  string
	Read  []string
	Write []string
}
