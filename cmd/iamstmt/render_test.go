package main

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttacon/iamstmt/catalog"
	"github.com/ttacon/iamstmt/internal/testlib"
	"github.com/ttacon/iamstmt/policy"
)

func TestParseCondition(t *testing.T) {
	t.Run("with operator", func(t *testing.T) {
		c, err := parseCondition("StringEquals aws:RequestedRegion=us-east-1,eu-west-1")
		require.NoError(t, err)
		assert.Equal(t, conditionFlag{
			operator: "StringEquals",
			key:      "aws:RequestedRegion",
			values:   []string{"us-east-1", "eu-west-1"},
		}, c)
	})

	t.Run("without operator", func(t *testing.T) {
		c, err := parseCondition("aws:SecureTransport=true")
		require.NoError(t, err)
		assert.Empty(t, c.operator)
		assert.Equal(t, "aws:SecureTransport", c.key)
		assert.Equal(t, []string{"true"}, c.values)
	})

	t.Run("whitespace inside values", func(t *testing.T) {
		c, err := parseCondition("ec2:ResourceTag/Owner=Jane Doe,John Roe")
		require.NoError(t, err)
		assert.Empty(t, c.operator)
		assert.Equal(t, "ec2:ResourceTag/Owner", c.key)
		assert.Equal(t, []string{"Jane Doe", "John Roe"}, c.values)

		c, err = parseCondition("StringEquals\tec2:ResourceTag/Owner=Jane Doe")
		require.NoError(t, err)
		assert.Equal(t, "StringEquals", c.operator)
		assert.Equal(t, []string{"Jane Doe"}, c.values)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, raw := range []string{"", "StringEquals", "StringEquals =x", "=x"} {
			_, err := parseCondition(raw)
			assert.Error(t, err, raw)
		}
	})
}

func TestParseKeyValues(t *testing.T) {
	values, err := parseKeyValues([]string{"InstanceId=i-123", "Region=", "Path=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"InstanceId": "i-123", "Region": "", "Path": "a=b"}, values)

	_, err = parseKeyValues([]string{"=value"})
	assert.Error(t, err)
	_, err = parseKeyValues([]string{"novalue"})
	assert.Error(t, err)
}

func TestSplitQualified(t *testing.T) {
	prefix, name, err := splitQualified("ec2:instance")
	require.NoError(t, err)
	assert.Equal(t, "ec2", prefix)
	assert.Equal(t, "instance", name)

	for _, raw := range []string{"ec2", ":instance", "ec2:"} {
		_, _, err := splitQualified(raw)
		assert.Error(t, err, raw)
	}
}

func TestBuildStatementLiteral(t *testing.T) {
	st, err := buildStatement(statementFlags{
		sid:        "Literal",
		effect:     "Deny",
		actions:    []string{"s3:GetObject", "s3:PutObject", "s3:GetObject"},
		resources:  []string{"arn:aws:s3:::bucket/*"},
		conditions: []string{"Bool aws:SecureTransport=false"},
	}, nil, scope{})
	require.NoError(t, err)

	r := st.Render()
	assert.Equal(t, policy.Deny, r.Effect)
	assert.Equal(t, policy.Value{"s3:GetObject", "s3:PutObject"}, r.Action)
	assert.Equal(t, policy.Value{"arn:aws:s3:::bucket/*"}, r.Resource)
	assert.Equal(t, policy.ConditionMap{
		"Bool": {"aws:SecureTransport": policy.Value{"false"}},
	}, r.Condition)
}

func TestBuildStatementErrors(t *testing.T) {
	_, err := buildStatement(statementFlags{effect: "Maybe"}, nil, scope{})
	assert.True(t, errors.Is(err, policy.ErrInvalidEffect))

	_, err = buildStatement(statementFlags{effect: "Allow", actions: []string{"GetObject"}}, nil, scope{})
	assert.True(t, errors.Is(err, policy.ErrInvalidAction))

	// Without the catalog a condition needs an explicit operator.
	_, err = buildStatement(statementFlags{effect: "Allow", conditions: []string{"aws:SecureTransport=true"}}, nil, scope{})
	assert.True(t, errors.Is(err, policy.ErrInvalidCondition))

	_, err = buildStatement(statementFlags{effect: "Allow", actions: []string{"s3:GetObject"}, notActions: []string{"s3:PutObject"}}, nil, scope{})
	assert.True(t, errors.Is(err, policy.ErrMixedElements))

	_, err = buildStatement(statementFlags{effect: "Allow", resources: []string{"arn:aws:s3:::bucket"}}, nil, scope{})
	assert.True(t, errors.Is(err, policy.ErrNoActions))
}

func TestBuildStatementWithCatalog(t *testing.T) {
	cat, err := catalog.Default(testlib.MakeLogger(t))
	require.NoError(t, err)

	flags := statementFlags{
		effect:       "Allow",
		actions:      []string{"ec2:Describe*", "ec2:RunInstances"},
		accessLevels: []string{"ec2:Tagging"},
		on:           []string{"ec2:instance"},
		params:       []string{"InstanceId=i-0abc"},
		conditions:   []string{"ec2:InstanceType=t3.micro,t3.small", "aws:SecureTransport=true"},
		validate:     true,
		dependencies: true,
	}
	require.True(t, flags.needsCatalog())

	st, err := buildStatement(flags, cat, scope{Partition: "aws-cn", Region: "cn-north-1", Account: "111122223333"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ec2:DescribeImages",
		"ec2:DescribeInstances",
		"ec2:DescribeSecurityGroups",
		"ec2:DescribeVolumes",
		"ec2:RunInstances",
		"iam:PassRole",
		"ec2:CreateTags",
		"ec2:DeleteTags",
	}, st.Actions())
	assert.Equal(t, []string{"arn:aws-cn:ec2:cn-north-1:111122223333:instance/i-0abc"}, st.Resources())

	conditions := st.Conditions()
	assert.Equal(t, policy.Condition{Operator: "StringLike", Values: []string{"t3.micro", "t3.small"}}, conditions["ec2:InstanceType"])
	assert.Equal(t, policy.Condition{Operator: "Bool", Values: []string{"true"}}, conditions["aws:SecureTransport"])
}

func TestBuildStatementCatalogRejects(t *testing.T) {
	cat, err := catalog.Default(testlib.MakeLogger(t))
	require.NoError(t, err)

	for name, flags := range map[string]statementFlags{
		"unknown action":       {actions: []string{"ec2:LaunchRockets"}},
		"unknown service":      {actions: []string{"nope:Thing"}},
		"no match":             {actions: []string{"ec2:Fly*"}},
		"brackets are literal": {actions: []string{"ec2:[Describe]Images"}},
		"unknown key":          {conditions: []string{"ec2:Colour=red"}},
		"unknown global key":   {conditions: []string{"aws:Mood=happy"}},
		"unknown level":        {accessLevels: []string{"ec2:Everything"}},
		"missing arn value":    {on: []string{"ec2:instance"}},
		"unknown type":         {on: []string{"ec2:spaceship"}, params: []string{"Id=x"}},
		"malformed parameter":  {on: []string{"ec2:instance"}, params: []string{"InstanceId"}},
	} {
		flags.effect = "Allow"
		flags.validate = true
		_, err := buildStatement(flags, cat, scope{})
		assert.Error(t, err, name)
	}
}

func TestCurrentScope(t *testing.T) {
	defer viper.Reset()

	viper.Set("region", "us-gov-west-1")
	viper.Set("account", "111122223333")
	sc := currentScope()
	assert.Equal(t, scope{Partition: "aws-us-gov", Region: "us-gov-west-1", Account: "111122223333"}, sc)

	viper.Set("partition", "aws")
	assert.Equal(t, "aws", currentScope().Partition)

	values := sc.values(map[string]string{"Region": "us-gov-east-1", "InstanceId": "i-1"})
	assert.Equal(t, map[string]string{
		"Partition":  "aws-us-gov",
		"Region":     "us-gov-east-1",
		"Account":    "111122223333",
		"InstanceId": "i-1",
	}, values)
}
