package catalog

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttacon/iamstmt/arntemplate"
	"github.com/ttacon/iamstmt/internal/testlib"
	"github.com/ttacon/iamstmt/policy"
)

func defaultCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Default(testlib.MakeLogger(t))
	require.NoError(t, err)
	return c
}

func TestDefaultCatalog(t *testing.T) {
	c := defaultCatalog(t)

	var prefixes []string
	for _, svc := range c.Services() {
		prefixes = append(prefixes, svc.Prefix)
	}
	assert.Equal(t, []string{"dms", "ec2", "elasticloadbalancing", "iam", "rds", "s3", "ssm", "sts"}, prefixes)

	ec2, ok := c.Service("ec2")
	require.True(t, ok)
	assert.Equal(t, "Amazon EC2", ec2.Name)

	run, ok := ec2.Action("RunInstances")
	require.True(t, ok)
	assert.Equal(t, Write, run.AccessLevel)
	assert.Equal(t, []string{"iam:PassRole"}, run.DependentActions)
	assert.Contains(t, run.ResourceTypes, ActionResource{Type: "image", Required: true})
	assert.Contains(t, run.ConditionKeys, "aws:RequestTag/${TagKey}")

	instance, ok := ec2.ResourceType("instance")
	require.True(t, ok)
	assert.Equal(t, "arn:${Partition}:ec2:${Region}:${Account}:instance/${InstanceId}", instance.ARN.String())
	assert.Equal(t, []string{"InstanceId"}, instance.ARN.Required())

	assert.True(t, c.HasAction("dms:StartReplicationTask"))
	assert.False(t, c.HasAction("dms:StartEverything"))
	assert.False(t, c.HasAction("lambda:InvokeFunction"))
	assert.False(t, c.HasAction("nonsense"))

	mapping, ok := c.TerraformMapping("aws_ssm_parameter")
	require.True(t, ok)
	assert.Equal(t, []string{"ssm:GetParameter", "ssm:DescribeParameters"}, mapping.Read)
}

func TestServiceTo(t *testing.T) {
	c := defaultCatalog(t)
	ec2, _ := c.Service("ec2")

	st := policy.NewStatement("")
	require.NoError(t, ec2.To(st, "AcceptVpcPeeringConnection"))
	require.NoError(t, ec2.To(st, "AcceptVpcPeeringConnection"))
	assert.Equal(t, []string{"ec2:AcceptVpcPeeringConnection"}, st.Actions())

	err := ec2.To(st, "AcceptEverything")
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Len(t, st.Actions(), 1)

	require.NoError(t, ec2.ToAll(st))
	assert.Contains(t, st.Actions(), "ec2:*")
}

func TestServiceToAccessLevel(t *testing.T) {
	c := defaultCatalog(t)
	rds, _ := c.Service("rds")

	st := policy.NewStatement("")
	require.NoError(t, rds.ToAccessLevel(st, Tagging))
	assert.Equal(t, []string{"rds:AddTagsToResource", "rds:RemoveTagsFromResource"}, st.Actions())

	list := policy.NewStatement("")
	require.NoError(t, rds.ToAccessLevel(list, List))
	assert.Equal(t, []string{"rds:DescribeDBClusters", "rds:DescribeDBInstances", "rds:DescribeDBSnapshots"}, list.Actions())
}

func TestServiceToMatching(t *testing.T) {
	c := defaultCatalog(t)
	ec2, _ := c.Service("ec2")

	st := policy.NewStatement("")
	require.NoError(t, ec2.ToMatching(st, "Describe*"))
	assert.Equal(t, []string{
		"ec2:DescribeImages",
		"ec2:DescribeInstances",
		"ec2:DescribeSecurityGroups",
		"ec2:DescribeVolumes",
	}, st.Actions())

	assert.ErrorIs(t, ec2.ToMatching(st, "Explode*"), ErrUnknownAction)
	// '[' is not special in IAM wildcards.
	assert.ErrorIs(t, ec2.ToMatching(st, "[Describe*"), ErrUnknownAction)

	st = policy.NewStatement("")
	require.NoError(t, ec2.ToMatching(st, "start?nstances"))
	assert.Equal(t, []string{"ec2:StartInstances"}, st.Actions())
}

func TestActionPattern(t *testing.T) {
	for pattern, cases := range map[string]map[string]bool{
		"Describe*":   {"DescribeImages": true, "describeinstances": true, "Describe": true, "GetDescribe": false},
		"Get?bject":   {"GetObject": true, "GetXbject": true, "GetObjects": false},
		"[Get]*":      {"[Get]Object": true, "GetObject": false},
		"{Get,Put}*":  {"{Get,Put}Object": true, "GetObject": false},
		`Get\Object`: {`Get\Object`: true, "GetObject": false},
		"*":           {"Anything": true, "": true},
	} {
		p, err := CompileActionPattern(pattern)
		require.NoError(t, err, pattern)
		assert.Equal(t, pattern, p.String())
		for name, expected := range cases {
			assert.Equal(t, expected, p.Match(name), "%s against %s", pattern, name)
		}
	}
}

func TestServiceOn(t *testing.T) {
	c := defaultCatalog(t)
	ec2, _ := c.Service("ec2")

	st := policy.NewStatement("")
	require.NoError(t, ec2.On(st, "instance", map[string]string{"InstanceId": "i-123"}))
	require.NoError(t, ec2.On(st, "image", map[string]string{"ImageId": "ami-1", "Region": "eu-west-1"}))
	assert.Equal(t, []string{
		"arn:aws:ec2:*:*:instance/i-123",
		"arn:aws:ec2:eu-west-1::image/ami-1",
	}, st.Resources())

	assert.ErrorIs(t, ec2.On(st, "instance", nil), arntemplate.ErrMissingValue)
	assert.ErrorIs(t, ec2.On(st, "spaceship", nil), ErrUnknownResourceType)
	assert.Len(t, st.Resources(), 2)

	dms, _ := c.Service("dms")
	arn, err := dms.ARN("task", map[string]string{"ResourceName": "nightly", "Account": "111122223333", "Region": "us-east-1"})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:dms:us-east-1:111122223333:task:nightly", arn)
}

func TestServiceIf(t *testing.T) {
	c := defaultCatalog(t)
	ec2, _ := c.Service("ec2")

	st := policy.NewStatement("")
	require.NoError(t, ec2.If(st, "ec2:Region", []string{"us-east-1", "us-west-2"}, ""))
	require.NoError(t, ec2.If(st, "ec2:VolumeSize", []string{"100"}, "NumericLessThanEquals"))
	require.NoError(t, ec2.If(st, "ec2:Encrypted", []string{"true"}, ""))
	require.NoError(t, ec2.If(st, "aws:SecureTransport", []string{"true"}, ""))
	require.NoError(t, ec2.If(st, "aws:ResourceTag/team", []string{"storage"}, "StringEquals"))
	require.NoError(t, ec2.If(st, "ec2:resourcetag/owner", []string{"me"}, ""))

	conditions := st.Conditions()
	assert.Equal(t, "StringLike", conditions["ec2:Region"].Operator)
	assert.Equal(t, "NumericLessThanEquals", conditions["ec2:VolumeSize"].Operator)
	assert.Equal(t, "Bool", conditions["ec2:Encrypted"].Operator)
	assert.Equal(t, "Bool", conditions["aws:SecureTransport"].Operator)
	assert.Equal(t, "StringEquals", conditions["aws:ResourceTag/team"].Operator)
	assert.Equal(t, "StringLike", conditions["ec2:resourcetag/owner"].Operator)

	assert.ErrorIs(t, ec2.If(st, "rds:DatabaseClass", []string{"db.t3.micro"}, ""), ErrUnknownConditionKey)
	assert.ErrorIs(t, ec2.If(st, "aws:ResourceTag/", []string{"x"}, ""), ErrUnknownConditionKey)
	assert.ErrorIs(t, ec2.If(st, "ec2:Region", nil, ""), policy.ErrInvalidCondition)
}

func TestServiceDependencies(t *testing.T) {
	c := defaultCatalog(t)
	rds, _ := c.Service("rds")

	deps, err := rds.DependentActions("CreateDBInstance")
	require.NoError(t, err)
	assert.Equal(t, []string{"iam:PassRole", "rds:AddTagsToResource"}, deps)

	st := policy.NewStatement("")
	require.NoError(t, rds.ToWithDependencies(st, "CreateDBInstance"))
	assert.Equal(t, []string{"rds:CreateDBInstance", "iam:PassRole", "rds:AddTagsToResource"}, st.Actions())

	_, err = rds.DependentActions("CreateEverything")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestLoadJSONFile(t *testing.T) {
	c := New(testlib.MakeLogger(t))
	require.NoError(t, c.LoadFile("testdata/widgets.json"))
	require.NoError(t, c.Validate())

	svc, ok := c.Service("widgets")
	require.True(t, ok)
	assert.Equal(t, "Example Widgets", svc.Name)

	rt, ok := svc.ResourceType("widget")
	require.True(t, ok)
	assert.Equal(t, []string{"widgets:Color", "aws:ResourceTag/${TagKey}"}, rt.ConditionKeys)

	st := policy.NewStatement("")
	require.NoError(t, svc.To(st, "PaintWidget"))
	require.NoError(t, svc.On(st, "widget", map[string]string{"WidgetId": "w-1", "Partition": "aws-cn"}))
	require.NoError(t, svc.If(st, "widgets:Color", []string{"blue"}, ""))

	assert.Equal(t, []string{"widgets:PaintWidget"}, st.Actions())
	assert.Equal(t, []string{"arn:aws-cn:widgets:*:*:widget/w-1"}, st.Resources())
	assert.Equal(t, "StringLike", st.Conditions()["widgets:Color"].Operator)

	mapping, ok := c.TerraformMapping("widgets_widget")
	require.True(t, ok)
	assert.Equal(t, []string{"widgets:PaintWidget"}, mapping.Write)
}

func TestLoadErrors(t *testing.T) {
	for name, src := range map[string]string{
		"syntax": `service "x" {`,
		"unknown access level": `
service "x" {
  action "Do" {
    access_level = "Sometimes"
  }
}`,
		"undefined resource type": `
service "x" {
  action "Do" {
    access_level = "Write"
    resource "thing" { required = true }
  }
}`,
		"unknown condition type": `
service "x" {
  condition_key "x:Key" {
    type = "Color"
  }
}`,
		"bad arn template": `
service "x" {
  resource_type "thing" {
    arn = "arn:${thing.id}"
  }
}`,
		"duplicate action": `
service "x" {
  action "Do" {
    access_level = "Write"
  }
  action "Do" {
    access_level = "Read"
  }
}`,
		"missing access level": `
service "x" {
  action "Do" {}
}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := New(testlib.MakeLogger(t))
			err := c.LoadFS(fstest.MapFS{"bad.hcl": {Data: []byte(src)}}, "*.hcl")
			require.Error(t, err)
			_, ok := c.Service("x")
			assert.False(t, ok)
		})
	}
}

func TestLoadAggregatesErrors(t *testing.T) {
	c := New(testlib.MakeLogger(t))
	err := c.LoadFS(fstest.MapFS{"bad.hcl": {Data: []byte(`
service "x" {
  action "One" {
    access_level = "Sometimes"
  }
  action "Two" {
    access_level = "Write"
    resource "missing" {}
  }
}`)}}, "*.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown access level "Sometimes"`)
	assert.Contains(t, err.Error(), `undefined resource type "missing"`)
}

func TestDuplicateServiceAcrossFiles(t *testing.T) {
	c := New(testlib.MakeLogger(t))
	fsys := fstest.MapFS{
		"a.hcl": {Data: []byte(`service "x" {}`)},
		"b.hcl": {Data: []byte(`service "x" {}`)},
	}
	err := c.LoadFS(fsys, "*.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `service "x" is already defined`)
}

func TestValidateDanglingReferences(t *testing.T) {
	c := New(testlib.MakeLogger(t))
	require.NoError(t, c.LoadFS(fstest.MapFS{"a.hcl": {Data: []byte(`
service "x" {
  action "Do" {
    access_level      = "Write"
    dependent_actions = ["x:Missing", "other:Anything"]
  }
}
terraform_resource "x_thing" {
  read = ["x:Do", "not-qualified"]
}`)}}, "*.hcl"))

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `service "x" has no action "Missing"`)
	assert.Contains(t, err.Error(), `"not-qualified" is not a qualified action`)
	assert.NotContains(t, err.Error(), "other:Anything")
}

func TestParseAccessLevel(t *testing.T) {
	level, ok := ParseAccessLevel("permissions management")
	assert.True(t, ok)
	assert.Equal(t, PermissionsManagement, level)

	_, ok = ParseAccessLevel("Admin")
	assert.False(t, ok)
}
