package arntemplate

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	hcljson "github.com/hashicorp/hcl/v2/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const instanceTemplate = "arn:${Partition}:ec2:${Region}:${Account}:instance/${InstanceId}"

func TestExpandDefaults(t *testing.T) {
	out, err := Expand(instanceTemplate, map[string]string{"InstanceId": "i-123"})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:ec2:*:*:instance/i-123", out)
}

func TestExpandAllValues(t *testing.T) {
	out, err := Expand(instanceTemplate, map[string]string{
		Partition:    "aws-cn",
		Region:       "cn-north-1",
		Account:      "111122223333",
		"InstanceId": "i-abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws-cn:ec2:cn-north-1:111122223333:instance/i-abc", out)
}

func TestExpandEmptyValuesUseDefaults(t *testing.T) {
	out, err := Expand(instanceTemplate, map[string]string{
		Partition:    "",
		Region:       "",
		Account:      "",
		"InstanceId": "*",
	})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:ec2:*:*:instance/*", out)
}

func TestExpandMissingResourceValue(t *testing.T) {
	tmpl, err := Parse("arn:${Partition}:rds:${Region}:${Account}:db:${DbInstanceName}/${Extra}")
	require.NoError(t, err)

	_, err = tmpl.Expand(map[string]string{Region: "us-east-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingValue)
	assert.Contains(t, err.Error(), "DbInstanceName, Extra")

	_, err = tmpl.Expand(map[string]string{"DbInstanceName": "", "Extra": "x"})
	assert.ErrorIs(t, err, ErrMissingValue)
}

func TestValuesAreVerbatim(t *testing.T) {
	out, err := Expand("arn:${Partition}:s3:::${BucketName}/${ObjectName}", map[string]string{
		"BucketName": "my-bucket",
		"ObjectName": "path/${not-a-token}/%{x}",
	})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:s3:::my-bucket/path/${not-a-token}/%{x}", out)
}

func TestValuesKeepTheirBytes(t *testing.T) {
	decomposed := "cafe\u0301.txt"
	out, err := Expand("arn:${Partition}:s3:::${BucketName}/${ObjectName}", map[string]string{
		"BucketName": "b",
		"ObjectName": decomposed,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("arn:aws:s3:::b/"+decomposed), []byte(out))

	// Literal text is not normalized either.
	out, err = Expand("arn:aws:s3:::cafe\u0301/${Key}", map[string]string{"Key": "k"})
	require.NoError(t, err)
	assert.Equal(t, []byte("arn:aws:s3:::cafe\u0301/k"), []byte(out))
}

func TestPlaceholders(t *testing.T) {
	tmpl, err := Parse("arn:${Partition}:dms:${Region}:${Account}:rep:${ResourceName}:${ResourceName}")
	require.NoError(t, err)

	assert.Equal(t, []string{Partition, Region, Account, "ResourceName"}, tmpl.Placeholders())
	assert.Equal(t, []string{"ResourceName"}, tmpl.Required())
	assert.Equal(t, "arn:${Partition}:dms:${Region}:${Account}:rep:${ResourceName}:${ResourceName}", tmpl.String())
}

func TestLiteralTemplate(t *testing.T) {
	out, err := Expand("arn:aws:s3:::static-bucket", nil)
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:s3:::static-bucket", out)
}

func TestEscapedPlaceholder(t *testing.T) {
	out, err := Expand("aws:ResourceTag/$${TagKey}", nil)
	require.NoError(t, err)
	assert.Equal(t, "aws:ResourceTag/${TagKey}", out)
}

func TestInvalidTemplates(t *testing.T) {
	for _, tmpl := range []string{
		"arn:${Partition",
		"arn:${resource.id}",
		"arn:${values[0]}",
	} {
		_, err := Parse(tmpl)
		assert.ErrorIs(t, err, ErrInvalidTemplate, tmpl)
	}

	for _, tmpl := range []string{
		"arn:${upper(Partition)}",
		"arn:%{ if true }x%{ endif }",
		"arn:${~ Partition}",
	} {
		_, err := Expand(tmpl, nil)
		assert.ErrorIs(t, err, ErrInvalidTemplate, tmpl)
	}
}

func TestFromExpression(t *testing.T) {
	src := []byte(`"arn:${Partition}:ec2:${Region}:${Account}:volume/${VolumeId}"`)
	expr, diags := hclsyntax.ParseExpression(src, "catalog.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())

	tmpl, err := FromExpression(expr, src)
	require.NoError(t, err)
	assert.Equal(t, "arn:${Partition}:ec2:${Region}:${Account}:volume/${VolumeId}", tmpl.String())

	out, err := tmpl.Expand(map[string]string{"VolumeId": "vol-1", Account: "111122223333"})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:ec2:*:111122223333:volume/vol-1", out)
}

func TestFromExpressionKeepsEscapes(t *testing.T) {
	src := []byte(`"arn:${Partition}:s3:::b/cafe\u0301-$${Literal}"`)
	expr, diags := hclsyntax.ParseExpression(src, "catalog.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())

	tmpl, err := FromExpression(expr, src)
	require.NoError(t, err)
	assert.Equal(t, []string{Partition}, tmpl.Placeholders())

	out, err := tmpl.Expand(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("arn:aws:s3:::b/cafe\u0301-${Literal}"), []byte(out))
}

func TestFromJSONExpression(t *testing.T) {
	src := []byte(`{"arn": "arn:${Partition}:sqs:${Region}:${Account}:${QueueName}"}`)
	file, diags := hcljson.Parse(src, "catalog.json")
	require.False(t, diags.HasErrors(), diags.Error())
	attrs, diags := file.Body.JustAttributes()
	require.False(t, diags.HasErrors(), diags.Error())

	tmpl, err := FromExpression(attrs["arn"].Expr, src)
	require.NoError(t, err)
	assert.Equal(t, []string{"QueueName"}, tmpl.Required())

	out, err := tmpl.Expand(map[string]string{"QueueName": "jobs"})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:sqs:*:*:jobs", out)
}

func TestFromExpressionRejectsNonStrings(t *testing.T) {
	for _, src := range []string{`42`, `var.arn`, `"a" + "b"`} {
		expr, diags := hclsyntax.ParseExpression([]byte(src), "catalog.hcl", hcl.InitialPos)
		require.False(t, diags.HasErrors(), diags.Error())

		_, err := FromExpression(expr, []byte(src))
		assert.ErrorIs(t, err, ErrInvalidTemplate, src)
	}
}

func TestPartitionForRegion(t *testing.T) {
	assert.Equal(t, "aws", PartitionForRegion(""))
	assert.Equal(t, "aws", PartitionForRegion("*"))
	assert.Equal(t, "aws", PartitionForRegion("us-east-1"))
	assert.Equal(t, "aws-cn", PartitionForRegion("cn-north-1"))
	assert.Equal(t, "aws-us-gov", PartitionForRegion("us-gov-west-1"))
	assert.Equal(t, "aws", PartitionForRegion("not-a-region"))
}
