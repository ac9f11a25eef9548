package awsiam

import (
	"context"
	"net/url"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/pkg/errors"

	"github.com/ttacon/iamstmt/policy"
)

// NamedPolicy is one policy document found on the caller.
type NamedPolicy struct {
	Name string
	// Source says where the policy is attached: "user", "group:<name>" or
	// "managed:<arn>".
	Source   string
	Raw      string
	Document *policy.Document
	// ParseErr is set when Raw could not be parsed into Document.
	ParseErr error
}

// UserPolicies returns the inline policies of the calling user, the inline
// policies of its groups and the managed policies attached to its groups.
func (c *Client) UserPolicies(ctx context.Context) ([]NamedPolicy, error) {
	result, err := c.iam.GetUserWithContext(ctx, &iam.GetUserInput{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}
	userName := result.User.UserName
	logger := c.logger.WithField("user", aws.StringValue(userName))

	var policies []NamedPolicy

	var userPolicyNames []*string
	err = c.iam.ListUserPoliciesPagesWithContext(ctx, &iam.ListUserPoliciesInput{
		UserName: userName,
	}, func(page *iam.ListUserPoliciesOutput, _ bool) bool {
		userPolicyNames = append(userPolicyNames, page.PolicyNames...)
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user policies")
	}

	for _, policyName := range userPolicyNames {
		policyResult, err := c.iam.GetUserPolicyWithContext(ctx, &iam.GetUserPolicyInput{
			UserName:   userName,
			PolicyName: policyName,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get user policy %s", aws.StringValue(policyName))
		}
		if policyResult.PolicyDocument != nil {
			policies = append(policies, newNamedPolicy(
				aws.StringValue(policyResult.PolicyName),
				"user",
				aws.StringValue(policyResult.PolicyDocument),
			))
		}
	}

	var groups []*iam.Group
	err = c.iam.ListGroupsForUserPagesWithContext(ctx, &iam.ListGroupsForUserInput{
		UserName: userName,
	}, func(page *iam.ListGroupsForUserOutput, _ bool) bool {
		groups = append(groups, page.Groups...)
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list groups for user")
	}

	for _, group := range groups {
		groupName := aws.StringValue(group.GroupName)
		logger.WithField("group", groupName).Debug("Retrieving policies for group")

		var groupPolicyNames []*string
		err = c.iam.ListGroupPoliciesPagesWithContext(ctx, &iam.ListGroupPoliciesInput{
			GroupName: group.GroupName,
		}, func(page *iam.ListGroupPoliciesOutput, _ bool) bool {
			groupPolicyNames = append(groupPolicyNames, page.PolicyNames...)
			return true
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list policies of group %s", groupName)
		}

		for _, policyName := range groupPolicyNames {
			policyResult, err := c.iam.GetGroupPolicyWithContext(ctx, &iam.GetGroupPolicyInput{
				GroupName:  group.GroupName,
				PolicyName: policyName,
			})
			if err != nil {
				return nil, errors.Wrapf(err, "failed to get policy %s of group %s", aws.StringValue(policyName), groupName)
			}
			policies = append(policies, newNamedPolicy(
				aws.StringValue(policyResult.PolicyName),
				"group:"+groupName,
				aws.StringValue(policyResult.PolicyDocument),
			))
		}

		var attached []*iam.AttachedPolicy
		err = c.iam.ListAttachedGroupPoliciesPagesWithContext(ctx, &iam.ListAttachedGroupPoliciesInput{
			GroupName: group.GroupName,
		}, func(page *iam.ListAttachedGroupPoliciesOutput, _ bool) bool {
			attached = append(attached, page.AttachedPolicies...)
			return true
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list attached policies of group %s", groupName)
		}

		for _, ap := range attached {
			policyResult, err := c.iam.GetPolicyWithContext(ctx, &iam.GetPolicyInput{
				PolicyArn: ap.PolicyArn,
			})
			if err != nil {
				return nil, errors.Wrapf(err, "failed to get policy %s", aws.StringValue(ap.PolicyArn))
			}

			policyVersion, err := c.iam.GetPolicyVersionWithContext(ctx, &iam.GetPolicyVersionInput{
				PolicyArn: policyResult.Policy.Arn,
				VersionId: policyResult.Policy.DefaultVersionId,
			})
			if err != nil {
				return nil, errors.Wrapf(err, "failed to get default version of policy %s", aws.StringValue(ap.PolicyArn))
			}

			policies = append(policies, newNamedPolicy(
				aws.StringValue(policyResult.Policy.PolicyName),
				"managed:"+aws.StringValue(policyResult.Policy.Arn),
				aws.StringValue(policyVersion.PolicyVersion.Document),
			))
		}
	}

	for _, p := range policies {
		if p.ParseErr != nil {
			logger.WithError(p.ParseErr).WithField("policy", p.Name).Warn("Unable to parse policy document")
		}
	}

	return policies, nil
}

// newNamedPolicy decodes a URL-encoded policy document as IAM returns it.
func newNamedPolicy(name, source, encoded string) NamedPolicy {
	np := NamedPolicy{Name: name, Source: source}

	raw, err := url.PathUnescape(encoded)
	if err != nil {
		np.Raw = encoded
		np.ParseErr = errors.Wrap(err, "failed to unescape policy document")
		return np
	}
	np.Raw = raw
	np.Document, np.ParseErr = policy.ParseDocument([]byte(raw))
	return np
}
