// Package awsiam talks to AWS IAM: it runs rendered statements through the
// policy simulator and reads the caller's existing policies.
package awsiam

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/arn"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ttacon/iamstmt/policy"
)

// Client wraps the IAM and STS APIs.
type Client struct {
	iam    iamiface.IAMAPI
	sts    stsiface.STSAPI
	logger log.FieldLogger
}

// New returns a client using sess.
func New(sess *session.Session, logger log.FieldLogger) *Client {
	return NewWithClients(iam.New(sess), sts.New(sess), logger)
}

// NewWithClients returns a client over the given API implementations.
func NewWithClients(iamAPI iamiface.IAMAPI, stsAPI stsiface.STSAPI, logger log.FieldLogger) *Client {
	return &Client{
		iam:    iamAPI,
		sts:    stsAPI,
		logger: logger,
	}
}

// RequiredPermissions returns a statement allowing every call this
// package makes. It panics if its own action list is malformed.
func RequiredPermissions() *policy.Statement {
	st := policy.NewStatement("IamstmtAWSAccess")
	for _, action := range []string{
		"sts:GetCallerIdentity",
		"iam:SimulateCustomPolicy",
		"iam:SimulatePrincipalPolicy",
		"iam:GetUser",
		"iam:ListUserPolicies",
		"iam:GetUserPolicy",
		"iam:ListGroupsForUser",
		"iam:ListGroupPolicies",
		"iam:GetGroupPolicy",
		"iam:ListAttachedGroupPolicies",
		"iam:GetPolicy",
		"iam:GetPolicyVersion",
	} {
		if err := st.AddAction(action); err != nil {
			panic(errors.Wrap(err, "required permissions"))
		}
	}
	return st
}

// CallerArn returns the ARN of the identity the client runs as.
func (c *Client) CallerArn(ctx context.Context) (string, error) {
	caller, err := c.sts.GetCallerIdentityWithContext(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", errors.Wrap(err, "failed to get caller identity")
	}
	return aws.StringValue(caller.Arn), nil
}

// principalSourceArn turns an STS assumed-role ARN into the ARN of its
// role, which is what the simulator accepts. Other ARNs pass through.
func principalSourceArn(callerArn string) (string, error) {
	parsed, err := arn.Parse(callerArn)
	if err != nil {
		return "", errors.Wrapf(err, "caller ARN %q", callerArn)
	}
	if parsed.Service != "sts" || !strings.HasPrefix(parsed.Resource, "assumed-role/") {
		return callerArn, nil
	}

	parts := strings.Split(parsed.Resource, "/")
	if len(parts) < 3 {
		return "", errors.Errorf("malformed assumed-role ARN %q", callerArn)
	}
	role := arn.ARN{
		Partition: parsed.Partition,
		Service:   "iam",
		AccountID: parsed.AccountID,
		Resource:  "role/" + parts[1],
	}
	return role.String(), nil
}
