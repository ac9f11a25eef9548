package awsiam

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ttacon/iamstmt/policy"
)

// Decision is the simulator's verdict for one action on one resource.
type Decision struct {
	Action   string
	Resource string
	Decision string
}

// Allowed reports whether the simulator allowed the call.
func (d Decision) Allowed() bool {
	return d.Decision == iam.PolicyEvaluationDecisionTypeAllowed
}

// ContextEntry supplies a condition key value to the simulator.
type ContextEntry struct {
	Key    string
	Type   string
	Values []string
}

func (e ContextEntry) toAPI() *iam.ContextEntry {
	typ := e.Type
	if typ == "" {
		typ = iam.ContextKeyTypeEnumString
	}
	return &iam.ContextEntry{
		ContextKeyName:   aws.String(e.Key),
		ContextKeyType:   aws.String(typ),
		ContextKeyValues: aws.StringSlice(e.Values),
	}
}

// SimulateStatement runs st, as the only statement of a policy, through
// the IAM policy simulator for each of its actions and resources.
func (c *Client) SimulateStatement(ctx context.Context, st *policy.Statement, entries ...ContextEntry) ([]Decision, error) {
	actions := st.Actions()
	if len(actions) == 0 {
		return nil, errors.New("statement has no actions to simulate")
	}

	doc, err := policy.NewDocument(st)
	if err != nil {
		return nil, err
	}
	docJSON, err := doc.JSON(false)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render policy")
	}

	input := &iam.SimulateCustomPolicyInput{
		ActionNames:     aws.StringSlice(actions),
		PolicyInputList: []*string{aws.String(string(docJSON))},
	}
	if resources := st.Resources(); len(resources) > 0 {
		input.ResourceArns = aws.StringSlice(resources)
	}
	for _, entry := range entries {
		input.ContextEntries = append(input.ContextEntries, entry.toAPI())
	}

	var decisions []Decision
	for {
		resp, err := c.iam.SimulateCustomPolicyWithContext(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to simulate custom policy")
		}
		decisions = append(decisions, toDecisions(resp)...)
		if !aws.BoolValue(resp.IsTruncated) {
			break
		}
		input.Marker = resp.Marker
	}

	c.logger.WithFields(log.Fields{
		"actions":   len(actions),
		"decisions": len(decisions),
	}).Debug("Simulated statement")

	return decisions, nil
}

// SimulatePrincipal runs actions through the simulator against the
// policies attached to the caller.
func (c *Client) SimulatePrincipal(ctx context.Context, actions []string) ([]Decision, error) {
	if len(actions) == 0 {
		return nil, errors.New("no actions to simulate")
	}

	callerArn, err := c.CallerArn(ctx)
	if err != nil {
		return nil, err
	}
	sourceArn, err := principalSourceArn(callerArn)
	if err != nil {
		return nil, err
	}

	input := &iam.SimulatePrincipalPolicyInput{
		ActionNames:     aws.StringSlice(actions),
		PolicySourceArn: aws.String(sourceArn),
	}

	var decisions []Decision
	for {
		resp, err := c.iam.SimulatePrincipalPolicyWithContext(ctx, input)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to simulate principal policy for %s", sourceArn)
		}
		decisions = append(decisions, toDecisions(resp)...)
		if !aws.BoolValue(resp.IsTruncated) {
			break
		}
		input.Marker = resp.Marker
	}

	c.logger.WithFields(log.Fields{
		"principal": sourceArn,
		"decisions": len(decisions),
	}).Debug("Simulated principal")

	return decisions, nil
}

func toDecisions(resp *iam.SimulatePolicyResponse) []Decision {
	decisions := make([]Decision, 0, len(resp.EvaluationResults))
	for _, result := range resp.EvaluationResults {
		decisions = append(decisions, Decision{
			Action:   aws.StringValue(result.EvalActionName),
			Resource: aws.StringValue(result.EvalResourceName),
			Decision: aws.StringValue(result.EvalDecision),
		})
	}
	return decisions
}
