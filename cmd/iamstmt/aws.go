package main

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pkg/errors"

	"github.com/ttacon/iamstmt/arntemplate"
	"github.com/ttacon/iamstmt/awsiam"
)

// newAWSClient builds an IAM client from the shared AWS config, using the
// configured region when it names one.
func newAWSClient() (*awsiam.Client, error) {
	opts := session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}
	if region := currentScope().Region; region != "" && region != arntemplate.Wildcard {
		opts.Config.Region = aws.String(region)
	}

	sess, err := session.NewSessionWithOptions(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AWS session")
	}
	return awsiam.New(sess, logger), nil
}
