package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	iamsdk "github.com/aws/aws-sdk-go-v2/service/iam"
	awss3sdk "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	awsiam "tasnim.dev/iamctl/internal/aws/iam"
	awss3 "tasnim.dev/iamctl/internal/aws/s3"
)

type ServiceClient struct {
	Config aws.Config
	IAM    *awsiam.Client
	S3     *awss3.Client
	STS    STSAPI
}

func NewServiceClient(ctx context.Context, profile, region string) (*ServiceClient, error) {
	cfg, err := LoadConfig(ctx, profile, region)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &ServiceClient{
		Config: cfg,
		IAM:    awsiam.NewClient(iamsdk.NewFromConfig(cfg)),
		S3:     awss3.NewClient(awss3sdk.NewFromConfig(cfg)),
		STS:    sts.NewFromConfig(cfg),
	}, nil
}

// Identity resolves the caller identity for this client's credentials.
func (c *ServiceClient) Identity(ctx context.Context) (Identity, error) {
	return CallerIdentity(ctx, c.STS)
}
