package aws

import (
	"context"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSTSAPI struct {
	getCallerIdentityFunc func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func (m *mockSTSAPI) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return m.getCallerIdentityFunc(ctx, params, optFns...)
}

func TestCallerIdentity(t *testing.T) {
	mock := &mockSTSAPI{
		getCallerIdentityFunc: func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
			return &sts.GetCallerIdentityOutput{
				Account: awssdk.String("123456789012"),
				Arn:     awssdk.String("arn:aws:iam::123456789012:user/operator"),
				UserId:  awssdk.String("AIDAOPERATOR"),
			}, nil
		},
	}

	id, err := CallerIdentity(context.Background(), mock)
	require.NoError(t, err)
	assert.Equal(t, "123456789012", id.Account)
	assert.Equal(t, "arn:aws:iam::123456789012:user/operator", id.ARN)
	assert.Equal(t, "AIDAOPERATOR", id.UserID)
}

func TestCallerIdentity_Error(t *testing.T) {
	mock := &mockSTSAPI{
		getCallerIdentityFunc: func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
			return nil, errors.New("no credentials")
		},
	}

	_, err := CallerIdentity(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GetCallerIdentity")
	assert.Contains(t, err.Error(), "no credentials")
}
