package iamtest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasnim.dev/iamctl/internal/aws/iam"
	"tasnim.dev/iamctl/internal/aws/iam/iamtest"
)

var _ iam.IAMAPI = (*iamtest.Fake)(nil)

func TestFake_DeleteUserConflict(t *testing.T) {
	f := iamtest.New()
	f.AddGroup("Admin", "/system/")
	f.AddUser("alice", "/system/", "Admin")
	client := iam.NewClient(f)
	ctx := context.Background()

	err := client.DeleteUser(ctx, "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, iam.ErrDeleteConflict))

	require.NoError(t, client.RemoveUserFromGroup(ctx, "alice", "Admin"))
	require.NoError(t, client.DeleteUser(ctx, "alice"))
	assert.False(t, f.HasUser("alice"))
	assert.Equal(t, 2, f.Count("DeleteUser"))
}

func TestFake_KeyLimit(t *testing.T) {
	f := iamtest.New()
	f.AddUser("bob", "")
	f.AddKey("bob")
	f.AddKey("bob")

	_, err := iam.NewClient(f).CreateAccessKey(context.Background(), "bob")
	assert.True(t, errors.Is(err, iam.ErrLimitExceeded))
	assert.Len(t, f.KeysOf("bob"), 2)
}

func TestFake_FailInjection(t *testing.T) {
	f := iamtest.New()
	f.AddUser("carol", "")
	f.Fail["GetUser(carol)"] = iamtest.APIError("AccessDenied")

	_, err := f.GetUser(context.Background(), &awsiam.GetUserInput{UserName: aws.String("carol")})
	require.Error(t, err)

	_, err = iam.NewClient(f).GetUser(context.Background(), "carol")
	assert.True(t, errors.Is(err, iam.ErrAccessDenied))
}

func TestFake_InlinePolicyRoundTrip(t *testing.T) {
	f := iamtest.New()
	f.AddGroup("Volunteer", "/system/")
	client := iam.NewClient(f)
	ctx := context.Background()

	doc := `{"Version": "2012-10-17", "Statement": []}`
	require.NoError(t, client.PutGroupPolicy(ctx, "Volunteer", "Volunteer-policy", doc))

	got, err := client.GetGroupPolicy(ctx, "Volunteer", "Volunteer-policy")
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}
