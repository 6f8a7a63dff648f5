package iam

import (
	"context"
	"errors"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"
)

type mockIAMAPI struct {
	listUsersFunc                 func(ctx context.Context, params *awsiam.ListUsersInput, optFns ...func(*awsiam.Options)) (*awsiam.ListUsersOutput, error)
	getUserFunc                   func(ctx context.Context, params *awsiam.GetUserInput, optFns ...func(*awsiam.Options)) (*awsiam.GetUserOutput, error)
	createUserFunc                func(ctx context.Context, params *awsiam.CreateUserInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateUserOutput, error)
	updateUserFunc                func(ctx context.Context, params *awsiam.UpdateUserInput, optFns ...func(*awsiam.Options)) (*awsiam.UpdateUserOutput, error)
	deleteUserFunc                func(ctx context.Context, params *awsiam.DeleteUserInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteUserOutput, error)
	listGroupsFunc                func(ctx context.Context, params *awsiam.ListGroupsInput, optFns ...func(*awsiam.Options)) (*awsiam.ListGroupsOutput, error)
	getGroupFunc                  func(ctx context.Context, params *awsiam.GetGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.GetGroupOutput, error)
	createGroupFunc               func(ctx context.Context, params *awsiam.CreateGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateGroupOutput, error)
	updateGroupFunc               func(ctx context.Context, params *awsiam.UpdateGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.UpdateGroupOutput, error)
	deleteGroupFunc               func(ctx context.Context, params *awsiam.DeleteGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteGroupOutput, error)
	putGroupPolicyFunc            func(ctx context.Context, params *awsiam.PutGroupPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.PutGroupPolicyOutput, error)
	getGroupPolicyFunc            func(ctx context.Context, params *awsiam.GetGroupPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.GetGroupPolicyOutput, error)
	deleteGroupPolicyFunc         func(ctx context.Context, params *awsiam.DeleteGroupPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteGroupPolicyOutput, error)
	listGroupPoliciesFunc         func(ctx context.Context, params *awsiam.ListGroupPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListGroupPoliciesOutput, error)
	listAttachedGroupPoliciesFunc func(ctx context.Context, params *awsiam.ListAttachedGroupPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedGroupPoliciesOutput, error)
	listGroupsForUserFunc         func(ctx context.Context, params *awsiam.ListGroupsForUserInput, optFns ...func(*awsiam.Options)) (*awsiam.ListGroupsForUserOutput, error)
	addUserToGroupFunc            func(ctx context.Context, params *awsiam.AddUserToGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.AddUserToGroupOutput, error)
	removeUserFromGroupFunc       func(ctx context.Context, params *awsiam.RemoveUserFromGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.RemoveUserFromGroupOutput, error)
	listAttachedUserPoliciesFunc  func(ctx context.Context, params *awsiam.ListAttachedUserPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedUserPoliciesOutput, error)
	detachUserPolicyFunc          func(ctx context.Context, params *awsiam.DetachUserPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DetachUserPolicyOutput, error)
	listAccessKeysFunc            func(ctx context.Context, params *awsiam.ListAccessKeysInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAccessKeysOutput, error)
	createAccessKeyFunc           func(ctx context.Context, params *awsiam.CreateAccessKeyInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateAccessKeyOutput, error)
	deleteAccessKeyFunc           func(ctx context.Context, params *awsiam.DeleteAccessKeyInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteAccessKeyOutput, error)
	getLoginProfileFunc           func(ctx context.Context, params *awsiam.GetLoginProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.GetLoginProfileOutput, error)
	createLoginProfileFunc        func(ctx context.Context, params *awsiam.CreateLoginProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateLoginProfileOutput, error)
	deleteLoginProfileFunc        func(ctx context.Context, params *awsiam.DeleteLoginProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteLoginProfileOutput, error)
}

func (m *mockIAMAPI) ListUsers(ctx context.Context, params *awsiam.ListUsersInput, optFns ...func(*awsiam.Options)) (*awsiam.ListUsersOutput, error) {
	return m.listUsersFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) GetUser(ctx context.Context, params *awsiam.GetUserInput, optFns ...func(*awsiam.Options)) (*awsiam.GetUserOutput, error) {
	return m.getUserFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) CreateUser(ctx context.Context, params *awsiam.CreateUserInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateUserOutput, error) {
	return m.createUserFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) UpdateUser(ctx context.Context, params *awsiam.UpdateUserInput, optFns ...func(*awsiam.Options)) (*awsiam.UpdateUserOutput, error) {
	return m.updateUserFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) DeleteUser(ctx context.Context, params *awsiam.DeleteUserInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteUserOutput, error) {
	return m.deleteUserFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) ListGroups(ctx context.Context, params *awsiam.ListGroupsInput, optFns ...func(*awsiam.Options)) (*awsiam.ListGroupsOutput, error) {
	return m.listGroupsFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) GetGroup(ctx context.Context, params *awsiam.GetGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.GetGroupOutput, error) {
	return m.getGroupFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) CreateGroup(ctx context.Context, params *awsiam.CreateGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateGroupOutput, error) {
	return m.createGroupFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) UpdateGroup(ctx context.Context, params *awsiam.UpdateGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.UpdateGroupOutput, error) {
	return m.updateGroupFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) DeleteGroup(ctx context.Context, params *awsiam.DeleteGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteGroupOutput, error) {
	return m.deleteGroupFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) PutGroupPolicy(ctx context.Context, params *awsiam.PutGroupPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.PutGroupPolicyOutput, error) {
	return m.putGroupPolicyFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) GetGroupPolicy(ctx context.Context, params *awsiam.GetGroupPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.GetGroupPolicyOutput, error) {
	return m.getGroupPolicyFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) DeleteGroupPolicy(ctx context.Context, params *awsiam.DeleteGroupPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteGroupPolicyOutput, error) {
	return m.deleteGroupPolicyFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) ListGroupPolicies(ctx context.Context, params *awsiam.ListGroupPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListGroupPoliciesOutput, error) {
	return m.listGroupPoliciesFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) ListAttachedGroupPolicies(ctx context.Context, params *awsiam.ListAttachedGroupPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedGroupPoliciesOutput, error) {
	return m.listAttachedGroupPoliciesFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) ListGroupsForUser(ctx context.Context, params *awsiam.ListGroupsForUserInput, optFns ...func(*awsiam.Options)) (*awsiam.ListGroupsForUserOutput, error) {
	return m.listGroupsForUserFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) AddUserToGroup(ctx context.Context, params *awsiam.AddUserToGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.AddUserToGroupOutput, error) {
	return m.addUserToGroupFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) RemoveUserFromGroup(ctx context.Context, params *awsiam.RemoveUserFromGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.RemoveUserFromGroupOutput, error) {
	return m.removeUserFromGroupFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) ListAttachedUserPolicies(ctx context.Context, params *awsiam.ListAttachedUserPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedUserPoliciesOutput, error) {
	return m.listAttachedUserPoliciesFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) DetachUserPolicy(ctx context.Context, params *awsiam.DetachUserPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DetachUserPolicyOutput, error) {
	return m.detachUserPolicyFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) ListAccessKeys(ctx context.Context, params *awsiam.ListAccessKeysInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAccessKeysOutput, error) {
	return m.listAccessKeysFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) CreateAccessKey(ctx context.Context, params *awsiam.CreateAccessKeyInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateAccessKeyOutput, error) {
	return m.createAccessKeyFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) DeleteAccessKey(ctx context.Context, params *awsiam.DeleteAccessKeyInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteAccessKeyOutput, error) {
	return m.deleteAccessKeyFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) GetLoginProfile(ctx context.Context, params *awsiam.GetLoginProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.GetLoginProfileOutput, error) {
	return m.getLoginProfileFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) CreateLoginProfile(ctx context.Context, params *awsiam.CreateLoginProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateLoginProfileOutput, error) {
	return m.createLoginProfileFunc(ctx, params, optFns...)
}

func (m *mockIAMAPI) DeleteLoginProfile(ctx context.Context, params *awsiam.DeleteLoginProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteLoginProfileOutput, error) {
	return m.deleteLoginProfileFunc(ctx, params, optFns...)
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code + " from test"}
}

func TestListUsers(t *testing.T) {
	created1 := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	created2 := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	mock := &mockIAMAPI{
		listUsersFunc: func(ctx context.Context, params *awsiam.ListUsersInput, optFns ...func(*awsiam.Options)) (*awsiam.ListUsersOutput, error) {
			return &awsiam.ListUsersOutput{
				Users: []iamtypes.User{
					{
						UserName:   awssdk.String("alice"),
						UserId:     awssdk.String("AIDA1234"),
						Arn:        awssdk.String("arn:aws:iam::123456789012:user/system/alice"),
						Path:       awssdk.String("/system/"),
						CreateDate: &created1,
					},
					{
						UserName:   awssdk.String("bob"),
						UserId:     awssdk.String("AIDA5678"),
						Arn:        awssdk.String("arn:aws:iam::123456789012:user/bob"),
						Path:       awssdk.String("/"),
						CreateDate: &created2,
					},
				},
				IsTruncated: false,
			}, nil
		},
	}

	client := NewClient(mock)
	users, err := client.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	if users[0].Name != "alice" {
		t.Errorf("Name = %s, want alice", users[0].Name)
	}
	if users[0].Path != "/system/" {
		t.Errorf("Path = %s, want /system/", users[0].Path)
	}
	if users[0].UserID != "AIDA1234" {
		t.Errorf("UserID = %s, want AIDA1234", users[0].UserID)
	}
	if !users[0].CreatedAt.Equal(created1) {
		t.Errorf("CreatedAt = %v, want %v", users[0].CreatedAt, created1)
	}
	if users[1].Name != "bob" {
		t.Errorf("Name = %s, want bob", users[1].Name)
	}
}

func TestListUsers_Pagination(t *testing.T) {
	calls := 0
	mock := &mockIAMAPI{
		listUsersFunc: func(ctx context.Context, params *awsiam.ListUsersInput, optFns ...func(*awsiam.Options)) (*awsiam.ListUsersOutput, error) {
			calls++
			if calls == 1 {
				if params.Marker != nil {
					t.Errorf("first call Marker = %v, want nil", *params.Marker)
				}
				return &awsiam.ListUsersOutput{
					Users:       []iamtypes.User{{UserName: awssdk.String("alice")}},
					IsTruncated: true,
					Marker:      awssdk.String("page2"),
				}, nil
			}
			if awssdk.ToString(params.Marker) != "page2" {
				t.Errorf("second call Marker = %s, want page2", awssdk.ToString(params.Marker))
			}
			return &awsiam.ListUsersOutput{
				Users: []iamtypes.User{{UserName: awssdk.String("bob")}},
			}, nil
		},
	}

	users, err := NewClient(mock).ListUsers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(users) != 2 || users[1].Name != "bob" {
		t.Errorf("users = %+v, want alice and bob", users)
	}
}

func TestListUsers_AccessDenied(t *testing.T) {
	mock := &mockIAMAPI{
		listUsersFunc: func(ctx context.Context, params *awsiam.ListUsersInput, optFns ...func(*awsiam.Options)) (*awsiam.ListUsersOutput, error) {
			return nil, apiError("AccessDenied")
		},
	}

	_, err := NewClient(mock).ListUsers(context.Background())
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("expected the API error to stay in the chain")
	}
}

func TestGetUser_NotFound(t *testing.T) {
	mock := &mockIAMAPI{
		getUserFunc: func(ctx context.Context, params *awsiam.GetUserInput, optFns ...func(*awsiam.Options)) (*awsiam.GetUserOutput, error) {
			return nil, apiError("NoSuchEntity")
		},
	}

	_, err := NewClient(mock).GetUser(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateUser(t *testing.T) {
	mock := &mockIAMAPI{
		createUserFunc: func(ctx context.Context, params *awsiam.CreateUserInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateUserOutput, error) {
			if awssdk.ToString(params.UserName) != "carol" {
				t.Errorf("UserName = %s, want carol", awssdk.ToString(params.UserName))
			}
			if awssdk.ToString(params.Path) != "/system/" {
				t.Errorf("Path = %s, want /system/", awssdk.ToString(params.Path))
			}
			if len(params.Tags) != 1 || awssdk.ToString(params.Tags[0].Key) != "Created" {
				t.Errorf("Tags = %+v, want Created tag", params.Tags)
			}
			return &awsiam.CreateUserOutput{User: &iamtypes.User{
				UserName: params.UserName,
				Path:     params.Path,
				UserId:   awssdk.String("AIDACAROL"),
			}}, nil
		},
	}

	user, err := NewClient(mock).CreateUser(context.Background(), "carol", "/system/", map[string]string{"Created": "iamctl"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.UserID != "AIDACAROL" {
		t.Errorf("UserID = %s, want AIDACAROL", user.UserID)
	}
}

func TestCreateUser_AlreadyExists(t *testing.T) {
	mock := &mockIAMAPI{
		createUserFunc: func(ctx context.Context, params *awsiam.CreateUserInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateUserOutput, error) {
			return nil, apiError("EntityAlreadyExists")
		},
	}

	_, err := NewClient(mock).CreateUser(context.Background(), "alice", "", nil)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestGetGroupPolicy_DecodesDocument(t *testing.T) {
	mock := &mockIAMAPI{
		getGroupPolicyFunc: func(ctx context.Context, params *awsiam.GetGroupPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.GetGroupPolicyOutput, error) {
			if awssdk.ToString(params.PolicyName) != "Admin-policy" {
				t.Errorf("PolicyName = %s, want Admin-policy", awssdk.ToString(params.PolicyName))
			}
			return &awsiam.GetGroupPolicyOutput{
				GroupName:      params.GroupName,
				PolicyName:     params.PolicyName,
				PolicyDocument: awssdk.String("%7B%22Version%22%3A%222012-10-17%22%7D"),
			}, nil
		},
	}

	doc, err := NewClient(mock).GetGroupPolicy(context.Background(), "Admin", "Admin-policy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc != `{"Version":"2012-10-17"}` {
		t.Errorf("doc = %s, want decoded JSON", doc)
	}
}

func TestListAttachedGroupPolicies(t *testing.T) {
	mock := &mockIAMAPI{
		listAttachedGroupPoliciesFunc: func(ctx context.Context, params *awsiam.ListAttachedGroupPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedGroupPoliciesOutput, error) {
			return &awsiam.ListAttachedGroupPoliciesOutput{
				AttachedPolicies: []iamtypes.AttachedPolicy{
					{PolicyName: awssdk.String("ReadOnlyAccess"), PolicyArn: awssdk.String("arn:aws:iam::aws:policy/ReadOnlyAccess")},
				},
			}, nil
		},
	}

	policies, err := NewClient(mock).ListAttachedGroupPolicies(context.Background(), "Steward")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policies) != 1 || policies[0].ARN != "arn:aws:iam::aws:policy/ReadOnlyAccess" {
		t.Errorf("policies = %+v", policies)
	}
}

func TestGroupNamesForUser(t *testing.T) {
	mock := &mockIAMAPI{
		listGroupsForUserFunc: func(ctx context.Context, params *awsiam.ListGroupsForUserInput, optFns ...func(*awsiam.Options)) (*awsiam.ListGroupsForUserOutput, error) {
			if awssdk.ToString(params.UserName) != "alice" {
				t.Errorf("UserName = %s, want alice", awssdk.ToString(params.UserName))
			}
			return &awsiam.ListGroupsForUserOutput{
				Groups: []iamtypes.Group{
					{GroupName: awssdk.String("Admin")},
					{GroupName: awssdk.String("Steward")},
				},
			}, nil
		},
	}

	names, err := NewClient(mock).GroupNamesForUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "Admin" || names[1] != "Steward" {
		t.Errorf("names = %v, want [Admin Steward]", names)
	}
}

func TestListAccessKeys(t *testing.T) {
	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	mock := &mockIAMAPI{
		listAccessKeysFunc: func(ctx context.Context, params *awsiam.ListAccessKeysInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAccessKeysOutput, error) {
			return &awsiam.ListAccessKeysOutput{
				AccessKeyMetadata: []iamtypes.AccessKeyMetadata{
					{AccessKeyId: awssdk.String("AKIA1"), Status: iamtypes.StatusTypeActive, CreateDate: &created},
					{AccessKeyId: awssdk.String("AKIA2"), Status: iamtypes.StatusTypeInactive},
				},
			}, nil
		},
	}

	keys, err := NewClient(mock).ListAccessKeys(context.Background(), "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if keys[0].Status != "Active" || !keys[0].CreatedAt.Equal(created) {
		t.Errorf("keys[0] = %+v", keys[0])
	}
	if keys[1].Status != "Inactive" {
		t.Errorf("keys[1].Status = %s, want Inactive", keys[1].Status)
	}
}

func TestCreateAccessKey(t *testing.T) {
	mock := &mockIAMAPI{
		createAccessKeyFunc: func(ctx context.Context, params *awsiam.CreateAccessKeyInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateAccessKeyOutput, error) {
			return &awsiam.CreateAccessKeyOutput{AccessKey: &iamtypes.AccessKey{
				UserName:        params.UserName,
				AccessKeyId:     awssdk.String("AKIANEW"),
				SecretAccessKey: awssdk.String("s3cr3t"),
				Status:          iamtypes.StatusTypeActive,
			}}, nil
		},
	}

	key, err := NewClient(mock).CreateAccessKey(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.ID != "AKIANEW" || key.Secret != "s3cr3t" {
		t.Errorf("key = %+v", key)
	}
}

func TestCreateAccessKey_LimitExceeded(t *testing.T) {
	mock := &mockIAMAPI{
		createAccessKeyFunc: func(ctx context.Context, params *awsiam.CreateAccessKeyInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateAccessKeyOutput, error) {
			return nil, apiError("LimitExceeded")
		},
	}

	_, err := NewClient(mock).CreateAccessKey(context.Background(), "bob")
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("err = %v, want ErrLimitExceeded", err)
	}
}

func TestGetLoginProfile(t *testing.T) {
	mock := &mockIAMAPI{
		getLoginProfileFunc: func(ctx context.Context, params *awsiam.GetLoginProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.GetLoginProfileOutput, error) {
			if awssdk.ToString(params.UserName) == "ghost" {
				return nil, apiError("NoSuchEntity")
			}
			return &awsiam.GetLoginProfileOutput{LoginProfile: &iamtypes.LoginProfile{
				UserName:              params.UserName,
				PasswordResetRequired: true,
			}}, nil
		},
	}
	client := NewClient(mock)

	profile, found, err := client.GetLoginProfile(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || !profile.PasswordResetRequired {
		t.Errorf("profile = %+v, found = %v", profile, found)
	}

	_, found, err = client.GetLoginProfile(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("missing profile should not be an error: %v", err)
	}
	if found {
		t.Errorf("found = true for user without a login profile")
	}
}

func TestDeleteGroup_Conflict(t *testing.T) {
	mock := &mockIAMAPI{
		deleteGroupFunc: func(ctx context.Context, params *awsiam.DeleteGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteGroupOutput, error) {
			return nil, apiError("DeleteConflict")
		},
	}

	err := NewClient(mock).DeleteGroup(context.Background(), "Volunteer")
	if !errors.Is(err, ErrDeleteConflict) {
		t.Fatalf("err = %v, want ErrDeleteConflict", err)
	}
}

func TestWrap_UnclassifiedKeepsOriginal(t *testing.T) {
	base := errors.New("connection reset")
	err := wrap("ListGroups", base)
	if !errors.Is(err, base) {
		t.Errorf("expected original error in chain")
	}
	for _, class := range []error{ErrAccessDenied, ErrNotFound, ErrAlreadyExists, ErrLimitExceeded, ErrDeleteConflict} {
		if errors.Is(err, class) {
			t.Errorf("unclassified error matched %v", class)
		}
	}
}
