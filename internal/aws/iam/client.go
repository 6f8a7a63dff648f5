package iam

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

type IAMAPI interface {
	ListUsers(ctx context.Context, params *awsiam.ListUsersInput, optFns ...func(*awsiam.Options)) (*awsiam.ListUsersOutput, error)
	GetUser(ctx context.Context, params *awsiam.GetUserInput, optFns ...func(*awsiam.Options)) (*awsiam.GetUserOutput, error)
	CreateUser(ctx context.Context, params *awsiam.CreateUserInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateUserOutput, error)
	UpdateUser(ctx context.Context, params *awsiam.UpdateUserInput, optFns ...func(*awsiam.Options)) (*awsiam.UpdateUserOutput, error)
	DeleteUser(ctx context.Context, params *awsiam.DeleteUserInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteUserOutput, error)

	ListGroups(ctx context.Context, params *awsiam.ListGroupsInput, optFns ...func(*awsiam.Options)) (*awsiam.ListGroupsOutput, error)
	GetGroup(ctx context.Context, params *awsiam.GetGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.GetGroupOutput, error)
	CreateGroup(ctx context.Context, params *awsiam.CreateGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateGroupOutput, error)
	UpdateGroup(ctx context.Context, params *awsiam.UpdateGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.UpdateGroupOutput, error)
	DeleteGroup(ctx context.Context, params *awsiam.DeleteGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteGroupOutput, error)

	PutGroupPolicy(ctx context.Context, params *awsiam.PutGroupPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.PutGroupPolicyOutput, error)
	GetGroupPolicy(ctx context.Context, params *awsiam.GetGroupPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.GetGroupPolicyOutput, error)
	DeleteGroupPolicy(ctx context.Context, params *awsiam.DeleteGroupPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteGroupPolicyOutput, error)
	ListGroupPolicies(ctx context.Context, params *awsiam.ListGroupPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListGroupPoliciesOutput, error)
	ListAttachedGroupPolicies(ctx context.Context, params *awsiam.ListAttachedGroupPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedGroupPoliciesOutput, error)

	ListGroupsForUser(ctx context.Context, params *awsiam.ListGroupsForUserInput, optFns ...func(*awsiam.Options)) (*awsiam.ListGroupsForUserOutput, error)
	AddUserToGroup(ctx context.Context, params *awsiam.AddUserToGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.AddUserToGroupOutput, error)
	RemoveUserFromGroup(ctx context.Context, params *awsiam.RemoveUserFromGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.RemoveUserFromGroupOutput, error)
	ListAttachedUserPolicies(ctx context.Context, params *awsiam.ListAttachedUserPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedUserPoliciesOutput, error)
	DetachUserPolicy(ctx context.Context, params *awsiam.DetachUserPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DetachUserPolicyOutput, error)

	ListAccessKeys(ctx context.Context, params *awsiam.ListAccessKeysInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAccessKeysOutput, error)
	CreateAccessKey(ctx context.Context, params *awsiam.CreateAccessKeyInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateAccessKeyOutput, error)
	DeleteAccessKey(ctx context.Context, params *awsiam.DeleteAccessKeyInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteAccessKeyOutput, error)

	GetLoginProfile(ctx context.Context, params *awsiam.GetLoginProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.GetLoginProfileOutput, error)
	CreateLoginProfile(ctx context.Context, params *awsiam.CreateLoginProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateLoginProfileOutput, error)
	DeleteLoginProfile(ctx context.Context, params *awsiam.DeleteLoginProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteLoginProfileOutput, error)
}

type Client struct {
	api IAMAPI
}

func NewClient(api IAMAPI) *Client {
	return &Client{api: api}
}

func toUser(u iamtypes.User) IAMUser {
	var createdAt time.Time
	if u.CreateDate != nil {
		createdAt = *u.CreateDate
	}
	return IAMUser{
		Name:      aws.ToString(u.UserName),
		UserID:    aws.ToString(u.UserId),
		ARN:       aws.ToString(u.Arn),
		Path:      aws.ToString(u.Path),
		CreatedAt: createdAt,
	}
}

func toGroup(g iamtypes.Group) IAMGroup {
	var createdAt time.Time
	if g.CreateDate != nil {
		createdAt = *g.CreateDate
	}
	return IAMGroup{
		Name:      aws.ToString(g.GroupName),
		GroupID:   aws.ToString(g.GroupId),
		ARN:       aws.ToString(g.Arn),
		Path:      aws.ToString(g.Path),
		CreatedAt: createdAt,
	}
}

// --- Users ---

func (c *Client) ListUsers(ctx context.Context) ([]IAMUser, error) {
	var users []IAMUser
	var marker *string

	for {
		out, err := c.api.ListUsers(ctx, &awsiam.ListUsersInput{
			Marker: marker,
		})
		if err != nil {
			return nil, wrap("ListUsers", err)
		}

		for _, u := range out.Users {
			users = append(users, toUser(u))
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return users, nil
}

func (c *Client) GetUser(ctx context.Context, userName string) (IAMUser, error) {
	out, err := c.api.GetUser(ctx, &awsiam.GetUserInput{
		UserName: aws.String(userName),
	})
	if err != nil {
		return IAMUser{}, wrap(fmt.Sprintf("GetUser(%s)", userName), err)
	}
	if out.User == nil {
		return IAMUser{}, fmt.Errorf("GetUser(%s): %w", userName, ErrNotFound)
	}
	return toUser(*out.User), nil
}

func (c *Client) CreateUser(ctx context.Context, userName, path string, tags map[string]string) (IAMUser, error) {
	in := &awsiam.CreateUserInput{
		UserName: aws.String(userName),
	}
	if path != "" {
		in.Path = aws.String(path)
	}
	for k, v := range tags {
		in.Tags = append(in.Tags, iamtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	out, err := c.api.CreateUser(ctx, in)
	if err != nil {
		return IAMUser{}, wrap(fmt.Sprintf("CreateUser(%s)", userName), err)
	}
	if out.User == nil {
		return IAMUser{Name: userName, Path: path}, nil
	}
	return toUser(*out.User), nil
}

func (c *Client) UpdateUserPath(ctx context.Context, userName, path string) error {
	_, err := c.api.UpdateUser(ctx, &awsiam.UpdateUserInput{
		UserName: aws.String(userName),
		NewPath:  aws.String(path),
	})
	if err != nil {
		return wrap(fmt.Sprintf("UpdateUser(%s)", userName), err)
	}
	return nil
}

func (c *Client) DeleteUser(ctx context.Context, userName string) error {
	_, err := c.api.DeleteUser(ctx, &awsiam.DeleteUserInput{
		UserName: aws.String(userName),
	})
	if err != nil {
		return wrap(fmt.Sprintf("DeleteUser(%s)", userName), err)
	}
	return nil
}

// --- Groups ---

func (c *Client) ListGroups(ctx context.Context) ([]IAMGroup, error) {
	var groups []IAMGroup
	var marker *string

	for {
		out, err := c.api.ListGroups(ctx, &awsiam.ListGroupsInput{
			Marker: marker,
		})
		if err != nil {
			return nil, wrap("ListGroups", err)
		}

		for _, g := range out.Groups {
			groups = append(groups, toGroup(g))
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return groups, nil
}

func (c *Client) GetGroup(ctx context.Context, groupName string) (IAMGroup, error) {
	out, err := c.api.GetGroup(ctx, &awsiam.GetGroupInput{
		GroupName: aws.String(groupName),
	})
	if err != nil {
		return IAMGroup{}, wrap(fmt.Sprintf("GetGroup(%s)", groupName), err)
	}
	if out.Group == nil {
		return IAMGroup{}, fmt.Errorf("GetGroup(%s): %w", groupName, ErrNotFound)
	}
	return toGroup(*out.Group), nil
}

func (c *Client) CreateGroup(ctx context.Context, groupName, path string) (IAMGroup, error) {
	in := &awsiam.CreateGroupInput{
		GroupName: aws.String(groupName),
	}
	if path != "" {
		in.Path = aws.String(path)
	}

	out, err := c.api.CreateGroup(ctx, in)
	if err != nil {
		return IAMGroup{}, wrap(fmt.Sprintf("CreateGroup(%s)", groupName), err)
	}
	if out.Group == nil {
		return IAMGroup{Name: groupName, Path: path}, nil
	}
	return toGroup(*out.Group), nil
}

func (c *Client) UpdateGroupPath(ctx context.Context, groupName, path string) error {
	_, err := c.api.UpdateGroup(ctx, &awsiam.UpdateGroupInput{
		GroupName: aws.String(groupName),
		NewPath:   aws.String(path),
	})
	if err != nil {
		return wrap(fmt.Sprintf("UpdateGroup(%s)", groupName), err)
	}
	return nil
}

func (c *Client) DeleteGroup(ctx context.Context, groupName string) error {
	_, err := c.api.DeleteGroup(ctx, &awsiam.DeleteGroupInput{
		GroupName: aws.String(groupName),
	})
	if err != nil {
		return wrap(fmt.Sprintf("DeleteGroup(%s)", groupName), err)
	}
	return nil
}

// --- Group policies ---

func (c *Client) PutGroupPolicy(ctx context.Context, groupName, policyName, document string) error {
	_, err := c.api.PutGroupPolicy(ctx, &awsiam.PutGroupPolicyInput{
		GroupName:      aws.String(groupName),
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(document),
	})
	if err != nil {
		return wrap(fmt.Sprintf("PutGroupPolicy(%s/%s)", groupName, policyName), err)
	}
	return nil
}

// GetGroupPolicy returns the inline policy document, URL-decoded.
func (c *Client) GetGroupPolicy(ctx context.Context, groupName, policyName string) (string, error) {
	out, err := c.api.GetGroupPolicy(ctx, &awsiam.GetGroupPolicyInput{
		GroupName:  aws.String(groupName),
		PolicyName: aws.String(policyName),
	})
	if err != nil {
		return "", wrap(fmt.Sprintf("GetGroupPolicy(%s/%s)", groupName, policyName), err)
	}

	doc := aws.ToString(out.PolicyDocument)
	if decoded, err := url.QueryUnescape(doc); err == nil {
		doc = decoded
	}
	return doc, nil
}

func (c *Client) DeleteGroupPolicy(ctx context.Context, groupName, policyName string) error {
	_, err := c.api.DeleteGroupPolicy(ctx, &awsiam.DeleteGroupPolicyInput{
		GroupName:  aws.String(groupName),
		PolicyName: aws.String(policyName),
	})
	if err != nil {
		return wrap(fmt.Sprintf("DeleteGroupPolicy(%s/%s)", groupName, policyName), err)
	}
	return nil
}

func (c *Client) ListGroupPolicies(ctx context.Context, groupName string) ([]string, error) {
	var names []string
	var marker *string

	for {
		out, err := c.api.ListGroupPolicies(ctx, &awsiam.ListGroupPoliciesInput{
			GroupName: aws.String(groupName),
			Marker:    marker,
		})
		if err != nil {
			return nil, wrap(fmt.Sprintf("ListGroupPolicies(%s)", groupName), err)
		}

		names = append(names, out.PolicyNames...)

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return names, nil
}

func (c *Client) ListAttachedGroupPolicies(ctx context.Context, groupName string) ([]IAMAttachedPolicy, error) {
	var policies []IAMAttachedPolicy
	var marker *string

	for {
		out, err := c.api.ListAttachedGroupPolicies(ctx, &awsiam.ListAttachedGroupPoliciesInput{
			GroupName: aws.String(groupName),
			Marker:    marker,
		})
		if err != nil {
			return nil, wrap(fmt.Sprintf("ListAttachedGroupPolicies(%s)", groupName), err)
		}

		for _, p := range out.AttachedPolicies {
			policies = append(policies, IAMAttachedPolicy{
				Name: aws.ToString(p.PolicyName),
				ARN:  aws.ToString(p.PolicyArn),
			})
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return policies, nil
}

// --- Membership ---

func (c *Client) ListGroupsForUser(ctx context.Context, userName string) ([]IAMGroup, error) {
	var groups []IAMGroup
	var marker *string

	for {
		out, err := c.api.ListGroupsForUser(ctx, &awsiam.ListGroupsForUserInput{
			UserName: aws.String(userName),
			Marker:   marker,
		})
		if err != nil {
			return nil, wrap(fmt.Sprintf("ListGroupsForUser(%s)", userName), err)
		}

		for _, g := range out.Groups {
			groups = append(groups, toGroup(g))
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return groups, nil
}

// GroupNamesForUser is ListGroupsForUser reduced to names.
func (c *Client) GroupNamesForUser(ctx context.Context, userName string) ([]string, error) {
	groups, err := c.ListGroupsForUser(ctx, userName)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.Name)
	}
	return names, nil
}

func (c *Client) AddUserToGroup(ctx context.Context, userName, groupName string) error {
	_, err := c.api.AddUserToGroup(ctx, &awsiam.AddUserToGroupInput{
		UserName:  aws.String(userName),
		GroupName: aws.String(groupName),
	})
	if err != nil {
		return wrap(fmt.Sprintf("AddUserToGroup(%s, %s)", userName, groupName), err)
	}
	return nil
}

func (c *Client) RemoveUserFromGroup(ctx context.Context, userName, groupName string) error {
	_, err := c.api.RemoveUserFromGroup(ctx, &awsiam.RemoveUserFromGroupInput{
		UserName:  aws.String(userName),
		GroupName: aws.String(groupName),
	})
	if err != nil {
		return wrap(fmt.Sprintf("RemoveUserFromGroup(%s, %s)", userName, groupName), err)
	}
	return nil
}

func (c *Client) ListAttachedUserPolicies(ctx context.Context, userName string) ([]IAMAttachedPolicy, error) {
	var policies []IAMAttachedPolicy
	var marker *string

	for {
		out, err := c.api.ListAttachedUserPolicies(ctx, &awsiam.ListAttachedUserPoliciesInput{
			UserName: aws.String(userName),
			Marker:   marker,
		})
		if err != nil {
			return nil, wrap(fmt.Sprintf("ListAttachedUserPolicies(%s)", userName), err)
		}

		for _, p := range out.AttachedPolicies {
			policies = append(policies, IAMAttachedPolicy{
				Name: aws.ToString(p.PolicyName),
				ARN:  aws.ToString(p.PolicyArn),
			})
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return policies, nil
}

func (c *Client) DetachUserPolicy(ctx context.Context, userName, policyARN string) error {
	_, err := c.api.DetachUserPolicy(ctx, &awsiam.DetachUserPolicyInput{
		UserName:  aws.String(userName),
		PolicyArn: aws.String(policyARN),
	})
	if err != nil {
		return wrap(fmt.Sprintf("DetachUserPolicy(%s, %s)", userName, policyARN), err)
	}
	return nil
}

// --- Access keys ---

func (c *Client) ListAccessKeys(ctx context.Context, userName string) ([]IAMAccessKey, error) {
	var keys []IAMAccessKey
	var marker *string

	for {
		out, err := c.api.ListAccessKeys(ctx, &awsiam.ListAccessKeysInput{
			UserName: aws.String(userName),
			Marker:   marker,
		})
		if err != nil {
			return nil, wrap(fmt.Sprintf("ListAccessKeys(%s)", userName), err)
		}

		for _, k := range out.AccessKeyMetadata {
			var createdAt time.Time
			if k.CreateDate != nil {
				createdAt = *k.CreateDate
			}
			keys = append(keys, IAMAccessKey{
				ID:        aws.ToString(k.AccessKeyId),
				Status:    string(k.Status),
				CreatedAt: createdAt,
			})
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return keys, nil
}

func (c *Client) CreateAccessKey(ctx context.Context, userName string) (IAMIssuedKey, error) {
	out, err := c.api.CreateAccessKey(ctx, &awsiam.CreateAccessKeyInput{
		UserName: aws.String(userName),
	})
	if err != nil {
		return IAMIssuedKey{}, wrap(fmt.Sprintf("CreateAccessKey(%s)", userName), err)
	}
	if out.AccessKey == nil {
		return IAMIssuedKey{}, fmt.Errorf("CreateAccessKey(%s): empty response", userName)
	}
	return IAMIssuedKey{
		ID:     aws.ToString(out.AccessKey.AccessKeyId),
		Secret: aws.ToString(out.AccessKey.SecretAccessKey),
	}, nil
}

func (c *Client) DeleteAccessKey(ctx context.Context, userName, keyID string) error {
	_, err := c.api.DeleteAccessKey(ctx, &awsiam.DeleteAccessKeyInput{
		UserName:    aws.String(userName),
		AccessKeyId: aws.String(keyID),
	})
	if err != nil {
		return wrap(fmt.Sprintf("DeleteAccessKey(%s, %s)", userName, keyID), err)
	}
	return nil
}

// --- Login profiles ---

// GetLoginProfile reports whether the user has console access. A missing
// profile is not an error.
func (c *Client) GetLoginProfile(ctx context.Context, userName string) (IAMLoginProfile, bool, error) {
	out, err := c.api.GetLoginProfile(ctx, &awsiam.GetLoginProfileInput{
		UserName: aws.String(userName),
	})
	if err != nil {
		if classify(err) == ErrNotFound {
			return IAMLoginProfile{}, false, nil
		}
		return IAMLoginProfile{}, false, wrap(fmt.Sprintf("GetLoginProfile(%s)", userName), err)
	}
	if out.LoginProfile == nil {
		return IAMLoginProfile{}, false, nil
	}

	var createdAt time.Time
	if out.LoginProfile.CreateDate != nil {
		createdAt = *out.LoginProfile.CreateDate
	}
	return IAMLoginProfile{
		UserName:              aws.ToString(out.LoginProfile.UserName),
		CreatedAt:             createdAt,
		PasswordResetRequired: out.LoginProfile.PasswordResetRequired,
	}, true, nil
}

func (c *Client) CreateLoginProfile(ctx context.Context, userName, password string, resetRequired bool) error {
	_, err := c.api.CreateLoginProfile(ctx, &awsiam.CreateLoginProfileInput{
		UserName:              aws.String(userName),
		Password:              aws.String(password),
		PasswordResetRequired: resetRequired,
	})
	if err != nil {
		return wrap(fmt.Sprintf("CreateLoginProfile(%s)", userName), err)
	}
	return nil
}

func (c *Client) DeleteLoginProfile(ctx context.Context, userName string) error {
	_, err := c.api.DeleteLoginProfile(ctx, &awsiam.DeleteLoginProfileInput{
		UserName: aws.String(userName),
	})
	if err != nil {
		return wrap(fmt.Sprintf("DeleteLoginProfile(%s)", userName), err)
	}
	return nil
}
