// Package iamtest provides an in-memory IAM endpoint for tests.
package iamtest

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"
)

const account = "123456789012"

type Key struct {
	ID      string
	Secret  string
	Status  string
	Created time.Time
}

type Login struct {
	Password      string
	ResetRequired bool
	Created       time.Time
}

type User struct {
	Name     string
	ID       string
	Path     string
	Created  time.Time
	Tags     map[string]string
	Groups   map[string]bool
	Keys     []Key
	Login    *Login
	Policies []string
}

type Group struct {
	Name     string
	ID       string
	Path     string
	Created  time.Time
	Inline   map[string]string
	Attached []string
}

// Fake is a stateful stand-in for the IAM API. It enforces the same
// dependency rules the real service does: users with keys, login profiles,
// memberships or attached policies cannot be deleted, and neither can
// groups with members or policies.
type Fake struct {
	mu sync.Mutex

	Users  map[string]*User
	Groups map[string]*Group

	// Calls records every mutating request as "Op(args)".
	Calls []string
	// Fail injects errors keyed by "Op" or "Op(args)".
	Fail map[string]error
	// KeyLimit caps access keys per user.
	KeyLimit int

	seq int
}

func New() *Fake {
	return &Fake{
		Users:    map[string]*User{},
		Groups:   map[string]*Group{},
		Fail:     map[string]error{},
		KeyLimit: 2,
	}
}

// APIError builds an error shaped like a service response.
func APIError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func notFound(kind, name string) error {
	return &smithy.GenericAPIError{Code: "NoSuchEntity", Message: fmt.Sprintf("The %s with name %s cannot be found.", kind, name)}
}

func (f *Fake) tick() time.Time {
	f.seq++
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.seq) * time.Minute)
}

func (f *Fake) record(op, args string) error {
	call := op + "(" + args + ")"
	f.Calls = append(f.Calls, call)
	if err, ok := f.Fail[call]; ok {
		return err
	}
	if err, ok := f.Fail[op]; ok {
		return err
	}
	return nil
}

func (f *Fake) check(op, args string) error {
	if err, ok := f.Fail[op+"("+args+")"]; ok {
		return err
	}
	if err, ok := f.Fail[op]; ok {
		return err
	}
	return nil
}

// Count returns how many mutating calls of op were made.
func (f *Fake) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c, op+"(") {
			n++
		}
	}
	return n
}

// Reset clears the call log.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
}

// --- Seeding ---

func (f *Fake) AddGroup(name, path string) *Group {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path == "" {
		path = "/"
	}
	g := &Group{Name: name, ID: "AGPA" + strings.ToUpper(name), Path: path, Created: f.tick(), Inline: map[string]string{}}
	f.Groups[name] = g
	return g
}

func (f *Fake) AddUser(name, path string, groups ...string) *User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path == "" {
		path = "/"
	}
	u := &User{Name: name, ID: "AIDA" + strings.ToUpper(name), Path: path, Created: f.tick(), Groups: map[string]bool{}}
	for _, g := range groups {
		u.Groups[g] = true
	}
	f.Users[name] = u
	return u
}

func (f *Fake) AddKey(user string) Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newKey(f.Users[user])
}

func (f *Fake) newKey(u *User) Key {
	created := f.tick()
	k := Key{
		ID:      fmt.Sprintf("AKIAFAKE%04d", f.seq),
		Secret:  fmt.Sprintf("secret-%04d", f.seq),
		Status:  string(iamtypes.StatusTypeActive),
		Created: created,
	}
	u.Keys = append(u.Keys, k)
	return k
}

func (f *Fake) SetLogin(user string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Users[user].Login = &Login{Password: "seeded", Created: f.tick()}
}

func (f *Fake) AttachUserPolicy(user, arn string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.Users[user]
	u.Policies = append(u.Policies, arn)
}

func (f *Fake) AttachGroupPolicy(group, arn string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.Groups[group]
	g.Attached = append(g.Attached, arn)
}

func (f *Fake) PutInline(group, policy, doc string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Groups[group].Inline[policy] = doc
}

// --- Inspection ---

func (f *Fake) HasUser(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.Users[name]
	return ok
}

func (f *Fake) HasGroup(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.Groups[name]
	return ok
}

func (f *Fake) GroupsOf(user string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[user]
	if !ok {
		return nil
	}
	return sortedKeys(u.Groups)
}

func (f *Fake) KeysOf(user string) []Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[user]
	if !ok {
		return nil
	}
	return append([]Key(nil), u.Keys...)
}

func (f *Fake) LoginOf(user string) *Login {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[user]
	if !ok || u.Login == nil {
		return nil
	}
	l := *u.Login
	return &l
}

func (f *Fake) InlineOf(group, policy string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.Groups[group]
	if !ok {
		return "", false
	}
	doc, ok := g.Inline[policy]
	return doc, ok
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (f *Fake) sdkUser(u *User) iamtypes.User {
	created := u.Created
	return iamtypes.User{
		UserName:   aws.String(u.Name),
		UserId:     aws.String(u.ID),
		Path:       aws.String(u.Path),
		Arn:        aws.String(fmt.Sprintf("arn:aws:iam::%s:user%s%s", account, u.Path, u.Name)),
		CreateDate: &created,
	}
}

func (f *Fake) sdkGroup(g *Group) iamtypes.Group {
	created := g.Created
	return iamtypes.Group{
		GroupName:  aws.String(g.Name),
		GroupId:    aws.String(g.ID),
		Path:       aws.String(g.Path),
		Arn:        aws.String(fmt.Sprintf("arn:aws:iam::%s:group%s%s", account, g.Path, g.Name)),
		CreateDate: &created,
	}
}

func attached(arns []string) []iamtypes.AttachedPolicy {
	out := make([]iamtypes.AttachedPolicy, 0, len(arns))
	for _, arn := range arns {
		name := arn[strings.LastIndex(arn, "/")+1:]
		out = append(out, iamtypes.AttachedPolicy{PolicyArn: aws.String(arn), PolicyName: aws.String(name)})
	}
	return out
}

// --- Users ---

func (f *Fake) ListUsers(ctx context.Context, params *awsiam.ListUsersInput, optFns ...func(*awsiam.Options)) (*awsiam.ListUsersOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("ListUsers", ""); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Users))
	for n := range f.Users {
		names = append(names, n)
	}
	sort.Strings(names)
	out := &awsiam.ListUsersOutput{}
	for _, n := range names {
		out.Users = append(out.Users, f.sdkUser(f.Users[n]))
	}
	return out, nil
}

func (f *Fake) GetUser(ctx context.Context, params *awsiam.GetUserInput, optFns ...func(*awsiam.Options)) (*awsiam.GetUserOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.UserName)
	if err := f.check("GetUser", name); err != nil {
		return nil, err
	}
	u, ok := f.Users[name]
	if !ok {
		return nil, notFound("user", name)
	}
	sdk := f.sdkUser(u)
	return &awsiam.GetUserOutput{User: &sdk}, nil
}

func (f *Fake) CreateUser(ctx context.Context, params *awsiam.CreateUserInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateUserOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.UserName)
	if err := f.record("CreateUser", name); err != nil {
		return nil, err
	}
	if _, ok := f.Users[name]; ok {
		return nil, APIError("EntityAlreadyExists")
	}
	path := aws.ToString(params.Path)
	if path == "" {
		path = "/"
	}
	u := &User{Name: name, ID: "AIDA" + strings.ToUpper(name), Path: path, Created: f.tick(), Groups: map[string]bool{}, Tags: map[string]string{}}
	for _, t := range params.Tags {
		u.Tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	f.Users[name] = u
	sdk := f.sdkUser(u)
	return &awsiam.CreateUserOutput{User: &sdk}, nil
}

func (f *Fake) UpdateUser(ctx context.Context, params *awsiam.UpdateUserInput, optFns ...func(*awsiam.Options)) (*awsiam.UpdateUserOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.UserName)
	if err := f.record("UpdateUser", name); err != nil {
		return nil, err
	}
	u, ok := f.Users[name]
	if !ok {
		return nil, notFound("user", name)
	}
	if params.NewPath != nil {
		u.Path = *params.NewPath
	}
	return &awsiam.UpdateUserOutput{}, nil
}

func (f *Fake) DeleteUser(ctx context.Context, params *awsiam.DeleteUserInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteUserOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.UserName)
	if err := f.record("DeleteUser", name); err != nil {
		return nil, err
	}
	u, ok := f.Users[name]
	if !ok {
		return nil, notFound("user", name)
	}
	if len(u.Keys) > 0 || u.Login != nil || len(u.Groups) > 0 || len(u.Policies) > 0 {
		return nil, APIError("DeleteConflict")
	}
	delete(f.Users, name)
	return &awsiam.DeleteUserOutput{}, nil
}

// --- Groups ---

func (f *Fake) ListGroups(ctx context.Context, params *awsiam.ListGroupsInput, optFns ...func(*awsiam.Options)) (*awsiam.ListGroupsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("ListGroups", ""); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Groups))
	for n := range f.Groups {
		names = append(names, n)
	}
	sort.Strings(names)
	out := &awsiam.ListGroupsOutput{}
	for _, n := range names {
		out.Groups = append(out.Groups, f.sdkGroup(f.Groups[n]))
	}
	return out, nil
}

func (f *Fake) GetGroup(ctx context.Context, params *awsiam.GetGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.GetGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.GroupName)
	if err := f.check("GetGroup", name); err != nil {
		return nil, err
	}
	g, ok := f.Groups[name]
	if !ok {
		return nil, notFound("group", name)
	}
	sdk := f.sdkGroup(g)
	out := &awsiam.GetGroupOutput{Group: &sdk}
	for _, un := range f.memberNames(name) {
		out.Users = append(out.Users, f.sdkUser(f.Users[un]))
	}
	return out, nil
}

func (f *Fake) memberNames(group string) []string {
	var names []string
	for n, u := range f.Users {
		if u.Groups[group] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func (f *Fake) CreateGroup(ctx context.Context, params *awsiam.CreateGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.GroupName)
	if err := f.record("CreateGroup", name); err != nil {
		return nil, err
	}
	if _, ok := f.Groups[name]; ok {
		return nil, APIError("EntityAlreadyExists")
	}
	path := aws.ToString(params.Path)
	if path == "" {
		path = "/"
	}
	g := &Group{Name: name, ID: "AGPA" + strings.ToUpper(name), Path: path, Created: f.tick(), Inline: map[string]string{}}
	f.Groups[name] = g
	sdk := f.sdkGroup(g)
	return &awsiam.CreateGroupOutput{Group: &sdk}, nil
}

func (f *Fake) UpdateGroup(ctx context.Context, params *awsiam.UpdateGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.UpdateGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.GroupName)
	if err := f.record("UpdateGroup", name); err != nil {
		return nil, err
	}
	g, ok := f.Groups[name]
	if !ok {
		return nil, notFound("group", name)
	}
	if params.NewPath != nil {
		g.Path = *params.NewPath
	}
	return &awsiam.UpdateGroupOutput{}, nil
}

func (f *Fake) DeleteGroup(ctx context.Context, params *awsiam.DeleteGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.GroupName)
	if err := f.record("DeleteGroup", name); err != nil {
		return nil, err
	}
	g, ok := f.Groups[name]
	if !ok {
		return nil, notFound("group", name)
	}
	if len(g.Inline) > 0 || len(g.Attached) > 0 || len(f.memberNames(name)) > 0 {
		return nil, APIError("DeleteConflict")
	}
	delete(f.Groups, name)
	return &awsiam.DeleteGroupOutput{}, nil
}

// --- Group policies ---

func (f *Fake) PutGroupPolicy(ctx context.Context, params *awsiam.PutGroupPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.PutGroupPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	group, policy := aws.ToString(params.GroupName), aws.ToString(params.PolicyName)
	if err := f.record("PutGroupPolicy", group+"/"+policy); err != nil {
		return nil, err
	}
	g, ok := f.Groups[group]
	if !ok {
		return nil, notFound("group", group)
	}
	g.Inline[policy] = aws.ToString(params.PolicyDocument)
	return &awsiam.PutGroupPolicyOutput{}, nil
}

func (f *Fake) GetGroupPolicy(ctx context.Context, params *awsiam.GetGroupPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.GetGroupPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	group, policy := aws.ToString(params.GroupName), aws.ToString(params.PolicyName)
	if err := f.check("GetGroupPolicy", group+"/"+policy); err != nil {
		return nil, err
	}
	g, ok := f.Groups[group]
	if !ok {
		return nil, notFound("group", group)
	}
	doc, ok := g.Inline[policy]
	if !ok {
		return nil, notFound("policy", policy)
	}
	return &awsiam.GetGroupPolicyOutput{
		GroupName:      aws.String(group),
		PolicyName:     aws.String(policy),
		PolicyDocument: aws.String(url.QueryEscape(doc)),
	}, nil
}

func (f *Fake) DeleteGroupPolicy(ctx context.Context, params *awsiam.DeleteGroupPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteGroupPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	group, policy := aws.ToString(params.GroupName), aws.ToString(params.PolicyName)
	if err := f.record("DeleteGroupPolicy", group+"/"+policy); err != nil {
		return nil, err
	}
	g, ok := f.Groups[group]
	if !ok {
		return nil, notFound("group", group)
	}
	if _, ok := g.Inline[policy]; !ok {
		return nil, notFound("policy", policy)
	}
	delete(g.Inline, policy)
	return &awsiam.DeleteGroupPolicyOutput{}, nil
}

func (f *Fake) ListGroupPolicies(ctx context.Context, params *awsiam.ListGroupPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListGroupPoliciesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	group := aws.ToString(params.GroupName)
	if err := f.check("ListGroupPolicies", group); err != nil {
		return nil, err
	}
	g, ok := f.Groups[group]
	if !ok {
		return nil, notFound("group", group)
	}
	names := make([]string, 0, len(g.Inline))
	for n := range g.Inline {
		names = append(names, n)
	}
	sort.Strings(names)
	return &awsiam.ListGroupPoliciesOutput{PolicyNames: names}, nil
}

func (f *Fake) ListAttachedGroupPolicies(ctx context.Context, params *awsiam.ListAttachedGroupPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedGroupPoliciesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	group := aws.ToString(params.GroupName)
	if err := f.check("ListAttachedGroupPolicies", group); err != nil {
		return nil, err
	}
	g, ok := f.Groups[group]
	if !ok {
		return nil, notFound("group", group)
	}
	return &awsiam.ListAttachedGroupPoliciesOutput{AttachedPolicies: attached(g.Attached)}, nil
}

// --- Membership ---

func (f *Fake) ListGroupsForUser(ctx context.Context, params *awsiam.ListGroupsForUserInput, optFns ...func(*awsiam.Options)) (*awsiam.ListGroupsForUserOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.UserName)
	if err := f.check("ListGroupsForUser", name); err != nil {
		return nil, err
	}
	u, ok := f.Users[name]
	if !ok {
		return nil, notFound("user", name)
	}
	out := &awsiam.ListGroupsForUserOutput{}
	for _, gn := range sortedKeys(u.Groups) {
		if g, ok := f.Groups[gn]; ok {
			out.Groups = append(out.Groups, f.sdkGroup(g))
		} else {
			out.Groups = append(out.Groups, iamtypes.Group{GroupName: aws.String(gn)})
		}
	}
	return out, nil
}

func (f *Fake) AddUserToGroup(ctx context.Context, params *awsiam.AddUserToGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.AddUserToGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, group := aws.ToString(params.UserName), aws.ToString(params.GroupName)
	if err := f.record("AddUserToGroup", user+","+group); err != nil {
		return nil, err
	}
	u, ok := f.Users[user]
	if !ok {
		return nil, notFound("user", user)
	}
	if _, ok := f.Groups[group]; !ok {
		return nil, notFound("group", group)
	}
	u.Groups[group] = true
	return &awsiam.AddUserToGroupOutput{}, nil
}

func (f *Fake) RemoveUserFromGroup(ctx context.Context, params *awsiam.RemoveUserFromGroupInput, optFns ...func(*awsiam.Options)) (*awsiam.RemoveUserFromGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, group := aws.ToString(params.UserName), aws.ToString(params.GroupName)
	if err := f.record("RemoveUserFromGroup", user+","+group); err != nil {
		return nil, err
	}
	u, ok := f.Users[user]
	if !ok {
		return nil, notFound("user", user)
	}
	if !u.Groups[group] {
		return nil, notFound("group", group)
	}
	delete(u.Groups, group)
	return &awsiam.RemoveUserFromGroupOutput{}, nil
}

func (f *Fake) ListAttachedUserPolicies(ctx context.Context, params *awsiam.ListAttachedUserPoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedUserPoliciesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.UserName)
	if err := f.check("ListAttachedUserPolicies", name); err != nil {
		return nil, err
	}
	u, ok := f.Users[name]
	if !ok {
		return nil, notFound("user", name)
	}
	return &awsiam.ListAttachedUserPoliciesOutput{AttachedPolicies: attached(u.Policies)}, nil
}

func (f *Fake) DetachUserPolicy(ctx context.Context, params *awsiam.DetachUserPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.DetachUserPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, arn := aws.ToString(params.UserName), aws.ToString(params.PolicyArn)
	if err := f.record("DetachUserPolicy", name+","+arn); err != nil {
		return nil, err
	}
	u, ok := f.Users[name]
	if !ok {
		return nil, notFound("user", name)
	}
	for i, p := range u.Policies {
		if p == arn {
			u.Policies = append(u.Policies[:i], u.Policies[i+1:]...)
			return &awsiam.DetachUserPolicyOutput{}, nil
		}
	}
	return nil, notFound("policy", arn)
}

// --- Access keys ---

func (f *Fake) ListAccessKeys(ctx context.Context, params *awsiam.ListAccessKeysInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAccessKeysOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.UserName)
	if err := f.check("ListAccessKeys", name); err != nil {
		return nil, err
	}
	u, ok := f.Users[name]
	if !ok {
		return nil, notFound("user", name)
	}
	out := &awsiam.ListAccessKeysOutput{}
	for _, k := range u.Keys {
		created := k.Created
		out.AccessKeyMetadata = append(out.AccessKeyMetadata, iamtypes.AccessKeyMetadata{
			UserName:    aws.String(name),
			AccessKeyId: aws.String(k.ID),
			Status:      iamtypes.StatusType(k.Status),
			CreateDate:  &created,
		})
	}
	return out, nil
}

func (f *Fake) CreateAccessKey(ctx context.Context, params *awsiam.CreateAccessKeyInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateAccessKeyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.UserName)
	if err := f.record("CreateAccessKey", name); err != nil {
		return nil, err
	}
	u, ok := f.Users[name]
	if !ok {
		return nil, notFound("user", name)
	}
	if f.KeyLimit > 0 && len(u.Keys) >= f.KeyLimit {
		return nil, APIError("LimitExceeded")
	}
	k := f.newKey(u)
	return &awsiam.CreateAccessKeyOutput{AccessKey: &iamtypes.AccessKey{
		UserName:        aws.String(name),
		AccessKeyId:     aws.String(k.ID),
		SecretAccessKey: aws.String(k.Secret),
		Status:          iamtypes.StatusTypeActive,
	}}, nil
}

func (f *Fake) DeleteAccessKey(ctx context.Context, params *awsiam.DeleteAccessKeyInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteAccessKeyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, id := aws.ToString(params.UserName), aws.ToString(params.AccessKeyId)
	if err := f.record("DeleteAccessKey", name+","+id); err != nil {
		return nil, err
	}
	u, ok := f.Users[name]
	if !ok {
		return nil, notFound("user", name)
	}
	for i, k := range u.Keys {
		if k.ID == id {
			u.Keys = append(u.Keys[:i], u.Keys[i+1:]...)
			return &awsiam.DeleteAccessKeyOutput{}, nil
		}
	}
	return nil, notFound("access key", id)
}

// --- Login profiles ---

func (f *Fake) GetLoginProfile(ctx context.Context, params *awsiam.GetLoginProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.GetLoginProfileOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.UserName)
	if err := f.check("GetLoginProfile", name); err != nil {
		return nil, err
	}
	u, ok := f.Users[name]
	if !ok {
		return nil, notFound("user", name)
	}
	if u.Login == nil {
		return nil, notFound("login profile", name)
	}
	created := u.Login.Created
	return &awsiam.GetLoginProfileOutput{LoginProfile: &iamtypes.LoginProfile{
		UserName:              aws.String(name),
		CreateDate:            &created,
		PasswordResetRequired: u.Login.ResetRequired,
	}}, nil
}

func (f *Fake) CreateLoginProfile(ctx context.Context, params *awsiam.CreateLoginProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateLoginProfileOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.UserName)
	if err := f.record("CreateLoginProfile", name); err != nil {
		return nil, err
	}
	u, ok := f.Users[name]
	if !ok {
		return nil, notFound("user", name)
	}
	if u.Login != nil {
		return nil, APIError("EntityAlreadyExists")
	}
	u.Login = &Login{
		Password:      aws.ToString(params.Password),
		ResetRequired: params.PasswordResetRequired,
		Created:       f.tick(),
	}
	return &awsiam.CreateLoginProfileOutput{LoginProfile: &iamtypes.LoginProfile{UserName: aws.String(name)}}, nil
}

func (f *Fake) DeleteLoginProfile(ctx context.Context, params *awsiam.DeleteLoginProfileInput, optFns ...func(*awsiam.Options)) (*awsiam.DeleteLoginProfileOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.UserName)
	if err := f.record("DeleteLoginProfile", name); err != nil {
		return nil, err
	}
	u, ok := f.Users[name]
	if !ok {
		return nil, notFound("user", name)
	}
	if u.Login == nil {
		return nil, notFound("login profile", name)
	}
	u.Login = nil
	return &awsiam.DeleteLoginProfileOutput{}, nil
}
