// Package state persists the declarative record of what iamctl manages:
// desired user configuration, resource records, outputs and deploy history,
// one snapshot per stack.
package state

import (
	"context"
	"sort"
	"strings"
	"time"
)

const (
	StackGroups = "groups"
	StackUsers  = "users"
)

type Kind string

const (
	KindGroup        Kind = "group"
	KindGroupPolicy  Kind = "group-policy"
	KindUser         Kind = "user"
	KindMembership   Kind = "membership"
	KindAccessKey    Kind = "access-key"
	KindLoginProfile Kind = "login-profile"
)

// URN identifies a logical resource within a stack. Access keys are the only
// kind with more than one record per name.
func URN(kind Kind, name string) string {
	return string(kind) + ":" + name
}

func AccessKeyURN(user, keyID string) string {
	return string(KindAccessKey) + ":" + user + "/" + keyID
}

// Resource is the recorded provider-side view of one logical resource.
type Resource struct {
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	ID        string    `json:"id,omitempty"`
	Path      string    `json:"path,omitempty"`
	Policy    string    `json:"policy,omitempty"`
	Groups    []string  `json:"groups,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r Resource) URN() string {
	if r.Kind == KindAccessKey {
		return AccessKeyURN(r.Name, r.ID)
	}
	return URN(r.Kind, r.Name)
}

// UserConfig is the desired configuration of one user.
type UserConfig struct {
	Groups        []string `json:"groups"`
	CreateKey     bool     `json:"create_key"`
	ConsoleAccess bool     `json:"console_access"`
	Path          string   `json:"path,omitempty"`
}

func (u UserConfig) Clone() UserConfig {
	u.Groups = append([]string(nil), u.Groups...)
	return u
}

type Output struct {
	Value  string `json:"value"`
	Secret bool   `json:"secret,omitempty"`
}

func OutputAccessKeyID(user string) string     { return user + "_accessKeyId" }
func OutputSecretAccessKey(user string) string { return user + "_secretAccessKey" }
func OutputPassword(user string) string        { return user + "_generatedPassword" }

// Deployment is one entry of a stack's history.
type Deployment struct {
	ID         string    `json:"id"`
	Stack      string    `json:"stack"`
	Operation  string    `json:"operation"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Changes    int       `json:"changes"`
	Result     string    `json:"result"`
	Error      string    `json:"error,omitempty"`
}

const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
)

type Snapshot struct {
	Stack     string                `json:"stack"`
	Users     map[string]UserConfig `json:"users"`
	Resources map[string]Resource   `json:"resources"`
	Outputs   map[string]Output     `json:"outputs"`
	History   []Deployment          `json:"history"`
}

func NewSnapshot(stack string) *Snapshot {
	return &Snapshot{
		Stack:     stack,
		Users:     map[string]UserConfig{},
		Resources: map[string]Resource{},
		Outputs:   map[string]Output{},
	}
}

// ensure fills nil maps left by decoding.
func (s *Snapshot) ensure() {
	if s.Users == nil {
		s.Users = map[string]UserConfig{}
	}
	if s.Resources == nil {
		s.Resources = map[string]Resource{}
	}
	if s.Outputs == nil {
		s.Outputs = map[string]Output{}
	}
}

func (s *Snapshot) Clone() *Snapshot {
	c := NewSnapshot(s.Stack)
	for k, v := range s.Users {
		c.Users[k] = v.Clone()
	}
	for k, v := range s.Resources {
		v.Groups = append([]string(nil), v.Groups...)
		c.Resources[k] = v
	}
	for k, v := range s.Outputs {
		c.Outputs[k] = v
	}
	c.History = append([]Deployment(nil), s.History...)
	return c
}

func (s *Snapshot) Get(urn string) (Resource, bool) {
	r, ok := s.Resources[urn]
	return r, ok
}

func (s *Snapshot) Put(r Resource) {
	s.Resources[r.URN()] = r
}

func (s *Snapshot) Delete(urn string) {
	delete(s.Resources, urn)
}

// OfKind returns records of kind sorted by URN.
func (s *Snapshot) OfKind(kind Kind) []Resource {
	var out []Resource
	for _, r := range s.Resources {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URN() < out[j].URN() })
	return out
}

// AccessKeys returns the user's key records, oldest first.
func (s *Snapshot) AccessKeys(user string) []Resource {
	var out []Resource
	prefix := string(KindAccessKey) + ":" + user + "/"
	for urn, r := range s.Resources {
		if strings.HasPrefix(urn, prefix) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Bound reports whether a user record exists.
func (s *Snapshot) Bound(user string) bool {
	_, ok := s.Resources[URN(KindUser, user)]
	return ok
}

// DropUser removes every record and output belonging to user. Desired
// configuration is left alone.
func (s *Snapshot) DropUser(user string) {
	delete(s.Resources, URN(KindUser, user))
	delete(s.Resources, URN(KindMembership, user))
	delete(s.Resources, URN(KindLoginProfile, user))
	for _, k := range s.AccessKeys(user) {
		delete(s.Resources, k.URN())
	}
	delete(s.Outputs, OutputAccessKeyID(user))
	delete(s.Outputs, OutputSecretAccessKey(user))
	delete(s.Outputs, OutputPassword(user))
}

// DropAccessKey removes a key record and the outputs that refer to it.
func (s *Snapshot) DropAccessKey(user, keyID string) {
	delete(s.Resources, AccessKeyURN(user, keyID))
	if out, ok := s.Outputs[OutputAccessKeyID(user)]; ok && out.Value == keyID {
		delete(s.Outputs, OutputAccessKeyID(user))
		delete(s.Outputs, OutputSecretAccessKey(user))
	}
}

func (s *Snapshot) UserNames() []string {
	names := make([]string, 0, len(s.Users))
	for n := range s.Users {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BoundUsers returns names with a user record, sorted.
func (s *Snapshot) BoundUsers() []string {
	var names []string
	for _, r := range s.OfKind(KindUser) {
		names = append(names, r.Name)
	}
	return names
}

// Backend stores one snapshot per stack. Load of an unknown stack returns an
// empty snapshot.
type Backend interface {
	Load(ctx context.Context, stack string) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Stacks(ctx context.Context) ([]string, error)
	Close() error
}
