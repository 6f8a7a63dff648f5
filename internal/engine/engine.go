// Package engine computes and applies the difference between desired and
// recorded IAM state for the groups and users stacks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"tasnim.dev/iamctl/internal/aws/iam"
	"tasnim.dev/iamctl/internal/catalog"
	"tasnim.dev/iamctl/internal/credentials"
	"tasnim.dev/iamctl/internal/state"
)

var (
	// ErrDrift means the provider holds something the record does not.
	// Only an explicit refresh or import resolves it.
	ErrDrift = errors.New("state drift")
	// ErrCredentialsRemain aborts a user delete when a key could not be removed.
	ErrCredentialsRemain = errors.New("credentials remain")
	ErrDeclined          = errors.New("deployment declined")
	ErrUnknownStack      = errors.New("unknown stack")
)

// Provider is the IAM surface the engine drives.
type Provider interface {
	GetUser(ctx context.Context, userName string) (iam.IAMUser, error)
	CreateUser(ctx context.Context, userName, path string, tags map[string]string) (iam.IAMUser, error)
	UpdateUserPath(ctx context.Context, userName, path string) error
	DeleteUser(ctx context.Context, userName string) error

	GetGroup(ctx context.Context, groupName string) (iam.IAMGroup, error)
	CreateGroup(ctx context.Context, groupName, path string) (iam.IAMGroup, error)
	UpdateGroupPath(ctx context.Context, groupName, path string) error
	DeleteGroup(ctx context.Context, groupName string) error
	PutGroupPolicy(ctx context.Context, groupName, policyName, document string) error
	GetGroupPolicy(ctx context.Context, groupName, policyName string) (string, error)
	DeleteGroupPolicy(ctx context.Context, groupName, policyName string) error

	GroupNamesForUser(ctx context.Context, userName string) ([]string, error)
	AddUserToGroup(ctx context.Context, userName, groupName string) error
	RemoveUserFromGroup(ctx context.Context, userName, groupName string) error
	ListAttachedUserPolicies(ctx context.Context, userName string) ([]iam.IAMAttachedPolicy, error)
	DetachUserPolicy(ctx context.Context, userName, policyARN string) error

	ListAccessKeys(ctx context.Context, userName string) ([]iam.IAMAccessKey, error)
	DeleteAccessKey(ctx context.Context, userName, keyID string) error

	GetLoginProfile(ctx context.Context, userName string) (iam.IAMLoginProfile, bool, error)
	CreateLoginProfile(ctx context.Context, userName, password string, resetRequired bool) error
	DeleteLoginProfile(ctx context.Context, userName string) error
}

// KeyIssuer creates an access key, possibly rotating out an old one first.
// It returns the new key and the IDs of keys it deleted.
type KeyIssuer interface {
	Issue(ctx context.Context, userName string) (iam.IAMIssuedKey, []string, error)
}

type Engine struct {
	iam     Provider
	keys    KeyIssuer
	backend state.Backend
	catalog *catalog.Catalog
	log     hclog.Logger

	now      func() time.Time
	newID    func() string
	password func() (string, error)
}

func New(p Provider, keys KeyIssuer, backend state.Backend, cat *catalog.Catalog, log hclog.Logger) *Engine {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Engine{
		iam:      p,
		keys:     keys,
		backend:  backend,
		catalog:  cat,
		log:      log.Named("engine"),
		now:      time.Now,
		newID:    uuid.NewString,
		password: credentials.GeneratePassword,
	}
}

func (e *Engine) Backend() state.Backend   { return e.backend }
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

func validStack(stack string) error {
	switch stack {
	case state.StackGroups, state.StackUsers:
		return nil
	}
	return fmt.Errorf("%w %q", ErrUnknownStack, stack)
}

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is one step of a plan.
type Change struct {
	Op   Op
	Kind state.Kind
	Name string
	URN  string

	Path       string
	Add        []string
	Remove     []string
	KeyID      string
	PolicyName string
	Policy     string
}

func (c Change) String() string {
	var b strings.Builder
	b.WriteString(string(c.Op))
	b.WriteString(" ")
	b.WriteString(c.URN)
	switch {
	case c.Kind == state.KindMembership:
		for _, g := range c.Add {
			b.WriteString(" +" + g)
		}
		for _, g := range c.Remove {
			b.WriteString(" -" + g)
		}
	case c.Path != "" && c.Op != OpDelete:
		b.WriteString(" path=" + c.Path)
	}
	return b.String()
}

type Plan struct {
	Stack   string
	Changes []Change
	snap    *state.Snapshot
}

func (p *Plan) Empty() bool { return len(p.Changes) == 0 }

// Counts returns the number of changes per operation.
func (p *Plan) Counts() map[Op]int {
	counts := map[Op]int{}
	for _, c := range p.Changes {
		counts[c.Op]++
	}
	return counts
}

// OtherUsers returns, sorted, the users other than user that the plan changes.
func (p *Plan) OtherUsers(user string) []string {
	seen := map[string]bool{}
	for _, c := range p.Changes {
		switch c.Kind {
		case state.KindUser, state.KindMembership, state.KindLoginProfile, state.KindAccessKey:
			if c.Name != user {
				seen[c.Name] = true
			}
		}
	}
	return sortedSet(seen)
}

// GroupDelta returns desired minus current as adds and current minus desired
// as removes, both sorted.
func GroupDelta(current, desired []string) (add, remove []string) {
	cur := make(map[string]bool, len(current))
	for _, g := range current {
		cur[g] = true
	}
	want := make(map[string]bool, len(desired))
	for _, g := range desired {
		want[g] = true
		if !cur[g] {
			add = append(add, g)
		}
	}
	for _, g := range current {
		if !want[g] {
			remove = append(remove, g)
		}
	}
	sort.Strings(add)
	sort.Strings(remove)
	add = dedupe(add)
	remove = dedupe(remove)
	return add, remove
}

func dedupe(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, s := range sorted[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

// SameGroups reports whether two membership lists hold the same set.
func SameGroups(a, b []string) bool {
	add, remove := GroupDelta(a, b)
	return len(add) == 0 && len(remove) == 0
}

// Plan loads the stack and computes the changes needed to reach its desired
// state. It makes no provider calls.
func (e *Engine) Plan(ctx context.Context, stack string) (*Plan, error) {
	if err := validStack(stack); err != nil {
		return nil, err
	}
	snap, err := e.backend.Load(ctx, stack)
	if err != nil {
		return nil, err
	}

	p := &Plan{Stack: stack, snap: snap}
	if stack == state.StackGroups {
		p.Changes = e.planGroups(snap)
	} else {
		p.Changes = planUsers(snap)
	}
	e.log.Debug("planned", "stack", stack, "changes", len(p.Changes))
	return p, nil
}

func (e *Engine) planGroups(snap *state.Snapshot) []Change {
	var changes []Change
	path := e.catalog.Path()

	for _, entry := range e.catalog.Entries() {
		groupURN := state.URN(state.KindGroup, entry.Name)
		policyURN := state.URN(state.KindGroupPolicy, entry.Name)

		rec, ok := snap.Get(groupURN)
		switch {
		case !ok:
			changes = append(changes, Change{Op: OpCreate, Kind: state.KindGroup, Name: entry.Name, URN: groupURN, Path: path})
		case rec.Path != path:
			changes = append(changes, Change{Op: OpUpdate, Kind: state.KindGroup, Name: entry.Name, URN: groupURN, Path: path})
		}

		doc := entry.PolicyDocument()
		pol, ok := snap.Get(policyURN)
		switch {
		case !ok:
			changes = append(changes, Change{Op: OpCreate, Kind: state.KindGroupPolicy, Name: entry.Name, URN: policyURN,
				PolicyName: entry.PolicyName(), Policy: doc})
		case pol.ID != entry.PolicyName() || catalog.NormalizePolicy(pol.Policy) != catalog.NormalizePolicy(doc):
			changes = append(changes, Change{Op: OpUpdate, Kind: state.KindGroupPolicy, Name: entry.Name, URN: policyURN,
				PolicyName: entry.PolicyName(), Policy: doc})
		}
	}

	for _, rec := range snap.OfKind(state.KindGroup) {
		if e.catalog.Has(rec.Name) {
			continue
		}
		changes = append(changes, Change{Op: OpDelete, Kind: state.KindGroup, Name: rec.Name, URN: rec.URN()})
	}
	return changes
}

func planUsers(snap *state.Snapshot) []Change {
	names := map[string]bool{}
	for n := range snap.Users {
		names[n] = true
	}
	for _, n := range snap.BoundUsers() {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	var changes []Change
	for _, name := range sorted {
		cfg, wanted := snap.Users[name]
		if !wanted {
			changes = append(changes, Change{Op: OpDelete, Kind: state.KindUser, Name: name, URN: state.URN(state.KindUser, name)})
			continue
		}
		changes = append(changes, planUser(snap, name, cfg)...)
	}
	return changes
}

func planUser(snap *state.Snapshot, name string, cfg state.UserConfig) []Change {
	var changes []Change

	userURN := state.URN(state.KindUser, name)
	rec, ok := snap.Get(userURN)
	switch {
	case !ok:
		changes = append(changes, Change{Op: OpCreate, Kind: state.KindUser, Name: name, URN: userURN, Path: cfg.Path})
	case cfg.Path != "" && rec.Path != cfg.Path:
		changes = append(changes, Change{Op: OpUpdate, Kind: state.KindUser, Name: name, URN: userURN, Path: cfg.Path})
	}

	memberURN := state.URN(state.KindMembership, name)
	member, hasMember := snap.Get(memberURN)
	add, remove := GroupDelta(member.Groups, cfg.Groups)
	if len(add) > 0 || len(remove) > 0 {
		op := OpUpdate
		if !hasMember {
			op = OpCreate
		}
		changes = append(changes, Change{Op: op, Kind: state.KindMembership, Name: name, URN: memberURN, Add: add, Remove: remove})
	}

	loginURN := state.URN(state.KindLoginProfile, name)
	_, hasLogin := snap.Get(loginURN)
	switch {
	case cfg.ConsoleAccess && !hasLogin:
		changes = append(changes, Change{Op: OpCreate, Kind: state.KindLoginProfile, Name: name, URN: loginURN})
	case !cfg.ConsoleAccess && hasLogin:
		changes = append(changes, Change{Op: OpDelete, Kind: state.KindLoginProfile, Name: name, URN: loginURN})
	}

	keys := snap.AccessKeys(name)
	switch {
	case cfg.CreateKey && len(keys) == 0:
		changes = append(changes, Change{Op: OpCreate, Kind: state.KindAccessKey, Name: name, URN: string(state.KindAccessKey) + ":" + name})
	case !cfg.CreateKey:
		for _, k := range keys {
			changes = append(changes, Change{Op: OpDelete, Kind: state.KindAccessKey, Name: name, URN: k.URN(), KeyID: k.ID})
		}
	}
	return changes
}
