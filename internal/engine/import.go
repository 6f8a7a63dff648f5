package engine

import (
	"context"
	"errors"
	"fmt"

	"tasnim.dev/iamctl/internal/aws/iam"
	"tasnim.dev/iamctl/internal/state"
)

var ErrAlreadyBound = errors.New("already bound in state")

// ImportedUser describes what an import recorded.
type ImportedUser struct {
	Name          string
	Path          string
	Groups        []string
	Keys          []string
	ConsoleAccess bool
}

// ImportUser binds an existing provider user, its memberships, login profile
// and every access key to the users stack without mutating the provider. The
// desired configuration is set to match, so the next deploy is a no-op for
// this user.
func (e *Engine) ImportUser(ctx context.Context, name string) (*ImportedUser, error) {
	snap, err := e.backend.Load(ctx, state.StackUsers)
	if err != nil {
		return nil, err
	}
	if snap.Bound(name) {
		return nil, fmt.Errorf("user %s: %w", name, ErrAlreadyBound)
	}

	u, err := e.iam.GetUser(ctx, name)
	if err != nil {
		return nil, err
	}
	groups, err := e.iam.GroupNamesForUser(ctx, name)
	if err != nil {
		return nil, err
	}
	_, hasProfile, err := e.iam.GetLoginProfile(ctx, name)
	if err != nil {
		return nil, err
	}
	keys, err := e.iam.ListAccessKeys(ctx, name)
	if err != nil {
		return nil, err
	}

	now := e.now()
	out := &ImportedUser{Name: name, Path: u.Path, Groups: sortedCopy(groups), ConsoleAccess: hasProfile}

	snap.Put(state.Resource{Kind: state.KindUser, Name: name, ID: u.UserID, Path: u.Path, UpdatedAt: now})
	if len(groups) > 0 {
		snap.Put(state.Resource{Kind: state.KindMembership, Name: name, Groups: out.Groups, UpdatedAt: now})
	}
	if hasProfile {
		snap.Put(state.Resource{Kind: state.KindLoginProfile, Name: name, UpdatedAt: now})
	}
	for _, k := range keys {
		created := k.CreatedAt
		if created.IsZero() {
			created = now
		}
		snap.Put(state.Resource{Kind: state.KindAccessKey, Name: name, ID: k.ID, UpdatedAt: created})
		out.Keys = append(out.Keys, k.ID)
	}
	snap.Users[name] = state.UserConfig{
		Groups:        out.Groups,
		CreateKey:     len(keys) > 0,
		ConsoleAccess: hasProfile,
		Path:          u.Path,
	}

	snap.History = append(snap.History, state.Deployment{
		ID: e.newID(), Stack: state.StackUsers, Operation: "import",
		StartedAt: now, FinishedAt: e.now(), Changes: 1, Result: state.ResultSucceeded,
	})
	if err := e.backend.Save(ctx, snap); err != nil {
		return nil, err
	}
	e.log.Info("imported user", "user", name, "groups", len(groups), "keys", len(keys))
	return out, nil
}

// ImportGroup binds a live group named in the catalog, and its inline policy
// if present, to the groups stack.
func (e *Engine) ImportGroup(ctx context.Context, name string) error {
	entry, ok := e.catalog.Lookup(name)
	if !ok {
		return fmt.Errorf("group %s is not in the role catalog", name)
	}
	snap, err := e.backend.Load(ctx, state.StackGroups)
	if err != nil {
		return err
	}
	groupURN := state.URN(state.KindGroup, name)
	if _, ok := snap.Get(groupURN); ok {
		return fmt.Errorf("group %s: %w", name, ErrAlreadyBound)
	}

	g, err := e.iam.GetGroup(ctx, name)
	if err != nil {
		return err
	}
	now := e.now()
	snap.Put(state.Resource{Kind: state.KindGroup, Name: name, ID: g.GroupID, Path: g.Path, UpdatedAt: now})

	doc, err := e.iam.GetGroupPolicy(ctx, name, entry.PolicyName())
	switch {
	case err == nil:
		snap.Put(state.Resource{Kind: state.KindGroupPolicy, Name: name, ID: entry.PolicyName(), Policy: doc, UpdatedAt: now})
	case errors.Is(err, iam.ErrNotFound):
	default:
		return err
	}

	snap.History = append(snap.History, state.Deployment{
		ID: e.newID(), Stack: state.StackGroups, Operation: "import",
		StartedAt: now, FinishedAt: e.now(), Changes: 1, Result: state.ResultSucceeded,
	})
	if err := e.backend.Save(ctx, snap); err != nil {
		return err
	}
	e.log.Info("imported group", "group", name)
	return nil
}
