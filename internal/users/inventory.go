package users

import (
	"context"
	"errors"
	"sort"

	"github.com/hashicorp/go-multierror"

	"tasnim.dev/iamctl/internal/aws/iam"
	"tasnim.dev/iamctl/internal/state"
)

type Status string

const (
	StatusBound   Status = "bound"
	StatusUnbound Status = "unbound"
	StatusPending Status = "pending"
	StatusMissing Status = "missing"
)

// Inventory is one user as seen across config, record and provider.
type Inventory struct {
	Name       string
	Path       string
	Groups     []string
	Keys       []iam.IAMAccessKey
	Console    bool
	Configured bool
	Status     Status
}

// Inspect reads one user's live details.
func (m *Manager) Inspect(ctx context.Context, name string) (Inventory, error) {
	snap, err := m.load(ctx)
	if err != nil {
		return Inventory{}, err
	}
	u, err := m.iam.GetUser(ctx, name)
	if err != nil {
		if errors.Is(err, iam.ErrNotFound) {
			return m.offline(snap, name), nil
		}
		return Inventory{}, err
	}
	return m.inspect(ctx, snap, u)
}

func (m *Manager) offline(snap *state.Snapshot, name string) Inventory {
	inv := Inventory{Name: name, Status: StatusPending}
	if cfg, ok := snap.Users[name]; ok {
		inv.Configured = true
		inv.Path = cfg.Path
		inv.Groups = cfg.Groups
		inv.Console = cfg.ConsoleAccess
	}
	if snap.Bound(name) {
		inv.Status = StatusMissing
	}
	return inv
}

func (m *Manager) inspect(ctx context.Context, snap *state.Snapshot, u iam.IAMUser) (Inventory, error) {
	inv := Inventory{Name: u.Name, Path: u.Path, Status: StatusUnbound}
	_, inv.Configured = snap.Users[u.Name]
	if snap.Bound(u.Name) {
		inv.Status = StatusBound
	}

	groups, err := m.iam.GroupNamesForUser(ctx, u.Name)
	if err != nil {
		return inv, err
	}
	sort.Strings(groups)
	inv.Groups = groups

	if inv.Keys, err = m.iam.ListAccessKeys(ctx, u.Name); err != nil {
		return inv, err
	}
	if _, inv.Console, err = m.iam.GetLoginProfile(ctx, u.Name); err != nil {
		return inv, err
	}
	return inv, nil
}

// List returns every live user plus configured users not yet created,
// sorted by name. Users whose details cannot be read are still listed and
// the failures are returned together.
func (m *Manager) List(ctx context.Context) ([]Inventory, error) {
	snap, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	live, err := m.iam.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	var out []Inventory
	var errs *multierror.Error
	seen := map[string]bool{}
	for _, u := range live {
		seen[u.Name] = true
		inv, err := m.inspect(ctx, snap, u)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		out = append(out, inv)
	}
	for _, name := range snap.UserNames() {
		if !seen[name] {
			out = append(out, m.offline(snap, name))
			seen[name] = true
		}
	}
	for _, name := range snap.BoundUsers() {
		if !seen[name] {
			out = append(out, m.offline(snap, name))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, errs.ErrorOrNil()
}
