// Package users stages user lifecycle changes into the users stack after
// validating them against live provider state.
package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"tasnim.dev/iamctl/internal/aws/iam"
	"tasnim.dev/iamctl/internal/engine"
	"tasnim.dev/iamctl/internal/state"
	"tasnim.dev/iamctl/internal/utils"
)

const MaxNameLength = 64

var namePattern = regexp.MustCompile(`^[\w+=,.@-]+$`)

var (
	ErrInvalidName  = errors.New("invalid user name")
	ErrInvalidPath  = errors.New("invalid user path")
	ErrUserExists   = errors.New("user already exists")
	ErrUnknownUser  = errors.New("unknown user")
	ErrUnknownGroup = errors.New("unknown group")
)

type Provider interface {
	ListUsers(ctx context.Context) ([]iam.IAMUser, error)
	GetUser(ctx context.Context, userName string) (iam.IAMUser, error)
	GetGroup(ctx context.Context, groupName string) (iam.IAMGroup, error)
	GroupNamesForUser(ctx context.Context, userName string) ([]string, error)
	ListAccessKeys(ctx context.Context, userName string) ([]iam.IAMAccessKey, error)
	GetLoginProfile(ctx context.Context, userName string) (iam.IAMLoginProfile, bool, error)
}

type Importer interface {
	ImportUser(ctx context.Context, name string) (*engine.ImportedUser, error)
}

type Manager struct {
	iam      Provider
	importer Importer
	backend  state.Backend
	userPath string
	log      hclog.Logger
}

func NewManager(p Provider, importer Importer, backend state.Backend, userPath string, log hclog.Logger) *Manager {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Manager{iam: p, importer: importer, backend: backend, userPath: userPath, log: log.Named("users")}
}

// Staged remembers the configuration a staging call replaced so a declined
// deploy can put it back.
type Staged struct {
	User     string
	Previous *state.UserConfig
}

func (m *Manager) load(ctx context.Context) (*state.Snapshot, error) {
	return m.backend.Load(ctx, state.StackUsers)
}

func (m *Manager) stage(ctx context.Context, snap *state.Snapshot, name string, cfg *state.UserConfig) (Staged, error) {
	st := Staged{User: name}
	if prev, ok := snap.Users[name]; ok {
		p := prev.Clone()
		st.Previous = &p
	}
	if cfg == nil {
		delete(snap.Users, name)
	} else {
		snap.Users[name] = cfg.Clone()
	}
	if err := m.backend.Save(ctx, snap); err != nil {
		return Staged{}, err
	}
	m.log.Debug("staged", "user", name, "delete", cfg == nil)
	return st, nil
}

// Revert restores the configuration a staging call replaced.
func (m *Manager) Revert(ctx context.Context, st Staged) error {
	snap, err := m.load(ctx)
	if err != nil {
		return err
	}
	if st.Previous == nil {
		delete(snap.Users, st.User)
	} else {
		snap.Users[st.User] = st.Previous.Clone()
	}
	return m.backend.Save(ctx, snap)
}

func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, name, MaxNameLength)
	case !namePattern.MatchString(name):
		return fmt.Errorf("%w: %q may only contain letters, digits and +=,.@_-", ErrInvalidName, name)
	}
	return nil
}

// ValidatePath checks an IAM path before it is staged.
func ValidatePath(path string) error {
	if err := utils.CheckPath(path); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	return nil
}

// CheckNewUser validates a name for creation: well formed, not configured
// and not present in the provider.
func (m *Manager) CheckNewUser(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	snap, err := m.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := snap.Users[name]; ok {
		return fmt.Errorf("%w: %s is already configured", ErrUserExists, name)
	}
	_, err = m.iam.GetUser(ctx, name)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s exists in the provider, import it instead", ErrUserExists, name)
	case errors.Is(err, iam.ErrNotFound):
		return nil
	default:
		return err
	}
}

// ValidateGroups checks every group exists live and returns them sorted and
// de-duplicated.
func (m *Manager) ValidateGroups(ctx context.Context, groups []string) ([]string, error) {
	seen := map[string]bool{}
	var missing []string
	for _, g := range groups {
		g = strings.TrimSpace(g)
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		if _, err := m.iam.GetGroup(ctx, g); err != nil {
			if errors.Is(err, iam.ErrNotFound) {
				missing = append(missing, g)
				continue
			}
			return nil, err
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, strings.Join(missing, ", "))
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

type CreateRequest struct {
	Name          string
	Groups        []string
	CreateKey     bool
	ConsoleAccess bool
	Path          string
}

// Create validates and stages a new user.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (Staged, error) {
	if err := m.CheckNewUser(ctx, req.Name); err != nil {
		return Staged{}, err
	}
	path := req.Path
	if path == "" {
		path = m.userPath
	}
	if err := ValidatePath(path); err != nil {
		return Staged{}, err
	}
	groups, err := m.ValidateGroups(ctx, req.Groups)
	if err != nil {
		return Staged{}, err
	}
	snap, err := m.load(ctx)
	if err != nil {
		return Staged{}, err
	}
	return m.stage(ctx, snap, req.Name, &state.UserConfig{
		Groups:        groups,
		CreateKey:     req.CreateKey,
		ConsoleAccess: req.ConsoleAccess,
		Path:          path,
	})
}

// Membership is a user's configured, recorded and live groups.
type Membership struct {
	User       string
	Configured []string
	Recorded   []string
	Live       []string
	Bound      bool
}

// Drift reports whether the live memberships differ from the record.
func (ms Membership) Drift() bool {
	return ms.Bound && !engine.SameGroups(ms.Recorded, ms.Live)
}

// Current is what the provider has now, or the configured groups for a
// user not yet created.
func (ms Membership) Current() []string {
	if ms.Bound {
		return ms.Live
	}
	return ms.Configured
}

func (m *Manager) Membership(ctx context.Context, name string) (Membership, error) {
	snap, err := m.load(ctx)
	if err != nil {
		return Membership{}, err
	}
	cfg, ok := snap.Users[name]
	if !ok {
		return Membership{}, fmt.Errorf("%w: %s is not configured", ErrUnknownUser, name)
	}
	ms := Membership{User: name, Configured: cfg.Groups, Bound: snap.Bound(name)}
	if !ms.Bound {
		return ms, nil
	}
	rec, _ := snap.Get(state.URN(state.KindMembership, name))
	ms.Recorded = rec.Groups

	live, err := m.iam.GroupNamesForUser(ctx, name)
	if err != nil {
		if errors.Is(err, iam.ErrNotFound) {
			return Membership{}, fmt.Errorf("%w: %s no longer exists in the provider, run refresh", ErrUnknownUser, name)
		}
		return Membership{}, err
	}
	sort.Strings(live)
	ms.Live = live
	return ms, nil
}

type EditResult struct {
	Staged
	Current []string
	Add     []string
	Remove  []string
	Drift   bool
}

// Edit stages a new group set. When live memberships have drifted from the
// record the edit is refused unless adoptLive is set, in which case the
// record is updated to live first so the delta is computed against it.
func (m *Manager) Edit(ctx context.Context, name string, desired []string, adoptLive bool) (EditResult, error) {
	ms, err := m.Membership(ctx, name)
	if err != nil {
		return EditResult{}, err
	}
	res := EditResult{Current: ms.Current(), Drift: ms.Drift()}
	if res.Drift && !adoptLive {
		return res, fmt.Errorf("%w: %s is in %v live but recorded in %v", engine.ErrDrift, name, ms.Live, ms.Recorded)
	}

	groups, err := m.ValidateGroups(ctx, desired)
	if err != nil {
		return res, err
	}
	res.Add, res.Remove = engine.GroupDelta(res.Current, groups)

	snap, err := m.load(ctx)
	if err != nil {
		return res, err
	}
	if res.Drift {
		urn := state.URN(state.KindMembership, name)
		if len(ms.Live) == 0 {
			snap.Delete(urn)
		} else {
			snap.Put(state.Resource{Kind: state.KindMembership, Name: name, Groups: ms.Live, UpdatedAt: time.Now()})
		}
		m.log.Info("adopted live memberships", "user", name, "groups", ms.Live)
	}
	cfg := snap.Users[name].Clone()
	cfg.Groups = groups
	res.Staged, err = m.stage(ctx, snap, name, &cfg)
	return res, err
}

// Delete stages removal of a configured user. The caller confirms before
// deploying.
func (m *Manager) Delete(ctx context.Context, name string) (Staged, error) {
	snap, err := m.load(ctx)
	if err != nil {
		return Staged{}, err
	}
	if _, ok := snap.Users[name]; !ok {
		return Staged{}, fmt.Errorf("%w: %s is not configured", ErrUnknownUser, name)
	}
	return m.stage(ctx, snap, name, nil)
}

// Import binds an existing provider user to state.
func (m *Manager) Import(ctx context.Context, name string) (*engine.ImportedUser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	imported, err := m.importer.ImportUser(ctx, name)
	if errors.Is(err, iam.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s does not exist in the provider", ErrUnknownUser, name)
	}
	return imported, err
}

type SyncReport struct {
	Imported     []string
	AlreadyBound []string
	Failed       []string
}

// Sync imports every provider user not yet bound. Failures are collected and
// do not stop the sweep.
func (m *Manager) Sync(ctx context.Context) (*SyncReport, error) {
	live, err := m.iam.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{}
	var errs *multierror.Error
	for _, u := range live {
		if snap.Bound(u.Name) {
			report.AlreadyBound = append(report.AlreadyBound, u.Name)
			continue
		}
		if _, err := m.importer.ImportUser(ctx, u.Name); err != nil {
			if errors.Is(err, engine.ErrAlreadyBound) {
				report.AlreadyBound = append(report.AlreadyBound, u.Name)
				continue
			}
			report.Failed = append(report.Failed, u.Name)
			errs = multierror.Append(errs, fmt.Errorf("importing %s: %w", u.Name, err))
			continue
		}
		report.Imported = append(report.Imported, u.Name)
	}
	m.log.Info("sync finished", "imported", len(report.Imported),
		"already_bound", len(report.AlreadyBound), "failed", len(report.Failed))
	return report, errs.ErrorOrNil()
}
