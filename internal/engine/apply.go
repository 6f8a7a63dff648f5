package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"tasnim.dev/iamctl/internal/aws/iam"
	"tasnim.dev/iamctl/internal/state"
)

// Issued is a credential created during a deployment. The values are also
// recorded as stack outputs.
type Issued struct {
	User     string
	KeyID    string
	Secret   string
	Password string
	Rotated  []string
}

type Result struct {
	Deployment state.Deployment
	Applied    []Change
	Issued     []Issued
}

// ConfirmFunc is shown the plan before anything is applied.
type ConfirmFunc func(*Plan) (bool, error)

// Deploy plans the stack, asks for confirmation and applies. An empty plan
// returns a nil result.
func (e *Engine) Deploy(ctx context.Context, stack string, confirm ConfirmFunc) (*Result, error) {
	plan, err := e.Plan(ctx, stack)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return nil, nil
	}
	if confirm != nil {
		ok, err := confirm(plan)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrDeclined
		}
	}
	return e.Apply(ctx, plan)
}

// Apply runs each change in order, checkpointing the snapshot after every
// completed step. The first failure stops the run; steps already applied
// stay recorded.
func (e *Engine) Apply(ctx context.Context, plan *Plan) (*Result, error) {
	snap := plan.snap
	res := &Result{Deployment: state.Deployment{
		ID:        e.newID(),
		Stack:     plan.Stack,
		Operation: "update",
		StartedAt: e.now(),
	}}

	var runErr error
	for _, c := range plan.Changes {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		e.log.Debug("applying", "op", c.Op, "urn", c.URN)

		err := e.step(ctx, snap, c, res)
		if err != nil {
			runErr = fmt.Errorf("%s %s: %w", c.Op, c.URN, err)
			e.log.Error("step failed", "op", c.Op, "urn", c.URN, "error", err)
			break
		}
		res.Applied = append(res.Applied, c)
		if err := e.backend.Save(ctx, snap); err != nil {
			runErr = fmt.Errorf("checkpoint after %s: %w", c.URN, err)
			break
		}
	}

	res.Deployment.FinishedAt = e.now()
	res.Deployment.Changes = len(res.Applied)
	res.Deployment.Result = state.ResultSucceeded
	if runErr != nil {
		res.Deployment.Result = state.ResultFailed
		res.Deployment.Error = runErr.Error()
	}
	snap.History = append(snap.History, res.Deployment)
	if err := e.backend.Save(context.WithoutCancel(ctx), snap); err != nil && runErr == nil {
		runErr = fmt.Errorf("recording deployment: %w", err)
	}

	e.log.Info("deployment finished", "stack", plan.Stack, "id", res.Deployment.ID,
		"applied", len(res.Applied), "result", res.Deployment.Result)
	return res, runErr
}

func (e *Engine) step(ctx context.Context, snap *state.Snapshot, c Change, res *Result) error {
	switch c.Kind {
	case state.KindGroup:
		switch c.Op {
		case OpCreate:
			return e.createGroup(ctx, snap, c)
		case OpUpdate:
			return e.updateGroupPath(ctx, snap, c)
		case OpDelete:
			return e.deleteGroup(ctx, snap, c)
		}
	case state.KindGroupPolicy:
		return e.putGroupPolicy(ctx, snap, c)
	case state.KindUser:
		switch c.Op {
		case OpCreate:
			return e.createUser(ctx, snap, c)
		case OpUpdate:
			return e.updateUserPath(ctx, snap, c)
		case OpDelete:
			return e.deleteUser(ctx, snap, c)
		}
	case state.KindMembership:
		return e.updateMembership(ctx, snap, c)
	case state.KindLoginProfile:
		if c.Op == OpCreate {
			return e.createLogin(ctx, snap, c, res)
		}
		return e.deleteLogin(ctx, snap, c)
	case state.KindAccessKey:
		if c.Op == OpCreate {
			return e.createKey(ctx, snap, c, res)
		}
		return e.deleteKey(ctx, snap, c)
	}
	return fmt.Errorf("unsupported change %s %s", c.Op, c.Kind)
}

// --- groups ---

func (e *Engine) createGroup(ctx context.Context, snap *state.Snapshot, c Change) error {
	g, err := e.iam.CreateGroup(ctx, c.Name, c.Path)
	if err != nil {
		if errors.Is(err, iam.ErrAlreadyExists) {
			return fmt.Errorf("%w: group %s already exists in the provider, import it first: %w", ErrDrift, c.Name, err)
		}
		return err
	}
	snap.Put(state.Resource{Kind: state.KindGroup, Name: c.Name, ID: g.GroupID, Path: c.Path, UpdatedAt: e.now()})
	return nil
}

func (e *Engine) updateGroupPath(ctx context.Context, snap *state.Snapshot, c Change) error {
	if err := e.iam.UpdateGroupPath(ctx, c.Name, c.Path); err != nil {
		return err
	}
	rec, _ := snap.Get(c.URN)
	rec.Kind, rec.Name = state.KindGroup, c.Name
	rec.Path = c.Path
	rec.UpdatedAt = e.now()
	snap.Put(rec)
	return nil
}

func (e *Engine) putGroupPolicy(ctx context.Context, snap *state.Snapshot, c Change) error {
	if err := e.iam.PutGroupPolicy(ctx, c.Name, c.PolicyName, c.Policy); err != nil {
		return err
	}
	snap.Put(state.Resource{Kind: state.KindGroupPolicy, Name: c.Name, ID: c.PolicyName, Policy: c.Policy, UpdatedAt: e.now()})
	return nil
}

func (e *Engine) deleteGroup(ctx context.Context, snap *state.Snapshot, c Change) error {
	policyURN := state.URN(state.KindGroupPolicy, c.Name)
	if pol, ok := snap.Get(policyURN); ok {
		if err := e.iam.DeleteGroupPolicy(ctx, c.Name, pol.ID); err != nil && !errors.Is(err, iam.ErrNotFound) {
			return err
		}
		snap.Delete(policyURN)
	}
	if err := e.iam.DeleteGroup(ctx, c.Name); err != nil && !errors.Is(err, iam.ErrNotFound) {
		return err
	}
	snap.Delete(c.URN)
	return nil
}

// --- users ---

// userTags are the console-filterable tags every created user carries.
func userTags(name, path string, groups []string) map[string]string {
	if path == "" {
		path = "/"
	}
	joined := "None"
	if len(groups) > 0 {
		joined = strings.Join(groups, " ")
	}
	return map[string]string{
		"Name":    name,
		"Path":    path,
		"Created": "iamctl",
		"Groups":  joined,
	}
}

func (e *Engine) createUser(ctx context.Context, snap *state.Snapshot, c Change) error {
	tags := userTags(c.Name, c.Path, snap.Users[c.Name].Groups)
	u, err := e.iam.CreateUser(ctx, c.Name, c.Path, tags)
	if err != nil {
		if errors.Is(err, iam.ErrAlreadyExists) {
			return fmt.Errorf("%w: user %s already exists in the provider, import it instead: %w", ErrDrift, c.Name, err)
		}
		return err
	}
	snap.Put(state.Resource{Kind: state.KindUser, Name: c.Name, ID: u.UserID, Path: u.Path, UpdatedAt: e.now()})
	return nil
}

func (e *Engine) updateUserPath(ctx context.Context, snap *state.Snapshot, c Change) error {
	if err := e.iam.UpdateUserPath(ctx, c.Name, c.Path); err != nil {
		return err
	}
	rec, _ := snap.Get(c.URN)
	rec.Path = c.Path
	rec.UpdatedAt = e.now()
	snap.Put(rec)
	return nil
}

func (e *Engine) updateMembership(ctx context.Context, snap *state.Snapshot, c Change) error {
	rec, ok := snap.Get(c.URN)
	if !ok {
		rec = state.Resource{Kind: state.KindMembership, Name: c.Name}
	}
	groups := map[string]bool{}
	for _, g := range rec.Groups {
		groups[g] = true
	}

	// Record partial progress so a failure part way through is not lost.
	commit := func() {
		rec.Groups = sortedSet(groups)
		rec.UpdatedAt = e.now()
		if len(rec.Groups) == 0 {
			snap.Delete(c.URN)
			return
		}
		snap.Put(rec)
	}

	for _, g := range c.Add {
		if err := e.iam.AddUserToGroup(ctx, c.Name, g); err != nil {
			commit()
			return err
		}
		groups[g] = true
	}
	for _, g := range c.Remove {
		if err := e.iam.RemoveUserFromGroup(ctx, c.Name, g); err != nil && !errors.Is(err, iam.ErrNotFound) {
			commit()
			return err
		}
		delete(groups, g)
	}
	commit()
	return nil
}

func (e *Engine) createLogin(ctx context.Context, snap *state.Snapshot, c Change, res *Result) error {
	pw, err := e.password()
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	if err := e.iam.CreateLoginProfile(ctx, c.Name, pw, true); err != nil {
		if errors.Is(err, iam.ErrAlreadyExists) {
			return fmt.Errorf("%w: %s already has a console login, run refresh to record it: %w", ErrDrift, c.Name, err)
		}
		return err
	}
	snap.Put(state.Resource{Kind: state.KindLoginProfile, Name: c.Name, UpdatedAt: e.now()})
	snap.Outputs[state.OutputPassword(c.Name)] = state.Output{Value: pw, Secret: true}
	res.Issued = append(res.Issued, Issued{User: c.Name, Password: pw})
	return nil
}

func (e *Engine) deleteLogin(ctx context.Context, snap *state.Snapshot, c Change) error {
	if err := e.iam.DeleteLoginProfile(ctx, c.Name); err != nil && !errors.Is(err, iam.ErrNotFound) {
		return err
	}
	snap.Delete(c.URN)
	delete(snap.Outputs, state.OutputPassword(c.Name))
	return nil
}

func (e *Engine) createKey(ctx context.Context, snap *state.Snapshot, c Change, res *Result) error {
	key, rotated, err := e.keys.Issue(ctx, c.Name)
	for _, id := range rotated {
		snap.DropAccessKey(c.Name, id)
	}
	if err != nil {
		return err
	}
	snap.Put(state.Resource{Kind: state.KindAccessKey, Name: c.Name, ID: key.ID, UpdatedAt: e.now()})
	snap.Outputs[state.OutputAccessKeyID(c.Name)] = state.Output{Value: key.ID}
	snap.Outputs[state.OutputSecretAccessKey(c.Name)] = state.Output{Value: key.Secret, Secret: true}
	res.Issued = append(res.Issued, Issued{User: c.Name, KeyID: key.ID, Secret: key.Secret, Rotated: rotated})
	return nil
}

func (e *Engine) deleteKey(ctx context.Context, snap *state.Snapshot, c Change) error {
	if err := e.iam.DeleteAccessKey(ctx, c.Name, c.KeyID); err != nil && !errors.Is(err, iam.ErrNotFound) {
		return err
	}
	snap.DropAccessKey(c.Name, c.KeyID)
	return nil
}

// deleteUser removes everything the provider requires gone before the user
// itself. Live state is read rather than the record, so keys created outside
// iamctl are removed too.
func (e *Engine) deleteUser(ctx context.Context, snap *state.Snapshot, c Change) error {
	keys, err := e.iam.ListAccessKeys(ctx, c.Name)
	if err != nil {
		if errors.Is(err, iam.ErrNotFound) {
			e.log.Warn("user already gone", "user", c.Name)
			snap.DropUser(c.Name)
			return nil
		}
		return err
	}

	var keyErr *multierror.Error
	for _, k := range keys {
		if err := e.iam.DeleteAccessKey(ctx, c.Name, k.ID); err != nil && !errors.Is(err, iam.ErrNotFound) {
			keyErr = multierror.Append(keyErr, err)
			continue
		}
		snap.DropAccessKey(c.Name, k.ID)
	}
	if keyErr != nil {
		return fmt.Errorf("%w for %s, user not deleted: %w", ErrCredentialsRemain, c.Name, keyErr.ErrorOrNil())
	}

	if err := e.iam.DeleteLoginProfile(ctx, c.Name); err != nil && !errors.Is(err, iam.ErrNotFound) {
		return err
	}
	snap.Delete(state.URN(state.KindLoginProfile, c.Name))
	delete(snap.Outputs, state.OutputPassword(c.Name))

	groups, err := e.iam.GroupNamesForUser(ctx, c.Name)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if err := e.iam.RemoveUserFromGroup(ctx, c.Name, g); err != nil && !errors.Is(err, iam.ErrNotFound) {
			return err
		}
	}
	snap.Delete(state.URN(state.KindMembership, c.Name))

	policies, err := e.iam.ListAttachedUserPolicies(ctx, c.Name)
	if err != nil {
		return err
	}
	for _, p := range policies {
		if err := e.iam.DetachUserPolicy(ctx, c.Name, p.ARN); err != nil && !errors.Is(err, iam.ErrNotFound) {
			return err
		}
	}

	if err := e.iam.DeleteUser(ctx, c.Name); err != nil && !errors.Is(err, iam.ErrNotFound) {
		return err
	}
	snap.DropUser(c.Name)
	return nil
}
