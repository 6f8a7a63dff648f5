package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"tasnim.dev/iamctl/internal/aws/iam"
	"tasnim.dev/iamctl/internal/state"
)

// RefreshReport lists the record changes a refresh made, by URN. Unmanaged
// holds live credentials found on a bound user that have no record. They get
// no record, so a deploy never deletes them.
type RefreshReport struct {
	Stack     string
	Updated   []string
	Removed   []string
	Added     []string
	Unmanaged []string
}

func (r *RefreshReport) Empty() bool {
	return len(r.Updated) == 0 && len(r.Removed) == 0 && len(r.Added) == 0 && len(r.Unmanaged) == 0
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Refresh re-reads live provider state into the stack's records. Desired
// configuration is never modified. Per-resource read failures are collected
// and returned together after the rest of the stack has been refreshed.
func (e *Engine) Refresh(ctx context.Context, stack string) (*RefreshReport, error) {
	if err := validStack(stack); err != nil {
		return nil, err
	}
	snap, err := e.backend.Load(ctx, stack)
	if err != nil {
		return nil, err
	}

	dep := state.Deployment{ID: e.newID(), Stack: stack, Operation: "refresh", StartedAt: e.now()}
	report := &RefreshReport{Stack: stack}

	var errs *multierror.Error
	if stack == state.StackGroups {
		errs = e.refreshGroups(ctx, snap, report)
	} else {
		for _, name := range snap.BoundUsers() {
			if err := e.refreshUser(ctx, snap, name, report); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("refreshing %s: %w", name, err))
			}
		}
	}

	dep.FinishedAt = e.now()
	dep.Changes = len(report.Added) + len(report.Updated) + len(report.Removed)
	dep.Result = state.ResultSucceeded
	if err := errs.ErrorOrNil(); err != nil {
		dep.Result = state.ResultFailed
		dep.Error = err.Error()
	}
	snap.History = append(snap.History, dep)
	if err := e.backend.Save(ctx, snap); err != nil {
		return report, err
	}

	e.log.Info("refresh finished", "stack", stack, "added", len(report.Added),
		"updated", len(report.Updated), "removed", len(report.Removed), "unmanaged", len(report.Unmanaged))
	return report, errs.ErrorOrNil()
}

func (e *Engine) refreshGroups(ctx context.Context, snap *state.Snapshot, report *RefreshReport) *multierror.Error {
	var errs *multierror.Error

	for _, rec := range snap.OfKind(state.KindGroup) {
		g, err := e.iam.GetGroup(ctx, rec.Name)
		if err != nil {
			if errors.Is(err, iam.ErrNotFound) {
				snap.Delete(rec.URN())
				report.Removed = append(report.Removed, rec.URN())
				continue
			}
			errs = multierror.Append(errs, err)
			continue
		}
		if g.Path != rec.Path || g.GroupID != rec.ID {
			rec.Path, rec.ID = g.Path, g.GroupID
			rec.UpdatedAt = e.now()
			snap.Put(rec)
			report.Updated = append(report.Updated, rec.URN())
		}
	}

	for _, rec := range snap.OfKind(state.KindGroupPolicy) {
		doc, err := e.iam.GetGroupPolicy(ctx, rec.Name, rec.ID)
		if err != nil {
			if errors.Is(err, iam.ErrNotFound) {
				snap.Delete(rec.URN())
				report.Removed = append(report.Removed, rec.URN())
				continue
			}
			errs = multierror.Append(errs, err)
			continue
		}
		if doc != rec.Policy {
			rec.Policy = doc
			rec.UpdatedAt = e.now()
			snap.Put(rec)
			report.Updated = append(report.Updated, rec.URN())
		}
	}
	return errs
}

func (e *Engine) refreshUser(ctx context.Context, snap *state.Snapshot, name string, report *RefreshReport) error {
	userURN := state.URN(state.KindUser, name)
	u, err := e.iam.GetUser(ctx, name)
	if err != nil {
		if errors.Is(err, iam.ErrNotFound) {
			for urn := range snap.Resources {
				if owner(snap.Resources[urn]) == name {
					report.Removed = append(report.Removed, urn)
				}
			}
			sort.Strings(report.Removed)
			snap.DropUser(name)
			return nil
		}
		return err
	}

	rec, _ := snap.Get(userURN)
	if rec.Path != u.Path || rec.ID != u.UserID {
		rec.Path, rec.ID = u.Path, u.UserID
		rec.UpdatedAt = e.now()
		snap.Put(rec)
		report.Updated = append(report.Updated, userURN)
	}

	groups, err := e.iam.GroupNamesForUser(ctx, name)
	if err != nil {
		return err
	}
	memberURN := state.URN(state.KindMembership, name)
	member, hasMember := snap.Get(memberURN)
	switch {
	case len(groups) == 0 && hasMember:
		snap.Delete(memberURN)
		report.Removed = append(report.Removed, memberURN)
	case len(groups) > 0 && !hasMember:
		snap.Put(state.Resource{Kind: state.KindMembership, Name: name, Groups: sortedCopy(groups), UpdatedAt: e.now()})
		report.Added = append(report.Added, memberURN)
	case len(groups) > 0 && !SameGroups(member.Groups, groups):
		member.Groups = sortedCopy(groups)
		member.UpdatedAt = e.now()
		snap.Put(member)
		report.Updated = append(report.Updated, memberURN)
	}

	_, hasProfile, err := e.iam.GetLoginProfile(ctx, name)
	if err != nil {
		return err
	}
	loginURN := state.URN(state.KindLoginProfile, name)
	_, hasLogin := snap.Get(loginURN)
	switch {
	case hasProfile && !hasLogin:
		report.Unmanaged = append(report.Unmanaged, loginURN)
	case !hasProfile && hasLogin:
		snap.Delete(loginURN)
		delete(snap.Outputs, state.OutputPassword(name))
		report.Removed = append(report.Removed, loginURN)
	}

	keys, err := e.iam.ListAccessKeys(ctx, name)
	if err != nil {
		return err
	}
	live := map[string]bool{}
	for _, k := range keys {
		live[k.ID] = true
		urn := state.AccessKeyURN(name, k.ID)
		if _, ok := snap.Get(urn); !ok {
			report.Unmanaged = append(report.Unmanaged, urn)
		}
	}
	for _, k := range snap.AccessKeys(name) {
		if !live[k.ID] {
			snap.DropAccessKey(name, k.ID)
			report.Removed = append(report.Removed, k.URN())
		}
	}
	return nil
}

// owner returns the user a users-stack record belongs to.
func owner(r state.Resource) string {
	switch r.Kind {
	case state.KindUser, state.KindMembership, state.KindLoginProfile, state.KindAccessKey:
		return r.Name
	}
	return ""
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
