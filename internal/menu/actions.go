package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tasnim.dev/iamctl/internal/credentials"
	"tasnim.dev/iamctl/internal/engine"
	"tasnim.dev/iamctl/internal/groups"
	"tasnim.dev/iamctl/internal/state"
	"tasnim.dev/iamctl/internal/tui/theme"
	"tasnim.dev/iamctl/internal/users"
	"tasnim.dev/iamctl/internal/utils"
)

func (m *Menu) liveGroups(ctx context.Context) []string {
	rows, err := m.deps.Groups.View(ctx)
	if err != nil {
		m.log.Warn("listing groups", "error", err)
		return nil
	}
	var names []string
	for _, r := range rows {
		if r.Live {
			names = append(names, r.Name)
		}
	}
	return names
}

func (m *Menu) createUser(ctx context.Context) error {
	m.enter(PhaseAwaitingInput)
	name, err := m.Text("Username")
	if err != nil {
		return err
	}
	m.enter(PhaseValidating)
	if err := m.deps.Users.CheckNewUser(ctx, name); err != nil {
		return err
	}

	m.enter(PhaseAwaitingInput)
	m.printf("Available groups: %s\n", utils.ListOrDash(m.liveGroups(ctx)))
	groupNames, err := m.List("Groups (comma separated)")
	if err != nil {
		return err
	}
	createKey, err := m.YesNo("Create an access key", true)
	if err != nil {
		return err
	}
	console, err := m.YesNo("Enable console access", false)
	if err != nil {
		return err
	}

	m.enter(PhaseValidating)
	st, err := m.deps.Users.Create(ctx, users.CreateRequest{
		Name:          name,
		Groups:        groupNames,
		CreateKey:     createKey,
		ConsoleAccess: console,
	})
	if err != nil {
		return err
	}
	return m.deployStaged(ctx, st)
}

func (m *Menu) editUser(ctx context.Context) error {
	m.enter(PhaseAwaitingInput)
	name, err := m.Text("Username")
	if err != nil {
		return err
	}

	m.enter(PhaseValidating)
	ms, err := m.deps.Users.Membership(ctx, name)
	if err != nil {
		return err
	}
	m.printf("Current groups: %s\n", utils.ListOrDash(ms.Current()))

	adopt := false
	if ms.Drift() {
		m.println(theme.WarningStyle.Render("Live memberships differ from state:"))
		m.printf("  recorded: %s\n  live:     %s\n", utils.ListOrDash(ms.Recorded), utils.ListOrDash(ms.Live))
		m.enter(PhaseAwaitingInput)
		if adopt, err = m.YesNo("Adopt the live memberships before editing", false); err != nil {
			return err
		}
		if !adopt {
			m.println("Edit cancelled. Run 'Refresh state' to reconcile first.")
			return nil
		}
	}

	m.enter(PhaseAwaitingInput)
	m.printf("Available groups: %s\n", utils.ListOrDash(m.liveGroups(ctx)))
	desired, err := m.List("New groups (comma separated)")
	if err != nil {
		return err
	}

	m.enter(PhaseValidating)
	res, err := m.deps.Users.Edit(ctx, name, desired, adopt)
	if err != nil {
		return err
	}
	m.printf("Adding: %s\nRemoving: %s\n", utils.ListOrDash(res.Add), utils.ListOrDash(res.Remove))
	return m.deployStaged(ctx, res.Staged)
}

func (m *Menu) deleteUser(ctx context.Context) error {
	m.enter(PhaseAwaitingInput)
	name, err := m.Text("Username")
	if err != nil {
		return err
	}

	m.enter(PhaseValidating)
	inv, err := m.deps.Users.Inspect(ctx, name)
	if err != nil {
		return err
	}
	if !inv.Configured {
		return fmt.Errorf("%w: %s is not configured, import it first", users.ErrUnknownUser, name)
	}
	m.printf("Groups: %s\nAccess keys: %d\nConsole access: %t\n", utils.ListOrDash(inv.Groups), len(inv.Keys), inv.Console)

	m.println(theme.WarningStyle.Render(fmt.Sprintf("This deletes %s with every access key, login profile and membership.", name)))
	m.enter(PhaseAwaitingInput)
	ok, err := m.YesNo("Are you sure", false)
	if err != nil {
		return err
	}
	if !ok {
		m.println("Delete cancelled.")
		return nil
	}

	st, err := m.deps.Users.Delete(ctx, name)
	if err != nil {
		return err
	}
	return m.deployStaged(ctx, st)
}

func (m *Menu) importUser(ctx context.Context) error {
	m.enter(PhaseAwaitingInput)
	name, err := m.Text("Username to import")
	if err != nil {
		return err
	}
	m.enter(PhaseCommitting)
	imported, err := m.deps.Users.Import(ctx, name)
	if err != nil {
		return err
	}
	m.enter(PhaseReporting)
	m.println(theme.SuccessStyle.Render("Imported " + imported.Name))
	m.printf("  path: %s\n  groups: %s\n  access keys: %s\n  console access: %t\n",
		imported.Path, utils.ListOrDash(imported.Groups), utils.ListOrDash(imported.Keys), imported.ConsoleAccess)
	return nil
}

func (m *Menu) syncUsers(ctx context.Context) error {
	m.enter(PhaseCommitting)
	report, err := m.deps.Users.Sync(ctx)
	if report == nil {
		return err
	}
	m.enter(PhaseReporting)
	m.printf("Newly imported (%d): %s\n", len(report.Imported), utils.ListOrDash(report.Imported))
	m.printf("Already in state (%d): %s\n", len(report.AlreadyBound), utils.ListOrDash(report.AlreadyBound))
	if len(report.Failed) > 0 {
		m.printf("Failed (%d): %s\n", len(report.Failed), utils.ListOrDash(report.Failed))
	}
	return err
}

func (m *Menu) showCredentials(ctx context.Context) error {
	m.enter(PhaseValidating)
	if err := m.deps.Gate.Verify(); err != nil {
		return err
	}
	m.enter(PhaseAwaitingInput)
	name, err := m.Text("Username (blank for all)")
	if err != nil {
		return err
	}
	snap, err := m.deps.Engine.Backend().Load(ctx, state.StackUsers)
	if err != nil {
		return err
	}
	m.enter(PhaseReporting)
	m.printf("%s", RenderCredentials(credentials.Recorded(snap, name), true))
	return nil
}

func (m *Menu) fixKeys(ctx context.Context) error {
	m.printf("The provider allows at most %d access keys per user.\n", credentials.MaxAccessKeys)
	snap, err := m.deps.Engine.Backend().Load(ctx, state.StackUsers)
	if err != nil {
		return err
	}
	m.enter(PhaseValidating)
	holders, err := m.deps.Keys.Scan(ctx, snap)
	if err != nil {
		m.println(theme.WarningStyle.Render("Some users could not be checked: ") + err.Error())
	}
	if len(holders) == 0 {
		m.println(theme.SuccessStyle.Render("No users are at the access key limit."))
		return nil
	}

	m.printf("%d user(s) with %d or more access keys:\n", len(holders), credentials.MaxAccessKeys)
	for i, h := range holders {
		m.printf("  %d. %s - %d keys\n", i+1, h.User, len(h.Keys))
	}
	m.enter(PhaseAwaitingInput)
	ui, err := m.Number(fmt.Sprintf("Select user (1-%d) or 0 to cancel", len(holders)), 0, len(holders))
	if err != nil || ui == 0 {
		return err
	}
	h := holders[ui-1]
	m.printf("%s", RenderKeys(h.Keys))
	ki, err := m.Number(fmt.Sprintf("Select key to delete (1-%d) or 0 to cancel", len(h.Keys)), 0, len(h.Keys))
	if err != nil || ki == 0 {
		return err
	}
	key := h.Keys[ki-1]
	m.println(theme.WarningStyle.Render("This cannot be undone."))
	ok, err := m.YesNo(fmt.Sprintf("Delete access key %s", key.ID), false)
	if err != nil {
		return err
	}
	if !ok {
		m.println("Delete cancelled.")
		return nil
	}

	m.enter(PhaseCommitting)
	if err := m.deps.Keys.Revoke(ctx, m.deps.Engine.Backend(), h.User, key.ID); err != nil {
		return err
	}
	m.enter(PhaseReporting)
	m.println(theme.SuccessStyle.Render(fmt.Sprintf("Deleted access key %s for %s", key.ID, h.User)))
	return nil
}

func (m *Menu) importGroups(ctx context.Context) error {
	m.enter(PhaseValidating)
	found, err := m.deps.Groups.Discover(ctx)
	if err != nil {
		if len(found) == 0 {
			return err
		}
		m.println(theme.WarningStyle.Render("Some policies could not be read: ") + err.Error())
	}
	if len(found) == 0 {
		m.println("No groups found in the provider.")
		return nil
	}
	m.printf("%s", groups.Summary(found, theme.SectionStyle))

	pending := 0
	for _, d := range found {
		if d.InCatalog && !d.Bound {
			pending++
		}
	}
	if pending == 0 {
		m.println(theme.MutedStyle.Render("No catalog groups left to import."))
		return nil
	}

	m.enter(PhaseAwaitingInput)
	ok, err := m.YesNo(fmt.Sprintf("Bind %d catalog group(s) to state", pending), true)
	if err != nil || !ok {
		return err
	}
	m.enter(PhaseCommitting)
	report, err := m.deps.Groups.Import(ctx, found)
	m.enter(PhaseReporting)
	m.printf("Imported: %s\nAlready in state: %s\nNot in catalog: %s\n",
		utils.ListOrDash(report.Imported), utils.ListOrDash(report.AlreadyBound), utils.ListOrDash(report.NotInCatalog))
	return err
}

func (m *Menu) viewGroups(ctx context.Context) error {
	rows, err := m.deps.Groups.View(ctx)
	if err != nil {
		return err
	}
	m.enter(PhaseReporting)
	m.printf("%s", RenderGroups(rows))
	return nil
}

func (m *Menu) provisionGroups(ctx context.Context) error {
	m.printf("Role catalog: %s\n", utils.ListOrDash(m.deps.Engine.Catalog().Names()))
	m.enter(PhaseCommitting)
	res, err := m.deps.Groups.Provision(ctx, m.confirmPlan)
	m.enter(PhaseReporting)
	switch {
	case errors.Is(err, engine.ErrDeclined):
		m.println("Provisioning cancelled.")
		return nil
	case res == nil && err == nil:
		m.println(theme.SuccessStyle.Render("Groups match the role catalog."))
		return nil
	case res != nil:
		m.printf("%s", RenderResult(res))
	}
	return err
}

func (m *Menu) refresh(ctx context.Context) error {
	m.println("This reads every recorded resource from the provider and updates state to match.")
	m.enter(PhaseAwaitingInput)
	ok, err := m.YesNo("Do you want to proceed", true)
	if err != nil || !ok {
		return err
	}

	m.enter(PhaseCommitting)
	var failed []string
	for _, stack := range []string{state.StackGroups, state.StackUsers} {
		report, err := m.deps.Engine.Refresh(ctx, stack)
		if report != nil {
			m.printf("%s\n", RenderRefresh(report))
		}
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", stack, err))
		}
	}
	m.enter(PhaseReporting)
	if len(failed) > 0 {
		return errors.New("refresh incomplete:\n  " + strings.Join(failed, "\n  "))
	}
	m.println(theme.SuccessStyle.Render("State is synchronized with the provider."))
	return nil
}

func (m *Menu) deploy(ctx context.Context) error {
	m.enter(PhaseCommitting)
	res, err := m.deps.Engine.Deploy(ctx, state.StackUsers, m.confirmPlan)
	m.enter(PhaseReporting)
	switch {
	case errors.Is(err, engine.ErrDeclined):
		m.println("Deployment cancelled.")
		return nil
	case res == nil && err == nil:
		m.println(theme.SuccessStyle.Render("No changes to deploy. Everything is up to date."))
		return nil
	case res != nil:
		m.printf("%s", RenderResult(res))
	}
	return err
}

func (m *Menu) verify(ctx context.Context) error {
	m.enter(PhaseValidating)
	id, err := m.deps.Identity(ctx)
	if err != nil {
		return err
	}
	m.enter(PhaseReporting)
	profile := m.deps.Profile
	if profile == "" {
		profile = "default"
	}
	m.printf("Profile:  %s\nAccount:  %s\nIdentity: %s\n", profile, id.Account, id.ARN)
	m.println(theme.SuccessStyle.Render("Credentials verified."))
	return nil
}

// RenderRefresh summarizes what a refresh changed in one stack.
func RenderRefresh(r *engine.RefreshReport) string {
	if r.Empty() {
		return fmt.Sprintf("%s: no drift", r.Stack)
	}
	out := fmt.Sprintf("%s: updated %s; removed %s; added %s", r.Stack,
		utils.ListOrDash(r.Updated), utils.ListOrDash(r.Removed), utils.ListOrDash(r.Added))
	if len(r.Unmanaged) > 0 {
		out += "\n" + theme.WarningStyle.Render("  not managed, left untouched: ") + strings.Join(r.Unmanaged, ", ")
	}
	return out
}
