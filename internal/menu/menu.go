// Package menu is the numbered interactive front end. Each action walks the
// same phases: input is read, validated against live state, committed
// through the engine and reported.
package menu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/hashicorp/go-hclog"

	awsx "tasnim.dev/iamctl/internal/aws"
	"tasnim.dev/iamctl/internal/credentials"
	"tasnim.dev/iamctl/internal/engine"
	"tasnim.dev/iamctl/internal/groups"
	"tasnim.dev/iamctl/internal/state"
	"tasnim.dev/iamctl/internal/tui/theme"
	"tasnim.dev/iamctl/internal/users"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingInput
	PhaseValidating
	PhaseCommitting
	PhaseReporting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingInput:
		return "awaiting-input"
	case PhaseValidating:
		return "validating"
	case PhaseCommitting:
		return "committing"
	case PhaseReporting:
		return "reporting"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// IdentityFunc returns the principal provider calls run as.
type IdentityFunc func(ctx context.Context) (awsx.Identity, error)

// Deps are the services the menu drives.
type Deps struct {
	Users    *users.Manager
	Groups   *groups.Provisioner
	Engine   *engine.Engine
	Keys     *credentials.Helper
	Gate     *credentials.Gate
	Identity IdentityFunc
	Profile  string
}

type Menu struct {
	*Asker
	deps  Deps
	out   io.Writer
	log   hclog.Logger
	phase Phase
}

func New(deps Deps, in Prompter, out io.Writer, log hclog.Logger) *Menu {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Menu{Asker: NewAsker(in, out), deps: deps, out: out, log: log.Named("menu")}
}

type action struct {
	label string
	run   func(*Menu, context.Context) error
}

// Menu numbers reused by the command line.
const (
	ChoiceFixKeys = 7
)

var actions = []action{
	{"Create user", (*Menu).createUser},
	{"Edit user groups", (*Menu).editUser},
	{"Delete user", (*Menu).deleteUser},
	{"Import existing user", (*Menu).importUser},
	{"Sync all users from the provider", (*Menu).syncUsers},
	{"Show user credentials", (*Menu).showCredentials},
	{"Fix access key issues", (*Menu).fixKeys},
	{"Import groups from the provider", (*Menu).importGroups},
	{"View groups", (*Menu).viewGroups},
	{"Provision groups from the role catalog", (*Menu).provisionGroups},
	{"Refresh state", (*Menu).refresh},
	{"Deploy pending changes", (*Menu).deploy},
	{"Verify credentials", (*Menu).verify},
}

// Phase returns the current phase.
func (m *Menu) Phase() Phase { return m.phase }

func (m *Menu) enter(p Phase) {
	if p == m.phase {
		return
	}
	m.log.Debug("phase", "from", m.phase, "to", p)
	m.phase = p
}

func (m *Menu) printf(format string, args ...any) {
	lipgloss.Fprintf(m.out, format, args...)
}

func (m *Menu) println(args ...any) {
	lipgloss.Fprintln(m.out, args...)
}

func (m *Menu) header(title string) {
	m.println(theme.HeaderStyle.Render(theme.TitleStyle.Render(title)))
}

func (m *Menu) printMenu() {
	m.println()
	m.header("IAM user and group management")
	for i, a := range actions {
		m.printf("  %2d. %s\n", i+1, a.label)
	}
	m.printf("  %2d. %s\n\n", 0, "Exit")
}

// Run shows the menu until the operator exits or input ends.
func (m *Menu) Run(ctx context.Context) error {
	for {
		m.enter(PhaseIdle)
		if err := ctx.Err(); err != nil {
			return err
		}
		m.printMenu()
		m.enter(PhaseAwaitingInput)
		choice, err := m.Number("Select an option", 0, len(actions))
		if errors.Is(err, ErrCancelled) || (err == nil && choice == 0) {
			m.enter(PhaseIdle)
			m.println("Goodbye.")
			return nil
		}
		if err != nil {
			return err
		}
		if err := m.Dispatch(ctx, choice); err != nil {
			m.report(err)
		}
	}
}

// Dispatch runs one numbered action.
func (m *Menu) Dispatch(ctx context.Context, choice int) error {
	if choice < 1 || choice > len(actions) {
		return fmt.Errorf("no menu option %d", choice)
	}
	a := actions[choice-1]
	m.println()
	m.header(a.label)
	m.log.Debug("action", "choice", choice, "label", a.label)
	defer m.enter(PhaseIdle)
	return a.run(m, ctx)
}

func (m *Menu) report(err error) {
	m.enter(PhaseReporting)
	if errors.Is(err, ErrCancelled) {
		m.println("Operation cancelled.")
		return
	}
	m.println(theme.ErrorStyle.Render("Error: ") + hint(err))
}

func hint(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, engine.ErrDrift):
		return msg + "\n  Run 'Refresh state' or import the resource to reconcile."
	case errors.Is(err, engine.ErrCredentialsRemain):
		return msg + "\n  Remove the remaining keys ('Fix access key issues') and deploy again."
	case errors.Is(err, credentials.ErrKeyLimit):
		return msg + "\n  Delete an access key before issuing a new one."
	}
	return strings.TrimSpace(msg)
}

// confirmPlan previews the plan and asks before applying.
func (m *Menu) confirmPlan(plan *engine.Plan) (bool, error) {
	m.println(RenderPlan(plan))
	return m.YesNo("Apply these changes", true)
}

// OtherUsersWarning is shown when a deploy for one user also carries
// pending changes for others.
func OtherUsersWarning(user string, others []string) string {
	return theme.WarningStyle.Render(fmt.Sprintf("This deploy also applies pending changes for users other than %s: %s",
		user, strings.Join(others, ", ")))
}

// deployStaged deploys the users stack after a staging call and puts the
// previous configuration back when the operator declines.
func (m *Menu) deployStaged(ctx context.Context, st users.Staged) error {
	m.enter(PhaseCommitting)
	res, err := m.deps.Engine.Deploy(ctx, state.StackUsers, func(plan *engine.Plan) (bool, error) {
		if others := plan.OtherUsers(st.User); len(others) > 0 {
			m.println(OtherUsersWarning(st.User, others))
		}
		return m.confirmPlan(plan)
	})
	if errors.Is(err, engine.ErrDeclined) || errors.Is(err, ErrCancelled) {
		if rerr := m.deps.Users.Revert(ctx, st); rerr != nil {
			return fmt.Errorf("reverting staged change for %s: %w", st.User, rerr)
		}
		m.enter(PhaseReporting)
		m.println("Cancelled. The staged change was discarded.")
		return nil
	}
	m.enter(PhaseReporting)
	if res != nil {
		m.printf("%s", RenderResult(res))
	} else if err == nil {
		m.println(theme.MutedStyle.Render("No changes to deploy."))
	}
	return err
}
