package menu

import (
	"fmt"
	"io"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"tasnim.dev/iamctl/internal/aws/iam"
	"tasnim.dev/iamctl/internal/credentials"
	"tasnim.dev/iamctl/internal/engine"
	"tasnim.dev/iamctl/internal/groups"
	"tasnim.dev/iamctl/internal/tui/theme"
	"tasnim.dev/iamctl/internal/utils"
)

var opSymbol = map[engine.Op]string{
	engine.OpCreate: "+",
	engine.OpUpdate: "~",
	engine.OpDelete: "-",
}

// RenderPlan renders a plan preview, one colored line per change and a
// summary line.
func RenderPlan(plan *engine.Plan) string {
	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Plan for stack "+plan.Stack) + "\n")
	if plan.Empty() {
		b.WriteString(theme.MutedStyle.Render("  no changes") + "\n")
		return b.String()
	}
	for _, c := range plan.Changes {
		line := fmt.Sprintf("  %s %s", opSymbol[c.Op], c.String())
		b.WriteString(theme.OpStyle(string(c.Op)).Render(line) + "\n")
	}
	counts := plan.Counts()
	fmt.Fprintf(&b, "\n  %d to create, %d to update, %d to delete\n",
		counts[engine.OpCreate], counts[engine.OpUpdate], counts[engine.OpDelete])
	return b.String()
}

// RenderResult summarizes an applied deployment and any credentials it
// issued.
func RenderResult(res *engine.Result) string {
	var b strings.Builder
	d := res.Deployment
	status := theme.SuccessStyle.Render("Deployment " + d.Result)
	if d.Error != "" {
		status = theme.ErrorStyle.Render("Deployment " + d.Result)
	}
	fmt.Fprintf(&b, "%s  %s  %d change(s) in %s\n", status, theme.MutedStyle.Render(d.ID),
		len(res.Applied), d.FinishedAt.Sub(d.StartedAt).Round(time.Millisecond))
	if len(res.Issued) > 0 {
		b.WriteString(RenderIssued(res.Issued))
	}
	return b.String()
}

// RenderIssued shows newly created credentials. They are also kept in the
// stack outputs for later viewing.
func RenderIssued(issued []engine.Issued) string {
	db := utils.NewDetailBuilder(20, theme.SectionStyle)
	db.Blank()
	for _, is := range issued {
		db.Section(is.User)
		if is.KeyID != "" {
			db.Row("Access key ID", is.KeyID)
			db.Row("Secret access key", is.Secret)
		}
		if is.Password != "" {
			db.Row("Console password", is.Password+theme.MutedStyle.Render("  (reset on first login)"))
		}
		if len(is.Rotated) > 0 {
			db.Row("Rotated out", strings.Join(is.Rotated, ", "))
		}
	}
	db.Blank()
	return db.String() + theme.WarningStyle.Render("Store these credentials securely now.") + "\n"
}

// RenderCredentials lists recorded credentials, skipping users with none.
// Secrets and passwords are masked unless reveal is set.
func RenderCredentials(creds []credentials.Credential, reveal bool) string {
	secret := utils.Mask
	if reveal {
		secret = func(s string) string { return s }
	}
	db := utils.NewDetailBuilder(20, theme.SectionStyle)
	shown := 0
	for _, c := range creds {
		if c.Empty() {
			continue
		}
		shown++
		db.Section(c.User)
		db.Row("Access key ID", orDash(c.AccessKeyID))
		db.Row("Secret access key", orDash(secret(c.SecretAccessKey)))
		db.Row("Console password", orDash(secret(c.Password)))
	}
	if shown == 0 {
		return theme.MutedStyle.Render("No recorded credentials.") + "\n"
	}
	return db.String()
}

// RenderGroups renders the catalog and live groups side by side.
func RenderGroups(rows []groups.Row) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(theme.MutedStyle).
		Headers("GROUP", "PATH", "CATALOG", "LIVE", "BOUND", "PERMISSIONS")
	var inCatalog, live, missing int
	for _, r := range rows {
		if r.InCatalog {
			inCatalog++
		}
		if r.Live {
			live++
		}
		if r.Live && !r.Bound {
			missing++
		}
		t.Row(r.Name, r.Path, check(r.InCatalog), check(r.Live), check(r.Bound), utils.ListOrDash(r.Permissions))
	}
	return t.Render() + fmt.Sprintf("\n  %d in catalog, %d live, %d live but not in state\n", inCatalog, live, missing)
}

// RenderKeys lists access keys with a 1-based index.
func RenderKeys(keys []iam.IAMAccessKey) string {
	var b strings.Builder
	now := time.Now()
	for i, k := range keys {
		fmt.Fprintf(&b, "  %d. %s  %s  created %s (%s ago)\n", i+1, k.ID, theme.RenderStatus(k.Status),
			utils.TimeOrDash(k.CreatedAt, utils.DateTime), utils.Age(k.CreatedAt, now))
	}
	return b.String()
}

// NewKeyRotationConfirmer asks before the oldest key is deleted to make
// room for a new one. The default answer is no.
func NewKeyRotationConfirmer(in Prompter, out io.Writer) credentials.ConfirmFunc {
	a := NewAsker(in, out)
	return func(user string, oldest iam.IAMAccessKey, keys []iam.IAMAccessKey) (bool, error) {
		lipgloss.Fprintln(out, theme.WarningStyle.Render(
			fmt.Sprintf("%s already has %d access keys (limit is %d):", user, len(keys), credentials.MaxAccessKeys)))
		lipgloss.Fprint(out, RenderKeys(keys))
		return a.YesNo(fmt.Sprintf("Delete the oldest key %s to make room", oldest.ID), false)
	}
}

func check(b bool) string {
	if b {
		return "✓"
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
