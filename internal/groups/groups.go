// Package groups provisions the role catalog as provider groups and reports
// how the catalog, the groups stack and the live account line up.
package groups

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"charm.land/lipgloss/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"tasnim.dev/iamctl/internal/aws/iam"
	"tasnim.dev/iamctl/internal/catalog"
	"tasnim.dev/iamctl/internal/engine"
	"tasnim.dev/iamctl/internal/state"
	"tasnim.dev/iamctl/internal/utils"
)

type Provider interface {
	ListGroups(ctx context.Context) ([]iam.IAMGroup, error)
	ListAttachedGroupPolicies(ctx context.Context, groupName string) ([]iam.IAMAttachedPolicy, error)
	ListGroupPolicies(ctx context.Context, groupName string) ([]string, error)
}

// Deployer is the part of the engine the provisioner drives.
type Deployer interface {
	Plan(ctx context.Context, stack string) (*engine.Plan, error)
	Deploy(ctx context.Context, stack string, confirm engine.ConfirmFunc) (*engine.Result, error)
	ImportGroup(ctx context.Context, name string) error
}

type Provisioner struct {
	iam     Provider
	eng     Deployer
	backend state.Backend
	catalog *catalog.Catalog
	log     hclog.Logger
}

func NewProvisioner(p Provider, eng Deployer, backend state.Backend, cat *catalog.Catalog, log hclog.Logger) *Provisioner {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Provisioner{iam: p, eng: eng, backend: backend, catalog: cat, log: log.Named("groups")}
}

// Preview returns the changes provisioning would make without calling the
// provider.
func (p *Provisioner) Preview(ctx context.Context) (*engine.Plan, error) {
	return p.eng.Plan(ctx, state.StackGroups)
}

// Provision brings the provider in line with the catalog. A nil result with
// a nil error means nothing needed to change.
func (p *Provisioner) Provision(ctx context.Context, confirm engine.ConfirmFunc) (*engine.Result, error) {
	res, err := p.eng.Deploy(ctx, state.StackGroups, confirm)
	if res != nil {
		p.log.Info("provisioned groups", "applied", len(res.Applied), "result", res.Deployment.Result)
	}
	return res, err
}

// Row is one group in the side-by-side view of catalog and account.
type Row struct {
	Name        string
	Path        string
	Permissions []string
	InCatalog   bool
	Live        bool
	Bound       bool
}

// View lists catalog entries and live groups together, catalog order first
// and then remaining live groups by name.
func (p *Provisioner) View(ctx context.Context) ([]Row, error) {
	live, err := p.iam.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := p.backend.Load(ctx, state.StackGroups)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]iam.IAMGroup, len(live))
	for _, g := range live {
		byName[g.Name] = g
	}
	bound := func(name string) bool {
		_, ok := snap.Get(state.URN(state.KindGroup, name))
		return ok
	}

	var rows []Row
	for _, e := range p.catalog.Entries() {
		row := Row{Name: e.Name, Path: p.catalog.Path(), Permissions: e.Permissions, InCatalog: true, Bound: bound(e.Name)}
		if g, ok := byName[e.Name]; ok {
			row.Live = true
			row.Path = g.Path
			delete(byName, e.Name)
		}
		rows = append(rows, row)
	}

	rest := make([]string, 0, len(byName))
	for name := range byName {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	for _, name := range rest {
		rows = append(rows, Row{Name: name, Path: byName[name].Path, Live: true, Bound: bound(name)})
	}
	return rows, nil
}

// Discovered is a live group with its policies.
type Discovered struct {
	Name            string
	Path            string
	ARN             string
	AWSManaged      []string
	CustomerManaged []string
	Inline          []string
	InCatalog       bool
	Bound           bool
}

// Discover reads every live group and its policies. Groups whose policies
// cannot be read are still returned and the failures are reported together.
func (p *Provisioner) Discover(ctx context.Context) ([]Discovered, error) {
	live, err := p.iam.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := p.backend.Load(ctx, state.StackGroups)
	if err != nil {
		return nil, err
	}

	out := make([]Discovered, 0, len(live))
	var errs *multierror.Error
	for _, g := range live {
		d := Discovered{Name: g.Name, Path: g.Path, ARN: g.ARN, InCatalog: p.catalog.Has(g.Name)}
		_, d.Bound = snap.Get(state.URN(state.KindGroup, g.Name))

		attached, err := p.iam.ListAttachedGroupPolicies(ctx, g.Name)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		for _, pol := range attached {
			if utils.IsAWSManaged(pol.ARN) {
				d.AWSManaged = append(d.AWSManaged, utils.ShortName(pol.ARN))
			} else {
				d.CustomerManaged = append(d.CustomerManaged, utils.ShortName(pol.ARN))
			}
		}
		if d.Inline, err = p.iam.ListGroupPolicies(ctx, g.Name); err != nil {
			errs = multierror.Append(errs, err)
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	p.log.Debug("discovered groups", "count", len(out))
	return out, errs.ErrorOrNil()
}

type ImportReport struct {
	Imported     []string
	AlreadyBound []string
	NotInCatalog []string
	Failed       []string
}

// Import binds every discovered group named in the catalog to the groups
// stack. Groups outside the catalog are only reported.
func (p *Provisioner) Import(ctx context.Context, discovered []Discovered) (*ImportReport, error) {
	report := &ImportReport{}
	var errs *multierror.Error
	for _, d := range discovered {
		switch {
		case !d.InCatalog:
			report.NotInCatalog = append(report.NotInCatalog, d.Name)
			continue
		case d.Bound:
			report.AlreadyBound = append(report.AlreadyBound, d.Name)
			continue
		}
		err := p.eng.ImportGroup(ctx, d.Name)
		switch {
		case err == nil:
			report.Imported = append(report.Imported, d.Name)
		case errors.Is(err, engine.ErrAlreadyBound):
			report.AlreadyBound = append(report.AlreadyBound, d.Name)
		default:
			report.Failed = append(report.Failed, d.Name)
			errs = multierror.Append(errs, fmt.Errorf("importing group %s: %w", d.Name, err))
		}
	}
	return report, errs.ErrorOrNil()
}

// Summary renders discovered groups as a detail block.
func Summary(discovered []Discovered, heading lipgloss.Style) string {
	db := utils.NewDetailBuilder(18, heading)
	for i, d := range discovered {
		if i > 0 {
			db.Blank()
		}
		db.Section(d.Name)
		db.Row("Path", d.Path)
		db.Row("ARN", d.ARN)
		db.Row("Catalog", yesNo(d.InCatalog))
		db.Row("Bound", yesNo(d.Bound))
		db.Bullets("AWS managed", d.AWSManaged)
		db.Bullets("Customer managed", d.CustomerManaged)
		db.Bullets("Inline", d.Inline)
	}
	return db.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
