package groups

import (
	"context"
	"path/filepath"
	"testing"

	"charm.land/lipgloss/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasnim.dev/iamctl/internal/aws/iam"
	"tasnim.dev/iamctl/internal/aws/iam/iamtest"
	"tasnim.dev/iamctl/internal/catalog"
	"tasnim.dev/iamctl/internal/credentials"
	"tasnim.dev/iamctl/internal/engine"
	"tasnim.dev/iamctl/internal/state"
)

func newProvisioner(t *testing.T) (*Provisioner, *iamtest.Fake, state.Backend) {
	t.Helper()
	backend, err := state.OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	fake := iamtest.New()
	client := iam.NewClient(fake)
	cat := catalog.Default()
	eng := engine.New(client, credentials.NewHelper(client, nil, nil), backend, cat, nil)
	return NewProvisioner(client, eng, backend, cat, nil), fake, backend
}

func yes(*engine.Plan) (bool, error) { return true, nil }

func TestProvision_Idempotent(t *testing.T) {
	p, fake, _ := newProvisioner(t)
	ctx := context.Background()

	plan, err := p.Preview(ctx)
	require.NoError(t, err)
	assert.Len(t, plan.Changes, 12)
	assert.Empty(t, fake.Calls)

	res, err := p.Provision(ctx, yes)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, state.ResultSucceeded, res.Deployment.Result)
	assert.Equal(t, 6, fake.Count("CreateGroup"))
	assert.Equal(t, 6, fake.Count("PutGroupPolicy"))

	fake.Reset()
	res, err = p.Provision(ctx, yes)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, fake.Calls)
}

func TestProvision_Declined(t *testing.T) {
	p, fake, _ := newProvisioner(t)

	_, err := p.Provision(context.Background(), func(*engine.Plan) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, engine.ErrDeclined)
	assert.Empty(t, fake.Calls)
}

func TestView(t *testing.T) {
	p, fake, _ := newProvisioner(t)
	ctx := context.Background()
	fake.AddGroup("Admin", "/legacy/")
	fake.AddGroup("Auditors", "/")

	rows, err := p.View(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 7)

	assert.Equal(t, "Beneficiary", rows[0].Name)
	assert.True(t, rows[0].InCatalog)
	assert.False(t, rows[0].Live)
	assert.Equal(t, "/system/", rows[0].Path)

	var admin Row
	for _, r := range rows {
		if r.Name == "Admin" {
			admin = r
		}
	}
	assert.True(t, admin.Live)
	assert.Equal(t, "/legacy/", admin.Path)
	assert.False(t, admin.Bound)

	last := rows[len(rows)-1]
	assert.Equal(t, "Auditors", last.Name)
	assert.False(t, last.InCatalog)
	assert.True(t, last.Live)
}

func TestDiscover_SplitsPolicies(t *testing.T) {
	p, fake, _ := newProvisioner(t)
	fake.AddGroup("Steward", "/system/")
	fake.AttachGroupPolicy("Steward", "arn:aws:iam::aws:policy/ReadOnlyAccess")
	fake.AttachGroupPolicy("Steward", "arn:aws:iam::123456789012:policy/team/Billing")
	fake.PutInline("Steward", "Steward-policy", `{"Version":"2012-10-17","Statement":[]}`)
	fake.AddGroup("Contractors", "/")

	found, err := p.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)

	assert.Equal(t, "Contractors", found[0].Name)
	assert.False(t, found[0].InCatalog)

	st := found[1]
	assert.True(t, st.InCatalog)
	assert.Equal(t, []string{"ReadOnlyAccess"}, st.AWSManaged)
	assert.Equal(t, []string{"Billing"}, st.CustomerManaged)
	assert.Equal(t, []string{"Steward-policy"}, st.Inline)
	assert.Contains(t, st.ARN, ":group/system/Steward")

	out := Summary(found, lipgloss.NewStyle())
	assert.Contains(t, out, "ReadOnlyAccess")
	assert.Contains(t, out, "Steward-policy")
}

func TestDiscover_AggregatesErrors(t *testing.T) {
	p, fake, _ := newProvisioner(t)
	fake.AddGroup("Admin", "/system/")
	fake.AddGroup("Volunteer", "/system/")
	fake.Fail["ListGroupPolicies(Admin)"] = iamtest.APIError("AccessDenied")

	found, err := p.Discover(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, iam.ErrAccessDenied)
	assert.Len(t, found, 2)
}

func TestImport(t *testing.T) {
	p, fake, backend := newProvisioner(t)
	ctx := context.Background()
	fake.AddGroup("Admin", "/system/")
	fake.PutInline("Admin", "Admin-policy", `{"Version":"2012-10-17","Statement":[]}`)
	fake.AddGroup("Volunteer", "/system/")
	fake.AddGroup("Contractors", "/")

	found, err := p.Discover(ctx)
	require.NoError(t, err)
	report, err := p.Import(ctx, found)
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin", "Volunteer"}, report.Imported)
	assert.Equal(t, []string{"Contractors"}, report.NotInCatalog)
	assert.Empty(t, fake.Calls)

	snap, err := backend.Load(ctx, state.StackGroups)
	require.NoError(t, err)
	_, ok := snap.Get(state.URN(state.KindGroup, "Admin"))
	assert.True(t, ok)
	_, ok = snap.Get(state.URN(state.KindGroupPolicy, "Admin"))
	assert.True(t, ok)

	found, err = p.Discover(ctx)
	require.NoError(t, err)
	report, err = p.Import(ctx, found)
	require.NoError(t, err)
	assert.Empty(t, report.Imported)
	assert.Equal(t, []string{"Admin", "Volunteer"}, report.AlreadyBound)
}
