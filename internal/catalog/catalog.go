// Package catalog holds the fixed table of organizational roles that map to
// IAM groups.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPath   = "/system/"
	ActionPrefix  = "application:"
	policyVersion = "2012-10-17"
)

// Entry is one role. Values returned from a Catalog are copies.
type Entry struct {
	Name        string
	Permissions []string
	Actions     []string
}

// PolicyName is the name of the group's inline policy.
func (e Entry) PolicyName() string {
	return e.Name + "-policy"
}

type statement struct {
	Effect   string   `json:"Effect"`
	Action   []string `json:"Action"`
	Resource string   `json:"Resource"`
}

type document struct {
	Version   string      `json:"Version"`
	Statement []statement `json:"Statement"`
}

// PolicyDocument renders the inline policy granting exactly the entry's actions.
func (e Entry) PolicyDocument() string {
	doc := document{
		Version: policyVersion,
		Statement: []statement{{
			Effect:   "Allow",
			Action:   append([]string{}, e.Actions...),
			Resource: "*",
		}},
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

func (e Entry) clone() Entry {
	return Entry{
		Name:        e.Name,
		Permissions: append([]string(nil), e.Permissions...),
		Actions:     append([]string(nil), e.Actions...),
	}
}

// Catalog is immutable once built.
type Catalog struct {
	path    string
	entries []Entry
	index   map[string]int
}

var defaultRoles = []struct {
	name  string
	perms []string
}{
	{"Beneficiary", []string{"ViewProfile", "EditProfile", "SubmitRequest"}},
	{"Volunteer", []string{"ViewProfile", "EditProfile", "AcceptRequest"}},
	{"Steward", []string{"ViewProfile", "EditProfile", "AcceptRequest", "ManageRoles"}},
	{"Admin", []string{"ViewProfile", "EditProfile", "AcceptRequest", "DeleteRequest"}},
	{"SuperAdmin", []string{
		"ViewProfile", "EditProfile", "AcceptRequest", "DeleteRequest", "ManageRoles", "ManageAdmin",
		"ManageIntegrations", "ManageDashboard", "MatchRequests", "ViewReports", "ManageUsers",
	}},
	{"CharityOrg", []string{"ViewProfile", "EditProfile", "ManageRoles"}},
}

// Default returns the built-in role table.
func Default() *Catalog {
	entries := make([]Entry, 0, len(defaultRoles))
	for _, r := range defaultRoles {
		entries = append(entries, Entry{Name: r.name, Permissions: r.perms})
	}
	c, err := New(DefaultPath, entries)
	if err != nil {
		panic(err)
	}
	return c
}

// New validates and copies entries. Entries without explicit actions get
// one "application:<label>" action per permission label.
func New(path string, entries []Entry) (*Catalog, error) {
	if path == "" {
		path = DefaultPath
	}
	c := &Catalog{path: path, index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if e.Name == "" {
			return nil, errors.New("catalog entry with empty name")
		}
		if _, dup := c.index[e.Name]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", e.Name)
		}
		e = e.clone()
		if len(e.Actions) == 0 {
			for _, p := range e.Permissions {
				e.Actions = append(e.Actions, ActionPrefix+p)
			}
		}
		if len(e.Actions) == 0 {
			return nil, fmt.Errorf("catalog entry %q grants nothing", e.Name)
		}
		c.index[e.Name] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

type fileRole struct {
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
	Actions     []string `yaml:"actions"`
}

type file struct {
	Path  string     `yaml:"path"`
	Roles []fileRole `yaml:"roles"`
}

// Load reads a catalog YAML file. An empty path returns the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	entries := make([]Entry, 0, len(f.Roles))
	for _, r := range f.Roles {
		entries = append(entries, Entry{Name: r.Name, Permissions: r.Permissions, Actions: r.Actions})
	}
	c, err := New(f.Path, entries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Path is the IAM path every catalog group is created under.
func (c *Catalog) Path() string { return c.path }

// Entries returns copies in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.clone())
	}
	return out
}

func (c *Catalog) Lookup(name string) (Entry, bool) {
	i, ok := c.index[name]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i].clone(), true
}

func (c *Catalog) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Names returns role names sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// NormalizePolicy re-encodes a JSON policy so documents that differ only in
// whitespace or key order compare equal. Invalid JSON is returned unchanged.
func NormalizePolicy(doc string) string {
	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return doc
	}
	b, err := json.Marshal(v)
	if err != nil {
		return doc
	}
	return string(b)
}
