package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResourceURN(t *testing.T) {
	assert.Equal(t, "group:Admin", Resource{Kind: KindGroup, Name: "Admin"}.URN())
	assert.Equal(t, "membership:alice", Resource{Kind: KindMembership, Name: "alice"}.URN())
	assert.Equal(t, "access-key:alice/AKIA1", Resource{Kind: KindAccessKey, Name: "alice", ID: "AKIA1"}.URN())
}

func TestSnapshot_AccessKeysOldestFirst(t *testing.T) {
	s := NewSnapshot(StackUsers)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Put(Resource{Kind: KindAccessKey, Name: "bob", ID: "AKIAZ", UpdatedAt: base})
	s.Put(Resource{Kind: KindAccessKey, Name: "bob", ID: "AKIAA", UpdatedAt: base.Add(time.Hour)})
	s.Put(Resource{Kind: KindAccessKey, Name: "bobby", ID: "AKIAB", UpdatedAt: base})

	keys := s.AccessKeys("bob")
	if assert.Len(t, keys, 2) {
		assert.Equal(t, "AKIAZ", keys[0].ID)
		assert.Equal(t, "AKIAA", keys[1].ID)
	}
}

func TestSnapshot_DropUser(t *testing.T) {
	s := NewSnapshot(StackUsers)
	s.Users["alice"] = UserConfig{Groups: []string{"Admin"}}
	s.Put(Resource{Kind: KindUser, Name: "alice"})
	s.Put(Resource{Kind: KindMembership, Name: "alice", Groups: []string{"Admin"}})
	s.Put(Resource{Kind: KindLoginProfile, Name: "alice"})
	s.Put(Resource{Kind: KindAccessKey, Name: "alice", ID: "AKIA1"})
	s.Put(Resource{Kind: KindUser, Name: "bob"})
	s.Outputs[OutputAccessKeyID("alice")] = Output{Value: "AKIA1"}
	s.Outputs[OutputPassword("alice")] = Output{Value: "pw", Secret: true}

	s.DropUser("alice")

	assert.False(t, s.Bound("alice"))
	assert.True(t, s.Bound("bob"))
	assert.Empty(t, s.AccessKeys("alice"))
	assert.Empty(t, s.Outputs)
	assert.Contains(t, s.Users, "alice")
	assert.Len(t, s.Resources, 1)
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	s := NewSnapshot(StackUsers)
	s.Users["alice"] = UserConfig{Groups: []string{"Admin"}}
	s.Put(Resource{Kind: KindMembership, Name: "alice", Groups: []string{"Admin"}})

	c := s.Clone()
	c.Users["alice"].Groups[0] = "Steward"
	c.Resources["membership:alice"].Groups[0] = "Steward"
	c.Users["bob"] = UserConfig{}

	assert.Equal(t, "Admin", s.Users["alice"].Groups[0])
	assert.Equal(t, "Admin", s.Resources["membership:alice"].Groups[0])
	assert.NotContains(t, s.Users, "bob")
}

func TestSnapshot_Names(t *testing.T) {
	s := NewSnapshot(StackUsers)
	s.Users["carol"] = UserConfig{}
	s.Users["alice"] = UserConfig{}
	s.Put(Resource{Kind: KindUser, Name: "zed"})
	s.Put(Resource{Kind: KindUser, Name: "bob"})

	assert.Equal(t, []string{"alice", "carol"}, s.UserNames())
	assert.Equal(t, []string{"bob", "zed"}, s.BoundUsers())
}

func TestSnapshot_DropAccessKey(t *testing.T) {
	s := NewSnapshot(StackUsers)
	s.Put(Resource{Kind: KindAccessKey, Name: "bob", ID: "AKIA1"})
	s.Put(Resource{Kind: KindAccessKey, Name: "bob", ID: "AKIA2"})
	s.Outputs[OutputAccessKeyID("bob")] = Output{Value: "AKIA2"}
	s.Outputs[OutputSecretAccessKey("bob")] = Output{Value: "s", Secret: true}

	s.DropAccessKey("bob", "AKIA1")
	assert.Len(t, s.AccessKeys("bob"), 1)
	assert.Len(t, s.Outputs, 2)

	s.DropAccessKey("bob", "AKIA2")
	assert.Empty(t, s.AccessKeys("bob"))
	assert.Empty(t, s.Outputs)
}
