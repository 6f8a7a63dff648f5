package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_MissingFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "", cfg.DefaultProfile)
	assert.Equal(t, BackendSQLite, cfg.Backend())
	assert.Equal(t, DefaultUserPath, cfg.NewUserPath())
}

func TestLoadFile_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "default_profile: pulumi-dev\n" +
		"default_region: eu-west-1\n" +
		"state_backend: s3\n" +
		"state_bucket: iam-state\n" +
		"state_prefix: prod\n" +
		"catalog_file: /etc/iamctl/roles.yaml\n" +
		"user_path: /staff/\n" +
		"log_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pulumi-dev", cfg.DefaultProfile)
	assert.Equal(t, "eu-west-1", cfg.DefaultRegion)
	assert.Equal(t, BackendS3, cfg.Backend())
	assert.Equal(t, "iam-state", cfg.StateBucket)
	assert.Equal(t, "prod", cfg.StatePrefix)
	assert.Equal(t, "/etc/iamctl/roles.yaml", cfg.CatalogFile)
	assert.Equal(t, "/staff/", cfg.NewUserPath())
	assert.Equal(t, "debug", cfg.Level(""))
	assert.Equal(t, "trace", cfg.Level("trace"))
}

func TestLoadFile_S3WithoutBucket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state_backend: s3\n"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state_bucket")
}

func TestLoadFile_UnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state_backend: etcd\n"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etcd")
}

func TestSQLitePath(t *testing.T) {
	cfg := &Config{StatePath: "/tmp/custom.db"}
	assert.Equal(t, "/tmp/custom.db", cfg.SQLitePath())

	cfg = &Config{}
	assert.Equal(t, "state.db", filepath.Base(cfg.SQLitePath()))
}

func TestLevel_Default(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "warn", cfg.Level(""))
}

func TestMerge_CLIFlagsTakePrecedence(t *testing.T) {
	cfg := &Config{DefaultProfile: "config-profile", DefaultRegion: "us-east-1"}

	// CLI flags override
	p, r := cfg.Merge("cli-profile", "ap-south-1")
	assert.Equal(t, "cli-profile", p)
	assert.Equal(t, "ap-south-1", r)

	// Empty flags fall back to config
	p, r = cfg.Merge("", "")
	assert.Equal(t, "config-profile", p)
	assert.Equal(t, "us-east-1", r)

	// Partial override
	p, r = cfg.Merge("other", "")
	assert.Equal(t, "other", p)
	assert.Equal(t, "us-east-1", r)
}

func TestLoadFile_InvalidUserPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user_path: staff\n"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_path")
}
