package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	awsclient "tasnim.dev/iamctl/internal/aws"
	"tasnim.dev/iamctl/internal/catalog"
	"tasnim.dev/iamctl/internal/config"
	"tasnim.dev/iamctl/internal/credentials"
	"tasnim.dev/iamctl/internal/engine"
	"tasnim.dev/iamctl/internal/groups"
	"tasnim.dev/iamctl/internal/logging"
	"tasnim.dev/iamctl/internal/menu"
	"tasnim.dev/iamctl/internal/state"
	"tasnim.dev/iamctl/internal/users"
)

// Options are the flags shared by every command.
type Options struct {
	Profile    string
	Region     string
	ConfigFile string
	LogLevel   string
	LogJSON    bool
}

func AddGlobalFlags(root *cobra.Command, o *Options) {
	f := root.PersistentFlags()
	f.StringVarP(&o.Profile, "profile", "p", "", "AWS profile to use")
	f.StringVarP(&o.Region, "region", "r", "", "AWS region to use")
	f.StringVar(&o.ConfigFile, "config", "", "config file (default ~/.config/iamctl/config.yaml)")
	f.StringVar(&o.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	f.BoolVar(&o.LogJSON, "log-json", false, "log as JSON")
}

// Env is everything a command needs, built from config and flags.
type Env struct {
	Config   *config.Config
	Profile  string
	Log      hclog.Logger
	AWS      *awsclient.ServiceClient
	Backend  state.Backend
	Catalog  *catalog.Catalog
	Prompter menu.Prompter
	Keys     *credentials.Helper
	Engine   *engine.Engine
	Users    *users.Manager
	Groups   *groups.Provisioner
	Gate     *credentials.Gate
	Out      io.Writer
}

// setup builds an Env. Commands that own the terminal, like the dashboard,
// pass interactive=false so no line reader is attached.
func setup(ctx context.Context, o *Options, interactive bool) (*Env, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.ConfigFile != "" {
		cfg, err = config.LoadFile(o.ConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	profile, region := cfg.Merge(o.Profile, o.Region)
	log := logging.New(cfg.Level(o.LogLevel), o.LogJSON, os.Stderr)

	client, err := awsclient.NewServiceClient(ctx, profile, region)
	if err != nil {
		return nil, fmt.Errorf("initializing AWS client: %w", err)
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(cfg, client)
	if err != nil {
		return nil, err
	}
	log.Debug("state backend", "kind", cfg.Backend(), "profile", profile, "region", region)

	env := &Env{
		Config:  cfg,
		Profile: profile,
		Log:     log,
		AWS:     client,
		Backend: backend,
		Catalog: cat,
		Out:     os.Stdout,
	}

	var confirm credentials.ConfirmFunc
	if interactive {
		env.Prompter = menu.NewLinePrompter()
		confirm = menu.NewKeyRotationConfirmer(env.Prompter, env.Out)
		env.Gate = credentials.NewGate(cfg.CredentialPasswordHash, env.Prompter.Password)
	}
	env.Keys = credentials.NewHelper(client.IAM, confirm, log)
	env.Engine = engine.New(client.IAM, env.Keys, backend, cat, log)
	env.Users = users.NewManager(client.IAM, env.Engine, backend, cfg.NewUserPath(), log)
	env.Groups = groups.NewProvisioner(client.IAM, env.Engine, backend, cat, log)
	return env, nil
}

func openBackend(cfg *config.Config, client *awsclient.ServiceClient) (state.Backend, error) {
	switch cfg.Backend() {
	case config.BackendS3:
		return state.NewS3Backend(client.S3, cfg.StateBucket, cfg.StatePrefix), nil
	default:
		backend, err := state.OpenSQLite(cfg.SQLitePath())
		if err != nil {
			return nil, fmt.Errorf("opening state %s: %w", cfg.SQLitePath(), err)
		}
		return backend, nil
	}
}

func (e *Env) Close() {
	if e.Prompter != nil {
		e.Prompter.Close()
	}
	if err := e.Backend.Close(); err != nil {
		e.Log.Warn("closing state backend", "error", err)
	}
}

func (e *Env) MenuDeps() menu.Deps {
	return menu.Deps{
		Users:    e.Users,
		Groups:   e.Groups,
		Engine:   e.Engine,
		Keys:     e.Keys,
		Gate:     e.Gate,
		Identity: e.AWS.Identity,
		Profile:  e.Profile,
	}
}

func (e *Env) asker() *menu.Asker {
	return menu.NewAsker(e.Prompter, e.Out)
}

// confirmPlan previews the plan and applies without asking when yes is set.
func (e *Env) confirmPlan(yes bool) engine.ConfirmFunc {
	return func(plan *engine.Plan) (bool, error) {
		fmt.Fprint(e.Out, menu.RenderPlan(plan))
		if yes {
			return true, nil
		}
		return e.asker().YesNo("Apply these changes", false)
	}
}

// withEnv runs fn with a fully built Env and closes it afterwards.
func withEnv(o *Options, interactive bool, fn func(ctx context.Context, env *Env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		env, err := setup(ctx, o, interactive)
		if err != nil {
			return err
		}
		defer env.Close()
		return fn(ctx, env)
	}
}
