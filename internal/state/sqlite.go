package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS stacks (
	name       TEXT PRIMARY KEY,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS user_config (
	stack          TEXT NOT NULL,
	name           TEXT NOT NULL,
	group_names    TEXT NOT NULL,
	create_key     INTEGER NOT NULL,
	console_access INTEGER NOT NULL,
	path           TEXT NOT NULL,
	PRIMARY KEY (stack, name)
);
CREATE TABLE IF NOT EXISTS resources (
	stack       TEXT NOT NULL,
	urn         TEXT NOT NULL,
	kind        TEXT NOT NULL,
	name        TEXT NOT NULL,
	provider_id TEXT NOT NULL,
	path        TEXT NOT NULL,
	policy      TEXT NOT NULL,
	group_names TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (stack, urn)
);
CREATE TABLE IF NOT EXISTS outputs (
	stack  TEXT NOT NULL,
	name   TEXT NOT NULL,
	value  TEXT NOT NULL,
	secret INTEGER NOT NULL,
	PRIMARY KEY (stack, name)
);
CREATE TABLE IF NOT EXISTS deployments (
	id          TEXT PRIMARY KEY,
	stack       TEXT NOT NULL,
	operation   TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	changes     INTEGER NOT NULL,
	result      TEXT NOT NULL,
	error       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deployments_stack ON deployments(stack, started_at);
`

// SQLiteBackend keeps every stack in one local database file.
type SQLiteBackend struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, nil
	}
	return v, nil
}

func (b *SQLiteBackend) Load(ctx context.Context, stack string) (*Snapshot, error) {
	snap := NewSnapshot(stack)

	rows, err := b.db.QueryContext(ctx,
		`SELECT name, group_names, create_key, console_access, path FROM user_config WHERE stack = ?`, stack)
	if err != nil {
		return nil, fmt.Errorf("loading %s user config: %w", stack, err)
	}
	for rows.Next() {
		var name, groups, path string
		var cfg UserConfig
		if err := rows.Scan(&name, &groups, &cfg.CreateKey, &cfg.ConsoleAccess, &path); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning user config: %w", err)
		}
		if cfg.Groups, err = decodeList(groups); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decoding groups of %s: %w", name, err)
		}
		cfg.Path = path
		snap.Users[name] = cfg
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = b.db.QueryContext(ctx,
		`SELECT kind, name, provider_id, path, policy, group_names, updated_at FROM resources WHERE stack = ?`, stack)
	if err != nil {
		return nil, fmt.Errorf("loading %s resources: %w", stack, err)
	}
	for rows.Next() {
		var r Resource
		var kind, groups, updated string
		if err := rows.Scan(&kind, &r.Name, &r.ID, &r.Path, &r.Policy, &groups, &updated); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning resource: %w", err)
		}
		r.Kind = Kind(kind)
		if r.Groups, err = decodeList(groups); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decoding groups of %s: %w", r.URN(), err)
		}
		r.UpdatedAt = decodeTime(updated)
		snap.Put(r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = b.db.QueryContext(ctx, `SELECT name, value, secret FROM outputs WHERE stack = ?`, stack)
	if err != nil {
		return nil, fmt.Errorf("loading %s outputs: %w", stack, err)
	}
	for rows.Next() {
		var name string
		var o Output
		if err := rows.Scan(&name, &o.Value, &o.Secret); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning output: %w", err)
		}
		snap.Outputs[name] = o
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = b.db.QueryContext(ctx,
		`SELECT id, operation, started_at, finished_at, changes, result, error
		 FROM deployments WHERE stack = ? ORDER BY started_at, id`, stack)
	if err != nil {
		return nil, fmt.Errorf("loading %s history: %w", stack, err)
	}
	defer rows.Close()
	for rows.Next() {
		d := Deployment{Stack: stack}
		var started, finished string
		if err := rows.Scan(&d.ID, &d.Operation, &started, &finished, &d.Changes, &d.Result, &d.Error); err != nil {
			return nil, fmt.Errorf("scanning deployment: %w", err)
		}
		d.StartedAt = decodeTime(started)
		d.FinishedAt = decodeTime(finished)
		snap.History = append(snap.History, d)
	}
	return snap, rows.Err()
}

// Save replaces the stack's rows in one transaction. History rows are
// append-only.
func (b *SQLiteBackend) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"user_config", "resources", "outputs"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE stack = ?`, snap.Stack); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for name, cfg := range snap.Users {
		groups, err := encodeList(cfg.Groups)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_config (stack, name, group_names, create_key, console_access, path) VALUES (?, ?, ?, ?, ?, ?)`,
			snap.Stack, name, groups, cfg.CreateKey, cfg.ConsoleAccess, cfg.Path); err != nil {
			return fmt.Errorf("saving user config %s: %w", name, err)
		}
	}

	for urn, r := range snap.Resources {
		groups, err := encodeList(r.Groups)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO resources (stack, urn, kind, name, provider_id, path, policy, group_names, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.Stack, urn, string(r.Kind), r.Name, r.ID, r.Path, r.Policy, groups, encodeTime(r.UpdatedAt)); err != nil {
			return fmt.Errorf("saving resource %s: %w", urn, err)
		}
	}

	for name, o := range snap.Outputs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outputs (stack, name, value, secret) VALUES (?, ?, ?, ?)`,
			snap.Stack, name, o.Value, o.Secret); err != nil {
			return fmt.Errorf("saving output %s: %w", name, err)
		}
	}

	for _, d := range snap.History {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO deployments (id, stack, operation, started_at, finished_at, changes, result, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, snap.Stack, d.Operation, encodeTime(d.StartedAt), encodeTime(d.FinishedAt), d.Changes, d.Result, d.Error); err != nil {
			return fmt.Errorf("saving deployment %s: %w", d.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stacks (name, updated_at) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET updated_at = excluded.updated_at`,
		snap.Stack, encodeTime(time.Now())); err != nil {
		return fmt.Errorf("saving stack %s: %w", snap.Stack, err)
	}

	return tx.Commit()
}

func (b *SQLiteBackend) Stacks(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT name FROM stacks ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing stacks: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
