// Package credentials issues access keys within the provider's per-user cap
// and guards the display of recorded secrets.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"tasnim.dev/iamctl/internal/aws/iam"
	"tasnim.dev/iamctl/internal/state"
)

// MaxAccessKeys is the provider's per-user access key cap.
const MaxAccessKeys = 2

var ErrKeyLimit = errors.New("access key limit reached")

type KeyAPI interface {
	ListAccessKeys(ctx context.Context, userName string) ([]iam.IAMAccessKey, error)
	CreateAccessKey(ctx context.Context, userName string) (iam.IAMIssuedKey, error)
	DeleteAccessKey(ctx context.Context, userName, keyID string) error
}

// ConfirmFunc asks whether the oldest key may be deleted to make room.
type ConfirmFunc func(user string, oldest iam.IAMAccessKey, keys []iam.IAMAccessKey) (bool, error)

type Helper struct {
	iam     KeyAPI
	confirm ConfirmFunc
	log     hclog.Logger
}

// NewHelper returns a Helper. With a nil confirm, issuing for a user at the
// cap fails rather than deleting anything.
func NewHelper(api KeyAPI, confirm ConfirmFunc, log hclog.Logger) *Helper {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Helper{iam: api, confirm: confirm, log: log.Named("credentials")}
}

// Oldest returns the key with the earliest creation time.
func Oldest(keys []iam.IAMAccessKey) iam.IAMAccessKey {
	sorted := append([]iam.IAMAccessKey(nil), keys...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })
	return sorted[0]
}

// Issue creates an access key for user. It returns the new key and the IDs
// of any keys deleted to make room. The local count is a best-effort check;
// a LimitExceeded from the provider gets the same remediation.
func (h *Helper) Issue(ctx context.Context, user string) (iam.IAMIssuedKey, []string, error) {
	var rotated []string

	keys, err := h.iam.ListAccessKeys(ctx, user)
	if err != nil {
		return iam.IAMIssuedKey{}, nil, err
	}
	if len(keys) >= MaxAccessKeys {
		id, err := h.makeRoom(ctx, user, keys)
		if err != nil {
			return iam.IAMIssuedKey{}, nil, err
		}
		rotated = append(rotated, id)
	}

	key, err := h.iam.CreateAccessKey(ctx, user)
	if errors.Is(err, iam.ErrLimitExceeded) {
		h.log.Warn("provider reports key limit", "user", user)
		keys, lerr := h.iam.ListAccessKeys(ctx, user)
		if lerr != nil {
			return iam.IAMIssuedKey{}, rotated, lerr
		}
		id, rerr := h.makeRoom(ctx, user, keys)
		if rerr != nil {
			return iam.IAMIssuedKey{}, rotated, rerr
		}
		rotated = append(rotated, id)
		key, err = h.iam.CreateAccessKey(ctx, user)
	}
	if err != nil {
		return iam.IAMIssuedKey{}, rotated, err
	}

	h.log.Info("issued access key", "user", user, "key", key.ID, "rotated", len(rotated))
	return key, rotated, nil
}

func (h *Helper) makeRoom(ctx context.Context, user string, keys []iam.IAMAccessKey) (string, error) {
	if len(keys) == 0 {
		return "", fmt.Errorf("%w for %s", ErrKeyLimit, user)
	}
	oldest := Oldest(keys)
	if h.confirm == nil {
		return "", fmt.Errorf("%w: %s holds %d keys and no one confirmed deleting %s", ErrKeyLimit, user, len(keys), oldest.ID)
	}
	ok, err := h.confirm(user, oldest, keys)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s holds %d keys and deleting %s was declined", ErrKeyLimit, user, len(keys), oldest.ID)
	}
	if err := h.iam.DeleteAccessKey(ctx, user, oldest.ID); err != nil {
		return "", err
	}
	h.log.Info("deleted oldest access key", "user", user, "key", oldest.ID)
	return oldest.ID, nil
}

// KeyHolder is a configured user at the key cap.
type KeyHolder struct {
	User string
	Keys []iam.IAMAccessKey
}

// Scan lists configured users holding MaxAccessKeys or more live keys.
// Users that cannot be read are reported in the returned error while the
// sweep continues.
func (h *Helper) Scan(ctx context.Context, snap *state.Snapshot) ([]KeyHolder, error) {
	var holders []KeyHolder
	var errs *multierror.Error

	for _, name := range snap.UserNames() {
		keys, err := h.iam.ListAccessKeys(ctx, name)
		if err != nil {
			if errors.Is(err, iam.ErrNotFound) {
				continue
			}
			errs = multierror.Append(errs, err)
			continue
		}
		if len(keys) >= MaxAccessKeys {
			holders = append(holders, KeyHolder{User: name, Keys: keys})
		}
	}
	return holders, errs.ErrorOrNil()
}

// Revoke deletes one key and drops its record and outputs from the users stack.
func (h *Helper) Revoke(ctx context.Context, backend state.Backend, user, keyID string) error {
	if err := h.iam.DeleteAccessKey(ctx, user, keyID); err != nil && !errors.Is(err, iam.ErrNotFound) {
		return err
	}
	snap, err := backend.Load(ctx, state.StackUsers)
	if err != nil {
		return err
	}
	snap.DropAccessKey(user, keyID)
	if err := backend.Save(ctx, snap); err != nil {
		return err
	}
	h.log.Info("revoked access key", "user", user, "key", keyID)
	return nil
}

// Credential is what the stack outputs hold for one user.
type Credential struct {
	User            string
	AccessKeyID     string
	SecretAccessKey string
	Password        string
}

func (c Credential) Empty() bool {
	return c.AccessKeyID == "" && c.SecretAccessKey == "" && c.Password == ""
}

// Recorded returns the recorded credentials for user, or for every user
// with any when user is empty.
func Recorded(snap *state.Snapshot, user string) []Credential {
	names := []string{user}
	if user == "" {
		seen := map[string]bool{}
		for _, n := range snap.UserNames() {
			seen[n] = true
		}
		for _, n := range snap.BoundUsers() {
			seen[n] = true
		}
		names = names[:0]
		for n := range seen {
			names = append(names, n)
		}
		sort.Strings(names)
	}

	var out []Credential
	for _, n := range names {
		c := Credential{
			User:            n,
			AccessKeyID:     snap.Outputs[state.OutputAccessKeyID(n)].Value,
			SecretAccessKey: snap.Outputs[state.OutputSecretAccessKey(n)].Value,
			Password:        snap.Outputs[state.OutputPassword(n)].Value,
		}
		if !c.Empty() {
			out = append(out, c)
		}
	}
	return out
}
