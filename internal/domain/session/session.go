// Package session tracks the signed-in shopper account.
package session

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/pawstails-storefront/internal/storage"
)

// RoleAdmin is the role of back-office administrators.
const RoleAdmin = "Administrador"

// Sentinel errors for session handling.
var (
	ErrNoSession      = errors.New("you must sign in to complete the purchase")
	ErrInvalidAccount = errors.New("account must carry a user id")
)

// ID is an identifier issued by the commerce API. It decodes from either a
// JSON number or a numeric string.
type ID int64

func (id *ID) UnmarshalJSON(data []byte) error {
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Null:
		*id = 0
		return d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*id = 0
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parse id %q", s)
		}
		*id = ID(v)
		return nil
	default:
		v, err := d.Int64()
		if err != nil {
			return err
		}
		*id = ID(v)
		return nil
	}
}

// Account is the signed-in account as returned by the login endpoint. JSON
// names are the stored format.
type Account struct {
	UserID     ID     `json:"IdUsuario"`
	AccountID  ID     `json:"IdCuenta"`
	Role       string `json:"Rol"`
	Name       string `json:"UsuarioNombre,omitempty"`
	Email      string `json:"UsuarioCorreo,omitempty"`
	NationalID string `json:"Cedula,omitempty"`
}

// IsAdmin reports whether the account has the administrator role.
func (a Account) IsAdmin() bool { return a.Role == RoleAdmin }

// DisplayName returns the name shown for the signed-in user.
func (a Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// Keys names the storage keys used by Manager.
type Keys struct {
	Account string
	User    string
}

// Manager stores the session in a durable key-value store.
type Manager struct {
	store storage.Store
	keys  Keys
	lg    *zap.Logger
}

// NewManager creates a Manager.
func NewManager(store storage.Store, keys Keys, lg *zap.Logger) *Manager {
	return &Manager{store: store, keys: keys, lg: lg}
}

// Login stores acc as the current session.
func (m *Manager) Login(ctx context.Context, acc Account) error {
	if acc.UserID == 0 {
		return ErrInvalidAccount
	}
	if err := storage.SetJSON(ctx, m.store, m.keys.Account, acc); err != nil {
		return errors.Wrap(err, "save account")
	}
	// The web front-end keeps the user name as plain text, not JSON.
	if err := m.store.Set(ctx, m.keys.User, []byte(acc.DisplayName())); err != nil {
		return errors.Wrap(err, "save user name")
	}
	m.lg.Info("Signed in", zap.Int64("user_id", int64(acc.UserID)), zap.Bool("admin", acc.IsAdmin()))
	return nil
}

// Logout removes the account and user name.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Delete(ctx, m.keys.Account); err != nil {
		return errors.Wrap(err, "delete account")
	}
	if err := m.store.Delete(ctx, m.keys.User); err != nil {
		return errors.Wrap(err, "delete user name")
	}
	m.lg.Info("Signed out")
	return nil
}

// Current returns the signed-in account. A missing or unreadable account
// yields ErrNoSession.
func (m *Manager) Current(ctx context.Context) (Account, error) {
	var acc Account
	err := storage.GetJSON(ctx, m.store, m.keys.Account, &acc)

	var decodeErr *storage.DecodeError
	switch {
	case err == nil:
		return acc, nil
	case errors.Is(err, storage.ErrNotFound):
		return Account{}, ErrNoSession
	case errors.As(err, &decodeErr):
		m.lg.Warn("Discarding account snapshot",
			zap.String("event", "snapshot_discarded"),
			zap.String("key", m.keys.Account),
			zap.Error(err),
		)
		return Account{}, ErrNoSession
	default:
		return Account{}, errors.Wrap(err, "load account")
	}
}

// UserName returns the stored user name, or "" when signed out. The value
// is plain text; a JSON-quoted value is unquoted.
func (m *Manager) UserName(ctx context.Context) (string, error) {
	raw, err := m.store.Get(ctx, m.keys.User)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "load user name")
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		if name, err := jx.DecodeBytes(raw).Str(); err == nil {
			return name, nil
		}
	}
	return string(raw), nil
}

// RequireCheckout returns the account if it may place an order.
func (m *Manager) RequireCheckout(ctx context.Context) (Account, error) {
	acc, err := m.Current(ctx)
	if err != nil {
		return Account{}, err
	}
	if acc.UserID == 0 {
		return Account{}, ErrNoSession
	}
	return acc, nil
}
