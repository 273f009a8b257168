package credentials

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"parley/pkg/database"
	"parley/pkg/interfaces"
	"parley/pkg/types"
)

func openTestStore(t *testing.T, path string) (*Store, *sql.DB) {
	t.Helper()

	db, err := database.Open(path, 5*time.Second)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.EnsureSchema(db); err != nil {
		t.Fatalf("Failed to ensure schema: %v", err)
	}
	return NewStore(zap.NewNop(), db), db
}

func TestStore_CreateAndLogin(t *testing.T) {
	store, _ := openTestStore(t, filepath.Join(t.TempDir(), "password.db"))

	if err := store.AddConnection(1); err != nil {
		t.Fatalf("Failed to add connection: %v", err)
	}
	if err := store.Create("alice", "secret"); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}

	if err := store.Login(1, "alice", "secret"); err != nil {
		t.Fatalf("Failed to log in: %v", err)
	}
	name, err := store.NameOf(1)
	if err != nil || name != "alice" {
		t.Errorf("Expected binding to alice, got %q (err %v)", name, err)
	}
	if store.LoggedIn() != 1 {
		t.Errorf("Expected 1 logged-in connection, got %d", store.LoggedIn())
	}
}

func TestStore_CreateDuplicate(t *testing.T) {
	store, _ := openTestStore(t, filepath.Join(t.TempDir(), "password.db"))

	if err := store.Create("alice", "secret"); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	if err := store.Create("alice", "other"); err != interfaces.ErrUsernameTaken {
		t.Errorf("Expected ErrUsernameTaken, got %v", err)
	}

	// The original password must survive the failed create.
	if err := store.AddConnection(1); err != nil {
		t.Fatalf("Failed to add connection: %v", err)
	}
	if err := store.Login(1, "alice", "secret"); err != nil {
		t.Errorf("Expected original password to still work, got %v", err)
	}
}

func TestStore_LoginWrongPassword(t *testing.T) {
	store, _ := openTestStore(t, filepath.Join(t.TempDir(), "password.db"))

	if err := store.AddConnection(1); err != nil {
		t.Fatalf("Failed to add connection: %v", err)
	}
	if err := store.Create("alice", "secret"); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}

	if err := store.Login(1, "alice", "wrong"); err != interfaces.ErrBadCredentials {
		t.Errorf("Expected ErrBadCredentials for wrong password, got %v", err)
	}
	if err := store.Login(1, "nobody", "secret"); err != interfaces.ErrBadCredentials {
		t.Errorf("Expected ErrBadCredentials for unknown user, got %v", err)
	}
	if name, _ := store.NameOf(1); name != "" {
		t.Errorf("Expected connection to stay a guest, got %q", name)
	}
}

func TestStore_LoginReplacesBinding(t *testing.T) {
	store, _ := openTestStore(t, filepath.Join(t.TempDir(), "password.db"))

	if err := store.AddConnection(1); err != nil {
		t.Fatalf("Failed to add connection: %v", err)
	}
	if err := store.Create("alice", "pw1"); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	if err := store.Create("bob", "pw2"); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}

	if err := store.Login(1, "alice", "pw1"); err != nil {
		t.Fatalf("Failed to log in as alice: %v", err)
	}
	if err := store.Login(1, "bob", "pw2"); err != nil {
		t.Fatalf("Failed to log in as bob: %v", err)
	}

	name, err := store.NameOf(1)
	if err != nil || name != "bob" {
		t.Errorf("Expected binding to bob, got %q (err %v)", name, err)
	}
	if store.LoggedIn() != 1 {
		t.Errorf("Expected 1 logged-in connection, got %d", store.LoggedIn())
	}
}

// TestStore_SharedUsername verifies two connections can hold the same
// account at once; nothing in the protocol forbids it.
func TestStore_SharedUsername(t *testing.T) {
	store, _ := openTestStore(t, filepath.Join(t.TempDir(), "password.db"))

	if err := store.Create("alice", "secret"); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	for id := types.ConnID(1); id <= 2; id++ {
		if err := store.AddConnection(id); err != nil {
			t.Fatalf("Failed to add connection %d: %v", id, err)
		}
		if err := store.Login(id, "alice", "secret"); err != nil {
			t.Fatalf("Failed to log in connection %d: %v", id, err)
		}
	}

	if store.LoggedIn() != 2 {
		t.Errorf("Expected 2 logged-in connections, got %d", store.LoggedIn())
	}
	for id := types.ConnID(1); id <= 2; id++ {
		if name, _ := store.NameOf(id); name != "alice" {
			t.Errorf("Expected connection %d bound to alice, got %q", id, name)
		}
	}
}

// TestStore_LongPassword covers passwords past bcrypt's 72-byte input
// limit. The store has always accepted arbitrary lengths, so the excess
// is clamped rather than refused; create and login must agree on that.
func TestStore_LongPassword(t *testing.T) {
	store, _ := openTestStore(t, filepath.Join(t.TempDir(), "password.db"))

	long := strings.Repeat("p", 200)
	if err := store.AddConnection(1); err != nil {
		t.Fatalf("Failed to add connection: %v", err)
	}
	if err := store.Create("alice", long); err != nil {
		t.Fatalf("Failed to create account with a long password: %v", err)
	}

	if err := store.Login(1, "alice", long); err != nil {
		t.Errorf("Expected the long password to authenticate, got %v", err)
	}
	if err := store.Login(1, "alice", strings.Repeat("q", 200)); err != interfaces.ErrBadCredentials {
		t.Errorf("Expected ErrBadCredentials for a wrong long password, got %v", err)
	}
}

func TestStore_LogoutIdempotent(t *testing.T) {
	store, _ := openTestStore(t, filepath.Join(t.TempDir(), "password.db"))

	if err := store.AddConnection(1); err != nil {
		t.Fatalf("Failed to add connection: %v", err)
	}

	// Logging out without being logged in succeeds.
	if err := store.Logout(1); err != nil {
		t.Errorf("Expected logout of a guest to succeed, got %v", err)
	}

	if err := store.Create("alice", "secret"); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	if err := store.Login(1, "alice", "secret"); err != nil {
		t.Fatalf("Failed to log in: %v", err)
	}
	if err := store.Logout(1); err != nil {
		t.Fatalf("Failed to log out: %v", err)
	}
	if err := store.Logout(1); err != nil {
		t.Errorf("Expected repeated logout to succeed, got %v", err)
	}
	if store.LoggedIn() != 0 {
		t.Errorf("Expected 0 logged-in connections, got %d", store.LoggedIn())
	}
}

func TestStore_UnknownConnection(t *testing.T) {
	store, _ := openTestStore(t, filepath.Join(t.TempDir(), "password.db"))

	if err := store.Login(9, "alice", "secret"); err != interfaces.ErrUnknownConnection {
		t.Errorf("Expected ErrUnknownConnection from Login, got %v", err)
	}
	if err := store.Logout(9); err != interfaces.ErrUnknownConnection {
		t.Errorf("Expected ErrUnknownConnection from Logout, got %v", err)
	}
	if _, err := store.NameOf(9); err != interfaces.ErrUnknownConnection {
		t.Errorf("Expected ErrUnknownConnection from NameOf, got %v", err)
	}
	if err := store.RemoveConnection(9); err != interfaces.ErrUnknownConnection {
		t.Errorf("Expected ErrUnknownConnection from RemoveConnection, got %v", err)
	}
}

func TestStore_AccountsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password.db")

	store, db := openTestStore(t, path)
	if err := store.Create("alice", "secret"); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Failed to close database: %v", err)
	}

	// A new store over the same file sees the persisted account.
	reopened, _ := openTestStore(t, path)
	if err := reopened.AddConnection(1); err != nil {
		t.Fatalf("Failed to add connection: %v", err)
	}
	if err := reopened.Login(1, "alice", "secret"); err != nil {
		t.Errorf("Expected persisted account to authenticate, got %v", err)
	}
}
