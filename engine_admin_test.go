package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestAdminUnlockRestoresLogin(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	clock := newTestClock()
	store := newMockAccountStore()
	engine := newTestEngine(t, rdb, store, clock)
	seedAccount(t, engine, store, "alice", "Correct-Horse1!", RoleEmployee)

	for i := 0; i < 5; i++ {
		if _, err := engine.Login(ctx, "alice", "Wrong-Horse1!"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if _, err := engine.Login(ctx, "alice", "Correct-Horse1!"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}

	if err := engine.AdminUnlock(ctx, "alice", "root-admin"); err != nil {
		t.Fatalf("AdminUnlock failed: %v", err)
	}

	if _, err := engine.Login(ctx, "alice", "Correct-Horse1!"); err != nil {
		t.Fatalf("expected login after unlock, got %v", err)
	}
}

func TestAdminUnlockWithoutLockSucceeds(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	clock := newTestClock()
	store := newMockAccountStore()
	engine := newTestEngine(t, rdb, store, clock)

	if err := engine.AdminUnlock(ctx, "alice", "root-admin"); err != nil {
		t.Fatalf("expected idempotent unlock, got %v", err)
	}
}

func TestAdminResetPasswordForcesChangeAndRevokesSessions(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	clock := newTestClock()
	store := newMockAccountStore()
	engine := newTestEngine(t, rdb, store, clock)
	seedAccount(t, engine, store, "alice", "Old-Password1!", RoleEmployee)

	result, err := engine.Login(ctx, "alice", "Old-Password1!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.AdminResetPassword(ctx, "alice", "Reset-Password1!", "root-admin"); err != nil {
		t.Fatalf("AdminResetPassword failed: %v", err)
	}

	if _, err := engine.ValidateSession(ctx, result.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected prior session revoked, got %v", err)
	}

	reset, err := engine.Login(ctx, "alice", "Reset-Password1!")
	if err != nil {
		t.Fatalf("expected login with reset password, got %v", err)
	}
	if !reset.MustChangePassword {
		t.Fatal("expected must-change flag after admin reset")
	}

	// The subject rotates the temporary password and the flag clears.
	if err := engine.ChangePassword(ctx, "alice", "Reset-Password1!", "Chosen-Password1!"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	final, err := engine.Login(ctx, "alice", "Chosen-Password1!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if final.MustChangePassword {
		t.Fatal("expected cleared must-change flag after rotation")
	}
}

func TestAdminResetPasswordStillHeldToPolicy(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	clock := newTestClock()
	store := newMockAccountStore()
	engine := newTestEngine(t, rdb, store, clock)
	seedAccount(t, engine, store, "alice", "Old-Password1!", RoleEmployee)

	err := engine.AdminResetPassword(ctx, "alice", "weakpass", "root-admin")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestAdminResetPasswordUnknownAccount(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	clock := newTestClock()
	store := newMockAccountStore()
	engine := newTestEngine(t, rdb, store, clock)

	err := engine.AdminResetPassword(ctx, "ghost", "Reset-Password1!", "root-admin")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestRegisterAccountStartsInactivePendingApproval(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	clock := newTestClock()
	store := newMockAccountStore()
	engine := newTestEngine(t, rdb, store, clock)

	req := RegisterAccountRequest{
		Username: "bob",
		Password: "Initial-Password1!",
		Role:     RoleEmployee,
	}
	if err := engine.RegisterAccount(ctx, req, "root-admin"); err != nil {
		t.Fatalf("RegisterAccount failed: %v", err)
	}

	created := store.account("bob")
	if created.Active {
		t.Fatal("expected new account to start inactive")
	}
	if !created.MustChangePassword {
		t.Fatal("expected new account flagged must-change")
	}

	if _, err := engine.Login(ctx, "bob", "Initial-Password1!"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled before approval, got %v", err)
	}

	if err := engine.SetAccountActive(ctx, "bob", true, "root-admin"); err != nil {
		t.Fatalf("SetAccountActive failed: %v", err)
	}

	result, err := engine.Login(ctx, "bob", "Initial-Password1!")
	if err != nil {
		t.Fatalf("expected login after approval, got %v", err)
	}
	if !result.MustChangePassword {
		t.Fatal("expected first login to demand a password change")
	}
}

func TestRegisterAccountDuplicate(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	clock := newTestClock()
	store := newMockAccountStore()
	engine := newTestEngine(t, rdb, store, clock)
	seedAccount(t, engine, store, "alice", "Correct-Horse1!", RoleEmployee)

	err := engine.RegisterAccount(ctx, RegisterAccountRequest{
		Username: "alice",
		Password: "Another-Password1!",
		Role:     RoleEmployee,
	}, "root-admin")
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestRegisterAccountInvalidRole(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	clock := newTestClock()
	store := newMockAccountStore()
	engine := newTestEngine(t, rdb, store, clock)

	err := engine.RegisterAccount(ctx, RegisterAccountRequest{
		Username: "bob",
		Password: "Initial-Password1!",
		Role:     Role("superuser"),
	}, "root-admin")
	if !errors.Is(err, ErrRoleInvalid) {
		t.Fatalf("expected ErrRoleInvalid, got %v", err)
	}
	if store.createCalls != 0 {
		t.Fatal("expected no create attempt for invalid role")
	}
}

func TestSetAccountActiveDeactivateRevokesSessions(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	clock := newTestClock()
	store := newMockAccountStore()
	engine := newTestEngine(t, rdb, store, clock)
	seedAccount(t, engine, store, "alice", "Correct-Horse1!", RoleEmployee)

	result, err := engine.Login(ctx, "alice", "Correct-Horse1!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.SetAccountActive(ctx, "alice", false, "root-admin"); err != nil {
		t.Fatalf("SetAccountActive failed: %v", err)
	}

	if _, err := engine.ValidateSession(ctx, result.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session revoked on deactivation, got %v", err)
	}
	if _, err := engine.Login(ctx, "alice", "Correct-Horse1!"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestSetAccountActiveIdempotent(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	clock := newTestClock()
	store := newMockAccountStore()
	engine := newTestEngine(t, rdb, store, clock)
	seedAccount(t, engine, store, "alice", "Correct-Horse1!", RoleEmployee)

	saves := store.saveCalls
	if err := engine.SetAccountActive(ctx, "alice", true, "root-admin"); err != nil {
		t.Fatalf("SetAccountActive failed: %v", err)
	}
	if store.saveCalls != saves {
		t.Fatal("expected no save when status is unchanged")
	}
}

func TestListSessionsReturnsLiveSessions(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	clock := newTestClock()
	store := newMockAccountStore()
	engine := newTestEngine(t, rdb, store, clock)
	seedAccount(t, engine, store, "alice", "Correct-Horse1!", RoleManager)

	first, err := engine.Login(ctx, "alice", "Correct-Horse1!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Login(ctx, "alice", "Correct-Horse1!"); err != nil {
		t.Fatalf("second Login failed: %v", err)
	}

	sessions, err := engine.ListSessions(ctx, "alice")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	for _, info := range sessions {
		if info.Username != "alice" || info.Role != RoleManager {
			t.Fatalf("unexpected session info: %+v", info)
		}
	}

	if err := engine.Logout(ctx, first.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	sessions, err = engine.ListSessions(ctx, "alice")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session after logout, got %d", len(sessions))
	}
}

func TestListSessionsEmpty(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	clock := newTestClock()
	store := newMockAccountStore()
	engine := newTestEngine(t, rdb, store, clock)

	sessions, err := engine.ListSessions(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %d", len(sessions))
	}
}
