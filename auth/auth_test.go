package auth

import (
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/smartcrop/smartcrop/history"
)

func newTestService(t *testing.T) (*AuthService, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := InitializeSchema(db); err != nil {
		t.Fatal(err)
	}
	if err := history.InitializeSchema(db); err != nil {
		t.Fatal(err)
	}
	return NewAuthService(db, "test-secret"), db
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register("Farmer@Example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Email != "farmer@example.com" {
		t.Errorf("Email = %q; want normalized lowercase", user.Email)
	}
	if user.ID == "" {
		t.Error("Register() should assign an ID")
	}

	token, err := svc.Login("farmer@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("claims.UserID = %q; want %q", claims.UserID, user.ID)
	}
	if claims.Email != user.Email {
		t.Errorf("claims.Email = %q; want %q", claims.Email, user.Email)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Register("a@b.com", "password"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register("A@B.com", "password2"); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate Register() error = %v; want %v", err, ErrUserExists)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Register("not-an-email", "password"); err == nil {
		t.Error("Register() should reject an email without @")
	}
	if _, err := svc.Register("a@b.com", "short"); err == nil {
		t.Error("Register() should reject passwords under 6 characters")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Register("a@b.com", "password"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login("a@b.com", "wrong"); !errors.Is(err, ErrInvalidCreds) {
		t.Errorf("Login() error = %v; want %v", err, ErrInvalidCreds)
	}
	if _, err := svc.Login("nobody@b.com", "password"); !errors.Is(err, ErrInvalidCreds) {
		t.Errorf("Login() unknown user error = %v; want %v", err, ErrInvalidCreds)
	}
}

func TestVerifyTokenRejectsForgery(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Register("a@b.com", "password"); err != nil {
		t.Fatal(err)
	}
	token, err := svc.Login("a@b.com", "password")
	if err != nil {
		t.Fatal(err)
	}

	other, _ := newTestService(t)
	if _, err := other.VerifyToken(token); err == nil {
		t.Error("VerifyToken() should reject a token signed with a different secret")
	}
	if _, err := svc.VerifyToken(token + "x"); err == nil {
		t.Error("VerifyToken() should reject a tampered token")
	}
}

func TestDeleteAccountCascadesHistory(t *testing.T) {
	svc, db := newTestService(t)
	user, err := svc.Register("a@b.com", "password")
	if err != nil {
		t.Fatal(err)
	}

	store := history.NewStore(db)
	rec := history.PredictionRecord{ID: "rec-1", UserID: user.ID, Name: "n", Disease: "d"}
	if err := store.Save(rec); err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteAccount(user.ID); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	if _, err := svc.GetUser(user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUser() after delete = %v; want %v", err, ErrUserNotFound)
	}
	records, err := store.ListForUser(user.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("history records after account delete = %d; want 0", len(records))
	}

	if err := svc.DeleteAccount(user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("second DeleteAccount() = %v; want %v", err, ErrUserNotFound)
	}
}
