package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/swap-mitra/city-vault/internal/domain/model"
	"github.com/swap-mitra/city-vault/internal/repository"
)

func newTestUserService(repo repository.UserRepository) *UserService {
	svc := NewUserService(repo, NewUserCache(100, time.Minute), testLogger())
	svc.cost = bcrypt.MinCost
	return svc
}

func strPtr(s string) *string { return &s }

func TestUserService_Register(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)

	u, err := svc.Register(context.Background(), RegisterParams{
		Name:     strPtr("  Alice  "),
		Email:    " Alice@Example.COM ",
		Password: "s3cret",
	})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("Email = %q, want normalised", u.Email)
	}
	if u.Name == nil || *u.Name != "Alice" {
		t.Errorf("Name = %v, want Alice", u.Name)
	}
	if u.PasswordHash == "s3cret" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret")) != nil {
		t.Error("password not stored as a bcrypt hash")
	}
}

func TestUserService_Register_BlankNameIsNull(t *testing.T) {
	svc := newTestUserService(newMockUserRepo())

	u, err := svc.Register(context.Background(), RegisterParams{Name: strPtr("   "), Email: "a@b.c", Password: "p"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Name != nil {
		t.Errorf("Name = %q, want nil", *u.Name)
	}
}

func TestUserService_Register_Validation(t *testing.T) {
	svc := newTestUserService(newMockUserRepo())

	tests := []struct {
		name    string
		params  RegisterParams
		wantMsg string
	}{
		{name: "no email", params: RegisterParams{Password: "p"}, wantMsg: "email"},
		{name: "no password", params: RegisterParams{Email: "a@b.c"}, wantMsg: "password"},
		{name: "long password", params: RegisterParams{Email: "a@b.c", Password: strings.Repeat("x", 73)}, wantMsg: "72"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.params)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want mention of %q", err, tt.wantMsg)
			}
		})
	}
}

func TestUserService_Register_Duplicate(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterParams{Name: strPtr("First"), Email: "dup@example.com", Password: "p"})
	if err != nil {
		t.Fatal(err)
	}
	want := *first

	if _, err := svc.Register(ctx, RegisterParams{Name: strPtr("Second"), Email: "DUP@example.com", Password: "q"}); !errors.Is(err, ErrConflict) {
		t.Errorf("Register(duplicate) error = %v, want ErrConflict", err)
	}

	stored, err := repo.GetByEmail(ctx, "dup@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error: %v", err)
	}
	if stored.ID != want.ID || stored.PasswordHash != want.PasswordHash {
		t.Errorf("stored user = %+v, want %+v", stored, want)
	}
	if stored.Name == nil || *stored.Name != "First" {
		t.Errorf("Name = %v, want First", stored.Name)
	}

	if _, err := svc.Authenticate(ctx, "dup@example.com", "p"); err != nil {
		t.Errorf("Authenticate(first password) error: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "dup@example.com", "q"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate(second password) error = %v, want ErrInvalidCredentials", err)
	}
}

func TestUserService_Register_InsertRace(t *testing.T) {
	repo := newMockUserRepo()
	repo.createFn = func(context.Context, *model.User) error {
		return repository.ErrConflict
	}
	svc := newTestUserService(repo)

	if _, err := svc.Register(context.Background(), RegisterParams{Email: "x@example.com", Password: "p"}); !errors.Is(err, ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestUserService_Authenticate(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterParams{Email: "bob@example.com", Password: "right"})
	if err != nil {
		t.Fatal(err)
	}

	u, err := svc.Authenticate(ctx, "  BOB@example.com", "right")
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if u.ID != registered.ID {
		t.Errorf("ID = %s, want %s", u.ID, registered.ID)
	}

	for _, tc := range []struct{ email, password string }{
		{"bob@example.com", "wrong"},
		{"nobody@example.com", "right"},
		{"", "right"},
		{"bob@example.com", ""},
	} {
		if _, err := svc.Authenticate(ctx, tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Authenticate(%q, %q) error = %v, want ErrInvalidCredentials", tc.email, tc.password, err)
		}
	}
}

func TestUserService_Authenticate_StoreError(t *testing.T) {
	boom := errors.New("db down")
	repo := newMockUserRepo()
	repo.getEmailFn = func(context.Context, string) (*model.User, error) { return nil, boom }
	svc := newTestUserService(repo)

	_, err := svc.Authenticate(context.Background(), "a@b.c", "p")
	if !errors.Is(err, boom) || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("error = %v, want wrapped store error", err)
	}
}

func TestUserService_GetByID_Cached(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterParams{Email: "cache@example.com", Password: "p"})
	if err != nil {
		t.Fatal(err)
	}
	repo.getCalls = 0

	for i := 0; i < 3; i++ {
		got, err := svc.GetByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("GetByID() error: %v", err)
		}
		if got.Email != "cache@example.com" {
			t.Errorf("Email = %q", got.Email)
		}
	}
	if repo.getCalls != 1 {
		t.Errorf("repository calls = %d, want 1", repo.getCalls)
	}

	if _, err := svc.GetByEmail(ctx, "Cache@Example.com"); err != nil {
		t.Fatalf("GetByEmail() error: %v", err)
	}
	if repo.getCalls != 1 {
		t.Errorf("repository calls = %d after email lookup, want 1 (served from cache)", repo.getCalls)
	}
}

func TestUserService_GetByID_NotFound(t *testing.T) {
	svc := newTestUserService(newMockUserRepo())

	if _, err := svc.GetByID(context.Background(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(bad id) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetByID(context.Background(), "6f1c2b7e-0c55-4a43-9a8f-1d2a3b4c5d6e"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(unknown) error = %v, want ErrNotFound", err)
	}
}
