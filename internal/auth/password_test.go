package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordService_CostIsEmbedded(t *testing.T) {
	hash, err := NewPasswordServiceForTest(bcrypt.MinCost).Hash("fresh-bread-at-dawn")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("stored hash is not bcrypt: %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.MinCost)
	}

	// A hash made at one cost verifies under a service configured for another,
	// so raising the production cost does not lock out existing accounts.
	if err := NewPasswordService().Verify(hash, "fresh-bread-at-dawn"); err != nil {
		t.Errorf("Verify() across costs = %v", err)
	}
}

func TestPasswordService_ByteLimit(t *testing.T) {
	ps := NewPasswordServiceForTest(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"at limit", strings.Repeat("a", MaxPasswordBytes), false},
		{"one over", strings.Repeat("a", MaxPasswordBytes+1), true},
		{"multibyte at limit", strings.Repeat("é", MaxPasswordBytes/2), false},
		{"multibyte over", strings.Repeat("é", MaxPasswordBytes/2) + "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := ps.Hash(tt.password)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Hash() should reject passwords over the bcrypt limit")
				}
				return
			}
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if err := ps.Verify(hash, tt.password); err != nil {
				t.Errorf("Verify() = %v", err)
			}
		})
	}
}

func TestPasswordService_Verify(t *testing.T) {
	ps := NewPasswordServiceForTest(bcrypt.MinCost)
	hash, err := ps.Hash("pâtisserie-2030")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		password string
		want     error
	}{
		{"match", hash, "pâtisserie-2030", nil},
		{"wrong password", hash, "patisserie-2030", ErrPasswordMismatch},
		{"empty password", hash, "", ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ps.Verify(tt.hash, tt.password); !errors.Is(err, tt.want) {
				t.Errorf("Verify() = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("corrupt hash", func(t *testing.T) {
		err := ps.Verify("not-a-bcrypt-hash", "pâtisserie-2030")
		if err == nil || errors.Is(err, ErrPasswordMismatch) {
			t.Errorf("Verify() = %v, want a non-mismatch error", err)
		}
	})
}
