package services

import (
	"context"
	"errors"
	"testing"

	"contabilidad/internal/core"
)

func TestSeedDefaults_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "seed")

	before, err := f.tags.List(ctx, u.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(before) == 0 {
		t.Fatal("registration should seed default tags")
	}

	added, err := f.tags.SeedDefaults(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if added != 0 {
		t.Errorf("second seeding added %d tags", added)
	}
	after, _ := f.tags.List(ctx, u.ID, "")
	if len(after) != len(before) {
		t.Errorf("tag count %d -> %d", len(before), len(after))
	}
}

func TestTagListOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "order")

	if _, err := f.tags.Create(ctx, u.ID, "Aaa custom", core.CategoryExpense, false); err != nil {
		t.Fatal(err)
	}
	tags, err := f.tags.List(ctx, u.ID, core.CategoryExpense)
	if err != nil {
		t.Fatal(err)
	}
	last := tags[len(tags)-1]
	if last.Name != "Aaa custom" || last.IsPredefined {
		t.Errorf("user tag should sort after predefined ones, last = %+v", last)
	}
	for i := 1; i < len(tags)-1; i++ {
		if tags[i-1].Name > tags[i].Name {
			t.Errorf("predefined tags not sorted: %q before %q", tags[i-1].Name, tags[i].Name)
		}
	}
}

func TestTagCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "tagger")

	tests := []struct {
		name     string
		tag      string
		category core.Category
		want     error
	}{
		{"duplicate", "Luz", core.CategoryExpense, core.ErrDuplicateTag},
		{"bad category", "Nuevo", core.Category("savings"), core.ErrInvalidCategory},
		{"empty", "   ", core.CategoryIncome, core.ErrEmptyTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tags.Create(ctx, u.ID, tt.tag, tt.category, false)
			if !core.IsValidation(err) || !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	// Names compare exactly, so a different case is a new tag.
	if _, err := f.tags.Create(ctx, u.ID, "luz", core.CategoryExpense, true); err != nil {
		t.Errorf("lowercase variant: %v", err)
	}
}

func TestTagUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "editor")
	other := f.user(t, "stranger")

	tag, err := f.tags.Create(ctx, u.ID, "Gym", core.CategoryExpense, false)
	if err != nil {
		t.Fatal(err)
	}
	updated, err := f.tags.Update(ctx, u.ID, tag.ID, "Gimnasio", true)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Gimnasio" || !updated.IsEssential {
		t.Errorf("updated = %+v", updated)
	}
	if _, err := f.tags.Update(ctx, u.ID, tag.ID, "Luz", true); !errors.Is(err, core.ErrDuplicateTag) {
		t.Errorf("rename onto existing err = %v", err)
	}
	if _, err := f.tags.Update(ctx, other.ID, tag.ID, "Mine", false); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign update err = %v", err)
	}
	if err := f.tags.Delete(ctx, other.ID, tag.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign delete err = %v", err)
	}
	if err := f.tags.Delete(ctx, u.ID, tag.ID); err != nil {
		t.Errorf("delete: %v", err)
	}
}

func TestAutoCreatedTagsFirstWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "auto")

	if _, err := f.ledger.AddEntry(ctx, u.ID, date(t, "2024-01-01"),
		core.EntryInput{Category: core.CategoryExpense, Amount: money(t, "1"), Tag: "Mascota"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.AddEntry(ctx, u.ID, date(t, "2024-01-02"),
		core.EntryInput{Category: core.CategoryIncome, Amount: money(t, "1"), Tag: "Mascota"}); err != nil {
		t.Fatal(err)
	}
	tags, _ := f.tags.List(ctx, u.ID, "")
	var found []core.Tag
	for _, tg := range tags {
		if tg.Name == "Mascota" {
			found = append(found, tg)
		}
	}
	if len(found) != 1 || found[0].Category != core.CategoryExpense || found[0].IsPredefined || found[0].IsEssential {
		t.Errorf("Mascota tags = %+v", found)
	}
}

func TestUserLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.Register(ctx, "maria", "Maria@Example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if u.Email != "maria@example.com" {
		t.Errorf("email = %q, want lowercased", u.Email)
	}

	if _, err := f.users.Register(ctx, "maria", "other@example.com", "secret1"); !errors.Is(err, core.ErrUsernameTaken) {
		t.Errorf("duplicate username err = %v", err)
	}
	if _, err := f.users.Register(ctx, "maria2", "maria@example.com", "secret1"); !errors.Is(err, core.ErrEmailTaken) {
		t.Errorf("duplicate email err = %v", err)
	}
	if _, err := f.users.Register(ctx, "x", "x@example.com", "secret1"); !errors.Is(err, core.ErrInvalidUsername) {
		t.Errorf("short username err = %v", err)
	}

	for _, login := range []string{"maria", "maria@example.com", "MARIA@example.com"} {
		if _, err := f.users.Authenticate(ctx, login, "secret1"); err != nil {
			t.Errorf("Authenticate(%q): %v", login, err)
		}
	}
	if _, err := f.users.Authenticate(ctx, "maria", "nope"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, err := f.users.Authenticate(ctx, "ghost", "secret1"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("unknown user err = %v", err)
	}

	if err := f.users.ChangePassword(ctx, u.ID, "wrong", "newsecret"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("change with wrong current err = %v", err)
	}
	if err := f.users.ChangePassword(ctx, u.ID, "secret1", "newsecret"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.users.Authenticate(ctx, "maria", "newsecret"); err != nil {
		t.Errorf("login with new password: %v", err)
	}

	if _, err := f.ledger.AddEntry(ctx, u.ID, date(t, "2024-01-01"),
		core.EntryInput{Category: core.CategoryExpense, Amount: money(t, "1"), Tag: "Luz"}); err != nil {
		t.Fatal(err)
	}
	if err := f.users.Delete(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.users.Get(ctx, u.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	days, err := f.ledger.AllDays(ctx, u.ID, 10)
	if err != nil || len(days) != 0 {
		t.Errorf("days after user delete = %+v, %v", days, err)
	}
}
