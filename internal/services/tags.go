package services

import (
	"context"
	"fmt"

	"contabilidad/internal/core"
	"contabilidad/internal/log"
	"contabilidad/internal/storage"
)

// DefaultTags is the catalog every new user starts with.
var DefaultTags = []struct {
	Category core.Category
	Names    []string
}{
	{core.CategoryExpense, []string{"Luz", "Agua", "Comida", "Transporte", "Internet", "Teléfono", "Alquiler", "Otros"}},
	{core.CategoryIncome, []string{"Sueldo", "Freelance", "Ventas", "Inversiones", "Regalo", "Otros"}},
}

// TagService manages the per-user tag catalog.
type TagService struct {
	store Store
}

func NewTagService(store Store) *TagService {
	return &TagService{store: store}
}

// List returns the user's tags, predefined first and then by name. An empty
// category lists both.
func (s *TagService) List(ctx context.Context, userID int64, category core.Category) ([]core.Tag, error) {
	var (
		rows []storage.Tag
		err  error
	)
	if category == "" {
		rows, err = s.store.Queries().ListTags(ctx, userID)
	} else {
		if !category.Valid() {
			return nil, core.Invalid("category", core.ErrInvalidCategory)
		}
		rows, err = s.store.Queries().ListTagsByCategory(ctx, userID, string(category))
	}
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	tags := make([]core.Tag, 0, len(rows))
	for _, r := range rows {
		tags = append(tags, tagFromRow(r))
	}
	return tags, nil
}

func (s *TagService) Get(ctx context.Context, userID, id int64) (core.Tag, error) {
	row, err := s.store.Queries().GetTag(ctx, userID, id)
	if err != nil {
		return core.Tag{}, notFound(err)
	}
	return tagFromRow(row), nil
}

// Create adds a user tag. Duplicate names are rejected with an exact,
// case-sensitive comparison.
func (s *TagService) Create(ctx context.Context, userID int64, name string, category core.Category, essential bool) (core.Tag, error) {
	name, err := core.NormalizeTag(name)
	if err != nil {
		return core.Tag{}, core.Invalid("name", err)
	}
	if !category.Valid() {
		return core.Tag{}, core.Invalid("category", core.ErrInvalidCategory)
	}

	row, err := s.store.Queries().CreateTag(ctx, storage.CreateTagParams{
		UserID:      userID,
		Name:        name,
		Category:    string(category),
		IsEssential: essential,
	})
	if storage.IsUniqueViolation(err) {
		return core.Tag{}, core.Invalid("name", core.ErrDuplicateTag)
	}
	if err != nil {
		return core.Tag{}, fmt.Errorf("create tag: %w", err)
	}

	log.FromContext(ctx).WithComponent(log.ComponentTags).InfoContext(ctx, "Tag created",
		log.FieldUserID, userID, log.FieldTag, name, log.FieldCategory, category)
	return tagFromRow(row), nil
}

// Update renames a tag and sets its essential flag. Existing ledger rows keep
// the old name.
func (s *TagService) Update(ctx context.Context, userID, id int64, name string, essential bool) (core.Tag, error) {
	name, err := core.NormalizeTag(name)
	if err != nil {
		return core.Tag{}, core.Invalid("name", err)
	}
	row, err := s.store.Queries().UpdateTag(ctx, storage.UpdateTagParams{
		UserID:      userID,
		ID:          id,
		Name:        name,
		IsEssential: essential,
	})
	if storage.IsUniqueViolation(err) {
		return core.Tag{}, core.Invalid("name", core.ErrDuplicateTag)
	}
	if err != nil {
		return core.Tag{}, notFound(err)
	}
	return tagFromRow(row), nil
}

func (s *TagService) Delete(ctx context.Context, userID, id int64) error {
	n, err := s.store.Queries().DeleteTag(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SeedDefaults inserts the default catalog names the user is missing and
// returns how many were added.
func (s *TagService) SeedDefaults(ctx context.Context, userID int64) (int, error) {
	var added int
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		added, err = seedDefaultTags(ctx, q, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	log.FromContext(ctx).WithComponent(log.ComponentTags).DebugContext(ctx, "Default tags seeded",
		log.FieldUserID, userID, "added", added)
	return added, nil
}

func seedDefaultTags(ctx context.Context, q *storage.Queries, userID int64) (int, error) {
	added := 0
	for _, group := range DefaultTags {
		for _, name := range group.Names {
			created, err := q.EnsureTag(ctx, storage.EnsureTagParams{
				UserID:       userID,
				Name:         name,
				Category:     string(group.Category),
				IsPredefined: true,
			})
			if err != nil {
				return added, fmt.Errorf("seed tag %q: %w", name, err)
			}
			if created {
				added++
			}
		}
	}
	return added, nil
}

// ensureTag creates a plain tag for name unless the user already has one,
// whatever its category.
func ensureTag(ctx context.Context, q *storage.Queries, userID int64, name string, category core.Category) error {
	if _, err := q.EnsureTag(ctx, storage.EnsureTagParams{
		UserID:   userID,
		Name:     name,
		Category: string(category),
	}); err != nil {
		return fmt.Errorf("ensure tag %q: %w", name, err)
	}
	return nil
}

func tagFromRow(r storage.Tag) core.Tag {
	return core.Tag{
		ID:           r.ID,
		Name:         r.Name,
		Category:     core.Category(r.Category),
		IsPredefined: r.IsPredefined,
		IsEssential:  r.IsEssential,
	}
}
