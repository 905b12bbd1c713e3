package storage

import "context"

const tagColumns = `id, user_id, name, category, is_predefined, is_essential, created_at`

func scanTag(row interface{ Scan(...any) error }) (Tag, error) {
	var t Tag
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Category, &t.IsPredefined, &t.IsEssential, &t.CreatedAt)
	return t, err
}

const ensureTag = `
INSERT INTO tags (user_id, name, category, is_predefined, is_essential, created_at)
VALUES (?, ?, ?, ?, 0, ?)
ON CONFLICT (user_id, name) DO NOTHING`

type EnsureTagParams struct {
	UserID       int64
	Name         string
	Category     string
	IsPredefined bool
}

// EnsureTag inserts the tag unless the user already has one with that name.
// It reports whether a row was created.
func (q *Queries) EnsureTag(ctx context.Context, arg EnsureTagParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, ensureTag, arg.UserID, arg.Name, arg.Category, arg.IsPredefined, q.now())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const createTag = `
INSERT INTO tags (user_id, name, category, is_predefined, is_essential, created_at)
VALUES (?, ?, ?, 0, ?, ?)
RETURNING ` + tagColumns

type CreateTagParams struct {
	UserID      int64
	Name        string
	Category    string
	IsEssential bool
}

// CreateTag fails with a unique violation on a duplicate name.
func (q *Queries) CreateTag(ctx context.Context, arg CreateTagParams) (Tag, error) {
	return scanTag(q.db.QueryRowContext(ctx, createTag, arg.UserID, arg.Name, arg.Category, arg.IsEssential, q.now()))
}

const listTags = `
SELECT ` + tagColumns + `
FROM tags
WHERE user_id = ?
ORDER BY is_predefined DESC, name ASC`

func (q *Queries) ListTags(ctx context.Context, userID int64) ([]Tag, error) {
	return q.listTags(ctx, listTags, userID)
}

const listTagsByCategory = `
SELECT ` + tagColumns + `
FROM tags
WHERE user_id = ? AND category = ?
ORDER BY is_predefined DESC, name ASC`

func (q *Queries) ListTagsByCategory(ctx context.Context, userID int64, category string) ([]Tag, error) {
	return q.listTags(ctx, listTagsByCategory, userID, category)
}

func (q *Queries) listTags(ctx context.Context, query string, args ...any) ([]Tag, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const getTag = `SELECT ` + tagColumns + ` FROM tags WHERE id = ? AND user_id = ?`

func (q *Queries) GetTag(ctx context.Context, userID, id int64) (Tag, error) {
	return scanTag(q.db.QueryRowContext(ctx, getTag, id, userID))
}

const updateTag = `
UPDATE tags SET name = ?, is_essential = ?
WHERE id = ? AND user_id = ?
RETURNING ` + tagColumns

type UpdateTagParams struct {
	UserID      int64
	ID          int64
	Name        string
	IsEssential bool
}

func (q *Queries) UpdateTag(ctx context.Context, arg UpdateTagParams) (Tag, error) {
	return scanTag(q.db.QueryRowContext(ctx, updateTag, arg.Name, arg.IsEssential, arg.ID, arg.UserID))
}

const deleteTag = `DELETE FROM tags WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteTag(ctx context.Context, userID, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTag, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
