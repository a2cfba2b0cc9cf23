package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/AnshRaj112/tandem-backend/internal/pairing"
	"github.com/lib/pq"
)

// DefaultCandidateLimit caps how many rows ListEligible reads per search.
const DefaultCandidateLimit = 500

const userColumns = `id, display_name, language, gender, country, age, profile_complete, blocked, created_at, updated_at`

// ProfileStore is the user directory plus the writes the profile flow needs.
type ProfileStore interface {
	pairing.Directory
	UpsertProfile(ctx context.Context, u models.User) (models.User, error)
	SetBlocked(ctx context.Context, id string, blocked bool) error
}

// PostgresDirectory serves user profiles from the chat_users table.
type PostgresDirectory struct {
	db    *sql.DB
	limit int
}

func NewPostgresDirectory(db *sql.DB, candidateLimit int) *PostgresDirectory {
	if candidateLimit <= 0 {
		candidateLimit = DefaultCandidateLimit
	}
	return &PostgresDirectory{db: db, limit: candidateLimit}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.DisplayName, &u.Language, &u.Gender, &u.Country, &u.Age,
		&u.ProfileComplete, &u.Blocked, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return models.User{}, err
	}
	return u.WithDefaults(), nil
}

// GetUser loads a single profile.
func (d *PostgresDirectory) GetUser(ctx context.Context, id string) (models.User, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM chat_users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %s: %w", id, pairing.ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// ListEligible returns complete, unblocked profiles matching criteria and pool, excluding
// the requester. Rows come back in random order so the limit does not favour any profile.
func (d *PostgresDirectory) ListEligible(ctx context.Context, requesterID string, criteria models.SearchCriteria, pool pairing.CandidatePool) ([]models.User, error) {
	query, args := eligibleQuery(requesterID, criteria, pool, d.limit)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list eligible users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list eligible users: %w", err)
	}
	return users, nil
}

func eligibleQuery(requesterID string, criteria models.SearchCriteria, pool pairing.CandidatePool, limit int) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(`SELECT ` + userColumns + ` FROM chat_users WHERE profile_complete = TRUE AND blocked = FALSE AND id <> $1`)
	args := []interface{}{requesterID}

	for _, f := range []struct{ column, value string }{
		{"language", criteria.Language},
		{"gender", criteria.Gender},
		{"country", criteria.Country},
	} {
		if models.IsWildcard(f.value) {
			continue
		}
		args = append(args, strings.TrimSpace(f.value))
		fmt.Fprintf(&b, ` AND LOWER(%s) = LOWER($%d)`, f.column, len(args))
	}

	if len(pool.Exclude) > 0 {
		args = append(args, pq.Array(pool.Exclude))
		fmt.Fprintf(&b, ` AND id <> ALL($%d)`, len(args))
	}
	if pool.Only != nil {
		args = append(args, pq.Array(pool.Only))
		fmt.Fprintf(&b, ` AND id = ANY($%d)`, len(args))
	}

	args = append(args, limit)
	fmt.Fprintf(&b, ` ORDER BY random() LIMIT $%d`, len(args))
	return b.String(), args
}

// UpsertProfile creates or updates a profile. ProfileComplete is derived from the fields
// and the blocked flag is never changed here.
func (d *PostgresDirectory) UpsertProfile(ctx context.Context, u models.User) (models.User, error) {
	u.ProfileComplete = u.HasCompleteProfile()
	u = u.WithDefaults()

	row := d.db.QueryRowContext(ctx, `
		INSERT INTO chat_users (id, display_name, language, gender, country, age, profile_complete)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			language = EXCLUDED.language,
			gender = EXCLUDED.gender,
			country = EXCLUDED.country,
			age = EXCLUDED.age,
			profile_complete = EXCLUDED.profile_complete,
			updated_at = NOW()
		RETURNING `+userColumns,
		u.ID, u.DisplayName, u.Language, u.Gender, u.Country, u.Age, u.ProfileComplete)

	saved, err := scanUser(row)
	if err != nil {
		return models.User{}, fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return saved, nil
}

// SetBlocked flips the blocked flag. Users are never deleted.
func (d *PostgresDirectory) SetBlocked(ctx context.Context, id string, blocked bool) error {
	res, err := d.db.ExecContext(ctx, `UPDATE chat_users SET blocked = $2, updated_at = NOW() WHERE id = $1`, id, blocked)
	if err != nil {
		return fmt.Errorf("set blocked %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set blocked %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, pairing.ErrNotFound)
	}
	return nil
}
