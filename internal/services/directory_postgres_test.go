package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/AnshRaj112/tandem-backend/internal/pairing"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "display_name", "language", "gender", "country", "age", "profile_complete", "blocked", "created_at", "updated_at"}

func newMockDirectory(t *testing.T) (*PostgresDirectory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresDirectory(db, 10), mock
}

func TestPostgresDirectory_GetUser(t *testing.T) {
	dir, mock := newMockDirectory(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM chat_users WHERE id = $1`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "", "", "f", "Germany", 22, true, false, now, now))

	u, err := dir.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "User", u.DisplayName, "defaults applied to blank columns")
	assert.Equal(t, models.DefaultLanguage, u.Language)
	assert.True(t, u.ProfileComplete)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDirectory_GetUserNotFound(t *testing.T) {
	dir, mock := newMockDirectory(t)
	mock.ExpectQuery("FROM chat_users").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := dir.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, pairing.ErrNotFound)
}

func TestPostgresDirectory_GetUserDBError(t *testing.T) {
	dir, mock := newMockDirectory(t)
	boom := errors.New("conn reset")
	mock.ExpectQuery("FROM chat_users").WillReturnError(boom)

	_, err := dir.GetUser(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, pairing.ErrNotFound)
}

func TestPostgresDirectory_ListEligible(t *testing.T) {
	dir, mock := newMockDirectory(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`AND LOWER(language) = LOWER($2) AND LOWER(country) = LOWER($3) ORDER BY random() LIMIT $4`)).
		WithArgs("me", "en", "Spain", 10).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("a", "Ann", "en", "f", "Spain", 30, true, false, now, now).
			AddRow("b", "Bob", "en", "m", "Spain", 31, true, false, now, now))

	users, err := dir.ListEligible(context.Background(), "me", models.SearchCriteria{Language: "en", Gender: "any", Country: " Spain "}, pairing.CandidatePool{})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Bob", users[1].DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEligibleQuery_Wildcards(t *testing.T) {
	q, args := eligibleQuery("me", models.SearchCriteria{}, pairing.CandidatePool{}, 5)
	assert.NotContains(t, q, "LOWER(")
	assert.NotContains(t, q, "ALL(")
	assert.NotContains(t, q, "ANY(")
	assert.NotContains(t, q, "updated_at DESC")
	assert.Contains(t, q, "ORDER BY random() LIMIT $2")
	assert.Equal(t, []interface{}{"me", 5}, args)
}

func TestPostgresDirectory_ListEligibleFiltersPoolBeforeLimit(t *testing.T) {
	dir, mock := newMockDirectory(t)
	now := time.Now()
	pool := pairing.CandidatePool{Exclude: []string{"p1", "p2"}, Only: []string{"a", "p1"}}

	mock.ExpectQuery(regexp.QuoteMeta(`AND id <> $1 AND id <> ALL($2) AND id = ANY($3) ORDER BY random() LIMIT $4`)).
		WithArgs("me", pq.Array(pool.Exclude), pq.Array(pool.Only), 10).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("a", "Ann", "en", "f", "Spain", 30, true, false, now, now))

	users, err := dir.ListEligible(context.Background(), "me", models.SearchCriteria{}, pool)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "a", users[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEligibleQuery_EmptyOnlyStillRestricts(t *testing.T) {
	q, args := eligibleQuery("me", models.SearchCriteria{Language: "en"}, pairing.CandidatePool{Only: []string{}}, 5)
	assert.Contains(t, q, "AND id = ANY($3) ORDER BY random() LIMIT $4")
	require.Len(t, args, 4)
}

func TestPostgresDirectory_UpsertProfile(t *testing.T) {
	dir, mock := newMockDirectory(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO chat_users`)).
		WithArgs("u1", "Ann", "en", "female", "Spain", 30, true).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "Ann", "en", "female", "Spain", 30, true, false, now, now))

	saved, err := dir.UpsertProfile(context.Background(), models.User{ID: "u1", DisplayName: "Ann", Language: "en", Gender: "female", Country: "Spain", Age: 30})
	require.NoError(t, err)
	assert.True(t, saved.ProfileComplete)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDirectory_UpsertIncompleteProfile(t *testing.T) {
	dir, mock := newMockDirectory(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO chat_users`)).
		WithArgs("u2", "User", "en", "", "", 0, false).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u2", "User", "en", "", "", 0, false, false, now, now))

	saved, err := dir.UpsertProfile(context.Background(), models.User{ID: "u2"})
	require.NoError(t, err)
	assert.False(t, saved.ProfileComplete)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDirectory_SetBlocked(t *testing.T) {
	dir, mock := newMockDirectory(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE chat_users SET blocked = $2`)).
		WithArgs("u1", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, dir.SetBlocked(context.Background(), "u1", true))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE chat_users SET blocked = $2`)).
		WithArgs("ghost", true).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := dir.SetBlocked(context.Background(), "ghost", true)
	assert.ErrorIs(t, err, pairing.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
