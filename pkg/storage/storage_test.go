package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openparish/backend/pkg/model"
)

func TestRebind(t *testing.T) {
	pg := Wrap(nil, "postgres")
	assert.Equal(t, "SELECT $1, $2", pg.Rebind("SELECT ?, ?"))

	lite := Wrap(nil, "sqlite3")
	assert.Equal(t, "SELECT ?, ?", lite.Rebind("SELECT ?, ?"))
}

func TestFormatTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.FixedZone("CET", 3600))
	s := FormatTime(now)
	assert.Equal(t, "2026-03-14T08:26:53Z", s)

	parsed, err := ParseTime(s)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now.Truncate(time.Second)))
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return Wrap(raw, "sqlite3"), mock
}

func TestPrincipalByToken(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT id, role FROM users WHERE auth_token = ?`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "role"}).AddRow(7, "EDITOR"))
	mock.ExpectQuery(`SELECT group_id FROM group_members WHERE user_id = ?`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}).AddRow(3).AddRow(5))

	p, err := db.PrincipalByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, model.RoleEditor, p.Role)
	assert.Equal(t, []int64{3, 5}, p.GroupIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalByTokenUnknown(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT id, role FROM users WHERE auth_token = ?`).
		WithArgs("bogus").
		WillReturnError(sql.ErrNoRows)

	_, err := db.PrincipalByToken(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetAuthTokenClears(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE users SET auth_token = ? WHERE id = ?`).
		WithArgs(nil, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.SetAuthToken(context.Background(), 7, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadedFileExists(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT 1 FROM uploaded_files WHERE id = ?`).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := db.UploadedFileExists(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(`SELECT 1 FROM uploaded_files WHERE id = ?`).
		WithArgs("def").
		WillReturnError(sql.ErrNoRows)

	exists, err = db.UploadedFileExists(context.Background(), "def")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateSchemaAndInsertOnSQLite(t *testing.T) {
	raw, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	db := Wrap(raw, "sqlite3")
	ctx := context.Background()
	require.NoError(t, db.CreateSchema(ctx))
	// Idempotent.
	require.NoError(t, db.CreateSchema(ctx))

	inserted, err := db.InsertUploadedFile(ctx, &UploadedFile{ID: "hash-1"})
	require.NoError(t, err)
	assert.True(t, inserted)

	// Duplicate content hash degrades to "already uploaded".
	inserted, err = db.InsertUploadedFile(ctx, &UploadedFile{ID: "hash-1"})
	require.NoError(t, err)
	assert.False(t, inserted)

	f, err := db.UploadedFileByID(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", f.ID)
	assert.Nil(t, f.Title)

	_, err = db.UploadedFileByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertReturningIDSQLite(t *testing.T) {
	raw, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	db := Wrap(raw, "sqlite3")
	ctx := context.Background()
	require.NoError(t, db.CreateSchema(ctx))

	var id int64
	err = db.InTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		id, txErr = db.InsertReturningID(ctx, tx, "churches",
			[]string{"title", "google_maps_id"}, []interface{}{"St. Mary", "maps-id"})
		return txErr
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}
