package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithForeignKeys(t *testing.T) {
	require.Equal(t, "tasks.db?_foreign_keys=1", withForeignKeys("tasks.db"))
	require.Equal(t, "file:x?mode=memory&_foreign_keys=1", withForeignKeys("file:x?mode=memory"))
	require.Equal(t, "file:x?_fk=1", withForeignKeys("file:x?_fk=1"))
}

func TestConnectSQLiteEnablesForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tasks.db")

	db, err := Connect("sqlite://" + path)
	require.NoError(t, err)

	var enabled int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&enabled).Error)
	require.Equal(t, 1, enabled)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestConnectRejectsEmptyTargets(t *testing.T) {
	_, err := ConnectSQLite("  ")
	require.Error(t, err)

	_, err = ConnectPostgres("")
	require.Error(t, err)

	_, err = ConnectRedis(context.Background(), "")
	require.Error(t, err)

	_, err = ConnectNATS("", "test")
	require.Error(t, err)
}
