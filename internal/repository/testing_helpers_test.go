package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/taskminder-go-api/internal/database"
	"github.com/noah-isme/taskminder-go-api/internal/models"
)

func setupTaskTestDB(t *testing.T) (*gorm.DB, *ChangeFeed) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.ConnectSQLite("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Teacher{}, &models.Task{}, &models.Notification{}, &models.Preference{}))

	feed := NewChangeFeed()
	feed.Cascade(models.Teacher{}.TableName(), models.Task{}.TableName())
	require.NoError(t, feed.Attach(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db, feed
}

func createTeacher(t *testing.T, repo TeacherRepository, name string) models.Teacher {
	t.Helper()
	teacher := models.Teacher{Name: name}
	require.NoError(t, repo.Create(context.Background(), &teacher))
	require.NotZero(t, teacher.ID)
	return teacher
}

func deadlineIn(d time.Duration) *int64 {
	ms := time.Now().Add(d).UnixMilli()
	return &ms
}

func receiveWithin[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case value, ok := <-ch:
		require.True(t, ok, "stream closed unexpectedly")
		return value
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream value")
	}
	var zero T
	return zero
}
