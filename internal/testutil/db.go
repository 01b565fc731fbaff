package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/config"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/pkg/database"
)

// NewDB 每个测试一个独立的内存 sqlite 库，已建表
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000",
		LogLevel: "silent",
	}}
	db, err := database.InitDB(cfg)
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// SeedUsers 按 id 批量建用户，和 repository 一样先过 model.Validate。
// repository 包内测试也用它，这里不能反向依赖 repository。
func SeedUsers(t testing.TB, db *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		u := &model.User{ID: id, Username: id}
		require.NoError(t, model.Validate(u))
		require.NoError(t, db.Create(u).Error)
	}
}

// SeedClip 建一个 owner 名下的 clip
func SeedClip(t testing.TB, db *gorm.DB, id, owner string) {
	t.Helper()
	require.NoError(t, db.Create(&model.Clip{ID: id, OwnerID: owner}).Error)
}
