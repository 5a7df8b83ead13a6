package db

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/subpanel/internal/models"
	cfgpkg "github.com/fatflowers/subpanel/pkg/config"
)

func TestOpen_SQLiteAndMigrate(t *testing.T) {
	log := zap.NewNop().Sugar()
	gdb, err := Open(log, cfgpkg.DBConfig{Driver: cfgpkg.DBDriverSQLite, DSN: "file:db_open_test?mode=memory&cache=shared"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(log, gdb))

	for _, m := range []any{&models.Subscription{}, &models.Device{}, &models.AccessLog{}, &models.SoftwareRule{}, &models.SubscriptionLog{}} {
		require.True(t, gdb.Migrator().HasTable(m))
	}
	require.True(t, gdb.Migrator().HasIndex(&models.Device{}, "uk_device_hash_subscription"))

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, sqlDB.Close())
}

func TestOpen_Errors(t *testing.T) {
	log := zap.NewNop().Sugar()
	_, err := Open(log, cfgpkg.DBConfig{Driver: cfgpkg.DBDriverSQLite})
	require.Error(t, err)

	_, err = Open(log, cfgpkg.DBConfig{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
}
