package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations 将 users / registration_requests 表结构升级到最新版本并返回当前版本号
// 已是最新版本时不做任何变更；上次迁移中断（dirty）时返回错误，需人工修复后再启动
func RunMigrations(db *sql.DB, logger *zap.Logger) (uint, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("加载迁移文件失败: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return 0, fmt.Errorf("创建迁移驱动失败: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("初始化迁移实例失败: %w", err)
	}

	applied := true
	if err := m.Up(); err != nil {
		var dirty migrate.ErrDirty
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			applied = false
		case errors.As(err, &dirty):
			return 0, fmt.Errorf("数据库迁移处于 dirty 状态（version=%d），请修复后重试: %w", dirty.Version, err)
		default:
			return 0, fmt.Errorf("执行迁移失败: %w", err)
		}
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("读取迁移版本失败: %w", err)
	}

	logger.Info("数据库迁移完成", zap.Uint("version", version), zap.Bool("applied", applied))
	return version, nil
}
