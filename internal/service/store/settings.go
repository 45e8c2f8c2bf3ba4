// Package store file: internal/service/store/settings.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"TokenConsole/internal/core/domain"
	"TokenConsole/internal/core/port"
)

// SettingStore 对 token_tracking_base_setting 提供完整的 CRUD 生命周期。
type SettingStore struct {
	provider DBProvider
}

// NewSettingStore 创建基础配置存储。
func NewSettingStore(p DBProvider) *SettingStore {
	return &SettingStore{provider: p}
}

// List 返回全部配置项，按键排序。
func (s *SettingStore) List(ctx context.Context) ([]domain.BaseSetting, error) {
	db, err := s.provider.Connect(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT setting_key, setting_value, description FROM token_tracking_base_setting ORDER BY setting_key`)
	if err != nil {
		return nil, fmt.Errorf("查询配置项列表失败: %w", err)
	}
	defer rows.Close()

	var settings []domain.BaseSetting
	for rows.Next() {
		var st domain.BaseSetting
		var value, desc sql.NullString
		if errScan := rows.Scan(&st.Key, &value, &desc); errScan != nil {
			slog.Warn("[SettingStore] 扫描配置行失败，已跳过", "error", errScan)
			continue
		}
		st.Value, st.Description = value.String, desc.String
		settings = append(settings, st)
	}
	return settings, rows.Err()
}

// Get 按键返回单个配置项，不存在时返回 port.ErrNotFound。
func (s *SettingStore) Get(ctx context.Context, key string) (*domain.BaseSetting, error) {
	db, err := s.provider.Connect(ctx)
	if err != nil {
		return nil, err
	}

	var st domain.BaseSetting
	var value, desc sql.NullString
	err = db.QueryRowContext(ctx,
		`SELECT setting_key, setting_value, description FROM token_tracking_base_setting WHERE setting_key = ?`, key).
		Scan(&st.Key, &value, &desc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: 配置项 '%s'", port.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("查询配置项 '%s' 失败: %w", key, err)
	}
	st.Value, st.Description = value.String, desc.String
	return &st, nil
}

// Create 新增一个配置项。键冲突属于查询错误，原样上报。
func (s *SettingStore) Create(ctx context.Context, st domain.BaseSetting) error {
	if st.Key == "" {
		return errors.New("setting_key 不能为空")
	}
	db, err := s.provider.Connect(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO token_tracking_base_setting (setting_key, setting_value, description) VALUES (?, ?, ?)`,
		st.Key, st.Value, st.Description)
	if err != nil {
		return fmt.Errorf("新增配置项 '%s' 失败: %w", st.Key, err)
	}
	return nil
}

// Update 按键更新配置项，返回受影响行数。
// 未知键影响零行：这是正常结果，与 SQL 执行错误严格区分。
func (s *SettingStore) Update(ctx context.Context, st domain.BaseSetting) (int64, error) {
	if st.Key == "" {
		return 0, errors.New("setting_key 不能为空")
	}
	db, err := s.provider.Connect(ctx)
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE token_tracking_base_setting SET setting_value = ?, description = ? WHERE setting_key = ?`,
		st.Value, st.Description, st.Key)
	if err != nil {
		return 0, fmt.Errorf("更新配置项 '%s' 失败: %w", st.Key, err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// Delete 按键删除配置项，返回受影响行数 (零行同样是正常结果)。
func (s *SettingStore) Delete(ctx context.Context, key string) (int64, error) {
	db, err := s.provider.Connect(ctx)
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		`DELETE FROM token_tracking_base_setting WHERE setting_key = ?`, key)
	if err != nil {
		return 0, fmt.Errorf("删除配置项 '%s' 失败: %w", key, err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
