// Package store 针对外部拥有的 token-tracking 各表的领域化读写。
// internal/service/store/creditgroup.go
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

// DBProvider 提供已就绪的数据库连接。生产实现是 sqlite.Provider。
type DBProvider interface {
	Connect(ctx context.Context) (*sql.DB, error)
}

// CreditGroupStore 读写 token_tracking_credit_group 及其用户分配表。
type CreditGroupStore struct {
	provider DBProvider
}

// NewCreditGroupStore 创建额度组存储。
func NewCreditGroupStore(p DBProvider) *CreditGroupStore {
	return &CreditGroupStore{provider: p}
}

// List 返回全部额度组，按名称排序。
func (s *CreditGroupStore) List(ctx context.Context) ([]domain.CreditGroup, error) {
	db, err := s.provider.Connect(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, name, max_credit, description FROM token_tracking_credit_group ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("查询额度组列表失败: %w", err)
	}
	defer rows.Close()

	var groups []domain.CreditGroup
	for rows.Next() {
		var g domain.CreditGroup
		var desc sql.NullString
		if errScan := rows.Scan(&g.ID, &g.Name, &g.MaxCredit, &desc); errScan != nil {
			slog.Warn("[CreditGroupStore] 扫描额度组行失败，已跳过", "error", errScan)
			continue
		}
		g.Description = desc.String
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Get 按 ID 返回单个额度组，不存在时返回 port.ErrNotFound。
func (s *CreditGroupStore) Get(ctx context.Context, id string) (*domain.CreditGroup, error) {
	db, err := s.provider.Connect(ctx)
	if err != nil {
		return nil, err
	}

	var g domain.CreditGroup
	var desc sql.NullString
	err = db.QueryRowContext(ctx,
		`SELECT id, name, max_credit, description FROM token_tracking_credit_group WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.MaxCredit, &desc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: 额度组 '%s'", port.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("查询额度组 '%s' 失败: %w", id, err)
	}
	g.Description = desc.String
	return &g, nil
}

// Assignments 返回指定额度组的全部用户分配行。
func (s *CreditGroupStore) Assignments(ctx context.Context, groupID string) ([]domain.GroupAssignment, error) {
	db, err := s.provider.Connect(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT user_id, credit_group_id FROM token_tracking_credit_group_user WHERE credit_group_id = ?`, groupID)
	if err != nil {
		return nil, fmt.Errorf("查询额度组 '%s' 的用户分配失败: %w", groupID, err)
	}
	defer rows.Close()

	var assignments []domain.GroupAssignment
	for rows.Next() {
		var a domain.GroupAssignment
		if errScan := rows.Scan(&a.UserID, &a.CreditGroupID); errScan != nil {
			slog.Warn("[CreditGroupStore] 扫描分配行失败，已跳过", "error", errScan)
			continue
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// DeleteCascade 删除额度组及其全部用户分配。数据库层没有外键级联，
// 两条 DELETE 在同一事务内执行：要么全部生效要么全部回滚。
// 删除不存在的额度组影响零行，不是错误。
func (s *CreditGroupStore) DeleteCascade(ctx context.Context, id string) (assignments, groups int64, err error) {
	db, err := s.provider.Connect(ctx)
	if err != nil {
		return 0, 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("开启事务失败 (额度组 '%s'): %w", id, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
			slog.Warn("[CreditGroupStore] 级联删除失败，事务已回滚", "group_id", id, "error", err)
		} else {
			if commitErr := tx.Commit(); commitErr != nil {
				err = fmt.Errorf("提交事务失败 (额度组 '%s'): %w", id, commitErr)
			}
		}
	}()

	// 先删分配行，再删组本身
	resAssign, err := tx.ExecContext(ctx,
		`DELETE FROM token_tracking_credit_group_user WHERE credit_group_id = ?`, id)
	if err != nil {
		return 0, 0, fmt.Errorf("删除额度组 '%s' 的用户分配失败: %w", id, err)
	}
	assignments, _ = resAssign.RowsAffected()

	resGroup, err := tx.ExecContext(ctx,
		`DELETE FROM token_tracking_credit_group WHERE id = ?`, id)
	if err != nil {
		return 0, 0, fmt.Errorf("删除额度组 '%s' 失败: %w", id, err)
	}
	groups, _ = resGroup.RowsAffected()

	return assignments, groups, nil
}
