// Package store file: internal/service/store/pricing.go
package store

import (
	"context"
	"fmt"
	"log/slog"

	"TokenConsole/internal/core/domain"
)

// PricingStore 读 token_tracking_model_pricing。批量写入由外部 CLI
// 从清单文件完成，这里只支持查看与单条删除。
type PricingStore struct {
	provider DBProvider
}

// NewPricingStore 创建模型计费存储。
func NewPricingStore(p DBProvider) *PricingStore {
	return &PricingStore{provider: p}
}

// List 返回全部模型计费记录，按 provider、name 排序。
func (s *PricingStore) List(ctx context.Context) ([]domain.ModelPricing, error) {
	db, err := s.provider.Connect(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT id, provider, name, input_cost_credits, per_input_tokens, output_cost_credits, per_output_tokens
        FROM token_tracking_model_pricing ORDER BY provider, name`)
	if err != nil {
		return nil, fmt.Errorf("查询模型计费列表失败: %w", err)
	}
	defer rows.Close()

	var models []domain.ModelPricing
	for rows.Next() {
		var m domain.ModelPricing
		if errScan := rows.Scan(&m.ID, &m.Provider, &m.Name,
			&m.InputCostCredits, &m.PerInputTokens, &m.OutputCostCredits, &m.PerOutputTokens); errScan != nil {
			slog.Warn("[PricingStore] 扫描模型计费行失败，已跳过", "error", errScan)
			continue
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// Delete 按 ID 删除单条计费记录，返回受影响行数。
func (s *PricingStore) Delete(ctx context.Context, id string) (int64, error) {
	db, err := s.provider.Connect(ctx)
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		`DELETE FROM token_tracking_model_pricing WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("删除模型计费记录 '%s' 失败: %w", id, err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
