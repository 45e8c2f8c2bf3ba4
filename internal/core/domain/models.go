// Package domain file: internal/core/domain/models.go
package domain

// CreditGroup 代表一个命名的额度方案 (Plan)，用户可被分配到其中。
// 表 token_tracking_credit_group 由外部系统拥有，本工具只读写行。
type CreditGroup struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxCredit   int64  `json:"max_credit"`
	Description string `json:"description"`
}

// GroupAssignment 代表用户与额度组之间的多对多分配关系。
// 复合主键 (user_id, credit_group_id)，没有独立的行 ID。
type GroupAssignment struct {
	UserID        string `json:"user_id"`
	CreditGroupID string `json:"credit_group_id"`
}

// User 是外部系统拥有的身份记录，对本工具只读。
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ModelPricing 定义了单个模型的计费参数。
// 批量写入由外部 CLI 从清单文件完成，本工具仅支持查看和单条删除。
type ModelPricing struct {
	ID                string  `json:"id"`
	Provider          string  `json:"provider"`
	Name              string  `json:"name"`
	InputCostCredits  float64 `json:"input_cost_credits"`
	PerInputTokens    int64   `json:"per_input_tokens"`
	OutputCostCredits float64 `json:"output_cost_credits"`
	PerOutputTokens   int64   `json:"per_output_tokens"`
}

// BaseSetting 是 token_tracking_base_setting 表中的一条键值配置，
// 本工具对它拥有完整的 CRUD 生命周期。
type BaseSetting struct {
	Key         string `json:"setting_key"`
	Value       string `json:"setting_value"`
	Description string `json:"description"`
}

// ManifestEntry 是模型计费清单 (token_parity.json) 中的单条记录。
// 所有字段均为必填，任何一条记录校验失败都会导致整个清单被拒绝。
type ManifestEntry struct {
	Provider          string   `json:"provider" validate:"required"`
	ID                string   `json:"id" validate:"required"`
	Name              string   `json:"name" validate:"required"`
	InputCostCredits  *float64 `json:"input_cost_credits" validate:"required"`
	PerInputTokens    *int64   `json:"per_input_tokens" validate:"required"`
	OutputCostCredits *float64 `json:"output_cost_credits" validate:"required"`
	PerOutputTokens   *int64   `json:"per_output_tokens" validate:"required"`
}

// ColumnInfo 描述了物理表中单列的元数据 (来自 PRAGMA table_info)。
type ColumnInfo struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	NotNull      bool   `json:"not_null"`
	PrimaryKey   bool   `json:"primary_key"`
	DefaultValue string `json:"default_value,omitempty"`
}
