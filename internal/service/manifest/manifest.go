// Package manifest 管理模型计费清单文件 (token_parity.json) 的读取、
// 逐条校验与原子回写。校验失败的清单整体拒绝，不做部分接受。
// internal/service/manifest/manifest.go
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"TokenConsole/internal/core/domain"
)

// ErrManifestMissing 表示清单文件不存在或 backend 根目录未定位到。
var ErrManifestMissing = errors.New("模型计费清单文件不存在")

// ValidationError 聚合清单中所有不合格记录的细节，一次性报告。
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("清单校验失败，共 %d 处问题: %s", len(e.Issues), strings.Join(e.Issues, "; "))
}

// PathFunc 返回清单文件的绝对路径，由桥接层在启动时定位。
type PathFunc func() string

// Service 提供清单的加载与保存。
type Service struct {
	path     PathFunc
	validate *validator.Validate
}

func NewService(path PathFunc) *Service {
	return &Service{
		path:     path,
		validate: validator.New(),
	}
}

// Load 读取并校验清单。任何一条记录不合格都返回 *ValidationError，
// 同时附带已解析的内容供前端展示出错位置。
func (s *Service) Load() ([]domain.ManifestEntry, error) {
	p := s.path()
	if p == "" {
		return nil, ErrManifestMissing
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestMissing, p)
		}
		return nil, fmt.Errorf("读取清单文件失败: %w", err)
	}

	var entries []domain.ManifestEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("清单不是合法的 JSON 数组: %w", err)
	}

	if err := s.Check(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Check 逐条校验清单记录，汇总所有问题后一次性返回。
func (s *Service) Check(entries []domain.ManifestEntry) error {
	var issues []string
	for i, entry := range entries {
		if err := s.validate.Struct(entry); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) {
				for _, fe := range fieldErrs {
					issues = append(issues, fmt.Sprintf("第 %d 条记录缺少必填字段 '%s'", i+1, fieldJSONName(fe.Field())))
				}
			} else {
				issues = append(issues, fmt.Sprintf("第 %d 条记录校验失败: %v", i+1, err))
			}
		}
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// Save 校验后原子写回清单：先写临时文件，再 rename 覆盖，
// 避免写一半时清单文件处于损坏状态。
func (s *Service) Save(entries []domain.ManifestEntry) error {
	if err := s.Check(entries); err != nil {
		return err
	}
	p := s.path()
	if p == "" {
		return ErrManifestMissing
	}

	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("序列化清单失败: %w", err)
	}

	dir := filepath.Dir(p)
	tmp, err := os.CreateTemp(dir, ".token_parity-*.json")
	if err != nil {
		return fmt.Errorf("创建临时清单文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("写入临时清单文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("关闭临时清单文件失败: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("替换清单文件失败: %w", err)
	}
	return nil
}

// fieldJSONName 把结构体字段名映射回清单中的 JSON 键名。
func fieldJSONName(field string) string {
	f, ok := jsonNames[field]
	if !ok {
		return strings.ToLower(field)
	}
	return f
}

var jsonNames = map[string]string{
	"Provider":          "provider",
	"ID":                "id",
	"Name":              "name",
	"InputCostCredits":  "input_cost_credits",
	"PerInputTokens":    "per_input_tokens",
	"OutputCostCredits": "output_cost_credits",
	"PerOutputTokens":   "per_output_tokens",
}
