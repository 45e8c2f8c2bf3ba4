// internal/service/manifest/manifest_test.go
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"TokenConsole/internal/core/domain"
)

const validManifest = `[
    {
        "provider": "openai",
        "id": "gpt-4o",
        "name": "GPT-4o",
        "input_cost_credits": 5.0,
        "per_input_tokens": 1000000,
        "output_cost_credits": 15.0,
        "per_output_tokens": 1000000
    },
    {
        "provider": "anthropic",
        "id": "claude-sonnet",
        "name": "Claude Sonnet",
        "input_cost_credits": 3.0,
        "per_input_tokens": 1000000,
        "output_cost_credits": 15.0,
        "per_output_tokens": 1000000
    }
]`

// newTestService 把给定内容写入临时清单文件并返回服务实例与路径。
func newTestService(t *testing.T, content string) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "token_parity.json")
	if content != "" {
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return NewService(func() string { return p }), p
}

// ===============================
// 清单加载与校验
// ===============================

func TestLoad_ValidManifest(t *testing.T) {
	svc, _ := newTestService(t, validManifest)

	entries, err := svc.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "gpt-4o", entries[0].ID)
	require.Equal(t, 5.0, *entries[0].InputCostCredits)
}

func TestLoad_MissingFile(t *testing.T) {
	svc, _ := newTestService(t, "")

	_, err := svc.Load()
	require.ErrorIs(t, err, ErrManifestMissing)
}

func TestLoad_EmptyPath(t *testing.T) {
	svc := NewService(func() string { return "" })

	_, err := svc.Load()
	require.ErrorIs(t, err, ErrManifestMissing)
}

func TestLoad_MalformedJSON(t *testing.T) {
	svc, _ := newTestService(t, `{"not": "an array"`)

	_, err := svc.Load()
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrManifestMissing)
}

func TestLoad_MissingFieldRejectsWholeManifest(t *testing.T) {
	// 第二条记录缺少 per_output_tokens，整个清单都应被拒绝
	broken := `[
        {
            "provider": "openai", "id": "a", "name": "A",
            "input_cost_credits": 1, "per_input_tokens": 1,
            "output_cost_credits": 1, "per_output_tokens": 1
        },
        {
            "provider": "openai", "id": "b", "name": "B",
            "input_cost_credits": 1, "per_input_tokens": 1,
            "output_cost_credits": 1
        }
    ]`
	svc, _ := newTestService(t, broken)

	_, err := svc.Load()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr, "记录缺字段应返回聚合校验错误")
	require.Len(t, verr.Issues, 1)
	require.Contains(t, verr.Issues[0], "第 2 条记录")
	require.Contains(t, verr.Issues[0], "per_output_tokens")
}

func TestCheck_ReportsAllIssuesAtOnce(t *testing.T) {
	svc := NewService(func() string { return "" })
	one := 1.0
	n := int64(1)
	entries := []domain.ManifestEntry{
		{Provider: "p", ID: "a", Name: "A", InputCostCredits: &one, PerInputTokens: &n, OutputCostCredits: &one, PerOutputTokens: &n},
		{Provider: "p"}, // 缺多个字段
	}

	err := svc.Check(entries)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.GreaterOrEqual(t, len(verr.Issues), 5, "同一条记录的多处缺失应全部报告")
}

// ===============================
// 原子保存
// ===============================

func TestSave_RoundTrip(t *testing.T) {
	svc, p := newTestService(t, validManifest)

	entries, err := svc.Load()
	require.NoError(t, err)

	entries[0].Name = "GPT-4o (更新)"
	require.NoError(t, svc.Save(entries))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	var reloaded []domain.ManifestEntry
	require.NoError(t, json.Unmarshal(raw, &reloaded))
	require.Equal(t, "GPT-4o (更新)", reloaded[0].Name)
}

func TestSave_InvalidEntriesLeaveFileUntouched(t *testing.T) {
	svc, p := newTestService(t, validManifest)
	before, err := os.ReadFile(p)
	require.NoError(t, err)

	err = svc.Save([]domain.ManifestEntry{{Provider: "only"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	after, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, before, after, "校验失败时原文件不应被改动")
}
