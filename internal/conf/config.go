// Package conf 负责集中式配置加载 (文件可选 + 环境变量覆盖)
package conf

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig 目标数据库的定位与连接等待配置
type DatabaseConfig struct {
	// URL 形如 sqlite:///path 或 sqlite+sqlcipher:///path；为空时按 CandidatePaths 顺序探测
	URL            string        `mapstructure:"url"`
	CandidatePaths []string      `mapstructure:"candidate_paths"`
	AwaitAttempts  int           `mapstructure:"await_attempts"`
	AwaitDelay     time.Duration `mapstructure:"await_delay"`
}

// QueryConfig 表格读取的行数上限配置
type QueryConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// BridgeConfig 外部 CLI 桥接配置
type BridgeConfig struct {
	Tool    string        `mapstructure:"tool"`
	Timeout time.Duration `mapstructure:"timeout"`
	// GraceDelay 是超时杀死子进程后，等待输出管道释放的宽限期
	GraceDelay  time.Duration `mapstructure:"grace_delay"`
	BackendDirs []string      `mapstructure:"backend_dirs"`
	// ManifestRelPath 是相对 backend 根目录的模型清单路径
	ManifestRelPath string `mapstructure:"manifest_rel_path"`
}

// AuthConfig 会话认证配置。Password 的默认值 admin123 仅为兼容原系统的
// 不安全默认值，启动时会打印告警。
type AuthConfig struct {
	Password     string        `mapstructure:"password"`
	PasswordHash string        `mapstructure:"password_hash"`
	JWTKey       string        `mapstructure:"jwt_key"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
}

// Config 聚合全部配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Query    QueryConfig    `mapstructure:"query"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

const defaultPort = 10331

// Load 加载配置。configFile 为空表示不读文件，仅使用默认值与环境变量。
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.log_level", "INFO")
	v.SetDefault("database.candidate_paths", []string{
		"/app/backend/data/webui.db",
		"/app/data/webui.db",
		"backend/data/webui.db",
	})
	v.SetDefault("database.await_attempts", 30)
	v.SetDefault("database.await_delay", 2*time.Second)
	v.SetDefault("query.default_limit", 100)
	v.SetDefault("query.max_limit", 10000)
	v.SetDefault("bridge.tool", "owui-token-tracking")
	v.SetDefault("bridge.timeout", 30*time.Second)
	v.SetDefault("bridge.grace_delay", 3*time.Second)
	v.SetDefault("bridge.backend_dirs", []string{"/app/backend", "backend"})
	v.SetDefault("bridge.manifest_rel_path", "token-tracking/token_parity.json")
	v.SetDefault("auth.password", "admin123")
	v.SetDefault("auth.session_ttl", 24*time.Hour)

	// 环境变量绑定。DATABASE_URL 沿用外部系统的裸变量名，其余带前缀。
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("auth.password", "CONSOLE_ADMIN_PASSWORD")
	_ = v.BindEnv("auth.password_hash", "CONSOLE_ADMIN_PASSWORD_HASH")
	_ = v.BindEnv("auth.jwt_key", "CONSOLE_JWT_KEY")
	_ = v.BindEnv("server.port", "CONSOLE_PORT")
	_ = v.BindEnv("server.log_level", "CONSOLE_LOG_LEVEL")
	_ = v.BindEnv("bridge.tool", "CONSOLE_BRIDGE_TOOL")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Auth.PasswordHash == "" && cfg.Auth.Password == "admin123" {
		log.Println("警告: 管理密码使用不安全的默认值 admin123，请设置 CONSOLE_ADMIN_PASSWORD。")
	}
	return &cfg, nil
}
