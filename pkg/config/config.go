// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Vector        VectorConfig        `mapstructure:"vector"`
	Storage       StorageConfig       `mapstructure:"storage"`
	AI            AIConfig            `mapstructure:"ai"`
	MCP           MCPConfig           `mapstructure:"mcp"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Secrets       SecretsConfig       `mapstructure:"secrets"`
	Tasks         TasksConfig         `mapstructure:"tasks"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Timeout string `mapstructure:"timeout"`
}

// DatabaseConfig 关系库配置；URL 可被 DATABASE_URL 覆盖
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	PoolSize int    `mapstructure:"pool_size"`
}

// QueueConfig 持久化任务队列配置
type QueueConfig struct {
	VisibilityTimeout            string           `mapstructure:"visibility_timeout"`              // active 超过此时长未完成则回到 created，如 "5m"
	ArchiveCompletedAfterSeconds int              `mapstructure:"archive_completed_after_seconds"` // 终态任务归档阈值，默认 86400
	DeleteAfterSeconds           int              `mapstructure:"delete_after_seconds"`            // 归档行硬删除阈值，默认 604800
	MonitorStateIntervalSeconds  int              `mapstructure:"monitor_state_interval_seconds"`  // 监控/归档周期，默认 30
	Retry                        QueueRetryConfig `mapstructure:"retry"`
}

// QueueRetryConfig 队列默认重试策略
type QueueRetryConfig struct {
	Limit   int    `mapstructure:"limit"`   // 默认 3
	Delay   string `mapstructure:"delay"`   // 默认 "60s"
	Backoff bool   `mapstructure:"backoff"` // 默认 true（指数退避）
}

// VectorConfig 向量存储配置（sqlite 为内置文件库；redis 使用 eino-ext 组件；memory 仅测试）
type VectorConfig struct {
	Backend    string `mapstructure:"backend"`    // sqlite | redis | memory
	Path       string `mapstructure:"path"`       // sqlite 文件目录，按需创建
	Collection string `mapstructure:"collection"` // 逻辑索引名，默认 "blinko"
	Redis      struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
}

// StorageConfig 附件对象存储配置
type StorageConfig struct {
	Type           string   `mapstructure:"type"` // local | s3
	LocalBasePath  string   `mapstructure:"local_base_path"`
	LocalTempDir   string   `mapstructure:"local_temp_dir"` // 基目录下临时子目录名，默认 "temp"
	BackupDir      string   `mapstructure:"backup_dir"`     // 数据库备份目录名，默认 "backups"
	S3             S3Config `mapstructure:"s3"`
	UploadMaxBytes int64    `mapstructure:"upload_max_bytes"`
}

// S3Config S3 兼容对象存储配置
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	CustomPath      string `mapstructure:"custom_path"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// AIConfig AI 引导配置；mainModelId 等可在设置表中运行时覆盖
type AIConfig struct {
	MainModelID         int64                `mapstructure:"main_model_id"`
	EmbeddingModelID    int64                `mapstructure:"embedding_model_id"`
	VoiceModelID        int64                `mapstructure:"voice_model_id"`
	ImageModelID        int64                `mapstructure:"image_model_id"`
	EmbeddingTopK       int                  `mapstructure:"embedding_top_k"` // 默认 3
	EmbeddingScore      float64              `mapstructure:"embedding_score"` // 默认 0.4
	ExcludeEmbeddingTag int64                `mapstructure:"exclude_embedding_tag_id"`
	EmbeddingSplitter   string               `mapstructure:"embedding_splitter"` // markdown | token，默认 markdown
	GlobalPrompt        string               `mapstructure:"global_prompt"`
	ProxyURL            string               `mapstructure:"proxy_url"` // 出站 AI 请求统一代理
	Tavily              TavilyConfig         `mapstructure:"tavily"`
	PostProcessing      PostProcessingConfig `mapstructure:"post_processing"`
}

// TavilyConfig Tavily 搜索配置
type TavilyConfig struct {
	APIKey    string `mapstructure:"api_key"`
	MaxResult int    `mapstructure:"max_result"` // 默认 5
}

// PostProcessingConfig 笔记后处理配置
type PostProcessingConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Mode            string `mapstructure:"mode"` // comment | tags | smartEdit | custom | both
	CommentPrompt   string `mapstructure:"comment_prompt"`
	TagsPrompt      string `mapstructure:"tags_prompt"`
	SmartEditPrompt string `mapstructure:"smart_edit_prompt"`
	CustomPrompt    string `mapstructure:"custom_prompt"`
}

// MCPConfig MCP 联邦配置
type MCPConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Servers []MCPServerConfig `mapstructure:"servers"`
}

// MCPServerConfig 单个远端 MCP 服务配置
type MCPServerConfig struct {
	Name  string `mapstructure:"name"`
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// JWTConfig 认证配置
type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Timeout    string `mapstructure:"timeout"`     // 如 "24h"
	MaxRefresh string `mapstructure:"max_refresh"` // 如 "24h"
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// ObservabilityConfig 链路追踪配置（OpenTelemetry，默认关闭）
type ObservabilityConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
}

// SecretsConfig 密钥解析后端配置
type SecretsConfig struct {
	Backend string `mapstructure:"backend"` // env | memory | vault
	Vault   struct {
		Addr  string `mapstructure:"addr"`
		Token string `mapstructure:"token"`
	} `mapstructure:"vault"`
}

// TasksConfig 系统内置任务配置
type TasksConfig struct {
	AutoArchivedDays int  `mapstructure:"auto_archived_days"` // 默认 30
	EnableRestore    bool `mapstructure:"enable_restore"`     // dbbak 恢复默认关闭，显式开启
}

// LoadConfig 加载配置文件；环境变量可覆盖同名键（点换下划线）
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	applyEnvOverrides(&config)
	return &config, nil
}

// Default 不读文件时的缺省配置（测试与 CLI 用）
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	_ = v.Unmarshal(&config)
	applyEnvOverrides(&config)
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 1111)
	v.SetDefault("queue.visibility_timeout", "5m")
	v.SetDefault("queue.archive_completed_after_seconds", 86400)
	v.SetDefault("queue.delete_after_seconds", 604800)
	v.SetDefault("queue.monitor_state_interval_seconds", 30)
	v.SetDefault("queue.retry.limit", 3)
	v.SetDefault("queue.retry.delay", "60s")
	v.SetDefault("queue.retry.backoff", true)
	v.SetDefault("vector.backend", "sqlite")
	v.SetDefault("vector.path", ".blinko/vectordb")
	v.SetDefault("vector.collection", "blinko")
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_base_path", ".blinko/files")
	v.SetDefault("storage.local_temp_dir", "temp")
	v.SetDefault("storage.backup_dir", "backups")
	v.SetDefault("ai.embedding_top_k", 3)
	v.SetDefault("ai.embedding_score", 0.4)
	v.SetDefault("ai.tavily.max_result", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("secrets.backend", "env")
	v.SetDefault("tasks.auto_archived_days", 30)
	v.SetDefault("tasks.enable_restore", false)
}

// applyEnvOverrides 处理两类环境覆盖：DATABASE_URL 与 APP_ENV
func applyEnvOverrides(config *Config) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.Database.URL = dsn
	}
	if env := os.Getenv("APP_ENV"); env == "development" || env == "dev" {
		if config.Log.Level == "" || config.Log.Level == "info" {
			config.Log.Level = "debug"
		}
	}
	replaceEnvVars(config)
}

// replaceEnvVars 将 ${VAR} 形式的密钥字段替换为环境变量值
func replaceEnvVars(config *Config) {
	expand := func(s string) string {
		if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
			if val := os.Getenv(strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")); val != "" {
				return val
			}
		}
		return s
	}
	config.Database.URL = expand(config.Database.URL)
	config.JWT.Secret = expand(config.JWT.Secret)
	config.AI.Tavily.APIKey = expand(config.AI.Tavily.APIKey)
	config.Storage.S3.AccessKeyID = expand(config.Storage.S3.AccessKeyID)
	config.Storage.S3.AccessKeySecret = expand(config.Storage.S3.AccessKeySecret)
	config.Secrets.Vault.Token = expand(config.Secrets.Vault.Token)
	for i := range config.MCP.Servers {
		config.MCP.Servers[i].Token = expand(config.MCP.Servers[i].Token)
	}
}
