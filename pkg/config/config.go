package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// AIプロバイダ設定
	AI AIConfig

	// GitHub設定
	GitHub GitHubConfig

	// Git設定
	Git GitConfig

	// インデックス作成設定
	Indexing IndexingConfig

	// コミット監視設定
	Commits CommitsConfig

	// ローカルユーザー設定
	User UserConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN はpgx用の接続文字列を返します
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// AIConfig はAIプロバイダ設定（テキスト生成 + Embeddings）
type AIConfig struct {
	Provider           string // "gemini" or "openai"
	GeminiAPIKey       string
	OpenAIAPIKey       string
	Model              string // テキスト生成モデル名（空の場合はプロバイダ既定値）
	EmbeddingModel     string // 埋め込みモデル名（空の場合はプロバイダ既定値）
	EmbeddingDimension int
}

// GitHubConfig はGitHub API設定
type GitHubConfig struct {
	Token string
}

// GitConfig はGit操作設定
type GitConfig struct {
	CloneDir    string
	SSHKeyPath  string
	SSHPassword string // SSH秘密鍵のパスワード（パスフレーズ）
}

// IndexingConfig はインデックス作成パイプライン設定
type IndexingConfig struct {
	// SourceProvider はファイル取得元。"github"（API経由）または "git"（clone経由）
	SourceProvider   string
	BatchSize        int
	BatchInterval    time.Duration
	FetchConcurrency int
}

// CommitsConfig はコミット監視設定
type CommitsConfig struct {
	PollLimit       int
	RefreshInterval time.Duration
}

// UserConfig はCLI利用時のローカルユーザー設定
type UserConfig struct {
	ID             string // UUID文字列。空の場合は固定のローカルユーザーIDを使う
	InitialCredits float64
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "repogpt"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "repogpt"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		AI: AIConfig{
			Provider:           getEnv("AI_PROVIDER", "gemini"),
			GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
			OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
			Model:              getEnv("AI_MODEL", ""),
			EmbeddingModel:     getEnv("AI_EMBEDDING_MODEL", ""),
			EmbeddingDimension: getEnvAsInt("AI_EMBEDDING_DIMENSION", 768),
		},
		GitHub: GitHubConfig{
			Token: getEnv("GITHUB_TOKEN", ""),
		},
		Git: GitConfig{
			CloneDir:    getEnv("GIT_CLONE_DIR", "/var/lib/repogpt/repos"),
			SSHKeyPath:  getEnv("GIT_SSH_KEY_PATH", ""),
			SSHPassword: getEnv("GIT_SSH_PASSWORD", ""),
		},
		Indexing: IndexingConfig{
			SourceProvider:   getEnv("INDEXING_SOURCE", "github"),
			BatchSize:        getEnvAsInt("INDEXING_BATCH_SIZE", 10),
			BatchInterval:    getEnvAsDuration("INDEXING_BATCH_INTERVAL", 500*time.Millisecond),
			FetchConcurrency: getEnvAsInt("INDEXING_FETCH_CONCURRENCY", 5),
		},
		Commits: CommitsConfig{
			PollLimit:       getEnvAsInt("COMMITS_POLL_LIMIT", 10),
			RefreshInterval: getEnvAsDuration("COMMITS_REFRESH_INTERVAL", 5*time.Minute),
		},
		User: UserConfig{
			ID:             getEnv("REPOGPT_USER_ID", ""),
			InitialCredits: getEnvAsFloat("REPOGPT_INITIAL_CREDITS", 1500),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数をtime.Durationとして取得します
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
