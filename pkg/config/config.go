package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RSSFeed RSS新闻源
type RSSFeed struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Region string `yaml:"region"`
}

// Config 应用配置
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	Storage struct {
		Driver string `yaml:"driver"` // postgres / memory
	} `yaml:"storage"`

	Database struct {
		Postgres struct {
			Host         string `yaml:"host"`
			Port         int    `yaml:"port"`
			User         string `yaml:"user"`
			Password     string `yaml:"password"`
			DBName       string `yaml:"dbname"`
			SSLMode      string `yaml:"sslmode"`
			MaxOpenConns int    `yaml:"max_open_conns"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"postgres"`
	} `yaml:"database"`

	Redis struct {
		URL      string        `yaml:"url"`
		PriceTTL time.Duration `yaml:"price_ttl"`
	} `yaml:"redis"`

	NATS struct {
		URL            string `yaml:"url"`
		ClusterID      string `yaml:"cluster_id"`
		ClientID       string `yaml:"client_id"`
		CrawlerSubject string `yaml:"crawler_subject"`
	} `yaml:"nats"`

	API struct {
		Port         string        `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		AllowOrigins []string      `yaml:"allow_origins"`
	} `yaml:"api"`

	LLM struct {
		Provider  string        `yaml:"provider"` // openai / anthropic / compatible
		APIURL    string        `yaml:"api_url"`
		APIKey    string        `yaml:"api_key"`
		Model     string        `yaml:"model"`
		MaxTokens int           `yaml:"max_tokens"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Sources struct {
		FinnhubAPIKey   string    `yaml:"finnhub_api_key"`
		FinnhubCategory string    `yaml:"finnhub_category"`
		RSS             []RSSFeed `yaml:"rss"`
	} `yaml:"sources"`

	Pipeline struct {
		ScreenCap             int           `yaml:"screen_cap"`
		ScreenBatchSize       int           `yaml:"screen_batch_size"`
		Concurrency           int           `yaml:"concurrency"`
		MaxAttempts           int           `yaml:"max_attempts"`
		BackoffBase           time.Duration `yaml:"backoff_base"`
		SimilarityThreshold   float64       `yaml:"similarity_threshold"`
		VerificationThreshold float64       `yaml:"verification_threshold"` // 百分比
	} `yaml:"pipeline"`

	Scoring struct {
		ContinuityLookbackDays int `yaml:"continuity_lookback_days"`
		RescoreRetentionDays   int `yaml:"rescore_retention_days"`
	} `yaml:"scoring"`

	Batch struct {
		LookbackHours   int           `yaml:"lookback_hours"`
		Timezone        string        `yaml:"timezone"`
		StaleRunTimeout time.Duration `yaml:"stale_run_timeout"`
		RunTimeout      time.Duration `yaml:"run_timeout"`
		Watchlist       []string      `yaml:"watchlist"`
	} `yaml:"batch"`

	Scheduler struct {
		Enabled     bool   `yaml:"enabled"`
		DailyCron   string `yaml:"daily_cron"`
		RescoreCron string `yaml:"rescore_cron"`
	} `yaml:"scheduler"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text / json
	} `yaml:"logging"`
}

// Default 默认配置
func Default() *Config {
	var c Config
	c.App.Name = "newsradar"
	c.App.Env = "dev"
	c.Storage.Driver = "postgres"

	c.Database.Postgres.Host = "localhost"
	c.Database.Postgres.Port = 5432
	c.Database.Postgres.User = "postgres"
	c.Database.Postgres.DBName = "newsradar"
	c.Database.Postgres.SSLMode = "disable"
	c.Database.Postgres.MaxOpenConns = 25
	c.Database.Postgres.MaxIdleConns = 5

	c.Redis.PriceTTL = time.Hour
	c.NATS.ClusterID = "newsradar-cluster"
	c.NATS.ClientID = "newsradar"
	c.NATS.CrawlerSubject = "news.crawler"

	c.API.Port = "8080"
	c.API.ReadTimeout = 15 * time.Second
	c.API.WriteTimeout = 15 * time.Minute // 同步批处理请求
	c.API.AllowOrigins = []string{"http://localhost:3000"}

	c.LLM.Provider = "openai"
	c.LLM.Model = "gpt-4o-mini"
	c.LLM.MaxTokens = 4096
	c.LLM.Timeout = 90 * time.Second

	c.Sources.FinnhubCategory = "general"

	c.Pipeline.ScreenCap = 30
	c.Pipeline.ScreenBatchSize = 20
	c.Pipeline.Concurrency = 4
	c.Pipeline.MaxAttempts = 3
	c.Pipeline.BackoffBase = 2 * time.Second
	c.Pipeline.SimilarityThreshold = 0.85
	c.Pipeline.VerificationThreshold = 0.3

	c.Scoring.ContinuityLookbackDays = 7
	c.Scoring.RescoreRetentionDays = 14

	c.Batch.LookbackHours = 24
	c.Batch.Timezone = "UTC"
	c.Batch.StaleRunTimeout = 2 * time.Hour
	c.Batch.RunTimeout = time.Hour

	c.Scheduler.Enabled = true
	c.Scheduler.DailyCron = "0 0 6 * * *"
	c.Scheduler.RescoreCron = "@every 1h"

	c.Logging.Level = "info"
	c.Logging.Format = "text"
	return &c
}

// LoadConfig 从文件加载配置，文件不存在时使用默认值
func LoadConfig(path string) (*Config, error) {
	config := Default()

	// 读取配置文件
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 环境变量覆盖
	overrideFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("未知的存储驱动: %s", c.Storage.Driver)
	}
	switch c.LLM.Provider {
	case "openai", "anthropic", "compatible":
	default:
		return fmt.Errorf("未知的LLM提供方: %s", c.LLM.Provider)
	}
	if c.Pipeline.ScreenCap < 1 {
		return fmt.Errorf("pipeline.screen_cap 必须大于0")
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency 必须大于0")
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline.max_attempts 必须大于0")
	}
	if c.Batch.LookbackHours < 1 {
		return fmt.Errorf("batch.lookback_hours 必须大于0")
	}
	if _, err := time.LoadLocation(c.Batch.Timezone); err != nil {
		return fmt.Errorf("无效的时区 %s: %w", c.Batch.Timezone, err)
	}
	return nil
}

// Location 批处理日期所用时区
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Batch.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PostgresDSN 构建连接字符串
func (c *Config) PostgresDSN() string {
	p := c.Database.Postgres
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// overrideFromEnv 使用环境变量覆盖配置
func overrideFromEnv(config *Config) {
	if env := os.Getenv("APP_NAME"); env != "" {
		config.App.Name = env
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		config.App.Env = env
	}
	if env := os.Getenv("STORAGE_DRIVER"); env != "" {
		config.Storage.Driver = env
	}

	// 数据库配置
	if env := os.Getenv("DB_HOST"); env != "" {
		config.Database.Postgres.Host = env
	}
	if env := os.Getenv("DB_PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil && port > 0 {
			config.Database.Postgres.Port = port
		}
	}
	if env := os.Getenv("DB_USER"); env != "" {
		config.Database.Postgres.User = env
	}
	if env := os.Getenv("DB_PASSWORD"); env != "" {
		config.Database.Postgres.Password = env
	}
	if env := os.Getenv("DB_NAME"); env != "" {
		config.Database.Postgres.DBName = env
	}

	if env := os.Getenv("REDIS_URL"); env != "" {
		config.Redis.URL = env
	}

	// NATS配置
	if env := os.Getenv("NATS_URL"); env != "" {
		config.NATS.URL = env
	}
	if env := os.Getenv("NATS_CLUSTER_ID"); env != "" {
		config.NATS.ClusterID = env
	}
	if env := os.Getenv("NATS_CLIENT_ID"); env != "" {
		config.NATS.ClientID = env
	}

	// LLM配置
	if env := os.Getenv("LLM_PROVIDER"); env != "" {
		config.LLM.Provider = env
	}
	if env := os.Getenv("LLM_API_URL"); env != "" {
		config.LLM.APIURL = env
	}
	if env := os.Getenv("LLM_API_KEY"); env != "" {
		config.LLM.APIKey = env
	}
	if env := os.Getenv("LLM_MODEL"); env != "" {
		config.LLM.Model = env
	}

	if env := os.Getenv("FINNHUB_API_KEY"); env != "" {
		config.Sources.FinnhubAPIKey = env
	}
	if env := os.Getenv("WATCHLIST"); env != "" {
		config.Batch.Watchlist = splitList(env)
	}

	if env := os.Getenv("API_PORT"); env != "" {
		config.API.Port = env
	}
	if env := os.Getenv("FRONTEND_URL"); env != "" {
		config.API.AllowOrigins = append(config.API.AllowOrigins, env)
	}
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		config.Logging.Level = env
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

// GetDefaultConfigPath 获取默认配置文件路径
func GetDefaultConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev" // 默认开发环境
	}

	return fmt.Sprintf("configs/%s/app.yaml", env)
}
