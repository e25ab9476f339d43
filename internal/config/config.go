// Package config 配置
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config 服务配置
type Config struct {
	ServiceName string
	HTTPPort    int

	// 账本后端：postgres 或 memory（仿真盘）
	StoreBackend string

	// PostgreSQL
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisAddr     string
	RedisPassword string
	EventChannel  string

	// 仿真通道
	SimTraderID  string
	SimLatencyMs int

	// 日终结算，cron 表达式
	SettleSpec string

	WorkerID int64
}

// Load 加载配置
func Load() *Config {
	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "traderd"),
		HTTPPort:    getEnvInt("HTTP_PORT", 8090),

		StoreBackend: getEnv("STORE_BACKEND", "postgres"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5436),
		DBUser:     getEnv("DB_USER", "trader"),
		DBPassword: getEnv("DB_PASSWORD", "trader123"),
		DBName:     getEnv("DB_NAME", "trader"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6380"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		EventChannel:  getEnv("EVENT_CHANNEL", "trader:events"),

		SimTraderID:  getEnv("SIM_TRADER_ID", "sim-01"),
		SimLatencyMs: getEnvInt("SIM_LATENCY_MS", 10),

		// 默认每个交易日 15:30 结算
		SettleSpec: getEnv("SETTLE_SPEC", "30 15 * * 1-5"),

		WorkerID: int64(getEnvInt("WORKER_ID", 1)),
	}
}

// DSN 返回数据库连接字符串
func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" port=" + strconv.Itoa(c.DBPort) +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" sslmode=disable"
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown store backend: %s", c.StoreBackend)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.HTTPPort)
	}
	if c.WorkerID < 0 || c.WorkerID > 1023 {
		return fmt.Errorf("invalid worker id: %d", c.WorkerID)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
