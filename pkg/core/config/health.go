package config

import "time"

// HealthConfig 健康门禁配置
type HealthConfig struct {
	// Path 健康检查路径（默认 /health）
	Path string `yaml:"path"`
	// Attempts 轮询次数上限（默认 60）
	Attempts int `yaml:"attempts" validate:"min=1" comment:"健康检查次数"`
	// Interval 轮询间隔（默认 1s，固定频率，无退避）
	Interval time.Duration `yaml:"interval"`
	// ExpectedStatus 健康响应 status 字段期望值（默认 UP）
	ExpectedStatus string `yaml:"expected_status"`
	// LogLines 失败时转储的日志行数（默认 200）
	LogLines int `yaml:"log_lines"`
}

// DefaultHealthConfig 返回默认配置
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		Path:           "/health",
		Attempts:       60,
		Interval:       time.Second,
		ExpectedStatus: "UP",
		LogLines:       200,
	}
}
