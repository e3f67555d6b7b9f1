package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 部署工具完整配置
// 来源优先级：默认值 < 配置文件 < FABU_* 环境变量
type Config struct {
	App       AppConfig       `yaml:"app"`
	Scaffold  ScaffoldConfig  `yaml:"scaffold"`
	Build     BuildConfig     `yaml:"build"`
	Nginx     NginxConfig     `yaml:"nginx"`
	Systemd   SystemdConfig   `yaml:"systemd"`
	Health    HealthConfig    `yaml:"health"`
	Retention RetentionConfig `yaml:"retention"`
	Canary    CanaryConfig    `yaml:"canary"`
	TLS       TLSConfig       `yaml:"tls"`
	Firewall  FirewallConfig  `yaml:"firewall"`
	Log       LogConfig       `yaml:"log"`
	// Rollback 回滚模式（只能通过环境变量或命令行开启）
	Rollback bool `yaml:"-"`
}

// Default 返回全默认配置
func Default() *Config {
	return &Config{
		App:       DefaultAppConfig(),
		Scaffold:  DefaultScaffoldConfig(),
		Build:     DefaultBuildConfig(),
		Nginx:     DefaultNginxConfig(),
		Systemd:   DefaultSystemdConfig(),
		Health:    DefaultHealthConfig(),
		Retention: DefaultRetentionConfig(),
		TLS:       DefaultTLSConfig(),
		Firewall:  DefaultFirewallConfig(),
		Log:       DefaultLogConfig(),
	}
}

// Load 加载配置：默认值 + 可选 YAML 文件 + 环境变量覆盖
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	cfg.ApplyEnv()
	cfg.applyDefaults()

	return cfg, nil
}

// applyDefaults 补齐零值字段与派生默认值
func (c *Config) applyDefaults() {
	if c.App.PortBlue == 0 {
		c.App.PortBlue = 8080
	}
	if c.App.PortGreen == 0 {
		c.App.PortGreen = 8081
	}
	if c.App.ListenPort == 0 {
		c.App.ListenPort = 80
	}
	if c.Health.Attempts == 0 {
		c.Health.Attempts = 60
	}
	if c.Health.Interval == 0 {
		c.Health.Interval = time.Second
	}
	if c.Health.Path == "" {
		c.Health.Path = "/health"
	}
	if c.Health.ExpectedStatus == "" {
		c.Health.ExpectedStatus = "UP"
	}
	if c.Health.LogLines == 0 {
		c.Health.LogLines = 200
	}
	if c.Retention.Keep == 0 {
		c.Retention.Keep = 5
	}
	if c.Nginx.CommandTimeout == 0 {
		c.Nginx.CommandTimeout = 30 * time.Second
	}
	if c.Systemd.CommandTimeout == 0 {
		c.Systemd.CommandTimeout = 30 * time.Second
	}
	if c.Build.CommandTimeout == 0 {
		c.Build.CommandTimeout = 15 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.App.applyDerived()
}

// ApplyEnv 应用 FABU_* 环境变量覆盖
func (c *Config) ApplyEnv() {
	setString(&c.App.Name, "FABU_APP")
	setString(&c.App.InstallRoot, "FABU_INSTALL_ROOT")
	setString(&c.App.User, "FABU_USER")
	setInt(&c.App.PortBlue, "FABU_PORT_BLUE")
	setInt(&c.App.PortGreen, "FABU_PORT_GREEN")
	setInt(&c.App.ListenPort, "FABU_LISTEN_PORT")
	setString(&c.App.JavaOpts, "FABU_JAVA_OPTS")
	setString(&c.App.SpringProfile, "FABU_SPRING_PROFILE")

	setString(&c.Build.Command, "FABU_BUILD_CMD")
	setString(&c.Scaffold.InitializrURL, "FABU_INITIALIZR_URL")

	setInt(&c.Retention.Keep, "FABU_KEEP_RELEASES")

	setString(&c.TLS.Domain, "FABU_DOMAIN")
	setString(&c.TLS.Email, "FABU_EMAIL")
	setBool(&c.TLS.Staging, "FABU_ACME_STAGING")

	setInt(&c.Canary.Percent, "FABU_CANARY_PERCENT")
	setBool(&c.Canary.Promote, "FABU_PROMOTE")
	setBool(&c.Rollback, "FABU_ROLLBACK")

	setInt(&c.Nginx.RateLimitPerSecond, "FABU_RATE_LIMIT")
	setInt(&c.Nginx.RateLimitBurst, "FABU_RATE_BURST")

	setInt(&c.Firewall.SSHPort, "FABU_SSH_PORT")
	setBool(&c.Firewall.Enabled, "FABU_UFW")

	setString(&c.Health.Path, "FABU_HEALTH_PATH")
	setString(&c.Log.Level, "FABU_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
