package config

// TLSConfig ACME 证书配置（域名与邮箱同时提供时启用）
type TLSConfig struct {
	// Domain 站点域名
	Domain string `yaml:"domain"`
	// Email ACME 账户邮箱
	Email string `yaml:"email" validate:"omitempty,email" comment:"ACME邮箱"`
	// CertDir 证书保存目录（默认 /etc/nginx/ssl）
	CertDir string `yaml:"cert_dir"`
	// WebrootDir HTTP-01 质询文件目录（默认 /var/www/acme）
	WebrootDir string `yaml:"webroot_dir"`
	// Staging 是否使用测试环境目录
	Staging bool `yaml:"staging"`
}

// Enabled 是否启用 TLS 签发
func (c *TLSConfig) Enabled() bool {
	return c.Domain != "" && c.Email != ""
}

// DefaultTLSConfig 返回默认配置
func DefaultTLSConfig() TLSConfig {
	return TLSConfig{
		CertDir:    "/etc/nginx/ssl",
		WebrootDir: "/var/www/acme",
	}
}

// FirewallConfig 网络安全防护配置
type FirewallConfig struct {
	// SSHPort 远程访问端口（只校验可达性，绝不修改其规则）
	SSHPort int `yaml:"ssh_port" validate:"min=1,max=65535" comment:"SSH端口"`
	// Enabled 是否执行 ufw 放行（仅新增 allow 规则）
	Enabled bool `yaml:"enabled"`
}

// DefaultFirewallConfig 返回默认配置
func DefaultFirewallConfig() FirewallConfig {
	return FirewallConfig{
		SSHPort: 22,
		Enabled: true,
	}
}

// RetentionConfig 发布保留策略配置
type RetentionConfig struct {
	// Keep 保留的发布数量上限（默认 5）
	Keep int `yaml:"keep" validate:"min=1" comment:"保留发布数"`
}

// DefaultRetentionConfig 返回默认配置
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{Keep: 5}
}

// CanaryConfig 灰度发布配置
type CanaryConfig struct {
	// Percent 新版本流量百分比（0 表示全量切换）
	Percent int `yaml:"percent" validate:"min=0,max=100" comment:"灰度百分比"`
	// Promote 是否将现有灰度提升为全量
	Promote bool `yaml:"promote"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultLogConfig 返回默认配置
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info"}
}
