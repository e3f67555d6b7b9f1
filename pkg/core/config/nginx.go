package config

import (
	"os"
	"strconv"
	"time"
)

// NginxConfig Nginx 管理组件配置
type NginxConfig struct {
	// SitesAvailableDir 站点配置目录（默认 /etc/nginx/sites-available）
	SitesAvailableDir string `yaml:"sites_available_dir"`
	// SitesEnabledDir 站点启用目录（默认 /etc/nginx/sites-enabled）
	SitesEnabledDir string `yaml:"sites_enabled_dir"`
	// GlobalConfPath 共享全局配置文件（限流 zone 指令注入位置）
	GlobalConfPath string `yaml:"global_conf_path"`
	// ValidateCommand 配置校验命令（默认 nginx -t）
	ValidateCommand string `yaml:"validate_command"`
	// ReloadCommand 配置重载命令（默认 nginx -s reload）
	ReloadCommand string `yaml:"reload_command"`
	// VersionCommand 版本查询命令（默认 nginx -v）
	VersionCommand string `yaml:"version_command"`
	// CommandTimeout 命令执行超时时间（默认 30s）
	CommandTimeout time.Duration `yaml:"command_timeout"`
	// FileMode 配置文件权限（默认 0644）
	FileMode string `yaml:"file_mode"`
	// RateLimitPerSecond 每秒请求数限制（0 表示不启用限流）
	RateLimitPerSecond int `yaml:"rate_limit_per_second" validate:"min=0" comment:"限流速率"`
	// RateLimitBurst 限流突发容量（默认 20）
	RateLimitBurst int `yaml:"rate_limit_burst"`
	// EnableGzip 是否启用 gzip 压缩
	EnableGzip bool `yaml:"enable_gzip"`
	// EnableSecurityHeaders 是否注入安全响应头
	EnableSecurityHeaders bool `yaml:"enable_security_headers"`
}

// Mode 解析 FileMode 为文件权限，解析失败回退 0644
func (c *NginxConfig) Mode() os.FileMode {
	if c.FileMode != "" {
		if v, err := strconv.ParseUint(c.FileMode, 8, 32); err == nil {
			return os.FileMode(v)
		}
	}
	return 0o644
}

// DefaultNginxConfig 返回默认配置
func DefaultNginxConfig() NginxConfig {
	return NginxConfig{
		SitesAvailableDir:     "/etc/nginx/sites-available",
		SitesEnabledDir:       "/etc/nginx/sites-enabled",
		GlobalConfPath:        "/etc/nginx/nginx.conf",
		ValidateCommand:       "nginx -t",
		ReloadCommand:         "nginx -s reload",
		VersionCommand:        "nginx -v",
		CommandTimeout:        30 * time.Second,
		FileMode:              "0644",
		RateLimitBurst:        20,
		EnableGzip:            true,
		EnableSecurityHeaders: true,
	}
}
