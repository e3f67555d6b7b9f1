package config

import (
	"path/filepath"
	"strconv"
)

// AppConfig 被部署应用的基本配置
type AppConfig struct {
	// Name 应用名（用于安装目录、systemd unit、nginx 站点命名）
	Name string `yaml:"name" validate:"required" comment:"应用名"`
	// InstallRoot 安装根目录（默认 /opt/<name>）
	InstallRoot string `yaml:"install_root"`
	// User 专用服务账户（默认与应用名相同）
	User string `yaml:"user"`
	// PortBlue 蓝实例固定端口
	PortBlue int `yaml:"port_blue" validate:"required,min=1,max=65535" comment:"蓝实例端口"`
	// PortGreen 绿实例固定端口
	PortGreen int `yaml:"port_green" validate:"required,min=1,max=65535,nefield=PortBlue" comment:"绿实例端口"`
	// ListenPort nginx 站点对外监听端口
	ListenPort int `yaml:"listen_port"`
	// JavaOpts 写入环境文件的 JVM 参数
	JavaOpts string `yaml:"java_opts"`
	// SpringProfile 写入环境文件的激活 profile
	SpringProfile string `yaml:"spring_profile"`
	// EnvFile systemd unit 使用的环境文件路径（默认 /etc/default/<name>）
	EnvFile string `yaml:"env_file"`
}

// DefaultAppConfig 返回默认配置
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Name:          "demo-app",
		PortBlue:      8080,
		PortGreen:     8081,
		ListenPort:    80,
		JavaOpts:      "-Xms256m -Xmx512m",
		SpringProfile: "prod",
	}
}

// applyDerived 填充依赖应用名的派生默认值
func (c *AppConfig) applyDerived() {
	if c.InstallRoot == "" {
		c.InstallRoot = filepath.Join("/opt", c.Name)
	}
	if c.User == "" {
		c.User = c.Name
	}
	if c.EnvFile == "" {
		c.EnvFile = filepath.Join("/etc/default", c.Name)
	}
}

// ReleasesDir 发布目录
func (c *AppConfig) ReleasesDir() string {
	return filepath.Join(c.InstallRoot, "releases")
}

// ChecksumsDir 校验和目录
func (c *AppConfig) ChecksumsDir() string {
	return filepath.Join(c.InstallRoot, "checksums")
}

// AuditDir 审计清单目录
func (c *AppConfig) AuditDir() string {
	return filepath.Join(c.InstallRoot, "audit")
}

// CurrentLink 当前发布指针（符号链接）
func (c *AppConfig) CurrentLink() string {
	return filepath.Join(c.InstallRoot, "current")
}

// ActivePortFile 活动端口记录文件
func (c *AppConfig) ActivePortFile() string {
	return filepath.Join(c.InstallRoot, "active_port")
}

// SourceDir 脚手架工程目录
func (c *AppConfig) SourceDir() string {
	return filepath.Join(c.InstallRoot, "src")
}

// UnitTemplateName 参数化 unit 模板名（app@.service）
func (c *AppConfig) UnitTemplateName() string {
	return c.Name + "@.service"
}

// UnitInstanceName 按端口实例化的 unit 名
func (c *AppConfig) UnitInstanceName(port int) string {
	return c.Name + "@" + strconv.Itoa(port) + ".service"
}

// SiteName nginx 站点文件名
func (c *AppConfig) SiteName() string {
	return c.Name + ".conf"
}

// OtherPort 返回两个固定端口中的另一个
func (c *AppConfig) OtherPort(port int) int {
	if port == c.PortBlue {
		return c.PortGreen
	}
	return c.PortBlue
}
