package config

import "time"

// SystemdConfig Systemd 管理组件配置
type SystemdConfig struct {
	// UnitDir unit 文件根目录（默认 /etc/systemd/system）
	UnitDir string `yaml:"unit_dir"`
	// CommandTimeout 命令执行超时时间（默认 30s）
	CommandTimeout time.Duration `yaml:"command_timeout"`
	// JavaBin java 可执行文件路径（默认 /usr/bin/java）
	JavaBin string `yaml:"java_bin"`
}

// DefaultSystemdConfig 返回默认配置
func DefaultSystemdConfig() SystemdConfig {
	return SystemdConfig{
		UnitDir:        "/etc/systemd/system",
		CommandTimeout: 30 * time.Second,
		JavaBin:        "/usr/bin/java",
	}
}
