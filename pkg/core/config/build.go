package config

import "time"

// BuildConfig 构建组件配置
type BuildConfig struct {
	// Command 构建命令（默认 ./gradlew bootJar -x test --no-daemon）
	Command string `yaml:"command"`
	// ArtifactGlob 构建产物匹配模式（相对工程目录）
	ArtifactGlob string `yaml:"artifact_glob"`
	// SbomCommand SBOM 生成命令（尽力而为，失败不阻断）
	SbomCommand string `yaml:"sbom_command"`
	// SbomPath SBOM 产物路径（相对工程目录）
	SbomPath string `yaml:"sbom_path"`
	// CommandTimeout 构建超时时间（默认 15m）
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// DefaultBuildConfig 返回默认配置
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Command:        "./gradlew bootJar -x test --no-daemon",
		ArtifactGlob:   "build/libs/*.jar",
		SbomCommand:    "./gradlew cyclonedxBom --no-daemon",
		SbomPath:       "build/reports/bom.json",
		CommandTimeout: 15 * time.Minute,
	}
}

// ScaffoldConfig 脚手架组件配置
type ScaffoldConfig struct {
	// InitializrURL 远程工程生成服务地址（为空则本地生成）
	InitializrURL string `yaml:"initializr_url"`
	// BootVersion 生成工程使用的框架版本
	BootVersion string `yaml:"boot_version"`
	// JavaVersion 生成工程使用的 Java 版本
	JavaVersion string `yaml:"java_version"`
}

// DefaultScaffoldConfig 返回默认配置
func DefaultScaffoldConfig() ScaffoldConfig {
	return ScaffoldConfig{
		BootVersion: "3.3.4",
		JavaVersion: "17",
	}
}
