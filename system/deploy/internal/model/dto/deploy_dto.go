package dto

import "time"

// StepStatus 部署步骤结果状态
type StepStatus string

const (
	// StepSuccess 步骤成功
	StepSuccess StepStatus = "success"
	// StepRecoverable 步骤失败但不阻断部署
	StepRecoverable StepStatus = "recoverable"
	// StepFatal 步骤失败且终止部署
	StepFatal StepStatus = "fatal"
	// StepSkipped 步骤按条件跳过
	StepSkipped StepStatus = "skipped"
)

// StepResult 单个步骤的执行结果
type StepResult struct {
	// Name 步骤名
	Name string
	// Status 结果状态
	Status StepStatus
	// Err 失败原因
	Err error
	// Duration 执行耗时
	Duration time.Duration
}

// DeployResult 一次部署的汇总结果
type DeployResult struct {
	// DeployID 部署标识
	DeployID string
	// ReleaseID 发布标识，回滚时为回滚目标
	ReleaseID string
	// ActivePort 部署完成后的对外端口
	ActivePort int
	// Steps 各步骤执行结果
	Steps []StepResult
}

// AuditManifest 部署审计清单
type AuditManifest struct {
	// Timestamp 部署完成时间 RFC3339
	Timestamp string `json:"timestamp"`
	// DeployID 部署标识
	DeployID string `json:"deploy_id"`
	// App 应用名
	App string `json:"app"`
	// ActivePort 对外端口
	ActivePort int `json:"active_port"`
	// Release 激活的发布标识
	Release string `json:"release"`
	// JarSha256 产物校验和
	JarSha256 string `json:"jar_sha256"`
	// Sbom SBOM 归档状态 present/absent
	Sbom string `json:"sbom"`
	// NginxSiteSha256 站点配置校验和
	NginxSiteSha256 string `json:"nginx_site_sha256"`
	// SystemdUnitSha256 unit 文件校验和
	SystemdUnitSha256 string `json:"systemd_unit_sha256"`
	// JavaVersion Java 运行时版本
	JavaVersion string `json:"java_version"`
	// NginxVersion nginx 版本
	NginxVersion string `json:"nginx_version"`
}
