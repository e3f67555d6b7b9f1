// Package deploy 蓝绿部署编排
// 新实例在空闲端口启动，通过健康门禁后由 nginx 切流，
// 旧实例在切流完成后停止，全程落审计清单
package deploy

import (
	"context"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
	"fabu/system/deploy/internal/model/dto"
	"fabu/system/deploy/internal/service"
	"fabu/system/firewall"
	"fabu/system/nginx"
	"fabu/system/release"
	"fabu/system/scaffold"
	"fabu/system/ssl"
	"fabu/system/systemd"
)

// Result 一次部署的汇总结果
type Result = dto.DeployResult

// StepResult 单个步骤的执行结果
type StepResult = dto.StepResult

// Service deploy 模块门面
type Service struct {
	orchestrator *service.DeployService
}

// NewService 创建 deploy 模块，组装各系统模块为部署流水线
func NewService(
	cfg *config.Config,
	releases *release.Service,
	units *systemd.Service,
	sites *nginx.Service,
	project *scaffold.Service,
	certs *ssl.Service,
	host *firewall.Service,
	log *logger.Log,
) *Service {
	health := service.NewHealthGateService(&cfg.Health, log)
	cutover := service.NewCutoverService(&cfg.App, &cfg.Nginx, sites, log)
	audit := service.NewAuditService(&cfg.App, log)

	return &Service{
		orchestrator: service.NewDeployService(
			cfg, releases, units, sites, project, certs, host, health, cutover, audit, log),
	}
}

// Run 执行部署、灰度转正或回滚
func (s *Service) Run(ctx context.Context) (*Result, error) {
	return s.orchestrator.Run(ctx)
}
