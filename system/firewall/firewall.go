// Package firewall 负责系统依赖安装与 ufw 防火墙配置
// 防火墙规则只增不减，SSH 端口在配置前后均需确认可达
package firewall

import (
	"context"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
	"fabu/system/firewall/internal/service"
)

// Service firewall 模块门面
type Service struct {
	apt   *service.AptService
	guard *service.GuardService
}

// NewService 创建 firewall 模块
func NewService(cfg *config.FirewallConfig, log *logger.Log) *Service {
	return &Service{
		apt:   service.NewAptService(log),
		guard: service.NewGuardService(cfg, log),
	}
}

// EnsureInstalled 安装系统软件包，返回失败的包名
func (s *Service) EnsureInstalled(ctx context.Context, packages ...string) []string {
	return s.apt.EnsureInstalled(ctx, packages...)
}

// Configure 放行端口并启用防火墙
func (s *Service) Configure(ctx context.Context, listenPorts ...int) error {
	return s.guard.Configure(ctx, listenPorts...)
}

// SSHListening 确认 SSH 端口在监听
func (s *Service) SSHListening() error {
	return s.guard.SSHListening()
}
