// Package destroy 移除应用的全部部署痕迹，不触碰共享资源
package destroy

import (
	"context"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
	"fabu/system/destroy/internal/service"
	"fabu/system/firewall"
	"fabu/system/nginx"
	"fabu/system/ssl"
	"fabu/system/systemd"
)

// Service destroy 模块门面
type Service struct {
	destroyer *service.DestroyService
}

// NewService 创建 destroy 模块
func NewService(cfg *config.Config, units *systemd.Service, sites *nginx.Service, certs *ssl.Service, host *firewall.Service, log *logger.Log) *Service {
	return &Service{
		destroyer: service.NewDestroyService(cfg, units, sites, certs, host, log),
	}
}

// Run 执行销毁，返回清理失败的项目列表
func (s *Service) Run(ctx context.Context) []string {
	return s.destroyer.Run(ctx)
}
