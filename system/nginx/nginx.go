// Package nginx 管理应用的反向代理站点配置
// 站点写入 sites-available 并软链到 sites-enabled，变更先 nginx -t 校验再 reload
package nginx

import (
	"context"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
	"fabu/system/nginx/internal/model/dto"
	"fabu/system/nginx/internal/service"
)

// SiteSpec 站点配置参数
type SiteSpec = dto.SiteSpec

// UpstreamServer 上游服务实例
type UpstreamServer = dto.UpstreamServer

// TLSParams 站点 HTTPS 参数
type TLSParams = dto.TLSParams

// Service nginx 模块门面
type Service struct {
	generate *service.SiteGenerateService
	file     *service.SiteFileService
	command  *service.NginxCommandService
	cfg      *config.NginxConfig
	log      *logger.Log
}

// NewService 创建 nginx 模块
func NewService(cfg *config.NginxConfig, log *logger.Log) *Service {
	return &Service{
		generate: service.NewSiteGenerateService(log),
		file:     service.NewSiteFileService(cfg, log),
		command:  service.NewNginxCommandService(cfg, log),
		cfg:      cfg,
		log:      log.WithEntryName("nginx"),
	}
}

// RenderSite 仅渲染站点配置内容，不写入
func (s *Service) RenderSite(spec *dto.SiteSpec) (string, error) {
	return s.generate.Generate(spec)
}

// ApplySite 渲染并应用站点配置
// 写入后 nginx -t 校验，失败回退旧配置；校验通过后 reload
func (s *Service) ApplySite(ctx context.Context, siteName string, spec *dto.SiteSpec) error {
	content, err := s.generate.Generate(spec)
	if err != nil {
		return err
	}
	validate := func() error { return s.command.Validate(ctx) }
	if err := s.file.ApplyWithValidation(siteName, content, validate); err != nil {
		return err
	}
	return s.command.Reload(ctx)
}

// EnsureRateLimitZone 注入应用限流 zone 到全局配置并 reload
func (s *Service) EnsureRateLimitZone(ctx context.Context, appName string) error {
	if s.cfg.RateLimitPerSecond <= 0 {
		return nil
	}
	validate := func() error { return s.command.Validate(ctx) }
	if err := s.file.EnsureRateLimitZone(appName, validate); err != nil {
		return err
	}
	return s.command.Reload(ctx)
}

// RemoveRateLimitZone 从全局配置移除应用限流 zone
// 仅删除本应用的声明行，校验失败回滚
func (s *Service) RemoveRateLimitZone(ctx context.Context, appName string) error {
	validate := func() error { return s.command.Validate(ctx) }
	return s.file.RemoveRateLimitZone(appName, validate)
}

// RemoveSite 移除站点文件与软链并 reload
func (s *Service) RemoveSite(ctx context.Context, siteName string) error {
	if err := s.file.RemoveSite(siteName); err != nil {
		return err
	}
	if err := s.command.Validate(ctx); err != nil {
		return err
	}
	return s.command.Reload(ctx)
}

// SitePath 返回 sites-available 下站点文件路径
func (s *Service) SitePath(siteName string) (string, error) {
	return s.file.SitePath(siteName)
}

// Validate 校验 nginx 配置
func (s *Service) Validate(ctx context.Context) error {
	return s.command.Validate(ctx)
}

// Reload 重载 nginx 配置
func (s *Service) Reload(ctx context.Context) error {
	return s.command.Reload(ctx)
}

// Version 查询 nginx 版本号
func (s *Service) Version(ctx context.Context) (string, error) {
	v, err := s.command.Version(ctx)
	if err != nil {
		return "", err
	}
	if v.Version != "" {
		return v.Version, nil
	}
	return v.Raw, nil
}

// RateLimitBurst 返回配置的限流突发额度，未启用限流时为 0
func (s *Service) RateLimitBurst() int {
	if s.cfg.RateLimitPerSecond <= 0 {
		return 0
	}
	return s.cfg.RateLimitBurst
}
