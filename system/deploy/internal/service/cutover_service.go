package service

import (
	"context"
	"fmt"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
	"fabu/system/nginx"
)

// siteApplier 抽象 nginx 站点应用能力，便于测试注入
type siteApplier interface {
	ApplySite(ctx context.Context, siteName string, spec *nginx.SiteSpec) error
	RateLimitBurst() int
}

// CutoverService 切流服务
// 通过重写 nginx upstream 完成全量切换或按权重灰度分流
type CutoverService struct {
	app     *config.AppConfig
	ngc     *config.NginxConfig
	site    siteApplier
	webroot string
	log     *logger.Log
	err     *errorc.ErrorBuilder
}

// NewCutoverService 创建切流服务
func NewCutoverService(app *config.AppConfig, ngc *config.NginxConfig, site siteApplier, log *logger.Log) *CutoverService {
	return &CutoverService{
		app:  app,
		ngc:  ngc,
		site: site,
		log:  log.WithEntryName("CutoverService"),
		err:  errorc.NewErrorBuilder("CutoverService"),
	}
}

// Full 全量切流到指定端口
func (s *CutoverService) Full(ctx context.Context, port int, tls *nginx.TLSParams) error {
	s.log.WithPort(port).Info("全量切流")
	spec := s.baseSpec(tls)
	spec.Upstreams = []nginx.UpstreamServer{
		{Addr: fmt.Sprintf("127.0.0.1:%d", port)},
	}
	return s.site.ApplySite(ctx, s.app.SiteName(), spec)
}

// Canary 按权重在新旧实例间分流
// percent 为导向新实例的流量百分比；0 或 100 退化为全量切流
func (s *CutoverService) Canary(ctx context.Context, newPort, oldPort, percent int, tls *nginx.TLSParams) error {
	if percent < 0 || percent > 100 {
		return s.err.New(fmt.Sprintf("灰度比例越界: %d", percent), nil).ValidWithCtx()
	}
	if percent == 0 || percent == 100 {
		return s.Full(ctx, newPort, tls)
	}

	s.log.WithFields(map[string]interface{}{
		"new_port": newPort, "old_port": oldPort, "percent": percent,
	}).Info("灰度分流")

	spec := s.baseSpec(tls)
	spec.Upstreams = []nginx.UpstreamServer{
		{Addr: fmt.Sprintf("127.0.0.1:%d", newPort), Weight: percent},
		{Addr: fmt.Sprintf("127.0.0.1:%d", oldPort), Weight: 100 - percent},
	}
	return s.site.ApplySite(ctx, s.app.SiteName(), spec)
}

// SetWebroot 设置 ACME 验证目录，TLS 启用时由编排方注入
func (s *CutoverService) SetWebroot(dir string) {
	s.webroot = dir
}

// baseSpec 构造站点公共参数
func (s *CutoverService) baseSpec(tls *nginx.TLSParams) *nginx.SiteSpec {
	return &nginx.SiteSpec{
		AppName:               s.app.Name,
		ListenPort:            s.app.ListenPort,
		TLS:                   tls,
		WebrootDir:            s.webroot,
		RateLimitBurst:        s.site.RateLimitBurst(),
		EnableGzip:            s.ngc.EnableGzip,
		EnableSecurityHeaders: s.ngc.EnableSecurityHeaders,
	}
}
