package service

import (
	"fmt"
	"regexp"
	"strings"

	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
	"fabu/system/nginx/internal/model/dto"
)

var appNameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// SiteGenerateService 站点配置生成服务
// 只负责渲染 nginx 站点配置文本，不负责写入与 reload
type SiteGenerateService struct {
	log *logger.Log
	err *errorc.ErrorBuilder
}

// NewSiteGenerateService 创建站点配置生成服务
func NewSiteGenerateService(log *logger.Log) *SiteGenerateService {
	return &SiteGenerateService{
		log: log.WithEntryName("SiteGenerateService"),
		err: errorc.NewErrorBuilder("SiteGenerateService"),
	}
}

// UpstreamName 返回应用的 upstream 名称
func UpstreamName(appName string) string {
	return fmt.Sprintf("%s_backend", appName)
}

// RateLimitZoneName 返回应用的限流 zone 名称
func RateLimitZoneName(appName string) string {
	return fmt.Sprintf("%s_limit", appName)
}

// Generate 生成站点配置内容
func (s *SiteGenerateService) Generate(spec *dto.SiteSpec) (string, error) {
	if err := s.validate(spec); err != nil {
		return "", err
	}

	var sb strings.Builder

	s.writeUpstream(&sb, spec)
	sb.WriteString("\n")

	if spec.TLS != nil {
		s.writeRedirectServer(&sb, spec)
		sb.WriteString("\n")
		s.writeTLSServer(&sb, spec)
	} else {
		s.writeHTTPServer(&sb, spec)
	}

	return sb.String(), nil
}

// writeUpstream 输出 upstream 块，多实例带权重时实现灰度分流
func (s *SiteGenerateService) writeUpstream(sb *strings.Builder, spec *dto.SiteSpec) {
	sb.WriteString(fmt.Sprintf("upstream %s {\n", UpstreamName(spec.AppName)))
	for _, up := range spec.Upstreams {
		if up.Weight > 0 {
			sb.WriteString(fmt.Sprintf("    server %s weight=%d;\n", up.Addr, up.Weight))
		} else {
			sb.WriteString(fmt.Sprintf("    server %s;\n", up.Addr))
		}
	}
	sb.WriteString("}\n")
}

// writeHTTPServer 输出纯 HTTP 站点
func (s *SiteGenerateService) writeHTTPServer(sb *strings.Builder, spec *dto.SiteSpec) {
	sb.WriteString("server {\n")
	sb.WriteString(fmt.Sprintf("    listen %d;\n", spec.ListenPort))
	sb.WriteString("    server_name _;\n")
	sb.WriteString("\n")
	s.writeCommonDirectives(sb, spec)
	s.writeACMELocation(sb, spec)
	s.writeProxyLocation(sb, spec)
	sb.WriteString("}\n")
}

// writeRedirectServer 输出 80 端口跳转站点，保留 ACME 验证路径走 HTTP
func (s *SiteGenerateService) writeRedirectServer(sb *strings.Builder, spec *dto.SiteSpec) {
	sb.WriteString("server {\n")
	sb.WriteString("    listen 80;\n")
	sb.WriteString(fmt.Sprintf("    server_name %s;\n", spec.TLS.Domain))
	sb.WriteString("\n")
	s.writeACMELocation(sb, spec)
	sb.WriteString("    location / {\n")
	sb.WriteString("        return 301 https://$host$request_uri;\n")
	sb.WriteString("    }\n")
	sb.WriteString("}\n")
}

// writeTLSServer 输出 HTTPS 站点
func (s *SiteGenerateService) writeTLSServer(sb *strings.Builder, spec *dto.SiteSpec) {
	sb.WriteString("server {\n")
	sb.WriteString("    listen 443 ssl;\n")
	sb.WriteString(fmt.Sprintf("    server_name %s;\n", spec.TLS.Domain))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("    ssl_certificate %s;\n", spec.TLS.CertPath))
	sb.WriteString(fmt.Sprintf("    ssl_certificate_key %s;\n", spec.TLS.KeyPath))
	sb.WriteString("    ssl_protocols TLSv1.2 TLSv1.3;\n")
	sb.WriteString("    ssl_prefer_server_ciphers on;\n")
	sb.WriteString("\n")
	if spec.EnableSecurityHeaders {
		sb.WriteString("    add_header Strict-Transport-Security \"max-age=31536000\" always;\n")
	}
	s.writeCommonDirectives(sb, spec)
	s.writeProxyLocation(sb, spec)
	sb.WriteString("}\n")
}

// writeCommonDirectives 输出安全头与 gzip 配置
func (s *SiteGenerateService) writeCommonDirectives(sb *strings.Builder, spec *dto.SiteSpec) {
	if spec.EnableSecurityHeaders {
		sb.WriteString("    add_header X-Content-Type-Options \"nosniff\" always;\n")
		sb.WriteString("    add_header X-Frame-Options \"DENY\" always;\n")
		sb.WriteString("    add_header Referrer-Policy \"no-referrer-when-downgrade\" always;\n")
		sb.WriteString("\n")
	}
	if spec.EnableGzip {
		sb.WriteString("    gzip on;\n")
		sb.WriteString("    gzip_types text/plain text/css application/json application/javascript;\n")
		sb.WriteString("    gzip_min_length 1024;\n")
		sb.WriteString("\n")
	}
}

// writeACMELocation 输出 ACME HTTP-01 验证路径
func (s *SiteGenerateService) writeACMELocation(sb *strings.Builder, spec *dto.SiteSpec) {
	if spec.WebrootDir == "" {
		return
	}
	sb.WriteString("    location /.well-known/acme-challenge/ {\n")
	sb.WriteString(fmt.Sprintf("        root %s;\n", spec.WebrootDir))
	sb.WriteString("    }\n")
	sb.WriteString("\n")
}

// writeProxyLocation 输出反向代理主路径
func (s *SiteGenerateService) writeProxyLocation(sb *strings.Builder, spec *dto.SiteSpec) {
	sb.WriteString("    location / {\n")
	if spec.RateLimitBurst > 0 {
		sb.WriteString(fmt.Sprintf("        limit_req zone=%s burst=%d nodelay;\n",
			RateLimitZoneName(spec.AppName), spec.RateLimitBurst))
	}
	sb.WriteString(fmt.Sprintf("        proxy_pass http://%s;\n", UpstreamName(spec.AppName)))
	sb.WriteString("        proxy_set_header Host $host;\n")
	sb.WriteString("        proxy_set_header X-Real-IP $remote_addr;\n")
	sb.WriteString("        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;\n")
	sb.WriteString("        proxy_set_header X-Forwarded-Proto $scheme;\n")
	sb.WriteString("        proxy_http_version 1.1;\n")
	sb.WriteString("        proxy_set_header Upgrade $http_upgrade;\n")
	sb.WriteString("        proxy_set_header Connection \"upgrade\";\n")
	sb.WriteString("    }\n")
}

// validate 校验站点参数
func (s *SiteGenerateService) validate(spec *dto.SiteSpec) error {
	if spec == nil {
		return s.err.New("站点参数不能为空", nil).ValidWithCtx()
	}
	if !appNameRegex.MatchString(spec.AppName) {
		return s.err.New(fmt.Sprintf("应用名格式不正确: %s", spec.AppName), nil).ValidWithCtx()
	}
	if spec.ListenPort <= 0 || spec.ListenPort > 65535 {
		return s.err.New(fmt.Sprintf("监听端口非法: %d", spec.ListenPort), nil).ValidWithCtx()
	}
	if len(spec.Upstreams) == 0 {
		return s.err.New("上游实例列表不能为空", nil).ValidWithCtx()
	}
	for _, up := range spec.Upstreams {
		if strings.TrimSpace(up.Addr) == "" {
			return s.err.New("上游地址不能为空", nil).ValidWithCtx()
		}
		if strings.ContainsAny(up.Addr, " \n\r;{}") {
			return s.err.New(fmt.Sprintf("上游地址非法: %s", up.Addr), nil).ValidWithCtx()
		}
		if up.Weight < 0 || up.Weight > 100 {
			return s.err.New(fmt.Sprintf("权重超出范围: %d", up.Weight), nil).ValidWithCtx()
		}
	}
	if spec.TLS != nil {
		if spec.TLS.Domain == "" || spec.TLS.CertPath == "" || spec.TLS.KeyPath == "" {
			return s.err.New("TLS 参数不完整", nil).ValidWithCtx()
		}
		if strings.ContainsAny(spec.TLS.Domain, " \n\r;{}") {
			return s.err.New(fmt.Sprintf("域名非法: %s", spec.TLS.Domain), nil).ValidWithCtx()
		}
	}
	return nil
}
