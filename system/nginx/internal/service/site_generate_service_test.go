package service

import (
	"strings"
	"testing"

	"fabu/pkg/core/logger"
	"fabu/system/nginx/internal/model/dto"
)

func newTestSiteGenerator() *SiteGenerateService {
	return NewSiteGenerateService(logger.GetLogger())
}

func TestSiteGenerate_SingleUpstream(t *testing.T) {
	gen := newTestSiteGenerator()

	content, err := gen.Generate(&dto.SiteSpec{
		AppName:    "demo",
		ListenPort: 80,
		Upstreams: []dto.UpstreamServer{
			{Addr: "127.0.0.1:8080"},
		},
		EnableGzip:            true,
		EnableSecurityHeaders: true,
		RateLimitBurst:        20,
	})
	if err != nil {
		t.Fatalf("Generate 失败: %v", err)
	}

	expected := []string{
		"upstream demo_backend {",
		"server 127.0.0.1:8080;",
		"listen 80;",
		"limit_req zone=demo_limit burst=20 nodelay;",
		"proxy_pass http://demo_backend;",
		"proxy_set_header Host $host;",
		"proxy_set_header X-Real-IP $remote_addr;",
		"proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;",
		"proxy_set_header X-Forwarded-Proto $scheme;",
		"proxy_set_header Upgrade $http_upgrade;",
		"add_header X-Content-Type-Options",
		"gzip on;",
	}
	for _, line := range expected {
		if !strings.Contains(content, line) {
			t.Errorf("缺少配置 %q:\n%s", line, content)
		}
	}
	if strings.Contains(content, "weight=") {
		t.Errorf("单实例不应输出权重:\n%s", content)
	}
	if strings.Contains(content, "listen 443") {
		t.Errorf("未配置 TLS 不应输出 443 站点:\n%s", content)
	}
}

func TestSiteGenerate_CanaryWeights(t *testing.T) {
	gen := newTestSiteGenerator()

	content, err := gen.Generate(&dto.SiteSpec{
		AppName:    "demo",
		ListenPort: 80,
		Upstreams: []dto.UpstreamServer{
			{Addr: "127.0.0.1:8081", Weight: 10},
			{Addr: "127.0.0.1:8080", Weight: 90},
		},
	})
	if err != nil {
		t.Fatalf("Generate 失败: %v", err)
	}

	newIdx := strings.Index(content, "server 127.0.0.1:8081 weight=10;")
	oldIdx := strings.Index(content, "server 127.0.0.1:8080 weight=90;")
	if newIdx == -1 || oldIdx == -1 {
		t.Fatalf("权重输出缺失:\n%s", content)
	}
	// 按声明顺序输出
	if newIdx > oldIdx {
		t.Errorf("上游顺序错误:\n%s", content)
	}
}

func TestSiteGenerate_TLS(t *testing.T) {
	gen := newTestSiteGenerator()

	content, err := gen.Generate(&dto.SiteSpec{
		AppName:    "demo",
		ListenPort: 80,
		Upstreams: []dto.UpstreamServer{
			{Addr: "127.0.0.1:8080"},
		},
		TLS: &dto.TLSParams{
			Domain:   "demo.example.com",
			CertPath: "/etc/nginx/ssl/demo.example.com.crt",
			KeyPath:  "/etc/nginx/ssl/demo.example.com.key",
		},
		WebrootDir:            "/var/www/acme",
		EnableSecurityHeaders: true,
	})
	if err != nil {
		t.Fatalf("Generate 失败: %v", err)
	}

	expected := []string{
		"listen 443 ssl;",
		"server_name demo.example.com;",
		"ssl_certificate /etc/nginx/ssl/demo.example.com.crt;",
		"ssl_certificate_key /etc/nginx/ssl/demo.example.com.key;",
		"ssl_protocols TLSv1.2 TLSv1.3;",
		"add_header Strict-Transport-Security \"max-age=31536000\" always;",
		"return 301 https://$host$request_uri;",
		"location /.well-known/acme-challenge/ {",
		"root /var/www/acme;",
	}
	for _, line := range expected {
		if !strings.Contains(content, line) {
			t.Errorf("缺少配置 %q:\n%s", line, content)
		}
	}

	// 80 端口站点保留 ACME 验证路径且在跳转之前
	acmeIdx := strings.Index(content, "/.well-known/acme-challenge/")
	redirectIdx := strings.Index(content, "return 301")
	if acmeIdx > redirectIdx {
		t.Errorf("ACME 路径应在跳转规则之前:\n%s", content)
	}
}

func TestSiteGenerate_Validate(t *testing.T) {
	gen := newTestSiteGenerator()

	tests := []struct {
		name string
		spec *dto.SiteSpec
	}{
		{"nil 参数", nil},
		{"应用名非法", &dto.SiteSpec{
			AppName: "Demo App", ListenPort: 80,
			Upstreams: []dto.UpstreamServer{{Addr: "127.0.0.1:8080"}},
		}},
		{"端口越界", &dto.SiteSpec{
			AppName: "demo", ListenPort: 70000,
			Upstreams: []dto.UpstreamServer{{Addr: "127.0.0.1:8080"}},
		}},
		{"无上游", &dto.SiteSpec{AppName: "demo", ListenPort: 80}},
		{"上游地址注入", &dto.SiteSpec{
			AppName: "demo", ListenPort: 80,
			Upstreams: []dto.UpstreamServer{{Addr: "127.0.0.1:8080; }"}},
		}},
		{"权重越界", &dto.SiteSpec{
			AppName: "demo", ListenPort: 80,
			Upstreams: []dto.UpstreamServer{{Addr: "127.0.0.1:8080", Weight: 101}},
		}},
		{"TLS 参数不完整", &dto.SiteSpec{
			AppName: "demo", ListenPort: 80,
			Upstreams: []dto.UpstreamServer{{Addr: "127.0.0.1:8080"}},
			TLS:       &dto.TLSParams{Domain: "demo.example.com"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := gen.Generate(tt.spec); err == nil {
				t.Error("期望校验失败，实际通过")
			}
		})
	}
}
