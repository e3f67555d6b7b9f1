package service

import (
	"context"
	"testing"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
	"fabu/system/nginx"
)

type fakeSiteApplier struct {
	applied []*nginx.SiteSpec
}

func (f *fakeSiteApplier) ApplySite(ctx context.Context, siteName string, spec *nginx.SiteSpec) error {
	f.applied = append(f.applied, spec)
	return nil
}

func (f *fakeSiteApplier) RateLimitBurst() int { return 20 }

func newTestCutover(t *testing.T) (*CutoverService, *fakeSiteApplier) {
	t.Helper()
	app := &config.AppConfig{Name: "demo", ListenPort: 80, PortBlue: 8080, PortGreen: 8081}
	ngc := &config.NginxConfig{EnableGzip: true, EnableSecurityHeaders: true}
	site := &fakeSiteApplier{}
	return NewCutoverService(app, ngc, site, logger.GetLogger()), site
}

func TestCutover_Full(t *testing.T) {
	svc, site := newTestCutover(t)
	if err := svc.Full(context.Background(), 8081, nil); err != nil {
		t.Fatalf("Full 失败: %v", err)
	}

	spec := site.applied[0]
	if len(spec.Upstreams) != 1 {
		t.Fatalf("全量切流应只有一个 upstream，实际 %d", len(spec.Upstreams))
	}
	if spec.Upstreams[0].Addr != "127.0.0.1:8081" || spec.Upstreams[0].Weight != 0 {
		t.Errorf("upstream 错误: %+v", spec.Upstreams[0])
	}
}

// 灰度 0% 与 100% 应退化为全量切流
func TestCutover_CanaryDegradesToFull(t *testing.T) {
	for _, percent := range []int{0, 100} {
		svc, site := newTestCutover(t)
		if err := svc.Canary(context.Background(), 8081, 8080, percent, nil); err != nil {
			t.Fatalf("Canary(%d) 失败: %v", percent, err)
		}
		spec := site.applied[0]
		if len(spec.Upstreams) != 1 || spec.Upstreams[0].Addr != "127.0.0.1:8081" {
			t.Errorf("percent=%d 应等价于全量切流: %+v", percent, spec.Upstreams)
		}
	}
}

func TestCutover_CanaryWeightedSplit(t *testing.T) {
	svc, site := newTestCutover(t)
	if err := svc.Canary(context.Background(), 8081, 8080, 30, nil); err != nil {
		t.Fatalf("Canary 失败: %v", err)
	}

	spec := site.applied[0]
	if len(spec.Upstreams) != 2 {
		t.Fatalf("灰度应有两个 upstream，实际 %d", len(spec.Upstreams))
	}
	if spec.Upstreams[0].Addr != "127.0.0.1:8081" || spec.Upstreams[0].Weight != 30 {
		t.Errorf("新实例权重错误: %+v", spec.Upstreams[0])
	}
	if spec.Upstreams[1].Addr != "127.0.0.1:8080" || spec.Upstreams[1].Weight != 70 {
		t.Errorf("旧实例权重错误: %+v", spec.Upstreams[1])
	}
}

func TestCutover_CanaryPercentOutOfRange(t *testing.T) {
	svc, _ := newTestCutover(t)
	for _, percent := range []int{-1, 101} {
		if err := svc.Canary(context.Background(), 8081, 8080, percent, nil); err == nil {
			t.Errorf("percent=%d 应校验失败", percent)
		}
	}
}
