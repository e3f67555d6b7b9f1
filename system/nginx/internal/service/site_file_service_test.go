package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
)

func newTestSiteFileService(t *testing.T) (*SiteFileService, *config.NginxConfig) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.NginxConfig{
		SitesAvailableDir:  filepath.Join(root, "sites-available"),
		SitesEnabledDir:    filepath.Join(root, "sites-enabled"),
		GlobalConfPath:     filepath.Join(root, "nginx.conf"),
		CommandTimeout:     30 * time.Second,
		FileMode:           "0644",
		RateLimitPerSecond: 20,
	}
	return NewSiteFileService(cfg, logger.GetLogger()), cfg
}

func okValidate() error { return nil }

func TestSiteFile_WriteAndEnable(t *testing.T) {
	svc, cfg := newTestSiteFileService(t)

	path, err := svc.WriteSite("demo.conf", "server {}\n")
	if err != nil {
		t.Fatalf("WriteSite 失败: %v", err)
	}
	if path != filepath.Join(cfg.SitesAvailableDir, "demo.conf") {
		t.Errorf("路径错误: %s", path)
	}

	if err := svc.EnableSite("demo.conf"); err != nil {
		t.Fatalf("EnableSite 失败: %v", err)
	}
	target, err := os.Readlink(filepath.Join(cfg.SitesEnabledDir, "demo.conf"))
	if err != nil {
		t.Fatalf("软链读取失败: %v", err)
	}
	if target != path {
		t.Errorf("软链指向错误: %s", target)
	}

	// 重复 enable 不报错
	if err := svc.EnableSite("demo.conf"); err != nil {
		t.Errorf("重复 EnableSite 应成功: %v", err)
	}

	if err := svc.RemoveSite("demo.conf"); err != nil {
		t.Fatalf("RemoveSite 失败: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.SitesEnabledDir, "demo.conf")); !os.IsNotExist(err) {
		t.Error("软链应已删除")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("站点文件应已删除")
	}
	// 再次删除不报错
	if err := svc.RemoveSite("demo.conf"); err != nil {
		t.Errorf("重复删除应静默: %v", err)
	}
}

func TestSiteFile_ApplyWithValidation_RestoreOnFailure(t *testing.T) {
	svc, cfg := newTestSiteFileService(t)

	if err := svc.ApplyWithValidation("demo.conf", "v1\n", okValidate); err != nil {
		t.Fatalf("首次应用失败: %v", err)
	}

	// 校验失败回退旧内容
	failValidate := func() error { return errors.New("nginx: [emerg] invalid") }
	if err := svc.ApplyWithValidation("demo.conf", "v2-broken\n", failValidate); err == nil {
		t.Fatal("校验失败应返回错误")
	}
	data, err := os.ReadFile(filepath.Join(cfg.SitesAvailableDir, "demo.conf"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v1\n" {
		t.Errorf("应回退到旧内容，实际: %s", data)
	}
}

func TestSiteFile_ApplyWithValidation_RemoveOnFirstFailure(t *testing.T) {
	svc, cfg := newTestSiteFileService(t)

	failValidate := func() error { return errors.New("invalid") }
	if err := svc.ApplyWithValidation("demo.conf", "broken\n", failValidate); err == nil {
		t.Fatal("校验失败应返回错误")
	}
	if _, err := os.Stat(filepath.Join(cfg.SitesAvailableDir, "demo.conf")); !os.IsNotExist(err) {
		t.Error("首次应用失败应删除新文件")
	}
}

func TestSiteFile_RateLimitZone(t *testing.T) {
	svc, cfg := newTestSiteFileService(t)

	globalConf := "user www-data;\nevents {\n    worker_connections 768;\n}\nhttp {\n    include mime.types;\n}\n"
	if err := os.WriteFile(cfg.GlobalConfPath, []byte(globalConf), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := svc.EnsureRateLimitZone("demo", okValidate); err != nil {
		t.Fatalf("注入失败: %v", err)
	}
	data, _ := os.ReadFile(cfg.GlobalConfPath)
	if !strings.Contains(string(data), "limit_req_zone $binary_remote_addr zone=demo_limit rate=20r/s;") {
		t.Errorf("限流 zone 未注入:\n%s", data)
	}

	// 幂等：重复注入不产生重复行
	if err := svc.EnsureRateLimitZone("demo", okValidate); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(cfg.GlobalConfPath)
	if strings.Count(string(data), "zone=demo_limit") != 1 {
		t.Errorf("限流 zone 重复注入:\n%s", data)
	}

	// 移除只删目标行，其余内容不变
	if err := svc.RemoveRateLimitZone("demo", okValidate); err != nil {
		t.Fatalf("移除失败: %v", err)
	}
	data, _ = os.ReadFile(cfg.GlobalConfPath)
	if string(data) != globalConf {
		t.Errorf("移除后内容应与原始一致:\n%s", data)
	}

	// 不存在时移除静默
	if err := svc.RemoveRateLimitZone("demo", okValidate); err != nil {
		t.Errorf("重复移除应静默: %v", err)
	}
}

func TestSiteFile_RateLimitZone_RestoreOnFailure(t *testing.T) {
	svc, cfg := newTestSiteFileService(t)

	globalConf := "http {\n}\n"
	if err := os.WriteFile(cfg.GlobalConfPath, []byte(globalConf), 0o644); err != nil {
		t.Fatal(err)
	}

	failValidate := func() error { return errors.New("invalid") }
	if err := svc.EnsureRateLimitZone("demo", failValidate); err == nil {
		t.Fatal("校验失败应返回错误")
	}
	data, _ := os.ReadFile(cfg.GlobalConfPath)
	if string(data) != globalConf {
		t.Errorf("校验失败应回滚:\n%s", data)
	}
}

func TestSiteFile_ValidateName(t *testing.T) {
	svc, _ := newTestSiteFileService(t)

	invalid := []string{"", "../x.conf", "a/b.conf", "demo", "Demo.conf", "demo.service"}
	for _, name := range invalid {
		if _, err := svc.WriteSite(name, "x"); err == nil {
			t.Errorf("站点名 %q 应被拒绝", name)
		}
	}
	for _, name := range []string{"demo.conf", "my-app.conf"} {
		if _, err := svc.WriteSite(name, "x"); err != nil {
			t.Errorf("站点名 %q 应被接受: %v", name, err)
		}
	}
}
