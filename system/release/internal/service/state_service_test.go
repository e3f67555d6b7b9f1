package service

import (
	"os"
	"testing"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
)

func newTestStateService(t *testing.T) (*StateService, *config.AppConfig) {
	t.Helper()
	app := &config.AppConfig{
		Name:        "demo",
		InstallRoot: t.TempDir(),
		PortBlue:    8080,
		PortGreen:   8081,
	}
	return NewStateService(app, logger.GetLogger()), app
}

func TestState_FirstDeploy(t *testing.T) {
	svc, app := newTestStateService(t)

	_, ok, err := svc.ReadActivePort()
	if err != nil {
		t.Fatalf("首次读取失败: %v", err)
	}
	if ok {
		t.Error("无状态文件时 ok 应为 false")
	}

	target, active, first, err := svc.NextPort()
	if err != nil {
		t.Fatal(err)
	}
	if !first || target != app.PortBlue || active != 0 {
		t.Errorf("首次部署应选蓝色端口: target=%d active=%d first=%v", target, active, first)
	}
}

func TestState_Alternation(t *testing.T) {
	svc, app := newTestStateService(t)

	if err := svc.WriteActivePort(app.PortBlue); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	port, ok, err := svc.ReadActivePort()
	if err != nil || !ok || port != app.PortBlue {
		t.Fatalf("读取错误: port=%d ok=%v err=%v", port, ok, err)
	}

	target, active, first, err := svc.NextPort()
	if err != nil {
		t.Fatal(err)
	}
	if first || target != app.PortGreen || active != app.PortBlue {
		t.Errorf("蓝绿交替错误: target=%d active=%d first=%v", target, active, first)
	}

	if err := svc.WriteActivePort(app.PortGreen); err != nil {
		t.Fatal(err)
	}
	target, _, _, err = svc.NextPort()
	if err != nil {
		t.Fatal(err)
	}
	if target != app.PortBlue {
		t.Errorf("应切回蓝色端口: %d", target)
	}
}

func TestState_RejectsForeignPort(t *testing.T) {
	svc, app := newTestStateService(t)

	if err := svc.WriteActivePort(9000); err == nil {
		t.Error("非蓝绿端口写入应被拒绝")
	}

	// 状态文件被外部写坏时读取报错
	if err := os.MkdirAll(app.InstallRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(app.ActivePortFile(), []byte("not-a-port\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.ReadActivePort(); err == nil {
		t.Error("状态文件内容非法应报错")
	}
}
