package service

import "testing"

func TestParseShowOutput(t *testing.T) {
	out := "Id=demo@8080.service\n" +
		"Description=demo (port 8080)\n" +
		"LoadState=loaded\n" +
		"ActiveState=active\n" +
		"SubState=running\n" +
		"UnitFileState=enabled\n" +
		"MainPID=4321\n" +
		"ExecMainStartTimestamp=Mon 2026-08-31 12:00:00 CST\n" +
		"MemoryCurrent=268435456\n" +
		"Result=success\n"

	status := parseShowOutput("demo@8080.service", out)
	if status.Name != "demo@8080.service" {
		t.Errorf("名称错误: %s", status.Name)
	}
	if status.ActiveState != "active" || status.SubState != "running" {
		t.Errorf("运行状态错误: %s/%s", status.ActiveState, status.SubState)
	}
	if status.MainPID != 4321 {
		t.Errorf("MainPID 错误: %d", status.MainPID)
	}
	if status.MemoryCurrent != 268435456 {
		t.Errorf("MemoryCurrent 错误: %d", status.MemoryCurrent)
	}
	if status.Result != "success" {
		t.Errorf("Result 错误: %s", status.Result)
	}
}

// 未运行的实例 MemoryCurrent 为 [not set]，MainPID 为 0
func TestParseShowOutput_NotRunning(t *testing.T) {
	out := "LoadState=loaded\n" +
		"ActiveState=inactive\n" +
		"SubState=dead\n" +
		"MainPID=0\n" +
		"MemoryCurrent=[not set]\n" +
		"Result=success\n"

	status := parseShowOutput("demo@8081.service", out)
	if status.MemoryCurrent != 0 {
		t.Errorf("[not set] 应解析为 0: %d", status.MemoryCurrent)
	}
	if status.MainPID != 0 {
		t.Errorf("MainPID 错误: %d", status.MainPID)
	}
	if status.ActiveState != "inactive" {
		t.Errorf("运行状态错误: %s", status.ActiveState)
	}
}
