package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
)

func newTestUnitFileService(t *testing.T) (*UnitFileService, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.SystemdConfig{
		UnitDir:        dir,
		CommandTimeout: 30 * time.Second,
	}
	return NewUnitFileService(cfg, logger.GetLogger()), dir
}

func TestUnitFile_WriteAndRemove(t *testing.T) {
	svc, dir := newTestUnitFileService(t)

	content := "[Unit]\nDescription=demo\n\n[Service]\nExecStart=/usr/bin/true\n\n[Install]\nWantedBy=multi-user.target\n"
	path, err := svc.Write("demo@.service", content)
	if err != nil {
		t.Fatalf("Write 失败: %v", err)
	}
	if path != filepath.Join(dir, "demo@.service") {
		t.Errorf("路径错误: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if string(data) != content {
		t.Errorf("内容不一致: %s", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("文件权限错误: %v", info.Mode().Perm())
	}

	// 临时文件应已清理
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("目录中存在残留文件: %d", len(entries))
	}

	exists, err := svc.Exists("demo@.service")
	if err != nil || !exists {
		t.Errorf("Exists 应为 true: %v %v", exists, err)
	}

	if err := svc.Remove("demo@.service"); err != nil {
		t.Fatalf("Remove 失败: %v", err)
	}
	// 再次删除不报错
	if err := svc.Remove("demo@.service"); err != nil {
		t.Errorf("重复删除应静默: %v", err)
	}
}

func TestUnitFile_Overwrite(t *testing.T) {
	svc, _ := newTestUnitFileService(t)

	if _, err := svc.Write("app.service", "v1\n"); err != nil {
		t.Fatal(err)
	}
	path, err := svc.Write("app.service", "v2\n")
	if err != nil {
		t.Fatalf("覆盖写入失败: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "v2\n" {
		t.Errorf("覆盖内容错误: %s", data)
	}
}

func TestUnitFile_ValidateName(t *testing.T) {
	svc, _ := newTestUnitFileService(t)

	invalid := []string{
		"",
		"../etc.service",
		"a/b.service",
		"demo",
		"demo.conf",
		".hidden.service",
		"demo name.service",
	}
	for _, name := range invalid {
		if _, err := svc.Write(name, "x"); err == nil {
			t.Errorf("unit 名 %q 应被拒绝", name)
		}
	}

	valid := []string{"demo.service", "demo@.service", "my-app_2.service"}
	for _, name := range valid {
		if _, err := svc.Write(name, "x"); err != nil {
			t.Errorf("unit 名 %q 应被接受: %v", name, err)
		}
	}
}
