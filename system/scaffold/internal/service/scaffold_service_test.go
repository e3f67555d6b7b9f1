package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
)

func newTestScaffoldService(t *testing.T) (*ScaffoldService, *config.AppConfig) {
	t.Helper()
	app := &config.AppConfig{
		Name:        "demo-app",
		InstallRoot: t.TempDir(),
		PortBlue:    8080,
		PortGreen:   8081,
	}
	cfg := &config.ScaffoldConfig{
		// 不配置 Initializr，直接走内置模板
		BootVersion: "3.3.4",
		JavaVersion: "17",
	}
	return NewScaffoldService(app, cfg, logger.GetLogger()), app
}

func TestScaffold_LocalTemplate(t *testing.T) {
	svc, app := newTestScaffoldService(t)

	if err := svc.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure 失败: %v", err)
	}

	srcDir := app.SourceDir()
	expected := []string{
		"settings.gradle",
		"build.gradle",
		"src/main/java/com/example/demoapp/Application.java",
		"src/main/java/com/example/demoapp/HealthController.java",
		"src/main/resources/application.properties",
	}
	for _, rel := range expected {
		if _, err := os.Stat(filepath.Join(srcDir, filepath.FromSlash(rel))); err != nil {
			t.Errorf("模板文件缺失 %s: %v", rel, err)
		}
	}

	gradle, err := os.ReadFile(filepath.Join(srcDir, "build.gradle"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"id 'org.springframework.boot' version '3.3.4'",
		"id 'org.cyclonedx.bom'",
		"JavaLanguageVersion.of(17)",
	} {
		if !strings.Contains(string(gradle), want) {
			t.Errorf("build.gradle 缺少 %q:\n%s", want, gradle)
		}
	}

	controller, err := os.ReadFile(filepath.Join(srcDir,
		"src", "main", "java", "com", "example", "demoapp", "HealthController.java"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`@GetMapping("/health")`, `"status", "UP"`} {
		if !strings.Contains(string(controller), want) {
			t.Errorf("探活接口缺少 %q", want)
		}
	}
}

func TestScaffold_SkipsExistingProject(t *testing.T) {
	svc, app := newTestScaffoldService(t)

	srcDir := app.SourceDir()
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	marker := "// existing project\n"
	if err := os.WriteFile(filepath.Join(srcDir, "build.gradle"), []byte(marker), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := svc.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure 失败: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(srcDir, "build.gradle"))
	if string(data) != marker {
		t.Error("已存在的工程不得被覆盖")
	}
}

func TestScaffold_JavaPackageName(t *testing.T) {
	svc, _ := newTestScaffoldService(t)
	if pkg := svc.javaPackage(); pkg != "com.example.demoapp" {
		t.Errorf("包名应去除连字符: %s", pkg)
	}
}
