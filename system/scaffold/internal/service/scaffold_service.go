package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
	"fabu/pkg/core/util"
)

// ScaffoldService 项目脚手架服务
// 源码目录不存在时生成 Spring Boot 工程骨架：
// 优先从 Initializr 拉取，失败时回退到内置模板
type ScaffoldService struct {
	app *config.AppConfig
	cfg *config.ScaffoldConfig
	log *logger.Log
	err *errorc.ErrorBuilder
}

// NewScaffoldService 创建脚手架服务
func NewScaffoldService(app *config.AppConfig, cfg *config.ScaffoldConfig, log *logger.Log) *ScaffoldService {
	return &ScaffoldService{
		app: app,
		cfg: cfg,
		log: log.WithEntryName("ScaffoldService"),
		err: errorc.NewErrorBuilder("ScaffoldService"),
	}
}

// Ensure 确保源码目录存在可构建工程
// 已有 build.gradle 时视为现成工程直接复用
func (s *ScaffoldService) Ensure(ctx context.Context) error {
	srcDir := s.app.SourceDir()
	if _, err := os.Stat(filepath.Join(srcDir, "build.gradle")); err == nil {
		s.log.Infof("源码目录已存在工程: %s", srcDir)
		return nil
	}

	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return s.err.New(fmt.Sprintf("创建源码目录失败: %s", srcDir), err)
	}

	if s.cfg.InitializrURL != "" {
		if err := s.fetchInitializr(srcDir); err != nil {
			// 拉取失败回退内置模板，不阻断部署
			s.log.WithErr(err).Warn("Initializr 拉取失败，回退内置模板")
		} else {
			s.log.Info("工程骨架已从 Initializr 生成")
			return s.ensureHealthEndpoint(srcDir)
		}
	}

	if err := s.writeLocalTemplate(srcDir); err != nil {
		return err
	}
	s.log.Info("工程骨架已从内置模板生成")
	return nil
}

// fetchInitializr 从 Initializr 下载 starter.zip 并解包到源码目录
func (s *ScaffoldService) fetchInitializr(srcDir string) error {
	params := url.Values{}
	params.Set("type", "gradle-project")
	params.Set("language", "java")
	params.Set("bootVersion", s.cfg.BootVersion)
	params.Set("javaVersion", s.cfg.JavaVersion)
	params.Set("baseDir", s.app.Name)
	params.Set("name", s.app.Name)
	params.Set("artifactId", s.app.Name)
	params.Set("packageName", s.javaPackage())
	params.Set("dependencies", "web")

	fetchURL := strings.TrimSuffix(s.cfg.InitializrURL, "/") + "/starter.zip?" + params.Encode()
	data, err := util.HttpGetBytes(fetchURL)
	if err != nil {
		return s.err.New("下载 starter.zip 失败", err).Third()
	}
	return s.extractZip(data, srcDir)
}

// extractZip 解包 starter.zip，剥离顶层目录前缀
func (s *ScaffoldService) extractZip(data []byte, srcDir string) error {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return s.err.New("解析 starter.zip 失败", err)
	}

	prefix := s.app.Name + "/"
	for _, f := range reader.File {
		name := strings.TrimPrefix(f.Name, prefix)
		if name == "" || strings.Contains(name, "..") {
			continue
		}
		target := filepath.Join(srcDir, filepath.FromSlash(name))

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return s.err.New(fmt.Sprintf("创建目录失败: %s", target), err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return s.err.New(fmt.Sprintf("创建目录失败: %s", target), err)
		}
		rc, err := f.Open()
		if err != nil {
			return s.err.New(fmt.Sprintf("读取压缩项失败: %s", f.Name), err)
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm())
		if err != nil {
			rc.Close()
			return s.err.New(fmt.Sprintf("创建文件失败: %s", target), err)
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			rc.Close()
			return s.err.New(fmt.Sprintf("写入文件失败: %s", target), err)
		}
		out.Close()
		rc.Close()
	}
	return nil
}

// ensureHealthEndpoint 确保工程带有 /health 探活接口
func (s *ScaffoldService) ensureHealthEndpoint(srcDir string) error {
	controllerDir := filepath.Join(srcDir, "src", "main", "java",
		filepath.FromSlash(strings.ReplaceAll(s.javaPackage(), ".", "/")))
	controllerPath := filepath.Join(controllerDir, "HealthController.java")
	if _, err := os.Stat(controllerPath); err == nil {
		return nil
	}
	if err := os.MkdirAll(controllerDir, 0o755); err != nil {
		return s.err.New("创建控制器目录失败", err)
	}
	if err := os.WriteFile(controllerPath, []byte(s.healthControllerSource()), 0o644); err != nil {
		return s.err.New("写入探活接口失败", err)
	}
	return nil
}

// writeLocalTemplate 写入内置最小工程模板
func (s *ScaffoldService) writeLocalTemplate(srcDir string) error {
	pkg := s.javaPackage()
	pkgDir := filepath.Join(srcDir, "src", "main", "java",
		filepath.FromSlash(strings.ReplaceAll(pkg, ".", "/")))
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return s.err.New("创建包目录失败", err)
	}
	if err := os.MkdirAll(filepath.Join(srcDir, "src", "main", "resources"), 0o755); err != nil {
		return s.err.New("创建资源目录失败", err)
	}

	files := map[string]string{
		filepath.Join(srcDir, "settings.gradle"):          fmt.Sprintf("rootProject.name = '%s'\n", s.app.Name),
		filepath.Join(srcDir, "build.gradle"):             s.buildGradleSource(),
		filepath.Join(pkgDir, "Application.java"):         s.applicationSource(pkg),
		filepath.Join(pkgDir, "HealthController.java"):    s.healthControllerSource(),
		filepath.Join(srcDir, "src", "main", "resources", "application.properties"): "spring.application.name=" + s.app.Name + "\n",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return s.err.New(fmt.Sprintf("写入模板文件失败: %s", path), err)
		}
	}
	return nil
}

// javaPackage 应用名转合法 Java 包名
func (s *ScaffoldService) javaPackage() string {
	name := strings.ReplaceAll(s.app.Name, "-", "")
	return "com.example." + name
}

func (s *ScaffoldService) buildGradleSource() string {
	var sb strings.Builder
	sb.WriteString("plugins {\n")
	sb.WriteString("    id 'java'\n")
	sb.WriteString(fmt.Sprintf("    id 'org.springframework.boot' version '%s'\n", s.cfg.BootVersion))
	sb.WriteString("    id 'io.spring.dependency-management' version '1.1.6'\n")
	sb.WriteString("    id 'org.cyclonedx.bom' version '1.10.0'\n")
	sb.WriteString("}\n\n")
	sb.WriteString("group = 'com.example'\n")
	sb.WriteString("version = '0.0.1-SNAPSHOT'\n\n")
	sb.WriteString("java {\n")
	sb.WriteString("    toolchain {\n")
	sb.WriteString(fmt.Sprintf("        languageVersion = JavaLanguageVersion.of(%s)\n", s.cfg.JavaVersion))
	sb.WriteString("    }\n")
	sb.WriteString("}\n\n")
	sb.WriteString("repositories {\n")
	sb.WriteString("    mavenCentral()\n")
	sb.WriteString("}\n\n")
	sb.WriteString("dependencies {\n")
	sb.WriteString("    implementation 'org.springframework.boot:spring-boot-starter-web'\n")
	sb.WriteString("}\n")
	return sb.String()
}

func (s *ScaffoldService) applicationSource(pkg string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("package %s;\n\n", pkg))
	sb.WriteString("import org.springframework.boot.SpringApplication;\n")
	sb.WriteString("import org.springframework.boot.autoconfigure.SpringBootApplication;\n\n")
	sb.WriteString("@SpringBootApplication\n")
	sb.WriteString("public class Application {\n")
	sb.WriteString("    public static void main(String[] args) {\n")
	sb.WriteString("        SpringApplication.run(Application.class, args);\n")
	sb.WriteString("    }\n")
	sb.WriteString("}\n")
	return sb.String()
}

func (s *ScaffoldService) healthControllerSource() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("package %s;\n\n", s.javaPackage()))
	sb.WriteString("import java.util.Map;\n")
	sb.WriteString("import org.springframework.web.bind.annotation.GetMapping;\n")
	sb.WriteString("import org.springframework.web.bind.annotation.RestController;\n\n")
	sb.WriteString("@RestController\n")
	sb.WriteString("public class HealthController {\n")
	sb.WriteString("    @GetMapping(\"/\")\n")
	sb.WriteString("    public Map<String, String> index() {\n")
	sb.WriteString("        return Map.of(\"app\", \"" + s.app.Name + "\");\n")
	sb.WriteString("    }\n\n")
	sb.WriteString("    @GetMapping(\"/health\")\n")
	sb.WriteString("    public Map<String, String> health() {\n")
	sb.WriteString("        return Map.of(\"status\", \"UP\");\n")
	sb.WriteString("    }\n")
	sb.WriteString("}\n")
	return sb.String()
}
