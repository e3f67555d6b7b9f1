package service

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
)

// java -version 输出形如 openjdk version "17.0.12" 2024-07-16
var javaVersionRegex = regexp.MustCompile(`version "([^"]+)"`)

// BuildService 构建服务
// 在源码目录执行构建命令并定位产物，SBOM 生成为尽力而为
type BuildService struct {
	app *config.AppConfig
	cfg *config.BuildConfig
	log *logger.Log
	err *errorc.ErrorBuilder
}

// NewBuildService 创建构建服务
func NewBuildService(app *config.AppConfig, cfg *config.BuildConfig, log *logger.Log) *BuildService {
	return &BuildService{
		app: app,
		cfg: cfg,
		log: log.WithEntryName("BuildService"),
		err: errorc.NewErrorBuilder("BuildService"),
	}
}

// Build 执行构建命令并返回产物 jar 路径
func (s *BuildService) Build(ctx context.Context) (string, error) {
	s.log.WithField("command", s.cfg.Command).Info("开始构建")
	if err := s.runInSource(ctx, s.cfg.Command); err != nil {
		return "", err
	}
	return s.locateArtifact()
}

// Sbom 生成 SBOM 并返回文件路径
// 失败或产物缺失返回错误，由调用方决定是否继续
func (s *BuildService) Sbom(ctx context.Context) (string, error) {
	if s.cfg.SbomCommand == "" {
		return "", s.err.New("未配置 SBOM 生成命令", nil).ValidWithCtx()
	}
	if err := s.runInSource(ctx, s.cfg.SbomCommand); err != nil {
		return "", err
	}
	sbomPath := filepath.Join(s.app.SourceDir(), filepath.FromSlash(s.cfg.SbomPath))
	matches, err := filepath.Glob(sbomPath)
	if err != nil || len(matches) == 0 {
		return "", s.err.New(fmt.Sprintf("SBOM 产物未找到: %s", sbomPath), err)
	}
	return matches[0], nil
}

// JavaVersion 查询 Java 运行时版本
func (s *BuildService) JavaVersion(ctx context.Context, javaBin string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	// java -version 输出到 stderr
	cmd := exec.CommandContext(cmdCtx, javaBin, "-version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", s.err.New(fmt.Sprintf("java -version 执行失败: %s", strings.TrimSpace(string(output))), err)
	}
	if m := javaVersionRegex.FindStringSubmatch(string(output)); len(m) == 2 {
		return m[1], nil
	}
	return strings.TrimSpace(strings.SplitN(string(output), "\n", 2)[0]), nil
}

// runInSource 在源码目录执行 shell 命令，带超时控制
func (s *BuildService) runInSource(ctx context.Context, commandLine string) error {
	cmdCtx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", commandLine)
	cmd.Dir = s.app.SourceDir()
	output, err := cmd.CombinedOutput()

	if cmdCtx.Err() == context.DeadlineExceeded {
		return s.err.New(fmt.Sprintf("命令执行超时: %s", commandLine), cmdCtx.Err())
	}
	if err != nil {
		return s.err.New(fmt.Sprintf("命令执行失败: %s\n%s", commandLine, s.tailOutput(string(output))), err)
	}
	return nil
}

// locateArtifact 按产物通配符定位 jar，排除 -plain 包
// 多个候选时取文件名最大者（版本号最新）
func (s *BuildService) locateArtifact() (string, error) {
	pattern := filepath.Join(s.app.SourceDir(), filepath.FromSlash(s.cfg.ArtifactGlob))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", s.err.New(fmt.Sprintf("产物通配符非法: %s", pattern), err)
	}

	var candidates []string
	for _, m := range matches {
		if strings.HasSuffix(m, "-plain.jar") {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return "", s.err.New(fmt.Sprintf("构建产物未找到: %s", pattern), nil).NotFound()
	}
	sort.Strings(candidates)
	artifact := candidates[len(candidates)-1]
	s.log.WithField("artifact", artifact).Info("构建产物已定位")
	return artifact, nil
}

// tailOutput 截取命令输出末尾，避免日志过长
func (s *BuildService) tailOutput(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) <= 30 {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-30:], "\n")
}
