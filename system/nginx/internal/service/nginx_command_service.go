package service

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
	"fabu/system/nginx/internal/model/dto"
)

// nginx -v 输出形如 "nginx version: nginx/1.24.0"
var nginxVersionRegex = regexp.MustCompile(`nginx/(\d+\.\d+\.\d+)`)

// NginxCommandService nginx 命令执行服务
// 封装配置校验、重载与版本查询
type NginxCommandService struct {
	cfg *config.NginxConfig
	log *logger.Log
	err *errorc.ErrorBuilder
}

// NewNginxCommandService 创建命令执行服务
func NewNginxCommandService(cfg *config.NginxConfig, log *logger.Log) *NginxCommandService {
	return &NginxCommandService{
		cfg: cfg,
		log: log.WithEntryName("NginxCommandService"),
		err: errorc.NewErrorBuilder("NginxCommandService"),
	}
}

// checkPlatform nginx 管理仅支持 linux
func (s *NginxCommandService) checkPlatform() error {
	if runtime.GOOS != "linux" {
		return s.err.New(fmt.Sprintf("当前平台 %s 不支持 nginx 操作", runtime.GOOS), nil).ValidWithCtx()
	}
	return nil
}

// runCommand 按配置的命令行执行，带超时控制
func (s *NginxCommandService) runCommand(ctx context.Context, commandLine string) (string, error) {
	if err := s.checkPlatform(); err != nil {
		return "", err
	}
	parts := strings.Fields(commandLine)
	if len(parts) == 0 {
		return "", s.err.New("命令不能为空", nil).ValidWithCtx()
	}

	cmdCtx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, parts[0], parts[1:]...)
	output, err := cmd.CombinedOutput()
	outStr := strings.TrimSpace(string(output))

	if cmdCtx.Err() == context.DeadlineExceeded {
		return outStr, s.err.New(fmt.Sprintf("%s 执行超时", commandLine), cmdCtx.Err())
	}
	if err != nil {
		return outStr, s.err.New(fmt.Sprintf("%s 执行失败: %s", commandLine, outStr), err)
	}
	return outStr, nil
}

// Validate 校验 nginx 配置（nginx -t）
func (s *NginxCommandService) Validate(ctx context.Context) error {
	s.log.Info("校验 nginx 配置")
	_, err := s.runCommand(ctx, s.cfg.ValidateCommand)
	return err
}

// Reload 重载 nginx 配置（nginx -s reload）
func (s *NginxCommandService) Reload(ctx context.Context) error {
	s.log.Info("重载 nginx 配置")
	_, err := s.runCommand(ctx, s.cfg.ReloadCommand)
	return err
}

// Version 查询 nginx 版本
func (s *NginxCommandService) Version(ctx context.Context) (*dto.NginxVersion, error) {
	out, err := s.runCommand(ctx, s.cfg.VersionCommand)
	if err != nil {
		return nil, err
	}
	return ParseNginxVersion(out), nil
}

// ParseNginxVersion 解析 nginx -v 输出
func ParseNginxVersion(raw string) *dto.NginxVersion {
	v := &dto.NginxVersion{Raw: raw}
	if m := nginxVersionRegex.FindStringSubmatch(raw); len(m) == 2 {
		v.Version = m[1]
	}
	return v
}
