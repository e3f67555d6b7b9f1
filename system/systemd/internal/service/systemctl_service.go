package service

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
	"fabu/system/systemd/internal/model/dto"
)

// SystemctlService systemctl 调用服务
// 封装 daemon-reload / enable / start / stop / restart / status 等操作
type SystemctlService struct {
	cfg *config.SystemdConfig
	log *logger.Log
	err *errorc.ErrorBuilder
}

// NewSystemctlService 创建 systemctl 服务
func NewSystemctlService(cfg *config.SystemdConfig, log *logger.Log) *SystemctlService {
	return &SystemctlService{
		cfg: cfg,
		log: log.WithEntryName("SystemctlService"),
		err: errorc.NewErrorBuilder("SystemctlService"),
	}
}

// checkPlatform 检查运行平台，systemd 仅支持 linux
func (s *SystemctlService) checkPlatform() error {
	if runtime.GOOS != "linux" {
		return s.err.New(fmt.Sprintf("当前平台 %s 不支持 systemd 操作", runtime.GOOS), nil).ValidWithCtx()
	}
	return nil
}

// runCommand 执行 systemctl 命令，带超时控制
func (s *SystemctlService) runCommand(ctx context.Context, args ...string) (string, error) {
	if err := s.checkPlatform(); err != nil {
		return "", err
	}

	cmdCtx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "systemctl", args...)
	output, err := cmd.CombinedOutput()
	outStr := strings.TrimSpace(string(output))

	if cmdCtx.Err() == context.DeadlineExceeded {
		return outStr, s.err.New(fmt.Sprintf("systemctl %s 执行超时", strings.Join(args, " ")), cmdCtx.Err())
	}
	if err != nil {
		return outStr, s.err.New(fmt.Sprintf("systemctl %s 执行失败: %s", strings.Join(args, " "), outStr), err)
	}
	return outStr, nil
}

// DaemonReload 重新加载 systemd 配置
func (s *SystemctlService) DaemonReload(ctx context.Context) error {
	s.log.Info("执行 daemon-reload")
	_, err := s.runCommand(ctx, "daemon-reload")
	return err
}

// Enable 开机自启
func (s *SystemctlService) Enable(ctx context.Context, unitName string) error {
	_, err := s.runCommand(ctx, "enable", unitName)
	return err
}

// Disable 取消开机自启，unit 不存在时不报错
func (s *SystemctlService) Disable(ctx context.Context, unitName string) error {
	out, err := s.runCommand(ctx, "disable", unitName)
	if err != nil && strings.Contains(out, "does not exist") {
		return nil
	}
	return err
}

// Start 启动服务
func (s *SystemctlService) Start(ctx context.Context, unitName string) error {
	s.log.WithField("unit", unitName).Info("启动服务")
	_, err := s.runCommand(ctx, "start", unitName)
	return err
}

// Stop 停止服务，服务未加载时不报错
func (s *SystemctlService) Stop(ctx context.Context, unitName string) error {
	s.log.WithField("unit", unitName).Info("停止服务")
	out, err := s.runCommand(ctx, "stop", unitName)
	if err != nil && (strings.Contains(out, "not loaded") || strings.Contains(out, "does not exist")) {
		return nil
	}
	return err
}

// Restart 重启服务
func (s *SystemctlService) Restart(ctx context.Context, unitName string) error {
	s.log.WithField("unit", unitName).Info("重启服务")
	_, err := s.runCommand(ctx, "restart", unitName)
	return err
}

// IsActive 判断服务是否处于 active 状态
func (s *SystemctlService) IsActive(ctx context.Context, unitName string) (bool, error) {
	out, err := s.runCommand(ctx, "is-active", unitName)
	if err != nil {
		// is-active 对非 active 状态返回非零退出码，输出本身即状态
		switch out {
		case "inactive", "failed", "activating", "deactivating", "unknown":
			return false, nil
		}
		return false, err
	}
	return out == "active", nil
}

// EnsureStarted 确保服务以最新配置运行
// 已 active 则 restart（重新读取 unit 与环境），否则 start
func (s *SystemctlService) EnsureStarted(ctx context.Context, unitName string) error {
	active, err := s.IsActive(ctx, unitName)
	if err != nil {
		return err
	}
	if active {
		return s.Restart(ctx, unitName)
	}
	return s.Start(ctx, unitName)
}

// Status 查询服务状态详情
func (s *SystemctlService) Status(ctx context.Context, unitName string) (*dto.ServiceStatus, error) {
	out, err := s.runCommand(ctx, "show", unitName,
		"--property=Id,Description,LoadState,ActiveState,SubState,UnitFileState,MainPID,ExecMainStartTimestamp,MemoryCurrent,Result")
	if err != nil {
		return nil, err
	}
	return parseShowOutput(unitName, out), nil
}

// parseShowOutput 解析 systemctl show 的 key=value 输出
func parseShowOutput(unitName, out string) *dto.ServiceStatus {
	status := &dto.ServiceStatus{Name: unitName}
	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch key {
		case "Description":
			status.Description = value
		case "LoadState":
			status.LoadState = value
		case "ActiveState":
			status.ActiveState = value
		case "SubState":
			status.SubState = value
		case "UnitFileState":
			status.UnitFileState = value
		case "MainPID":
			if pid, convErr := strconv.Atoi(value); convErr == nil {
				status.MainPID = pid
			}
		case "ExecMainStartTimestamp":
			status.ExecMainStartAt = value
		case "MemoryCurrent":
			// 可能是 [not set] 或数字
			if value != "[not set]" {
				if mem, convErr := strconv.ParseUint(value, 10, 64); convErr == nil {
					status.MemoryCurrent = mem
				}
			}
		case "Result":
			status.Result = value
		}
	}
	return status
}
