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
)

// JournalService journalctl 日志读取服务
type JournalService struct {
	cfg *config.SystemdConfig
	log *logger.Log
	err *errorc.ErrorBuilder
}

// NewJournalService 创建日志读取服务
func NewJournalService(cfg *config.SystemdConfig, log *logger.Log) *JournalService {
	return &JournalService{
		cfg: cfg,
		log: log.WithEntryName("JournalService"),
		err: errorc.NewErrorBuilder("JournalService"),
	}
}

// Tail 读取指定 unit 最近 lines 行日志
func (s *JournalService) Tail(ctx context.Context, unitName string, lines int) (string, error) {
	if runtime.GOOS != "linux" {
		return "", s.err.New(fmt.Sprintf("当前平台 %s 不支持 journalctl 操作", runtime.GOOS), nil).ValidWithCtx()
	}
	if lines <= 0 {
		lines = 100
	}

	cmdCtx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "journalctl",
		"-u", unitName, "-n", strconv.Itoa(lines), "--no-pager")
	output, err := cmd.CombinedOutput()
	outStr := strings.TrimSpace(string(output))

	if cmdCtx.Err() == context.DeadlineExceeded {
		return "", s.err.New("journalctl 执行超时", cmdCtx.Err())
	}
	if err != nil {
		return "", s.err.New(fmt.Sprintf("journalctl 读取失败: %s", outStr), err)
	}
	return outStr, nil
}
