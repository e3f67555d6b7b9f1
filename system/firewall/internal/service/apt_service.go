package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
)

const aptTimeout = 10 * time.Minute

// AptService 系统软件包安装服务
// 安装为尽力而为：单个包失败记录日志并继续
type AptService struct {
	log *logger.Log
	err *errorc.ErrorBuilder
}

// NewAptService 创建软件包安装服务
func NewAptService(log *logger.Log) *AptService {
	return &AptService{
		log: log.WithEntryName("AptService"),
		err: errorc.NewErrorBuilder("AptService"),
	}
}

// EnsureInstalled 逐个安装软件包，返回安装失败的包名列表
func (s *AptService) EnsureInstalled(ctx context.Context, packages ...string) []string {
	if runtime.GOOS != "linux" {
		s.log.Warnf("当前平台 %s 跳过软件包安装", runtime.GOOS)
		return packages
	}

	if err := s.run(ctx, "apt-get", "update", "-qq"); err != nil {
		s.log.WithErr(err).Warn("apt-get update 失败，继续尝试安装")
	}

	var failed []string
	for _, pkg := range packages {
		if s.isInstalled(ctx, pkg) {
			continue
		}
		if err := s.run(ctx, "apt-get", "install", "-y", "-qq", pkg); err != nil {
			s.log.WithErr(err).Warnf("软件包 %s 安装失败", pkg)
			failed = append(failed, pkg)
			continue
		}
		s.log.Infof("软件包 %s 已安装", pkg)
	}
	return failed
}

// isInstalled 通过 dpkg-query 判断包是否已安装
func (s *AptService) isInstalled(ctx context.Context, pkg string) bool {
	cmdCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "dpkg-query", "-W", "-f=${Status}", pkg)
	output, err := cmd.CombinedOutput()
	return err == nil && strings.Contains(string(output), "install ok installed")
}

func (s *AptService) run(ctx context.Context, name string, args ...string) error {
	cmdCtx, cancel := context.WithTimeout(ctx, aptTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, name, args...)
	cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")
	output, err := cmd.CombinedOutput()

	if cmdCtx.Err() == context.DeadlineExceeded {
		return s.err.New(fmt.Sprintf("%s %s 执行超时", name, strings.Join(args, " ")), cmdCtx.Err())
	}
	if err != nil {
		return s.err.New(fmt.Sprintf("%s %s 执行失败: %s",
			name, strings.Join(args, " "), strings.TrimSpace(string(output))), err)
	}
	return nil
}
