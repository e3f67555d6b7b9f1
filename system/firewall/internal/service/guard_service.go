package service

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
)

const ufwTimeout = 30 * time.Second

// GuardService 防火墙配置服务
// 只追加放行规则，任何情况下不移除已有规则；
// 开启防火墙前后都确认 SSH 端口仍在监听，避免把自己关在门外
type GuardService struct {
	cfg *config.FirewallConfig
	log *logger.Log
	err *errorc.ErrorBuilder
	// dial 可注入用于测试
	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// NewGuardService 创建防火墙配置服务
func NewGuardService(cfg *config.FirewallConfig, log *logger.Log) *GuardService {
	return &GuardService{
		cfg:  cfg,
		log:  log.WithEntryName("GuardService"),
		err:  errorc.NewErrorBuilder("GuardService"),
		dial: net.DialTimeout,
	}
}

// SSHListening 确认 SSH 端口在本机监听
func (s *GuardService) SSHListening() error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(s.cfg.SSHPort))
	conn, err := s.dial("tcp", addr, 3*time.Second)
	if err != nil {
		return s.err.New(fmt.Sprintf("SSH 端口 %d 未在监听，禁止配置防火墙", s.cfg.SSHPort), err).Unavailable()
	}
	conn.Close()
	return nil
}

// Configure 放行部署所需端口并启用 ufw
// listenPorts 为对外服务端口（80/443 等），SSH 端口始终放行
func (s *GuardService) Configure(ctx context.Context, listenPorts ...int) error {
	if !s.cfg.Enabled {
		s.log.Info("防火墙配置未启用，跳过")
		return nil
	}
	if runtime.GOOS != "linux" {
		return s.err.New(fmt.Sprintf("当前平台 %s 不支持 ufw 操作", runtime.GOOS), nil).ValidWithCtx()
	}

	// 配置前确认 SSH 可达
	if err := s.SSHListening(); err != nil {
		return err
	}

	ports := append([]int{s.cfg.SSHPort}, listenPorts...)
	for _, port := range ports {
		if err := s.allow(ctx, port); err != nil {
			return err
		}
	}

	if err := s.runUfw(ctx, "--force", "enable"); err != nil {
		return err
	}

	// 启用后再次确认 SSH 仍然可达
	if err := s.SSHListening(); err != nil {
		return s.err.New("ufw 启用后 SSH 端口不可达，请立即人工检查", err).Unavailable()
	}
	s.log.Info("防火墙已配置并启用")
	return nil
}

// allow 追加放行规则，重复放行由 ufw 幂等处理
func (s *GuardService) allow(ctx context.Context, port int) error {
	if port <= 0 || port > 65535 {
		return s.err.New(fmt.Sprintf("端口非法: %d", port), nil).ValidWithCtx()
	}
	return s.runUfw(ctx, "allow", strconv.Itoa(port)+"/tcp")
}

func (s *GuardService) runUfw(ctx context.Context, args ...string) error {
	cmdCtx, cancel := context.WithTimeout(ctx, ufwTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "ufw", args...)
	output, err := cmd.CombinedOutput()
	outStr := strings.TrimSpace(string(output))

	if cmdCtx.Err() == context.DeadlineExceeded {
		return s.err.New(fmt.Sprintf("ufw %s 执行超时", strings.Join(args, " ")), cmdCtx.Err())
	}
	if err != nil {
		return s.err.New(fmt.Sprintf("ufw %s 执行失败: %s", strings.Join(args, " "), outStr), err)
	}
	return nil
}
