package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strings"
	"time"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
)

// unitRemover systemd 清理能力
type unitRemover interface {
	Stop(ctx context.Context, app *config.AppConfig, port int) error
	Disable(ctx context.Context, app *config.AppConfig, port int) error
	RemoveAppUnit(ctx context.Context, app *config.AppConfig) error
}

// siteRemover nginx 清理能力
type siteRemover interface {
	RemoveSite(ctx context.Context, siteName string) error
	RemoveRateLimitZone(ctx context.Context, appName string) error
	Reload(ctx context.Context) error
}

// certRemover 证书清理能力
type certRemover interface {
	Enabled() bool
	RemoveAll() error
}

// sshGuard SSH 可达性检查
type sshGuard interface {
	SSHListening() error
}

// DestroyService 应用销毁服务
// 逐项移除部署产生的痕迹：实例、unit、站点、限流 zone、
// 证书、安装目录、环境文件与专用账户。
// 清理为尽力而为：单项失败记录后继续，最终汇总失败项。
// 共享资源（nginx 本体、SSH、java、ufw 规则）一律不动。
type DestroyService struct {
	cfg   *config.Config
	units unitRemover
	sites siteRemover
	certs certRemover
	guard sshGuard
	log   *logger.Log
	err   *errorc.ErrorBuilder
	// lookupUser / deleteUser 可注入用于测试
	lookupUser func(name string) (*user.User, error)
	deleteUser func(ctx context.Context, name string) error
}

// NewDestroyService 创建销毁服务
func NewDestroyService(cfg *config.Config, units unitRemover, sites siteRemover, certs certRemover, guard sshGuard, log *logger.Log) *DestroyService {
	return &DestroyService{
		cfg:        cfg,
		units:      units,
		sites:      sites,
		certs:      certs,
		guard:      guard,
		log:        log.WithEntryName("DestroyService"),
		err:        errorc.NewErrorBuilder("DestroyService"),
		lookupUser: user.Lookup,
		deleteUser: deleteSystemUser,
	}
}

func deleteSystemUser(ctx context.Context, name string) error {
	cmdCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "userdel", name)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("userdel %s 失败: %s: %w", name, strings.TrimSpace(string(output)), err)
	}
	return nil
}

// Run 执行销毁，返回清理失败的项目列表
func (s *DestroyService) Run(ctx context.Context) []string {
	app := &s.cfg.App
	var failed []string

	fail := func(item string, err error) {
		s.log.WithErr(err).Warnf("%s 清理失败", item)
		failed = append(failed, item)
	}

	// 销毁前后核对 SSH 可达性，销毁不得影响远程访问
	sshBefore := s.guard.SSHListening() == nil
	if !sshBefore {
		s.log.Warn("销毁前 SSH 端口不可达")
	}

	// 两个端口实例都防御性地停掉，不依赖状态文件
	for _, port := range []int{app.PortBlue, app.PortGreen} {
		if err := s.units.Stop(ctx, app, port); err != nil {
			fail(fmt.Sprintf("停止实例 %d", port), err)
		}
		if err := s.units.Disable(ctx, app, port); err != nil {
			fail(fmt.Sprintf("禁用实例 %d", port), err)
		}
	}

	if err := s.units.RemoveAppUnit(ctx, app); err != nil {
		fail("移除服务单元", err)
	}

	if err := s.sites.RemoveSite(ctx, app.SiteName()); err != nil {
		fail("移除站点配置", err)
	}
	// 限流 zone 只摘除本应用的声明行，全局配置其余内容保持不变
	if err := s.sites.RemoveRateLimitZone(ctx, app.Name); err != nil {
		fail("移除限流配置", err)
	}
	if err := s.sites.Reload(ctx); err != nil {
		fail("重载 nginx", err)
	}

	if s.certs.Enabled() {
		if err := s.certs.RemoveAll(); err != nil {
			fail("移除证书", err)
		}
	}

	if err := os.RemoveAll(app.InstallRoot); err != nil {
		fail("移除安装目录", err)
	}
	if err := os.Remove(app.EnvFile); err != nil && !os.IsNotExist(err) {
		fail("移除环境文件", err)
	}

	if err := s.removeUser(ctx); err != nil {
		fail("移除服务账户", err)
	}

	if sshBefore {
		if err := s.guard.SSHListening(); err != nil {
			fail("SSH 可达性", err)
		}
	}

	if len(failed) == 0 {
		s.log.Infof("应用 %s 已销毁", app.Name)
	} else {
		s.log.Warnf("应用 %s 销毁完成，%d 项清理失败: %s", app.Name, len(failed), strings.Join(failed, "、"))
	}
	return failed
}

// removeUser 删除专用服务账户
// 仅当账户的 home 目录就是安装根目录且该目录已清除时才删除，
// 避免误删共享账户
func (s *DestroyService) removeUser(ctx context.Context) error {
	app := &s.cfg.App
	u, err := s.lookupUser(app.User)
	if err != nil {
		// 账户不存在视为已清理
		return nil
	}
	if u.HomeDir != app.InstallRoot {
		s.log.Warnf("账户 %s 的 home 目录 %s 不是安装目录，保留账户", app.User, u.HomeDir)
		return nil
	}
	if _, statErr := os.Stat(app.InstallRoot); !os.IsNotExist(statErr) {
		return s.err.New("安装目录尚未清除，跳过账户删除", nil)
	}
	return s.deleteUser(ctx, app.User)
}
