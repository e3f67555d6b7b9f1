// Package systemd 管理应用的 systemd 模板 unit 与服务生命周期
// 应用以 <app>@.service 模板部署，实例名中的端口通过 %i 传入
package systemd

import (
	"context"
	"fmt"
	"path/filepath"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
	"fabu/system/systemd/internal/model/dto"
	"fabu/system/systemd/internal/service"
)

// Service systemd 模块门面
type Service struct {
	generator *service.UnitGeneratorService
	file      *service.UnitFileService
	ctl       *service.SystemctlService
	journal   *service.JournalService
	cfg       *config.SystemdConfig
	log       *logger.Log
}

// NewService 创建 systemd 模块
func NewService(cfg *config.SystemdConfig, log *logger.Log) *Service {
	return &Service{
		generator: service.NewUnitGeneratorService(log),
		file:      service.NewUnitFileService(cfg, log),
		ctl:       service.NewSystemctlService(cfg, log),
		journal:   service.NewJournalService(cfg, log),
		cfg:       cfg,
		log:       log.WithEntryName("systemd"),
	}
}

// AppUnitParams 根据应用配置构造模板 unit 参数
// 模板实例化时 %i 展开为端口号
func (s *Service) AppUnitParams(app *config.AppConfig) *dto.ServiceUnitParams {
	jarPath := filepath.Join(app.CurrentLink(), "app.jar")
	execStart := fmt.Sprintf("%s $JAVA_OPTS -jar %s --server.port=%%i --spring.profiles.active=%s",
		s.cfg.JavaBin, jarPath, app.SpringProfile)

	return &dto.ServiceUnitParams{
		Description:      fmt.Sprintf("%s (port %%i)", app.Name),
		After:            []string{"network.target"},
		Type:             "simple",
		User:             app.User,
		WorkingDirectory: app.CurrentLink(),
		EnvironmentFile:  app.EnvFile,
		ExecStart:        execStart,
		Restart:          "always",
		RestartSec:       3,
	}
}

// InstallAppUnit 渲染并写入应用的模板 unit，随后 daemon-reload
// 返回写入的 unit 文件路径
func (s *Service) InstallAppUnit(ctx context.Context, app *config.AppConfig) (string, error) {
	content, err := s.generator.Generate(s.AppUnitParams(app))
	if err != nil {
		return "", err
	}
	unitPath, err := s.file.Write(app.UnitTemplateName(), content)
	if err != nil {
		return "", err
	}
	if err := s.ctl.DaemonReload(ctx); err != nil {
		return "", err
	}
	return unitPath, nil
}

// RenderAppUnit 仅渲染 unit 内容，不写入
func (s *Service) RenderAppUnit(app *config.AppConfig) (string, error) {
	return s.generator.Generate(s.AppUnitParams(app))
}

// UnitPath 返回模板 unit 文件路径
func (s *Service) UnitPath(app *config.AppConfig) (string, error) {
	return s.file.UnitPath(app.UnitTemplateName())
}

// RemoveAppUnit 删除模板 unit 文件并 daemon-reload
func (s *Service) RemoveAppUnit(ctx context.Context, app *config.AppConfig) error {
	if err := s.file.Remove(app.UnitTemplateName()); err != nil {
		return err
	}
	return s.ctl.DaemonReload(ctx)
}

// EnsureStarted 确保指定端口实例运行（active 则 restart，否则 start）
func (s *Service) EnsureStarted(ctx context.Context, app *config.AppConfig, port int) error {
	return s.ctl.EnsureStarted(ctx, app.UnitInstanceName(port))
}

// Stop 停止指定端口实例
func (s *Service) Stop(ctx context.Context, app *config.AppConfig, port int) error {
	return s.ctl.Stop(ctx, app.UnitInstanceName(port))
}

// Disable 取消指定端口实例的开机自启
func (s *Service) Disable(ctx context.Context, app *config.AppConfig, port int) error {
	return s.ctl.Disable(ctx, app.UnitInstanceName(port))
}

// Enable 设置指定端口实例开机自启
func (s *Service) Enable(ctx context.Context, app *config.AppConfig, port int) error {
	return s.ctl.Enable(ctx, app.UnitInstanceName(port))
}

// IsActive 查询指定端口实例是否 active
func (s *Service) IsActive(ctx context.Context, app *config.AppConfig, port int) (bool, error) {
	return s.ctl.IsActive(ctx, app.UnitInstanceName(port))
}

// Status 查询指定端口实例状态
func (s *Service) Status(ctx context.Context, app *config.AppConfig, port int) (*dto.ServiceStatus, error) {
	return s.ctl.Status(ctx, app.UnitInstanceName(port))
}

// JournalTail 读取指定端口实例最近日志
func (s *Service) JournalTail(ctx context.Context, app *config.AppConfig, port, lines int) (string, error) {
	return s.journal.Tail(ctx, app.UnitInstanceName(port), lines)
}

// DaemonReload 重新加载 systemd 配置
func (s *Service) DaemonReload(ctx context.Context) error {
	return s.ctl.DaemonReload(ctx)
}
