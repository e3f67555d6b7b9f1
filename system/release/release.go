// Package release 管理发布归档、保留策略与蓝绿部署状态
// 每次构建归档到 releases/<时间戳>，current 软链指向激活发布，
// active_port 文件记录当前对外端口
package release

import (
	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
	"fabu/system/release/internal/model/dto"
	"fabu/system/release/internal/service"
)

// Release 一次构建产物的归档
type Release = dto.Release

// JarFileName 发布目录内的产物文件名
const JarFileName = service.JarFileName

// SbomFileName 发布目录内的 SBOM 文件名
const SbomFileName = service.SbomFileName

// Service release 模块门面
type Service struct {
	releases *service.ReleaseService
	state    *service.StateService
	app      *config.AppConfig
}

// NewService 创建 release 模块
func NewService(app *config.AppConfig, log *logger.Log) *Service {
	return &Service{
		releases: service.NewReleaseService(app, log),
		state:    service.NewStateService(app, log),
		app:      app,
	}
}

// Create 归档一次构建产物
func (s *Service) Create(jarPath, sbomPath string) (*dto.Release, error) {
	return s.releases.Create(jarPath, sbomPath)
}

// Activate 切换 current 软链到指定发布
func (s *Service) Activate(releaseID string) error {
	return s.releases.Activate(releaseID)
}

// CurrentID 返回当前激活发布标识
func (s *Service) CurrentID() (string, error) {
	return s.releases.CurrentID()
}

// List 按时间倒序列出全部发布
func (s *Service) List() ([]*dto.Release, error) {
	return s.releases.List()
}

// Previous 返回当前发布之前最近的发布
func (s *Service) Previous() (*dto.Release, error) {
	return s.releases.Previous()
}

// Prune 清理超出保留数的历史发布
func (s *Service) Prune(keep int) ([]string, error) {
	return s.releases.Prune(keep)
}

// JarSha256 读取发布产物的校验和
func (s *Service) JarSha256(releaseID string) (string, error) {
	return s.releases.JarSha256(releaseID)
}

// ReadActivePort 读取当前激活端口
func (s *Service) ReadActivePort() (int, bool, error) {
	return s.state.ReadActivePort()
}

// WriteActivePort 写入当前激活端口
func (s *Service) WriteActivePort(port int) error {
	return s.state.WriteActivePort(port)
}

// NextPort 计算下一次部署的目标端口
func (s *Service) NextPort() (target int, active int, firstDeploy bool, err error) {
	return s.state.NextPort()
}
