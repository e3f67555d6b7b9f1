package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
)

// StateService 部署状态服务
// 维护 active_port 状态文件，记录当前对外提供服务的端口
type StateService struct {
	app *config.AppConfig
	log *logger.Log
	err *errorc.ErrorBuilder
}

// NewStateService 创建部署状态服务
func NewStateService(app *config.AppConfig, log *logger.Log) *StateService {
	return &StateService{
		app: app,
		log: log.WithEntryName("StateService"),
		err: errorc.NewErrorBuilder("StateService"),
	}
}

// ReadActivePort 读取当前激活端口
// 文件不存在（首次部署）时返回 ok=false
func (s *StateService) ReadActivePort() (port int, ok bool, err error) {
	data, readErr := os.ReadFile(s.app.ActivePortFile())
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return 0, false, nil
		}
		return 0, false, s.err.New("读取 active_port 失败", readErr)
	}

	port, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if convErr != nil {
		return 0, false, s.err.New(fmt.Sprintf("active_port 内容非法: %q", strings.TrimSpace(string(data))), convErr)
	}
	if port != s.app.PortBlue && port != s.app.PortGreen {
		return 0, false, s.err.New(fmt.Sprintf("active_port %d 不在蓝绿端口范围内", port), nil)
	}
	return port, true, nil
}

// WriteActivePort 原子写入当前激活端口
func (s *StateService) WriteActivePort(port int) error {
	if port != s.app.PortBlue && port != s.app.PortGreen {
		return s.err.New(fmt.Sprintf("端口 %d 不在蓝绿端口范围内", port), nil).ValidWithCtx()
	}

	dir := filepath.Dir(s.app.ActivePortFile())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return s.err.New("创建状态目录失败", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".active_port.tmp-*")
	if err != nil {
		return s.err.New("创建临时文件失败", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.WriteString(strconv.Itoa(port) + "\n"); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return s.err.New("写入临时文件失败", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return s.err.New("同步临时文件失败", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return s.err.New("关闭临时文件失败", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return s.err.New("设置文件权限失败", err)
	}
	if err := os.Rename(tmpPath, s.app.ActivePortFile()); err != nil {
		os.Remove(tmpPath)
		return s.err.New("切换 active_port 失败", err)
	}

	s.log.WithPort(port).Info("active_port 已更新")
	return nil
}

// NextPort 计算下一次部署的目标端口
// 无状态文件（首次部署）时使用蓝色端口
func (s *StateService) NextPort() (target int, active int, firstDeploy bool, err error) {
	port, ok, err := s.ReadActivePort()
	if err != nil {
		return 0, 0, false, err
	}
	if !ok {
		return s.app.PortBlue, 0, true, nil
	}
	return s.app.OtherPort(port), port, false, nil
}
