package service

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
)

// unit 文件名校验：字母数字开头，允许 . - _ @，必须以 .service 结尾
var unitNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.@_-]*\.service$`)

// UnitFileService unit 文件管理服务
// 负责 unit 文件的原子写入与删除，不负责 systemctl 调用
type UnitFileService struct {
	cfg *config.SystemdConfig
	log *logger.Log
	err *errorc.ErrorBuilder
}

// NewUnitFileService 创建 unit 文件服务
func NewUnitFileService(cfg *config.SystemdConfig, log *logger.Log) *UnitFileService {
	return &UnitFileService{
		cfg: cfg,
		log: log.WithEntryName("UnitFileService"),
		err: errorc.NewErrorBuilder("UnitFileService"),
	}
}

// UnitPath 返回 unit 文件的完整路径
func (s *UnitFileService) UnitPath(unitName string) (string, error) {
	if err := s.validateUnitName(unitName); err != nil {
		return "", err
	}
	return filepath.Join(s.cfg.UnitDir, unitName), nil
}

// Write 原子写入 unit 文件
// 先写入同目录临时文件，Sync 后 Rename，避免出现半写状态
func (s *UnitFileService) Write(unitName, content string) (string, error) {
	unitPath, err := s.UnitPath(unitName)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.cfg.UnitDir, 0o755); err != nil {
		return "", s.err.New(fmt.Sprintf("创建 unit 目录失败: %s", s.cfg.UnitDir), err)
	}

	tmpFile, err := os.CreateTemp(s.cfg.UnitDir, "."+unitName+".tmp-*")
	if err != nil {
		return "", s.err.New("创建临时文件失败", err)
	}
	tmpPath := tmpFile.Name()

	cleanup := func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		cleanup()
		return "", s.err.New("写入临时文件失败", err)
	}
	if err := tmpFile.Sync(); err != nil {
		cleanup()
		return "", s.err.New("同步临时文件失败", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", s.err.New("关闭临时文件失败", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", s.err.New("设置文件权限失败", err)
	}
	if err := os.Rename(tmpPath, unitPath); err != nil {
		os.Remove(tmpPath)
		return "", s.err.New(fmt.Sprintf("重命名 unit 文件失败: %s", unitPath), err)
	}

	s.log.WithField("unit", unitName).Infof("unit 文件已写入: %s", unitPath)
	return unitPath, nil
}

// Exists 检查 unit 文件是否存在
func (s *UnitFileService) Exists(unitName string) (bool, error) {
	unitPath, err := s.UnitPath(unitName)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(unitPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, s.err.New("检查 unit 文件失败", err)
	}
	return true, nil
}

// Remove 删除 unit 文件，文件不存在不报错
func (s *UnitFileService) Remove(unitName string) error {
	unitPath, err := s.UnitPath(unitName)
	if err != nil {
		return err
	}
	if err := os.Remove(unitPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return s.err.New(fmt.Sprintf("删除 unit 文件失败: %s", unitPath), err)
	}
	s.log.WithField("unit", unitName).Infof("unit 文件已删除: %s", unitPath)
	return nil
}

// validateUnitName 校验 unit 文件名，防止路径穿越
func (s *UnitFileService) validateUnitName(unitName string) error {
	if unitName == "" {
		return s.err.New("unit 文件名不能为空", nil).ValidWithCtx()
	}
	if strings.Contains(unitName, "/") || strings.Contains(unitName, "..") {
		return s.err.New(fmt.Sprintf("unit 文件名非法: %s", unitName), nil).ValidWithCtx()
	}
	if !unitNameRegex.MatchString(unitName) {
		return s.err.New(fmt.Sprintf("unit 文件名格式不正确: %s", unitName), nil).ValidWithCtx()
	}
	return nil
}
