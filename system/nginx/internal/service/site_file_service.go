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

var siteNameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*\.conf$`)

// SiteFileService 站点文件管理服务
// 负责 sites-available 原子写入、sites-enabled 软链、全局配置限流 zone 注入
type SiteFileService struct {
	cfg *config.NginxConfig
	log *logger.Log
	err *errorc.ErrorBuilder
}

// NewSiteFileService 创建站点文件服务
func NewSiteFileService(cfg *config.NginxConfig, log *logger.Log) *SiteFileService {
	return &SiteFileService{
		cfg: cfg,
		log: log.WithEntryName("SiteFileService"),
		err: errorc.NewErrorBuilder("SiteFileService"),
	}
}

// SitePath 返回 sites-available 下站点文件路径
func (s *SiteFileService) SitePath(siteName string) (string, error) {
	if err := s.validateSiteName(siteName); err != nil {
		return "", err
	}
	return filepath.Join(s.cfg.SitesAvailableDir, siteName), nil
}

// EnabledPath 返回 sites-enabled 下软链路径
func (s *SiteFileService) EnabledPath(siteName string) (string, error) {
	if err := s.validateSiteName(siteName); err != nil {
		return "", err
	}
	return filepath.Join(s.cfg.SitesEnabledDir, siteName), nil
}

// WriteSite 原子写入站点配置到 sites-available
func (s *SiteFileService) WriteSite(siteName, content string) (string, error) {
	sitePath, err := s.SitePath(siteName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.cfg.SitesAvailableDir, 0o755); err != nil {
		return "", s.err.New(fmt.Sprintf("创建目录失败: %s", s.cfg.SitesAvailableDir), err)
	}
	if err := s.atomicWrite(sitePath, content); err != nil {
		return "", err
	}
	s.log.WithField("site", siteName).Infof("站点配置已写入: %s", sitePath)
	return sitePath, nil
}

// EnableSite 在 sites-enabled 建立软链指向 sites-available
// 已存在的同名软链先移除再重建
func (s *SiteFileService) EnableSite(siteName string) error {
	sitePath, err := s.SitePath(siteName)
	if err != nil {
		return err
	}
	enabledPath, err := s.EnabledPath(siteName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.cfg.SitesEnabledDir, 0o755); err != nil {
		return s.err.New(fmt.Sprintf("创建目录失败: %s", s.cfg.SitesEnabledDir), err)
	}
	if err := os.Remove(enabledPath); err != nil && !os.IsNotExist(err) {
		return s.err.New("移除旧软链失败", err)
	}
	if err := os.Symlink(sitePath, enabledPath); err != nil {
		return s.err.New(fmt.Sprintf("创建软链失败: %s", enabledPath), err)
	}
	return nil
}

// RemoveSite 移除软链与站点文件，均不存在时不报错
func (s *SiteFileService) RemoveSite(siteName string) error {
	sitePath, err := s.SitePath(siteName)
	if err != nil {
		return err
	}
	enabledPath, err := s.EnabledPath(siteName)
	if err != nil {
		return err
	}
	if err := os.Remove(enabledPath); err != nil && !os.IsNotExist(err) {
		return s.err.New("移除软链失败", err)
	}
	if err := os.Remove(sitePath); err != nil && !os.IsNotExist(err) {
		return s.err.New("移除站点文件失败", err)
	}
	s.log.WithField("site", siteName).Info("站点配置已移除")
	return nil
}

// ApplyWithValidation 写入站点配置并校验
// 校验失败时恢复旧内容（首次写入则删除新文件），保证配置始终可用
func (s *SiteFileService) ApplyWithValidation(siteName, content string, validate func() error) error {
	sitePath, err := s.SitePath(siteName)
	if err != nil {
		return err
	}

	backup, hadOld, err := s.readIfExists(sitePath)
	if err != nil {
		return err
	}

	if _, err := s.WriteSite(siteName, content); err != nil {
		return err
	}
	if err := s.EnableSite(siteName); err != nil {
		return err
	}

	if validateErr := validate(); validateErr != nil {
		if hadOld {
			if restoreErr := s.atomicWrite(sitePath, backup); restoreErr != nil {
				s.log.WithErr(restoreErr).Error("恢复旧站点配置失败")
			}
		} else {
			if removeErr := s.RemoveSite(siteName); removeErr != nil {
				s.log.WithErr(removeErr).Error("回退新站点配置失败")
			}
		}
		return s.err.New("站点配置校验失败，已回退", validateErr)
	}
	return nil
}

// rateLimitZoneLine 构造注入到全局配置的限流 zone 声明行
func (s *SiteFileService) rateLimitZoneLine(appName string) string {
	return fmt.Sprintf("    limit_req_zone $binary_remote_addr zone=%s rate=%dr/s;",
		RateLimitZoneName(appName), s.cfg.RateLimitPerSecond)
}

// EnsureRateLimitZone 向全局 nginx.conf 的 http 块注入限流 zone 声明
// 已存在时不重复注入；校验失败回滚到注入前内容
func (s *SiteFileService) EnsureRateLimitZone(appName string, validate func() error) error {
	data, err := os.ReadFile(s.cfg.GlobalConfPath)
	if err != nil {
		return s.err.New(fmt.Sprintf("读取全局配置失败: %s", s.cfg.GlobalConfPath), err)
	}
	original := string(data)
	zone := RateLimitZoneName(appName)

	if strings.Contains(original, "zone="+zone+" ") {
		return nil
	}

	lines := strings.Split(original, "\n")
	inserted := false
	var out []string
	for _, line := range lines {
		out = append(out, line)
		if !inserted && strings.TrimSpace(line) == "http {" {
			out = append(out, s.rateLimitZoneLine(appName))
			inserted = true
		}
	}
	if !inserted {
		return s.err.New("全局配置中未找到 http 块，无法注入限流 zone", nil)
	}

	if err := s.atomicWrite(s.cfg.GlobalConfPath, strings.Join(out, "\n")); err != nil {
		return err
	}
	if validateErr := validate(); validateErr != nil {
		if restoreErr := s.atomicWrite(s.cfg.GlobalConfPath, original); restoreErr != nil {
			s.log.WithErr(restoreErr).Error("恢复全局配置失败")
		}
		return s.err.New("限流 zone 注入后校验失败，已回退", validateErr)
	}
	s.log.WithField("zone", zone).Info("限流 zone 已注入全局配置")
	return nil
}

// RemoveRateLimitZone 从全局配置移除本应用的限流 zone 声明
// 只删除引用本应用 zone 的行，不触碰其余内容；校验失败回滚
func (s *SiteFileService) RemoveRateLimitZone(appName string, validate func() error) error {
	data, err := os.ReadFile(s.cfg.GlobalConfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return s.err.New(fmt.Sprintf("读取全局配置失败: %s", s.cfg.GlobalConfPath), err)
	}
	original := string(data)
	zone := RateLimitZoneName(appName)

	var out []string
	removed := false
	for _, line := range strings.Split(original, "\n") {
		if strings.Contains(line, "limit_req_zone") && strings.Contains(line, "zone="+zone+" ") {
			removed = true
			continue
		}
		out = append(out, line)
	}
	if !removed {
		return nil
	}

	if err := s.atomicWrite(s.cfg.GlobalConfPath, strings.Join(out, "\n")); err != nil {
		return err
	}
	if validateErr := validate(); validateErr != nil {
		if restoreErr := s.atomicWrite(s.cfg.GlobalConfPath, original); restoreErr != nil {
			s.log.WithErr(restoreErr).Error("恢复全局配置失败")
		}
		return s.err.New("限流 zone 移除后校验失败，已回退", validateErr)
	}
	s.log.WithField("zone", zone).Info("限流 zone 已从全局配置移除")
	return nil
}

// atomicWrite 同目录临时文件 + rename 原子写入
func (s *SiteFileService) atomicWrite(path, content string) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return s.err.New("创建临时文件失败", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.WriteString(content); err != nil {
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
	if err := os.Chmod(tmpPath, s.cfg.Mode()); err != nil {
		os.Remove(tmpPath)
		return s.err.New("设置文件权限失败", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return s.err.New(fmt.Sprintf("重命名失败: %s", path), err)
	}
	return nil
}

// readIfExists 读取文件，返回内容与是否存在
func (s *SiteFileService) readIfExists(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, s.err.New(fmt.Sprintf("读取文件失败: %s", path), err)
	}
	return string(data), true, nil
}

// validateSiteName 校验站点文件名，防止路径穿越
func (s *SiteFileService) validateSiteName(siteName string) error {
	if siteName == "" {
		return s.err.New("站点文件名不能为空", nil).ValidWithCtx()
	}
	if strings.Contains(siteName, "/") || strings.Contains(siteName, "..") {
		return s.err.New(fmt.Sprintf("站点文件名非法: %s", siteName), nil).ValidWithCtx()
	}
	if !siteNameRegex.MatchString(siteName) {
		return s.err.New(fmt.Sprintf("站点文件名格式不正确: %s", siteName), nil).ValidWithCtx()
	}
	return nil
}
