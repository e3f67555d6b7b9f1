// Package ssl 管理 ACME 证书签发
package ssl

import (
	"go.uber.org/zap"

	"fabu/pkg/core/config"
	"fabu/system/ssl/internal/service"
)

// Service ssl 模块门面
type Service struct {
	acme *service.AcmeService
	cfg  *config.TLSConfig
}

// NewService 创建 ssl 模块
func NewService(cfg *config.TLSConfig, log *zap.Logger) *Service {
	return &Service{
		acme: service.NewAcmeService(cfg, log),
		cfg:  cfg,
	}
}

// Enabled 是否启用 TLS
func (s *Service) Enabled() bool {
	return s.cfg.Enabled()
}

// Ensure 确保证书存在且有效
func (s *Service) Ensure() error {
	return s.acme.Ensure()
}

// CertPath 站点引用的证书路径
func (s *Service) CertPath() string {
	return s.acme.CertPath()
}

// KeyPath 站点引用的私钥路径
func (s *Service) KeyPath() string {
	return s.acme.KeyPath()
}

// RemoveAll 删除域名的全部证书文件
func (s *Service) RemoveAll() error {
	return s.acme.RemoveAll()
}
