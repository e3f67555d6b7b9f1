package service

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/providers/http/webroot"
	"github.com/go-acme/lego/v4/registration"
	"go.uber.org/zap"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
)

// renewBefore 证书剩余有效期低于该值时触发续期
const renewBefore = 30 * 24 * time.Hour

// acmeUser 实现 lego 的账户接口
type acmeUser struct {
	email        string
	registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *acmeUser) GetEmail() string                        { return u.email }
func (u *acmeUser) GetRegistration() *registration.Resource { return u.registration }
func (u *acmeUser) GetPrivateKey() crypto.PrivateKey        { return u.key }

// AcmeService ACME 证书签发服务
// 使用 HTTP-01 webroot 验证，验证文件由 nginx 站点的
// /.well-known/acme-challenge/ 路径对外提供
type AcmeService struct {
	cfg *config.TLSConfig
	log *zap.Logger
	err *errorc.ErrorBuilder
}

// NewAcmeService 创建证书签发服务
func NewAcmeService(cfg *config.TLSConfig, log *zap.Logger) *AcmeService {
	return &AcmeService{
		cfg: cfg,
		log: log.Named("acme"),
		err: errorc.NewErrorBuilder("AcmeService"),
	}
}

// CertPath 返回站点引用的证书路径
func (s *AcmeService) CertPath() string {
	return filepath.Join(s.cfg.CertDir, s.cfg.Domain+".crt")
}

// KeyPath 返回站点引用的私钥路径
func (s *AcmeService) KeyPath() string {
	return filepath.Join(s.cfg.CertDir, s.cfg.Domain+".key")
}

// Ensure 确保证书存在且有效期充足，必要时签发或续期
func (s *AcmeService) Ensure() error {
	need, err := s.needsIssue()
	if err != nil {
		return err
	}
	if !need {
		s.log.Info("证书有效期充足，跳过签发", zap.String("domain", s.cfg.Domain))
		return nil
	}
	return s.Obtain()
}

// Obtain 签发证书并落盘
// 历史证书按时间戳归档，站点引用的固定路径原子更新
func (s *AcmeService) Obtain() error {
	accountKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return s.err.New("生成账户私钥失败", err)
	}
	user := &acmeUser{email: s.cfg.Email, key: accountKey}

	legoCfg := lego.NewConfig(user)
	legoCfg.Certificate.KeyType = certcrypto.EC256
	if s.cfg.Staging {
		legoCfg.CADirURL = lego.LEDirectoryStaging
	}

	client, err := lego.NewClient(legoCfg)
	if err != nil {
		return s.err.New("创建 ACME 客户端失败", err).Third()
	}

	if err := os.MkdirAll(s.cfg.WebrootDir, 0o755); err != nil {
		return s.err.New(fmt.Sprintf("创建 webroot 目录失败: %s", s.cfg.WebrootDir), err)
	}
	provider, err := webroot.NewHTTPProvider(s.cfg.WebrootDir)
	if err != nil {
		return s.err.New("创建 webroot 验证器失败", err)
	}
	if err := client.Challenge.SetHTTP01Provider(provider); err != nil {
		return s.err.New("注册 HTTP-01 验证器失败", err)
	}

	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return s.err.New("ACME 账户注册失败", err).Third()
	}
	user.registration = reg

	s.log.Info("开始签发证书",
		zap.String("domain", s.cfg.Domain),
		zap.Bool("staging", s.cfg.Staging))

	res, err := client.Certificate.Obtain(certificate.ObtainRequest{
		Domains: []string{s.cfg.Domain},
		Bundle:  true,
	})
	if err != nil {
		return s.err.New(fmt.Sprintf("证书签发失败: %s", s.cfg.Domain), err).Third()
	}

	if err := s.persist(res); err != nil {
		return err
	}
	s.log.Info("证书已签发", zap.String("cert", s.CertPath()))
	return nil
}

// needsIssue 证书缺失、解析失败或临近过期时需要签发
func (s *AcmeService) needsIssue() (bool, error) {
	data, err := os.ReadFile(s.CertPath())
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, s.err.New("读取证书失败", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return true, nil
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return true, nil
	}
	return time.Until(cert.NotAfter) < renewBefore, nil
}

// persist 归档时间戳副本并原子更新固定路径
func (s *AcmeService) persist(res *certificate.Resource) error {
	if err := os.MkdirAll(s.cfg.CertDir, 0o700); err != nil {
		return s.err.New(fmt.Sprintf("创建证书目录失败: %s", s.cfg.CertDir), err)
	}

	stamp := time.Now().Format("20060102-150405")
	archive := map[string][]byte{
		fmt.Sprintf("%s-%s.crt", s.cfg.Domain, stamp): res.Certificate,
		fmt.Sprintf("%s-%s.key", s.cfg.Domain, stamp): res.PrivateKey,
	}
	for name, data := range archive {
		if err := os.WriteFile(filepath.Join(s.cfg.CertDir, name), data, 0o600); err != nil {
			return s.err.New(fmt.Sprintf("归档证书失败: %s", name), err)
		}
	}

	if err := s.atomicWrite(s.CertPath(), res.Certificate, 0o644); err != nil {
		return err
	}
	return s.atomicWrite(s.KeyPath(), res.PrivateKey, 0o600)
}

func (s *AcmeService) atomicWrite(path string, data []byte, mode os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return s.err.New("创建临时文件失败", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
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
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return s.err.New("设置文件权限失败", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return s.err.New(fmt.Sprintf("更新文件失败: %s", path), err)
	}
	return nil
}

// RemoveAll 删除域名的全部证书文件，用于应用销毁
func (s *AcmeService) RemoveAll() error {
	pattern := filepath.Join(s.cfg.CertDir, s.cfg.Domain+"*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return s.err.New("匹配证书文件失败", err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return s.err.New(fmt.Sprintf("删除证书文件失败: %s", path), err)
		}
	}
	return nil
}
