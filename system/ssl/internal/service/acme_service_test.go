package service

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"fabu/pkg/core/config"
)

func newTestAcmeService(t *testing.T) (*AcmeService, *config.TLSConfig) {
	t.Helper()
	cfg := &config.TLSConfig{
		Domain:  "demo.example.com",
		Email:   "ops@example.com",
		CertDir: t.TempDir(),
	}
	return NewAcmeService(cfg, zap.NewNop()), cfg
}

// writeSelfSigned 生成指定有效期的自签证书
func writeSelfSigned(t *testing.T, path string, notAfter time.Time) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "demo.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	if err := pem.Encode(out, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		t.Fatal(err)
	}
}

func TestAcme_NeedsIssue(t *testing.T) {
	svc, _ := newTestAcmeService(t)

	// 证书缺失
	need, err := svc.needsIssue()
	if err != nil {
		t.Fatal(err)
	}
	if !need {
		t.Error("证书缺失时应签发")
	}

	// 有效期充足
	writeSelfSigned(t, svc.CertPath(), time.Now().Add(90*24*time.Hour))
	need, err = svc.needsIssue()
	if err != nil {
		t.Fatal(err)
	}
	if need {
		t.Error("有效期充足时不应重复签发")
	}

	// 临近过期
	writeSelfSigned(t, svc.CertPath(), time.Now().Add(10*24*time.Hour))
	need, err = svc.needsIssue()
	if err != nil {
		t.Fatal(err)
	}
	if !need {
		t.Error("临近过期时应续期")
	}

	// 内容损坏
	if err := os.WriteFile(svc.CertPath(), []byte("not-a-pem"), 0o644); err != nil {
		t.Fatal(err)
	}
	need, err = svc.needsIssue()
	if err != nil {
		t.Fatal(err)
	}
	if !need {
		t.Error("证书损坏时应重新签发")
	}
}

func TestAcme_RemoveAll(t *testing.T) {
	svc, cfg := newTestAcmeService(t)

	writeSelfSigned(t, svc.CertPath(), time.Now().Add(time.Hour))
	if err := os.WriteFile(svc.KeyPath(), []byte("key"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := svc.RemoveAll(); err != nil {
		t.Fatalf("RemoveAll 失败: %v", err)
	}
	entries, err := os.ReadDir(cfg.CertDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("证书目录应为空，剩余 %d 个文件", len(entries))
	}
}
