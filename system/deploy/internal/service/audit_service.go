package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	json "github.com/json-iterator/go"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
	"fabu/system/deploy/internal/model/dto"
)

// manifestStampLayout 审计清单文件名时间戳格式
const manifestStampLayout = "20060102-150405"

// AuditService 部署审计服务
// 每次部署落一份 manifest-<时间戳>.json 到 audit 目录，只增不改
type AuditService struct {
	app *config.AppConfig
	log *logger.Log
	err *errorc.ErrorBuilder
	now func() time.Time
}

// NewAuditService 创建审计服务
func NewAuditService(app *config.AppConfig, log *logger.Log) *AuditService {
	return &AuditService{
		app: app,
		log: log.WithEntryName("AuditService"),
		err: errorc.NewErrorBuilder("AuditService"),
		now: time.Now,
	}
}

// Write 写入审计清单，返回文件路径
func (s *AuditService) Write(manifest *dto.AuditManifest) (string, error) {
	if manifest.DeployID == "" {
		return "", s.err.New("部署标识不能为空", nil).ValidWithCtx()
	}
	stamp := s.now()
	manifest.Timestamp = stamp.Format(time.RFC3339)
	manifest.App = s.app.Name

	if err := os.MkdirAll(s.app.AuditDir(), 0o755); err != nil {
		return "", s.err.New("创建 audit 目录失败", err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", s.err.New("序列化审计清单失败", err)
	}

	path := filepath.Join(s.app.AuditDir(), "manifest-"+stamp.Format(manifestStampLayout)+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", s.err.New(fmt.Sprintf("写入审计清单失败: %s", path), err)
	}

	s.log.WithDeployID(manifest.DeployID).Infof("审计清单已写入: %s", path)
	return path, nil
}

// FileSha256 计算文件校验和，文件缺失返回空串
func (s *AuditService) FileSha256(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
