package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
	"fabu/system/release/internal/model/dto"
)

const (
	releaseIDLayout = "20060102-150405"
	// releaseDirPrefix 发布目录名前缀，目录名为 release-<发布标识>
	releaseDirPrefix = "release-"
	// JarFileName 发布目录内的产物文件名
	JarFileName = "app.jar"
	// SbomFileName 发布目录内的 SBOM 文件名
	SbomFileName = "bom.json"
)

var (
	releaseIDRegex  = regexp.MustCompile(`^\d{8}-\d{6}(-\d+)?$`)
	releaseDirRegex = regexp.MustCompile(`^release-\d{8}-\d{6}(-\d+)?$`)
)

// ReleaseService 发布归档服务
// 管理 releases 目录、校验和与 current 软链
type ReleaseService struct {
	app *config.AppConfig
	log *logger.Log
	err *errorc.ErrorBuilder
	now func() time.Time
}

// NewReleaseService 创建发布归档服务
func NewReleaseService(app *config.AppConfig, log *logger.Log) *ReleaseService {
	return &ReleaseService{
		app: app,
		log: log.WithEntryName("ReleaseService"),
		err: errorc.NewErrorBuilder("ReleaseService"),
		now: time.Now,
	}
}

// Create 归档一次构建：新建发布目录，拷贝产物并写入校验和
// sbomPath 为空或文件不存在时跳过 SBOM 拷贝
func (s *ReleaseService) Create(jarPath, sbomPath string) (*dto.Release, error) {
	if _, err := os.Stat(jarPath); err != nil {
		return nil, s.err.New(fmt.Sprintf("构建产物不存在: %s", jarPath), err).NotFound()
	}

	if err := os.MkdirAll(s.app.ReleasesDir(), 0o755); err != nil {
		return nil, s.err.New("创建 releases 目录失败", err)
	}
	if err := os.MkdirAll(s.app.ChecksumsDir(), 0o755); err != nil {
		return nil, s.err.New("创建 checksums 目录失败", err)
	}

	id, releaseDir, err := s.newReleaseDir()
	if err != nil {
		return nil, err
	}

	if err := s.copyFile(jarPath, filepath.Join(releaseDir, JarFileName), 0o644); err != nil {
		os.RemoveAll(releaseDir)
		return nil, err
	}

	if sbomPath != "" {
		if _, statErr := os.Stat(sbomPath); statErr == nil {
			if err := s.copyFile(sbomPath, filepath.Join(releaseDir, SbomFileName), 0o644); err != nil {
				os.RemoveAll(releaseDir)
				return nil, err
			}
		}
	}

	sha, err := s.fileSha256(filepath.Join(releaseDir, JarFileName))
	if err != nil {
		os.RemoveAll(releaseDir)
		return nil, err
	}
	checksumContent := fmt.Sprintf("%s  %s\n", sha, JarFileName)
	if err := os.WriteFile(s.checksumPath(id), []byte(checksumContent), 0o644); err != nil {
		os.RemoveAll(releaseDir)
		return nil, s.err.New("写入校验和失败", err)
	}

	s.log.WithFields(map[string]interface{}{"release": id, "sha256": sha}).Info("发布已归档")
	return &dto.Release{ID: id, Path: releaseDir, CreatedAt: s.parseID(id)}, nil
}

// Activate 将 current 软链原子切换到指定发布
// 切换前核对产物与归档时的校验和一致
func (s *ReleaseService) Activate(releaseID string) error {
	if err := s.validateID(releaseID); err != nil {
		return err
	}
	releaseDir := s.releaseDir(releaseID)
	if _, err := os.Stat(releaseDir); err != nil {
		return s.err.New(fmt.Sprintf("发布不存在: %s", releaseID), err).NotFound()
	}

	expected, err := s.JarSha256(releaseID)
	if err != nil {
		return err
	}
	actual, err := s.fileSha256(filepath.Join(releaseDir, JarFileName))
	if err != nil {
		return err
	}
	if expected != actual {
		return s.err.New(fmt.Sprintf("发布 %s 校验和不一致: 期望 %s 实际 %s", releaseID, expected, actual), nil)
	}

	// 先建临时软链再 rename，current 始终不会出现悬空状态
	tmpLink := s.app.CurrentLink() + ".tmp"
	os.Remove(tmpLink)
	if err := os.Symlink(releaseDir, tmpLink); err != nil {
		return s.err.New("创建临时软链失败", err)
	}
	if err := os.Rename(tmpLink, s.app.CurrentLink()); err != nil {
		os.Remove(tmpLink)
		return s.err.New("切换 current 软链失败", err)
	}

	s.log.WithField("release", releaseID).Info("current 已切换")
	return nil
}

// CurrentID 返回 current 软链指向的发布标识，软链不存在时返回空串
func (s *ReleaseService) CurrentID() (string, error) {
	target, err := os.Readlink(s.app.CurrentLink())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", s.err.New("读取 current 软链失败", err)
	}
	return strings.TrimPrefix(filepath.Base(target), releaseDirPrefix), nil
}

// List 按时间倒序列出全部发布
func (s *ReleaseService) List() ([]*dto.Release, error) {
	entries, err := os.ReadDir(s.app.ReleasesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, s.err.New("读取 releases 目录失败", err)
	}

	currentID, err := s.CurrentID()
	if err != nil {
		return nil, err
	}

	var releases []*dto.Release
	for _, entry := range entries {
		if !entry.IsDir() || !releaseDirRegex.MatchString(entry.Name()) {
			continue
		}
		id := strings.TrimPrefix(entry.Name(), releaseDirPrefix)
		releases = append(releases, &dto.Release{
			ID:        id,
			Path:      filepath.Join(s.app.ReleasesDir(), entry.Name()),
			CreatedAt: s.parseID(id),
			Current:   id == currentID,
		})
	}
	sort.Slice(releases, func(i, j int) bool {
		return releases[i].ID > releases[j].ID
	})
	return releases, nil
}

// Previous 返回除当前激活发布外最新的一个发布，作为回滚目标
// 无可回滚目标时返回 NotFound
func (s *ReleaseService) Previous() (*dto.Release, error) {
	releases, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, r := range releases {
		if !r.Current {
			return r, nil
		}
	}
	return nil, s.err.New("没有可回滚的历史发布", nil).NotFound()
}

// Prune 按保留数清理旧发布及其校验和
// current 指向的发布永不删除，即使超出保留窗口
func (s *ReleaseService) Prune(keep int) ([]string, error) {
	if keep <= 0 {
		return nil, s.err.New(fmt.Sprintf("保留数必须为正: %d", keep), nil).ValidWithCtx()
	}
	releases, err := s.List()
	if err != nil {
		return nil, err
	}

	var pruned []string
	for i, r := range releases {
		if i < keep || r.Current {
			continue
		}
		if err := os.RemoveAll(r.Path); err != nil {
			return pruned, s.err.New(fmt.Sprintf("删除发布 %s 失败", r.ID), err)
		}
		if err := os.Remove(s.checksumPath(r.ID)); err != nil && !os.IsNotExist(err) {
			return pruned, s.err.New(fmt.Sprintf("删除校验和 %s 失败", r.ID), err)
		}
		pruned = append(pruned, r.ID)
	}
	if len(pruned) > 0 {
		s.log.WithField("pruned", strings.Join(pruned, ",")).Info("历史发布已清理")
	}
	return pruned, nil
}

// JarSha256 读取归档时记录的产物校验和
func (s *ReleaseService) JarSha256(releaseID string) (string, error) {
	if err := s.validateID(releaseID); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.checksumPath(releaseID))
	if err != nil {
		return "", s.err.New(fmt.Sprintf("读取校验和失败: %s", releaseID), err)
	}
	fields := strings.Fields(string(data))
	if len(fields) < 1 || len(fields[0]) != 64 {
		return "", s.err.New(fmt.Sprintf("校验和文件格式错误: %s", releaseID), nil)
	}
	return fields[0], nil
}

// newReleaseDir 创建新发布目录，同秒内并发时追加序号避免冲突
func (s *ReleaseService) newReleaseDir() (string, string, error) {
	base := s.now().Format(releaseIDLayout)
	id := base
	for i := 1; ; i++ {
		dir := s.releaseDir(id)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return id, dir, nil
		}
		if !os.IsExist(err) {
			return "", "", s.err.New("创建发布目录失败", err)
		}
		id = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *ReleaseService) releaseDir(releaseID string) string {
	return filepath.Join(s.app.ReleasesDir(), releaseDirPrefix+releaseID)
}

func (s *ReleaseService) checksumPath(releaseID string) string {
	return filepath.Join(s.app.ChecksumsDir(), releaseID+".sha256")
}

func (s *ReleaseService) validateID(releaseID string) error {
	if !releaseIDRegex.MatchString(releaseID) {
		return s.err.New(fmt.Sprintf("发布标识格式不正确: %s", releaseID), nil).ValidWithCtx()
	}
	return nil
}

func (s *ReleaseService) parseID(releaseID string) time.Time {
	base := releaseID
	if len(base) > len(releaseIDLayout) {
		base = base[:len(releaseIDLayout)]
	}
	t, err := time.ParseInLocation(releaseIDLayout, base, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// copyFile 拷贝文件并落盘
func (s *ReleaseService) copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return s.err.New(fmt.Sprintf("打开文件失败: %s", src), err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return s.err.New(fmt.Sprintf("创建文件失败: %s", dst), err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return s.err.New("拷贝文件失败", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return s.err.New("同步文件失败", err)
	}
	if err := out.Close(); err != nil {
		return s.err.New("关闭文件失败", err)
	}
	return nil
}

// fileSha256 计算文件 SHA-256
func (s *ReleaseService) fileSha256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", s.err.New(fmt.Sprintf("打开文件失败: %s", path), err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", s.err.New("计算校验和失败", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
