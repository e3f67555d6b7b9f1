package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
	"fabu/system/deploy/internal/model/dto"
	"fabu/system/nginx"
	"fabu/system/release"
)

// releaseStore 发布归档与蓝绿状态
type releaseStore interface {
	Create(jarPath, sbomPath string) (*release.Release, error)
	Activate(releaseID string) error
	Previous() (*release.Release, error)
	Prune(keep int) ([]string, error)
	JarSha256(releaseID string) (string, error)
	ReadActivePort() (int, bool, error)
	WriteActivePort(port int) error
	NextPort() (target int, active int, firstDeploy bool, err error)
}

// unitManager systemd 实例管理
type unitManager interface {
	InstallAppUnit(ctx context.Context, app *config.AppConfig) (string, error)
	UnitPath(app *config.AppConfig) (string, error)
	EnsureStarted(ctx context.Context, app *config.AppConfig, port int) error
	Enable(ctx context.Context, app *config.AppConfig, port int) error
	Stop(ctx context.Context, app *config.AppConfig, port int) error
	IsActive(ctx context.Context, app *config.AppConfig, port int) (bool, error)
	JournalTail(ctx context.Context, app *config.AppConfig, port, lines int) (string, error)
}

// siteManager nginx 站点与限流管理
type siteManager interface {
	ApplySite(ctx context.Context, siteName string, spec *nginx.SiteSpec) error
	EnsureRateLimitZone(ctx context.Context, appName string) error
	RateLimitBurst() int
	SitePath(siteName string) (string, error)
	Version(ctx context.Context) (string, error)
}

// projectBuilder 脚手架与构建
type projectBuilder interface {
	Ensure(ctx context.Context) error
	Build(ctx context.Context) (string, error)
	Sbom(ctx context.Context) (string, error)
	JavaVersion(ctx context.Context, javaBin string) (string, error)
}

// certManager 证书签发
type certManager interface {
	Enabled() bool
	Ensure() error
	CertPath() string
	KeyPath() string
}

// hostGuard 系统依赖与防火墙
type hostGuard interface {
	EnsureInstalled(ctx context.Context, packages ...string) []string
	Configure(ctx context.Context, listenPorts ...int) error
}

// healthWaiter 健康门禁
type healthWaiter interface {
	Wait(ctx context.Context, port int) error
}

// trafficSwitcher 切流
type trafficSwitcher interface {
	Full(ctx context.Context, port int, tls *nginx.TLSParams) error
	Canary(ctx context.Context, newPort, oldPort, percent int, tls *nginx.TLSParams) error
	SetWebroot(dir string)
}

// deployRun 单次部署的共享状态
type deployRun struct {
	deployID   string
	jarPath    string
	sbomPath   string
	release    *release.Release
	targetPort int
	oldPort    int
	firstDep   bool
	tls        *nginx.TLSParams
}

// DeployService 部署编排服务
// 将脚手架、构建、归档、systemd、健康门禁、切流、审计串成流水线
type DeployService struct {
	cfg      *config.Config
	releases releaseStore
	units    unitManager
	sites    siteManager
	project  projectBuilder
	certs    certManager
	host     hostGuard
	health   healthWaiter
	cutover  trafficSwitcher
	audit    *AuditService
	pipeline *Pipeline
	log      *logger.Log
	err      *errorc.ErrorBuilder
	// goos 可注入用于测试
	goos string
}

// NewDeployService 创建部署编排服务
func NewDeployService(
	cfg *config.Config,
	releases releaseStore,
	units unitManager,
	sites siteManager,
	project projectBuilder,
	certs certManager,
	host hostGuard,
	health healthWaiter,
	cutover trafficSwitcher,
	audit *AuditService,
	log *logger.Log,
) *DeployService {
	return &DeployService{
		cfg:      cfg,
		releases: releases,
		units:    units,
		sites:    sites,
		project:  project,
		certs:    certs,
		host:     host,
		health:   health,
		cutover:  cutover,
		audit:    audit,
		pipeline: NewPipeline(log),
		log:      log.WithEntryName("DeployService"),
		err:      errorc.NewErrorBuilder("DeployService"),
		goos:     runtime.GOOS,
	}
}

// Run 按配置执行部署、灰度转正或回滚
func (s *DeployService) Run(ctx context.Context) (*dto.DeployResult, error) {
	run := &deployRun{deployID: uuid.NewString()}
	log := s.log.WithDeployID(run.deployID)

	var steps []Step
	switch {
	case s.cfg.Rollback:
		log.Info("执行回滚")
		steps = s.rollbackSteps(run)
	case s.cfg.Canary.Promote:
		log.Info("灰度转正")
		steps = s.promoteSteps(run)
	default:
		log.Info("开始部署")
		steps = s.deploySteps(run)
	}

	results, err := s.pipeline.Execute(ctx, steps)
	result := &dto.DeployResult{
		DeployID:   run.deployID,
		ActivePort: run.targetPort,
		Steps:      results,
	}
	if run.release != nil {
		result.ReleaseID = run.release.ID
	}
	if err != nil {
		return result, err
	}
	log.Info("部署完成")
	return result, nil
}

// deploySteps 常规部署流水线
func (s *DeployService) deploySteps(run *deployRun) []Step {
	app := &s.cfg.App
	canaryInProgress := func() bool {
		return s.cfg.Canary.Percent > 0 && s.cfg.Canary.Percent < 100 && !run.firstDep
	}

	return []Step{
		{
			Name: "环境检查",
			Run: func(ctx context.Context) error {
				return s.checkPlatform()
			},
		},
		{
			Name:       "系统依赖",
			BestEffort: true,
			Run: func(ctx context.Context) error {
				failed := s.host.EnsureInstalled(ctx, "openjdk-17-jre-headless", "nginx", "ufw")
				if len(failed) > 0 {
					return s.err.New(fmt.Sprintf("部分软件包安装失败: %v", failed), nil).Third()
				}
				return nil
			},
		},
		{
			Name: "工程脚手架",
			Run:  s.project.Ensure,
		},
		{
			Name: "构建",
			Run: func(ctx context.Context) error {
				jar, err := s.project.Build(ctx)
				if err != nil {
					return err
				}
				run.jarPath = jar
				return nil
			},
		},
		{
			Name:       "SBOM",
			BestEffort: true,
			Run: func(ctx context.Context) error {
				sbom, err := s.project.Sbom(ctx)
				if err != nil {
					return err
				}
				run.sbomPath = sbom
				return nil
			},
		},
		{
			Name: "发布归档",
			Run: func(ctx context.Context) error {
				rel, err := s.releases.Create(run.jarPath, run.sbomPath)
				if err != nil {
					return err
				}
				run.release = rel
				return nil
			},
		},
		{
			Name: "端口规划",
			Run: func(ctx context.Context) error {
				target, active, first, err := s.releases.NextPort()
				if err != nil {
					return err
				}
				run.targetPort, run.oldPort, run.firstDep = target, active, first
				return nil
			},
		},
		{
			Name: "环境文件",
			Run: func(ctx context.Context) error {
				return s.writeEnvFile()
			},
		},
		{
			Name: "服务单元",
			Run: func(ctx context.Context) error {
				_, err := s.units.InstallAppUnit(ctx, app)
				return err
			},
		},
		{
			Name: "激活发布",
			Run: func(ctx context.Context) error {
				return s.releases.Activate(run.release.ID)
			},
		},
		{
			Name: "启动新实例",
			Run: func(ctx context.Context) error {
				if err := s.units.Enable(ctx, app, run.targetPort); err != nil {
					return err
				}
				return s.units.EnsureStarted(ctx, app, run.targetPort)
			},
		},
		{
			Name:    "健康门禁",
			Run:     s.healthStep(run),
			OnFatal: s.healthFatal(run),
		},
		s.certStep(run),
		{
			Name: "限流配置",
			Run: func(ctx context.Context) error {
				return s.sites.EnsureRateLimitZone(ctx, app.Name)
			},
		},
		{
			Name: "切流",
			Run: func(ctx context.Context) error {
				if canaryInProgress() {
					return s.cutover.Canary(ctx, run.targetPort, run.oldPort, s.cfg.Canary.Percent, run.tls)
				}
				if s.cfg.Canary.Percent > 0 && run.firstDep {
					s.log.Warn("首次部署没有旧实例，灰度退化为全量切流")
				}
				return s.cutover.Full(ctx, run.targetPort, run.tls)
			},
		},
		{
			Name: "状态更新",
			// 灰度进行中保持旧端口为对外口径，转正时再更新
			Skip: canaryInProgress,
			Run: func(ctx context.Context) error {
				return s.releases.WriteActivePort(run.targetPort)
			},
		},
		{
			Name:       "停止旧实例",
			Skip:       func() bool { return run.firstDep || canaryInProgress() },
			BestEffort: true,
			Run: func(ctx context.Context) error {
				return s.units.Stop(ctx, app, run.oldPort)
			},
		},
		{
			Name:       "防火墙",
			BestEffort: true,
			Run: func(ctx context.Context) error {
				ports := []int{app.ListenPort}
				if s.certs.Enabled() {
					ports = append(ports, 443)
				}
				return s.host.Configure(ctx, ports...)
			},
		},
		{
			Name:       "历史清理",
			BestEffort: true,
			Run: func(ctx context.Context) error {
				_, err := s.releases.Prune(s.cfg.Retention.Keep)
				return err
			},
		},
		{
			Name: "审计清单",
			Run: func(ctx context.Context) error {
				return s.writeAudit(ctx, run)
			},
		},
	}
}

// promoteSteps 灰度转正流水线：不构建，只把流量全量切到新实例
func (s *DeployService) promoteSteps(run *deployRun) []Step {
	app := &s.cfg.App
	return []Step{
		{
			Name: "环境检查",
			Run: func(ctx context.Context) error {
				return s.checkPlatform()
			},
		},
		{
			Name: "端口规划",
			Run: func(ctx context.Context) error {
				active, ok, err := s.releases.ReadActivePort()
				if err != nil {
					return err
				}
				if !ok {
					return s.err.New("没有部署记录，无法转正", nil).ValidWithCtx()
				}
				run.oldPort = active
				run.targetPort = app.OtherPort(active)

				running, err := s.units.IsActive(ctx, app, run.targetPort)
				if err != nil {
					return err
				}
				if !running {
					return s.err.New(fmt.Sprintf("端口 %d 上没有运行中的灰度实例", run.targetPort), nil).ValidWithCtx()
				}
				return nil
			},
		},
		{
			Name:    "健康门禁",
			Run:     s.healthStep(run),
			OnFatal: s.healthFatal(run),
		},
		s.certStep(run),
		{
			Name: "切流",
			Run: func(ctx context.Context) error {
				return s.cutover.Full(ctx, run.targetPort, run.tls)
			},
		},
		{
			Name: "状态更新",
			Run: func(ctx context.Context) error {
				return s.releases.WriteActivePort(run.targetPort)
			},
		},
		{
			Name:       "停止旧实例",
			BestEffort: true,
			Run: func(ctx context.Context) error {
				return s.units.Stop(ctx, app, run.oldPort)
			},
		},
		{
			Name: "审计清单",
			Run: func(ctx context.Context) error {
				return s.writeAudit(ctx, run)
			},
		},
	}
}

// rollbackSteps 回滚流水线：激活上一发布并在空闲端口拉起
func (s *DeployService) rollbackSteps(run *deployRun) []Step {
	app := &s.cfg.App
	return []Step{
		{
			Name: "环境检查",
			Run: func(ctx context.Context) error {
				return s.checkPlatform()
			},
		},
		{
			Name: "回滚目标",
			Run: func(ctx context.Context) error {
				prev, err := s.releases.Previous()
				if err != nil {
					return err
				}
				run.release = prev

				active, ok, err := s.releases.ReadActivePort()
				if err != nil {
					return err
				}
				if !ok {
					return s.err.New("没有部署记录，无法回滚", nil).ValidWithCtx()
				}
				run.oldPort = active
				run.targetPort = app.OtherPort(active)
				return nil
			},
		},
		{
			Name: "激活发布",
			Run: func(ctx context.Context) error {
				return s.releases.Activate(run.release.ID)
			},
		},
		{
			Name: "启动新实例",
			Run: func(ctx context.Context) error {
				if err := s.units.Enable(ctx, app, run.targetPort); err != nil {
					return err
				}
				return s.units.EnsureStarted(ctx, app, run.targetPort)
			},
		},
		{
			Name:    "健康门禁",
			Run:     s.healthStep(run),
			OnFatal: s.healthFatal(run),
		},
		s.certStep(run),
		{
			Name: "切流",
			Run: func(ctx context.Context) error {
				return s.cutover.Full(ctx, run.targetPort, run.tls)
			},
		},
		{
			Name: "状态更新",
			Run: func(ctx context.Context) error {
				return s.releases.WriteActivePort(run.targetPort)
			},
		},
		{
			Name:       "停止旧实例",
			BestEffort: true,
			Run: func(ctx context.Context) error {
				return s.units.Stop(ctx, app, run.oldPort)
			},
		},
		{
			Name: "审计清单",
			Run: func(ctx context.Context) error {
				return s.writeAudit(ctx, run)
			},
		},
	}
}

// healthStep 健康门禁步骤
func (s *DeployService) healthStep(run *deployRun) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return s.health.Wait(ctx, run.targetPort)
	}
}

// healthFatal 健康门禁失败的补救：落日志并停掉新实例，旧实例保持原样
func (s *DeployService) healthFatal(run *deployRun) func(ctx context.Context) {
	app := &s.cfg.App
	return func(ctx context.Context) {
		if journal, err := s.units.JournalTail(ctx, app, run.targetPort, s.cfg.Health.LogLines); err == nil {
			s.log.Errorf("新实例日志（最近 %d 行）:\n%s", s.cfg.Health.LogLines, journal)
		} else {
			s.log.WithErr(err).Warn("读取新实例日志失败")
		}
		if err := s.units.Stop(ctx, app, run.targetPort); err != nil {
			s.log.WithErr(err).Warn("停止新实例失败")
		}
	}
}

// certStep 证书签发步骤，成功后为站点注入 TLS 参数
func (s *DeployService) certStep(run *deployRun) Step {
	return Step{
		Name:       "证书签发",
		Skip:       func() bool { return !s.certs.Enabled() },
		BestEffort: true,
		Run: func(ctx context.Context) error {
			s.cutover.SetWebroot(s.cfg.TLS.WebrootDir)
			if err := s.certs.Ensure(); err != nil {
				return err
			}
			run.tls = &nginx.TLSParams{
				Domain:   s.cfg.TLS.Domain,
				CertPath: s.certs.CertPath(),
				KeyPath:  s.certs.KeyPath(),
			}
			return nil
		},
	}
}

// checkPlatform 部署仅支持 linux
func (s *DeployService) checkPlatform() error {
	if s.goos != "linux" {
		return s.err.New(fmt.Sprintf("当前平台 %s 不支持部署", s.goos), nil).ValidWithCtx()
	}
	return nil
}

// writeEnvFile 写入 systemd 使用的环境文件
func (s *DeployService) writeEnvFile() error {
	app := &s.cfg.App
	content := fmt.Sprintf("JAVA_OPTS=%q\nSPRING_PROFILES_ACTIVE=%s\n", app.JavaOpts, app.SpringProfile)

	if err := os.MkdirAll(filepath.Dir(app.EnvFile), 0o755); err != nil {
		return s.err.New("创建环境文件目录失败", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(app.EnvFile), "."+filepath.Base(app.EnvFile)+".tmp-*")
	if err != nil {
		return s.err.New("创建临时文件失败", err)
	}
	tmpPath := tmpFile.Name()
	if _, err := tmpFile.WriteString(content); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return s.err.New("写入环境文件失败", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return s.err.New("同步环境文件失败", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return s.err.New("关闭环境文件失败", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return s.err.New("设置环境文件权限失败", err)
	}
	if err := os.Rename(tmpPath, app.EnvFile); err != nil {
		os.Remove(tmpPath)
		return s.err.New("更新环境文件失败", err)
	}
	return nil
}

// writeAudit 汇总并写入审计清单
func (s *DeployService) writeAudit(ctx context.Context, run *deployRun) error {
	app := &s.cfg.App
	manifest := &dto.AuditManifest{
		DeployID:   run.deployID,
		ActivePort: run.targetPort,
		Sbom:       "absent",
	}

	if run.release != nil {
		manifest.Release = run.release.ID
		if sha, err := s.releases.JarSha256(run.release.ID); err == nil {
			manifest.JarSha256 = sha
		}
		if _, err := os.Stat(filepath.Join(run.release.Path, "bom.json")); err == nil {
			manifest.Sbom = "present"
		}
	}

	if sitePath, err := s.sites.SitePath(app.SiteName()); err == nil {
		manifest.NginxSiteSha256 = s.audit.FileSha256(sitePath)
	}
	if unitPath, err := s.units.UnitPath(app); err == nil {
		manifest.SystemdUnitSha256 = s.audit.FileSha256(unitPath)
	}

	if v, err := s.project.JavaVersion(ctx, s.cfg.Systemd.JavaBin); err == nil {
		manifest.JavaVersion = v
	} else {
		s.log.WithErr(err).Warn("查询 Java 版本失败")
	}
	if v, err := s.sites.Version(ctx); err == nil {
		manifest.NginxVersion = v
	} else {
		s.log.WithErr(err).Warn("查询 nginx 版本失败")
	}

	_, err := s.audit.Write(manifest)
	return err
}
