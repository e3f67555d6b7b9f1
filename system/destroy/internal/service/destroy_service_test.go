package service

import (
	"context"
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
)

type fakeUnitRemover struct {
	stopped  []int
	disabled []int
	removed  bool
}

func (f *fakeUnitRemover) Stop(ctx context.Context, app *config.AppConfig, port int) error {
	f.stopped = append(f.stopped, port)
	return nil
}

func (f *fakeUnitRemover) Disable(ctx context.Context, app *config.AppConfig, port int) error {
	f.disabled = append(f.disabled, port)
	return nil
}

func (f *fakeUnitRemover) RemoveAppUnit(ctx context.Context, app *config.AppConfig) error {
	f.removed = true
	return nil
}

type fakeSiteRemover struct {
	siteRemoved bool
	zoneRemoved bool
	reloaded    bool
	reloadErr   error
}

func (f *fakeSiteRemover) RemoveSite(ctx context.Context, siteName string) error {
	f.siteRemoved = true
	return nil
}

func (f *fakeSiteRemover) RemoveRateLimitZone(ctx context.Context, appName string) error {
	f.zoneRemoved = true
	return nil
}

func (f *fakeSiteRemover) Reload(ctx context.Context) error {
	f.reloaded = true
	return f.reloadErr
}

type fakeCertRemover struct {
	enabled bool
	removed bool
}

func (f *fakeCertRemover) Enabled() bool { return f.enabled }
func (f *fakeCertRemover) RemoveAll() error {
	f.removed = true
	return nil
}

type fakeSSHGuard struct {
	calls int
	err   error
}

func (f *fakeSSHGuard) SSHListening() error {
	f.calls++
	return f.err
}

func newDestroyFixture(t *testing.T) (*DestroyService, *config.Config, *fakeUnitRemover, *fakeSiteRemover, *fakeCertRemover) {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.App.Name = "demo"
	cfg.App.User = "demo"
	cfg.App.InstallRoot = filepath.Join(root, "opt", "demo")
	cfg.App.EnvFile = filepath.Join(root, "etc", "default", "demo")

	units := &fakeUnitRemover{}
	sites := &fakeSiteRemover{}
	certs := &fakeCertRemover{}
	svc := NewDestroyService(cfg, units, sites, certs, &fakeSSHGuard{}, logger.GetLogger())
	return svc, cfg, units, sites, certs
}

func TestDestroy_RemovesEverything(t *testing.T) {
	svc, cfg, units, sites, certs := newDestroyFixture(t)
	certs.enabled = true

	if err := os.MkdirAll(cfg.App.InstallRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.App.EnvFile), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.App.EnvFile, []byte("JAVA_OPTS=\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var deletedUser string
	svc.lookupUser = func(name string) (*user.User, error) {
		return &user.User{Username: name, HomeDir: cfg.App.InstallRoot}, nil
	}
	svc.deleteUser = func(ctx context.Context, name string) error {
		deletedUser = name
		return nil
	}

	failed := svc.Run(context.Background())
	if len(failed) != 0 {
		t.Fatalf("不应有失败项: %v", failed)
	}

	// 两个端口都防御性地停掉
	if len(units.stopped) != 2 || len(units.disabled) != 2 {
		t.Errorf("两个端口实例都应停止并禁用: %v %v", units.stopped, units.disabled)
	}
	if !units.removed || !sites.siteRemoved || !sites.zoneRemoved || !sites.reloaded {
		t.Error("unit、站点、限流 zone 应全部移除并重载")
	}
	if !certs.removed {
		t.Error("证书应被移除")
	}
	if _, err := os.Stat(cfg.App.InstallRoot); !os.IsNotExist(err) {
		t.Error("安装目录应被移除")
	}
	if _, err := os.Stat(cfg.App.EnvFile); !os.IsNotExist(err) {
		t.Error("环境文件应被移除")
	}
	if deletedUser != "demo" {
		t.Errorf("服务账户应被删除: %q", deletedUser)
	}
}

func TestDestroy_KeepsSharedUser(t *testing.T) {
	svc, _, _, _, _ := newDestroyFixture(t)

	svc.lookupUser = func(name string) (*user.User, error) {
		return &user.User{Username: name, HomeDir: "/home/shared"}, nil
	}
	svc.deleteUser = func(ctx context.Context, name string) error {
		t.Error("home 目录非安装目录的账户不得删除")
		return nil
	}

	if failed := svc.Run(context.Background()); len(failed) != 0 {
		t.Errorf("保留共享账户不算失败: %v", failed)
	}
}

func TestDestroy_MissingUserIsFine(t *testing.T) {
	svc, _, _, _, _ := newDestroyFixture(t)

	svc.lookupUser = func(name string) (*user.User, error) {
		return nil, user.UnknownUserError(name)
	}
	if failed := svc.Run(context.Background()); len(failed) != 0 {
		t.Errorf("账户不存在不算失败: %v", failed)
	}
}

func TestDestroy_CollectsFailures(t *testing.T) {
	svc, _, _, sites, _ := newDestroyFixture(t)
	sites.reloadErr = errors.New("nginx not running")

	svc.lookupUser = func(name string) (*user.User, error) {
		return nil, user.UnknownUserError(name)
	}
	failed := svc.Run(context.Background())
	if len(failed) != 1 {
		t.Fatalf("应汇总一个失败项: %v", failed)
	}
}

// 销毁前后都应核对 SSH 端口可达
func TestDestroy_ChecksSSHBeforeAndAfter(t *testing.T) {
	svc, _, _, _, _ := newDestroyFixture(t)
	guard := &fakeSSHGuard{}
	svc.guard = guard

	svc.lookupUser = func(name string) (*user.User, error) {
		return nil, user.UnknownUserError(name)
	}
	if failed := svc.Run(context.Background()); len(failed) != 0 {
		t.Errorf("不应有失败项: %v", failed)
	}
	if guard.calls != 2 {
		t.Errorf("SSH 可达性应检查两次，实际 %d", guard.calls)
	}
}
