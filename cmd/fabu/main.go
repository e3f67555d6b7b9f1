package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
	"fabu/system/deploy"
	"fabu/system/firewall"
	"fabu/system/nginx"
	"fabu/system/release"
	"fabu/system/scaffold"
	"fabu/system/ssl"
	"fabu/system/systemd"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（可选，FABU_* 环境变量可覆盖）")
	rollback := flag.Bool("rollback", false, "回滚到上一发布")
	canaryPercent := flag.Int("canary", -1, "灰度流量百分比 (1-99)")
	promote := flag.Bool("promote", false, "将灰度实例转正")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	// 命令行优先于配置文件与环境变量
	if *rollback {
		cfg.Rollback = true
	}
	if *canaryPercent >= 0 {
		cfg.Canary.Percent = *canaryPercent
	}
	if *promote {
		cfg.Canary.Promote = true
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	log := logger.InitLogger(cfg.Log.Level)

	zapLog, err := zap.NewProduction()
	if err != nil {
		log.WithErr(err).Error("初始化 zap 失败")
		os.Exit(1)
	}
	defer zapLog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	releases := release.NewService(&cfg.App, log)
	units := systemd.NewService(&cfg.Systemd, log)
	sites := nginx.NewService(&cfg.Nginx, log)
	project := scaffold.NewService(&cfg.App, &cfg.Scaffold, &cfg.Build, log)
	certs := ssl.NewService(&cfg.TLS, zapLog)
	host := firewall.NewService(&cfg.Firewall, log)

	svc := deploy.NewService(cfg, releases, units, sites, project, certs, host, log)

	result, err := svc.Run(ctx)
	if err != nil {
		os.Exit(1)
	}

	log.WithDeployID(result.DeployID).
		WithPort(result.ActivePort).
		Infof("应用 %s 部署完成，发布 %s", cfg.App.Name, result.ReleaseID)
}
