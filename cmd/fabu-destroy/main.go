package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
	"fabu/system/destroy"
	"fabu/system/firewall"
	"fabu/system/nginx"
	"fabu/system/ssl"
	"fabu/system/systemd"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（可选，FABU_* 环境变量可覆盖）")
	yes := flag.Bool("yes", false, "跳过交互确认")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if !*yes && !confirm(cfg.App.Name) {
		fmt.Println("已取消")
		return
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

	units := systemd.NewService(&cfg.Systemd, log)
	sites := nginx.NewService(&cfg.Nginx, log)
	certs := ssl.NewService(&cfg.TLS, zapLog)
	host := firewall.NewService(&cfg.Firewall, log)

	svc := destroy.NewService(cfg, units, sites, certs, host, log)
	if failed := svc.Run(ctx); len(failed) > 0 {
		os.Exit(1)
	}
}

// confirm 要求输入应用名确认销毁
func confirm(appName string) bool {
	fmt.Printf("即将销毁应用 %s 的全部部署（实例、站点、发布历史、账户）。\n", appName)
	fmt.Printf("输入应用名确认: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == appName
}
