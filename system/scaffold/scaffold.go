// Package scaffold 负责工程骨架生成与构建产物定位
package scaffold

import (
	"context"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
	"fabu/system/scaffold/internal/service"
)

// Service scaffold 模块门面
type Service struct {
	scaffold *service.ScaffoldService
	build    *service.BuildService
}

// NewService 创建 scaffold 模块
func NewService(app *config.AppConfig, scaffoldCfg *config.ScaffoldConfig, buildCfg *config.BuildConfig, log *logger.Log) *Service {
	return &Service{
		scaffold: service.NewScaffoldService(app, scaffoldCfg, log),
		build:    service.NewBuildService(app, buildCfg, log),
	}
}

// Ensure 确保源码目录存在可构建工程
func (s *Service) Ensure(ctx context.Context) error {
	return s.scaffold.Ensure(ctx)
}

// Build 构建并返回产物 jar 路径
func (s *Service) Build(ctx context.Context) (string, error) {
	return s.build.Build(ctx)
}

// Sbom 生成 SBOM 并返回文件路径
func (s *Service) Sbom(ctx context.Context) (string, error) {
	return s.build.Sbom(ctx)
}

// JavaVersion 查询 Java 运行时版本
func (s *Service) JavaVersion(ctx context.Context, javaBin string) (string, error) {
	return s.build.JavaVersion(ctx, javaBin)
}
