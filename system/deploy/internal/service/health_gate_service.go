package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
	"fabu/pkg/core/util"
)

// HealthGateService 健康门禁服务
// 以固定间隔轮询新实例的探活接口，在时限内达到健康状态才放行切流
type HealthGateService struct {
	cfg *config.HealthConfig
	log *logger.Log
	err *errorc.ErrorBuilder
	// probe 可注入用于测试，返回 HTTP 状态码与响应体
	probe func(url string) (int, []byte, error)
}

// NewHealthGateService 创建健康门禁服务
func NewHealthGateService(cfg *config.HealthConfig, log *logger.Log) *HealthGateService {
	return &HealthGateService{
		cfg:   cfg,
		log:   log.WithEntryName("HealthGateService"),
		err:   errorc.NewErrorBuilder("HealthGateService"),
		probe: probeHTTP,
	}
}

func probeHTTP(url string) (int, []byte, error) {
	return util.NewHttp(url, nil).GetRaw()
}

// Wait 轮询指定端口直到健康或超出尝试次数
// 超时返回 Unavailable，调用方据此判定部署失败
func (s *HealthGateService) Wait(ctx context.Context, port int) error {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", port, s.cfg.Path)
	log := s.log.WithPort(port)
	log.Infof("等待实例健康: %s (最多 %d 次)", url, s.cfg.Attempts)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var lastErr error
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		status, body, err := s.probe(url)
		if err == nil && status == 200 && s.isUp(body) {
			log.Infof("实例健康 (第 %d 次探测)", attempt)
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("status=%d body=%s", status, truncate(string(body), 200))
		}

		if attempt < s.cfg.Attempts {
			select {
			case <-ctx.Done():
				return s.err.New("健康检查被取消", ctx.Err())
			case <-ticker.C:
			}
		}
	}
	return s.err.New(fmt.Sprintf("实例在 %d 次探测内未达到健康状态", s.cfg.Attempts), lastErr).Unavailable()
}

// isUp 判定响应体是否健康
// 优先解析 JSON 的 status 字段，非 JSON 时退化为子串匹配
func (s *HealthGateService) isUp(body []byte) bool {
	if status := gjson.GetBytes(body, "status"); status.Exists() {
		return status.String() == s.cfg.ExpectedStatus
	}
	return strings.Contains(string(body), s.cfg.ExpectedStatus)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
