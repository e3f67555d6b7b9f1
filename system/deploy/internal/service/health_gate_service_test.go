package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fabu/pkg/core/config"
	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
)

func newTestHealthGate(attempts int) *HealthGateService {
	cfg := &config.HealthConfig{
		Path:           "/health",
		Attempts:       attempts,
		Interval:       time.Millisecond,
		ExpectedStatus: "UP",
		LogLines:       200,
	}
	return NewHealthGateService(cfg, logger.GetLogger())
}

func TestHealthGate_UpImmediately(t *testing.T) {
	svc := newTestHealthGate(3)
	svc.probe = func(url string) (int, []byte, error) {
		return 200, []byte(`{"status":"UP"}`), nil
	}
	if err := svc.Wait(context.Background(), 8080); err != nil {
		t.Errorf("健康实例应放行: %v", err)
	}
}

func TestHealthGate_UpAfterRetries(t *testing.T) {
	svc := newTestHealthGate(5)
	calls := 0
	svc.probe = func(url string) (int, []byte, error) {
		calls++
		if calls < 3 {
			return 0, nil, errors.New("connection refused")
		}
		return 200, []byte(`{"status":"UP"}`), nil
	}
	if err := svc.Wait(context.Background(), 8080); err != nil {
		t.Errorf("重试后健康应放行: %v", err)
	}
	if calls != 3 {
		t.Errorf("探测次数错误: %d", calls)
	}
}

func TestHealthGate_Timeout(t *testing.T) {
	svc := newTestHealthGate(3)
	calls := 0
	svc.probe = func(url string) (int, []byte, error) {
		calls++
		return 503, []byte(`{"status":"DOWN"}`), nil
	}
	err := svc.Wait(context.Background(), 8080)
	if err == nil {
		t.Fatal("超出尝试次数应失败")
	}
	if !errorc.IsUnavailable(err) {
		t.Errorf("应返回不可用错误: %v", err)
	}
	if calls != 3 {
		t.Errorf("应探测满 %d 次: %d", 3, calls)
	}
}

func TestHealthGate_StatusFieldMismatch(t *testing.T) {
	svc := newTestHealthGate(1)
	svc.probe = func(url string) (int, []byte, error) {
		// JSON 带 status 字段时严格比对，不做子串匹配
		return 200, []byte(`{"status":"DOWN","detail":"UP stream lost"}`), nil
	}
	if err := svc.Wait(context.Background(), 8080); err == nil {
		t.Error("status 字段不符应判定不健康")
	}
}

func TestHealthGate_PlainTextFallback(t *testing.T) {
	svc := newTestHealthGate(1)
	svc.probe = func(url string) (int, []byte, error) {
		return 200, []byte("UP"), nil
	}
	if err := svc.Wait(context.Background(), 8080); err != nil {
		t.Errorf("纯文本 UP 应放行: %v", err)
	}
}

func TestHealthGate_ContextCancel(t *testing.T) {
	svc := newTestHealthGate(100)
	svc.probe = func(url string) (int, []byte, error) {
		return 0, nil, errors.New("connection refused")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Wait(ctx, 8080); err == nil {
		t.Error("上下文取消应终止等待")
	}
}
