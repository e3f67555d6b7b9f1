package service

import (
	"net"
	"testing"
	"time"

	"fabu/pkg/core/config"
	"fabu/pkg/core/logger"
)

func TestGuard_SSHListening(t *testing.T) {
	// 在随机端口起监听模拟 sshd
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, acceptErr := ln.Accept()
			if acceptErr != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port

	svc := NewGuardService(&config.FirewallConfig{SSHPort: port, Enabled: true}, logger.GetLogger())
	if err := svc.SSHListening(); err != nil {
		t.Errorf("端口监听中应通过检查: %v", err)
	}

	ln.Close()
	time.Sleep(50 * time.Millisecond)
	if err := svc.SSHListening(); err == nil {
		t.Error("端口未监听应检查失败")
	}
}
