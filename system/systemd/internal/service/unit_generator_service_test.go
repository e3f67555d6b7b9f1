package service

import (
	"strings"
	"testing"

	"fabu/pkg/core/logger"
	"fabu/system/systemd/internal/model/dto"
)

func newTestGenerator() *UnitGeneratorService {
	return NewUnitGeneratorService(logger.GetLogger())
}

func TestUnitGenerator_Sections(t *testing.T) {
	gen := newTestGenerator()

	content, err := gen.Generate(&dto.ServiceUnitParams{
		Description:      "demo (port %i)",
		After:            []string{"network.target"},
		User:             "deploy",
		WorkingDirectory: "/opt/demo/current",
		EnvironmentFile:  "/etc/default/demo",
		ExecStart:        "/usr/bin/java $JAVA_OPTS -jar /opt/demo/current/app.jar --server.port=%i",
		RestartSec:       5,
	})
	if err != nil {
		t.Fatalf("Generate 失败: %v", err)
	}

	// 段落顺序固定
	unitIdx := strings.Index(content, "[Unit]")
	serviceIdx := strings.Index(content, "[Service]")
	installIdx := strings.Index(content, "[Install]")
	if unitIdx == -1 || serviceIdx == -1 || installIdx == -1 {
		t.Fatalf("缺少段落: %s", content)
	}
	if !(unitIdx < serviceIdx && serviceIdx < installIdx) {
		t.Errorf("段落顺序错误: %s", content)
	}

	expected := []string{
		"Description=demo (port %i)",
		"After=network.target",
		"Type=simple",
		"ExecStart=/usr/bin/java $JAVA_OPTS -jar /opt/demo/current/app.jar --server.port=%i",
		"WorkingDirectory=/opt/demo/current",
		"User=deploy",
		"EnvironmentFile=/etc/default/demo",
		"Restart=always",
		"RestartSec=5",
		"WantedBy=multi-user.target",
	}
	for _, line := range expected {
		if !strings.Contains(content, line+"\n") {
			t.Errorf("缺少配置行 %q:\n%s", line, content)
		}
	}
}

func TestUnitGenerator_Defaults(t *testing.T) {
	gen := newTestGenerator()

	content, err := gen.Generate(&dto.ServiceUnitParams{
		ExecStart: "/usr/bin/sleep infinity",
	})
	if err != nil {
		t.Fatalf("Generate 失败: %v", err)
	}

	for _, line := range []string{"Type=simple", "Restart=always", "WantedBy=multi-user.target"} {
		if !strings.Contains(content, line) {
			t.Errorf("默认值缺失 %q:\n%s", line, content)
		}
	}
	if !strings.HasSuffix(content, "\n") {
		t.Error("文件末尾应保留换行")
	}
}

func TestUnitGenerator_Validate(t *testing.T) {
	gen := newTestGenerator()

	tests := []struct {
		name   string
		params *dto.ServiceUnitParams
	}{
		{"nil 参数", nil},
		{"空 ExecStart", &dto.ServiceUnitParams{Description: "x"}},
		{"ExecStart 仅空白", &dto.ServiceUnitParams{ExecStart: "   "}},
		{"Description 含换行", &dto.ServiceUnitParams{
			ExecStart:   "/usr/bin/true",
			Description: "a\nExecStart=/bin/evil",
		}},
		{"Environment 含回车", &dto.ServiceUnitParams{
			ExecStart:   "/usr/bin/true",
			Environment: []string{"KEY=a\rb"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := gen.Generate(tt.params); err == nil {
				t.Error("期望校验失败，实际通过")
			}
		})
	}
}
