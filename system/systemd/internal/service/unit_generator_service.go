package service

import (
	"fmt"
	"strconv"
	"strings"

	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
	"fabu/system/systemd/internal/model/dto"
)

// UnitGeneratorService unit 文件生成服务
// 负责根据结构化参数生成 systemd service unit 内容
// 只做参数校验与文本渲染，不做文件写入或 systemctl 调用
type UnitGeneratorService struct {
	log *logger.Log
	err *errorc.ErrorBuilder
}

// NewUnitGeneratorService 创建 unit 生成服务
func NewUnitGeneratorService(log *logger.Log) *UnitGeneratorService {
	return &UnitGeneratorService{
		log: log.WithEntryName("UnitGeneratorService"),
		err: errorc.NewErrorBuilder("UnitGeneratorService"),
	}
}

// Generate 根据参数生成 systemd service unit 内容
// 输出顺序固定为 [Unit] → [Service] → [Install]，段落间空行，文件末尾保留换行
func (s *UnitGeneratorService) Generate(params *dto.ServiceUnitParams) (string, error) {
	if err := s.validate(params); err != nil {
		return "", err
	}

	var sb strings.Builder

	// [Unit] 段
	sb.WriteString("[Unit]\n")
	if params.Description != "" {
		sb.WriteString(fmt.Sprintf("Description=%s\n", params.Description))
	}
	if params.Documentation != "" {
		sb.WriteString(fmt.Sprintf("Documentation=%s\n", params.Documentation))
	}
	for _, v := range params.After {
		sb.WriteString(fmt.Sprintf("After=%s\n", v))
	}
	for _, v := range params.Wants {
		sb.WriteString(fmt.Sprintf("Wants=%s\n", v))
	}
	for _, v := range params.Requires {
		sb.WriteString(fmt.Sprintf("Requires=%s\n", v))
	}
	for _, line := range params.ExtraUnitLines {
		sb.WriteString(line + "\n")
	}

	sb.WriteString("\n")

	// [Service] 段
	sb.WriteString("[Service]\n")

	// Type 默认 simple
	svcType := params.Type
	if svcType == "" {
		svcType = "simple"
	}
	sb.WriteString(fmt.Sprintf("Type=%s\n", svcType))

	for _, v := range params.ExecStartPre {
		sb.WriteString(fmt.Sprintf("ExecStartPre=%s\n", v))
	}

	// ExecStart（必填，已在 validate 中检查）
	sb.WriteString(fmt.Sprintf("ExecStart=%s\n", params.ExecStart))

	for _, v := range params.ExecStartPost {
		sb.WriteString(fmt.Sprintf("ExecStartPost=%s\n", v))
	}

	if params.ExecStop != "" {
		sb.WriteString(fmt.Sprintf("ExecStop=%s\n", params.ExecStop))
	}
	if params.ExecReload != "" {
		sb.WriteString(fmt.Sprintf("ExecReload=%s\n", params.ExecReload))
	}
	if params.WorkingDirectory != "" {
		sb.WriteString(fmt.Sprintf("WorkingDirectory=%s\n", params.WorkingDirectory))
	}
	if params.User != "" {
		sb.WriteString(fmt.Sprintf("User=%s\n", params.User))
	}
	if params.Group != "" {
		sb.WriteString(fmt.Sprintf("Group=%s\n", params.Group))
	}
	for _, v := range params.Environment {
		sb.WriteString(fmt.Sprintf("Environment=%s\n", v))
	}
	if params.EnvironmentFile != "" {
		sb.WriteString(fmt.Sprintf("EnvironmentFile=%s\n", params.EnvironmentFile))
	}

	// Restart 默认 always
	restart := params.Restart
	if restart == "" {
		restart = "always"
	}
	sb.WriteString(fmt.Sprintf("Restart=%s\n", restart))

	if params.RestartSec > 0 {
		sb.WriteString(fmt.Sprintf("RestartSec=%d\n", params.RestartSec))
	}
	if params.TimeoutStartSec > 0 {
		sb.WriteString(fmt.Sprintf("TimeoutStartSec=%s\n", strconv.Itoa(params.TimeoutStartSec)))
	}
	if params.TimeoutStopSec > 0 {
		sb.WriteString(fmt.Sprintf("TimeoutStopSec=%s\n", strconv.Itoa(params.TimeoutStopSec)))
	}
	if params.LimitNOFILE > 0 {
		sb.WriteString(fmt.Sprintf("LimitNOFILE=%s\n", strconv.Itoa(params.LimitNOFILE)))
	}
	if params.LimitNPROC > 0 {
		sb.WriteString(fmt.Sprintf("LimitNPROC=%s\n", strconv.Itoa(params.LimitNPROC)))
	}

	for _, line := range params.ExtraServiceLines {
		sb.WriteString(line + "\n")
	}

	sb.WriteString("\n")

	// [Install] 段
	sb.WriteString("[Install]\n")

	// WantedBy 默认 multi-user.target
	wantedBy := params.WantedBy
	if len(wantedBy) == 0 {
		wantedBy = []string{"multi-user.target"}
	}
	for _, v := range wantedBy {
		sb.WriteString(fmt.Sprintf("WantedBy=%s\n", v))
	}
	for _, v := range params.RequiredBy {
		sb.WriteString(fmt.Sprintf("RequiredBy=%s\n", v))
	}
	for _, v := range params.Alias {
		sb.WriteString(fmt.Sprintf("Alias=%s\n", v))
	}
	for _, line := range params.ExtraInstallLines {
		sb.WriteString(line + "\n")
	}

	return sb.String(), nil
}

// validate 校验参数
func (s *UnitGeneratorService) validate(params *dto.ServiceUnitParams) error {
	if params == nil {
		return s.err.New("参数不能为空", nil).ValidWithCtx()
	}

	// ExecStart 必填
	if strings.TrimSpace(params.ExecStart) == "" {
		return s.err.New("ExecStart 不能为空", nil).ValidWithCtx()
	}

	// 安全校验：所有字段值禁止包含换行符（避免注入多行导致 unit 结构被破坏）
	scalarFields := map[string]string{
		"Description":      params.Description,
		"Documentation":    params.Documentation,
		"Type":             params.Type,
		"ExecStart":        params.ExecStart,
		"ExecStop":         params.ExecStop,
		"ExecReload":       params.ExecReload,
		"WorkingDirectory": params.WorkingDirectory,
		"User":             params.User,
		"Group":            params.Group,
		"EnvironmentFile":  params.EnvironmentFile,
		"Restart":          params.Restart,
	}
	for name, value := range scalarFields {
		if err := s.checkNoNewlines(name, value); err != nil {
			return err
		}
	}

	listFields := map[string][]string{
		"After":             params.After,
		"Wants":             params.Wants,
		"Requires":          params.Requires,
		"ExecStartPre":      params.ExecStartPre,
		"ExecStartPost":     params.ExecStartPost,
		"Environment":       params.Environment,
		"WantedBy":          params.WantedBy,
		"RequiredBy":        params.RequiredBy,
		"Alias":             params.Alias,
		"ExtraUnitLines":    params.ExtraUnitLines,
		"ExtraServiceLines": params.ExtraServiceLines,
		"ExtraInstallLines": params.ExtraInstallLines,
	}
	for name, values := range listFields {
		for i, v := range values {
			if err := s.checkNoNewlines(fmt.Sprintf("%s[%d]", name, i), v); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkNoNewlines 检查字符串是否包含换行符
func (s *UnitGeneratorService) checkNoNewlines(fieldName, value string) error {
	if strings.ContainsAny(value, "\n\r") {
		return s.err.New(fmt.Sprintf("%s 不能包含换行符", fieldName), nil).ValidWithCtx()
	}
	return nil
}
