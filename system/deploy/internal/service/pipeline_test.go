package service

import (
	"context"
	"errors"
	"testing"

	"fabu/pkg/core/logger"
	"fabu/system/deploy/internal/model/dto"
)

func TestPipeline_StopsOnFatal(t *testing.T) {
	p := NewPipeline(logger.GetLogger())
	var order []string

	steps := []Step{
		{Name: "a", Run: func(ctx context.Context) error { order = append(order, "a"); return nil }},
		{Name: "b", Run: func(ctx context.Context) error { order = append(order, "b"); return errors.New("boom") }},
		{Name: "c", Run: func(ctx context.Context) error { order = append(order, "c"); return nil }},
	}
	results, err := p.Execute(context.Background(), steps)
	if err == nil {
		t.Fatal("致命失败应返回错误")
	}
	if len(order) != 2 {
		t.Errorf("失败后不得继续执行: %v", order)
	}
	if results[1].Status != dto.StepFatal {
		t.Errorf("失败步骤状态错误: %s", results[1].Status)
	}
}

func TestPipeline_BestEffortContinues(t *testing.T) {
	p := NewPipeline(logger.GetLogger())
	var order []string

	steps := []Step{
		{Name: "a", BestEffort: true, Run: func(ctx context.Context) error { return errors.New("best effort boom") }},
		{Name: "b", Run: func(ctx context.Context) error { order = append(order, "b"); return nil }},
	}
	results, err := p.Execute(context.Background(), steps)
	if err != nil {
		t.Fatalf("尽力而为失败不应终止: %v", err)
	}
	if len(order) != 1 {
		t.Errorf("后续步骤应继续执行: %v", order)
	}
	if results[0].Status != dto.StepRecoverable {
		t.Errorf("步骤状态应为 recoverable: %s", results[0].Status)
	}
}

func TestPipeline_SkipAndOnFatal(t *testing.T) {
	p := NewPipeline(logger.GetLogger())
	fatalRan := false

	steps := []Step{
		{Name: "skipped", Skip: func() bool { return true }, Run: func(ctx context.Context) error {
			t.Error("跳过的步骤不得执行")
			return nil
		}},
		{
			Name:    "fails",
			Run:     func(ctx context.Context) error { return errors.New("boom") },
			OnFatal: func(ctx context.Context) { fatalRan = true },
		},
	}
	results, err := p.Execute(context.Background(), steps)
	if err == nil {
		t.Fatal("应返回错误")
	}
	if results[0].Status != dto.StepSkipped {
		t.Errorf("跳过状态错误: %s", results[0].Status)
	}
	if !fatalRan {
		t.Error("致命失败应触发补救动作")
	}
}
