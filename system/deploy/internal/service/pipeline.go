package service

import (
	"context"
	"fmt"
	"time"

	errorc "fabu/pkg/core/err"
	"fabu/pkg/core/logger"
	"fabu/system/deploy/internal/model/dto"
)

// Step 部署流水线中的单个步骤
type Step struct {
	// Name 步骤名，用于日志与审计
	Name string
	// Skip 返回 true 时跳过本步骤
	Skip func() bool
	// Run 步骤执行体
	Run func(ctx context.Context) error
	// BestEffort 失败时记录告警并继续，不终止流水线
	BestEffort bool
	// OnFatal 致命失败后的补救动作（如停掉新实例），执行失败仅记录日志
	OnFatal func(ctx context.Context)
}

// Pipeline 步骤执行器
// 步骤按序执行；尽力而为的步骤失败只告警，其余步骤失败终止整条流水线
type Pipeline struct {
	log *logger.Log
	err *errorc.ErrorBuilder
}

// NewPipeline 创建步骤执行器
func NewPipeline(log *logger.Log) *Pipeline {
	return &Pipeline{
		log: log.WithEntryName("Pipeline"),
		err: errorc.NewErrorBuilder("Pipeline"),
	}
}

// Execute 依序执行步骤，返回各步骤结果
// 致命失败时以 "!!!" 前缀记录失败原因并返回错误
func (p *Pipeline) Execute(ctx context.Context, steps []Step) ([]dto.StepResult, error) {
	results := make([]dto.StepResult, 0, len(steps))

	for _, step := range steps {
		if step.Skip != nil && step.Skip() {
			p.log.Infof("[%s] 跳过", step.Name)
			results = append(results, dto.StepResult{Name: step.Name, Status: dto.StepSkipped})
			continue
		}

		p.log.Infof("[%s] 开始", step.Name)
		start := time.Now()
		err := step.Run(ctx)
		elapsed := time.Since(start)

		if err == nil {
			p.log.Infof("[%s] 完成 (%s)", step.Name, elapsed.Round(time.Millisecond))
			results = append(results, dto.StepResult{
				Name: step.Name, Status: dto.StepSuccess, Duration: elapsed,
			})
			continue
		}

		if step.BestEffort {
			p.log.WithErr(err).Warnf("[%s] 失败，继续执行", step.Name)
			results = append(results, dto.StepResult{
				Name: step.Name, Status: dto.StepRecoverable, Err: err, Duration: elapsed,
			})
			continue
		}

		p.log.Errorf("!!! [%s] 失败: %s", step.Name, errorc.ParseError(err).RootCause())
		if step.OnFatal != nil {
			step.OnFatal(ctx)
		}
		results = append(results, dto.StepResult{
			Name: step.Name, Status: dto.StepFatal, Err: err, Duration: elapsed,
		})
		return results, p.err.New(fmt.Sprintf("步骤 %s 失败", step.Name), err)
	}
	return results, nil
}
