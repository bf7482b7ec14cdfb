// Package agent runs the decision loop: build page state, ask the engine
// for the next action, execute it, observe the outcome, repeat until done
// or out of steps.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ken0yuan/auto-ai-web/internal/action"
	"github.com/ken0yuan/auto-ai-web/internal/browser"
	"github.com/ken0yuan/auto-ai-web/internal/dom"
	"github.com/ken0yuan/auto-ai-web/internal/engine"
)

// ErrLoopExhausted means the step limit ran out before the engine declared
// the task done.
var ErrLoopExhausted = errors.New("step limit exhausted")

// HistoryEntry records one loop iteration for the model's benefit: what was
// attempted and how it went. Failed attempts stay in history so the model
// can self-correct instead of repeating them.
type HistoryEntry struct {
	Step    int
	Action  string
	Outcome string
	Success bool
}

func (h HistoryEntry) String() string {
	status := "成功"
	if !h.Success {
		status = "失败：" + h.Outcome
	}
	if h.Success && h.Outcome != "" {
		status = h.Outcome
	}
	return fmt.Sprintf("%s → %s", h.Action, status)
}

// Outcome is the final result of one agent run.
type Outcome struct {
	Success bool
	Message string
	Steps   int
	History []HistoryEntry
}

// Options bounds the loop.
type Options struct {
	// MaxSteps caps loop iterations. Zero means 25.
	MaxSteps int

	// HistoryLimit caps how many past entries the model sees. Zero means 10.
	HistoryLimit int

	// StepTimeout bounds one full iteration. Zero means 90s.
	StepTimeout time.Duration

	// Screenshot attaches a viewport capture to each decision request.
	Screenshot bool
}

// Agent owns one task run on one page.
type Agent struct {
	log        *zap.Logger
	eng        engine.Engine
	controller *action.Controller
	page       browser.Page
	opts       Options

	history []HistoryEntry
}

// New creates an agent.
func New(log *zap.Logger, eng engine.Engine, controller *action.Controller, page browser.Page, opts Options) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 25
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 90 * time.Second
	}
	return &Agent{
		log:        log.Named("agent"),
		eng:        eng,
		controller: controller,
		page:       page,
		opts:       opts,
	}
}

// Run executes the loop for one task. The page state is rebuilt at the top
// of every iteration, so the engine always decides against fresh indices.
// Build failures abort the run; everything else becomes history and the
// loop continues.
func (a *Agent) Run(ctx context.Context, task string) (*Outcome, error) {
	for step := 1; step <= a.opts.MaxSteps; step++ {
		outcome, done, err := a.step(ctx, task, step)
		if err != nil {
			return nil, err
		}
		if done {
			outcome.Steps = step
			outcome.History = a.history
			return outcome, nil
		}
	}

	a.log.Warn("step limit exhausted", zap.String("task", task), zap.Int("max_steps", a.opts.MaxSteps))
	return &Outcome{
		Success: false,
		Message: fmt.Sprintf("stopped after %d steps without completing the task", a.opts.MaxSteps),
		Steps:   a.opts.MaxSteps,
		History: a.history,
	}, ErrLoopExhausted
}

func (a *Agent) step(parent context.Context, task string, step int) (*Outcome, bool, error) {
	ctx, cancel := context.WithTimeout(parent, a.opts.StepTimeout)
	defer cancel()

	state, err := a.controller.RebuildIndex(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("step %d: %w", step, err)
	}

	req := engine.Request{
		Task:      task,
		Structure: dom.Serialize(state),
		History:   a.historyLines(),
	}
	if a.opts.Screenshot {
		if shot, err := a.page.Screenshot(ctx); err == nil {
			req.Screenshot = shot
		} else {
			a.log.Debug("screenshot failed", zap.Error(err))
		}
	}

	decision, err := a.eng.Decide(ctx, req)
	if err != nil {
		if errors.Is(err, engine.ErrDecisionParse) {
			a.record(HistoryEntry{
				Step:    step,
				Action:  "（无法解析的回复）",
				Outcome: "回复里没有可执行的操作指令，请严格使用要求的格式",
			})
			return nil, false, nil
		}
		if parent.Err() != nil {
			return nil, false, fmt.Errorf("step %d: decide: %w", step, parent.Err())
		}
		// A step timeout or transient API failure is not fatal: let the
		// model see it and try again against a fresh build.
		a.log.Warn("decision failed", zap.Int("step", step), zap.Error(err))
		a.record(HistoryEntry{
			Step:    step,
			Action:  "（模型调用失败）",
			Outcome: err.Error(),
		})
		return nil, false, nil
	}

	a.log.Info("decided",
		zap.Int("step", step),
		zap.Bool("done", decision.Done),
		zap.String("action", decision.Action.String()),
	)

	if decision.Done {
		return &Outcome{Success: true, Message: decision.Message}, true, nil
	}

	res := a.controller.Execute(ctx, decision.Action)
	a.record(HistoryEntry{
		Step:    step,
		Action:  decision.Action.String(),
		Outcome: res.Message,
		Success: res.Success,
	})
	return nil, false, nil
}

func (a *Agent) record(h HistoryEntry) {
	a.history = append(a.history, h)
}

// historyLines renders the most recent entries, bounded by HistoryLimit.
func (a *Agent) historyLines() []string {
	entries := a.history
	if len(entries) > a.opts.HistoryLimit {
		entries = entries[len(entries)-a.opts.HistoryLimit:]
	}
	lines := make([]string, 0, len(entries))
	for _, h := range entries {
		lines = append(lines, h.String())
	}
	return lines
}
