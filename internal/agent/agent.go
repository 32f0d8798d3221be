// Package agent answers natural-language questions about the derived order
// table. The model proposes a query plan, the plan runs locally against the
// loaded data, and a second call turns the computed result into markdown.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/filflo-cli/internal/ai"
	"github.com/KaramelBytes/filflo-cli/internal/history"
	"github.com/KaramelBytes/filflo-cli/internal/logging"
	"github.com/KaramelBytes/filflo-cli/internal/query"
	"github.com/KaramelBytes/filflo-cli/internal/table"
	"github.com/KaramelBytes/filflo-cli/internal/telemetry"
	"github.com/KaramelBytes/filflo-cli/internal/utils"
)

// ErrorPrefix starts every failure string returned by Ask.
const ErrorPrefix = "An error occurred: "

// DefaultResultTokens bounds the rendered result handed to the narration call.
const DefaultResultTokens = 3000

type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// ResultTokens caps the markdown result in the narration prompt.
	ResultTokens int

	Logger    *zap.Logger
	Telemetry *telemetry.Registry
}

type Agent struct {
	rt   ai.Runtime
	data *table.Table
	opt  Options
	log  *zap.Logger
}

func New(rt ai.Runtime, data *table.Table, opt Options) *Agent {
	if opt.ResultTokens <= 0 {
		opt.ResultTokens = DefaultResultTokens
	}
	return &Agent{rt: rt, data: data, opt: opt, log: logging.OrNop(opt.Logger)}
}

// Data returns the table the agent answers from.
func (a *Agent) Data() *table.Table { return a.data }

// Ask answers question without history. Failures come back as a plain
// string starting with ErrorPrefix, never as an error.
func (a *Agent) Ask(ctx context.Context, question string) string {
	answer, err := a.Answer(ctx, question, nil)
	if err != nil {
		return ErrorPrefix + err.Error()
	}
	return answer
}

// Answer plans, executes and narrates one question. turns are prior
// conversation messages, oldest first.
func (a *Agent) Answer(ctx context.Context, question string, turns []history.Turn) (string, error) {
	start := time.Now()
	answer, err := a.answer(ctx, question, turns)
	if err != nil {
		a.opt.Telemetry.CountQuery("error")
		a.log.Warn("query failed", zap.String("question", question), zap.Error(err))
		return "", err
	}
	a.opt.Telemetry.CountQuery("ok")
	a.log.Info("query answered",
		zap.String("question", question),
		zap.Duration("took", time.Since(start)))
	return answer, nil
}

func (a *Agent) answer(ctx context.Context, question string, turns []history.Turn) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question cannot be empty")
	}
	if a.data == nil || a.data.Len() == 0 {
		return "", errors.New("no data loaded")
	}

	msgs := []ai.Message{{Role: ai.RoleSystem, Content: planPrompt(a.data)}}
	msgs = append(msgs, historyMessages(turns)...)
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: question})

	plan, raw, err := a.plan(ctx, msgs)
	if err != nil {
		// one repair round with the validation error fed back
		var ve *query.ValidationError
		if !errors.As(err, &ve) && !errors.Is(err, query.ErrNoPlan) {
			return "", err
		}
		a.log.Debug("plan rejected, asking again", zap.Error(err))
		msgs = append(msgs,
			ai.Message{Role: ai.RoleAssistant, Content: raw},
			ai.Message{Role: ai.RoleUser, Content: fmt.Sprintf("That plan is invalid (%v). Return a corrected JSON plan only.", err)},
		)
		if plan, _, err = a.plan(ctx, msgs); err != nil {
			return "", err
		}
	}

	res, err := query.Execute(a.data, plan)
	if err != nil {
		return "", err
	}
	a.log.Debug("plan executed",
		zap.Int("matched", res.Matched),
		zap.Int("rows", res.Table.Len()),
		zap.String("methodology", plan.Methodology))

	resultMD := utils.TruncateToTokenLimit(res.Table.Markdown(0), a.opt.ResultTokens)
	a.log.Debug("result table sized", zap.Int("tokens", utils.CountTokens(resultMD)))
	return a.generate(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: narrateRules},
		{Role: ai.RoleUser, Content: narratePrompt(question, plan.Methodology, resultMD, res.Matched, res.Truncated)},
	})
}

// plan returns the validated plan and the raw model text it came from.
func (a *Agent) plan(ctx context.Context, msgs []ai.Message) (*query.Plan, string, error) {
	raw, err := a.generate(ctx, msgs)
	if err != nil {
		return nil, "", err
	}
	p, err := query.ParsePlan(raw)
	if err != nil {
		if errors.Is(err, query.ErrNoPlan) {
			return nil, raw, err
		}
		return nil, raw, &query.ValidationError{Field: "plan", Reason: err.Error()}
	}
	if err := p.Validate(a.data); err != nil {
		return nil, raw, err
	}
	return p, raw, nil
}

func (a *Agent) generate(ctx context.Context, msgs []ai.Message) (string, error) {
	resp, err := a.rt.Generate(ctx, ai.GenerateRequest{
		Model:       a.opt.Model,
		Messages:    msgs,
		MaxTokens:   a.opt.MaxTokens,
		Temperature: a.opt.Temperature,
	})
	if err != nil {
		return "", err
	}
	text, err := resp.Text()
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ai.ErrEmptyResponse
	}
	return text, nil
}

func historyMessages(turns []history.Turn) []ai.Message {
	out := make([]ai.Message, 0, len(turns))
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		role := ai.RoleUser
		if t.Role == ai.RoleAssistant {
			role = ai.RoleAssistant
		}
		out = append(out, ai.Message{Role: role, Content: t.Content})
	}
	return out
}
