package script

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"storyforge/config"
	"storyforge/llm"
	"storyforge/types"
)

// genState is one step of the repair loop. Transitions are driven only by the
// validation outcome and the remaining clarification budget, which keeps the
// bound auditable without any network calls involved.
type genState int

const (
	stateDrafting genState = iota
	stateValidating
	stateRepairing
	stateSucceeded
	stateExhausted
)

// Generator drives the LLM into producing a script that passes validation.
// Each full attempt starts from the original prompt; within an attempt, up to
// MaxClarifications correction rounds feed the exact violations back to the
// model together with its prior candidate.
type Generator struct {
	llm            llm.Completer
	validator      *Validator
	attempts       int
	clarifications int
	log            *logrus.Logger
}

// NewGenerator wires a generator from its collaborators.
func NewGenerator(c llm.Completer, v *Validator, cfg config.ScriptConfig, logger *logrus.Logger) *Generator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Generator{
		llm:            c,
		validator:      v,
		attempts:       cfg.MaxAttempts,
		clarifications: cfg.MaxClarifications,
		log:            logger,
	}
}

// Generate returns the first candidate with zero violations. Transport errors
// from the LLM propagate immediately and do not consume the retry budget;
// exhausting both budgets yields a GenerationError.
func (g *Generator) Generate(ctx context.Context, userPrompt string) (*types.Script, error) {
	var last []Violation
	for attempt := 1; attempt <= g.attempts; attempt++ {
		scr, violations, err := g.runAttempt(ctx, userPrompt, attempt)
		if err != nil {
			return nil, err
		}
		if scr != nil {
			return scr, nil
		}
		last = violations
		g.log.WithField("stage", "script").Warnf("attempt %d/%d exhausted clarification budget, restarting from prompt", attempt, g.attempts)
	}

	msgs := make([]string, len(last))
	for i, v := range last {
		msgs[i] = v.String()
	}
	return nil, &types.GenerationError{Attempts: g.attempts, Violations: msgs}
}

// runAttempt executes one full draft/validate/repair cycle. It returns a valid
// script, or the final violations once the clarification budget is spent, or a
// transport error.
func (g *Generator) runAttempt(ctx context.Context, userPrompt string, attempt int) (*types.Script, []Violation, error) {
	history := []llm.Message{{Role: llm.RoleUser, Content: buildStoryboardPrompt(userPrompt)}}
	budget := g.clarifications

	var candidate *types.Script
	var violations []Violation

	state := stateDrafting
	for {
		switch state {
		case stateDrafting:
			reply, err := g.llm.Complete(ctx, history)
			if err != nil {
				return nil, nil, err
			}
			history = append(history, llm.Message{Role: llm.RoleAssistant, Content: reply})
			candidate, violations = g.evaluate(reply)
			state = stateValidating

		case stateValidating:
			switch {
			case len(violations) == 0:
				state = stateSucceeded
			case budget == 0:
				state = stateExhausted
			default:
				state = stateRepairing
			}

		case stateRepairing:
			budget--
			g.log.WithField("stage", "script").Infof("attempt %d: %d violation(s), requesting correction (%d clarification(s) left)", attempt, len(violations), budget)
			history = append(history, llm.Message{Role: llm.RoleUser, Content: buildCorrectionPrompt(violations)})
			reply, err := g.llm.Complete(ctx, history)
			if err != nil {
				return nil, nil, err
			}
			history = append(history, llm.Message{Role: llm.RoleAssistant, Content: reply})
			candidate, violations = g.evaluate(reply)
			state = stateValidating

		case stateSucceeded:
			return candidate, nil, nil

		case stateExhausted:
			return nil, violations, nil
		}
	}
}

// evaluate parses a raw model reply and validates the candidate. A parse
// failure is reported the same way as a validation failure so it consumes a
// clarification instead of crashing the loop.
func (g *Generator) evaluate(raw string) (*types.Script, []Violation) {
	var candidate types.Script
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &candidate); err != nil {
		return nil, []Violation{{
			Field:   "json",
			Message: fmt.Sprintf("response was not a valid JSON object (%v); reply with nothing but the JSON object described by the schema", err),
		}}
	}
	return &candidate, g.validator.Validate(&candidate)
}
