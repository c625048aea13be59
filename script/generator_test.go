package script

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge/config"
	"storyforge/llm"
	"storyforge/types"
)

// fakeCompleter replays canned replies and records every conversation it saw.
type fakeCompleter struct {
	replies   []string
	err       error
	calls     int
	histories [][]llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, history []llm.Message) (string, error) {
	f.calls++
	f.histories = append(f.histories, append([]llm.Message(nil), history...))
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[len(f.replies)-1]
	if f.calls <= len(f.replies) {
		reply = f.replies[f.calls-1]
	}
	return reply, nil
}

func scriptJSON(t *testing.T, s *types.Script) string {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return string(data)
}

func newTestGenerator(c llm.Completer) *Generator {
	cfg := config.Default().Script
	return NewGenerator(c, NewValidator(cfg), cfg, nil)
}

func TestGenerateSucceedsFirstDraft(t *testing.T) {
	fake := &fakeCompleter{replies: []string{scriptJSON(t, validScript())}}
	gen := newTestGenerator(fake)

	scr, err := gen.Generate(context.Background(), "a western standoff")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
	assert.Empty(t, gen.validator.Validate(scr), "returned script always passes validation")
}

func TestGenerateExhaustsBudgetOnPersistentViolations(t *testing.T) {
	bad := validScript()
	bad.Frames[0].Dialog = ""
	fake := &fakeCompleter{replies: []string{scriptJSON(t, bad)}}
	gen := newTestGenerator(fake)

	scr, err := gen.Generate(context.Background(), "a western standoff")
	assert.Nil(t, scr)

	var genErr *types.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 2, genErr.Attempts)
	require.Len(t, genErr.Violations, 1)
	assert.Contains(t, genErr.Violations[0], "dialog")

	// 2 attempts, each one draft plus three clarification rounds.
	assert.Equal(t, 8, fake.calls)
}

func TestGenerateRepairsAfterViolation(t *testing.T) {
	bad := validScript()
	bad.Frames[2].Emotion = "Smug"
	fake := &fakeCompleter{replies: []string{scriptJSON(t, bad), scriptJSON(t, validScript())}}
	gen := newTestGenerator(fake)

	scr, err := gen.Generate(context.Background(), "a western standoff")
	require.NoError(t, err)
	require.NotNil(t, scr)
	assert.Equal(t, 2, fake.calls)

	// The correction round carries the rejected candidate and quotes the
	// violation back at the model.
	second := fake.histories[1]
	require.Len(t, second, 3)
	assert.Equal(t, llm.RoleAssistant, second[1].Role)
	assert.Equal(t, scriptJSON(t, bad), second[1].Content)
	assert.Equal(t, llm.RoleUser, second[2].Role)
	assert.Contains(t, second[2].Content, "Problem:")
	assert.Contains(t, second[2].Content, "emotion")
	assert.Contains(t, second[2].Content, "Frame indices with issue: 2")
}

func TestGenerateParseFailureConsumesClarification(t *testing.T) {
	fake := &fakeCompleter{replies: []string{"sure! here is your storyboard:", scriptJSON(t, validScript())}}
	gen := newTestGenerator(fake)

	scr, err := gen.Generate(context.Background(), "a western standoff")
	require.NoError(t, err)
	require.NotNil(t, scr)
	assert.Equal(t, 2, fake.calls)
	assert.Contains(t, fake.histories[1][2].Content, "JSON")
}

func TestGenerateTransportErrorPropagatesUncounted(t *testing.T) {
	upstream := &types.UpstreamError{Service: types.ServiceLLM, Frame: -1, Err: errors.New("connection refused")}
	fake := &fakeCompleter{err: upstream}
	gen := newTestGenerator(fake)

	_, err := gen.Generate(context.Background(), "a western standoff")
	var upErr *types.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, types.ServiceLLM, upErr.Service)
	assert.Equal(t, 1, fake.calls, "transport errors do not burn the retry budget")
}
