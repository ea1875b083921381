package workflow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitDefinitionUnmarshalsTupleForm(t *testing.T) {
	var w WaitDefinition
	require.NoError(t, json.Unmarshal([]byte("1700000000"), &w))
	assert.Equal(t, int64(1700000000), w.WaitUntil().Unix())
}

func TestWaitDefinitionUnmarshalsStructForm(t *testing.T) {
	var w WaitDefinition
	require.NoError(t, json.Unmarshal([]byte(`{"wait_until":1700000000}`), &w))
	assert.Equal(t, int64(1700000000), w.WaitUntil().Unix())
}

func TestWaitDefinitionRejectsGarbage(t *testing.T) {
	var w WaitDefinition
	assert.Error(t, json.Unmarshal([]byte(`"not-a-timestamp"`), &w))
}

func TestChildDefinitionUnmarshalsTupleForm(t *testing.T) {
	var c ChildDefinition
	require.NoError(t, json.Unmarshal([]byte(`["https://example.com/child", {"x":1}]`), &c))
	assert.Equal(t, "https://example.com/child", c.URL())
	assert.Equal(t, json.RawMessage(`{"x":1}`), c.Input())
	assert.Equal(t, int32(defaultChildMaxRetries), c.MaxRetries())
}

func TestChildDefinitionUnmarshalsStructFormWithOverride(t *testing.T) {
	var c ChildDefinition
	require.NoError(t, json.Unmarshal([]byte(`{"url":"https://example.com/child","input":{"x":1},"max_retries":3}`), &c))
	assert.Equal(t, int32(3), c.MaxRetries())
}

func TestChildDefinitionStructFormDefaultsMaxRetries(t *testing.T) {
	var c ChildDefinition
	require.NoError(t, json.Unmarshal([]byte(`{"url":"https://example.com/child","input":{}}`), &c))
	assert.Equal(t, int32(defaultChildMaxRetries), c.MaxRetries())
}

func TestChildDefinitionRejectsInvalidTupleURL(t *testing.T) {
	var c ChildDefinition
	err := json.Unmarshal([]byte(`["://bad", {}]`), &c)
	assert.Error(t, err)
}

func TestIngestExecutionRecordsFailureAsPrevError(t *testing.T) {
	ctx := NewContext(json.RawMessage(`{}`))
	now := time.Now().UTC()
	reason := "boom"
	ctx.IngestExecution(Execution{FailureReason: &reason, ExecutedAt: &now})

	require.Len(t, ctx.PrevErrors, 1)
	assert.Equal(t, "boom", ctx.PrevErrors[0].Message)
}

func TestIngestExecutionMergesNewSteps(t *testing.T) {
	ctx := NewContext(json.RawMessage(`{}`))
	ctx.IngestExecution(Execution{ResultJSON: json.RawMessage(`{"new_steps":{"step1":{"ok":true}}}`)})

	assert.Contains(t, ctx.Steps, "step1")
	assert.Empty(t, ctx.PrevErrors)
}

func TestIngestExecutionRecordsMalformedResultAsPrevError(t *testing.T) {
	ctx := NewContext(json.RawMessage(`{}`))
	ctx.IngestExecution(Execution{ResultJSON: json.RawMessage(`not json`)})

	require.Len(t, ctx.PrevErrors, 1)
	assert.Contains(t, ctx.PrevErrors[0].Message, "poorly formed data")
}

func TestIngestExecutionIgnoresEmptyResult(t *testing.T) {
	ctx := NewContext(json.RawMessage(`{}`))
	ctx.IngestExecution(Execution{})
	assert.Empty(t, ctx.PrevErrors)
	assert.Empty(t, ctx.Steps)
}

func TestIngestDependencyRecordsCompletedWait(t *testing.T) {
	ctx := NewContext(json.RawMessage(`{}`))
	name := "timer1"
	ctx.IngestDependency(Dependency{WaitName: &name, WaitComplete: true})
	assert.True(t, ctx.CompletedWaits["timer1"])
}

func TestIngestDependencyRecordsChildSuccessAndFailure(t *testing.T) {
	ctx := NewContext(json.RawMessage(`{}`))
	childName := "child1"
	result := json.RawMessage(`{"ok":true}`)
	ctx.IngestDependency(Dependency{ChildWorkflowName: &childName, ChildResult: result})
	assert.Equal(t, "success", ctx.ChildWorkflows["child1"].Type)

	ctx2 := NewContext(json.RawMessage(`{}`))
	errMsg := "child failed"
	ctx2.IngestDependency(Dependency{ChildWorkflowName: &childName, ChildError: &errMsg})
	assert.Equal(t, "failure", ctx2.ChildWorkflows["child1"].Type)
	assert.Equal(t, "child failed", ctx2.ChildWorkflows["child1"].Error)
}

func TestParseReturnedDataHandlesEmptyAndInvalid(t *testing.T) {
	_, ok := ParseReturnedData(nil)
	assert.False(t, ok)

	_, ok = ParseReturnedData(json.RawMessage(`not json`))
	assert.False(t, ok)

	data, ok := ParseReturnedData(json.RawMessage(`{"result":{"x":1}}`))
	assert.True(t, ok)
	assert.Equal(t, json.RawMessage(`{"x":1}`), data.Result)
}
