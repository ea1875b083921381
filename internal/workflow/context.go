// Package workflow implements the WorkflowContext projection and the
// ReturnedData/WaitDefinition/ChildDefinition shapes an implementation
// endpoint returns.
package workflow

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// WaitDefinition is a timer dependency an implementation can request.
// Tolerates both the tuple form (a bare unix-seconds number) and the
// struct form ({"wait_until": ...}).
type WaitDefinition struct {
	WaitUntilTime time.Time
}

func (w *WaitDefinition) UnmarshalJSON(data []byte) error {
	var tuple int64
	if err := json.Unmarshal(data, &tuple); err == nil {
		w.WaitUntilTime = time.Unix(tuple, 0).UTC()
		return nil
	}

	var obj struct {
		WaitUntil int64 `json:"wait_until"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("workflow: invalid wait definition: %w", err)
	}
	w.WaitUntilTime = time.Unix(obj.WaitUntil, 0).UTC()
	return nil
}

func (w WaitDefinition) WaitUntil() time.Time { return w.WaitUntilTime }

// ChildDefinition is a child-workflow spawn request an implementation
// can return. Tolerates both the tuple form ([url, input]) and the
// struct form ({"url", "input", "max_retries"}).
type ChildDefinition struct {
	URLValue        string
	InputValue      json.RawMessage
	MaxRetriesValue int32
}

const defaultChildMaxRetries = 9

func (c *ChildDefinition) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err == nil && len(tuple) == 2 {
		var u string
		if err := json.Unmarshal(tuple[0], &u); err != nil {
			return fmt.Errorf("workflow: invalid child definition url: %w", err)
		}
		if _, err := url.Parse(u); err != nil {
			return fmt.Errorf("workflow: invalid child definition url: %w", err)
		}
		c.URLValue = u
		c.InputValue = tuple[1]
		c.MaxRetriesValue = defaultChildMaxRetries
		return nil
	}

	var obj struct {
		URL        string          `json:"url"`
		Input      json.RawMessage `json:"input"`
		MaxRetries *int32          `json:"max_retries"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("workflow: invalid child definition: %w", err)
	}
	c.URLValue = obj.URL
	c.InputValue = obj.Input
	if obj.MaxRetries != nil {
		c.MaxRetriesValue = *obj.MaxRetries
	} else {
		c.MaxRetriesValue = defaultChildMaxRetries
	}
	return nil
}

func (c ChildDefinition) URL() string            { return c.URLValue }
func (c ChildDefinition) Input() json.RawMessage { return c.InputValue }
func (c ChildDefinition) MaxRetries() int32      { return c.MaxRetriesValue }

// ReturnedData is the JSON payload an implementation endpoint returns
// for one workflow execution tick.
type ReturnedData struct {
	NewSteps    map[string]json.RawMessage `json:"new_steps,omitempty"`
	NewChildren map[string]ChildDefinition `json:"new_children,omitempty"`
	NewWaits    map[string]WaitDefinition  `json:"new_waits,omitempty"`
	Result      json.RawMessage            `json:"result,omitempty"`
	Error       *string                    `json:"error,omitempty"`
}

// ChildWorkflowResult is the tagged success/failure outcome recorded
// against a workflow_dependency once its child workflow finishes.
type ChildWorkflowResult struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// PreviousError is one entry of the context's error log.
type PreviousError struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Context is the rebuilt-from-log projection passed as the body of the
// POST to a workflow's implementation_url. It is never authoritative:
// every driver tick recomputes it from the execution and dependency
// log.
type Context struct {
	Input          json.RawMessage                `json:"input"`
	Steps          map[string]json.RawMessage     `json:"steps"`
	ChildWorkflows map[string]ChildWorkflowResult `json:"child_workflows"`
	CompletedWaits map[string]bool                `json:"completed_waits"`
	PrevErrors     []PreviousError                `json:"prev_errors"`
}

// NewContext seeds an empty context with the workflow's original input.
func NewContext(input json.RawMessage) *Context {
	return &Context{
		Input:          input,
		Steps:          map[string]json.RawMessage{},
		ChildWorkflows: map[string]ChildWorkflowResult{},
		CompletedWaits: map[string]bool{},
		PrevErrors:     []PreviousError{},
	}
}

// Execution is the subset of a workflow_executions row the context
// rebuild needs.
type Execution struct {
	ID             string
	ExecutionIndex int32
	IsRetry        bool
	ExecutedAt     *time.Time
	ResultJSON     json.RawMessage
	FailureReason  *string
}

// Dependency is the subset of a workflow_dependencies row (joined with
// its child workflow's outcome, if any) the context rebuild needs.
type Dependency struct {
	WaitName          *string
	WaitComplete      bool
	ChildWorkflowName *string
	ChildResult       json.RawMessage
	ChildError        *string
}

// IngestExecution folds one execution's outcome into the context,
// mirroring WorkflowContext::ingest_execution. A result/error parse
// failure becomes a PrevErrors entry, never a hard failure.
func (c *Context) IngestExecution(exec Execution) {
	if exec.FailureReason != nil && exec.ExecutedAt != nil {
		c.PrevErrors = append(c.PrevErrors, PreviousError{
			Timestamp: *exec.ExecutedAt,
			Message:   *exec.FailureReason,
		})
		return
	}

	if len(exec.ResultJSON) == 0 {
		return
	}

	var data ReturnedData
	if err := json.Unmarshal(exec.ResultJSON, &data); err != nil {
		ts := time.Now().UTC()
		if exec.ExecutedAt != nil {
			ts = *exec.ExecutedAt
		}
		c.PrevErrors = append(c.PrevErrors, PreviousError{
			Timestamp: ts,
			Message:   fmt.Sprintf("Implementation returned poorly formed data: %v", err),
		})
		return
	}

	for name, value := range data.NewSteps {
		c.Steps[name] = value
	}
}

// IngestDependency folds one dependency's resolution state into the
// context, mirroring WorkflowContext::ingest_dependency.
func (c *Context) IngestDependency(dep Dependency) {
	switch {
	case dep.WaitName != nil && dep.WaitComplete:
		c.CompletedWaits[*dep.WaitName] = true
	case dep.ChildWorkflowName != nil && dep.ChildResult != nil:
		c.ChildWorkflows[*dep.ChildWorkflowName] = ChildWorkflowResult{Type: "success", Data: dep.ChildResult}
	case dep.ChildWorkflowName != nil && dep.ChildError != nil:
		c.ChildWorkflows[*dep.ChildWorkflowName] = ChildWorkflowResult{Type: "failure", Error: *dep.ChildError}
	}
}

// ParseReturnedData is a thin helper for schedulers that need the raw
// ReturnedData (new children/waits) rather than just its context effect.
func ParseReturnedData(resultJSON json.RawMessage) (ReturnedData, bool) {
	if len(resultJSON) == 0 {
		return ReturnedData{}, false
	}
	var data ReturnedData
	if err := json.Unmarshal(resultJSON, &data); err != nil {
		return ReturnedData{}, false
	}
	return data, true
}
