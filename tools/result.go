package tools

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome of a handler invocation. Content is meaningful when
// Success is true, ErrorMessage otherwise.
type Result struct {
	Success      bool
	Content      string
	ErrorMessage string
}

// Success returns a successful result carrying content.
func Success(content string) Result {
	return Result{Success: true, Content: content}
}

// Failure returns a tool-level failure. It is reported to the client inside a
// successful RPC response.
func Failure(message string) Result {
	return Result{ErrorMessage: message}
}

// Failuref formats a failure message.
func Failuref(format string, args ...any) Result {
	return Failure(fmt.Sprintf(format, args...))
}

// Encoded returns a successful result whose content is v. Strings and raw JSON
// are used as is, anything else is JSON encoded. A value that cannot be
// encoded yields a Failure naming its type.
func Encoded(v any) Result {
	switch o := v.(type) {
	case string:
		return Success(o)
	case json.RawMessage:
		return Success(string(o))
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Failuref("failed to encode %T output: %v", v, err)
	}
	return Success(string(data))
}

// ContentBlock is one item of a tools/call content list.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type successPayload struct {
	Content []ContentBlock `json:"content"`
}

type failurePayload struct {
	Error string `json:"error"`
}

// Payload returns the tools/call result value: {"content":[{"type":"text","text":...}]}
// on success, {"error":...} on failure.
func (r Result) Payload() any {
	if r.Success {
		return successPayload{Content: []ContentBlock{{Type: "text", Text: r.Content}}}
	}
	msg := r.ErrorMessage
	if msg == "" {
		msg = "Unknown error"
	}
	return failurePayload{Error: msg}
}

// JSON encodes Payload.
func (r Result) JSON() (json.RawMessage, error) {
	data, err := json.Marshal(r.Payload())
	if err != nil {
		return nil, fmt.Errorf("marshalling tool result: %w", err)
	}
	return data, nil
}
