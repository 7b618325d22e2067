package errno

import (
	"context"
	"errors"
)

var (
	ErrConnection           = errors.New("tool server connection failed")
	ErrToolInvocation       = errors.New("tool invocation failed")
	ErrUnknownServer        = errors.New("unknown tool server")
	ErrDuplicateAgentName   = errors.New("duplicate agent name")
	ErrInvalidAgent         = errors.New("invalid agent definition")
	ErrModelTimeout         = errors.New("model call timed out")
	ErrModelCall            = errors.New("model call failed")
	ErrModelNotToolCapable  = errors.New("model not tool capable")
	ErrToolNotAvailable     = errors.New("tool not available to agent")
	ErrInvalidHandoff       = errors.New("invalid handoff target")
	ErrHandoffLimitExceeded = errors.New("handoff limit exceeded")
	ErrSchemaViolation      = errors.New("schema violation")
	ErrOutputValidation     = errors.New("output validation failed")
	ErrMissingCredential    = errors.New("missing credential")
	ErrMaxTurnsExceeded     = errors.New("max turns exceeded")
	ErrAborted              = errors.New("run aborted")
)

// Kind is the stable, caller-facing name of an error category.
type Kind string

const (
	KindConnection           Kind = "connection_error"
	KindToolInvocation       Kind = "tool_invocation_error"
	KindUnknownServer        Kind = "unknown_server"
	KindDuplicateAgentName   Kind = "duplicate_agent_name"
	KindInvalidAgent         Kind = "invalid_agent"
	KindModelTimeout         Kind = "model_timeout"
	KindModelCall            Kind = "model_error"
	KindToolNotAvailable     Kind = "tool_not_available"
	KindInvalidHandoff       Kind = "invalid_handoff"
	KindHandoffLimitExceeded Kind = "handoff_limit_exceeded"
	KindSchemaViolation      Kind = "schema_violation"
	KindOutputValidation     Kind = "output_validation_error"
	KindMissingCredential    Kind = "missing_credential"
	KindMaxTurnsExceeded     Kind = "max_turns_exceeded"
	KindAborted              Kind = "aborted"
	KindInternal             Kind = "internal_error"
)

// order matters: wrapped chains are checked most specific first.
var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrOutputValidation, KindOutputValidation},
	{ErrHandoffLimitExceeded, KindHandoffLimitExceeded},
	{ErrInvalidHandoff, KindInvalidHandoff},
	{ErrToolNotAvailable, KindToolNotAvailable},
	{ErrModelTimeout, KindModelTimeout},
	{ErrModelNotToolCapable, KindModelCall},
	{ErrModelCall, KindModelCall},
	{ErrMissingCredential, KindMissingCredential},
	{ErrUnknownServer, KindUnknownServer},
	{ErrConnection, KindConnection},
	{ErrToolInvocation, KindToolInvocation},
	{ErrDuplicateAgentName, KindDuplicateAgentName},
	{ErrInvalidAgent, KindInvalidAgent},
	{ErrSchemaViolation, KindSchemaViolation},
	{ErrMaxTurnsExceeded, KindMaxTurnsExceeded},
	{ErrAborted, KindAborted},
	{context.Canceled, KindAborted},
}

// KindOf classifies err. Unrecognized errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsFatal reports whether err ends a run. Tool-level failures are fed back
// to the model instead.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindToolNotAvailable, KindToolInvocation, KindSchemaViolation:
		return false
	}
	return err != nil
}
