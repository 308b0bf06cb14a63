package freebox

import "encoding/json"

// Error codes consumed by callers. The first four are returned by the
// router; the last two are synthesised locally by the Transport for
// failures that never produced a parsed envelope.
const (
	ErrCodeAuthRequired       = "auth_required"
	ErrCodeInvalidSession     = "invalid_session"
	ErrCodeInsufficientRights = "insufficient_rights"
	ErrCodeDeprecated         = "deprecated"

	ErrCodeRequestFailed   = "request_failed"
	ErrCodeInvalidResponse = "invalid_response"
)

// Envelope is the uniform response wrapper used by the router API and
// reproduced by the Transport for synthetic errors. It is the only type
// that crosses the Transport, Coordinator and Client boundaries; no Go
// error ever does.
type Envelope struct {
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Message   string          `json:"msg,omitempty"`

	// Timeout marks a request_failed envelope whose cause was the
	// per-request deadline. Local only, never on the wire; retry
	// eligibility keys off it.
	Timeout bool `json:"-"`
}

// AuthRequired reports whether the envelope carries a session error.
// The caller owns recovery: the client clears local session state but
// never re-authenticates or resubmits on its own.
func (e Envelope) AuthRequired() bool {
	return !e.Success &&
		(e.ErrorCode == ErrCodeAuthRequired || e.ErrorCode == ErrCodeInvalidSession)
}

// MissingRight returns the permission named by an insufficient_rights
// error, or "" for any other envelope.
func (e Envelope) MissingRight() string {
	if e.Success || e.ErrorCode != ErrCodeInsufficientRights || len(e.Result) == 0 {
		return ""
	}
	var r struct {
		MissingRight string `json:"missing_right"`
	}
	if err := json.Unmarshal(e.Result, &r); err != nil {
		return ""
	}
	return r.MissingRight
}

// DecodeResult unmarshals the result payload into v.
func (e Envelope) DecodeResult(v any) error {
	return json.Unmarshal(e.Result, v)
}

// failure builds a synthetic failure envelope.
func failure(code, msg string) Envelope {
	return Envelope{ErrorCode: code, Message: msg}
}

// timeoutFailure builds the envelope for a deadline-expired request.
func timeoutFailure(msg string) Envelope {
	e := failure(ErrCodeRequestFailed, msg)
	e.Timeout = true
	return e
}
