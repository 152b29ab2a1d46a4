package events

import "fmt"

// The following recorders compose Record and fix type/severity per the
// table in spec §4.4. Messages are built deterministically so operator
// tooling can grep them.

// RecordRateLimit records a rate_limit event.
func (r *Recorder) RecordRateLimit(account, model, requestID string, details map[string]interface{}) Event {
	return r.Record(Draft{
		Type:      TypeRateLimit,
		Severity:  SeverityWarn,
		Account:   account,
		Model:     model,
		RequestID: requestID,
		Message:   fmt.Sprintf("rate limited: account=%s model=%s", account, model),
		Details:   details,
	})
}

// RecordAuthFailure records an auth_failure event.
func (r *Recorder) RecordAuthFailure(account, model, requestID string, details map[string]interface{}) Event {
	return r.Record(Draft{
		Type:      TypeAuthFailure,
		Severity:  SeverityError,
		Account:   account,
		Model:     model,
		RequestID: requestID,
		Message:   fmt.Sprintf("auth failure: account=%s", account),
		Details:   details,
	})
}

// RecordAPIError records an api_error event.
func (r *Recorder) RecordAPIError(account, model, requestID, reason string, details map[string]interface{}) Event {
	return r.Record(Draft{
		Type:      TypeAPIError,
		Severity:  SeverityError,
		Account:   account,
		Model:     model,
		RequestID: requestID,
		Message:   fmt.Sprintf("api error: account=%s model=%s reason=%s", account, model, reason),
		Details:   details,
	})
}

// RecordFallback records a fallback event (model demoted to a weaker variant).
func (r *Recorder) RecordFallback(account, fromModel, toModel, requestID string, details map[string]interface{}) Event {
	return r.Record(Draft{
		Type:      TypeFallback,
		Severity:  SeverityWarn,
		Account:   account,
		Model:     fromModel,
		RequestID: requestID,
		Message:   fmt.Sprintf("fallback: account=%s model=%s->%s", account, fromModel, toModel),
		Details:   details,
	})
}

// RecordAccountSwitch records an account_switch event (caller switched
// accounts mid-request after an upstream error).
func (r *Recorder) RecordAccountSwitch(fromAccount, toAccount, model, requestID string, details map[string]interface{}) Event {
	return r.Record(Draft{
		Type:      TypeAccountSwitch,
		Severity:  SeverityInfo,
		Account:   toAccount,
		Model:     model,
		RequestID: requestID,
		Message:   fmt.Sprintf("account switch: %s->%s model=%s", fromAccount, toAccount, model),
		Details:   details,
	})
}

// RecordHealthChange records a health_change event. disabled selects
// severity error (disabled) vs info (recovered) per spec §4.4's table.
func (r *Recorder) RecordHealthChange(account, model, trigger string, disabled bool, details map[string]interface{}) Event {
	severity := SeverityInfo
	verb := "recovered"
	if disabled {
		severity = SeverityError
		verb = "disabled"
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	details["disabled"] = disabled
	details["trigger"] = trigger

	return r.Record(Draft{
		Type:     TypeHealthChange,
		Severity: severity,
		Account:  account,
		Model:    model,
		Message:  fmt.Sprintf("health change: account=%s model=%s %s trigger=%s", account, model, verb, trigger),
		Details:  details,
	})
}

// RecordRequest records a request event; success selects severity info vs
// warn per spec §4.4's table.
func (r *Recorder) RecordRequest(account, model, requestID string, success bool, details map[string]interface{}) Event {
	severity := SeverityInfo
	if !success {
		severity = SeverityWarn
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	details["success"] = success

	return r.Record(Draft{
		Type:      TypeRequest,
		Severity:  severity,
		Account:   account,
		Model:     model,
		RequestID: requestID,
		Message:   fmt.Sprintf("request: account=%s model=%s success=%t", account, model, success),
		Details:   details,
	})
}

// RecordSystem records a system event (account registry lifecycle, etc).
func (r *Recorder) RecordSystem(message string, details map[string]interface{}) Event {
	return r.Record(Draft{
		Type:     TypeSystem,
		Severity: SeverityInfo,
		Message:  message,
		Details:  details,
	})
}
