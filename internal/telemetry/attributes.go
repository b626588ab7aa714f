// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys shared by the camera core and the control API.
const (
	HTTPMethodKey     = "http.method"
	HTTPRouteKey      = "http.route"
	HTTPStatusCodeKey = "http.status_code"

	CameraBackendKey  = "camera.backend"
	CameraIndexKey    = "camera.index"
	CameraActionKey   = "camera.action"
	CameraLadderKey   = "camera.ladder"
	CameraActivityKey = "camera.activity"

	FaultIDKey   = "fault.id"
	FaultKindKey = "fault.kind"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// ActionAttributes describes one device worker action and the state it ran in.
func ActionAttributes(backend, action, ladder, activity string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if backend != "" {
		attrs = append(attrs, attribute.String(CameraBackendKey, backend))
	}
	attrs = append(attrs, attribute.String(CameraActionKey, action))
	if ladder != "" {
		attrs = append(attrs, attribute.String(CameraLadderKey, ladder))
	}
	if activity != "" {
		attrs = append(attrs, attribute.String(CameraActivityKey, activity))
	}
	return attrs
}

// FaultAttributes tags a span with a reported fault.
func FaultAttributes(id, kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(FaultIDKey, id),
		attribute.String(FaultKindKey, kind),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
