// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldFaultID       = "fault_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Camera fields
	FieldBackend  = "backend"
	FieldCameraID = "camera_id"
	FieldAction   = "action"
	FieldRequest  = "request"
	FieldFrame    = "frame"
	FieldHistory  = "history"

	// State fields
	FieldState    = "state"
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldActivity = "activity"

	// Queue fields
	FieldQueueDepth = "queue_depth"
	FieldCapacity   = "capacity"
)
