// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics holds the Prometheus instrumentation of the camera agent.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camagent",
		Name:      "dispatch_queue_depth",
		Help:      "Jobs waiting in the dispatch queue",
	}, []string{"agent"})

	dispatchJobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "camagent",
		Name:      "dispatch_job_seconds",
		Help:      "Time from dispatch job start until the worker drained its messages",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"agent"})

	dispatchRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camagent",
		Name:      "dispatch_rejections_total",
		Help:      "Dispatch submissions rejected",
	}, []string{"agent", "reason"}) // reason: full|ended

	dispatchWaitTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camagent",
		Name:      "dispatch_wait_timeouts_total",
		Help:      "Synchronous dispatch waits that exceeded the operation timeout",
	}, []string{"agent"})

	agentRequestsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camagent",
		Name:      "agent_requests_dropped_total",
		Help:      "Queued requests abandoned because the camera never reached the required state",
	}, []string{"agent", "operation"})

	workerActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camagent",
		Name:      "worker_actions_total",
		Help:      "Action messages processed by the device worker",
	}, []string{"agent", "action", "outcome"}) // outcome: ok|dropped|fault|invalid

	workerAdmissionDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camagent",
		Name:      "worker_admission_drops_total",
		Help:      "Actions dropped because the device was in the wrong state",
	}, []string{"agent", "action", "state"})

	workerFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camagent",
		Name:      "worker_faults_total",
		Help:      "Unexpected failures contained by the device worker",
	}, []string{"agent", "policy"})

	deviceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camagent",
		Name:      "device_errors_total",
		Help:      "Asynchronous errors reported by the device backend",
	}, []string{"agent", "code"})

	cameraState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camagent",
		Name:      "camera_state",
		Help:      "Current camera ladder state (1 for the active state, 0 otherwise)",
	}, []string{"agent", "state"})

	callbacksDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camagent",
		Name:      "callbacks_delivered_total",
		Help:      "Client callbacks handed to caller executors",
	}, []string{"agent", "kind"})

	callbacksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camagent",
		Name:      "callbacks_rejected_total",
		Help:      "Client callbacks whose executor refused them",
	}, []string{"agent", "kind"})

	faultsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camagent",
		Name:      "faults_recorded_total",
		Help:      "Faults handed to the fault journal",
	}, []string{"agent", "kind", "outcome"}) // outcome: ok|error
)

// SetDispatchQueueDepth records the current dispatch backlog.
func SetDispatchQueueDepth(agent string, depth int) {
	dispatchQueueDepth.WithLabelValues(agent).Set(float64(depth))
}

// ObserveDispatchJob records the duration of one dispatch job including the worker handoff.
func ObserveDispatchJob(agent string, seconds float64) {
	dispatchJobDuration.WithLabelValues(agent).Observe(seconds)
}

// IncDispatchRejection counts a rejected submission.
func IncDispatchRejection(agent, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	dispatchRejections.WithLabelValues(agent, reason).Inc()
}

// IncDispatchWaitTimeout counts a SubmitAndWait that timed out.
func IncDispatchWaitTimeout(agent string) {
	dispatchWaitTimeouts.WithLabelValues(agent).Inc()
}

// IncRequestDropped counts a queued request whose state wait failed.
func IncRequestDropped(agent, operation string) {
	agentRequestsDropped.WithLabelValues(agent, operation).Inc()
}

// IncWorkerAction counts a processed action message by outcome.
func IncWorkerAction(agent, action, outcome string) {
	workerActions.WithLabelValues(agent, action, outcome).Inc()
}

// IncAdmissionDrop counts an action rejected by the state gate.
func IncAdmissionDrop(agent, action, state string) {
	workerAdmissionDrops.WithLabelValues(agent, action, state).Inc()
}

// IncWorkerFault counts a contained worker failure.
func IncWorkerFault(agent, policy string) {
	workerFaults.WithLabelValues(agent, policy).Inc()
}

// IncDeviceError counts an asynchronous backend error.
func IncDeviceError(agent, code string) {
	deviceErrors.WithLabelValues(agent, code).Inc()
}

// SetCameraState records the active ladder state for an agent (one-hot over states).
func SetCameraState(agent, state string, states []string) {
	for _, s := range states {
		value := 0.0
		if s == state {
			value = 1.0
		}
		cameraState.WithLabelValues(agent, s).Set(value)
	}
}

// IncCallback counts a callback delivery attempt.
func IncCallback(agent, kind string, accepted bool) {
	if accepted {
		callbacksDelivered.WithLabelValues(agent, kind).Inc()
		return
	}
	callbacksRejected.WithLabelValues(agent, kind).Inc()
}

// IncFaultRecorded counts a fault written (or not) to the journal.
func IncFaultRecorded(agent, kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	faultsRecorded.WithLabelValues(agent, kind, outcome).Inc()
}
