/*
Copyright 2026 The kss-operator Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package events records Kubernetes Events for the reconcile outcomes the
// operator cares about. Emission is always best-effort: the underlying
// record.EventRecorder never returns an error, and nothing in this package
// ever propagates a failure back into a reconcile loop.
package events

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
)

// Reasons used across the emitted events. Keeping them as constants keeps
// event-driven dashboards and tests from drifting apart from the code that
// emits them.
const (
	ReasonSyncTriggered       = "SyncTriggered"
	ReasonSecretSynced        = "SecretSynced"
	ReasonSyncSkipped         = "SyncSkipped"
	ReasonSyncFailed          = "SyncFailed"
	ReasonSyncedSecretDeleted = "SyncedSecretDeleted"
	ReasonSecretReconciled    = "SecretReconciled"
)

// Emitter is the narrow surface the rest of the operator needs from an
// event recorder. It exists so Planner, GarbageCollector, and the
// reconcilers don't each reach for record.EventRecorder directly and
// re-derive the reason strings.
type Emitter interface {
	// Triggered records that a sync pass started for obj.
	Triggered(obj runtime.Object, msg string)
	// Synced records that obj was successfully replicated into target.
	Synced(obj runtime.Object, target string)
	// Skipped records that target was left alone, with reason explaining
	// why (e.g. an Unmanaged collision).
	Skipped(obj runtime.Object, target, reason string)
	// Failed records that replicating obj into target failed with err.
	Failed(obj runtime.Object, target string, err error)
	// Deleted records that a Replica was removed from target as part of
	// origin garbage collection.
	Deleted(obj runtime.Object, target string)
	// Reconciled records that a periodic sweep re-synced obj.
	Reconciled(obj runtime.Object, target string)
}

// recorderEmitter is the only Emitter implementation; it wraps a
// client-go EventRecorder the way a controller-runtime manager hands one
// out via GetEventRecorderFor.
type recorderEmitter struct {
	recorder record.EventRecorder
}

// NewEmitter wraps recorder as an Emitter.
func NewEmitter(recorder record.EventRecorder) Emitter {
	return &recorderEmitter{recorder: recorder}
}

func (e *recorderEmitter) Triggered(obj runtime.Object, msg string) {
	e.recorder.Event(obj, corev1.EventTypeNormal, ReasonSyncTriggered, msg)
}

func (e *recorderEmitter) Synced(obj runtime.Object, target string) {
	e.recorder.Eventf(obj, corev1.EventTypeNormal, ReasonSecretSynced, "replicated into namespace %s", target)
}

func (e *recorderEmitter) Skipped(obj runtime.Object, target, reason string) {
	e.recorder.Eventf(obj, corev1.EventTypeWarning, ReasonSyncSkipped, "skipped namespace %s: %s", target, reason)
}

func (e *recorderEmitter) Failed(obj runtime.Object, target string, err error) {
	e.recorder.Eventf(obj, corev1.EventTypeWarning, ReasonSyncFailed, "failed to replicate into namespace %s: %v", target, err)
}

func (e *recorderEmitter) Deleted(obj runtime.Object, target string) {
	e.recorder.Eventf(obj, corev1.EventTypeNormal, ReasonSyncedSecretDeleted, "deleted replica in namespace %s", target)
}

func (e *recorderEmitter) Reconciled(obj runtime.Object, target string) {
	e.recorder.Eventf(obj, corev1.EventTypeNormal, ReasonSecretReconciled, "periodic reconcile re-synced namespace %s", target)
}
