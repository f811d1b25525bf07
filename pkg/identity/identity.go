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

// Package identity classifies Secrets as Origin, Replica, or Unmanaged using
// only the in-band annotations and labels the operator itself writes and
// reads. There is no external store backing this decision: the annotation
// on the object is the only source of truth.
package identity

import (
	corev1 "k8s.io/api/core/v1"
)

const (
	// LabelKey is the opt-in / selector-hint label set on both Origins and
	// Replicas, with different values for each role.
	LabelKey = "kss-operator/sync"

	// LabelValueOrigin is the label value a user sets on a Secret to opt it
	// into replication.
	LabelValueOrigin = "sync"

	// LabelValueReplica is the label value the controller sets on every
	// Replica it writes. It is a selector hint only; identity never
	// depends on it.
	LabelValueReplica = "synced"

	// AnnotationSourceNamespace names the origin namespace on a Replica.
	// Its presence is the sole, authoritative signal that a Secret is a
	// Replica.
	AnnotationSourceNamespace = "kss-operator/source-namespace"

	// AnnotationSyncedAt records the last time a Replica's data or type
	// changed as a result of a write. Advisory only.
	AnnotationSyncedAt = "kss-operator/synced-at"
)

// Class is the three-way classification of a Secret under the operator's
// model.
type Class int

const (
	// ClassUnmanaged is any Secret that is neither an Origin nor a Replica.
	ClassUnmanaged Class = iota
	// ClassOrigin is a user-owned Secret that opted into replication.
	ClassOrigin
	// ClassReplica is a Secret the controller created and owns.
	ClassReplica
)

func (c Class) String() string {
	switch c {
	case ClassOrigin:
		return "Origin"
	case ClassReplica:
		return "Replica"
	default:
		return "Unmanaged"
	}
}

// Classify implements the classification in spec §3: a Replica is any
// Secret bearing the source-namespace annotation, regardless of its
// labels; an Origin is a Secret bearing the opt-in label with the enabled
// value and lacking that annotation; everything else is Unmanaged.
//
// The annotation check always wins over the label: a Secret carrying the
// replica marker label but no annotation is Unmanaged, not a Replica.
func Classify(secret *corev1.Secret) Class {
	if IsReplica(secret) {
		return ClassReplica
	}
	if IsOrigin(secret) {
		return ClassOrigin
	}
	return ClassUnmanaged
}

// IsReplica reports whether secret carries the source-namespace annotation.
// This is the only predicate that matters for loop prevention and for
// deciding whether the controller may write to or delete an object.
func IsReplica(secret *corev1.Secret) bool {
	if secret == nil || secret.Annotations == nil {
		return false
	}
	_, ok := secret.Annotations[AnnotationSourceNamespace]
	return ok
}

// IsOrigin reports whether secret opted into replication and is not itself
// a Replica.
func IsOrigin(secret *corev1.Secret) bool {
	if secret == nil {
		return false
	}
	if IsReplica(secret) {
		return false
	}
	return secret.Labels[LabelKey] == LabelValueOrigin
}

// SourceNamespace returns the origin namespace recorded on a Replica, and
// whether the annotation was present at all.
func SourceNamespace(secret *corev1.Secret) (string, bool) {
	if secret == nil || secret.Annotations == nil {
		return "", false
	}
	ns, ok := secret.Annotations[AnnotationSourceNamespace]
	return ns, ok
}
