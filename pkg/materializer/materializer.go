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

// Package materializer creates and updates a single Replica Secret in a
// single target namespace. It knows nothing about namespace enumeration;
// that is the Planner's job.
package materializer

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kss-operator/secret-fanout-operator/pkg/config"
	"github.com/kss-operator/secret-fanout-operator/pkg/identity"
)

// Outcome classifies what Apply actually did, so callers (the Planner,
// the reconcilers) can decide which event to emit without re-deriving it
// from a Result's Err.
type Outcome int

const (
	// OutcomeCreated means the target namespace had no Secret of this
	// name and one was created.
	OutcomeCreated Outcome = iota
	// OutcomeUpdated means an existing Replica's data was brought in
	// line with the origin. A type change deletes and recreates the
	// Replica instead, and reports OutcomeCreated.
	OutcomeUpdated
	// OutcomeNoop means an existing Replica already matched the origin.
	OutcomeNoop
	// OutcomeSkippedUnmanaged means the target namespace already has a
	// same-named Secret this operator does not own.
	OutcomeSkippedUnmanaged
	// OutcomeRaceRetry means a concurrent writer won a create or update;
	// not an error, the next reconcile will observe the result.
	OutcomeRaceRetry
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "Created"
	case OutcomeUpdated:
		return "Updated"
	case OutcomeNoop:
		return "Noop"
	case OutcomeSkippedUnmanaged:
		return "SkippedUnmanaged"
	case OutcomeRaceRetry:
		return "RaceRetry"
	default:
		return "Unknown"
	}
}

// Result is what Apply returns for a single target namespace. Target is
// the Secret the operation acted on (or would have acted on), scoped to
// targetNamespace, so callers can attribute events to it rather than to
// origin.
type Result struct {
	Outcome Outcome
	Err     error
	Target  *corev1.Secret
}

// Materializer creates or updates one Replica at a time.
type Materializer struct {
	Client client.Client
	Config *config.Config
}

// New constructs a Materializer.
func New(c client.Client, cfg *config.Config) *Materializer {
	return &Materializer{Client: c, Config: cfg}
}

// Apply makes the Secret in targetNamespace converge on origin's data and
// type. origin must already be classified as an Origin by the caller;
// Apply does not re-check that.
func (m *Materializer) Apply(ctx context.Context, targetNamespace string, origin *corev1.Secret) Result {
	ctx, cancel := context.WithTimeout(ctx, m.Config.APITimeout)
	defer cancel()

	existing := &corev1.Secret{}
	err := m.Client.Get(ctx, types.NamespacedName{Namespace: targetNamespace, Name: origin.Name}, existing)
	switch {
	case apierrors.IsNotFound(err):
		return m.create(ctx, targetNamespace, origin)
	case err != nil:
		return Result{Err: fmt.Errorf("reading target secret %s/%s: %w", targetNamespace, origin.Name, err), Target: targetStub(targetNamespace, origin.Name)}
	}

	if !identity.IsReplica(existing) {
		return Result{Outcome: OutcomeSkippedUnmanaged, Target: existing}
	}

	return m.reconcileExisting(ctx, targetNamespace, origin, existing)
}

// targetStub is the object events are scoped to when no real target
// Secret could be read or built, e.g. because the API call itself failed.
func targetStub(targetNamespace, name string) *corev1.Secret {
	return &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Namespace: targetNamespace, Name: name}}
}

func (m *Materializer) create(ctx context.Context, targetNamespace string, origin *corev1.Secret) Result {
	desired := buildReplica(targetNamespace, origin, true)
	if err := m.Client.Create(ctx, desired); err != nil {
		if apierrors.IsAlreadyExists(err) || apierrors.IsConflict(err) {
			return Result{Outcome: OutcomeRaceRetry, Target: desired}
		}
		return Result{Err: fmt.Errorf("creating replica %s/%s: %w", targetNamespace, origin.Name, err), Target: desired}
	}
	return Result{Outcome: OutcomeCreated, Target: desired}
}

func (m *Materializer) reconcileExisting(ctx context.Context, targetNamespace string, origin, existing *corev1.Secret) Result {
	typeChanged := existing.Type != origin.Type
	dataChanged := !reflect.DeepEqual(existing.Data, origin.Data)

	if !typeChanged && !dataChanged {
		return Result{Outcome: OutcomeNoop, Target: existing}
	}

	// corev1.Secret.Type is immutable once set: a type change can only
	// be applied by deleting and recreating the object.
	if typeChanged {
		if err := m.Client.Delete(ctx, existing); err != nil && !apierrors.IsNotFound(err) {
			if apierrors.IsConflict(err) {
				return Result{Outcome: OutcomeRaceRetry, Target: existing}
			}
			return Result{Err: fmt.Errorf("deleting replica %s/%s for type change: %w", targetNamespace, origin.Name, err), Target: existing}
		}
		return m.create(ctx, targetNamespace, origin)
	}

	updated := existing.DeepCopy()
	updated.Data = origin.Data
	if updated.Annotations == nil {
		updated.Annotations = map[string]string{}
	}
	updated.Annotations[identity.AnnotationSyncedAt] = strconv.FormatInt(time.Now().Unix(), 10)

	if err := m.Client.Update(ctx, updated); err != nil {
		if apierrors.IsConflict(err) {
			return Result{Outcome: OutcomeRaceRetry, Target: existing}
		}
		return Result{Err: fmt.Errorf("updating replica %s/%s: %w", targetNamespace, origin.Name, err), Target: existing}
	}
	return Result{Outcome: OutcomeUpdated, Target: updated}
}

// buildReplica constructs the desired Replica object for origin in
// targetNamespace. stampSyncedAt controls whether the synced-at
// annotation is set immediately (true on create; reconcileExisting stamps
// it itself only when data actually changed, per the refresh-only-on-
// change refinement).
func buildReplica(targetNamespace string, origin *corev1.Secret, stampSyncedAt bool) *corev1.Secret {
	labels := map[string]string{identity.LabelKey: identity.LabelValueReplica}
	annotations := map[string]string{identity.AnnotationSourceNamespace: origin.Namespace}
	if stampSyncedAt {
		annotations[identity.AnnotationSyncedAt] = strconv.FormatInt(time.Now().Unix(), 10)
	}

	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:        origin.Name,
			Namespace:   targetNamespace,
			Labels:      labels,
			Annotations: annotations,
		},
		Type: origin.Type,
		Data: origin.Data,
	}
}
