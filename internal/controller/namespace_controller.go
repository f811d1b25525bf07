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

package controller

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	"github.com/kss-operator/secret-fanout-operator/pkg/events"
	"github.com/kss-operator/secret-fanout-operator/pkg/identity"
	"github.com/kss-operator/secret-fanout-operator/pkg/materializer"
)

// +kubebuilder:rbac:groups="",resources=namespaces,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch;create;update;patch

// NamespaceReconciler seeds every existing Origin Secret into a brand new
// namespace. Unlike SecretReconciler it never calls the Planner: there is
// exactly one target namespace (the one that just appeared), so listing
// every namespace in the cluster would be wasted work.
type NamespaceReconciler struct {
	Client       client.Client
	Scheme       *runtime.Scheme
	Materializer *materializer.Materializer
	Recorder     events.Emitter
}

// Reconcile lists every Origin Secret in the cluster and materializes
// each one into req.Name, the namespace that triggered this reconcile.
func (r *NamespaceReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx).WithValues("namespace", req.Name)

	var ns corev1.Namespace
	if err := r.Client.Get(ctx, req.NamespacedName, &ns); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, fmt.Errorf("reading namespace %s: %w", req.Name, err)
	}
	if !ns.DeletionTimestamp.IsZero() || ns.Status.Phase == corev1.NamespaceTerminating {
		return ctrl.Result{}, nil
	}

	var origins corev1.SecretList
	if err := r.Client.List(ctx, &origins, client.MatchingLabels{identity.LabelKey: identity.LabelValueOrigin}); err != nil {
		return ctrl.Result{}, fmt.Errorf("listing origin secrets for new namespace %s: %w", req.Name, err)
	}

	seeded := 0
	for i := range origins.Items {
		origin := &origins.Items[i]
		if origin.Namespace == ns.Name || !identity.IsOrigin(origin) {
			continue
		}
		result := r.Materializer.Apply(ctx, ns.Name, origin)
		if result.Err != nil {
			logger.Error(result.Err, "failed to seed origin into new namespace", "secret", origin.Name, "sourceNamespace", origin.Namespace)
			if r.Recorder != nil {
				r.Recorder.Failed(seedEventSubject(result, ns.Name, origin.Name), ns.Name, result.Err)
			}
			continue
		}
		switch result.Outcome {
		case materializer.OutcomeNoop, materializer.OutcomeRaceRetry:
			// Already in sync, or a concurrent writer will converge on
			// the next reconcile; neither is news worth an event.
		case materializer.OutcomeSkippedUnmanaged:
			if r.Recorder != nil {
				r.Recorder.Skipped(seedEventSubject(result, ns.Name, origin.Name), ns.Name, "a Secret with this name already exists and is not managed by this operator")
			}
		default:
			seeded++
			if r.Recorder != nil {
				r.Recorder.Synced(seedEventSubject(result, ns.Name, origin.Name), ns.Name)
			}
		}
	}

	logger.Info("seeded new namespace with existing origins", "candidates", len(origins.Items), "seeded", seeded)
	return ctrl.Result{}, nil
}

// seedEventSubject picks the object a seeding event should be scoped to:
// the target Secret the materializer acted on, so the Event lands in the
// new namespace per spec rather than the origin's namespace.
func seedEventSubject(result materializer.Result, targetNamespace, name string) *corev1.Secret {
	if result.Target != nil {
		return result.Target
	}
	return &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Namespace: targetNamespace, Name: name}}
}

// isNamespaceCreate narrows the watch to creation events: an Update or
// Delete on a Namespace never requires re-seeding.
func isNamespaceCreate() predicate.Predicate {
	return predicate.Funcs{
		CreateFunc:  func(event.CreateEvent) bool { return true },
		UpdateFunc:  func(event.UpdateEvent) bool { return false },
		DeleteFunc:  func(event.DeleteEvent) bool { return false },
		GenericFunc: func(event.GenericEvent) bool { return false },
	}
}

// SetupWithManager registers the reconciler with mgr.
func (r *NamespaceReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&corev1.Namespace{}, builder.WithPredicates(isNamespaceCreate())).
		Complete(r)
}
