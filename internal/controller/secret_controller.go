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
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	"github.com/kss-operator/secret-fanout-operator/pkg/events"
	"github.com/kss-operator/secret-fanout-operator/pkg/gc"
	"github.com/kss-operator/secret-fanout-operator/pkg/identity"
	"github.com/kss-operator/secret-fanout-operator/pkg/planner"
)

// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=namespaces,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch

// SecretReconciler reacts to create/update/delete events on Secrets
// opted into replication. Replicas are filtered out at the watch
// predicate, which is the operator's primary loop-prevention mechanism:
// the controller never even enqueues a reconcile.Request for a Secret it
// wrote itself.
type SecretReconciler struct {
	Client client.Client
	// APIReader bypasses the manager's informer cache. The re-read below
	// must see the result of this controller's own writes immediately,
	// which a cache populated from a watch cannot guarantee.
	APIReader client.Reader
	Scheme    *runtime.Scheme
	Planner   *planner.Planner
	GC        *gc.GarbageCollector
	Recorder  events.Emitter
}

// Reconcile re-reads the triggering Secret straight from the API server,
// because the event that enqueued this request may be stale by the time
// the work queue gets to it and the manager's cached client would just
// hand back the same stale body. A Secret that has disappeared, or that
// carries a deletion timestamp, is routed to garbage collection;
// everything else opted into replication is fanned out via the Planner.
func (r *SecretReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx).WithValues("secret", req.Name, "namespace", req.Namespace)

	var secret corev1.Secret
	err := r.APIReader.Get(ctx, req.NamespacedName, &secret)
	if apierrors.IsNotFound(err) {
		logger.Info("origin secret no longer exists, garbage collecting replicas")
		if _, gcErr := r.GC.CollectOrigin(ctx, req.Name, req.Namespace); gcErr != nil {
			return ctrl.Result{}, fmt.Errorf("garbage collecting after delete: %w", gcErr)
		}
		return ctrl.Result{}, nil
	}
	if err != nil {
		return ctrl.Result{}, fmt.Errorf("reading secret %s/%s: %w", req.Namespace, req.Name, err)
	}

	if !secret.DeletionTimestamp.IsZero() {
		logger.Info("origin secret is being deleted, garbage collecting replicas")
		if _, gcErr := r.GC.CollectOrigin(ctx, req.Name, req.Namespace); gcErr != nil {
			return ctrl.Result{}, fmt.Errorf("garbage collecting during delete: %w", gcErr)
		}
		return ctrl.Result{}, nil
	}

	class := identity.Classify(&secret)
	if class != identity.ClassOrigin {
		// A Replica slipping past the watch predicate (e.g. it was
		// re-labeled after creation) is never replicated further.
		return ctrl.Result{}, nil
	}

	if r.Recorder != nil {
		r.Recorder.Triggered(&secret, "reconciling origin secret")
	}

	summary, err := r.Planner.SyncOrigin(ctx, &secret)
	if err != nil {
		return ctrl.Result{}, fmt.Errorf("syncing origin %s/%s: %w", secret.Namespace, secret.Name, err)
	}

	logger.Info("origin sync finished",
		"targets", summary.Targets, "succeeded", summary.Success,
		"skipped", summary.Skipped, "failed", summary.Failed,
	)

	return ctrl.Result{}, nil
}

// isOriginLabeled is the watch predicate: only Secrets carrying the opt-in
// label are ever enqueued, independent of their annotation state, so that
// a Secret losing its Origin status still gets one final reconcile (where
// Classify then correctly treats it as no longer an Origin).
func isOriginLabeled(obj client.Object) bool {
	secret, ok := obj.(*corev1.Secret)
	if !ok {
		return false
	}
	return secret.Labels[identity.LabelKey] == identity.LabelValueOrigin
}

// SetupWithManager registers the reconciler with mgr.
func (r *SecretReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&corev1.Secret{}, builder.WithPredicates(predicate.NewPredicateFuncs(isOriginLabeled))).
		Complete(r)
}
