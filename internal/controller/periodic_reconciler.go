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
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"github.com/kss-operator/secret-fanout-operator/pkg/identity"
	"github.com/kss-operator/secret-fanout-operator/pkg/planner"
)

// PeriodicReconciler walks every Origin Secret in the cluster on a fixed
// interval and re-syncs it, as a convergence safety net against missed
// watch events and drift introduced by anything editing Replicas
// directly. It is registered with the manager as a manager.Runnable
// rather than a controller, since it has no event source of its own.
type PeriodicReconciler struct {
	Client client.Client
	// APIReader bypasses the manager's informer cache for the per-origin
	// re-read in sweep, so a sweep never re-syncs a body made stale by
	// this operator's own prior write.
	APIReader client.Reader
	Planner   *planner.Planner
	Period    time.Duration
}

var _ manager.Runnable = (*PeriodicReconciler)(nil)

// Start blocks until ctx is cancelled, running one sweep immediately and
// then one every Period.
func (p *PeriodicReconciler) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("periodic-reconciler")

	ticker := time.NewTicker(p.Period)
	defer ticker.Stop()

	p.sweep(ctx, logger)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.sweep(ctx, logger)
		}
	}
}

func (p *PeriodicReconciler) sweep(ctx context.Context, logger logr.Logger) {
	var origins corev1.SecretList
	if err := p.Client.List(ctx, &origins, client.MatchingLabels{identity.LabelKey: identity.LabelValueOrigin}); err != nil {
		logger.Error(err, "periodic reconcile failed to list origin secrets")
		return
	}

	synced, failed := 0, 0
	for i := range origins.Items {
		origin := origins.Items[i]

		var fresh corev1.Secret
		key := client.ObjectKeyFromObject(&origin)
		if err := p.APIReader.Get(ctx, key, &fresh); err != nil {
			failed++
			logger.Error(err, "periodic reconcile failed to re-read origin", "secret", origin.Name, "namespace", origin.Namespace)
			continue
		}
		if identity.Classify(&fresh) != identity.ClassOrigin {
			continue
		}

		if _, err := p.Planner.SyncOrigin(ctx, &fresh); err != nil {
			failed++
			logger.Error(err, "periodic reconcile failed to sync origin", "secret", fresh.Name, "namespace", fresh.Namespace)
			continue
		}
		synced++
	}

	logger.Info("periodic sweep complete", "origins", len(origins.Items), "synced", synced, "failed", failed)
}
