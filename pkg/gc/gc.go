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

// Package gc removes the Replicas left behind when an Origin Secret is
// deleted. It never trusts the replica marker label alone: every
// candidate is read and re-classified before it is touched, because a
// user may have stripped the label from a Replica without changing its
// identity.
package gc

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/kss-operator/secret-fanout-operator/pkg/config"
	"github.com/kss-operator/secret-fanout-operator/pkg/events"
	"github.com/kss-operator/secret-fanout-operator/pkg/identity"
)

// Summary tallies a garbage collection pass.
type Summary struct {
	Candidates int
	Deleted    int
	Skipped    int
	Failed     int
}

// GarbageCollector removes Replicas of a deleted Origin from every other
// namespace.
type GarbageCollector struct {
	Client client.Client
	Config *config.Config
	Events events.Emitter
}

// New constructs a GarbageCollector.
func New(c client.Client, cfg *config.Config, emitter events.Emitter) *GarbageCollector {
	return &GarbageCollector{Client: c, Config: cfg, Events: emitter}
}

// CollectOrigin deletes the Replica named originName in every namespace
// but originNamespace. It lists namespaces once and, for each, reads the
// Secret directly by name rather than listing by label, because the
// marker label is not authoritative: only the source-namespace annotation
// is (see pkg/identity).
func (g *GarbageCollector) CollectOrigin(ctx context.Context, originName, originNamespace string) (Summary, error) {
	logger := log.FromContext(ctx)

	listCtx, cancel := context.WithTimeout(ctx, g.Config.APITimeout)
	defer cancel()

	var namespaces corev1.NamespaceList
	if err := g.Client.List(listCtx, &namespaces); err != nil {
		return Summary{}, fmt.Errorf("listing namespaces to garbage collect %s/%s: %w", originNamespace, originName, err)
	}

	summary := Summary{}

	for _, ns := range namespaces.Items {
		if ns.Name == originNamespace {
			continue
		}
		summary.Candidates++
		g.collectOne(ctx, originName, originNamespace, ns.Name, &summary, logger)
	}

	logger.Info("garbage collection complete",
		"secret", originName,
		"sourceNamespace", originNamespace,
		"candidates", summary.Candidates,
		"deleted", summary.Deleted,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)

	return summary, nil
}

func (g *GarbageCollector) collectOne(ctx context.Context, originName, originNamespace, targetNamespace string, summary *Summary, logger logr.Logger) {
	getCtx, cancel := context.WithTimeout(ctx, g.Config.APITimeout)
	defer cancel()

	var candidate corev1.Secret
	err := g.Client.Get(getCtx, types.NamespacedName{Namespace: targetNamespace, Name: originName}, &candidate)
	switch {
	case apierrors.IsNotFound(err):
		summary.Skipped++
		return
	case err != nil:
		summary.Failed++
		logger.Error(err, "failed to read candidate replica", "target", targetNamespace)
		return
	}

	if !identity.IsReplica(&candidate) {
		summary.Skipped++
		return
	}
	if ns, ok := identity.SourceNamespace(&candidate); !ok || ns != originNamespace {
		// Belongs to a different origin that happens to share the name.
		summary.Skipped++
		return
	}

	delCtx, delCancel := context.WithTimeout(ctx, g.Config.APITimeout)
	defer delCancel()

	if err := g.Client.Delete(delCtx, &candidate); err != nil && !apierrors.IsNotFound(err) {
		summary.Failed++
		logger.Error(err, "failed to delete replica", "target", targetNamespace)
		return
	}

	summary.Deleted++
	if g.Events != nil {
		g.Events.Deleted(&candidate, targetNamespace)
	}
}
