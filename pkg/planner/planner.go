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

// Package planner drives a single Origin's replication across every other
// namespace in the cluster.
package planner

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/kss-operator/secret-fanout-operator/pkg/events"
	"github.com/kss-operator/secret-fanout-operator/pkg/materializer"
)

// Summary tallies the outcome of one fan-out pass, and is also what the
// "N succeeded, M failed out of K namespaces" log line is built from.
type Summary struct {
	Targets int
	Success int
	Skipped int
	Failed  int
	Results map[string]materializer.Result
}

// Planner fans a single Origin out to every namespace in the cluster but
// its own.
type Planner struct {
	Client       client.Client
	Materializer *materializer.Materializer
	Events       events.Emitter
}

// New constructs a Planner.
func New(c client.Client, m *materializer.Materializer, emitter events.Emitter) *Planner {
	return &Planner{Client: c, Materializer: m, Events: emitter}
}

// SyncOrigin lists every namespace once and, for every namespace other
// than origin's own, applies origin's data and type. A failure to list
// namespaces aborts the whole operation and is returned to the caller; a
// failure against one target namespace is recorded in Summary and never
// aborts the remaining targets.
func (p *Planner) SyncOrigin(ctx context.Context, origin *corev1.Secret) (Summary, error) {
	logger := log.FromContext(ctx)

	listCtx, cancel := context.WithTimeout(ctx, p.Materializer.Config.APITimeout)
	defer cancel()

	var namespaces corev1.NamespaceList
	if err := p.Client.List(listCtx, &namespaces); err != nil {
		return Summary{}, fmt.Errorf("listing namespaces for %s/%s: %w", origin.Namespace, origin.Name, err)
	}

	summary := Summary{Results: make(map[string]materializer.Result)}

	for _, ns := range namespaces.Items {
		if ns.Name == origin.Namespace {
			continue
		}
		if ns.Status.Phase == corev1.NamespaceTerminating {
			summary.Targets++
			summary.Failed++
			summary.Results[ns.Name] = materializer.Result{Err: fmt.Errorf("namespace %s is terminating", ns.Name)}
			continue
		}

		summary.Targets++
		result := p.Materializer.Apply(ctx, ns.Name, origin)
		summary.Results[ns.Name] = result
		p.record(ns.Name, result, &summary, logger)
	}

	logger.Info("sync complete",
		"secret", origin.Name,
		"sourceNamespace", origin.Namespace,
		"targets", summary.Targets,
		"succeeded", summary.Success,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)

	return summary, nil
}

// eventSubject picks the object an emitted event should be scoped to: the
// target Secret the materializer acted on, so the Event lands in the
// target namespace per spec rather than the origin's. If the materializer
// returned no Target at all, the fallback is a Secret with only its
// namespace set to target.
func eventSubject(result materializer.Result, target string) *corev1.Secret {
	if result.Target != nil {
		return result.Target
	}
	return &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Namespace: target}}
}

func (p *Planner) record(target string, result materializer.Result, summary *Summary, logger logr.Logger) {
	switch {
	case result.Err != nil:
		summary.Failed++
		if p.Events != nil {
			p.Events.Failed(eventSubject(result, target), target, result.Err)
		}
		logger.Error(result.Err, "failed to replicate secret", "target", target)
	case result.Outcome == materializer.OutcomeSkippedUnmanaged:
		summary.Skipped++
		if p.Events != nil {
			p.Events.Skipped(eventSubject(result, target), target, "a Secret with this name already exists and is not managed by this operator")
		}
	case result.Outcome == materializer.OutcomeRaceRetry:
		summary.Skipped++
		logger.V(1).Info("concurrent writer won the race, will converge on next reconcile", "target", target)
	default:
		summary.Success++
		if p.Events != nil && result.Outcome != materializer.OutcomeNoop {
			p.Events.Synced(eventSubject(result, target), target)
		}
	}
}
