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

package gc

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/kss-operator/secret-fanout-operator/pkg/config"
	"github.com/kss-operator/secret-fanout-operator/pkg/events"
	"github.com/kss-operator/secret-fanout-operator/pkg/identity"
)

func newScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		panic(err)
	}
	return scheme
}

func namespace(name string) *corev1.Namespace {
	return &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
}

func replicaSecret(name, namespace, sourceNamespace string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   namespace,
			Labels:      map[string]string{identity.LabelKey: identity.LabelValueReplica},
			Annotations: map[string]string{identity.AnnotationSourceNamespace: sourceNamespace},
		},
	}
}

func TestCollectOrigin_DeletesReplicasEverywhereButLeavesUnmanagedAlone(t *testing.T) {
	replicaB := replicaSecret("db-credentials", "team-b", "team-a")
	unmanagedC := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Name: "db-credentials", Namespace: "team-c"}}

	c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(
		namespace("team-a"), namespace("team-b"), namespace("team-c"), namespace("team-d"),
		replicaB, unmanagedC,
	).Build()

	g := New(c, config.NewDefaultConfig(), events.NewEmitter(record.NewFakeRecorder(10)))

	summary, err := g.CollectOrigin(context.Background(), "db-credentials", "team-a")
	if err != nil {
		t.Fatalf("CollectOrigin() error = %v", err)
	}
	if summary.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", summary.Deleted)
	}
	if summary.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2 (unmanaged collision + absent in team-d)", summary.Skipped)
	}

	err = c.Get(context.Background(), types.NamespacedName{Namespace: "team-b", Name: "db-credentials"}, &corev1.Secret{})
	if !apierrors.IsNotFound(err) {
		t.Errorf("expected replica in team-b to be deleted, got err = %v", err)
	}

	var stillThere corev1.Secret
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "team-c", Name: "db-credentials"}, &stillThere); err != nil {
		t.Fatalf("unmanaged secret in team-c should still exist: %v", err)
	}
}

func TestCollectOrigin_IgnoresReplicasOfADifferentOrigin(t *testing.T) {
	foreignReplica := replicaSecret("db-credentials", "team-b", "other-team")

	c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(
		namespace("team-a"), namespace("team-b"), namespace("other-team"),
		foreignReplica,
	).Build()

	g := New(c, config.NewDefaultConfig(), events.NewEmitter(record.NewFakeRecorder(10)))

	summary, err := g.CollectOrigin(context.Background(), "db-credentials", "team-a")
	if err != nil {
		t.Fatalf("CollectOrigin() error = %v", err)
	}
	if summary.Deleted != 0 {
		t.Errorf("Deleted = %d, want 0 (replica belongs to a different origin)", summary.Deleted)
	}

	var stillThere corev1.Secret
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "team-b", Name: "db-credentials"}, &stillThere); err != nil {
		t.Fatalf("foreign replica should still exist: %v", err)
	}
}
