//go:build integration
// +build integration

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

package integration

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/kss-operator/secret-fanout-operator/pkg/identity"
)

var _ = Describe("Secret fan-out replication", func() {
	var (
		tc     *testContext
		origin *corev1.Namespace
		target *corev1.Namespace
		t      testing.TB
	)

	BeforeEach(func() {
		t = GinkgoT()
		tc = setupTestManager(t, nil)
		origin = createNamespace(t, tc.client)
		target = createNamespace(t, tc.client)
	})

	AfterEach(func() {
		tc.cleanup(t, origin)
		_ = tc.client.Delete(context.Background(), target)
	})

	Context("when an Origin Secret is created", func() {
		It("replicates it into every other namespace", func() {
			secret := &corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "db-credentials",
					Namespace: origin.Name,
					Labels:    map[string]string{identity.LabelKey: identity.LabelValueOrigin},
				},
				Type: corev1.SecretTypeOpaque,
				Data: map[string][]byte{"password": []byte("hunter2")},
			}
			Expect(tc.client.Create(context.Background(), secret)).To(Succeed())

			Eventually(func() bool {
				var replica corev1.Secret
				err := tc.client.Get(context.Background(), types.NamespacedName{Namespace: target.Name, Name: "db-credentials"}, &replica)
				return err == nil && identity.IsReplica(&replica) && string(replica.Data["password"]) == "hunter2"
			}, timeout, interval).Should(BeTrue())
		})
	})

	Context("when an Origin Secret's data changes", func() {
		It("propagates the change to every replica", func() {
			secret := &corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "api-key",
					Namespace: origin.Name,
					Labels:    map[string]string{identity.LabelKey: identity.LabelValueOrigin},
				},
				Type: corev1.SecretTypeOpaque,
				Data: map[string][]byte{"token": []byte("v1")},
			}
			Expect(tc.client.Create(context.Background(), secret)).To(Succeed())

			Eventually(func() bool {
				var replica corev1.Secret
				err := tc.client.Get(context.Background(), types.NamespacedName{Namespace: target.Name, Name: "api-key"}, &replica)
				return err == nil
			}, timeout, interval).Should(BeTrue())

			Expect(tc.client.Get(context.Background(), types.NamespacedName{Namespace: origin.Name, Name: "api-key"}, secret)).To(Succeed())
			secret.Data = map[string][]byte{"token": []byte("v2")}
			Expect(tc.client.Update(context.Background(), secret)).To(Succeed())

			Eventually(func() string {
				var replica corev1.Secret
				if err := tc.client.Get(context.Background(), types.NamespacedName{Namespace: target.Name, Name: "api-key"}, &replica); err != nil {
					return ""
				}
				return string(replica.Data["token"])
			}, timeout, interval).Should(Equal("v2"))
		})
	})

	Context("when the target namespace already has an unmanaged Secret of the same name", func() {
		It("leaves the unmanaged Secret untouched", func() {
			collision := &corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{Name: "shared-name", Namespace: target.Name},
				Type:       corev1.SecretTypeOpaque,
				Data:       map[string][]byte{"value": []byte("do-not-touch")},
			}
			Expect(tc.client.Create(context.Background(), collision)).To(Succeed())

			secret := &corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "shared-name",
					Namespace: origin.Name,
					Labels:    map[string]string{identity.LabelKey: identity.LabelValueOrigin},
				},
				Type: corev1.SecretTypeOpaque,
				Data: map[string][]byte{"value": []byte("from-origin")},
			}
			Expect(tc.client.Create(context.Background(), secret)).To(Succeed())

			Consistently(func() string {
				var current corev1.Secret
				Expect(tc.client.Get(context.Background(), types.NamespacedName{Namespace: target.Name, Name: "shared-name"}, &current)).To(Succeed())
				return string(current.Data["value"])
			}, time.Second*3, interval).Should(Equal("do-not-touch"))
		})
	})

	Context("when an Origin Secret is deleted", func() {
		It("deletes its replicas everywhere", func() {
			secret := &corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "temporary",
					Namespace: origin.Name,
					Labels:    map[string]string{identity.LabelKey: identity.LabelValueOrigin},
				},
				Type: corev1.SecretTypeOpaque,
				Data: map[string][]byte{"value": []byte("gone-soon")},
			}
			Expect(tc.client.Create(context.Background(), secret)).To(Succeed())

			Eventually(func() error {
				return tc.client.Get(context.Background(), types.NamespacedName{Namespace: target.Name, Name: "temporary"}, &corev1.Secret{})
			}, timeout, interval).Should(Succeed())

			Expect(tc.client.Delete(context.Background(), secret)).To(Succeed())

			Eventually(func() bool {
				err := tc.client.Get(context.Background(), types.NamespacedName{Namespace: target.Name, Name: "temporary"}, &corev1.Secret{})
				return apierrors.IsNotFound(err)
			}, timeout, interval).Should(BeTrue())
		})
	})

	Context("when a new namespace appears after an Origin already exists", func() {
		It("seeds the new namespace without waiting for the periodic sweep", func() {
			secret := &corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "late-namespace-test",
					Namespace: origin.Name,
					Labels:    map[string]string{identity.LabelKey: identity.LabelValueOrigin},
				},
				Type: corev1.SecretTypeOpaque,
				Data: map[string][]byte{"value": []byte("for-everyone")},
			}
			Expect(tc.client.Create(context.Background(), secret)).To(Succeed())

			Eventually(func() error {
				return tc.client.Get(context.Background(), types.NamespacedName{Namespace: target.Name, Name: "late-namespace-test"}, &corev1.Secret{})
			}, timeout, interval).Should(Succeed())

			freshNamespace := createNamespace(t, tc.client)
			defer func() { _ = tc.client.Delete(context.Background(), freshNamespace) }()

			Eventually(func() error {
				return tc.client.Get(context.Background(), types.NamespacedName{Namespace: freshNamespace.Name, Name: "late-namespace-test"}, &corev1.Secret{})
			}, timeout, interval).Should(Succeed())
		})
	})
})
