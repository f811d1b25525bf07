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

package main

import (
	"flag"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/kss-operator/secret-fanout-operator/internal/controller"
	"github.com/kss-operator/secret-fanout-operator/pkg/config"
	"github.com/kss-operator/secret-fanout-operator/pkg/events"
	"github.com/kss-operator/secret-fanout-operator/pkg/gc"
	"github.com/kss-operator/secret-fanout-operator/pkg/materializer"
	"github.com/kss-operator/secret-fanout-operator/pkg/planner"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

func main() {
	var (
		metricsAddr          string
		probeAddr            string
		enableLeaderElection bool
		configPath           string
		reconcilePeriod      time.Duration
		apiTimeout           time.Duration
	)

	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metric endpoint binds to.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flag.BoolVar(&enableLeaderElection, "leader-elect", false, "Enable leader election for controller manager.")
	flag.StringVar(&configPath, "config", "", "Path to the operator's YAML config file. Missing files fall back to defaults.")
	flag.DurationVar(&reconcilePeriod, "reconcile-period", 0, "Override the periodic reconcile interval (e.g. 5m). Zero keeps the config/default value.")
	flag.DurationVar(&apiTimeout, "api-timeout", 0, "Override the per-call Kubernetes API timeout (e.g. 30s). Zero keeps the config/default value.")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		setupLog.Error(err, "unable to load operator config")
		os.Exit(1)
	}
	if reconcilePeriod > 0 {
		cfg.ReconcilePeriod = reconcilePeriod
	}
	if apiTimeout > 0 {
		cfg.APITimeout = apiTimeout
	}
	if err := cfg.Validate(); err != nil {
		setupLog.Error(err, "invalid operator config")
		os.Exit(1)
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress: metricsAddr,
		},
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "secret-fanout-operator.kss-operator",
	})
	if err != nil {
		setupLog.Error(err, "unable to create manager")
		os.Exit(1)
	}

	emitter := events.NewEmitter(mgr.GetEventRecorderFor("secret-fanout-operator"))
	mat := materializer.New(mgr.GetClient(), cfg)
	plan := planner.New(mgr.GetClient(), mat, emitter)
	collector := gc.New(mgr.GetClient(), cfg, emitter)

	if err := (&controller.SecretReconciler{
		Client:    mgr.GetClient(),
		APIReader: mgr.GetAPIReader(),
		Scheme:    mgr.GetScheme(),
		Planner:   plan,
		GC:        collector,
		Recorder:  emitter,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "Secret")
		os.Exit(1)
	}

	if err := (&controller.NamespaceReconciler{
		Client:       mgr.GetClient(),
		Scheme:       mgr.GetScheme(),
		Materializer: mat,
		Recorder:     emitter,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "Namespace")
		os.Exit(1)
	}

	periodic := &controller.PeriodicReconciler{
		Client:    mgr.GetClient(),
		APIReader: mgr.GetAPIReader(),
		Planner:   plan,
		Period:    cfg.ReconcilePeriod,
	}
	if err := mgr.Add(periodic); err != nil {
		setupLog.Error(err, "unable to add periodic reconciler to manager")
		os.Exit(1)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager", "reconcilePeriod", cfg.ReconcilePeriod, "apiTimeout", cfg.APITimeout)
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}
