/*
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
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-logr/zapr"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/util/flowcontrol"
	"knative.dev/pkg/logging"
	"knative.dev/pkg/signals"
	controllerruntime "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	growthv1alpha1 "github.com/lissahyacinth/growth/pkg/apis/v1alpha1"
	"github.com/lissahyacinth/growth/pkg/cloudprovider"
	"github.com/lissahyacinth/growth/pkg/cloudprovider/dev"
	"github.com/lissahyacinth/growth/pkg/clusterstate"
	noderequestctrl "github.com/lissahyacinth/growth/pkg/controllers/noderequest"
	"github.com/lissahyacinth/growth/pkg/controllers/provisioning"
	"github.com/lissahyacinth/growth/pkg/events"
	"github.com/lissahyacinth/growth/pkg/metrics"
	"github.com/lissahyacinth/growth/pkg/optimiser"
)

var scheme = runtime.NewScheme()

func init() {
	lo.Must0(corev1.AddToScheme(scheme))
	lo.Must0(growthv1alpha1.AddToScheme(scheme))
}

// reconcileInterval is how often the provisioning reconciler re-gathers
// cluster state and re-solves, independent of any pod watch event.
const reconcileInterval = 10 * time.Second

func main() {
	metricsPort := flag.Int("metrics-port", withDefaultInt("METRICS_PORT", 8080), "port the metrics endpoint binds to")
	healthProbePort := flag.Int("health-probe-port", withDefaultInt("HEALTH_PROBE_PORT", 8081), "port the health probe endpoint binds to")
	kubeClientQPS := flag.Int("kube-client-qps", withDefaultInt("KUBE_CLIENT_QPS", 50), "smoothed rate of QPS to the kube-apiserver")
	kubeClientBurst := flag.Int("kube-client-burst", withDefaultInt("KUBE_CLIENT_BURST", 100), "maximum allowed burst of queries to the kube-apiserver")
	flag.Parse()

	logger := newLogger()
	defer logger.Sync() //nolint:errcheck
	ctx := logging.WithLogger(signals.NewContext(), logger)

	config := controllerruntime.GetConfigOrDie()
	config.RateLimiter = flowcontrol.NewTokenBucketRateLimiter(float32(*kubeClientQPS), *kubeClientBurst)
	config.UserAgent = "growth"

	mgr, err := controllerruntime.NewManager(config, controllerruntime.Options{
		Logger:                 zapr.NewLogger(logger.Desugar()),
		Scheme:                 scheme,
		Metrics:                serverMetricsOptions(*metricsPort),
		HealthProbeBindAddress: fmt.Sprintf(":%d", *healthProbePort),
	})
	if err != nil {
		logger.Fatalw("unable to start manager", "error", err)
	}

	if err := clusterstate.RegisterIndexes(ctx, mgr.GetFieldIndexer()); err != nil {
		logger.Fatalw("unable to register field indexes", "error", err)
	}

	metrics.MustRegister()

	provider := dev.New(mgr.GetClient())
	recorder := events.NewRecorder(mgr.GetEventRecorderFor("growth"))

	nrReconciler := &noderequestctrl.Reconciler{
		Client:   mgr.GetClient(),
		Provider: provider,
		Recorder: recorder,
	}
	if err := builder.ControllerManagedBy(mgr).
		For(&growthv1alpha1.NodeRequest{}).
		Complete(reconcile.Func(func(ctx context.Context, req reconcile.Request) (reconcile.Result, error) {
			nr := &growthv1alpha1.NodeRequest{}
			if err := mgr.GetClient().Get(ctx, req.NamespacedName, nr); err != nil {
				return reconcile.Result{}, client.IgnoreNotFound(err)
			}
			return nrReconciler.Reconcile(ctx, nr)
		})); err != nil {
		logger.Fatalw("unable to set up noderequest controller", "error", err)
	}

	go runProvisioningLoop(ctx, mgr, provider)

	logger.Infow("starting growth controller manager")
	if err := mgr.Start(ctx); err != nil {
		logger.Fatalw("manager exited with error", "error", err)
	}
}

// runProvisioningLoop drives the batched gather-solve-create cycle on a
// fixed interval rather than per-pod-event, matching the optimiser's
// whole-cluster view of demand.
func runProvisioningLoop(ctx context.Context, mgr controllerruntime.Manager, provider cloudprovider.Provider) {
	logger := logging.FromContext(ctx)
	if !mgr.GetCache().WaitForCacheSync(ctx) {
		logger.Fatalw("cache never synced")
	}
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := provisioning.ControllerLoopSingle(ctx, mgr.GetClient(), provider, optimiser.SolveOptions{}, clusterstate.Options{SubtractInFlight: true})
			if err != nil {
				logger.Warnw("provisioning loop failed", "error", err)
			}
		}
	}
}

func withDefaultInt(envVar string, fallback int) int {
	if v, ok := os.LookupEnv(envVar); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// newLogger builds a zap sugared logger, switching to debug level and
// console encoding when DEBUG is set - production deployments get JSON at
// info level.
func newLogger() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	if _, debug := os.LookupEnv("DEBUG"); debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("building logger: %s", err))
	}
	return logger.Sugar()
}

func serverMetricsOptions(port int) metricsserver.Options {
	return metricsserver.Options{BindAddress: fmt.Sprintf(":%d", port)}
}
