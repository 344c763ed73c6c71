/*
Copyright (c) 2025 The bors-mg Authors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	borsv1alpha1 "github.com/sagudev/bors-mg/api/v1alpha1"
	"github.com/sagudev/bors-mg/internal/bors"
	"github.com/sagudev/bors-mg/internal/config"
	"github.com/sagudev/bors-mg/internal/github"
	"github.com/sagudev/bors-mg/internal/refresh"
	"github.com/sagudev/bors-mg/internal/store"
	"github.com/sagudev/bors-mg/internal/store/kube"
	"github.com/sagudev/bors-mg/internal/webhook"
)

func (o *serveOptions) run(cmd *cobra.Command, _ []string) error {
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&o.zap)))
	setupLog := ctrl.Log.WithName("setup")

	if err := config.ReadFile(o.viper, o.cfgFile); err != nil {
		return err
	}
	settings, err := config.Load(o.viper)
	if err != nil {
		setupLog.Error(err, "Invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, ctrl.Log.WithName("bors"), settings)
}

// serve runs the webhook server and the refresh scheduler until ctx is done
func serve(ctx context.Context, logger logr.Logger, settings config.Settings) error {
	ctx = log.IntoContext(ctx, logger)

	st, err := newStore(settings)
	if err != nil {
		return err
	}
	logger.Info("Using build store", "backend", settings.StoreBackend)

	handler := bors.NewHandler(
		clientFactory(settings),
		st,
		bors.WithPrefix(settings.CommandPrefix),
		bors.WithOrgConfigRepo(settings.OrgConfigRepo),
		bors.WithRefreshHook(refresh.NewTimeoutSweeper(st, settings.BuildTimeout)),
	)

	server := webhook.NewServer(
		settings.ListenAddress,
		settings.Port,
		handler,
		settings.WebhookSecret,
		webhook.WithPath(settings.WebhookPath),
	)
	scheduler := refresh.NewScheduler(handler, settings.RefreshInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(ctx) })
	g.Go(func() error { return scheduler.Start(ctx) })
	return g.Wait()
}

// clientFactory returns a factory that builds a fresh API client per event,
// so app assertions never outlive the event that minted them.
func clientFactory(settings config.Settings) bors.ClientFactory {
	var opts []github.Option
	if settings.GitHubAPIURL != "" {
		opts = append(opts, github.WithBaseURL(settings.GitHubAPIURL))
	}
	return func(context.Context) github.Client {
		return github.NewAutoClient(settings.Credentials, opts...)
	}
}

func newStore(settings config.Settings) (store.Store, error) {
	switch settings.StoreBackend {
	case config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendKubernetes:
		scheme := runtime.NewScheme()
		if err := clientgoscheme.AddToScheme(scheme); err != nil {
			return nil, fmt.Errorf("failed to register client-go types: %w", err)
		}
		if err := borsv1alpha1.AddToScheme(scheme); err != nil {
			return nil, fmt.Errorf("failed to register bors types: %w", err)
		}
		restConfig, err := ctrl.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load kubernetes config: %w", err)
		}
		c, err := client.New(restConfig, client.Options{Scheme: scheme})
		if err != nil {
			return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
		}
		return kube.New(c, settings.StoreNamespace), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", settings.StoreBackend)
	}
}
