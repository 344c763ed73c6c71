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
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/sagudev/bors-mg/internal/config"
)

const configFlag = "config"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type serveOptions struct {
	viper   *viper.Viper
	cfgFile string
	zap     zap.Options
}

// newRootCmd builds the bors command tree. Running bors without a subcommand serves webhooks.
func newRootCmd() *cobra.Command {
	o := &serveOptions{viper: config.New()}

	rootCmd := &cobra.Command{
		Use:   "bors",
		Short: "Merge bot that runs try builds from pull request comments",
		Long: `Merge bot that runs try builds from pull request comments

bors receives GitHub webhooks, reacts to commands such as "@bors-servo try"
posted on pull requests, and reports the outcome of the resulting CI runs.`,
		SilenceUsage: true,
		Version:      config.Version,
		RunE:         o.run,
	}

	serveCmd := &cobra.Command{
		Use:          "serve",
		Short:        "Serve GitHub webhooks (default)",
		SilenceUsage: true,
		RunE:         o.run,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the bors version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Version)
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&o.cfgFile, configFlag, "", "config file (yaml, toml or json)")
	flags.String(config.ListenAddress, "", "address the webhook server listens on")
	flags.Int(config.Port, 8080, "port the webhook server listens on")
	flags.String(config.CommandPrefix, "@bors-servo", "prefix that introduces bot commands")
	flags.String(config.StoreBackend, config.BackendMemory, "build store backend: memory or kubernetes")
	flags.String(config.StoreNamespace, "bors", "namespace of the kubernetes build store")
	flags.Duration(config.RefreshInterval, 0, "interval between refresh events")
	flags.Duration(config.BuildTimeout, 0, "time after which a pending try build is timed out")

	for _, key := range []string{
		config.ListenAddress,
		config.Port,
		config.CommandPrefix,
		config.StoreBackend,
		config.StoreNamespace,
		config.RefreshInterval,
		config.BuildTimeout,
	} {
		// Lookup never misses: every key was registered above.
		_ = o.viper.BindPFlag(key, flags.Lookup(key))
	}

	goFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	o.zap.BindFlags(goFlags)
	flags.AddGoFlagSet(goFlags)

	return rootCmd
}
