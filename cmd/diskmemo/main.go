// Command diskmemo inspects and maintains a disk-memoizer cache directory
// shared by one or more processes.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	gap "github.com/muesli/go-app-paths"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/diskmemo"
	"github.com/unkn0wn-root/diskmemo/config"
	dlogrus "github.com/unkn0wn-root/diskmemo/log/logrus"
)

// Version as provided by the release build.
var Version = ""

const configName = "diskmemo"

var configExts = []string{"yaml", "yml", "json", "toml"}

type app struct {
	configFile string
	cacheDir   string
	lockDir    string

	cfg config.Config
	log *logrus.Logger
	out io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "diskmemo",
		Short:         "Inspect and maintain a disk-memoizer cache directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	if Version != "" {
		root.Version = Version
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: diskmemo.yaml in the user config directory)")
	root.PersistentFlags().StringVar(&a.cacheDir, "cache-dir", "", "cache directory (overrides config)")
	root.PersistentFlags().StringVar(&a.lockDir, "lock-dir", "", "lock directory (overrides config)")

	root.AddCommand(a.gcCmd(), a.pathCmd(), a.inspectCmd(), a.unlockCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()

	path := a.configFile
	if path == "" {
		path = findConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.cacheDir != "" {
		cfg.CacheDir = a.cacheDir
	}
	if a.lockDir != "" {
		cfg.LockDir = a.lockDir
	}
	a.cfg = cfg

	a.log, err = initLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if path != "" {
		a.log.WithField("path", path).Debug("using configuration file")
	}
	return nil
}

// root and lockRoot resolve directories the same way diskmemo.New does.
func (a *app) root() string {
	if a.cfg.CacheDir != "" {
		return filepath.Clean(a.cfg.CacheDir)
	}
	return diskmemo.DefaultCacheDir()
}

func (a *app) lockRoot() string {
	if a.cfg.LockDir != "" {
		return filepath.Clean(a.cfg.LockDir)
	}
	return diskmemo.DefaultLockDir(a.root())
}

func (a *app) logger() diskmemo.Logger {
	return dlogrus.New(a.log)
}

// findConfigFile returns the first diskmemo.{yaml,yml,json,toml} found in
// $DISK_MEMOIZER_CONFIG_HOME, $XDG_CONFIG_HOME/diskmemo or the platform config
// directories. Empty means defaults and environment only.
func findConfigFile() string {
	var dirs []string
	if c := os.Getenv(config.EnvPrefix + "CONFIG_HOME"); c != "" {
		dirs = append(dirs, c)
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append(dirs, filepath.Join(c, configName))
	}
	scope := gap.NewScope(gap.User, configName)
	if sd, err := scope.ConfigDirs(); err == nil {
		dirs = append(dirs, sd...)
	}

	for _, d := range dirs {
		for _, ext := range configExts {
			p := filepath.Join(d, configName+"."+ext)
			if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
				return p
			}
		}
	}
	return ""
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "diskmemo:", err)
		stop()
		os.Exit(1)
	}
}
