// Package cli команды talepifyctl для операторов: каталог тарифов, миграции
// и просмотр состояния пользователя или установки.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talepify/entitlement-service/internal/app/bootstrap"
	"github.com/talepify/entitlement-service/internal/config"
	"github.com/talepify/entitlement-service/internal/lib/sl"
)

// runtime общие флаги и ленивое подключение к хранилищам.
type runtime struct {
	cfgFile string
	verbose bool
	out     io.Writer
}

// NewRootCmd собирает дерево команд. Вывод пишется в out.
func NewRootCmd(out io.Writer) *cobra.Command {
	rt := &runtime{out: out}

	root := &cobra.Command{
		Use:   "talepifyctl",
		Short: "Talepify entitlement service operator tool",
		Long: `talepifyctl reads and repairs entitlement state directly in the configured storage.

Examples:
  talepifyctl plans
  talepifyctl migrate -c config/local.yaml
  talepifyctl subscription summary --user 42
  talepifyctl trial clear --installation 3f1c...`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&rt.cfgFile, "config", "c", "", "config file path (defaults to CONFIG_PATH)")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newPlansCmd(rt),
		newMigrateCmd(rt),
		newSubscriptionCmd(rt),
		newReferralCmd(rt),
		newTrialCmd(rt),
	)
	return root
}

// Execute запускает talepifyctl.
func Execute(ctx context.Context) {
	if err := NewRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (rt *runtime) config() (*config.Config, error) {
	path := rt.cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		return nil, fmt.Errorf("config path is not set: use --config or CONFIG_PATH")
	}
	return config.Load(path)
}

func (rt *runtime) logger(env string) *slog.Logger {
	if !rt.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return sl.New(env, os.Stderr)
}

// services подключается к хранилищам без брокера и без миграций.
// Вызывающий обязан вызвать close.
func (rt *runtime) services(ctx context.Context) (*bootstrap.Services, func(), error) {
	cfg, err := rt.config()
	if err != nil {
		return nil, nil, err
	}
	log := rt.logger(cfg.Env)
	infra, err := bootstrap.Setup(ctx, cfg, bootstrap.Options{}, log, nil)
	if err != nil {
		return nil, nil, err
	}
	svc, err := infra.NewServices(cfg, log, nil)
	if err != nil {
		infra.Close()
		return nil, nil, err
	}
	return svc, infra.Close, nil
}

func (rt *runtime) printJSON(v any) error {
	enc := json.NewEncoder(rt.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
