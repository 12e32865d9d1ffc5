package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serotonyl.ru/storefront-bot/internal/app"
	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/config"
	"serotonyl.ru/storefront-bot/internal/db/postgres"
	"serotonyl.ru/storefront-bot/internal/features/admin"
	"serotonyl.ru/storefront-bot/internal/features/reconcile"
)

// options — общие флаги всех подкоманд.
type options struct {
	logLevel string
	migrate  bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Обслуживание партнёрского журнала",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(opts.logLevel)
			if err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			log.SetLevel(level)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "уровень логирования")
	root.PersistentFlags().BoolVar(&opts.migrate, "migrate", false, "применить миграции перед запуском")

	root.AddCommand(
		newReconcileCmd(opts),
		newVerifyCmd(opts),
		newProjectCmd(opts),
		newHashPasswordCmd(),
	)
	return root
}

// withReconciler подключается к БД и отдаёт сервис сверки.
func withReconciler(ctx context.Context, opts *options, fn func(*reconcile.Service) error) error {
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if opts.migrate {
		if err := postgres.RunMigrations(ctx, pool, app.Migrations); err != nil {
			return err
		}
	}
	return fn(newReconciler(pool))
}

func newReconciler(pool *pgxpool.Pool) *reconcile.Service {
	return app.NewReconciler(pool, app.NewLedger(pool))
}

func newReconcileCmd(opts *options) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Удалить дубли, найти и исправить расхождения балансов",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReconciler(cmd.Context(), opts, func(svc *reconcile.Service) error {
				if dryRun {
					drifts, err := svc.Verify(cmd.Context())
					if err != nil {
						return err
					}
					printDrifts(cmd.OutOrStdout(), drifts)
					return nil
				}
				rep, err := svc.Run(cmd.Context())
				if rep != nil {
					printReport(cmd.OutOrStdout(), rep)
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "только показать расхождения")
	return cmd
}

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Показать профили, где баланс не равен сумме журнала",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReconciler(cmd.Context(), opts, func(svc *reconcile.Service) error {
				drifts, err := svc.Verify(cmd.Context())
				if err != nil {
					return err
				}
				printDrifts(cmd.OutOrStdout(), drifts)
				if len(drifts) > 0 {
					return fmt.Errorf("%w: расхождений %d", common.ErrInvariantViolation, len(drifts))
				}
				return nil
			})
		},
	}
}

func newProjectCmd(opts *options) *cobra.Command {
	var (
		all    bool
		userID int64
	)
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Пересчитать баланс из журнала",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (userID != 0) {
				return errors.New("укажите ровно один из флагов --all или --user")
			}
			return withReconciler(cmd.Context(), opts, func(svc *reconcile.Service) error {
				out := cmd.OutOrStdout()
				if all {
					n, err := svc.ProjectAll(cmd.Context())
					fmt.Fprintf(out, "Пересчитано профилей: %d\n", n)
					return err
				}
				balance, err := svc.ProjectUser(cmd.Context(), userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "user_id=%d balance=%s\n", userID, balance.StringFixed(2))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "пересчитать все профили")
	cmd.Flags().Int64Var(&userID, "user", 0, "Telegram ID пользователя")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <пароль>",
		Short: "Сгенерировать Argon2id-хеш для ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := admin.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func printDrifts(w io.Writer, drifts []reconcile.Drift) {
	if len(drifts) == 0 {
		fmt.Fprintln(w, "Расхождений нет")
		return
	}
	for _, d := range drifts {
		fmt.Fprintf(w, "profile_id=%d user_id=%d stored=%s ledger=%s delta=%s\n",
			d.ProfileID, d.UserID, d.Stored.StringFixed(2), d.Ledger.StringFixed(2), d.Delta().StringFixed(2))
	}
}

func printReport(w io.Writer, rep *reconcile.Report) {
	fmt.Fprintf(w, "Удалено дублей связей: %d\n", rep.EdgesRemoved)
	fmt.Fprintf(w, "Удалено дублей операций: %d\n", rep.TransactionsRemoved)
	fmt.Fprintf(w, "Пересчитано после удаления: %d\n", len(rep.Reprojected))
	printDrifts(w, rep.Drifts)
	fmt.Fprintf(w, "Исправлено: %d\n", rep.Fixed)
}
