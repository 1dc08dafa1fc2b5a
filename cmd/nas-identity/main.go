package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	identity "github.com/nas-health/go-identity"
	"github.com/nas-health/go-identity/activitymap"
	"github.com/nas-health/go-identity/config"
	"github.com/nas-health/go-identity/httpapi"
	"github.com/nas-health/go-identity/notify"
	"github.com/nas-health/go-identity/persistence"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
)

const usage = `usage: nas-identity <command> [flags]

commands:
  serve          run the HTTP API
  migrate        apply database migrations
  purge-stale    delete provisional accounts that never completed registration
  create-admin   provision a back office account
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	logger *glog.BaseLogger
	db     *bun.DB
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	a := &app{cfg: cfg, logger: newLogger(cfg)}

	if cfg.LogLevel == "debug" || cfg.LogLevel == "trace" {
		fmt.Println("============")
		fmt.Println(print.MaybeHighlightJSON(cfg))
		fmt.Println("============")
	}

	a.db, err = persistence.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer a.db.Close()

	switch args[0] {
	case "serve":
		return a.serve(ctx, args[1:])
	case "migrate":
		return a.migrate(ctx)
	case "purge-stale":
		return a.purgeStale(ctx, args[1:])
	case "create-admin":
		return a.createAdmin(ctx, args[1:])
	}

	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", args[0])
}

func newLogger(cfg *config.Config) *glog.BaseLogger {
	if cfg.LogLevel == "debug" || cfg.LogLevel == "trace" {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("nas-identity"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}

	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("nas-identity"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

func (a *app) service(ctx context.Context, reg prometheus.Registerer) (*identity.Service, error) {
	notifier, err := notify.New(ctx, a.cfg, a.logger.GetLogger("notify"))
	if err != nil {
		return nil, err
	}

	activityLogger := a.logger.GetLogger("activity")
	sink := activitymap.Sink(func(r activitymap.Record) {
		activityLogger.Info(r.Verb,
			"actor", r.ActorID,
			"object_type", r.ObjectType,
			"object_id", r.ObjectID,
			"metadata", r.Metadata,
		)
	})

	return identity.NewService(a.cfg, identity.NewRepositoryManager(a.db), nil,
		identity.WithServiceLoggerProvider(a.logger),
		identity.WithAuditNotifier(identity.ActivityAuditNotifier{Sink: sink}),
		identity.WithMetrics(reg),
		identity.WithHandlerOptions(
			identity.WithNotifier(notifier),
			identity.WithActivitySink(sink),
		),
	)
}

func (a *app) migrate(ctx context.Context) error {
	if err := persistence.Migrate(ctx, a.db); err != nil {
		return err
	}
	a.logger.GetLogger("migrate").Info("migrations applied", "driver", a.cfg.Database.Driver)
	return nil
}

func (a *app) serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	skipMigrate := fs.Bool("skip-migrate", false, "do not apply migrations on start")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*skipMigrate {
		if err := a.migrate(ctx); err != nil {
			return err
		}
	}

	svc, err := a.service(ctx, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	issuer, ok := svc.Issuer().(*identity.JWTSessionIssuer)
	if !ok {
		return fmt.Errorf("unexpected session issuer %T", svc.Issuer())
	}

	logger := a.logger.GetLogger("http")
	srv := httpapi.New(svc, issuer,
		httpapi.WithLogger(logger),
		httpapi.WithGatherer(prometheus.DefaultGatherer),
	)

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", *addr)
		errc <- srv.Serve(*addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	return srv.WrappedRouter().ShutdownWithContext(shutdownCtx)
}

func (a *app) purgeStale(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("purge-stale", flag.ContinueOnError)
	days := fs.Int("days", int(a.cfg.PurgeAge/(24*time.Hour)), "minimum age in days of provisional accounts")
	dryRun := fs.Bool("dry-run", false, "report without deleting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, err := a.service(ctx, nil)
	if err != nil {
		return err
	}

	resp, err := svc.PurgeStale(ctx, time.Duration(*days)*24*time.Hour, *dryRun)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(resp.Accounts))
	for _, u := range resp.Accounts {
		ids = append(ids, u.ID)
	}

	fmt.Println(print.MaybePrettyJSON(map[string]any{
		"dry_run":           resp.DryRun,
		"accounts":          ids,
		"pre_registrations": resp.PreRegistrations,
		"tokens":            resp.Tokens,
	}))
	return nil
}

func (a *app) createAdmin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "admin password")
	superuser := fs.Bool("superuser", false, "grant superuser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, err := a.service(ctx, nil)
	if err != nil {
		return err
	}

	admin, err := svc.CreateAdmin(ctx, *email, *password, *superuser)
	if err != nil {
		return err
	}

	fmt.Println(print.MaybePrettyJSON(admin))
	return nil
}
