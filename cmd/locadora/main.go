package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andrey-berenda/locadora/internal/pkg/app"
	"github.com/andrey-berenda/locadora/internal/pkg/config"
	"github.com/andrey-berenda/locadora/internal/pkg/httpserver"
	"github.com/andrey-berenda/locadora/internal/pkg/log"
	"github.com/andrey-berenda/locadora/internal/pkg/processing"
	"github.com/andrey-berenda/locadora/internal/pkg/ptr"
)

func main() {
	time.Local = time.UTC
	// .env is optional; the environment wins over it.
	_ = godotenv.Load()

	logger := log.NewLogger()
	defer func() { _ = logger.Sync() }()

	if err := rootCmd(logger).Execute(); err != nil {
		logger.Errorf("locadora: %v", err)
		os.Exit(1)
	}
}

func rootCmd(logger *zap.SugaredLogger) *cobra.Command {
	root := &cobra.Command{
		Use:           "locadora",
		Short:         "Payment reconciliation and overdue sweep for the rental back office",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		serveCmd(logger),
		sweepCmd(logger),
		migrateCmd(logger),
		linkCmd(logger),
	)
	return root
}

func setup(ctx context.Context, logger *zap.SugaredLogger) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return app.New(ctx, cfg, logger)
}

func serveCmd(logger *zap.SugaredLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the webhook and sweep endpoints over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := setup(ctx, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := &http.Server{
				Addr:              a.Config.HTTPAddr,
				Handler:           httpserver.NewRouter(a.Reconciler, a.Sweeper, a.Store, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			wg := &sync.WaitGroup{}
			if a.Config.SweepInterval > 0 {
				wg.Add(1)
				go func() {
					logger.Infof("Starting overdue sweep every %s", a.Config.SweepInterval)
					a.Sweeper.Every(ctx, a.Config.SweepInterval)
					logger.Info("Overdue sweep stopped")
					wg.Done()
				}()
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Infof("Listening on %s", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err = <-errCh:
				cancel()
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
				logger.Errorf("srv.Shutdown: %v", shutdownErr)
			}
			wg.Wait()
			logger.Info("Server gracefully stopped")
			if err != nil {
				return fmt.Errorf("srv.ListenAndServe: %w", err)
			}
			return nil
		},
	}
}

func sweepCmd(logger *zap.SugaredLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark pending transactions due before yesterday as overdue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer a.Close()

			status, body := a.Sweeper.Respond(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			if status != http.StatusOK {
				return fmt.Errorf("sweep failed with status %d", status)
			}
			return nil
		},
	}
}

func migrateCmd(logger *zap.SugaredLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err = a.Store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("store.Migrate: %w", err)
			}
			logger.Info("Schema is up to date")
			return nil
		},
	}
}

func linkCmd(logger *zap.SugaredLogger) *cobra.Command {
	link := &cobra.Command{
		Use:   "link",
		Short: "Manage payment links",
	}

	var (
		customer      string
		amountCents   int64
		dueDate       string
		description   string
		billingType   string
		transactionID string
		phone         string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a charge at Asaas and store its payment link",
		RunE: func(cmd *cobra.Command, _ []string) error {
			due, err := time.Parse(time.DateOnly, dueDate)
			if err != nil {
				return fmt.Errorf("--due-date: %w", err)
			}

			a, err := setup(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer a.Close()

			req := processing.PaymentRequest{
				CustomerID:  customer,
				AmountCents: amountCents,
				DueDate:     due,
				Description: description,
				BillingType: strings.ToUpper(billingType),
			}
			if transactionID != "" {
				req.TransactionID = ptr.Of(transactionID)
			}
			if phone != "" {
				req.CustomerPhone = ptr.Of(phone)
			}

			pl, err := a.Processor.CreatePayment(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("processor.CreatePayment: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", pl.ID, pl.ExternalID, ptr.Value(pl.InvoiceURL))
			return nil
		},
	}
	create.Flags().StringVar(&customer, "customer", "", "Asaas customer id")
	create.Flags().Int64Var(&amountCents, "amount-cents", 0, "charge amount in cents")
	create.Flags().StringVar(&dueDate, "due-date", time.Now().Format(time.DateOnly), "due date, YYYY-MM-DD")
	create.Flags().StringVar(&description, "description", "", "charge description")
	create.Flags().StringVar(&billingType, "billing-type", "", "PIX, BOLETO or CREDIT_CARD")
	create.Flags().StringVar(&transactionID, "transaction-id", "", "ledger transaction to settle")
	create.Flags().StringVar(&phone, "phone", "", "customer WhatsApp number")
	_ = create.MarkFlagRequired("customer")
	_ = create.MarkFlagRequired("amount-cents")

	link.AddCommand(create)
	return link
}
