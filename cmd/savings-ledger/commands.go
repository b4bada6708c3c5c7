package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/example/savings-ledger/internal/poller"
	"github.com/example/savings-ledger/internal/server"
	"github.com/example/savings-ledger/pkg/transaction"
)

var historyProduct string

var balanceCmd = &cobra.Command{
	Use:   "balance <account> [product]",
	Short: "Show QuickSave and SafeLock balances",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		account := args[0]
		if len(args) == 2 {
			product, err := transaction.ParseProduct(args[1])
			if err != nil {
				return err
			}
			bal, err := a.balances.Balance(ctx, account, product)
			if err != nil {
				return err
			}
			return printBalances(cmd.OutOrStdout(), map[transaction.Product]decimal.Decimal{product: bal})
		}

		bals, err := a.balances.Balances(ctx, account)
		if err != nil {
			return err
		}
		return printBalances(cmd.OutOrStdout(), bals)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <account>",
	Short: "Show merged transaction history, most recent first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var txs []transaction.Transaction
		if historyProduct != "" {
			product, err := transaction.ParseProduct(historyProduct)
			if err != nil {
				return err
			}
			txs, err = a.history.ProductHistory(ctx, args[0], product)
			if err != nil {
				return err
			}
		} else {
			txs, err = a.history.History(ctx, args[0])
			if err != nil {
				return err
			}
		}
		return printHistory(cmd.OutOrStdout(), txs)
	},
}

var circleCmd = &cobra.Command{
	Use:   "circle <account> <circle-address>",
	Short: "Show an account's history in one Adashe circle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		txs, err := a.history.CircleHistory(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return printHistory(cmd.OutOrStdout(), txs)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <account>",
	Short: "Refresh balances and history on the configured poll interval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		account := args[0]
		out := cmd.OutOrStdout()
		p := poller.New(a.cfg.PollInterval, a.log)
		refresh := func(ctx context.Context) error {
			bals, err := a.balances.Balances(ctx, account)
			if err != nil {
				return err
			}
			txs, err := a.history.History(ctx, account)
			if err != nil {
				return err
			}
			if p.Stopped() {
				return nil
			}
			fmt.Fprintf(out, "\n== %s ==\n", time.Now().Format(time.RFC3339))
			if err := printBalances(out, bals); err != nil {
				return err
			}
			return printHistory(out, txs)
		}

		if err := p.RunNow("dashboard", refresh); err != nil {
			return err
		}
		if err := p.Add("dashboard", refresh); err != nil {
			return err
		}
		p.Start()
		<-ctx.Done()
		p.Stop()
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve balances and history over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(a.cfg.Server.Addr, a.balances, a.history, a.log)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyProduct, "product", "p", "", "limit to one product (quicksave, safelock, circle)")
}

func printBalances(w io.Writer, bals map[transaction.Product]decimal.Decimal) error {
	if jsonOutput {
		return writeJSON(w, bals)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tBALANCE")
	for _, p := range transaction.SavingsProducts {
		if bal, ok := bals[p]; ok {
			fmt.Fprintf(tw, "%s\t%s\n", p.Label(), bal.StringFixed(2))
		}
	}
	return tw.Flush()
}

func printHistory(w io.Writer, txs []transaction.Transaction) error {
	if jsonOutput {
		return writeJSON(w, txs)
	}
	if len(txs) == 0 {
		_, err := fmt.Fprintln(w, "No transactions found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tFROM\tTO\tAMOUNT\tWEEK")
	for _, tx := range txs {
		week := ""
		if dw := tx.DisplayWeek(); dw != nil {
			week = fmt.Sprint(*dw)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.Date.Format("2006-01-02 15:04"), tx.Kind, tx.From, tx.To, tx.Amount.StringFixed(2), week)
	}

	l := &transaction.List{}
	l.Add(txs...)
	tot := l.Totals()
	fmt.Fprintf(tw, "\t\t\tsaved\t%s\t\n", tot.Saved.StringFixed(2))
	fmt.Fprintf(tw, "\t\t\twithdrawn\t%s\t\n", tot.Withdrawn.StringFixed(2))
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
