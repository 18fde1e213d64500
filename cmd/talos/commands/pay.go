package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/talos/internal/approval"
	"github.com/example/talos/internal/payments"
	"github.com/example/talos/internal/solana"
	"github.com/example/talos/internal/types"
	sol "github.com/gagliardetto/solana-go"
)

// walletBalance is informational; lookup failures are logged, not fatal.
func walletBalance(ctx context.Context, f solana.BalanceFetcher, pk sol.PublicKey) string {
	ctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()
	lamports, latency, err := f.GetBalance(ctx, pk)
	if err != nil {
		logger.Warn("balance_unavailable", "err", err)
		return ""
	}
	logger.Debug("rpc_fetch", "latency_ms", latency.Milliseconds())
	return fmt.Sprintf("%.9f SOL", types.LamportsToSol(lamports))
}

func payCmd() *cobra.Command {
	var (
		chain string
		yes   bool
	)
	cmd := &cobra.Command{
		Use:   "pay <to> <sol>",
		Short: "Send a guarded payment (simulated unless TALOS_MODE=LIVE)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to := args[0]
			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			lamports, err := types.SolToLamports(amount)
			if err != nil {
				return err
			}

			var (
				tx      payments.Transferer
				balance string
			)
			if strings.EqualFold(cfg.Mode, string(payments.Live)) {
				p, err := paymentProvider(cfg)
				if err != nil {
					return err
				}
				tx = p
				balance = walletBalance(cmd.Context(), p, p.Wallet().PublicKey())
			}
			engine, err := newEngine(cfg, tx, approval.NewFileStore(cfg.ApprovalFile), nil)
			if err != nil {
				return err
			}

			if !yes {
				if balance != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "wallet balance %s\n", balance)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] send %.9f SOL to %s? [y/N] ", engine.Mode(), amount, to)
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(line)); a != "y" && a != "yes" {
					return errors.New("aborted")
				}
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			rcpt, err := engine.Send(ctx, payments.Request{To: to, Lamports: lamports, Chain: chain})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", rcpt.Mode, rcpt.Chain, rcpt.Signature)
			return nil
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "preferred network (SOLANA, BASE, POLYGON)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
