package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/talos/internal/solana"
	"github.com/example/talos/internal/types"
	"github.com/example/talos/internal/vault"
	sol "github.com/gagliardetto/solana-go"
)

func vaultClient() (*vault.Client, error) {
	programID, err := sol.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	p, err := solana.ProviderFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return vault.NewClient(p, programID, logger), nil
}

func parseLamports(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("amount must be a positive number of lamports, got %q", s)
	}
	return n, nil
}

// runTx sends one vault instruction and prints the signature and any events
// the program emitted.
func runTx(cmd *cobra.Command, send func(ctx context.Context, c *vault.Client) (sol.Signature, error)) error {
	c, err := vaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, cfg.ConfirmTimeout)
	defer cancelTimeout()

	sig, err := send(ctx, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Your transaction signature %s\n", sig)

	events, err := c.Events(ctx, sig)
	if err != nil {
		logger.Warn("events_unavailable", "sig", sig.String(), "err", err)
		return nil
	}
	for _, ev := range events {
		fmt.Fprintf(cmd.OutOrStdout(), "event %s\n", describeEvent(ev))
	}
	return nil
}

func describeEvent(ev any) string {
	switch e := ev.(type) {
	case *vault.VaultInitialized:
		return fmt.Sprintf("VaultInitialized owner=%s timestamp=%d", e.Owner, e.Timestamp)
	case *vault.LiquidityAdded:
		return fmt.Sprintf("LiquidityAdded user=%s amount=%d", e.User, e.Amount)
	case *vault.LiquidityRemoved:
		return fmt.Sprintf("LiquidityRemoved owner=%s amount=%d", e.Owner, e.Amount)
	}
	return fmt.Sprintf("%T", ev)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the vault of the configured wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTx(cmd, func(ctx context.Context, c *vault.Client) (sol.Signature, error) {
				return c.Initialize(ctx)
			})
		},
	}
}

func depositCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <lamports>",
		Short: "Move lamports from the wallet into its vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseLamports(args[0])
			if err != nil {
				return err
			}
			return runTx(cmd, func(ctx context.Context, c *vault.Client) (sol.Signature, error) {
				return c.Deposit(ctx, amount)
			})
		},
	}
}

func withdrawCmd() *cobra.Command {
	var skipCheck bool
	cmd := &cobra.Command{
		Use:   "withdraw <lamports>",
		Short: "Move lamports from the vault back to the wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseLamports(args[0])
			if err != nil {
				return err
			}
			return runTx(cmd, func(ctx context.Context, c *vault.Client) (sol.Signature, error) {
				if !skipCheck {
					if err := c.CheckWithdraw(ctx, amount); err != nil {
						return sol.Signature{}, err
					}
				}
				return c.Withdraw(ctx, amount)
			})
		},
	}
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "send without checking owner and balance locally first")
	return cmd
}

func vaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vault [owner]",
		Short: "Show a vault's address, owner and balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := vaultClient()
			if err != nil {
				return err
			}
			owner := c.Wallet()
			if len(args) == 1 {
				if owner, err = sol.PublicKeyFromBase58(args[0]); err != nil {
					return fmt.Errorf("owner: %w", err)
				}
			}
			addr, err := c.Address(owner)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout)
			defer cancel()
			st, err := c.Fetch(ctx, owner)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "address  %s\n", addr)
			fmt.Fprintf(out, "owner    %s\n", st.Owner)
			fmt.Fprintf(out, "balance  %d lamports (%.9f SOL)\n", st.Balance, types.LamportsToSol(st.Balance))
			return nil
		},
	}
}
