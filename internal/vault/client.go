package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/talos/internal/solana"
	"github.com/example/talos/internal/wallet"
	sol "github.com/gagliardetto/solana-go"
)

// Client is a program handle: one method per instruction, each sent and
// confirmed through the provider, plus account and event readers.
type Client struct {
	provider  *solana.Provider
	programID sol.PublicKey
	logger    *slog.Logger
}

func NewClient(p *solana.Provider, programID sol.PublicKey, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{provider: p, programID: programID, logger: logger}
}

func (c *Client) ProgramID() sol.PublicKey { return c.programID }

// Wallet is the signer's public key, the owner of its vault.
func (c *Client) Wallet() sol.PublicKey { return c.provider.Wallet().PublicKey() }

// Address derives the vault PDA of owner.
func (c *Client) Address(owner sol.PublicKey) (sol.PublicKey, error) {
	addr, _, err := Address(c.programID, owner)
	return addr, err
}

// Initialize creates the vault of the provider wallet.
func (c *Client) Initialize(ctx context.Context) (sol.Signature, error) {
	signer := c.provider.Wallet().PublicKey()
	ix, err := NewInitializeInstruction(c.programID, signer)
	if err != nil {
		return sol.Signature{}, err
	}
	return c.send(ctx, "vault_initialize", ix, 0)
}

// Deposit moves amount lamports from the provider wallet into its vault.
func (c *Client) Deposit(ctx context.Context, amount uint64) (sol.Signature, error) {
	ix, err := NewDepositInstruction(c.programID, c.provider.Wallet().PublicKey(), amount)
	if err != nil {
		return sol.Signature{}, err
	}
	return c.send(ctx, "vault_deposit", ix, amount)
}

// Withdraw moves amount lamports from the vault back to the provider wallet.
// The program rejects signers other than the vault owner and amounts above
// the recorded balance.
func (c *Client) Withdraw(ctx context.Context, amount uint64) (sol.Signature, error) {
	ix, err := NewWithdrawInstruction(c.programID, c.provider.Wallet().PublicKey(), amount)
	if err != nil {
		return sol.Signature{}, err
	}
	return c.send(ctx, "vault_withdraw", ix, amount)
}

func (c *Client) send(ctx context.Context, event string, ix sol.Instruction, amount uint64) (sol.Signature, error) {
	owner := wallet.ShortID(c.provider.Wallet().PublicKey())
	sig, err := c.provider.SendAndConfirm(ctx, ix)
	if err != nil {
		err = translate(err)
		c.logger.Error(event, "owner", owner, "amount", amount, "err", err)
		return sol.Signature{}, fmt.Errorf("%s: %w", event, err)
	}
	c.logger.Info(event, "owner", owner, "amount", amount, "sig", sig.String())
	return sig, nil
}

// Fetch reads the vault of owner.
func (c *Client) Fetch(ctx context.Context, owner sol.PublicKey) (State, error) {
	addr, err := c.Address(owner)
	if err != nil {
		return State{}, err
	}
	data, programOwner, err := c.provider.AccountData(ctx, addr)
	if err != nil {
		if errors.Is(err, solana.ErrAccountNotFound) {
			return State{}, ErrVaultNotFound
		}
		return State{}, err
	}
	if !programOwner.Equals(c.programID) {
		return State{}, fmt.Errorf("vault %s owned by %s, not the vault program", addr, programOwner)
	}
	return DecodeState(data)
}

// CheckWithdraw reads the wallet's vault and applies the program's withdraw
// rules locally, so a doomed withdraw fails before it costs a fee.
func (c *Client) CheckWithdraw(ctx context.Context, amount uint64) error {
	st, err := c.Fetch(ctx, c.Wallet())
	if err != nil {
		return err
	}
	return st.CanWithdraw(c.Wallet(), amount)
}

// Events returns the vault events emitted by a confirmed transaction.
func (c *Client) Events(ctx context.Context, sig sol.Signature) ([]any, error) {
	logs, err := c.provider.TransactionLogs(ctx, sig)
	if err != nil {
		return nil, err
	}
	return ParseEvents(logs)
}
