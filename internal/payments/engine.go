// Package payments sends guarded payments on behalf of the agent. Every
// payment passes the session limits, optional human approval and network
// routing before it is either simulated or broadcast.
package payments

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/example/talos/internal/router"
	"github.com/example/talos/internal/wallet"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

type Mode string

const (
	Simulation Mode = "SIMULATION"
	Live       Mode = "LIVE"
)

// ParseMode accepts any casing; the empty string is Simulation.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case "", Simulation:
		return Simulation, nil
	case Live:
		return Live, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

var (
	ErrSessionLimit     = errors.New("session transaction limit reached")
	ErrDailyLoss        = errors.New("daily loss limit would be exceeded")
	ErrRejected         = errors.New("payment rejected by operator")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrUnsupportedChain = errors.New("chain not supported in live mode")
)

const (
	DefaultLatency = 600 * time.Millisecond
	simSigChars    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	simSigLen      = 84
)

// Limits bound what one session may spend.
type Limits struct {
	MaxTxPerSession int
	MaxLossLamports uint64
}

// Transferer broadcasts instructions signed by its wallet.
// *solana.Provider satisfies it.
type Transferer interface {
	Wallet() wallet.Signer
	SendAndConfirm(ctx context.Context, ixs ...sol.Instruction) (sol.Signature, error)
}

// Approver is satisfied by *approval.Approver.
type Approver interface {
	RequiresApproval(lamports uint64) bool
	Request(ctx context.Context, lamports uint64, to string) (bool, error)
}

// Router is satisfied by *router.Router.
type Router interface {
	BestRoute(preferred string) string
}

type Request struct {
	To       string
	Lamports uint64
	Chain    string
}

type Receipt struct {
	Signature string `json:"signature"`
	Chain     string `json:"chain"`
	Mode      Mode   `json:"mode"`
	Lamports  uint64 `json:"lamports"`
}

// Stats is a snapshot of the session counters.
type Stats struct {
	Mode    Mode   `json:"mode"`
	TxCount int    `json:"tx_count"`
	Loss    uint64 `json:"session_loss_lamports"`
	MaxTx   int    `json:"max_tx_per_session"`
	MaxLoss uint64 `json:"max_loss_lamports"`
}

type Engine struct {
	mode     Mode
	limits   Limits
	tx       Transferer
	approver Approver
	router   Router
	metrics  *Metrics
	latency  time.Duration
	logger   *slog.Logger

	// bounds the broadcast only, not approval waits
	confirmTimeout time.Duration

	mu      sync.Mutex
	txCount int
	loss    uint64
}

type Option func(*Engine)

func WithApprover(a Approver) Option { return func(e *Engine) { e.approver = a } }

func WithRouter(r Router) Option { return func(e *Engine) { e.router = r } }

func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithLatency(d time.Duration) Option { return func(e *Engine) { e.latency = d } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfirmTimeout bounds each live send-and-confirm. Zero means the
// caller's context alone decides.
func WithConfirmTimeout(d time.Duration) Option { return func(e *Engine) { e.confirmTimeout = d } }

// NewEngine builds an engine. tx may be nil in Simulation mode.
func NewEngine(mode Mode, limits Limits, tx Transferer, opts ...Option) (*Engine, error) {
	if mode == Live && tx == nil {
		return nil, errors.New("live mode needs a transferer")
	}
	e := &Engine{
		mode:    mode,
		limits:  limits,
		tx:      tx,
		latency: DefaultLatency,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	e.logger.Info("engine_start", "mode", string(e.mode), "max_tx", limits.MaxTxPerSession, "max_loss_lamports", limits.MaxLossLamports)
	return e, nil
}

func (e *Engine) Mode() Mode { return e.mode }

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{Mode: e.mode, TxCount: e.txCount, Loss: e.loss, MaxTx: e.limits.MaxTxPerSession, MaxLoss: e.limits.MaxLossLamports}
}

// Send runs a payment through the guardrails. The session counters only
// move for payments that succeed.
func (e *Engine) Send(ctx context.Context, req Request) (Receipt, error) {
	if req.Lamports == 0 {
		return Receipt{}, ErrInvalidAmount
	}
	if strings.TrimSpace(req.To) == "" {
		return Receipt{}, ErrInvalidRecipient
	}
	if err := e.reserve(req.Lamports); err != nil {
		e.metrics.observe(e.mode, "blocked")
		e.logger.Warn("payment_blocked", "to", req.To, "lamports", req.Lamports, "err", err)
		return Receipt{}, err
	}

	rcpt, err := e.send(ctx, req)
	if err != nil {
		e.release(req.Lamports)
		outcome := "failed"
		if errors.Is(err, ErrRejected) {
			outcome = "rejected"
		}
		e.metrics.observe(e.mode, outcome)
		e.logger.Error("payment_failed", "to", req.To, "lamports", req.Lamports, "err", err)
		return Receipt{}, err
	}

	e.metrics.observe(e.mode, "sent")
	e.logger.Info("payment_sent", "mode", string(e.mode), "chain", rcpt.Chain, "to", req.To, "lamports", req.Lamports, "sig", rcpt.Signature)
	return rcpt, nil
}

func (e *Engine) send(ctx context.Context, req Request) (Receipt, error) {
	if e.approver != nil && e.approver.RequiresApproval(req.Lamports) {
		ok, err := e.approver.Request(ctx, req.Lamports, req.To)
		if err != nil {
			return Receipt{}, fmt.Errorf("approval: %w", err)
		}
		if !ok {
			return Receipt{}, ErrRejected
		}
	}

	chain := strings.ToUpper(req.Chain)
	if e.router != nil {
		chain = e.router.BestRoute(chain)
	} else if chain == "" {
		chain = router.Solana
	}

	rcpt := Receipt{Chain: chain, Mode: e.mode, Lamports: req.Lamports}
	if e.mode != Live {
		sig, err := e.simulate(ctx)
		if err != nil {
			return Receipt{}, err
		}
		rcpt.Signature = sig
		return rcpt, nil
	}

	if chain != router.Solana {
		return Receipt{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
	to, err := sol.PublicKeyFromBase58(req.To)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	ix, err := system.NewTransferInstruction(req.Lamports, e.tx.Wallet().PublicKey(), to).ValidateAndBuild()
	if err != nil {
		return Receipt{}, err
	}
	if e.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.confirmTimeout)
		defer cancel()
	}
	sig, err := e.tx.SendAndConfirm(ctx, ix)
	if err != nil {
		return Receipt{}, err
	}
	rcpt.Signature = sig.String()
	return rcpt, nil
}

func (e *Engine) reserve(lamports uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.txCount >= e.limits.MaxTxPerSession {
		return ErrSessionLimit
	}
	if e.loss > e.limits.MaxLossLamports || lamports > e.limits.MaxLossLamports-e.loss {
		return ErrDailyLoss
	}
	e.txCount++
	e.loss += lamports
	e.metrics.session(e.txCount, e.loss)
	return nil
}

func (e *Engine) release(lamports uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.txCount--
	e.loss -= lamports
	e.metrics.session(e.txCount, e.loss)
}

func (e *Engine) simulate(ctx context.Context) (string, error) {
	t := time.NewTimer(e.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.C:
	}
	return SimulatedSignature()
}

// SimulatedSignature returns "sim_" followed by 84 random alphanumerics.
func SimulatedSignature() (string, error) {
	var b strings.Builder
	b.Grow(4 + simSigLen)
	b.WriteString("sim_")
	alphabet := big.NewInt(int64(len(simSigChars)))
	for i := 0; i < simSigLen; i++ {
		n, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			return "", err
		}
		b.WriteByte(simSigChars[n.Int64()])
	}
	return b.String(), nil
}

// IsSimulated reports whether sig came from SimulatedSignature.
func IsSimulated(sig string) bool { return strings.HasPrefix(sig, "sim_") }
