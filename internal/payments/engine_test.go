package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/talos/internal/router"
	"github.com/example/talos/internal/wallet"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fakeTransferer struct {
	signer wallet.Signer
	mu     sync.Mutex
	sent   [][]sol.Instruction
	err    error
}

func (f *fakeTransferer) Wallet() wallet.Signer { return f.signer }

func (f *fakeTransferer) SendAndConfirm(_ context.Context, ixs ...sol.Instruction) (sol.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return sol.Signature{}, f.err
	}
	f.sent = append(f.sent, ixs)
	return sol.Signature{1, 2, 3}, nil
}

type fakeApprover struct {
	threshold uint64
	approve   bool
	calls     int
}

func (f *fakeApprover) RequiresApproval(l uint64) bool { return l >= f.threshold }

func (f *fakeApprover) Request(context.Context, uint64, string) (bool, error) {
	f.calls++
	return f.approve, nil
}

var testLimits = Limits{MaxTxPerSession: 5, MaxLossLamports: 100_000_000}

func simEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLatency(time.Millisecond), WithLogger(slog.Default())}, opts...)
	e, err := NewEngine(Simulation, testLimits, nil, opts...)
	require.NoError(t, err)
	return e
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("live")
	require.NoError(t, err)
	require.Equal(t, Live, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	require.Equal(t, Simulation, m)
	_, err = ParseMode("yolo")
	require.Error(t, err)
}

func TestSimulatedSignature(t *testing.T) {
	sig, err := SimulatedSignature()
	require.NoError(t, err)
	require.True(t, IsSimulated(sig))
	require.Len(t, sig, 88)
	for _, c := range sig[4:] {
		require.True(t, strings.ContainsRune(simSigChars, c), "unexpected char %q", c)
	}
}

func TestSend_SimulationCountsSession(t *testing.T) {
	e := simEngine(t, WithRouter(router.New(router.DefaultNetworks(), nil)))

	rcpt, err := e.Send(context.Background(), Request{To: "anyone", Lamports: 10_000_000, Chain: "polygon"})
	require.NoError(t, err)
	require.True(t, IsSimulated(rcpt.Signature))
	require.Equal(t, Simulation, rcpt.Mode)
	// polygon is congested, so the cheapest online network wins
	require.Equal(t, router.Solana, rcpt.Chain)

	st := e.Stats()
	require.Equal(t, 1, st.TxCount)
	require.Equal(t, uint64(10_000_000), st.Loss)
}

func TestSend_SessionLimit(t *testing.T) {
	e := simEngine(t)
	for i := 0; i < testLimits.MaxTxPerSession; i++ {
		_, err := e.Send(context.Background(), Request{To: "x", Lamports: 1})
		require.NoError(t, err)
	}
	_, err := e.Send(context.Background(), Request{To: "x", Lamports: 1})
	require.ErrorIs(t, err, ErrSessionLimit)
	require.Equal(t, testLimits.MaxTxPerSession, e.Stats().TxCount)
}

func TestSend_DailyLoss(t *testing.T) {
	e := simEngine(t)
	_, err := e.Send(context.Background(), Request{To: "x", Lamports: 60_000_000})
	require.NoError(t, err)
	_, err = e.Send(context.Background(), Request{To: "x", Lamports: 50_000_000})
	require.ErrorIs(t, err, ErrDailyLoss)
	// exactly reaching the limit is allowed
	_, err = e.Send(context.Background(), Request{To: "x", Lamports: 40_000_000})
	require.NoError(t, err)
}

func TestSend_Approval(t *testing.T) {
	a := &fakeApprover{threshold: 5_000_000, approve: false}
	e := simEngine(t, WithApprover(a))

	_, err := e.Send(context.Background(), Request{To: "x", Lamports: 1_000})
	require.NoError(t, err)
	require.Equal(t, 0, a.calls)

	_, err = e.Send(context.Background(), Request{To: "x", Lamports: 5_000_000})
	require.ErrorIs(t, err, ErrRejected)
	require.Equal(t, 1, a.calls)
	require.Equal(t, 1, e.Stats().TxCount, "rejected payment must not count")

	a.approve = true
	_, err = e.Send(context.Background(), Request{To: "x", Lamports: 5_000_000})
	require.NoError(t, err)
}

func TestSend_InvalidInput(t *testing.T) {
	e := simEngine(t)
	_, err := e.Send(context.Background(), Request{To: "x"})
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = e.Send(context.Background(), Request{To: " ", Lamports: 1})
	require.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestSend_SimulationHonoursContext(t *testing.T) {
	e := simEngine(t, WithLatency(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := e.Send(ctx, Request{To: "x", Lamports: 1})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, e.Stats().TxCount)
}

func TestSend_Live(t *testing.T) {
	signer, err := wallet.Ephemeral()
	require.NoError(t, err)
	to := sol.NewWallet().PublicKey()
	ft := &fakeTransferer{signer: signer}

	e, err := NewEngine(Live, testLimits, ft, WithRouter(router.New(router.DefaultNetworks(), nil)))
	require.NoError(t, err)

	rcpt, err := e.Send(context.Background(), Request{To: to.String(), Lamports: 1_234})
	require.NoError(t, err)
	require.Equal(t, (sol.Signature{1, 2, 3}).String(), rcpt.Signature)
	require.Equal(t, Live, rcpt.Mode)

	require.Len(t, ft.sent, 1)
	ix := ft.sent[0][0]
	require.Equal(t, system.ProgramID, ix.ProgramID())
	accts := ix.Accounts()
	require.Equal(t, signer.PublicKey(), accts[0].PublicKey)
	require.Equal(t, to, accts[1].PublicKey)
}

func TestSend_LiveRejectsOtherChainsAndBadRecipients(t *testing.T) {
	signer, err := wallet.Ephemeral()
	require.NoError(t, err)
	ft := &fakeTransferer{signer: signer}
	e, err := NewEngine(Live, testLimits, ft, WithRouter(router.New(router.DefaultNetworks(), nil)))
	require.NoError(t, err)

	_, err = e.Send(context.Background(), Request{To: sol.NewWallet().PublicKey().String(), Lamports: 1, Chain: "base"})
	require.ErrorIs(t, err, ErrUnsupportedChain)

	_, err = e.Send(context.Background(), Request{To: "0xdeadbeef", Lamports: 1})
	require.ErrorIs(t, err, ErrInvalidRecipient)

	ft.err = errors.New("rpc down")
	_, err = e.Send(context.Background(), Request{To: sol.NewWallet().PublicKey().String(), Lamports: 1})
	require.ErrorContains(t, err, "rpc down")
	require.Zero(t, e.Stats().TxCount)
	require.Empty(t, ft.sent)
}

func TestNewEngine_LiveNeedsTransferer(t *testing.T) {
	_, err := NewEngine(Live, testLimits, nil)
	require.Error(t, err)
}

// gathered returns sample values keyed by metric name plus sorted label values.
func gathered(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	out := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "," + l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := simEngine(t, WithMetrics(NewMetrics(reg)))

	_, err := e.Send(context.Background(), Request{To: "x", Lamports: 7})
	require.NoError(t, err)
	_, err = e.Send(context.Background(), Request{To: "x", Lamports: 200_000_000})
	require.ErrorIs(t, err, ErrDailyLoss)

	got := gathered(t, reg)
	require.Equal(t, 1.0, got["talos_payments_total,SIMULATION,sent"])
	require.Equal(t, 1.0, got["talos_payments_total,SIMULATION,blocked"])
	require.Equal(t, 7.0, got["talos_session_loss_lamports"])
	require.Equal(t, 1.0, got["talos_session_tx_count"])
}

// stuckTransferer never sees its transaction confirmed.
type stuckTransferer struct{ signer wallet.Signer }

func (s stuckTransferer) Wallet() wallet.Signer { return s.signer }

func (s stuckTransferer) SendAndConfirm(ctx context.Context, _ ...sol.Instruction) (sol.Signature, error) {
	<-ctx.Done()
	return sol.Signature{}, ctx.Err()
}

func TestSend_LiveConfirmTimeoutReleasesReservation(t *testing.T) {
	signer, err := wallet.Ephemeral()
	require.NoError(t, err)
	e, err := NewEngine(Live, testLimits, stuckTransferer{signer: signer}, WithConfirmTimeout(20*time.Millisecond))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := e.Send(context.Background(), Request{To: sol.NewWallet().PublicKey().String(), Lamports: 1_000})
		done <- err
	}()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatalf("send did not honour the confirm timeout")
	}
	st := e.Stats()
	require.Zero(t, st.TxCount)
	require.Zero(t, st.Loss)
}

func TestSend_ConfirmTimeoutDoesNotCutApproval(t *testing.T) {
	a := &slowApprover{wait: 50 * time.Millisecond}
	signer, err := wallet.Ephemeral()
	require.NoError(t, err)
	ft := &fakeTransferer{signer: signer}
	e, err := NewEngine(Live, testLimits, ft, WithApprover(a), WithConfirmTimeout(10*time.Millisecond))
	require.NoError(t, err)

	_, err = e.Send(context.Background(), Request{To: sol.NewWallet().PublicKey().String(), Lamports: 1})
	require.NoError(t, err)
	require.Len(t, ft.sent, 1)
}

type slowApprover struct{ wait time.Duration }

func (slowApprover) RequiresApproval(uint64) bool { return true }

func (s slowApprover) Request(ctx context.Context, _ uint64, _ string) (bool, error) {
	select {
	case <-time.After(s.wait):
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func TestSend_HugeAmountDoesNotWrapLossLimit(t *testing.T) {
	e := simEngine(t)
	_, err := e.Send(context.Background(), Request{To: "x", Lamports: 1_000})
	require.NoError(t, err)

	_, err = e.Send(context.Background(), Request{To: "x", Lamports: ^uint64(0) - 500})
	require.ErrorIs(t, err, ErrDailyLoss)
	require.Equal(t, uint64(1_000), e.Stats().Loss)
}

func TestSend_ParallelNeverOvershootsLimits(t *testing.T) {
	limits := Limits{MaxTxPerSession: 5, MaxLossLamports: 1_000}
	e, err := NewEngine(Simulation, limits, nil, WithLatency(5*time.Millisecond))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Send(context.Background(), Request{To: "x", Lamports: 150}); err == nil {
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	st := e.Stats()
	// 1_000 / 150 allows six, the session cap allows five
	require.Equal(t, 5, sent)
	require.Equal(t, 5, st.TxCount)
	require.Equal(t, uint64(750), st.Loss)
}
