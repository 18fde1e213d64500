// Package approval pauses large payments until a human operator approves or
// rejects them from the admin dashboard.
package approval

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"
)

var ErrNotFound = errors.New("approval request not found")

type Status string

const (
	Pending  Status = "PENDING"
	Approved Status = "APPROVED"
	Rejected Status = "REJECTED"
)

// Request is a payment waiting on an operator decision.
type Request struct {
	ID        string    `json:"id" bson:"_id"`
	Amount    float64   `json:"amount" bson:"amount"`
	Lamports  uint64    `json:"lamports" bson:"lamports"`
	To        string    `json:"to" bson:"to"`
	Status    Status    `json:"status" bson:"status"`
	CreatedAt time.Time `json:"timestamp" bson:"created_at"`
}

// Store persists requests and decisions.
type Store interface {
	Put(ctx context.Context, r Request) error
	Get(ctx context.Context, id string) (Request, error)
	Delete(ctx context.Context, id string) error
	Pending(ctx context.Context) ([]Request, error)
	// Decide moves a pending request to Approved or Rejected.
	Decide(ctx context.Context, id string, s Status) error
}

// Approver gates payments at or above a lamport threshold.
type Approver struct {
	threshold uint64
	store     Store
	poll      time.Duration
	logger    *slog.Logger
}

func NewApprover(threshold uint64, store Store, poll time.Duration, logger *slog.Logger) *Approver {
	if poll <= 0 {
		poll = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Approver{threshold: threshold, store: store, poll: poll, logger: logger}
}

func (a *Approver) RequiresApproval(lamports uint64) bool { return lamports >= a.threshold }

// Request records a pending request and blocks until an operator decides it
// or ctx ends. The request is removed from the store once resolved.
func (a *Approver) Request(ctx context.Context, lamports uint64, to string) (bool, error) {
	req := Request{
		ID:        newID(),
		Amount:    float64(lamports) / 1_000_000_000,
		Lamports:  lamports,
		To:        to,
		Status:    Pending,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.Put(ctx, req); err != nil {
		return false, err
	}
	a.logger.Warn("approval_pending", "id", req.ID, "amount_sol", req.Amount, "to", to)

	t := time.NewTicker(a.poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			a.cleanup(req.ID)
			return false, ctx.Err()
		case <-t.C:
		}
		cur, err := a.store.Get(ctx, req.ID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				a.logger.Error("approval_poll", "id", req.ID, "err", err)
			}
			continue
		}
		switch cur.Status {
		case Approved:
			a.logger.Info("approval_decided", "id", req.ID, "status", string(cur.Status))
			a.cleanup(req.ID)
			return true, nil
		case Rejected:
			a.logger.Info("approval_decided", "id", req.ID, "status", string(cur.Status))
			a.cleanup(req.ID)
			return false, nil
		}
	}
}

func (a *Approver) cleanup(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		a.logger.Error("approval_cleanup", "id", id, "err", err)
	}
}

func newID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
