package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/example/talos/internal/cache"
	"github.com/example/talos/internal/types"
	"github.com/example/talos/internal/vault"
	"github.com/example/talos/pkg/jsonutil"
	sol "github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
)

const maxBatch = 100

// VaultFetcher is satisfied by *vault.Client.
type VaultFetcher interface {
	Address(owner sol.PublicKey) (sol.PublicKey, error)
	Fetch(ctx context.Context, owner sol.PublicKey) (vault.State, error)
}

// Snapshot is a vault state with the time it was read from the cluster.
type Snapshot struct {
	State     vault.State
	FetchedAt time.Time
}

// VaultDeps bundles dependencies needed by the handler.
type VaultDeps struct {
	Cache          *cache.Cache[Snapshot]
	Fetcher        VaultFetcher
	Timeout        time.Duration
	MaxConcurrency int
	Logger         *slog.Logger
}

type VaultHandler struct{ Deps VaultDeps }

func NewVaultHandler(deps VaultDeps) *VaultHandler {
	if deps.MaxConcurrency <= 0 {
		deps.MaxConcurrency = 1
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &VaultHandler{Deps: deps}
}

func dedupe(in []string) []string {
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, w := range in {
		if _, ok := m[w]; ok {
			continue
		}
		m[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func (h *VaultHandler) lookup(ctx context.Context, owner sol.PublicKey) (types.VaultEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, h.Deps.Timeout)
	defer cancel()
	key := owner.String()
	snap, source, err := h.Deps.Cache.GetOrFetch(ctx, key, func(ctx context.Context) (Snapshot, error) {
		start := time.Now()
		st, err := h.Deps.Fetcher.Fetch(ctx, owner)
		if err != nil {
			return Snapshot{}, err
		}
		h.Deps.Logger.Debug("rpc_fetch", "owner", key, "latency_ms", time.Since(start).Milliseconds())
		return Snapshot{State: st, FetchedAt: time.Now().UTC()}, nil
	})
	if err != nil {
		return types.VaultEntry{}, err
	}
	addr, err := h.Deps.Fetcher.Address(owner)
	if err != nil {
		return types.VaultEntry{}, err
	}
	h.Deps.Logger.Info("vault", "owner", key, "source", source)
	return types.NewVaultEntry(key, addr.String(), snap.State.Balance, source, snap.FetchedAt), nil
}

// Get handles GET /api/vaults/{owner}. ?fresh=1 skips the cache.
func (h *VaultHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, err := sol.PublicKeyFromBase58(chi.URLParam(r, "owner"))
	if err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "invalid public key")
		return
	}
	if r.URL.Query().Get("fresh") == "1" {
		h.Deps.Cache.Invalidate(owner.String())
	}
	entry, err := h.lookup(r.Context(), owner)
	switch {
	case errors.Is(err, vault.ErrVaultNotFound):
		jsonutil.Error(w, http.StatusNotFound, "vault not found")
	case err != nil:
		jsonutil.Error(w, http.StatusBadGateway, err.Error())
	default:
		jsonutil.JSON(w, http.StatusOK, entry)
	}
}

// Batch handles POST /api/vaults with up to 100 owners, fetched concurrently.
func (h *VaultHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req types.GetVaultsRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad request")
		return
	}
	if len(req.Owners) == 0 {
		jsonutil.Error(w, http.StatusBadRequest, "owners required")
		return
	}
	if len(req.Owners) > maxBatch {
		jsonutil.Error(w, http.StatusBadRequest, "too many owners")
		return
	}

	owners := dedupe(req.Owners)
	resp := types.GetVaultsResponse{Vaults: make([]types.VaultEntry, 0, len(owners))}

	valid := make([]sol.PublicKey, 0, len(owners))
	for _, o := range owners {
		pk, err := sol.PublicKeyFromBase58(o)
		if err != nil {
			resp.Errors = append(resp.Errors, types.ErrorEntry{Owner: o, Error: "invalid public key"})
			continue
		}
		valid = append(valid, pk)
	}

	sem := make(chan struct{}, h.Deps.MaxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, pk := range valid {
		pk := pk
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; wg.Done() }()
			entry, err := h.lookup(r.Context(), pk)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				resp.Errors = append(resp.Errors, types.ErrorEntry{Owner: pk.String(), Error: err.Error()})
				return
			}
			resp.Vaults = append(resp.Vaults, entry)
		}()
	}
	wg.Wait()

	// sorted for stable output
	sort.Slice(resp.Vaults, func(i, j int) bool { return resp.Vaults[i].Owner < resp.Vaults[j].Owner })
	sort.Slice(resp.Errors, func(i, j int) bool { return resp.Errors[i].Owner < resp.Errors[j].Owner })

	jsonutil.JSON(w, http.StatusOK, resp)
}
