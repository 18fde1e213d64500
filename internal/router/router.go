// Package router picks the settlement network for a payment.
package router

import "log/slog"

const (
	Solana  = "SOLANA"
	Base    = "BASE"
	Polygon = "POLYGON"
)

type Status string

const (
	Online    Status = "ONLINE"
	Congested Status = "CONGESTED"
	Offline   Status = "OFFLINE"
)

// Network is a candidate chain with its current status and typical fee.
type Network struct {
	Name   string
	Status Status
	Fee    float64
	Speed  string
}

// DefaultNetworks is the static network table.
func DefaultNetworks() []Network {
	return []Network{
		{Name: Solana, Status: Online, Fee: 0.000005, Speed: "FAST"},
		{Name: Base, Status: Online, Fee: 0.0001, Speed: "MEDIUM"},
		{Name: Polygon, Status: Congested, Fee: 0.01, Speed: "SLOW"},
	}
}

// Router selects among networks in table order.
type Router struct {
	networks []Network
	logger   *slog.Logger
}

func New(networks []Network, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{networks: networks, logger: logger}
}

func (r *Router) lookup(name string) (Network, bool) {
	for _, n := range r.networks {
		if n.Name == name {
			return n, true
		}
	}
	return Network{}, false
}

// BestRoute returns preferred when it is online. Otherwise it returns the
// online network with the lowest fee, first in table order on ties, and
// SOLANA when nothing is online.
func (r *Router) BestRoute(preferred string) string {
	if preferred != "" {
		if n, ok := r.lookup(preferred); ok && n.Status == Online {
			return preferred
		}
	}
	best, minFee := Solana, -1.0
	for _, n := range r.networks {
		if n.Status != Online {
			continue
		}
		if minFee < 0 || n.Fee < minFee {
			best, minFee = n.Name, n.Fee
		}
	}
	r.logger.Info("route_selected", "preferred", preferred, "chain", best, "fee", minFee)
	return best
}
