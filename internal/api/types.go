package api

import (
	"time"

	"github.com/hylo-so/hylo-engine/internal/onchain"
	"github.com/hylo-so/hylo-engine/internal/stability"
)

type HealthDTO struct {
	Status   string         `json:"status"`
	Ready    bool           `json:"ready"`
	Source   string         `json:"source"`
	Mode     stability.Mode `json:"stability_mode"`
	LoadedAt int64          `json:"loaded_at"`
	Reasons  []string       `json:"reasons"`
}

type PairsDTO struct {
	Pairs []onchain.PairInfo `json:"pairs"`
	AsOf  int64              `json:"asOf"`
}

type QuoteDTO struct {
	*onchain.Quote
	// Issued counts quotes served for the pair, this one included.
	Issued int64 `json:"issued,omitempty"`
}

type ReadyDTO struct {
	Status   string    `json:"status"`
	Snapshot string    `json:"snapshot"`
	Cache    string    `json:"cache"`
	LoadedAt time.Time `json:"loaded_at"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
