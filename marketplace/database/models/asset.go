package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AssetStatus string

const (
	AssetStatusDraft            AssetStatus = "draft"
	AssetStatusOpenToAuction    AssetStatus = "open_to_auction"
	AssetStatusClosedForAuction AssetStatus = "closed_for_auction"
)

// assetTransitions is the complete set of legal status moves. Everything not
// listed here is rejected.
var assetTransitions = map[AssetStatus][]AssetStatus{
	AssetStatusDraft:            {AssetStatusOpenToAuction},
	AssetStatusOpenToAuction:    {AssetStatusClosedForAuction},
	AssetStatusClosedForAuction: {AssetStatusOpenToAuction},
}

// CanTransitionTo reports whether the move from s to target is legal.
func (s AssetStatus) CanTransitionTo(target AssetStatus) bool {
	for _, next := range assetTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

type Asset struct {
	bun.BaseModel `bun:"table:assets,alias:as"`

	ID          int64       `bun:"id,pk,autoincrement"`
	OwnerID     int64       `bun:"owner_id,notnull"`
	Title       string      `bun:"title,notnull"`
	Description string      `bun:"description"`
	Status      AssetStatus `bun:"status,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
