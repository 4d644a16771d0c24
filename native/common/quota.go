package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for an identity.
type QuotaNow struct {
	ReqCount uint32
	EpochID  uint64
}

// Quota defines the per-epoch request limit enforced for a module interaction.
// The settlement coordinator uses it to bound how many fill-evidence records a
// relay identity may post per epoch.
type Quota struct {
	MaxRequestsPerEpoch uint32
	EpochSeconds        uint32
}

// Epoch maps a unix timestamp onto the quota epoch counter.
func (q Quota) Epoch(unixNow int64) uint64 {
	if q.EpochSeconds == 0 || unixNow <= 0 {
		return 0
	}
	return uint64(unixNow) / uint64(q.EpochSeconds)
}

// CheckQuota verifies whether the additional requests fit within the configured
// quota. The returned QuotaNow reflects the updated counters when the quota is
// not exceeded; on denial the previous counters are returned unchanged.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	return next, nil
}
