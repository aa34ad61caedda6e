package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, provider clients, and the
// sync layer return these (optionally wrapped) so the engine can translate
// them into caller-visible results. Soft outcomes with no caller-visible
// error, like a metadata persist that fell back to the degraded cache, are
// expressed through result fields (persisted:false) rather than sentinels.
//
// These represent factual states about resources, not validation failures:
// - ErrTokenAcquisition: credential exchange exhausted its retries; fatal for
//   any operation needing provider write access
// - ErrIdentityNotFound: provider has no matching identity; an absence signal,
//   never a hard failure for sign-in flows
// - ErrRecordNotFound: entity does not exist in the record store
// - ErrAggregateTimeout: the caller-imposed deadline elapsed; resolved by a
//   claims-only profile
var (
	ErrTokenAcquisition = errors.New("token acquisition failed")
	ErrIdentityNotFound = errors.New("identity not found")
	ErrRecordNotFound   = errors.New("record not found")
	ErrAggregateTimeout = errors.New("aggregation timed out")
)
