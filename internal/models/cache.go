package models

// CacheStatus classifies how a required component matched the local cache.
type CacheStatus string

const (
	CacheOk              CacheStatus = "ok"
	CacheCaseMismatch    CacheStatus = "case_mismatch"
	CacheVersionMismatch CacheStatus = "version_mismatch"
	CacheNotFound        CacheStatus = "not_found"
)

// CacheEntry is one diagnostic produced by the preflight cache check. Purely
// informational; producing entries never mutates the cache.
type CacheEntry struct {
	RequestedName   string            `json:"requestedName"`
	MatchedFileName string            `json:"matchedFileName,omitempty"`
	Status          CacheStatus       `json:"status"`
	ResolvedVersion *ComponentVersion `json:"resolvedVersion,omitempty"`
	Detail          string            `json:"detail,omitempty"`
}
