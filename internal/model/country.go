package model

// Country is the per-country configuration record: account sides, service
// codes, and file paths used by the import orchestrator.
type Country struct {
	ID              string
	AmbrePivot      string // account id
	AmbreReceivable string // account id
	ServiceCode     string
	DWINGSPath      string // data-source path for the DWINGS cache key
}
