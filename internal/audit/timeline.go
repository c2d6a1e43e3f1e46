package audit

import "time"

// TimelineFilters holds the query filters for the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Module   string
	UserID   string
	Type     string
	Page     int
	PageSize int
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result wraps one timeline page with its paging info.
type Result struct {
	Events []Event
	Paging PagingInfo
}
