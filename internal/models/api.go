package models

// BatchRequest is the body of POST /v1/batches
// The validate tags are checked by the service before a batch starts
type BatchRequest struct {
	Input       string  `json:"input" validate:"required"`
	Provider    string  `json:"provider" validate:"omitempty,oneof=auto ipwho ipapi ipapico ipinfo ipquery"`
	BypassCache bool    `json:"bypass_cache"`
	Threshold   float64 `json:"threshold" validate:"gte=0"`
}

// BatchAccepted is returned when a batch is started asynchronously
type BatchAccepted struct {
	BatchID string `json:"batch_id"`
	Total   int    `json:"total"`
}

// BatchStatus is the progress view of a batch
type BatchStatus struct {
	BatchID   string        `json:"batch_id"`
	State     string        `json:"state"`
	Provider  string        `json:"provider"`
	Total     int           `json:"total"`
	Found     int           `json:"found"`
	Failed    int           `json:"failed"`
	LiveCalls int           `json:"live_calls"`
	CacheHits int           `json:"cache_hits"`
	Outcomes  []Outcome     `json:"outcomes"`
	Options   FilterOptions `json:"filter_options"`
}

// FilterOptions lists the distinct values present in a result set
type FilterOptions struct {
	Countries []string `json:"countries"`
	Cities    []string `json:"cities"`
	Regions   []string `json:"regions"`
	ISPs      []string `json:"isps"`
	Timezones []string `json:"timezones"`
}

// CacheStats is returned by GET /v1/cache/stats
type CacheStats struct {
	Entries int64  `json:"entries"`
	Store   string `json:"store"`
}
