package dto

// ScheduleReportResponse summarizes a payment schedule pass.
type ScheduleReportResponse struct {
	Orders      int `json:"orders"`
	Charged     int `json:"charged"`
	Refused     int `json:"refused"`
	Settled     int `json:"settled"`
	Skipped     int `json:"skipped"`
	Unavailable int `json:"unavailable"`
	Failed      int `json:"failed"`
	Transitions int `json:"transitions"`
}
