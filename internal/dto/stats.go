package dto

import "time"

type StatsRequest struct {
	StartTime time.Time
	EndTime   time.Time
}

type StatsResponse struct {
	TotalLogEvents   int64            `json:"totalLogEvents"`
	NoiseDropped     int64            `json:"noiseDropped"`
	ByClassification map[string]int64 `json:"byClassification"`
	ByCategory       map[string]int64 `json:"byCategory"`
}
