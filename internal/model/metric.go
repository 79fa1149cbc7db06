package model

import "time"

type MetricEvent struct {
	Time       time.Time         `json:"time"`
	MetricName string            `json:"metric_name"`
	SourceFile string            `json:"source_file"`
	Tags       map[string]string `json:"tags"`
}
