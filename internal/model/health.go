package model

import "time"

// HealthReport describes process and dependency status.
type HealthReport struct {
	Status           string      `json:"status"`
	Uptime           float64     `json:"uptime"`
	Database         bool        `json:"database"`
	IdentityProvider bool        `json:"identityProvider"`
	Memory           MemoryUsage `json:"memory"`
	Timestamp        time.Time   `json:"timestamp"`
}

// MemoryUsage is a subset of runtime.MemStats in bytes.
type MemoryUsage struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"totalAlloc"`
	Sys        uint64 `json:"sys"`
	HeapInuse  uint64 `json:"heapInuse"`
}

const (
	// HealthStatusOK means every dependency answered.
	HealthStatusOK = "ok"
	// HealthStatusDegraded means the store did not answer.
	HealthStatusDegraded = "degraded"
)
