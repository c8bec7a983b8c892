package domain

import "time"

type HealthStatus string

const (
	HealthOK        HealthStatus = "ok"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type DependencyStatus string

const DependencyConnected DependencyStatus = "connected"

// FailedService attributes an unhealthy report to the dependency that failed.
type FailedService string

const (
	FailedCache    FailedService = "cache"
	FailedStorage  FailedService = "storage"
	FailedMultiple FailedService = "multiple"
	FailedUnknown  FailedService = "unknown"
)

type ServiceStatuses struct {
	Cache   DependencyStatus `json:"cache"`
	Storage DependencyStatus `json:"storage"`
}

type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"totalAlloc"`
	Sys        uint64 `json:"sys"`
	HeapInuse  uint64 `json:"heapInuse"`
	NumGC      uint32 `json:"numGC"`
}

type SystemInfo struct {
	Uptime         float64     `json:"uptime"`
	Memory         MemoryStats `json:"memory"`
	RuntimeVersion string      `json:"runtimeVersion"`
	Goroutines     int         `json:"goroutines"`
	// ModelCircuit is the model circuit breaker state; empty in mock mode.
	ModelCircuit string `json:"modelCircuit,omitempty"`
}

// HealthReport is either the ok shape (Services, System, Timestamp set) or the
// unhealthy shape (Error, FailedService and optionally Details set).
type HealthReport struct {
	Status        HealthStatus     `json:"status"`
	Services      *ServiceStatuses `json:"services,omitempty"`
	System        *SystemInfo      `json:"system,omitempty"`
	Timestamp     *time.Time       `json:"timestamp,omitempty"`
	Error         string           `json:"error,omitempty"`
	FailedService FailedService    `json:"failedService,omitempty"`
	Details       string           `json:"details,omitempty"`
}
