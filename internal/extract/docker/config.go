package docker

import (
	"time"
)

// Config holds the configuration for the sandboxed extractor.
type Config struct {
	// Image must provide sh, cat and pdftotext (poppler-utils).
	Image string
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// Timeout bounds a single extraction.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
	// TmpfsSize caps the scratch space the PDF is written to.
	TmpfsSize string
}

// DefaultConfig returns limits suitable for the 10 MB upload cap.
func DefaultConfig() Config {
	return Config{
		Image:       "minidocks/poppler:latest",
		MemoryLimit: 256 * 1024 * 1024,
		CPULimit:    1,
		Timeout:     60 * time.Second,
		PoolSize:    2,
		TmpfsSize:   "32m",
	}
}
