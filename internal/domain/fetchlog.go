package domain

import "time"

type FetchStatus string

const (
	FetchRunning FetchStatus = "RUNNING"
	FetchSuccess FetchStatus = "SUCCESS"
	FetchError   FetchStatus = "ERROR"
)

type FetchLog struct {
	ID          string
	StoreID     string
	Status      FetchStatus
	Message     string
	ReviewCount int
	StartedAt   time.Time
	CompletedAt *time.Time
}
