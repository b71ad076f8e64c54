package model

import "time"

// Action describes the outcome the pipeline reached for one ingested item.
type Action string

const (
	ActionNewItem      Action = "new_item"
	ActionUpgradedItem Action = "upgraded_item"
	ActionHashUpdated  Action = "hash_updated"
	ActionNoChanges    Action = "no_changes"
	ActionError        Action = "error"
)

// SyncType identifies which mode triggered a reconciliation run.
type SyncType string

const (
	SyncInitialBlocking    SyncType = "initial_blocking"
	SyncBackgroundStartup  SyncType = "background_startup"
	SyncPeriodicBackground SyncType = "periodic_background"
	SyncManual             SyncType = "manual"
	SyncRecovery           SyncType = "recovery"
)

// SyncStatus is a single row describing one reconciliation run.
type SyncStatus struct {
	ID             int64
	LastSyncAt     time.Time
	Type           SyncType
	ItemsProcessed int
}

// ServiceState is the singleton row tracking maintenance timestamps.
type ServiceState struct {
	LastVacuumAt      time.Time
	LastMaintenanceAt time.Time
	LastStartupAt     time.Time
}

// RatingCacheEntry is a cached provider lookup result keyed by provider name
// plus identifier.
type RatingCacheEntry struct {
	Provider  string
	Key       string
	Payload   []byte
	ExpiresAt time.Time
}
