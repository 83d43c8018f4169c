package setup

import (
	"github.com/yolodolo42/walletdash/internal/auth"
)

// SetupStatus represents which OKX credential fields are resolvable
type SetupStatus struct {
	Sources    map[auth.Field]auth.Source
	Missing    []auth.FieldInfo
	IsComplete bool
}

// DetectSetupStatus checks the current setup state
func DetectSetupStatus(manager *auth.Manager) *SetupStatus {
	_, sources := manager.Resolve()
	status := &SetupStatus{Sources: sources}

	for _, info := range auth.AllFields() {
		if sources[info.Field] == auth.SourceNone {
			status.Missing = append(status.Missing, info)
		}
	}
	status.IsComplete = len(status.Missing) == 0
	return status
}

// NeedsSetup returns true if interactive setup should run
func NeedsSetup(manager *auth.Manager) bool {
	return !DetectSetupStatus(manager).IsComplete
}
