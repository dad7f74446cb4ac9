package contestix

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

var (
	ErrInternal           = runtime.NewError("internal error occurred", INTERNAL_ERROR_CODE)
	ErrBadInput           = runtime.NewError("bad input", INVALID_ARGUMENT_ERROR_CODE)
	ErrNoSessionUser      = runtime.NewError("no user ID in session", INVALID_ARGUMENT_ERROR_CODE)
	ErrPayloadDecode      = runtime.NewError("cannot decode json", INTERNAL_ERROR_CODE)
	ErrPayloadEncode      = runtime.NewError("cannot encode json", INTERNAL_ERROR_CODE)
	ErrSystemNotAvailable = runtime.NewError("system not available", INTERNAL_ERROR_CODE)

	ErrUnknownContest      = runtime.NewError("unknown contest", NOT_FOUND_ERROR_CODE)
	ErrUnauthenticated     = runtime.NewError("authentication required", UNAUTHENTICATED_ERROR_CODE)
	ErrTransactionConflict = runtime.NewError("storage conflict, retry the action", ABORTED_ERROR_CODE)
	ErrConfirmationNeeded  = runtime.NewError("explicit confirmation required for this call", FAILED_PRECONDITION_ERROR_CODE)
)

// Contestix provides a type which combines the contest gameplay systems.
type Contestix interface {
	// SetPersonalizer is deprecated in favor of AddPersonalizer function to compose a chain of configuration personalization.
	SetPersonalizer(Personalizer)
	AddPersonalizer(personalizer Personalizer)

	AddPublisher(publisher Publisher)

	GetContestsSystem() ContestsSystem
	GetRankingsSystem() RankingsSystem
	GetLiveSyncSystem() LiveSyncSystem

	// SendPublisherEvents broadcasts events to all registered publishers.
	SendPublisherEvents(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, events []*PublisherEvent)
}

// The SystemType identifies each of the gameplay systems.
type SystemType uint

const (
	SystemTypeUnknown SystemType = iota
	SystemTypeContests
	SystemTypeRankings
	SystemTypeLiveSync
)

// A System is a base type for a gameplay system.
type System interface {
	// GetType provides the runtime type of the gameplay system.
	GetType() SystemType

	// GetConfig returns the configuration type of the gameplay system.
	GetConfig() any
}

// The SystemConfig describes the configuration that each gameplay system must use to configure itself.
type SystemConfig interface {
	// GetType returns the runtime type of the gameplay system.
	GetType() SystemType

	// GetConfigFile returns the configuration file used for the data definitions in the gameplay system.
	GetConfigFile() string

	// GetRegister returns true if the gameplay system's RPCs should be registered with the game server.
	GetRegister() bool

	// GetExtra returns the extra parameter used to configure the gameplay system.
	GetExtra() any
}

var _ SystemConfig = &systemConfig{}

type systemConfig struct {
	systemType SystemType
	configFile string
	register   bool

	extra any
}

func (sc *systemConfig) GetType() SystemType {
	return sc.systemType
}
func (sc *systemConfig) GetConfigFile() string {
	return sc.configFile
}
func (sc *systemConfig) GetRegister() bool {
	return sc.register
}
func (sc *systemConfig) GetExtra() any {
	return sc.extra
}

// WithContestsSystem configures a ContestsSystem type and optionally registers its RPCs with the game server.
func WithContestsSystem(configFile string, register bool) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeContests,
		configFile: configFile,
		register:   register,
	}
}

// WithRankingsSystem configures a RankingsSystem type and optionally registers its RPCs with the game server.
func WithRankingsSystem(configFile string, register bool) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeRankings,
		configFile: configFile,
		register:   register,
	}
}

// WithLiveSyncSystem configures a LiveSyncSystem type and optionally registers its RPCs with the game server.
func WithLiveSyncSystem(configFile string, register bool) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeLiveSync,
		configFile: configFile,
		register:   register,
	}
}
