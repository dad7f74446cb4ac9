package contestix

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"

	"github.com/heroiclabs/nakama-common/runtime"
)

// contestixImpl implements the Contestix interface
type contestixImpl struct {
	personalizers []Personalizer
	publishers    []Publisher

	// Store systems in a map by type
	systems map[SystemType]System
}

// Init initializes a Contestix type with the configurations provided.
func Init(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, initializer runtime.Initializer, configs ...SystemConfig) (Contestix, error) {
	cx := &contestixImpl{
		personalizers: make([]Personalizer, 0),
		publishers:    make([]Publisher, 0),
		systems:       make(map[SystemType]System),
	}

	// Initialize systems based on provided configs
	for _, config := range configs {
		if err := cx.initSystem(ctx, logger, nk, initializer, config); err != nil {
			return nil, err
		}
	}

	return cx, nil
}

// initSystem initializes a specific system based on its type
func (p *contestixImpl) initSystem(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, initializer runtime.Initializer, config SystemConfig) error {
	logger.Info("Initializing system type: %v, config file: %s", config.GetType(), config.GetConfigFile())

	// 1. Load and parse the config file
	configData, err := nk.ReadFile(config.GetConfigFile())
	if err != nil {
		logger.Error("Failed to read config file %s: %v", config.GetConfigFile(), err)
		return err
	}

	configBytes, err := io.ReadAll(configData)
	if err != nil {
		logger.Error("Failed to read config file contents: %v", err)
		return err
	}
	defer configData.Close()

	// 2. Create the appropriate system instance based on system type
	var system System

	switch config.GetType() {
	case SystemTypeContests:
		contestsConfig := &ContestsConfig{}
		if err := json.Unmarshal(configBytes, contestsConfig); err != nil {
			logger.Error("Failed to parse Contests system config: %v", err)
			return err
		}
		system = NewNakamaContestsSystem(contestsConfig)

	case SystemTypeRankings:
		rankingsConfig := &RankingsConfig{}
		if err := json.Unmarshal(configBytes, rankingsConfig); err != nil {
			logger.Error("Failed to parse Rankings system config: %v", err)
			return err
		}
		system = NewNakamaRankingsSystem(rankingsConfig)

	case SystemTypeLiveSync:
		liveSyncConfig := &LiveSyncConfig{}
		if err := json.Unmarshal(configBytes, liveSyncConfig); err != nil {
			logger.Error("Failed to parse LiveSync system config: %v", err)
			return err
		}
		system = NewNakamaLiveSyncSystem(liveSyncConfig)

	default:
		logger.Error("Unknown system type: %v", config.GetType())
		return runtime.NewError("unknown system type", INVALID_ARGUMENT_ERROR_CODE)
	}

	// 3. Store the system in the systems map
	if system != nil {
		// Apply any personalizers to the system
		for _, personalizer := range p.personalizers {
			personalizedConfig, err := personalizer.GetValue(ctx, logger, nk, system, "")
			if err != nil {
				logger.Warn("Failed to get personalized config: %v", err)
				// Continue despite error
			}
			if personalizedConfig != nil {
				logger.Info("Applied personalization to system type: %v", system.GetType())
			}
		}

		p.systems[config.GetType()] = system

		// Set the Contestix reference to enable cross-system communication
		if contestsSystem, ok := system.(*NakamaContestsSystem); ok {
			contestsSystem.SetContestix(p)
		}
		if rankingsSystem, ok := system.(*NakamaRankingsSystem); ok {
			rankingsSystem.SetContestix(p)
		}
		if liveSyncSystem, ok := system.(*NakamaLiveSyncSystem); ok {
			liveSyncSystem.SetContestix(p)
		}
	}

	// 4. Register RPCs if requested
	if config.GetRegister() {
		if err := p.registerSystemRpcs(initializer, config.GetType()); err != nil {
			return err
		}
	}

	return nil
}

// registerSystemRpcs registers the appropriate RPCs for a given system type
func (p *contestixImpl) registerSystemRpcs(initializer runtime.Initializer, systemType SystemType) error {
	switch systemType {
	case SystemTypeContests:
		// Register Contests system RPCs
		if err := initializer.RegisterRpc(RpcIdContestsGet.String(), rpcContestsGet(p)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdContestsRegister.String(), rpcContestsRegister(p)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdContestsVirtualStart.String(), rpcContestsVirtualStart(p)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdContestsVirtualEnd.String(), rpcContestsVirtualEnd(p)); err != nil {
			return err
		}

	case SystemTypeRankings:
		// Register Rankings system RPCs
		if err := initializer.RegisterRpc(RpcIdRankingsPage.String(), rpcRankingsPage(p)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdRankingsResultWrite.String(), rpcRankingsResultWrite(p)); err != nil {
			return err
		}

	default:
		// No RPCs to register
	}

	return nil
}

// SetPersonalizer is deprecated in favor of AddPersonalizer function to compose a chain of configuration personalization.
func (p *contestixImpl) SetPersonalizer(personalizer Personalizer) {
	p.personalizers = []Personalizer{personalizer}
}

// AddPersonalizer adds a personalizer to the chain
func (p *contestixImpl) AddPersonalizer(personalizer Personalizer) {
	p.personalizers = append(p.personalizers, personalizer)
}

// AddPublisher adds a publisher to the chain
func (p *contestixImpl) AddPublisher(publisher Publisher) {
	p.publishers = append(p.publishers, publisher)
}

// System getter implementations
func (p *contestixImpl) GetContestsSystem() ContestsSystem {
	if sys, ok := p.systems[SystemTypeContests].(ContestsSystem); ok {
		return sys
	}
	return nil
}

func (p *contestixImpl) GetRankingsSystem() RankingsSystem {
	if sys, ok := p.systems[SystemTypeRankings].(RankingsSystem); ok {
		return sys
	}
	return nil
}

func (p *contestixImpl) GetLiveSyncSystem() LiveSyncSystem {
	if sys, ok := p.systems[SystemTypeLiveSync].(LiveSyncSystem); ok {
		return sys
	}
	return nil
}

// SendPublisherEvents broadcasts events to all registered publishers
func (p *contestixImpl) SendPublisherEvents(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, events []*PublisherEvent) {
	if len(p.publishers) == 0 || len(events) == 0 {
		return
	}

	for _, publisher := range p.publishers {
		publisher.Send(ctx, logger, nk, userID, events)
	}
}

// UnregisterRpc clears the implementation of one or more RPCs registered in Nakama by Contestix gameplay systems with a
// no-op version (http response 404). This is useful to remove individual RPCs which you do not want to be callable by
// game clients:
//
//	contestix.UnregisterRpc(initializer, contestix.RpcIdRankingsResultWrite)
//
// The behaviour of `initializer.RegisterRpc` in Nakama is last registration wins. It's recommended to use UnregisterRpc
// only after `contestix.Init` has been executed.
func UnregisterRpc(initializer runtime.Initializer, ids ...RpcId) error {
	noopFn := func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error) {
		return "", runtime.NewError("not found", UNIMPLEMENTED_ERROR_CODE)
	}
	for _, id := range ids {
		if err := initializer.RegisterRpc(id.String(), noopFn); err != nil {
			return err
		}
	}
	return nil
}
