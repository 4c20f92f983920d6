package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"gyeol/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeAgent(a model.Agent) ([]byte, error) {
	return json.Marshal(stampAgent(a))
}

func DecodeAgent(data []byte) (model.Agent, error) {
	var agent model.Agent
	if err := json.Unmarshal(data, &agent); err != nil {
		return model.Agent{}, err
	}
	if err := checkVersion(agent.VersionedRecord); err != nil {
		return model.Agent{}, fmt.Errorf("agent %s: %w", agent.ID, err)
	}
	return agent, nil
}

func EncodeAttempt(a model.BreedingAttempt) ([]byte, error) {
	return json.Marshal(stampAttempt(a))
}

func DecodeAttempt(data []byte) (model.BreedingAttempt, error) {
	var attempt model.BreedingAttempt
	if err := json.Unmarshal(data, &attempt); err != nil {
		return model.BreedingAttempt{}, err
	}
	if err := checkVersion(attempt.VersionedRecord); err != nil {
		return model.BreedingAttempt{}, fmt.Errorf("breeding attempt %s: %w", attempt.ID, err)
	}
	return attempt, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
