// Package tasks implements the job variants the scheduler can run:
// tracker updates, match fetching, detection analysis and ban checks.
package tasks

import (
	"encoding/json"

	"github.com/riftwatch/smurfwatch/detect"
	"github.com/riftwatch/smurfwatch/errors"
	"github.com/riftwatch/smurfwatch/jobs"
	"github.com/riftwatch/smurfwatch/riot"
	"github.com/riftwatch/smurfwatch/store"
)

// Deps are the collaborators job bodies work against.
type Deps struct {
	Client  *riot.Client
	Players *store.PlayerStore
	Matches *store.MatchStore
	Ranks   *store.RankStore
	Engine  *detect.Engine
}

// Factory returns a jobs.BodyFactory bound to the given dependencies.
func Factory(deps Deps) jobs.BodyFactory {
	return func(cfg *jobs.JobConfiguration) (jobs.Body, error) {
		return NewBody(cfg, deps)
	}
}

// NewBody builds the body for a configuration, validating its payload.
// The switch is exhaustive over the known job types; an unknown type
// is a validation error, not a lookup miss.
func NewBody(cfg *jobs.JobConfiguration, deps Deps) (jobs.Body, error) {
	switch cfg.Type {
	case jobs.JobTypeTrackerUpdater:
		payload, err := decodeTrackerPayload(cfg.Payload)
		if err != nil {
			return nil, err
		}
		return &TrackerUpdater{deps: deps, payload: payload}, nil

	case jobs.JobTypeMatchFetcher:
		payload, err := decodeMatchFetcherPayload(cfg.Payload)
		if err != nil {
			return nil, err
		}
		return &MatchFetcher{deps: deps, payload: payload}, nil

	case jobs.JobTypeAnalyzer:
		payload, err := decodeAnalyzerPayload(cfg.Payload)
		if err != nil {
			return nil, err
		}
		return &Analyzer{deps: deps, payload: payload}, nil

	case jobs.JobTypeBanChecker:
		payload, err := decodeBanCheckerPayload(cfg.Payload)
		if err != nil {
			return nil, err
		}
		return &BanChecker{deps: deps, payload: payload}, nil

	default:
		return nil, errors.NewValidationError("unknown job type %q", cfg.Type)
	}
}

// decodePayload unmarshals raw payload JSON into dst.
func decodePayload(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.NewValidationError("malformed payload: %v", err)
	}
	return nil
}

// requirePositive validates one required positive integer payload key.
func requirePositive(name string, v *int) (int, error) {
	if v == nil {
		return 0, errors.NewValidationError("payload missing required key %q", name)
	}
	if *v <= 0 {
		return 0, errors.NewValidationError("payload key %q must be positive, got %d", name, *v)
	}
	return *v, nil
}
