package tasks

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/riftwatch/smurfwatch/errors"
	"github.com/riftwatch/smurfwatch/jobs"
)

func configOf(jobType jobs.JobType, payload string) *jobs.JobConfiguration {
	return &jobs.JobConfiguration{
		ID:       1,
		Name:     "test",
		Type:     jobType,
		Interval: time.Minute,
		Enabled:  true,
		Payload:  json.RawMessage(payload),
	}
}

func TestNewBodyValidPayloads(t *testing.T) {
	cases := []struct {
		jobType jobs.JobType
		payload string
	}{
		{jobs.JobTypeTrackerUpdater, `{"players_per_run": 25}`},
		{jobs.JobTypeMatchFetcher, `{"discovered_players_per_run": 5, "matches_per_player_per_run": 10, "target_matches_per_player": 50}`},
		{jobs.JobTypeAnalyzer, `{"players_per_run": 20, "min_games": 30}`},
		{jobs.JobTypeBanChecker, `{"ban_check_days": 7, "max_checks_per_run": 40}`},
	}
	for _, tc := range cases {
		body, err := NewBody(configOf(tc.jobType, tc.payload), Deps{})
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.jobType, err)
			continue
		}
		if body.Type() != tc.jobType {
			t.Errorf("%s: body reports type %s", tc.jobType, body.Type())
		}
	}
}

func TestNewBodyMissingKeys(t *testing.T) {
	cases := []struct {
		jobType    jobs.JobType
		payload    string
		missingKey string
	}{
		{jobs.JobTypeTrackerUpdater, `{}`, "players_per_run"},
		{jobs.JobTypeMatchFetcher, `{"matches_per_player_per_run": 10, "target_matches_per_player": 50}`, "discovered_players_per_run"},
		{jobs.JobTypeMatchFetcher, `{"discovered_players_per_run": 5, "target_matches_per_player": 50}`, "matches_per_player_per_run"},
		{jobs.JobTypeMatchFetcher, `{"discovered_players_per_run": 5, "matches_per_player_per_run": 10}`, "target_matches_per_player"},
		{jobs.JobTypeAnalyzer, `{"players_per_run": 20}`, "min_games"},
		{jobs.JobTypeAnalyzer, `{"min_games": 30}`, "players_per_run"},
		{jobs.JobTypeBanChecker, `{"ban_check_days": 7}`, "max_checks_per_run"},
		{jobs.JobTypeBanChecker, `{}`, "ban_check_days"},
	}
	for _, tc := range cases {
		_, err := NewBody(configOf(tc.jobType, tc.payload), Deps{})
		if !errors.Is(err, errors.ErrValidation) {
			t.Errorf("%s %s: expected validation error, got %v", tc.jobType, tc.payload, err)
			continue
		}
		if !strings.Contains(err.Error(), tc.missingKey) {
			t.Errorf("%s: error should name %q, got %q", tc.jobType, tc.missingKey, err.Error())
		}
	}
}

func TestNewBodyRejectsNonPositiveValues(t *testing.T) {
	_, err := NewBody(configOf(jobs.JobTypeTrackerUpdater, `{"players_per_run": 0}`), Deps{})
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected validation error for zero value, got %v", err)
	}

	_, err = NewBody(configOf(jobs.JobTypeBanChecker, `{"ban_check_days": -3, "max_checks_per_run": 10}`), Deps{})
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected validation error for negative value, got %v", err)
	}
}

func TestNewBodyMalformedPayload(t *testing.T) {
	_, err := NewBody(configOf(jobs.JobTypeAnalyzer, `{"players_per_run": `), Deps{})
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected validation error for malformed JSON, got %v", err)
	}
}

func TestNewBodyUnknownType(t *testing.T) {
	_, err := NewBody(configOf(jobs.JobType("mystery"), `{}`), Deps{})
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected validation error for unknown type, got %v", err)
	}
}
