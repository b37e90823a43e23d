package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// PoolSummary is one entry of the upstream pool listing.
type PoolSummary struct {
	ExternalID string   `json:"pool"`
	Symbol     string   `json:"symbol"`
	Chain      string   `json:"chain"`
	Project    string   `json:"project"`
	TVLUSD     *float64 `json:"tvlUsd"`
	APY        *float64 `json:"apy"`
}

// HistoryPoint is one entry of a pool's historical chart. The upstream keys the
// observation time under either "timestamp" or "date".
type HistoryPoint struct {
	Date      time.Time
	APY       *float64
	APYBase   *float64
	APYReward *float64
	TVLUSD    *float64
	IL7D      *float64
}

type historyPointJSON struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Date      json.RawMessage `json:"date"`
	APY       *float64        `json:"apy"`
	APYBase   *float64        `json:"apyBase"`
	APYReward *float64        `json:"apyReward"`
	TVLUSD    *float64        `json:"tvlUsd"`
	IL7D      *float64        `json:"il7d"`
}

func (p *HistoryPoint) UnmarshalJSON(data []byte) error {
	var raw historyPointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ts := raw.Timestamp
	if len(ts) == 0 || string(ts) == "null" {
		ts = raw.Date
	}
	if len(ts) == 0 || string(ts) == "null" {
		return fmt.Errorf("history point has no timestamp or date")
	}

	parsed, err := parseObservationTime(ts)
	if err != nil {
		return err
	}

	p.Date = parsed
	p.APY = raw.APY
	p.APYBase = raw.APYBase
	p.APYReward = raw.APYReward
	p.TVLUSD = raw.TVLUSD
	p.IL7D = raw.IL7D
	return nil
}

// parseObservationTime accepts RFC3339 strings, bare dates, and unix seconds.
func parseObservationTime(raw json.RawMessage) (time.Time, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if tm, err := time.Parse(layout, asString); err == nil {
				return tm.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized time %q", asString)
	}

	secs, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %s", raw)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// DayUTC truncates a timestamp to UTC day granularity, the natural key used
// for metric storage.
func DayUTC(tm time.Time) time.Time {
	tm = tm.UTC()
	return time.Date(tm.Year(), tm.Month(), tm.Day(), 0, 0, 0, 0, time.UTC)
}
