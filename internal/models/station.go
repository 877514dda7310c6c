package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Station is a preparation area responsible for a category of items
type Station uint8

const (
	StationNone Station = iota
	StationKitchen
	StationBar
)

// AllStations lists every real station in display order
var AllStations = []Station{StationKitchen, StationBar}

func (s Station) String() string {
	switch s {
	case StationKitchen:
		return "kitchen"
	case StationBar:
		return "bar"
	default:
		return ""
	}
}

// ParseStation maps a wire value to a Station. The empty string is StationNone.
func ParseStation(value string) (Station, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return StationNone, nil
	case "kitchen":
		return StationKitchen, nil
	case "bar":
		return StationBar, nil
	default:
		return StationNone, fmt.Errorf("unknown station %q: %w", value, ErrInvalidInput)
	}
}

func (s Station) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Station) UnmarshalText(text []byte) error {
	parsed, err := ParseStation(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// StationSet is a bitset over Station. The zero value is the empty set.
type StationSet uint8

// NewStationSet builds a set from the given stations, ignoring StationNone
func NewStationSet(stations ...Station) StationSet {
	var set StationSet
	for _, st := range stations {
		set = set.Add(st)
	}
	return set
}

func (s StationSet) Add(st Station) StationSet {
	if st == StationNone {
		return s
	}
	return s | 1<<st
}

func (s StationSet) Has(st Station) bool {
	return st != StationNone && s&(1<<st) != 0
}

func (s StationSet) Union(other StationSet) StationSet {
	return s | other
}

// SubsetOf reports whether every station in s is also in other
func (s StationSet) SubsetOf(other StationSet) bool {
	return s&^other == 0
}

func (s StationSet) IsEmpty() bool {
	return s == 0
}

// Stations returns the members in display order
func (s StationSet) Stations() []Station {
	out := make([]Station, 0, len(AllStations))
	for _, st := range AllStations {
		if s.Has(st) {
			out = append(out, st)
		}
	}
	return out
}

func (s StationSet) String() string {
	names := make([]string, 0, len(AllStations))
	for _, st := range s.Stations() {
		names = append(names, st.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}

func (s StationSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Stations())
}

func (s *StationSet) UnmarshalJSON(data []byte) error {
	var stations []Station
	if err := json.Unmarshal(data, &stations); err != nil {
		return err
	}
	*s = NewStationSet(stations...)
	return nil
}
