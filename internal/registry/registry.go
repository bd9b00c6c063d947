package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"deskflow/dispatch-service/internal/models"
)

// Registry holds the station configuration. It is populated once at
// startup and read-only afterward; the dispatcher never mutates it.
type Registry struct {
	order    []string
	stations map[string]models.Station
}

func New(stations []models.Station) (*Registry, error) {
	reg := &Registry{stations: make(map[string]models.Station, len(stations))}
	for _, station := range stations {
		station.StationID = strings.TrimSpace(station.StationID)
		if station.StationID == "" {
			return nil, fmt.Errorf("station %q: station_id is required", station.Name)
		}
		if _, exists := reg.stations[station.StationID]; exists {
			return nil, fmt.Errorf("station %q: duplicate station_id", station.StationID)
		}
		if station.Capacity < 1 {
			return nil, fmt.Errorf("station %q: capacity must be at least 1", station.StationID)
		}
		if station.AvgServiceMinutes <= 0 {
			return nil, fmt.Errorf("station %q: avg_service_minutes must be positive", station.StationID)
		}
		reg.stations[station.StationID] = station
		reg.order = append(reg.order, station.StationID)
	}
	return reg, nil
}

// LoadFile reads a JSON array of stations.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations file: %w", err)
	}
	var stations []models.Station
	if err := json.Unmarshal(raw, &stations); err != nil {
		return nil, fmt.Errorf("parse stations file: %w", err)
	}
	if len(stations) == 0 {
		return nil, fmt.Errorf("stations file %s defines no stations", path)
	}
	return New(stations)
}

func (r *Registry) Get(stationID string) (models.Station, bool) {
	station, ok := r.stations[stationID]
	return station, ok
}

// List returns stations in configuration order.
func (r *Registry) List() []models.Station {
	out := make([]models.Station, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.stations[id])
	}
	return out
}
