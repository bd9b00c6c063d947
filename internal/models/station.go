package models

type Station struct {
	StationID         string `json:"station_id"`
	Name              string `json:"name"`
	Capacity          int    `json:"capacity"`
	AvgServiceMinutes int    `json:"avg_service_minutes"`
}
