package ingest

import "gear-maintenance-backend/internal/model"

// ApiResponse models the top-level structure of the activity feed's response.
type ApiResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int        `json:"page"`
		PageSize int        `json:"pageSize"`
		Total    int        `json:"total"`
		Items    []FeedItem `json:"items"`
	} `json:"data"`
}

// FeedItem is one activity as reported by the feed. Measurements arrive as
// display strings, e.g. "42,3 km", "1:23:45" or "650 kcal".
type FeedItem struct {
	ID       int64        `json:"id"`
	UserID   int64        `json:"userId"`
	What     model.TypeID `json:"what"`
	Name     string       `json:"name"`
	Start    string       `json:"start"`
	Gear     *int64       `json:"gear"`
	Distance string       `json:"distance"`
	Climb    *int64       `json:"climb"`
	Descend  *int64       `json:"descend"`
	Time     string       `json:"movingTime"`
	Duration string       `json:"duration"`
	Energy   string       `json:"energy"`
}
