package models

import "time"

type PointType string

const (
	PointContribution PointType = "contribution"
	PointReputation   PointType = "reputation"
)

func (p PointType) IsValid() bool {
	return p == PointContribution || p == PointReputation
}

type PointUserType string

const (
	PointUser     PointUserType = "User"
	PointProvider PointUserType = "Provider"
)

type PointEntry struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	OrderID     string        `json:"orderId,omitempty"`
	Description string        `json:"description"`
	PointType   PointType     `json:"pointType"`
	UserType    PointUserType `json:"userType"`
	PointAmount int           `json:"pointAmount"`
	CreatedAt   time.Time     `json:"createdAt"`
}
