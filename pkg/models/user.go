package models

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

type User struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	Phone              *string            `json:"phone"`
	Role               Role               `json:"role"`
	City               string             `json:"city"`
	IsVerified         bool               `json:"isVerified"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	RejectionReason    string             `json:"rejectionReason,omitempty"`
	PushChatID         *int64             `json:"pushChatId,omitempty"`
	LastActivity       *time.Time         `json:"lastActivity"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// UserSummary is the admin listing row.
type UserSummary struct {
	User
	RequestCount int  `json:"requestCount"`
	Inactive     bool `json:"inactive"`
}

type ProviderStatus string

const (
	ProviderPending   ProviderStatus = "pending"
	ProviderApproved  ProviderStatus = "approved"
	ProviderSuspended ProviderStatus = "suspended"
	ProviderRejected  ProviderStatus = "rejected"
	ProviderWithdrawn ProviderStatus = "withdrawn"
)

// IsAdminSettable reports whether an admin may move a provider to s.
// Withdrawn is reserved for the provider.
func (s ProviderStatus) IsAdminSettable() bool {
	switch s {
	case ProviderPending, ProviderApproved, ProviderSuspended, ProviderRejected:
		return true
	}
	return false
}

type ProviderLocation struct {
	City       string   `json:"city"`
	Region     string   `json:"region"`
	Properties []string `json:"properties"`
}

type Provider struct {
	UserID           string           `json:"userId"`
	Name             string           `json:"name"`
	Service          ServiceType      `json:"service"`
	Location         ProviderLocation `json:"location"`
	ClientTypes      []string         `json:"clientTypes"`
	Status           ProviderStatus   `json:"status"`
	SubmissionTime   time.Time        `json:"submissionTime"`
	ApprovalTime     *time.Time       `json:"approvalTime"`
	ReputationPoints int              `json:"reputationPoints"`
}

func (p *Provider) Serves(service ServiceType, city string) bool {
	return p.Status == ProviderApproved && p.Service == service && p.Location.City == city
}

type ProviderApplication struct {
	Name        string           `json:"name"`
	Service     ServiceType      `json:"service"`
	Location    ProviderLocation `json:"location"`
	ClientTypes []string         `json:"clientTypes"`
}
