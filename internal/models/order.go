package models

import "time"

// OrderStatus enumerates lifecycle states for a printing order.
type OrderStatus string

const (
	OrderStatusUnsubmitted   OrderStatus = "UNSUBMITTED"
	OrderStatusSubmitted     OrderStatus = "SUBMITTED"
	OrderStatusConfirmed     OrderStatus = "CONFIRMED"
	OrderStatusAutoConfirmed OrderStatus = "AUTO_CONFIRMED"
	OrderStatusQueued        OrderStatus = "QUEUED"
	OrderStatusPickup        OrderStatus = "PICKUP"
	OrderStatusOngoing       OrderStatus = "ONGOING"
	OrderStatusPackaging     OrderStatus = "PACKAGING"
	OrderStatusDelivery      OrderStatus = "DELIVERY"
	OrderStatusCompleted     OrderStatus = "COMPLETED"
	OrderStatusAborted       OrderStatus = "ABORTED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusAborted
}

// Order is one school's printing job, the root aggregate for classes and students.
type Order struct {
	ID                      string      `db:"id" json:"id"`
	SchoolID                string      `db:"school_id" json:"school_id"`
	SchoolName              string      `db:"school_name" json:"school_name"`
	Status                  OrderStatus `db:"status" json:"status"`
	ScheduledDate           *time.Time  `db:"scheduled_date" json:"scheduled_date,omitempty"`
	EstimatedDurationHours  *float64    `db:"estimated_duration_hours" json:"estimated_duration_hours,omitempty"`
	QueuedAt                *time.Time  `db:"queued_at" json:"queued_at,omitempty"`
	TotalStudents           int         `db:"total_students" json:"total_students"`
	TotalGarments           int         `db:"total_garments" json:"total_garments"`
	TotalDarkGarments       int         `db:"total_dark_garments" json:"total_dark_garments"`
	TotalLightGarments      int         `db:"total_light_garments" json:"total_light_garments"`
	SubmittedTotalStudents  *int        `db:"submitted_total_students" json:"submitted_total_students,omitempty"`
	SubmittedTotalGarments  *int        `db:"submitted_total_garments" json:"submitted_total_garments,omitempty"`
	SubmittedDarkGarments   *int        `db:"submitted_total_dark_garments" json:"submitted_total_dark_garments,omitempty"`
	SubmittedLightGarments  *int        `db:"submitted_total_light_garments" json:"submitted_total_light_garments,omitempty"`
	CreatedAt               time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderFilter constrains order listing queries.
type OrderFilter struct {
	SchoolID  string
	Status    []OrderStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
