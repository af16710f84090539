package models

import "time"

// Class is a roster group of students within an order.
type Class struct {
	ID                     string    `db:"id" json:"id"`
	OrderID                string    `db:"order_id" json:"order_id"`
	Name                   string    `db:"name" json:"name"`
	IsAttended             bool      `db:"is_attended" json:"is_attended"`
	TotalStudentsToServe   int       `db:"total_students_to_serve" json:"total_students_to_serve"`
	SubmittedStudentsCount *int      `db:"submitted_students_count" json:"submitted_students_count,omitempty"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}
