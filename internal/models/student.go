package models

import "time"

// StudentPhase is the derived per-student progress label.
type StudentPhase string

const (
	StudentPhaseWaiting   StudentPhase = "WAITING"
	StudentPhasePrinting  StudentPhase = "PRINTING"
	StudentPhasePackaging StudentPhase = "PACKAGING"
	StudentPhaseCompleted StudentPhase = "COMPLETED"
)

// Student is an individual garment-count record within a class.
type Student struct {
	ID                         string     `db:"id" json:"id"`
	OrderID                    string     `db:"order_id" json:"order_id"`
	ClassID                    string     `db:"class_id" json:"class_id"`
	FullName                   string     `db:"full_name" json:"full_name"`
	TotalLightGarmentCount     int        `db:"total_light_garment_count" json:"total_light_garment_count"`
	TotalDarkGarmentCount      int        `db:"total_dark_garment_count" json:"total_dark_garment_count"`
	SubmittedLightGarmentCount *int       `db:"submitted_light_garment_count" json:"submitted_light_garment_count,omitempty"`
	SubmittedDarkGarmentCount  *int       `db:"submitted_dark_garment_count" json:"submitted_dark_garment_count,omitempty"`
	PrintedLightGarmentCount   int        `db:"printed_light_garment_count" json:"printed_light_garment_count"`
	PrintedDarkGarmentCount    int        `db:"printed_dark_garment_count" json:"printed_dark_garment_count"`
	LightGarmentsPrinted       bool       `db:"light_garments_printed" json:"light_garments_printed"`
	DarkGarmentsPrinted        bool       `db:"dark_garments_printed" json:"dark_garments_printed"`
	IsServed                   bool       `db:"is_served" json:"is_served"`
	IsAudited                  bool       `db:"is_audited" json:"is_audited"`
	PrintingDoneAt             *time.Time `db:"printing_done_at" json:"printing_done_at,omitempty"`
	CreatedAt                  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                  time.Time  `db:"updated_at" json:"updated_at"`
}

// Phase derives the student's progress phase. Precedence order matters:
// served wins over fully printed, fully printed over partially printed.
func (s Student) Phase() StudentPhase {
	switch {
	case s.IsServed:
		return StudentPhaseCompleted
	case s.LightGarmentsPrinted && s.DarkGarmentsPrinted:
		return StudentPhasePackaging
	case s.PrintedLightGarmentCount > 0 || s.PrintedDarkGarmentCount > 0:
		return StudentPhasePrinting
	default:
		return StudentPhaseWaiting
	}
}
