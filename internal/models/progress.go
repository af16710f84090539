package models

// ClassStatus is the derived per-class progress label.
type ClassStatus string

const (
	ClassStatusPending   ClassStatus = "PENDING"
	ClassStatusPrinting  ClassStatus = "PRINTING"
	ClassStatusCompleted ClassStatus = "COMPLETED"
)

// StudentProgress pairs a student with its derived phase.
type StudentProgress struct {
	Student
	Phase StudentPhase `json:"phase"`
}

// ClassProgress aggregates student phases within one class.
type ClassProgress struct {
	Class
	Status       ClassStatus       `json:"status"`
	ServedCount  int               `json:"served_count"`
	StudentCount int               `json:"student_count"`
	Students     []StudentProgress `json:"students"`
}

// CurrentPointer identifies the first unserved student in stable order.
// Derived on every read, never persisted.
type CurrentPointer struct {
	ClassID     string `json:"class_id"`
	ClassName   string `json:"class_name"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
}

// OrderProgress is the full aggregated view for one order.
type OrderProgress struct {
	OrderID    string          `json:"order_id"`
	Status     OrderStatus     `json:"status"`
	Percentage float64         `json:"percentage"`
	Served     int             `json:"served"`
	Total      int             `json:"total"`
	Classes    []ClassProgress `json:"classes"`
	Current    *CurrentPointer `json:"current,omitempty"`
	Countdown  *Countdown      `json:"countdown,omitempty"`
}
