package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStudentPhasePrecedence(t *testing.T) {
	tests := []struct {
		name    string
		student Student
		want    StudentPhase
	}{
		{
			name:    "no progress",
			student: Student{TotalLightGarmentCount: 2, TotalDarkGarmentCount: 1},
			want:    StudentPhaseWaiting,
		},
		{
			name: "partial light printing",
			student: Student{
				TotalLightGarmentCount:   2,
				TotalDarkGarmentCount:    1,
				PrintedLightGarmentCount: 1,
			},
			want: StudentPhasePrinting,
		},
		{
			name: "partial dark printing only",
			student: Student{
				TotalLightGarmentCount:  2,
				TotalDarkGarmentCount:   2,
				PrintedDarkGarmentCount: 1,
			},
			want: StudentPhasePrinting,
		},
		{
			name: "both flags set",
			student: Student{
				PrintedLightGarmentCount: 2,
				PrintedDarkGarmentCount:  1,
				LightGarmentsPrinted:     true,
				DarkGarmentsPrinted:      true,
			},
			want: StudentPhasePackaging,
		},
		{
			name: "one flag set keeps printing",
			student: Student{
				PrintedLightGarmentCount: 2,
				LightGarmentsPrinted:     true,
			},
			want: StudentPhasePrinting,
		},
		{
			name: "served wins over everything",
			student: Student{
				IsServed:             true,
				LightGarmentsPrinted: true,
				DarkGarmentsPrinted:  true,
			},
			want: StudentPhaseCompleted,
		},
		{
			name:    "served without flags still completed",
			student: Student{IsServed: true},
			want:    StudentPhaseCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.student.Phase())
		})
	}
}
