package dto

import "github.com/noah-isme/taskminder-go-api/internal/models"

// TeacherRequest is the payload for creating or replacing a teacher.
type TeacherRequest struct {
	Name             string `json:"name" validate:"required,min=1,max=255"`
	Subject          string `json:"subject" validate:"max=255"`
	DisplayNameFirst *bool  `json:"display_name_first"`
}

// TeacherResponse represents a teacher returned to clients.
type TeacherResponse struct {
	ID               uint   `json:"id"`
	Name             string `json:"name"`
	Subject          string `json:"subject"`
	DisplayNameFirst bool   `json:"display_name_first"`
	DisplayTitle     string `json:"display_title"`
	CreatedAt        int64  `json:"created_at"`
}

// NewTeacherResponse converts a teacher model to DTO.
func NewTeacherResponse(teacher models.Teacher) TeacherResponse {
	return TeacherResponse{
		ID:               teacher.ID,
		Name:             teacher.Name,
		Subject:          teacher.Subject,
		DisplayNameFirst: teacher.DisplayNameFirst,
		DisplayTitle:     displayTitle(teacher),
		CreatedAt:        teacher.CreatedAt,
	}
}

// NewTeacherResponseSlice converts a slice of models into DTOs.
func NewTeacherResponseSlice(teachers []models.Teacher) []TeacherResponse {
	out := make([]TeacherResponse, 0, len(teachers))
	for _, teacher := range teachers {
		out = append(out, NewTeacherResponse(teacher))
	}
	return out
}

func displayTitle(teacher models.Teacher) string {
	if teacher.Subject == "" {
		return teacher.Name
	}
	if teacher.DisplayNameFirst {
		return teacher.Name + " · " + teacher.Subject
	}
	return teacher.Subject + " · " + teacher.Name
}
