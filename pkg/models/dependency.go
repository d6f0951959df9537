package models

type Dependency struct {
	TaskID          string `json:"task_id"`
	DependsOnTaskID string `json:"depends_on_task_id"`

	// Helper fields for staging/resolution
	ProjectID          string `json:"project_id,omitempty"`
	TaskTitle          string `json:"task_title,omitempty"`
	DependsOnTaskTitle string `json:"depends_on_task_title,omitempty"`
}
