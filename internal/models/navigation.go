package models

// ChildActionType distinguishes the navigation links a parent sees.
type ChildActionType string

const (
	ChildActionUnenrol   ChildActionType = "unenrol_child"
	ChildActionEnrolMore ChildActionType = "enrol_more_children"
	ChildActionEnrolSelf ChildActionType = "enrol_self"
)

// ChildAction is one link merged into the host-rendered course menu.
type ChildAction struct {
	Type        ChildActionType `json:"type"`
	ChildUserID int64           `json:"child_user_id,omitempty"`
	Label       string          `json:"label"`
	URL         string          `json:"url"`
}
