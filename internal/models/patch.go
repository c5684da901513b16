package models

import "time"

// HabitPatch is a partial update. Nil fields are left untouched.
type HabitPatch struct {
	Name                *string         `json:"name,omitempty"`
	Description         *string         `json:"description,omitempty"`
	TargetDays          *[]time.Weekday `json:"targetDays,omitempty"`
	Tags                *[]string       `json:"tags,omitempty"`
	Archived            *bool           `json:"archived,omitempty"`
	NotificationEnabled *bool           `json:"notificationEnabled,omitempty"`
	NotificationTime    *string         `json:"notificationTime,omitempty"`
	// UpdatedAt carries a replica's modification time when a patch is
	// propagated during sync. Local edits leave it nil.
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// IsEmpty reports whether the patch changes no user-visible field.
func (p HabitPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.TargetDays == nil && p.Tags == nil &&
		p.Archived == nil && p.NotificationEnabled == nil && p.NotificationTime == nil
}

// Apply returns a copy of h with the patch fields overlaid. Tags are
// normalized; weekdays are copied as given.
func (p HabitPatch) Apply(h Habit) Habit {
	out := h.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.TargetDays != nil {
		out.TargetDays = append([]time.Weekday{}, (*p.TargetDays)...)
	}
	if p.Tags != nil {
		out.Tags = NormalizeTags(*p.Tags)
	}
	if p.Archived != nil {
		out.Archived = *p.Archived
	}
	if p.NotificationEnabled != nil {
		out.NotificationEnabled = *p.NotificationEnabled
	}
	if p.NotificationTime != nil {
		out.NotificationTime = *p.NotificationTime
	}
	if p.UpdatedAt != nil {
		out.UpdatedAt = *p.UpdatedAt
	}
	return out
}

// PatchFromHabit builds a patch carrying every mutable field of h, including
// its modification time.
func PatchFromHabit(h Habit) HabitPatch {
	c := h.Clone()
	days := c.TargetDays
	if days == nil {
		days = []time.Weekday{}
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	updated := c.UpdatedAt
	return HabitPatch{
		Name:                &c.Name,
		Description:         &c.Description,
		TargetDays:          &days,
		Tags:                &tags,
		Archived:            &c.Archived,
		NotificationEnabled: &c.NotificationEnabled,
		NotificationTime:    &c.NotificationTime,
		UpdatedAt:           &updated,
	}
}
