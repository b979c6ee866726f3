package store

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"edusync/pkg/domain"
)

func toJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func fromJSON[T any](raw datatypes.JSON, column string) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", column, err)
	}
	return out, nil
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func taskToModel(t domain.Task) TaskModel {
	return TaskModel{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Category:    t.Category,
		DueDate:     t.DueDate,
		IsCompleted: t.IsCompleted,
		CreatedAt:   t.CreatedAt,
	}
}

func taskFromModel(m TaskModel) domain.Task {
	return domain.Task{
		ID:          m.ID,
		UserID:      m.UserID,
		Title:       m.Title,
		Description: m.Description,
		Priority:    domain.ParsePriority(m.Priority),
		Category:    m.Category,
		DueDate:     m.DueDate,
		IsCompleted: m.IsCompleted,
		CreatedAt:   m.CreatedAt,
	}
}

func eventToModel(e domain.Event) (EventModel, error) {
	participants, err := toJSON(nonNil(e.Participants))
	if err != nil {
		return EventModel{}, err
	}
	return EventModel{
		ID:           e.ID,
		UserID:       e.UserID,
		Title:        e.Title,
		Description:  e.Description,
		StartTime:    e.StartTime,
		EndTime:      e.EndTime,
		ReminderTime: e.ReminderTime,
		Type:         string(e.Type),
		Priority:     string(e.Priority),
		Location:     e.Location,
		IsOnline:     e.IsOnline,
		MeetingLink:  e.MeetingLink,
		CourseID:     e.CourseID,
		StudyGroupID: e.StudyGroupID,
		Participants: participants,
		Status:       string(e.Status),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}, nil
}

func eventFromModel(m EventModel) (domain.Event, error) {
	participants, err := fromJSON[[]string](m.Participants, "participants")
	if err != nil {
		return domain.Event{}, err
	}
	return domain.Event{
		ID:           m.ID,
		UserID:       m.UserID,
		Title:        m.Title,
		Description:  m.Description,
		StartTime:    m.StartTime,
		EndTime:      m.EndTime,
		ReminderTime: m.ReminderTime,
		Type:         domain.EventType(m.Type),
		Priority:     domain.ParsePriority(m.Priority),
		Location:     m.Location,
		IsOnline:     m.IsOnline,
		MeetingLink:  m.MeetingLink,
		CourseID:     m.CourseID,
		StudyGroupID: m.StudyGroupID,
		Participants: nonNil(participants),
		Status:       domain.EventStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

func groupToModel(g domain.Group) (GroupModel, error) {
	members, err := toJSON(nonNil(g.Members))
	if err != nil {
		return GroupModel{}, err
	}
	return GroupModel{
		ID:           g.ID,
		Name:         g.Name,
		Description:  g.Description,
		Members:      members,
		CreatedBy:    g.CreatedBy,
		CreatedAt:    g.CreatedAt,
		WhatsAppLink: g.WhatsAppLink,
	}, nil
}

func groupFromModel(m GroupModel) (domain.Group, error) {
	members, err := fromJSON[[]string](m.Members, "members")
	if err != nil {
		return domain.Group{}, err
	}
	return domain.Group{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		Members:      nonNil(members),
		CreatedBy:    m.CreatedBy,
		CreatedAt:    m.CreatedAt,
		WhatsAppLink: m.WhatsAppLink,
	}, nil
}

func documentToModel(d domain.Document) (DocumentModel, error) {
	m := DocumentModel{
		ID:               d.ID,
		UserID:           d.UserID,
		Title:            d.Title,
		Description:      d.Description,
		FileName:         d.FileName,
		FileURL:          d.FileURL,
		FileType:         string(d.FileType),
		FileSize:         d.FileSize,
		MimeType:         d.MimeType,
		StorageKey:       d.StorageKey,
		CourseID:         d.CourseID,
		StudyGroupID:     d.StudyGroupID,
		Category:         string(d.Category),
		Visibility:       string(d.Visibility),
		Version:          d.Version,
		UploadDate:       d.UploadDate,
		LastModified:     d.LastModified,
		LastAccessedDate: d.LastAccessedDate,
		DownloadCount:    d.DownloadCount,
		ViewCount:        d.ViewCount,
		Likes:            d.Likes,
	}
	var err error
	if m.Tags, err = toJSON(nonNil(d.Tags)); err != nil {
		return m, err
	}
	if m.SharedWithUserIDs, err = toJSON(nonNil(d.SharedWithUserIDs)); err != nil {
		return m, err
	}
	if m.SharedWithGroupIDs, err = toJSON(nonNil(d.SharedWithGroupIDs)); err != nil {
		return m, err
	}
	if m.PreviousVersions, err = toJSON(nonNil(d.PreviousVersions)); err != nil {
		return m, err
	}
	if m.Comments, err = toJSON(nonNil(d.Comments)); err != nil {
		return m, err
	}
	return m, nil
}

func documentFromModel(m DocumentModel) (domain.Document, error) {
	d := domain.Document{
		ID:               m.ID,
		UserID:           m.UserID,
		Title:            m.Title,
		Description:      m.Description,
		FileName:         m.FileName,
		FileURL:          m.FileURL,
		FileType:         domain.FileType(m.FileType),
		FileSize:         m.FileSize,
		MimeType:         m.MimeType,
		StorageKey:       m.StorageKey,
		CourseID:         m.CourseID,
		StudyGroupID:     m.StudyGroupID,
		Category:         domain.DocumentCategory(m.Category),
		Visibility:       domain.Visibility(m.Visibility),
		Version:          m.Version,
		UploadDate:       m.UploadDate,
		LastModified:     m.LastModified,
		LastAccessedDate: m.LastAccessedDate,
		DownloadCount:    m.DownloadCount,
		ViewCount:        m.ViewCount,
		Likes:            m.Likes,
	}
	var err error
	if d.Tags, err = fromJSON[[]string](m.Tags, "tags"); err != nil {
		return d, err
	}
	if d.SharedWithUserIDs, err = fromJSON[[]string](m.SharedWithUserIDs, "shared_with_user_ids"); err != nil {
		return d, err
	}
	if d.SharedWithGroupIDs, err = fromJSON[[]string](m.SharedWithGroupIDs, "shared_with_group_ids"); err != nil {
		return d, err
	}
	if d.PreviousVersions, err = fromJSON[[]string](m.PreviousVersions, "previous_versions"); err != nil {
		return d, err
	}
	if d.Comments, err = fromJSON[[]domain.Comment](m.Comments, "comments"); err != nil {
		return d, err
	}
	d.Tags = nonNil(d.Tags)
	d.SharedWithUserIDs = nonNil(d.SharedWithUserIDs)
	d.SharedWithGroupIDs = nonNil(d.SharedWithGroupIDs)
	d.PreviousVersions = nonNil(d.PreviousVersions)
	d.Comments = nonNil(d.Comments)
	return d, nil
}

// nonNil keeps JSON lists as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
