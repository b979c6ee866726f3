package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type ProfileModel struct {
	UserID            string `gorm:"primaryKey"`
	Email             string
	Username          string
	ProfilePictureURL string
	UpdatedAt         time.Time
}

type TaskModel struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string
	Priority    string `gorm:"not null"`
	Category    string
	DueDate     int64
	IsCompleted bool
	CreatedAt   int64 `gorm:"autoCreateTime:false;index"`
}

type EventModel struct {
	ID           string    `gorm:"primaryKey"`
	UserID       string    `gorm:"not null;index:idx_event_user_start"`
	Title        string    `gorm:"not null"`
	Description  string
	StartTime    time.Time `gorm:"not null;index:idx_event_user_start"`
	EndTime      time.Time `gorm:"not null"`
	ReminderTime *time.Time
	Type         string `gorm:"not null"`
	Priority     string `gorm:"not null"`
	Location     string
	IsOnline     bool
	MeetingLink  string
	CourseID     string
	StudyGroupID string         `gorm:"index"`
	Participants datatypes.JSON `gorm:"type:jsonb"`
	Status       string         `gorm:"not null"`
	CreatedAt    time.Time      `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime:false"`
}

type GroupModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Description  string
	Members      datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedBy    string         `gorm:"not null;index"`
	CreatedAt    int64          `gorm:"autoCreateTime:false"`
	WhatsAppLink string
}

type DocumentModel struct {
	ID                 string `gorm:"primaryKey"`
	UserID             string `gorm:"not null;index:idx_document_owner_upload"`
	Title              string `gorm:"not null"`
	Description        string
	FileName           string
	FileURL            string
	FileType           string
	FileSize           int64
	MimeType           string
	StorageKey         string
	CourseID           string
	StudyGroupID       string `gorm:"index"`
	Tags               datatypes.JSON `gorm:"type:jsonb"`
	Category           string
	Visibility         string `gorm:"not null"`
	SharedWithUserIDs  datatypes.JSON `gorm:"type:jsonb"`
	SharedWithGroupIDs datatypes.JSON `gorm:"type:jsonb"`
	Version            int
	PreviousVersions   datatypes.JSON `gorm:"type:jsonb"`
	UploadDate         time.Time      `gorm:"not null;index:idx_document_owner_upload"`
	LastModified       time.Time
	LastAccessedDate   *time.Time
	DownloadCount      int
	ViewCount          int
	Likes              int
	Comments           datatypes.JSON `gorm:"type:jsonb"`
}
