package domain

import "time"

type TaskPriority string

const (
	PriorityHigh   TaskPriority = "HIGH"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityLow    TaskPriority = "LOW"
)

// ParsePriority maps user input onto a priority, defaulting to MEDIUM.
func ParsePriority(s string) TaskPriority {
	switch TaskPriority(s) {
	case PriorityHigh, PriorityLow:
		return TaskPriority(s)
	default:
		return PriorityMedium
	}
}

type EventType string

const (
	EventLecture       EventType = "LECTURE"
	EventStudyGroup    EventType = "STUDY_GROUP"
	EventExam          EventType = "EXAM"
	EventAssignmentDue EventType = "ASSIGNMENT_DUE"
	EventWorkshop      EventType = "WORKSHOP"
	EventMeeting       EventType = "MEETING"
	EventOfficeHours   EventType = "OFFICE_HOURS"
	EventOther         EventType = "OTHER"
)

type EventStatus string

const (
	EventUpcoming   EventStatus = "UPCOMING"
	EventInProgress EventStatus = "IN_PROGRESS"
	EventCompleted  EventStatus = "COMPLETED"
	EventCancelled  EventStatus = "CANCELLED"
)

type FileType string

const (
	FilePDF          FileType = "PDF"
	FileDocument     FileType = "DOCUMENT"
	FileSpreadsheet  FileType = "SPREADSHEET"
	FilePresentation FileType = "PRESENTATION"
	FileImage        FileType = "IMAGE"
	FileVideo        FileType = "VIDEO"
	FileAudio        FileType = "AUDIO"
	FileCode         FileType = "CODE"
	FileOther        FileType = "OTHER"
)

type DocumentCategory string

const (
	CategoryLectureNotes      DocumentCategory = "LECTURE_NOTES"
	CategoryAssignment        DocumentCategory = "ASSIGNMENT"
	CategoryStudyGuide        DocumentCategory = "STUDY_GUIDE"
	CategoryResearchPaper     DocumentCategory = "RESEARCH_PAPER"
	CategoryProject           DocumentCategory = "PROJECT"
	CategoryExamPrep          DocumentCategory = "EXAM_PREP"
	CategoryReferenceMaterial DocumentCategory = "REFERENCE_MATERIAL"
	CategoryOther             DocumentCategory = "OTHER"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityShared  Visibility = "SHARED"
	VisibilityPublic  Visibility = "PUBLIC"
)

// Task is a to-do item owned by the user who created it.
// DueDate and CreatedAt are epoch milliseconds.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	UserID      string       `json:"userId"`
	Priority    TaskPriority `json:"priority"`
	Category    string       `json:"category"`
	DueDate     int64        `json:"dueDate"`
	IsCompleted bool         `json:"isCompleted"`
	CreatedAt   int64        `json:"createdAt"`
}

type Event struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	StartTime    time.Time    `json:"startTime"`
	EndTime      time.Time    `json:"endTime"`
	ReminderTime *time.Time   `json:"reminderTime,omitempty"`
	Type         EventType    `json:"type"`
	Priority     TaskPriority `json:"priority"`
	Location     string       `json:"location"`
	IsOnline     bool         `json:"isOnline"`
	MeetingLink  string       `json:"meetingLink"`
	CourseID     string       `json:"courseId,omitempty"`
	StudyGroupID string       `json:"studyGroupId,omitempty"`
	UserID       string       `json:"userId"`
	Participants []string     `json:"participants"`
	Status       EventStatus  `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Group is a study group. Members holds unique user ids and always
// contains CreatedBy.
type Group struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Members      []string `json:"members"`
	CreatedBy    string   `json:"createdBy"`
	CreatedAt    int64    `json:"createdAt"`
	WhatsAppLink string   `json:"whatsAppLink"`
}

type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Likes     int       `json:"likes"`
}

type Document struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	FileName   string   `json:"fileName"`
	FileURL    string   `json:"fileUrl"`
	FileType   FileType `json:"fileType"`
	FileSize   int64    `json:"fileSize"`
	MimeType   string   `json:"mimeType"`
	StorageKey string   `json:"-"`

	CourseID     string           `json:"courseId,omitempty"`
	StudyGroupID string           `json:"studyGroupId,omitempty"`
	Tags         []string         `json:"tags"`
	Category     DocumentCategory `json:"category"`

	UserID             string     `json:"userId"`
	Visibility         Visibility `json:"visibility"`
	SharedWithUserIDs  []string   `json:"sharedWithUserIds"`
	SharedWithGroupIDs []string   `json:"sharedWithGroupIds"`

	Version          int      `json:"version"`
	PreviousVersions []string `json:"previousVersions"`

	UploadDate       time.Time  `json:"uploadDate"`
	LastModified     time.Time  `json:"lastModified"`
	LastAccessedDate *time.Time `json:"lastAccessedDate,omitempty"`

	DownloadCount int       `json:"downloadCount"`
	ViewCount     int       `json:"viewCount"`
	Likes         int       `json:"likes"`
	Comments      []Comment `json:"comments"`
}

type UserProfile struct {
	Email             string `json:"email"`
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profilePictureUrl"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
