package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxFileSize caps a single document upload at 50 MiB.
const MaxFileSize int64 = 50 * 1024 * 1024

const (
	MimePDF  = "application/pdf"
	MimeDoc  = "application/msword"
	MimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeXls  = "application/vnd.ms-excel"
	MimeXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimePpt  = "application/vnd.ms-powerpoint"
	MimePptx = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// IsOverdue reports whether an open task is past its due date.
func (t Task) IsOverdue(now time.Time) bool {
	if t.IsCompleted || t.DueDate == 0 {
		return false
	}
	return now.UnixMilli() > t.DueDate
}

// IsHappeningNow reports whether now falls inside [StartTime, EndTime].
func (e Event) IsHappeningNow(now time.Time) bool {
	return !now.Before(e.StartTime) && !now.After(e.EndTime)
}

func (e Event) IsOverdue(now time.Time) bool {
	return now.After(e.EndTime)
}

func (e Event) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// ShouldSendReminder is true between the reminder time and the start.
func (e Event) ShouldSendReminder(now time.Time) bool {
	if e.ReminderTime == nil {
		return false
	}
	return !now.Before(*e.ReminderTime) && now.Before(e.StartTime)
}

func (g Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// WithMember returns a copy of g with userID added to Members unless it
// is already present.
func (g Group) WithMember(userID string) Group {
	if g.HasMember(userID) {
		return g
	}
	members := make([]string, 0, len(g.Members)+1)
	members = append(members, g.Members...)
	g.Members = append(members, userID)
	return g
}

func (d Document) IsOwnedBy(userID string) bool {
	return d.UserID == userID
}

// CanBeAccessedBy applies the visibility rules. A SHARED document is
// reachable by listed users and, when shared with any group, by everyone
// the caller has already resolved as a group member.
func (d Document) CanBeAccessedBy(userID string) bool {
	switch {
	case d.UserID == userID:
		return true
	case d.Visibility == VisibilityPublic:
		return true
	case d.Visibility == VisibilityShared:
		for _, id := range d.SharedWithUserIDs {
			if id == userID {
				return true
			}
		}
		return len(d.SharedWithGroupIDs) > 0
	default:
		return false
	}
}

func (d Document) FormattedFileSize() string {
	switch {
	case d.FileSize < 1024:
		return fmt.Sprintf("%d B", d.FileSize)
	case d.FileSize < 1024*1024:
		return fmt.Sprintf("%d KB", d.FileSize/1024)
	case d.FileSize < 1024*1024*1024:
		return fmt.Sprintf("%d MB", d.FileSize/(1024*1024))
	default:
		return fmt.Sprintf("%d GB", d.FileSize/(1024*1024*1024))
	}
}

func (d Document) IsVersioned() bool {
	return d.Version > 1 || len(d.PreviousVersions) > 0
}

func (d Document) HasComments() bool {
	return len(d.Comments) > 0
}

// IsRecent reports whether the document was uploaded within the last days.
func (d Document) IsRecent(now time.Time, days int) bool {
	return now.Sub(d.UploadDate) <= time.Duration(days)*24*time.Hour
}

// FileTypeFromMIME classifies a MIME type into a FileType.
func FileTypeFromMIME(mime string) FileType {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case MimePDF:
		return FilePDF
	case MimeDoc, MimeDocx, "application/vnd.oasis.opendocument.text", "text/plain", "text/markdown":
		return FileDocument
	case MimeXls, MimeXlsx, "text/csv":
		return FileSpreadsheet
	case MimePpt, MimePptx:
		return FilePresentation
	}
	switch {
	case strings.HasPrefix(mime, "image/"):
		return FileImage
	case strings.HasPrefix(mime, "video/"):
		return FileVideo
	case strings.HasPrefix(mime, "audio/"):
		return FileAudio
	case strings.HasPrefix(mime, "text/x-"), mime == "application/json", mime == "application/javascript":
		return FileCode
	default:
		return FileOther
	}
}
