package domain

import (
	"testing"
	"time"
)

func TestGroupWithMemberIsSetUnion(t *testing.T) {
	g := Group{ID: "g1", Members: []string{"u1"}, CreatedBy: "u1"}
	g = g.WithMember("u2")
	g = g.WithMember("u2")
	g = g.WithMember("u1")
	if len(g.Members) != 2 {
		t.Fatalf("members = %v, want [u1 u2]", g.Members)
	}
	if !g.HasMember("u2") {
		t.Fatalf("expected u2 to be a member")
	}
}

func TestGroupWithMemberDoesNotAliasInput(t *testing.T) {
	base := make([]string, 1, 4)
	base[0] = "u1"
	g := Group{Members: base}
	_ = g.WithMember("u2")
	if got := base[:2][1]; got == "u2" {
		t.Fatalf("WithMember wrote into the caller's backing array")
	}
}

func TestDocumentCanBeAccessedBy(t *testing.T) {
	cases := []struct {
		name string
		doc  Document
		user string
		want bool
	}{
		{"owner", Document{UserID: "u1", Visibility: VisibilityPrivate}, "u1", true},
		{"private", Document{UserID: "u1", Visibility: VisibilityPrivate}, "u2", false},
		{"public", Document{UserID: "u1", Visibility: VisibilityPublic}, "u2", true},
		{"shared with user", Document{UserID: "u1", Visibility: VisibilityShared, SharedWithUserIDs: []string{"u2"}}, "u2", true},
		{"shared with nobody", Document{UserID: "u1", Visibility: VisibilityShared}, "u2", false},
		{"shared with group", Document{UserID: "u1", Visibility: VisibilityShared, SharedWithGroupIDs: []string{"g1"}}, "u3", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.doc.CanBeAccessedBy(tc.user); got != tc.want {
				t.Fatalf("CanBeAccessedBy(%q) = %v, want %v", tc.user, got, tc.want)
			}
		})
	}
}

func TestDocumentFormattedFileSize(t *testing.T) {
	cases := map[int64]string{
		512:                    "512 B",
		2048:                   "2 KB",
		5 * 1024 * 1024:        "5 MB",
		3 * 1024 * 1024 * 1024: "3 GB",
	}
	for size, want := range cases {
		if got := (Document{FileSize: size}).FormattedFileSize(); got != want {
			t.Fatalf("FormattedFileSize(%d) = %q, want %q", size, got, want)
		}
	}
}

func TestEventReminderWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	reminder := start.Add(-30 * time.Minute)
	e := Event{StartTime: start, EndTime: start.Add(time.Hour), ReminderTime: &reminder}

	if e.ShouldSendReminder(reminder.Add(-time.Minute)) {
		t.Fatalf("reminder fired too early")
	}
	if !e.ShouldSendReminder(reminder.Add(time.Minute)) {
		t.Fatalf("reminder should fire inside the window")
	}
	if e.ShouldSendReminder(start) {
		t.Fatalf("reminder should stop at start time")
	}
	if !e.IsHappeningNow(start.Add(10 * time.Minute)) {
		t.Fatalf("expected event to be in progress")
	}
	if e.Duration() != time.Hour {
		t.Fatalf("duration = %v, want 1h", e.Duration())
	}
}

func TestFileTypeFromMIME(t *testing.T) {
	cases := map[string]FileType{
		"application/pdf":          FilePDF,
		MimeDocx:                   FileDocument,
		"text/csv; charset=utf-8":  FileSpreadsheet,
		MimePptx:                   FilePresentation,
		"image/png":                FileImage,
		"video/mp4":                FileVideo,
		"audio/mpeg":               FileAudio,
		"text/x-go":                FileCode,
		"application/octet-stream": FileOther,
	}
	for mime, want := range cases {
		if got := FileTypeFromMIME(mime); got != want {
			t.Fatalf("FileTypeFromMIME(%q) = %s, want %s", mime, got, want)
		}
	}
}

func TestTaskIsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := Task{DueDate: now.Add(-time.Hour).UnixMilli()}
	if !past.IsOverdue(now) {
		t.Fatalf("expected overdue task")
	}
	past.IsCompleted = true
	if past.IsOverdue(now) {
		t.Fatalf("completed task cannot be overdue")
	}
	if (Task{}).IsOverdue(now) {
		t.Fatalf("task without due date cannot be overdue")
	}
}
