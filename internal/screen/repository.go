package screen

import (
	"context"
	"io"

	"edusync/pkg/domain"
)

type RepositoryState struct {
	Documents    []domain.Document `json:"documents"`
	IsLoading    bool              `json:"isLoading"`
	IsUploading  bool              `json:"isUploading"`
	Deleting     map[string]bool   `json:"deleting"`
	Error        string            `json:"error,omitempty"`
	UploadPhase  Phase             `json:"uploadPhase"`
	LastUploadID string            `json:"lastUploadId,omitempty"`
}

// Repository is the user's document library.
type Repository struct {
	*base
	backend Backend
	state   *State[RepositoryState]
}

func NewRepository(ctx context.Context, d Deps) *Repository {
	d = d.withDefaults()
	r := &Repository{
		base:    newBase(ctx, "repository", d.Session.CurrentUserID(), d),
		backend: d.Backend,
		state: NewState(RepositoryState{
			Documents:   []domain.Document{},
			IsLoading:   true,
			Deleting:    map[string]bool{},
			UploadPhase: PhaseIdle,
		}),
	}
	r.closeWith(r.state.Close)
	_ = r.restart(r.load)
	return r
}

func (r *Repository) State() *State[RepositoryState] { return r.state }

func (r *Repository) load(ctx context.Context) {
	r.state.Update(func(s RepositoryState) RepositoryState {
		s.IsLoading = true
		s.Error = ""
		return s
	})
	follow(ctx, r.backend.WatchUserDocuments(ctx, r.userID),
		func(docs []domain.Document) {
			docs = nonNil(docs)
			r.state.Update(func(s RepositoryState) RepositoryState {
				s.Documents = docs
				s.IsLoading = false
				return s
			})
		},
		func(err error) {
			r.state.Update(func(s RepositoryState) RepositoryState {
				s.IsLoading = false
				s.Error = err.Error()
				return s
			})
			r.report(err)
		})
}

func (r *Repository) Refresh() error {
	return r.restart(r.load)
}

// Upload stores a new document owned by the current user. Only one upload
// runs at a time; the document list picks it up from the live feed.
func (r *Repository) Upload(doc domain.Document, body io.Reader, size int64) error {
	err := begin(r.state, func(s RepositoryState) (RepositoryState, bool) {
		if s.UploadPhase.InFlight() {
			return s, false
		}
		s.IsUploading = true
		s.UploadPhase = PhaseSubmitting
		s.Error = ""
		return s, true
	})
	if err != nil {
		return err
	}
	doc.UserID = r.userID
	r.launch("upload_document", func(ctx context.Context) error {
		id, err := r.backend.UploadDocument(ctx, doc, body, size)
		r.state.Update(func(s RepositoryState) RepositoryState {
			s.IsUploading = false
			if err != nil {
				s.Error = err.Error()
				s.UploadPhase = PhaseFailed
				return s
			}
			s.UploadPhase = PhaseSucceeded
			s.LastUploadID = id
			return s
		})
		if err != nil && ctx.Err() == nil {
			r.report(err)
		}
		return nil
	})
	return nil
}

// Delete removes one of the user's documents.
func (r *Repository) Delete(documentID string) error {
	if !ownsDocument(r.state.Get().Documents, documentID, r.userID) {
		return ErrNotShown
	}
	err := begin(r.state, func(s RepositoryState) (RepositoryState, bool) {
		if s.Deleting[documentID] {
			return s, false
		}
		s.Deleting = withKey(s.Deleting, documentID, true)
		s.Error = ""
		return s, true
	})
	if err != nil {
		return err
	}
	r.launch("delete_document", func(ctx context.Context) error {
		err := r.backend.DeleteDocument(ctx, documentID, r.userID)
		r.state.Update(func(s RepositoryState) RepositoryState {
			s.Deleting = withKey(s.Deleting, documentID, false)
			if err != nil {
				s.Error = err.Error()
			}
			return s
		})
		if err != nil && ctx.Err() == nil {
			r.report(err)
		}
		return nil
	})
	return nil
}

// ResetUpload returns the upload action to idle once its outcome has been
// shown.
func (r *Repository) ResetUpload() error {
	return begin(r.state, func(s RepositoryState) (RepositoryState, bool) {
		if s.UploadPhase.InFlight() {
			return s, false
		}
		s.UploadPhase = PhaseIdle
		s.LastUploadID = ""
		return s, true
	})
}

func ownsDocument(docs []domain.Document, id, userID string) bool {
	for _, d := range docs {
		if d.ID == id {
			return d.IsOwnedBy(userID)
		}
	}
	return false
}
