package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"edusync/pkg/domain"
)

const migrateLockID int64 = 51730017

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&ProfileModel{},
			&TaskModel{},
			&EventModel{},
			&GroupModel{},
			&DocumentModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func first[M any](ctx context.Context, db *gorm.DB, query string, args ...any) (M, bool, error) {
	var model M
	if err := db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model, false, nil
		}
		return model, false, err
	}
	return model, true, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(ctx context.Context, u domain.User) error {
	model := UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "updated_at"}),
	}).Create(&model).Error
}

func (s *GormStore) HasUserEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	m, ok, err := first[UserModel](ctx, s.db, "email = ?", email)
	if !ok || err != nil {
		return domain.User{}, false, err
	}
	return userFromModel(m), true, nil
}

func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	m, ok, err := first[UserModel](ctx, s.db, "id = ?", id)
	if !ok || err != nil {
		return domain.User{}, false, err
	}
	return userFromModel(m), true, nil
}

// SaveProfile replaces the profile document of a user.
func (s *GormStore) SaveProfile(ctx context.Context, userID string, p domain.UserProfile) error {
	model := ProfileModel{
		UserID:            userID,
		Email:             p.Email,
		Username:          p.Username,
		ProfilePictureURL: p.ProfilePictureURL,
		UpdatedAt:         time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "username", "profile_picture_url", "updated_at"}),
	}).Create(&model).Error
}

func (s *GormStore) GetProfile(ctx context.Context, userID string) (domain.UserProfile, bool, error) {
	m, ok, err := first[ProfileModel](ctx, s.db, "user_id = ?", userID)
	if !ok || err != nil {
		return domain.UserProfile{}, false, err
	}
	return domain.UserProfile{
		Email:             m.Email,
		Username:          m.Username,
		ProfilePictureURL: m.ProfilePictureURL,
	}, true, nil
}

// SaveTask creates or fully replaces a task.
func (s *GormStore) SaveTask(ctx context.Context, t domain.Task) error {
	model := taskToModel(t)
	return s.db.WithContext(ctx).Save(&model).Error
}

func (s *GormStore) GetTask(ctx context.Context, id string) (domain.Task, bool, error) {
	m, ok, err := first[TaskModel](ctx, s.db, "id = ?", id)
	if !ok || err != nil {
		return domain.Task{}, false, err
	}
	return taskFromModel(m), true, nil
}

func (s *GormStore) DeleteTask(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&TaskModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListTasksByUser(ctx context.Context, userID string) ([]domain.Task, error) {
	var models []TaskModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Task, 0, len(models))
	for _, m := range models {
		res = append(res, taskFromModel(m))
	}
	return res, nil
}

func (s *GormStore) SaveEvent(ctx context.Context, e domain.Event) error {
	model, err := eventToModel(e)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&model).Error
}

// ListEventsByUserBetween returns events created by userID starting in
// [from, to), ordered by start time.
func (s *GormStore) ListEventsByUserBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Event, error) {
	var models []EventModel
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND start_time >= ? AND start_time < ?", userID, from, to).
		Order("start_time ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Event, 0, len(models))
	for _, m := range models {
		e, err := eventFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}

func (s *GormStore) SaveGroup(ctx context.Context, g domain.Group) error {
	model, err := groupToModel(g)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&model).Error
}

func (s *GormStore) GetGroup(ctx context.Context, id string) (domain.Group, bool, error) {
	m, ok, err := first[GroupModel](ctx, s.db, "id = ?", id)
	if !ok || err != nil {
		return domain.Group{}, false, err
	}
	g, err := groupFromModel(m)
	return g, err == nil, err
}

func (s *GormStore) ListGroups(ctx context.Context) ([]domain.Group, error) {
	return s.listGroups(ctx, s.db.WithContext(ctx))
}

// ListGroupsByMember uses jsonb containment on the members column.
func (s *GormStore) ListGroupsByMember(ctx context.Context, userID string) ([]domain.Group, error) {
	needle, err := json.Marshal([]string{userID})
	if err != nil {
		return nil, err
	}
	return s.listGroups(ctx, s.db.WithContext(ctx).Where("members @> ?::jsonb", string(needle)))
}

func (s *GormStore) listGroups(_ context.Context, tx *gorm.DB) ([]domain.Group, error) {
	var models []GroupModel
	if err := tx.Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Group, 0, len(models))
	for _, m := range models {
		g, err := groupFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, nil
}

// AddGroupMember adds userID to the group's member set. The row is locked
// for the read-modify-write so concurrent joins cannot drop each other.
func (s *GormStore) AddGroupMember(ctx context.Context, groupID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model GroupModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", groupID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		g, err := groupFromModel(model)
		if err != nil {
			return err
		}
		if g.HasMember(userID) {
			return nil
		}
		members, err := json.Marshal(g.WithMember(userID).Members)
		if err != nil {
			return err
		}
		return tx.Model(&GroupModel{}).Where("id = ?", groupID).Update("members", datatypes.JSON(members)).Error
	})
}

func (s *GormStore) SaveDocument(ctx context.Context, d domain.Document) error {
	model, err := documentToModel(d)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&model).Error
}

func (s *GormStore) GetDocument(ctx context.Context, id string) (domain.Document, bool, error) {
	m, ok, err := first[DocumentModel](ctx, s.db, "id = ?", id)
	if !ok || err != nil {
		return domain.Document{}, false, err
	}
	d, err := documentFromModel(m)
	return d, err == nil, err
}

func (s *GormStore) DeleteDocument(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&DocumentModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDocumentsByOwner returns the owner's documents, newest upload first.
func (s *GormStore) ListDocumentsByOwner(ctx context.Context, userID string) ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("upload_date DESC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		d, err := documentFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}
