package repository

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"zoom-ingest/constant"
	"zoom-ingest/entities"
)

var ErrNotFound = errors.New("recording not found")

type RecordingRepository interface {
	Get(ctx context.Context, uid string) (*entities.Recording, error)
	Claim(ctx context.Context, recording *entities.Recording) (bool, error)
	MarkFinished(ctx context.Context, uid string) error
	GetDB() *gorm.DB
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) (RecordingRepository, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	if err != nil {
		return nil, err
	}
	if err := gormDB.AutoMigrate(&entities.Recording{}); err != nil {
		return nil, err
	}
	return &repo{
		db: gormDB,
	}, nil
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Get(ctx context.Context, uid string) (*entities.Recording, error) {
	recording := &entities.Recording{}
	err := r.GetDB().WithContext(ctx).First(recording, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return recording, nil
}

// Claim atomically creates or takes over the row for recording.UID and moves
// it to IN_PROGRESS in a single statement. It returns false without writing
// anything when the recording is already FINISHED, which is the duplicate
// delivery signal. An existing IN_PROGRESS row is claimed again: that means a
// prior run died mid-transfer and the job must be redone.
func (r *repo) Claim(ctx context.Context, recording *entities.Recording) (bool, error) {
	recording.State = constant.RecordingStateInProgress
	tx := r.GetDB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "uid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"state":      constant.RecordingStateInProgress.String(),
			"topic":      recording.Topic,
			"creator":    recording.Creator,
			"payload":    recording.Payload,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Neq{
				Column: clause.Column{Table: "recordings", Name: "state"},
				Value:  constant.RecordingStateFinished.String(),
			},
		}},
	}).Create(recording)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *repo) MarkFinished(ctx context.Context, uid string) error {
	tx := r.GetDB().WithContext(ctx).Model(&entities.Recording{}).
		Where("uid = ?", uid).
		Updates(map[string]interface{}{
			"state":      constant.RecordingStateFinished.String(),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
