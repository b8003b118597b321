package remote

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresBillStore persists bills in a postgres table through gorm.
// Live updates come from a ChangeNotifier plus periodic polling.
type PostgresBillStore struct {
	db           *gorm.DB
	notifier     ChangeNotifier
	pollInterval time.Duration
}

func NewPostgresBillStore(db *gorm.DB, notifier ChangeNotifier, pollInterval time.Duration) *PostgresBillStore {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	return &PostgresBillStore{db: db, notifier: notifier, pollInterval: pollInterval}
}

func (s *PostgresBillStore) Write(ctx context.Context, bill *entity.Bill) (string, error) {
	row := *bill
	row.RemoteID = ""

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}, {Name: "local_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return "", fmt.Errorf("insert bill %s: %w", bill.Number(), result.Error)
	}

	if result.RowsAffected == 0 {
		var existing entity.Bill
		err := s.db.WithContext(ctx).
			Select("remote_id").
			Where("device_id = ? AND local_id = ?", bill.DeviceID, bill.LocalID).
			Take(&existing).Error
		if err != nil {
			return "", fmt.Errorf("lookup existing bill %s: %w", bill.Number(), err)
		}
		return existing.RemoteID, nil
	}

	s.notifier.Notify(ctx)
	return row.RemoteID, nil
}

func (s *PostgresBillStore) snapshot(ctx context.Context) ([]entity.Bill, string, error) {
	var bills []entity.Bill
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Order("created_at ASC").
		Find(&bills).Error
	if err != nil {
		return nil, "", err
	}

	var latest time.Time
	for i := range bills {
		if bills[i].CreatedAt.After(latest) {
			latest = bills[i].CreatedAt
		}
	}
	return bills, strconv.Itoa(len(bills)) + "@" + strconv.FormatInt(latest.UnixNano(), 10), nil
}

func (s *PostgresBillStore) Watch(ctx context.Context) (repository.BillFeed, error) {
	wake, release := s.notifier.Subscribe(ctx)
	return newPollingFeed(s.snapshot, wake, release, nil, s.pollInterval), nil
}

func (s *PostgresBillStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresBillStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
