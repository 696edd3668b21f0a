package history

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/chatbot/internal/chat"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type historyRow struct {
	SessionID string       `gorm:"type:varchar(64);primaryKey"`
	Sequence  int          `gorm:"primaryKey;autoIncrement:false"`
	Role      string       `gorm:"type:varchar(16);not null"`
	Content   contentItems `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (historyRow) TableName() string { return "chat_history" }

// contentItems is stored as a JSON array of {"text": ...}.
type contentItems []chat.ContentItem

func (c contentItems) Value() (driver.Value, error) {
	if c == nil {
		c = contentItems{}
	}
	b, err := json.Marshal([]chat.ContentItem(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *contentItems) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	case nil:
		*c = contentItems{}
		return nil
	default:
		return fmt.Errorf("history: cannot scan %T into content", src)
	}
	var items []chat.ContentItem
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	*c = items
	return nil
}

// OpenSQL opens a gorm connection for "mysql" or "sqlite" and migrates the
// history table.
func OpenSQL(dialect, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dialect {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = gormsqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("history: unsupported sql dialect %q", dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&historyRow{}); err != nil {
		return nil, err
	}
	return db, nil
}

// SQLDriver stores records in the chat_history table.
type SQLDriver struct {
	db *gorm.DB
}

func NewSQLDriver(db *gorm.DB) *SQLDriver {
	return &SQLDriver{db: db}
}

// Put upserts on the (session_id, sequence) primary key.
func (d *SQLDriver) Put(ctx context.Context, rec chat.Record) error {
	row := historyRow{
		SessionID: rec.SessionID,
		Sequence:  rec.Sequence,
		Role:      rec.Role.String(),
		Content:   contentItems(rec.Content),
	}
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (d *SQLDriver) List(ctx context.Context, sessionID string) ([]chat.Record, error) {
	var rows []historyRow
	if err := d.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]chat.Record, 0, len(rows))
	for _, r := range rows {
		role, err := chat.ParseRole(r.Role)
		if err != nil {
			return nil, fmt.Errorf("history: row %s/%d: %w", r.SessionID, r.Sequence, err)
		}
		out = append(out, chat.Record{
			SessionID: r.SessionID,
			Sequence:  r.Sequence,
			Role:      role,
			Content:   []chat.ContentItem(r.Content),
		})
	}
	return out, nil
}

func (d *SQLDriver) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
