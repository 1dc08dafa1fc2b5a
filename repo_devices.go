package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// Devices stores client installations bound to end-users.
type Devices interface {
	// UpsertTx binds deviceID to userID, moving it away from any previous owner.
	UpsertTx(ctx context.Context, tx bun.IDB, deviceID, userID string, now time.Time) (*Device, error)
	ListForUserTx(ctx context.Context, tx bun.IDB, userID string) ([]*Device, error)
}

type devices struct {
	db *bun.DB
}

var _ Devices = (*devices)(nil)

func NewDevicesRepository(db *bun.DB) Devices {
	return &devices{db: db}
}

func (r *devices) UpsertTx(ctx context.Context, tx bun.IDB, deviceID, userID string, now time.Time) (*Device, error) {
	deviceID = strings.TrimSpace(deviceID)

	// Row ids derive from the device id so every replica agrees on them.
	id, err := hashid.NewUUID(deviceID)
	if err != nil {
		return nil, err
	}

	record := &Device{
		ID:        id,
		DeviceID:  deviceID,
		UserID:    userID,
		CreatedAt: now,
	}

	_, err = tx.NewInsert().
		Model(record).
		On("CONFLICT (device_id) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *devices) ListForUserTx(ctx context.Context, tx bun.IDB, userID string) ([]*Device, error) {
	var records []*Device
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}
