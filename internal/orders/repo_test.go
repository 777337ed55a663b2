package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  company_name TEXT NOT NULL,
  contact_name TEXT NOT NULL,
  password_hash TEXT,
  google_subject TEXT,
  phone TEXT,
  address TEXT,
  two_factor_enabled INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS materials (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  features TEXT,
  unit_price TEXT NOT NULL,
  image_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  display_order INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  material_id TEXT NOT NULL,
  status TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price TEXT NOT NULL,
  total_amount TEXT NOT NULL,
  logo_url TEXT,
  specifications TEXT,
  payment_verified INTEGER NOT NULL DEFAULT 0,
  deadline DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_logs (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  from_status TEXT,
  to_status TEXT NOT NULL,
  actor_kind TEXT NOT NULL,
  actor_id TEXT NOT NULL,
  note TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, customerID uuid.UUID, status enums.OrderStatus, createdAt time.Time) models.Order {
	t.Helper()
	row := models.Order{
		ID:          uuid.New(),
		OrderNumber: "GH-TEST-" + uuid.NewString()[:8],
		CustomerID:  customerID,
		MaterialID:  uuid.New(),
		Status:      status,
		Quantity:    100,
		UnitPrice:   decimal.RequireFromString("1.50"),
		TotalAmount: decimal.RequireFromString("150.00"),
		CreatedAt:   createdAt,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func TestRepoListPaginatesWithoutSkipping(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var seeded []models.Order
	for i := 0; i < 5; i++ {
		seeded = append(seeded, seedOrder(t, db, customerID, enums.OrderStatusPending, base.Add(time.Duration(i)*time.Minute)))
	}

	var seen []uuid.UUID
	params := listOrdersParams{Limit: 2}
	for {
		rows, next, err := repo.List(ctx, params)
		require.NoError(t, err)
		for _, row := range rows {
			seen = append(seen, row.ID)
		}
		if next == nil {
			break
		}
		params.Cursor = next
	}

	require.Len(t, seen, len(seeded))
	unique := map[uuid.UUID]bool{}
	for _, id := range seen {
		require.False(t, unique[id], "row %s returned twice", id)
		unique[id] = true
	}
}

func TestRepoListFiltersByStatusAndCustomer(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	mine := uuid.New()
	other := uuid.New()
	now := time.Now().UTC()
	seedOrder(t, db, mine, enums.OrderStatusPending, now.Add(-3*time.Minute))
	target := seedOrder(t, db, mine, enums.OrderStatusInProduction, now.Add(-2*time.Minute))
	seedOrder(t, db, other, enums.OrderStatusInProduction, now.Add(-time.Minute))

	status := enums.OrderStatusInProduction
	params := listOrdersParams{Limit: 10}
	params.Filters.CustomerID = &mine
	params.Filters.Status = &status

	rows, next, err := repo.List(ctx, params)
	require.NoError(t, err)
	require.Nil(t, next)
	require.Len(t, rows, 1)
	require.Equal(t, target.ID, rows[0].ID)
}

func TestRepoUpdateStatusGuardsCurrentStatus(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, uuid.New(), enums.OrderStatusApproved, time.Now().UTC())

	affected, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusApproved)
	require.NoError(t, err)
	require.Zero(t, affected, "stale from-status must not match")

	affected, err = repo.UpdateStatus(ctx, order.ID, enums.OrderStatusApproved, enums.OrderStatusVerifyingPayment)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusVerifyingPayment, reloaded.Status)
}

func TestRepoLogsReturnedInOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, time.Now().UTC())
	base := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	statuses := []enums.OrderStatus{enums.OrderStatusApproved, enums.OrderStatusVerifyingPayment, enums.OrderStatusInProduction}
	for i, status := range statuses {
		require.NoError(t, repo.AppendLog(ctx, &models.OrderLog{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ToStatus:  status,
			ActorKind: enums.ActorKindStaff,
			ActorID:   uuid.New(),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	logs, err := repo.Logs(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, logs, len(statuses))
	for i, status := range statuses {
		require.Equal(t, status, logs[i].ToStatus)
	}
}

func TestRepoFindDueBetweenSkipsTerminalOrders(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	soon := now.Add(24 * time.Hour)

	due := seedOrder(t, db, uuid.New(), enums.OrderStatusInProduction, now)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", due.ID).Update("deadline", soon).Error)

	done := seedOrder(t, db, uuid.New(), enums.OrderStatusCompleted, now)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", done.ID).Update("deadline", soon).Error)

	farOut := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, now)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", farOut.ID).Update("deadline", now.Add(96*time.Hour)).Error)

	rows, err := repo.FindDueBetween(ctx, now, now.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, due.ID, rows[0].ID)
}
