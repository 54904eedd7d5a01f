package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/snapshot"
	"gear-maintenance-backend/internal/usage"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteDB returns a migrated in-memory database.
func newSQLiteDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Part{}, &model.Attachment{}, &model.Activity{}, &usage.Ledger{},
		&model.Service{}, &model.ServicePlan{}, &model.PushSubscription{},
	))
	return db
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}

func i64(v int64) *int64 { return &v }

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return epoch.AddDate(0, 0, n)
}

func seed() snapshot.Summary {
	return snapshot.Summary{
		Parts: []model.Part{
			{ID: 1, Owner: 9, What: 1, Name: "bike", Purchase: day(0), UsageID: "u-bike"},
			{ID: 2, Owner: 9, What: 4, Name: "chain", Purchase: day(0), UsageID: "u-chain"},
			{ID: 3, Owner: 9, What: 4, Name: "old chain", Purchase: day(0), UsageID: "u-old"},
			{ID: 50, Owner: 10, What: 1, Name: "other bike", Purchase: day(0), UsageID: "u-other"},
		},
		Attachments: []model.Attachment{
			{PartID: 3, Gear: 1, Hook: 1, What: 4, Attached: day(0), Detached: day(10), UsageID: "u-att3"},
			{PartID: 2, Gear: 1, Hook: 1, What: 4, Attached: day(10), Detached: model.MaxTime},
		},
		Usages: []usage.Ledger{
			{ID: "u-bike"}, {ID: "u-chain"}, {ID: "u-old", Distance: 500_000}, {ID: "u-other"},
			{ID: "u-att3", Distance: 500_000},
		},
		Services: []model.Service{
			{ID: "s1", PartID: 3, Time: day(5), Name: "cleaned", UsageID: "u-old", Plans: []string{"p1"}},
		},
		Plans: []model.ServicePlan{
			{ID: "p1", Part: i64(3), What: 4, Name: "chain", Limits: model.Limits{Km: i64(1000)}},
		},
	}
}

func TestGormStore_SummaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(newSQLiteDB(t))
	require.NoError(t, s.SaveSummary(ctx, seed()))

	sum, err := s.Summary(ctx, 9)
	require.NoError(t, err)

	assert.Len(t, sum.Parts, 3)
	assert.Len(t, sum.Attachments, 2)
	assert.Len(t, sum.Services, 1)
	assert.Equal(t, []string{"p1"}, sum.Services[0].Plans)
	assert.Len(t, sum.Plans, 1)
	assert.Len(t, sum.Usages, 4, "only ledgers referenced by the user's records")

	snap := snapshot.New(sum)
	assert.Equal(t, int64(2), snap.Timeline().ResolveOccupant(1, 4, 1, day(20)))
	assert.Equal(t, int64(3), snap.Timeline().ResolveOccupant(1, 4, 1, day(5)))

	other, err := s.Summary(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, other.Parts, 1)
	assert.Empty(t, other.Attachments)
}

func TestGormStore_SaveSummaryDeletesEmptyAttachments(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(newSQLiteDB(t))
	require.NoError(t, s.SaveSummary(ctx, seed()))

	require.NoError(t, s.SaveSummary(ctx, snapshot.Summary{
		Attachments: []model.Attachment{{PartID: 2, Gear: 1, Hook: 1, What: 4, Attached: day(10), Detached: day(10)}},
	}))

	sum, err := s.Summary(ctx, 9)
	require.NoError(t, err)
	require.Len(t, sum.Attachments, 1)
	assert.Equal(t, int64(3), sum.Attachments[0].PartID)
}

func TestGormStore_SaveSummaryRejectsInvalidPlan(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(newSQLiteDB(t))

	err := s.SaveSummary(ctx, snapshot.Summary{
		Plans: []model.ServicePlan{{ID: "bad", What: 4, Name: "no limits"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidPlan))
}

func TestGormStore_RecordActivities(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	s := NewGormStore(db)
	require.NoError(t, s.SaveSummary(ctx, seed()))

	activities := []model.Activity{
		{ID: 100, UserID: 9, What: 1, Start: day(20), Gear: i64(1), Distance: i64(40_000), Climb: i64(300), Time: i64(3600)},
		{ID: 101, UserID: 9, What: 1, Start: day(21), Distance: i64(10_000)},
	}
	owners, err := s.RecordActivities(ctx, activities)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, owners)

	owners, err = s.RecordActivities(ctx, activities)
	require.NoError(t, err)
	assert.Empty(t, owners, "known activities are skipped")

	sum, err := s.Summary(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, sum.Activities, 2)

	snap := snapshot.New(sum)
	chain, _ := snap.Part(2)
	l := snap.Ledger(chain.UsageID)
	assert.Equal(t, int64(40_000), l.Distance)
	assert.Equal(t, int64(300), l.Descend)
	assert.Equal(t, int64(3600), l.Duration)
	assert.Equal(t, int64(1), l.Count)
	assert.True(t, chain.LastUsed.Equal(day(20)))

	bike, _ := snap.Part(1)
	assert.Equal(t, int64(40_000), snap.Ledger(bike.UsageID).Distance)

	old, _ := snap.Part(3)
	assert.Equal(t, int64(500_000), snap.Ledger(old.UsageID).Distance, "detached parts do not accrue")

	att, ok := snap.Timeline().AttachmentForPart(2, day(20))
	require.True(t, ok)
	require.NotEmpty(t, att.UsageID)
	assert.Equal(t, int64(40_000), snap.Ledger(att.UsageID).Distance)
}

func TestGormStore_RecordActivitiesForeignGear(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(newSQLiteDB(t))
	require.NoError(t, s.SaveSummary(ctx, seed()))

	owners, err := s.RecordActivities(ctx, []model.Activity{
		{ID: 200, UserID: 10, What: 1, Start: day(20), Gear: i64(1), Distance: i64(5000)},
		{ID: 201, UserID: 10, What: 1, Start: day(21), Gear: i64(50), Distance: i64(7000)},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, owners)

	sum, err := s.Summary(ctx, 9)
	require.NoError(t, err)
	snap := snapshot.New(sum)
	bike, _ := snap.Part(1)
	assert.Zero(t, snap.Ledger(bike.UsageID).Distance, "gear of another user does not accrue")
	chain, _ := snap.Part(2)
	assert.Zero(t, snap.Ledger(chain.UsageID).Distance)

	other, err := s.Summary(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, other.Activities, 2)
	snap = snapshot.New(other)
	own, _ := snap.Part(50)
	assert.Equal(t, int64(7000), snap.Ledger(own.UsageID).Distance)
}

func TestGormStore_CheckOwnership(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(newSQLiteDB(t))
	require.NoError(t, s.SaveSummary(ctx, seed()))

	testCases := []struct {
		name    string
		sum     snapshot.Summary
		wantErr error
	}{
		{
			name: "new gear with parts and services",
			sum: snapshot.Summary{
				Parts:       []model.Part{{ID: 51, Owner: 10, What: 4, Name: "chain", Purchase: day(0), UsageID: "u-new"}},
				Attachments: []model.Attachment{{PartID: 51, Gear: 50, Hook: 1, What: 4, Attached: day(1), Detached: model.MaxTime}},
				Services:    []model.Service{{ID: "s2", PartID: 50, Time: day(2), Name: "wash", UsageID: "u-s2"}},
				Usages:      []usage.Ledger{{ID: "u-new"}, {ID: "u-s2"}},
			},
		},
		{
			name: "own ledger",
			sum:  snapshot.Summary{Usages: []usage.Ledger{{ID: "u-other", Distance: 5}}},
		},
		{
			name:    "part of another user",
			sum:     snapshot.Summary{Parts: []model.Part{{ID: 1, Owner: 10, What: 1, Name: "bike", Purchase: day(0)}}},
			wantErr: ErrForbidden,
		},
		{
			name: "service on a foreign part resets its ledger",
			sum: snapshot.Summary{
				Usages:   []usage.Ledger{{ID: "u-chain"}},
				Services: []model.Service{{ID: "evil", PartID: 2, Time: day(2), Name: "x", UsageID: "u-chain"}},
			},
			wantErr: ErrForbidden,
		},
		{
			name:    "unreferenced ledger",
			sum:     snapshot.Summary{Usages: []usage.Ledger{{ID: "u-chain"}}},
			wantErr: ErrForbidden,
		},
		{
			name:    "own part pointing at a foreign ledger",
			sum:     snapshot.Summary{Parts: []model.Part{{ID: 50, Owner: 10, What: 1, Name: "other bike", Purchase: day(0), UsageID: "u-chain"}}},
			wantErr: ErrForbidden,
		},
		{
			name:    "attachment to a foreign gear",
			sum:     snapshot.Summary{Attachments: []model.Attachment{{PartID: 50, Gear: 1, Hook: 1, What: 1, Attached: day(1), Detached: model.MaxTime}}},
			wantErr: ErrForbidden,
		},
		{
			name:    "service id of another user",
			sum:     snapshot.Summary{Services: []model.Service{{ID: "s1", PartID: 50, Time: day(2), Name: "x"}}},
			wantErr: ErrForbidden,
		},
		{
			name:    "plan on a foreign part",
			sum:     snapshot.Summary{Plans: []model.ServicePlan{{ID: "p9", Part: i64(1), What: 1, Name: "x", Limits: model.Limits{Days: i64(10)}}}},
			wantErr: ErrForbidden,
		},
		{
			name:    "template of another user",
			sum:     snapshot.Summary{Plans: []model.ServicePlan{{ID: "t9", UID: i64(9), What: 4, Name: "x", Limits: model.Limits{Days: i64(10)}}}},
			wantErr: ErrForbidden,
		},
		{
			name:    "activity of another user",
			sum:     snapshot.Summary{Activities: []model.Activity{{ID: 300, UserID: 9, What: 1, Start: day(3)}}},
			wantErr: ErrForbidden,
		},
		{
			name:    "unknown part",
			sum:     snapshot.Summary{Services: []model.Service{{ID: "s3", PartID: 77, Time: day(2), Name: "x"}}},
			wantErr: ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.CheckOwnership(ctx, 10, tc.sum)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	sum, err := s.Summary(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), snapshot.New(sum).Ledger("u-old").Distance, "checks never write")
}

func TestGormStore_CreatePlan(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "service_plans"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	plan, err := s.CreatePlan(context.Background(), model.ServicePlan{
		What: 4, Hook: nil, Name: "chain", UID: i64(9), Limits: model.Limits{Km: i64(1000)},
	})
	require.NoError(t, err)
	assert.Len(t, plan.ID, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CreatePlanInvalid(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	_, err := s.CreatePlan(context.Background(), model.ServicePlan{What: 4, Name: "chain"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidPlan))
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing is written")
}

func TestGormStore_DeletePlanNotFound(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "service_plans" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := s.DeletePlan(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_DeletePlanUnlinksServices(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(newSQLiteDB(t))
	require.NoError(t, s.SaveSummary(ctx, seed()))

	updated, err := s.DeletePlan(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Empty(t, updated[0].Plans)

	sum, err := s.Summary(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, sum.Plans)
	assert.Empty(t, sum.Services[0].Plans)
}

func TestGormStore_Owners(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT "owner" FROM "parts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"owner"}).AddRow(9).AddRow(10))

	owners, err := s.Owners(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 10}, owners)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Subscriptions(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(newSQLiteDB(t))

	sub := model.PushSubscription{Endpoint: "https://push.example.com/1", P256DH: "key", Auth: "auth", Owner: 9}
	require.NoError(t, s.SaveSubscription(ctx, sub))
	sub.Auth = "rotated"
	require.NoError(t, s.SaveSubscription(ctx, sub))

	got, err := s.Subscription(ctx, sub.Endpoint)
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.Auth)

	list, err := s.Subscriptions(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteSubscription(ctx, sub.Endpoint))
	_, err = s.Subscription(ctx, sub.Endpoint)
	assert.True(t, errors.Is(err, ErrNotFound))
}
