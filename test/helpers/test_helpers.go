package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/squareft/sms-gateway/internal/repository"
	"github.com/squareft/sms-gateway/pkg/pg"
	"github.com/squareft/sms-gateway/pkg/redis"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.DeliveryResultEntity{},
		&repository.TicketEntity{},
		&repository.MembershipEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// unique connection name per test to avoid the global adapter cache
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestDelivery(t *testing.T, db *pg.DB, sid, to, status string) *repository.DeliveryResultEntity {
	ctx := context.Background()
	entity := &repository.DeliveryResultEntity{
		ProviderMessageID: sid,
		Status:            status,
		ToNumber:          to,
		FromNumber:        "+15550000000",
		Body:              "Test message",
		CreatedAt:         time.Now(),
	}
	err := db.Write(ctx).Create(entity).Error
	require.NoError(t, err)
	return entity
}

func CreateTestMembership(t *testing.T, db *pg.DB, userID string, orgID int64) *repository.MembershipEntity {
	ctx := context.Background()
	m := &repository.MembershipEntity{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           "member",
	}
	err := db.Write(ctx).Create(m).Error
	require.NoError(t, err)
	return m
}

func CreateTestTicket(t *testing.T, db *pg.DB, orgID int64, status string) *repository.TicketEntity {
	ctx := context.Background()
	ticket := &repository.TicketEntity{
		OrganizationID: orgID,
		Subject:        "Test ticket",
		Status:         status,
		CreatedAt:      time.Now(),
	}
	err := db.Write(ctx).Create(ticket).Error
	require.NoError(t, err)
	return ticket
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
