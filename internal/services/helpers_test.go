package services

import (
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/qris-donation-backend/internal/qris"
	"github.com/tbourn/qris-donation-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// staticPayload is a well-formed static QRIS with a valid checksum.
func staticPayload() string {
	body := qris.Encode([]qris.Record{
		{Tag: "00", Value: "01"},
		{Tag: "01", Value: "11"},
		{Tag: "26", Value: "0014ID.CO.QRIS.WWW0118936009150000000001"},
		{Tag: "52", Value: "4829"},
		{Tag: "53", Value: "360"},
		{Tag: "58", Value: "ID"},
		{Tag: "59", Value: "TOKO DONASI"},
		{Tag: "60", Value: "JAKARTA"},
	}) + "6304"
	return body + qris.Checksum(body)
}

func strp(s string) *string { return &s }
