package b3cverify

import (
	"os"
	"path"

	"github.com/everFinance/b3cverify/schema"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	sqliteName = "verify.db"
)

type Wdb struct {
	Db *gorm.DB
}

func NewMysqlDb(dsn string) *Wdb {
	logLevel := logger.Error
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:          logger.Default.LogMode(logLevel),
		CreateBatchSize: 200,
	})
	if err != nil {
		panic(err)
	}
	log.Info("connect mysql db success")
	return &Wdb{Db: db}
}

func NewSqliteDb(dbDir string) *Wdb {
	if err := os.MkdirAll(dbDir, os.ModePerm); err != nil {
		panic(err)
	}
	db, err := gorm.Open(sqlite.Open(path.Join(dbDir, sqliteName)), &gorm.Config{
		Logger:          logger.Default.LogMode(logger.Silent),
		CreateBatchSize: 200,
	})
	if err != nil {
		panic(err)
	}
	log.Info("connect sqlite db success")
	return &Wdb{Db: db}
}

func (w *Wdb) Migrate() error {
	return w.Db.AutoMigrate(&schema.Outcome{})
}

func (w *Wdb) InsertOutcome(o schema.Outcome) error {
	return w.Db.Create(&o).Error
}

// GetOutcomes returns the latest outcomes, newest first.
func (w *Wdb) GetOutcomes(limit int) ([]schema.Outcome, error) {
	res := make([]schema.Outcome, 0, limit)
	err := w.Db.Order("id desc").Limit(limit).Find(&res).Error
	return res, err
}

func (w *Wdb) GetOutcomesByPaymentId(paymentId string) ([]schema.Outcome, error) {
	res := make([]schema.Outcome, 0)
	err := w.Db.Where("payment_id = ?", paymentId).Order("id asc").Find(&res).Error
	return res, err
}

func (w *Wdb) CountByResult(result string) (int64, error) {
	var n int64
	err := w.Db.Model(&schema.Outcome{}).Where("result = ?", result).Count(&n).Error
	return n, err
}

func (w *Wdb) Close() {
	sqlDb, err := w.Db.DB()
	if err == nil {
		sqlDb.Close()
	}
}
