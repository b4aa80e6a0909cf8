package serving

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PatientRecord is one saved prediction in a user's history.
type PatientRecord struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	NamaPasien       string            `gorm:"column:nama_pasien;size:255" json:"nama_pasien"`
	UmurIbu          *float64          `gorm:"column:umur_ibu" json:"umur_ibu"`
	Gravida          int               `gorm:"column:gravida" json:"gravida"`
	UmurKehamilan    int               `gorm:"column:umur_kehamilan" json:"umur_kehamilan"`
	TinggiBadan      *float64          `gorm:"column:tinggi_badan" json:"tinggi_badan"`
	TekananSistolik  *float64          `gorm:"column:tekanan_sistolik" json:"tekanan_sistolik"`
	TekananDiastolik *float64          `gorm:"column:tekanan_diastolik" json:"tekanan_diastolik"`
	PenyakitAnemia   string            `gorm:"column:penyakit_anemia;size:50" json:"penyakit_anemia"`
	PosisiJanin      string            `gorm:"column:posisi_janin;size:50" json:"posisi_janin"`
	HasilTesVDRL     string            `gorm:"column:hasil_tes_VDRL;size:50" json:"hasil_tes_VDRL"`
	HasilTesHbsAg    string            `gorm:"column:hasil_tes_HbsAg;size:50" json:"hasil_tes_HbsAg"`
	HasilPrediksi    string            `gorm:"column:hasil_prediksi;size:10;index" json:"hasil_prediksi"`
	Raw              datatypes.JSONMap `gorm:"column:raw" json:"-"`
	CreatedBy        uuid.UUID         `gorm:"type:uuid;column:created_by;index" json:"created_by"`
	CreatedAt        time.Time         `gorm:"column:created_at;index" json:"created_at"`
}

// TableName overrides gorm naming.
func (PatientRecord) TableName() string {
	return "data_pasien"
}

// RecordStore persists saved predictions.
type RecordStore interface {
	Create(ctx context.Context, rec *PatientRecord) error
	RecentByOwner(ctx context.Context, owner uuid.UUID, limit int) ([]PatientRecord, error)
}

// Repository handles patient history queries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PatientRecord{})
}

func (r *Repository) Create(ctx context.Context, rec *PatientRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// RecentByOwner returns the newest records created by owner, up to limit.
func (r *Repository) RecentByOwner(ctx context.Context, owner uuid.UUID, limit int) ([]PatientRecord, error) {
	if limit <= 0 {
		limit = historyLimit
	}
	var records []PatientRecord
	err := r.db.WithContext(ctx).
		Where("created_by = ?", owner).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
