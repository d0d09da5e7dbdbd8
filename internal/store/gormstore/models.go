package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account holds one user's balance and running totals.
type Account struct {
	UserID             string    `gorm:"primaryKey"`
	Credits            int64     `gorm:"not null;default:0"`
	TotalCreditsEarned int64     `gorm:"not null;default:0"`
	TotalCreditsSpent  int64     `gorm:"not null;default:0"`
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

// CreditTransaction mirrors the append-only credit_transactions table. The
// autoincrement id doubles as the newest-first tiebreaker within a timestamp.
type CreditTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	UserID        string    `gorm:"not null;index:idx_transactions_user_created,priority:1"`
	Type          string    `gorm:"not null"`
	Amount        int64     `gorm:"not null"`
	BalanceAfter  int64     `gorm:"not null"`
	Description   string    `gorm:"not null"`
	ReferenceKind *string   `gorm:""`
	ReferenceID   *int64    `gorm:""`
	CreatedAt     time.Time `gorm:"not null;index:idx_transactions_user_created,priority:2"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

// Setting is one typed key/value configuration entry.
type Setting struct {
	Key      string `gorm:"primaryKey"`
	Value    string `gorm:"not null"`
	DataType string `gorm:"not null;default:string"`
}

func (Setting) TableName() string { return "settings" }

// PremiumPlacement mirrors the premium_placements table.
type PremiumPlacement struct {
	PlacementID string    `gorm:"type:uuid;primaryKey"`
	UserID      string    `gorm:"not null;index"`
	PostKind    string    `gorm:"not null;index:idx_placements_target,priority:1"`
	PostID      int64     `gorm:"not null;index:idx_placements_target,priority:2"`
	PremiumType string    `gorm:"not null;index:idx_placements_target,priority:3"`
	CreditsCost int64     `gorm:"not null"`
	StartsAt    time.Time `gorm:"not null"`
	EndsAt      time.Time `gorm:"not null"`
	IsActive    bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (PremiumPlacement) TableName() string { return "premium_placements" }

func (placement *PremiumPlacement) BeforeCreate(tx *gorm.DB) error {
	if placement.PlacementID == "" {
		placement.PlacementID = uuid.NewString()
	}
	return nil
}

// The five content tables share the columns the core reads and mutates
// (user_id, title, is_active, is_premium). Vertical-specific fields ride
// along and are owned by the surrounding application.

// Load is a posted land freight load.
type Load struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	UserID      string    `gorm:"not null;index"`
	Title       string    `gorm:"not null"`
	Origin      string    `gorm:""`
	Destination string    `gorm:""`
	IsActive    bool      `gorm:"not null;default:true"`
	IsPremium   bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (Load) TableName() string { return "loads" }

// Truck is a posted truck availability.
type Truck struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"not null;index"`
	Title     string    `gorm:"not null"`
	TruckType string    `gorm:""`
	IsActive  bool      `gorm:"not null;default:true"`
	IsPremium bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Truck) TableName() string { return "trucks" }

// Company is a business directory entry.
type Company struct {
	ID            int64          `gorm:"primaryKey;autoIncrement"`
	UserID        string         `gorm:"not null;index"`
	Title         string         `gorm:"not null"`
	Services      datatypes.JSON `gorm:""`
	BusinessHours datatypes.JSON `gorm:""`
	IsActive      bool           `gorm:"not null;default:true"`
	IsPremium     bool           `gorm:"not null;default:false"`
	CreatedAt     time.Time      `gorm:"not null"`
}

func (Company) TableName() string { return "companies" }

// Job is a job listing.
type Job struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"not null;index"`
	Title     string    `gorm:"not null"`
	Location  string    `gorm:""`
	IsActive  bool      `gorm:"not null;default:true"`
	IsPremium bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Job) TableName() string { return "jobs" }

// Resume is a posted résumé.
type Resume struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	UserID    string         `gorm:"not null;index"`
	Title     string         `gorm:"not null"`
	Skills    datatypes.JSON `gorm:""`
	IsActive  bool           `gorm:"not null;default:true"`
	IsPremium bool           `gorm:"not null;default:false"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (Resume) TableName() string { return "resumes" }

// Models lists every table the store owns, in migration order.
func Models() []any {
	return []any{
		&Account{},
		&CreditTransaction{},
		&Setting{},
		&PremiumPlacement{},
		&Load{},
		&Truck{},
		&Company{},
		&Job{},
		&Resume{},
	}
}
