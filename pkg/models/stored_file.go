package models

import (
	"time"
)

// Kinds of files kept in the upload directory.
const (
	KindUpload  = "upload"
	KindDerived = "derived"
)

// StoredFile describes a file written to the upload directory.
type StoredFile struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"uniqueIndex;size:255;not null"`
	Kind      string `gorm:"size:16;not null"`
	Size      int64
	SHA256    string `gorm:"column:sha256;size:64"`
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index"`
}
