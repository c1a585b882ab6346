package models

import "time"

// PriceSample is one recorded price observation. Samples are append-only and are removed
// only together with their item.
type PriceSample struct {
	ID         uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	ItemID     uint64    `json:"item_id" gorm:"not null;index:item_id_idx;index:item_id_recorded_at_idx,priority:1"`
	Price      float64   `json:"price" gorm:"not null"`
	RecordedAt time.Time `json:"recorded_at" gorm:"not null;index:recorded_at_idx;index:item_id_recorded_at_idx,priority:2"`
}

func (PriceSample) TableName() string { return "price_history" }
