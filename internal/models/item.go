package models

import "time"

// Item is a tracked Steam market listing. It is created once, after the market confirmed it
// exists, and never updated.
type Item struct {
	ID             uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	MarketHashName string    `json:"market_hash_name" gorm:"type:varchar(255);not null;uniqueIndex:market_hash_name_idx"`
	SteamAppID     int       `json:"steam_appid" gorm:"column:steam_appid;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null"`

	// Associations
	PriceHistory []PriceSample `json:"-" gorm:"foreignKey:ItemID;references:ID;constraint:OnDelete:CASCADE"`
}

func (Item) TableName() string { return "items" }
