// Package models holds the gorm mappings for the read API.
package models

import "time"

type User struct {
	ID           uint   `gorm:"column:id;primaryKey" json:"id"`
	Email        string `gorm:"column:email;uniqueIndex" json:"email"`
	Password     string `gorm:"column:password" json:"-"`
	Role         string `gorm:"column:role;default:viewer" json:"role"`
	PartnerID    int    `gorm:"column:id_parceiro" json:"partner_id"`
	ReceiveEmail bool   `gorm:"column:receive_email;default:true" json:"receive_email"`
}

func (User) TableName() string { return "users" }

type Irregularity struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	SourceURL    string    `gorm:"column:source_url;primaryKey" json:"source_url"`
	PartnerID    int       `gorm:"column:id_parceiro;primaryKey" json:"partner_id"`
	Name         string    `gorm:"column:name" json:"name"`
	Type         string    `gorm:"column:type" json:"type"`
	SubType      string    `gorm:"column:subtype" json:"subtype"`
	LengthMeters float64   `gorm:"column:length_m" json:"length_m"`
	JamLevel     int       `gorm:"column:jam_level" json:"jam_level"`
	BBoxMinX     float64   `gorm:"column:bbox_min_x" json:"bbox_min_x"`
	BBoxMaxX     float64   `gorm:"column:bbox_max_x" json:"bbox_max_x"`
	BBoxMinY     float64   `gorm:"column:bbox_min_y" json:"bbox_min_y"`
	BBoxMaxY     float64   `gorm:"column:bbox_max_y" json:"bbox_max_y"`
	FromName     string    `gorm:"column:from_name" json:"from_name"`
	ToName       string    `gorm:"column:to_name" json:"to_name"`
	SpeedKMH     float64   `gorm:"column:speed_kmh" json:"speed_kmh"`
	DateUpdated  time.Time `gorm:"column:date_updated" json:"date_updated"`
}

func (Irregularity) TableName() string { return "irregularities" }

type Route struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	SourceURL   string    `gorm:"column:source_url;primaryKey" json:"source_url"`
	PartnerID   int       `gorm:"column:id_parceiro;primaryKey" json:"partner_id"`
	Status      string    `gorm:"column:status" json:"status"`
	ETASeconds  int       `gorm:"column:eta_seconds" json:"eta_seconds"`
	DateUpdated time.Time `gorm:"column:date_updated" json:"date_updated"`
}

func (Route) TableName() string { return "routes" }

type CooldownEntry struct {
	AlertHash     string    `gorm:"column:alert_hash;primaryKey" json:"alert_hash"`
	LastSent      time.Time `gorm:"column:last_sent" json:"last_sent"`
	CooldownUntil time.Time `gorm:"column:cooldown_until" json:"cooldown_until"`
	SendCount     int       `gorm:"column:send_count" json:"send_count"`
}

func (CooldownEntry) TableName() string { return "alert_cooldown" }
