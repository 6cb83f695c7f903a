// Package model はドメインモデルを定義する。
package model

import "time"

// Service はマーケットプレイスで提供される単発サービス（ギグ）のカタログ項目を表す。
type Service struct {
	ID          string
	Name        string
	Category    string
	Description string
	Price       int64 // 通貨単位なしの整数
	Turnaround  string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SupportTicket はユーザーからの問い合わせチケットを表す。
type SupportTicket struct {
	ID        string
	UserID    string
	Subject   string
	Body      string
	Status    TicketStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TicketStatus は問い合わせチケットの状態を表す。
type TicketStatus string

const (
	// TicketStatusOpen は未対応状態。
	TicketStatusOpen TicketStatus = "open"
	// TicketStatusClosed は対応完了状態。
	TicketStatusClosed TicketStatus = "closed"
)
