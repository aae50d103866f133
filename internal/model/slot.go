package model

import "time"

// SlotConstraints 向日历服务请求预约时段的条件
type SlotConstraints struct {
	EmailID   string        `json:"email_id"`
	Attendee  string        `json:"attendee"`
	Duration  time.Duration `json:"duration"`
	NotBefore time.Time     `json:"not_before"`
}
