/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package journal

import "time"

// Session is one transmission run.
type Session struct {
	ID          string `gorm:"type:varchar(36);primaryKey"`
	Standard    string `gorm:"type:varchar(16);index"`
	Mode        string `gorm:"type:varchar(16)"`
	FrequencyHz int
	Minutes     int
	WindowStart time.Time
	StartedAt   time.Time `gorm:"index"`
	EndedAt     *time.Time
	EndReason   string `gorm:"type:varchar(16)"`
	Error       string `gorm:"type:text"`
	MinutesSent int
	LateWakeups int
}

// Minute is one frame announced during a session.
type Minute struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"type:varchar(36);index"`
	Standard  string    `gorm:"type:varchar(16)"`
	Minute    time.Time `gorm:"index"`
	Frame     string    `gorm:"type:varchar(80)"`
	CreatedAt time.Time
}
