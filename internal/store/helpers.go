// Package store provides storage backends for Synermind.
//
// This file holds helpers shared by the SQL-backed stores.
package store

import (
	"database/sql"
	"sort"
	"time"
)

// nilIfEmpty returns nil for empty strings so optional columns store NULL
// instead of empty text.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// stringOrEmpty converts a nullable text column back to a plain string.
func stringOrEmpty(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// timeOrZero converts a nullable timestamp column back to a time.Time.
func timeOrZero(nt sql.NullTime) time.Time {
	if nt.Valid {
		return nt.Time
	}
	return time.Time{}
}

// computeLoginStats derives engagement numbers from raw login timestamps:
// how many signins happened today (UTC calendar day), and the current streak
// of consecutive days with at least one signin ending today or yesterday.
func computeLoginStats(logins []time.Time, now time.Time) (dailyLogins, streakDays int) {
	if len(logins) == 0 {
		return 0, 0
	}

	todayKey := now.UTC().Format("2006-01-02")
	daySet := make(map[string]struct{})
	for _, t := range logins {
		key := t.UTC().Format("2006-01-02")
		daySet[key] = struct{}{}
		if key == todayKey {
			dailyLogins++
		}
	}

	days := make([]string, 0, len(daySet))
	for d := range daySet {
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	// A streak only counts if it reaches today or yesterday.
	today := now.UTC()
	cursor := today
	if days[0] != today.Format("2006-01-02") {
		cursor = today.AddDate(0, 0, -1)
		if days[0] != cursor.Format("2006-01-02") {
			return dailyLogins, 0
		}
	}
	for _, d := range days {
		if d == cursor.Format("2006-01-02") {
			streakDays++
			cursor = cursor.AddDate(0, 0, -1)
			continue
		}
		break
	}
	return dailyLogins, streakDays
}
