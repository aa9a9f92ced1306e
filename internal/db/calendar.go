package db

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ukydev/maintenance-scheduler/internal/models"
)

// MaintenanceCalendar is a set of planned maintenance days.
type MaintenanceCalendar struct {
	mu   sync.RWMutex
	days map[time.Time]struct{}
}

// NewMaintenanceCalendar creates an empty calendar.
func NewMaintenanceCalendar() *MaintenanceCalendar {
	return &MaintenanceCalendar{days: make(map[time.Time]struct{})}
}

var _ CalendarCollection = (*MaintenanceCalendar)(nil)

// AddDate stores the day of date. It reports false when the day was already present.
func (c *MaintenanceCalendar) AddDate(date time.Time) (bool, error) {
	if date.IsZero() {
		return false, fmt.Errorf("%w: calendar date is required", models.ErrValidation)
	}
	day := models.Day(date)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.days[day]; exists {
		return false, nil
	}
	c.days[day] = struct{}{}
	return true, nil
}

// RemoveDate deletes the day of date from the calendar.
func (c *MaintenanceCalendar) RemoveDate(date time.Time) error {
	day := models.Day(date)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.days[day]; !exists {
		return fmt.Errorf("%w: calendar date %s", models.ErrNotFound, day.Format(models.DateLayout))
	}
	delete(c.days, day)
	return nil
}

// DuePendingDates returns every stored day not after the day of now, ascending.
func (c *MaintenanceCalendar) DuePendingDates(now time.Time) []time.Time {
	today := models.Day(now)
	c.mu.RLock()
	defer c.mu.RUnlock()
	var due []time.Time
	for day := range c.days {
		if !day.After(today) {
			due = append(due, day)
		}
	}
	sortDays(due)
	return due
}

// Dates returns every stored day, ascending.
func (c *MaintenanceCalendar) Dates() []time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := make([]time.Time, 0, len(c.days))
	for day := range c.days {
		all = append(all, day)
	}
	sortDays(all)
	return all
}

func sortDays(days []time.Time) {
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
}
