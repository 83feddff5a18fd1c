package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shehan-anujaya/SmartQ/analytics"
)

func TestBuildSummary_NoActivity(t *testing.T) {
	got := buildSummary(7, nil, make([]int, 24))
	assert.Equal(t, "No queue activity in the last 7 days.", got)
}

func TestBuildSummary_HighlightsBusiestServiceAndHour(t *testing.T) {
	stats := []analytics.ServiceStat{
		{ServiceID: "svc1", Name: "Passport Renewal", Joined: 40, Completed: 35},
		{ServiceID: "svc2", Name: "License Pickup", Joined: 12, Completed: 10},
	}
	hours := make([]int, 24)
	hours[10] = 18
	hours[14] = 9

	got := buildSummary(7, stats, hours)

	assert.Contains(t, got, "52 customers joined a queue in the last 7 days; 45 were served.")
	assert.Contains(t, got, "The busiest hour is 10:00.")
	assert.Contains(t, got, "Passport Renewal drew the most visitors (40).")
	assert.NotContains(t, got, "no-shows")
}

func TestBuildSummary_MentionsNoShows(t *testing.T) {
	stats := []analytics.ServiceStat{
		{ServiceID: "svc1", Name: "Passport Renewal", Joined: 20, Completed: 12, NoShows: 6},
	}

	got := buildSummary(7, stats, make([]int, 24))

	assert.Contains(t, got, "Passport Renewal lost 6 callers to no-shows.")
}

func TestBuildSummary_FallsBackToServiceID(t *testing.T) {
	stats := []analytics.ServiceStat{
		{ServiceID: "svc9", Joined: 3, Completed: 3},
	}

	got := buildSummary(7, stats, make([]int, 24))

	assert.Contains(t, got, "svc9 drew the most visitors (3).")
}
