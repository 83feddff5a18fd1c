package insights

import (
	"fmt"
	"math/rand"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/shehan-anujaya/SmartQ/analytics"
	"github.com/shehan-anujaya/SmartQ/utils"
)

// Canned advice served when the rollups are unavailable.
var fallbackTips = []string{
	"Open an extra counter during the late-morning rush to keep waits short.",
	"Review no-show rates per service; a reminder at call time usually halves them.",
	"Counters idle for long stretches can absorb services with growing queues.",
	"Schedule longer services early in the day so the afternoon queue stays fluid.",
	"Check counter service-time averages weekly; a drifting average flags training needs.",
}

// Summary returns a short plain-text read of the last week's queue
// activity. When the rollups cannot be computed it degrades to canned
// advice instead of failing.
func Summary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	const days = 7

	stats, statsErr := analytics.WindowStats(days)
	hours, hoursErr := analytics.HourHistogram(days)
	if statsErr != nil || hoursErr != nil {
		utils.RespondWithJSON(w, http.StatusOK, utils.M{
			"success":   true,
			"generated": false,
			"summary":   "Queue analytics are temporarily unavailable.",
			"tips":      []string{fallbackTips[rand.Intn(len(fallbackTips))]},
		})
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":   true,
		"generated": true,
		"days":      days,
		"summary":   buildSummary(days, stats, hours),
	})
}

// buildSummary turns the rollups into a few plain sentences.
func buildSummary(days int, stats []analytics.ServiceStat, hours []int) string {
	var total, completed int
	var busiest, worstNoShow analytics.ServiceStat
	for _, s := range stats {
		total += s.Joined
		completed += s.Completed
		if s.Joined > busiest.Joined {
			busiest = s
		}
		if s.NoShows > worstNoShow.NoShows {
			worstNoShow = s
		}
	}

	if total == 0 {
		return fmt.Sprintf("No queue activity in the last %d days.", days)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d customers joined a queue in the last %d days; %d were served.", total, days, completed)

	peakHour, peakCount := 0, 0
	for h, n := range hours {
		if n > peakCount {
			peakHour, peakCount = h, n
		}
	}
	if peakCount > 0 {
		fmt.Fprintf(&b, " The busiest hour is %02d:00.", peakHour)
	}
	if busiest.Joined > 0 {
		fmt.Fprintf(&b, " %s drew the most visitors (%d).", displayName(busiest), busiest.Joined)
	}
	if worstNoShow.NoShows > 0 {
		fmt.Fprintf(&b, " %s lost %d callers to no-shows.", displayName(worstNoShow), worstNoShow.NoShows)
	}
	return b.String()
}

func displayName(s analytics.ServiceStat) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ServiceID
}
