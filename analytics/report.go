package analytics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/shehan-anujaya/SmartQ/db"
	"github.com/shehan-anujaya/SmartQ/models"
	"github.com/shehan-anujaya/SmartQ/utils"
)

// DailyReport renders one day's queue activity as a PDF: per-service
// joins, outcomes and average waits, with a totals row.
func DailyReport(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = utils.Today()
	} else {
		parsed, err := utils.ParseDate(date)
		if err != nil {
			http.Error(w, "Invalid date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	cursor, err := db.QueuesCollection.Find(context.TODO(), bson.M{"date": date})
	if err != nil {
		http.Error(w, "Failed to fetch queues", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(context.TODO())

	var queues []models.Queue
	if err := cursor.All(context.TODO(), &queues); err != nil {
		http.Error(w, "Failed to decode queues", http.StatusInternalServerError)
		return
	}

	var stats []ServiceStat
	if len(queues) > 0 {
		queueIDs := make([]string, 0, len(queues))
		for _, q := range queues {
			queueIDs = append(queueIDs, q.QueueID)
		}
		stats, err = rollupByService(bson.M{"queueid": bson.M{"$in": queueIDs}})
		if err != nil {
			http.Error(w, "Failed to aggregate entries", http.StatusInternalServerError)
			return
		}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Daily Queue Report")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 8, date)
	pdf.Ln(12)

	if len(stats) == 0 {
		pdf.Cell(0, 10, "No queue activity recorded for this date.")
	} else {
		widths := []float64{58, 24, 26, 24, 24, 32}
		headers := []string{"Service", "Joined", "Completed", "No-shows", "Cancelled", "Avg wait (min)"}

		pdf.SetFont("Arial", "B", 10)
		for i, h := range headers {
			pdf.CellFormat(widths[i], 8, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 10)
		var joined, completed, noShows, cancelled int
		for _, row := range stats {
			name := row.Name
			if name == "" {
				name = row.ServiceID
			}
			pdf.CellFormat(widths[0], 8, name, "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[1], 8, strconv.Itoa(row.Joined), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[2], 8, strconv.Itoa(row.Completed), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[3], 8, strconv.Itoa(row.NoShows), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[4], 8, strconv.Itoa(row.Cancelled), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[5], 8, fmt.Sprintf("%.1f", row.AvgWait), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)

			joined += row.Joined
			completed += row.Completed
			noShows += row.NoShows
			cancelled += row.Cancelled
		}

		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(widths[0], 8, "Total", "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 8, strconv.Itoa(joined), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 8, strconv.Itoa(completed), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 8, strconv.Itoa(noShows), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 8, strconv.Itoa(cancelled), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 8, "", "1", 0, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		http.Error(w, "Failed to generate PDF", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=daily-report-"+date+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
