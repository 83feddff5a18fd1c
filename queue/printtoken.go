package queue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/shehan-anujaya/SmartQ/globals"
	"github.com/shehan-anujaya/SmartQ/utils"
)

// GenerateTokenPayload returns the signed QR payload for a printed
// token: entryID|serviceID|token|timestamp|signature.
func GenerateTokenPayload(entryID, serviceID string, token int) string {
	data := fmt.Sprintf("%s|%s|%d|%d", entryID, serviceID, token, time.Now().Unix())

	h := hmac.New(sha256.New, globals.TokenHMACSecret)
	h.Write([]byte(data))
	sig := base64.StdEncoding.EncodeToString(h.Sum(nil))

	return fmt.Sprintf("%s|%s", data, sig)
}

// VerifyTokenPayload checks the payload's signature and returns the
// entry ID it was issued for.
func VerifyTokenPayload(payload string) (string, bool) {
	parts := strings.Split(payload, "|")
	if len(parts) != 5 {
		return "", false
	}
	data := strings.Join(parts[:4], "|")

	h := hmac.New(sha256.New, globals.TokenHMACSecret)
	h.Write([]byte(data))
	want := base64.StdEncoding.EncodeToString(h.Sum(nil))

	if !hmac.Equal([]byte(want), []byte(parts[4])) {
		return "", false
	}
	return parts[0], true
}

// PrintToken renders the entry's queue token as a PDF with a signed QR
// code staff can scan at the counter.
func PrintToken(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requesterID := utils.GetUserIDFromRequest(r)
	if requesterID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	entryID := ps.ByName("entryid")

	entry, err := eng.entries.Get(context.TODO(), entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	if entry.CustomerID != requesterID && !isStaff(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	serviceName := entry.ServiceID
	if svc, err := eng.services.Get(context.TODO(), entry.ServiceID); err == nil {
		serviceName = svc.Name
	}

	qrPayload := GenerateTokenPayload(entry.EntryID, entry.ServiceID, entry.Token)

	qrPNG, err := qrcode.Encode(qrPayload, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Queue Token")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 28)
	pdf.Cell(0, 14, fmt.Sprintf("No. %d", entry.Token))
	pdf.Ln(16)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 10, fmt.Sprintf("Service: %s", serviceName))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Joined: %s", entry.JoinedAt.Format("2006-01-02 15:04")))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Estimated wait: %d min", entry.EstimatedWait))
	pdf.Ln(12)

	imageOpts := gofpdf.ImageOptions{
		ImageType: "PNG",
	}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 40, 40, 40, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		http.Error(w, "Failed to generate PDF", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=token-"+strconv.Itoa(entry.Token)+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// VerifyToken validates a scanned QR payload and reports the entry's
// current state.
func VerifyToken(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	payload := r.URL.Query().Get("payload")
	if payload == "" {
		http.Error(w, "Missing payload", http.StatusBadRequest)
		return
	}

	entryID, ok := VerifyTokenPayload(payload)
	if !ok {
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"valid": false})
		return
	}

	entry, err := eng.entries.Get(context.TODO(), entryID)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"valid":   true,
		"entryid": entry.EntryID,
		"token":   entry.Token,
		"status":  entry.Status,
		"active":  entry.Active,
	})
}
