package display

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shehan-anujaya/SmartQ/db"
	"github.com/shehan-anujaya/SmartQ/globals"
	"github.com/shehan-anujaya/SmartQ/models"
	"github.com/shehan-anujaya/SmartQ/mq"
	"github.com/shehan-anujaya/SmartQ/rdx"
	"github.com/shehan-anujaya/SmartQ/utils"
)

const snapshotTTL = 12 * time.Hour

// nowServing is the board's headline: the token being served and where.
type nowServing struct {
	Token     int       `json:"token"`
	CounterID string    `json:"counterid,omitempty"`
	EntryID   string    `json:"entryid"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StartWorker relays queue events to connected display boards and keeps
// the now-serving snapshot current.
func StartWorker() {
	go func() {
		sub := rdx.Conn.Subscribe(globals.Ctx, mq.QueueEventsChannel)
		log.Println("display: subscribed to", mq.QueueEventsChannel)
		for msg := range sub.Channel() {
			var ev models.QueueEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("display: dropping malformed event: %v", err)
				continue
			}
			handleEvent(ev, []byte(msg.Payload))
		}
	}()
}

func handleEvent(ev models.QueueEvent, raw []byte) {
	if ev.ServiceID != "" {
		broadcast(ev.ServiceID, raw)
	}
	broadcast("all", raw)

	if ev.Type == "entry-called" || ev.Type == "entry-started" {
		snap, err := json.Marshal(nowServing{
			Token:     ev.Token,
			CounterID: ev.CounterID,
			EntryID:   ev.EntryID,
			UpdatedAt: time.Now(),
		})
		if err != nil {
			return
		}
		if err := rdx.SetWithExpiry("display:nowserving:"+ev.ServiceID, string(snap), snapshotTTL); err != nil {
			log.Printf("display: snapshot write for %s failed: %v", ev.ServiceID, err)
		}
	}
}

// Snapshot returns the board state for one service: the token being
// served and the waiting tokens in serving order.
func Snapshot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	serviceID := ps.ByName("serviceid")

	var serving *nowServing
	if raw, err := rdx.RdxGet("display:nowserving:" + serviceID); err == nil && raw != "" {
		var ns nowServing
		if json.Unmarshal([]byte(raw), &ns) == nil {
			serving = &ns
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "token", Value: 1}}).
		SetProjection(bson.M{"token": 1, "priority": 1}).
		SetLimit(20)
	cursor, err := db.QueueEntriesCollection.Find(context.TODO(), bson.M{
		"serviceid": serviceID,
		"status":    models.StatusWaiting,
	}, opts)
	if err != nil {
		http.Error(w, "Failed to fetch waiting entries", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(context.TODO())

	var entries []models.QueueEntry
	if err := cursor.All(context.TODO(), &entries); err != nil {
		http.Error(w, "Failed to decode waiting entries", http.StatusInternalServerError)
		return
	}

	waiting := make([]int, 0, len(entries))
	for _, e := range entries {
		waiting = append(waiting, e.Token)
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":    true,
		"serviceid":  serviceID,
		"nowServing": serving,
		"waiting":    waiting,
	})
}
