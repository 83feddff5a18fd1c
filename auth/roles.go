package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shehan-anujaya/SmartQ/db"
	"github.com/shehan-anujaya/SmartQ/models"
	"github.com/shehan-anujaya/SmartQ/utils"
)

func validRole(role string) bool {
	return role == "user" || role == "staff" || role == "admin"
}

// SetUserRole grants or revokes one role on a user. Roles take effect
// on the user's next issued token.
func SetUserRole(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := ps.ByName("userid")

	var req struct {
		Role   string `json:"role"`
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !validRole(req.Role) {
		http.Error(w, "Unknown role", http.StatusBadRequest)
		return
	}

	var update bson.M
	switch req.Action {
	case "grant":
		update = bson.M{
			"$addToSet": bson.M{"role": req.Role},
			"$set":      bson.M{"updated_at": time.Now()},
		}
	case "revoke":
		update = bson.M{
			"$pull": bson.M{"role": req.Role},
			"$set":  bson.M{"updated_at": time.Now()},
		}
	default:
		http.Error(w, "Action must be grant or revoke", http.StatusBadRequest)
		return
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := db.UserCollection.FindOneAndUpdate(context.TODO(),
		bson.M{"userid": userID}, update, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to update roles", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success": true,
		"userid":  user.UserID,
		"roles":   user.Role,
	})
}
