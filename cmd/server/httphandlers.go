package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"example.com/tuitergraph/internal/middleware"
	"example.com/tuitergraph/internal/models"
	"example.com/tuitergraph/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// --- Helpers ---

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeCoreError maps the core error taxonomy onto HTTP status codes:
// malformed identity is the caller's fault, a duplicate relation is a
// conflict, anything else is the storage layer.
func writeCoreError(w http.ResponseWriter, module string, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidIdentity):
		logg.Info(module, "Rejected malformed identifier")
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrDuplicateRelation):
		logg.Info(module, "Relation already exists")
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logg.Error(module, "Store operation failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, module string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logg.Error(module, "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	r.Body.Close()
	return true
}

func actor(w http.ResponseWriter, r *http.Request, module string) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		logg.Info(module, "Unauthorized request")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

// --- Users ---

// createUserHandler handles POST requests to create a new user.
// Expects JSON body: {"username": "example"}
// Returns JSON response: {"user_id": <id>, "token": <jwt>}
func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	type req struct{ Username string }
	var body req
	if !decodeBody(w, r, "http/users", &body) {
		return
	}

	if len(body.Username) == 0 || len(body.Username) > 50 {
		logg.Info("http/users", "Invalid username length")
		http.Error(w, "username must be 1-50 characters", http.StatusBadRequest)
		return
	}

	userID, err := s.store.CreateUser(r.Context(), body.Username)
	if err != nil {
		logg.Error("http/users", "Failed to create user", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	logg.Info("http/users", "User ready with user_id="+userID)

	secret := []byte(os.Getenv("JWT_SECRET"))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenStr, err := token.SignedString(secret)
	if err != nil {
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"user_id": userID,
		"token":   tokenStr,
	})
}

// --- Tuits ---

// tuitsHandler creates a tuit owned by the acting user, or reads one back
// by ?tuit_id.
// POST with JSON body: {"body": "tuit content"}
func (s *Server) tuitsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		tuit, found, err := s.store.GetTuit(r.Context(), r.URL.Query().Get("tuit_id"))
		if err != nil {
			writeCoreError(w, "http/tuits", err)
			return
		}
		if !found {
			http.Error(w, "tuit not found", http.StatusNotFound)
			return
		}
		writeJSON(w, tuit)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	type req struct {
		Body string `json:"body"`
	}
	var body req
	if !decodeBody(w, r, "http/tuits", &body) {
		return
	}

	userID, ok := actor(w, r, "http/tuits")
	if !ok {
		return
	}

	if len(body.Body) == 0 || len(body.Body) > 280 {
		logg.Info("http/tuits", "Tuit body length invalid for user_id="+userID)
		http.Error(w, "tuit body must be 1-280 characters", http.StatusBadRequest)
		return
	}

	tuit := models.Tuit{
		ID:       uuid.NewString(),
		AuthorID: userID,
		Body:     body.Body,
		PostedOn: time.Now(),
	}
	if err := s.store.CreateTuit(r.Context(), tuit); err != nil {
		writeCoreError(w, "http/tuits", err)
		return
	}

	logg.Info("http/tuits", "Tuit created by user_id="+userID)
	writeJSON(w, tuit)
}

// --- Follows ---

// followsHandler creates or removes one follow relation.
// POST/DELETE with JSON body: {"followee_id": "<id>"}
func (s *Server) followsHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		FolloweeID string `json:"followee_id"`
	}
	var body req
	if !decodeBody(w, r, "http/follows", &body) {
		return
	}

	userID, ok := actor(w, r, "http/follows")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		rel, err := s.relations.Follow(r.Context(), userID, body.FolloweeID)
		if err != nil {
			writeCoreError(w, "http/follows", err)
			return
		}
		logg.Info("http/follows", "User "+userID+" followed "+body.FolloweeID)
		writeJSON(w, rel)
	case http.MethodDelete:
		out, err := s.relations.Unfollow(r.Context(), userID, body.FolloweeID)
		if err != nil {
			writeCoreError(w, "http/follows", err)
			return
		}
		writeJSON(w, out)
	default:
		methodNotAllowed(w)
	}
}

// followingHandler lists or clears everyone the acting user follows.
func (s *Server) followingHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r, "http/following")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		rels, err := s.relations.Following(r.Context(), userID)
		if err != nil {
			writeCoreError(w, "http/following", err)
			return
		}
		writeJSON(w, rels)
	case http.MethodDelete:
		out, err := s.relations.RemoveAllFollowsOf(r.Context(), userID)
		if err != nil {
			writeCoreError(w, "http/following", err)
			return
		}
		logg.Info("http/following", "User "+userID+" unfollowed everyone")
		writeJSON(w, out)
	default:
		methodNotAllowed(w)
	}
}

// followersHandler lists or clears the acting user's followers.
func (s *Server) followersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r, "http/followers")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		rels, err := s.relations.Followers(r.Context(), userID)
		if err != nil {
			writeCoreError(w, "http/followers", err)
			return
		}
		writeJSON(w, rels)
	case http.MethodDelete:
		out, err := s.relations.RemoveAllFollowersOf(r.Context(), userID)
		if err != nil {
			writeCoreError(w, "http/followers", err)
			return
		}
		logg.Info("http/followers", "User "+userID+" lost all followers")
		writeJSON(w, out)
	default:
		methodNotAllowed(w)
	}
}

// --- Reactions ---

// reactionsHandler sets or reads the acting user's reaction on a tuit.
// PUT with JSON body: {"tuit_id": "<id>", "reaction": "like"|"dislike"|"none"}
// GET with query param tuit_id.
func (s *Server) reactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r, "http/reactions")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPut:
		type req struct {
			TuitID   string          `json:"tuit_id"`
			Reaction models.Reaction `json:"reaction"`
		}
		var body req
		if !decodeBody(w, r, "http/reactions", &body) {
			return
		}

		switch body.Reaction {
		case models.ReactionLike, models.ReactionDislike, models.ReactionNone:
		default:
			http.Error(w, "reaction must be like, dislike or none", http.StatusBadRequest)
			return
		}

		current, err := s.relations.SetReaction(r.Context(), userID, body.TuitID, body.Reaction)
		if err != nil {
			writeCoreError(w, "http/reactions", err)
			return
		}
		logg.Info("http/reactions", "User "+userID+" set reaction on "+body.TuitID)
		writeJSON(w, map[string]models.Reaction{"reaction": current})
	case http.MethodGet:
		current, err := s.relations.Reaction(r.Context(), userID, r.URL.Query().Get("tuit_id"))
		if err != nil {
			writeCoreError(w, "http/reactions", err)
			return
		}
		writeJSON(w, map[string]models.Reaction{"reaction": current})
	default:
		methodNotAllowed(w)
	}
}

// likesHandler lists users that liked the tuit in ?tuit_id.
func (s *Server) likesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rels, err := s.relations.Likers(r.Context(), r.URL.Query().Get("tuit_id"))
	if err != nil {
		writeCoreError(w, "http/likes", err)
		return
	}
	writeJSON(w, rels)
}

// likedHandler lists tuits the acting user liked.
func (s *Server) likedHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID, ok := actor(w, r, "http/liked")
	if !ok {
		return
	}
	rels, err := s.relations.LikedTuits(r.Context(), userID)
	if err != nil {
		writeCoreError(w, "http/liked", err)
		return
	}
	writeJSON(w, rels)
}

// dislikesHandler lists users that disliked the tuit in ?tuit_id.
func (s *Server) dislikesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rels, err := s.relations.Dislikers(r.Context(), r.URL.Query().Get("tuit_id"))
	if err != nil {
		writeCoreError(w, "http/dislikes", err)
		return
	}
	writeJSON(w, rels)
}

// dislikedHandler lists tuits the acting user disliked.
func (s *Server) dislikedHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID, ok := actor(w, r, "http/disliked")
	if !ok {
		return
	}
	rels, err := s.relations.DislikedTuits(r.Context(), userID)
	if err != nil {
		writeCoreError(w, "http/disliked", err)
		return
	}
	writeJSON(w, rels)
}

// countsHandler returns like and dislike totals for the tuit in ?tuit_id.
func (s *Server) countsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	tuitID := r.URL.Query().Get("tuit_id")

	likes, err := s.relations.LikeCount(r.Context(), tuitID)
	if err != nil {
		writeCoreError(w, "http/counts", err)
		return
	}
	dislikes, err := s.relations.DislikeCount(r.Context(), tuitID)
	if err != nil {
		writeCoreError(w, "http/counts", err)
		return
	}
	writeJSON(w, map[string]int{"likes": likes, "dislikes": dislikes})
}

// --- Bookmarks ---

// bookmarksHandler creates, removes or lists the acting user's bookmarks.
// POST/DELETE with JSON body: {"tuit_id": "<id>"}
func (s *Server) bookmarksHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r, "http/bookmarks")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		rels, err := s.relations.Bookmarks(r.Context(), userID)
		if err != nil {
			writeCoreError(w, "http/bookmarks", err)
			return
		}
		writeJSON(w, rels)
		return
	case http.MethodPost, http.MethodDelete:
	default:
		methodNotAllowed(w)
		return
	}

	type req struct {
		TuitID string `json:"tuit_id"`
	}
	var body req
	if !decodeBody(w, r, "http/bookmarks", &body) {
		return
	}

	if r.Method == http.MethodPost {
		rel, err := s.relations.Bookmark(r.Context(), userID, body.TuitID)
		if err != nil {
			writeCoreError(w, "http/bookmarks", err)
			return
		}
		logg.Info("http/bookmarks", "User "+userID+" bookmarked "+body.TuitID)
		writeJSON(w, rel)
		return
	}

	out, err := s.relations.Unbookmark(r.Context(), userID, body.TuitID)
	if err != nil {
		writeCoreError(w, "http/bookmarks", err)
		return
	}
	writeJSON(w, out)
}

// clearBookmarksHandler removes every bookmark the acting user made.
func (s *Server) clearBookmarksHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	userID, ok := actor(w, r, "http/bookmarks")
	if !ok {
		return
	}
	out, err := s.relations.RemoveAllBookmarksOf(r.Context(), userID)
	if err != nil {
		writeCoreError(w, "http/bookmarks", err)
		return
	}
	logg.Info("http/bookmarks", "User "+userID+" cleared all bookmarks")
	writeJSON(w, out)
}

// bookmarkersHandler lists users that bookmarked the tuit in ?tuit_id.
func (s *Server) bookmarkersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rels, err := s.relations.Bookmarkers(r.Context(), r.URL.Query().Get("tuit_id"))
	if err != nil {
		writeCoreError(w, "http/bookmarkers", err)
		return
	}
	writeJSON(w, rels)
}

// --- Messages ---

// messagesHandler sends a message or deletes one by id.
// POST body: {"recipient_id": "<id>", "body": "text"}
// DELETE body: {"message_id": "<id>"}
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r, "http/messages")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		type req struct {
			RecipientID string `json:"recipient_id"`
			Body        string `json:"body"`
		}
		var body req
		if !decodeBody(w, r, "http/messages", &body) {
			return
		}
		if len(body.Body) == 0 || len(body.Body) > 1000 {
			http.Error(w, "message body must be 1-1000 characters", http.StatusBadRequest)
			return
		}

		msg, err := s.relations.SendMessage(r.Context(), userID, body.RecipientID, body.Body)
		if err != nil {
			writeCoreError(w, "http/messages", err)
			return
		}
		logg.Info("http/messages", "User "+userID+" messaged "+body.RecipientID)
		writeJSON(w, msg)
	case http.MethodDelete:
		type req struct {
			MessageID string `json:"message_id"`
		}
		var body req
		if !decodeBody(w, r, "http/messages", &body) {
			return
		}

		out, err := s.relations.DeleteMessage(r.Context(), body.MessageID)
		if err != nil {
			writeCoreError(w, "http/messages", err)
			return
		}
		writeJSON(w, out)
	default:
		methodNotAllowed(w)
	}
}

// sentMessagesHandler lists or purges messages the acting user sent.
func (s *Server) sentMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r, "http/messages")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		msgs, err := s.relations.SentMessages(r.Context(), userID)
		if err != nil {
			writeCoreError(w, "http/messages", err)
			return
		}
		writeJSON(w, msgs)
	case http.MethodDelete:
		out, err := s.relations.RemoveAllSentMessagesOf(r.Context(), userID)
		if err != nil {
			writeCoreError(w, "http/messages", err)
			return
		}
		writeJSON(w, out)
	default:
		methodNotAllowed(w)
	}
}

// receivedMessagesHandler lists or purges messages the acting user received.
func (s *Server) receivedMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r, "http/messages")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		msgs, err := s.relations.ReceivedMessages(r.Context(), userID)
		if err != nil {
			writeCoreError(w, "http/messages", err)
			return
		}
		writeJSON(w, msgs)
	case http.MethodDelete:
		out, err := s.relations.RemoveAllReceivedMessagesOf(r.Context(), userID)
		if err != nil {
			writeCoreError(w, "http/messages", err)
			return
		}
		writeJSON(w, out)
	default:
		methodNotAllowed(w)
	}
}

// --- Account ---

// accountHandler publishes a teardown event for the acting user. The
// worker consumes it and runs each relation cascade as its own unit.
func (s *Server) accountHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}

	userID, ok := actor(w, r, "http/account")
	if !ok {
		return
	}

	event := models.TeardownEvent{
		UserID:      userID,
		RequestedAt: time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		logg.Error("http/account", "Failed to marshal teardown event", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	msg := kafka.Message{
		Key:   []byte("account_deleted"),
		Value: data,
	}
	if err := s.kafkaWriter.WriteMessages(msg); err != nil {
		logg.Error("http/account", "Failed to write Kafka message", err)
		http.Error(w, "failed to write Kafka message", http.StatusInternalServerError)
		return
	}

	logg.Info("http/account", "Teardown requested for user_id="+userID)
	w.WriteHeader(http.StatusAccepted)
}
