package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mpaulsen/farthing/internal/auth"
	"github.com/mpaulsen/farthing/internal/model"
	"github.com/mpaulsen/farthing/internal/store"
	"github.com/mpaulsen/farthing/internal/websocket"
)

const chatHistoryLimit = 100

// ChatHandler serves the family chat, task comments, and reactions.
type ChatHandler struct {
	chatStore     *store.ChatStore
	commentStore  *store.CommentStore
	reactionStore *store.ReactionStore
	memberStore   *store.FamilyMemberStore
	taskStore     *store.TaskStore
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewChatHandler(
	cs *store.ChatStore,
	coms *store.CommentStore,
	rs *store.ReactionStore,
	ms *store.FamilyMemberStore,
	ts *store.TaskStore,
	hub *websocket.Hub,
	logger *slog.Logger,
) *ChatHandler {
	return &ChatHandler{
		chatStore:     cs,
		commentStore:  coms,
		reactionStore: rs,
		memberStore:   ms,
		taskStore:     ts,
		hub:           hub,
		logger:        logger,
	}
}

func (h *ChatHandler) broadcast(householdID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(householdID, msg)
	}
}

// checkMember verifies that a family member id belongs to the caller's
// household.
func (h *ChatHandler) checkMember(w http.ResponseWriter, householdID, memberID int64) bool {
	member, err := h.memberStore.GetByID(memberID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check family member"})
		return false
	}
	if member == nil || member.HouseholdID != householdID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "family member not found"})
		return false
	}
	return true
}

type messageRequest struct {
	AuthorID int64  `json:"author_id"`
	Body     string `json:"body"`
}

func (h *ChatHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message body is required"})
		return
	}

	householdID := auth.HouseholdID(r.Context())
	if !h.checkMember(w, householdID, req.AuthorID) {
		return
	}

	msg, err := h.chatStore.Create(householdID, req.AuthorID, req.Body)
	if err != nil {
		h.logger.Error("create chat message", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to send message"})
		return
	}

	h.broadcast(householdID, websocket.NewMessage("chat", "created", msg.ID, nil))

	writeJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatStore.ListRecent(auth.HouseholdID(r.Context()), chatHistoryLimit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list messages"})
		return
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	msg, err := h.chatStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get message"})
		return
	}
	if msg == nil || msg.HouseholdID != auth.HouseholdID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "message not found"})
		return
	}

	if err := h.chatStore.Delete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete message"})
		return
	}

	h.broadcast(msg.HouseholdID, websocket.NewMessage("chat", "deleted", id, nil))

	w.WriteHeader(http.StatusNoContent)
}

type commentRequest struct {
	AuthorID int64  `json:"author_id"`
	Body     string `json:"body"`
}

// CreateComment adds a comment on a task, e.g. encouragement on a submitted
// photo.
func (h *ChatHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	householdID := auth.HouseholdID(r.Context())
	task, err := h.taskStore.GetByID(taskID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return
	}
	if task == nil || task.HouseholdID != householdID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "comment body is required"})
		return
	}
	if !h.checkMember(w, householdID, req.AuthorID) {
		return
	}

	comment, err := h.commentStore.Create(taskID, req.AuthorID, req.Body)
	if err != nil {
		h.logger.Error("create comment", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create comment"})
		return
	}

	h.broadcast(householdID, websocket.NewMessage("comment", "created", comment.ID, map[string]any{"task_id": taskID}))

	writeJSON(w, http.StatusCreated, comment)
}

func (h *ChatHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	task, err := h.taskStore.GetByID(taskID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return
	}
	if task == nil || task.HouseholdID != auth.HouseholdID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	comments, err := h.commentStore.ListByTask(taskID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list comments"})
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *ChatHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	comment, err := h.commentStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get comment"})
		return
	}
	if comment == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "comment not found"})
		return
	}

	task, err := h.taskStore.GetByID(comment.TaskID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return
	}
	if task == nil || task.HouseholdID != auth.HouseholdID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "comment not found"})
		return
	}

	if err := h.commentStore.Delete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete comment"})
		return
	}

	h.broadcast(task.HouseholdID, websocket.NewMessage("comment", "deleted", id, map[string]any{"task_id": comment.TaskID}))

	w.WriteHeader(http.StatusNoContent)
}

type reactionRequest struct {
	ContentType string `json:"content_type"`
	ContentID   int64  `json:"content_id"`
	MemberID    int64  `json:"member_id"`
	Kind        string `json:"kind"`
}

func validReactionContent(contentType string) bool {
	switch contentType {
	case model.ContentTask, model.ContentComment, model.ContentMessage:
		return true
	}
	return false
}

// checkContent resolves a reaction target to its owning household and
// verifies it is the caller's.
func (h *ChatHandler) checkContent(w http.ResponseWriter, householdID int64, contentType string, contentID int64) bool {
	var ownerID int64
	switch contentType {
	case model.ContentTask:
		task, err := h.taskStore.GetByID(contentID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check content"})
			return false
		}
		if task == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "content not found"})
			return false
		}
		ownerID = task.HouseholdID
	case model.ContentComment:
		comment, err := h.commentStore.GetByID(contentID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check content"})
			return false
		}
		if comment == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "content not found"})
			return false
		}
		task, err := h.taskStore.GetByID(comment.TaskID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check content"})
			return false
		}
		if task == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "content not found"})
			return false
		}
		ownerID = task.HouseholdID
	case model.ContentMessage:
		msg, err := h.chatStore.GetByID(contentID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check content"})
			return false
		}
		if msg == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "content not found"})
			return false
		}
		ownerID = msg.HouseholdID
	}
	if ownerID != householdID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "content not found"})
		return false
	}
	return true
}

// SetReaction records a member's reaction to a task, comment, or chat
// message. A second reaction from the same member replaces the first.
func (h *ChatHandler) SetReaction(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if !validReactionContent(req.ContentType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid content type"})
		return
	}
	req.Kind = strings.TrimSpace(req.Kind)
	if req.Kind == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reaction kind is required"})
		return
	}
	householdID := auth.HouseholdID(r.Context())
	if !h.checkMember(w, householdID, req.MemberID) {
		return
	}
	if !h.checkContent(w, householdID, req.ContentType, req.ContentID) {
		return
	}

	reaction, err := h.reactionStore.Set(req.ContentType, req.ContentID, req.MemberID, req.Kind)
	if err != nil {
		h.logger.Error("set reaction", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to set reaction"})
		return
	}

	h.broadcast(householdID, websocket.NewMessage("reaction", "set", reaction.ID, map[string]any{
		"content_type": req.ContentType,
		"content_id":   req.ContentID,
	}))

	writeJSON(w, http.StatusCreated, reaction)
}

func (h *ChatHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if !validReactionContent(req.ContentType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid content type"})
		return
	}
	householdID := auth.HouseholdID(r.Context())
	if !h.checkMember(w, householdID, req.MemberID) {
		return
	}
	if !h.checkContent(w, householdID, req.ContentType, req.ContentID) {
		return
	}

	if err := h.reactionStore.Remove(req.ContentType, req.ContentID, req.MemberID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to remove reaction"})
		return
	}

	h.broadcast(householdID, websocket.NewMessage("reaction", "removed", req.ContentID, map[string]any{
		"content_type": req.ContentType,
	}))

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) ListReactions(w http.ResponseWriter, r *http.Request) {
	contentType := r.URL.Query().Get("content_type")
	if !validReactionContent(contentType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid content type"})
		return
	}
	contentID, err := parsePositiveInt(r.URL.Query().Get("content_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid content_id"})
		return
	}
	if !h.checkContent(w, auth.HouseholdID(r.Context()), contentType, contentID) {
		return
	}

	reactions, err := h.reactionStore.ListByContent(contentType, contentID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list reactions"})
		return
	}
	if reactions == nil {
		reactions = []model.Reaction{}
	}
	writeJSON(w, http.StatusOK, reactions)
}
