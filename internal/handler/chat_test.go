package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mpaulsen/farthing/internal/model"
)

func (env *handlerTestEnv) chatHandler() *ChatHandler {
	return NewChatHandler(env.chat, env.comments, env.reactions, env.members, env.tasks, nil, slog.Default())
}

func TestReactionsScopedToHousehold(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := env.chatHandler()

	// Household 2 reacts to its own task.
	if _, err := env.reactions.Set(model.ContentTask, env.task2, env.member2, "🔥"); err != nil {
		t.Fatalf("seed reaction: %v", err)
	}

	// Household 1 cannot list reactions on household 2's task.
	r := env.request("GET", fmt.Sprintf("/api/reactions?content_type=task&content_id=%d", env.task2), nil, env.hh1)
	w := httptest.NewRecorder()
	h.ListReactions(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("list status = %d, want 404", w.Code)
	}

	// Nor attach a reaction to it.
	body := fmt.Sprintf(`{"content_type":"task","content_id":%d,"member_id":%d,"kind":"👍"}`, env.task2, env.member1)
	r = env.request("POST", "/api/reactions", strings.NewReader(body), env.hh1)
	w = httptest.NewRecorder()
	h.SetReaction(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("set status = %d, want 404", w.Code)
	}

	// Nor remove household 2's reaction.
	body = fmt.Sprintf(`{"content_type":"task","content_id":%d,"member_id":%d,"kind":"🔥"}`, env.task2, env.member1)
	r = env.request("DELETE", "/api/reactions", strings.NewReader(body), env.hh1)
	w = httptest.NewRecorder()
	h.RemoveReaction(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("remove status = %d, want 404", w.Code)
	}

	// Household 2's reaction survived untouched.
	reactions, err := env.reactions.ListByContent(model.ContentTask, env.task2)
	if err != nil {
		t.Fatalf("list reactions: %v", err)
	}
	if len(reactions) != 1 || reactions[0].MemberID != env.member2 {
		t.Errorf("reactions = %+v", reactions)
	}

	// Household 2 itself still sees its reaction.
	r = env.request("GET", fmt.Sprintf("/api/reactions?content_type=task&content_id=%d", env.task2), nil, env.hh2)
	w = httptest.NewRecorder()
	h.ListReactions(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("own-household list status = %d, want 200", w.Code)
	}
}
