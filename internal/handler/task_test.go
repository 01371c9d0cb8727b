package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/mpaulsen/farthing/internal/auth"
	"github.com/mpaulsen/farthing/internal/database"
	"github.com/mpaulsen/farthing/internal/model"
	"github.com/mpaulsen/farthing/internal/store"
)

// handlerTestEnv holds two households so cross-household access can be
// exercised: each has one child member and one task assigned to them.
type handlerTestEnv struct {
	tasks     *store.TaskStore
	members   *store.FamilyMemberStore
	comments  *store.CommentStore
	reactions *store.ReactionStore
	chat      *store.ChatStore
	settings  *store.SettingsStore

	hh1, hh2         int64
	member1, member2 int64
	task1, task2     int64
}

func setupHandlerTestDB(t *testing.T) *handlerTestEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	households := store.NewHouseholdStore(db)
	hh1, err := households.Create("One")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	hh2, err := households.Create("Two")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	members := store.NewFamilyMemberStore(db)
	m1, err := members.Create(hh1.ID, "Ada", "#3B82F6", "🦊", model.RoleChild)
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	m2, err := members.Create(hh2.ID, "Cam", "#10B981", "🐢", model.RoleChild)
	if err != nil {
		t.Fatalf("create member: %v", err)
	}

	tasks := store.NewTaskStore(db)
	t1, err := tasks.Create(hh1.ID, "Walk dog", "", &m1.ID, 5, nil, false)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	t2, err := tasks.Create(hh2.ID, "Secret chore", "", &m2.ID, 10, nil, false)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	return &handlerTestEnv{
		tasks:     tasks,
		members:   members,
		comments:  store.NewCommentStore(db),
		reactions: store.NewReactionStore(db),
		chat:      store.NewChatStore(db),
		settings:  store.NewSettingsStore(db),
		hh1:       hh1.ID,
		hh2:       hh2.ID,
		member1:   m1.ID,
		member2:   m2.ID,
		task1:     t1.ID,
		task2:     t2.ID,
	}
}

// request builds a request authenticated for the given household.
func (env *handlerTestEnv) request(method, target string, body io.Reader, householdID int64) *http.Request {
	r := httptest.NewRequest(method, target, body)
	ctx := auth.WithAuth(r.Context(), auth.AuthContext{
		UserID:      1,
		HouseholdID: householdID,
		Role:        auth.RoleOwner,
	})
	return r.WithContext(ctx)
}

func (env *handlerTestEnv) taskHandler() *TaskHandler {
	return NewTaskHandler(env.tasks, env.members, env.settings, nil, nil, nil, slog.Default())
}

func TestTaskListByAssigneeScopedToHousehold(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := env.taskHandler()

	// A caller's own member lists that member's tasks.
	r := env.request("GET", "/api/tasks?assigned_to="+strconv.FormatInt(env.member1, 10), nil, env.hh1)
	w := httptest.NewRecorder()
	h.List(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var tasks []model.Task
	if err := json.NewDecoder(w.Body).Decode(&tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Walk dog" {
		t.Errorf("tasks = %+v", tasks)
	}

	// Another household's member id must not leak its tasks.
	r = env.request("GET", "/api/tasks?assigned_to="+strconv.FormatInt(env.member2, 10), nil, env.hh1)
	w = httptest.NewRecorder()
	h.List(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if strings.Contains(w.Body.String(), "Secret chore") {
		t.Error("response leaked another household's task")
	}
}
