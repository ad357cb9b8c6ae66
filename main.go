package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/km-arc/go-ioc/framework/app"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/logger"
	"github.com/km-arc/go-ioc/framework/providers"
	"github.com/km-arc/go-ioc/framework/routing"
)

func main() {
	application, err := app.New()
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap failed")
	}
	if err := application.Register(&userProvider{}); err != nil {
		log.Fatal().Err(err).Msg("register users")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		application.Log().Error("server stopped", logger.Fields(logger.FieldError, err))
		os.Exit(1)
	}
}

// ── Example domain ───────────────────────────────────────────────────────────

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UserStore interface {
	All() []User
	Find(id string) (User, bool)
	Save(u User)
	Delete(id string)
}

type memoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[string]User{
		"1": {ID: "1", Name: "Alice"},
		"2": {ID: "2", Name: "Bob"},
	}}
}

func (s *memoryStore) All() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out
}

func (s *memoryStore) Find(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *memoryStore) Save(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// UserController is built by the container for every request.
type UserController struct {
	store UserStore
	log   *logger.Logger
}

func NewUserController(store UserStore, log *logger.Logger) *UserController {
	return &UserController{store: store, log: log.WithComponent("users")}
}

func (c *UserController) Index(w http.ResponseWriter, _ *http.Request) {
	routing.JSON(w, http.StatusOK, map[string]any{"data": c.store.All()})
}

func (c *UserController) Store(w http.ResponseWriter, r *http.Request) {
	u := User{ID: r.FormValue("id"), Name: r.FormValue("name")}
	if u.ID == "" || u.Name == "" {
		routing.Error(w, http.StatusUnprocessableEntity, "id and name are required")
		return
	}
	c.store.Save(u)
	c.log.Info("user created", logger.Fields(logger.FieldIdentifier, u.ID))
	routing.JSON(w, http.StatusCreated, map[string]any{"data": u})
}

func (c *UserController) Show(w http.ResponseWriter, r *http.Request) {
	u, ok := c.store.Find(routing.Param(r, "id"))
	if !ok {
		routing.Error(w, http.StatusNotFound, "Not Found.")
		return
	}
	routing.JSON(w, http.StatusOK, map[string]any{"data": u})
}

func (c *UserController) Update(w http.ResponseWriter, r *http.Request) {
	id := routing.Param(r, "id")
	if _, ok := c.store.Find(id); !ok {
		routing.Error(w, http.StatusNotFound, "Not Found.")
		return
	}
	u := User{ID: id, Name: r.FormValue("name")}
	c.store.Save(u)
	routing.JSON(w, http.StatusOK, map[string]any{"data": u})
}

func (c *UserController) Destroy(w http.ResponseWriter, r *http.Request) {
	c.store.Delete(routing.Param(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// ── Provider ─────────────────────────────────────────────────────────────────

type userProvider struct {
	container.BaseProvider
}

func (p *userProvider) Register(c *container.Container) error {
	c.Singleton(container.KeyOf[UserStore](), container.Factory(func(*container.Container) (any, error) {
		return newMemoryStore(), nil
	}))
	return c.DefineConstructor("controllers.users", NewUserController)
}

func (p *userProvider) Boot(c *container.Container) error {
	router, err := container.Resolve[*routing.Router](c, providers.RouterID)
	if err != nil {
		return err
	}
	router.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		routing.JSON(w, http.StatusOK, map[string]any{"message": "go-ioc " + app.Version})
	})
	router.Prefix("/api/v1", func(api *routing.Router) {
		api.Resource("/users", "controllers.users")
	})
	return nil
}
