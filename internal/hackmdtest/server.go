// Package hackmdtest provides an in-memory HackMD API server for tests.
package hackmdtest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"hackmd-go/pkg/hackmd"
)

// Fault is a canned response served instead of the next matching request.
type Fault struct {
	Status int
	Header http.Header
	Body   string
}

// Recorded is a request seen by the server.
type Recorded struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	Body          string
}

// Server is a fake HackMD API. Routes live under /v1 and require the
// bearer token given to New.
type Server struct {
	*httptest.Server

	token string
	now   func() time.Time

	mu        sync.Mutex
	user      hackmd.User
	teams     []hackmd.Team
	notes     map[string]map[string]*hackmd.SingleNote // owner ("" = personal, else team path) -> id -> note
	history   []string
	faults    []Fault
	requests  []Recorded
	nextID    int
	bodyLimit int64
}

// New starts a server accepting token.
func New(token string) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		token: token,
		now:   func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
		user: hackmd.User{
			ID:       "u-1",
			Name:     "Test User",
			UserPath: "test-user",
			Photo:    "https://hackmd.test/avatar.png",
		},
		notes:     map[string]map[string]*hackmd.SingleNote{"": {}},
		bodyLimit: 1 << 20,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	v1 := r.Group("/v1", s.record, s.auth, s.fault)
	v1.GET("/me", s.getMe)
	v1.GET("/history", s.getHistory)
	v1.GET("/notes", s.listNotes(""))
	v1.POST("/notes", s.createNote(""))
	v1.GET("/notes/:id", s.getNote(""))
	v1.PATCH("/notes/:id", s.updateNote(""))
	v1.DELETE("/notes/:id", s.deleteNote(""))
	v1.GET("/teams", s.getTeams)
	v1.GET("/teams/:team/notes", s.withTeam(s.listNotes))
	v1.POST("/teams/:team/notes", s.withTeam(s.createNote))
	v1.PATCH("/teams/:team/notes/:id", s.withTeam(s.updateNote))
	v1.DELETE("/teams/:team/notes/:id", s.withTeam(s.deleteNote))

	s.Server = httptest.NewServer(r)
	return s
}

// BaseURL returns the API base URL to pass to hackmd.WithBaseURL.
func (s *Server) BaseURL() string {
	return s.Server.URL + "/v1"
}

// SetUser replaces the authenticated user. Teams are managed with AddTeam.
func (s *Server) SetUser(u hackmd.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Teams = nil
	s.user = u
}

// AddTeam registers a team the user belongs to.
func (s *Server) AddTeam(t hackmd.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams = append(s.teams, t)
	if _, ok := s.notes[t.Path]; !ok {
		s.notes[t.Path] = map[string]*hackmd.SingleNote{}
	}
}

// PutNote stores a note owned by teamPath, or a personal note when
// teamPath is empty.
func (s *Server) PutNote(teamPath string, n hackmd.SingleNote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.notes[teamPath]
	if !ok {
		owner = map[string]*hackmd.SingleNote{}
		s.notes[teamPath] = owner
	}
	cp := n
	owner[n.ID] = &cp
}

// Note returns a stored note.
func (s *Server) Note(teamPath, id string) (hackmd.SingleNote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[teamPath][id]
	if !ok {
		return hackmd.SingleNote{}, false
	}
	return *n, true
}

// FailNext queues faults served, in order, to the next requests.
func (s *Server) FailNext(faults ...Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, faults...)
}

// Requests returns every request received so far.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

func (s *Server) record(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(c.Request.Body, s.bodyLimit))
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}
	s.mu.Lock()
	s.requests = append(s.requests, Recorded{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Authorization: c.GetHeader("Authorization"),
		RequestID:     c.GetHeader("X-Request-ID"),
		Body:          string(body),
	})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) auth(c *gin.Context) {
	if c.GetHeader("Authorization") != "Bearer "+s.token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.Next()
}

func (s *Server) fault(c *gin.Context) {
	s.mu.Lock()
	if len(s.faults) == 0 {
		s.mu.Unlock()
		c.Next()
		return
	}
	f := s.faults[0]
	s.faults = s.faults[1:]
	s.mu.Unlock()

	for k, vs := range f.Header {
		for _, v := range vs {
			c.Writer.Header().Add(k, v)
		}
	}
	c.Data(f.Status, "application/json", []byte(f.Body))
	c.Abort()
}

func (s *Server) getMe(c *gin.Context) {
	s.mu.Lock()
	u := s.user
	u.Teams = append([]hackmd.Team{}, s.teams...)
	s.mu.Unlock()
	c.JSON(http.StatusOK, u)
}

func (s *Server) getHistory(c *gin.Context) {
	s.mu.Lock()
	out := make([]hackmd.Note, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		if n := s.findLocked(s.history[i]); n != nil {
			out = append(out, n.Note)
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) getTeams(c *gin.Context) {
	s.mu.Lock()
	teams := append([]hackmd.Team{}, s.teams...)
	s.mu.Unlock()
	c.JSON(http.StatusOK, teams)
}

// withTeam resolves the :team parameter and rejects unknown teams.
func (s *Server) withTeam(h func(owner string) gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		team := c.Param("team")
		s.mu.Lock()
		_, ok := s.notes[team]
		s.mu.Unlock()
		if !ok || team == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "team not found"})
			return
		}
		h(team)(c)
	}
}

func (s *Server) listNotes(owner string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		out := make([]hackmd.Note, 0, len(s.notes[owner]))
		for _, n := range s.notes[owner] {
			out = append(out, n.Note)
		}
		s.mu.Unlock()
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) getNote(owner string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		s.mu.Lock()
		n, ok := s.notes[owner][id]
		var cp hackmd.SingleNote
		if ok {
			cp = *n
			s.history = append(s.history, id)
		}
		s.mu.Unlock()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
			return
		}
		c.JSON(http.StatusOK, cp)
	}
}

func (s *Server) createNote(owner string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in hackmd.CreateNoteOptions
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.mu.Lock()
		s.nextID++
		id := fmt.Sprintf("note-%d", s.nextID)
		n := &hackmd.SingleNote{
			Note: hackmd.Note{
				ID:              id,
				Title:           firstNonEmpty(in.Title, titleFrom(in.Content), "Untitled"),
				Tags:            []string{},
				CreatedAt:       hackmd.Timestamp{Time: s.now()},
				LastChangedAt:   hackmd.Timestamp{Time: s.now()},
				PublishType:     hackmd.PublishEdit,
				ShortID:         "s" + id,
				PublishLink:     s.Server.URL + "/s" + id,
				ReadPermission:  permOr(in.ReadPermission, hackmd.PermissionOwner),
				WritePermission: permOr(in.WritePermission, hackmd.PermissionOwner),
			},
			Content: in.Content,
		}
		if in.Permalink != "" {
			p := in.Permalink
			n.Permalink = &p
		}
		if owner == "" {
			up := s.user.UserPath
			n.UserPath = &up
		} else {
			tp := owner
			n.TeamPath = &tp
		}
		s.notes[owner][id] = n
		cp := *n
		s.mu.Unlock()
		c.JSON(http.StatusCreated, cp)
	}
}

func (s *Server) updateNote(owner string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in hackmd.UpdateNoteOptions
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id := c.Param("id")
		s.mu.Lock()
		n, ok := s.notes[owner][id]
		if ok {
			if in.Content != nil {
				n.Content = *in.Content
				if t := titleFrom(n.Content); t != "" {
					n.Title = t
				}
			}
			if in.ReadPermission != "" {
				n.ReadPermission = in.ReadPermission
			}
			if in.WritePermission != "" {
				n.WritePermission = in.WritePermission
			}
			if in.Permalink != "" {
				p := in.Permalink
				n.Permalink = &p
			}
			n.LastChangedAt = hackmd.Timestamp{Time: s.now()}
		}
		s.mu.Unlock()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
			return
		}
		c.Status(http.StatusAccepted)
	}
}

func (s *Server) deleteNote(owner string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		s.mu.Lock()
		_, ok := s.notes[owner][id]
		delete(s.notes[owner], id)
		s.mu.Unlock()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) findLocked(id string) *hackmd.SingleNote {
	for _, owner := range s.notes {
		if n, ok := owner[id]; ok {
			return n
		}
	}
	return nil
}

func titleFrom(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

func permOr(p, def hackmd.NotePermissionRole) hackmd.NotePermissionRole {
	if p == "" {
		return def
	}
	return p
}
