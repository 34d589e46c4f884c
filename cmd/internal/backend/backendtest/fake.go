// Package backendtest provides an in-memory stand-in for the backend API.
//
// Fake serves the same /api/py/<endpoint> contract as the real backend,
// including its status codes, over an httptest.Server.
package backendtest

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type user struct {
	id        int64
	email     string
	password  string
	firstName string
	lastName  string
}

type room struct {
	id      string
	title   string
	adminID int64
	theme   string
	members map[int64]bool // userID -> admin
}

type message struct {
	id      int64
	userID  int64
	roomID  string
	text    string
	image   bool
	flagged bool
}

// Fake is an in-memory backend. The zero value is not usable; call New.
type Fake struct {
	Server *httptest.Server

	mu        sync.Mutex
	users     map[string]*user
	rooms     map[string]*room
	messages  []*message
	nextUser  int64
	nextMsg   int64
	nextRoom  int
	calls     map[string]int
	forceHTTP int
	flagWords []string
}

// New starts a Fake. Call Close when done.
func New() *Fake {
	f := &Fake{
		users:     make(map[string]*user),
		rooms:     make(map[string]*room),
		calls:     make(map[string]int),
		flagWords: []string{"badword"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/py/{endpoint}", f.serve)
	f.Server = httptest.NewServer(mux)
	return f
}

// URL is the base URL to configure the client with (trailing slash included).
func (f *Fake) URL() string { return f.Server.URL + "/" }

// Close stops the server.
func (f *Fake) Close() { f.Server.Close() }

// Calls reports how many times endpoint was hit.
func (f *Fake) Calls(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

// FailHTTP makes every request answer with the given HTTP status (0 clears).
func (f *Fake) FailHTTP(code int) {
	f.mu.Lock()
	f.forceHTTP = code
	f.mu.Unlock()
}

// AddUser seeds an account and returns its id.
func (f *Fake) AddUser(email, password, firstName, lastName string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUserLocked(email, password, firstName, lastName)
}

// AddRoom seeds a room administered by adminEmail and returns its code.
func (f *Fake) AddRoom(adminEmail, title string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[adminEmail]
	if u == nil {
		return ""
	}
	return f.addRoomLocked(u, title)
}

// AddMember puts userID into roomID as a regular member.
func (f *Fake) AddMember(roomID string, userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := f.rooms[roomID]; r != nil {
		r.members[userID] = false
	}
}

// SetTheme changes a room's theme.
func (f *Fake) SetTheme(roomID, theme string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := f.rooms[roomID]; r != nil {
		r.theme = theme
	}
}

// IsMember reports whether userID belongs to roomID.
func (f *Fake) IsMember(roomID string, userID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.rooms[roomID]
	if r == nil {
		return false
	}
	_, ok := r.members[userID]
	return ok
}

// HasRoom reports whether roomID exists.
func (f *Fake) HasRoom(roomID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms[roomID] != nil
}

func (f *Fake) addUserLocked(email, password, firstName, lastName string) int64 {
	f.nextUser++
	f.users[email] = &user{
		id:        f.nextUser,
		email:     email,
		password:  password,
		firstName: firstName,
		lastName:  lastName,
	}
	return f.nextUser
}

func (f *Fake) addRoomLocked(admin *user, title string) string {
	f.nextRoom++
	sum := sha1.Sum([]byte(strconv.Itoa(f.nextRoom) + "/" + strconv.FormatInt(admin.id, 10)))
	id := hex.EncodeToString(sum[:])[:6]
	f.rooms[id] = &room{
		id:      id,
		title:   title,
		adminID: admin.id,
		theme:   "default",
		members: map[int64]bool{admin.id: true},
	}
	return id
}

func (f *Fake) userByID(id int64) *user {
	for _, u := range f.users {
		if u.id == id {
			return u
		}
	}
	return nil
}

type request struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Title     string `json:"title"`
	RoomID    string `json:"roomId"`
	UserID    int64  `json:"userId"`
	UserEmail string `json:"userEmail"`
	MessageID int64  `json:"messageId"`
	Content   string `json:"content"`
	Image     bool   `json:"image"`
}

type obj = map[string]any

func (f *Fake) serve(w http.ResponseWriter, r *http.Request) {
	endpoint := r.PathValue("endpoint")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[endpoint]++

	if f.forceHTTP != 0 {
		w.WriteHeader(f.forceHTTP)
		return
	}

	var in request
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	var out obj
	switch endpoint {
	case "create-user":
		out = f.createUser(in)
	case "login-user":
		u := f.users[in.Email]
		if u == nil || u.password != in.Password {
			out = obj{"status": 404}
		} else {
			out = obj{"status": 200}
		}
	case "fetch-id":
		if u := f.users[in.UserEmail]; u != nil {
			out = obj{"status": 200, "id": u.id}
		} else {
			out = obj{"status": 400, "error": "No such user has that email"}
		}
	case "fetch-all-rooms":
		out = f.fetchAllRooms(in)
	case "create-room":
		out = f.createRoom(in)
	case "join-room":
		out = f.joinRoom(in)
	case "leave-room":
		if rm := f.rooms[in.RoomID]; rm != nil {
			delete(rm.members, in.UserID)
		}
		kept := f.messages[:0]
		for _, m := range f.messages {
			if !(m.userID == in.UserID && m.roomID == in.RoomID) {
				kept = append(kept, m)
			}
		}
		f.messages = kept
		out = obj{"status": 200}
	case "delete-room":
		delete(f.rooms, in.RoomID)
		kept := f.messages[:0]
		for _, m := range f.messages {
			if m.roomID != in.RoomID {
				kept = append(kept, m)
			}
		}
		f.messages = kept
		out = obj{"status": 200}
	case "fetch-messages":
		out = f.fetchMessages(in)
	case "send-message":
		out = f.sendMessage(in)
	case "delete-message":
		out = f.mutateMessage(in, true)
	case "approve-message":
		out = f.mutateMessage(in, false)
	case "fetch-roster":
		out = f.fetchRoster(in)
	case "fetch-theme":
		if rm := f.rooms[in.RoomID]; rm != nil {
			out = obj{"status": 200, "theme": rm.theme}
		} else {
			out = obj{"status": 404}
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (f *Fake) createUser(in request) obj {
	switch {
	case f.users[in.Email] != nil:
		return obj{"status": 404}
	case !strings.Contains(in.Email, "@"):
		return obj{"status": 405}
	case len(in.Password) < 8:
		return obj{"status": 406}
	case len(in.FirstName) < 1:
		return obj{"status": 407}
	case len(in.LastName) < 1:
		return obj{"status": 408}
	}
	f.addUserLocked(in.Email, in.Password, in.FirstName, in.LastName)
	return obj{"status": 200}
}

func (f *Fake) fetchAllRooms(in request) obj {
	u := f.users[in.Email]
	if u == nil {
		return obj{"status": 400}
	}
	rooms := []obj{}
	ids := make([]string, 0, len(f.rooms))
	for id := range f.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rm := f.rooms[id]
		if _, ok := rm.members[u.id]; !ok {
			continue
		}
		admin := f.userByID(rm.adminID)
		entry := obj{"roomId": rm.id, "title": rm.title, "adminId": rm.adminID}
		if admin != nil {
			entry["firstName"] = admin.firstName
			entry["lastName"] = admin.lastName
		}
		rooms = append(rooms, entry)
	}
	return obj{"status": 200, "rooms": rooms}
}

func (f *Fake) createRoom(in request) obj {
	u := f.users[in.Email]
	if u == nil {
		return obj{"status": 400}
	}
	if len(in.Title) < 1 || len(in.Title) > 75 {
		return obj{"status": 401}
	}
	f.addRoomLocked(u, in.Title)
	return obj{"status": 200}
}

func (f *Fake) joinRoom(in request) obj {
	rm := f.rooms[in.RoomID]
	if rm == nil {
		return obj{"status": 401}
	}
	if _, ok := rm.members[in.UserID]; ok {
		return obj{"status": 402}
	}
	rm.members[in.UserID] = false
	return obj{"status": 200}
}

func (f *Fake) fetchMessages(in request) obj {
	rm := f.rooms[in.RoomID]
	if rm == nil {
		return obj{"status": 401, "error": "Not a member of that room!"}
	}
	if _, ok := rm.members[in.UserID]; !ok {
		return obj{"status": 401, "error": "Not a member of that room!"}
	}
	msgs := []obj{}
	for _, m := range f.messages {
		if m.roomID != in.RoomID {
			continue
		}
		if m.flagged && m.userID != in.UserID && rm.adminID != in.UserID {
			continue
		}
		name := ""
		if u := f.userByID(m.userID); u != nil {
			name = u.firstName + " " + u.lastName
		}
		msgs = append(msgs, obj{
			"messageId": m.id,
			"id":        m.userID,
			"name":      name,
			"message":   m.text,
			"image":     m.image,
			"flagged":   m.flagged,
		})
	}
	return obj{"status": 200, "messages": msgs}
}

func (f *Fake) sendMessage(in request) obj {
	rm := f.rooms[in.RoomID]
	if rm == nil {
		return obj{"status": 401, "error": "Not a member of that room!"}
	}
	if _, ok := rm.members[in.UserID]; !ok {
		return obj{"status": 401, "error": "Not a member of that room!"}
	}
	flagged := false
	if !in.Image {
		lower := strings.ToLower(in.Content)
		for _, w := range f.flagWords {
			if strings.Contains(lower, w) {
				flagged = true
				break
			}
		}
	}
	f.nextMsg++
	f.messages = append(f.messages, &message{
		id:      f.nextMsg,
		userID:  in.UserID,
		roomID:  in.RoomID,
		text:    in.Content,
		image:   in.Image,
		flagged: flagged,
	})
	return obj{"status": 200, "messageId": f.nextMsg}
}

func (f *Fake) mutateMessage(in request, remove bool) obj {
	for i, m := range f.messages {
		if m.id != in.MessageID {
			continue
		}
		rm := f.rooms[m.roomID]
		allowed := m.userID == in.UserID || (rm != nil && rm.adminID == in.UserID)
		if !allowed {
			break
		}
		if remove {
			f.messages = append(f.messages[:i], f.messages[i+1:]...)
			return obj{"status": 200, "message": "Message deleted successfully"}
		}
		m.flagged = false
		return obj{"status": 200, "message": "Message approved successfully"}
	}
	return obj{"status": 404, "error": "Message not found or unauthorized"}
}

func (f *Fake) fetchRoster(in request) obj {
	rm := f.rooms[in.RoomID]
	if rm == nil || len(rm.members) == 0 {
		return obj{"status": 404}
	}
	type entry struct {
		u     *user
		admin bool
	}
	list := make([]entry, 0, len(rm.members))
	for id, admin := range rm.members {
		if u := f.userByID(id); u != nil {
			list = append(list, entry{u, admin})
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].admin != list[j].admin {
			return list[i].admin
		}
		return list[i].u.id < list[j].u.id
	})
	data := make([]obj, 0, len(list))
	for _, e := range list {
		data = append(data, obj{
			"userId":    e.u.id,
			"firstName": e.u.firstName,
			"lastName":  e.u.lastName,
			"admin":     e.admin,
		})
	}
	return obj{"status": 200, "data": data}
}
