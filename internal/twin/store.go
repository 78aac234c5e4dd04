package twin

import (
	"fmt"
	"strings"
	"sync"
)

// User is a reqres user record.
type User struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar"`
}

// Color is a reqres "unknown" resource record.
type Color struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Year         int    `json:"year"`
	Color        string `json:"color"`
	PantoneValue string `json:"pantone_value"`
}

// Support is the promotional block reqres attaches to every read.
type Support struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

var defaultSupport = Support{
	URL:  "https://contentcaddy.io?utm_source=reqres&utm_medium=json&utm_campaign=referral",
	Text: "Tired of writing endless social media content? Let Content Caddy generate it for you.",
}

// Store holds the seed data. Writes (create, update, delete) are echoed
// back but never persisted, matching the real service.
type Store struct {
	mu     sync.RWMutex
	users  []User
	colors []Color
}

// NewStore returns the reqres seed data.
func NewStore() *Store {
	names := [][2]string{
		{"George", "Bluth"}, {"Janet", "Weaver"}, {"Emma", "Wong"},
		{"Eve", "Holt"}, {"Charles", "Morris"}, {"Tracey", "Ramos"},
		{"Michael", "Lawson"}, {"Lindsay", "Ferguson"}, {"Tobias", "Funke"},
		{"Byron", "Fields"}, {"George", "Edwards"}, {"Rachel", "Howell"},
	}
	users := make([]User, len(names))
	for i, n := range names {
		id := i + 1
		users[i] = User{
			ID:        id,
			Email:     fmt.Sprintf("%s.%s@reqres.in", strings.ToLower(n[0]), strings.ToLower(n[1])),
			FirstName: n[0],
			LastName:  n[1],
			Avatar:    fmt.Sprintf("https://reqres.in/img/faces/%d-image.jpg", id),
		}
	}

	colors := []Color{
		{1, "cerulean", 2000, "#98B2D1", "15-4020"},
		{2, "fuchsia rose", 2001, "#C74375", "17-2031"},
		{3, "true red", 2002, "#BF1932", "19-1664"},
		{4, "aqua sky", 2003, "#7BC4C4", "14-4811"},
		{5, "tigerlily", 2004, "#E2583E", "17-1456"},
		{6, "blue turquoise", 2005, "#53B0AE", "15-5217"},
		{7, "sand dollar", 2006, "#DECDBE", "13-1106"},
		{8, "chili pepper", 2007, "#9B1B30", "19-1557"},
		{9, "blue iris", 2008, "#5A5B9F", "18-3943"},
		{10, "mimosa", 2009, "#F0C05A", "14-0848"},
		{11, "turquoise", 2010, "#45B5AA", "15-5519"},
		{12, "honeysuckle", 2011, "#D94F70", "18-2120"},
	}

	return &Store{users: users, colors: colors}
}

// User returns the user with id.
func (s *Store) User(id int) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// UserByEmail returns the user registered under email.
func (s *Store) UserByEmail(email string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return User{}, false
}

// Users returns a copy of all users.
func (s *Store) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]User(nil), s.users...)
}

// Color returns the color with id.
func (s *Store) Color(id int) (Color, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.colors {
		if c.ID == id {
			return c, true
		}
	}
	return Color{}, false
}

// Colors returns a copy of all colors.
func (s *Store) Colors() []Color {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Color(nil), s.colors...)
}

// page is one page of a listing.
type page[T any] struct {
	Page       int     `json:"page"`
	PerPage    int     `json:"per_page"`
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
	Data       []T     `json:"data"`
	Support    Support `json:"support"`
}

// paginate slices items into pages of perPage, 1-indexed.
func paginate[T any](items []T, pageNum, perPage int) page[T] {
	if pageNum < 1 {
		pageNum = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	total := len(items)
	totalPages := (total + perPage - 1) / perPage

	start := min((pageNum-1)*perPage, total)
	end := min(start+perPage, total)

	return page[T]{
		Page:       pageNum,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		Data:       append([]T{}, items[start:end]...),
		Support:    defaultSupport,
	}
}

// DefaultPerPage is the listing page size.
const DefaultPerPage = 6
