package store

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Friend is one address-book record. The store key is derived from the
// last and first names.
type Friend struct {
	Title     string
	LastName  string
	FirstName string
	Mobile    string
	Telephone string
	Email     string
	Birthday  string
	HouseNo   string
	Address1  string
	Address2  string
	City      string
	County    string
	PostCode  string
	Country   string
	Notes     string
}

// Key returns the store key, "Last Name : First Name".
func (f Friend) Key() string {
	return f.LastName + " : " + f.FirstName
}

// MarshalRow flattens the friend into its persisted 15-column form,
// in header order.
func (f Friend) MarshalRow() []string {
	return []string{
		f.Title, f.LastName, f.FirstName, f.Mobile, f.Telephone, f.Email,
		f.Birthday, f.HouseNo, f.Address1, f.Address2, f.City, f.County,
		f.PostCode, f.Country, f.Notes,
	}
}

const friendRowFields = 15

func unmarshalFriendRow(row []string) (Friend, error) {
	if len(row) != friendRowFields {
		return Friend{}, fmt.Errorf("friend row has %d fields, want %d", len(row), friendRowFields)
	}
	return Friend{
		Title: row[0], LastName: row[1], FirstName: row[2], Mobile: row[3],
		Telephone: row[4], Email: row[5], Birthday: row[6], HouseNo: row[7],
		Address1: row[8], Address2: row[9], City: row[10], County: row[11],
		PostCode: row[12], Country: row[13], Notes: row[14],
	}, nil
}

var friendTitles = []string{"", "Mr", "Ms", "Mrs", "Miss", "Dr", "Rev"}

var friendHeaders = []string{
	"Title", "Last Name", "First Name", "Mobile Number", "Telephone Number",
	"E-Mail", "Birthday", "House Number", "Address Line 1", "Address Line 2",
	"City", "County", "Post Code", "Country", "Notes",
}

// FriendTitles returns the accepted titles.
func FriendTitles() []string {
	out := make([]string, len(friendTitles))
	copy(out, friendTitles)
	return out
}

// FriendHeaders returns the display column labels for a friend row.
func FriendHeaders() []string {
	out := make([]string, len(friendHeaders))
	copy(out, friendHeaders)
	return out
}

// FriendsStore is the address-book counterpart of EventStore: same CSV
// persistence, no due-date or stage logic.
type FriendsStore struct {
	mu    sync.Mutex
	store map[string]Friend

	path string
	log  *zap.SugaredLogger
}

// NewFriendsStore builds the store and loads the backing file. A
// missing file is not an error; the store starts empty.
func NewFriendsStore(path string, log *zap.SugaredLogger) (*FriendsStore, error) {
	s := &FriendsStore{
		store: make(map[string]Friend),
		path:  path,
		log:   log,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FriendsStore) load() error {
	rows, err := loadRows(s.path)
	if err != nil {
		if isNotExist(err) {
			s.log.Infow("friends store not found, using empty store", "path", s.path)
			return nil
		}
		return fmt.Errorf("loading friends store: %w", err)
	}

	for i, row := range rows {
		f, err := unmarshalFriendRow(row)
		if err != nil {
			s.log.Errorw("skipping malformed friend row", "path", s.path, "line", i+1, "err", err)
			continue
		}
		s.store[f.Key()] = f
	}

	s.log.Infow("loaded friends store", "path", s.path, "friends", len(s.store))
	return nil
}

// Add inserts or overwrites the record under its derived key.
func (s *FriendsStore) Add(f Friend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[f.Key()] = f
}

// Delete removes the record if present. Unlike the event store, delete
// does not persist; callers save explicitly.
func (s *FriendsStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, key)
}

// Get returns the record for key and whether it exists.
func (s *FriendsStore) Get(key string) (Friend, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.store[key]
	return f, ok
}

// Friends returns every record's fields, sorted by key.
func (s *FriendsStore) Friends() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.store))
	for key := range s.store {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([][]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, s.store[key].MarshalRow())
	}
	return out
}

// NumberOfFriends returns the record count.
func (s *FriendsStore) NumberOfFriends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.store)
}

// Save persists every record, sorted by key.
func (s *FriendsStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.store))
	for key := range s.store {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, s.store[key].MarshalRow())
	}
	if err := saveRows(s.path, rows); err != nil {
		return fmt.Errorf("saving friends store: %w", err)
	}
	s.log.Infow("saved friends store", "friends", len(rows))
	return nil
}
