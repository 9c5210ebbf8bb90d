//go:generate go run go.uber.org/mock/mockgen -source=membership.go -destination=../mocks/mock_membership_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IMembershipRepository interface {
	AddMember(room int, identity string) error
	RemoveMember(room int, identity string) error
	Members(room int) ([]string, error)
	RoomsOf(identity string) ([]int, error)
}

// MembershipRepository stores room membership twice, once per lookup
// direction:
//
//	member:{room}:{identity} -> joined_at   (room -> identities)
//	rooms:{identity}:{room}  -> joined_at   (identity -> rooms)
//
// Both entries are written in one transaction so the indexes cannot drift.
type MembershipRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMembershipRepository(db *badger.DB, log *slog.Logger) MembershipRepository {
	return MembershipRepository{db: db, log: log}
}

func memberKey(room int, identity string) []byte {
	return []byte(fmt.Sprintf("member:%d:%s", room, identity))
}

func roomsKey(identity string, room int) []byte {
	return []byte(fmt.Sprintf("rooms:%s:%d", identity, room))
}

func (m MembershipRepository) AddMember(room int, identity string) error {
	joinedAt := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(memberKey(room, identity), joinedAt); err != nil {
			return err
		}
		return txn.Set(roomsKey(identity, room), joinedAt)
	})
}

func (m MembershipRepository) RemoveMember(room int, identity string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(memberKey(room, identity)); err != nil {
			return err
		}
		return txn.Delete(roomsKey(identity, room))
	})
}

// Members lists the identities currently in a room.
func (m MembershipRepository) Members(room int) ([]string, error) {
	var identities []string
	prefix := []byte(fmt.Sprintf("member:%d:", room))
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			identities = append(identities, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return identities, err
}

// RoomsOf lists the rooms an identity belongs to. The session subscribe
// phase derives its room topics from this at connect time.
func (m MembershipRepository) RoomsOf(identity string) ([]int, error) {
	var rooms []int
	prefix := []byte(fmt.Sprintf("rooms:%s:", identity))
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			suffix := string(it.Item().Key()[len(prefix):])
			room, err := strconv.Atoi(strings.TrimSpace(suffix))
			if err != nil {
				m.log.Warn("Skipping malformed membership key", "key", string(it.Item().Key()))
				continue
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	return rooms, err
}
