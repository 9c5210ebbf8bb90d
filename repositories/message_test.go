package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Record_Multiple_Message(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	room := 1
	content := "this message will self destruct in 5 seconds"
	at := time.Now().UTC()
	diskMessages := []DiskMessage{
		{ID: "01A", Room: room, Author: "alice", Content: content, At: at},
		{ID: "01B", Room: room, Author: "bob", Content: content, At: at.Add(1 * time.Minute)},
		{ID: "01C", Room: room, Author: "clara", Content: content, At: at.Add(2 * time.Minute)},
	}
	for _, dm := range diskMessages {
		req.NoError(repository.StoreMessage(dm))
	}

	fetched, _, err := repository.GetMessages(room, nil)
	req.NoError(err)
	req.Len(fetched, len(diskMessages))
	// Newest first.
	req.Equal("clara", fetched[0].Author)
	req.Equal("bob", fetched[1].Author)
	req.Equal("alice", fetched[2].Author)
}

func Test_Record_Multiple_Message_And_Limit(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)
	room := 1
	at := time.Now().UTC()
	diskMessages := []DiskMessage{
		{ID: "01A", Room: room, Author: "alice", Content: "first", At: at},
		{ID: "01B", Room: room, Author: "bob", Content: "second", At: at.Add(1 * time.Minute)},
		{ID: "01C", Room: room, Author: "clara", Content: "third", At: at.Add(2 * time.Minute)},
	}
	for _, dm := range diskMessages {
		req.NoError(repository.StoreMessage(dm))
	}

	fetched, cursor, err := repository.GetMessages(room, nil)
	req.NoError(err)
	req.Len(fetched, limit)
	req.NotNil(cursor)

	// Resume from the cursor to get the remaining page.
	rest, _, err := repository.GetMessages(room, cursor)
	req.NoError(err)
	req.Len(rest, 1)
	req.Equal("alice", rest[0].Author)
}

func Test_Messages_Are_Isolated_Per_Room(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	at := time.Now().UTC()
	req.NoError(repository.StoreMessage(DiskMessage{ID: "01A", Room: 1, Content: "room one", At: at}))
	req.NoError(repository.StoreMessage(DiskMessage{ID: "01B", Room: 2, Content: "room two", At: at}))

	fetched, _, err := repository.GetMessages(1, nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("room one", fetched[0].Content)
}

func Test_Reaction_Round_Trips_With_Parent(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	parent := "01A"
	req.NoError(repository.StoreMessage(DiskMessage{
		ID: "01B", Room: 1, Author: "bob", Content: "👍",
		Parent: &parent, IsReaction: true, At: time.Now().UTC(),
	}))

	fetched, _, err := repository.GetMessages(1, nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.True(fetched[0].IsReaction)
	req.NotNil(fetched[0].Parent)
	req.Equal(parent, *fetched[0].Parent)
}
