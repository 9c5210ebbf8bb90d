package repositories

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Add_And_List_Members(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMembershipRepository(db, slog.Default())
	req.NoError(repository.AddMember(1, "alice"))
	req.NoError(repository.AddMember(1, "bob"))
	req.NoError(repository.AddMember(2, "alice"))

	members, err := repository.Members(1)
	req.NoError(err)
	req.ElementsMatch([]string{"alice", "bob"}, members)

	rooms, err := repository.RoomsOf("alice")
	req.NoError(err)
	req.ElementsMatch([]int{1, 2}, rooms)
}

func Test_Remove_Member_Clears_Both_Indexes(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMembershipRepository(db, slog.Default())
	req.NoError(repository.AddMember(1, "alice"))
	req.NoError(repository.RemoveMember(1, "alice"))

	members, err := repository.Members(1)
	req.NoError(err)
	req.Empty(members)

	rooms, err := repository.RoomsOf("alice")
	req.NoError(err)
	req.Empty(rooms)
}

func Test_Remove_Unknown_Member_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMembershipRepository(db, slog.Default())
	req.NoError(repository.RemoveMember(1, "ghost"))
}
