package domain

type RoomID int
