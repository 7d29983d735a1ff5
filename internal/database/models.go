package database

import "time"

type User struct {
	Id           int
	Name         string
	Email        string
	PasswordHash string
	Gender       string
	Image        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Message struct {
	Id         int
	SenderId   int
	ReceiverId int
	Text       string
	SentAt     time.Time
}

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Gender       string
	Image        string
}

type UpdateUserParams struct {
	UserId       int
	Name         string
	PasswordHash string
	Gender       string
	Image        string
}
