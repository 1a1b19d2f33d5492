package database

import "time"

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

type User struct {
	Id           int
	Name         string
	EmailAddress string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Message struct {
	Id         int
	SenderId   int
	ReceiverId int
	Body       string
	CreatedAt  time.Time
}

type CreateAccountParams struct {
	Name         string
	EmailAddress string
	Role         string
	PasswordHash string
}

type UpdateAccountParams struct {
	UserId       int
	Name         string
	PasswordHash string
}

type CreateMessageParams struct {
	SenderId   int
	ReceiverId int
	Body       string
}
