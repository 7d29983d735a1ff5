package database

type ChatRepository interface {
	Ping() error
	CreateUser(params CreateUserParams) (User, error)
	UpdateUser(params UpdateUserParams) (User, error)
	GetUserById(userId int) (User, error)
	GetUserByEmail(email string) (User, error)
	ListUsersExcept(userId int) ([]User, error)
	CreateMessage(senderId, receiverId int, text string) (Message, error)
	GetMessagesByParticipant(userId int) ([]Message, error)
}
