package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateUser(params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) UpdateUser(params UpdateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetUserById(userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetUserByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) ListUsersExcept(userId int) ([]User, error) {
	args := m.Called(userId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockChatRepository) CreateMessage(senderId, receiverId int, text string) (Message, error) {
	args := m.Called(senderId, receiverId, text)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetMessagesByParticipant(userId int) ([]Message, error) {
	args := m.Called(userId)
	return args.Get(0).([]Message), args.Error(1)
}
