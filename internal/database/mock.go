package database

import (
	"github.com/stretchr/testify/mock"
)

type MockClassChatRepository struct {
	mock.Mock
}

func (m *MockClassChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockClassChatRepository) CreateAccount(accountParams CreateAccountParams) (User, error) {
	args := m.Called(accountParams)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockClassChatRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockClassChatRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockClassChatRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockClassChatRepository) ListAccounts(excludeId int) ([]User, error) {
	args := m.Called(excludeId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockClassChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockClassChatRepository) GetConversation(accountId, peerId, before, limit int) ([]Message, error) {
	args := m.Called(accountId, peerId, before, limit)
	return args.Get(0).([]Message), args.Error(1)
}
