package database

type ClassChatRepository interface {
	Ping() error
	CreateAccount(accountParams CreateAccountParams) (User, error)
	UpdateAccount(params UpdateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	ListAccounts(excludeId int) ([]User, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetConversation(accountId, peerId, before, limit int) ([]Message, error)
}
