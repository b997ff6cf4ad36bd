package memory

import (
	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

var ErrNotFound = goerr.New("not found")

// Repository is an alias for Memory to match the pattern
type Repository = Memory

type Memory struct {
	notifyState  *notifyStateRepository
	identity     *identityRepository
	conversation *conversationRepository
	refreshToken *refreshTokenRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		notifyState:  newNotifyStateRepository(),
		identity:     newIdentityRepository(),
		conversation: newConversationRepository(),
		refreshToken: newRefreshTokenRepository(),
	}
}

func (m *Memory) NotifyState() interfaces.NotifyStateRepository {
	return m.notifyState
}

func (m *Memory) Identity() interfaces.IdentityRepository {
	return m.identity
}

func (m *Memory) Conversation() interfaces.ConversationRepository {
	return m.conversation
}

func (m *Memory) RefreshToken() interfaces.RefreshTokenRepository {
	return m.refreshToken
}

func (m *Memory) Close() error {
	return nil
}
