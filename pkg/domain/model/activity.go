package model

// ActivityType values handled by the bot.
const (
	ActivityTypeMessage            = "message"
	ActivityTypeConversationUpdate = "conversationUpdate"
)

// Activity is the subset of a Bot Framework activity the bot reads and writes.
type Activity struct {
	Type         string               `json:"type"`
	ID           string               `json:"id,omitempty"`
	Timestamp    string               `json:"timestamp,omitempty"`
	ServiceURL   string               `json:"serviceUrl,omitempty"`
	ChannelID    string               `json:"channelId,omitempty"`
	From         *ChannelAccount      `json:"from,omitempty"`
	Recipient    *ChannelAccount      `json:"recipient,omitempty"`
	Conversation *ConversationAccount `json:"conversation,omitempty"`
	MembersAdded []ChannelAccount     `json:"membersAdded,omitempty"`
	Text         string               `json:"text,omitempty"`
	TextFormat   string               `json:"textFormat,omitempty"`
	ReplyToID    string               `json:"replyToId,omitempty"`
	ChannelData  *ChannelData         `json:"channelData,omitempty"`
}

type ChannelAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
}

type ConversationAccount struct {
	ID               string `json:"id"`
	ConversationType string `json:"conversationType,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
	IsGroup          bool   `json:"isGroup,omitempty"`
}

type ChannelData struct {
	Tenant *TenantInfo `json:"tenant,omitempty"`
}

type TenantInfo struct {
	ID string `json:"id"`
}

// TenantID returns the tenant from the conversation or the channel data.
func (a *Activity) TenantID() string {
	if a.Conversation != nil && a.Conversation.TenantID != "" {
		return a.Conversation.TenantID
	}
	if a.ChannelData != nil && a.ChannelData.Tenant != nil {
		return a.ChannelData.Tenant.ID
	}
	return ""
}

// AddedUsers returns members added by a conversationUpdate, excluding the bot itself.
func (a *Activity) AddedUsers() []ChannelAccount {
	var users []ChannelAccount
	for _, m := range a.MembersAdded {
		if a.Recipient != nil && m.ID == a.Recipient.ID {
			continue
		}
		users = append(users, m)
	}
	return users
}

// TeamsMember is the connector's view of a conversation member.
type TeamsMember struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	AADObjectID       string `json:"aadObjectId"`
	Email             string `json:"email"`
	UserPrincipalName string `json:"userPrincipalName"`
	TenantID          string `json:"tenantId"`
}
